// Package ceremonyconfig loads the YAML configuration that governs how a
// ceremony session behaves: password policy, iteration counts, output
// locations, audit retention, the organization's identity, and the
// optional default keeper roster.
package ceremonyconfig

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mpinkus/Sss/pkg/envelope"
)

// CeremonyConfig is the top-level configuration document.
type CeremonyConfig struct {
	Security     SecurityConfig   `yaml:"security"`
	FileSystem   FileSystemConfig `yaml:"filesystem"`
	Organization Organization     `yaml:"organization"`
	DefaultKeepers []Keeper       `yaml:"default_keepers"`
}

// SecurityConfig controls the cryptographic and procedural knobs of a
// ceremony.
type SecurityConfig struct {
	ConfirmationRequired  bool `yaml:"confirmation_required"`
	MinPasswordLength     int  `yaml:"min_password_length"`
	RequireUppercase      bool `yaml:"require_uppercase"`
	RequireLowercase      bool `yaml:"require_lowercase"`
	RequireDigit          bool `yaml:"require_digit"`
	RequireSpecialChar    bool `yaml:"require_special_character"`
	KDFIterations         int  `yaml:"kdf_iterations"`
	SecureDeletePasses    int  `yaml:"secure_delete_passes"`
	AuditLogEnabled       bool `yaml:"audit_log_enabled"`
	AuditLogRetentionDays int  `yaml:"audit_log_retention_days"`
}

// FileSystemConfig controls where ceremony artifacts are written.
type FileSystemConfig struct {
	OutputFolder string `yaml:"output_folder"`
}

// Organization identifies the entity running the ceremony.
type Organization struct {
	Name         string `yaml:"name"`
	ContactPhone string `yaml:"contact_phone"`
}

// Keeper is a pre-registered candidate key keeper, offered to the
// operator during the COLLECT_KEEPERS state in preferred-order.
type Keeper struct {
	Name           string `yaml:"name"`
	Phone          string `yaml:"phone"`
	Email          string `yaml:"email"`
	Department     string `yaml:"department"`
	Title          string `yaml:"title"`
	PreferredOrder int    `yaml:"preferred_order"`
}

// Default returns the configuration's defaults, matching what an absent
// or partially-specified YAML document should resolve to.
func Default() *CeremonyConfig {
	return &CeremonyConfig{
		Security: SecurityConfig{
			ConfirmationRequired:  true,
			MinPasswordLength:     12,
			RequireUppercase:      true,
			RequireLowercase:      true,
			RequireDigit:          true,
			RequireSpecialChar:    true,
			KDFIterations:         100000,
			SecureDeletePasses:    3,
			AuditLogEnabled:       true,
			AuditLogRetentionDays: 90,
		},
		FileSystem: FileSystemConfig{
			OutputFolder: ".",
		},
	}
}

// Load reads path, layering its values over Default(), applies SHAMIR_
// environment overrides, and validates the result.
func Load(path string) (*CeremonyConfig, error) {
	cfg := Default()

	// #nosec G304 - config file path is supplied by the operator invoking the CLI
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *CeremonyConfig) {
	if v := os.Getenv("SHAMIR_MIN_PASSWORD_LENGTH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Security.MinPasswordLength = n
		} else {
			log.Printf("warning: invalid SHAMIR_MIN_PASSWORD_LENGTH value %q: %v", v, err)
		}
	}
	if v := os.Getenv("SHAMIR_KDF_ITERATIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Security.KDFIterations = n
		} else {
			log.Printf("warning: invalid SHAMIR_KDF_ITERATIONS value %q: %v", v, err)
		}
	}
	if v := os.Getenv("SHAMIR_SECURE_DELETE_PASSES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Security.SecureDeletePasses = n
		} else {
			log.Printf("warning: invalid SHAMIR_SECURE_DELETE_PASSES value %q: %v", v, err)
		}
	}
	if v := os.Getenv("SHAMIR_AUDIT_LOG_RETENTION_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Security.AuditLogRetentionDays = n
		} else {
			log.Printf("warning: invalid SHAMIR_AUDIT_LOG_RETENTION_DAYS value %q: %v", v, err)
		}
	}
	if v := os.Getenv("SHAMIR_AUDIT_LOG_ENABLED"); v != "" {
		cfg.Security.AuditLogEnabled = strings.EqualFold(v, "true") || v == "1"
	}
	if v := os.Getenv("SHAMIR_CONFIRMATION_REQUIRED"); v != "" {
		cfg.Security.ConfirmationRequired = strings.EqualFold(v, "true") || v == "1"
	}
	if v := os.Getenv("SHAMIR_OUTPUT_FOLDER"); v != "" {
		cfg.FileSystem.OutputFolder = v
	}
	if v := os.Getenv("SHAMIR_ORG_NAME"); v != "" {
		cfg.Organization.Name = v
	}
	if v := os.Getenv("SHAMIR_ORG_CONTACT_PHONE"); v != "" {
		cfg.Organization.ContactPhone = v
	}
}

// Validate checks the configuration's numeric ranges and required fields.
func (c *CeremonyConfig) Validate() error {
	if c.Security.MinPasswordLength < 1 {
		return fmt.Errorf("min_password_length must be positive, got %d", c.Security.MinPasswordLength)
	}
	if c.Security.KDFIterations < envelope.MinIterations {
		return fmt.Errorf("kdf_iterations must be at least %d, got %d", envelope.MinIterations, c.Security.KDFIterations)
	}
	if c.Security.SecureDeletePasses < 1 || c.Security.SecureDeletePasses > 10 {
		return fmt.Errorf("secure_delete_passes must be between 1 and 10, got %d", c.Security.SecureDeletePasses)
	}
	if c.Security.AuditLogRetentionDays < 1 || c.Security.AuditLogRetentionDays > 3650 {
		return fmt.Errorf("audit_log_retention_days must be between 1 and 3650, got %d", c.Security.AuditLogRetentionDays)
	}
	if c.FileSystem.OutputFolder == "" {
		return fmt.Errorf("filesystem.output_folder must be specified")
	}
	for i, k := range c.DefaultKeepers {
		if k.Name == "" {
			return fmt.Errorf("default_keepers[%d]: name must be specified", i)
		}
	}
	return nil
}

// PasswordPolicy derives a validate.PasswordPolicy-shaped set of fields
// from the security configuration, as a plain struct that does not import
// pkg/validate; pkg/ceremony's toValidatePolicy converts one to the other.
// No ceremony step checks a password against it.
type PasswordPolicy struct {
	MinLength        int
	RequireUppercase bool
	RequireLowercase bool
	RequireDigit     bool
	RequireSpecial   bool
}

// PasswordPolicy returns the configured password complexity rules.
func (c *CeremonyConfig) PasswordPolicy() PasswordPolicy {
	return PasswordPolicy{
		MinLength:        c.Security.MinPasswordLength,
		RequireUppercase: c.Security.RequireUppercase,
		RequireLowercase: c.Security.RequireLowercase,
		RequireDigit:     c.Security.RequireDigit,
		RequireSpecial:   c.Security.RequireSpecialChar,
	}
}
