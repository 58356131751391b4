// Package ceremony implements the interactive key-splitting and
// reconstruction state machines: it drives a Shell through the
// ADMIN_BIND/ORG_INFO/PARAMS/... sequence, calls the Shamir codec and
// share envelope at the right points, and records every transition to a
// session journal that is sealed at finalize.
package ceremony

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/mpinkus/Sss/pkg/ceremonyconfig"
	"github.com/mpinkus/Sss/pkg/ceremonyrand"
	"github.com/mpinkus/Sss/pkg/envelope"
	"github.com/mpinkus/Sss/pkg/journal"
	"github.com/mpinkus/Sss/pkg/logging"
	"github.com/mpinkus/Sss/pkg/metrics"
	"github.com/mpinkus/Sss/pkg/sealedsecret"
	"github.com/mpinkus/Sss/pkg/shamir"
	"github.com/mpinkus/Sss/pkg/validate"
)

const adminSessionPromptText = "Administrator session password"

// Engine drives one ceremony session: it owns a SessionJournal and the
// admin session key derived at ADMIN_BIND, and exposes the three public
// operations the spec names. Per the concurrency model, one Engine
// instance is single-threaded cooperative — concurrent ceremonies use
// independent instances.
type Engine struct {
	cfg        *ceremonyconfig.CeremonyConfig
	rng        ceremonyrand.Resolver
	logger     *logging.Logger
	sessionID  string
	sessionDir string
	journal    *journal.Journal
	adminKey   *sealedsecret.Bytes
	started    time.Time
	nonces     *envelope.NonceTracker
}

// NewEngine starts a new ceremony session: it allocates a session ID,
// creates the exclusive session folder under cfg.FileSystem.OutputFolder,
// and opens the incremental audit log.
func NewEngine(cfg *ceremonyconfig.CeremonyConfig, rng ceremonyrand.Resolver, logger *logging.Logger) (*Engine, error) {
	if logger == nil {
		logger = logging.DefaultLogger()
	}
	sessionID := uuid.New().String()
	sessionDir := filepath.Join(cfg.FileSystem.OutputFolder, "session_"+sessionID)
	if err := os.MkdirAll(sessionDir, 0o700); err != nil {
		return nil, newErr(KindIOError, "failed to create session folder", err)
	}

	ts := timestamp(time.Now())
	auditLogPath := filepath.Join(sessionDir, fmt.Sprintf("audit_%s.log", ts))

	machine, _ := os.Hostname()
	username := currentUsername()

	j, err := journal.New(sessionID, cfg.Organization.Name, machine, username, auditLogPath)
	if err != nil {
		logger.MaybeError(err, "event", "journal_open_failed")
		j, _ = journal.New(sessionID, cfg.Organization.Name, machine, username, "")
	}

	sealedsecret.SetWipePasses(cfg.Security.SecureDeletePasses)

	return &Engine{
		cfg:        cfg,
		rng:        rng,
		logger:     logger,
		sessionID:  sessionID,
		sessionDir: sessionDir,
		journal:    j,
		started:    time.Now(),
		nonces:     envelope.NewNonceTracker(),
	}, nil
}

func currentUsername() string {
	if u, err := user.Current(); err == nil {
		return u.Username
	}
	return "unknown"
}

func timestamp(t time.Time) string {
	return t.Format("20060102_150405")
}

// SessionID returns the session's unique identifier.
func (e *Engine) SessionID() string { return e.sessionID }

// bindAdmin runs the ADMIN_BIND step common to both operations: request
// the administrator's password, derive the session key, zeroize the
// password immediately, and retain the key on the engine for finalize.
func (e *Engine) bindAdmin(shell Shell) error {
	shell.Progress("Requesting administrator session password", nil, "ADMIN_BIND")

	pwd, err := shell.RequestSecretText(adminSessionPromptText)
	if err != nil {
		return newErr(KindUserCancellation, "administrator password request failed", err)
	}
	defer pwd.Release()

	var key *sealedsecret.Bytes
	borrowErr := pwd.Borrow(func(b []byte) error {
		k, derr := journal.DeriveAdminSessionKey(b, e.cfg.Security.KDFIterations)
		if derr != nil {
			return derr
		}
		key = k
		return nil
	})
	if borrowErr != nil {
		return newErr(KindCryptoInternalError, "failed to derive admin session key", borrowErr)
	}

	e.adminKey = key
	_ = e.journal.AppendEvent("ADMIN_BIND", "administrator session bound")
	return nil
}

// resolveOrganization runs ORG_INFO: reuse the configured organization if
// one is set and the operator accepts, otherwise prompt for name+phone.
func (e *Engine) resolveOrganization(shell Shell) (Organization, error) {
	shell.Progress("Resolving organization identity", nil, "ORG_INFO")

	if e.cfg.Organization.Name != "" {
		reuse, err := shell.RequestYesNo(fmt.Sprintf("Use configured organization %q?", e.cfg.Organization.Name))
		if err != nil {
			return Organization{}, newErr(KindUserCancellation, "organization confirmation failed", err)
		}
		if reuse {
			return Organization{Name: e.cfg.Organization.Name, ContactPhone: e.cfg.Organization.ContactPhone}, nil
		}
	}

	name, err := requestValidated(shell, "Organization name", 100, validate.ValidateName)
	if err != nil {
		return Organization{}, err
	}
	phone, err := requestValidated(shell, "Organization contact phone", 20, validate.ValidatePhone)
	if err != nil {
		return Organization{}, err
	}
	return Organization{Name: name, ContactPhone: phone}, nil
}

// resolveParams runs PARAMS: threshold first, then total shares, per the
// spec's observable ordering contract.
func (e *Engine) resolveParams(shell Shell) (threshold, total int, err error) {
	shell.Progress("Collecting threshold and share count", nil, "PARAMS")

	threshold, err = shell.RequestInteger("Threshold (minimum shares required to reconstruct)", 2, 100)
	if err != nil {
		return 0, 0, newErr(KindUserCancellation, "threshold request failed", err)
	}
	total, err = shell.RequestInteger("Total shares to create", threshold, 100)
	if err != nil {
		return 0, 0, newErr(KindUserCancellation, "total shares request failed", err)
	}
	return threshold, total, nil
}

// acquireSecret runs SECRET_ACQUIRE: generate a random secret, or accept
// an operator-supplied one, substituting a fresh random secret if the
// supplied value is empty.
func (e *Engine) acquireSecret(shell Shell) ([]byte, error) {
	shell.Progress("Acquiring secret", nil, "SECRET_ACQUIRE")

	generate, err := shell.RequestYesNo("Generate a random secret?")
	if err != nil {
		return nil, newErr(KindUserCancellation, "secret-generation confirmation failed", err)
	}
	if generate {
		secret, err := e.rng.Rand(32)
		if err != nil {
			return nil, newErr(KindCryptoInternalError, "failed to generate random secret", err)
		}
		return secret, nil
	}

	sealed, err := shell.RequestSecretText("Secret to split")
	if err != nil && !errors.Is(err, ErrEmptySecretInput) {
		return nil, newErr(KindUserCancellation, "secret request failed", err)
	}
	if sealed != nil {
		defer sealed.Release()
	}

	var secret []byte
	if sealed == nil || sealed.Len() == 0 {
		shell.ValidationResult(false, "supplied secret is empty; substituting a random secret", "secret")
		secret, err = e.rng.Rand(32)
		if err != nil {
			return nil, newErr(KindCryptoInternalError, "failed to generate random secret", err)
		}
		return secret, nil
	}

	secret, err = sealed.Copy()
	if err != nil {
		return nil, newErr(KindCryptoInternalError, "failed to copy supplied secret", err)
	}
	shell.ValidationResult(true, "", "secret")
	return secret, nil
}

// CreateShares drives the full create-shares state machine:
// ADMIN_BIND -> ORG_INFO -> PARAMS -> SECRET_ACQUIRE -> SPLIT ->
// COLLECT_KEEPERS -> [CONFIRM? -> SELFTEST] -> EMIT -> DONE/ABANDON.
func (e *Engine) CreateShares(shell Shell) (*CeremonyResult, error) {
	metrics.RecordCeremonyStart(metrics.OpCreate)
	start := time.Now()

	result, err := e.createShares(shell)

	outcome := metrics.ResultSuccess
	if err != nil || !result.Success {
		outcome = metrics.ResultFailure
	}
	metrics.RecordCeremonyCompletion(metrics.OpCreate, outcome, time.Since(start).Seconds())

	if err != nil {
		_ = e.journal.AppendEvent("CREATE_SHARES_FAILED", err.Error())
		shell.Progress(err.Error(), nil, "operation_completed")
		return &CeremonyResult{Success: false, Message: err.Error()}, err
	}
	return result, nil
}

func (e *Engine) createShares(shell Shell) (*CeremonyResult, error) {
	if err := e.bindAdmin(shell); err != nil {
		return nil, err
	}

	org, err := e.resolveOrganization(shell)
	if err != nil {
		return nil, err
	}

	threshold, total, err := e.resolveParams(shell)
	if err != nil {
		return nil, err
	}

	secret, err := e.acquireSecret(shell)
	if err != nil {
		return nil, err
	}
	sealedSecret, err := sealedsecret.New(secret)
	if err != nil {
		return nil, newErr(KindCryptoInternalError, "failed to seal acquired secret", err)
	}
	defer sealedSecret.Release()
	zero(secret)

	plaintext, err := sealedSecret.Copy()
	if err != nil {
		return nil, newErr(KindCryptoInternalError, "failed to read sealed secret", err)
	}
	defer zero(plaintext)

	masterHashBytes := sha256.Sum256(plaintext)
	masterHash := base64.StdEncoding.EncodeToString(masterHashBytes[:])

	shell.Progress("Splitting secret", nil, "SPLIT")
	shares, err := shamir.Split(plaintext, threshold, total)
	if err != nil {
		return nil, classifyShamirErr(err)
	}
	_ = e.journal.AppendEvent("SPLIT", fmt.Sprintf("secret split into %d shares at threshold %d", total, threshold))

	keepers, err := e.collectKeepers(shell, shares)
	if err != nil {
		return nil, err
	}

	if e.cfg.Security.ConfirmationRequired {
		shell.Progress("Running mandatory reconstruction self-test", nil, "SELFTEST")
		if err := e.selfTest(shell, keepers, threshold, plaintext); err != nil {
			_ = e.journal.AppendEvent("SELFTEST_FAILED", err.Error())
			zero(plaintext)
			return &CeremonyResult{Success: false, Message: "self-test failed: " + err.Error()}, nil
		}
		_ = e.journal.AppendEvent("SELFTEST_PASSED", "reconstruction self-test succeeded")
	}

	output := &ShamirSecretOutput{
		Version:   outputVersion,
		SessionID: e.sessionID,
		CreatedAt: time.Now(),
		Organization: org,
		Configuration: Configuration{
			TotalShares:         total,
			ThresholdRequired:   threshold,
			Algorithm:           algorithmShamir,
			EncryptionAlgorithm: algorithmEncryption,
			KDFAlgorithm:        algorithmKDF,
			KDFIterations:       e.cfg.Security.KDFIterations,
		},
		MasterSecretHash: masterHash,
		Keepers:          keepers,
	}

	outPath := filepath.Join(e.sessionDir, fmt.Sprintf("secret_shares_%s.json", timestamp(time.Now())))
	data, err := json.MarshalIndent(output, "", "  ")
	if err != nil {
		return nil, newErr(KindIOError, "failed to serialize shares output", err)
	}
	if err := os.WriteFile(outPath, data, 0o600); err != nil {
		return nil, newErr(KindIOError, "failed to write shares file", err)
	}

	for _, k := range keepers {
		e.journal.RecordShareCreated(k.ShareNumber)
	}
	_ = e.journal.AppendEvent("EMIT", "shares file written: "+outPath)
	metrics.RecordSharesCreated(len(keepers))

	zero(plaintext)
	shell.Progress("Ceremony complete", nil, "operation_completed")

	return &CeremonyResult{
		Success:    true,
		Message:    "shares created successfully",
		OutputFile: outPath,
		SharesData: output,
	}, nil
}

// collectKeepers runs COLLECT_KEEPERS: offer preferred-order-sorted
// default keepers first, then prompt for any remaining keepers.
func (e *Engine) collectKeepers(shell Shell, shares []shamir.Share) ([]SecretKeeperRecord, error) {
	shell.Progress("Collecting keepers", nil, "COLLECT_KEEPERS")

	defaults := make([]ceremonyconfig.Keeper, len(e.cfg.DefaultKeepers))
	copy(defaults, e.cfg.DefaultKeepers)
	sort.Slice(defaults, func(i, j int) bool { return defaults[i].PreferredOrder < defaults[j].PreferredOrder })

	keepers := make([]SecretKeeperRecord, 0, len(shares))
	defaultIdx := 0

	for _, share := range shares {
		var name, phone, email string
		assigned := false

		for defaultIdx < len(defaults) {
			candidate := defaults[defaultIdx]
			defaultIdx++
			use, err := shell.RequestYesNo(fmt.Sprintf("Use %s as keeper for share %d?", candidate.Name, share.X))
			if err != nil {
				return nil, newErr(KindUserCancellation, "keeper selection failed", err)
			}
			if use {
				name, phone, email = candidate.Name, candidate.Phone, candidate.Email
				assigned = true
			}
			break
		}

		if !assigned {
			var err error
			name, err = requestValidated(shell, fmt.Sprintf("Name for keeper of share %d", share.X), 100, validate.ValidateName)
			if err != nil {
				return nil, err
			}
			phone, err = requestValidated(shell, "Phone", 20, validate.ValidatePhone)
			if err != nil {
				return nil, err
			}
			email, err = requestValidated(shell, "Email", 254, validate.ValidateEmail)
			if err != nil {
				return nil, err
			}
		}

		pwd, err := shell.RequestSecretText(fmt.Sprintf("Password for keeper %s", name))
		if err != nil {
			return nil, newErr(KindUserCancellation, "keeper password request failed", err)
		}
		env, err := encryptShareWithSealed(share, pwd, e.cfg.Security.KDFIterations, e.nonces)
		pwd.Release()
		if err != nil {
			return nil, newErr(KindCryptoInternalError, "failed to encrypt keeper share", err)
		}

		keepers = append(keepers, SecretKeeperRecord{
			ID:             uuid.New().String(),
			ShareNumber:    int(share.X),
			Name:           name,
			Phone:          phone,
			Email:          email,
			EncryptedShare: env.EncryptedShare,
			HMAC:           env.HMAC,
			Salt:           env.Salt,
			IV:             env.IV,
			CreatedAt:      time.Now(),
			SessionID:      e.sessionID,
		})
	}

	return keepers, nil
}

// selfTest runs the mandatory reconstruction check: for each of the
// first threshold keepers, request a password up to 3 times, decrypt,
// and finally combine and compare against the original secret.
func (e *Engine) selfTest(shell Shell, keepers []SecretKeeperRecord, threshold int, original []byte) error {
	collected := make([]shamir.Share, 0, threshold)

	for i := 0; i < threshold; i++ {
		keeper := keepers[i]
		var share shamir.Share
		ok := false

		for attempt := 0; attempt < 3; attempt++ {
			pwd, err := shell.RequestSecretText(fmt.Sprintf("Confirm password for keeper %s (self-test)", keeper.Name))
			if err != nil {
				return newErr(KindUserCancellation, "self-test password request failed", err)
			}
			env := &envelope.Envelope{
				EncryptedShare: keeper.EncryptedShare,
				HMAC:           keeper.HMAC,
				Salt:           keeper.Salt,
				IV:             keeper.IV,
			}
			s, derr := decryptWithSealed(env, pwd, e.cfg.Security.KDFIterations)
			pwd.Release()
			if derr == nil {
				share = s
				ok = true
				break
			}
		}
		if !ok {
			return newErr(KindValidationError, fmt.Sprintf("keeper %s failed self-test after 3 attempts", keeper.Name), nil)
		}
		collected = append(collected, share)
	}

	reconstructed, err := shamir.Combine(collected, threshold)
	if err != nil {
		return classifyShamirErr(err)
	}
	defer zero(reconstructed)

	if !bytesEqual(reconstructed, original) {
		return newErr(KindIntegrityFailure, "reconstructed secret does not match original", nil)
	}
	return nil
}

// ReconstructSecret drives the reconstruct-secret state machine:
// ADMIN_BIND -> LOAD_FILE -> GATHER_SHARES -> COMBINE -> VERIFY ->
// DONE/FAIL. path may be empty, in which case the shell is asked for one.
func (e *Engine) ReconstructSecret(shell Shell, path string) (*CeremonyResult, error) {
	metrics.RecordCeremonyStart(metrics.OpReconstruct)
	start := time.Now()

	result, err := e.reconstructSecret(shell, path)

	outcome := metrics.ResultSuccess
	if err != nil || !result.Success {
		outcome = metrics.ResultFailure
	}
	metrics.RecordCeremonyCompletion(metrics.OpReconstruct, outcome, time.Since(start).Seconds())

	if err != nil {
		_ = e.journal.AppendEvent("RECONSTRUCT_FAILED", err.Error())
		return &CeremonyResult{Success: false, Message: err.Error()}, err
	}
	return result, nil
}

func (e *Engine) reconstructSecret(shell Shell, path string) (*CeremonyResult, error) {
	if err := e.bindAdmin(shell); err != nil {
		return nil, err
	}

	output, err := e.loadSharesFile(shell, path)
	if err != nil {
		return nil, err
	}

	shares, err := e.gatherShares(shell, output)
	if err != nil {
		return nil, err
	}

	shell.Progress("Combining shares", nil, "COMBINE")
	reconstructed, err := shamir.Combine(shares, output.Configuration.ThresholdRequired)
	if err != nil {
		return nil, classifyShamirErr(err)
	}

	shell.Progress("Verifying reconstructed secret", nil, "VERIFY")
	gotHashBytes := sha256.Sum256(reconstructed)
	gotHash := base64.StdEncoding.EncodeToString(gotHashBytes[:])
	if gotHash != output.MasterSecretHash {
		zero(reconstructed)
		_ = e.journal.AppendEvent("VERIFY_FAILED", "reconstructed secret hash mismatch")
		return &CeremonyResult{Success: false, Message: "reconstructed secret hash does not match recorded master_secret_hash"}, nil
	}

	_ = e.journal.AppendEvent("VERIFY_SUCCEEDED", "reconstructed secret verified")
	shell.Progress("Reconstruction complete", nil, "operation_completed")

	return &CeremonyResult{
		Success:             true,
		Message:             "secret reconstructed successfully",
		ReconstructedSecret: reconstructed,
	}, nil
}

// loadSharesFile runs LOAD_FILE.
func (e *Engine) loadSharesFile(shell Shell, path string) (*ShamirSecretOutput, error) {
	shell.Progress("Loading shares file", nil, "LOAD_FILE")

	if path == "" {
		p, err := shell.RequestFilePath("Path to shares file", ".json")
		if err != nil {
			return nil, newErr(KindUserCancellation, "shares file path request failed", err)
		}
		path = p
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, newErr(KindIOError, "failed to read shares file", err)
	}

	var output ShamirSecretOutput
	if err := json.Unmarshal(data, &output); err != nil {
		return nil, newErr(KindBadFormat, "failed to parse shares file", err)
	}
	_ = e.journal.AppendEvent("LOAD_FILE", "loaded shares file: "+path)
	return &output, nil
}

const maxCumulativeDecryptFailures = 10

// gatherShares runs GATHER_SHARES: loop until threshold distinct shares
// decrypt successfully or 10 cumulative failures occur.
func (e *Engine) gatherShares(shell Shell, output *ShamirSecretOutput) ([]shamir.Share, error) {
	shell.Progress("Gathering keeper shares", nil, "GATHER_SHARES")

	used := make(map[int]bool, len(output.Keepers))
	collected := make([]shamir.Share, 0, output.Configuration.ThresholdRequired)
	failures := 0

	for len(collected) < output.Configuration.ThresholdRequired {
		if failures >= maxCumulativeDecryptFailures {
			return nil, newErr(KindTooManyAttempts, "exceeded maximum cumulative decryption failures", nil)
		}

		choice, err := shell.RequestInteger(remainingKeepersPrompt(output.Keepers, used), 0, len(output.Keepers))
		if err != nil {
			return nil, newErr(KindUserCancellation, "keeper selection failed", err)
		}
		if choice == 0 {
			return nil, newErr(KindUserCancellation, "reconstruction cancelled by operator", nil)
		}
		if used[choice] {
			shell.ValidationResult(false, "keeper already used in this reconstruction", "keeper")
			continue
		}

		keeper := output.Keepers[choice-1]
		pwd, err := shell.RequestSecretText(fmt.Sprintf("Password for keeper %s", keeper.Name))
		if err != nil {
			return nil, newErr(KindUserCancellation, "keeper password request failed", err)
		}

		env := &envelope.Envelope{
			EncryptedShare: keeper.EncryptedShare,
			HMAC:           keeper.HMAC,
			Salt:           keeper.Salt,
			IV:             keeper.IV,
		}
		share, derr := decryptWithSealed(env, pwd, output.Configuration.KDFIterations)
		pwd.Release()

		if derr != nil {
			failures++
			_ = e.journal.AppendEvent("RECOVERY_DECRYPT_FAILED", fmt.Sprintf("keeper %s: %v", keeper.Name, derr))
			metrics.RecordRecoveryAttempt(metrics.ResultFailure)
			continue
		}

		used[choice] = true
		collected = append(collected, share)
		e.journal.RecordShareRecovered(keeper.ShareNumber)
		_ = e.journal.AppendEvent("RECOVERY_DECRYPT_SUCCEEDED", fmt.Sprintf("keeper %s", keeper.Name))
		metrics.RecordRecoveryAttempt(metrics.ResultSuccess)
	}

	return collected, nil
}

func remainingKeepersPrompt(keepers []SecretKeeperRecord, used map[int]bool) string {
	remaining := 0
	for i := range keepers {
		if !used[i+1] {
			remaining++
		}
	}
	return fmt.Sprintf("Select a keeper (1-%d, 0 to cancel); %d remaining unused", len(keepers), remaining)
}

// FinalizeSession seals the journal under the admin key bound during
// CreateShares or ReconstructSecret, and writes the session, audit
// detail, and README artifacts. Per spec, journal/audit write failures
// are logged but do not fail the ceremony.
func (e *Engine) FinalizeSession() (*journal.SessionOutput, error) {
	if e.adminKey == nil {
		return nil, newErr(KindValidationError, "finalize called before an operation bound an administrator session", nil)
	}

	out, err := e.journal.Finalize(e.adminKey)
	e.adminKey = nil
	if err != nil {
		return nil, newErr(KindCryptoInternalError, "failed to seal session journal", err)
	}

	ts := timestamp(time.Now())
	sessionPath := filepath.Join(e.sessionDir, fmt.Sprintf("session_complete_%s.json", ts))
	if err := journal.WriteSessionOutput(sessionPath, out); err != nil {
		e.logger.MaybeError(err, "event", "session_file_write_failed")
	}

	auditDetailPath := filepath.Join(e.sessionDir, fmt.Sprintf("audit_detail_%s.json", ts))
	if err := e.journal.WriteAuditDetail(auditDetailPath); err != nil {
		e.logger.MaybeError(err, "event", "audit_detail_write_failed")
	}

	if err := e.journal.Close(); err != nil {
		e.logger.MaybeError(err, "event", "audit_log_close_failed")
	}

	if err := journal.WriteReadme(e.sessionDir, e.sessionID, "secret_shares_*.json", sessionPath, "audit_*.log", auditDetailPath); err != nil {
		e.logger.MaybeError(err, "event", "readme_write_failed")
	}

	return out, nil
}
