package ceremony

import "time"

// Organization identifies the entity running a ceremony, carried
// PascalCase in the emitted shares file per the output schema.
type Organization struct {
	Name         string `json:"Name"`
	ContactPhone string `json:"ContactPhone"`
}

// Configuration records the cryptographic parameters a shares file was
// produced under, so reconstruction always uses the file-declared values.
type Configuration struct {
	TotalShares         int    `json:"TotalShares"`
	ThresholdRequired   int    `json:"ThresholdRequired"`
	Algorithm           string `json:"Algorithm"`
	EncryptionAlgorithm string `json:"EncryptionAlgorithm"`
	KDFAlgorithm        string `json:"KDFAlgorithm"`
	KDFIterations       int    `json:"KDFIterations"`
}

// SecretKeeperRecord is the encrypted envelope around one Share,
// attributed to a named keeper. Field names follow the data model's own
// snake_case convention rather than the output container's PascalCase.
type SecretKeeperRecord struct {
	ID             string    `json:"id"`
	ShareNumber    int       `json:"share_number"`
	Name           string    `json:"name"`
	Phone          string    `json:"phone,omitempty"`
	Email          string    `json:"email,omitempty"`
	EncryptedShare string    `json:"encrypted_share"`
	HMAC           string    `json:"hmac"`
	Salt           string    `json:"salt"`
	IV             string    `json:"iv"`
	CreatedAt      time.Time `json:"created_at"`
	SessionID      string    `json:"session_id"`
}

// ShamirSecretOutput is the emitted ceremony artifact written to
// secret_shares_<ts>.json.
type ShamirSecretOutput struct {
	Version          string               `json:"Version"`
	SessionID        string               `json:"SessionId"`
	CreatedAt        time.Time            `json:"CreatedAt"`
	Organization     Organization         `json:"Organization"`
	Configuration    Configuration        `json:"Configuration"`
	MasterSecretHash string               `json:"MasterSecretHash"`
	Keepers          []SecretKeeperRecord `json:"Keepers"`
}

// CeremonyResult is the uniform return shape for every public
// orchestrator operation, replacing exceptions as control flow.
type CeremonyResult struct {
	Success             bool
	Message             string
	OutputFile          string
	SharesData          *ShamirSecretOutput
	ReconstructedSecret []byte
}

const (
	outputVersion        = "1"
	algorithmShamir      = "Shamir-GF256"
	algorithmEncryption  = "AES-256-GCM"
	algorithmKDF         = "PBKDF2-SHA256"
)
