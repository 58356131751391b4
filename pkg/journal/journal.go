// Package journal builds and seals the SessionJournal that gives a
// ceremony run tamper-evident provenance: every state transition is
// appended as an event, and at finalize the journal is hashed and
// HMAC-signed under a key derived from the administrator's password.
package journal

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"golang.org/x/crypto/pbkdf2"

	"github.com/mpinkus/Sss/pkg/sealedsecret"
)

// AdminSessionSalt is the fixed ASCII constant used to derive the admin
// session key. It is not a secret — it exists so a third party can
// rederive the key from a known admin password and verify a sealed
// session's HMAC without access to any per-session state.
const AdminSessionSalt = "ShamirCeremonyAdminSession"

const adminKeyLength = 32

// DeriveAdminSessionKey derives the 32-byte key used solely to HMAC-sign
// the session journal. It provides provenance (the admin witnessed this
// session), never confidentiality.
func DeriveAdminSessionKey(password []byte, iterations int) (*sealedsecret.Bytes, error) {
	if len(password) == 0 {
		return nil, fmt.Errorf("journal: admin password cannot be empty")
	}
	key := pbkdf2.Key(password, []byte(AdminSessionSalt), iterations, adminKeyLength, sha256.New)
	defer zero(key)
	return sealedsecret.New(key)
}

// Event is one entry in a SessionJournal's ordered event log.
type Event struct {
	Timestamp   time.Time `json:"timestamp"`
	EventType   string    `json:"event_type"`
	Description string    `json:"description"`
}

// HostIdentity records who ran the ceremony and where.
type HostIdentity struct {
	Machine string `json:"machine"`
	User    string `json:"user"`
}

// Summary is the terminal roll-up computed at finalize.
type Summary struct {
	TotalSharesCreated  int `json:"total_shares_created"`
	TotalShareSets      int `json:"total_share_sets"`
	TotalRecoveryAttempts int `json:"total_recovery_attempts"`
	SuccessfulRecoveries int `json:"successful_recoveries"`
	FailedRecoveries     int `json:"failed_recoveries"`
	TotalEvents          int `json:"total_events"`
}

// SessionJournal is the append-only record of one ceremony run.
type SessionJournal struct {
	SessionID       string       `json:"session_id"`
	StartTime       time.Time    `json:"start_time"`
	EndTime         time.Time    `json:"end_time,omitempty"`
	DurationSeconds float64      `json:"duration_seconds,omitempty"`
	Host            HostIdentity `json:"host"`
	Organization    string       `json:"organization"`
	Events          []Event      `json:"events"`
	SharesCreated   []int        `json:"shares_created,omitempty"`
	SharesRecovered []int        `json:"shares_recovered,omitempty"`
	Summary         *Summary     `json:"summary,omitempty"`
}

// SessionOutput is the sealed wrapper written to session_complete_*.json.
type SessionOutput struct {
	SessionData       *SessionJournal `json:"session_data"`
	SessionDataHash   string          `json:"session_data_hash"`
	AdminSessionHMAC  string          `json:"admin_session_hmac"`
	HMACAlgorithm     string          `json:"hmac_algorithm"`
	SignatureTimestamp time.Time      `json:"signature_timestamp"`
	SignatureNote      string         `json:"signature_note"`
}

// Journal accumulates a SessionJournal in memory and writes its audit
// trail incrementally, so a crash mid-ceremony still leaves a partial
// audit log on disk.
type Journal struct {
	data       *SessionJournal
	sealed     bool
	auditPath  string
	auditFile  *os.File
	recoveryAttempts, recoverySuccess, recoveryFailed int
	shareSets int
}

// New starts a journal for sessionID, optionally opening an incremental
// line-delimited audit log at auditPath. Pass an empty auditPath to skip
// incremental audit writes (e.g. in tests).
func New(sessionID, organization, machine, user, auditPath string) (*Journal, error) {
	j := &Journal{
		data: &SessionJournal{
			SessionID:    sessionID,
			StartTime:    now(),
			Host:         HostIdentity{Machine: machine, User: user},
			Organization: organization,
			Events:       make([]Event, 0, 32),
		},
		auditPath: auditPath,
	}
	if auditPath != "" {
		f, err := os.OpenFile(auditPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			return nil, fmt.Errorf("journal: failed to open audit log: %w", err)
		}
		j.auditFile = f
	}
	return j, nil
}

// now is a seam so tests can avoid depending on wall-clock nondeterminism
// if ever needed; production always uses time.Now.
var now = time.Now

// AppendEvent records an event and, if an audit log is open, writes its
// line-delimited form immediately. An audit log write failure is returned
// as the error; the ceremony engine discards that error, so it never fails
// the ceremony and is not logged.
func (j *Journal) AppendEvent(eventType, description string) error {
	if j.sealed {
		return fmt.Errorf("journal: cannot append to a sealed journal")
	}
	evt := Event{Timestamp: now(), EventType: eventType, Description: description}
	j.data.Events = append(j.data.Events, evt)

	if eventType == "RECOVERY_DECRYPT_FAILED" {
		j.recoveryAttempts++
		j.recoveryFailed++
	} else if eventType == "RECOVERY_DECRYPT_SUCCEEDED" {
		j.recoveryAttempts++
		j.recoverySuccess++
	} else if eventType == "EMIT" {
		j.shareSets++
	}

	return j.writeAuditLine(evt, j.data.Host.User, j.data.Host.Machine)
}

func (j *Journal) writeAuditLine(evt Event, user, machine string) error {
	if j.auditFile == nil {
		return nil
	}
	line := fmt.Sprintf("%s | %s | %s | %s@%s | %s\n",
		evt.Timestamp.Format(time.RFC3339), j.data.SessionID, evt.EventType, user, machine, evt.Description)
	_, err := j.auditFile.WriteString(line)
	return err
}

// RecordShareCreated notes a share number as having been emitted.
func (j *Journal) RecordShareCreated(shareNumber int) {
	j.data.SharesCreated = append(j.data.SharesCreated, shareNumber)
}

// RecordShareRecovered notes a share number as having been successfully
// decrypted during reconstruction.
func (j *Journal) RecordShareRecovered(shareNumber int) {
	j.data.SharesRecovered = append(j.data.SharesRecovered, shareNumber)
}

// Finalize stamps end_time/duration, appends the terminal SESSION_END
// event, computes the summary, seals the journal (hash + admin HMAC),
// and returns the SessionOutput ready for serialization. adminKey is
// consumed and released (zeroized) before this function returns.
func (j *Journal) Finalize(adminKey *sealedsecret.Bytes) (*SessionOutput, error) {
	defer adminKey.Release()
	if j.sealed {
		return nil, fmt.Errorf("journal: already sealed")
	}

	j.data.EndTime = now()
	j.data.DurationSeconds = j.data.EndTime.Sub(j.data.StartTime).Seconds()

	_ = j.AppendEvent("SESSION_END", "session finalized")

	j.data.Summary = &Summary{
		TotalSharesCreated:    len(j.data.SharesCreated),
		TotalShareSets:        j.shareSets,
		TotalRecoveryAttempts: j.recoveryAttempts,
		SuccessfulRecoveries:  j.recoverySuccess,
		FailedRecoveries:      j.recoveryFailed,
		TotalEvents:           len(j.data.Events),
	}
	j.sealed = true

	canonical, err := json.Marshal(j.data)
	if err != nil {
		return nil, fmt.Errorf("journal: failed to serialize session data: %w", err)
	}

	dataHash := sha256.Sum256(canonical)

	var mac []byte
	if err := adminKey.Borrow(func(key []byte) error {
		h := hmac.New(sha256.New, key)
		h.Write(canonical)
		mac = h.Sum(nil)
		return nil
	}); err != nil {
		return nil, fmt.Errorf("journal: failed to compute admin HMAC: %w", err)
	}

	out := &SessionOutput{
		SessionData:        j.data,
		SessionDataHash:    base64.StdEncoding.EncodeToString(dataHash[:]),
		AdminSessionHMAC:   base64.StdEncoding.EncodeToString(mac),
		HMACAlgorithm:      "HMAC-SHA256",
		SignatureTimestamp: now(),
		SignatureNote:      "Recompute SHA-256 and HMAC-SHA256 of the canonical JSON of session_data, deriving the admin key via PBKDF2 from the known admin password and the fixed session salt, to verify this session was witnessed.",
	}
	return out, nil
}

// Close releases the incremental audit log file handle, if one is open.
func (j *Journal) Close() error {
	if j.auditFile == nil {
		return nil
	}
	return j.auditFile.Close()
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
