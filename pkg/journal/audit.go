package journal

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// AuditEntry is one record in the structured audit_detail_*.json array,
// assigned a stable ID the way MemoryAuditAdapter.LogEvent stamps its
// in-memory events.
type AuditEntry struct {
	ID          string    `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	SessionID   string    `json:"session_id"`
	EventType   string    `json:"event_type"`
	Principal   string    `json:"principal"`
	Description string    `json:"description"`
}

// AuditDetail is the full sequence of audit entries for one session,
// written once at finalize.
func (j *Journal) AuditDetail() []AuditEntry {
	principal := fmt.Sprintf("%s@%s", j.data.Host.User, j.data.Host.Machine)
	entries := make([]AuditEntry, 0, len(j.data.Events))
	for _, evt := range j.data.Events {
		entries = append(entries, AuditEntry{
			ID:          uuid.New().String(),
			Timestamp:   evt.Timestamp,
			SessionID:   j.data.SessionID,
			EventType:   evt.EventType,
			Principal:   principal,
			Description: evt.Description,
		})
	}
	return entries
}

// WriteAuditDetail serializes AuditDetail() to path as indented JSON.
func (j *Journal) WriteAuditDetail(path string) error {
	data, err := json.MarshalIndent(j.AuditDetail(), "", "  ")
	if err != nil {
		return fmt.Errorf("journal: failed to serialize audit detail: %w", err)
	}
	// #nosec G306 - audit artifacts are owner-readable ceremony output, not secrets
	return os.WriteFile(path, data, 0o600)
}

// WriteSessionOutput serializes out to path as indented JSON, the
// canonical session_complete_*.json artifact.
func WriteSessionOutput(path string, out *SessionOutput) error {
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("journal: failed to serialize session output: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}

// WriteReadme emits a short plain-text summary of the session folder's
// contents, named README.txt, alongside the other artifacts.
func WriteReadme(dir, sessionID string, sharesFile, sessionFile, auditLogFile, auditDetailFile string) error {
	contents := fmt.Sprintf(`Session %s

This folder contains the artifacts of one key-splitting ceremony.

  %s  - the Shamir shares, encrypted per keeper, emitted on ceremony success
  %s  - sealed session journal (hash + admin HMAC); verifies this session's provenance
  %s  - incremental line-delimited audit log
  %s  - structured audit log (one entry per journal event)

To verify this session was witnessed by the recorded administrator,
recompute the SHA-256 and HMAC-SHA256 of the canonical JSON form of
session_data in the session file and compare against session_data_hash
and admin_session_hmac.
`, sessionID, filepath.Base(sharesFile), filepath.Base(sessionFile), filepath.Base(auditLogFile), filepath.Base(auditDetailFile))

	return os.WriteFile(filepath.Join(dir, "README.txt"), []byte(contents), 0o600)
}
