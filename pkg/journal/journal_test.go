package journal

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/pbkdf2"
)

const testIterations = 10000

func TestAppendEventAccumulatesAndWritesAuditLine(t *testing.T) {
	dir := t.TempDir()
	auditPath := filepath.Join(dir, "audit.log")

	j, err := New("session-1", "Acme Corp", "host1", "alice", auditPath)
	require.NoError(t, err)
	defer j.Close()

	require.NoError(t, j.AppendEvent("SESSION_START", "ceremony started"))
	require.Len(t, j.data.Events, 1)

	j.Close()
	contents, err := os.ReadFile(auditPath)
	require.NoError(t, err)
	assert.NotEmpty(t, contents)
}

func TestFinalizeSealsAndComputesVerifiableHMAC(t *testing.T) {
	j, err := New("session-2", "Acme Corp", "host1", "alice", "")
	require.NoError(t, err)
	require.NoError(t, j.AppendEvent("SHARE_CREATED", "share 1 of 5 created"))
	j.RecordShareCreated(1)

	adminPassword := []byte("admin-witness-password")
	adminKey, err := DeriveAdminSessionKey(adminPassword, testIterations)
	require.NoError(t, err)

	out, err := j.Finalize(adminKey)
	require.NoError(t, err)

	canonical, err := json.Marshal(out.SessionData)
	require.NoError(t, err)

	wantHash := sha256.Sum256(canonical)
	assert.Equal(t, base64.StdEncoding.EncodeToString(wantHash[:]), out.SessionDataHash)

	rederivedKey := pbkdf2.Key(adminPassword, []byte(AdminSessionSalt), testIterations, adminKeyLength, sha256.New)
	h := hmac.New(sha256.New, rederivedKey)
	h.Write(canonical)
	wantMAC := h.Sum(nil)
	assert.Equal(t, base64.StdEncoding.EncodeToString(wantMAC), out.AdminSessionHMAC)
}

func TestFinalizeRejectsDoubleSeal(t *testing.T) {
	j, _ := New("session-3", "Acme Corp", "host1", "alice", "")
	key1, _ := DeriveAdminSessionKey([]byte("pw"), testIterations)
	_, err := j.Finalize(key1)
	require.NoError(t, err)

	key2, _ := DeriveAdminSessionKey([]byte("pw"), testIterations)
	_, err = j.Finalize(key2)
	assert.Error(t, err)
}

func TestAppendEventAfterSealFails(t *testing.T) {
	j, _ := New("session-4", "Acme Corp", "host1", "alice", "")
	key, _ := DeriveAdminSessionKey([]byte("pw"), testIterations)
	_, err := j.Finalize(key)
	require.NoError(t, err)
	assert.Error(t, j.AppendEvent("LATE", "should not be appended"))
}

func TestTamperedSessionDataFailsHMACVerification(t *testing.T) {
	j, _ := New("session-5", "Acme Corp", "host1", "alice", "")
	require.NoError(t, j.AppendEvent("SHARE_CREATED", "share created"))

	adminPassword := []byte("admin-witness-password")
	adminKey, _ := DeriveAdminSessionKey(adminPassword, testIterations)
	out, err := j.Finalize(adminKey)
	require.NoError(t, err)

	out.SessionData.Events[0].Description = "tampered"
	tampered, _ := json.Marshal(out.SessionData)

	rederivedKey := pbkdf2.Key(adminPassword, []byte(AdminSessionSalt), testIterations, adminKeyLength, sha256.New)
	h := hmac.New(sha256.New, rederivedKey)
	h.Write(tampered)
	gotMAC := base64.StdEncoding.EncodeToString(h.Sum(nil))

	assert.NotEqual(t, out.AdminSessionHMAC, gotMAC)
}

func TestRecoveryCountersFeedSummary(t *testing.T) {
	j, _ := New("session-6", "Acme Corp", "host1", "alice", "")
	require.NoError(t, j.AppendEvent("RECOVERY_DECRYPT_FAILED", "bad password"))
	require.NoError(t, j.AppendEvent("RECOVERY_DECRYPT_FAILED", "bad password"))
	require.NoError(t, j.AppendEvent("RECOVERY_DECRYPT_SUCCEEDED", "keeper 2 decrypted"))

	key, _ := DeriveAdminSessionKey([]byte("pw"), testIterations)
	out, err := j.Finalize(key)
	require.NoError(t, err)

	assert.Equal(t, 3, out.SessionData.Summary.TotalRecoveryAttempts)
	assert.Equal(t, 2, out.SessionData.Summary.FailedRecoveries)
	assert.Equal(t, 1, out.SessionData.Summary.SuccessfulRecoveries)
}

func TestTotalShareSetsCountsDistinctCreations(t *testing.T) {
	j, _ := New("session-8", "Acme Corp", "host1", "alice", "")

	require.NoError(t, j.AppendEvent("SPLIT", "secret split into 5 shares at threshold 3"))
	j.RecordShareCreated(1)
	j.RecordShareCreated(2)
	require.NoError(t, j.AppendEvent("EMIT", "shares file written: shares_1.json"))

	require.NoError(t, j.AppendEvent("SPLIT", "secret split into 5 shares at threshold 3"))
	j.RecordShareCreated(3)
	j.RecordShareCreated(4)
	require.NoError(t, j.AppendEvent("EMIT", "shares file written: shares_2.json"))

	key, _ := DeriveAdminSessionKey([]byte("pw"), testIterations)
	out, err := j.Finalize(key)
	require.NoError(t, err)

	assert.Equal(t, 2, out.SessionData.Summary.TotalShareSets, "two completed creations should report TotalShareSets=2")
	assert.Equal(t, 4, out.SessionData.Summary.TotalSharesCreated)
}

func TestWriteAuditDetailProducesOneEntryPerEvent(t *testing.T) {
	j, _ := New("session-7", "Acme Corp", "host1", "alice", "")
	require.NoError(t, j.AppendEvent("SHARE_CREATED", "share 1"))
	require.NoError(t, j.AppendEvent("SHARE_CREATED", "share 2"))

	dir := t.TempDir()
	path := filepath.Join(dir, "audit_detail.json")
	require.NoError(t, j.WriteAuditDetail(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var entries []AuditEntry
	require.NoError(t, json.Unmarshal(data, &entries))
	require.Len(t, entries, len(j.data.Events))
	for _, e := range entries {
		assert.NotEmpty(t, e.ID)
	}
}
