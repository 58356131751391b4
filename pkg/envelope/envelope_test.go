package envelope

import (
	"testing"

	"github.com/mpinkus/Sss/pkg/shamir"
)

func testShare() shamir.Share {
	return shamir.Share{X: 1, Y: []byte("test share")}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	share := testShare()
	password := []byte("testpassword123")

	env, err := Encrypt(share, password, MinIterations, nil)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	got, err := Decrypt(env, password, env.Iterations)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if got.X != share.X || string(got.Y) != string(share.Y) {
		t.Fatalf("Decrypt = %+v, want %+v", got, share)
	}
}

func TestDecryptWrongPasswordFails(t *testing.T) {
	env, err := Encrypt(testShare(), []byte("right"), MinIterations, nil)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if _, err := Decrypt(env, []byte("wrong"), env.Iterations); err != ErrIntegrityFailure {
		t.Fatalf("Decrypt with wrong password error = %v, want ErrIntegrityFailure", err)
	}
}

func TestDecryptRejectsBadIVLength(t *testing.T) {
	env, err := Encrypt(testShare(), []byte("pw"), MinIterations, nil)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	env.IV = "invalid-iv"
	if _, err := Decrypt(env, []byte("pw"), env.Iterations); !isBadFormat(err) {
		t.Fatalf("Decrypt with bad iv error = %v, want ErrBadFormat", err)
	}
}

func TestDecryptTamperedEncryptedShareFails(t *testing.T) {
	env, err := Encrypt(testShare(), []byte("pw"), MinIterations, nil)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	env.EncryptedShare = flipFirstChar(env.EncryptedShare)
	if _, err := Decrypt(env, []byte("pw"), env.Iterations); err != ErrIntegrityFailure {
		t.Fatalf("Decrypt with tampered encrypted_share error = %v, want ErrIntegrityFailure", err)
	}
}

func TestDecryptTamperedHMACFails(t *testing.T) {
	env, err := Encrypt(testShare(), []byte("pw"), MinIterations, nil)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	env.HMAC = flipFirstChar(env.HMAC)
	if _, err := Decrypt(env, []byte("pw"), env.Iterations); err != ErrIntegrityFailure {
		t.Fatalf("Decrypt with tampered hmac error = %v, want ErrIntegrityFailure", err)
	}
}

func TestDecryptTamperedSaltFails(t *testing.T) {
	env, err := Encrypt(testShare(), []byte("pw"), MinIterations, nil)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	env.Salt = flipFirstChar(env.Salt)
	if _, err := Decrypt(env, []byte("pw"), env.Iterations); err != ErrIntegrityFailure {
		t.Fatalf("Decrypt with tampered salt error = %v, want ErrIntegrityFailure", err)
	}
}

func TestDecryptTamperedIVFails(t *testing.T) {
	env, err := Encrypt(testShare(), []byte("pw"), MinIterations, nil)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	env.IV = flipFirstChar(env.IV)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if _, err := Decrypt(env, []byte("pw"), env.Iterations); err != ErrIntegrityFailure {
		t.Fatalf("Decrypt with tampered iv error = %v, want ErrIntegrityFailure", err)
	}
}

func TestEncryptRejectsLowIterations(t *testing.T) {
	if _, err := Encrypt(testShare(), []byte("pw"), 10, nil); err == nil {
		t.Fatal("expected error for iterations below minimum")
	}
}

func TestEncryptProducesDistinctOutputsForSameInput(t *testing.T) {
	a, err := Encrypt(testShare(), []byte("pw"), MinIterations, nil)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	b, err := Encrypt(testShare(), []byte("pw"), MinIterations, nil)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if a.Salt == b.Salt || a.IV == b.IV || a.EncryptedShare == b.EncryptedShare {
		t.Fatal("two encryptions of the same share produced identical salt/iv/ciphertext")
	}
}

func TestDecryptUsesFileSuppliedIterationCount(t *testing.T) {
	// Reconstruction must use the iteration count recorded with the
	// envelope, not whatever the current configuration default is.
	env, err := Encrypt(testShare(), []byte("pw"), MinIterations*2, nil)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if _, err := Decrypt(env, []byte("pw"), MinIterations); err != ErrIntegrityFailure {
		t.Fatalf("Decrypt with wrong iteration count error = %v, want ErrIntegrityFailure", err)
	}
	if _, err := Decrypt(env, []byte("pw"), env.Iterations); err != nil {
		t.Fatalf("Decrypt with correct iteration count: %v", err)
	}
}

func TestNonceTrackerRejectsRecordedNonce(t *testing.T) {
	tracker := NewNonceTracker()
	nonce := []byte("123456789012")

	if err := tracker.checkAndRecord(nonce); err != nil {
		t.Fatalf("first checkAndRecord: %v", err)
	}
	if err := tracker.checkAndRecord(nonce); err != ErrNonceReuse {
		t.Fatalf("second checkAndRecord error = %v, want ErrNonceReuse", err)
	}
	if tracker.Count() != 1 {
		t.Fatalf("Count() = %d, want 1", tracker.Count())
	}
}

func TestNonceTrackerAcrossEncryptCalls(t *testing.T) {
	tracker := NewNonceTracker()
	for i := 0; i < 25; i++ {
		if _, err := Encrypt(testShare(), []byte("pw"), MinIterations, tracker); err != nil {
			t.Fatalf("Encrypt #%d: %v", i, err)
		}
	}
	if tracker.Count() != 25 {
		t.Fatalf("Count() = %d, want 25", tracker.Count())
	}
}

func TestNilNonceTrackerIsANoOp(t *testing.T) {
	if _, err := Encrypt(testShare(), []byte("pw"), MinIterations, nil); err != nil {
		t.Fatalf("Encrypt with nil tracker: %v", err)
	}
}

func isBadFormat(err error) bool {
	return err != nil && (err == ErrBadFormat || len(err.Error()) > 0 && hasPrefix(err.Error(), "envelope: malformed envelope"))
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

func flipFirstChar(s string) string {
	if len(s) == 0 {
		return s
	}
	if s[0] == 'A' {
		return "B" + s[1:]
	}
	return "A" + s[1:]
}
