// Package envelope implements the per-share authenticated encryption
// format: a keeper's password drives PBKDF2-HMAC-SHA256 key derivation
// feeding AES-256-GCM, with an outer HMAC-SHA256 "belt and braces" check
// over the ciphertext‖tag blob. Encrypt/Decrypt operate on a shamir.Share,
// which is the sole payload this envelope ever carries.
package envelope

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/crypto/pbkdf2"

	"github.com/mpinkus/Sss/pkg/shamir"
)

const (
	// MinIterations is the floor accepted for KDF iterations.
	MinIterations = 10000

	// SaltLength is the size of the random PBKDF2 salt drawn per envelope.
	SaltLength = 32

	// NonceLength is the GCM nonce size. Decrypt MUST reject any other
	// length with ErrBadFormat.
	NonceLength = 12

	// tagLength is the AES-GCM authentication tag size appended to blob.
	tagLength = 16

	// derivedKeyLength is the combined PBKDF2 output: 32 bytes for the
	// AES-256 key, 32 bytes for the outer HMAC key.
	derivedKeyLength = 64
	encKeyLength     = 32
	hmacKeyLength    = 32
)

// ErrBadFormat is returned for malformed base64, a wrong-length nonce, a
// structurally invalid plaintext, or any other shape violation that isn't
// an authentication failure.
var ErrBadFormat = errors.New("envelope: malformed envelope")

// ErrIntegrityFailure is returned when the HMAC check or the GCM
// authentication fails — a wrong password or tampered envelope.
var ErrIntegrityFailure = errors.New("envelope: integrity check failed")

// ErrNonceReuse is returned by a NonceTracker when Encrypt draws a nonce
// that has already been recorded against it within the same ceremony.
var ErrNonceReuse = errors.New("envelope: nonce reuse detected")

// NonceTracker records nonces drawn by Encrypt within a single ceremony
// process, so a GCM nonce is never reused under the same derived key
// before the process exits. Tracking is in-process and non-persistent:
// a ceremony runs once and exits, so there is no cross-run nonce history
// to carry.
type NonceTracker struct {
	mu     sync.Mutex
	nonces map[string]struct{}
}

// NewNonceTracker returns an empty tracker.
func NewNonceTracker() *NonceTracker {
	return &NonceTracker{nonces: make(map[string]struct{})}
}

// checkAndRecord records nonce, returning ErrNonceReuse if it was already
// recorded. A nil tracker always succeeds without recording, so Encrypt
// stays usable without nonce bookkeeping (e.g. from tests).
func (nt *NonceTracker) checkAndRecord(nonce []byte) error {
	if nt == nil {
		return nil
	}
	key := hex.EncodeToString(nonce)

	nt.mu.Lock()
	defer nt.mu.Unlock()

	if _, used := nt.nonces[key]; used {
		return ErrNonceReuse
	}
	nt.nonces[key] = struct{}{}
	return nil
}

// Count returns the number of nonces recorded so far. A nil tracker
// reports zero.
func (nt *NonceTracker) Count() int {
	if nt == nil {
		return 0
	}
	nt.mu.Lock()
	defer nt.mu.Unlock()
	return len(nt.nonces)
}

// Envelope is the encrypted wrapper around one Share, in the field shapes
// a SecretKeeperRecord embeds directly.
type Envelope struct {
	EncryptedShare string `json:"encrypted_share"`
	HMAC           string `json:"hmac"`
	Salt           string `json:"salt"`
	IV             string `json:"iv"`
	Iterations     int    `json:"-"`
}

// Encrypt seals share under a key derived from password at the given
// iteration count. password is read once and not retained; the caller
// still owns zeroizing its own copy. If tracker is non-nil, the drawn
// nonce is checked against every nonce already recorded on it and
// recorded in turn; ErrNonceReuse is returned on the (astronomically
// unlikely) event of a collision rather than silently reusing it.
func Encrypt(share shamir.Share, password []byte, iterations int, tracker *NonceTracker) (*Envelope, error) {
	if iterations < MinIterations {
		return nil, fmt.Errorf("envelope: iterations %d below minimum %d", iterations, MinIterations)
	}
	if len(password) == 0 {
		return nil, errors.New("envelope: password cannot be empty")
	}

	plaintext, err := json.Marshal(share)
	if err != nil {
		return nil, fmt.Errorf("envelope: failed to serialize share: %w", err)
	}
	defer zero(plaintext)

	salt := make([]byte, SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("envelope: failed to generate salt: %w", err)
	}
	nonce := make([]byte, NonceLength)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("envelope: failed to generate nonce: %w", err)
	}
	if err := tracker.checkAndRecord(nonce); err != nil {
		return nil, err
	}

	encKey, hmacKey, err := deriveKeys(password, salt, iterations)
	if err != nil {
		return nil, err
	}
	defer zero(encKey)
	defer zero(hmacKey)

	gcm, err := newGCM(encKey)
	if err != nil {
		return nil, err
	}

	// blob = ciphertext‖tag, the GCM Seal convention.
	blob := gcm.Seal(nil, nonce, plaintext, nil)

	mac := hmac.New(sha256.New, hmacKey)
	mac.Write(blob)
	tag := mac.Sum(nil)

	return &Envelope{
		EncryptedShare: base64.StdEncoding.EncodeToString(blob),
		HMAC:           base64.StdEncoding.EncodeToString(tag),
		Salt:           base64.StdEncoding.EncodeToString(salt),
		IV:             base64.StdEncoding.EncodeToString(nonce),
		Iterations:     iterations,
	}, nil
}

// Decrypt opens env under password, using the iteration count stored
// alongside the envelope (the caller must pass the file-recorded value,
// never the current configuration default — reconstruction must be able
// to read envelopes sealed under an older KDF setting). The HMAC is
// checked before any AES work, so a wrong password fails fast and never
// runs GCM on attacker-controlled ciphertext first.
func Decrypt(env *Envelope, password []byte, iterations int) (shamir.Share, error) {
	var zeroShare shamir.Share
	if env == nil {
		return zeroShare, fmt.Errorf("%w: nil envelope", ErrBadFormat)
	}

	nonce, err := base64.StdEncoding.DecodeString(env.IV)
	if err != nil {
		return zeroShare, fmt.Errorf("%w: bad iv encoding: %v", ErrBadFormat, err)
	}
	if len(nonce) != NonceLength {
		return zeroShare, fmt.Errorf("%w: iv length %d, want %d", ErrBadFormat, len(nonce), NonceLength)
	}
	salt, err := base64.StdEncoding.DecodeString(env.Salt)
	if err != nil {
		return zeroShare, fmt.Errorf("%w: bad salt encoding: %v", ErrBadFormat, err)
	}
	blob, err := base64.StdEncoding.DecodeString(env.EncryptedShare)
	if err != nil {
		return zeroShare, fmt.Errorf("%w: bad encrypted_share encoding: %v", ErrBadFormat, err)
	}
	if len(blob) < tagLength {
		return zeroShare, fmt.Errorf("%w: encrypted_share too short", ErrBadFormat)
	}
	wantMAC, err := base64.StdEncoding.DecodeString(env.HMAC)
	if err != nil {
		return zeroShare, fmt.Errorf("%w: bad hmac encoding: %v", ErrBadFormat, err)
	}

	encKey, hmacKey, err := deriveKeys(password, salt, iterations)
	if err != nil {
		return zeroShare, err
	}
	defer zero(encKey)
	defer zero(hmacKey)

	mac := hmac.New(sha256.New, hmacKey)
	mac.Write(blob)
	gotMAC := mac.Sum(nil)
	if subtle.ConstantTimeCompare(gotMAC, wantMAC) != 1 {
		return zeroShare, ErrIntegrityFailure
	}

	gcm, err := newGCM(encKey)
	if err != nil {
		return zeroShare, err
	}

	plaintext, err := gcm.Open(nil, nonce, blob, nil)
	if err != nil {
		return zeroShare, ErrIntegrityFailure
	}
	defer zero(plaintext)

	var share shamir.Share
	if err := json.Unmarshal(plaintext, &share); err != nil {
		return zeroShare, fmt.Errorf("%w: %v", ErrBadFormat, err)
	}
	return share, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("envelope: failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("envelope: failed to create GCM: %w", err)
	}
	return gcm, nil
}

// deriveKeys runs PBKDF2-HMAC-SHA256 once for a 64-byte output, splitting
// it into a 32-byte AES key and a 32-byte HMAC key.
func deriveKeys(password, salt []byte, iterations int) (encKey, hmacKey []byte, err error) {
	if iterations < MinIterations {
		return nil, nil, fmt.Errorf("%w: iterations %d below minimum %d", ErrBadFormat, iterations, MinIterations)
	}
	derived := pbkdf2.Key(password, salt, iterations, derivedKeyLength, sha256.New)
	encKey = derived[:encKeyLength]
	hmacKey = derived[encKeyLength : encKeyLength+hmacKeyLength]
	return encKey, hmacKey, nil
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
