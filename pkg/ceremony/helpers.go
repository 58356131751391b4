package ceremony

import (
	"errors"

	"github.com/mpinkus/Sss/pkg/envelope"
	"github.com/mpinkus/Sss/pkg/sealedsecret"
	"github.com/mpinkus/Sss/pkg/shamir"
)

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// encryptShareWithSealed borrows password's plaintext just long enough to
// call envelope.Encrypt. tracker records the nonce drawn for this share
// against every nonce already drawn in the session; see Engine.nonces.
func encryptShareWithSealed(share shamir.Share, password *sealedsecret.Bytes, iterations int, tracker *envelope.NonceTracker) (*envelope.Envelope, error) {
	var env *envelope.Envelope
	err := password.Borrow(func(b []byte) error {
		e, eerr := envelope.Encrypt(share, b, iterations, tracker)
		if eerr != nil {
			return eerr
		}
		env = e
		return nil
	})
	if err != nil {
		return nil, err
	}
	return env, nil
}

// decryptWithSealed borrows password's plaintext just long enough to call
// envelope.Decrypt, translating the envelope's error sentinels into the
// ceremony error taxonomy.
func decryptWithSealed(env *envelope.Envelope, password *sealedsecret.Bytes, iterations int) (shamir.Share, error) {
	var share shamir.Share
	err := password.Borrow(func(b []byte) error {
		s, derr := envelope.Decrypt(env, b, iterations)
		if derr != nil {
			return derr
		}
		share = s
		return nil
	})
	if err != nil {
		return shamir.Share{}, classifyEnvelopeErr(err)
	}
	return share, nil
}

func classifyEnvelopeErr(err error) *Error {
	switch {
	case errors.Is(err, envelope.ErrIntegrityFailure):
		return newErr(KindIntegrityFailure, "share decryption failed integrity check", err)
	case errors.Is(err, envelope.ErrBadFormat):
		return newErr(KindBadFormat, "share envelope malformed", err)
	default:
		return newErr(KindCryptoInternalError, "share decryption failed", err)
	}
}

func classifyShamirErr(err error) *Error {
	switch {
	case errors.Is(err, shamir.ErrInsufficientShares):
		return newErr(KindInsufficientShares, "not enough shares to reconstruct", err)
	case errors.Is(err, shamir.ErrDuplicateShares):
		return newErr(KindDuplicateShares, "duplicate share index", err)
	case errors.Is(err, shamir.ErrInconsistentShareLength):
		return newErr(KindInconsistentShareLengths, "shares have inconsistent lengths", err)
	default:
		return newErr(KindCryptoInternalError, "shamir operation failed", err)
	}
}
