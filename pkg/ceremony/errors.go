package ceremony

import "fmt"

// Kind enumerates the ceremony's error taxonomy. Kinds classify failures
// for the orchestrator's retry/abort policy; they are not Go error types.
type Kind string

const (
	KindValidationError           Kind = "ValidationError"
	KindIntegrityFailure          Kind = "IntegrityFailure"
	KindBadFormat                 Kind = "BadFormat"
	KindInsufficientShares        Kind = "InsufficientShares"
	KindDuplicateShares           Kind = "DuplicateShares"
	KindInconsistentShareLengths  Kind = "InconsistentShareLengths"
	KindCryptoInternalError       Kind = "CryptoInternalError"
	KindIOError                   Kind = "IOError"
	KindUserCancellation          Kind = "UserCancellation"
	KindTooManyAttempts           Kind = "TooManyAttempts"
)

// Error is the ceremony's structured failure type: a taxonomy Kind, a
// human-readable message, and an optional wrapped cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// newErr constructs an *Error, the taxonomy's sole constructor.
func newErr(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// ErrEmptySecretInput is returned by a Shell implementation when the
// operator submits empty text for a secret prompt, since sealedsecret.New
// rejects zero-length input outright.
var ErrEmptySecretInput = newErr(KindValidationError, "secret input was empty", nil)
