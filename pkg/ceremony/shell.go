package ceremony

import "github.com/mpinkus/Sss/pkg/sealedsecret"

// Shell is the engine's sole boundary with the outside world: it never
// reads a terminal or socket directly, only calls back into whatever
// drives it (a console, a web session). Per the single-threaded
// cooperative model, every Request* call logically suspends the
// operation until the shell resolves it — a blocking method call stands
// in for the event-driven completion handle described in the design.
//
// A returned error propagates as an operation failure of kind
// UserCancellation, with the shell's error as its Cause, whatever kind
// the shell's own error carries; no partial file is emitted. The one
// exception is ErrEmptySecretInput at the secret-to-split prompt, which
// makes the engine substitute a random secret.
type Shell interface {
	// Progress reports advisory state-machine movement. percent is nil
	// when no meaningful completion fraction applies to eventType.
	Progress(message string, percent *int, eventType string)

	// ValidationResult reports the outcome of a local validation check
	// against target (e.g. "email", "secret").
	ValidationResult(isValid bool, message, target string)

	// RequestText prompts for free text, at most maxLength runes. It does
	// not validate the answer: validation and its attempt budget belong to
	// the caller (requestValidated).
	RequestText(prompt string, maxLength int) (string, error)

	// RequestSecretText prompts for a password or other sensitive text,
	// returned as a sealed container the caller is responsible for
	// releasing.
	RequestSecretText(prompt string) (*sealedsecret.Bytes, error)

	// RequestInteger prompts for an integer in [min, max] inclusive.
	RequestInteger(prompt string, min, max int) (int, error)

	// RequestFilePath prompts for a path to an existing file with the
	// given extension (including the leading dot, e.g. ".json").
	RequestFilePath(prompt string, expectedExtension string) (string, error)

	// RequestYesNo prompts for a binary choice.
	RequestYesNo(prompt string) (bool, error)
}
