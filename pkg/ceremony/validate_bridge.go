package ceremony

import (
	"fmt"

	"github.com/mpinkus/Sss/pkg/ceremonyconfig"
	"github.com/mpinkus/Sss/pkg/validate"
)

const textAttemptBudget = 3

func toValidatePolicy(p ceremonyconfig.PasswordPolicy) validate.PasswordPolicy {
	return validate.PasswordPolicy{
		MinLength:        p.MinLength,
		RequireUppercase: p.RequireUppercase,
		RequireLowercase: p.RequireLowercase,
		RequireDigit:     p.RequireDigit,
		RequireSpecial:   p.RequireSpecial,
	}
}

// requestValidated prompts for text up to textAttemptBudget times,
// accepting the first response validator approves. Exceeding the budget
// returns a ValidationError.
func requestValidated(shell Shell, prompt string, maxLength int, validator func(string) error) (string, error) {
	var lastErr error
	for attempt := 0; attempt < textAttemptBudget; attempt++ {
		value, err := shell.RequestText(prompt, maxLength)
		if err != nil {
			return "", newErr(KindUserCancellation, "text request failed or was cancelled", err)
		}
		if err := validator(value); err != nil {
			shell.ValidationResult(false, err.Error(), prompt)
			lastErr = err
			continue
		}
		shell.ValidationResult(true, "", prompt)
		return value, nil
	}
	return "", newErr(KindValidationError, fmt.Sprintf("exceeded %d attempts for %q", textAttemptBudget, prompt), lastErr)
}
