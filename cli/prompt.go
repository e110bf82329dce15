package cli

import (
	"errors"
	"fmt"
	"os"
	"unicode"

	"github.com/manifoldco/promptui"
)

var (
	errEmpty     = errors.New("you must enter something")
	errNotDigits = errors.New("digits only")
)

// PromptConfirm asks a yes/no question. Declining is not an error.
func PromptConfirm(label string) (bool, error) {
	prompt := promptui.Prompt{
		Label:     label,
		IsConfirm: true,
		Stdin:     os.Stdin,
		Stdout:    os.Stdout,
	}

	_, err := prompt.Run()
	if err != nil {
		if errors.Is(err, promptui.ErrAbort) {
			return false, nil
		}

		return false, err
	}

	return true, nil
}

// PromptString reads a non-empty line. validate may be nil.
func PromptString(label string, validate func(string) error) (string, error) {
	prompt := promptui.Prompt{
		Label: label,
		Validate: func(s string) error {
			if len(s) == 0 {
				return errEmpty
			}

			if validate != nil {
				return validate(s)
			}

			return nil
		},
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
	}

	return prompt.Run()
}

// PromptDigits reads a masked numeric code such as a PIN or an OTP.
func PromptDigits(label string, minLen, maxLen int) (string, error) {
	prompt := promptui.Prompt{
		Label: label,
		Mask:  '*',
		Validate: func(s string) error {
			return Digits(s, minLen, maxLen)
		},
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
	}

	return prompt.Run()
}

// Digits checks that s is between minLen and maxLen ASCII digits.
func Digits(s string, minLen, maxLen int) error {
	if len(s) < minLen || len(s) > maxLen {
		return fmt.Errorf("%w: want %d to %d digits", errNotDigits, minLen, maxLen)
	}

	for _, r := range s {
		if r > unicode.MaxASCII || !unicode.IsDigit(r) {
			return errNotDigits
		}
	}

	return nil
}
