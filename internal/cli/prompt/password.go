// Package prompt reads interactive input from the terminal.
package prompt

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/term"
)

// ErrPasswordMismatch indicates the confirmation did not match.
var ErrPasswordMismatch = errors.New("passwords do not match")

// Password prompts for a password without echoing it.
func Password(label string) (string, error) {
	fmt.Fprintf(os.Stderr, "%s: ", label)
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(raw), nil
}

// PasswordWithConfirmation prompts for a password twice and checks both the
// minimum length and that the entries match.
func PasswordWithConfirmation(label, confirmLabel string, minLength int) (string, error) {
	password, err := Password(label)
	if err != nil {
		return "", err
	}
	if len(password) < minLength {
		return "", fmt.Errorf("password must be at least %d characters", minLength)
	}

	confirm, err := Password(confirmLabel)
	if err != nil {
		return "", err
	}
	if password != confirm {
		return "", ErrPasswordMismatch
	}

	return password, nil
}
