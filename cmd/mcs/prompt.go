package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"

	"mcs-go/internal/app"
)

// readPassword is replaced in tests.
var readPassword = term.ReadPassword

// readPassphrase unlocks an age-sealed secret: $MCS_PASSPHRASE when set,
// otherwise an interactive prompt.
func readPassphrase() (string, error) {
	if p, err := app.EnvPassphraseFunc(); err == nil {
		return p, nil
	}
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return "", fmt.Errorf("no terminal to prompt for a passphrase; set $%s", app.EnvPassphrase)
	}
	return promptSecret("Passphrase: ")
}

// promptNewPassphrase asks for a passphrase twice.
func promptNewPassphrase() (string, error) {
	if p, err := app.EnvPassphraseFunc(); err == nil {
		return p, nil
	}
	first, err := promptSecret("New passphrase: ")
	if err != nil {
		return "", err
	}
	second, err := promptSecret("Repeat passphrase: ")
	if err != nil {
		return "", err
	}
	if first != second {
		return "", errors.New("passphrases do not match")
	}
	return first, nil
}

// promptSecret reads a line from the terminal without echo.
func promptSecret(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	b, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading input: %w", err)
	}
	s := strings.TrimSpace(string(b))
	if s == "" {
		return "", errors.New("empty input")
	}
	return s, nil
}
