package app

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// readPassword is replaced in tests to keep the terminal out of them.
var readPassword = term.ReadPassword

// isTerminal reports whether fd is a terminal.
var isTerminal = term.IsTerminal

var errEmptyInput = errors.New("input is empty")

// promptSecret asks for a secret. On a terminal the input is not echoed; otherwise one
// line is read from in, so the commands can be scripted.
func promptSecret(in io.Reader, out io.Writer, prompt string) (string, error) {
	if _, err := fmt.Fprint(out, prompt); err != nil {
		return "", err //nolint:wrapcheck
	}

	if f, ok := in.(*os.File); ok && isTerminal(int(f.Fd())) {
		pw, err := readPassword(int(f.Fd()))
		_, _ = fmt.Fprintln(out)

		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}

		if len(pw) == 0 {
			return "", errEmptyInput
		}

		return string(pw), nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("failed to read password: %w", err)
	}

	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", errEmptyInput
	}

	return line, nil
}

// splitList splits a comma separated flag value and drops empty items.
func splitList(s string) []string {
	var out []string

	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}

	return out
}
