package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"
)

// promptOnTerminal answers daemon prompt frames from the user's terminal.
// Prompts that look like credential requests read without echo.
func promptOnTerminal(ctx context.Context, text string) (string, error) {
	fmt.Fprint(os.Stderr, text+" ")

	fd := int(os.Stdin.Fd())
	secret := strings.Contains(strings.ToLower(text), "secret") ||
		strings.Contains(strings.ToLower(text), "token") ||
		strings.Contains(strings.ToLower(text), "password")
	if secret && term.IsTerminal(fd) {
		value, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", err
		}
		return string(value), nil
	}

	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
