package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/nomis52/signup/auth"
)

// hashPassword implements the hash-password subcommand. It prompts for a
// password and stores its argon2id hash for the user in the auth file, or
// prints the line when no file is given.
func hashPassword(args []string, stdin *os.File, stdout io.Writer) error {
	fs := flag.NewFlagSet("hash-password", flag.ContinueOnError)
	authFile := fs.String("auth-file", "", "Auth file to update; the user:hash line is printed when empty")
	user := fs.String("user", "", "User name (required)")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: signup-server hash-password -user NAME [-auth-file PATH]\n\n")
		fmt.Fprintf(os.Stderr, "Hashes a password with argon2id for listener.auth_file.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *user == "" {
		return errors.New("-user is required")
	}

	password, err := readPassword(stdin, stdout)
	if err != nil {
		return err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}

	if *authFile == "" {
		fmt.Fprintf(stdout, "%s:%s\n", *user, hash)
		return nil
	}
	if err := auth.WriteFile(*authFile, *user, hash); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "updated %s for user %s\n", *authFile, *user)
	return nil
}

// readPassword prompts twice without echo on a terminal. Piped input is read
// as a single line.
func readPassword(stdin *os.File, stdout io.Writer) (string, error) {
	fd := int(stdin.Fd())
	if !term.IsTerminal(fd) {
		line, err := bufio.NewReader(stdin).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", fmt.Errorf("reading password: %w", err)
		}
		password := strings.TrimRight(line, "\r\n")
		if password == "" {
			return "", errors.New("password cannot be empty")
		}
		return password, nil
	}

	fmt.Fprint(stdout, "Enter password:   ")
	first, err := term.ReadPassword(fd)
	fmt.Fprintln(stdout)
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	fmt.Fprint(stdout, "Confirm password: ")
	second, err := term.ReadPassword(fd)
	fmt.Fprintln(stdout)
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}

	if len(first) == 0 {
		return "", errors.New("password cannot be empty")
	}
	if string(first) != string(second) {
		return "", errors.New("passwords do not match")
	}
	return string(first), nil
}
