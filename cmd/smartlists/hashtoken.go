package main

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/term"
)

const minTokenLength = 12

func newHashTokenCommand() *cobra.Command {
	var cost int

	cmd := &cobra.Command{
		Use:   "hash-token",
		Short: "Hash an API token for API_TOKEN_HASH",
		Long: `Read an API token and print its bcrypt hash. On a terminal the token is
prompted for twice without echo; otherwise the first line of stdin is used.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := readToken(cmd.InOrStdin(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if len(token) < minTokenLength {
				return fmt.Errorf("token must be at least %d characters", minTokenLength)
			}

			hash, err := bcrypt.GenerateFromPassword(token, cost)
			if err != nil {
				return fmt.Errorf("hashing token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(hash))
			return nil
		},
	}

	cmd.Flags().IntVar(&cost, "cost", bcrypt.DefaultCost, "bcrypt cost")
	return cmd
}

func readToken(in io.Reader, prompt io.Writer) ([]byte, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(prompt, "API token: ")
		token, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(prompt)
		if err != nil {
			return nil, fmt.Errorf("reading token: %w", err)
		}

		fmt.Fprint(prompt, "Confirm token: ")
		confirm, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(prompt)
		if err != nil {
			return nil, fmt.Errorf("reading token: %w", err)
		}

		if !bytes.Equal(token, confirm) {
			return nil, errors.New("tokens do not match")
		}
		return token, nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("reading token: %w", err)
	}
	return []byte(strings.TrimSpace(line)), nil
}
