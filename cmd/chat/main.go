// Package main provides an interactive terminal client for the document QA service.
package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/Rrens/docqa/internal/config"
	"github.com/Rrens/docqa/internal/domain"
	"github.com/Rrens/docqa/internal/logging"
	"github.com/Rrens/docqa/internal/qaclient"
	"github.com/Rrens/docqa/internal/session"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var version = "0.1.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		baseURL  string
		username string
		register bool
		verbose  bool
	)

	cmd := &cobra.Command{
		Use:          "docqa-chat",
		Short:        "Ask questions about your documents from the terminal",
		Version:      version,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if baseURL != "" {
				cfg.QA.BaseURL = baseURL
			}

			cfg.Logging.Format = "console"
			cfg.Logging.File = ""
			if verbose {
				cfg.Logging.Level = "debug"
			} else {
				cfg.Logging.Level = "error"
			}
			if _, err := logging.Setup(cfg.Logging); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			in := bufio.NewScanner(os.Stdin)
			out := cmd.OutOrStdout()

			if username == "" {
				fmt.Fprint(out, "Username: ")
				if !in.Scan() {
					return in.Err()
				}
				username = strings.TrimSpace(in.Text())
			}
			password, err := readPassword(in, out)
			if err != nil {
				return err
			}

			qa := qaclient.New(qaclient.Config{BaseURL: cfg.QA.BaseURL, Timeout: cfg.QA.Timeout})
			ctrl := session.NewController(qa, func(u domain.User) domain.QAService {
				return qa.WithToken(u.Token)
			}, session.Options{
				MergeDelay:   cfg.Session.MergeDelay,
				CallTimeout:  cfg.Session.CallTimeout,
				FetchTimeout: cfg.Session.FetchTimeout,
			})

			creds := domain.Credentials{Username: username, Password: password}
			open := ctrl.Login
			if register {
				open = ctrl.Register
			}
			if _, err := open(ctx, creds); err != nil {
				return fmt.Errorf("%s", domain.UserMessage(err))
			}

			return newREPL(ctrl, in, out).Run(ctx)
		},
	}

	cmd.Flags().StringVar(&baseURL, "url", "", "QA service base URL (defaults to qa.base_url)")
	cmd.Flags().StringVarP(&username, "username", "u", "", "account username")
	cmd.Flags().BoolVar(&register, "register", false, "create the account before starting")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "show debug logs")

	return cmd
}

func readPassword(in *bufio.Scanner, out io.Writer) (string, error) {
	fmt.Fprint(out, "Password: ")
	if term.IsTerminal(int(os.Stdin.Fd())) {
		b, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(out)
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return string(b), nil
	}
	if !in.Scan() {
		if err := in.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return in.Text(), nil
}
