package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/abelbrown/moodlog/internal/gateway"
	"github.com/abelbrown/moodlog/internal/journal"
	"github.com/abelbrown/moodlog/internal/otel"
	"github.com/abelbrown/moodlog/internal/session"
)

func addLogin(topLevel *cobra.Command, opts *options) {
	var username, password string
	var remember bool

	var cmd = &cobra.Command{
		Use:   "login",
		Short: "Log in and store the session token.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := setup(opts, false)
			if err != nil {
				return err
			}
			defer e.Close()

			in := bufio.NewReader(cmd.InOrStdin())
			if username == "" {
				if username, err = prompt(in, cmd.ErrOrStderr(), "Username: "); err != nil {
					return err
				}
			}
			if password == "" {
				if password, err = prompt(in, cmd.ErrOrStderr(), "Password: "); err != nil {
					return err
				}
			}

			res, err := e.client.Login(cmd.Context(), username, password)
			if err != nil {
				e.events.Error(otel.KindAuth, "auth", err)
				return fmt.Errorf("login: %w", err)
			}
			return saveLogin(e, res, remember, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "account name (prompted when empty)")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password (read from stdin when empty)")
	cmd.Flags().BoolVar(&remember, "remember", true, "keep the session between runs")
	topLevel.AddCommand(cmd)
}

func addLogout(topLevel *cobra.Command, opts *options) {
	var cmd = &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := setup(opts, false)
			if err != nil {
				return err
			}
			defer e.Close()

			if e.sess.LoggedIn() {
				// Local state is cleared whatever the backend says.
				if err := e.client.Logout(cmd.Context()); err != nil {
					e.events.Warn(otel.KindAuth, "auth", "logout: "+err.Error())
				}
			}
			if err := e.sess.Clear(); err != nil {
				return err
			}
			e.events.Info(otel.KindAuth, "auth", "logout")
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
			return nil
		},
	}
	topLevel.AddCommand(cmd)
}

func addWhoami(topLevel *cobra.Command, opts *options) {
	var cmd = &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in account.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := setup(opts, false)
			if err != nil {
				return err
			}
			defer e.Close()
			if err := e.requireLogin(); err != nil {
				return err
			}
			return whoami(cmd.Context(), e, cmd.OutOrStdout())
		},
	}
	topLevel.AddCommand(cmd)
}

func whoami(ctx context.Context, e *env, out io.Writer) error {
	bold := color.New(color.Bold)
	st := e.sess.Get()

	user, err := e.client.Me(ctx)
	switch {
	case errors.Is(err, gateway.ErrUnauthorized):
		return fmt.Errorf("session for %s has expired; run 'moodlog login'", st.Username)
	case err != nil:
		// Offline: report what the session remembers.
		fmt.Fprintf(out, "%s (offline, from saved session)\n", bold.Sprint(st.Username))
		return nil
	}

	fmt.Fprintf(out, "%s", bold.Sprint(user.Username))
	if user.Email != "" {
		fmt.Fprintf(out, " <%s>", user.Email)
	}
	fmt.Fprintf(out, "  id %s  server %s\n", user.ID, e.client.BaseURL())
	return nil
}

// saveLogin persists the token and profile from a successful auth call.
func saveLogin(e *env, res journal.AuthResult, remember bool, out io.Writer) error {
	st := session.State{
		Token:      res.Token,
		Username:   res.User.Username,
		UserID:     res.User.ID.String(),
		RememberMe: remember,
		UserType:   "user",
	}
	if err := e.sess.Save(st); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	e.events.Info(otel.KindAuth, "auth", "login "+st.Username)
	fmt.Fprintf(out, "Logged in as %s.\n", color.New(color.Bold).Sprint(st.Username))
	return nil
}

// prompt writes label to w and reads one trimmed line from r.
func prompt(r *bufio.Reader, w io.Writer, label string) (string, error) {
	fmt.Fprint(w, label)
	line, err := r.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("read %s: %w", strings.TrimSuffix(strings.ToLower(label), ": "), err)
	}
	return strings.TrimSpace(line), nil
}
