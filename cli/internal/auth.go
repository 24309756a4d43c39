package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/devilmonastery/notedesk/internal/client"
	"github.com/devilmonastery/notedesk/internal/session"
)

// formatDuration formats a duration in a human-friendly way (e.g., "2 days, 3 hours and 45 minutes")
func formatDuration(d time.Duration) string {
	if d < 0 {
		d = -d
	}

	days := int(d.Hours() / 24)
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	var parts []string
	parts = appendUnit(parts, days, "day")
	parts = appendUnit(parts, hours, "hour")
	parts = appendUnit(parts, minutes, "minute")
	if len(parts) == 0 {
		parts = appendUnit(parts, seconds, "second")
	}

	switch len(parts) {
	case 0:
		return "0 seconds"
	case 1:
		return parts[0]
	default:
		return strings.Join(parts[:len(parts)-1], ", ") + " and " + parts[len(parts)-1]
	}
}

func appendUnit(parts []string, n int, unit string) []string {
	switch {
	case n == 1:
		return append(parts, "1 "+unit)
	case n > 1:
		return append(parts, fmt.Sprintf("%d %ss", n, unit))
	default:
		return parts
	}
}

func newAuthCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authentication commands",
		Long:  `Manage authentication for the notedesk CLI`,
	}

	cmd.AddCommand(newAuthLoginCommand())
	cmd.AddCommand(newAuthLogoutCommand())
	cmd.AddCommand(newAuthStatusCommand())
	cmd.AddCommand(newAuthTokenCommand())
	cmd.AddCommand(newAuthRegisterCommand())
	cmd.AddCommand(newAuthWhoamiCommand())

	return cmd
}

func newAuthLoginCommand() *cobra.Command {
	var (
		username      string
		password      string
		passwordStdin bool
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Login to the notes server",
		Long: `Authenticate with username and password. The access and refresh tokens
are stored per context and refreshed automatically.

Examples:
  # Prompt for username and password
  notedesk auth login

  # Non-interactive login
  echo "$PASSWORD" | notedesk auth login -u ada --password-stdin`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx := getCliContext(cmd)
			log := cliCtx.Logger.With("command", "login")

			var err error
			if passwordStdin {
				password, err = readPasswordStdin(cmd.InOrStdin())
				if err != nil {
					return err
				}
			}
			if username == "" || password == "" {
				username, password, err = promptCredentials(cmd, username)
				if err != nil {
					return err
				}
			}

			log.Info("logging in", slog.String("username", username), slog.String("server", cliCtx.Client.BaseURL()))

			sess, err := cliCtx.Session.Login(cmd.Context(), username, password)
			if err != nil {
				return fmt.Errorf("login failed: %w", err)
			}

			out := cmd.OutOrStdout()
			name := sess.Username
			if name == "" {
				name = username
			}
			fmt.Fprintf(out, "✓ Successfully logged in as %s\n", name)
			fmt.Fprintf(out, "  Access token expires: %s\n", sess.ExpiresAt.Local().Format("2006-01-02 15:04:05 MST"))
			return nil
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "Username (if not provided, will prompt)")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Password (if not provided, will prompt)")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "Read the password from stdin")

	return cmd
}

func newAuthLogoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Logout from the notes server",
		Long:  `Revoke the refresh token on the server and remove the stored credentials`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx := getCliContext(cmd)

			if err := cliCtx.Session.Logout(cmd.Context()); err != nil {
				if _, ok := cliCtx.Session.AccessToken(cmd.Context()); ok {
					return fmt.Errorf("logout failed: %w", err)
				}
				// Local credentials are gone; the server side is best effort
				fmt.Fprintf(cmd.ErrOrStderr(), "⚠  Server did not confirm logout: %v\n", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), "✓ Successfully logged out")
			return nil
		},
	}
}

func newAuthStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show authentication status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx := getCliContext(cmd)
			out := cmd.OutOrStdout()

			access, ok := cliCtx.Session.AccessToken(cmd.Context())
			if !ok {
				fmt.Fprintln(out, "Not logged in")
				return nil
			}

			sess, err := cliCtx.Session.ParseSession(access)
			if err != nil && !errors.Is(err, session.ErrTokenExpired) {
				fmt.Fprintf(out, "Stored access token is unreadable: %v\n", err)
				return nil
			}

			fmt.Fprintf(out, "Server: %s\n", cliCtx.Client.BaseURL())
			if sess.Username != "" {
				fmt.Fprintf(out, "Logged in as: %s\n", sess.Username)
			}
			fmt.Fprintf(out, "User ID: %s\n", sess.UserID)
			fmt.Fprintf(out, "Access token expires: %s\n", sess.ExpiresAt.Local().Format("2006-01-02 15:04:05 MST"))

			now := time.Now()
			if !sess.Valid(now) {
				if _, ok := cliCtx.Session.RefreshToken(cmd.Context()); ok {
					fmt.Fprintf(out, "⚠  Access token expired %s ago - automatic refresh will be attempted on next request\n",
						formatDuration(now.Sub(sess.ExpiresAt)))
				} else {
					fmt.Fprintf(out, "⚠  Access token expired %s ago and no refresh token is stored - please login again\n",
						formatDuration(now.Sub(sess.ExpiresAt)))
				}
			} else {
				fmt.Fprintf(out, "✓  Valid for %s\n", formatDuration(sess.Remaining(now)))
			}

			return nil
		},
	}
}

func newAuthTokenCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "token",
		Short: "Print a valid access token, refreshing it if expired",
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx := getCliContext(cmd)

			token, err := cliCtx.Session.TokenSource(cmd.Context()).Token()
			if err != nil {
				return fmt.Errorf("not logged in: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), token.AccessToken)
			return nil
		},
	}
}

func newAuthRegisterCommand() *cobra.Command {
	var (
		username string
		email    string
		password string
	)

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account on the notes server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx := getCliContext(cmd)

			if email == "" {
				return fmt.Errorf("--email is required")
			}
			var err error
			if username == "" || password == "" {
				username, password, err = promptCredentials(cmd, username)
				if err != nil {
					return err
				}
			}

			err = cliCtx.Session.Register(cmd.Context(), session.RegisterRequest{
				Username: username,
				Password: password,
				Email:    email,
			})
			if err != nil {
				return fmt.Errorf("registration failed: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "✓ Account %s created. Run 'notedesk auth login' to sign in.\n", username)
			return nil
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "Username (if not provided, will prompt)")
	cmd.Flags().StringVar(&email, "email", "", "Email address")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Password (if not provided, will prompt)")

	return cmd
}

func newAuthWhoamiCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the authenticated user as reported by the server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx := getCliContext(cmd)

			user, err := currentUser(cmd, cliCtx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Username: %s\n", user.Username)
			fmt.Fprintf(out, "User ID: %d\n", user.ID)
			if user.Email != "" {
				fmt.Fprintf(out, "Email: %s\n", user.Email)
			}
			if name := strings.TrimSpace(user.FirstName + " " + user.LastName); name != "" {
				fmt.Fprintf(out, "Name: %s\n", name)
			}
			return nil
		},
	}
}

// currentUser honors --token by sending it directly instead of the session
func currentUser(cmd *cobra.Command, cliCtx *CliContext) (*client.User, error) {
	if staticToken == "" {
		return cliCtx.Session.CurrentUser(cmd.Context())
	}
	api := client.NewAuthInterceptor(cliCtx.Client, client.NewStaticTokenManager(staticToken))
	var user client.User
	if err := api.Do(cmd.Context(), &client.Request{Method: http.MethodGet, Path: session.UserPath}, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func promptCredentials(cmd *cobra.Command, username string) (string, string, error) {
	out := cmd.ErrOrStderr()
	reader := bufio.NewReader(cmd.InOrStdin())

	if username == "" {
		fmt.Fprint(out, "Username: ")
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			return "", "", fmt.Errorf("failed to read username: %w", err)
		}
		username = strings.TrimSpace(line)
	}
	if username == "" {
		return "", "", fmt.Errorf("username is required")
	}

	fmt.Fprint(out, "Password: ")
	var password string
	if fd := int(os.Stdin.Fd()); term.IsTerminal(fd) {
		passwordBytes, err := term.ReadPassword(fd)
		fmt.Fprintln(out) // newline after password input
		if err != nil {
			return "", "", fmt.Errorf("failed to read password: %w", err)
		}
		password = string(passwordBytes)
	} else {
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			return "", "", fmt.Errorf("failed to read password: %w", err)
		}
		password = strings.TrimRight(line, "\r\n")
	}
	if password == "" {
		return "", "", fmt.Errorf("password is required")
	}

	return username, password, nil
}

func readPasswordStdin(in io.Reader) (string, error) {
	data, err := io.ReadAll(in)
	if err != nil {
		return "", fmt.Errorf("failed to read password from stdin: %w", err)
	}
	password := strings.TrimRight(string(data), "\r\n")
	if password == "" {
		return "", fmt.Errorf("password from stdin is empty")
	}
	return password, nil
}
