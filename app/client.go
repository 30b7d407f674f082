package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/bizdir/bizdir/internal/auth"
	"github.com/bizdir/bizdir/internal/client/api"
	"github.com/bizdir/bizdir/internal/client/session"
	"github.com/bizdir/bizdir/internal/config"
	"github.com/bizdir/bizdir/internal/logger"
)

func init() { //nolint: gochecknoinits
	loginCmd.Flags().StringVarP(&loginUsername, "username", "u", "", "account name")

	rootCmd.AddCommand(loginCmd, logoutCmd, whoamiCmd)
}

var (
	loginUsername string

	loginCmd = &cobra.Command{
		Use:   "login",
		Short: "Log in to the directory server and keep the session on this machine",
		Args:  cobra.NoArgs,
		RunE: withClient(func(cmd *cobra.Command, env *clientEnv) error {
			username := strings.TrimSpace(loginUsername)
			if username == "" {
				return errors.New("--username is required") //nolint:err113
			}

			password, err := promptSecret(cmd.InOrStdin(), cmd.ErrOrStderr(), "Password: ")
			if err != nil {
				return err
			}

			return env.login(cmd.Context(), username, password)
		}),
	}

	logoutCmd = &cobra.Command{
		Use:   "logout",
		Short: "Forget the session kept on this machine",
		Args:  cobra.NoArgs,
		RunE: withClient(func(cmd *cobra.Command, env *clientEnv) error {
			return env.logout(cmd.Context())
		}),
	}

	whoamiCmd = &cobra.Command{
		Use:   "whoami",
		Short: "Show the kept session and what the server says about it",
		Args:  cobra.NoArgs,
		RunE: withClient(func(cmd *cobra.Command, env *clientEnv) error {
			return env.whoami(cmd.Context())
		}),
	}
)

// clientEnv is what the client commands work with. It owns the coordinator.
type clientEnv struct {
	api     *api.Client
	store   *session.DBStore
	coord   *session.Coordinator
	timeout time.Duration
	out     io.Writer
}

func withClient(run func(*cobra.Command, *clientEnv) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		if err := logger.Init(logger.Log{
			LogLevel:    "warn",
			AppName:     "bizdir",
			ServiceName: "cli",
			Console:     logger.Console{Enabled: true, UseConsoleWriter: true},
		}); err != nil {
			return err //nolint:wrapcheck
		}

		cfg, err := config.ReadClientConfig(configPath)
		if err != nil {
			return err //nolint:wrapcheck
		}

		env, err := openClient(cmd.Context(), cfg, cmd.OutOrStdout())
		if err != nil {
			return err
		}
		defer env.close()

		return run(cmd, env)
	}
}

// openClient restores the kept session. The server is asked in the background.
func openClient(ctx context.Context, cfg config.Client, out io.Writer) (*clientEnv, error) {
	client, err := api.New(cfg.ServerURL, cfg.Timeout)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}

	store, err := session.OpenFile(cfg.SessionFile)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}

	coord := session.New(store, client)
	if err = coord.Start(ctx); err != nil {
		coord.Close()
		_ = store.Close()

		return nil, err //nolint:wrapcheck
	}

	return &clientEnv{api: client, store: store, coord: coord, timeout: cfg.Timeout, out: out}, nil
}

func (e *clientEnv) close() {
	e.coord.Close()

	if err := e.store.Close(); err != nil {
		log.Warn().Err(err).Msg("failed to close session file")
	}
}

// settle waits for the background verification so a revoked session is not reported.
func (e *clientEnv) settle(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	if err := e.coord.WaitVerified(ctx); err != nil {
		log.Debug().Err(err).Msg("session verification still pending")
	}
}

func (e *clientEnv) login(ctx context.Context, username, password string) error {
	e.settle(ctx)

	if s := e.coord.Snapshot(); s.State == session.StateAuthenticated {
		return fmt.Errorf("%w as %s, log out first", session.ErrAlreadyAuthenticated, s.User.Username)
	}

	res, err := e.api.Login(ctx, username, password)
	if err != nil {
		return err //nolint:wrapcheck
	}

	if err = e.coord.Login(ctx, res.Token, session.FromAPI(res.User)); err != nil {
		return err //nolint:wrapcheck
	}

	_, err = fmt.Fprintf(e.out, "logged in as %s (%s)\n", res.User.Username, capabilitySummary(res.User.Capabilities))

	return err //nolint:wrapcheck
}

func (e *clientEnv) logout(ctx context.Context) error {
	if token := e.coord.Snapshot().Token; token != "" {
		if err := e.api.Logout(ctx, token); err != nil {
			log.Debug().Err(err).Msg("server logout failed, forgetting the session anyway")
		}
	}

	if err := e.coord.Logout(ctx); err != nil {
		return err //nolint:wrapcheck
	}

	_, err := fmt.Fprintln(e.out, "logged out")

	return err //nolint:wrapcheck
}

func (e *clientEnv) whoami(ctx context.Context) error {
	e.settle(ctx)

	s := e.coord.Snapshot()

	var err error

	switch s.Status() {
	case session.StatusAuthenticated:
		_, err = fmt.Fprintf(e.out, "%s (id %d, role %s), server %s\n",
			s.User.Username, s.User.ID, s.User.Role, s.ServerReachable)
	default:
		_, err = fmt.Fprintf(e.out, "not logged in, server %s\n", s.ServerReachable)
	}

	return err //nolint:wrapcheck
}

func capabilitySummary(caps auth.Capabilities) string {
	switch {
	case caps.Universal():
		return "all capabilities"
	case len(caps.Tags()) == 0:
		return "no capabilities"
	default:
		return "capabilities: " + strings.Join(caps.Tags(), ", ")
	}
}
