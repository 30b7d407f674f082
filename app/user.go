package app

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/bizdir/bizdir/internal/auth"
	"github.com/bizdir/bizdir/internal/config"
	"github.com/bizdir/bizdir/internal/db/dsn"
	"github.com/bizdir/bizdir/internal/db/models"
)

func init() { //nolint: gochecknoinits
	userCreateCmd.Flags().StringVar(&userRole, "role", string(models.RoleUser), "role of the account (admin|user)")
	userCreateCmd.Flags().StringVar(&userPermissions, "permissions", "", "comma separated capabilities")
	userCreateCmd.Flags().BoolVar(&userInactive, "inactive", false, "create the account deactivated")

	userCmd.AddCommand(userCreateCmd, userListCmd, userSetPermissionsCmd, userSetActiveCmd)
	rootCmd.AddCommand(userCmd)
}

var (
	userRole        string
	userPermissions string
	userInactive    bool

	userCmd = &cobra.Command{
		Use:   "user",
		Short: "Manage accounts directly in the database",
	}

	userCreateCmd = &cobra.Command{
		Use:   "create <username>",
		Short: "Create an account, the password is read from the terminal",
		Args:  cobra.ExactArgs(1),
		RunE: withStore(func(cmd *cobra.Command, store *auth.Store, args []string) error {
			password, err := promptSecret(cmd.InOrStdin(), cmd.ErrOrStderr(), "Password: ")
			if err != nil {
				return err
			}

			return createUser(cmd.Context(), store, cmd.OutOrStdout(), auth.NewUser{
				Username:    args[0],
				Password:    password,
				Role:        models.Role(userRole),
				Permissions: splitList(userPermissions),
				Active:      !userInactive,
			})
		}),
	}

	userListCmd = &cobra.Command{
		Use:   "list",
		Short: "List accounts",
		Args:  cobra.NoArgs,
		RunE: withStore(func(cmd *cobra.Command, store *auth.Store, _ []string) error {
			return listUsers(cmd.Context(), store, cmd.OutOrStdout())
		}),
	}

	userSetPermissionsCmd = &cobra.Command{
		Use:   "set-permissions <username> [capability...]",
		Short: "Replace the explicit permissions of an account, none clears them",
		Args:  cobra.MinimumNArgs(1),
		RunE: withStore(func(cmd *cobra.Command, store *auth.Store, args []string) error {
			return setPermissions(cmd.Context(), store, cmd.OutOrStdout(), args[0], args[1:])
		}),
	}

	userSetActiveCmd = &cobra.Command{
		Use:   "set-active <username> <true|false>",
		Short: "Activate or deactivate an account",
		Args:  cobra.ExactArgs(2), //nolint:mnd
		RunE: withStore(func(cmd *cobra.Command, store *auth.Store, args []string) error {
			active, err := strconv.ParseBool(args[1])
			if err != nil {
				return fmt.Errorf("invalid active flag %q: %w", args[1], err)
			}

			return setActive(cmd.Context(), store, cmd.OutOrStdout(), args[0], active)
		}),
	}
)

// withStore opens the configured database for a user command.
func withStore(run func(*cobra.Command, *auth.Store, []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err //nolint:wrapcheck
		}

		db, err := dsn.Open(cfg.DB, &gorm.Config{})
		if err != nil {
			return err //nolint:wrapcheck
		}

		if err = models.Migrate(db); err != nil {
			return err //nolint:wrapcheck
		}

		return run(cmd, auth.NewStore(db), args)
	}
}

func createUser(ctx context.Context, store *auth.Store, out io.Writer, in auth.NewUser) error {
	u, err := store.CreateUser(ctx, in)
	if err != nil {
		return err //nolint:wrapcheck
	}

	_, err = fmt.Fprintf(out, "created user %s (id %d, role %s)\n", u.Username, u.ID, u.Role)

	return err //nolint:wrapcheck
}

func listUsers(ctx context.Context, store *auth.Store, out io.Writer) error {
	users, _, err := store.ListUsers(ctx, nil, 0, 0)
	if err != nil {
		return err //nolint:wrapcheck
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0) //nolint:mnd
	_, _ = fmt.Fprintln(w, "ID\tUSERNAME\tROLE\tACTIVE\tCAPABILITIES")

	for i := range users {
		u := &users[i]
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%t\t%s\n", u.ID, u.Username, u.Role, u.Active, capabilityList(u))
	}

	return w.Flush() //nolint:wrapcheck
}

func setPermissions(ctx context.Context, store *auth.Store, out io.Writer, username string, grants []string) error {
	u, err := store.GetUserByUsername(ctx, username)
	if err != nil {
		return err //nolint:wrapcheck
	}

	if err = store.SetPermissions(ctx, u.ID, grants); err != nil {
		return err //nolint:wrapcheck
	}

	if u.Role == models.RoleAdmin {
		_, _ = fmt.Fprintln(out, "note: admins hold every capability regardless of permissions")
	}

	_, err = fmt.Fprintf(out, "permissions of %s set to [%s]\n", u.Username, strings.Join(grants, ","))

	return err //nolint:wrapcheck
}

func setActive(ctx context.Context, store *auth.Store, out io.Writer, username string, active bool) error {
	u, err := store.GetUserByUsername(ctx, username)
	if err != nil {
		return err //nolint:wrapcheck
	}

	if err = store.SetActive(ctx, u.ID, active); err != nil {
		return err //nolint:wrapcheck
	}

	_, err = fmt.Fprintf(out, "user %s active=%t\n", u.Username, active)

	return err //nolint:wrapcheck
}

func capabilityList(u *models.User) string {
	caps := auth.ResolveUser(u)
	if caps.Universal() {
		return "*"
	}

	return strings.Join(caps.Tags(), ",")
}
