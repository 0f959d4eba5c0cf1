/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/taskdash/apiserver/internal/db"
	"github.com/taskdash/apiserver/internal/services"
	"github.com/taskdash/apiserver/internal/store"
	"github.com/taskdash/apiserver/types"
)

var createUserFlags struct {
	username string
	email    string
	name     string
	password string
	role     string
}

// createUserCmd represents the createuser command
var createUserCmd = &cobra.Command{
	Use:   "createuser",
	Short: "Create an account with the given role",
	Long: `Create an account directly in the database. This is how the first
admin and manager accounts are created. Usage:

	taskdash createuser --username alice --email alice@example.com --password s3cret-pass --role manager
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		role, err := types.ParseRole(createUserFlags.role)
		if err != nil {
			return fmt.Errorf("--role: %w", err)
		}

		cfg, _, err := loadEnv()
		if err != nil {
			return err
		}
		dbConn, err := db.Open(cmd.Context(), cfg.Database)
		if err != nil {
			return err
		}
		defer dbConn.Close()

		accounts := services.NewAccountService(store.NewUserRepository(dbConn), nil)
		user, err := accounts.CreateWithRole(cmd.Context(), services.NewAccount{
			Username: createUserFlags.username,
			Email:    createUserFlags.email,
			Name:     createUserFlags.name,
			Password: createUserFlags.password,
		}, role)
		if errors.Is(err, store.ErrConflict) {
			return errors.New("username or email already in use")
		}
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "created %s %q (id %d)\n", user.Role, user.Username, user.ID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(createUserCmd)

	createUserCmd.Flags().StringVar(&createUserFlags.username, "username", "", "login name")
	createUserCmd.Flags().StringVar(&createUserFlags.email, "email", "", "email address")
	createUserCmd.Flags().StringVar(&createUserFlags.name, "name", "", "display name")
	createUserCmd.Flags().StringVar(&createUserFlags.password, "password", "", "initial password")
	createUserCmd.Flags().StringVar(&createUserFlags.role, "role", string(types.RoleManager), "admin, manager or developer")
	_ = createUserCmd.MarkFlagRequired("username")
	_ = createUserCmd.MarkFlagRequired("email")
	_ = createUserCmd.MarkFlagRequired("password")
}
