/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"io"
	"strings"

	trmsqlx "github.com/avito-tech/go-transaction-manager/drivers/sqlx/v2"
	"github.com/avito-tech/go-transaction-manager/trm/v2/manager"
	"github.com/spf13/cobra"

	"github.com/taskdash/apiserver/internal/authz"
	"github.com/taskdash/apiserver/internal/db"
	"github.com/taskdash/apiserver/internal/services"
	"github.com/taskdash/apiserver/internal/store"
	"github.com/taskdash/apiserver/types"
)

var fixTeamsUsername string

// fixTeamsCmd represents the fixteams command
var fixTeamsCmd = &cobra.Command{
	Use:   "fixteams",
	Short: "Detach managers from teams and report what they manage",
	Long: `Managers relate to teams only as their manager. This command clears the
team of every manager that still has one, then prints the teams each
manager runs and their members.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadEnv()
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		dbConn, err := db.Open(ctx, cfg.Database)
		if err != nil {
			return err
		}
		defer dbConn.Close()

		userRepo := store.NewUserRepository(dbConn)
		teamRepo := store.NewTeamRepository(dbConn)
		evaluator := authz.NewEvaluator(store.NewDirectory(userRepo, teamRepo), authz.Policy{})
		users := services.NewUserService(manager.Must(trmsqlx.NewDefaultFactory(dbConn)), userRepo, teamRepo, evaluator, nil)

		fixed, err := users.ClearManagerTeams(ctx, fixTeamsUsername)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, m := range fixed {
			fmt.Fprintf(out, "cleared team of manager %q\n", m.Username)
		}

		managers, err := userRepo.ListByRole(ctx, types.RoleManager)
		if err != nil {
			return err
		}
		for _, m := range managers {
			if fixTeamsUsername != "" && m.Username != fixTeamsUsername {
				continue
			}
			if err := reportManaged(cmd, out, evaluator.Resolver(), m); err != nil {
				return err
			}
		}
		return nil
	},
}

func reportManaged(cmd *cobra.Command, out io.Writer, resolver *authz.Resolver, m types.User) error {
	teams, err := resolver.ManagedTeams(cmd.Context(), m)
	if err != nil {
		return err
	}
	members, err := resolver.TeamMembers(cmd.Context(), m)
	if err != nil {
		return err
	}

	names := make([]string, 0, len(teams))
	for _, t := range teams {
		names = append(names, t.Name)
	}
	usernames := make([]string, 0, len(members))
	for _, u := range members {
		usernames = append(usernames, u.Username)
	}
	fmt.Fprintf(out, "%s manages [%s]: %d members [%s]\n",
		m.Username, strings.Join(names, ", "), len(members), strings.Join(usernames, ", "))
	return nil
}

func init() {
	rootCmd.AddCommand(fixTeamsCmd)
	fixTeamsCmd.Flags().StringVar(&fixTeamsUsername, "username", "", "only fix this manager")
}
