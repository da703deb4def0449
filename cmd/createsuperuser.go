/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"
	"os"

	"github.com/matchup/apiserver/internal/db"
	"github.com/matchup/apiserver/internal/services"
	"github.com/matchup/apiserver/internal/store"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var superuserOpts struct {
	email     string
	firstName string
	lastName  string
}

// createSuperuserCmd creates an active staff+superuser account.
var createSuperuserCmd = &cobra.Command{
	Use:   "createsuperuser",
	Short: "Create a superuser account",
	Long: `Create an active account with staff and superuser status. The password
is read from SUPERUSER_PASSWORD; when unset the account gets an unusable
password.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if superuserOpts.email == "" {
			return errors.New("--email is required")
		}
		cfg, log, err := setup()
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()

		conn, err := db.Open(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer conn.Close()

		accounts := services.NewAccountService(store.NewUserRepository(conn), store.NewProfileRepository(conn), nil, log)
		user, err := accounts.CreateSuperuser(cmd.Context(), superuserOpts.email, os.Getenv("SUPERUSER_PASSWORD"), services.UserFields{
			FirstName: superuserOpts.firstName,
			LastName:  superuserOpts.lastName,
		})
		if err != nil {
			return err
		}
		log.Info("superuser created", zap.Int("user_id", user.ID), zap.String("email", user.Email))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(createSuperuserCmd)
	createSuperuserCmd.Flags().StringVar(&superuserOpts.email, "email", "", "email address of the new superuser")
	createSuperuserCmd.Flags().StringVar(&superuserOpts.firstName, "first-name", "", "first name")
	createSuperuserCmd.Flags().StringVar(&superuserOpts.lastName, "last-name", "", "last name")
}
