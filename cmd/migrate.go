package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var (
	migrateSession string
	migrateAccount string
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Move a guest session's datasets to an account",
	RunE: func(cmd *cobra.Command, args []string) error {
		if migrateSession == "" || migrateAccount == "" {
			return fmt.Errorf("--session and --account are required")
		}
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		res, err := a.migrator.Migrate(cmd.Context(), migrateSession, migrateAccount)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), res)
	},
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Delete expired guest sessions and their unclaimed datasets",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		res, err := a.sweeper.Sweep(cmd.Context(), time.Now())
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), res)
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd, sweepCmd)
	migrateCmd.Flags().StringVar(&migrateSession, "session", "", "guest session id")
	migrateCmd.Flags().StringVar(&migrateAccount, "account", "", "target account id")
}
