package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/2beens/gymtracker/internal/auth"
)

func newUnlockCmd(a *app) *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "unlock",
		Short: "clear failed login attempts and the lockout of an account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			guard := auth.NewAttemptGuard(a.store)
			if !guard.IsAccountLocked(cmd.Context(), email) && guard.AttemptCount(cmd.Context(), email) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "no failed attempts recorded for [%s]\n", email)
				return nil
			}
			guard.UnlockAccount(cmd.Context(), email)
			fmt.Fprintf(cmd.OutOrStdout(), "account [%s] unlocked\n", email)
			return nil
		},
	}
	cmd.Flags().StringVarP(&email, "email", "e", "", "account email")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}
