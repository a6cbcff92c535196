package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/2beens/gymtracker/internal/db"
	"github.com/2beens/gymtracker/internal/progress"
	"github.com/2beens/gymtracker/internal/remote"
)

var errRemoteDisabled = errors.New("remote sync disabled in config")

// openRemote connects to the configured postgres and brings the schema up to date.
// The caller closes the returned pool.
func (a *app) openRemote(ctx context.Context) (*remote.PsqlClient, *pgxpool.Pool, error) {
	if !a.cfg.RemoteSyncEnabled {
		return nil, nil, errRemoteDisabled
	}

	dbPool, err := db.NewDBPool(ctx, db.NewDBPoolParams{
		DBHost:     a.cfg.PostgresHost,
		DBPort:     a.cfg.PostgresPort,
		DBName:     a.cfg.PostgresDBName,
		DBUser:     a.cfg.PostgresUser,
		DBPassword: os.Getenv("GYM_POSTGRES_PASS"),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("new db pool: %w", err)
	}

	psqlClient := remote.NewPsqlClient(dbPool)
	if err := psqlClient.Migrate(ctx); err != nil {
		dbPool.Close()
		return nil, nil, fmt.Errorf("migrate remote schema: %w", err)
	}

	return psqlClient, dbPool, nil
}

func newSyncCmd(a *app) *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "replay pending sessions and push local data of a user to the remote database",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			psqlClient, dbPool, err := a.openRemote(ctx)
			if err != nil {
				return err
			}
			defer dbPool.Close()

			service := progress.NewService(a.store, psqlClient, a.metricsManager)
			result, err := service.SyncAllData(ctx, userID)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(result); err != nil {
				return err
			}
			if result.RemoteErr != nil {
				return fmt.Errorf("sync incomplete: %w", result.RemoteErr)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&userID, "user", "u", "", "user id")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newPurgeRemoteCmd(a *app) *cobra.Command {
	var (
		userID  string
		confirm bool
	)
	cmd := &cobra.Command{
		Use:   "purge-remote",
		Short: "delete every remote record of a user, the local store is left as is",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !confirm {
				return errors.New("refusing to purge remote data without --yes")
			}

			ctx := cmd.Context()
			psqlClient, dbPool, err := a.openRemote(ctx)
			if err != nil {
				return err
			}
			defer dbPool.Close()

			if err := psqlClient.DeleteUserData(ctx, userID); err != nil {
				return fmt.Errorf("purge remote data: %w", err)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "remote data of [%s] purged\n", userID)
			return nil
		},
	}
	cmd.Flags().StringVarP(&userID, "user", "u", "", "user id")
	cmd.Flags().BoolVar(&confirm, "yes", false, "confirm the deletion")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
