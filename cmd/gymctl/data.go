package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/2beens/gymtracker/internal/securestore"
)

func newExportCmd(a *app) *cobra.Command {
	var userID, outDir string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "export progression and workout history of a user to a JSON file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			artifact, err := a.store.ExportUserData(cmd.Context(), userID)
			if err != nil {
				return err
			}
			return writeArtifact(cmd, outDir, artifact)
		},
	}
	cmd.Flags().StringVarP(&userID, "user", "u", "", "user id")
	cmd.Flags().StringVarP(&outDir, "out", "o", ".", "output directory")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newImportCmd(a *app) *cobra.Command {
	var userID, filePath string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "import a previously exported JSON file for a user",
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := os.Open(filePath)
			if err != nil {
				return fmt.Errorf("open import file: %w", err)
			}
			defer f.Close()

			if err := a.store.ImportUserData(cmd.Context(), f, userID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported [%s] for user [%s]\n", filePath, userID)
			return nil
		},
	}
	cmd.Flags().StringVarP(&userID, "user", "u", "", "user id")
	cmd.Flags().StringVarP(&filePath, "file", "f", "", "path of the export file")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newBackupCmd(a *app) *cobra.Command {
	var outDir string
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "write a full backup of every store key",
		RunE: func(cmd *cobra.Command, _ []string) error {
			artifact, err := a.store.CreateFullBackup(cmd.Context())
			if err != nil {
				return err
			}
			return writeArtifact(cmd, outDir, artifact)
		},
	}
	cmd.Flags().StringVarP(&outDir, "out", "o", ".", "output directory")
	return cmd
}

func newStatsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "print store usage",
		RunE: func(cmd *cobra.Command, _ []string) error {
			stats, err := a.store.StorageStats(cmd.Context())
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(stats)
		},
	}
}

func writeArtifact(cmd *cobra.Command, outDir string, artifact *securestore.Artifact) error {
	path := filepath.Join(outDir, artifact.Filename)
	if err := os.WriteFile(path, artifact.Content, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "written: %s\n", path)
	return nil
}
