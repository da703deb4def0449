/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"github.com/matchup/apiserver/internal/db"
	"github.com/matchup/apiserver/internal/services"
	"github.com/matchup/apiserver/internal/storage"
	"github.com/matchup/apiserver/internal/store"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var exportPrefix string

// exportCatalogCmd uploads a JSON snapshot of groups and permissions.
var exportCatalogCmd = &cobra.Command{
	Use:   "export-catalog",
	Short: "Upload a snapshot of the group and permission catalogs",
	Long: `Upload a JSON snapshot of every group and permission to the configured
object storage backend (STORAGE_BACKEND=minio|gcs).`,
	RunE: func(cmd *cobra.Command, args []string) error {
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

		bucket, err := storage.Open(cmd.Context(), cfg.Storage)
		if err != nil {
			return err
		}
		defer bucket.Close()

		catalog := services.NewCatalogService(store.NewGroupRepository(conn), store.NewPermissionRepository(conn), log)
		key, err := catalog.Export(cmd.Context(), bucket, exportPrefix)
		if err != nil {
			return err
		}
		log.Info("export uploaded", zap.String("bucket", bucket.Bucket()), zap.String("key", key))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCatalogCmd)
	exportCatalogCmd.Flags().StringVar(&exportPrefix, "prefix", "catalog", "object key prefix")
}
