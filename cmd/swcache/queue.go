package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/smartattend/swcache/pkg/host"
	"github.com/smartattend/swcache/pkg/network"
	"github.com/smartattend/swcache/pkg/syncq"
)

func newQueueCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and flush pending writes",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List pending writes",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, cfg, err := loadConfig(cmd.Context(), *cfgPath)
			if err != nil {
				return err
			}
			storage, err := host.OpenQueueStorage(cfg)
			if err != nil {
				return err
			}
			defer storage.Close()

			records, err := storage.List(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tENDPOINT\tCREATED")
			for _, rec := range records {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", rec.ID, rec.Endpoint, rec.CreatedAt.Format(time.RFC3339))
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d pending\n", len(records))
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "flush",
		Short: "Submit pending writes to the sync endpoint now",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, cfg, err := loadConfig(cmd.Context(), *cfgPath)
			if err != nil {
				return err
			}
			endpoint, err := cfg.SyncEndpoint()
			if err != nil {
				return err
			}
			storage, err := host.OpenQueueStorage(cfg)
			if err != nil {
				return err
			}
			defer storage.Close()

			client := network.New(network.Config{
				Timeout:   cfg.Network.Timeout,
				UserAgent: cfg.Network.UserAgent,
			})
			n, err := syncq.New(storage, client, endpoint, nil).Flush(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d records synced\n", n)
			return nil
		},
	})
	return cmd
}
