package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/smartattend/swcache/pkg/config"
	"github.com/smartattend/swcache/pkg/host"
	"github.com/smartattend/swcache/pkg/lifecycle"
	"github.com/smartattend/swcache/pkg/network"
	"github.com/smartattend/swcache/pkg/store"
)

func newStoresCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stores",
		Short: "Inspect cache stores",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List stores, marking those of the configured version",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, cfg, err := loadConfig(cmd.Context(), *cfgPath)
			if err != nil {
				return err
			}
			stores, err := openStores(cfg)
			if err != nil {
				return err
			}
			defer stores.Close()

			names, err := stores.ListStores(cmd.Context())
			if err != nil {
				return err
			}
			current := lifecycle.StoreNames(cfg.StorePrefix, cfg.Version)
			for _, name := range names {
				marker := " "
				if current.Current(name) {
					marker = "*"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", marker, name)
			}
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "prune",
		Short: "Delete stores that do not belong to the configured version",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, cfg, err := loadConfig(cmd.Context(), *cfgPath)
			if err != nil {
				return err
			}
			stores, err := openStores(cfg)
			if err != nil {
				return err
			}
			defer stores.Close()

			ctrl := lifecycle.New(stores, network.New(network.DefaultConfig()), nil, lifecycle.Config{
				Version: cfg.Version,
				Prefix:  cfg.StorePrefix,
			})
			deleted, err := ctrl.Prune(cmd.Context())
			if err != nil {
				return err
			}
			for _, name := range deleted {
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", name)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d stores pruned\n", len(deleted))
			return nil
		},
	})
	return cmd
}

func openStores(cfg config.Config) (*store.Manager, error) {
	backend, err := host.OpenStoreBackend(cfg)
	if err != nil {
		return nil, err
	}
	return store.NewManager(backend), nil
}
