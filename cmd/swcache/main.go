// Command swcache runs the offline cache in front of the attendance origin
// and inspects its stores and pending writes.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/smartattend/swcache/pkg/config"
	"github.com/smartattend/swcache/pkg/logging"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfgPath string

	root := &cobra.Command{
		Use:           "swcache",
		Short:         "Offline caching proxy for the SmartAttend client",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "config file path (YAML)")

	root.AddCommand(newServeCmd(&cfgPath))
	root.AddCommand(newStoresCmd(&cfgPath))
	root.AddCommand(newQueueCmd(&cfgPath))
	return root
}

// loadConfig loads the configuration and installs the global logger.
func loadConfig(ctx context.Context, path string) (*config.Loader, config.Config, error) {
	loader := config.NewLoader(config.EnvPrefix, path)
	cfg, err := loader.Load(ctx)
	if err != nil {
		return nil, config.Config{}, err
	}
	if _, err := logging.Setup(cfg.LoggerConfig()); err != nil {
		return nil, config.Config{}, err
	}
	return loader, cfg, nil
}
