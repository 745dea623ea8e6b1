package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"dealdocs/internal/config"
)

var (
	version = "0.0.1-dev"
	commit  = "main"
)

func newRootCommand() *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:           "dealdocs",
		Short:         "Deal room document versioning service",
		SilenceErrors: true,
		SilenceUsage:  true,
		Version:       fmt.Sprintf("%s.%s", version, commit),
	}

	cmd.PersistentFlags().StringVar(&path, "config", ".app.env", "config file (env or yaml)")

	// Конфиг читается лениво: каждой подкоманде он нужен целиком
	load := func() (*config.Config, error) {
		cfg, err := config.NewConfig(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		return cfg, nil
	}

	cmd.AddCommand(newServeCommand(load))
	cmd.AddCommand(newMigrateCommand(load))
	cmd.AddCommand(newReconcileCommand(load))

	return cmd
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
