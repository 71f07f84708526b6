package commands

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/pgtend/pgtend/pkg/config"
	"github.com/pgtend/pgtend/pkg/engine"
)

var (
	// Global flags
	settingsPath string
	verbose      bool
	jsonOutput   bool
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "pgtend",
		Short: "pgtend - PostgreSQL cluster configuration engine",
		Long: `pgtend resolves hierarchical PostgreSQL cluster settings and keeps
hosts in line with them.

It layers cluster overrides on OS-specific defaults, renders
pg_hba.conf, postgresql.conf, recovery.conf, and start.conf, and
pushes them over SSH, installing packages and restarting services
only when something actually changed.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			}
		},
	}

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().StringVarP(&settingsPath, "config", "c", "pgtend.yaml", "settings file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	rootCmd.AddCommand(newValidateCommand())
	rootCmd.AddCommand(newResolveCommand())
	rootCmd.AddCommand(newRenderCommand())
	rootCmd.AddCommand(newApplyCommand())
	rootCmd.AddCommand(newWatchCommand())

	return rootCmd
}

// loadRegistry loads the settings file and registers its instance and
// clusters, resolving every cluster in the process.
func loadRegistry(path string) (*config.File, *engine.Registry, error) {
	f, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}

	registry, err := engine.NewRegistry().RegisterInstance(f.InstanceInfo(), f.UserTree())
	if err != nil {
		return nil, nil, err
	}
	for _, name := range f.ClusterNames() {
		registry, err = registry.RegisterCluster(f.Instance.ID, name, f.OverrideTree(name), f.Variant(name))
		if err != nil {
			return nil, nil, fmt.Errorf("cluster %s: %w", name, err)
		}
	}
	return f, registry, nil
}
