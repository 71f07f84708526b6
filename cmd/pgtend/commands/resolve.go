package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newResolveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve [cluster]",
		Short: "Print a cluster's fully resolved settings",
		Long: `Print a cluster's fully resolved settings tree.

The tree is the OS defaults, the global settings, the cluster
overrides, the expanded placeholders, the derived file paths, and the
deployment variant, all folded together. Without a cluster argument
every configured cluster is printed.`,
		Example: `  # Resolve all clusters
  pgtend resolve

  # Resolve one cluster as JSON
  pgtend resolve main --json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, registry, err := loadRegistry(settingsPath)
			if err != nil {
				return err
			}

			names := f.ClusterNames()
			if len(args) == 1 {
				names = []string{args[0]}
			}

			out := map[string]any{}
			for _, name := range names {
				resolved, err := registry.Resolved(f.Instance.ID, name)
				if err != nil {
					return err
				}
				out[name] = map[string]any(resolved)
			}

			if jsonOutput {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(out)
			}

			data, err := yaml.Marshal(out)
			if err != nil {
				return fmt.Errorf("encoding resolved settings: %w", err)
			}
			_, err = os.Stdout.Write(data)
			return err
		},
	}

	return cmd
}
