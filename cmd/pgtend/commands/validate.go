package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/pgtend/pgtend/pkg/pgconf"
)

func newValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the settings file",
		Long: `Validate the settings file end to end.

This command checks:
  - YAML syntax and schema validity
  - OS family and package source support
  - Cluster resolution (placeholders, derived paths, variants)
  - Renderability of every configuration file`,
		Example: `  # Validate the default settings file
  pgtend validate

  # Validate a specific file
  pgtend validate -c staging.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, registry, err := loadRegistry(settingsPath)
			if err != nil {
				return err
			}

			fileCount := 0
			for _, name := range f.ClusterNames() {
				resolved, err := registry.Resolved(f.Instance.ID, name)
				if err != nil {
					return err
				}
				files, err := pgconf.GenerateAll(resolved)
				if err != nil {
					return fmt.Errorf("cluster %s: %w", name, err)
				}
				fileCount += len(files)
				log.Debug().Str("cluster", name).Int("files", len(files)).Msg("cluster validated")
			}

			if jsonOutput {
				return json.NewEncoder(os.Stdout).Encode(map[string]any{
					"instance": f.Instance.ID,
					"clusters": f.ClusterNames(),
					"files":    fileCount,
				})
			}
			fmt.Printf("%s: %d cluster(s), %d file(s), all valid\n", settingsPath, len(f.Clusters), fileCount)
			return nil
		},
	}

	return cmd
}
