package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/pgtend/pgtend/pkg/config"
	"github.com/pgtend/pgtend/pkg/engine"
	"github.com/pgtend/pgtend/pkg/pgconf"
)

func newRenderCommand() *cobra.Command {
	var outDir string

	cmd := &cobra.Command{
		Use:   "render [cluster]",
		Short: "Render configuration files locally",
		Long: `Render the configuration files for one or all clusters without
touching any host.

Files go to stdout by default, or under --out as
<dir>/<cluster>/<filename>.`,
		Example: `  # Print all files to stdout
  pgtend render

  # Write one cluster's files under ./out
  pgtend render main --out ./out`,
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

			for _, name := range names {
				files, err := renderCluster(f, registry, name)
				if err != nil {
					return err
				}
				if outDir == "" {
					for _, file := range files {
						fmt.Printf("# ---- %s (%s) ----\n%s", file.Path, file.Kind, file.Content)
					}
					continue
				}
				if err := writeRendered(outDir, name, files); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outDir, "out", "o", "", "directory to write rendered files into")

	return cmd
}

func renderCluster(f *config.File, registry *engine.Registry, name string) ([]pgconf.File, error) {
	resolved, err := registry.Resolved(f.Instance.ID, name)
	if err != nil {
		return nil, err
	}
	files, err := pgconf.GenerateAll(resolved)
	if err != nil {
		return nil, fmt.Errorf("cluster %s: %w", name, err)
	}
	return files, nil
}

func writeRendered(outDir, cluster string, files []pgconf.File) error {
	dir := filepath.Join(outDir, cluster)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	for _, file := range files {
		dest := filepath.Join(dir, filepath.Base(file.Path))
		if err := os.WriteFile(dest, []byte(file.Content), 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", dest, err)
		}
		log.Info().Str("cluster", cluster).Str("file", dest).Msg("rendered")
	}
	return nil
}
