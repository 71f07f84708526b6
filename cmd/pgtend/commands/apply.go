package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/pgtend/pgtend/pkg/config"
	"github.com/pgtend/pgtend/pkg/engine"
	"github.com/pgtend/pgtend/pkg/remote"
	"github.com/pgtend/pgtend/pkg/stores"
	"github.com/pgtend/pgtend/pkg/telemetry"
	"github.com/pgtend/pgtend/pkg/transports/ssh"
)

// lateFlags lets the service controller be wired before the
// provisioner that supplies its change flags exists.
type lateFlags struct {
	src engine.FlagSource
}

func (l *lateFlags) Changed(flag string) bool {
	return l.src != nil && l.src.Changed(flag)
}

func newApplyCommand() *cobra.Command {
	var (
		cluster      string
		skipPackages bool
		metricsAddr  string
	)

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Provision clusters on the target host",
		Long: `Provision the configured clusters on the target host over SSH.

For each cluster the run installs the server packages (configuring an
extra repository when the settings carry one), creates the data and
WAL directories, writes the rendered configuration files, restarts the
service only when something changed, and runs the post-provision
scripts. Every file is rendered before the host is touched, so invalid
settings abort without side effects.`,
		Example: `  # Apply every cluster in the settings file
  pgtend apply

  # Apply one cluster, skipping package installation
  pgtend apply --cluster main --skip-packages`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, registry, err := loadRegistry(settingsPath)
			if err != nil {
				return err
			}

			names := f.ClusterNames()
			if cluster != "" {
				names = []string{cluster}
			}

			return runApply(cmd.Context(), f, registry, names, skipPackages, metricsAddr)
		},
	}

	cmd.Flags().StringVar(&cluster, "cluster", "", "apply a single cluster instead of all")
	cmd.Flags().BoolVar(&skipPackages, "skip-packages", false, "skip package installation")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "expose prometheus metrics on this address during the run")

	return cmd
}

func runApply(ctx context.Context, f *config.File, registry *engine.Registry, names []string, skipPackages bool, metricsAddr string) error {
	logger, err := telemetry.NewLogger(loggingConfig())
	if err != nil {
		return err
	}

	var metrics *telemetry.Metrics
	if metricsAddr != "" {
		cfg := telemetry.DefaultConfig().Metrics
		cfg.Enabled = true
		cfg.ListenAddress = metricsAddr
		metrics, err = telemetry.NewMetrics(cfg)
		if err != nil {
			return err
		}
		metrics.StartMetricsServer()
	}

	var store stores.Store
	if f.Store != "" {
		store, err = openStore(ctx, f)
		if err != nil {
			return err
		}
		defer store.Close()
	}

	transportCfg := f.TransportConfig()
	if err := transportCfg.Validate(); err != nil {
		return fmt.Errorf("ssh configuration: %w", err)
	}
	transport, err := ssh.NewClient(transportCfg)
	if err != nil {
		return err
	}
	if err := transport.Connect(ctx); err != nil {
		return err
	}
	defer transport.Disconnect()

	flags := &lateFlags{}
	sudoPassword := f.SSH.SudoPassword
	provisioner, err := engine.NewProvisioner(engine.ProvisionerConfig{
		Registry:  registry,
		Writer:    remote.NewWriter(transport, sudoPassword, logger),
		Installer: remote.NewInstaller(transport, sudoPassword, logger),
		Services:  remote.NewServiceController(transport, sudoPassword, flags, logger),
		Scripts:   remote.NewScriptRunner(transport, sudoPassword, logger),
		Store:     store,
		Logger:    logger,
		Metrics:   metrics,
	})
	if err != nil {
		return err
	}
	flags.src = provisioner

	for _, name := range names {
		report, err := provisioner.EnsureCluster(ctx, f.Instance.ID, name, engine.EnsureOptions{
			SkipPackages: skipPackages,
			Scripts:      f.ClusterScripts(name),
		})
		if err != nil {
			return fmt.Errorf("cluster %s: %w", name, err)
		}
		if err := provisioner.SnapshotCluster(ctx, f.Instance.ID, name); err != nil {
			log.Warn().Err(err).Str("cluster", name).Msg("snapshot not recorded")
		}
		printReport(report)
	}
	return nil
}

func loggingConfig() telemetry.LoggingConfig {
	cfg := telemetry.DefaultConfig().Logging
	if verbose {
		cfg.Level = "debug"
	}
	if jsonOutput {
		cfg.Format = "json"
	}
	return cfg
}

// openStore opens the state database and makes sure the instance row
// exists so runs and file states can reference it.
func openStore(ctx context.Context, f *config.File) (stores.Store, error) {
	store, err := stores.NewSQLiteStore(stores.Config{Path: f.Store})
	if err != nil {
		return nil, err
	}
	if err := store.Init(ctx); err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}

	if _, err := store.GetInstance(ctx, f.Instance.ID); err != nil {
		now := time.Now().UTC()
		instance := &stores.Instance{
			ID:            f.Instance.ID,
			Host:          f.Instance.Host,
			OSFamily:      f.Instance.OSFamily,
			OSVersion:     f.Instance.OSVersion,
			PackageSource: string(f.PackageSource()),
			Settings:      "{}",
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if blob, err := json.Marshal(f.Settings); err == nil {
			instance.Settings = string(blob)
		}
		if err := store.CreateInstance(ctx, instance); err != nil {
			_ = store.Close()
			return nil, err
		}
	}
	return store, nil
}

func printReport(report *engine.Report) {
	if jsonOutput {
		_ = json.NewEncoder(os.Stdout).Encode(report)
		return
	}
	changed := 0
	for _, file := range report.Files {
		if file.Changed {
			changed++
		}
	}
	fmt.Printf("cluster %s: %d file(s) written, %d changed, service changed: %v, scripts run: %d (%s)\n",
		report.Cluster, len(report.Files), changed, report.ServiceChanged, report.ScriptsRun, report.Duration.Round(time.Millisecond))
}
