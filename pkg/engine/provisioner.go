package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"time"

	"github.com/google/uuid"

	"github.com/pgtend/pgtend/pkg/errdefs"
	"github.com/pgtend/pgtend/pkg/pgconf"
	"github.com/pgtend/pgtend/pkg/settings"
	"github.com/pgtend/pgtend/pkg/stores"
	"github.com/pgtend/pgtend/pkg/telemetry"
)

// ConfigChangedFlag is the change flag all generated configuration
// files raise; the service restart condition keys on it.
const ConfigChangedFlag = "config"

// FileOutcome reports one written configuration file.
type FileOutcome struct {
	Kind     pgconf.Kind
	Path     string
	Changed  bool
	Checksum string
}

// Report summarizes one provisioning run.
type Report struct {
	RunID             string
	InstanceID        string
	Cluster           string
	Files             []FileOutcome
	PackagesInstalled bool
	ServiceChanged    bool
	ScriptsRun        int
	Duration          time.Duration
}

// EnsureOptions tune a provisioning run.
type EnsureOptions struct {
	// SkipPackages leaves package installation out of the run.
	SkipPackages bool

	// Scripts run on the host after the service is up.
	Scripts []ScriptRequest
}

// Provisioner drives one instance's clusters to their resolved
// configuration. All side effects go through the collaborators; the
// Provisioner itself only sequences them and tracks change flags.
type Provisioner struct {
	registry  *Registry
	writer    FileWriter
	installer PackageInstaller
	services  ServiceController
	scripts   ScriptRunner
	store     stores.Store
	logger    *telemetry.Logger
	metrics   *telemetry.Metrics

	flags map[string]bool
}

// ProvisionerConfig wires a Provisioner. Store and Metrics are
// optional; Logger falls back to a default when nil.
type ProvisionerConfig struct {
	Registry  *Registry
	Writer    FileWriter
	Installer PackageInstaller
	Services  ServiceController
	Scripts   ScriptRunner
	Store     stores.Store
	Logger    *telemetry.Logger
	Metrics   *telemetry.Metrics
}

// NewProvisioner validates the wiring and returns a Provisioner.
func NewProvisioner(cfg ProvisionerConfig) (*Provisioner, error) {
	if cfg.Registry == nil {
		return nil, errdefs.NewConfiguration("provisioner needs a registry")
	}
	if cfg.Writer == nil || cfg.Installer == nil || cfg.Services == nil || cfg.Scripts == nil {
		return nil, errdefs.NewConfiguration("provisioner needs all collaborators")
	}
	logger := cfg.Logger
	if logger == nil {
		l, err := telemetry.NewLogger(telemetry.DefaultConfig().Logging)
		if err != nil {
			return nil, err
		}
		logger = l
	}
	return &Provisioner{
		registry:  cfg.Registry,
		writer:    cfg.Writer,
		installer: cfg.Installer,
		services:  cfg.Services,
		scripts:   cfg.Scripts,
		store:     cfg.Store,
		logger:    logger.NewComponentLogger("provisioner"),
		metrics:   cfg.Metrics,
		flags:     map[string]bool{},
	}, nil
}

// Changed reports whether a change flag was raised during the current
// run. Provisioner implements FlagSource for the service controller.
func (p *Provisioner) Changed(flag string) bool {
	return p.flags[flag]
}

// EnsureCluster provisions one cluster: render every configuration
// file first (so any invalid settings abort before the host is
// touched), then install packages, create directories, write the
// files, adjust the service, and run the post-provision scripts.
func (p *Provisioner) EnsureCluster(ctx context.Context, instanceID, cluster string, opts EnsureOptions) (*Report, error) {
	start := time.Now()
	runID := uuid.New().String()
	log := p.logger.WithRunID(runID).WithInstance(instanceID).WithCluster(cluster)
	p.flags = map[string]bool{}

	report := &Report{RunID: runID, InstanceID: instanceID, Cluster: cluster}
	p.recordRunStart(ctx, runID, instanceID)

	err := p.ensureCluster(ctx, log, report, instanceID, cluster, opts)
	report.Duration = time.Since(start)

	if p.metrics != nil {
		outcome := "completed"
		if err != nil {
			outcome = "failed"
		}
		p.metrics.ApplyRunsTotal.WithLabelValues(outcome).Inc()
		p.metrics.ApplyDuration.WithLabelValues(instanceID).Observe(report.Duration.Seconds())
	}
	p.recordRunEnd(ctx, runID, err)

	if err != nil {
		log.WithError(err).Error("provisioning failed")
		return nil, err
	}
	log.Infof("provisioning completed in %s", report.Duration)
	return report, nil
}

func (p *Provisioner) ensureCluster(ctx context.Context, log *telemetry.Logger, report *Report, instanceID, cluster string, opts EnsureOptions) error {
	resolved, err := p.registry.Resolved(instanceID, cluster)
	if err != nil {
		return err
	}
	if p.metrics != nil {
		p.metrics.ResolutionsTotal.WithLabelValues(instanceID, cluster).Inc()
	}

	// Render everything up front. A generation failure must abort the
	// run before any package or file lands on the host.
	files, err := pgconf.GenerateAll(resolved)
	if err != nil {
		if p.metrics != nil {
			p.metrics.GenerationFailuresTotal.WithLabelValues(errorKind(err)).Inc()
		}
		return err
	}
	if p.metrics != nil {
		for _, f := range files {
			p.metrics.FilesGeneratedTotal.WithLabelValues(string(f.Kind)).Inc()
		}
	}

	if !opts.SkipPackages {
		if err := p.installPackages(ctx, log, resolved); err != nil {
			return err
		}
		report.PackagesInstalled = true
	}

	if err := p.ensureDirectories(ctx, resolved); err != nil {
		return err
	}

	if err := p.writeFiles(ctx, log, report, resolved, files, instanceID, cluster); err != nil {
		return err
	}

	changed, err := p.adjustService(ctx, log, resolved)
	if err != nil {
		return err
	}
	report.ServiceChanged = changed

	for _, script := range opts.Scripts {
		result, err := p.scripts.Run(ctx, script)
		if err != nil && !script.IgnoreFailure {
			return fmt.Errorf("post-provision script: %w", err)
		}
		if err != nil {
			log.WithError(err).Warnf("ignoring failed script (exit %d)", result.ExitCode)
		}
		report.ScriptsRun++
	}

	return nil
}

func (p *Provisioner) installPackages(ctx context.Context, log *telemetry.Logger, resolved settings.Tree) error {
	packages := resolved.Strings(settings.KeyPackages)
	if len(packages) == 0 {
		return nil
	}
	log.Debugf("installing %d packages", len(packages))
	if err := p.installer.Install(ctx, packages, RepositoryFromTree(resolved)); err != nil {
		return fmt.Errorf("installing packages: %w", err)
	}
	return nil
}

func (p *Provisioner) ensureDirectories(ctx context.Context, resolved settings.Tree) error {
	owner, _ := resolved.String(settings.KeyOwner)
	dirs := []string{}
	if dataDir, ok := resolved.StringAt(settings.KeyOptions, settings.OptDataDirectory); ok {
		dirs = append(dirs, dataDir)
	}
	if walDir, ok := resolved.String(settings.KeyWALDirectory); ok {
		dirs = append(dirs, walDir)
	}
	if pgFile, ok := resolved.String(settings.KeyPostgresqlFile); ok {
		dirs = append(dirs, path.Dir(pgFile))
	}
	for _, dir := range dirs {
		if err := p.writer.EnsureDirectory(ctx, dir, owner, owner, "0700"); err != nil {
			return fmt.Errorf("ensuring directory %s: %w", dir, err)
		}
	}
	return nil
}

func (p *Provisioner) writeFiles(ctx context.Context, log *telemetry.Logger, report *Report, resolved settings.Tree, files []pgconf.File, instanceID, cluster string) error {
	owner, _ := resolved.String(settings.KeyOwner)
	for _, f := range files {
		result, err := p.writer.Write(ctx, WriteRequest{
			Path:       f.Path,
			Content:    []byte(f.Content),
			Owner:      owner,
			Group:      owner,
			Mode:       "0640",
			Literal:    true,
			ChangeFlag: ConfigChangedFlag,
		})
		if err != nil {
			return fmt.Errorf("writing %s: %w", f.Path, err)
		}
		if result.Changed {
			p.flags[ConfigChangedFlag] = true
			log.Debugf("%s changed", f.Path)
		}
		if p.metrics != nil {
			p.metrics.RemoteWritesTotal.WithLabelValues(fmt.Sprint(result.Changed)).Inc()
		}
		report.Files = append(report.Files, FileOutcome{
			Kind:     f.Kind,
			Path:     f.Path,
			Changed:  result.Changed,
			Checksum: result.Checksum,
		})
		p.recordFileState(ctx, report.RunID, instanceID, cluster, f, result)
	}
	return nil
}

// adjustService enacts the cluster's start mode: auto enables the unit
// on boot and restarts it when the configuration changed, manual only
// restarts on change, disabled stops the unit and keeps it off.
func (p *Provisioner) adjustService(ctx context.Context, log *telemetry.Logger, resolved settings.Tree) (bool, error) {
	service, ok := resolved.String(settings.KeyService)
	if !ok || service == "" {
		return false, errdefs.NewConfiguration("no service identifier in resolved settings").WithKey(settings.KeyService)
	}
	mode, _ := resolved.StringAt(settings.KeyStart, "mode")

	apply := func(action ServiceAction, onlyIf string) (bool, error) {
		performed, err := p.services.Apply(ctx, ServiceRequest{Name: service, Action: action, OnlyIf: onlyIf})
		if err != nil {
			return false, fmt.Errorf("service %s %s: %w", service, action, err)
		}
		if p.metrics != nil {
			result := "performed"
			if !performed {
				result = "skipped"
			}
			p.metrics.ServiceActionsTotal.WithLabelValues(string(action), result).Inc()
		}
		return performed, nil
	}

	switch mode {
	case "auto", "":
		if _, err := apply(ActionEnable, ""); err != nil {
			return false, err
		}
		if _, err := apply(ActionStart, ""); err != nil {
			return false, err
		}
		return apply(ActionRestart, ConfigChangedFlag)
	case "manual":
		return apply(ActionRestart, ConfigChangedFlag)
	case "disabled":
		if _, err := apply(ActionStop, ""); err != nil {
			return false, err
		}
		return apply(ActionDisable, "")
	default:
		return false, errdefs.NewInvalidParameter(
			fmt.Sprintf("unknown start mode %q", mode), mode).WithKey("start.mode")
	}
}

func (p *Provisioner) recordRunStart(ctx context.Context, runID, instanceID string) {
	if p.store == nil {
		return
	}
	now := time.Now().UTC()
	err := p.store.CreateRun(ctx, &stores.Run{
		ID:         runID,
		InstanceID: instanceID,
		Status:     stores.RunStatusRunning,
		StartedAt:  now,
		CreatedAt:  now,
		UpdatedAt:  now,
	})
	if err != nil {
		p.logger.WithError(err).Warn("recording run start")
	}
}

func (p *Provisioner) recordRunEnd(ctx context.Context, runID string, runErr error) {
	if p.store == nil {
		return
	}
	status := stores.RunStatusCompleted
	var msg *string
	if runErr != nil {
		status = stores.RunStatusFailed
		s := runErr.Error()
		msg = &s
	}
	if err := p.store.UpdateRunStatus(ctx, runID, status, msg); err != nil {
		p.logger.WithError(err).Warn("recording run end")
	}
}

func (p *Provisioner) recordFileState(ctx context.Context, runID, instanceID, cluster string, f pgconf.File, result WriteResult) {
	if p.store == nil {
		return
	}
	now := time.Now().UTC()
	err := p.store.UpsertFileState(ctx, &stores.FileState{
		ID:         uuid.New().String(),
		InstanceID: instanceID,
		Cluster:    cluster,
		Kind:       string(f.Kind),
		Path:       f.Path,
		Checksum:   result.Checksum,
		LastRunID:  runID,
		WrittenAt:  now,
		CreatedAt:  now,
		UpdatedAt:  now,
	})
	if err != nil {
		p.logger.WithError(err).Warn("recording file state")
	}
}

// SnapshotCluster persists an instance's resolved cluster tree so later
// runs can detect drift without re-resolving.
func (p *Provisioner) SnapshotCluster(ctx context.Context, instanceID, cluster string) error {
	if p.store == nil {
		return nil
	}
	resolved, err := p.registry.Resolved(instanceID, cluster)
	if err != nil {
		return err
	}
	variant, err := p.registry.Variant(instanceID, cluster)
	if err != nil {
		return err
	}
	blob, err := json.Marshal(resolved)
	if err != nil {
		return fmt.Errorf("encoding resolved settings: %w", err)
	}
	now := time.Now().UTC()
	return p.store.UpsertCluster(ctx, &stores.Cluster{
		ID:         uuid.New().String(),
		InstanceID: instanceID,
		Name:       cluster,
		Variant:    string(variant),
		Overrides:  "{}",
		Resolved:   string(blob),
		Hash:       checksumBytes(blob),
		CreatedAt:  now,
		UpdatedAt:  now,
	})
}

func errorKind(err error) string {
	switch {
	case errdefs.IsConfiguration(err):
		return string(errdefs.KindConfiguration)
	case errdefs.IsInvalidRecord(err):
		return string(errdefs.KindInvalidRecord)
	case errdefs.IsInvalidParameter(err):
		return string(errdefs.KindInvalidParameter)
	case errdefs.IsUnsupported(err):
		return string(errdefs.KindUnsupported)
	default:
		return "other"
	}
}
