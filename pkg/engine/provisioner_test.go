package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/pgtend/pgtend/pkg/defaults"
	"github.com/pgtend/pgtend/pkg/settings"
)

type mockWriter struct {
	writes     []WriteRequest
	dirs       []string
	changed    map[string]bool
	failOnPath string
}

func (m *mockWriter) Write(_ context.Context, req WriteRequest) (WriteResult, error) {
	if m.failOnPath != "" && req.Path == m.failOnPath {
		return WriteResult{}, errors.New("write failed")
	}
	m.writes = append(m.writes, req)
	return WriteResult{Changed: m.changed[req.Path], Checksum: checksumBytes(req.Content)}, nil
}

func (m *mockWriter) EnsureDirectory(_ context.Context, path, _, _, _ string) error {
	m.dirs = append(m.dirs, path)
	return nil
}

type mockInstaller struct {
	packages []string
	repo     *Repository
	calls    int
}

func (m *mockInstaller) Install(_ context.Context, packages []string, extra *Repository) error {
	m.calls++
	m.packages = packages
	m.repo = extra
	return nil
}

type mockServices struct {
	flags    FlagSource
	requests []ServiceRequest
	applied  []ServiceRequest
}

func (m *mockServices) Apply(_ context.Context, req ServiceRequest) (bool, error) {
	m.requests = append(m.requests, req)
	if req.OnlyIf != "" && m.flags != nil && !m.flags.Changed(req.OnlyIf) {
		return false, nil
	}
	m.applied = append(m.applied, req)
	return true, nil
}

type mockScripts struct {
	runs []ScriptRequest
	err  error
}

func (m *mockScripts) Run(_ context.Context, req ScriptRequest) (ScriptResult, error) {
	m.runs = append(m.runs, req)
	if m.err != nil {
		return ScriptResult{ExitCode: 1}, m.err
	}
	return ScriptResult{}, nil
}

type fixture struct {
	provisioner *Provisioner
	writer      *mockWriter
	installer   *mockInstaller
	services    *mockServices
	scripts     *mockScripts
}

func newFixture(t *testing.T, override settings.Tree) *fixture {
	t.Helper()

	reg, err := NewRegistry().RegisterInstance(debianInstance("inst-1"), nil)
	if err != nil {
		t.Fatalf("RegisterInstance: %v", err)
	}
	reg, err = reg.RegisterCluster("inst-1", "main", override, settings.VariantNone)
	if err != nil {
		t.Fatalf("RegisterCluster: %v", err)
	}

	f := &fixture{
		writer:    &mockWriter{changed: map[string]bool{}},
		installer: &mockInstaller{},
		services:  &mockServices{},
		scripts:   &mockScripts{},
	}
	p, err := NewProvisioner(ProvisionerConfig{
		Registry:  reg,
		Writer:    f.writer,
		Installer: f.installer,
		Services:  f.services,
		Scripts:   f.scripts,
	})
	if err != nil {
		t.Fatalf("NewProvisioner: %v", err)
	}
	f.services.flags = p
	f.provisioner = p
	return f
}

func TestEnsureClusterWritesAllFiles(t *testing.T) {
	f := newFixture(t, nil)

	report, err := f.provisioner.EnsureCluster(context.Background(), "inst-1", "main", EnsureOptions{})
	if err != nil {
		t.Fatalf("EnsureCluster: %v", err)
	}

	// pg_hba, postgresql, start; the debian defaults have no recovery
	// section.
	if len(report.Files) != 3 {
		t.Fatalf("wrote %d files, want 3: %+v", len(report.Files), report.Files)
	}
	for _, w := range f.writer.writes {
		if w.Owner != "postgres" || w.Mode != "0640" {
			t.Errorf("write %s owner=%s mode=%s", w.Path, w.Owner, w.Mode)
		}
		if w.ChangeFlag != ConfigChangedFlag {
			t.Errorf("write %s change flag = %q", w.Path, w.ChangeFlag)
		}
		if !w.Literal {
			t.Errorf("write %s not literal", w.Path)
		}
	}
	if f.installer.calls != 1 {
		t.Errorf("installer calls = %d", f.installer.calls)
	}
	if len(f.writer.dirs) == 0 {
		t.Error("no directories ensured")
	}
}

func TestEnsureClusterRestartOnlyOnChange(t *testing.T) {
	f := newFixture(t, nil)

	// No file content changed: restart must be skipped.
	report, err := f.provisioner.EnsureCluster(context.Background(), "inst-1", "main", EnsureOptions{})
	if err != nil {
		t.Fatalf("EnsureCluster: %v", err)
	}
	if report.ServiceChanged {
		t.Error("service restarted with unchanged configuration")
	}
	for _, req := range f.services.applied {
		if req.Action == ActionRestart {
			t.Error("restart applied with unchanged configuration")
		}
	}

	// Mark the parameter file as changed and run again.
	f2 := newFixture(t, nil)
	f2.writer.changed["/etc/postgresql/13/main/postgresql.conf"] = true
	report, err = f2.provisioner.EnsureCluster(context.Background(), "inst-1", "main", EnsureOptions{})
	if err != nil {
		t.Fatalf("EnsureCluster: %v", err)
	}
	if !report.ServiceChanged {
		t.Error("service not restarted after configuration change")
	}
}

func TestEnsureClusterDisabledMode(t *testing.T) {
	f := newFixture(t, settings.Tree{
		settings.KeyStart: map[string]any{"mode": "disabled"},
	})

	_, err := f.provisioner.EnsureCluster(context.Background(), "inst-1", "main", EnsureOptions{})
	if err != nil {
		t.Fatalf("EnsureCluster: %v", err)
	}

	var actions []ServiceAction
	for _, req := range f.services.applied {
		actions = append(actions, req.Action)
	}
	if len(actions) != 2 || actions[0] != ActionStop || actions[1] != ActionDisable {
		t.Errorf("actions = %v, want [stop disable]", actions)
	}
}

func TestEnsureClusterGenerationFailureAbortsEarly(t *testing.T) {
	// An invalid permissions record must abort before any package
	// installation or write happens.
	f := newFixture(t, settings.Tree{
		settings.KeyPermissions: []any{
			[]any{"host", "all", "all", "127.0.0.1/32", "bogus"},
		},
	})

	_, err := f.provisioner.EnsureCluster(context.Background(), "inst-1", "main", EnsureOptions{})
	if err == nil {
		t.Fatal("expected generation error")
	}
	if f.installer.calls != 0 {
		t.Error("packages installed despite generation failure")
	}
	if len(f.writer.writes) != 0 {
		t.Error("files written despite generation failure")
	}
}

func TestEnsureClusterSkipPackages(t *testing.T) {
	f := newFixture(t, nil)

	report, err := f.provisioner.EnsureCluster(context.Background(), "inst-1", "main", EnsureOptions{SkipPackages: true})
	if err != nil {
		t.Fatalf("EnsureCluster: %v", err)
	}
	if f.installer.calls != 0 {
		t.Error("installer called with SkipPackages")
	}
	if report.PackagesInstalled {
		t.Error("report claims packages installed")
	}
}

func TestEnsureClusterScripts(t *testing.T) {
	f := newFixture(t, nil)

	report, err := f.provisioner.EnsureCluster(context.Background(), "inst-1", "main", EnsureOptions{
		Scripts: []ScriptRequest{
			{Content: "CREATE ROLE app LOGIN;", User: "postgres", Database: "postgres"},
			{Content: "exit 1", User: "postgres", IgnoreFailure: true},
		},
	})
	if err != nil {
		t.Fatalf("EnsureCluster: %v", err)
	}
	if report.ScriptsRun != 2 {
		t.Errorf("scripts run = %d", report.ScriptsRun)
	}
	if len(f.scripts.runs) != 2 {
		t.Errorf("runner saw %d scripts", len(f.scripts.runs))
	}
}

func TestEnsureClusterScriptFailureAborts(t *testing.T) {
	f := newFixture(t, nil)
	f.scripts.err = errors.New("syntax error")

	_, err := f.provisioner.EnsureCluster(context.Background(), "inst-1", "main", EnsureOptions{
		Scripts: []ScriptRequest{{Content: "bad sql", User: "postgres"}},
	})
	if err == nil {
		t.Fatal("expected script failure to abort the run")
	}
}

func TestRepositoryFromTree(t *testing.T) {
	reg, err := NewRegistry().RegisterInstance(InstanceInfo{
		ID:            "inst-pgdg",
		Host:          "db2.example.com",
		OSFamily:      defaults.FamilyRHEL,
		OSVersion:     "8",
		PackageSource: defaults.SourcePGDG,
	}, nil)
	if err != nil {
		t.Fatalf("RegisterInstance: %v", err)
	}

	global, err := reg.Global("inst-pgdg")
	if err != nil {
		t.Fatalf("Global: %v", err)
	}
	repo := RepositoryFromTree(global)
	if repo == nil {
		t.Fatal("no repository from pgdg tree")
	}
	if repo.Name != "pgdg" || repo.URL == "" {
		t.Errorf("repository = %+v", repo)
	}

	if repo := RepositoryFromTree(settings.Tree{}); repo != nil {
		t.Errorf("repository from empty tree = %+v", repo)
	}
}
