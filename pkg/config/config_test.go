package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pgtend/pgtend/pkg/defaults"
	"github.com/pgtend/pgtend/pkg/errdefs"
	"github.com/pgtend/pgtend/pkg/settings"
)

const validSettings = `
instance:
  host: db1.example.com
  os_family: debian
  os_version: "11"
ssh:
  user: deploy
  private_key_path: /home/deploy/.ssh/id_ed25519
settings:
  options:
    shared_buffers: 48MB
clusters:
  main:
    overrides:
      options:
        port: 5433
  reporting:
    variant: hot_standby_replica
    overrides:
      service: postgresql@reporting
    scripts:
      - content: CREATE EXTENSION IF NOT EXISTS pg_stat_statements;
        user: postgres
        database: postgres
`

func TestParseValid(t *testing.T) {
	f, err := Parse([]byte(validSettings))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if f.Instance.ID != "db1.example.com" {
		t.Fatalf("ID = %q, want host fallback", f.Instance.ID)
	}
	if got := f.ClusterNames(); len(got) != 2 || got[0] != "main" || got[1] != "reporting" {
		t.Fatalf("ClusterNames = %v", got)
	}
	if f.Variant("reporting") != settings.VariantHotStandbyReplica {
		t.Fatalf("Variant = %q", f.Variant("reporting"))
	}
	if _, ok := f.OverrideTree("main").Lookup(settings.KeyOptions, "port"); !ok {
		t.Fatal("main override lost options.port")
	}

	scripts := f.ClusterScripts("reporting")
	if len(scripts) != 1 || scripts[0].Database != "postgres" {
		t.Fatalf("ClusterScripts = %+v", scripts)
	}
}

func TestParseRejectsUnknownFamily(t *testing.T) {
	content := strings.Replace(validSettings, "os_family: debian", "os_family: gentoo", 1)
	_, err := Parse([]byte(content))
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !errdefs.IsConfiguration(err) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestParseRejectsBadClusterName(t *testing.T) {
	content := strings.Replace(validSettings, "  main:", "  Main Cluster:", 1)
	if _, err := Parse([]byte(content)); err == nil {
		t.Fatal("expected validation error for cluster name")
	}
}

func TestParseRejectsMissingClusters(t *testing.T) {
	content := `
instance:
  host: db1.example.com
  os_family: debian
  os_version: "11"
`
	if _, err := Parse([]byte(content)); err == nil {
		t.Fatal("expected validation error for missing clusters")
	}
}

func TestParseRejectsBadVariant(t *testing.T) {
	content := strings.Replace(validSettings, "variant: hot_standby_replica", "variant: multi_master", 1)
	if _, err := Parse([]byte(content)); err == nil {
		t.Fatal("expected validation error for variant")
	}
}

func TestPackageSourceSelection(t *testing.T) {
	f, err := Parse([]byte(validSettings))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	// Debian 11 native packages are fine.
	if got := f.PackageSource(); got != defaults.SourceNative {
		t.Fatalf("PackageSource = %q", got)
	}

	content := strings.Replace(validSettings, `os_version: "11"`, `os_version: "10"`, 1)
	f, err = Parse([]byte(content))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := f.PackageSource(); got != defaults.SourceBackports {
		t.Fatalf("PackageSource = %q, want backports for debian 10", got)
	}

	content = strings.Replace(content, "os_family: debian", "package_source: pgdg\n  os_family: debian", 1)
	f, err = Parse([]byte(content))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := f.PackageSource(); got != defaults.SourcePGDG {
		t.Fatalf("PackageSource = %q, want explicit pgdg", got)
	}
}

func TestUserTreeIsDetached(t *testing.T) {
	f, err := Parse([]byte(validSettings))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	tree := f.UserTree()
	options, _ := tree.Map(settings.KeyOptions)
	options["shared_buffers"] = "1GB"

	again := f.UserTree()
	if got, _ := again.StringAt(settings.KeyOptions, "shared_buffers"); got != "48MB" {
		t.Fatalf("UserTree shares state with the file: %q", got)
	}
}

func TestTransportConfig(t *testing.T) {
	f, err := Parse([]byte(validSettings))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	cfg := f.TransportConfig()
	if cfg.Host != "db1.example.com" || cfg.User != "deploy" {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.Port != 22 {
		t.Fatalf("Port = %d, want default 22", cfg.Port)
	}
	if cfg.PrivateKeyPath != "/home/deploy/.ssh/id_ed25519" {
		t.Fatalf("PrivateKeyPath = %q", cfg.PrivateKeyPath)
	}
	if !cfg.StrictHostKeyChecking {
		t.Fatal("strict host key checking must stay on by default")
	}
}

func TestLoadFromDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	if err := os.WriteFile(path, []byte(validSettings), 0600); err != nil {
		t.Fatal(err)
	}
	f, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if f.Instance.Host != "db1.example.com" {
		t.Fatalf("Host = %q", f.Instance.Host)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
