package commands

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const testSettings = `
instance:
  host: db1.example.com
  os_family: debian
  os_version: "11"
ssh:
  user: deploy
settings:
  options:
    shared_buffers: 48MB
clusters:
  main:
    overrides:
      options:
        port: 5433
`

func writeSettings(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pgtend.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadRegistry(t *testing.T) {
	path := writeSettings(t, testSettings)

	f, registry, err := loadRegistry(path)
	if err != nil {
		t.Fatalf("loadRegistry: %v", err)
	}
	if got := registry.Clusters(f.Instance.ID); len(got) != 1 || got[0] != "main" {
		t.Fatalf("Clusters = %v", got)
	}

	resolved, err := registry.Resolved(f.Instance.ID, "main")
	if err != nil {
		t.Fatalf("Resolved: %v", err)
	}
	if got, _ := resolved.StringAt("options", "data_directory"); !strings.Contains(got, "main") {
		t.Fatalf("data_directory = %q, placeholder not expanded", got)
	}
	if got, _ := resolved.StringAt("options", "shared_buffers"); got != "48MB" {
		t.Fatalf("shared_buffers = %q, global setting lost", got)
	}
}

func TestLoadRegistryRejectsInvalidSettings(t *testing.T) {
	path := writeSettings(t, strings.Replace(testSettings, "os_family: debian", "os_family: plan9", 1))
	if _, _, err := loadRegistry(path); err == nil {
		t.Fatal("expected error for unsupported OS family")
	}
}

func TestRenderCommandWritesFiles(t *testing.T) {
	settingsPath = writeSettings(t, testSettings)
	outDir := t.TempDir()

	cmd := newRenderCommand()
	cmd.SetArgs([]string{"main", "--out", outDir})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("render: %v", err)
	}

	for _, name := range []string{"pg_hba.conf", "postgresql.conf", "start.conf"} {
		if _, err := os.Stat(filepath.Join(outDir, "main", name)); err != nil {
			t.Fatalf("missing rendered file %s: %v", name, err)
		}
	}

	content, err := os.ReadFile(filepath.Join(outDir, "main", "postgresql.conf"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(content), "port = 5433\n") {
		t.Fatalf("postgresql.conf missing override:\n%s", content)
	}
}

func TestValidateCommand(t *testing.T) {
	settingsPath = writeSettings(t, testSettings)

	cmd := newValidateCommand()
	cmd.SetArgs([]string{})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}
