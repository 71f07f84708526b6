package pgconf

import (
	"strings"
	"testing"

	"github.com/pgtend/pgtend/pkg/errdefs"
	"github.com/pgtend/pgtend/pkg/settings"
)

func resolvedSettings() settings.Tree {
	return settings.Tree{
		settings.KeyPostgresqlFile: "/etc/postgresql/13/main/postgresql.conf",
		settings.KeyRecoveryFile:   "/var/lib/postgresql/13/main/recovery.conf",
		settings.KeyStartFile:      "/etc/postgresql/13/main/start.conf",
		settings.KeyOptions: map[string]any{
			settings.OptHBAFile: "/etc/postgresql/13/main/pg_hba.conf",
			"port":              5432,
			"shared_buffers":    "24MB",
			"ssl":               false,
		},
		settings.KeyRecovery: map[string]any{
			"standby_mode":    "on",
			"restore_command": "cp /wal/%f %p",
		},
		settings.KeyStart: map[string]any{"mode": "auto"},
		settings.KeyPermissions: []any{
			[]any{"local", "all", "postgres", "trust"},
			[]any{"host", "all", "all", "127.0.0.1/32", "ident"},
		},
	}
}

func TestGenerateHBA(t *testing.T) {
	f, err := Generate(resolvedSettings(), KindHBA)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if f.Path != "/etc/postgresql/13/main/pg_hba.conf" {
		t.Errorf("path = %q", f.Path)
	}
	want := fileHeader +
		"local\tall\tpostgres\t\t\ttrust\t\n" +
		"host\tall\tall\t127.0.0.1/32\t\tident\t\n"
	if f.Content != want {
		t.Errorf("content = %q, want %q", f.Content, want)
	}
}

func TestGeneratePostgresqlSortedDeterministic(t *testing.T) {
	f, err := Generate(resolvedSettings(), KindPostgresql)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	want := fileHeader +
		"hba_file = '/etc/postgresql/13/main/pg_hba.conf'\n" +
		"port = 5432\n" +
		"shared_buffers = '24MB'\n" +
		"ssl = false\n"
	if f.Content != want {
		t.Errorf("content = %q, want %q", f.Content, want)
	}

	// Same input, same bytes.
	again, err := Generate(resolvedSettings(), KindPostgresql)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if again.Content != f.Content {
		t.Error("repeated generation produced different content")
	}
}

func TestGenerateRecovery(t *testing.T) {
	f, err := Generate(resolvedSettings(), KindRecovery)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	want := fileHeader +
		"restore_command = 'cp /wal/%f %p'\n" +
		"standby_mode = 'on'\n"
	if f.Content != want {
		t.Errorf("content = %q, want %q", f.Content, want)
	}
}

func TestGenerateStart(t *testing.T) {
	f, err := Generate(resolvedSettings(), KindStart)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if f.Content != fileHeader+"auto\n" {
		t.Errorf("content = %q", f.Content)
	}
}

func TestGenerateMissingPath(t *testing.T) {
	cs := resolvedSettings()
	delete(cs, settings.KeyPostgresqlFile)

	_, err := Generate(cs, KindPostgresql)
	if err == nil {
		t.Fatal("expected configuration error")
	}
	if !errdefs.IsConfiguration(err) {
		t.Errorf("error kind = %v, want configuration", err)
	}
	if !strings.Contains(err.Error(), settings.KeyPostgresqlFile) {
		t.Errorf("error %q does not name the missing key", err)
	}
}

func TestGenerateInvalidRecordAborts(t *testing.T) {
	cs := resolvedSettings()
	cs[settings.KeyPermissions] = []any{
		[]any{"local", "all", "postgres", "trust"},
		[]any{"host", "all", "all", "127.0.0.1/32", "bogus"},
	}

	_, err := Generate(cs, KindHBA)
	if err == nil {
		t.Fatal("expected invalid record error")
	}
	if !errdefs.IsInvalidRecord(err) {
		t.Errorf("error kind = %v, want invalid record", err)
	}
}

func TestGenerateAll(t *testing.T) {
	files, err := GenerateAll(resolvedSettings())
	if err != nil {
		t.Fatalf("GenerateAll: %v", err)
	}
	if len(files) != 4 {
		t.Fatalf("got %d files, want 4", len(files))
	}

	cs := resolvedSettings()
	delete(cs, settings.KeyRecovery)
	files, err = GenerateAll(cs)
	if err != nil {
		t.Fatalf("GenerateAll: %v", err)
	}
	for _, f := range files {
		if f.Kind == KindRecovery {
			t.Error("recovery file generated without a recovery section")
		}
	}
	if len(files) != 3 {
		t.Errorf("got %d files, want 3", len(files))
	}
}
