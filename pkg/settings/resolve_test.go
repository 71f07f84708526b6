package settings

import (
	"testing"

	"github.com/pgtend/pgtend/pkg/errdefs"
)

func testGlobalTree() Tree {
	return Tree{
		KeyVersion:        "13",
		KeyOwner:          "postgres",
		KeyService:        "postgresql@%s",
		KeyDefaultCluster: "main",
		KeyDefaultService: "postgresql",
		KeyWALDirectory:   "/var/lib/postgresql/wal",
		KeyPostgresqlFile: "/etc/postgresql/13/%s/postgresql.conf",
		KeyOptions: map[string]any{
			OptDataDirectory:   "/var/lib/postgresql/13/%s",
			OptHBAFile:         "/etc/postgresql/13/%s/pg_hba.conf",
			OptExternalPIDFile: "/var/run/postgresql/13-%s.pid",
			OptPort:            5432,
		},
		KeyClusters: map[string]any{
			"main": map[string]any{},
		},
	}
}

func TestResolveClusterExpandsAndDerives(t *testing.T) {
	resolved, err := ResolveCluster("main", Tree{}, testGlobalTree())
	if err != nil {
		t.Fatalf("ResolveCluster: %v", err)
	}

	if v, _ := resolved.StringAt(KeyOptions, OptDataDirectory); v != "/var/lib/postgresql/13/main" {
		t.Errorf("data_directory = %q", v)
	}
	if v, _ := resolved.String(KeyRecoveryFile); v != "/var/lib/postgresql/13/main/recovery.conf" {
		t.Errorf("recovery_file = %q", v)
	}
	if v, _ := resolved.String(KeyStartFile); v != "/etc/postgresql/13/main/start.conf" {
		t.Errorf("start_file = %q", v)
	}
	if _, ok := resolved.Map(KeyClusters); ok {
		t.Error("clusters section leaked into resolved tree")
	}
}

func TestResolveClusterOverrideWins(t *testing.T) {
	override := Tree{KeyOptions: map[string]any{OptPort: 5440}}

	resolved, err := ResolveCluster("main", override, testGlobalTree())
	if err != nil {
		t.Fatalf("ResolveCluster: %v", err)
	}

	if p, _ := resolved.Lookup(KeyOptions, OptPort); p != 5440 {
		t.Errorf("port = %v, want 5440", p)
	}
	// The rest of the options map survives the override.
	if v, _ := resolved.StringAt(KeyOptions, OptHBAFile); v != "/etc/postgresql/13/main/pg_hba.conf" {
		t.Errorf("hba_file = %q", v)
	}
}

func TestResolveClusterDefaultService(t *testing.T) {
	resolved, err := ResolveCluster("main", Tree{}, testGlobalTree())
	if err != nil {
		t.Fatalf("ResolveCluster: %v", err)
	}
	if v, _ := resolved.String(KeyService); v != "postgresql" {
		t.Errorf("default cluster service = %q, want %q", v, "postgresql")
	}

	resolved, err = ResolveCluster("reporting", Tree{}, testGlobalTree())
	if err != nil {
		t.Fatalf("ResolveCluster: %v", err)
	}
	if v, _ := resolved.String(KeyService); v != "postgresql@reporting" {
		t.Errorf("non-default cluster service = %q, want %q", v, "postgresql@reporting")
	}
}

func TestResolveClusterPIDFilePort(t *testing.T) {
	g := testGlobalTree()
	g[KeyUsePortInPID] = true
	opts := g[KeyOptions].(map[string]any)
	opts[OptExternalPIDFile] = "/var/run/postgresql/%s-%d.pid"

	resolved, err := ResolveCluster("main", Tree{KeyOptions: map[string]any{OptPort: 5433}}, g)
	if err != nil {
		t.Fatalf("ResolveCluster: %v", err)
	}
	if v, _ := resolved.StringAt(KeyOptions, OptExternalPIDFile); v != "/var/run/postgresql/main-5433.pid" {
		t.Errorf("external_pid_file = %q", v)
	}
}

func TestResolveClusterRejectsPlaceholderInOverride(t *testing.T) {
	override := Tree{KeyOptions: map[string]any{OptDataDirectory: "/srv/%s/data"}}

	_, err := ResolveCluster("main", override, testGlobalTree())
	if err == nil {
		t.Fatal("expected configuration error for placeholder in override")
	}
	if !errdefs.IsConfiguration(err) {
		t.Errorf("error kind = %v, want configuration", err)
	}
}

func TestApplyVariantMaster(t *testing.T) {
	resolved, err := ResolveCluster("main", Tree{}, testGlobalTree())
	if err != nil {
		t.Fatalf("ResolveCluster: %v", err)
	}

	out, err := ApplyVariant(resolved, VariantHotStandbyMaster)
	if err != nil {
		t.Fatalf("ApplyVariant: %v", err)
	}

	if v, _ := out.Lookup(KeyOptions, "wal_level"); v != "hot_standby" {
		t.Errorf("wal_level = %v", v)
	}
	wantArchive := "test ! -f /var/lib/postgresql/wal/%f && cp %p /var/lib/postgresql/wal/%f"
	if v, _ := out.Lookup(KeyOptions, "archive_command"); v != wantArchive {
		t.Errorf("archive_command = %v, want %q", v, wantArchive)
	}
	// The base options survive the overlay.
	if p, _ := out.Lookup(KeyOptions, OptPort); p != 5432 {
		t.Errorf("port = %v", p)
	}
}

func TestApplyVariantReplica(t *testing.T) {
	resolved, err := ResolveCluster("main", Tree{}, testGlobalTree())
	if err != nil {
		t.Fatalf("ResolveCluster: %v", err)
	}

	out, err := ApplyVariant(resolved, VariantHotStandbyReplica)
	if err != nil {
		t.Fatalf("ApplyVariant: %v", err)
	}

	if v, _ := out.Lookup(KeyOptions, "hot_standby"); v != "on" {
		t.Errorf("hot_standby = %v", v)
	}
	if v, _ := out.Lookup(KeyRecovery, "trigger_file"); v != "/var/lib/postgresql/13/main/failover.trigger" {
		t.Errorf("trigger_file = %v", v)
	}
	if v, _ := out.Lookup(KeyRecovery, "restore_command"); v != "cp /var/lib/postgresql/wal/%f %p" {
		t.Errorf("restore_command = %v", v)
	}
}

func TestApplyVariantUnknown(t *testing.T) {
	_, err := ApplyVariant(Tree{}, Variant("cascade"))
	if err == nil {
		t.Fatal("expected error for unknown variant")
	}
	if !errdefs.IsUnsupported(err) {
		t.Errorf("error kind = %v, want unsupported", err)
	}
}
