package defaults

import (
	"testing"

	"github.com/pgtend/pgtend/pkg/errdefs"
	"github.com/pgtend/pgtend/pkg/settings"
)

func TestResolveNative(t *testing.T) {
	tree, err := Resolve(FamilyDebian, SourceNative, nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	if v, _ := tree.String(settings.KeyOwner); v != "postgres" {
		t.Errorf("owner = %q", v)
	}
	if v, _ := tree.String(settings.KeyService); v != "postgresql@13-%s" {
		t.Errorf("service = %q, want unexpanded template", v)
	}
	if _, ok := tree.Map(settings.KeyExtraRepository); ok {
		t.Error("native tree carries an extra repository")
	}
}

func TestResolveUserOverrides(t *testing.T) {
	user := settings.Tree{
		settings.KeyOptions: map[string]any{settings.OptPort: 5433},
	}

	tree, err := Resolve(FamilyDebian, SourceNative, user)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	if p, _ := tree.Lookup(settings.KeyOptions, settings.OptPort); p != 5433 {
		t.Errorf("port = %v, want 5433", p)
	}
	if v, _ := tree.StringAt(settings.KeyOptions, settings.OptDataDirectory); v == "" {
		t.Error("base options lost under user override")
	}
}

func TestResolvePGDGExtendsNative(t *testing.T) {
	tree, err := Resolve(FamilyRHEL, SourcePGDG, nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	if v, _ := tree.String(settings.KeyBinDirectory); v != "/usr/pgsql-16/bin" {
		t.Errorf("bin_directory = %q", v)
	}
	if v, _ := tree.String(settings.KeyService); v != "postgresql-16" {
		t.Errorf("service = %q", v)
	}
	repo, ok := tree.Map(settings.KeyExtraRepository)
	if !ok {
		t.Fatal("pgdg tree missing extra repository")
	}
	if repo["name"] != "pgdg" {
		t.Errorf("repository name = %v", repo["name"])
	}
	// Inherited from the native base, not restated by the overlay.
	if v, _ := tree.String(settings.KeyOwner); v != "postgres" {
		t.Errorf("owner = %q, want inherited %q", v, "postgres")
	}
	if !tree.Bool(settings.KeyUsePortInPID) {
		t.Error("use_port_in_pid_file not inherited from native base")
	}
}

func TestResolveFallsBackToNative(t *testing.T) {
	// No backports channel exists for RHEL; the family's native tree
	// serves as the fallback.
	tree, err := Resolve(FamilyRHEL, SourceBackports, nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if v, _ := tree.String(settings.KeyService); v != "postgresql" {
		t.Errorf("service = %q, want native %q", v, "postgresql")
	}
}

func TestResolveUnsupportedFamily(t *testing.T) {
	_, err := Resolve(OSFamily("plan9"), SourceNative, nil)
	if err == nil {
		t.Fatal("expected error for unsupported OS family")
	}
	if !errdefs.IsUnsupported(err) {
		t.Errorf("error kind = %v, want unsupported", err)
	}
}

func TestSelectPackageSource(t *testing.T) {
	tests := []struct {
		family  OSFamily
		version string
		want    PackageSource
	}{
		{FamilyDebian, "10", SourceBackports},
		{FamilyDebian, "9", SourcePGDG},
		{FamilyDebian, "12", SourceNative},
		{FamilyUbuntu, "18.04", SourcePGDG},
		{FamilyUbuntu, "22.04", SourceNative},
		{FamilyRHEL, "7", SourcePGDG},
		{FamilyRHEL, "9", SourceNative},
	}
	for _, tt := range tests {
		if got := SelectPackageSource(tt.family, tt.version); got != tt.want {
			t.Errorf("SelectPackageSource(%s, %s) = %s, want %s", tt.family, tt.version, got, tt.want)
		}
	}
}
