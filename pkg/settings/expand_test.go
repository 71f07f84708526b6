package settings

import "testing"

func TestExpandString(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"single", "/var/lib/postgresql/13/%s", "/var/lib/postgresql/13/main"},
		{"multiple", "%s-%s", "main-main"},
		{"none", "/etc/postgresql", "/etc/postgresql"},
		{"whole", "%s", "main"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExpandString(tt.in, "main"); got != tt.want {
				t.Errorf("ExpandString(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestExpandTree(t *testing.T) {
	in := Tree{
		KeyService:        "postgresql@%s",
		KeyPostgresqlFile: "/etc/postgresql/13/%s/postgresql.conf",
		KeyOptions: map[string]any{
			OptDataDirectory: "/var/lib/postgresql/13/%s",
			OptPort:          5432,
		},
		KeyPermissions: []any{
			[]any{"local", "all", "postgres", "trust"},
		},
		KeyClusters: map[string]any{"other": map[string]any{}},
	}

	out := ExpandTree(in, "main")

	if v, _ := out.String(KeyService); v != "postgresql@main" {
		t.Errorf("service = %q", v)
	}
	if v, _ := out.StringAt(KeyOptions, OptDataDirectory); v != "/var/lib/postgresql/13/main" {
		t.Errorf("data_directory = %q", v)
	}
	if p, _ := out.Lookup(KeyOptions, OptPort); p != 5432 {
		t.Errorf("port = %v, want untouched 5432", p)
	}

	// Permission records and the clusters section pass through verbatim.
	perms, _ := out.List(KeyPermissions)
	if len(perms) != 1 {
		t.Fatalf("permissions = %v", perms)
	}
	if _, ok := out.Map(KeyClusters); !ok {
		t.Error("clusters section lost during expansion")
	}
}

func TestExpandTreeIdempotent(t *testing.T) {
	in := Tree{KeyService: "postgresql@%s"}

	once := ExpandTree(in, "main")
	twice := ExpandTree(once, "main")

	a, _ := once.String(KeyService)
	b, _ := twice.String(KeyService)
	if a != b {
		t.Errorf("second expansion changed value: %q vs %q", a, b)
	}
}

func TestFindPlaceholder(t *testing.T) {
	in := Tree{
		KeyService: "postgresql@main",
		KeyOptions: map[string]any{OptHBAFile: "/etc/postgresql/13/%s/pg_hba.conf"},
	}

	key, found := findPlaceholder(in)
	if !found {
		t.Fatal("expected remaining placeholder to be reported")
	}
	if key != "options.hba_file" {
		t.Errorf("key = %q, want options.hba_file", key)
	}

	clean := Tree{KeyService: "postgresql@main"}
	if _, found := findPlaceholder(clean); found {
		t.Error("clean tree reported a placeholder")
	}
}
