package defaults

import "github.com/pgtend/pgtend/pkg/settings"

// Base trees per OS family. String leaves may contain the cluster-name
// placeholder; cluster resolution expands them. Each function returns a
// fresh tree so callers can merge without sharing state.

func debianNative() settings.Tree {
	return settings.Tree{
		settings.KeyVersion: "13",
		settings.KeyOwner:   "postgres",
		settings.KeyPackages: []any{
			"postgresql-13",
			"postgresql-client-13",
			"postgresql-contrib-13",
		},
		settings.KeyBinDirectory:   "/usr/lib/postgresql/13/bin",
		settings.KeyService:        "postgresql@13-%s",
		settings.KeyDefaultCluster: "main",
		settings.KeyDefaultService: "postgresql",
		settings.KeyWALDirectory:   "/var/lib/postgresql/13/%s/wal_archive",
		settings.KeyPostgresqlFile: "/etc/postgresql/13/%s/postgresql.conf",
		settings.KeyOptions: map[string]any{
			settings.OptDataDirectory:   "/var/lib/postgresql/13/%s",
			settings.OptHBAFile:         "/etc/postgresql/13/%s/pg_hba.conf",
			settings.OptExternalPIDFile: "/var/run/postgresql/13-%s.pid",
			settings.OptPort:            5432,
			"unix_socket_directories":   "/var/run/postgresql",
			"ssl":                       false,
			"shared_buffers":            "128MB",
			"log_line_prefix":           "%t ",
			"listen_addresses":          "localhost",
		},
		settings.KeyStart: map[string]any{
			"mode": "auto",
		},
		settings.KeyPermissions: []any{
			[]any{"local", "all", "postgres", "ident"},
			[]any{"local", "all", "all", "ident"},
			[]any{"host", "all", "all", "127.0.0.1/32", "md5"},
			[]any{"host", "all", "all", "::1/128", "md5"},
		},
	}
}

func ubuntuNative() settings.Tree {
	// Ubuntu packaging follows Debian's cluster tooling wholesale.
	return debianNative()
}

func rhelNative() settings.Tree {
	return settings.Tree{
		settings.KeyVersion: "13",
		settings.KeyOwner:   "postgres",
		settings.KeyPackages: []any{
			"postgresql-server",
			"postgresql",
			"postgresql-contrib",
		},
		settings.KeyBinDirectory:   "/usr/bin",
		settings.KeyService:        "postgresql",
		settings.KeyDefaultCluster: "main",
		settings.KeyDefaultService: "postgresql",
		settings.KeyUsePortInPID:   true,
		settings.KeyWALDirectory:   "/var/lib/pgsql/wal_archive/%s",
		settings.KeyPostgresqlFile: "/var/lib/pgsql/data/postgresql.conf",
		settings.KeyOptions: map[string]any{
			settings.OptDataDirectory:   "/var/lib/pgsql/data",
			settings.OptHBAFile:         "/var/lib/pgsql/data/pg_hba.conf",
			settings.OptExternalPIDFile: "/var/run/postmaster-%d.pid",
			settings.OptPort:            5432,
			"shared_buffers":            "128MB",
			"log_line_prefix":           "%t ",
			"listen_addresses":          "localhost",
		},
		settings.KeyStart: map[string]any{
			"mode": "auto",
		},
		settings.KeyPermissions: []any{
			[]any{"local", "all", "postgres", "ident"},
			[]any{"local", "all", "all", "ident"},
			[]any{"host", "all", "all", "127.0.0.1/32", "ident"},
			[]any{"host", "all", "all", "::1/128", "ident"},
		},
	}
}

// pgdgOverlay carries the keys the PostgreSQL Global Development Group
// repository changes relative to an OS family's native packaging:
// package names, binary directory, service naming, and the repository
// descriptor the installer needs.

func debianPGDGOverlay() settings.Tree {
	return settings.Tree{
		settings.KeyPackages: []any{
			"postgresql-16",
			"postgresql-client-16",
			"postgresql-contrib-16",
		},
		settings.KeyVersion:        "16",
		settings.KeyBinDirectory:   "/usr/lib/postgresql/16/bin",
		settings.KeyService:        "postgresql@16-%s",
		settings.KeyWALDirectory:   "/var/lib/postgresql/16/%s/wal_archive",
		settings.KeyPostgresqlFile: "/etc/postgresql/16/%s/postgresql.conf",
		settings.KeyOptions: map[string]any{
			settings.OptDataDirectory:   "/var/lib/postgresql/16/%s",
			settings.OptHBAFile:         "/etc/postgresql/16/%s/pg_hba.conf",
			settings.OptExternalPIDFile: "/var/run/postgresql/16-%s.pid",
		},
		settings.KeyExtraRepository: map[string]any{
			"name": "pgdg",
			"url":  "http://apt.postgresql.org/pub/repos/apt/",
			"key":  "https://www.postgresql.org/media/keys/ACCC4CF8.asc",
		},
	}
}

func rhelPGDGOverlay() settings.Tree {
	return settings.Tree{
		settings.KeyPackages: []any{
			"postgresql16-server",
			"postgresql16",
			"postgresql16-contrib",
		},
		settings.KeyVersion:        "16",
		settings.KeyBinDirectory:   "/usr/pgsql-16/bin",
		settings.KeyService:        "postgresql-16",
		settings.KeyWALDirectory:   "/var/lib/pgsql/16/wal_archive/%s",
		settings.KeyPostgresqlFile: "/var/lib/pgsql/16/data/postgresql.conf",
		settings.KeyOptions: map[string]any{
			settings.OptDataDirectory: "/var/lib/pgsql/16/data",
			settings.OptHBAFile:       "/var/lib/pgsql/16/data/pg_hba.conf",
		},
		settings.KeyExtraRepository: map[string]any{
			"name": "pgdg",
			"url":  "https://download.postgresql.org/pub/repos/yum/16/redhat/rhel-$releasever-$basearch",
			"key":  "https://download.postgresql.org/pub/repos/yum/keys/PGDG-RPM-GPG-KEY-RHEL",
		},
	}
}

// debianBackportsOverlay switches the package channel without touching
// the cluster layout; the packaging matches the native one otherwise.
func debianBackportsOverlay() settings.Tree {
	return settings.Tree{
		settings.KeyExtraRepository: map[string]any{
			"name":      "backports",
			"url":       "http://deb.debian.org/debian",
			"component": "main",
			"suite":     "stable-backports",
		},
	}
}
