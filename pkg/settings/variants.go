package settings

import (
	"fmt"
	"path"

	"github.com/pgtend/pgtend/pkg/errdefs"
)

// Variant names a deployment-role transformation applied to resolved
// cluster settings.
type Variant string

const (
	// VariantNone leaves the resolved settings untouched.
	VariantNone Variant = ""

	// VariantHotStandbyMaster configures the cluster as a streaming
	// replication primary with WAL archiving.
	VariantHotStandbyMaster Variant = "hot_standby_master"

	// VariantHotStandbyReplica configures the cluster as a hot standby
	// with recovery settings pointing at the archived WAL.
	VariantHotStandbyReplica Variant = "hot_standby_replica"
)

// ApplyVariant merges the variant's fixed override tree on top of the
// resolved cluster settings. Unknown variants are rejected.
func ApplyVariant(t Tree, v Variant) (Tree, error) {
	switch v {
	case VariantNone:
		return t, nil
	case VariantHotStandbyMaster:
		return applyHotStandbyMaster(t), nil
	case VariantHotStandbyReplica:
		return applyHotStandbyReplica(t), nil
	default:
		return nil, errdefs.NewUnsupported(fmt.Sprintf("unknown deployment variant %q", v))
	}
}

func applyHotStandbyMaster(t Tree) Tree {
	walDir, _ := t.String(KeyWALDirectory)
	return Merge(t, Tree{
		KeyOptions: map[string]any{
			"wal_level":         "hot_standby",
			"max_wal_senders":   5,
			"wal_keep_segments": 32,
			"archive_mode":      "on",
			"archive_command":   fmt.Sprintf("test ! -f %s/%%f && cp %%p %s/%%f", walDir, walDir),
		},
	})
}

func applyHotStandbyReplica(t Tree) Tree {
	walDir, _ := t.String(KeyWALDirectory)
	dataDir, _ := t.StringAt(KeyOptions, OptDataDirectory)
	return Merge(t, Tree{
		KeyOptions: map[string]any{
			"hot_standby": "on",
		},
		KeyRecovery: map[string]any{
			"standby_mode":    "on",
			"trigger_file":    path.Join(dataDir, "failover.trigger"),
			"restore_command": fmt.Sprintf("cp %s/%%f %%p", walDir),
		},
	})
}
