package settings

import (
	"fmt"
	"path"
	"strings"

	"github.com/pgtend/pgtend/pkg/errdefs"
)

// Names of the generated files derived during resolution.
const (
	recoveryFileName = "recovery.conf"
	startFileName    = "start.conf"
)

// ResolveCluster derives the fully resolved settings tree for one
// cluster from the global tree and the cluster's override tree:
//
//  1. the clusters map is dropped from the global tree,
//  2. the global tree is expanded with the cluster name,
//  3. the override tree is merged on top (its values must already be
//     placeholder-free),
//  4. derived file paths are injected (recovery_file under the data
//     directory, start_file next to the main parameter file),
//  5. the default cluster keeps the instance-wide service identifier
//     instead of the expanded per-cluster one,
//  6. the external PID file path is re-rendered with the resolved port
//     when use_port_in_pid_file is set.
//
// The result never contains the placeholder token in any string leaf.
func ResolveCluster(clusterName string, override, global Tree) (Tree, error) {
	g := global.Clone()
	if g == nil {
		g = Tree{}
	}
	delete(g, KeyClusters)

	merged := Merge(ExpandTree(g, clusterName), override)

	if key, found := findPlaceholder(merged); found {
		return nil, errdefs.NewConfiguration(
			fmt.Sprintf("cluster %q: override value still contains the %s placeholder", clusterName, Placeholder),
		).WithKey(key)
	}

	if dataDir, ok := merged.StringAt(KeyOptions, OptDataDirectory); ok {
		merged[KeyRecoveryFile] = path.Join(dataDir, recoveryFileName)
	}
	if pgFile, ok := merged.String(KeyPostgresqlFile); ok {
		merged[KeyStartFile] = path.Join(path.Dir(pgFile), startFileName)
	}

	if defName, ok := merged.String(KeyDefaultCluster); ok && defName == clusterName {
		if svc, ok := merged.String(KeyDefaultService); ok && svc != "" {
			merged[KeyService] = svc
		}
	}

	if merged.Bool(KeyUsePortInPID) {
		renderPIDFilePort(merged)
	}

	return merged, nil
}

// renderPIDFilePort substitutes the resolved port into the external PID
// file template. Without a known port the template is left alone.
func renderPIDFilePort(t Tree) {
	opts, ok := t.Map(KeyOptions)
	if !ok {
		return
	}
	tmpl, ok := opts[OptExternalPIDFile].(string)
	if !ok {
		return
	}
	port, ok := opts[OptPort]
	if !ok {
		return
	}
	opts[OptExternalPIDFile] = strings.ReplaceAll(tmpl, PortPlaceholder, fmt.Sprint(port))
}
