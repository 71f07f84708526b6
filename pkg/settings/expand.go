package settings

import "strings"

// Placeholder is the reserved token in template path strings that is
// substituted with a concrete cluster name during resolution.
const Placeholder = "%s"

// PortPlaceholder is the token substituted with the resolved port when
// the use_port_in_pid_file flag is set.
const PortPlaceholder = "%d"

// ExpandString substitutes the cluster name for the placeholder token.
// Strings without the token pass through unchanged, so expansion is
// idempotent.
func ExpandString(s, clusterName string) string {
	return strings.ReplaceAll(s, Placeholder, clusterName)
}

// Expand applies ExpandString to string values and returns every other
// value unchanged.
func Expand(v any, clusterName string) any {
	if s, ok := v.(string); ok {
		return ExpandString(s, clusterName)
	}
	return v
}

// ExpandTree expands every templatable string leaf of a tree: top-level
// scalar leaves and the values of the options, recovery, and start
// sub-maps. The permissions list and the clusters map are never
// templated and are copied verbatim.
func ExpandTree(t Tree, clusterName string) Tree {
	out := make(Tree, len(t))
	for k, v := range t {
		switch {
		case k == KeyPermissions || k == KeyClusters:
			out[k] = cloneValue(v)
		case nestedMergeKeys[k]:
			out[k] = expandSubMap(v, clusterName)
		default:
			out[k] = Expand(cloneValue(v), clusterName)
		}
	}
	return out
}

func expandSubMap(v any, clusterName string) any {
	m, ok := asMap(v)
	if !ok {
		return cloneValue(v)
	}
	out := make(map[string]any, len(m))
	for k, e := range m {
		out[k] = Expand(cloneValue(e), clusterName)
	}
	return out
}

// findPlaceholder reports the first key whose string leaf still
// contains the placeholder token. Permissions and clusters are not
// templated and are not inspected.
func findPlaceholder(t Tree) (string, bool) {
	for k, v := range t {
		if k == KeyPermissions || k == KeyClusters {
			continue
		}
		if s, ok := v.(string); ok && strings.Contains(s, Placeholder) {
			return k, true
		}
		if m, ok := asMap(v); ok && nestedMergeKeys[k] {
			for sk, sv := range m {
				if s, ok := sv.(string); ok && strings.Contains(s, Placeholder) {
					return k + "." + sk, true
				}
			}
		}
	}
	return "", false
}
