package settings

// Tree is a nested settings mapping. Values are scalars (string, bool,
// numbers), lists ([]any), or nested maps (map[string]any). Trees are
// treated as immutable: every operation in this package returns a new
// tree and leaves its inputs untouched.
type Tree map[string]any

// Recognized top-level keys.
const (
	KeyVersion     = "version"
	KeyComponents  = "components"
	KeyOwner       = "owner"
	KeyOptions     = "options"
	KeyRecovery    = "recovery"
	KeyStart       = "start"
	KeyPermissions = "permissions"
	KeyClusters    = "clusters"
)

// Additional keys supplied by the defaults resolver or computed during
// cluster resolution.
const (
	KeyPostgresqlFile  = "postgresql_file"
	KeyRecoveryFile    = "recovery_file"
	KeyStartFile       = "start_file"
	KeyService         = "service"
	KeyDefaultCluster  = "default_cluster"
	KeyDefaultService  = "default_service"
	KeyUsePortInPID    = "use_port_in_pid_file"
	KeyWALDirectory    = "wal_directory"
	KeyPackages        = "packages"
	KeyBinDirectory    = "bin_directory"
	KeyExtraRepository = "extra_repository"
)

// Option-map keys used during resolution.
const (
	OptDataDirectory   = "data_directory"
	OptHBAFile         = "hba_file"
	OptExternalPIDFile = "external_pid_file"
	OptPort            = "port"
)

// Clone returns a deep copy of the tree. Nested maps and lists are
// copied; scalar leaves are shared.
func (t Tree) Clone() Tree {
	if t == nil {
		return nil
	}
	out := make(Tree, len(t))
	for k, v := range t {
		out[k] = cloneValue(v)
	}
	return out
}

// String returns the string value stored under key.
func (t Tree) String(key string) (string, bool) {
	s, ok := t[key].(string)
	return s, ok
}

// Bool returns the boolean value stored under key; missing or
// non-boolean values report false.
func (t Tree) Bool(key string) bool {
	b, _ := t[key].(bool)
	return b
}

// Map returns the nested map stored under key.
func (t Tree) Map(key string) (map[string]any, bool) {
	return asMap(t[key])
}

// List returns the list stored under key.
func (t Tree) List(key string) ([]any, bool) {
	l, ok := t[key].([]any)
	return l, ok
}

// Strings returns the list stored under key as strings. Non-string
// elements are skipped.
func (t Tree) Strings(key string) []string {
	l, ok := t.List(key)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(l))
	for _, v := range l {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// Lookup walks a key path through nested maps and returns the value at
// the end of the path.
func (t Tree) Lookup(path ...string) (any, bool) {
	var cur any = map[string]any(t)
	for _, key := range path {
		m, ok := asMap(cur)
		if !ok {
			return nil, false
		}
		cur, ok = m[key]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// StringAt returns the string value at the end of a key path.
func (t Tree) StringAt(path ...string) (string, bool) {
	v, ok := t.Lookup(path...)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// asMap normalizes the two map representations that appear in practice:
// Tree itself and the map[string]any produced by YAML decoding.
func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case Tree:
		return m, true
	default:
		return nil, false
	}
}

func cloneValue(v any) any {
	switch x := v.(type) {
	case Tree:
		return map[string]any(x.Clone())
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = cloneValue(e)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}
