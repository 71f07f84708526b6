package settings

import "reflect"

// nestedMergeKeys are the top-level keys whose values merge one level
// deep, sub-key by sub-key, instead of being replaced wholesale.
var nestedMergeKeys = map[string]bool{
	KeyOptions:  true,
	KeyRecovery: true,
	KeyStart:    true,
}

// Merge combines two settings trees, with override winning on scalar
// conflicts. The options, recovery, and start maps merge key-wise one
// level deep; permissions lists concatenate with duplicates removed,
// preserving first-occurrence order. Merge is total: any two well-formed
// trees merge successfully.
func Merge(base, override Tree) Tree {
	out := base.Clone()
	if out == nil {
		out = Tree{}
	}
	for k, v := range override {
		switch {
		case nestedMergeKeys[k]:
			out[k] = mergeSubMap(out[k], v)
		case k == KeyPermissions:
			out[k] = mergeRecordLists(out[k], v)
		default:
			out[k] = cloneValue(v)
		}
	}
	return out
}

// MergeAll left-folds Merge across an ordered sequence of trees.
func MergeAll(trees ...Tree) Tree {
	out := Tree{}
	for _, t := range trees {
		out = Merge(out, t)
	}
	return out
}

func mergeSubMap(base, override any) map[string]any {
	out := map[string]any{}
	if bm, ok := asMap(base); ok {
		for k, v := range bm {
			out[k] = cloneValue(v)
		}
	}
	if om, ok := asMap(override); ok {
		for k, v := range om {
			out[k] = cloneValue(v)
		}
	}
	return out
}

func mergeRecordLists(base, override any) []any {
	out := []any{}
	if bl, ok := base.([]any); ok {
		for _, v := range bl {
			out = append(out, cloneValue(v))
		}
	}
	ol, ok := override.([]any)
	if !ok {
		return out
	}
	for _, v := range ol {
		if !containsRecord(out, v) {
			out = append(out, cloneValue(v))
		}
	}
	return out
}

func containsRecord(list []any, record any) bool {
	for _, v := range list {
		if reflect.DeepEqual(v, record) {
			return true
		}
	}
	return false
}
