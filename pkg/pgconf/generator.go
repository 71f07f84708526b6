package pgconf

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pgtend/pgtend/pkg/errdefs"
	"github.com/pgtend/pgtend/pkg/settings"
)

// Kind names one of the generated configuration files.
type Kind string

const (
	KindHBA        Kind = "pg_hba"
	KindPostgresql Kind = "postgresql"
	KindRecovery   Kind = "recovery"
	KindStart      Kind = "start"
)

// File is one generated configuration file: where it goes and what it
// contains.
type File struct {
	Kind    Kind
	Path    string
	Content string
}

type fileSpec struct {
	pathKey    []string
	recordsKey string
	render     func(records any) (string, error)
}

// fileSpecs drives generation: each file kind names the key path of its
// target path, the key of its record source, and its line renderer. One
// driver serves all four kinds.
var fileSpecs = map[Kind]fileSpec{
	KindHBA: {
		pathKey:    []string{settings.KeyOptions, settings.OptHBAFile},
		recordsKey: settings.KeyPermissions,
		render:     renderAuthRecords,
	},
	KindPostgresql: {
		pathKey:    []string{settings.KeyPostgresqlFile},
		recordsKey: settings.KeyOptions,
		render:     renderParameters,
	},
	KindRecovery: {
		pathKey:    []string{settings.KeyRecoveryFile},
		recordsKey: settings.KeyRecovery,
		render:     renderParameters,
	},
	KindStart: {
		pathKey:    []string{settings.KeyStartFile},
		recordsKey: settings.KeyStart,
		render:     renderStart,
	},
}

// Generate renders one file kind from resolved cluster settings. A
// missing target path or record source aborts the file with an error
// naming the key; nothing partial is returned.
func Generate(cs settings.Tree, kind Kind) (File, error) {
	spec, ok := fileSpecs[kind]
	if !ok {
		return File{}, errdefs.NewUnsupported(fmt.Sprintf("unknown file kind %q", kind))
	}
	if cs == nil {
		return File{}, errdefs.NewConfiguration("no resolved cluster settings").WithKey(spec.recordsKey)
	}

	path, ok := cs.StringAt(spec.pathKey...)
	if !ok || path == "" {
		return File{}, errdefs.NewConfiguration(
			fmt.Sprintf("no target path for the %s file", kind),
		).WithKey(strings.Join(spec.pathKey, "."))
	}

	records, ok := cs[spec.recordsKey]
	if !ok {
		return File{}, errdefs.NewConfiguration(
			fmt.Sprintf("no record source for the %s file", kind),
		).WithKey(spec.recordsKey)
	}

	body, err := spec.render(records)
	if err != nil {
		return File{}, err
	}

	return File{Kind: kind, Path: path, Content: fileHeader + body}, nil
}

// GenerateAll renders every file kind whose record source is present in
// the settings, in a fixed order. The recovery and start sections are
// optional; the authentication and parameter sections are not.
func GenerateAll(cs settings.Tree) ([]File, error) {
	var out []File
	for _, kind := range []Kind{KindHBA, KindPostgresql, KindRecovery, KindStart} {
		if kind == KindRecovery || kind == KindStart {
			if _, ok := cs[fileSpecs[kind].recordsKey]; !ok {
				continue
			}
		}
		f, err := Generate(cs, kind)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

func renderAuthRecords(records any) (string, error) {
	list, ok := records.([]any)
	if !ok {
		return "", errdefs.NewInvalidRecord(
			fmt.Sprintf("permissions must be a list, got %T", records), records)
	}
	var b strings.Builder
	for _, rec := range list {
		line, err := FormatAuthRecord(rec)
		if err != nil {
			return "", err
		}
		b.WriteString(line)
	}
	return b.String(), nil
}

// renderParameters emits one line per parameter, names sorted, so the
// same settings always produce byte-identical files.
func renderParameters(records any) (string, error) {
	m, ok := records.(map[string]any)
	if !ok {
		return "", errdefs.NewInvalidParameter(
			fmt.Sprintf("parameter source must be a mapping, got %T", records), records)
	}
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		line, err := FormatParameter(name, m[name])
		if err != nil {
			return "", err
		}
		b.WriteString(line)
	}
	return b.String(), nil
}

func renderStart(records any) (string, error) {
	m, ok := records.(map[string]any)
	if !ok {
		return "", errdefs.NewConfiguration("start section must be a mapping").WithKey(settings.KeyStart)
	}
	mode, ok := m["mode"].(string)
	if !ok {
		return "", errdefs.NewConfiguration("start section has no mode").WithKey("start.mode")
	}
	return FormatStartMode(mode)
}
