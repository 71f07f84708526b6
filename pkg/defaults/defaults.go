// Package defaults selects OS-family and package-source specific base
// settings trees. Resolution is table-driven: each (family, source)
// pair maps to a function producing a base tree, and repository
// variants extend a family's native tree instead of duplicating it.
package defaults

import (
	"fmt"

	"github.com/pgtend/pgtend/pkg/errdefs"
	"github.com/pgtend/pgtend/pkg/settings"
)

// OSFamily identifies a supported operating-system family.
type OSFamily string

const (
	FamilyDebian OSFamily = "debian"
	FamilyUbuntu OSFamily = "ubuntu"
	FamilyRHEL   OSFamily = "rhel"
)

// PackageSource identifies the origin of the server packages.
type PackageSource string

const (
	SourceNative    PackageSource = "native"
	SourceBackports PackageSource = "backports"
	SourcePGDG      PackageSource = "pgdg"
)

type resolverKey struct {
	family OSFamily
	source PackageSource
}

type resolverFunc func() settings.Tree

// extend builds a resolver that layers an overlay on another resolver's
// result. This is how repository variants reuse a family's native tree.
func extend(base resolverFunc, overlay func() settings.Tree) resolverFunc {
	return func() settings.Tree {
		return settings.Merge(base(), overlay())
	}
}

var resolvers = map[resolverKey]resolverFunc{
	{FamilyDebian, SourceNative}:    debianNative,
	{FamilyDebian, SourceBackports}: extend(debianNative, debianBackportsOverlay),
	{FamilyDebian, SourcePGDG}:      extend(debianNative, debianPGDGOverlay),
	{FamilyUbuntu, SourceNative}:    ubuntuNative,
	{FamilyUbuntu, SourcePGDG}:      extend(ubuntuNative, debianPGDGOverlay),
	{FamilyRHEL, SourceNative}:      rhelNative,
	{FamilyRHEL, SourcePGDG}:        extend(rhelNative, rhelPGDGOverlay),
}

// Resolve merges the user settings over the base tree selected for the
// OS family and package source. When the exact pair has no entry the
// family's native tree is used as a fallback; a family without a native
// tree is unsupported.
func Resolve(family OSFamily, source PackageSource, user settings.Tree) (settings.Tree, error) {
	base, ok := resolvers[resolverKey{family, source}]
	if !ok {
		base, ok = resolvers[resolverKey{family, SourceNative}]
		if !ok {
			return nil, errdefs.NewUnsupported(
				fmt.Sprintf("no defaults for OS family %q with package source %q", family, source),
			)
		}
	}
	return settings.Merge(base(), user), nil
}

type releaseKey struct {
	family  OSFamily
	version string
}

// sourceByRelease pins the package source for OS releases whose native
// packages are too old to carry a supported server. Releases not listed
// here use the native source.
var sourceByRelease = map[releaseKey]PackageSource{
	{FamilyDebian, "9"}:     SourcePGDG,
	{FamilyDebian, "10"}:    SourceBackports,
	{FamilyUbuntu, "18.04"}: SourcePGDG,
	{FamilyRHEL, "7"}:       SourcePGDG,
	{FamilyRHEL, "8"}:       SourcePGDG,
}

// SelectPackageSource decides the package source for an OS family and
// release version. The decision is a fixed lookup; callers invoke it
// before Resolve when the user left the source unset.
func SelectPackageSource(family OSFamily, version string) PackageSource {
	if source, ok := sourceByRelease[releaseKey{family, version}]; ok {
		return source
	}
	return SourceNative
}
