package engine

import (
	"fmt"
	"sort"

	"github.com/pgtend/pgtend/pkg/defaults"
	"github.com/pgtend/pgtend/pkg/errdefs"
	"github.com/pgtend/pgtend/pkg/settings"
)

// InstanceInfo identifies one server installation on a host.
type InstanceInfo struct {
	ID            string
	Host          string
	OSFamily      defaults.OSFamily
	OSVersion     string
	PackageSource defaults.PackageSource
}

// clusterSpec is what the caller registered for one cluster.
type clusterSpec struct {
	override settings.Tree
	variant  settings.Variant
}

// instanceState holds everything the registry knows about one instance.
type instanceState struct {
	info     InstanceInfo
	user     settings.Tree
	global   settings.Tree
	clusters map[string]clusterSpec
	resolved map[string]settings.Tree
}

// Registry maps instance IDs to their settings and resolved per-cluster
// trees. A Registry value is immutable: every update returns a new
// value, so concurrent resolution for different instances cannot
// interfere. Resolved trees are recomputed, never patched, whenever the
// global settings or a cluster's override change.
type Registry struct {
	instances map[string]*instanceState
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{instances: map[string]*instanceState{}}
}

func (r *Registry) clone() *Registry {
	out := &Registry{instances: make(map[string]*instanceState, len(r.instances))}
	for id, st := range r.instances {
		cp := &instanceState{
			info:     st.info,
			user:     st.user,
			global:   st.global,
			clusters: make(map[string]clusterSpec, len(st.clusters)),
			resolved: make(map[string]settings.Tree, len(st.resolved)),
		}
		for name, spec := range st.clusters {
			cp.clusters[name] = spec
		}
		for name, tree := range st.resolved {
			cp.resolved[name] = tree
		}
		out.instances[id] = cp
	}
	return out
}

// RegisterInstance adds an instance, building its global tree by
// merging the user settings over the resolved OS defaults. An empty
// package source is decided from the OS version first.
func (r *Registry) RegisterInstance(info InstanceInfo, user settings.Tree) (*Registry, error) {
	if info.ID == "" {
		return nil, errdefs.NewConfiguration("instance id is required")
	}
	if _, exists := r.instances[info.ID]; exists {
		return nil, errdefs.NewConfiguration(fmt.Sprintf("instance %q already registered", info.ID))
	}

	if info.PackageSource == "" {
		info.PackageSource = defaults.SelectPackageSource(info.OSFamily, info.OSVersion)
	}

	global, err := defaults.Resolve(info.OSFamily, info.PackageSource, user)
	if err != nil {
		return nil, err
	}

	out := r.clone()
	out.instances[info.ID] = &instanceState{
		info:     info,
		user:     user.Clone(),
		global:   global,
		clusters: map[string]clusterSpec{},
		resolved: map[string]settings.Tree{},
	}
	return out, nil
}

// UpdateGlobal replaces an instance's user settings and re-resolves
// every registered cluster against the new global tree.
func (r *Registry) UpdateGlobal(instanceID string, user settings.Tree) (*Registry, error) {
	st, ok := r.instances[instanceID]
	if !ok {
		return nil, errdefs.NewConfiguration(fmt.Sprintf("unknown instance %q", instanceID))
	}

	global, err := defaults.Resolve(st.info.OSFamily, st.info.PackageSource, user)
	if err != nil {
		return nil, err
	}

	out := r.clone()
	next := out.instances[instanceID]
	next.user = user.Clone()
	next.global = global
	for name, spec := range next.clusters {
		resolved, err := resolve(name, spec, global)
		if err != nil {
			return nil, err
		}
		next.resolved[name] = resolved
	}
	return out, nil
}

// RegisterCluster adds or replaces a cluster's override tree and
// deployment variant, and stores its freshly resolved settings.
func (r *Registry) RegisterCluster(instanceID, name string, override settings.Tree, variant settings.Variant) (*Registry, error) {
	st, ok := r.instances[instanceID]
	if !ok {
		return nil, errdefs.NewConfiguration(fmt.Sprintf("unknown instance %q", instanceID))
	}
	if name == "" {
		return nil, errdefs.NewConfiguration("cluster name is required")
	}

	spec := clusterSpec{override: override.Clone(), variant: variant}
	resolved, err := resolve(name, spec, st.global)
	if err != nil {
		return nil, err
	}

	out := r.clone()
	next := out.instances[instanceID]
	next.clusters[name] = spec
	next.resolved[name] = resolved
	return out, nil
}

func resolve(name string, spec clusterSpec, global settings.Tree) (settings.Tree, error) {
	resolved, err := settings.ResolveCluster(name, spec.override, global)
	if err != nil {
		return nil, err
	}
	return settings.ApplyVariant(resolved, spec.variant)
}

// Instance returns the registered info for an instance.
func (r *Registry) Instance(instanceID string) (InstanceInfo, bool) {
	st, ok := r.instances[instanceID]
	if !ok {
		return InstanceInfo{}, false
	}
	return st.info, true
}

// Global returns the instance's merged global tree.
func (r *Registry) Global(instanceID string) (settings.Tree, error) {
	st, ok := r.instances[instanceID]
	if !ok {
		return nil, errdefs.NewConfiguration(fmt.Sprintf("unknown instance %q", instanceID))
	}
	return st.global.Clone(), nil
}

// Resolved returns the resolved settings of one cluster.
func (r *Registry) Resolved(instanceID, cluster string) (settings.Tree, error) {
	st, ok := r.instances[instanceID]
	if !ok {
		return nil, errdefs.NewConfiguration(fmt.Sprintf("unknown instance %q", instanceID))
	}
	tree, ok := st.resolved[cluster]
	if !ok {
		return nil, errdefs.NewConfiguration(fmt.Sprintf("cluster %q not registered on instance %q", cluster, instanceID))
	}
	return tree.Clone(), nil
}

// Variant returns the deployment variant registered for a cluster.
func (r *Registry) Variant(instanceID, cluster string) (settings.Variant, error) {
	st, ok := r.instances[instanceID]
	if !ok {
		return "", errdefs.NewConfiguration(fmt.Sprintf("unknown instance %q", instanceID))
	}
	spec, ok := st.clusters[cluster]
	if !ok {
		return "", errdefs.NewConfiguration(fmt.Sprintf("cluster %q not registered on instance %q", cluster, instanceID))
	}
	return spec.variant, nil
}

// Clusters returns the cluster names of an instance, sorted.
func (r *Registry) Clusters(instanceID string) []string {
	st, ok := r.instances[instanceID]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(st.clusters))
	for name := range st.clusters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// InstanceIDs returns all registered instance IDs, sorted.
func (r *Registry) InstanceIDs() []string {
	ids := make([]string, 0, len(r.instances))
	for id := range r.instances {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
