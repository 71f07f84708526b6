package config

import (
	"sort"

	"github.com/pgtend/pgtend/pkg/defaults"
	"github.com/pgtend/pgtend/pkg/engine"
	"github.com/pgtend/pgtend/pkg/settings"
	"github.com/pgtend/pgtend/pkg/transports/ssh"
)

// PackageSource returns the configured package source, or the
// per-release selection when the file leaves it unset.
func (f *File) PackageSource() defaults.PackageSource {
	if f.Instance.PackageSource != "" {
		return defaults.PackageSource(f.Instance.PackageSource)
	}
	return defaults.SelectPackageSource(defaults.OSFamily(f.Instance.OSFamily), f.Instance.OSVersion)
}

// InstanceInfo builds the registry identity for the configured
// instance.
func (f *File) InstanceInfo() engine.InstanceInfo {
	return engine.InstanceInfo{
		ID:            f.Instance.ID,
		Host:          f.Instance.Host,
		OSFamily:      defaults.OSFamily(f.Instance.OSFamily),
		OSVersion:     f.Instance.OSVersion,
		PackageSource: defaults.PackageSource(f.Instance.PackageSource),
	}
}

// UserTree converts the free-form global settings section into a
// settings tree.
func (f *File) UserTree() settings.Tree {
	t := settings.Tree{}
	for key, value := range f.Settings {
		t[key] = value
	}
	return t.Clone()
}

// OverrideTree returns the override tree for a named cluster.
func (f *File) OverrideTree(name string) settings.Tree {
	t := settings.Tree{}
	for key, value := range f.Clusters[name].Overrides {
		t[key] = value
	}
	return t.Clone()
}

// Variant returns the deployment variant for a named cluster.
func (f *File) Variant(name string) settings.Variant {
	return settings.Variant(f.Clusters[name].Variant)
}

// ClusterNames returns the configured cluster names, sorted.
func (f *File) ClusterNames() []string {
	names := make([]string, 0, len(f.Clusters))
	for name := range f.Clusters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ClusterScripts converts a cluster's script entries to engine
// requests.
func (f *File) ClusterScripts(name string) []engine.ScriptRequest {
	specs := f.Clusters[name].Scripts
	reqs := make([]engine.ScriptRequest, 0, len(specs))
	for _, s := range specs {
		reqs = append(reqs, engine.ScriptRequest{
			Content:       s.Content,
			User:          s.User,
			Database:      s.Database,
			IgnoreFailure: s.IgnoreFailure,
		})
	}
	return reqs
}

// TransportConfig builds the SSH transport configuration for the
// target host.
func (f *File) TransportConfig() *ssh.Config {
	cfg := ssh.DefaultConfig(f.Instance.Host, f.SSH.User)
	if f.SSH.Port != 0 {
		cfg.Port = f.SSH.Port
	}
	if f.SSH.AuthMethod != "" {
		cfg.AuthMethod = ssh.AuthMethod(f.SSH.AuthMethod)
	}
	cfg.Password = f.SSH.Password
	cfg.PrivateKeyPath = f.SSH.PrivateKeyPath
	cfg.PrivateKeyPassphrase = f.SSH.PrivateKeyPassphrase
	cfg.SudoPassword = f.SSH.SudoPassword
	if f.SSH.KnownHostsPath != "" {
		cfg.KnownHostsPath = f.SSH.KnownHostsPath
	}
	cfg.StrictHostKeyChecking = !f.SSH.InsecureIgnoreHostKey
	if f.SSH.ConnectTimeout != 0 {
		cfg.ConnectionTimeout = f.SSH.ConnectTimeout
	}
	return cfg
}
