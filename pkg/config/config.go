package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/pgtend/pgtend/pkg/errdefs"
)

// InstanceConfig identifies the target installation and host.
type InstanceConfig struct {
	// ID names the instance in the registry and the store. Defaults
	// to the host when empty.
	ID string `yaml:"id" validate:"omitempty,hostname_rfc1123|uuid"`

	// Host is the SSH target.
	Host string `yaml:"host" validate:"required"`

	// OSFamily is the operating-system family of the host.
	OSFamily string `yaml:"os_family" validate:"required,oneof=debian ubuntu rhel"`

	// OSVersion is the release version, e.g. "11" or "22.04".
	OSVersion string `yaml:"os_version" validate:"required"`

	// PackageSource overrides the per-release package source
	// selection when set.
	PackageSource string `yaml:"package_source" validate:"omitempty,oneof=native backports pgdg"`
}

// SSHConfig holds the connection settings for the target host.
type SSHConfig struct {
	User                 string        `yaml:"user" validate:"required"`
	Port                 int           `yaml:"port" validate:"omitempty,min=1,max=65535"`
	AuthMethod           string        `yaml:"auth_method" validate:"omitempty,oneof=key password"`
	Password             string        `yaml:"password"`
	PrivateKeyPath       string        `yaml:"private_key_path"`
	PrivateKeyPassphrase string        `yaml:"private_key_passphrase"`
	SudoPassword         string        `yaml:"sudo_password"`
	KnownHostsPath       string        `yaml:"known_hosts_path"`
	ConnectTimeout       time.Duration `yaml:"connect_timeout"`

	// InsecureIgnoreHostKey disables host key verification. Strict
	// checking is the default.
	InsecureIgnoreHostKey bool `yaml:"insecure_ignore_host_key"`
}

// ClusterConfig describes one named cluster.
type ClusterConfig struct {
	// Variant applies a deployment-role transformation after
	// resolution.
	Variant string `yaml:"variant" validate:"omitempty,oneof=hot_standby_master hot_standby_replica"`

	// Overrides are cluster-level settings merged over the expanded
	// global tree.
	Overrides map[string]any `yaml:"overrides"`

	// Scripts run on the host after the configuration is applied.
	Scripts []ScriptConfig `yaml:"scripts" validate:"dive"`
}

// ScriptConfig describes one post-provisioning script.
type ScriptConfig struct {
	Content       string `yaml:"content" validate:"required"`
	User          string `yaml:"user"`
	Database      string `yaml:"database"`
	IgnoreFailure bool   `yaml:"ignore_failure"`
}

// File is the top-level settings document.
type File struct {
	Instance InstanceConfig `yaml:"instance" validate:"required"`
	SSH      SSHConfig      `yaml:"ssh"`

	// Settings are global overrides merged over the OS defaults.
	Settings map[string]any `yaml:"settings"`

	// Clusters maps cluster names to their specifications.
	Clusters map[string]ClusterConfig `yaml:"clusters" validate:"required,min=1,dive,keys,cluster_name,endkeys"`

	// Store is the path of the local state database. Empty disables
	// state recording.
	Store string `yaml:"store"`
}

// Cluster names end up in file paths, PID files, and systemd unit
// names, so they are restricted to a safe token.
var clusterNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_-]*$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	must(v.RegisterValidation("cluster_name", func(fl validator.FieldLevel) bool {
		return clusterNamePattern.MatchString(fl.Field().String())
	}))
	return v
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}

// Load reads, parses, and validates a settings file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read settings file: %w", err)
	}
	return Parse(data)
}

// Parse parses and validates settings file content.
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errdefs.NewConfiguration("invalid settings file").WithCause(err)
	}
	if err := validate.Struct(&f); err != nil {
		return nil, errdefs.NewConfiguration("invalid settings file").WithCause(flattenValidation(err))
	}
	if f.Instance.ID == "" {
		f.Instance.ID = f.Instance.Host
	}
	return &f, nil
}

// flattenValidation turns validator's error list into one readable
// error.
func flattenValidation(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q validation", fe.Namespace(), fe.Tag()))
	}
	return errors.New(strings.Join(msgs, "; "))
}
