package engine

import (
	"context"

	"github.com/pgtend/pgtend/pkg/settings"
)

// WriteRequest describes one file to place on the target host.
type WriteRequest struct {
	// Path is the absolute destination path.
	Path string

	// Content is the exact file content to write.
	Content []byte

	// Owner and Group own the file and any created parent directories.
	Owner string
	Group string

	// Mode is the octal permission string, e.g. "0640".
	Mode string

	// Literal writes Content byte-for-byte; without it the writer may
	// normalize the trailing newline.
	Literal bool

	// ChangeFlag names the flag to raise when the written content
	// differs from what the host already has. Service-restart logic
	// keys on it.
	ChangeFlag string
}

// WriteResult reports the outcome of a file write.
type WriteResult struct {
	// Changed is true when the host content differed and was replaced.
	Changed bool

	// Checksum is the SHA256 of the written content, hex-encoded.
	Checksum string
}

// FileWriter places files and directories on the target host. Parent
// directories are created with the request's ownership before writing.
type FileWriter interface {
	Write(ctx context.Context, req WriteRequest) (WriteResult, error)
	EnsureDirectory(ctx context.Context, path, owner, group, mode string) error
}

// Repository describes an extra package repository to configure before
// installing.
type Repository struct {
	Name      string
	URL       string
	Key       string
	Component string
	Suite     string
}

// RepositoryFromTree builds a Repository from the extra_repository
// section of a settings tree, if present.
func RepositoryFromTree(t settings.Tree) *Repository {
	m, ok := t.Map(settings.KeyExtraRepository)
	if !ok {
		return nil
	}
	str := func(key string) string {
		s, _ := m[key].(string)
		return s
	}
	return &Repository{
		Name:      str("name"),
		URL:       str("url"),
		Key:       str("key"),
		Component: str("component"),
		Suite:     str("suite"),
	}
}

// PackageInstaller installs server packages on the target host,
// configuring the extra repository first when one is given.
type PackageInstaller interface {
	Install(ctx context.Context, packages []string, extra *Repository) error
}

// ServiceAction is a service control operation.
type ServiceAction string

const (
	ActionStart   ServiceAction = "start"
	ActionStop    ServiceAction = "stop"
	ActionEnable  ServiceAction = "enable"
	ActionDisable ServiceAction = "disable"
	ActionRestart ServiceAction = "restart"
)

// ServiceRequest describes one service control operation. When OnlyIf
// names a change flag, the controller performs the action only if that
// flag was raised during the current run.
type ServiceRequest struct {
	Name   string
	Action ServiceAction
	OnlyIf string
}

// ServiceController applies service actions on the target host. The
// returned bool reports whether the action was actually performed
// (false when skipped by its OnlyIf condition).
type ServiceController interface {
	Apply(ctx context.Context, req ServiceRequest) (bool, error)
}

// FlagSource reports which change flags were raised during the current
// run. The Provisioner implements it; service controllers consult it
// for OnlyIf conditions.
type FlagSource interface {
	Changed(flag string) bool
}

// ScriptRequest describes a script to execute on the target host.
type ScriptRequest struct {
	// Content is the literal script text.
	Content string

	// User is the execution user on the host.
	User string

	// Database, when set, runs Content as SQL against that database
	// instead of as a shell script.
	Database string

	// IgnoreFailure keeps the run going when the script fails.
	IgnoreFailure bool
}

// ScriptResult reports a script execution.
type ScriptResult struct {
	ExitCode int
	Output   string
}

// ScriptRunner executes scripts on the target host.
type ScriptRunner interface {
	Run(ctx context.Context, req ScriptRequest) (ScriptResult, error)
}
