// Package ssh provides the SSH transport for remote host operations.
package ssh

import "context"

// Transport defines the remote operations the provisioning
// collaborators need: command execution and content-based file
// placement.
type Transport interface {
	// Connect establishes an SSH connection to the remote host.
	Connect(ctx context.Context) error

	// Disconnect closes the SSH connection and releases all resources.
	Disconnect() error

	// IsConnected returns true if the transport has an active connection.
	IsConnected() bool

	// ExecuteCommand runs a command on the remote host.
	// Returns stdout, stderr, and any error that occurred.
	ExecuteCommand(ctx context.Context, cmd string) (stdout string, stderr string, err error)

	// ExecuteCommandWithSudo runs a command with sudo privileges.
	// The sudoPassword parameter can be empty if NOPASSWD is configured.
	ExecuteCommandWithSudo(ctx context.Context, cmd string, sudoPassword string) (stdout string, stderr string, err error)

	// WriteFile places content at the remote path via SFTP. The mode
	// parameter sets file permissions (e.g. 0640).
	WriteFile(ctx context.Context, remotePath string, content []byte, mode uint32) error

	// ReadFile returns the content of a remote file.
	ReadFile(ctx context.Context, remotePath string) ([]byte, error)

	// SetFileOwnership sets file ownership on the remote host by user
	// and group name. Requires sudo privileges.
	SetFileOwnership(ctx context.Context, remotePath, owner, group string) error

	// SetFilePermissions sets file permissions on the remote host.
	SetFilePermissions(ctx context.Context, remotePath string, mode uint32) error

	// ComputeChecksum calculates the SHA256 checksum of a remote file.
	ComputeChecksum(ctx context.Context, remotePath string) (string, error)
}

// TransportError represents an error from the transport layer.
type TransportError struct {
	// Op is the operation that failed (e.g., "connect", "exec", "write")
	Op string

	// Err is the underlying error
	Err error

	// IsTemporary indicates if the error is temporary and can be retried
	IsTemporary bool

	// IsAuthError indicates if the error is related to authentication
	IsAuthError bool
}

func (e *TransportError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func (e *TransportError) Temporary() bool {
	return e.IsTemporary
}
