package ssh

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/sftp"
	"github.com/rs/zerolog/log"
)

// newSFTPClient opens an SFTP subsystem session on the current
// connection. The caller closes it.
func (c *Client) newSFTPClient() (*sftp.Client, error) {
	sshClient, err := c.getClient()
	if err != nil {
		return nil, err
	}
	client, err := sftp.NewClient(sshClient)
	if err != nil {
		return nil, &TransportError{
			Op:          "sftp",
			Err:         fmt.Errorf("failed to create sftp client: %w", err),
			IsTemporary: true,
		}
	}
	return client, nil
}

// WriteFile places content at the remote path via SFTP.
func (c *Client) WriteFile(ctx context.Context, remotePath string, content []byte, mode uint32) error {
	if err := ctx.Err(); err != nil {
		return &TransportError{Op: "write", Err: err, IsTemporary: true}
	}

	client, err := c.newSFTPClient()
	if err != nil {
		return err
	}
	defer client.Close()

	log.Debug().
		Str("path", remotePath).
		Int("bytes", len(content)).
		Msg("writing remote file")

	f, err := client.OpenFile(remotePath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC)
	if err != nil {
		return &TransportError{
			Op:  "write",
			Err: fmt.Errorf("failed to open %s: %w", remotePath, err),
		}
	}

	if _, err := f.Write(content); err != nil {
		_ = f.Close()
		return &TransportError{
			Op:          "write",
			Err:         fmt.Errorf("failed to write %s: %w", remotePath, err),
			IsTemporary: true,
		}
	}
	if err := f.Close(); err != nil {
		return &TransportError{
			Op:          "write",
			Err:         fmt.Errorf("failed to close %s: %w", remotePath, err),
			IsTemporary: true,
		}
	}

	if err := client.Chmod(remotePath, os.FileMode(mode)); err != nil {
		return &TransportError{
			Op:  "write",
			Err: fmt.Errorf("failed to chmod %s: %w", remotePath, err),
		}
	}

	return nil
}

// ReadFile returns the content of a remote file.
func (c *Client) ReadFile(ctx context.Context, remotePath string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, &TransportError{Op: "read", Err: err, IsTemporary: true}
	}

	client, err := c.newSFTPClient()
	if err != nil {
		return nil, err
	}
	defer client.Close()

	f, err := client.Open(remotePath)
	if err != nil {
		return nil, &TransportError{
			Op:  "read",
			Err: fmt.Errorf("failed to open %s: %w", remotePath, err),
		}
	}
	defer f.Close()

	content, err := io.ReadAll(f)
	if err != nil {
		return nil, &TransportError{
			Op:          "read",
			Err:         fmt.Errorf("failed to read %s: %w", remotePath, err),
			IsTemporary: true,
		}
	}
	return content, nil
}

// SetFileOwnership sets file ownership by user and group name.
func (c *Client) SetFileOwnership(ctx context.Context, remotePath, owner, group string) error {
	cmd := fmt.Sprintf("chown %s:%s %s", owner, group, remotePath)
	if _, stderr, err := c.ExecuteCommandWithSudo(ctx, cmd, c.config.SudoPassword); err != nil {
		return &TransportError{
			Op:  "chown",
			Err: fmt.Errorf("failed to chown %s: %s: %w", remotePath, stderr, err),
		}
	}
	return nil
}

// SetFilePermissions sets file permissions on the remote host.
func (c *Client) SetFilePermissions(ctx context.Context, remotePath string, mode uint32) error {
	cmd := fmt.Sprintf("chmod %o %s", mode, remotePath)
	if _, stderr, err := c.ExecuteCommandWithSudo(ctx, cmd, c.config.SudoPassword); err != nil {
		return &TransportError{
			Op:  "chmod",
			Err: fmt.Errorf("failed to chmod %s: %s: %w", remotePath, stderr, err),
		}
	}
	return nil
}

// ComputeChecksum calculates the SHA256 checksum of a remote file. A
// missing file yields an empty checksum and no error, so callers can
// treat first writes and rewrites uniformly.
func (c *Client) ComputeChecksum(ctx context.Context, remotePath string) (string, error) {
	cmd := fmt.Sprintf("sha256sum %s 2>/dev/null || true", remotePath)
	stdout, _, err := c.ExecuteCommandWithSudo(ctx, cmd, c.config.SudoPassword)
	if err != nil {
		return "", &TransportError{
			Op:  "checksum",
			Err: fmt.Errorf("failed to checksum %s: %w", remotePath, err),
		}
	}
	fields := strings.Fields(stdout)
	if len(fields) == 0 {
		return "", nil
	}
	return fields[0], nil
}
