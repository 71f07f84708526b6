package remote

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path"
	"strings"

	"github.com/pgtend/pgtend/pkg/engine"
	"github.com/pgtend/pgtend/pkg/telemetry"
	"github.com/pgtend/pgtend/pkg/transports/ssh"
)

// Writer places configuration files on the target host with change
// detection: content is written only when its checksum differs from
// what the host already has.
type Writer struct {
	transport    ssh.Transport
	sudoPassword string
	logger       *telemetry.Logger
}

// NewWriter creates a file writer over the given transport.
func NewWriter(transport ssh.Transport, sudoPassword string, logger *telemetry.Logger) *Writer {
	if logger == nil {
		logger, _ = telemetry.NewLogger(telemetry.DefaultConfig().Logging)
	}
	return &Writer{
		transport:    transport,
		sudoPassword: sudoPassword,
		logger:       logger.NewComponentLogger("writer"),
	}
}

// Write places one file. The parent directory is created with the
// request's ownership first. When the host content already matches,
// nothing is written and Changed is false.
func (w *Writer) Write(ctx context.Context, req engine.WriteRequest) (engine.WriteResult, error) {
	content := req.Content
	if !req.Literal {
		content = normalizeTrailingNewline(content)
	}

	sum := sha256.Sum256(content)
	checksum := hex.EncodeToString(sum[:])

	current, err := w.transport.ComputeChecksum(ctx, req.Path)
	if err != nil {
		return engine.WriteResult{}, fmt.Errorf("checking %s: %w", req.Path, err)
	}
	if current == checksum {
		w.logger.Debugf("%s unchanged", req.Path)
		return engine.WriteResult{Changed: false, Checksum: checksum}, nil
	}

	if err := w.EnsureDirectory(ctx, path.Dir(req.Path), req.Owner, req.Group, "0755"); err != nil {
		return engine.WriteResult{}, err
	}

	// Stage under a path the SSH user can write, then move into place
	// with sudo so root-owned directories work.
	staged := "/tmp/pgtend-" + checksum[:16]
	if err := w.transport.WriteFile(ctx, staged, content, 0600); err != nil {
		return engine.WriteResult{}, fmt.Errorf("staging %s: %w", req.Path, err)
	}

	mode := req.Mode
	if mode == "" {
		mode = "0640"
	}
	cmd := fmt.Sprintf("mv %s %s && chown %s:%s %s && chmod %s %s",
		staged, req.Path, req.Owner, req.Group, req.Path, mode, req.Path)
	if _, stderr, err := w.transport.ExecuteCommandWithSudo(ctx, cmd, w.sudoPassword); err != nil {
		return engine.WriteResult{}, fmt.Errorf("placing %s: %s: %w", req.Path, stderr, err)
	}

	w.logger.Infof("wrote %s", req.Path)
	return engine.WriteResult{Changed: true, Checksum: checksum}, nil
}

// EnsureDirectory creates a directory with the given ownership and
// mode, including parents. Existing directories are left alone apart
// from ownership and mode.
func (w *Writer) EnsureDirectory(ctx context.Context, dir, owner, group, mode string) error {
	if mode == "" {
		mode = "0755"
	}
	cmd := fmt.Sprintf("install -d -o %s -g %s -m %s %s", owner, group, mode, dir)
	if _, stderr, err := w.transport.ExecuteCommandWithSudo(ctx, cmd, w.sudoPassword); err != nil {
		return fmt.Errorf("creating directory %s: %s: %w", dir, stderr, err)
	}
	return nil
}

// normalizeTrailingNewline ensures exactly one trailing newline.
func normalizeTrailingNewline(content []byte) []byte {
	s := strings.TrimRight(string(content), "\n")
	return []byte(s + "\n")
}
