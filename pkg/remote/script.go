package remote

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/pgtend/pgtend/pkg/engine"
	"github.com/pgtend/pgtend/pkg/telemetry"
	"github.com/pgtend/pgtend/pkg/transports/ssh"
)

// ScriptRunner executes post-provisioning scripts on the target host.
// Scripts are uploaded to a temporary file, run as the requested user,
// and removed afterwards.
type ScriptRunner struct {
	transport    ssh.Transport
	sudoPassword string
	logger       *telemetry.Logger
}

// NewScriptRunner creates a script runner over the given transport.
func NewScriptRunner(transport ssh.Transport, sudoPassword string, logger *telemetry.Logger) *ScriptRunner {
	if logger == nil {
		logger, _ = telemetry.NewLogger(telemetry.DefaultConfig().Logging)
	}
	return &ScriptRunner{
		transport:    transport,
		sudoPassword: sudoPassword,
		logger:       logger.NewComponentLogger("scripts"),
	}
}

// Run uploads and executes one script. When req.Database is set the
// content is fed to psql as SQL; otherwise it runs as a shell script.
func (r *ScriptRunner) Run(ctx context.Context, req engine.ScriptRequest) (engine.ScriptResult, error) {
	user := req.User
	if user == "" {
		user = "postgres"
	}

	sum := sha256.Sum256([]byte(req.Content))
	staged := "/tmp/pgtend-script-" + hex.EncodeToString(sum[:8])
	if err := r.transport.WriteFile(ctx, staged, []byte(req.Content), 0644); err != nil {
		return engine.ScriptResult{}, fmt.Errorf("staging script: %w", err)
	}
	defer r.transport.ExecuteCommand(ctx, fmt.Sprintf("rm -f %s", staged))

	// The transport prefixes sudo, so only the target-user flags are
	// built here.
	var cmd string
	if req.Database != "" {
		cmd = fmt.Sprintf("-u %s psql -d %s -f %s", user, req.Database, staged)
	} else {
		cmd = fmt.Sprintf("-u %s /bin/sh %s", user, staged)
	}

	stdout, stderr, err := r.transport.ExecuteCommandWithSudo(ctx, cmd, r.sudoPassword)
	output := strings.TrimSpace(stdout + stderr)
	if err != nil {
		result := engine.ScriptResult{ExitCode: exitCode(err), Output: output}
		r.logger.Warnf("script failed with exit code %d", result.ExitCode)
		return result, fmt.Errorf("running script: %w", err)
	}

	return engine.ScriptResult{ExitCode: 0, Output: output}, nil
}

func exitCode(err error) int {
	var terr *ssh.TransportError
	if errors.As(err, &terr) {
		err = terr.Err
	}
	type exitStatus interface{ ExitStatus() int }
	var e exitStatus
	if errors.As(err, &e) {
		return e.ExitStatus()
	}
	return 1
}
