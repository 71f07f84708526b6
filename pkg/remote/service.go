package remote

import (
	"context"
	"fmt"

	"github.com/pgtend/pgtend/pkg/engine"
	"github.com/pgtend/pgtend/pkg/telemetry"
	"github.com/pgtend/pgtend/pkg/transports/ssh"
)

// ServiceController drives systemd units over the transport.
// Conditional actions consult the run's change flags and are skipped
// when the flag was not raised.
type ServiceController struct {
	transport    ssh.Transport
	sudoPassword string
	flags        engine.FlagSource
	logger       *telemetry.Logger
}

// NewServiceController creates a service controller. flags supplies
// the current run's change flags for OnlyIf conditions.
func NewServiceController(transport ssh.Transport, sudoPassword string, flags engine.FlagSource, logger *telemetry.Logger) *ServiceController {
	if logger == nil {
		logger, _ = telemetry.NewLogger(telemetry.DefaultConfig().Logging)
	}
	return &ServiceController{
		transport:    transport,
		sudoPassword: sudoPassword,
		flags:        flags,
		logger:       logger.NewComponentLogger("service"),
	}
}

// Apply performs one service action. It returns false when the action
// was skipped because its OnlyIf flag was not raised.
func (s *ServiceController) Apply(ctx context.Context, req engine.ServiceRequest) (bool, error) {
	if req.Name == "" {
		return false, fmt.Errorf("service request needs a unit name")
	}
	if req.OnlyIf != "" && (s.flags == nil || !s.flags.Changed(req.OnlyIf)) {
		s.logger.Debugf("skipping %s of %s: nothing changed", req.Action, req.Name)
		return false, nil
	}

	switch req.Action {
	case engine.ActionStart, engine.ActionStop, engine.ActionEnable, engine.ActionDisable, engine.ActionRestart:
	default:
		return false, fmt.Errorf("unsupported service action: %s", req.Action)
	}

	cmd := fmt.Sprintf("systemctl %s %s", req.Action, req.Name)
	if _, stderr, err := s.transport.ExecuteCommandWithSudo(ctx, cmd, s.sudoPassword); err != nil {
		return false, fmt.Errorf("%s %s: %s: %w", req.Action, req.Name, stderr, err)
	}

	s.logger.Infof("%s %s", req.Action, req.Name)
	return true, nil
}
