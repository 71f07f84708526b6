package remote

import (
	"context"
	"fmt"
	"strings"

	"github.com/pgtend/pgtend/pkg/engine"
	"github.com/pgtend/pgtend/pkg/telemetry"
	"github.com/pgtend/pgtend/pkg/transports/ssh"
)

// packageManager identifies the host's package tooling.
type packageManager string

const (
	managerApt    packageManager = "apt"
	managerDnf    packageManager = "dnf"
	managerZypper packageManager = "zypper"
)

// Installer installs server packages over the transport. The package
// manager is detected on first use and cached.
type Installer struct {
	transport    ssh.Transport
	sudoPassword string
	logger       *telemetry.Logger
	manager      packageManager
}

// NewInstaller creates a package installer over the given transport.
func NewInstaller(transport ssh.Transport, sudoPassword string, logger *telemetry.Logger) *Installer {
	if logger == nil {
		logger, _ = telemetry.NewLogger(telemetry.DefaultConfig().Logging)
	}
	return &Installer{
		transport:    transport,
		sudoPassword: sudoPassword,
		logger:       logger.NewComponentLogger("installer"),
	}
}

// Install configures the extra repository when one is given, then
// installs the packages that are not already present.
func (i *Installer) Install(ctx context.Context, packages []string, extra *engine.Repository) error {
	manager, err := i.detectManager(ctx)
	if err != nil {
		return err
	}

	if extra != nil {
		if err := i.configureRepository(ctx, manager, extra); err != nil {
			return err
		}
	}

	missing := []string{}
	for _, pkg := range packages {
		installed, err := i.isInstalled(ctx, manager, pkg)
		if err != nil {
			return err
		}
		if !installed {
			missing = append(missing, pkg)
		}
	}
	if len(missing) == 0 {
		i.logger.Debug("all packages already installed")
		return nil
	}

	i.logger.Infof("installing: %s", strings.Join(missing, " "))
	return i.installPackages(ctx, manager, missing)
}

// detectManager probes for the host's package manager.
func (i *Installer) detectManager(ctx context.Context) (packageManager, error) {
	if i.manager != "" {
		return i.manager, nil
	}

	probes := []struct {
		binary  string
		manager packageManager
	}{
		{"apt-get", managerApt},
		{"dnf", managerDnf},
		{"zypper", managerZypper},
	}
	for _, p := range probes {
		stdout, _, err := i.transport.ExecuteCommand(ctx, fmt.Sprintf("command -v %s || true", p.binary))
		if err != nil {
			return "", fmt.Errorf("probing for %s: %w", p.binary, err)
		}
		if strings.TrimSpace(stdout) != "" {
			i.manager = p.manager
			return p.manager, nil
		}
	}
	return "", fmt.Errorf("no supported package manager found on host")
}

func (i *Installer) isInstalled(ctx context.Context, manager packageManager, pkg string) (bool, error) {
	var cmd string
	switch manager {
	case managerApt:
		cmd = fmt.Sprintf("dpkg-query -W -f='${Status}' %s 2>/dev/null || true", pkg)
	case managerDnf, managerZypper:
		cmd = fmt.Sprintf("rpm -q %s 2>/dev/null || true", pkg)
	default:
		return false, fmt.Errorf("unsupported package manager: %s", manager)
	}

	stdout, _, err := i.transport.ExecuteCommand(ctx, cmd)
	if err != nil {
		return false, fmt.Errorf("checking package %s: %w", pkg, err)
	}

	switch manager {
	case managerApt:
		return strings.Contains(stdout, "install ok installed"), nil
	default:
		return stdout != "" && !strings.Contains(stdout, "not installed"), nil
	}
}

func (i *Installer) installPackages(ctx context.Context, manager packageManager, packages []string) error {
	list := strings.Join(packages, " ")
	var cmd string
	switch manager {
	case managerApt:
		cmd = fmt.Sprintf("DEBIAN_FRONTEND=noninteractive apt-get install -y %s", list)
	case managerDnf:
		cmd = fmt.Sprintf("dnf install -y %s", list)
	case managerZypper:
		cmd = fmt.Sprintf("zypper --non-interactive install %s", list)
	default:
		return fmt.Errorf("unsupported package manager: %s", manager)
	}

	if _, stderr, err := i.transport.ExecuteCommandWithSudo(ctx, cmd, i.sudoPassword); err != nil {
		return fmt.Errorf("installing packages: %s: %w", stderr, err)
	}
	return nil
}

// configureRepository writes the repository definition and refreshes
// the package index.
func (i *Installer) configureRepository(ctx context.Context, manager packageManager, repo *engine.Repository) error {
	if repo.Name == "" || repo.URL == "" {
		return fmt.Errorf("repository needs a name and a url")
	}

	switch manager {
	case managerApt:
		suite := repo.Suite
		if suite == "" {
			suite = "$(lsb_release -cs)-pgdg"
		}
		component := repo.Component
		if component == "" {
			component = "main"
		}
		line := fmt.Sprintf("deb %s %s %s", repo.URL, suite, component)
		cmd := fmt.Sprintf("echo '%s' > /etc/apt/sources.list.d/%s.list", line, repo.Name)
		if _, stderr, err := i.transport.ExecuteCommandWithSudo(ctx, "sh -c \""+cmd+"\"", i.sudoPassword); err != nil {
			return fmt.Errorf("configuring apt repository: %s: %w", stderr, err)
		}
		if repo.Key != "" {
			keyCmd := fmt.Sprintf("curl -fsSL %s -o /etc/apt/trusted.gpg.d/%s.asc", repo.Key, repo.Name)
			if _, stderr, err := i.transport.ExecuteCommandWithSudo(ctx, keyCmd, i.sudoPassword); err != nil {
				return fmt.Errorf("importing apt key: %s: %w", stderr, err)
			}
		}
		if _, stderr, err := i.transport.ExecuteCommandWithSudo(ctx, "apt-get update", i.sudoPassword); err != nil {
			return fmt.Errorf("refreshing apt index: %s: %w", stderr, err)
		}

	case managerDnf:
		def := fmt.Sprintf("[%s]\\nname=%s\\nbaseurl=%s\\nenabled=1\\ngpgcheck=1\\ngpgkey=%s",
			repo.Name, repo.Name, repo.URL, repo.Key)
		cmd := fmt.Sprintf("printf '%s\\n' > /etc/yum.repos.d/%s.repo", def, repo.Name)
		if _, stderr, err := i.transport.ExecuteCommandWithSudo(ctx, "sh -c \""+cmd+"\"", i.sudoPassword); err != nil {
			return fmt.Errorf("configuring dnf repository: %s: %w", stderr, err)
		}

	case managerZypper:
		cmd := fmt.Sprintf("zypper --non-interactive addrepo --refresh %s %s || true", repo.URL, repo.Name)
		if _, stderr, err := i.transport.ExecuteCommandWithSudo(ctx, cmd, i.sudoPassword); err != nil {
			return fmt.Errorf("configuring zypper repository: %s: %w", stderr, err)
		}

	default:
		return fmt.Errorf("unsupported package manager: %s", manager)
	}

	return nil
}
