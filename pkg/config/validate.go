package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"

	"github.com/Masterminds/semver/v3"
	"golang.org/x/crypto/ssh"
)

// ValidationError describes a single invalid field
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

var supportedArchs = map[string]bool{"amd64": true, "arm64": true}

// Validate checks a defaulted configuration and returns every problem found, joined
func Validate(cfg *StackConfig) error {
	if cfg == nil {
		return fmt.Errorf("configuration is nil")
	}

	var errs []error
	add := func(field, format string, args ...interface{}) {
		errs = append(errs, &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if cfg.Metadata.Name == "" {
		add("metadata.name", "stack name is required")
	}
	if cfg.Metadata.Region == "" {
		add("metadata.region", "region is required")
	}

	if _, ipnet, err := net.ParseCIDR(cfg.Network.CIDR); err != nil {
		add("network.cidr", "invalid CIDR %q", cfg.Network.CIDR)
	} else if ipnet.IP.To4() == nil {
		add("network.cidr", "only IPv4 address ranges are supported")
	} else if ones, _ := ipnet.Mask.Size(); ones > 24 {
		add("network.cidr", "prefix /%d is too small to hold public and private subnets", ones)
	}
	if cfg.Network.MaxAZs < 1 || cfg.Network.MaxAZs > 4 {
		add("network.maxAzs", "must be between 1 and 4, got %d", cfg.Network.MaxAZs)
	}
	if cfg.Network.NATGateways != nil && *cfg.Network.NATGateways < 0 {
		add("network.natGateways", "must not be negative")
	}

	if cfg.Identity.ServicePrincipal == "" {
		add("identity.servicePrincipal", "service principal is required")
	}
	for _, arn := range cfg.Identity.ManagedPolicyARNs {
		if !strings.HasPrefix(arn, "arn:") || !strings.Contains(arn, ":policy/") {
			add("identity.managedPolicyArns", "invalid managed policy ARN %q", arn)
		}
	}

	if cfg.Instance.Type == "" {
		add("instance.type", "instance type is required")
	}
	if cfg.Instance.ImageID != "" && !strings.HasPrefix(cfg.Instance.ImageID, "ami-") {
		add("instance.imageId", "image ID must start with ami-, got %q", cfg.Instance.ImageID)
	}
	if cfg.Instance.ImageID == "" && cfg.Instance.ImageParameter == "" {
		add("instance.imageParameter", "either imageId or imageParameter is required")
	}
	if cfg.Instance.RootVolumeSize < 8 {
		add("instance.rootVolumeSize", "must be at least 8 GiB, got %d", cfg.Instance.RootVolumeSize)
	}

	if !validIPv4CIDR(cfg.Access.SourceCIDR) {
		add("access.sourceCidr", "invalid IPv4 CIDR %q", cfg.Access.SourceCIDR)
	}

	if _, err := semver.StrictNewVersion(cfg.Editor.Version); err != nil {
		add("editor.version", "invalid release version %q", cfg.Editor.Version)
	}
	if !supportedArchs[cfg.Editor.Arch] {
		add("editor.arch", "unsupported architecture %q", cfg.Editor.Arch)
	}
	if net.ParseIP(cfg.Editor.BindHost) == nil {
		add("editor.bindHost", "invalid bind address %q", cfg.Editor.BindHost)
	}
	if !validPort(cfg.Editor.Port) {
		add("editor.port", "invalid port %d", cfg.Editor.Port)
	}
	switch cfg.Editor.Auth {
	case AuthPassword:
		if cfg.Editor.Password == "" {
			add("editor.password", "password is required when auth is %q", AuthPassword)
		}
		if strings.ContainsAny(cfg.Editor.Password, "\"\n`$\\") {
			add("editor.password", "password must not contain quotes, backslashes, $ or newlines")
		}
	case AuthNone:
	default:
		add("editor.auth", "unsupported auth mode %q (use %q or %q)", cfg.Editor.Auth, AuthPassword, AuthNone)
	}

	if !validPort(cfg.LoadBalancer.Port) {
		add("loadBalancer.port", "invalid port %d", cfg.LoadBalancer.Port)
	}
	if cfg.LoadBalancer.Port == cfg.Editor.Port {
		add("loadBalancer.port", "listener port must differ from the editor port %d", cfg.Editor.Port)
	}
	if !strings.HasPrefix(cfg.LoadBalancer.HealthPath, "/") {
		add("loadBalancer.healthPath", "must start with /")
	}

	if cfg.SSH.Enabled {
		if !validIPv4CIDR(cfg.SSH.SourceCIDR) {
			add("ssh.sourceCidr", "invalid IPv4 CIDR %q", cfg.SSH.SourceCIDR)
		}
		if cfg.SSH.PublicKeyPath != "" {
			if _, err := ReadPublicKey(cfg.SSH.PublicKeyPath); err != nil {
				add("ssh.publicKeyPath", "%v", err)
			}
		}
	}

	if cfg.Readiness.Enabled {
		if cfg.Readiness.Timeout <= 0 {
			add("readiness.timeout", "must be positive")
		}
		if cfg.Readiness.Interval <= 0 || cfg.Readiness.Interval > cfg.Readiness.Timeout {
			add("readiness.interval", "must be positive and not exceed the timeout")
		}
	}

	return errors.Join(errs...)
}

func validPort(p int) bool {
	return p > 0 && p <= 65535
}

// validIPv4CIDR accepts only IPv4 ranges; security group ingress takes
// them in CidrBlocks
func validIPv4CIDR(cidr string) bool {
	_, ipnet, err := net.ParseCIDR(cidr)
	return err == nil && ipnet.IP.To4() != nil
}

// ReadPublicKey reads an OpenSSH authorized_keys formatted public key and checks it parses
func ReadPublicKey(path string) (string, error) {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(home, path[2:])
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read file %s: %w", path, err)
	}

	if _, _, _, _, err := ssh.ParseAuthorizedKey(content); err != nil {
		return "", fmt.Errorf("invalid SSH public key in %s: %w", path, err)
	}

	return strings.TrimSpace(string(content)), nil
}
