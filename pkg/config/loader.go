package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
	pulumiconfig "github.com/pulumi/pulumi/sdk/v3/go/pulumi/config"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of environment variables that override file values.
// The rest of the name is SECTION_FIELD with words separated by underscores,
// e.g. CODESERVER_LOAD_BALANCER_PORT or CODESERVER_INSTANCE_ROOT_VOLUME_SIZE.
const EnvPrefix = "CODESERVER_"

// configSections are the top-level keys of the YAML file, normalized
var configSections = []string{
	"metadata", "network", "identity", "instance", "access",
	"editor", "loadbalancer", "ssh", "readiness",
}

// PulumiNamespace is the Pulumi config namespace read by the program
const PulumiNamespace = "codeserver"

// ErrUnknownKey is returned for override paths that do not map to a field
var ErrUnknownKey = errors.New("unknown configuration key")

// Loader handles configuration loading and validation
type Loader struct {
	configPath string
	config     *StackConfig
	overrides  map[string]interface{}
}

// NewLoader creates a new configuration loader. An empty path means
// "defaults only", still subject to environment and explicit overrides.
func NewLoader(configPath string) *Loader {
	return &Loader{
		configPath: configPath,
		overrides:  make(map[string]interface{}),
	}
}

// Load reads the configuration file, applies overrides and defaults and validates the result
func (l *Loader) Load() (*StackConfig, error) {
	cfg := &StackConfig{}

	if l.configPath != "" {
		data, err := os.ReadFile(l.configPath)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, fmt.Errorf("configuration file not found: %s", l.configPath)
			}
			return nil, fmt.Errorf("failed to read configuration: %w", err)
		}
		parsed, err := Parse(data)
		if err != nil {
			return nil, err
		}
		cfg = parsed
	}

	if err := l.applyEnvironmentOverrides(cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := l.applyOverrides(cfg); err != nil {
		return nil, fmt.Errorf("failed to apply overrides: %w", err)
	}

	applyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	l.config = cfg
	return cfg, nil
}

// Parse decodes a YAML document without applying defaults
func Parse(data []byte) (*StackConfig, error) {
	cfg := &StackConfig{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML configuration: %w", err)
	}
	return cfg, nil
}

// Save writes the configuration as YAML
func Save(cfg *StackConfig, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal configuration: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write configuration: %w", err)
	}
	return nil
}

// SetOverride sets a configuration override using dot notation (e.g. "instance.type")
func (l *Loader) SetOverride(key string, value interface{}) {
	l.overrides[key] = value
}

// GetConfig returns the loaded configuration
func (l *Loader) GetConfig() *StackConfig {
	return l.config
}

// applyEnvironmentOverrides applies CODESERVER_SECTION_FIELD variables
func (l *Loader) applyEnvironmentOverrides(cfg *StackConfig) error {
	for _, env := range os.Environ() {
		if !strings.HasPrefix(env, EnvPrefix) {
			continue
		}
		parts := strings.SplitN(env, "=", 2)
		if len(parts) != 2 {
			continue
		}

		path, ok := envKeyPath(strings.TrimPrefix(parts[0], EnvPrefix))
		if !ok {
			continue
		}

		err := setConfigValue(cfg, path, parts[1])
		if errors.Is(err, ErrUnknownKey) {
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to apply environment override %s: %w", parts[0], err)
		}
	}

	return nil
}

// envKeyPath maps LOAD_BALANCER_PORT to loadbalancer.port
func envKeyPath(name string) (string, bool) {
	compact := strings.ToLower(strings.ReplaceAll(name, "_", ""))
	for _, section := range configSections {
		if field, ok := strings.CutPrefix(compact, section); ok && field != "" {
			return section + "." + field, true
		}
	}
	return "", false
}

// applyOverrides applies explicit overrides
func (l *Loader) applyOverrides(cfg *StackConfig) error {
	for key, value := range l.overrides {
		if err := setConfigValue(cfg, key, value); err != nil {
			return fmt.Errorf("failed to apply override %s: %w", key, err)
		}
	}
	return nil
}

// ApplyPulumiOverrides applies values from the stack's Pulumi config
// (codeserver:instanceType, codeserver:password, ...). It runs inside the
// program, after the file and CLI overrides were applied.
func ApplyPulumiOverrides(ctx *pulumi.Context, cfg *StackConfig) error {
	pc := pulumiconfig.New(ctx, PulumiNamespace)

	if val := pc.Get("instanceType"); val != "" {
		cfg.Instance.Type = val
	}
	if val := pc.Get("imageId"); val != "" {
		cfg.Instance.ImageID = val
	}
	if val := pc.Get("vpcCidr"); val != "" {
		cfg.Network.CIDR = val
	}
	if val := pc.Get("editorVersion"); val != "" {
		cfg.Editor.Version = val
	}
	// The password is stored as a secret. It is read as plain text because it
	// is rendered into user data, which the instance marks secret again.
	if val, ok := ctx.GetConfig(PulumiNamespace + ":password"); ok && val != "" {
		cfg.Editor.Password = val
	}
	if val := pc.Get("sourceCidr"); val != "" {
		cfg.Access.SourceCIDR = val
	}

	return Validate(cfg)
}

// normalizeKey lowercases a dot path and drops separators inside the field
// name, so "instance.rootVolumeSize" and "instance.root_volume_size" match.
func normalizeKey(path string) (string, string) {
	section, field, _ := strings.Cut(strings.ToLower(path), ".")
	section = strings.NewReplacer("_", "", "-", "").Replace(section)
	field = strings.NewReplacer("_", "", "-", "", ".", "").Replace(field)
	return section, field
}

// setConfigValue sets a value in the config using dot notation path
func setConfigValue(cfg *StackConfig, path string, value interface{}) error {
	section, field := normalizeKey(path)
	raw := fmt.Sprintf("%v", value)

	switch section + "." + field {
	case "metadata.name":
		cfg.Metadata.Name = raw
	case "metadata.region":
		cfg.Metadata.Region = raw

	case "network.cidr":
		cfg.Network.CIDR = raw
	case "network.maxazs":
		n, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("invalid integer %q: %w", raw, err)
		}
		cfg.Network.MaxAZs = n
	case "network.natgateways":
		n, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("invalid integer %q: %w", raw, err)
		}
		cfg.Network.NATGateways = &n

	case "identity.managedpolicyarns":
		cfg.Identity.ManagedPolicyARNs = splitList(raw)

	case "instance.type":
		cfg.Instance.Type = raw
	case "instance.imageid":
		cfg.Instance.ImageID = raw
	case "instance.rootvolumesize":
		n, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("invalid integer %q: %w", raw, err)
		}
		cfg.Instance.RootVolumeSize = n

	case "access.sourcecidr":
		cfg.Access.SourceCIDR = raw

	case "editor.version":
		cfg.Editor.Version = raw
	case "editor.arch":
		cfg.Editor.Arch = raw
	case "editor.port":
		n, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("invalid integer %q: %w", raw, err)
		}
		cfg.Editor.Port = n
	case "editor.auth":
		cfg.Editor.Auth = raw
	case "editor.password":
		cfg.Editor.Password = raw
	case "editor.cert":
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("invalid boolean %q: %w", raw, err)
		}
		cfg.Editor.Cert = b

	case "loadbalancer.port":
		n, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("invalid integer %q: %w", raw, err)
		}
		cfg.LoadBalancer.Port = n
	case "loadbalancer.internal":
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("invalid boolean %q: %w", raw, err)
		}
		cfg.LoadBalancer.Internal = b

	case "ssh.enabled":
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("invalid boolean %q: %w", raw, err)
		}
		cfg.SSH.Enabled = b
	case "ssh.publickeypath":
		cfg.SSH.PublicKeyPath = raw
	case "ssh.sourcecidr":
		cfg.SSH.SourceCIDR = raw

	case "readiness.enabled":
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("invalid boolean %q: %w", raw, err)
		}
		cfg.Readiness.Enabled = b
	case "readiness.timeout":
		d, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", raw, err)
		}
		cfg.Readiness.Timeout = d

	default:
		return fmt.Errorf("%w: %s", ErrUnknownKey, path)
	}

	return nil
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
