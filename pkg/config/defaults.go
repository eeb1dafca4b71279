package config

import "time"

const (
	// DefaultStackName is the logical name of the stack when none is given
	DefaultStackName = "CodeServerStack"

	DefaultRegion = "us-east-1"
	DefaultCIDR   = "10.0.0.0/16"
	DefaultMaxAZs = 2

	DefaultServicePrincipal = "ec2.amazonaws.com"
	AdministratorAccessARN  = "arn:aws:iam::aws:policy/AdministratorAccess"

	DefaultInstanceType   = "t3.large"
	DefaultRootDevice     = "/dev/xvda"
	DefaultRootVolumeSize = 20
	DefaultRootVolumeType = "gp2"

	// AmazonLinux2ImageParameter resolves to the latest Amazon Linux 2 image
	// (standard edition, HVM, general purpose storage).
	AmazonLinux2ImageParameter = "/aws/service/ami-amazon-linux-latest/amzn2-ami-hvm-x86_64-gp2"

	AnyIPv4 = "0.0.0.0/0"

	DefaultEditorVersion  = "3.5.0"
	DefaultEditorArch     = "amd64"
	DefaultEditorBindHost = "0.0.0.0"
	DefaultEditorPort     = 8080
	DefaultEditorPassword = "AWSServerless!"

	DefaultListenerPort  = 80
	DefaultHealthPath    = "/"
	DefaultHealthMatcher = "200-399"

	DefaultReadinessTimeout  = 10 * time.Minute
	DefaultReadinessInterval = 10 * time.Second
)

// Editor auth modes understood by code-server
const (
	AuthPassword = "password"
	AuthNone     = "none"
)

// Default returns the configuration that reproduces the original stack
func Default() *StackConfig {
	cfg := &StackConfig{}
	applyDefaults(cfg)
	return cfg
}

// applyDefaults fills every zero-valued field with its default
func applyDefaults(cfg *StackConfig) {
	if cfg.Metadata.Name == "" {
		cfg.Metadata.Name = DefaultStackName
	}
	if cfg.Metadata.Region == "" {
		cfg.Metadata.Region = DefaultRegion
	}

	if cfg.Network.CIDR == "" {
		cfg.Network.CIDR = DefaultCIDR
	}
	if cfg.Network.MaxAZs == 0 {
		cfg.Network.MaxAZs = DefaultMaxAZs
	}

	if cfg.Identity.ServicePrincipal == "" {
		cfg.Identity.ServicePrincipal = DefaultServicePrincipal
	}
	if len(cfg.Identity.ManagedPolicyARNs) == 0 {
		cfg.Identity.ManagedPolicyARNs = []string{AdministratorAccessARN}
	}

	if cfg.Instance.Type == "" {
		cfg.Instance.Type = DefaultInstanceType
	}
	if cfg.Instance.ImageParameter == "" {
		cfg.Instance.ImageParameter = AmazonLinux2ImageParameter
	}
	if cfg.Instance.RootDevice == "" {
		cfg.Instance.RootDevice = DefaultRootDevice
	}
	if cfg.Instance.RootVolumeSize == 0 {
		cfg.Instance.RootVolumeSize = DefaultRootVolumeSize
	}
	if cfg.Instance.RootVolumeType == "" {
		cfg.Instance.RootVolumeType = DefaultRootVolumeType
	}

	if cfg.Access.SourceCIDR == "" {
		cfg.Access.SourceCIDR = AnyIPv4
	}

	if cfg.Editor.Version == "" {
		cfg.Editor.Version = DefaultEditorVersion
	}
	if cfg.Editor.Arch == "" {
		cfg.Editor.Arch = DefaultEditorArch
	}
	if cfg.Editor.BindHost == "" {
		cfg.Editor.BindHost = DefaultEditorBindHost
	}
	if cfg.Editor.Port == 0 {
		cfg.Editor.Port = DefaultEditorPort
	}
	if cfg.Editor.Auth == "" {
		cfg.Editor.Auth = AuthPassword
	}
	if cfg.Editor.Auth == AuthPassword && cfg.Editor.Password == "" {
		cfg.Editor.Password = DefaultEditorPassword
	}

	if cfg.LoadBalancer.Port == 0 {
		cfg.LoadBalancer.Port = DefaultListenerPort
	}
	if cfg.LoadBalancer.HealthPath == "" {
		cfg.LoadBalancer.HealthPath = DefaultHealthPath
	}
	if cfg.LoadBalancer.HealthMatcher == "" {
		cfg.LoadBalancer.HealthMatcher = DefaultHealthMatcher
	}

	if cfg.SSH.Enabled && cfg.SSH.SourceCIDR == "" {
		cfg.SSH.SourceCIDR = AnyIPv4
	}

	if cfg.Readiness.Timeout == 0 {
		cfg.Readiness.Timeout = DefaultReadinessTimeout
	}
	if cfg.Readiness.Interval == 0 {
		cfg.Readiness.Interval = DefaultReadinessInterval
	}
}
