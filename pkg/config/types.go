package config

import "time"

// StackConfig is the complete description of a code-server deployment.
type StackConfig struct {
	Metadata     Metadata           `yaml:"metadata" json:"metadata"`
	Network      NetworkConfig      `yaml:"network" json:"network"`
	Identity     IdentityConfig     `yaml:"identity" json:"identity"`
	Instance     InstanceConfig     `yaml:"instance" json:"instance"`
	Access       AccessConfig       `yaml:"access" json:"access"`
	Editor       EditorConfig       `yaml:"editor" json:"editor"`
	LoadBalancer LoadBalancerConfig `yaml:"loadBalancer" json:"loadBalancer"`
	SSH          SSHConfig          `yaml:"ssh" json:"ssh"`
	Readiness    ReadinessConfig    `yaml:"readiness" json:"readiness"`
}

// Metadata identifies the stack and the region it is deployed to
type Metadata struct {
	Name   string            `yaml:"name" json:"name"`
	Region string            `yaml:"region" json:"region"`
	Tags   map[string]string `yaml:"tags,omitempty" json:"tags,omitempty"`
}

// NetworkConfig describes the VPC and its subnet partition
type NetworkConfig struct {
	CIDR        string `yaml:"cidr" json:"cidr"`
	MaxAZs      int    `yaml:"maxAzs" json:"maxAzs"`
	NATGateways *int   `yaml:"natGateways,omitempty" json:"natGateways,omitempty"`
}

// IdentityConfig describes the role granted to the instance
type IdentityConfig struct {
	ServicePrincipal  string   `yaml:"servicePrincipal" json:"servicePrincipal"`
	ManagedPolicyARNs []string `yaml:"managedPolicyArns" json:"managedPolicyArns"`
}

// InstanceConfig describes the compute instance running the editor
type InstanceConfig struct {
	Type           string `yaml:"type" json:"type"`
	ImageID        string `yaml:"imageId,omitempty" json:"imageId,omitempty"`
	ImageParameter string `yaml:"imageParameter" json:"imageParameter"`
	RootDevice     string `yaml:"rootDevice" json:"rootDevice"`
	RootVolumeSize int    `yaml:"rootVolumeSize" json:"rootVolumeSize"`
	RootVolumeType string `yaml:"rootVolumeType" json:"rootVolumeType"`
}

// AccessConfig is the inbound allow-list applied to the instance
type AccessConfig struct {
	SourceCIDR string `yaml:"sourceCidr" json:"sourceCidr"`
}

// EditorConfig controls the code-server release and its config.yaml
type EditorConfig struct {
	Version  string `yaml:"version" json:"version"`
	Arch     string `yaml:"arch" json:"arch"`
	BindHost string `yaml:"bindHost" json:"bindHost"`
	Port     int    `yaml:"port" json:"port"`
	Auth     string `yaml:"auth" json:"auth"`
	Password string `yaml:"password,omitempty" json:"password,omitempty"`
	Cert     bool   `yaml:"cert" json:"cert"`
}

// LoadBalancerConfig controls the public listener
type LoadBalancerConfig struct {
	Port          int    `yaml:"port" json:"port"`
	Internal      bool   `yaml:"internal" json:"internal"`
	HealthPath    string `yaml:"healthPath" json:"healthPath"`
	HealthMatcher string `yaml:"healthMatcher" json:"healthMatcher"`
}

// SSHConfig enables optional shell access to the instance
type SSHConfig struct {
	Enabled       bool   `yaml:"enabled" json:"enabled"`
	PublicKeyPath string `yaml:"publicKeyPath,omitempty" json:"publicKeyPath,omitempty"`
	SourceCIDR    string `yaml:"sourceCidr,omitempty" json:"sourceCidr,omitempty"`
}

// ReadinessConfig enables the post-provision wait for the editor endpoint
type ReadinessConfig struct {
	Enabled  bool          `yaml:"enabled" json:"enabled"`
	Timeout  time.Duration `yaml:"timeout" json:"timeout"`
	Interval time.Duration `yaml:"interval" json:"interval"`
}

// NATGatewayCount returns the effective number of NAT gateways for the given AZ count
func (n NetworkConfig) NATGatewayCount(azs int) int {
	count := azs
	if n.NATGateways != nil {
		count = *n.NATGateways
	}
	if count > azs {
		count = azs
	}
	if count < 0 {
		count = 0
	}
	return count
}

// PasswordAuth reports whether the editor is configured for password login
func (e EditorConfig) PasswordAuth() bool {
	return e.Auth == AuthPassword
}

// Redacted returns a copy of the configuration safe to print
func (c *StackConfig) Redacted() *StackConfig {
	out := *c
	if out.Editor.Password != "" {
		out.Editor.Password = "********"
	}
	return &out
}
