package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPublicKey = "ssh-ed25519 AAAAC3NzaC1lZDI1NTE5AAAAIAABAgMEBQYHCAkKCwwNDg8QERITFBUWFxgZGhscHR4f test@example"

func TestValidate_Nil(t *testing.T) {
	assert.Error(t, Validate(nil))
}

func TestValidate_Fields(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*StackConfig)
		field  string
	}{
		{"EmptyName", func(c *StackConfig) { c.Metadata.Name = "" }, "metadata.name"},
		{"EmptyRegion", func(c *StackConfig) { c.Metadata.Region = "" }, "metadata.region"},
		{"BadCIDR", func(c *StackConfig) { c.Network.CIDR = "10.0.0.0/33" }, "network.cidr"},
		{"IPv6CIDR", func(c *StackConfig) { c.Network.CIDR = "fd00::/48" }, "network.cidr"},
		{"TinyCIDR", func(c *StackConfig) { c.Network.CIDR = "10.0.0.0/28" }, "network.cidr"},
		{"TooManyAZs", func(c *StackConfig) { c.Network.MaxAZs = 6 }, "network.maxAzs"},
		{"NegativeNAT", func(c *StackConfig) { n := -1; c.Network.NATGateways = &n }, "network.natGateways"},
		{"BadPolicyARN", func(c *StackConfig) { c.Identity.ManagedPolicyARNs = []string{"AdministratorAccess"} }, "identity.managedPolicyArns"},
		{"EmptyPrincipal", func(c *StackConfig) { c.Identity.ServicePrincipal = "" }, "identity.servicePrincipal"},
		{"EmptyInstanceType", func(c *StackConfig) { c.Instance.Type = "" }, "instance.type"},
		{"BadImageID", func(c *StackConfig) { c.Instance.ImageID = "img-123" }, "instance.imageId"},
		{"NoImageSource", func(c *StackConfig) { c.Instance.ImageParameter = "" }, "instance.imageParameter"},
		{"SmallVolume", func(c *StackConfig) { c.Instance.RootVolumeSize = 4 }, "instance.rootVolumeSize"},
		{"BadSourceCIDR", func(c *StackConfig) { c.Access.SourceCIDR = "anywhere" }, "access.sourceCidr"},
		{"IPv6SourceCIDR", func(c *StackConfig) { c.Access.SourceCIDR = "::/0" }, "access.sourceCidr"},
		{"BadVersion", func(c *StackConfig) { c.Editor.Version = "latest" }, "editor.version"},
		{"BadArch", func(c *StackConfig) { c.Editor.Arch = "sparc" }, "editor.arch"},
		{"BadBindHost", func(c *StackConfig) { c.Editor.BindHost = "everywhere" }, "editor.bindHost"},
		{"BadEditorPort", func(c *StackConfig) { c.Editor.Port = 70000 }, "editor.port"},
		{"BadAuth", func(c *StackConfig) { c.Editor.Auth = "oauth" }, "editor.auth"},
		{"MissingPassword", func(c *StackConfig) { c.Editor.Password = "" }, "editor.password"},
		{"QuotedPassword", func(c *StackConfig) { c.Editor.Password = `pa"ss` }, "editor.password"},
		{"DollarPassword", func(c *StackConfig) { c.Editor.Password = "pa$HOME" }, "editor.password"},
		{"BadListenerPort", func(c *StackConfig) { c.LoadBalancer.Port = 0 }, "loadBalancer.port"},
		{"SamePorts", func(c *StackConfig) { c.LoadBalancer.Port = c.Editor.Port }, "loadBalancer.port"},
		{"BadHealthPath", func(c *StackConfig) { c.LoadBalancer.HealthPath = "healthz" }, "loadBalancer.healthPath"},
		{"BadSSHSource", func(c *StackConfig) { c.SSH.Enabled = true; c.SSH.SourceCIDR = "x" }, "ssh.sourceCidr"},
		{"IPv6SSHSource", func(c *StackConfig) { c.SSH.Enabled = true; c.SSH.SourceCIDR = "2001:db8::/32" }, "ssh.sourceCidr"},
		{"MissingSSHKey", func(c *StackConfig) {
			c.SSH.Enabled = true
			c.SSH.SourceCIDR = AnyIPv4
			c.SSH.PublicKeyPath = "/nonexistent/id.pub"
		}, "ssh.publicKeyPath"},
		{"ZeroReadinessTimeout", func(c *StackConfig) { c.Readiness.Enabled = true; c.Readiness.Timeout = 0 }, "readiness.timeout"},
		{"IntervalAboveTimeout", func(c *StackConfig) {
			c.Readiness.Enabled = true
			c.Readiness.Interval = c.Readiness.Timeout * 2
		}, "readiness.interval"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := Validate(cfg)
			require.Error(t, err)

			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestValidate_AuthNoneWithoutPassword(t *testing.T) {
	cfg := Default()
	cfg.Editor.Auth = AuthNone
	cfg.Editor.Password = ""

	assert.NoError(t, Validate(cfg))
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := Default()
	cfg.Instance.Type = ""
	cfg.Editor.Version = "v-next"
	cfg.Network.MaxAZs = 0

	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "instance.type")
	assert.Contains(t, err.Error(), "editor.version")
	assert.Contains(t, err.Error(), "network.maxAzs")
}

func TestReadPublicKey(t *testing.T) {
	dir := t.TempDir()

	valid := filepath.Join(dir, "id_ed25519.pub")
	require.NoError(t, os.WriteFile(valid, []byte(testPublicKey+"\n"), 0600))

	key, err := ReadPublicKey(valid)
	require.NoError(t, err)
	assert.Equal(t, testPublicKey, key)

	invalid := filepath.Join(dir, "garbage.pub")
	require.NoError(t, os.WriteFile(invalid, []byte("not a key"), 0600))

	_, err = ReadPublicKey(invalid)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid SSH public key")

	_, err = ReadPublicKey(filepath.Join(dir, "missing.pub"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read file")
}

func TestValidate_SSHWithValidKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "id.pub")
	require.NoError(t, os.WriteFile(path, []byte(testPublicKey), 0600))

	cfg := Default()
	cfg.SSH.Enabled = true
	cfg.SSH.SourceCIDR = "203.0.113.0/24"
	cfg.SSH.PublicKeyPath = path

	assert.NoError(t, Validate(cfg))
}
