// Package stack declares the code-server deployment as a Pulumi component tree:
// network, identity, access policy, editor instance and load balancer.
//
// Evaluating the program only builds the resource graph. Nothing is created
// until the engine applies it.
package stack

import (
	"fmt"

	"github.com/chalkan3/codeserver-stack/pkg/config"
	"github.com/chalkan3/codeserver-stack/pkg/secrets"
	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
)

// Stack output names
const (
	OutputVpcID               = "vpcId"
	OutputPublicSubnetIDs     = "publicSubnetIds"
	OutputPrivateSubnetIDs    = "privateSubnetIds"
	OutputRoleArn             = "roleArn"
	OutputInstanceProfileName = "instanceProfileName"
	OutputSecurityGroupID     = "securityGroupId"
	OutputInstanceID          = "instanceId"
	OutputInstancePublicIP    = "instancePublicIp"
	OutputImageID             = "imageId"
	OutputLoadBalancerDNSName = "loadBalancerDnsName"
	OutputTargetGroupArn      = "targetGroupArn"
	OutputEditorURL           = "editorUrl"
	OutputEditorPassword      = "editorPassword"
	OutputRegion              = "region"
	OutputKeyPairName         = "keyPairName"
	OutputSSHPrivateKey       = "sshPrivateKey"
	OutputReadiness           = "readiness"
)

// SecretOutputs are the outputs that are always encrypted in state
var SecretOutputs = []string{OutputEditorPassword, OutputSSHPrivateKey}

// CodeServerStack is the root component of the deployment
type CodeServerStack struct {
	pulumi.ResourceState

	EditorURL pulumi.StringOutput `pulumi:"editorUrl"`

	Provider     *aws.Provider
	Network      *NetworkComponent
	Identity     *IdentityComponent
	Access       *AccessPolicyComponent
	Instance     *EditorInstanceComponent
	LoadBalancer *LoadBalancerComponent
	// Readiness is nil unless readiness.enabled is set
	Readiness *ReadinessComponent
}

// Program returns the Pulumi program for cfg. Pulumi config values under the
// codeserver namespace override cfg for the evaluation without modifying it.
func Program(cfg *config.StackConfig) pulumi.RunFunc {
	return func(ctx *pulumi.Context) error {
		effective := *cfg
		if err := config.ApplyPulumiOverrides(ctx, &effective); err != nil {
			return err
		}

		_, err := New(ctx, effective.Metadata.Name, &effective)
		return err
	}
}

// New declares the full deployment under a single component named name
func New(ctx *pulumi.Context, name string, cfg *config.StackConfig) (*CodeServerStack, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	component := &CodeServerStack{}
	err := ctx.RegisterComponentResource("codeserver:stack:CodeServerStack", name, component)
	if err != nil {
		return nil, err
	}

	ctx.Log.Info(fmt.Sprintf("🚀 Declaring code-server stack %s in %s", name, cfg.Metadata.Region), nil)

	provider, err := aws.NewProvider(ctx, fmt.Sprintf("%s-aws", name), &aws.ProviderArgs{
		Region: pulumi.String(cfg.Metadata.Region),
		DefaultTags: &aws.ProviderDefaultTagsArgs{
			Tags: defaultTags(name, cfg),
		},
	}, pulumi.Parent(component))
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS provider: %w", err)
	}
	component.Provider = provider

	childOpts := []pulumi.ResourceOption{pulumi.Parent(component), pulumi.Providers(provider)}

	network, err := NewNetworkComponent(ctx, name, cfg.Network, provider, childOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create network: %w", err)
	}
	component.Network = network

	identity, err := NewIdentityComponent(ctx, name, cfg.Identity, childOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create identity: %w", err)
	}
	component.Identity = identity

	access, err := NewAccessPolicyComponent(ctx, name, cfg, network.VpcID, childOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create access policy: %w", err)
	}
	component.Access = access

	instance, err := NewEditorInstanceComponent(ctx, name, cfg, InstancePlacement{
		SubnetID:            network.PublicSubnets[0].ID(),
		SecurityGroupID:     access.SecurityGroupID,
		InstanceProfileName: identity.InstanceProfileName,
	}, provider, childOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create editor instance: %w", err)
	}
	component.Instance = instance

	balancer, err := NewLoadBalancerComponent(ctx, name, cfg, LoadBalancerTarget{
		VpcID:      network.VpcID,
		SubnetIDs:  network.PublicSubnetIDs,
		InstanceID: instance.InstanceID,
	}, childOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create load balancer: %w", err)
	}
	component.LoadBalancer = balancer

	component.EditorURL = editorURL(balancer.DnsName, cfg.LoadBalancer.Port)

	if cfg.Readiness.Enabled {
		readiness, err := NewReadinessComponent(ctx, name, cfg.Readiness, component.EditorURL,
			[]pulumi.Resource{balancer.Listener, balancer.Attachment, instance.Instance}, pulumi.Parent(component))
		if err != nil {
			return nil, fmt.Errorf("failed to create readiness gate: %w", err)
		}
		component.Readiness = readiness
	} else {
		ctx.Log.Warn("⚠️  The load balancer may report the target unhealthy until code-server finishes installing", nil)
	}

	component.export(ctx, cfg)

	if err := ctx.RegisterResourceOutputs(component, pulumi.Map{
		"editorUrl": component.EditorURL,
	}); err != nil {
		return nil, err
	}

	ctx.Log.Info("✅ code-server stack declared", nil)
	return component, nil
}

func (s *CodeServerStack) export(ctx *pulumi.Context, cfg *config.StackConfig) {
	exporter := secrets.NewExporter(ctx, SecretOutputs...)

	exporter.Export(OutputVpcID, s.Network.VpcID)
	exporter.Export(OutputPublicSubnetIDs, s.Network.PublicSubnetIDs)
	exporter.Export(OutputPrivateSubnetIDs, s.Network.PrivateSubnetIDs)
	exporter.Export(OutputRoleArn, s.Identity.RoleArn)
	exporter.Export(OutputInstanceProfileName, s.Identity.InstanceProfileName)
	exporter.Export(OutputSecurityGroupID, s.Access.SecurityGroupID)
	exporter.Export(OutputInstanceID, s.Instance.InstanceID)
	exporter.Export(OutputInstancePublicIP, s.Instance.PublicIP)
	exporter.Export(OutputImageID, s.Instance.ImageID)
	exporter.Export(OutputLoadBalancerDNSName, s.LoadBalancer.DnsName)
	exporter.Export(OutputTargetGroupArn, s.LoadBalancer.TargetGroupArn)
	exporter.Export(OutputEditorURL, s.EditorURL)
	exporter.Export(OutputRegion, pulumi.String(cfg.Metadata.Region))

	if cfg.Editor.PasswordAuth() {
		exporter.Export(OutputEditorPassword, pulumi.String(cfg.Editor.Password))
	}
	if s.Instance.KeyPair != nil {
		exporter.Export(OutputKeyPairName, s.Instance.KeyPair.KeyName)
	}
	if s.Instance.PrivateKey != nil {
		exporter.Export(OutputSSHPrivateKey, s.Instance.PrivateKey.PrivateKeyOpenssh)
	}
	if s.Readiness != nil {
		exporter.Export(OutputReadiness, s.Readiness.Status)
	}
}

func editorURL(dnsName pulumi.StringOutput, port int) pulumi.StringOutput {
	if port == 80 {
		return pulumi.Sprintf("http://%s", dnsName)
	}
	return pulumi.Sprintf("http://%s:%d", dnsName, port)
}

func defaultTags(name string, cfg *config.StackConfig) pulumi.StringMap {
	tags := pulumi.StringMap{
		"Stack":     pulumi.String(name),
		"ManagedBy": pulumi.String("codeserver-stack"),
	}
	for k, v := range cfg.Metadata.Tags {
		tags[k] = pulumi.String(v)
	}
	return tags
}
