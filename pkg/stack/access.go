package stack

import (
	"fmt"

	"github.com/chalkan3/codeserver-stack/pkg/config"
	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws/ec2"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
)

const sshPort = 22

// AccessPolicyComponent is the security group attached to the editor instance
type AccessPolicyComponent struct {
	pulumi.ResourceState

	SecurityGroupID pulumi.IDOutput `pulumi:"securityGroupId"`

	SecurityGroup *ec2.SecurityGroup
}

// accessIngress returns the inbound rules for the instance
func accessIngress(cfg *config.StackConfig) ec2.SecurityGroupIngressArray {
	rules := ec2.SecurityGroupIngressArray{
		&ec2.SecurityGroupIngressArgs{
			Description: pulumi.String("code-server"),
			Protocol:    pulumi.String("tcp"),
			FromPort:    pulumi.Int(cfg.Editor.Port),
			ToPort:      pulumi.Int(cfg.Editor.Port),
			CidrBlocks:  pulumi.StringArray{pulumi.String(cfg.Access.SourceCIDR)},
		},
	}

	if cfg.SSH.Enabled {
		rules = append(rules, &ec2.SecurityGroupIngressArgs{
			Description: pulumi.String("SSH"),
			Protocol:    pulumi.String("tcp"),
			FromPort:    pulumi.Int(sshPort),
			ToPort:      pulumi.Int(sshPort),
			CidrBlocks:  pulumi.StringArray{pulumi.String(cfg.SSH.SourceCIDR)},
		})
	}

	return rules
}

// NewAccessPolicyComponent declares the instance security group
func NewAccessPolicyComponent(
	ctx *pulumi.Context,
	name string,
	cfg *config.StackConfig,
	vpcID pulumi.IDOutput,
	opts ...pulumi.ResourceOption,
) (*AccessPolicyComponent, error) {
	component := &AccessPolicyComponent{}
	err := ctx.RegisterComponentResource("codeserver:security:AccessPolicy", name, component, opts...)
	if err != nil {
		return nil, err
	}

	ctx.Log.Info(fmt.Sprintf("🔒 Allowing TCP %d from %s", cfg.Editor.Port, cfg.Access.SourceCIDR), nil)
	if cfg.Access.SourceCIDR == config.AnyIPv4 {
		ctx.Log.Warn(fmt.Sprintf("⚠️  code-server port %d is reachable from any IPv4 address", cfg.Editor.Port), nil)
	}

	sg, err := ec2.NewSecurityGroup(ctx, fmt.Sprintf("%s-sg", name), &ec2.SecurityGroupArgs{
		Name:        pulumi.Sprintf("%s-sg", name),
		Description: pulumi.String("Allow HTTP to the code-server instance"),
		VpcId:       vpcID,
		Ingress:     accessIngress(cfg),
		Egress: ec2.SecurityGroupEgressArray{
			&ec2.SecurityGroupEgressArgs{
				Protocol:   pulumi.String("-1"),
				FromPort:   pulumi.Int(0),
				ToPort:     pulumi.Int(0),
				CidrBlocks: pulumi.StringArray{pulumi.String(config.AnyIPv4)},
			},
		},
		Tags: nameTag(fmt.Sprintf("%s-sg", name)),
	}, pulumi.Parent(component))
	if err != nil {
		return nil, fmt.Errorf("failed to create security group: %w", err)
	}

	component.SecurityGroup = sg
	component.SecurityGroupID = sg.ID()

	if err := ctx.RegisterResourceOutputs(component, pulumi.Map{
		"securityGroupId": component.SecurityGroupID,
	}); err != nil {
		return nil, err
	}

	return component, nil
}
