package stack

import (
	"encoding/json"
	"fmt"

	"github.com/chalkan3/codeserver-stack/pkg/config"
	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws/iam"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
)

// IdentityComponent is the role the instance runs as, wrapped in an instance profile
type IdentityComponent struct {
	pulumi.ResourceState

	RoleArn             pulumi.StringOutput `pulumi:"roleArn"`
	InstanceProfileName pulumi.StringOutput `pulumi:"instanceProfileName"`

	Role            *iam.Role
	InstanceProfile *iam.InstanceProfile
}

type policyDocument struct {
	Version   string            `json:"Version"`
	Statement []policyStatement `json:"Statement"`
}

type policyStatement struct {
	Effect    string          `json:"Effect"`
	Principal policyPrincipal `json:"Principal"`
	Action    string          `json:"Action"`
}

type policyPrincipal struct {
	Service string `json:"Service"`
}

// assumeRolePolicy returns the trust policy letting servicePrincipal assume the role
func assumeRolePolicy(servicePrincipal string) (string, error) {
	doc := policyDocument{
		Version: "2012-10-17",
		Statement: []policyStatement{
			{
				Effect:    "Allow",
				Principal: policyPrincipal{Service: servicePrincipal},
				Action:    "sts:AssumeRole",
			},
		},
	}

	out, err := json.Marshal(doc)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// NewIdentityComponent declares the role, its managed policy attachments and the instance profile
func NewIdentityComponent(
	ctx *pulumi.Context,
	name string,
	idCfg config.IdentityConfig,
	opts ...pulumi.ResourceOption,
) (*IdentityComponent, error) {
	component := &IdentityComponent{}
	err := ctx.RegisterComponentResource("codeserver:identity:Identity", name, component, opts...)
	if err != nil {
		return nil, err
	}

	ctx.Log.Info(fmt.Sprintf("🔑 Creating instance role for %s...", idCfg.ServicePrincipal), nil)

	trust, err := assumeRolePolicy(idCfg.ServicePrincipal)
	if err != nil {
		return nil, fmt.Errorf("failed to build assume role policy: %w", err)
	}

	role, err := iam.NewRole(ctx, fmt.Sprintf("%s-role", name), &iam.RoleArgs{
		AssumeRolePolicy: pulumi.String(trust),
		Description:      pulumi.String("Role assumed by the code-server instance"),
		Tags:             nameTag(fmt.Sprintf("%s-role", name)),
	}, pulumi.Parent(component))
	if err != nil {
		return nil, fmt.Errorf("failed to create role: %w", err)
	}

	for i, arn := range idCfg.ManagedPolicyARNs {
		_, err := iam.NewRolePolicyAttachment(ctx, fmt.Sprintf("%s-policy-%d", name, i+1), &iam.RolePolicyAttachmentArgs{
			Role:      role.Name,
			PolicyArn: pulumi.String(arn),
		}, pulumi.Parent(component))
		if err != nil {
			return nil, fmt.Errorf("failed to attach policy %s: %w", arn, err)
		}
	}

	profile, err := iam.NewInstanceProfile(ctx, fmt.Sprintf("%s-profile", name), &iam.InstanceProfileArgs{
		Role: role.Name,
		Tags: nameTag(fmt.Sprintf("%s-profile", name)),
	}, pulumi.Parent(component))
	if err != nil {
		return nil, fmt.Errorf("failed to create instance profile: %w", err)
	}

	component.Role = role
	component.InstanceProfile = profile
	component.RoleArn = role.Arn
	component.InstanceProfileName = profile.Name

	if err := ctx.RegisterResourceOutputs(component, pulumi.Map{
		"roleArn":             component.RoleArn,
		"instanceProfileName": component.InstanceProfileName,
	}); err != nil {
		return nil, err
	}

	return component, nil
}
