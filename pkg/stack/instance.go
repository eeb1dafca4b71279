package stack

import (
	"fmt"

	"github.com/chalkan3/codeserver-stack/pkg/bootstrap"
	"github.com/chalkan3/codeserver-stack/pkg/config"
	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws/ec2"
	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws/ssm"
	"github.com/pulumi/pulumi-tls/sdk/v4/go/tls"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
)

// EditorInstanceComponent is the EC2 instance that installs and runs code-server at first boot
type EditorInstanceComponent struct {
	pulumi.ResourceState

	InstanceID pulumi.IDOutput     `pulumi:"instanceId"`
	PublicIP   pulumi.StringOutput `pulumi:"publicIp"`
	ImageID    pulumi.StringOutput `pulumi:"imageId"`

	Instance *ec2.Instance
	KeyPair  *ec2.KeyPair
	// PrivateKey is set only when an SSH key was generated
	PrivateKey *tls.PrivateKey
	Script     *bootstrap.Script
}

// InstancePlacement is where the instance goes and what it runs as
type InstancePlacement struct {
	SubnetID            pulumi.IDOutput
	SecurityGroupID     pulumi.IDOutput
	InstanceProfileName pulumi.StringOutput
}

// resolveImage returns the pinned image or the latest one published under the SSM parameter
func resolveImage(ctx *pulumi.Context, instCfg config.InstanceConfig, provider pulumi.ProviderResource) (string, error) {
	if instCfg.ImageID != "" {
		return instCfg.ImageID, nil
	}

	param, err := ssm.LookupParameter(ctx, &ssm.LookupParameterArgs{
		Name: instCfg.ImageParameter,
	}, pulumi.Provider(provider))
	if err != nil {
		return "", fmt.Errorf("failed to resolve image from %s: %w", instCfg.ImageParameter, err)
	}
	if param.Value == "" {
		return "", fmt.Errorf("parameter %s has no image ID", instCfg.ImageParameter)
	}

	return param.Value, nil
}

// NewEditorInstanceComponent declares the editor instance and its optional SSH key pair
func NewEditorInstanceComponent(
	ctx *pulumi.Context,
	name string,
	cfg *config.StackConfig,
	placement InstancePlacement,
	provider pulumi.ProviderResource,
	opts ...pulumi.ResourceOption,
) (*EditorInstanceComponent, error) {
	component := &EditorInstanceComponent{}
	err := ctx.RegisterComponentResource("codeserver:compute:EditorInstance", name, component, opts...)
	if err != nil {
		return nil, err
	}

	ami, err := resolveImage(ctx, cfg.Instance, provider)
	if err != nil {
		return nil, err
	}

	ctx.Log.Info(fmt.Sprintf("🖥️  Creating %s instance from %s with code-server %s...", cfg.Instance.Type, ami, cfg.Editor.Version), nil)

	var keyName pulumi.StringPtrInput
	if cfg.SSH.Enabled {
		if err := component.setupKeyPair(ctx, name, cfg.SSH); err != nil {
			return nil, fmt.Errorf("failed to setup key pair: %w", err)
		}
		keyName = component.KeyPair.KeyName
	}

	script := bootstrap.New(cfg.Editor)
	component.Script = script
	userData := pulumi.ToSecret(pulumi.String(script.Render())).(pulumi.StringOutput)

	instance, err := ec2.NewInstance(ctx, fmt.Sprintf("%s-instance", name), &ec2.InstanceArgs{
		Ami:                      pulumi.String(ami),
		InstanceType:             pulumi.String(cfg.Instance.Type),
		SubnetId:                 placement.SubnetID,
		VpcSecurityGroupIds:      pulumi.StringArray{placement.SecurityGroupID},
		IamInstanceProfile:       placement.InstanceProfileName,
		AssociatePublicIpAddress: pulumi.Bool(true),
		KeyName:                  keyName,
		UserData:                 userData,
		UserDataReplaceOnChange:  pulumi.Bool(true),
		RootBlockDevice: &ec2.InstanceRootBlockDeviceArgs{
			DeviceName:          pulumi.String(cfg.Instance.RootDevice),
			VolumeSize:          pulumi.Int(cfg.Instance.RootVolumeSize),
			VolumeType:          pulumi.String(cfg.Instance.RootVolumeType),
			DeleteOnTermination: pulumi.Bool(true),
		},
		Tags: nameTag(fmt.Sprintf("%s-instance", name)),
	}, pulumi.Parent(component))
	if err != nil {
		return nil, fmt.Errorf("failed to create instance: %w", err)
	}

	component.Instance = instance
	component.InstanceID = instance.ID()
	component.PublicIP = instance.PublicIp
	component.ImageID = pulumi.String(ami).ToStringOutput()

	if err := ctx.RegisterResourceOutputs(component, pulumi.Map{
		"instanceId": component.InstanceID,
		"publicIp":   component.PublicIP,
		"imageId":    component.ImageID,
	}); err != nil {
		return nil, err
	}

	return component, nil
}

// setupKeyPair imports the configured public key, or generates a new key when none is configured
func (c *EditorInstanceComponent) setupKeyPair(ctx *pulumi.Context, name string, sshCfg config.SSHConfig) error {
	var publicKey pulumi.StringInput

	if sshCfg.PublicKeyPath != "" {
		key, err := config.ReadPublicKey(sshCfg.PublicKeyPath)
		if err != nil {
			return err
		}
		publicKey = pulumi.String(key)
		ctx.Log.Info(fmt.Sprintf("🔐 Importing SSH key from %s", sshCfg.PublicKeyPath), nil)
	} else {
		privateKey, err := tls.NewPrivateKey(ctx, fmt.Sprintf("%s-ssh-key", name), &tls.PrivateKeyArgs{
			Algorithm: pulumi.String("RSA"),
			RsaBits:   pulumi.Int(4096),
		}, pulumi.Parent(c))
		if err != nil {
			return fmt.Errorf("failed to generate SSH key: %w", err)
		}
		c.PrivateKey = privateKey
		publicKey = privateKey.PublicKeyOpenssh
		ctx.Log.Info("🔐 Generated a new SSH key pair", nil)
	}

	keyPair, err := ec2.NewKeyPair(ctx, fmt.Sprintf("%s-key", name), &ec2.KeyPairArgs{
		KeyName:   pulumi.Sprintf("%s-key", name),
		PublicKey: publicKey,
		Tags:      nameTag(fmt.Sprintf("%s-key", name)),
	}, pulumi.Parent(c))
	if err != nil {
		return fmt.Errorf("failed to create key pair: %w", err)
	}
	c.KeyPair = keyPair

	return nil
}
