package stack

import (
	"fmt"
	"strconv"

	"github.com/chalkan3/codeserver-stack/pkg/config"
	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws/ec2"
	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws/lb"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
)

// LoadBalancerComponent is the public application load balancer in front of the editor
type LoadBalancerComponent struct {
	pulumi.ResourceState

	DnsName        pulumi.StringOutput `pulumi:"dnsName"`
	TargetGroupArn pulumi.StringOutput `pulumi:"targetGroupArn"`

	SecurityGroup *ec2.SecurityGroup
	LoadBalancer  *lb.LoadBalancer
	TargetGroup   *lb.TargetGroup
	Attachment    *lb.TargetGroupAttachment
	Listener      *lb.Listener
}

// LoadBalancerTarget is the network the balancer lives in and the instance it forwards to
type LoadBalancerTarget struct {
	VpcID      pulumi.IDOutput
	SubnetIDs  pulumi.StringArrayOutput
	InstanceID pulumi.IDOutput
}

// NewLoadBalancerComponent declares the balancer, its security group, target group, attachment and listener
func NewLoadBalancerComponent(
	ctx *pulumi.Context,
	name string,
	cfg *config.StackConfig,
	target LoadBalancerTarget,
	opts ...pulumi.ResourceOption,
) (*LoadBalancerComponent, error) {
	component := &LoadBalancerComponent{}
	err := ctx.RegisterComponentResource("codeserver:network:LoadBalancer", name, component, opts...)
	if err != nil {
		return nil, err
	}

	listenerPort := cfg.LoadBalancer.Port
	targetPort := cfg.Editor.Port

	ctx.Log.Info(fmt.Sprintf("⚖️  Creating load balancer %d → %d...", listenerPort, targetPort), nil)

	sg, err := ec2.NewSecurityGroup(ctx, fmt.Sprintf("%s-lb-sg", name), &ec2.SecurityGroupArgs{
		Name:        pulumi.Sprintf("%s-lb-sg", name),
		Description: pulumi.String("Open to the Internet"),
		VpcId:       target.VpcID,
		Ingress: ec2.SecurityGroupIngressArray{
			&ec2.SecurityGroupIngressArgs{
				Description: pulumi.String("Open to the Internet"),
				Protocol:    pulumi.String("tcp"),
				FromPort:    pulumi.Int(listenerPort),
				ToPort:      pulumi.Int(listenerPort),
				CidrBlocks:  pulumi.StringArray{pulumi.String(config.AnyIPv4)},
			},
		},
		Egress: ec2.SecurityGroupEgressArray{
			&ec2.SecurityGroupEgressArgs{
				Description: pulumi.String("code-server targets"),
				Protocol:    pulumi.String("tcp"),
				FromPort:    pulumi.Int(targetPort),
				ToPort:      pulumi.Int(targetPort),
				CidrBlocks:  pulumi.StringArray{pulumi.String(config.AnyIPv4)},
			},
		},
		Tags: nameTag(fmt.Sprintf("%s-lb-sg", name)),
	}, pulumi.Parent(component))
	if err != nil {
		return nil, fmt.Errorf("failed to create load balancer security group: %w", err)
	}
	component.SecurityGroup = sg

	alb, err := lb.NewLoadBalancer(ctx, fmt.Sprintf("%s-alb", name), &lb.LoadBalancerArgs{
		LoadBalancerType: pulumi.String("application"),
		Internal:         pulumi.Bool(cfg.LoadBalancer.Internal),
		SecurityGroups:   pulumi.StringArray{sg.ID()},
		Subnets:          target.SubnetIDs,
		Tags:             nameTag(fmt.Sprintf("%s-alb", name)),
	}, pulumi.Parent(component))
	if err != nil {
		return nil, fmt.Errorf("failed to create load balancer: %w", err)
	}
	component.LoadBalancer = alb

	tg, err := lb.NewTargetGroup(ctx, fmt.Sprintf("%s-tg", name), &lb.TargetGroupArgs{
		Port:       pulumi.Int(targetPort),
		Protocol:   pulumi.String("HTTP"),
		VpcId:      target.VpcID,
		TargetType: pulumi.String("instance"),
		HealthCheck: &lb.TargetGroupHealthCheckArgs{
			Enabled:            pulumi.Bool(true),
			Path:               pulumi.String(cfg.LoadBalancer.HealthPath),
			Port:               pulumi.String(strconv.Itoa(targetPort)),
			Protocol:           pulumi.String("HTTP"),
			Matcher:            pulumi.String(cfg.LoadBalancer.HealthMatcher),
			HealthyThreshold:   pulumi.Int(3),
			UnhealthyThreshold: pulumi.Int(3),
			Interval:           pulumi.Int(30),
		},
		Tags: nameTag(fmt.Sprintf("%s-tg", name)),
	}, pulumi.Parent(component))
	if err != nil {
		return nil, fmt.Errorf("failed to create target group: %w", err)
	}
	component.TargetGroup = tg

	attachment, err := lb.NewTargetGroupAttachment(ctx, fmt.Sprintf("%s-tga", name), &lb.TargetGroupAttachmentArgs{
		TargetGroupArn: tg.Arn,
		TargetId:       target.InstanceID.ToStringOutput(),
		Port:           pulumi.Int(targetPort),
	}, pulumi.Parent(component))
	if err != nil {
		return nil, fmt.Errorf("failed to attach instance to target group: %w", err)
	}
	component.Attachment = attachment

	listener, err := lb.NewListener(ctx, fmt.Sprintf("%s-listener", name), &lb.ListenerArgs{
		LoadBalancerArn: alb.Arn,
		Port:            pulumi.Int(listenerPort),
		Protocol:        pulumi.String("HTTP"),
		DefaultActions: lb.ListenerDefaultActionArray{
			&lb.ListenerDefaultActionArgs{
				Type:           pulumi.String("forward"),
				TargetGroupArn: tg.Arn,
			},
		},
	}, pulumi.Parent(component))
	if err != nil {
		return nil, fmt.Errorf("failed to create listener: %w", err)
	}
	component.Listener = listener

	component.DnsName = alb.DnsName
	component.TargetGroupArn = tg.Arn

	if err := ctx.RegisterResourceOutputs(component, pulumi.Map{
		"dnsName":        component.DnsName,
		"targetGroupArn": component.TargetGroupArn,
	}); err != nil {
		return nil, err
	}

	return component, nil
}
