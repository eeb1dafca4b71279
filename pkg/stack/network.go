package stack

import (
	"fmt"

	"github.com/chalkan3/codeserver-stack/pkg/config"
	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws"
	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws/ec2"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
)

// NetworkComponent is the VPC with one public and one private subnet per availability zone
type NetworkComponent struct {
	pulumi.ResourceState

	VpcID            pulumi.IDOutput          `pulumi:"vpcId"`
	PublicSubnetIDs  pulumi.StringArrayOutput `pulumi:"publicSubnetIds"`
	PrivateSubnetIDs pulumi.StringArrayOutput `pulumi:"privateSubnetIds"`

	Vpc            *ec2.Vpc
	PublicSubnets  []*ec2.Subnet
	PrivateSubnets []*ec2.Subnet
	NatGateways    []*ec2.NatGateway
	Zones          []string
}

// NewNetworkComponent declares the VPC, its subnets, gateways and routing
func NewNetworkComponent(
	ctx *pulumi.Context,
	name string,
	netCfg config.NetworkConfig,
	provider pulumi.ProviderResource,
	opts ...pulumi.ResourceOption,
) (*NetworkComponent, error) {
	component := &NetworkComponent{}
	err := ctx.RegisterComponentResource("codeserver:network:Network", name, component, opts...)
	if err != nil {
		return nil, err
	}

	azs, err := aws.GetAvailabilityZones(ctx, &aws.GetAvailabilityZonesArgs{
		State: pulumi.StringRef("available"),
	}, pulumi.Provider(provider))
	if err != nil {
		return nil, fmt.Errorf("failed to list availability zones: %w", err)
	}
	zones := azs.Names
	if len(zones) > netCfg.MaxAZs {
		zones = zones[:netCfg.MaxAZs]
	}
	if len(zones) == 0 {
		return nil, fmt.Errorf("no availability zones available in region")
	}
	component.Zones = zones

	ctx.Log.Info(fmt.Sprintf("🌐 Creating VPC %s across %d availability zones...", netCfg.CIDR, len(zones)), nil)

	cidrs, err := splitCIDR(netCfg.CIDR, 2*len(zones))
	if err != nil {
		return nil, fmt.Errorf("failed to plan subnets: %w", err)
	}

	vpc, err := ec2.NewVpc(ctx, fmt.Sprintf("%s-vpc", name), &ec2.VpcArgs{
		CidrBlock:          pulumi.String(netCfg.CIDR),
		EnableDnsHostnames: pulumi.Bool(true),
		EnableDnsSupport:   pulumi.Bool(true),
		Tags:               nameTag(fmt.Sprintf("%s-vpc", name)),
	}, pulumi.Parent(component))
	if err != nil {
		return nil, fmt.Errorf("failed to create VPC: %w", err)
	}
	component.Vpc = vpc

	igw, err := ec2.NewInternetGateway(ctx, fmt.Sprintf("%s-igw", name), &ec2.InternetGatewayArgs{
		VpcId: vpc.ID(),
		Tags:  nameTag(fmt.Sprintf("%s-igw", name)),
	}, pulumi.Parent(component))
	if err != nil {
		return nil, fmt.Errorf("failed to create internet gateway: %w", err)
	}

	publicRT, err := ec2.NewRouteTable(ctx, fmt.Sprintf("%s-rt-public", name), &ec2.RouteTableArgs{
		VpcId: vpc.ID(),
		Routes: ec2.RouteTableRouteArray{
			&ec2.RouteTableRouteArgs{
				CidrBlock: pulumi.String(config.AnyIPv4),
				GatewayId: igw.ID(),
			},
		},
		Tags: nameTag(fmt.Sprintf("%s-rt-public", name)),
	}, pulumi.Parent(component))
	if err != nil {
		return nil, fmt.Errorf("failed to create public route table: %w", err)
	}

	publicIDs := pulumi.StringArray{}
	for i, zone := range zones {
		subnetName := fmt.Sprintf("%s-subnet-public-%d", name, i+1)
		subnet, err := ec2.NewSubnet(ctx, subnetName, &ec2.SubnetArgs{
			VpcId:               vpc.ID(),
			CidrBlock:           pulumi.String(cidrs[i]),
			AvailabilityZone:    pulumi.String(zone),
			MapPublicIpOnLaunch: pulumi.Bool(true),
			Tags: pulumi.StringMap{
				"Name": pulumi.String(subnetName),
				"Type": pulumi.String("public"),
			},
		}, pulumi.Parent(component))
		if err != nil {
			return nil, fmt.Errorf("failed to create public subnet %d: %w", i+1, err)
		}

		_, err = ec2.NewRouteTableAssociation(ctx, fmt.Sprintf("%s-rta-public-%d", name, i+1), &ec2.RouteTableAssociationArgs{
			SubnetId:     subnet.ID(),
			RouteTableId: publicRT.ID(),
		}, pulumi.Parent(component))
		if err != nil {
			return nil, fmt.Errorf("failed to associate public subnet %d: %w", i+1, err)
		}

		component.PublicSubnets = append(component.PublicSubnets, subnet)
		publicIDs = append(publicIDs, subnet.ID())
	}

	natCount := netCfg.NATGatewayCount(len(zones))
	for i := 0; i < natCount; i++ {
		eip, err := ec2.NewEip(ctx, fmt.Sprintf("%s-nat-eip-%d", name, i+1), &ec2.EipArgs{
			Domain: pulumi.String("vpc"),
			Tags:   nameTag(fmt.Sprintf("%s-nat-eip-%d", name, i+1)),
		}, pulumi.Parent(component))
		if err != nil {
			return nil, fmt.Errorf("failed to allocate NAT address %d: %w", i+1, err)
		}

		nat, err := ec2.NewNatGateway(ctx, fmt.Sprintf("%s-nat-%d", name, i+1), &ec2.NatGatewayArgs{
			AllocationId: eip.AllocationId,
			SubnetId:     component.PublicSubnets[i].ID(),
			Tags:         nameTag(fmt.Sprintf("%s-nat-%d", name, i+1)),
		}, pulumi.Parent(component), pulumi.DependsOn([]pulumi.Resource{igw}))
		if err != nil {
			return nil, fmt.Errorf("failed to create NAT gateway %d: %w", i+1, err)
		}
		component.NatGateways = append(component.NatGateways, nat)
	}
	if natCount == 0 {
		ctx.Log.Warn("⚠️  No NAT gateways: private subnets have no outbound internet access", nil)
	}

	privateIDs := pulumi.StringArray{}
	for i, zone := range zones {
		subnetName := fmt.Sprintf("%s-subnet-private-%d", name, i+1)
		subnet, err := ec2.NewSubnet(ctx, subnetName, &ec2.SubnetArgs{
			VpcId:            vpc.ID(),
			CidrBlock:        pulumi.String(cidrs[len(zones)+i]),
			AvailabilityZone: pulumi.String(zone),
			Tags: pulumi.StringMap{
				"Name": pulumi.String(subnetName),
				"Type": pulumi.String("private"),
			},
		}, pulumi.Parent(component))
		if err != nil {
			return nil, fmt.Errorf("failed to create private subnet %d: %w", i+1, err)
		}

		routes := ec2.RouteTableRouteArray{}
		if natCount > 0 {
			routes = append(routes, &ec2.RouteTableRouteArgs{
				CidrBlock:    pulumi.String(config.AnyIPv4),
				NatGatewayId: component.NatGateways[i%natCount].ID(),
			})
		}

		rt, err := ec2.NewRouteTable(ctx, fmt.Sprintf("%s-rt-private-%d", name, i+1), &ec2.RouteTableArgs{
			VpcId:  vpc.ID(),
			Routes: routes,
			Tags:   nameTag(fmt.Sprintf("%s-rt-private-%d", name, i+1)),
		}, pulumi.Parent(component))
		if err != nil {
			return nil, fmt.Errorf("failed to create private route table %d: %w", i+1, err)
		}

		_, err = ec2.NewRouteTableAssociation(ctx, fmt.Sprintf("%s-rta-private-%d", name, i+1), &ec2.RouteTableAssociationArgs{
			SubnetId:     subnet.ID(),
			RouteTableId: rt.ID(),
		}, pulumi.Parent(component))
		if err != nil {
			return nil, fmt.Errorf("failed to associate private subnet %d: %w", i+1, err)
		}

		component.PrivateSubnets = append(component.PrivateSubnets, subnet)
		privateIDs = append(privateIDs, subnet.ID())
	}

	component.VpcID = vpc.ID()
	component.PublicSubnetIDs = publicIDs.ToStringArrayOutput()
	component.PrivateSubnetIDs = privateIDs.ToStringArrayOutput()

	if err := ctx.RegisterResourceOutputs(component, pulumi.Map{
		"vpcId":            component.VpcID,
		"publicSubnetIds":  component.PublicSubnetIDs,
		"privateSubnetIds": component.PrivateSubnetIDs,
	}); err != nil {
		return nil, err
	}

	return component, nil
}

func nameTag(name string) pulumi.StringMap {
	return pulumi.StringMap{"Name": pulumi.String(name)}
}
