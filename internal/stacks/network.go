package stacks

import (
	"fmt"
	"net/netip"

	"github.com/iancoleman/strcase"
	"github.com/pkg/errors"
	"github.com/pulumi/pulumi-aws/sdk/v5/go/aws"
	"github.com/pulumi/pulumi-aws/sdk/v5/go/aws/ec2"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"

	"github.com/devopsrepohq/rds/internal/settings"
)

// MaxAzs bounds how many looked-up availability zones the network spans.
const MaxAzs = 2

// SubnetTier names one of the three subnet tiers of the network.
type SubnetTier string

const (
	SubnetTierPublic   SubnetTier = "Public"
	SubnetTierPrivate  SubnetTier = "Private"
	SubnetTierIsolated SubnetTier = "Isolated"
)

// SubnetTypeTag is the tag key carrying a subnet's tier.
const SubnetTypeTag = "SubnetType"

type NetworkStackArgs struct {
	Settings settings.Settings
}

// NetworkStack holds all the networking resources.
type NetworkStack struct {
	pulumi.ResourceState

	Vpc                 *ec2.Vpc
	PublicSubnets       []*ec2.Subnet
	PrivateSubnets      []*ec2.Subnet
	IsolatedSubnets     []*ec2.Subnet
	InternetGateway     *ec2.InternetGateway
	NatGateways         []*ec2.NatGateway
	PublicRouteTable    *ec2.RouteTable
	PrivateRouteTables  []*ec2.RouteTable
	IsolatedRouteTable  *ec2.RouteTable
	AvailabilityZoneIDs []string
}

// NewNetworkStack creates the VPC with public, private and isolated subnets in
// every availability zone. Isolated subnets get a route table without routes.
func NewNetworkStack(ctx *pulumi.Context, name string, args *NetworkStackArgs, opts ...pulumi.ResourceOption) (*NetworkStack, error) {
	if args == nil {
		return nil, errors.New("network stack requires args")
	}
	s := args.Settings

	stack := &NetworkStack{}
	if err := ctx.RegisterComponentResource(componentType("NetworkStack"), name, stack, opts...); err != nil {
		return nil, err
	}
	parent := pulumi.Parent(stack)

	azs, err := availabilityZones(ctx, s.AvailabilityZones)
	if err != nil {
		return nil, err
	}
	stack.AvailabilityZoneIDs = azs

	cidrs, err := carveSubnets(s.VpcCidr, 3*len(azs))
	if err != nil {
		return nil, err
	}

	vpc, err := ec2.NewVpc(ctx, childName(name, "vpc"), &ec2.VpcArgs{
		CidrBlock:          pulumi.String(s.VpcCidr),
		EnableDnsSupport:   pulumi.Bool(true),
		EnableDnsHostnames: pulumi.Bool(true),
		Tags:               s.Tags("vpc"),
	}, parent)
	if err != nil {
		return nil, errors.Wrap(err, "create vpc")
	}
	stack.Vpc = vpc

	tiers := []SubnetTier{SubnetTierPublic, SubnetTierPrivate, SubnetTierIsolated}
	for t, tier := range tiers {
		for i, az := range azs {
			suffix := fmt.Sprintf("%s-subnet-%d", strcase.ToKebab(string(tier)), i+1)
			tags := s.Tags(suffix)
			tags[SubnetTypeTag] = pulumi.String(string(tier))
			subnet, err := ec2.NewSubnet(ctx, childName(name, suffix), &ec2.SubnetArgs{
				VpcId:               vpc.ID(),
				CidrBlock:           pulumi.String(cidrs[t*len(azs)+i]),
				AvailabilityZone:    pulumi.String(az),
				MapPublicIpOnLaunch: pulumi.Bool(tier == SubnetTierPublic),
				Tags:                tags,
			}, parent)
			if err != nil {
				return nil, errors.Wrapf(err, "create %s", suffix)
			}
			switch tier {
			case SubnetTierPublic:
				stack.PublicSubnets = append(stack.PublicSubnets, subnet)
			case SubnetTierPrivate:
				stack.PrivateSubnets = append(stack.PrivateSubnets, subnet)
			case SubnetTierIsolated:
				stack.IsolatedSubnets = append(stack.IsolatedSubnets, subnet)
			}
		}
	}

	igw, err := ec2.NewInternetGateway(ctx, childName(name, "igw"), &ec2.InternetGatewayArgs{
		VpcId: vpc.ID(),
		Tags:  s.Tags("igw"),
	}, parent)
	if err != nil {
		return nil, errors.Wrap(err, "create internet gateway")
	}
	stack.InternetGateway = igw

	publicRouteTable, err := ec2.NewRouteTable(ctx, childName(name, "public-rt"), &ec2.RouteTableArgs{
		VpcId: vpc.ID(),
		Routes: ec2.RouteTableRouteArray{
			&ec2.RouteTableRouteArgs{
				CidrBlock: pulumi.String("0.0.0.0/0"),
				GatewayId: igw.ID(),
			},
		},
		Tags: s.Tags("public-rt"),
	}, parent)
	if err != nil {
		return nil, errors.Wrap(err, "create public route table")
	}
	stack.PublicRouteTable = publicRouteTable
	if err := associate(ctx, name, "public", stack.PublicSubnets, func(int) *ec2.RouteTable { return publicRouteTable }, parent); err != nil {
		return nil, err
	}

	// NAT gateways sit in the first public subnets; extra ones beyond the AZ count are ignored.
	natCount := s.NatGateways
	if natCount > len(azs) {
		natCount = len(azs)
	}
	for i := 0; i < natCount; i++ {
		eip, err := ec2.NewEip(ctx, childName(name, fmt.Sprintf("nat-eip-%d", i+1)), &ec2.EipArgs{
			Vpc:  pulumi.Bool(true),
			Tags: s.Tags(fmt.Sprintf("nat-eip-%d", i+1)),
		}, parent)
		if err != nil {
			return nil, errors.Wrap(err, "create nat eip")
		}
		nat, err := ec2.NewNatGateway(ctx, childName(name, fmt.Sprintf("nat-%d", i+1)), &ec2.NatGatewayArgs{
			AllocationId: eip.ID(),
			SubnetId:     stack.PublicSubnets[i].ID(),
			Tags:         s.Tags(fmt.Sprintf("nat-%d", i+1)),
		}, parent, pulumi.DependsOn([]pulumi.Resource{igw}))
		if err != nil {
			return nil, errors.Wrap(err, "create nat gateway")
		}
		stack.NatGateways = append(stack.NatGateways, nat)
	}

	// Private subnets egress through a NAT gateway; without one they have no default route.
	for i := range azs {
		suffix := fmt.Sprintf("private-rt-%d", i+1)
		rtArgs := &ec2.RouteTableArgs{
			VpcId: vpc.ID(),
			Tags:  s.Tags(suffix),
		}
		if len(stack.NatGateways) > 0 {
			rtArgs.Routes = ec2.RouteTableRouteArray{
				&ec2.RouteTableRouteArgs{
					CidrBlock:    pulumi.String("0.0.0.0/0"),
					NatGatewayId: stack.NatGateways[i%len(stack.NatGateways)].ID(),
				},
			}
		}
		rt, err := ec2.NewRouteTable(ctx, childName(name, suffix), rtArgs, parent)
		if err != nil {
			return nil, errors.Wrapf(err, "create %s", suffix)
		}
		stack.PrivateRouteTables = append(stack.PrivateRouteTables, rt)
	}
	if err := associate(ctx, name, "private", stack.PrivateSubnets, func(i int) *ec2.RouteTable { return stack.PrivateRouteTables[i] }, parent); err != nil {
		return nil, err
	}

	isolatedRouteTable, err := ec2.NewRouteTable(ctx, childName(name, "isolated-rt"), &ec2.RouteTableArgs{
		VpcId: vpc.ID(),
		Tags:  s.Tags("isolated-rt"),
	}, parent)
	if err != nil {
		return nil, errors.Wrap(err, "create isolated route table")
	}
	stack.IsolatedRouteTable = isolatedRouteTable
	if err := associate(ctx, name, "isolated", stack.IsolatedSubnets, func(int) *ec2.RouteTable { return isolatedRouteTable }, parent); err != nil {
		return nil, err
	}

	if err := ctx.RegisterResourceOutputs(stack, pulumi.Map{
		"vpcId":             vpc.ID(),
		"isolatedSubnetIds": stack.IsolatedSubnetIDs(),
	}); err != nil {
		return nil, err
	}
	return stack, nil
}

// VpcID returns the VPC id as a string output.
func (n *NetworkStack) VpcID() pulumi.StringOutput {
	return n.Vpc.ID().ToStringOutput()
}

// IsolatedSubnetIDs selects the isolated tier.
func (n *NetworkStack) IsolatedSubnetIDs() pulumi.StringArray {
	return subnetIDs(n.IsolatedSubnets)
}

// PrivateSubnetIDs selects the private tier.
func (n *NetworkStack) PrivateSubnetIDs() pulumi.StringArray {
	return subnetIDs(n.PrivateSubnets)
}

// PublicSubnetIDs selects the public tier.
func (n *NetworkStack) PublicSubnetIDs() pulumi.StringArray {
	return subnetIDs(n.PublicSubnets)
}

func subnetIDs(subnets []*ec2.Subnet) pulumi.StringArray {
	ids := make(pulumi.StringArray, 0, len(subnets))
	for _, sn := range subnets {
		ids = append(ids, sn.ID().ToStringOutput())
	}
	return ids
}

func associate(ctx *pulumi.Context, stack, tier string, subnets []*ec2.Subnet, table func(int) *ec2.RouteTable, opts ...pulumi.ResourceOption) error {
	for i, sn := range subnets {
		_, err := ec2.NewRouteTableAssociation(ctx, childName(stack, fmt.Sprintf("%s-rt-assoc-%d", tier, i+1)), &ec2.RouteTableAssociationArgs{
			SubnetId:     sn.ID(),
			RouteTableId: table(i).ID(),
		}, opts...)
		if err != nil {
			return errors.Wrapf(err, "associate %s subnet %d", tier, i+1)
		}
	}
	return nil
}

// availabilityZones returns the configured zones or the first MaxAzs
// available zones of the region.
func availabilityZones(ctx *pulumi.Context, configured []string) ([]string, error) {
	if len(configured) > 0 {
		return configured, nil
	}
	res, err := aws.GetAvailabilityZones(ctx, &aws.GetAvailabilityZonesArgs{
		State: pulumi.StringRef("available"),
	})
	if err != nil {
		return nil, errors.Wrap(err, "look up availability zones")
	}
	if len(res.Names) == 0 {
		return nil, errors.New("no availability zones available")
	}
	if len(res.Names) > MaxAzs {
		return res.Names[:MaxAzs], nil
	}
	return res.Names, nil
}

// carveSubnets splits the VPC block into n consecutive /24 blocks.
func carveSubnets(vpcCidr string, n int) ([]string, error) {
	prefix, err := netip.ParsePrefix(vpcCidr)
	if err != nil {
		return nil, errors.Wrapf(err, "parse vpc cidr %q", vpcCidr)
	}
	if !prefix.Addr().Is4() || prefix.Bits() > 24 {
		return nil, errors.Errorf("vpc cidr %q must be an IPv4 block of /24 or larger", vpcCidr)
	}
	if capacity := 1 << (24 - prefix.Bits()); n > capacity {
		return nil, errors.Errorf("vpc cidr %q fits %d /24 subnets, need %d", vpcCidr, capacity, n)
	}
	base := prefix.Masked().Addr().As4()
	start := uint32(base[0])<<24 | uint32(base[1])<<16 | uint32(base[2])<<8
	cidrs := make([]string, n)
	for i := 0; i < n; i++ {
		v := start + uint32(i)<<8
		addr := netip.AddrFrom4([4]byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), 0})
		cidrs[i] = netip.PrefixFrom(addr, 24).String()
	}
	return cidrs, nil
}
