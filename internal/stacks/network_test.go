package stacks

import (
	"testing"

	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCarveSubnets(t *testing.T) {
	tests := []struct {
		name    string
		cidr    string
		n       int
		want    []string
		wantErr string
	}{
		{
			name: "slash 16",
			cidr: "10.0.0.0/16",
			n:    3,
			want: []string{"10.0.0.0/24", "10.0.1.0/24", "10.0.2.0/24"},
		},
		{
			name: "unmasked block",
			cidr: "172.16.5.9/20",
			n:    2,
			want: []string{"172.16.0.0/24", "172.16.1.0/24"},
		},
		{
			name:    "too small",
			cidr:    "10.0.0.0/23",
			n:       3,
			wantErr: "fits 2 /24 subnets, need 3",
		},
		{
			name:    "narrower than a subnet",
			cidr:    "10.0.0.0/25",
			n:       1,
			wantErr: "must be an IPv4 block",
		},
		{
			name:    "ipv6",
			cidr:    "2001:db8::/56",
			n:       1,
			wantErr: "must be an IPv4 block",
		},
		{
			name:    "garbage",
			cidr:    "not-a-cidr",
			n:       1,
			wantErr: "parse vpc cidr",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := carveSubnets(tt.cidr, tt.n)
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewNetworkStack(t *testing.T) {
	s := acmeDev()
	s.NatGateways = 5

	var network *NetworkStack
	mocks := &recorder{}
	run(t, mocks, func(ctx *pulumi.Context) error {
		var err error
		network, err = NewNetworkStack(ctx, VpcStackName, &NetworkStackArgs{Settings: s})
		return err
	})

	assert.Equal(t, []string{"us-east-1a", "us-east-1b"}, network.AvailabilityZoneIDs)
	assert.Len(t, network.NatGateways, 2, "nat gateways are capped at the zone count")
	assert.Len(t, network.PrivateRouteTables, 2)

	vpc := mocks.one(t, tokenVpc)
	assert.Equal(t, "vpc-stack-vpc", vpc.Name)
	assert.Equal(t, "10.0.0.0/16", str(t, vpc.Inputs, "cidrBlock"))
	assert.Equal(t, "acme-dev-vpc", tag(t, vpc.Inputs, "Name"))

	cidrs := map[string]string{}
	for _, sn := range mocks.byToken(tokenSubnet) {
		cidrs[sn.Name] = str(t, sn.Inputs, "cidrBlock")
	}
	assert.Equal(t, "10.0.0.0/24", cidrs["vpc-stack-public-subnet-1"])
	assert.Equal(t, "10.0.3.0/24", cidrs["vpc-stack-private-subnet-2"])
	assert.Equal(t, "10.0.5.0/24", cidrs["vpc-stack-isolated-subnet-2"])

	assert.Len(t, mocks.byToken("aws:ec2/routeTableAssociation:RouteTableAssociation"), 6)
}

func TestNewNetworkStackRequiresArgs(t *testing.T) {
	err := runWithMocks(&recorder{}, func(ctx *pulumi.Context) error {
		_, err := NewNetworkStack(ctx, VpcStackName, nil)
		return err
	})
	assert.ErrorContains(t, err, "network stack requires args")
}
