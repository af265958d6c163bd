package stacks

import (
	"github.com/pkg/errors"
	"github.com/pulumi/pulumi-aws/sdk/v5/go/aws/ec2"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
)

// Connections manages the ingress rules of a security group that fronts a
// service listening on a single default port.
type Connections struct {
	SecurityGroupID pulumi.StringInput
	DefaultPort     pulumi.IntInput
}

// AllowDefaultPortFrom appends one tcp ingress rule on the default port whose
// source is the peer security group.
func (c *Connections) AllowDefaultPortFrom(ctx *pulumi.Context, name string, peerSecurityGroupID pulumi.StringInput, description string, opts ...pulumi.ResourceOption) (*ec2.SecurityGroupRule, error) {
	if c.SecurityGroupID == nil || c.DefaultPort == nil {
		return nil, errors.New("connections require a security group and a default port")
	}
	if peerSecurityGroupID == nil {
		return nil, errors.New("peer security group id is required")
	}
	rule, err := ec2.NewSecurityGroupRule(ctx, name, &ec2.SecurityGroupRuleArgs{
		Type:                  pulumi.String("ingress"),
		Protocol:              pulumi.String("tcp"),
		FromPort:              c.DefaultPort,
		ToPort:                c.DefaultPort,
		SecurityGroupId:       c.SecurityGroupID,
		SourceSecurityGroupId: peerSecurityGroupID.ToStringOutput(),
		Description:           pulumi.String(description),
	}, opts...)
	if err != nil {
		return nil, errors.Wrapf(err, "allow default port from %s", name)
	}
	return rule, nil
}
