package stacks

import (
	"github.com/pkg/errors"
	"github.com/pulumi/pulumi-aws/sdk/v5/go/aws/ec2"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"

	"github.com/devopsrepohq/rds/internal/settings"
)

type SecurityStackArgs struct {
	Settings settings.Settings
	VpcID    pulumi.StringInput
}

// SecurityStack owns the bastion security group.
type SecurityStack struct {
	pulumi.ResourceState

	BastionSecurityGroup *ec2.SecurityGroup
}

// NewSecurityStack creates the bastion security group. It has no ingress rules;
// the bastion is reached through SSM Session Manager.
func NewSecurityStack(ctx *pulumi.Context, name string, args *SecurityStackArgs, opts ...pulumi.ResourceOption) (*SecurityStack, error) {
	if args == nil || args.VpcID == nil {
		return nil, errors.New("security stack requires a vpc id")
	}
	stack := &SecurityStack{}
	if err := ctx.RegisterComponentResource(componentType("SecurityStack"), name, stack, opts...); err != nil {
		return nil, err
	}

	sg, err := newEgressOnlySecurityGroup(ctx, childName(name, "bastion-sg"), args.VpcID,
		"Security group for the bastion host", args.Settings.Tags("bastion-sg"), pulumi.Parent(stack))
	if err != nil {
		return nil, errors.Wrap(err, "create bastion security group")
	}
	stack.BastionSecurityGroup = sg

	if err := ctx.RegisterResourceOutputs(stack, pulumi.Map{
		"bastionSecurityGroupId": sg.ID(),
	}); err != nil {
		return nil, err
	}
	return stack, nil
}

// BastionSecurityGroupID returns the bastion group id as a string output.
func (s *SecurityStack) BastionSecurityGroupID() pulumi.StringOutput {
	return s.BastionSecurityGroup.ID().ToStringOutput()
}

// newEgressOnlySecurityGroup creates a group that denies all inbound traffic
// until rules are added with Connections.
func newEgressOnlySecurityGroup(ctx *pulumi.Context, name string, vpcID pulumi.StringInput, description string, tags pulumi.StringMap, opts ...pulumi.ResourceOption) (*ec2.SecurityGroup, error) {
	return ec2.NewSecurityGroup(ctx, name, &ec2.SecurityGroupArgs{
		VpcId:       vpcID.ToStringOutput(),
		Description: pulumi.String(description),
		Egress: ec2.SecurityGroupEgressArray{
			&ec2.SecurityGroupEgressArgs{
				Protocol:    pulumi.String("-1"),
				FromPort:    pulumi.Int(0),
				ToPort:      pulumi.Int(0),
				CidrBlocks:  pulumi.StringArray{pulumi.String("0.0.0.0/0")},
				Description: pulumi.String("Allow all outbound traffic"),
			},
		},
		Tags: tags,
	}, opts...)
}
