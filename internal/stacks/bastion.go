package stacks

import (
	"github.com/pkg/errors"
	"github.com/pulumi/pulumi-aws/sdk/v5/go/aws/ec2"
	"github.com/pulumi/pulumi-aws/sdk/v5/go/aws/iam"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"

	"github.com/devopsrepohq/rds/internal/settings"
)

const ssmManagedInstanceCorePolicy = "arn:aws:iam::aws:policy/AmazonSSMManagedInstanceCore"

const ec2AssumeRolePolicy = `{
	"Version": "2012-10-17",
	"Statement": [{
		"Action": "sts:AssumeRole",
		"Principal": {
			"Service": "ec2.amazonaws.com"
		},
		"Effect": "Allow",
		"Sid": ""
	}]
}`

type BastionStackArgs struct {
	Settings        settings.Settings
	SubnetID        pulumi.StringInput
	SecurityGroupID pulumi.StringInput
}

// BastionStack is the jump host used to reach the database.
type BastionStack struct {
	pulumi.ResourceState

	Role            *iam.Role
	InstanceProfile *iam.InstanceProfile
	Instance        *ec2.Instance
}

// NewBastionStack creates an Amazon Linux 2023 host in the given subnet,
// attached to the bastion security group and reachable with SSM.
func NewBastionStack(ctx *pulumi.Context, name string, args *BastionStackArgs, opts ...pulumi.ResourceOption) (*BastionStack, error) {
	if args == nil || args.SubnetID == nil || args.SecurityGroupID == nil {
		return nil, errors.New("bastion stack requires a subnet and a security group")
	}
	s := args.Settings

	stack := &BastionStack{}
	if err := ctx.RegisterComponentResource(componentType("BastionStack"), name, stack, opts...); err != nil {
		return nil, err
	}
	parent := pulumi.Parent(stack)

	role, err := iam.NewRole(ctx, childName(name, "role"), &iam.RoleArgs{
		AssumeRolePolicy: pulumi.String(ec2AssumeRolePolicy),
		Tags:             s.Tags("bastion-role"),
	}, parent)
	if err != nil {
		return nil, errors.Wrap(err, "create bastion role")
	}
	stack.Role = role

	_, err = iam.NewRolePolicyAttachment(ctx, childName(name, "ssm-policy"), &iam.RolePolicyAttachmentArgs{
		Role:      role.Name,
		PolicyArn: pulumi.String(ssmManagedInstanceCorePolicy),
	}, parent)
	if err != nil {
		return nil, errors.Wrap(err, "attach ssm policy")
	}

	profile, err := iam.NewInstanceProfile(ctx, childName(name, "instance-profile"), &iam.InstanceProfileArgs{
		Role: role.Name,
	}, parent)
	if err != nil {
		return nil, errors.Wrap(err, "create bastion instance profile")
	}
	stack.InstanceProfile = profile

	ami, err := ec2.LookupAmi(ctx, &ec2.LookupAmiArgs{
		Owners:     []string{"amazon"},
		MostRecent: pulumi.BoolRef(true),
		NameRegex:  pulumi.StringRef("^al2023-ami-2023.*-x86_64$"),
		Filters: []ec2.GetAmiFilter{
			{
				Name:   "root-device-type",
				Values: []string{"ebs"},
			},
			{
				Name:   "virtualization-type",
				Values: []string{"hvm"},
			},
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "look up bastion ami")
	}

	instance, err := ec2.NewInstance(ctx, childName(name, "host"), &ec2.InstanceArgs{
		Ami:                 pulumi.String(ami.Id),
		InstanceType:        pulumi.String(s.BastionInstanceType),
		SubnetId:            args.SubnetID.ToStringOutput(),
		VpcSecurityGroupIds: pulumi.StringArray{args.SecurityGroupID},
		IamInstanceProfile:  profile.Name,
		MetadataOptions: &ec2.InstanceMetadataOptionsArgs{
			HttpEndpoint: pulumi.String("enabled"),
			HttpTokens:   pulumi.String("required"),
		},
		Tags: s.Tags("bastion"),
	}, parent)
	if err != nil {
		return nil, errors.Wrap(err, "create bastion instance")
	}
	stack.Instance = instance

	if err := ctx.RegisterResourceOutputs(stack, pulumi.Map{
		"instanceId": instance.ID(),
	}); err != nil {
		return nil, err
	}
	return stack, nil
}
