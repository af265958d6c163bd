package stacks

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/pulumi/pulumi-aws/sdk/v5/go/aws/ec2"
	"github.com/pulumi/pulumi-aws/sdk/v5/go/aws/rds"
	"github.com/pulumi/pulumi-aws/sdk/v5/go/aws/ssm"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"

	"github.com/devopsrepohq/rds/internal/settings"
)

// MasterUsername is the cluster's master user.
const MasterUsername = "admin"

// RdsStackArgs are the handles the database is composed from.
type RdsStackArgs struct {
	Settings settings.Settings

	VpcID                   pulumi.StringInput
	IsolatedSubnetIDs       pulumi.StringArrayInput
	BastionSecurityGroupID  pulumi.StringInput
	StorageEncryptionKeyArn pulumi.StringInput

	RemovalPolicy RemovalPolicy
}

func (a *RdsStackArgs) validate() error {
	switch {
	case a.VpcID == nil:
		return errors.New("rds stack requires a vpc id")
	case a.IsolatedSubnetIDs == nil:
		return errors.New("rds stack requires isolated subnet ids")
	case a.BastionSecurityGroupID == nil:
		return errors.New("rds stack requires the bastion security group id")
	case a.StorageEncryptionKeyArn == nil:
		return errors.New("rds stack requires a storage encryption key")
	}
	if ids, ok := a.IsolatedSubnetIDs.(pulumi.StringArray); ok && len(ids) == 0 {
		return errors.New("rds stack requires at least one isolated subnet id")
	}
	return nil
}

// RdsStack is the Aurora cluster together with its credential, subnet group
// and security group.
type RdsStack struct {
	pulumi.ResourceState

	Engine         Engine
	DatabaseName   string
	Secret         *TemplatedSecret
	SubnetGroup    *rds.SubnetGroup
	SecurityGroup  *ec2.SecurityGroup
	Cluster        *rds.Cluster
	Instances      []*rds.ClusterInstance
	Connections    *Connections
	BastionIngress *ec2.SecurityGroupRule
}

// Empty reports whether the stack was declared without inputs and holds no
// resources.
func (r *RdsStack) Empty() bool {
	return r.Cluster == nil
}

// NewRdsStack creates the database cluster in the isolated subnets, encrypted
// with the given key, and lets the bastion reach its default port. With nil
// args the stack is registered but declares nothing.
func NewRdsStack(ctx *pulumi.Context, name string, args *RdsStackArgs, opts ...pulumi.ResourceOption) (*RdsStack, error) {
	stack := &RdsStack{}
	if err := ctx.RegisterComponentResource(componentType("RdsStack"), name, stack, opts...); err != nil {
		return nil, err
	}
	if args == nil {
		_ = ctx.Log.Warn(fmt.Sprintf("%s has no inputs; no resources declared", name), &pulumi.LogArgs{Resource: stack})
		if err := ctx.RegisterResourceOutputs(stack, pulumi.Map{}); err != nil {
			return nil, err
		}
		return stack, nil
	}
	if err := args.validate(); err != nil {
		return nil, err
	}
	s := args.Settings

	engine, err := LookupEngine(s.DBEngine)
	if err != nil {
		return nil, err
	}
	stack.Engine = engine
	stack.DatabaseName = s.DatabaseName()

	parent := pulumi.Parent(stack)
	removal := args.RemovalPolicy.option()

	secret, err := NewTemplatedSecret(ctx, childName(name, "templated-secret"), &TemplatedSecretArgs{
		Settings:      s,
		Description:   "Templated secret used for RDS password",
		RemovalPolicy: args.RemovalPolicy,
	}, parent)
	if err != nil {
		return nil, err
	}
	stack.Secret = secret

	subnetGroup, err := rds.NewSubnetGroup(ctx, childName(name, "subnet-group"), &rds.SubnetGroupArgs{
		Description: pulumi.String("Isolated subnets for the database cluster"),
		SubnetIds:   args.IsolatedSubnetIDs,
		Tags:        s.Tags("rds-subnet-group"),
	}, parent)
	if err != nil {
		return nil, errors.Wrap(err, "create db subnet group")
	}
	stack.SubnetGroup = subnetGroup

	sg, err := newEgressOnlySecurityGroup(ctx, childName(name, "database-sg"), args.VpcID,
		"Security group for the database cluster", s.Tags("rds-sg"), parent)
	if err != nil {
		return nil, errors.Wrap(err, "create database security group")
	}
	stack.SecurityGroup = sg

	cluster, err := rds.NewCluster(ctx, childName(name, "database"), &rds.ClusterArgs{
		Engine:              pulumi.String(engine.Name),
		EngineVersion:       pulumi.String(engine.Version(s.DBEngineVersion)),
		Port:                pulumi.Int(engine.DefaultPort),
		DatabaseName:        pulumi.String(stack.DatabaseName),
		MasterUsername:      pulumi.String(MasterUsername),
		MasterPassword:      secret.PasswordValue(),
		DbSubnetGroupName:   subnetGroup.Name,
		VpcSecurityGroupIds: pulumi.StringArray{sg.ID()},
		StorageEncrypted:    pulumi.Bool(true),
		KmsKeyId:            args.StorageEncryptionKeyArn.ToStringOutput(),
		SkipFinalSnapshot:   pulumi.Bool(args.RemovalPolicy == RemovalPolicyDestroy),
		DeletionProtection:  pulumi.Bool(args.RemovalPolicy == RemovalPolicyRetain),
		Tags:                s.Tags("rds-cluster"),
	}, parent, removal)
	if err != nil {
		return nil, errors.Wrap(err, "create database cluster")
	}
	stack.Cluster = cluster

	for i := 0; i < s.DBInstances; i++ {
		suffix := fmt.Sprintf("database-instance-%d", i+1)
		instance, err := rds.NewClusterInstance(ctx, childName(name, suffix), &rds.ClusterInstanceArgs{
			ClusterIdentifier:  cluster.ID(),
			InstanceClass:      pulumi.String(s.DBInstanceClass),
			Engine:             pulumi.String(engine.Name),
			EngineVersion:      cluster.EngineVersion,
			DbSubnetGroupName:  subnetGroup.Name,
			PubliclyAccessible: pulumi.Bool(false),
			Tags:               s.Tags(suffix),
		}, parent, removal)
		if err != nil {
			return nil, errors.Wrapf(err, "create %s", suffix)
		}
		stack.Instances = append(stack.Instances, instance)
	}

	stack.Connections = &Connections{
		SecurityGroupID: sg.ID().ToStringOutput(),
		DefaultPort:     cluster.Port,
	}
	ingress, err := stack.Connections.AllowDefaultPortFrom(ctx, childName(name, "bastion-ingress"),
		args.BastionSecurityGroupID, "Allow access from bastion host", parent)
	if err != nil {
		return nil, err
	}
	stack.BastionIngress = ingress

	params := map[string]pulumi.StringOutput{
		"endpoint":   cluster.Endpoint,
		"secret-arn": secret.Arn(),
	}
	for _, key := range []string{"endpoint", "secret-arn"} {
		_, err := ssm.NewParameter(ctx, childName(name, key+"-param"), &ssm.ParameterArgs{
			Name:  pulumi.String(s.ParameterPath(key)),
			Type:  pulumi.String("String"),
			Value: params[key],
			Tags:  s.Tags(key),
		}, parent)
		if err != nil {
			return nil, errors.Wrapf(err, "publish %s parameter", key)
		}
	}

	if err := ctx.RegisterResourceOutputs(stack, pulumi.Map{
		"clusterEndpoint": cluster.Endpoint,
		"secretArn":       secret.Arn(),
	}); err != nil {
		return nil, err
	}
	return stack, nil
}
