package stacks

import (
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"

	"github.com/devopsrepohq/rds/internal/settings"
)

// Stack names of the fully wired program.
const (
	VpcStackName      = "VpcStack"
	SecurityStackName = "SecurityStack"
	BastionStackName  = "BastionStack"
	KmsStackName      = "KmsStack"
	RdsStackName      = "RdsStack"
)

// App is the assembled program: every stack and the handles passed between them.
type App struct {
	Settings settings.Settings

	Network  *NetworkStack
	Security *SecurityStack
	Bastion  *BastionStack
	Kms      *KmsStack
	Rds      *RdsStack
}

// NewApp declares every stack and threads their handles: network, security,
// bastion, key, then the database.
func NewApp(ctx *pulumi.Context, s settings.Settings) (*App, error) {
	app := &App{Settings: s}

	// 1. Network with public, private and isolated tiers
	network, err := NewNetworkStack(ctx, VpcStackName, &NetworkStackArgs{Settings: s})
	if err != nil {
		return nil, err
	}
	app.Network = network

	// 2. Bastion security group
	security, err := NewSecurityStack(ctx, SecurityStackName, &SecurityStackArgs{
		Settings: s,
		VpcID:    network.VpcID(),
	})
	if err != nil {
		return nil, err
	}
	app.Security = security

	// 3. Bastion host in the first private subnet
	bastion, err := NewBastionStack(ctx, BastionStackName, &BastionStackArgs{
		Settings:        s,
		SubnetID:        network.PrivateSubnets[0].ID().ToStringOutput(),
		SecurityGroupID: security.BastionSecurityGroupID(),
	})
	if err != nil {
		return nil, err
	}
	app.Bastion = bastion

	// 4. Storage encryption key
	kms, err := NewKmsStack(ctx, KmsStackName, &KmsStackArgs{
		Settings:      s,
		RemovalPolicy: RemovalPolicyDestroy,
	})
	if err != nil {
		return nil, err
	}
	app.Kms = kms

	// 5. Database
	db, err := NewRdsStack(ctx, RdsStackName, &RdsStackArgs{
		Settings:                s,
		VpcID:                   network.VpcID(),
		IsolatedSubnetIDs:       network.IsolatedSubnetIDs(),
		BastionSecurityGroupID:  security.BastionSecurityGroupID(),
		StorageEncryptionKeyArn: kms.KeyArn(),
		RemovalPolicy:           RemovalPolicyDestroy,
	})
	if err != nil {
		return nil, err
	}
	app.Rds = db

	return app, nil
}

// Export publishes the stack outputs of every stack that was declared.
func (a *App) Export(ctx *pulumi.Context) {
	if a.Network != nil {
		ctx.Export("vpcId", a.Network.Vpc.ID())
		ctx.Export("isolatedSubnetIds", a.Network.IsolatedSubnetIDs())
	}
	if a.Security != nil {
		ctx.Export("bastionSecurityGroupId", a.Security.BastionSecurityGroup.ID())
	}
	if a.Bastion != nil {
		ctx.Export("bastionInstanceId", a.Bastion.Instance.ID())
	}
	if a.Kms != nil {
		ctx.Export("kmsKeyArn", a.Kms.Key.Arn)
		ctx.Export("kmsAliasName", a.Kms.Alias.Name)
	}
	if a.Rds != nil && !a.Rds.Empty() {
		ctx.Export("clusterIdentifier", a.Rds.Cluster.ClusterIdentifier)
		ctx.Export("clusterEndpoint", a.Rds.Cluster.Endpoint)
		ctx.Export("clusterReaderEndpoint", a.Rds.Cluster.ReaderEndpoint)
		ctx.Export("clusterPort", a.Rds.Cluster.Port)
		ctx.Export("databaseName", pulumi.String(a.Rds.DatabaseName))
		ctx.Export("secretArn", a.Rds.Secret.Arn())
	}
}
