package stacks

import (
	"testing"

	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
	"github.com/stretchr/testify/assert"
)

func TestNewRdsStackValidatesArgs(t *testing.T) {
	full := func() *RdsStackArgs {
		return &RdsStackArgs{
			Settings:                acmeDev(),
			VpcID:                   pulumi.String("vpc-1"),
			IsolatedSubnetIDs:       pulumi.StringArray{pulumi.String("subnet-a")},
			BastionSecurityGroupID:  pulumi.String("sg-bastion"),
			StorageEncryptionKeyArn: pulumi.String("arn:aws:kms:us-east-1:123456789012:key/abc"),
		}
	}
	tests := []struct {
		name    string
		mutate  func(a *RdsStackArgs)
		wantErr string
	}{
		{
			name:    "no vpc",
			mutate:  func(a *RdsStackArgs) { a.VpcID = nil },
			wantErr: "requires a vpc id",
		},
		{
			name:    "no subnets",
			mutate:  func(a *RdsStackArgs) { a.IsolatedSubnetIDs = nil },
			wantErr: "requires isolated subnet ids",
		},
		{
			name:    "empty subnet list",
			mutate:  func(a *RdsStackArgs) { a.IsolatedSubnetIDs = pulumi.StringArray{} },
			wantErr: "at least one isolated subnet id",
		},
		{
			name:    "no key",
			mutate:  func(a *RdsStackArgs) { a.StorageEncryptionKeyArn = nil },
			wantErr: "requires a storage encryption key",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := full()
			tt.mutate(args)

			mocks := &recorder{}
			err := runWithMocks(mocks, func(ctx *pulumi.Context) error {
				_, err := NewRdsStack(ctx, RdsStackName, args)
				return err
			})
			assert.ErrorContains(t, err, tt.wantErr)
			assert.Empty(t, mocks.byToken(tokenSubnetGroup))
			assert.Empty(t, mocks.byToken(tokenCluster))
		})
	}
}

func TestNewRdsStackSingleSubnet(t *testing.T) {
	mocks := &recorder{}
	run(t, mocks, func(ctx *pulumi.Context) error {
		_, err := NewRdsStack(ctx, RdsStackName, &RdsStackArgs{
			Settings:                acmeDev(),
			VpcID:                   pulumi.String("vpc-1"),
			IsolatedSubnetIDs:       pulumi.StringArray{pulumi.String("subnet-a")},
			BastionSecurityGroupID:  pulumi.String("sg-bastion"),
			StorageEncryptionKeyArn: pulumi.String("arn:aws:kms:us-east-1:123456789012:key/abc"),
		})
		return err
	})
	assert.Equal(t, []string{"subnet-a"}, strs(t, mocks.one(t, tokenSubnetGroup).Inputs, "subnetIds"))
}
