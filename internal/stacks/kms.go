package stacks

import (
	"github.com/pkg/errors"
	"github.com/pulumi/pulumi-aws/sdk/v5/go/aws/kms"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"

	"github.com/devopsrepohq/rds/internal/settings"
)

// keyDeletionWindowDays is the shortest window KMS allows.
const keyDeletionWindowDays = 7

type KmsStackArgs struct {
	Settings      settings.Settings
	RemovalPolicy RemovalPolicy
}

// KmsStack owns the key used to encrypt the database storage.
type KmsStack struct {
	pulumi.ResourceState

	Key   *kms.Key
	Alias *kms.Alias
	// AliasName is the alias without the "alias/" prefix.
	AliasName string
}

// NewKmsStack creates a rotating KMS key and its alias. The alias follows the
// configured variant: "<project>/<env>/rds" or the fixed "rds-key".
func NewKmsStack(ctx *pulumi.Context, name string, args *KmsStackArgs, opts ...pulumi.ResourceOption) (*KmsStack, error) {
	if args == nil {
		return nil, errors.New("kms stack requires args")
	}
	s := args.Settings

	stack := &KmsStack{AliasName: s.KeyAlias()}
	if err := ctx.RegisterComponentResource(componentType("KmsStack"), name, stack, opts...); err != nil {
		return nil, err
	}
	childOpts := []pulumi.ResourceOption{pulumi.Parent(stack), args.RemovalPolicy.option()}

	description := "encryption key for RDS"
	if s.KeyAliasVariant == settings.KeyAliasDerived {
		description = "encryption key for RDS " + s.ResourceName("")
	}

	key, err := kms.NewKey(ctx, childName(name, "kms-rds"), &kms.KeyArgs{
		Description:          pulumi.String(description),
		EnableKeyRotation:    pulumi.Bool(true),
		DeletionWindowInDays: pulumi.Int(keyDeletionWindowDays),
		Tags:                 s.Tags("rds-key"),
	}, childOpts...)
	if err != nil {
		return nil, errors.Wrap(err, "create kms key")
	}
	stack.Key = key

	alias, err := kms.NewAlias(ctx, childName(name, "kms-rds-alias"), &kms.AliasArgs{
		Name:        pulumi.String("alias/" + stack.AliasName),
		TargetKeyId: key.KeyId,
	}, childOpts...)
	if err != nil {
		return nil, errors.Wrap(err, "create kms alias")
	}
	stack.Alias = alias

	if err := ctx.RegisterResourceOutputs(stack, pulumi.Map{
		"keyArn":    key.Arn,
		"aliasName": alias.Name,
	}); err != nil {
		return nil, err
	}
	return stack, nil
}

// KeyArn returns the key ARN.
func (k *KmsStack) KeyArn() pulumi.StringOutput {
	return k.Key.Arn
}
