package stacks

import (
	"github.com/pkg/errors"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"

	"github.com/devopsrepohq/rds/internal/settings"
)

// Output names the standalone program reads from an upstream stack.
const (
	OutputVpcID                  = "vpcId"
	OutputIsolatedSubnetIDs      = "isolatedSubnetIds"
	OutputBastionSecurityGroupID = "bastionSecurityGroupId"
	OutputKmsKeyArn              = "kmsKeyArn"
)

// NewStandaloneApp declares only the database stack. Its handles come from an
// upstream stack reference or from explicit configuration; with neither the
// stack is empty.
func NewStandaloneApp(ctx *pulumi.Context, s settings.Settings) (*App, error) {
	app := &App{Settings: s}

	args, err := standaloneArgs(ctx, s)
	if err != nil {
		return nil, err
	}
	db, err := NewRdsStack(ctx, RdsStackName, args)
	if err != nil {
		return nil, err
	}
	app.Rds = db
	return app, nil
}

func standaloneArgs(ctx *pulumi.Context, s settings.Settings) (*RdsStackArgs, error) {
	in := s.Standalone
	if in.Empty() {
		return nil, nil
	}
	if in.UpstreamStack != "" {
		ref, err := pulumi.NewStackReference(ctx, in.UpstreamStack, nil)
		if err != nil {
			return nil, errors.Wrapf(err, "reference stack %s", in.UpstreamStack)
		}
		return &RdsStackArgs{
			Settings:                s,
			VpcID:                   stringOutput(ref, OutputVpcID),
			IsolatedSubnetIDs:       stringArrayOutput(ref, OutputIsolatedSubnetIDs),
			BastionSecurityGroupID:  stringOutput(ref, OutputBastionSecurityGroupID),
			StorageEncryptionKeyArn: stringOutput(ref, OutputKmsKeyArn),
		}, nil
	}

	var missing []string
	if in.VpcID == "" {
		missing = append(missing, "vpcId")
	}
	if len(in.IsolatedSubnetIDs) == 0 {
		missing = append(missing, "isolatedSubnetIds")
	}
	if in.BastionSecurityGroupID == "" {
		missing = append(missing, "bastionSecurityGroupId")
	}
	if in.KmsKeyArn == "" {
		missing = append(missing, "kmsKeyArn")
	}
	if len(missing) > 0 {
		return nil, errors.Errorf("standalone database is partially configured, missing %v", missing)
	}
	return &RdsStackArgs{
		Settings:                s,
		VpcID:                   pulumi.String(in.VpcID),
		IsolatedSubnetIDs:       pulumi.ToStringArray(in.IsolatedSubnetIDs),
		BastionSecurityGroupID:  pulumi.String(in.BastionSecurityGroupID),
		StorageEncryptionKeyArn: pulumi.String(in.KmsKeyArn),
	}, nil
}

func stringOutput(ref *pulumi.StackReference, name string) pulumi.StringOutput {
	return ref.GetOutput(pulumi.String(name)).ApplyT(func(v interface{}) (string, error) {
		s, ok := v.(string)
		if !ok {
			return "", errors.Errorf("upstream output %q is %T, want string", name, v)
		}
		return s, nil
	}).(pulumi.StringOutput)
}

func stringArrayOutput(ref *pulumi.StackReference, name string) pulumi.StringArrayOutput {
	return ref.GetOutput(pulumi.String(name)).ApplyT(func(v interface{}) ([]string, error) {
		items, ok := v.([]interface{})
		if !ok {
			return nil, errors.Errorf("upstream output %q is %T, want list", name, v)
		}
		out := make([]string, 0, len(items))
		for _, item := range items {
			s, ok := item.(string)
			if !ok {
				return nil, errors.Errorf("upstream output %q has a %T element", name, item)
			}
			out = append(out, s)
		}
		return out, nil
	}).(pulumi.StringArrayOutput)
}
