package settings

import (
	"testing"

	"github.com/pulumi/pulumi/sdk/v3/go/common/resource"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type noopMocks struct{}

func (noopMocks) NewResource(args pulumi.MockResourceArgs) (string, resource.PropertyMap, error) {
	return args.Name + "_id", args.Inputs, nil
}

func (noopMocks) Call(args pulumi.MockCallArgs) (resource.PropertyMap, error) {
	return resource.PropertyMap{}, nil
}

func runWithMocks(mocks pulumi.MockResourceMonitor, body pulumi.RunFunc) error {
	return pulumi.RunErr(body, pulumi.WithMocks("rds", "test", mocks))
}

func load(t *testing.T, cfg string) (Settings, error) {
	t.Helper()
	t.Setenv("PULUMI_CONFIG", cfg)
	var (
		s       Settings
		loadErr error
	)
	err := runWithMocks(noopMocks{}, func(ctx *pulumi.Context) error {
		s, loadErr = Load(ctx)
		return nil
	})
	require.NoError(t, err)
	return s, loadErr
}

func TestLoad(t *testing.T) {
	s, err := load(t, `{
		"rds:project-name": "acme",
		"rds:env": "dev",
		"rds:dbInstances": "2",
		"rds:dbEngine": "aurora-postgresql",
		"rds:availabilityZones": "[\"us-east-1a\",\"us-east-1b\"]"
	}`)
	require.NoError(t, err)

	assert.Equal(t, "acme", s.ProjectName)
	assert.Equal(t, "dev", s.Env)
	assert.Equal(t, 2, s.DBInstances)
	assert.Equal(t, EngineAuroraPostgreSQL, s.DBEngine)
	assert.Equal(t, []string{"us-east-1a", "us-east-1b"}, s.AvailabilityZones)
	assert.Equal(t, DefaultVpcCidr, s.VpcCidr)
	assert.Equal(t, KeyAliasDerived, s.KeyAliasVariant)
	assert.True(t, s.Standalone.Empty())
}

func TestLoadMissingContext(t *testing.T) {
	s, err := load(t, `{}`)
	require.NoError(t, err)
	assert.Empty(t, s.ProjectName)
	assert.Equal(t, "//rds", s.KeyAlias())
	assert.Equal(t, "", s.DatabaseName())
}

func TestLoadStrict(t *testing.T) {
	_, err := load(t, `{"rds:env": "dev", "rds:strict": "true"}`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "project-name")
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name string
		cfg  string
		want string
	}{
		{"bad cidr", `{"rds:vpcCidr": "10.0.0.0"}`, "VpcCidr"},
		{"zero instances", `{"rds:dbInstances": "0"}`, "DBInstances"},
		{"not a number", `{"rds:dbInstances": "two"}`, "dbInstances"},
		{"unknown engine", `{"rds:dbEngine": "mysql"}`, "DBEngine"},
		{"unknown variant", `{"rds:keyAliasVariant": "random"}`, "KeyAliasVariant"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := load(t, tt.cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestDerivedNames(t *testing.T) {
	s := Defaults()
	s.ProjectName = "acme"
	s.Env = "dev"

	assert.Equal(t, "acme/dev/rds", s.KeyAlias())
	assert.Equal(t, "acmedev", s.DatabaseName())
	assert.Equal(t, "/acme/dev/rds/endpoint", s.ParameterPath("endpoint"))
	assert.Equal(t, "acme-dev-vpc", s.ResourceName("vpc"))

	s.KeyAliasVariant = KeyAliasFixed
	assert.Equal(t, FixedKeyAlias, s.KeyAlias())
}

func TestDerivedNamesWithoutContext(t *testing.T) {
	s := Defaults()

	assert.Equal(t, "//rds", s.KeyAlias())
	assert.Equal(t, "/rds/endpoint", s.ParameterPath("endpoint"))
	assert.Equal(t, "vpc", s.ResourceName("vpc"))

	tags := s.Tags("vpc")
	assert.NotContains(t, tags, "Project")
	assert.NotContains(t, tags, "Environment")
}

func TestValidate(t *testing.T) {
	s := Defaults()
	missing, err := s.Validate()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"project-name", "env"}, missing)

	s.ProjectName, s.Env = "acme", "dev"
	missing, err = s.Validate()
	require.NoError(t, err)
	assert.Empty(t, missing)
}
