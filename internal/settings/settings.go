// Package settings holds the configuration values the infrastructure program is
// assembled from. Values are read once from Pulumi stack configuration and then
// passed down to every stack explicitly.
package settings

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi/config"
)

const (
	KeyAliasDerived = "derived"
	KeyAliasFixed   = "fixed"

	EngineAuroraMySQL      = "aurora-mysql"
	EngineAuroraPostgreSQL = "aurora-postgresql"

	// FixedKeyAlias is the alias used by the fixed key variant.
	FixedKeyAlias = "rds-key"

	DefaultVpcCidr             = "10.0.0.0/16"
	DefaultNatGateways         = 1
	DefaultBastionInstanceType = "t3.nano"
	DefaultDBInstanceClass     = "db.t3.small"
	DefaultDBInstances         = 1
)

// Settings is the full set of inputs the stacks are derived from.
type Settings struct {
	ProjectName string `validate:"required"`
	Env         string `validate:"required"`
	// Strict turns missing ProjectName/Env into an error instead of a warning.
	Strict bool

	KeyAliasVariant string `validate:"oneof=derived fixed"`

	VpcCidr           string `validate:"cidrv4"`
	AvailabilityZones []string
	NatGateways       int `validate:"min=0"`

	BastionInstanceType string `validate:"required"`

	DBEngine        string `validate:"oneof=aurora-mysql aurora-postgresql"`
	DBEngineVersion string
	DBInstanceClass string `validate:"required"`
	DBInstances     int    `validate:"min=1"`

	Standalone StandaloneInputs
}

// StandaloneInputs are the handles the standalone database stack is given
// instead of building them itself.
type StandaloneInputs struct {
	UpstreamStack          string
	VpcID                  string
	IsolatedSubnetIDs      []string
	BastionSecurityGroupID string
	KmsKeyArn              string
}

// Empty reports whether no upstream handles were configured.
func (in StandaloneInputs) Empty() bool {
	return in.UpstreamStack == "" && in.VpcID == "" && len(in.IsolatedSubnetIDs) == 0 &&
		in.BastionSecurityGroupID == "" && in.KmsKeyArn == ""
}

// Defaults returns Settings with every optional value filled in.
func Defaults() Settings {
	return Settings{
		KeyAliasVariant:     KeyAliasDerived,
		VpcCidr:             DefaultVpcCidr,
		NatGateways:         DefaultNatGateways,
		BastionInstanceType: DefaultBastionInstanceType,
		DBEngine:            EngineAuroraMySQL,
		DBInstanceClass:     DefaultDBInstanceClass,
		DBInstances:         DefaultDBInstances,
	}
}

// Load reads Settings from the configuration of the current Pulumi project.
func Load(ctx *pulumi.Context) (Settings, error) {
	cfg := config.New(ctx, "")
	s := Defaults()

	s.ProjectName = cfg.Get("project-name")
	s.Env = cfg.Get("env")
	s.Strict = cfg.GetBool("strict")

	if v := cfg.Get("keyAliasVariant"); v != "" {
		s.KeyAliasVariant = v
	}
	if v := cfg.Get("vpcCidr"); v != "" {
		s.VpcCidr = v
	}
	if err := cfg.GetObject("availabilityZones", &s.AvailabilityZones); err != nil {
		return s, errors.Wrap(err, "read availabilityZones")
	}
	if v := cfg.Get("natGateways"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return s, errors.Wrap(err, "read natGateways")
		}
		s.NatGateways = n
	}
	if v := cfg.Get("bastionInstanceType"); v != "" {
		s.BastionInstanceType = v
	}
	if v := cfg.Get("dbEngine"); v != "" {
		s.DBEngine = v
	}
	s.DBEngineVersion = cfg.Get("dbEngineVersion")
	if v := cfg.Get("dbInstanceClass"); v != "" {
		s.DBInstanceClass = v
	}
	if v := cfg.Get("dbInstances"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return s, errors.Wrap(err, "read dbInstances")
		}
		s.DBInstances = n
	}

	s.Standalone.UpstreamStack = cfg.Get("upstreamStack")
	s.Standalone.VpcID = cfg.Get("vpcId")
	s.Standalone.BastionSecurityGroupID = cfg.Get("bastionSecurityGroupId")
	s.Standalone.KmsKeyArn = cfg.Get("kmsKeyArn")
	if err := cfg.GetObject("isolatedSubnetIds", &s.Standalone.IsolatedSubnetIDs); err != nil {
		return s, errors.Wrap(err, "read isolatedSubnetIds")
	}

	missing, err := s.Validate()
	if err != nil {
		return s, err
	}
	for _, field := range missing {
		if s.Strict {
			return s, errors.Errorf("config %q is required in strict mode", field)
		}
		// Derived names silently lose this segment.
		_ = ctx.Log.Warn(fmt.Sprintf("config %q is not set; derived names will contain an empty segment", field), nil)
	}
	return s, nil
}

var validate = validator.New()

// contextFields maps struct fields whose absence is tolerated to their config keys.
var contextFields = map[string]string{
	"ProjectName": "project-name",
	"Env":         "env",
}

// Validate checks s. Missing project-name/env are returned as config keys in
// missing; every other violation is returned as err.
func (s Settings) Validate() (missing []string, err error) {
	verr := validate.Struct(s)
	if verr == nil {
		return nil, nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(verr, &fieldErrs) {
		return nil, errors.Wrap(verr, "validate settings")
	}
	var problems []string
	for _, fe := range fieldErrs {
		if key, ok := contextFields[fe.Field()]; ok && fe.Tag() == "required" {
			missing = append(missing, key)
			continue
		}
		problems = append(problems, fmt.Sprintf("%s failed %q (value %v)", fe.Field(), fe.Tag(), fe.Value()))
	}
	if len(problems) > 0 {
		return missing, errors.Errorf("invalid settings: %s", strings.Join(problems, "; "))
	}
	return missing, nil
}

// KeyAlias is the KMS alias without the "alias/" prefix.
func (s Settings) KeyAlias() string {
	if s.KeyAliasVariant == KeyAliasFixed {
		return FixedKeyAlias
	}
	return fmt.Sprintf("%s/%s/rds", s.ProjectName, s.Env)
}

// DatabaseName is the default database created in the cluster.
func (s Settings) DatabaseName() string {
	return s.ProjectName + s.Env
}

// ParameterPath is the SSM parameter name for an exported value.
// Empty segments are dropped since SSM rejects "//" in names.
func (s Settings) ParameterPath(name string) string {
	return "/" + strings.Join(nonEmpty(s.ProjectName, s.Env, "rds", name), "/")
}

// ResourceName joins the non-empty project, env and suffix with dashes. It is
// used for Name tags.
func (s Settings) ResourceName(suffix string) string {
	return strings.Join(nonEmpty(s.ProjectName, s.Env, suffix), "-")
}

func nonEmpty(parts ...string) []string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Tags returns the tag set applied to every resource.
func (s Settings) Tags(suffix string) pulumi.StringMap {
	tags := pulumi.StringMap{
		"Name": pulumi.String(s.ResourceName(suffix)),
	}
	if s.ProjectName != "" {
		tags["Project"] = pulumi.String(s.ProjectName)
	}
	if s.Env != "" {
		tags["Environment"] = pulumi.String(s.Env)
	}
	return tags
}
