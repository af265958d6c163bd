package stacks

import (
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/pulumi/pulumi/sdk/v3/go/common/resource"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
	"github.com/stretchr/testify/require"

	"github.com/devopsrepohq/rds/internal/settings"
)

const (
	tokenVpc           = "aws:ec2/vpc:Vpc"
	tokenSubnet        = "aws:ec2/subnet:Subnet"
	tokenRouteTable    = "aws:ec2/routeTable:RouteTable"
	tokenSecurityGroup = "aws:ec2/securityGroup:SecurityGroup"
	tokenSGRule        = "aws:ec2/securityGroupRule:SecurityGroupRule"
	tokenInstance      = "aws:ec2/instance:Instance"
	tokenKey           = "aws:kms/key:Key"
	tokenAlias         = "aws:kms/alias:Alias"
	tokenSecret        = "aws:secretsmanager/secret:Secret"
	tokenSecretVersion = "aws:secretsmanager/secretVersion:SecretVersion"
	tokenPassword      = "random:index/randomPassword:RandomPassword"
	tokenSubnetGroup   = "aws:rds/subnetGroup:SubnetGroup"
	tokenCluster       = "aws:rds/cluster:Cluster"
	tokenClusterInst   = "aws:rds/clusterInstance:ClusterInstance"
	tokenParameter     = "aws:ssm/parameter:Parameter"
	tokenStackRef      = "pulumi:pulumi:StackReference"

	mockPassword = "Ab3dEf6hIj9k"
)

type registered struct {
	Token  string
	Name   string
	ID     string
	Inputs resource.PropertyMap
}

// recorder is a MockResourceMonitor that remembers every registration.
type recorder struct {
	mu        sync.Mutex
	resources []registered
	upstream  resource.PropertyMap
}

func (r *recorder) NewResource(args pulumi.MockResourceArgs) (string, resource.PropertyMap, error) {
	id := args.Name + "_id"
	outputs := args.Inputs.Copy()

	switch args.TypeToken {
	case tokenKey:
		outputs["arn"] = resource.NewStringProperty("arn:aws:kms:us-east-1:123456789012:key/" + id)
		outputs["keyId"] = resource.NewStringProperty(id)
	case tokenSecret:
		outputs["arn"] = resource.NewStringProperty("arn:aws:secretsmanager:us-east-1:123456789012:secret:" + id)
	case tokenPassword:
		outputs["result"] = resource.MakeSecret(resource.NewStringProperty(mockPassword))
	case tokenSubnetGroup:
		outputs["name"] = resource.NewStringProperty(args.Name)
	case tokenCluster:
		outputs["clusterIdentifier"] = resource.NewStringProperty(args.Name)
		outputs["endpoint"] = resource.NewStringProperty(args.Name + ".cluster.example.com")
		outputs["readerEndpoint"] = resource.NewStringProperty(args.Name + ".cluster-ro.example.com")
	case tokenStackRef:
		outputs["outputs"] = resource.NewObjectProperty(r.upstream)
	case "aws:iam/role:Role", "aws:iam/instanceProfile:InstanceProfile":
		outputs["name"] = resource.NewStringProperty(args.Name)
	}

	r.mu.Lock()
	r.resources = append(r.resources, registered{
		Token:  args.TypeToken,
		Name:   args.Name,
		ID:     id,
		Inputs: args.Inputs,
	})
	r.mu.Unlock()
	return id, outputs, nil
}

func (r *recorder) Call(args pulumi.MockCallArgs) (resource.PropertyMap, error) {
	switch args.Token {
	case "aws:index/getAvailabilityZones:getAvailabilityZones":
		return resource.NewPropertyMapFromMap(map[string]interface{}{
			"names": []interface{}{"us-east-1a", "us-east-1b", "us-east-1c"},
		}), nil
	case "aws:ec2/getAmi:getAmi":
		return resource.NewPropertyMapFromMap(map[string]interface{}{
			"id": "ami-0123456789abcdef0",
		}), nil
	}
	return resource.PropertyMap{}, nil
}

// byToken returns every registered resource of the given type.
func (r *recorder) byToken(token string) []registered {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []registered
	for _, res := range r.resources {
		if res.Token == token {
			out = append(out, res)
		}
	}
	return out
}

// one returns the single registered resource of the given type.
func (r *recorder) one(t *testing.T, token string) registered {
	t.Helper()
	found := r.byToken(token)
	require.Len(t, found, 1, "resources of type %s", token)
	return found[0]
}

// cloudResources returns everything that is not one of our components.
func (r *recorder) cloudResources() []registered {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []registered
	for _, res := range r.resources {
		if !strings.HasPrefix(res.Token, typePrefix+":") {
			out = append(out, res)
		}
	}
	return out
}

func acmeDev() settings.Settings {
	s := settings.Defaults()
	s.ProjectName = "acme"
	s.Env = "dev"
	return s
}

func runWithMocks(mocks pulumi.MockResourceMonitor, body pulumi.RunFunc) error {
	return pulumi.RunErr(body, pulumi.WithMocks("rds", "test", mocks))
}

func run(t *testing.T, mocks *recorder, body pulumi.RunFunc) {
	t.Helper()
	err := runWithMocks(mocks, body)
	require.NoError(t, err)
}

// str unwraps secrets and returns the string value of key.
func str(t *testing.T, pm resource.PropertyMap, key string) string {
	t.Helper()
	v, ok := pm[resource.PropertyKey(key)]
	require.True(t, ok, "missing property %s", key)
	for v.IsSecret() {
		v = v.SecretValue().Element
	}
	if v.IsOutput() {
		v = v.OutputValue().Element
	}
	require.True(t, v.IsString(), "property %s is %s, want string", key, v.TypeString())
	return v.StringValue()
}

func num(t *testing.T, pm resource.PropertyMap, key string) float64 {
	t.Helper()
	v, ok := pm[resource.PropertyKey(key)]
	require.True(t, ok, "missing property %s", key)
	require.True(t, v.IsNumber(), "property %s is %s, want number", key, v.TypeString())
	return v.NumberValue()
}

func strs(t *testing.T, pm resource.PropertyMap, key string) []string {
	t.Helper()
	v, ok := pm[resource.PropertyKey(key)]
	require.True(t, ok, "missing property %s", key)
	require.True(t, v.IsArray(), "property %s is %s, want array", key, v.TypeString())
	var out []string
	for _, e := range v.ArrayValue() {
		if e.IsOutput() {
			e = e.OutputValue().Element
		}
		out = append(out, e.StringValue())
	}
	return out
}

func tag(t *testing.T, pm resource.PropertyMap, key string) string {
	t.Helper()
	v, ok := pm["tags"]
	require.True(t, ok, "missing tags")
	tags := v.ObjectValue()
	tv, ok := tags[resource.PropertyKey(key)]
	if !ok {
		return ""
	}
	return tv.StringValue()
}

func ids(res []registered) []string {
	out := make([]string, 0, len(res))
	for _, r := range res {
		out = append(out, r.ID)
	}
	return out
}

func describe(res []registered) string {
	var b strings.Builder
	for _, r := range res {
		fmt.Fprintf(&b, "%s %s\n", r.Token, r.Name)
	}
	return b.String()
}
