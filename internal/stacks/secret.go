package stacks

import (
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/pulumi/pulumi-aws/sdk/v5/go/aws/secretsmanager"
	"github.com/pulumi/pulumi-random/sdk/v4/go/random"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"

	"github.com/devopsrepohq/rds/internal/settings"
)

// Password generation policy of the templated secret.
const (
	PasswordLength     = 12
	ExcludePunctuation = true
	IncludeSpace       = false

	// SecretTemplateUsername is the literal username stored in the secret document.
	SecretTemplateUsername = "user"
	// PasswordKey is the generated field of the secret document.
	PasswordKey = "password"
)

type TemplatedSecretArgs struct {
	Settings      settings.Settings
	Description   string
	RemovalPolicy RemovalPolicy
}

// TemplatedSecret is a Secrets Manager secret holding
// {"username": "user", "password": <generated>}.
type TemplatedSecret struct {
	Secret   *secretsmanager.Secret
	Version  *secretsmanager.SecretVersion
	Password *random.RandomPassword
}

// NewTemplatedSecret generates the password and stores the secret document.
func NewTemplatedSecret(ctx *pulumi.Context, name string, args *TemplatedSecretArgs, opts ...pulumi.ResourceOption) (*TemplatedSecret, error) {
	if args == nil {
		return nil, errors.New("templated secret requires args")
	}
	opts = append(opts, args.RemovalPolicy.option())

	// Letters and digits only: no punctuation, and random never emits spaces.
	password, err := random.NewRandomPassword(ctx, name+"-password", &random.RandomPasswordArgs{
		Length:  pulumi.Int(PasswordLength),
		Special: pulumi.Bool(!ExcludePunctuation),
		Upper:   pulumi.Bool(true),
		Lower:   pulumi.Bool(true),
		Numeric: pulumi.Bool(true),
	}, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "generate secret password")
	}

	recoveryWindow := 0
	if args.RemovalPolicy == RemovalPolicyRetain {
		recoveryWindow = 30
	}
	secret, err := secretsmanager.NewSecret(ctx, name, &secretsmanager.SecretArgs{
		Description:          pulumi.String(args.Description),
		RecoveryWindowInDays: pulumi.Int(recoveryWindow),
		Tags:                 args.Settings.Tags("rds-secret"),
	}, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "create secret")
	}

	document := password.Result.ApplyT(func(pw string) (string, error) {
		return renderSecretDocument(SecretTemplateUsername, pw)
	}).(pulumi.StringOutput)

	version, err := secretsmanager.NewSecretVersion(ctx, name+"-version", &secretsmanager.SecretVersionArgs{
		SecretId:     secret.ID(),
		SecretString: pulumi.ToSecret(document).(pulumi.StringOutput),
	}, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "store secret value")
	}

	return &TemplatedSecret{
		Secret:   secret,
		Version:  version,
		Password: password,
	}, nil
}

// SecretValueFromJSON returns one field of the secret document.
func (t *TemplatedSecret) SecretValueFromJSON(field string) pulumi.StringOutput {
	return pulumi.ToSecret(t.Version.SecretString.ApplyT(func(doc *string) (string, error) {
		if doc == nil {
			return "", errors.New("secret has no string value")
		}
		return secretField(*doc, field)
	})).(pulumi.StringOutput)
}

// PasswordValue returns the generated password field.
func (t *TemplatedSecret) PasswordValue() pulumi.StringOutput {
	return t.SecretValueFromJSON(PasswordKey)
}

// Arn returns the secret ARN.
func (t *TemplatedSecret) Arn() pulumi.StringOutput {
	return t.Secret.Arn
}

func renderSecretDocument(username, password string) (string, error) {
	b, err := json.Marshal(map[string]string{
		"username":  username,
		PasswordKey: password,
	})
	if err != nil {
		return "", errors.Wrap(err, "render secret document")
	}
	return string(b), nil
}

func secretField(doc, field string) (string, error) {
	var values map[string]string
	if err := json.Unmarshal([]byte(doc), &values); err != nil {
		return "", errors.Wrap(err, "parse secret document")
	}
	v, ok := values[field]
	if !ok {
		return "", errors.Errorf("secret document has no field %q", field)
	}
	return v, nil
}
