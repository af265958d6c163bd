package main

import (
	"context"
	"strconv"

	"github.com/pkg/errors"
	"github.com/pulumi/pulumi/sdk/v3/go/auto"
	"github.com/pulumi/pulumi/sdk/v3/go/common/tokens"
	"github.com/pulumi/pulumi/sdk/v3/go/common/workspace"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
	"go.uber.org/zap"

	"github.com/devopsrepohq/rds/internal/settings"
	"github.com/devopsrepohq/rds/internal/stacks"
)

const (
	variantFull       = "full"
	variantStandalone = "standalone"
)

type stackConfig struct {
	stack         string
	projectName   string
	env           string
	region        string
	variant       string
	backend       string
	upstreamStack string
	strict        bool
	// strictSet records that --strict was given, so false can clear a stored true.
	strictSet bool
	verbose   bool
}

// program is one of the two Pulumi programs and the project it runs under.
type program struct {
	project string
	run     pulumi.RunFunc
}

func programFor(variant string) (program, error) {
	switch variant {
	case variantFull, "":
		return program{project: "rds", run: func(ctx *pulumi.Context) error {
			s, err := settings.Load(ctx)
			if err != nil {
				return err
			}
			app, err := stacks.NewApp(ctx, s)
			if err != nil {
				return err
			}
			app.Export(ctx)
			return nil
		}}, nil
	case variantStandalone:
		return program{project: "rds-standalone", run: func(ctx *pulumi.Context) error {
			s, err := settings.Load(ctx)
			if err != nil {
				return err
			}
			app, err := stacks.NewStandaloneApp(ctx, s)
			if err != nil {
				return err
			}
			app.Export(ctx)
			return nil
		}}, nil
	}
	return program{}, errors.Errorf("unknown variant %q, want %s or %s", variant, variantFull, variantStandalone)
}

// configFor maps the command line onto stack config in the project's namespace.
// Unset flags are left out so values already stored on the stack survive.
func configFor(project string, c stackConfig) auto.ConfigMap {
	cfg := auto.ConfigMap{
		"aws:region": auto.ConfigValue{Value: c.region},
	}
	key := func(name string) string { return project + ":" + name }
	if c.projectName != "" {
		cfg[key("project-name")] = auto.ConfigValue{Value: c.projectName}
	}
	if c.env != "" {
		cfg[key("env")] = auto.ConfigValue{Value: c.env}
	}
	if c.strict || c.strictSet {
		cfg[key("strict")] = auto.ConfigValue{Value: strconv.FormatBool(c.strict)}
	}
	if c.upstreamStack != "" {
		cfg[key("upstreamStack")] = auto.ConfigValue{Value: c.upstreamStack}
	}
	return cfg
}

func selectStack(ctx context.Context, c stackConfig) (auto.Stack, error) {
	prog, err := programFor(c.variant)
	if err != nil {
		return auto.Stack{}, err
	}

	proj := workspace.Project{
		Name:    tokens.PackageName(prog.project),
		Runtime: workspace.NewProjectRuntimeInfo("go", nil),
	}
	if c.backend != "" {
		proj.Backend = &workspace.ProjectBackend{URL: c.backend}
	}

	s, err := auto.UpsertStackInlineSource(ctx, c.stack, prog.project, prog.run, auto.Project(proj))
	if err != nil {
		return auto.Stack{}, errors.Wrapf(err, "create or select stack %s", c.stack)
	}
	zap.S().Debugf("Created/Selected stack %q of project %q", c.stack, prog.project)

	if err := s.SetAllConfig(ctx, configFor(prog.project, c)); err != nil {
		return auto.Stack{}, errors.Wrap(err, "set stack configuration")
	}
	zap.S().Debug("Successfully set config")
	return s, nil
}
