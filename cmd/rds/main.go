package main

import (
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"

	"github.com/devopsrepohq/rds/internal/settings"
	"github.com/devopsrepohq/rds/internal/stacks"
)

func main() {
	pulumi.Run(func(ctx *pulumi.Context) error {
		// 1. Read project-name, env and the sizing knobs from stack config
		s, err := settings.Load(ctx)
		if err != nil {
			return err
		}

		// 2. Create network, bastion, key and database stacks
		app, err := stacks.NewApp(ctx, s)
		if err != nil {
			return err
		}

		// Export handles for the standalone program and operators
		app.Export(ctx)

		return nil
	})
}
