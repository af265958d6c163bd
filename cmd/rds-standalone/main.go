package main

import (
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"

	"github.com/devopsrepohq/rds/internal/settings"
	"github.com/devopsrepohq/rds/internal/stacks"
)

func main() {
	pulumi.Run(func(ctx *pulumi.Context) error {
		s, err := settings.Load(ctx)
		if err != nil {
			return err
		}

		// Only the database stack; network, bastion group and key come from
		// upstreamStack or from explicit ids in config.
		app, err := stacks.NewStandaloneApp(ctx, s)
		if err != nil {
			return err
		}
		app.Export(ctx)

		return nil
	})
}
