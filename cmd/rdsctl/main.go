// Command rdsctl previews, deploys and inspects the database stacks through the
// Pulumi Automation API.
package main

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var commonCfg stackConfig

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "rdsctl",
		Short:        "Manage the Aurora database stacks",
		SilenceUsage: true,
	}
	flags := root.PersistentFlags()
	flags.StringVarP(&commonCfg.stack, "stack", "s", "dev", "Stack name")
	flags.StringVar(&commonCfg.projectName, "project-name", "", "Project name used in derived resource names")
	flags.StringVar(&commonCfg.env, "env", "", "Environment used in derived resource names")
	flags.StringVar(&commonCfg.region, "region", "us-east-1", "AWS region")
	flags.StringVar(&commonCfg.variant, "variant", variantFull, "Program to run: full or standalone")
	flags.StringVar(&commonCfg.backend, "backend", "", "Pulumi backend URL, e.g. file://~/.pulumi-state")
	flags.StringVar(&commonCfg.upstreamStack, "upstream-stack", "", "Stack the standalone variant reads its handles from")
	flags.BoolVar(&commonCfg.strict, "strict", false, "Fail when project name or env is missing")
	flags.BoolVarP(&commonCfg.verbose, "verbose", "v", false, "Enable verbose logging")

	root.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		commonCfg.strictSet = cmd.Flags().Changed("strict")
		zap.ReplaceGlobals(newLogger(commonCfg.verbose))
	}
	root.PersistentPostRun = func(cmd *cobra.Command, args []string) {
		zap.L().Sync() //nolint:errcheck
	}

	root.AddCommand(
		newPreviewCmd(),
		newUpCmd(),
		newDestroyCmd(),
		newOutputsCmd(),
		newDescribeCmd(),
	)
	return root
}

func newLogger(verbose bool) *zap.Logger {
	cfg := zap.NewDevelopmentConfig()
	cfg.DisableStacktrace = true
	if !verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		zap.S().Error(err)
		os.Exit(1)
	}
}
