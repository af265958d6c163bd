package main

import (
	"fmt"
	"io"
	"sort"

	"github.com/pkg/errors"
	"github.com/pulumi/pulumi/sdk/v3/go/auto"
	"github.com/pulumi/pulumi/sdk/v3/go/auto/optdestroy"
	"github.com/pulumi/pulumi/sdk/v3/go/auto/optpreview"
	"github.com/pulumi/pulumi/sdk/v3/go/auto/optup"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newPreviewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "preview",
		Short: "Show the changes an update would make",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := selectStack(ctx, commonCfg)
			if err != nil {
				return err
			}
			zap.S().Info("Starting preview")
			res, err := s.Preview(ctx, optpreview.ProgressStreams(cmd.OutOrStdout()))
			if err != nil {
				return errors.Wrap(err, "preview stack")
			}
			for op, n := range res.ChangeSummary {
				zap.S().Infof("%s: %d", op, n)
			}
			return nil
		},
	}
}

func newUpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Create or update the stack",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := selectStack(ctx, commonCfg)
			if err != nil {
				return err
			}
			zap.S().Info("Starting update")
			res, err := s.Up(ctx, optup.ProgressStreams(cmd.OutOrStdout()))
			if err != nil {
				return errors.Wrap(err, "update stack")
			}
			zap.S().Infof("Successfully deployed stack %s", commonCfg.stack)
			writeOutputs(cmd.OutOrStdout(), res.Outputs)
			return nil
		},
	}
}

func newDestroyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "destroy",
		Short: "Delete every resource of the stack",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := selectStack(ctx, commonCfg)
			if err != nil {
				return err
			}
			zap.S().Info("Starting destroy")
			if _, err := s.Destroy(ctx, optdestroy.ProgressStreams(cmd.OutOrStdout())); err != nil {
				return errors.Wrap(err, "destroy stack")
			}
			zap.S().Infof("Successfully destroyed stack %s", commonCfg.stack)
			return nil
		},
	}
}

func newOutputsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "outputs",
		Short: "Print the stack outputs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := selectStack(ctx, commonCfg)
			if err != nil {
				return err
			}
			outs, err := s.Outputs(ctx)
			if err != nil {
				return errors.Wrap(err, "read stack outputs")
			}
			writeOutputs(cmd.OutOrStdout(), outs)
			return nil
		},
	}
}

// writeOutputs prints outputs sorted by name, masking secrets.
func writeOutputs(w io.Writer, outs auto.OutputMap) {
	names := make([]string, 0, len(outs))
	for name := range outs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		out := outs[name]
		if out.Secret {
			fmt.Fprintf(w, "%s: [secret]\n", name)
			continue
		}
		fmt.Fprintf(w, "%s: %v\n", name, out.Value)
	}
}
