package main

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	"github.com/aws/aws-sdk-go-v2/service/rds/types"
	"github.com/pkg/errors"
	"github.com/pulumi/pulumi/sdk/v3/go/auto"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// clusterDescriber is the part of the RDS client describe needs.
type clusterDescriber interface {
	DescribeDBClusters(ctx context.Context, params *rds.DescribeDBClustersInput, optFns ...func(*rds.Options)) (*rds.DescribeDBClustersOutput, error)
}

func newDescribeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "describe",
		Short: "Show the live state of the stack's database cluster",
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
			id, err := clusterIdentifier(outs)
			if err != nil {
				return err
			}

			cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(commonCfg.region))
			if err != nil {
				return errors.Wrap(err, "load aws config")
			}
			zap.S().Debugf("Describing cluster %s in %s", id, commonCfg.region)
			return describeCluster(ctx, rds.NewFromConfig(cfg), id, cmd.OutOrStdout())
		},
	}
}

func clusterIdentifier(outs auto.OutputMap) (string, error) {
	out, ok := outs["clusterIdentifier"]
	if !ok {
		return "", errors.New("stack has no clusterIdentifier output; was the database declared?")
	}
	id, ok := out.Value.(string)
	if !ok || id == "" {
		return "", errors.Errorf("clusterIdentifier output is %T, want a non-empty string", out.Value)
	}
	return id, nil
}

func describeCluster(ctx context.Context, client clusterDescriber, id string, w io.Writer) error {
	resp, err := client.DescribeDBClusters(ctx, &rds.DescribeDBClustersInput{
		DBClusterIdentifier: aws.String(id),
	})
	if err != nil {
		return errors.Wrapf(err, "describe cluster %s", id)
	}
	if len(resp.DBClusters) == 0 {
		return errors.Errorf("cluster %s not found", id)
	}
	writeCluster(w, resp.DBClusters[0])
	return nil
}

func writeCluster(w io.Writer, c types.DBCluster) {
	encryption := "none"
	if key := aws.ToString(c.KmsKeyId); key != "" {
		encryption = key
	}
	fmt.Fprintf(w, "cluster:    %s\n", aws.ToString(c.DBClusterIdentifier))
	fmt.Fprintf(w, "status:     %s\n", aws.ToString(c.Status))
	fmt.Fprintf(w, "engine:     %s %s\n", aws.ToString(c.Engine), aws.ToString(c.EngineVersion))
	fmt.Fprintf(w, "database:   %s\n", aws.ToString(c.DatabaseName))
	fmt.Fprintf(w, "encryption: %s\n", encryption)
	fmt.Fprintf(w, "endpoint:   %s:%d\n", aws.ToString(c.Endpoint), aws.ToInt32(c.Port))
	fmt.Fprintf(w, "reader:     %s:%d\n", aws.ToString(c.ReaderEndpoint), aws.ToInt32(c.Port))
	fmt.Fprintf(w, "members:    %d\n", len(c.DBClusterMembers))
}
