package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/chalkan3/codeserver-stack/internal/audit"
	"github.com/chalkan3/codeserver-stack/pkg/inspect"
)

var preflightCmd = &cobra.Command{
	Use:   "preflight",
	Short: "Verify AWS credentials and the state backend before deploying",
	RunE:  runPreflight,
}

func init() {
	rootCmd.AddCommand(preflightCmd)
	preflightCmd.Flags().StringVar(&deployRegion, "region", "", "AWS region (overrides metadata.region)")
	preflightCmd.Flags().StringVar(&outputFormat, "format", "table", "Output format: table|json|yaml")
}

func runPreflight(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	name := resolveStackName(args)

	if err := validateOutputFormat(outputFormat); err != nil {
		return err
	}

	cfg, err := loadStackConfig(name, nil, deployRegion)
	if err != nil {
		return err
	}

	awsCfg, err := inspect.LoadAWSConfig(ctx, cfg.Metadata.Region)
	if err != nil {
		return err
	}

	bucket := bucketFromBackendURL(os.Getenv("PULUMI_BACKEND_URL"))
	report := inspect.NewInspector(awsCfg).Preflight(ctx, name, bucket)

	var checkErr error
	if !report.Healthy() {
		checkErr = fmt.Errorf("preflight failed: %d critical check(s)", report.Summary.CriticalChecks)
	}
	recordOperation(audit.EventTypeInspection, audit.ActionInspect, name, report.Duration, checkErr, map[string]string{"check": "preflight"})

	if err := writeReport(report, outputFormat); err != nil {
		return err
	}
	return checkErr
}
