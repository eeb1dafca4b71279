package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/chalkan3/codeserver-stack/internal/audit"
	"github.com/chalkan3/codeserver-stack/pkg/config"
	"github.com/chalkan3/codeserver-stack/pkg/health"
	"github.com/chalkan3/codeserver-stack/pkg/inspect"
	"github.com/chalkan3/codeserver-stack/pkg/stack"
)

var outputFormat string

var statusCmd = &cobra.Command{
	Use:   "status [stack-name]",
	Short: "Check the live state of a deployed stack",
	Long: `Inspect the deployed stack against AWS:
  • AWS credentials
  • EC2 instance state
  • Load balancer target health
  • Editor endpoint reachability`,
	Example: `  # Check the default stack
  codeserver-stack status

  # JSON output
  codeserver-stack status dev --format json`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().StringVar(&outputFormat, "format", "table", "Output format: table|json|yaml")
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	name := resolveStackName(args)

	if err := validateOutputFormat(outputFormat); err != nil {
		return err
	}

	s := newSpinner(fmt.Sprintf("Inspecting %s...", name))
	if outputFormat == "table" {
		s.Start()
	}

	outputs, err := stackOutputs(ctx, name)
	if err != nil {
		s.Stop()
		return err
	}

	region := outputString(outputs, stack.OutputRegion)
	if region == "" {
		region = config.DefaultRegion
	}

	awsCfg, err := inspect.LoadAWSConfig(ctx, region)
	if err != nil {
		s.Stop()
		return err
	}

	target := inspect.Target{
		InstanceID:     outputString(outputs, stack.OutputInstanceID),
		TargetGroupArn: outputString(outputs, stack.OutputTargetGroupArn),
		EditorURL:      outputString(outputs, stack.OutputEditorURL),
	}
	report := inspect.NewInspector(awsCfg).Inspect(ctx, name, target)
	s.Stop()

	var statusErr error
	if !report.Healthy() {
		statusErr = fmt.Errorf("stack status is %s", report.OverallStatus)
	}
	recordOperation(audit.EventTypeInspection, audit.ActionInspect, name, report.Duration, statusErr, map[string]string{"status": string(report.OverallStatus)})

	if err := writeReport(report, outputFormat); err != nil {
		return err
	}
	return statusErr
}

func validateOutputFormat(format string) error {
	switch format {
	case "table", "json", "yaml":
		return nil
	default:
		return fmt.Errorf("invalid output format: %s (must be table, json, or yaml)", format)
	}
}

func writeReport(report *health.Report, format string) error {
	switch format {
	case "json":
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal report: %w", err)
		}
		fmt.Println(string(data))
	case "yaml":
		data, err := yaml.Marshal(report)
		if err != nil {
			return fmt.Errorf("failed to marshal report: %w", err)
		}
		fmt.Print(string(data))
	default:
		report.Print(os.Stdout)
	}
	return nil
}
