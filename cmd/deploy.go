package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/pulumi/pulumi/sdk/v3/go/auto"
	"github.com/pulumi/pulumi/sdk/v3/go/auto/optdestroy"
	"github.com/pulumi/pulumi/sdk/v3/go/auto/optpreview"
	"github.com/pulumi/pulumi/sdk/v3/go/auto/optup"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/chalkan3/codeserver-stack/internal/audit"
	"github.com/chalkan3/codeserver-stack/pkg/config"
	"github.com/chalkan3/codeserver-stack/pkg/stack"
)

var (
	deploySets           []string
	deployRegion         string
	deployPreviewOnly    bool
	deployPasswordPrompt bool
	destroyRemove        bool
)

var deployCmd = &cobra.Command{
	Use:   "deploy [stack-name]",
	Short: "Create or update the code-server stack",
	Long: `Deploy the VPC, IAM role, EC2 instance and load balancer that make up
a code-server environment. The stack is created on first run and updated in
place afterwards.`,
	Example: `  # Deploy the default stack with the default configuration
  codeserver-stack deploy

  # Deploy a named stack with overrides
  codeserver-stack deploy dev --set instance.type=t3.xlarge --region eu-west-1

  # Prompt for the editor password instead of using the configured one
  codeserver-stack deploy --password-prompt`,
	RunE: runDeploy,
}

var previewCmd = &cobra.Command{
	Use:   "preview [stack-name]",
	Short: "Show the changes a deploy would make",
	RunE:  runPreview,
}

var destroyCmd = &cobra.Command{
	Use:   "destroy [stack-name]",
	Short: "Destroy every resource of the stack",
	Example: `  # Destroy and remove the stack from the backend
  codeserver-stack destroy dev --remove --yes`,
	RunE: runDestroy,
}

func init() {
	rootCmd.AddCommand(deployCmd)
	rootCmd.AddCommand(previewCmd)
	rootCmd.AddCommand(destroyCmd)

	for _, c := range []*cobra.Command{deployCmd, previewCmd} {
		c.Flags().StringArrayVar(&deploySets, "set", nil, "Override a config value (key=value, e.g. instance.type=t3.xlarge)")
		c.Flags().StringVar(&deployRegion, "region", "", "AWS region (overrides metadata.region)")
	}
	deployCmd.Flags().BoolVar(&deployPreviewOnly, "preview", false, "Preview only, do not apply")
	deployCmd.Flags().BoolVar(&deployPasswordPrompt, "password-prompt", false, "Prompt for the editor password")

	destroyCmd.Flags().BoolVar(&destroyRemove, "remove", false, "Remove the stack from the backend after destroying")
}

func runDeploy(cmd *cobra.Command, args []string) error {
	if deployPreviewOnly {
		return runPreview(cmd, args)
	}

	ctx := context.Background()
	name := resolveStackName(args)

	cfg, err := loadStackConfig(name, deploySets, deployRegion)
	if err != nil {
		return err
	}

	printHeader(fmt.Sprintf("🚀 Deploying %s", name))
	printConfigSummary(cfg)

	s, err := upsertStack(ctx, name, cfg)
	if err != nil {
		return err
	}

	if deployPasswordPrompt {
		password, err := promptPassword()
		if err != nil {
			return err
		}
		if err := s.SetConfig(ctx, config.PulumiNamespace+":password", auto.ConfigValue{Value: password, Secret: true}); err != nil {
			return fmt.Errorf("failed to store password: %w", err)
		}
	}

	if !autoApprove {
		fmt.Println()
		if !confirm(fmt.Sprintf("Deploy stack '%s'?", name)) {
			color.Yellow("Deployment cancelled")
			return nil
		}
	}

	opts := []optup.Option{}
	var spin interface{ Stop() }
	if verbose {
		opts = append(opts, optup.ProgressStreams(os.Stdout))
	} else {
		sp := newSpinner("Provisioning (this usually takes 4-6 minutes)...")
		sp.Start()
		spin = sp
	}

	start := time.Now()
	res, err := s.Up(ctx, opts...)
	if spin != nil {
		spin.Stop()
	}

	meta := map[string]string{"region": cfg.Metadata.Region, "instanceType": cfg.Instance.Type}
	if err == nil && res.Summary.ResourceChanges != nil {
		total := 0
		for _, n := range *res.Summary.ResourceChanges {
			total += n
		}
		meta["changes"] = strconv.Itoa(total)
	}
	recordOperation(audit.EventTypeDeployment, audit.ActionApply, name, time.Since(start), err, meta)

	if err != nil {
		return fmt.Errorf("deployment failed: %w", err)
	}

	fmt.Println()
	printSuccess(fmt.Sprintf("Stack '%s' deployed in %s", name, time.Since(start).Round(time.Second)))
	printDeploySummary(res.Outputs)
	return nil
}

func runPreview(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	name := resolveStackName(args)

	cfg, err := loadStackConfig(name, deploySets, deployRegion)
	if err != nil {
		return err
	}

	printHeader(fmt.Sprintf("🔍 Preview: %s", name))
	printConfigSummary(cfg)

	s, err := upsertStack(ctx, name, cfg)
	if err != nil {
		return err
	}

	opts := []optpreview.Option{}
	if verbose {
		opts = append(opts, optpreview.ProgressStreams(os.Stdout))
	}

	start := time.Now()
	res, err := s.Preview(ctx, opts...)
	recordOperation(audit.EventTypeDeployment, audit.ActionPreview, name, time.Since(start), err, nil)
	if err != nil {
		return fmt.Errorf("preview failed: %w", err)
	}

	fmt.Println()
	color.New(color.Bold).Println("Planned changes:")
	if len(res.ChangeSummary) == 0 {
		fmt.Println("  (none)")
	}
	for op, count := range res.ChangeSummary {
		fmt.Printf("  • %s: %d\n", op, count)
	}
	return nil
}

func runDestroy(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	name := resolveStackName(args)

	printHeader(fmt.Sprintf("🗑️  Destroying %s", name))
	color.Red("⚠️  This will DESTROY the instance, load balancer and VPC of the stack!")

	if !autoApprove {
		fmt.Println()
		if !confirm(fmt.Sprintf("Are you sure you want to destroy stack '%s'?", name)) {
			color.Yellow("Destroy cancelled")
			return nil
		}
	}

	s, err := selectStack(ctx, name)
	if err != nil {
		return err
	}

	opts := []optdestroy.Option{}
	var spin interface{ Stop() }
	if verbose {
		opts = append(opts, optdestroy.ProgressStreams(os.Stdout))
	} else {
		sp := newSpinner("Destroying resources...")
		sp.Start()
		spin = sp
	}

	start := time.Now()
	_, err = s.Destroy(ctx, opts...)
	if spin != nil {
		spin.Stop()
	}
	recordOperation(audit.EventTypeDeployment, audit.ActionDestroy, name, time.Since(start), err, nil)
	if err != nil {
		return fmt.Errorf("failed to destroy resources: %w", err)
	}
	printSuccess("Resources destroyed")

	if destroyRemove {
		if err := s.Workspace().RemoveStack(ctx, fullyQualifiedStackName(name)); err != nil {
			return fmt.Errorf("failed to remove stack: %w", err)
		}
		printSuccess(fmt.Sprintf("Stack '%s' removed", name))
	}
	return nil
}

func promptPassword() (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("--password-prompt requires an interactive terminal")
	}

	fmt.Print("Editor password: ")
	first, err := term.ReadPassword(fd)
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}

	fmt.Print("Confirm password: ")
	second, err := term.ReadPassword(fd)
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("failed to read confirmation: %w", err)
	}

	if string(first) != string(second) {
		return "", fmt.Errorf("passwords do not match")
	}
	if len(first) == 0 {
		return "", fmt.Errorf("password cannot be empty")
	}
	return string(first), nil
}

func printConfigSummary(cfg *config.StackConfig) {
	fmt.Printf("  • Region:        %s\n", cfg.Metadata.Region)
	fmt.Printf("  • VPC CIDR:      %s (%d AZs)\n", cfg.Network.CIDR, cfg.Network.MaxAZs)
	fmt.Printf("  • Instance:      %s, %d GiB root\n", cfg.Instance.Type, cfg.Instance.RootVolumeSize)
	fmt.Printf("  • code-server:   %s on port %d (auth: %s)\n", cfg.Editor.Version, cfg.Editor.Port, cfg.Editor.Auth)
	fmt.Printf("  • Listener:      %d\n", cfg.LoadBalancer.Port)
}

func printDeploySummary(outputs auto.OutputMap) {
	fmt.Println()
	color.New(color.Bold).Println("Editor:")
	fmt.Printf("  URL:      %s\n", color.CyanString(outputString(outputs, stack.OutputEditorURL)))
	fmt.Printf("  Instance: %s (%s)\n", outputString(outputs, stack.OutputInstanceID), outputString(outputs, stack.OutputInstancePublicIP))
	fmt.Println()
	printInfo("The editor installs in the background; allow a few minutes after deploy.")
	fmt.Println("  Password: codeserver-stack output --key " + stack.OutputEditorPassword + " --show-secrets")
}

// recordOperation appends to the audit log; failures only warn
func recordOperation(eventType audit.EventType, action audit.EventAction, name string, duration time.Duration, opErr error, meta map[string]string) {
	path, err := audit.DefaultPath()
	if err != nil {
		printWarning(fmt.Sprintf("audit log unavailable: %v", err))
		return
	}
	if _, err := audit.NewFileLogger(path).LogOperation(eventType, action, name, duration, opErr, meta); err != nil {
		printWarning(fmt.Sprintf("failed to write audit log: %v", err))
	}
}
