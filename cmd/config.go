package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/chalkan3/codeserver-stack/internal/audit"
	"github.com/chalkan3/codeserver-stack/pkg/config"
)

var (
	outputPath     string
	forceOverwrite bool
	configSets     []string
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage stack configuration",
	Long: `Manage the YAML configuration of a code-server stack.

Values are resolved in this order (later wins):
  1. built-in defaults
  2. the config file (--config, or ./codeserver.yaml)
  3. CODESERVER_<SECTION>_<FIELD> environment variables
  4. --set key=value flags
  5. Pulumi stack config (codeserver:instanceType, codeserver:password, ...)`,
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a configuration file with every default",
	Example: `  # Generate ./codeserver.yaml
  codeserver-stack config generate

  # Generate to a specific file
  codeserver-stack config generate -o dev.yaml`,
	RunE: runGenerate,
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	RunE:  runValidate,
}

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration (password redacted)",
	RunE:  runShow,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(generateCmd)
	configCmd.AddCommand(validateCmd)
	configCmd.AddCommand(showCmd)

	generateCmd.Flags().StringVarP(&outputPath, "output", "o", defaultConfigFile, "Output file path")
	generateCmd.Flags().BoolVar(&forceOverwrite, "force", false, "Overwrite an existing file")

	for _, c := range []*cobra.Command{validateCmd, showCmd} {
		c.Flags().StringArrayVar(&configSets, "set", nil, "Override a config value (key=value)")
	}
}

func runGenerate(cmd *cobra.Command, args []string) error {
	printHeader("Generating Configuration File")

	if _, err := os.Stat(outputPath); err == nil && !forceOverwrite {
		return fmt.Errorf("%s already exists (use --force to overwrite)", outputPath)
	}

	start := time.Now()
	err := config.Save(config.Default(), outputPath)
	recordOperation(audit.EventTypeConfiguration, audit.ActionGenerate, config.DefaultStackName, time.Since(start), err, map[string]string{"path": outputPath})
	if err != nil {
		return err
	}

	printSuccess(fmt.Sprintf("Configuration saved to %s", outputPath))
	fmt.Println()
	printUsageInstructions(outputPath)
	return nil
}

func runValidate(cmd *cobra.Command, args []string) error {
	name := resolveStackName(args)

	start := time.Now()
	_, err := loadStackConfig(name, configSets, "")
	recordOperation(audit.EventTypeConfiguration, audit.ActionValidate, name, time.Since(start), err, nil)
	if err != nil {
		return err
	}

	source := configPath()
	if source == "" {
		source = "built-in defaults"
	}
	printSuccess(fmt.Sprintf("Configuration is valid (%s)", source))
	return nil
}

func runShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadStackConfig(resolveStackName(args), configSets, "")
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg.Redacted())
	if err != nil {
		return fmt.Errorf("failed to marshal configuration: %w", err)
	}
	fmt.Print(string(data))
	return nil
}

func printUsageInstructions(filePath string) {
	color.Cyan("Next Steps:")
	fmt.Println()
	fmt.Println("1. Edit the configuration file (at least editor.password and access.sourceCidr):")
	fmt.Printf("   vim %s\n", filePath)
	fmt.Println()
	fmt.Println("2. Set your AWS credentials:")
	fmt.Println("   export AWS_PROFILE=\"...\"")
	fmt.Println()
	fmt.Println("3. Deploy the stack:")
	fmt.Printf("   codeserver-stack deploy --config %s\n", filePath)
	fmt.Println()
	color.Yellow("Tip: Use 'codeserver-stack config validate --config %s' to check your configuration", filePath)
}
