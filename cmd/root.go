package cmd

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	cfgFile     string
	stackName   string
	verbose     bool
	autoApprove bool

	// Version information - set by main.go
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
	BuiltBy = "unknown"
)

// SetVersionInfo sets the version information from main.go
func SetVersionInfo(version, commit, date, builtBy string) {
	Version = version
	Commit = commit
	Date = date
	BuiltBy = builtBy
	rootCmd.Version = version
}

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "codeserver-stack",
	Short: "Deploy a browser-based VS Code (code-server) on AWS",
	Long: `codeserver-stack provisions a single EC2 instance running code-server
behind an internet-facing Application Load Balancer, inside a dedicated VPC.

The infrastructure is described in Go and driven through the Pulumi
Automation API - no Pulumi program directory is needed. Each stack is an
independent deployment (default: CodeServerStack).`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Config file (default: ./"+defaultConfigFile+" if present)")
	rootCmd.PersistentFlags().StringVarP(&stackName, "stack", "s", "", "Pulumi stack name (default: CodeServerStack)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Stream engine output")
	rootCmd.PersistentFlags().BoolVarP(&autoApprove, "yes", "y", false, "Auto-approve without prompting")

	rootCmd.SetVersionTemplate(`codeserver-stack {{.Version}}
`)
	rootCmd.Version = Version
}

// initConfig disables colors when stdout is not a terminal
func initConfig() {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		color.NoColor = true
	}
}
