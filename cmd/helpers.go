package cmd

import (
	"bufio"
	"fmt"
	"net/url"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/pulumi/pulumi/sdk/v3/go/auto"

	"github.com/chalkan3/codeserver-stack/pkg/config"
)

const (
	projectName       = "codeserver-stack"
	defaultConfigFile = "codeserver.yaml"
)

func printHeader(title string) {
	fmt.Println()
	color.New(color.Bold, color.FgCyan).Println(title)
	color.New(color.FgCyan).Println(strings.Repeat("═", 60))
}

func printSuccess(msg string) {
	color.Green("✅ %s", msg)
}

func printWarning(msg string) {
	color.Yellow("⚠️  %s", msg)
}

func printInfo(msg string) {
	color.Cyan("ℹ️  %s", msg)
}

// confirm asks a yes/no question on stdin
func confirm(question string) bool {
	fmt.Printf("%s [y/N]: ", question)
	reader := bufio.NewReader(os.Stdin)
	answer, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}

func newSpinner(suffix string) *spinner.Spinner {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Suffix = " " + suffix
	return s
}

// resolveStackName picks the stack from the positional argument, the --stack
// flag or the default, in that order
func resolveStackName(args []string) string {
	if len(args) > 0 && args[0] != "" {
		return args[0]
	}
	if stackName != "" {
		return stackName
	}
	return config.DefaultStackName
}

func fullyQualifiedStackName(name string) string {
	return fmt.Sprintf("organization/%s/%s", projectName, name)
}

// configPath returns the --config value, or the default file when it exists
func configPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	if _, err := os.Stat(defaultConfigFile); err == nil {
		return defaultConfigFile
	}
	return ""
}

// parseSetFlags turns key=value pairs into a map
func parseSetFlags(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --set value %q (expected key=value)", pair)
		}
		out[key] = value
	}
	return out, nil
}

// loadStackConfig loads the config file with --set and --region overrides applied
func loadStackConfig(name string, sets []string, region string) (*config.StackConfig, error) {
	overrides, err := parseSetFlags(sets)
	if err != nil {
		return nil, err
	}

	loader := config.NewLoader(configPath())
	for key, value := range overrides {
		loader.SetOverride(key, value)
	}
	if region != "" {
		loader.SetOverride("metadata.region", region)
	}
	loader.SetOverride("metadata.name", name)

	return loader.Load()
}

// bucketFromBackendURL extracts the bucket of an s3:// backend URL
func bucketFromBackendURL(backendURL string) string {
	if !strings.HasPrefix(backendURL, "s3://") {
		return ""
	}
	u, err := url.Parse(backendURL)
	if err != nil {
		return ""
	}
	return u.Host
}

// outputString returns a stack output as a string, or "" when absent
func outputString(outputs auto.OutputMap, key string) string {
	out, ok := outputs[key]
	if !ok || out.Value == nil {
		return ""
	}
	if s, ok := out.Value.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", out.Value)
}

func sortedOutputKeys(outputs auto.OutputMap) []string {
	keys := make([]string, 0, len(outputs))
	for key := range outputs {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func formatTime(t time.Time) string {
	duration := time.Since(t)

	switch {
	case duration < time.Minute:
		return "just now"
	case duration < time.Hour:
		return fmt.Sprintf("%dm ago", int(duration.Minutes()))
	case duration < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(duration.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(duration.Hours()/24))
	}
}
