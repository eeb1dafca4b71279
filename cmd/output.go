package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/pulumi/pulumi/sdk/v3/go/auto"
	"github.com/spf13/cobra"

	"github.com/chalkan3/codeserver-stack/pkg/secrets"
)

var (
	outputKey         string
	outputJSON        bool
	outputShowSecrets bool
)

var outputCmd = &cobra.Command{
	Use:   "output [stack-name]",
	Short: "Show stack outputs",
	Example: `  # Show all outputs (secrets masked)
  codeserver-stack output

  # Print the editor password
  codeserver-stack output --key editorPassword --show-secrets`,
	RunE: runOutput,
}

func init() {
	rootCmd.AddCommand(outputCmd)
	outputCmd.Flags().StringVar(&outputKey, "key", "", "Show a single output")
	outputCmd.Flags().BoolVar(&outputJSON, "json", false, "Output in JSON format")
	outputCmd.Flags().BoolVar(&outputShowSecrets, "show-secrets", false, "Reveal secret outputs")
}

func runOutput(cmd *cobra.Command, args []string) error {
	name := resolveStackName(args)

	outputs, err := stackOutputs(context.Background(), name)
	if err != nil {
		return err
	}

	if outputKey != "" {
		out, ok := outputs[outputKey]
		if !ok {
			return fmt.Errorf("output '%s' not found in stack '%s'", outputKey, name)
		}
		fmt.Println(secrets.Display(out.Value, out.Secret, outputShowSecrets))
		return nil
	}

	if outputJSON {
		data, err := json.MarshalIndent(displayOutputs(outputs, outputShowSecrets), "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal outputs: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	printHeader(fmt.Sprintf("📤 Outputs: %s", name))
	printStackOutputs(outputs, outputShowSecrets)
	return nil
}

// displayOutputs flattens outputs into plain values, masking secrets unless reveal is set
func displayOutputs(outputs auto.OutputMap, reveal bool) map[string]interface{} {
	result := make(map[string]interface{}, len(outputs))
	for key, out := range outputs {
		result[key] = secrets.Display(out.Value, out.Secret, reveal)
	}
	return result
}

func printStackOutputs(outputs auto.OutputMap, reveal bool) {
	if len(outputs) == 0 {
		color.Yellow("No outputs available")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	defer w.Flush()

	color.New(color.Bold).Fprintln(w, "  KEY\tVALUE\tSECRET")
	fmt.Fprintln(w, "  ---\t-----\t------")

	for _, key := range sortedOutputKeys(outputs) {
		out := outputs[key]
		value := fmt.Sprintf("%v", secrets.Display(out.Value, out.Secret, reveal))
		if len(value) > 70 && !(out.Secret && reveal) {
			value = value[:67] + "..."
		}

		secret := ""
		if out.Secret {
			secret = "🔒"
		}
		fmt.Fprintf(w, "  %s\t%s\t%s\n", key, value, secret)
	}
}
