package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/chalkan3/codeserver-stack/internal/audit"
)

var historyCmd = &cobra.Command{
	Use:   "history [stack-name]",
	Short: "View the local operation history",
	Long: `Display deploy, preview, destroy, status and config operations recorded
in ~/.codeserver-stack/audit.log.

Without a stack name every stack is shown.`,
	Example: `  # All operations
  codeserver-stack history

  # Failed operations of one stack, as JSON
  codeserver-stack history dev --failed --json`,
	RunE: runHistory,
}

var (
	historyJSON   bool
	historyLimit  int
	historyFailed bool
)

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().BoolVar(&historyJSON, "json", false, "Output in JSON format")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Number of records to show")
	historyCmd.Flags().BoolVar(&historyFailed, "failed", false, "Only show failed operations")
}

func runHistory(cmd *cobra.Command, args []string) error {
	path, err := audit.DefaultPath()
	if err != nil {
		return err
	}

	filter := audit.Filter{Limit: historyLimit, FailedOnly: historyFailed}
	if len(args) > 0 {
		filter.Stack = args[0]
	} else if stackName != "" {
		filter.Stack = stackName
	}

	events, err := audit.NewFileLogger(path).Query(filter)
	if err != nil {
		return fmt.Errorf("failed to read operation history: %w", err)
	}

	if historyJSON {
		data, err := json.MarshalIndent(events, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	title := "📜 Operations History"
	if filter.Stack != "" {
		title += ": " + filter.Stack
	}
	printHeader(title)
	fmt.Println()

	if len(events) == 0 {
		color.Yellow("No operations recorded yet")
		fmt.Println()
		color.Cyan("Operations are recorded automatically when you run:")
		fmt.Println("  • codeserver-stack deploy / preview / destroy")
		fmt.Println("  • codeserver-stack status / preflight")
		fmt.Println("  • codeserver-stack config generate / validate")
		return nil
	}

	printHistoryTable(os.Stdout, events)
	return nil
}

// printHistoryTable prints the most recent event first
func printHistoryTable(out io.Writer, events []audit.Event) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintln(w, "TIMESTAMP\tSTACK\tACTION\tSTATUS\tDURATION\tACTOR")
	fmt.Fprintln(w, "---------\t-----\t------\t------\t--------\t-----")

	for i := len(events) - 1; i >= 0; i-- {
		e := events[i]
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			formatTimestamp(e.Timestamp),
			e.Stack,
			e.Action,
			formatStatus(e.Success),
			e.Duration.Round(time.Second),
			e.Actor,
		)
	}
}

func formatTimestamp(t time.Time) string {
	return fmt.Sprintf("%s (%s)", t.Local().Format("2006-01-02 15:04"), formatTime(t))
}

func formatStatus(success bool) string {
	if success {
		return "✅ success"
	}
	return "❌ failed"
}
