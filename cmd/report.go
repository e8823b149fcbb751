// -- cmd/report.go --
package cmd

import (
	"fmt"
	"os"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"github.com/xkilldash9x/flowpilot-cli/api/schemas"
	"github.com/xkilldash9x/flowpilot-cli/internal/reporting"
)

// newReportCmd renders a previously saved flow report.
func newReportCmd() *cobra.Command {
	reportCmd := &cobra.Command{
		Use:   "report <report.json>",
		Short: "Renders a saved flow report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read report file: %w", err)
			}

			var report schemas.FlowReport
			if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(data, &report); err != nil {
				return fmt.Errorf("failed to parse report file %s: %w", args[0], err)
			}

			format, _ := cmd.Flags().GetString("format")
			output, _ := cmd.Flags().GetString("output")

			reporter, err := reporting.New(format, output)
			if err != nil {
				return err
			}
			defer reporter.Close()

			return reporter.Write(&report)
		},
	}

	reportCmd.Flags().StringP("format", "f", "text", "Output format ('text' or 'json').")
	reportCmd.Flags().StringP("output", "o", "", "Output path. Defaults to stdout.")

	return reportCmd
}
