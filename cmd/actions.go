// File: cmd/actions.go
package cmd

import (
	"fmt"
	"os"

	json "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"github.com/xkilldash9x/matchpilot/internal/agent"
)

// newActionsCmd prints the action vocabulary the decision engines choose from.
func newActionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "actions",
		Short: "Prints the action catalog as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			encoded, err := json.MarshalIndent(agent.ActionCatalog(), "", "  ")
			if err != nil {
				return fmt.Errorf("encode action catalog: %w", err)
			}
			fmt.Fprintln(os.Stdout, string(encoded))
			return nil
		},
	}
}
