package commands

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/kralicky/astrols/pkg/astro"
	"github.com/kralicky/tools-lite/gopls/pkg/protocol"
)

// TSXCmd represents the tsx command
func BuildTSXCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "tsx <filename>",
		Short:        "Print the TSX generated for an astro file",
		SilenceUsage: true,
		Args:         cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			doc := astro.NewDocument(protocol.URIFromPath(args[0]), 1, content)
			_, err = cmd.OutOrStdout().Write(doc.Virtual().Content)
			return err
		},
	}
	return cmd
}
