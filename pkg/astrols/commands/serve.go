package commands

import (
	"errors"
	"net"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kralicky/astrols/pkg/lsp"
	"github.com/kralicky/astrols/pkg/lsprpc"
	"github.com/kralicky/astrols/pkg/util"
	"github.com/kralicky/tools-lite/gopls/pkg/protocol"
	"github.com/kralicky/tools-lite/pkg/jsonrpc2"
)

// ServeCmd represents the serve command
func BuildServeCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:          "serve",
		Short:        "Start the language server",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var nc net.Conn
			switch pipe := v.GetString("pipe"); {
			case pipe != "":
				cc, err := net.Dial("unix", pipe)
				if err != nil {
					return err
				}
				nc = cc
			case v.GetBool("stdio"):
				nc = util.NewPipeConn(os.Stdin, os.Stdout)
			default:
				return errors.New("one of --pipe or --stdio is required")
			}
			stream := jsonrpc2.NewHeaderStream(nc)
			if v.GetBool("rpc-trace") {
				stream = protocol.LoggingStream(stream, cmd.ErrOrStderr())
			}
			conn := jsonrpc2.NewConn(stream)

			ss := lsprpc.NewStreamServer(
				engineFactory(v, cmd.ErrOrStderr()),
				lsp.WithVersion(cmd.Root().Version),
			)
			return ss.ServeStream(cmd.Context(), conn)
		},
	}

	cmd.Flags().String("pipe", "", "socket name to connect to")
	cmd.Flags().Bool("stdio", false, "communicate over stdin and stdout")
	cmd.Flags().Bool("rpc-trace", false, "log every JSON-RPC message to stderr")
	cmd.MarkFlagsMutuallyExclusive("pipe", "stdio")
	_ = v.BindPFlag("pipe", cmd.Flags().Lookup("pipe"))
	_ = v.BindPFlag("stdio", cmd.Flags().Lookup("stdio"))
	_ = v.BindPFlag("rpc-trace", cmd.Flags().Lookup("rpc-trace"))

	return cmd
}
