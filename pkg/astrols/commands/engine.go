package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kralicky/astrols/pkg/analysis"
	"github.com/kralicky/astrols/pkg/analysis/tsls"
	"github.com/kralicky/astrols/pkg/lsp"
	"github.com/kralicky/tools-lite/gopls/pkg/protocol"
)

const DefaultEngineCommand = "typescript-language-server --stdio"

// ConfigureLogging installs the default slog handler. Logs always go to
// stderr so that stdout stays free for the stdio transport.
func ConfigureLogging(cmd *cobra.Command, v *viper.Viper) error {
	level, ok := lsp.ParseLogLevel(v.GetString("log-level"))
	if !ok {
		return fmt.Errorf("unknown log level %q", v.GetString("log-level"))
	}
	lsp.GlobalAtomicLeveler.SetLevel(level)
	slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		AddSource: true,
		Level:     lsp.GlobalAtomicLeveler,
	})))
	return nil
}

// engineFactory starts the configured TypeScript language server.
func engineFactory(v *viper.Viper, stderr io.Writer) lsp.EngineFactory {
	return func(ctx context.Context, root protocol.DocumentURI, settings lsp.Settings) (analysis.Service, error) {
		command := strings.Fields(v.GetString("tsserver"))
		slog.Debug("starting engine", "command", command, "root", root)
		client, err := tsls.Start(ctx, tsls.Options{
			Command: command,
			RootURI: root,
			Stderr:  stderr,
		})
		if err != nil {
			return nil, err
		}
		slog.Info("engine started", "name", client.ServerName, "version", client.ServerVersion)
		return client, nil
	}
}

func closeEngine(ctx context.Context, svc analysis.Service) {
	if c, ok := svc.(interface{ Close(context.Context) error }); ok {
		if err := c.Close(ctx); err != nil {
			slog.Warn("failed to stop engine", "error", err)
		}
	}
}
