package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/kralicky/astrols/pkg/analysis"
	"github.com/kralicky/astrols/pkg/astro"
	"github.com/kralicky/astrols/pkg/lsp"
	"github.com/kralicky/astrols/pkg/sources"
	"github.com/kralicky/tools-lite/gopls/pkg/protocol"
)

var severityNames = map[protocol.DiagnosticSeverity]string{
	protocol.SeverityError:       "error",
	protocol.SeverityWarning:     "warning",
	protocol.SeverityInformation: "info",
	protocol.SeverityHint:        "hint",
}

// CheckCmd represents the check command
func BuildCheckCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:          "check [paths...]",
		Short:        "Report diagnostics for astro files",
		SilenceUsage: true,
		Long: `Report diagnostics for the .astro files below the given paths, or the current
directory. Exits with a non-zero status if any error is reported.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				wd, err := os.Getwd()
				if err != nil {
					return err
				}
				args = []string{wd}
			}
			files, err := sources.Search(args...)
			if err != nil {
				return err
			}
			if len(files) == 0 {
				cmd.PrintErrln("no .astro files found")
				return nil
			}

			var settings lsp.Settings
			var svc analysis.Service
			if v.GetBool("engine") {
				root, err := filepath.Abs(args[0])
				if err != nil {
					return err
				}
				if info, err := os.Stat(root); err == nil && !info.IsDir() {
					root = filepath.Dir(root)
				}
				svc, err = engineFactory(v, cmd.ErrOrStderr())(cmd.Context(), protocol.URIFromPath(root), settings)
				if err != nil {
					return err
				}
				defer closeEngine(context.WithoutCancel(cmd.Context()), svc)
			} else {
				disabled := false
				settings.TypeScript.Diagnostics.Enabled = &disabled
			}

			docs, results, err := diagnoseFiles(cmd.Context(), svc, files, settings, v.GetInt("concurrency"))
			if err != nil {
				return err
			}
			var errCount int
			for i, doc := range docs {
				for _, d := range results[i] {
					if d.Severity == protocol.SeverityError {
						errCount++
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s:%d:%d: %s: %s [%s]\n",
						doc.Path(), d.Range.Start.Line+1, d.Range.Start.Character+1,
						severityNames[d.Severity], d.Message, d.Source)
				}
			}
			if errCount > 0 {
				return fmt.Errorf("%d error(s) found", errCount)
			}
			return nil
		},
	}
	cmd.Flags().Bool("engine", true, "include diagnostics from the TypeScript language server")
	cmd.Flags().Int("concurrency", 8, "number of files checked at once")
	_ = v.BindPFlag("engine", cmd.Flags().Lookup("engine"))
	_ = v.BindPFlag("concurrency", cmd.Flags().Lookup("concurrency"))
	return cmd
}

func diagnoseFiles(ctx context.Context, svc analysis.Service, files []string, settings lsp.Settings, limit int) ([]*astro.Document, [][]protocol.Diagnostic, error) {
	docs := make([]*astro.Document, len(files))
	results := make([][]protocol.Diagnostic, len(files))
	eg, ctx := errgroup.WithContext(ctx)
	if limit > 0 {
		eg.SetLimit(limit)
	}
	for i, path := range files {
		eg.Go(func() error {
			content, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			docs[i] = astro.NewDocument(protocol.URIFromPath(path), 1, content)
			results[i] = lsp.Diagnose(ctx, svc, docs[i], settings)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, nil, err
	}
	return docs, results, nil
}
