package astrols

import (
	"os"
	"runtime/debug"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kralicky/astrols/pkg/astrols/commands"
)

// rootCmd represents the base command when called without any subcommands
func BuildRootCmd() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("ASTROLS")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	rootCmd := &cobra.Command{
		Use:          "astrols",
		Short:        "Astro Language Server",
		Version:      version(),
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return commands.ConfigureLogging(cmd, v)
		},
	}

	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("tsserver", commands.DefaultEngineCommand, "command line of the TypeScript language server")
	_ = v.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = v.BindPFlag("tsserver", rootCmd.PersistentFlags().Lookup("tsserver"))

	rootCmd.AddCommand(commands.BuildServeCmd(v))
	rootCmd.AddCommand(commands.BuildCheckCmd(v))
	rootCmd.AddCommand(commands.BuildTSXCmd())
	//+cobra:subcommands

	return rootCmd
}

func version() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "devel"
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := BuildRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
