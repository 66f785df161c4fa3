// Command jlinspect loads a runtime image and inspects values on its heap.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/wippyai/jlvalue/runtime"
)

// version is overridden at link time.
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "jlinspect",
	Short: "Inspect the heap of an embedded runtime image",
	Long: `jlinspect hosts a runtime image with wazero and decodes heap values
through the value layer: header words, strings, symbols, vectors, arrays
and struct fields.`,
	SilenceUsage:      true,
	PersistentPreRunE: setupLogging,
}

func main() {
	rootCmd.Version = version

	rootCmd.AddCommand(evalCmd)
	rootCmd.AddCommand(browseCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(layoutCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(versionCmd)

	rootCmd.PersistentFlags().String("image", "", "runtime image (.wasm)")
	rootCmd.PersistentFlags().String("config", "", "configuration file (.toml, .yaml)")
	rootCmd.PersistentFlags().String("profile", "", "layout profile (wasm32|native64), overrides the config file")
	rootCmd.PersistentFlags().String("color", "auto", "colorize output (auto|on|off)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "log engine and barrier activity to stderr")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupLogging(cmd *cobra.Command, _ []string) error {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		return err
	}
	var l *zap.Logger
	if verbose {
		l, err = zap.NewDevelopment()
	} else {
		cfg, cerr := loadConfig(cmd)
		if cerr != nil {
			return cerr
		}
		l, err = cfg.Logger()
	}
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	runtime.SetLogger(l)
	return nil
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// useColor resolves the --color flag for output written to f.
func useColor(cmd *cobra.Command, f *os.File) bool {
	mode, _ := cmd.Flags().GetString("color")
	return mode == "on" || (mode == "auto" && isTerminal(f))
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintln(cmd.OutOrStdout(), "jlinspect", version)
	},
}
