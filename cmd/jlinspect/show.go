package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wippyai/jlvalue/snapshot"
)

var showCmd = &cobra.Command{
	Use:   "show snapshot-file",
	Short: "Print a saved snapshot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := snapshot.Load(args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		st := styler(useColor(cmd, os.Stdout))
		fmt.Fprintf(out, "%s profile=%s version=%d\n", st.render(titleStyle, "snapshot"), s.Profile, s.Version)
		if s.Source != "" {
			fmt.Fprintf(out, "source: %s\n", s.Source)
		}
		return renderTree(out, s.Root, st)
	},
}
