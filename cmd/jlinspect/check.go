package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wippyai/jlvalue/primitive"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Report missing primitives and unresolved handles of an image",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := context.Background()
		rt, err := openRuntime(ctx, cmd)
		if err != nil {
			return err
		}
		defer rt.Close(ctx)

		out := cmd.OutOrStdout()
		st := styler(useColor(cmd, os.Stdout))
		missing := rt.Missing()
		for _, name := range missing {
			fmt.Fprintf(out, "%s %s\n", st.render(errorStyle, "missing"), name)
		}
		unresolved := 0
		for _, h := range primitive.AllHandles() {
			v, err := rt.Handles().Get(h)
			if err != nil {
				unresolved++
				fmt.Fprintf(out, "%s %s: %v\n", st.render(errorStyle, "handle"), h, err)
				continue
			}
			fmt.Fprintf(out, "%s %s = %s\n", st.render(kindStyle, "handle"), h, v)
		}
		if len(missing) > 0 || unresolved > 0 {
			return fmt.Errorf("%d primitives missing, %d handles unresolved", len(missing), unresolved)
		}
		return nil
	},
}
