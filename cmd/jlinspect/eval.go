package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wippyai/jlvalue/convert"
	"github.com/wippyai/jlvalue/snapshot"
)

var evalCmd = &cobra.Command{
	Use:   "eval [flags] expression",
	Short: "Evaluate an expression and print the decoded result",
	Args:  cobra.ExactArgs(1),
	RunE:  runEval,
}

func init() {
	evalCmd.Flags().Int("depth", convert.DefaultMaxDepth, "maximum nesting to decode")
	evalCmd.Flags().Int("elems", 64, "maximum children to decode per container")
	evalCmd.Flags().String("snapshot", "", "also write the result to a snapshot file (.cbor, .msgpack)")
}

func runEval(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	rt, err := openRuntime(ctx, cmd)
	if err != nil {
		return err
	}
	defer rt.Close(ctx)

	v, err := rt.Eval(ctx, args[0])
	if err != nil {
		return err
	}

	dec := convert.NewDecoder(rt)
	if dec.MaxDepth, err = cmd.Flags().GetInt("depth"); err != nil {
		return err
	}
	if dec.MaxElems, err = cmd.Flags().GetInt("elems"); err != nil {
		return err
	}
	root, err := dec.Decode(ctx, v)
	if err != nil {
		return fmt.Errorf("decode result: %w", err)
	}
	if err := renderTree(cmd.OutOrStdout(), root, styler(useColor(cmd, os.Stdout))); err != nil {
		return err
	}

	path, _ := cmd.Flags().GetString("snapshot")
	if path == "" {
		return nil
	}
	return snapshot.Save(path, &snapshot.Snapshot{
		Version: snapshot.Version,
		Profile: rt.Layout().Name,
		Source:  args[0],
		Root:    root,
	})
}
