package main

import (
	"github.com/spf13/cobra"

	"github.com/wippyai/jlvalue/config"
)

var layoutCmd = &cobra.Command{
	Use:   "layout",
	Short: "Print the effective configuration, including every layout offset",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		format, _ := cmd.Flags().GetString("format")
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		out, err := cfg.Encode(config.Format(format))
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(out)
		return err
	},
}

func init() {
	layoutCmd.Flags().String("format", "toml", "output format (toml|yaml)")
}
