package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wippyai/jlvalue/config"
	"github.com/wippyai/jlvalue/runtime"
)

// loadConfig reads --config when given and applies --profile on top.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	profile, _ := cmd.Flags().GetString("profile")

	cfg := config.Default()
	if path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return config.Config{}, err
		}
	}
	if profile != "" && profile != cfg.Profile {
		p, err := config.ForProfile(profile)
		if err != nil {
			return config.Config{}, err
		}
		cfg.Profile, cfg.Layout = p.Profile, p.Layout
	}
	return cfg, cfg.Validate()
}

// openRuntime hosts the image named by --image.
func openRuntime(ctx context.Context, cmd *cobra.Command) (*runtime.Runtime, error) {
	path, _ := cmd.Flags().GetString("image")
	if path == "" {
		return nil, fmt.Errorf("--image is required")
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	image, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	return runtime.Open(ctx, image, cfg)
}
