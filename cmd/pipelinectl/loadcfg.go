package main

import (
	"fmt"

	"github.com/pipelineforge/orchestrator/internal/config"
)

// loadConfig reads the config file at configPath (falling back to
// defaults if it's absent) and applies the --depth override, if any.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	if depthFlag != "" {
		switch config.Depth(depthFlag) {
		case config.DepthStandard, config.DepthThorough, config.DepthQuick:
			cfg.Depth = config.Depth(depthFlag)
			cfg.Builder.Depth = config.Depth(depthFlag)
		default:
			return config.Config{}, fmt.Errorf("invalid --depth %q: must be standard, thorough, or quick", depthFlag)
		}
	}
	return cfg, nil
}
