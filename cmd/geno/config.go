package main

import (
	"fmt"
	"path/filepath"

	"github.com/reachykit/geno/internal/config"
	"github.com/spf13/viper"
)

func loadConfig(workDir string) (config.Config, error) {
	path := viper.GetString("config")
	if path == "" {
		path = filepath.Join(".geno", "config.json")
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(workDir, path)
	}
	if err := config.ValidateFile(path); err != nil {
		return config.Config{}, err
	}
	viper.SetConfigFile(path)
	viper.SetConfigType("json")
	if err := viper.ReadInConfig(); err != nil {
		return config.Config{}, fmt.Errorf("read config: %w", err)
	}
	var cfg config.Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return config.Config{}, fmt.Errorf("parse config: %w", err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	if !filepath.IsAbs(cfg.Knowledge.Path) && cfg.Knowledge.Path != "" {
		cfg.Knowledge.Path = filepath.Join(workDir, cfg.Knowledge.Path)
	}
	return cfg, nil
}
