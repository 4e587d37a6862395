package main

import (
	"fmt"
	"io"
	"os"

	"github.com/bazaarops/tabauth"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration and lint warnings",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadRuntime()
		if err != nil {
			return err
		}
		return runConfig(cfg, os.Stdout)
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}

func runConfig(cfg tabauth.Config, w io.Writer) error {
	if cfg.Durable.Redis.Password != "" {
		cfg.Durable.Redis.Password = "********"
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return err
	}

	for _, warning := range cfg.Lint() {
		fmt.Fprintf(w, "# warning %s: %s\n", warning.Code, warning.Message)
	}
	return nil
}
