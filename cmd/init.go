package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gnolang/tpat/internal/rules"
)

var forceInit bool

// initCmd: tpat init
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file listing the built-in rules",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := initConfigurationFile(cfgFile, forceInit); err != nil {
			return fmt.Errorf("error initializing config file: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Configuration file created: %s\n", cfgFile)
		return nil
	},
}

func init() {
	initCmd.Flags().BoolVar(&forceInit, "force", false, "Overwrite an existing configuration file")
}

func initConfigurationFile(configurationPath string, force bool) error {
	if configurationPath == "" {
		configurationPath = rules.DefaultConfigFile
	}
	if !force {
		if _, err := os.Stat(configurationPath); err == nil {
			return fmt.Errorf("%s already exists", configurationPath)
		} else if !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}
	return rules.Write(configurationPath, rules.DefaultConfig())
}
