package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hausnetz/eos/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration file and entity mappings",
	RunE:  validateConfig,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func validateConfig(cmd *cobra.Command, args []string) error {
	if _, err := config.Load(cfgPath); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: configuration OK\n", cfgPath)
	return nil
}
