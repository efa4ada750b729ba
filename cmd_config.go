package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pthm-cable/foundation/config"
)

func newDefaultsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "defaults",
		Short: "Print the embedded default config",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := os.Stdout.Write(config.DefaultsYAML())
			return err
		},
	}
}

func newValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a config file against the documented ranges",
		Long: `Load a config file over the defaults and report every value outside
its documented range.

Examples:
  foundation validate --config world.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("config")
			_, err := config.Load(path)
			var ve *config.ValidationError
			if errors.As(err, &ve) {
				for _, p := range ve.Paths() {
					fmt.Fprintln(os.Stderr, "invalid:", p)
				}
				return fmt.Errorf("%d invalid values", len(ve.Paths()))
			}
			if err != nil {
				return err
			}
			fmt.Println("config ok")
			return nil
		},
	}
	cmd.Flags().String("config", "", "Path to config.yaml (empty = check defaults)")
	return cmd
}
