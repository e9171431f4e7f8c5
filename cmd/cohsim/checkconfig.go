package main

import (
	"fmt"

	"github.com/sarchlab/cohsim/config"
	"github.com/spf13/cobra"
)

var checkConfigCmd = &cobra.Command{
	Use:   "check-config <topology.yaml>",
	Short: "Validate a topology file.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(args[0])
		if err != nil {
			return err
		}

		caches := 0
		for _, m := range cfg.Modules {
			if m.Kind != "main_memory" && m.Kind != "memory" {
				caches++
			}
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d caches and a main memory, OK\n",
			args[0], caches)

		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkConfigCmd)
}
