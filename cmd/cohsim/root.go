package main

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

const (
	envSeed   = "COHSIM_SEED"
	envRecord = "COHSIM_RECORD"
)

var envFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "cohsim",
	Short: "cohsim simulates MOESI cache hierarchies cycle by cycle.",
	Long: `cohsim simulates a tree of caches rooted at a main memory, kept ` +
		`coherent with MOESI. It reports hits, misses, evictions, retries and ` +
		`network traffic for every module.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		return loadEnv(envFile)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env", ".env",
		"file with default settings such as "+envSeed+" and "+envRecord)
}

// loadEnv reads the env file if it exists. Variables already set in the
// environment win.
func loadEnv(path string) error {
	if path == "" {
		return nil
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	return errors.Wrapf(godotenv.Load(path), "load %s", path)
}

func envInt64(name string, fallback int64) (int64, error) {
	v, ok := os.LookupEnv(name)
	if !ok || v == "" {
		return fallback, nil
	}

	n, err := strconv.ParseInt(v, 0, 64)
	if err != nil {
		return 0, errors.Errorf("%s: invalid integer %q", name, v)
	}

	return n, nil
}
