package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"nebularag/config"
	"nebularag/internal/log"
)

var (
	cfgFile string
	verbose bool
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "nebularag",
	Short: "Retrieval-augmented question answering over local documents",
	Long: `nebularag indexes a directory of documents (txt, md, pdf) into an
in-memory similarity index backed by the NebulaBlock inference service,
then answers questions grounded in the retrieved passages.

Example usage:
  nebularag ask --docs ./docs --question "What is the main topic?"`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			log.SetVerbose()
		}

		config.LoadDotEnv()

		var err error
		if cfgFile != "" {
			cfg, err = config.Load(cfgFile)
		} else {
			wd, werr := os.Getwd()
			if werr != nil {
				return fmt.Errorf("failed to get working directory: %w", werr)
			}
			cfg, err = config.LoadFromDir(wd)
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./nebularag.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

func GetConfig() *config.Config {
	return cfg
}
