package cli

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"ragchat/config"
)

var (
	cfgFile string
	cfg     *config.Config
	rootDir string
	log     = logrus.New()
)

var rootCmd = &cobra.Command{
	Use:   "ragchat",
	Short: "Hybrid retrieval chat - ingest documents and chat over them",
	Long: `ragchat ingests text, markdown, HTML, and Word documents into dense and
sparse indices, fuses both retrieval methods, and serves a streaming
chat session grounded in the retrieved passages.

Example usage:
  ragchat ingest ./docs            # Index a directory of documents
  ragchat query -q "refund policy" # Search the hybrid index
  ragchat serve                    # Start the chat server`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error

		if rootDir == "" {
			rootDir, err = os.Getwd()
			if err != nil {
				return fmt.Errorf("failed to get working directory: %w", err)
			}
		}

		if cfgFile != "" {
			cfg, err = config.Load(cfgFile)
		} else {
			cfg, err = config.LoadFromDir(rootDir)
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		level, err := logrus.ParseLevel(cfg.Logging.Level)
		if err != nil {
			level = logrus.InfoLevel
		}
		log.SetLevel(level)

		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./ragchat.yaml)")
	rootCmd.PersistentFlags().StringVarP(&rootDir, "dir", "d", "", "data directory (default is current directory)")
}
