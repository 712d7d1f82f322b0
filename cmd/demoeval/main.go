package main

import (
	"context"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/dsmilne3/ai-video-analyzer/internal/config"
	"github.com/dsmilne3/ai-video-analyzer/internal/logging"
)

var (
	cfgFile string
	verbose bool
)

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "demoeval",
	Short:        "demoeval - rubric scoring for demo video transcripts",
	Long:         "Transcribes demo videos, scores them against a rubric with an LLM and writes evaluation reports.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		level := cfg.Log.Level
		if verbose {
			level = "debug"
		}
		logging.Init(level, cfg.Log.Format)
		log.Debug().Str("provider", cfg.Scoring.Provider).Str("storage", cfg.Storage.Backend).Msg("config loaded")

		cmd.SetContext(config.WithConfig(cmd.Context(), cfg))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(evaluateCmd)
	rootCmd.AddCommand(transcribeCmd)
	rootCmd.AddCommand(rubricCmd)
	rootCmd.AddCommand(tokenCmd)
}
