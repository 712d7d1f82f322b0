package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/dsmilne3/ai-video-analyzer/internal/app"
	"github.com/dsmilne3/ai-video-analyzer/internal/auth"
	"github.com/dsmilne3/ai-video-analyzer/internal/config"
	"github.com/dsmilne3/ai-video-analyzer/internal/rubric"
	"github.com/dsmilne3/ai-video-analyzer/internal/transcript"
)

var transcribeJSON bool

var transcribeCmd = &cobra.Command{
	Use:   "transcribe [audio file]",
	Short: "Transcribe an audio/video file and report its quality",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromContext(cmd.Context())
		tr, err := app.Transcriber(cfg, log.Logger)
		if err != nil {
			return err
		}
		t, err := tr.Transcribe(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		q := transcript.AssessQuality(t.Segments)

		out := cmd.OutOrStdout()
		if transcribeJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(struct {
				*transcript.Transcript
				Quality transcript.Quality `json:"quality"`
			}{t, q})
		}
		for _, s := range t.Segments {
			fmt.Fprintf(out, "[%s] %s\n", transcript.Timestamp(s.Start), s.Text)
		}
		if len(t.Segments) == 0 {
			fmt.Fprintln(out, t.Text)
		}
		fmt.Fprintf(out, "\nlanguage=%s quality=%s confidence=%.1f%% speech=%.1f%%\n",
			t.Language, q.Rating, q.AvgConfidence, q.SpeechPercentage)
		for _, w := range q.Warnings {
			fmt.Fprintf(out, "! %s\n", w)
		}
		return nil
	},
}

var rubricCmd = &cobra.Command{
	Use:   "rubric",
	Short: "Rubric commands",
}

var rubricValidateCmd = &cobra.Command{
	Use:   "validate [rubric.json]",
	Short: "Validate a rubric file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		r, err := rubric.Parse(data)
		if err != nil {
			return fmt.Errorf("%s: %w", args[0], err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "valid %s rubric %q: %d criteria, %g total points\n",
			r.Format(), r.DisplayName(), r.CriterionCount(), r.TotalPoints())
		return nil
	},
}

var rubricListCmd = &cobra.Command{
	Use:   "list",
	Short: "List current rubrics in the rubric store",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromContext(cmd.Context())
		blobs, err := app.Blobs(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		list, err := app.Rubrics(blobs, cfg, log.Logger).List(cmd.Context())
		if err != nil {
			return err
		}
		for _, s := range list {
			fmt.Fprintf(cmd.OutOrStdout(), "%-24s %-32s %s\n", s.Filename, s.Name, s.Description)
		}
		return nil
	},
}

var (
	tokenSubject string
	tokenTTL     time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "API token commands",
}

var tokenIssueCmd = &cobra.Command{
	Use:   "issue",
	Short: "Issue a JWT for the HTTP API signed with JWT_SECRET",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromContext(cmd.Context())
		tok, err := auth.NewAuthenticator("", cfg.HTTP.JWTSecret).Issue(tokenSubject, tokenTTL)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), tok)
		return nil
	},
}

func init() {
	transcribeCmd.Flags().BoolVar(&transcribeJSON, "json", false, "print the transcript and quality as JSON")

	rubricCmd.AddCommand(rubricValidateCmd)
	rubricCmd.AddCommand(rubricListCmd)

	tokenIssueCmd.Flags().StringVar(&tokenSubject, "subject", "cli", "token subject")
	tokenIssueCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "token lifetime")
	tokenCmd.AddCommand(tokenIssueCmd)
}
