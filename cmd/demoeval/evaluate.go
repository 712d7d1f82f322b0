package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/dsmilne3/ai-video-analyzer/internal/app"
	"github.com/dsmilne3/ai-video-analyzer/internal/config"
	"github.com/dsmilne3/ai-video-analyzer/internal/evaluation"
	"github.com/dsmilne3/ai-video-analyzer/internal/pipeline"
	"github.com/dsmilne3/ai-video-analyzer/internal/rubric"
	"github.com/dsmilne3/ai-video-analyzer/internal/storage"
	"github.com/dsmilne3/ai-video-analyzer/internal/transcript"
)

var evalFlags struct {
	rubric     string
	rubricFile string
	visual     string
	first      string
	last       string
	partner    string
	format     string
	noSave     bool
	asJSON     bool
}

var evaluateCmd = &cobra.Command{
	Use:   "evaluate [transcript.txt | audio file]",
	Short: "Evaluate a transcript or an audio/video file against a rubric",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg := config.FromContext(ctx)
		logger := log.Logger

		blobs, err := app.Blobs(ctx, cfg)
		if err != nil {
			return err
		}
		r, err := loadRubric(cmd, cfg, blobs)
		if err != nil {
			return err
		}
		scorer, err := app.Scorer(cfg, logger)
		if err != nil {
			return err
		}
		p := app.Pipeline(cfg, scorer, logger, evaluation.WithProgress(func(done, total int, unit string) {
			fmt.Fprintf(cmd.ErrOrStderr(), "  [%d/%d] %s\n", done, total, unit)
		}))

		visual, err := readVisual(evalFlags.visual)
		if err != nil {
			return err
		}
		in := pipeline.Input{
			Visual: visual,
			Submitter: pipeline.Submitter{
				FirstName:   evalFlags.first,
				LastName:    evalFlags.last,
				PartnerName: evalFlags.partner,
			},
			Source: filepath.Base(args[0]),
		}

		var rep *pipeline.Report
		if isTranscriptFile(args[0]) {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			in.Transcript = &transcript.Transcript{Text: strings.TrimSpace(string(data))}
			rep, err = p.Process(ctx, r, in)
			if err != nil {
				return err
			}
		} else {
			tr, err := app.Transcriber(cfg, logger)
			if err != nil {
				return err
			}
			rep, err = p.ProcessAudio(ctx, tr, r, args[0], in)
			if err != nil {
				return err
			}
		}

		if !evalFlags.noSave {
			format := app.ReportFormat(cfg)
			if evalFlags.format != "" {
				format = pipeline.Format(strings.ToLower(evalFlags.format))
			}
			ref, err := pipeline.Save(ctx, blobs, cfg.Results.Prefix, rep, format)
			if err != nil {
				return fmt.Errorf("save report: %w", err)
			}
			log.Info().Str("ref", ref).Msg("report saved")
		}

		out := cmd.OutOrStdout()
		if evalFlags.asJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(rep)
		}
		printSummary(out, r, rep)
		return nil
	},
}

func init() {
	f := evaluateCmd.Flags()
	f.StringVar(&evalFlags.rubric, "rubric", rubric.DefaultName, "rubric name in the rubric store")
	f.StringVar(&evalFlags.rubricFile, "rubric-file", "", "rubric JSON file (overrides --rubric)")
	f.StringVar(&evalFlags.visual, "visual", "", "visual analysis text, or @file to read it from a file")
	f.StringVar(&evalFlags.first, "first-name", "", "submitter first name")
	f.StringVar(&evalFlags.last, "last-name", "", "submitter last name")
	f.StringVar(&evalFlags.partner, "partner", "", "submitter partner name")
	f.StringVar(&evalFlags.format, "format", "", "report format: json or txt (default from config)")
	f.BoolVar(&evalFlags.noSave, "no-save", false, "do not write the report to storage")
	f.BoolVar(&evalFlags.asJSON, "json", false, "print the full report as JSON")
}

func loadRubric(cmd *cobra.Command, cfg *config.Config, blobs storage.BlobStore) (*rubric.Rubric, error) {
	if evalFlags.rubricFile != "" {
		data, err := os.ReadFile(evalFlags.rubricFile)
		if err != nil {
			return nil, err
		}
		return rubric.Parse(data)
	}
	return app.Rubrics(blobs, cfg, log.Logger).LoadOrDefault(cmd.Context(), evalFlags.rubric)
}

func readVisual(v string) (string, error) {
	if name, ok := strings.CutPrefix(v, "@"); ok {
		data, err := os.ReadFile(name)
		if err != nil {
			return "", fmt.Errorf("visual analysis: %w", err)
		}
		return strings.TrimSpace(string(data)), nil
	}
	return v, nil
}

func isTranscriptFile(p string) bool {
	switch strings.ToLower(filepath.Ext(p)) {
	case ".txt", ".md", ".text":
		return true
	}
	return false
}

func printSummary(w io.Writer, r *rubric.Rubric, rep *pipeline.Report) {
	res := rep.Evaluation
	fmt.Fprintf(w, "\nRubric:   %s\n", rep.Rubric)
	fmt.Fprintf(w, "Strategy: %s (%d calls, %d fell back)\n", res.Strategy, res.Units, res.FallbackUnits)
	fmt.Fprintf(w, "Overall:  %g/%g (%.1f%%) - %s\n\n",
		res.Overall.TotalPoints, res.Overall.MaxPoints, res.Overall.Percentage, strings.ToUpper(string(res.Overall.PassStatus)))

	for _, c := range r.AllCriteria() {
		s, ok := res.Scores[c.ID]
		if !ok {
			continue
		}
		fmt.Fprintf(w, "  %-32s %3d/%-3d %s\n", c.Label, s.Score, c.Max, s.Note)
	}
	fmt.Fprintf(w, "\n%s\n", res.ShortSummary)
	if rep.Summary != "" {
		fmt.Fprintf(w, "\nTranscript summary: %s\n", rep.Summary)
	}

	if fb := rep.Feedback; fb != nil {
		fmt.Fprintln(w, "\nStrengths:")
		for _, it := range fb.Strengths {
			fmt.Fprintf(w, "  + %s: %s\n", it.Title, it.Description)
		}
		fmt.Fprintln(w, "Improvements:")
		for _, it := range fb.Improvements {
			fmt.Fprintf(w, "  - %s: %s\n", it.Title, it.Description)
		}
	}
	for _, warn := range rep.Quality.Warnings {
		fmt.Fprintf(w, "! %s\n", warn)
	}
}
