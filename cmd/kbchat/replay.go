package main

import (
	"KBAssist/models"
	"KBAssist/pkg/chat"
	"KBAssist/pkg/config"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

type ResultItem struct {
	Query      string          `json:"query"`
	Response   string          `json:"response"`
	Error      string          `json:"error,omitempty"`
	Sources    []models.Source `json:"sources,omitempty"`
	DurationMs int64           `json:"duration_ms"`
	Timestamp  string          `json:"timestamp"`
}

type RunSummary struct {
	SessionID    string                       `json:"session_id"`
	StartedAt    string                       `json:"started_at"`
	EndedAt      string                       `json:"ended_at"`
	Env          string                       `json:"env"`
	GeminiOn     bool                         `json:"gemini_enabled"`
	Model        string                       `json:"model"`
	Profile      string                       `json:"profile"`
	TotalQueries int                          `json:"total_queries"`
	Errors       int                          `json:"errors"`
	Results      []ResultItem                 `json:"results"`
	Analysis     *models.ConversationAnalysis `json:"analysis,omitempty"`
}

type replayOptions struct {
	outDir string
	sleep  time.Duration
}

func replayCmd() *cobra.Command {
	var opts replayOptions
	cmd := &cobra.Command{
		Use:   "replay <queries.json>",
		Short: "Send a list of questions in one conversation and save the answers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			summary, err := replay(cmd.Context(), cmd.OutOrStdout(), args[0], opts, false)
			if err != nil {
				return err
			}
			return saveSummary(cmd.OutOrStdout(), opts.outDir, summary)
		},
	}
	cmd.Flags().StringVarP(&opts.outDir, "out", "o", "results", "directory for the JSON and CSV results")
	cmd.Flags().DurationVar(&opts.sleep, "sleep", 600*time.Millisecond, "pause between questions")
	return cmd
}

func analyzeCmd() *cobra.Command {
	var opts replayOptions
	cmd := &cobra.Command{
		Use:   "analyze <queries.json>",
		Short: "Replay a conversation and print its admin analysis as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			summary, err := replay(cmd.Context(), io.Discard, args[0], opts, true)
			if err != nil {
				return err
			}
			if opts.outDir != "" {
				if err := saveSummary(cmd.ErrOrStderr(), opts.outDir, summary); err != nil {
					return err
				}
			}
			b, err := json.MarshalIndent(summary.Analysis, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(b))
			return nil
		},
	}
	cmd.Flags().StringVarP(&opts.outDir, "out", "o", "", "also save the replay results in this directory")
	cmd.Flags().DurationVar(&opts.sleep, "sleep", 600*time.Millisecond, "pause between questions")
	return cmd
}

func replay(ctx context.Context, progress io.Writer, path string, opts replayOptions, analyze bool) (*RunSummary, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	queries, err := readQueries(path)
	if err != nil {
		return nil, err
	}
	s, profile, err := newSession()
	if err != nil {
		return nil, err
	}
	defer s.Close()

	started := time.Now()
	summary := &RunSummary{
		SessionID:    s.ID,
		StartedAt:    started.Format(time.RFC3339),
		Env:          config.AppEnv,
		GeminiOn:     config.IsGeminiEnabled && !useLocal,
		Model:        config.GeminiModel,
		Profile:      profile.Name,
		TotalQueries: len(queries),
	}
	summary.Results = runQueries(ctx, progress, s, queries, opts.sleep)
	for _, r := range summary.Results {
		if r.Error != "" {
			summary.Errors++
		}
	}

	if analyze {
		view, err := s.Analysis.RequestAnalysis(ctx)
		if err != nil {
			return nil, err
		}
		if view.Error != "" {
			return nil, errors.New(view.Error)
		}
		summary.Analysis = view.Analysis
	}
	summary.EndedAt = time.Now().Format(time.RFC3339)
	return summary, nil
}

// runQueries sends each question in order within the same conversation.
func runQueries(ctx context.Context, progress io.Writer, s *chat.Session, queries []string, sleep time.Duration) []ResultItem {
	results := make([]ResultItem, 0, len(queries))
	for i, q := range queries {
		if ctx.Err() != nil {
			break
		}
		t0 := time.Now()
		cycle, err := s.Chat.Send(ctx, q)
		r := ResultItem{
			Query:      q,
			DurationMs: time.Since(t0).Milliseconds(),
			Timestamp:  time.Now().Format(time.RFC3339),
		}
		switch {
		case err != nil:
			r.Error = err.Error()
		case cycle.Reply.IsError:
			r.Error = cycle.Reply.Text
		default:
			r.Response = strings.TrimSpace(cycle.Reply.Text)
			r.Sources = cycle.Reply.Sources
		}
		results = append(results, r)
		fmt.Fprintf(progress, "[%d/%d] %s -> %dms error=%v\n", i+1, len(queries), truncate(q, 64), r.DurationMs, r.Error != "")

		if sleep > 0 && i < len(queries)-1 {
			select {
			case <-ctx.Done():
			case <-time.After(sleep):
			}
		}
	}
	return results
}

func saveSummary(out io.Writer, dir string, summary *RunSummary) error {
	if err := ensureDir(dir); err != nil {
		return fmt.Errorf("failed to create results dir: %w", err)
	}
	stamp := time.Now().Format("20060102-150405")
	jsonPath := filepath.Join(dir, fmt.Sprintf("replay-%s.json", stamp))
	csvPath := filepath.Join(dir, fmt.Sprintf("replay-%s.csv", stamp))
	if err := writeJSON(jsonPath, summary); err != nil {
		return fmt.Errorf("failed to write JSON: %w", err)
	}
	if err := writeCSV(csvPath, summary.Results); err != nil {
		return fmt.Errorf("failed to write CSV: %w", err)
	}
	fmt.Fprintln(out, "\nSaved:")
	fmt.Fprintln(out, " -", jsonPath)
	fmt.Fprintln(out, " -", csvPath)
	return nil
}

// readQueries accepts either ["q1", "q2", ...] or [{"q": "..."}, ...].
func readQueries(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	return parseQueries(data)
}

func parseQueries(data []byte) ([]string, error) {
	var arrAny []any
	if err := json.Unmarshal(data, &arrAny); err != nil {
		return nil, fmt.Errorf("invalid queries file: %w", err)
	}
	out := make([]string, 0, len(arrAny))
	for _, v := range arrAny {
		var q string
		switch t := v.(type) {
		case string:
			q = t
		case map[string]any:
			q, _ = t["q"].(string)
		}
		if q = strings.TrimSpace(q); q != "" {
			out = append(out, q)
		}
	}
	if len(out) == 0 {
		return nil, errors.New("queries file is empty or malformed")
	}
	return out, nil
}

func ensureDir(p string) error {
	return os.MkdirAll(p, 0o755)
}

func writeJSON(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

func writeCSV(path string, items []ResultItem) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w := csv.NewWriter(f)
	_ = w.Write([]string{"query", "duration_ms", "error", "sources", "response"})
	for _, it := range items {
		uris := make([]string, 0, len(it.Sources))
		for _, s := range it.Sources {
			uris = append(uris, s.URI)
		}
		_ = w.Write([]string{
			it.Query,
			fmt.Sprintf("%d", it.DurationMs),
			it.Error,
			strings.Join(uris, " "),
			it.Response,
		})
	}
	w.Flush()
	return w.Error()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
