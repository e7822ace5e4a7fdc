package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/hartis-org/cvi-workflow/internal/model"
	"github.com/hartis-org/cvi-workflow/internal/store"
)

var (
	runsStatus string
	runsArea   string
	runsLimit  int
	statsSince time.Duration
)

// statsScanLimit bounds how many runs a single stats invocation reads back
// from the store.
const statsScanLimit = 10000

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect pipeline run history",
	Long:  "Commands for listing, viewing, and summarizing CVI pipeline runs.",
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List pipeline runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withStore(cmd.Context(), func(st store.Store) error {
			runs, err := st.ListRuns(cmd.Context(), store.RunFilter{
				Status: model.RunStatus(runsStatus),
				Area:   runsArea,
				Limit:  runsLimit,
			})
			if err != nil {
				return eris.Wrap(err, "runs list")
			}
			if len(runs) == 0 {
				fmt.Fprintln(os.Stderr, "No runs found.")
				return nil
			}
			formatRunsList(os.Stdout, runs)
			return nil
		})
	},
}

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show full details of a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd.Context(), func(st store.Store) error {
			run, err := st.GetRun(cmd.Context(), args[0])
			if err != nil {
				return eris.Wrap(err, "runs show")
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(run)
		})
	},
}

var runsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregate run statistics",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withStore(cmd.Context(), func(st store.Store) error {
			filter := store.RunFilter{Limit: statsScanLimit}
			if statsSince > 0 {
				filter.CreatedAfter = time.Now().Add(-statsSince)
			}
			runs, err := st.ListRuns(cmd.Context(), filter)
			if err != nil {
				return eris.Wrap(err, "runs stats")
			}
			formatRunStats(os.Stdout, computeRunStats(runs))
			return nil
		})
	},
}

func init() {
	runsListCmd.Flags().StringVar(&runsStatus, "status", "", "filter by run status (queued, extracting, sampling, scoring, complete, failed)")
	runsListCmd.Flags().StringVar(&runsArea, "area", "", "filter by area")
	runsListCmd.Flags().IntVar(&runsLimit, "limit", 50, "max number of runs to display")
	runsStatsCmd.Flags().DurationVar(&statsSince, "since", 24*time.Hour, "time window for stats (e.g. 24h, 168h)")

	runsCmd.AddCommand(runsListCmd, runsShowCmd, runsStatsCmd)
	rootCmd.AddCommand(runsCmd)
}

// runStats summarizes a window of run history for the stats subcommand.
type runStats struct {
	Total      int
	Complete   int
	Failed     int
	Other      int
	Transects  int
	AvgDurSecs float64
	AvgMeanCVI float64
	ScoredRuns int
}

func computeRunStats(runs []model.Run) runStats {
	s := runStats{Total: len(runs)}

	var wall time.Duration
	var cviSum float64
	for _, r := range runs {
		switch r.Status {
		case model.RunStatusComplete:
			s.Complete++
			wall += r.UpdatedAt.Sub(r.CreatedAt)
		case model.RunStatusFailed:
			s.Failed++
		default:
			s.Other++
		}

		if r.Result == nil {
			continue
		}
		s.Transects += r.Result.Transects
		if r.Result.MeanCVI != nil {
			cviSum += *r.Result.MeanCVI
			s.ScoredRuns++
		}
	}

	if s.Complete > 0 {
		s.AvgDurSecs = wall.Seconds() / float64(s.Complete)
	}
	if s.ScoredRuns > 0 {
		s.AvgMeanCVI = cviSum / float64(s.ScoredRuns)
	}
	return s
}

// formatRunsList renders one row per run in ListRuns order, newest first.
func formatRunsList(out io.Writer, runs []model.Run) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tAREA\tSTATUS\tTRANSECTS\tMEAN_CVI\tCREATED\tDURATION")

	for _, r := range runs {
		transects, meanCVI := "-", "-"
		if r.Result != nil {
			transects = strconv.Itoa(r.Result.Transects)
			if r.Result.MeanCVI != nil {
				meanCVI = fmt.Sprintf("%.2f", *r.Result.MeanCVI)
			}
		}

		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			truncateID(r.ID),
			clip(r.Area, 30),
			r.Status,
			transects,
			meanCVI,
			r.CreatedAt.Format("2006-01-02 15:04"),
			r.UpdatedAt.Sub(r.CreatedAt).Round(time.Second),
		)
	}
	_ = w.Flush()
}

func formatRunStats(out io.Writer, s runStats) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Total runs:\t%d\n", s.Total)
	fmt.Fprintf(w, "Complete:\t%d\n", s.Complete)
	fmt.Fprintf(w, "Failed:\t%d\n", s.Failed)
	fmt.Fprintf(w, "Other:\t%d\n", s.Other)
	fmt.Fprintf(w, "Transects scored:\t%d\n", s.Transects)
	if s.Complete > 0 {
		fmt.Fprintf(w, "Avg duration:\t%.1fs\n", s.AvgDurSecs)
	}
	if s.ScoredRuns > 0 {
		fmt.Fprintf(w, "Avg mean CVI:\t%.2f\n", s.AvgMeanCVI)
	}
	_ = w.Flush()
}

// truncateID shortens a UUID to its first block for table display.
func truncateID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

// clip shortens s to at most max bytes, marking the cut with an ellipsis.
func clip(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
