package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/dispatchmap/core/dispatch"
	"github.com/kilianp07/dispatchmap/core/engine"
	"github.com/kilianp07/dispatchmap/core/journal"
)

var replayFlags struct {
	backend  string
	path     string
	kind     string
	since    time.Duration
	verbose  bool
	afterSeq int64
}

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Rebuild the render model from a session snapshot and a journal",
	RunE:  runReplay,
}

func init() {
	f := replayCmd.Flags()
	f.StringVar(&replayFlags.backend, "backend", "", "journal backend (jsonl, rotating, sqlite); defaults to journal.backend")
	f.StringVar(&replayFlags.path, "journal", "", "journal path; defaults to journal.path")
	f.StringVar(&replayFlags.kind, "kind", "", "only replay messages of this kind")
	f.Int64Var(&replayFlags.afterSeq, "after-seq", 0, "skip records up to this sequence number")
	f.DurationVar(&replayFlags.since, "since", 0, "only replay records newer than this")
	f.BoolVarP(&replayFlags.verbose, "verbose", "v", false, "print every record with the resulting phase")
	rootCmd.AddCommand(replayCmd)
}

func runReplay(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfigOrDefaults()
	if err != nil {
		return err
	}
	jc := cfg.Journal
	if replayFlags.backend != "" {
		jc.Backend = replayFlags.backend
	}
	if replayFlags.path != "" {
		jc.Path = replayFlags.path
	}
	if err := jc.Validate(); err != nil {
		return fmt.Errorf("journal: %w", err)
	}
	snap, err := cfg.Session.Load()
	if err != nil {
		return err
	}
	initial, err := dispatch.New(snap, cfg.Engine.Options())
	if err != nil {
		return err
	}
	store, err := journal.Open(jc.Options())
	if err != nil {
		return err
	}
	defer store.Close()

	q := journal.Query{Kind: replayFlags.kind, AfterSeq: replayFlags.afterSeq}
	if replayFlags.since > 0 {
		q.Start = time.Now().Add(-replayFlags.since)
	}
	out := cmd.OutOrStdout()
	n := 0
	final, err := engine.Replay(context.Background(), initial, store, q, func(rec journal.Record, s dispatch.State) {
		n++
		if replayFlags.verbose {
			fmt.Fprintf(out, "%6d %s %-24s -> %s\n", rec.Seq, rec.Timestamp.Format(time.RFC3339), rec.Kind, s.Phase())
		}
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "replayed %d records\n", n)
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(dispatch.Render(final))
}
