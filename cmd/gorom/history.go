package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/datallboy/gorom/internal/domain"
	"github.com/datallboy/gorom/internal/store"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newHistoryCmd(opts *rootOptions) *cobra.Command {
	var (
		filter   store.DownloadFilter
		kind     string
		sessions bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List completed downloads",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(opts)
			if err != nil {
				return err
			}

			ledger, err := store.NewPersistentStore(cfg.Store.Driver, cfg.Store.DSN)
			if err != nil {
				return err
			}
			defer ledger.Close()

			if sessions {
				recs, err := ledger.ListSessions(cmd.Context(), filter.Limit)
				if err != nil {
					return err
				}
				printSessions(os.Stdout, recs)
				return nil
			}

			filter.Kind = domain.JobKind(kind)
			return printHistory(cmd.Context(), os.Stdout, ledger, filter)
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "", "only show game or firmware downloads")
	cmd.Flags().StringVar(&filter.Platform, "platform", "", "only show downloads for this platform slug")
	cmd.Flags().IntVarP(&filter.Limit, "limit", "n", 50, "maximum number of entries")
	cmd.Flags().BoolVar(&sessions, "sessions", false, "list finished sessions instead of downloads")
	return cmd
}

func printHistory(ctx context.Context, out io.Writer, ledger *store.PersistentStore, f store.DownloadFilter) error {
	recs, err := ledger.ListDownloads(ctx, f)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		fmt.Fprintln(out, "No downloads recorded yet.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "WHEN\tKIND\tPLATFORM\tNAME\tSIZE\tPATH")
	for _, r := range recs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			humanize.Time(r.CompletedAt), r.Kind, r.Platform, r.Name, humanize.IBytes(uint64(r.Bytes)), r.Path)
	}
	return w.Flush()
}

func printSessions(out io.Writer, recs []domain.SessionRecord) {
	if len(recs) == 0 {
		fmt.Fprintln(out, "No sessions recorded yet.")
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "FINISHED\tTYPE\tTOTAL\tDONE\tFAILED\tCANCELLED\tID")
	for _, r := range recs {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%d\t%s\n",
			humanize.Time(r.FinishedAt), r.Type, r.Total, r.Succeeded, r.Failed-r.Cancelled, r.Cancelled, r.ID)
	}
	w.Flush()
}
