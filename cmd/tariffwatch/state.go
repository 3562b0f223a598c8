package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/aleister1102/tariffwatch/internal/changestore"
	"github.com/aleister1102/tariffwatch/internal/datastore"
	"github.com/spf13/cobra"
)

func newStateCmd(root *rootFlags) *cobra.Command {
	var runs int

	cmd := &cobra.Command{
		Use:   "state",
		Short: "Print the tracked resources and the recent runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, zLogger, err := loadConfig(root, "")
			if err != nil {
				return err
			}

			store, err := changestore.Open(cfg.ChangeStoreConfig, zLogger)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			printEntries(out, store)

			if cfg.StorageConfig.EnableParquet {
				if err := printRecordFiles(out, datastore.NewParquetReader(cfg.StorageConfig, zLogger)); err != nil {
					return err
				}
			}

			if !cfg.StorageConfig.EnableSQLite || runs <= 0 {
				return nil
			}
			db, err := datastore.NewSQLiteStore(cfg.StorageConfig.SQLitePath, zLogger)
			if err != nil {
				return err
			}
			defer db.Close()

			entries, err := db.RecentRuns(cmd.Context(), runs)
			if err != nil {
				return err
			}
			printRuns(out, entries)
			return nil
		},
	}

	cmd.Flags().IntVar(&runs, "runs", 10, "Number of recent runs to list (0 disables)")
	return cmd
}

func printEntries(out io.Writer, store *changestore.Store) {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PROVIDER\tKIND\tLOCATION\tHASH\tLAST CHECKED\tMISSING")
	for _, e := range store.Entries() {
		hash := e.ContentHash
		if len(hash) > 12 {
			hash = hash[:12]
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%t\n",
			e.Identity.Provider, e.Identity.Kind, e.Identity.Location, hash,
			e.LastCheckedAt.Format(time.RFC3339), e.Missing)
	}
	_ = w.Flush()
}

func printRecordFiles(out io.Writer, reader *datastore.ParquetReader) error {
	files, err := reader.RecordFiles()
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return nil
	}
	fmt.Fprintln(out)
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RECORD FILE\tRECORDS")
	for _, path := range files {
		records, err := reader.ReadFile(path)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s\t%d\n", path, len(records))
	}
	return w.Flush()
}

func printRuns(out io.Writer, runs []datastore.RunEntry) {
	fmt.Fprintln(out)
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tSTARTED\tSTATUS\tRESOURCES\tUPDATED\tFAILED\tRECORDS")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%d\n",
			r.ID, r.StartedAt.Format(time.RFC3339), r.Status,
			r.ResourceCount, r.UpdatedCount, r.FailedCount, r.RecordCount)
	}
	_ = w.Flush()
}
