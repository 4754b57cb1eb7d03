package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/verdantlabs/leafsense/internal/diagnose"
	"github.com/verdantlabs/leafsense/internal/store"
	_ "modernc.org/sqlite"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to leafsense.db")
	dryRun := flag.Bool("dry-run", false, "report what would change without writing")
	flag.Parse()

	if *dbPath == "" {
		fmt.Fprintln(os.Stderr, "usage: backfill --db path/to/leafsense.db [--dry-run]")
		os.Exit(2)
	}

	if err := run(*dbPath, *dryRun); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region backfill

// run re-derives every record's status from its stored analysis under
// the current thresholds and rewrites the rows that moved.
func run(dbPath string, dryRun bool) error {
	st, err := store.NewStore(dbPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer st.Close()

	settings, err := st.GetSettings()
	if err != nil {
		return fmt.Errorf("read settings: %w", err)
	}

	fmt.Println("=== Status Backfill Tool ===")
	fmt.Printf("  DB: %s | Sensitivity: %s | Stress: %d | Insurance: %d\n",
		dbPath, settings.Sensitivity, settings.StressThreshold, settings.InsuranceThreshold)
	if dryRun {
		fmt.Println("  Dry run: no rows will be written")
	}

	ids, err := recordIDs(st)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		fmt.Println("No records to backfill. Done.")
		return nil
	}
	fmt.Printf("Fetched %d records.\n\n", len(ids))

	regraded := 0
	for i, id := range ids {
		rec, err := st.GetRecord(id)
		if err != nil {
			return fmt.Errorf("get record %s: %w", id, err)
		}

		status := diagnose.StatusFor(rec.Analysis, settings.StressThreshold, settings.InsuranceThreshold)
		if status != rec.Status {
			fmt.Printf("  %s: %s -> %s\n", shortID(id), rec.Status, status)
			if !dryRun {
				if err := st.UpdateStatus(id, status); err != nil {
					return fmt.Errorf("update record %s: %w", id, err)
				}
			}
			regraded++
		}

		if (i+1)%50 == 0 || i+1 == len(ids) {
			fmt.Printf("  [%d/%d] processed, %d regraded so far\n", i+1, len(ids), regraded)
		}
	}

	fmt.Printf("\n=== Backfill Complete ===\n")
	fmt.Printf("  Records:  %d\n", len(ids))
	fmt.Printf("  Regraded: %d\n", regraded)
	if dryRun && regraded > 0 {
		fmt.Println("  (dry run, nothing written)")
	}
	return nil
}

// recordIDs lists every record ID, oldest first.
func recordIDs(st *store.Store) ([]string, error) {
	rows, err := st.DB().Query(`SELECT id FROM crop_records ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// #endregion backfill

// #region helpers

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// #endregion helpers
