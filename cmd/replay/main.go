package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/verdantlabs/leafsense/internal/replay"
	"github.com/verdantlabs/leafsense/internal/store"
	_ "modernc.org/sqlite"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to leafsense.db (DB mode)")
	imageDir := flag.String("images", "", "image directory for DB mode (optional)")
	last := flag.Int("last", 100, "number of most recent records to replay in DB mode")
	fixturePath := flag.String("fixture", "", "path to fixture JSON (fixture mode)")
	flag.Parse()

	if (*dbPath == "" && *fixturePath == "") || (*dbPath != "" && *fixturePath != "") {
		fmt.Fprintln(os.Stderr, "usage: replay --db path/to/leafsense.db [--images dir] [--last N]")
		fmt.Fprintln(os.Stderr, "       replay --fixture path/to/fixture.json")
		os.Exit(2)
	}

	var exitCode int
	if *fixturePath != "" {
		exitCode = runFixtureMode(*fixturePath)
	} else {
		exitCode = runDBMode(*dbPath, *imageDir, *last)
	}
	os.Exit(exitCode)
}

// #endregion main

// #region db-mode

// runDBMode re-assesses stored records under the live settings and
// reports every verdict that would change today.
func runDBMode(dbPath, imageDir string, last int) int {
	st, err := store.NewStore(dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		return 2
	}
	defer st.Close()

	records, err := st.ListRecords(last)
	if err != nil {
		fmt.Fprintf(os.Stderr, "list records: %v\n", err)
		return 2
	}
	if len(records) == 0 {
		fmt.Fprintln(os.Stderr, "no records found")
		return 2
	}

	settings, err := st.GetSettings()
	if err != nil {
		fmt.Fprintf(os.Stderr, "read settings: %v\n", err)
		return 2
	}

	loader := func(path string) ([]byte, error) {
		if imageDir == "" {
			return nil, fmt.Errorf("no image directory configured")
		}
		return os.ReadFile(filepath.Join(imageDir, path))
	}

	cases := replay.CasesFromRecords(records, loader)
	results := replay.Replay(cases, settings)

	return printDrift(results)
}

// printDrift reports per-record drift against the stored verdicts and
// returns the exit code (1 when any verdict moved).
func printDrift(results []replay.Result) int {
	fmt.Printf("%-10s| %-10s| %-32s| %s\n", "Record", "Crop", "Stored -> Replayed", "Action")
	fmt.Printf("%-10s+%-11s+%-33s+%s\n",
		"----------", "-----------", "---------------------------------", "---------------")

	for _, r := range results {
		shift := fmt.Sprintf("%s/%d%% -> %s/%d%%",
			r.Old.Status, r.Old.ExpectedLoss, r.New.Status, r.New.ExpectedLoss)
		fmt.Printf("%-10s| %-10s| %-32s| %s\n", shortID(r.RecordID), r.CropType, shift, r.Action)
	}

	s := replay.Summarize(results)
	fmt.Printf("\nSummary: %d total, %d unchanged, %d loss shifts, %d status changes, %d verdict changes\n",
		s.TotalCases, s.Unchanged, s.LossShifts, s.StatusChanges, s.VerdictChanges)

	if s.Unchanged < s.TotalCases {
		return 1
	}
	return 0
}

// #endregion db-mode

// #region fixture-mode

func runFixtureMode(path string) int {
	f, err := replay.LoadFixture(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load fixture: %v\n", err)
		return 2
	}

	cases := make([]replay.Case, len(f.Cases))
	for i := range f.Cases {
		c, err := f.Cases[i].ToCase()
		if err != nil {
			fmt.Fprintf(os.Stderr, "bad case: %v\n", err)
			return 2
		}
		cases[i] = c
	}

	results := replay.Replay(cases, f.Settings.ToSettings())

	expected := make(map[string]string, len(f.ExpectedResults))
	for _, e := range f.ExpectedResults {
		expected[e.RecordID] = e.Action
	}

	return printComparison(results, expected)
}

// printComparison outputs expected vs replayed actions per case and
// returns the exit code (1 when any case diverges from the fixture).
func printComparison(results []replay.Result, expected map[string]string) int {
	fmt.Printf("%-20s| %-15s| %-15s| %s\n", "Record", "Expected", "Replayed", "Match")
	fmt.Printf("%-20s+%-16s+%-16s+%s\n",
		"--------------------", "----------------", "----------------", "------")

	matches := 0
	for _, r := range results {
		exp, ok := expected[r.RecordID]
		if !ok {
			exp = "?"
		}
		match := "DIFF"
		if ok && exp == r.Action {
			match = "OK"
			matches++
		}
		fmt.Printf("%-20s| %-15s| %-15s| %s\n", r.RecordID, exp, r.Action, match)
	}

	diverge := len(results) - matches
	fmt.Printf("\nSummary: %d total, %d match, %d diverge\n", len(results), matches, diverge)

	if diverge > 0 {
		return 1
	}
	return 0
}

// #endregion fixture-mode

// #region output

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// #endregion output
