package main

import (
	"encoding/base64"
	"encoding/json"
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
	dbPath := flag.String("db", "", "path to leafsense.db")
	imageDir := flag.String("images", "", "image directory, embeds photos into the fixture when set")
	last := flag.Int("last", 4, "number of most recent records to export")
	outPath := flag.String("out", "", "output fixture JSON path")
	flag.Parse()

	if *dbPath == "" || *outPath == "" {
		fmt.Fprintln(os.Stderr, "usage: fixture-export --db path/to/db --out path/to/fixture.json [--images dir] [--last N]")
		os.Exit(2)
	}

	if err := run(*dbPath, *imageDir, *last, *outPath); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region extract

func run(dbPath, imageDir string, last int, outPath string) error {
	st, err := store.NewStore(dbPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer st.Close()

	records, err := st.ListRecords(last)
	if err != nil {
		return fmt.Errorf("list records: %w", err)
	}
	if len(records) == 0 {
		return fmt.Errorf("no records to export")
	}

	settings, err := st.GetSettings()
	if err != nil {
		return fmt.Errorf("read settings: %w", err)
	}

	fmt.Printf("Found %d records\n", len(records))

	fixture := buildFixture(records, settings, imageDir)

	return writeFixture(fixture, outPath)
}

// #endregion extract

// #region output

// buildFixture snapshots the given records and pins the actions the
// current pipeline produces for them as the expected results, so later
// replays flag drift against this export.
func buildFixture(records []store.Record, settings store.Settings, imageDir string) replay.Fixture {
	loader := func(path string) ([]byte, error) {
		if imageDir == "" {
			return nil, fmt.Errorf("no image directory configured")
		}
		return os.ReadFile(filepath.Join(imageDir, path))
	}

	cases := replay.CasesFromRecords(records, loader)
	results := replay.Replay(cases, settings)

	fixtureCases := make([]replay.FixtureCase, len(cases))
	for i, c := range cases {
		fc := replay.FixtureCase{
			RecordID: c.RecordID,
			CropType: c.CropType,
			Stored: replay.FixtureStored{
				DiseaseDetected: c.Stored.DiseaseDetected,
				ExpectedLoss:    c.Stored.ExpectedLoss,
				Status:          string(c.Stored.Status),
			},
		}
		if len(c.Image) > 0 {
			fc.ImageBase64 = base64.StdEncoding.EncodeToString(c.Image)
		}
		fixtureCases[i] = fc
	}

	expected := make([]replay.FixtureExpectedResult, len(results))
	for i, r := range results {
		expected[i] = replay.FixtureExpectedResult{
			RecordID: r.RecordID,
			Action:   r.Action,
		}
	}

	return replay.Fixture{
		Description: fmt.Sprintf("Field DB export: %d records pinned against current profiles", len(records)),
		Settings: replay.FixtureSettings{
			Sensitivity:        string(settings.Sensitivity),
			StressThreshold:    settings.StressThreshold,
			InsuranceThreshold: settings.InsuranceThreshold,
		},
		Cases:           fixtureCases,
		ExpectedResults: expected,
	}
}

func writeFixture(fixture replay.Fixture, outPath string) error {
	data, err := json.MarshalIndent(fixture, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal fixture: %w", err)
	}

	if err := os.WriteFile(outPath, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", outPath, err)
	}

	fmt.Printf("Wrote fixture to %s (%d bytes, %d cases)\n", outPath, len(data), len(fixture.Cases))
	return nil
}

// #endregion output
