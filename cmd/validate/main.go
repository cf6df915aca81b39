// Command validate checks the integrity of a station's weather history: the
// CSV log and, optionally, the SQLite history written alongside it. It
// verifies row structure, timestamp order, plausible value ranges, and that
// both stores recorded the same observations.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -csv temp_history/weather_log.csv \
//	  -sqlite data/history.db -station balcony
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/couchcryptid/weather-station/internal/adapter/csvlog"
	"github.com/couchcryptid/weather-station/internal/adapter/sqlite"
	"github.com/couchcryptid/weather-station/internal/domain"
)

// Column order of a log row.
const (
	colTimestamp = iota
	colTemperature
	colPressure
	colHumidity
	colWindSpeed
	colWindDirection
	colDescription
	numCols
)

// bounds are the plausible ranges for each numeric column.
var bounds = []struct {
	col      int
	name     string
	min, max float64
}{
	{colTemperature, "temperature", -60, 60},
	{colPressure, "pressure", 850, 1100},
	{colHumidity, "humidity", 0, 100},
	{colWindSpeed, "wind speed", 0, 75},
	{colWindDirection, "wind direction", 0, 360},
}

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	csvPath := flag.String("csv", "", "path to the CSV weather log")
	sqlitePath := flag.String("sqlite", "", "optional path to the SQLite history")
	stationID := flag.String("station", "station-1", "station id used in the SQLite history")
	flag.Parse()

	if *csvPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*csvPath, *sqlitePath, *stationID); code != 0 {
		os.Exit(code)
	}
}

func run(csvPath, sqlitePath, stationID string) int {
	fmt.Println("=== Weather History Validation ===")
	fmt.Println()

	rows, err := csvlog.ReadAll(csvPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load CSV log: %v\n", err)
		return 1
	}

	phases := []*phase{
		validateStructure(rows),
		validateOrder(rows),
		validateRanges(rows),
	}

	if sqlitePath != "" {
		history, err := loadHistory(sqlitePath, stationID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: load SQLite history: %v\n", err)
			return 1
		}
		phases = append(phases, validateParity(rows, history))
	}

	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-32s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Rows: %d logged, %d with data, %d gaps\n", len(rows), countWithData(rows), len(rows)-countWithData(rows))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

func loadHistory(path, stationID string) ([]domain.Observation, error) {
	db, err := sqlite.Open(path)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	store := sqlite.NewStore(db, stationID, slog.Default())
	ctx := context.Background()
	n, err := store.Count(ctx)
	if err != nil {
		return nil, err
	}
	return store.Latest(ctx, n)
}

// ── Phases ──

func validateStructure(rows [][]string) *phase {
	p := &phase{name: "Row structure"}
	for i, row := range rows {
		line := i + 2
		if len(row) != numCols {
			p.errorf("line %d: %d fields, want %d", line, len(row), numCols)
			continue
		}
		if _, err := time.Parse(csvlog.TimestampLayout, row[colTimestamp]); err != nil {
			p.errorf("line %d: bad timestamp %q", line, row[colTimestamp])
		}
		for _, b := range bounds {
			if row[b.col] == "" {
				continue
			}
			if _, err := strconv.ParseFloat(row[b.col], 64); err != nil {
				p.errorf("line %d: %s %q is not a number", line, b.name, row[b.col])
			}
		}
	}
	return p
}

// validateOrder allows one backwards step per year for the autumn clock change.
func validateOrder(rows [][]string) *phase {
	p := &phase{name: "Timestamp order"}
	var prev time.Time
	for i, row := range rows {
		if len(row) != numCols {
			continue
		}
		ts, err := time.Parse(csvlog.TimestampLayout, row[colTimestamp])
		if err != nil {
			continue
		}
		if !prev.IsZero() && ts.Before(prev) && prev.Sub(ts) > time.Hour {
			p.errorf("line %d: %s is before %s", i+2, ts.Format(csvlog.TimestampLayout), prev.Format(csvlog.TimestampLayout))
		}
		prev = ts
	}
	return p
}

func validateRanges(rows [][]string) *phase {
	p := &phase{name: "Value ranges"}
	for i, row := range rows {
		if len(row) != numCols {
			continue
		}
		for _, b := range bounds {
			v, err := strconv.ParseFloat(row[b.col], 64)
			if err != nil {
				continue
			}
			if v < b.min || v > b.max {
				p.errorf("line %d: %s %g outside [%g, %g]", i+2, b.name, v, b.min, b.max)
			}
		}
	}
	return p
}

// validateParity compares the CSV log with the SQLite history, which is
// returned newest first.
func validateParity(rows [][]string, history []domain.Observation) *phase {
	p := &phase{name: "CSV / SQLite parity"}
	if len(rows) != len(history) {
		p.errorf("row count: CSV %d, SQLite %d", len(rows), len(history))
	}

	n := min(len(rows), len(history))
	for i := range n {
		row := rows[len(rows)-1-i]
		obs := history[i]
		want := csvlog.Row(obs)
		if len(row) != len(want) {
			continue
		}
		for col := range want {
			if row[col] != want[col] {
				p.errorf("line %d column %d: CSV %q, SQLite %q", len(rows)-i+1, col+1, row[col], want[col])
			}
		}
	}
	return p
}

func countWithData(rows [][]string) int {
	n := 0
	for _, row := range rows {
		if len(row) == numCols && row[colTemperature] != "" {
			n++
		}
	}
	return n
}
