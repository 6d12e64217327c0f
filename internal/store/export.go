package store

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/nvandessel/narrative-recall/internal/simulation"
)

// ExportJSONL writes every stored run, oldest first, as one JSON result
// per line. It returns the number of runs written.
func (s *SQLiteRunStore) ExportJSONL(ctx context.Context, path string) (int, error) {
	summaries, err := s.ListRuns(ctx, "")
	if err != nil {
		return 0, err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600)
	if err != nil {
		return 0, fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	for i := len(summaries) - 1; i >= 0; i-- {
		res, err := s.GetRun(ctx, summaries[i].ID)
		if err != nil {
			return 0, err
		}
		if err := enc.Encode(res); err != nil {
			return 0, fmt.Errorf("failed to encode run %s: %w", res.RunID, err)
		}
	}
	if err := w.Flush(); err != nil {
		return 0, fmt.Errorf("failed to flush %s: %w", path, err)
	}
	return len(summaries), f.Close()
}

// ImportJSONL saves every run found in a JSONL file, replacing runs with
// the same id. Unparseable lines are skipped with a warning. It returns the
// number of runs imported.
func (s *SQLiteRunStore) ImportJSONL(ctx context.Context, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	// Results with trace snapshots can be long.
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 16*1024*1024)

	imported := 0
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var res simulation.Result
		if err := json.Unmarshal(line, &res); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to parse run at line %d: %v\n", lineNum, err)
			continue
		}
		if err := s.SaveRun(ctx, &res); err != nil {
			return imported, fmt.Errorf("failed to import run at line %d: %w", lineNum, err)
		}
		imported++
	}

	if err := scanner.Err(); err != nil {
		return imported, fmt.Errorf("scanner error: %w", err)
	}
	return imported, nil
}
