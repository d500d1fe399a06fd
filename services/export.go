package services

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/goccy/go-json"
	"github.com/klauspost/compress/gzip"

	"github.com/justbri/moviesync/logger"
	"github.com/justbri/moviesync/models"
)

// maxExportLine bounds a single NDJSON line of the export file.
const maxExportLine = 1 << 20

// ExportDate returns the date of the export file to download: yesterday's day
// in the current month, never earlier than the 1st.
func ExportDate(now time.Time) (year int, month time.Month, day int) {
	year, month, day = now.Date()
	day--
	if day < 1 {
		day = 1
	}
	return year, month, day
}

func exportURL(baseURL string, now time.Time) string {
	year, month, day := ExportDate(now)
	return fmt.Sprintf("%s/p/exports/movie_ids_%02d_%d_%d.json.gz", baseURL, int(month), day, year)
}

// decodeMovieIDs gunzips r and parses one JSON object per non-empty line.
func decodeMovieIDs(r io.Reader) ([]models.MovieIDEntry, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open gzip stream: %w", err)
	}
	defer gz.Close()

	counter := &countingReader{r: gz}
	scanner := bufio.NewScanner(counter)
	scanner.Buffer(make([]byte, 0, 64*1024), maxExportLine)

	var entries []models.MovieIDEntry
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var entry models.MovieIDEntry
		if err := json.Unmarshal(line, &entry); err != nil {
			return nil, fmt.Errorf("failed to parse export line %d %q: %w", lineNo, preview(string(line), 80), err)
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read export: %w", err)
	}

	logger.Debug().
		Str("size", humanBytes(counter.n)).
		Int("lines", lineNo).
		Int("entries", len(entries)).
		Msg("Decoded movie id export")
	return entries, nil
}
