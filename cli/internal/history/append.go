package history

import (
	"bufio"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"utgen/cli/internal/erruser"
)

const (
	historyFilename    = "history.jsonl"
	historyGzPrefix    = "history.jsonl."
	historyGzSuffix    = ".gz"
	DefaultMaxRecords  = 500
	maxRotatedArchives = 5
	maxLineSize        = 1 << 20
)

// Append writes record as one JSON line to stateDir/history.jsonl, creating
// stateDir and the file if missing. When maxRecords > 0 and the file then
// holds more lines, the oldest lines move to a new gzip archive.
func Append(stateDir string, record Record, maxRecords int) error {
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		return erruser.New("Could not create state directory for history.", err)
	}
	path := filepath.Join(stateDir, historyFilename)
	line, err := json.Marshal(record)
	if err != nil {
		return erruser.New("Could not record run history.", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return erruser.New("Could not record run history.", err)
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		_ = f.Close()
		return erruser.New("Could not record run history.", err)
	}
	if err := f.Close(); err != nil {
		return erruser.New("Could not record run history.", err)
	}
	if maxRecords > 0 {
		return rotateIfNeeded(path, maxRecords)
	}
	return nil
}

// ReadRecords returns all records, oldest first: rotated archives by
// ascending number, then the active file. A missing stateDir yields nil.
func ReadRecords(stateDir string) ([]Record, error) {
	archives, err := listArchives(stateDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, erruser.New("Could not read history directory.", err)
	}
	var out []Record
	for _, a := range archives {
		recs, err := readGzipRecords(filepath.Join(stateDir, a.name))
		if err != nil {
			return nil, erruser.New("Could not read history archive.", err)
		}
		out = append(out, recs...)
	}
	lines, err := readLines(filepath.Join(stateDir, historyFilename))
	if err != nil && !os.IsNotExist(err) {
		return nil, erruser.New("Could not read history file.", err)
	}
	recs, err := parseRecordLines(lines)
	if err != nil {
		return nil, erruser.New("History file is corrupted.", err)
	}
	return append(out, recs...), nil
}

// Last returns the newest record, or ok=false when there is none.
func Last(stateDir string) (rec Record, ok bool, err error) {
	lines, err := readLines(filepath.Join(stateDir, historyFilename))
	if err != nil {
		if os.IsNotExist(err) {
			return Record{}, false, nil
		}
		return Record{}, false, erruser.New("Could not read history file.", err)
	}
	for i := len(lines) - 1; i >= 0; i-- {
		if strings.TrimSpace(lines[i]) == "" {
			continue
		}
		if err := json.Unmarshal([]byte(lines[i]), &rec); err != nil {
			return Record{}, false, erruser.New("History file is corrupted.", err)
		}
		return rec, true, nil
	}
	return Record{}, false, nil
}

func parseRecordLines(lines []string) ([]Record, error) {
	var out []Record
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var rec Record
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			return nil, fmt.Errorf("invalid history line: %w", err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// rotateIfNeeded moves all but the last maxRecords lines of path into the
// next history.jsonl.N.gz, prunes old archives, and rewrites path atomically.
func rotateIfNeeded(path string, maxRecords int) error {
	lines, err := readLines(path)
	if err != nil {
		return erruser.New("Could not read history for rotation.", err)
	}
	if len(lines) <= maxRecords {
		return nil
	}
	dropped := lines[:len(lines)-maxRecords]
	keep := lines[len(lines)-maxRecords:]
	dir := filepath.Dir(path)

	archives, err := listArchives(dir)
	if err != nil {
		return erruser.New("Could not rotate history file.", err)
	}
	next := 1
	if len(archives) > 0 {
		next = archives[len(archives)-1].n + 1
	}
	archivePath := filepath.Join(dir, historyGzPrefix+strconv.Itoa(next)+historyGzSuffix)
	if err := writeGzippedLines(archivePath, dropped); err != nil {
		return erruser.New("Could not write rotated history archive.", err)
	}
	archives = append(archives, archive{n: next})
	for i := 0; i < len(archives)-maxRotatedArchives; i++ {
		name := historyGzPrefix + strconv.Itoa(archives[i].n) + historyGzSuffix
		if err := os.Remove(filepath.Join(dir, name)); err != nil {
			return erruser.New("Could not prune history archives.", err)
		}
	}

	f, err := os.CreateTemp(dir, "history.*.tmp")
	if err != nil {
		return erruser.New("Could not rotate history file.", err)
	}
	tmpPath := f.Name()
	defer func() { _ = os.Remove(tmpPath) }()
	if _, err := f.WriteString(strings.Join(keep, "")); err != nil {
		_ = f.Close()
		return erruser.New("Could not rotate history file.", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return erruser.New("Could not rotate history file.", err)
	}
	if err := f.Close(); err != nil {
		return erruser.New("Could not rotate history file.", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return erruser.New("Could not rotate history file.", err)
	}
	return nil
}

type archive struct {
	n    int
	name string
}

// listArchives returns history.jsonl.N.gz files in dir sorted by N.
func listArchives(dir string) ([]archive, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []archive
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, historyGzPrefix) || !strings.HasSuffix(name, historyGzSuffix) {
			continue
		}
		n, err := strconv.Atoi(name[len(historyGzPrefix) : len(name)-len(historyGzSuffix)])
		if err != nil || n < 1 {
			continue
		}
		out = append(out, archive{n: n, name: name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].n < out[j].n })
	return out, nil
}

func writeGzippedLines(path string, lines []string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	gw := gzip.NewWriter(f)
	if _, err := io.WriteString(gw, strings.Join(lines, "")); err != nil {
		_ = gw.Close()
		return err
	}
	if err := gw.Close(); err != nil {
		return err
	}
	return f.Sync()
}

func readGzipRecords(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	gr, err := gzip.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer func() { _ = gr.Close() }()
	lines, err := readLinesFromReader(gr)
	if err != nil {
		return nil, err
	}
	return parseRecordLines(lines)
}

// readLines returns the lines of path, each with its trailing newline.
func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return readLinesFromReader(f)
}

func readLinesFromReader(r io.Reader) ([]string, error) {
	var lines []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for sc.Scan() {
		lines = append(lines, sc.Text()+"\n")
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}
