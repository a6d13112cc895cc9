package jobs

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// ErrorLogName is the file collecting stock update failures until an
// operator reads it through /logs/error.
const ErrorLogName = "stocks_errors.txt"

// ErrNoLog means no log file exists for the request
var ErrNoLog = errors.New("jobs: no log file")

// runLogPath returns a fresh per-run log file name:
// <dir>/<job>_job_log_<date>.txt, then (1), (2), ... when taken.
func runLogPath(dir, job string, now time.Time) string {
	base := filepath.Join(dir, fmt.Sprintf("%s_job_log_%s", job, now.Format("2006-01-02")))
	path := base + ".txt"
	for n := 1; ; n++ {
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			return path
		}
		path = fmt.Sprintf("%s(%d).txt", base, n)
	}
}

// LatestRunLog returns the content of the most recent log file of a job
func LatestRunLog(dir, job string) (string, []byte, error) {
	matches, err := filepath.Glob(filepath.Join(dir, job+"_job_log_*.txt"))
	if err != nil {
		return "", nil, err
	}
	if len(matches) == 0 {
		return "", nil, ErrNoLog
	}

	type candidate struct {
		path string
		mod  time.Time
	}
	files := make([]candidate, 0, len(matches))
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil {
			continue
		}
		files = append(files, candidate{m, info.ModTime()})
	}
	if len(files) == 0 {
		return "", nil, ErrNoLog
	}
	sort.Slice(files, func(i, j int) bool {
		if files[i].mod.Equal(files[j].mod) {
			return files[i].path > files[j].path
		}
		return files[i].mod.After(files[j].mod)
	})

	data, err := os.ReadFile(files[0].path)
	if err != nil {
		return "", nil, err
	}
	return filepath.Base(files[0].path), data, nil
}

// TakeErrorLog reads and removes the stock error log
func TakeErrorLog(dir string) ([]byte, error) {
	path := filepath.Join(dir, ErrorLogName)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNoLog
	}
	if err != nil {
		return nil, err
	}
	if err := os.Remove(path); err != nil {
		return nil, err
	}
	return data, nil
}

// appendLine writes one timestamped line to a log file
func appendLine(path string, now time.Time, line string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = fmt.Fprintf(f, "[%s] %s\n", now.Format("2006-01-02 15:04:05"), line)
	return err
}
