package dialoguelog

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// FileInfo describes one daily log file.
type FileInfo struct {
	Name    string
	Path    string
	Size    int64
	ModTime time.Time
}

// List returns the log files in dir, newest day first.
func List(dir string) ([]FileInfo, error) {
	matches, err := filepath.Glob(filepath.Join(dir, filePrefix+"*"+fileSuffix))
	if err != nil {
		return nil, fmt.Errorf("failed to list dialogue logs: %w", err)
	}
	files := make([]FileInfo, 0, len(matches))
	for _, path := range matches {
		st, err := os.Stat(path)
		if err != nil {
			continue
		}
		files = append(files, FileInfo{
			Name:    filepath.Base(path),
			Path:    path,
			Size:    st.Size(),
			ModTime: st.ModTime(),
		})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name > files[j].Name })
	return files, nil
}

// PathFor resolves a day ("2025-03-01") or a file name to a path under dir.
// An empty day means today.
func PathFor(dir, day string) (string, error) {
	day = strings.TrimSpace(day)
	if day == "" {
		return filepath.Join(dir, FileName(time.Now())), nil
	}
	if strings.HasPrefix(day, filePrefix) {
		return filepath.Join(dir, filepath.Base(day)), nil
	}
	t, err := time.Parse(dateLayout, day)
	if err != nil {
		return "", fmt.Errorf("invalid day %q (want YYYY-MM-DD): %w", day, err)
	}
	return filepath.Join(dir, FileName(t)), nil
}

// Copy writes the whole file at path to w.
func Copy(w io.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open dialogue log: %w", err)
	}
	defer f.Close()
	_, err = io.Copy(w, f)
	return err
}

// Tail follows path from its current end, writing new lines to w until ctx
// is done. It waits for the file to appear.
func Tail(ctx context.Context, w io.Writer, path string, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var f *os.File
	for f == nil {
		opened, err := os.Open(path)
		switch {
		case err == nil:
			f = opened
		case errors.Is(err, os.ErrNotExist):
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
			}
		default:
			return fmt.Errorf("failed to open dialogue log: %w", err)
		}
	}
	defer f.Close()

	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		return err
	}
	reader := bufio.NewReader(f)
	var pending strings.Builder
	for {
		line, err := reader.ReadString('\n')
		pending.WriteString(line)
		if err == nil {
			if _, werr := io.WriteString(w, pending.String()); werr != nil {
				return werr
			}
			pending.Reset()
			continue
		}
		if !errors.Is(err, io.EOF) {
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
