package fetcher

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aleister1102/tariffwatch/internal/config"
	"github.com/aleister1102/tariffwatch/internal/models"
)

const defaultLocalPattern = "*.pdf"

// ReadLocalFile reads path and its modification time.
func ReadLocalFile(path string) (*models.FetchResult, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return &models.FetchResult{
		Content:  content,
		FinalURL: path,
		ModTime:  info.ModTime().UTC(),
	}, nil
}

// ScanLocalDirectory lists the files under dir whose base name matches
// pattern (case-insensitive, default *.pdf) and, when set, contains
// nameFilter after accent folding. The result is sorted.
func ScanLocalDirectory(dir, pattern, nameFilter string) ([]string, error) {
	if pattern == "" {
		pattern = defaultLocalPattern
	}
	pattern = strings.ToLower(pattern)
	if _, err := filepath.Match(pattern, ""); err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}
	filter := config.FoldLabel(nameFilter)

	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		name := strings.ToLower(d.Name())
		if ok, _ := filepath.Match(pattern, name); !ok {
			return nil
		}
		if filter != "" && !strings.Contains(config.FoldLabel(d.Name()), filter) {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}
