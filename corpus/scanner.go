package corpus

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/SunnyCat2013/genretron/logging"
	"github.com/SunnyCat2013/genretron/transcode"
)

// DefaultExtensions returns the extensions with a native decoder
func DefaultExtensions() []string {
	return transcode.DefaultRegistry().Extensions()
}

// Track is one audio file and the genre named by its parent directory
type Track struct {
	Path  string `json:"path"`
	Genre string `json:"genre"`
}

// Scan walks root recursively and returns every file whose name ends with
// one of extensions, sorted by path. The sort makes positions stable across
// platforms and runs; fold indices point into this list.
func Scan(root string, extensions []string) ([]Track, error) {
	logger := logging.WithFields(logging.Fields{
		"component": "corpus_scanner",
		"function":  "Scan",
		"root":      root,
	})

	if len(extensions) == 0 {
		return nil, fmt.Errorf("no audio extensions given")
	}

	// WalkDir does not descend into a symlinked root
	resolved, err := filepath.EvalSymlinks(root)
	if err != nil {
		return nil, fmt.Errorf("resolving corpus root: %w", err)
	}

	files := make(map[string]string)
	err = filepath.WalkDir(resolved, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !hasSuffix(d.Name(), extensions) {
			return nil
		}
		if !isRegular(path, d) {
			return nil
		}

		rel, err := filepath.Rel(resolved, path)
		if err != nil {
			return err
		}
		path = filepath.Join(root, rel)
		files[path] = filepath.Base(filepath.Dir(path))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning corpus: %w", err)
	}

	tracks := make([]Track, 0, len(files))
	for path, genre := range files {
		tracks = append(tracks, Track{Path: path, Genre: genre})
	}
	sort.Slice(tracks, func(i, j int) bool {
		return tracks[i].Path < tracks[j].Path
	})

	logger.Debug("Corpus scanned", logging.Fields{
		"tracks": len(tracks),
	})

	return tracks, nil
}

func hasSuffix(name string, extensions []string) bool {
	for _, ext := range extensions {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}

// isRegular follows symlinked entries to their target
func isRegular(path string, d fs.DirEntry) bool {
	if d.Type().IsRegular() {
		return true
	}
	if d.Type()&fs.ModeSymlink == 0 {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// CountByGenre tallies tracks per genre
func CountByGenre(tracks []Track) map[string]int {
	counts := make(map[string]int)
	for _, t := range tracks {
		counts[t.Genre]++
	}
	return counts
}
