package dataset

import (
	"bytes"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/SunnyCat2013/genretron/folds"
	"github.com/SunnyCat2013/genretron/logging"
	"github.com/SunnyCat2013/genretron/store"
	"github.com/SunnyCat2013/genretron/transcode"
)

const (
	testRate    = 8000
	testSeconds = 0.0625 // 500 samples
	testWindow  = 128
	testFFT     = 128
)

var testGenres = []string{"blues", "rock"}

// writeCorpus creates perGenre AU tracks of n samples for every test genre.
// Each track is a sine whose pitch depends on genre and position.
func writeCorpus(t *testing.T, root string, perGenre, n int) {
	t.Helper()
	writeCorpusAt(t, root, perGenre, n, testRate)
}

// writeCorpusAt writes perGenre sine tracks of n samples at rate Hz per genre
func writeCorpusAt(t *testing.T, root string, perGenre, n, rate int) {
	t.Helper()

	for g, genre := range testGenres {
		dir := filepath.Join(root, genre)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
		for k := range perGenre {
			freq := 200.0*float64(g+1) + 37.0*float64(k)
			samples := make([]int16, n)
			for i := range samples {
				samples[i] = int16(12000 * math.Sin(2*math.Pi*freq*float64(i)/float64(rate)))
			}

			var buf bytes.Buffer
			if err := transcode.WriteAU16(&buf, rate, 1, samples); err != nil {
				t.Fatal(err)
			}
			path := filepath.Join(dir, fmt.Sprintf("%s.%05d.au", genre, k))
			if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
				t.Fatal(err)
			}
		}
	}
}

func testCachedConfig() CachedConfig {
	cfg := DefaultCachedConfig()
	cfg.Seconds = testSeconds
	cfg.SampleRate = testRate
	cfg.WindowSize = testWindow
	cfg.StepSize = testWindow / 2
	cfg.FFTResolution = testFFT
	cfg.NumberOfTracks = 8
	cfg.SplitSizes = map[folds.Split]int{folds.Train: 4, folds.Test: 2, folds.Valid: 2}
	cfg.Genres = testGenres
	cfg.Store = store.Options{ChunkRows: 3}
	return cfg
}

func testOptions(split folds.Split, feature Feature, path string) Options {
	opts := DefaultOptions()
	opts.Split = split
	opts.Feature = feature
	opts.Path = path
	opts.Logger = &logging.NoOpLogger{}
	return opts
}

func testInMemoryOptions(split folds.Split, feature Feature, path string) InMemoryOptions {
	opts := DefaultInMemoryOptions()
	opts.Options = testOptions(split, feature, path)
	opts.Seconds = testSeconds
	opts.SampleRate = testRate
	opts.WindowSize = testWindow
	opts.FFTResolution = testFFT
	opts.Seed = testCachedConfig().Seed
	opts.NumberOfTracks = 8
	opts.Genres = testGenres
	return opts
}

func assertOneHot(t *testing.T, y *LabelMatrix) {
	t.Helper()

	if err := y.Validate(); err != nil {
		t.Fatal(err)
	}
}
