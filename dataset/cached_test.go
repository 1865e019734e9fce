package dataset

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/SunnyCat2013/genretron/folds"
	"github.com/SunnyCat2013/genretron/transcode"
)

func TestCachedConfig_DefaultGeometry(t *testing.T) {
	t.Parallel()

	cfg := DefaultCachedConfig()

	tests := []struct {
		feature  Feature
		wins     int
		bins     int
		samples  int
		imageLen int
	}{
		{FeatureSpectrogram, 623, 513, 639450, 623 * 513},
		{FeatureMFCC, 623, 13, 639450, 623 * 13},
	}

	for _, tt := range tests {
		t.Run(string(tt.feature), func(t *testing.T) {
			t.Parallel()

			g, err := cfg.Geometry(tt.feature)
			if err != nil {
				t.Fatalf("Geometry() error = %v", err)
			}
			if g.Samples != tt.samples || g.Wins != tt.wins || g.Bins != tt.bins || g.ImageSize != tt.imageLen {
				t.Errorf("Geometry() = samples %d wins %d bins %d size %d, want %d %d %d %d",
					g.Samples, g.Wins, g.Bins, g.ImageSize, tt.samples, tt.wins, tt.bins, tt.imageLen)
			}
			if rows, cols := g.ImageShape(); rows != tt.bins || cols != tt.wins {
				t.Errorf("ImageShape() = (%d, %d), want (%d, %d)", rows, cols, tt.bins, tt.wins)
			}
		})
	}
}

func TestNewCached_BuildsThenReusesCache(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeCorpus(t, dir, 4, 600)
	cfg := testCachedConfig()
	ctx := context.Background()

	first, err := NewCachedWithConfig(ctx, testOptions(folds.Train, FeatureSpectrogram, dir), cfg)
	if err != nil {
		t.Fatalf("NewCachedWithConfig() error = %v", err)
	}

	if want := filepath.Join(dir, "spectrogram_train.gtzc"); first.Path() != want {
		t.Errorf("Path() = %q, want %q", first.Path(), want)
	}

	g := first.Geometry()
	dm := first.DesignMatrix()
	rows, cols := dm.X.Dims()
	if rows != 4 || cols != g.ImageSize {
		t.Fatalf("X is %dx%d, want 4x%d", rows, cols, g.ImageSize)
	}
	if g.Wins != 6 || g.Bins != testFFT/2+1 {
		t.Errorf("geometry wins=%d bins=%d, want 6 and %d", g.Wins, g.Bins, testFFT/2+1)
	}
	if _, yCols := dm.Y.Dims(); yCols != len(testGenres) {
		t.Errorf("Y has %d columns, want %d", yCols, len(testGenres))
	}
	assertOneHot(t, dm.Y)

	if shape := dm.View.Shape(); shape != [3]int{g.Bins, g.Wins, 1} {
		t.Errorf("View.Shape() = %v, want [%d %d 1]", shape, g.Bins, g.Wins)
	}

	want := append([]float64(nil), dm.X.RawMatrix().Data...)
	if err := first.Close(); err != nil {
		t.Fatal(err)
	}

	// without the audio the second open can only come from the cache
	for _, genre := range testGenres {
		if err := os.RemoveAll(filepath.Join(dir, genre)); err != nil {
			t.Fatal(err)
		}
	}

	second, err := NewCachedWithConfig(ctx, testOptions(folds.Train, FeatureSpectrogram, dir), cfg)
	if err != nil {
		t.Fatalf("reopening cache: %v", err)
	}
	defer second.Close()

	got := second.DesignMatrix().X.RawMatrix().Data
	for i := range want {
		if math.Float64bits(got[i]) != math.Float64bits(want[i]) {
			t.Fatalf("X[%d] = %v after reopening, want %v", i, got[i], want[i])
		}
	}
}

func TestNewCached_MatchesInMemory(t *testing.T) {
	t.Parallel()

	for _, feature := range CachedFeatures {
		t.Run(string(feature), func(t *testing.T) {
			t.Parallel()

			dir := t.TempDir()
			writeCorpus(t, dir, 4, 600)
			ctx := context.Background()

			cached, err := NewCachedWithConfig(ctx, testOptions(folds.Valid, feature, dir), testCachedConfig())
			if err != nil {
				t.Fatal(err)
			}
			defer cached.Close()

			mem, err := NewInMemory(ctx, testInMemoryOptions(folds.Valid, feature, dir))
			if err != nil {
				t.Fatal(err)
			}

			a := cached.DesignMatrix()
			b := mem.DesignMatrix()
			if !equalData(a.X.RawMatrix().Data, b.X.RawMatrix().Data) {
				t.Error("cached and in-memory features differ")
			}
			for i := range a.NumExamples() {
				if a.Y.Class(i) != b.Y.Class(i) {
					t.Errorf("row %d: cached class %d, in-memory %d", i, a.Y.Class(i), b.Y.Class(i))
				}
			}
		})
	}
}

func equalData(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestNewCached_SplitsPartitionTheCorpus(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeCorpus(t, dir, 4, 600)
	cfg := testCachedConfig()
	ctx := context.Background()

	total := 0
	classes := make(map[int]int)
	for _, split := range folds.Splits {
		c, err := NewCachedWithConfig(ctx, testOptions(split, FeatureMFCC, dir), cfg)
		if err != nil {
			t.Fatalf("%s: %v", split, err)
		}

		dm := c.DesignMatrix()
		if got, want := dm.NumExamples(), cfg.SplitSizes[split]; got != want {
			t.Errorf("%s has %d rows, want %d", split, got, want)
		}
		for i := range dm.NumExamples() {
			classes[dm.Y.Class(i)]++
		}
		total += dm.NumExamples()
		c.Close()
	}

	if total != cfg.NumberOfTracks {
		t.Errorf("splits hold %d rows, want %d", total, cfg.NumberOfTracks)
	}
	if classes[0] != 4 || classes[1] != 4 {
		t.Errorf("class counts = %v, want 4 of each", classes)
	}
}

func TestNewCached_RowsWritesResizedCopy(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeCorpus(t, dir, 4, 600)
	cfg := testCachedConfig()
	ctx := context.Background()

	full, err := NewCachedWithConfig(ctx, testOptions(folds.Train, FeatureSpectrogram, dir), cfg)
	if err != nil {
		t.Fatal(err)
	}
	fullX := full.DesignMatrix().X
	full.Close()

	opts := testOptions(folds.Train, FeatureSpectrogram, dir)
	opts.Rows = &RowRange{Start: 1, Stop: 3}

	c, err := NewCachedWithConfig(ctx, opts, cfg)
	if err != nil {
		t.Fatalf("NewCachedWithConfig() error = %v", err)
	}
	defer c.Close()

	if want := filepath.Join(dir, "spectrogram_train_resized.gtzc"); c.Path() != want {
		t.Errorf("Path() = %q, want %q", c.Path(), want)
	}

	x := c.DesignMatrix().X
	rows, cols := x.Dims()
	if rows != 2 {
		t.Fatalf("resized X has %d rows, want 2", rows)
	}
	for i := range rows {
		for j := range cols {
			if x.At(i, j) != fullX.At(i+1, j) {
				t.Fatalf("X[%d,%d] = %v, want %v", i, j, x.At(i, j), fullX.At(i+1, j))
			}
		}
	}

	opts.Rows = &RowRange{Start: 2, Stop: 9}
	if _, err := NewCachedWithConfig(ctx, opts, cfg); err == nil {
		t.Error("rows past the end of the split were accepted")
	}
}

func TestNewCached_CanonicalLocation(t *testing.T) {
	dataRoot := t.TempDir()
	t.Setenv(DataPathEnv, dataRoot)

	canonical := filepath.Join(dataRoot, "GTZAN")
	writeCorpus(t, canonical, 4, 600)
	cfg := testCachedConfig()
	ctx := context.Background()

	if got, err := CanonicalPath(); err != nil || got != canonical {
		t.Fatalf("CanonicalPath() = %q, %v, want %q", got, err, canonical)
	}

	c, err := NewCachedWithConfig(ctx, testOptions(folds.Test, FeatureSpectrogram, ""), cfg)
	if err != nil {
		t.Fatalf("NewCachedWithConfig() error = %v", err)
	}
	if want := filepath.Join(canonical, "spectrogram_test.gtzc"); c.Path() != want {
		t.Errorf("Path() = %q, want %q", c.Path(), want)
	}
	c.Close()

	for _, mutate := range []func(*Options){
		func(o *Options) { o.Center = true },
		func(o *Options) { o.Scale = true },
		func(o *Options) { o.Rows = &RowRange{Start: 0, Stop: 1} },
	} {
		opts := testOptions(folds.Test, FeatureSpectrogram, "")
		mutate(&opts)
		if _, err := NewCachedWithConfig(ctx, opts, cfg); !errors.Is(err, ErrReadOnlyCache) {
			t.Errorf("NewCachedWithConfig() error = %v, want ErrReadOnlyCache", err)
		}
	}
}

func TestNewCached_PreprocessorFitsOnTrainOnly(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeCorpus(t, dir, 4, 600)
	cfg := testCachedConfig()
	ctx := context.Background()

	std := NewStandardize()
	opts := testOptions(folds.Train, FeatureMFCC, dir)
	opts.Preprocessor = std

	train, err := NewCachedWithConfig(ctx, opts, cfg)
	if err != nil {
		t.Fatalf("train: %v", err)
	}
	defer train.Close()

	if !std.Fitted() {
		t.Fatal("Standardize was not fitted on the training split")
	}
	mean := append([]float64(nil), std.Mean()...)

	x := train.DesignMatrix().X
	rows, cols := x.Dims()
	for j := range cols {
		sum := 0.0
		for i := range rows {
			sum += x.At(i, j)
		}
		if m := sum / float64(rows); math.Abs(m) > 1e-3 {
			t.Fatalf("column %d mean = %v after standardizing, want ~0", j, m)
		}
	}

	test, err := train.TestSet(ctx)
	if err != nil {
		t.Fatalf("TestSet() error = %v", err)
	}
	defer test.Close()

	if test.Split() != folds.Test {
		t.Errorf("TestSet().Split() = %s", test.Split())
	}
	for j, m := range std.Mean() {
		if m != mean[j] {
			t.Fatal("Standardize was refitted on the test split")
		}
	}

	// the private cache now holds the standardized values
	reopened, err := NewCachedWithConfig(ctx, testOptions(folds.Train, FeatureMFCC, dir), cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()
	if !equalData(reopened.DesignMatrix().X.RawMatrix().Data, x.RawMatrix().Data) {
		t.Error("preprocessed values were not written back to the private cache")
	}
}

func TestNewCached_Errors(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("split size table", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		writeCorpus(t, dir, 4, 600)
		cfg := testCachedConfig()
		cfg.SplitSizes[folds.Train] = 5

		_, err := NewCachedWithConfig(ctx, testOptions(folds.Train, FeatureSpectrogram, dir), cfg)
		if !errors.Is(err, ErrShapeMismatch) {
			t.Errorf("error = %v, want ErrShapeMismatch", err)
		}
		if _, statErr := os.Stat(filepath.Join(dir, "spectrogram_train.gtzc")); !os.IsNotExist(statErr) {
			t.Error("a cache file was written for a mismatched split")
		}
	})

	t.Run("corpus size", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		writeCorpus(t, dir, 3, 600)

		_, err := NewCachedWithConfig(ctx, testOptions(folds.Train, FeatureSpectrogram, dir), testCachedConfig())
		if !errors.Is(err, ErrCorpusSize) {
			t.Errorf("error = %v, want ErrCorpusSize", err)
		}
	})

	t.Run("short track", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		writeCorpus(t, dir, 4, 300)

		_, err := NewCachedWithConfig(ctx, testOptions(folds.Train, FeatureSpectrogram, dir), testCachedConfig())
		if !errors.Is(err, transcode.ErrTrackTooShort) {
			t.Errorf("error = %v, want ErrTrackTooShort", err)
		}
	})

	t.Run("in-memory only feature", func(t *testing.T) {
		t.Parallel()

		_, err := NewCachedWithConfig(ctx, testOptions(folds.Train, FeatureInvMFCC, t.TempDir()), testCachedConfig())
		if !errors.Is(err, ErrInvalidFeature) {
			t.Errorf("error = %v, want ErrInvalidFeature", err)
		}
	})

	t.Run("cancelled", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		writeCorpus(t, dir, 4, 600)
		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		_, err := NewCachedWithConfig(cancelled, testOptions(folds.Train, FeatureSpectrogram, dir), testCachedConfig())
		if !errors.Is(err, context.Canceled) {
			t.Errorf("error = %v, want context.Canceled", err)
		}
	})
}

func TestNewCached_UnsetDataPath(t *testing.T) {
	t.Setenv(DataPathEnv, "")
	ctx := context.Background()

	if got, err := CanonicalPath(); !errors.Is(err, ErrUndefinedVariable) {
		t.Errorf("CanonicalPath() = %q, %v, want ErrUndefinedVariable", got, err)
	}

	_, err := NewCachedWithConfig(ctx, testOptions(folds.Test, FeatureSpectrogram, ""), testCachedConfig())
	if !errors.Is(err, ErrUndefinedVariable) {
		t.Errorf("NewCachedWithConfig() on the canonical path error = %v, want ErrUndefinedVariable", err)
	}

	private := testOptions(folds.Test, FeatureSpectrogram, "${"+DataPathEnv+"}/private")
	if _, err := NewCachedWithConfig(ctx, private, testCachedConfig()); !errors.Is(err, ErrUndefinedVariable) {
		t.Errorf("NewCachedWithConfig() on a private path error = %v, want ErrUndefinedVariable", err)
	}
}
