package folds

import (
	"errors"
	"reflect"
	"sort"
	"testing"
)

func TestShuffle_IsDeterministicPermutation(t *testing.T) {
	t.Parallel()

	a := Shuffle(1000, 322)
	b := Shuffle(1000, 322)
	if !reflect.DeepEqual(a, b) {
		t.Fatal("Shuffle() with the same seed differs between calls")
	}

	if reflect.DeepEqual(a, Shuffle(1000, 1234)) {
		t.Error("Shuffle() ignores the seed")
	}

	sorted := append([]int(nil), a...)
	sort.Ints(sorted)
	for i, v := range sorted {
		if v != i {
			t.Fatalf("Shuffle() is not a permutation: sorted[%d] = %d", i, v)
		}
	}
}

func TestMakeFolds_GTZANSizes(t *testing.T) {
	t.Parallel()

	kf, err := MakeFolds(Shuffle(1000, 322), 4)
	if err != nil {
		t.Fatalf("MakeFolds() error = %v", err)
	}

	run, err := kf.Run(0)
	if err != nil {
		t.Fatal(err)
	}

	want := map[Split]int{Train: 500, Test: 250, Valid: 250}
	for split, size := range want {
		if got := len(run[split]); got != size {
			t.Errorf("len(run[%s]) = %d, want %d", split, got, size)
		}
	}
}

func TestMakeFolds_RunsAreDisjointAndCover(t *testing.T) {
	t.Parallel()

	tests := []struct {
		n, k int
	}{
		{10, 3},
		{7, 2},
		{1000, 4},
		{13, 5},
		{5, 5},
	}

	for _, tt := range tests {
		indices := Shuffle(tt.n, 7)
		kf, err := MakeFolds(indices, tt.k)
		if err != nil {
			t.Fatalf("MakeFolds(%d, %d) error = %v", tt.n, tt.k, err)
		}

		if len(kf.Runs) != tt.k {
			t.Errorf("MakeFolds(%d, %d) produced %d runs", tt.n, tt.k, len(kf.Runs))
		}

		for r, run := range kf.Runs {
			seen := make(map[int]Split)
			for _, split := range Splits {
				for _, idx := range run[split] {
					if prev, dup := seen[idx]; dup {
						t.Fatalf("n=%d k=%d run %d: index %d in both %s and %s", tt.n, tt.k, r, idx, prev, split)
					}
					seen[idx] = split
				}
			}
			if len(seen) != tt.n {
				t.Errorf("n=%d k=%d run %d covers %d indices", tt.n, tt.k, r, len(seen))
			}
		}

		// fold sizes differ by at most one and the larger ones come first
		for i := 1; i < len(kf.Folds); i++ {
			if len(kf.Folds[i]) > len(kf.Folds[i-1]) {
				t.Errorf("n=%d k=%d fold %d larger than fold %d", tt.n, tt.k, i, i-1)
			}
		}
	}
}

func TestMakeFolds_ContiguousAssignment(t *testing.T) {
	t.Parallel()

	kf, err := MakeFolds([]int{9, 8, 7, 6, 5, 4, 3, 2, 1, 0}, 3)
	if err != nil {
		t.Fatal(err)
	}

	wantFolds := [][]int{{9, 8, 7, 6}, {5, 4, 3}, {2, 1, 0}}
	if !reflect.DeepEqual(kf.Folds, wantFolds) {
		t.Errorf("Folds = %v, want %v", kf.Folds, wantFolds)
	}

	run1, _ := kf.Run(1)
	want := Run{Test: {5, 4, 3}, Valid: {2, 1, 0}, Train: {9, 8, 7, 6}}
	if !reflect.DeepEqual(run1, want) {
		t.Errorf("Run(1) = %v, want %v", run1, want)
	}
}

func TestMakeFolds_TwoGenreScenarioIsReproducible(t *testing.T) {
	t.Parallel()

	build := func() ([]int, Run) {
		indices := Shuffle(4, 0)
		kf, err := MakeFolds(indices, 2)
		if err != nil {
			t.Fatalf("MakeFolds() error = %v", err)
		}
		run, err := kf.Run(0)
		if err != nil {
			t.Fatal(err)
		}
		return indices, run
	}

	indicesA, runA := build()
	indicesB, runB := build()

	if !reflect.DeepEqual(indicesA, indicesB) {
		t.Errorf("shuffled indices differ: %v vs %v", indicesA, indicesB)
	}
	if !reflect.DeepEqual(runA, runB) {
		t.Errorf("split membership differs: %v vs %v", runA, runB)
	}
	if len(runA[Test]) != 2 || len(runA[Valid]) != 2 || len(runA[Train]) != 0 {
		t.Errorf("unexpected sizes for 4 tracks / 2 folds: %v", runA)
	}
}

func TestMakeFolds_Invalid(t *testing.T) {
	t.Parallel()

	for _, k := range []int{-1, 0, 1, 5} {
		if _, err := MakeFolds([]int{0, 1, 2, 3}, k); !errors.Is(err, ErrInvalidFolds) {
			t.Errorf("MakeFolds(4 indices, %d) error = %v, want ErrInvalidFolds", k, err)
		}
	}

	kf, _ := MakeFolds([]int{0, 1, 2, 3}, 2)
	if _, err := kf.Run(2); !errors.Is(err, ErrNoSuchRun) {
		t.Errorf("Run(2) error = %v, want ErrNoSuchRun", err)
	}
}

func TestParseSplit(t *testing.T) {
	t.Parallel()

	for _, s := range []string{"train", "test", "valid"} {
		if got, err := ParseSplit(s); err != nil || string(got) != s {
			t.Errorf("ParseSplit(%q) = %q, %v", s, got, err)
		}
	}
	if _, err := ParseSplit("validation"); err == nil {
		t.Error("ParseSplit(validation) succeeded")
	}
}
