package corpus

import (
	"errors"
	"fmt"
)

// ErrUnknownGenre is returned for a genre outside the vocabulary
var ErrUnknownGenre = errors.New("unknown genre")

// DefaultGenres are the ten GTZAN genres in one-hot column order
var DefaultGenres = []string{
	"blues", "classical", "country", "disco", "hiphop",
	"jazz", "metal", "pop", "reggae", "rock",
}

// Vocabulary is an immutable ordered list of genre names
type Vocabulary struct {
	names []string
	index map[string]int
}

// NewVocabulary builds a vocabulary; names must be unique and non-empty
func NewVocabulary(names []string) (*Vocabulary, error) {
	if len(names) == 0 {
		return nil, errors.New("vocabulary needs at least one genre")
	}

	v := &Vocabulary{
		names: make([]string, len(names)),
		index: make(map[string]int, len(names)),
	}
	copy(v.names, names)

	for i, name := range names {
		if name == "" {
			return nil, fmt.Errorf("genre %d is empty", i)
		}
		if _, dup := v.index[name]; dup {
			return nil, fmt.Errorf("duplicate genre %q", name)
		}
		v.index[name] = i
	}

	return v, nil
}

// DefaultVocabulary returns the GTZAN vocabulary
func DefaultVocabulary() *Vocabulary {
	v, _ := NewVocabulary(DefaultGenres)
	return v
}

// Len returns the number of genres
func (v *Vocabulary) Len() int {
	return len(v.names)
}

// Index returns the one-hot column of a genre
func (v *Vocabulary) Index(genre string) (int, error) {
	i, ok := v.index[genre]
	if !ok {
		return -1, fmt.Errorf("%w: %q", ErrUnknownGenre, genre)
	}
	return i, nil
}

// Name returns the genre at a column
func (v *Vocabulary) Name(i int) string {
	return v.names[i]
}

// Names returns a copy of the genre list
func (v *Vocabulary) Names() []string {
	names := make([]string, len(v.names))
	copy(names, v.names)
	return names
}
