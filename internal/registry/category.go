package registry

import (
	"errors"
	"fmt"
)

// Category is a kind of student, each has its own list of periods.
type Category string

const (
	BACHELOR Category = "bachelor"
	MASTER   Category = "master"
)

var ErrUnsupportedCategory = errors.New("registry: unsupported student category")

// Vocabulary maps every supported category to its ordered period labels.
type Vocabulary map[Category][]string

// DefaultVocabulary returns the periods the portal lists for each category.
func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		BACHELOR: {
			"Bachelor semestre 1",
			"Bachelor semestre 2",
			"Bachelor semestre 3",
			"Bachelor semestre 4",
			"Bachelor semestre 5",
			"Bachelor semestre 6",
		},
		MASTER: {
			"Master semestre 1",
			"Master semestre 2",
			"Master semestre 3",
			"Projet Master automne",
			"Projet Master printemps",
		},
	}
}

// Periods returns the periods of a category, or ErrUnsupportedCategory.
func (v Vocabulary) Periods(category Category) ([]string, error) {
	periods, ok := v[category]
	if !ok || len(periods) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedCategory, category)
	}
	return periods, nil
}
