package index

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
)

// ErrDimensionMismatch is returned when a vector does not match the index dimension
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// Hit is a search result, Position is the insertion position of the vector
type Hit struct {
	Position int
	Distance float64
}

// Index is a read only nearest neighbour index over vectors added at build time
type Index interface {
	Search(query []float32, k int) ([]Hit, error)
	Len() int
	Dimension() int
}

var _ Index = (*FlatIndex)(nil)

// FlatIndex is an exact nearest neighbour index under squared euclidean distance.
// It is not safe for concurrent writes; after Build it is read only.
type FlatIndex struct {
	dimension int
	vectors   [][]float32
}

// NewFlatIndex creates an empty index for vectors of the given dimension
func NewFlatIndex(dimension int) *FlatIndex {
	return &FlatIndex{dimension: dimension}
}

// Build creates an index from all vectors at once.
// The dimension is taken from the first vector.
func Build(vectors [][]float32) (*FlatIndex, error) {
	if len(vectors) == 0 {
		return NewFlatIndex(0), nil
	}

	index := NewFlatIndex(len(vectors[0]))
	if err := index.Add(vectors...); err != nil {
		return nil, err
	}
	return index, nil
}

// Add appends vectors to the index
func (f *FlatIndex) Add(vectors ...[]float32) error {
	for i, v := range vectors {
		if len(v) != f.dimension {
			return fmt.Errorf("%w: vector %d has dimension %d, index has %d", ErrDimensionMismatch, i, len(v), f.dimension)
		}
	}
	f.vectors = append(f.vectors, vectors...)
	return nil
}

// Search returns the k nearest vectors sorted by ascending distance.
// Ties keep insertion order. k is clamped to the number of indexed vectors.
func (f *FlatIndex) Search(query []float32, k int) ([]Hit, error) {
	if k <= 0 || len(f.vectors) == 0 {
		return []Hit{}, nil
	}
	if len(query) != f.dimension {
		return nil, fmt.Errorf("%w: query has dimension %d, index has %d", ErrDimensionMismatch, len(query), f.dimension)
	}

	hits := make([]Hit, len(f.vectors))
	for i, v := range f.vectors {
		hits[i] = Hit{Position: i, Distance: SquaredEuclidean(query, v)}
	}

	slices.SortStableFunc(hits, func(a, b Hit) int {
		return cmp.Compare(a.Distance, b.Distance)
	})

	return hits[:min(k, len(hits))], nil
}

// Len returns the number of indexed vectors
func (f *FlatIndex) Len() int {
	return len(f.vectors)
}

// Dimension returns the vector dimension of the index
func (f *FlatIndex) Dimension() int {
	return f.dimension
}

// SquaredEuclidean returns the squared euclidean distance of two equal length vectors
func SquaredEuclidean(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}
