package testutil

import (
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"strconv"
	"strings"
	"sync"
)

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: newRand(seed),
		seed: seed,
	}
}

func newRand(seed int64) *rand.Rand {
	return rand.New(rand.NewPCG(uint64(seed), uint64(seed)^0x9e3779b97f4a7c15))
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand = newRand(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// IntN returns a non-negative pseudo-random number in [0,n).
func (r *RNG) IntN(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.IntN(n)
}

// Float64 returns a pseudo-random number in [0.0,1.0).
func (r *RNG) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Float64()
}

// UniformRows generates random rows with values in range [0, 1).
// Uses a single backing array for efficiency.
func (r *RNG) UniformRows(num, dimensions int) [][]float64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	data := make([]float64, num*dimensions)
	rows := make([][]float64, num)

	for i := range num {
		row := data[i*dimensions : (i+1)*dimensions]
		for j := range row {
			row[j] = r.rand.Float64()
		}
		rows[i] = row
	}

	return rows
}

// GaussianRows generates rows with values from a standard normal distribution.
func (r *RNG) GaussianRows(num, dimensions int) [][]float64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	data := make([]float64, num*dimensions)
	rows := make([][]float64, num)

	for i := range num {
		row := data[i*dimensions : (i+1)*dimensions]
		for j := range row {
			row[j] = r.rand.NormFloat64()
		}
		rows[i] = row
	}

	return rows
}

// ClusteredRows generates rows scattered around clusters distinct profiles.
// Row i belongs to profile i%clusters, which is returned in labels.
//
// Profiles are built so they stay distinct after per-row min-max scaling:
// profile c peaks at column c*dim/clusters.
func (r *RNG) ClusteredRows(num, dim, clusters int, spread float64) (rows [][]float64, labels []int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	profiles := make([][]float64, clusters)
	for c := range profiles {
		p := make([]float64, dim)
		peak := c * dim / clusters
		for j := range p {
			d := float64(j - peak)
			p[j] = math.Exp(-d * d / 2)
		}
		profiles[c] = p
	}

	data := make([]float64, num*dim)
	rows = make([][]float64, num)
	labels = make([]int, num)

	for i := range num {
		c := i % clusters
		row := data[i*dim : (i+1)*dim]
		for j := range row {
			row[j] = profiles[c][j] + r.rand.NormFloat64()*spread
		}
		rows[i] = row
		labels[i] = c
	}

	return rows, labels
}

// Names returns n distinct row names.
func Names(n int) []string {
	names := make([]string, n)
	for i := range names {
		names[i] = fmt.Sprintf("row%04d", i)
	}
	return names
}

// WriteTable writes names and rows as delimited text with a header line whose
// first field is empty.
func WriteTable(w io.Writer, names []string, rows [][]float64, sep rune) error {
	s := string(sep)

	var sb strings.Builder
	if len(rows) > 0 {
		for j := range rows[0] {
			sb.WriteString(s)
			sb.WriteString("c")
			sb.WriteString(strconv.Itoa(j))
		}
	}
	sb.WriteString("\n")

	for i, row := range rows {
		sb.WriteString(names[i])
		for _, v := range row {
			sb.WriteString(s)
			sb.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
		}
		sb.WriteString("\n")
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

// Purity returns the fraction of rows whose cluster's majority label matches
// their own label. 1.0 means every cluster holds exactly one label.
func Purity(labels, assignment []int) float64 {
	if len(labels) == 0 || len(labels) != len(assignment) {
		return 0
	}

	counts := make(map[int]map[int]int)
	for i, c := range assignment {
		if counts[c] == nil {
			counts[c] = make(map[int]int)
		}
		counts[c][labels[i]]++
	}

	hits := 0
	for _, byLabel := range counts {
		best := 0
		for _, n := range byLabel {
			best = max(best, n)
		}
		hits += best
	}

	return float64(hits) / float64(len(labels))
}
