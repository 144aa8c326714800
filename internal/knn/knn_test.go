package knn

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type point struct {
	x     float64
	label string
}

func lineDistance(a, b point) float64 { return math.Abs(a.x - b.x) }

func pointLabel(p point) string { return p.label }

func TestNeighborsSizeAndOrder(t *testing.T) {
	dataset := []point{{5, "a"}, {1, "b"}, {3, "c"}, {-2, "d"}, {4, "e"}}

	tests := []struct {
		k    int
		want []float64
	}{
		{1, []float64{1}},
		{3, []float64{1, 2, 3}},
		{5, []float64{1, 2, 3, 4, 5}},
		{10, []float64{1, 2, 3, 4, 5}},
	}

	for _, tt := range tests {
		neighbors := Neighbors(point{x: 0}, tt.k, dataset, lineDistance)
		require.Len(t, neighbors, len(tt.want))

		var got []float64
		for _, n := range neighbors {
			got = append(got, n.Distance)
		}
		assert.Equal(t, tt.want, got, "k=%d", tt.k)
	}
}

func TestNeighborsStableForEqualDistances(t *testing.T) {
	dataset := []point{{1, "first"}, {-1, "second"}, {1, "third"}}

	neighbors := Neighbors(point{x: 0}, 3, dataset, lineDistance)
	require.Len(t, neighbors, 3)
	assert.Equal(t, "first", neighbors[0].Item.label)
	assert.Equal(t, "second", neighbors[1].Item.label)
	assert.Equal(t, "third", neighbors[2].Item.label)
}

func TestPredictInvalidInput(t *testing.T) {
	dataset := []point{{1, "a"}}

	_, ok := Predict(point{}, 0, dataset, lineDistance, pointLabel, MaxVote)
	assert.False(t, ok)

	_, ok = Predict(point{}, -1, dataset, lineDistance, pointLabel, MinAverageDistance)
	assert.False(t, ok)

	_, ok = Predict(point{}, 3, nil, lineDistance, pointLabel, MaxVote)
	assert.False(t, ok)

	got, ok := Predict(point{}, 1, dataset, lineDistance, pointLabel, MaxVote)
	assert.True(t, ok)
	assert.Equal(t, "a", got.label)
}

func TestPredictMaxVoteMajority(t *testing.T) {
	dataset := []point{
		{0.5, "home"},
		{1.0, "work"},
		{1.2, "work"},
		{1.4, "work"},
		{9.0, "home"},
	}

	got, ok := Predict(point{x: 0}, 4, dataset, lineDistance, pointLabel, MaxVote)
	require.True(t, ok)
	assert.Equal(t, "work", got.label)
	// representative is the nearest member of the winning label
	assert.Equal(t, 1.0, got.x)
}

func TestMaxVoteAndMinAverageDistanceDisagree(t *testing.T) {
	// x: one neighbor at distance 1 (average 1)
	// y: two neighbors at 2 and 3 (average 2.5)
	dataset := []point{{2, "y"}, {1, "x"}, {3, "y"}}

	got, ok := Predict(point{x: 0}, 3, dataset, lineDistance, pointLabel, MaxVote)
	require.True(t, ok)
	assert.Equal(t, "y", got.label)
	assert.Equal(t, 2.0, got.x)

	got, ok = Predict(point{x: 0}, 3, dataset, lineDistance, pointLabel, MinAverageDistance)
	require.True(t, ok)
	assert.Equal(t, "x", got.label)
}

func TestTieBreakPrefersNearestLabel(t *testing.T) {
	t.Run("max vote", func(t *testing.T) {
		dataset := []point{{2, "far"}, {1, "near"}}
		got, ok := Predict(point{x: 0}, 2, dataset, lineDistance, pointLabel, MaxVote)
		require.True(t, ok)
		assert.Equal(t, "near", got.label)
	})

	t.Run("min average distance", func(t *testing.T) {
		// a: (1+3)/2 = 2, b: 2/1 = 2
		dataset := []point{{2, "b"}, {3, "a"}, {1, "a"}}
		got, ok := Predict(point{x: 0}, 3, dataset, lineDistance, pointLabel, MinAverageDistance)
		require.True(t, ok)
		assert.Equal(t, "a", got.label)
		assert.Equal(t, 1.0, got.x)
	})
}

func TestPredictIsDeterministic(t *testing.T) {
	dataset := []point{{1, "a"}, {1, "b"}, {2, "c"}, {2, "d"}}
	first, _ := Predict(point{}, 4, dataset, lineDistance, pointLabel, MaxVote)
	for i := 0; i < 50; i++ {
		got, _ := Predict(point{}, 4, dataset, lineDistance, pointLabel, MaxVote)
		assert.Equal(t, first, got)
	}
	assert.Equal(t, "a", first.label)
}

type place struct {
	lat, lon float64
	label    string
}

func (p place) Attributes() Attributes {
	return Attributes{Latitude: p.lat, Longitude: p.lon, Timestamp: time.Time{}}
}

func (p place) Label() string { return p.label }

func TestClassifyUsesGeodesicDistance(t *testing.T) {
	dataset := []place{
		{52.5200, 13.4050, "work"},
		{52.5201, 13.4051, "work"},
		{52.5300, 13.4200, "home"},
	}

	got, ok := Classify[place, string](place{lat: 52.52005, lon: 13.40505}, 3, dataset, MaxVote)
	require.True(t, ok)
	assert.Equal(t, "work", got.label)

	got, ok = Classify[place, string](place{lat: 52.5299, lon: 13.4199}, 1, dataset, MinAverageDistance)
	require.True(t, ok)
	assert.Equal(t, "home", got.label)
}

func TestParseDecisionType(t *testing.T) {
	assert.Equal(t, MaxVote, ParseDecisionType("max_vote"))
	assert.Equal(t, MinAverageDistance, ParseDecisionType("min_average_distance"))
	assert.Equal(t, MinAverageDistance, ParseDecisionType(""))
	assert.Equal(t, "unknown", DecisionType(42).String())
}
