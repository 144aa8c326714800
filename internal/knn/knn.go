// Package knn implements k-nearest-neighbor prediction over arbitrary items.
package knn

import (
	"sort"
	"time"

	"github.com/jengzang/daytrail-backend-go/internal/spatial"
)

// DecisionType selects how the response is chosen from the neighbor set
type DecisionType int

const (
	// MaxVote picks the label occurring most often among the neighbors
	MaxVote DecisionType = iota
	// MinAverageDistance picks the label whose neighbors are closest on average
	MinAverageDistance
)

func (d DecisionType) String() string {
	switch d {
	case MaxVote:
		return "max_vote"
	case MinAverageDistance:
		return "min_average_distance"
	default:
		return "unknown"
	}
}

// ParseDecisionType parses the String form, defaulting to MinAverageDistance
func ParseDecisionType(s string) DecisionType {
	if s == MaxVote.String() {
		return MaxVote
	}
	return MinAverageDistance
}

// Neighbor is a dataset item paired with its distance to the test instance
type Neighbor[T any] struct {
	Item     T
	Distance float64
}

// Neighbors returns the min(k, len(dataset)) items closest to test, nearest first.
// Items at equal distance keep their dataset order.
func Neighbors[T any](test T, k int, dataset []T, distance func(a, b T) float64) []Neighbor[T] {
	if k <= 0 || len(dataset) == 0 {
		return nil
	}

	all := make([]Neighbor[T], len(dataset))
	for i, candidate := range dataset {
		all[i] = Neighbor[T]{Item: candidate, Distance: distance(test, candidate)}
	}
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Distance < all[j].Distance
	})

	if k > len(all) {
		k = len(all)
	}
	return all[:k]
}

// Predict returns the representative neighbor of the winning label.
// ok is false when k <= 0 or dataset is empty.
//
// Ties between labels go to the label whose nearest member ranks first in the
// neighbor list; the representative of a label is its nearest member.
func Predict[T any, L comparable](test T, k int, dataset []T, distance func(a, b T) float64, label func(T) L, decision DecisionType) (T, bool) {
	return respond(Neighbors(test, k, dataset, distance), label, decision)
}

type vote[T any] struct {
	representative T
	count          int
	distanceSum    float64
}

func respond[T any, L comparable](neighbors []Neighbor[T], label func(T) L, decision DecisionType) (T, bool) {
	var zero T
	if len(neighbors) == 0 {
		return zero, false
	}

	// order holds labels by first appearance, which is nearest-first
	var order []L
	votes := make(map[L]*vote[T])
	for _, n := range neighbors {
		l := label(n.Item)
		v, ok := votes[l]
		if !ok {
			v = &vote[T]{representative: n.Item}
			votes[l] = v
			order = append(order, l)
		}
		v.count++
		v.distanceSum += n.Distance
	}

	best := votes[order[0]]
	for _, l := range order[1:] {
		v := votes[l]
		switch decision {
		case MaxVote:
			if v.count > best.count {
				best = v
			}
		case MinAverageDistance:
			if v.distanceSum/float64(v.count) < best.distanceSum/float64(best.count) {
				best = v
			}
		}
	}
	return best.representative, true
}

// Attributes are the features an Instance is compared on
type Attributes struct {
	Latitude  float64
	Longitude float64
	Timestamp time.Time
}

// Instance is an item that can be classified by location
type Instance[L comparable] interface {
	Attributes() Attributes
	Label() L
}

// GeodesicDistance is the great-circle distance in meters between two instances
func GeodesicDistance[I Instance[L], L comparable](a, b I) float64 {
	aa, ba := a.Attributes(), b.Attributes()
	return spatial.HaversineDistance(aa.Latitude, aa.Longitude, ba.Latitude, ba.Longitude)
}

// Classify runs Predict over instances using geodesic distance and Label
func Classify[I Instance[L], L comparable](test I, k int, dataset []I, decision DecisionType) (I, bool) {
	return Predict(test, k, dataset, GeodesicDistance[I, L], func(i I) L { return i.Label() }, decision)
}
