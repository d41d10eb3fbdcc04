/*
Copyright © 2026 the psha authors.
This file is part of psha, a probabilistic seismic hazard analysis engine.

psha is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

psha is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with psha.  If not, see <http://www.gnu.org/licenses/>.
*/

package psha

// SourceType tags the closed set of source-set kinds the pipeline
// dispatches on. It is a sum type, not open polymorphism: the engine
// and the deaggregator must know every case.
type SourceType int

const (
	Fault SourceType = iota
	// GridSet is the GRID source type: a regular grid of point sources.
	// Named to avoid colliding with the Grid x-axis type (sequence.go).
	GridSet
	Interface
	Slab
	Cluster
	System
)

func (t SourceType) String() string {
	switch t {
	case Fault:
		return "FAULT"
	case GridSet:
		return "GRID"
	case Interface:
		return "INTERFACE"
	case Slab:
		return "SLAB"
	case Cluster:
		return "CLUSTER"
	case System:
		return "SYSTEM"
	default:
		return "UNKNOWN"
	}
}

// isPlain reports whether t is processed via the plain Source/Rupture
// enumeration path (as opposed to System or Cluster).
func (t SourceType) isPlain() bool {
	switch t {
	case Fault, GridSet, Interface, Slab:
		return true
	default:
		return false
	}
}

// Model is the full catalog of source sets for a hazard calculation.
type Model interface {
	SourceSets() ([]SourceSet, error)
}

// SourceSet is an iterable, weighted collection of sources of one
// SourceType, restricted to a site location (distance filtering is
// applied upstream, by the collaborator).
type SourceSet interface {
	Name() string
	Type() SourceType
	// Weight is the source-set's logic-tree weight, applied to the
	// combined curve during consolidation (spec.md §4.5).
	Weight() float64
	Gmms() GmmSet
	// Sources returns the set's sources. Valid for Fault, Grid,
	// Interface, and Slab source sets; System and Cluster sets use
	// SystemRuptures/Clusters instead.
	Sources() ([]Source, error)
}

// SystemSourceSet is implemented by SourceSets of Type() == System: one
// flat list of ruptures rather than a nested Source -> Rupture
// structure.
type SystemSourceSet interface {
	SourceSet
	SystemRuptures() ([]Rupture, error)
}

// ClusterSourceSet is implemented by SourceSets of Type() == Cluster.
type ClusterSourceSet interface {
	SourceSet
	Clusters() ([]ClusterSource, error)
}

// ClusterSource is a set of fault variants assumed to rupture
// contemporaneously, combined by probabilistic OR (spec.md §4.5).
type ClusterSource interface {
	Name() string
	// Rate is the cluster's annual occurrence rate.
	Rate() float64
	// Weight is the cluster's logic-tree weight, applied before GMM
	// weighting during consolidation.
	Weight() float64
	Variants() ([]Source, error)
}

// Source is a generator of ruptures, restricted to a site location.
type Source interface {
	Name() string
	Ruptures() ([]Rupture, error)
}

// Rupture is a single slip event. ToInput computes its ground-motion
// predictor parameters and annual rate relative to site.
type Rupture interface {
	ToInput(site Site) (HazardInput, error)
}

// GmmSet enumerates the ground-motion models applicable to a source set
// and their distance-dependent weights.
type GmmSet interface {
	Gmms() []string
	Gmm(name string) (GroundMotionModel, error)
	// WeightMap returns the GMM weights applicable at the given
	// distance; weights for GMMs present sum to 1. GMMs absent from the
	// returned map do not apply at that distance.
	WeightMap(distance float64) (map[string]float64, error)
}

// GroundMotionModel is a stateless predictor from rupture/site
// parameters to a lognormal ground-motion distribution.
type GroundMotionModel interface {
	Evaluate(input HazardInput, imt string) (mu, sigma float64, err error)
}
