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

// Package exceedance implements component D of the hazard pipeline: a
// pure mapping from a ground motion's lognormal distribution (mu,
// sigma), a truncation policy, and a target intensity level to the
// probability that a single rupture produces ground motion at or above
// that level.
package exceedance

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// Model maps (mu, sigma, iml) to an exceedance probability in [0,1]
// under a (possibly truncated) lognormal ground-motion distribution.
// iml is in natural-log units, matching the Sequence x-grid. All Models
// are stateless and safe for concurrent use.
type Model interface {
	Exceedance(mu, sigma, iml float64, imt string) (float64, error)
}

// untruncated computes P(X >= iml) for X ~ Normal(mu, sigma), with no
// truncation.
type untruncated struct {
	clamps map[string]float64
}

// NewUntruncated returns an exceedance Model with no truncation. clamps
// optionally maps an IMT name to the maximum physical ground-motion
// value (in linear units; its natural log is compared against iml) that
// IMT can take; intensity levels above the clamp always report zero
// exceedance probability.
func NewUntruncated(clamps map[string]float64) Model {
	return &untruncated{clamps: clamps}
}

func (m *untruncated) Exceedance(mu, sigma, iml float64, imt string) (float64, error) {
	if err := validate(mu, sigma); err != nil {
		return 0, err
	}
	if clamped(m.clamps, imt, iml) {
		return 0, nil
	}
	n := distuv.Normal{Mu: mu, Sigma: sigma}
	return 1 - n.CDF(iml), nil
}

// upperTruncated computes P(X >= iml) for X ~ Normal(mu, sigma)
// truncated above at mu + level*sigma (ground motion cannot exceed that
// physical ceiling).
type upperTruncated struct {
	level  float64
	clamps map[string]float64
}

// NewUpperTruncated returns an exceedance Model truncated above at
// level standard deviations from the mean.
func NewUpperTruncated(level float64, clamps map[string]float64) Model {
	return &upperTruncated{level: level, clamps: clamps}
}

func (m *upperTruncated) Exceedance(mu, sigma, iml float64, imt string) (float64, error) {
	if err := validate(mu, sigma); err != nil {
		return 0, err
	}
	if clamped(m.clamps, imt, iml) {
		return 0, nil
	}
	z := (iml - mu) / sigma
	if z > m.level {
		return 0, nil
	}
	n := distuv.Normal{Mu: 0, Sigma: 1}
	phiLevel := n.CDF(m.level)
	return (phiLevel - n.CDF(z)) / phiLevel, nil
}

// twoSided computes P(X >= iml) for X ~ Normal(mu, sigma) truncated
// symmetrically at mu +/- level*sigma.
type twoSided struct {
	level  float64
	clamps map[string]float64
}

// NewTwoSidedTruncated returns an exceedance Model truncated
// symmetrically at +/- level standard deviations from the mean.
func NewTwoSidedTruncated(level float64, clamps map[string]float64) Model {
	return &twoSided{level: level, clamps: clamps}
}

func (m *twoSided) Exceedance(mu, sigma, iml float64, imt string) (float64, error) {
	if err := validate(mu, sigma); err != nil {
		return 0, err
	}
	if clamped(m.clamps, imt, iml) {
		return 0, nil
	}
	z := (iml - mu) / sigma
	if z > m.level {
		return 0, nil
	}
	if z < -m.level {
		return 1, nil
	}
	n := distuv.Normal{Mu: 0, Sigma: 1}
	phiLevel := n.CDF(m.level)
	phiNegLevel := n.CDF(-m.level)
	return (phiLevel - n.CDF(z)) / (phiLevel - phiNegLevel), nil
}

func clamped(clamps map[string]float64, imt string, iml float64) bool {
	if clamps == nil {
		return false
	}
	max, ok := clamps[imt]
	if !ok {
		return false
	}
	return iml > math.Log(max)
}

func validate(mu, sigma float64) error {
	if sigma <= 0 || math.IsNaN(mu) || math.IsNaN(sigma) || math.IsInf(mu, 0) || math.IsInf(sigma, 0) {
		return fmt.Errorf("exceedance: invalid distribution parameters mu=%v sigma=%v", mu, sigma)
	}
	return nil
}
