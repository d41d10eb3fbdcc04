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

import (
	"fmt"
	"math"

	"github.com/ctessum/psha/exceedance"
	"github.com/ctessum/psha/internal/workpool"
)

// PoolSize names the four concurrency levels the engine supports
// (spec.md §5): ONE runs every task on the caller (via a one-worker
// pool, not literally inline, since ordering-preserving join makes the
// two equivalent); HALF, N_MINUS_2, and ALL scale with host CPUs.
type PoolSize = workpool.Size

const (
	PoolOne     = workpool.One
	PoolHalf    = workpool.Half
	PoolNMinus2 = workpool.NMinus2
	PoolAll     = workpool.All
)

// ParsePoolSize parses one of "ONE", "HALF", "N_MINUS_2", "ALL".
func ParsePoolSize(s string) (PoolSize, bool) { return workpool.ParseSize(s) }

// Config is the engine-construction-time and per-call configuration for
// Engine.Hazard.
type Config struct {
	// Grids gives the x-grid (bin model) for curves, one per IMT that
	// may be requested.
	Grids map[string]*Grid

	// Exceedance is the exceedance model (and, implicitly, the chosen
	// truncation policy) used to integrate rupture contributions into
	// curves and, later, deaggregation bins.
	Exceedance exceedance.Model

	// Threads selects the engine's concurrency level.
	Threads PoolSize

	// GridSourceOptimization is an optional flag for Grid source sets,
	// carried with the configuration. The engine does not read it, and
	// it has no effect on the results of this package.
	GridSourceOptimization bool

	// SystemPartitionSize is the chunk size used to partition a System
	// source set's rupture list for parallel processing (spec.md §4.5).
	// Zero selects the default of 1024.
	SystemPartitionSize int
}

// Validate checks the configuration is complete and internally
// consistent, returning ConfigInvalid on failure. It is called at
// Engine construction.
func (c *Config) Validate() error {
	if len(c.Grids) == 0 {
		return newErr(ConfigInvalid, "no x-grids configured")
	}
	for imt, g := range c.Grids {
		if g == nil || len(g.X) == 0 {
			return newErr(ConfigInvalid, "imt %q: empty x-grid", imt)
		}
	}
	if c.Exceedance == nil {
		return newErr(ConfigInvalid, "no exceedance model configured")
	}
	return nil
}

func (c *Config) partitionSize() int {
	if c.SystemPartitionSize > 0 {
		return c.SystemPartitionSize
	}
	return 1024
}

// Site is the location and site-response characteristics for a hazard
// calculation. NaN in Vs30, Z1p0, or Z2p5 means "use the GMM's
// default."
type Site struct {
	Name string
	Lat  float64
	Lon  float64

	Vs30       float64
	VsInferred bool
	Z1p0       float64
	Z2p5       float64
}

func (s Site) String() string {
	if s.Name != "" {
		return s.Name
	}
	return fmt.Sprintf("(%.4f, %.4f)", s.Lat, s.Lon)
}

// Validate checks the site's characteristics fall within the allowed
// ranges (spec.md §6), treating NaN as "unspecified" and therefore
// always valid.
func (s Site) Validate() error {
	if err := inRangeOrNaN("vs30", s.Vs30, 150, 2000); err != nil {
		return err
	}
	if err := inRangeOrNaN("z1p0", s.Z1p0, 0, 2); err != nil {
		return err
	}
	if err := inRangeOrNaN("z2p5", s.Z2p5, 0, 5); err != nil {
		return err
	}
	return nil
}

func inRangeOrNaN(name string, v, lo, hi float64) error {
	if math.IsNaN(v) {
		return nil
	}
	if v < lo || v > hi {
		return newErr(ConfigInvalid, "site %s=%v out of range [%v,%v]", name, v, lo, hi)
	}
	return nil
}
