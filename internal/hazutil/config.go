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

package hazutil

import (
	"github.com/spf13/cast"

	"github.com/ctessum/psha"
)

// poolSize parses cfg's "threads" setting via cast (the same
// permissive string/number coercion the teacher's config layer uses for
// stringly-typed Viper values) before falling back to psha.ParsePoolSize
// for the ONE/HALF/N_MINUS_2/ALL vocabulary.
func poolSize(cfg *Cfg) (psha.PoolSize, error) {
	raw, err := cast.ToStringE(cfg.Get("threads"))
	if err != nil {
		return 0, psha.WithCause(psha.ConfigInvalid, err, "hazutil: threads setting is not a string")
	}
	if raw == "" {
		return psha.PoolAll, nil
	}
	size, ok := psha.ParsePoolSize(raw)
	if !ok {
		return 0, psha.NewError(psha.ConfigInvalid, "hazutil: invalid threads setting %q", raw)
	}
	return size, nil
}

// site builds a psha.Site from cfg's bound "site.*" settings.
func site(cfg *Cfg) psha.Site {
	return psha.Site{
		Name:       cfg.GetString("site.name"),
		Lat:        cfg.GetFloat64("site.lat"),
		Lon:        cfg.GetFloat64("site.lon"),
		Vs30:       cfg.GetFloat64("site.vs30"),
		VsInferred: cfg.GetBool("site.vsinferred"),
		Z1p0:       cfg.GetFloat64("site.z1p0"),
		Z2p5:       cfg.GetFloat64("site.z2p5"),
	}
}
