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
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/ctessum/psha"
	"github.com/ctessum/psha/deagg"
	"github.com/ctessum/psha/exceedance"
)

// gmmSource is implemented by a Model that can also hand back the GmmSet
// it attached to a named source set, needed to rebuild a deagg.Config
// for that source set later. fixtureModelImpl implements it.
type gmmSource interface {
	GmmsByName(name string) (psha.GmmSet, bool)
}

// runResult is the JSON shape written by the run command.
type runResult struct {
	Site  string                        `json:"site"`
	Curve map[string][]curvePoint       `json:"curve"`
	Deagg map[string]map[string]dsJSON  `json:"deagg,omitempty"`
}

type curvePoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type dsJSON struct {
	RBar          float64                    `json:"rBar"`
	MBar          float64                    `json:"mBar"`
	EpsBar        float64                    `json:"epsBar"`
	Residual      float64                    `json:"residual"`
	Contributions []deagg.SourceContribution `json:"topContributions"`
}

// RunHazard is the "run" subcommand's implementation: load the fixture
// model, run the engine for one site, optionally deaggregate, and write
// the result as JSON to cfg's configured output.
func RunHazard(cfg *Cfg) error {
	modelPath := cfg.GetString("model")
	if modelPath == "" {
		return psha.NewError(psha.ConfigInvalid, "hazutil: --model is required")
	}
	model, grids, err := LoadFixtureModel(modelPath)
	if err != nil {
		return err
	}

	exModel, err := buildExceedanceModel(cfg)
	if err != nil {
		return err
	}
	threads, err := poolSize(cfg)
	if err != nil {
		return err
	}

	engineCfg := &psha.Config{
		Grids:      grids,
		Exceedance: exModel,
		Threads:    threads,
	}
	engine, err := psha.NewEngine(engineCfg)
	if err != nil {
		return err
	}
	engine.SetLogger(cfg.Log)

	st := site(cfg)
	hazard, err := engine.Hazard(context.Background(), model, st)
	if err != nil {
		return err
	}

	result := runResult{
		Site:  st.String(),
		Curve: map[string][]curvePoint{},
	}
	for _, imt := range hazard.Imts() {
		seq, ok := hazard.TotalCurve(imt)
		if !ok {
			continue
		}
		pts := make([]curvePoint, seq.Len())
		for i := 0; i < seq.Len(); i++ {
			pts[i] = curvePoint{X: seq.Grid().X[i], Y: seq.At(i)}
		}
		result.Curve[imt] = pts
	}

	if cfg.GetBool("deagg") {
		deaggResult, err := runDeagg(cfg, model, hazard)
		if err != nil {
			return err
		}
		result.Deagg = deaggResult
	}

	return writeResult(cfg, result)
}

func buildExceedanceModel(cfg *Cfg) (exceedance.Model, error) {
	level := cfg.GetFloat64("exceedance.level")
	switch cfg.GetString("exceedance.type") {
	case "", "untruncated":
		return exceedance.NewUntruncated(nil), nil
	case "upper":
		return exceedance.NewUpperTruncated(level, nil), nil
	case "twosided":
		return exceedance.NewTwoSidedTruncated(level, nil), nil
	default:
		return nil, psha.NewError(psha.ConfigInvalid, "hazutil: unknown exceedance.type %q", cfg.GetString("exceedance.type"))
	}
}

func buildBinModel(cfg *Cfg) (*deagg.BinModel, error) {
	bins, err := deagg.NewBinModel(
		cfg.GetFloat64("deagg.bins.rmin"), cfg.GetFloat64("deagg.bins.rmax"), cfg.GetFloat64("deagg.bins.rwidth"),
		cfg.GetFloat64("deagg.bins.mmin"), cfg.GetFloat64("deagg.bins.mmax"), cfg.GetFloat64("deagg.bins.mwidth"),
		cfg.GetFloat64("deagg.bins.emin"), cfg.GetFloat64("deagg.bins.emax"), cfg.GetFloat64("deagg.bins.ewidth"),
	)
	if err != nil {
		return nil, psha.WithCause(psha.ConfigInvalid, err, "hazutil: invalid deagg bin model")
	}
	return bins, nil
}

// runDeagg deaggregates every curve set in hazard at the configured IMT
// and iml, grouped by GMM, per source set, returning {sourceSetName ->
// {gmm -> dataset}}.
func runDeagg(cfg *Cfg, model psha.Model, hazard *psha.Hazard) (map[string]map[string]dsJSON, error) {
	imt := cfg.GetString("deagg.imt")
	if imt == "" {
		return nil, psha.NewError(psha.ConfigInvalid, "hazutil: --deagg.imt is required when --deagg is set")
	}
	exModel, err := buildExceedanceModel(cfg)
	if err != nil {
		return nil, err
	}
	bins, err := buildBinModel(cfg)
	if err != nil {
		return nil, err
	}
	gs, ok := model.(gmmSource)
	if !ok {
		return nil, psha.NewError(psha.ConfigInvalid, "hazutil: model does not support deaggregation lookups")
	}
	topN := cfg.GetInt("deagg.topn")
	iml := cfg.GetFloat64("deagg.iml")

	out := make(map[string]map[string]dsJSON, len(hazard.CurveSets()))
	for _, cs := range hazard.CurveSets() {
		gmms, ok := gs.GmmsByName(cs.SourceSetName)
		if !ok {
			return nil, psha.NewError(psha.ConfigInvalid, "hazutil: no gmm set found for source set %q", cs.SourceSetName)
		}
		dcfg := &deagg.Config{
			IMT:   imt,
			IML:   iml,
			Model: exModel,
			Gmms:  gmms,
			Bins:  bins,
			TopN:  topN,
		}
		byGmm, err := deagg.Deaggregate(cs, dcfg)
		if err != nil {
			return nil, err
		}
		perGmm := make(map[string]dsJSON, len(byGmm))
		for gmm, ds := range byGmm {
			perGmm[gmm] = dsJSON{
				RBar:          ds.RBar(),
				MBar:          ds.MBar(),
				EpsBar:        ds.EpsBar(),
				Residual:      ds.Residual(),
				Contributions: ds.TopContributors(topN),
			}
		}
		out[cs.SourceSetName] = perGmm
	}
	return out, nil
}

func writeResult(cfg *Cfg, result runResult) error {
	enc, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return psha.WithCause(psha.NumericFault, err, "hazutil: encoding result")
	}
	outPath := cfg.GetString("output")
	if outPath == "" || outPath == "-" {
		_, err := fmt.Println(string(enc))
		return err
	}
	if err := os.WriteFile(outPath, append(enc, '\n'), 0644); err != nil {
		return psha.WithCause(psha.External, err, "hazutil: writing output %q", outPath)
	}
	return nil
}
