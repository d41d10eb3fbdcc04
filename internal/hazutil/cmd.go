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

// Package hazutil holds the pshazard command-line tool's ambient stack:
// configuration (cobra/viper/pflag), logging (logrus), and the fixture
// loader that stands in for the out-of-scope source-model collaborator.
package hazutil

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Version is the pshazard build version.
const Version = "0.1.0"

// Cfg holds the command tree and bound configuration.
type Cfg struct {
	*viper.Viper

	Root    *cobra.Command
	runCmd  *cobra.Command
	verCmd  *cobra.Command

	Log *logrus.Logger
}

// InitializeConfig builds the pshazard command tree and binds its flags
// to a fresh Viper instance, mirroring the teacher's Cfg wiring
// (inmaputil.InitializeConfig): a persistent --config flag read by
// PersistentPreRunE, plus one flag set per subcommand bound into the
// same Viper so flags, a config file, and PSHA_-prefixed environment
// variables can all supply a value.
func InitializeConfig() *Cfg {
	cfg := &Cfg{
		Viper: viper.New(),
		Log:   logrus.StandardLogger(),
	}

	cfg.Root = &cobra.Command{
		Use:   "pshazard",
		Short: "A probabilistic seismic hazard analysis engine.",
		Long: `pshazard computes probabilistic seismic hazard curves for one site at a
time and, optionally, deaggregates them by distance, magnitude, and epsilon.

Configuration can be changed by using a configuration file (--config), by
using command-line flags, or by setting environment variables in the format
'PSHA_var' where 'var' is the name of the variable to set. Refer to
https://github.com/spf13/viper for additional configuration information.`,
		DisableAutoGenTag: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return setConfig(cfg)
		},
	}
	cfg.Root.PersistentFlags().String("config", "", "path to a configuration file")
	cfg.BindPFlag("config", cfg.Root.PersistentFlags().Lookup("config"))

	cfg.verCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf("pshazard v%s\n", Version)
		},
		DisableAutoGenTag: true,
	}

	cfg.runCmd = &cobra.Command{
		Use:   "run",
		Short: "Compute a hazard curve, and optionally a deaggregation, for one site.",
		Long: `run loads a source model from a fixture file, computes a hazard curve for
the configured site, and writes the result as JSON.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return RunHazard(cfg)
		},
		DisableAutoGenTag: true,
	}
	addRunFlags(cfg)

	cfg.Root.AddCommand(cfg.verCmd, cfg.runCmd)

	cfg.SetEnvPrefix("PSHA")
	cfg.AutomaticEnv()
	return cfg
}

type flagOpt struct {
	name  string
	usage string
	def   interface{}
}

func addRunFlags(cfg *Cfg) {
	opts := []flagOpt{
		{"model", "path to a JSON source-model fixture file", ""},
		{"site.name", "site name", ""},
		{"site.lat", "site latitude", 0.0},
		{"site.lon", "site longitude", 0.0},
		{"site.vs30", "site Vs30 in m/s (NaN uses the GMM default)", math.NaN()},
		{"site.vsinferred", "whether site Vs30 was inferred rather than measured", false},
		{"site.z1p0", "depth to Vs=1.0 km/s, in km (NaN uses the GMM default)", math.NaN()},
		{"site.z2p5", "depth to Vs=2.5 km/s, in km (NaN uses the GMM default)", math.NaN()},
		{"threads", "concurrency level: ONE, HALF, N_MINUS_2, or ALL", "ALL"},
		{"output", `output file path, or "-" for stdout`, "-"},
		{"exceedance.type", "truncation policy: untruncated, upper, or twosided", "untruncated"},
		{"exceedance.level", "truncation level, in standard deviations (ignored for untruncated)", 3.0},
		{"deagg", "also compute a deaggregation", false},
		{"deagg.imt", "IMT to deaggregate", ""},
		{"deagg.iml", "natural-log intensity level to deaggregate at", 0.0},
		{"deagg.topn", "number of top per-source contributions to report", 10},
		{"deagg.bins.rmin", "distance bin model: minimum, in km", 0.0},
		{"deagg.bins.rmax", "distance bin model: maximum, in km", 300.0},
		{"deagg.bins.rwidth", "distance bin model: bin width, in km", 10.0},
		{"deagg.bins.mmin", "magnitude bin model: minimum", 4.0},
		{"deagg.bins.mmax", "magnitude bin model: maximum", 9.0},
		{"deagg.bins.mwidth", "magnitude bin model: bin width", 0.5},
		{"deagg.bins.emin", "epsilon bin model: minimum", -3.0},
		{"deagg.bins.emax", "epsilon bin model: maximum", 3.0},
		{"deagg.bins.ewidth", "epsilon bin model: bin width", 0.5},
	}
	fs := cfg.runCmd.Flags()
	for _, o := range opts {
		switch d := o.def.(type) {
		case string:
			fs.String(o.name, d, o.usage)
		case float64:
			fs.Float64(o.name, d, o.usage)
		case bool:
			fs.Bool(o.name, d, o.usage)
		case int:
			fs.Int(o.name, d, o.usage)
		default:
			panic(fmt.Errorf("hazutil: invalid flag default type %T", o.def))
		}
		cfg.BindPFlag(o.name, fs.Lookup(o.name))
	}
}

// setConfig finds and reads in the configuration file, if one was given.
func setConfig(cfg *Cfg) error {
	if path := cfg.GetString("config"); path != "" {
		cfg.SetConfigFile(path)
		if err := cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("pshazard: reading configuration file: %w", err)
		}
	}
	return nil
}
