// Command anglemap prints the pitch linkage conversion tables and can plot
// them, for checking a new geometry before it goes on the turret.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/banshee-data/dovechaser/internal/anglemap"
	"github.com/banshee-data/dovechaser/internal/config"
	"github.com/banshee-data/dovechaser/internal/monitor"
)

var (
	configPath = flag.String("config", "", "Aim config JSON (defaults apply when empty)")
	inverse    = flag.Bool("inverse", false, "Print the mechanical -> direct table instead")
	asJSON     = flag.Bool("json", false, "Print JSON instead of a table")
	plotPath   = flag.String("plot", "", "Also write a plot to this file (.png, .svg or .pdf)")
)

func main() {
	flag.Parse()

	cfg := config.EmptyAimConfig()
	if *configPath != "" {
		var err error
		if cfg, err = config.LoadAimConfig(*configPath); err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
	}

	m, err := anglemap.Build(anglemap.GeometryFromConfig(cfg))
	if err != nil {
		log.Fatalf("failed to build angle map: %v", err)
	}

	if err := write(os.Stdout, m, *inverse, *asJSON); err != nil {
		log.Fatalf("failed to write table: %v", err)
	}

	if *plotPath != "" {
		if err := monitor.PlotAngleMap(m, *plotPath); err != nil {
			log.Fatalf("failed to plot: %v", err)
		}
		log.Printf("wrote %s", *plotPath)
	}
}

func write(w io.Writer, m *anglemap.Map, inverse, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if inverse {
			return enc.Encode(m.InverseTable())
		}
		return enc.Encode(m.Table())
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	if inverse {
		fmt.Fprintln(tw, "beta\talphas\tinterpolated")
		for _, e := range m.InverseTable() {
			alphas := make([]string, len(e.Alphas))
			for i, a := range e.Alphas {
				alphas[i] = fmt.Sprintf("%.2f", a)
			}
			fmt.Fprintf(tw, "%d\t%s\t%t\n", e.Beta, strings.Join(alphas, " "), e.Interpolated)
		}
	} else {
		fmt.Fprintln(tw, "alpha\tbeta")
		for _, e := range m.Table() {
			fmt.Fprintf(tw, "%d\t%d\n", e.Alpha, e.Beta)
		}
	}
	return tw.Flush()
}
