// Package report presents stored informativeness: plots, spreadsheets
// and comparisons between databases.
package report

import (
	"context"
	"errors"
	"fmt"

	"github.com/op/go-logging"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"bitbucket.org/Davydov/phyinf/store"
)

var log = logging.MustGetLogger("report")

// Series is net informativeness of a locus over time.
type Series struct {
	Locus  string
	Points []store.Point
}

// NetSeries reads net informativeness of the loci. All the loci are
// used if none are given.
func NetSeries(ctx context.Context, s *store.Store, loci []string) ([]Series, error) {
	if len(loci) == 0 {
		all, err := s.Loci(ctx)
		if err != nil {
			return nil, err
		}
		for _, l := range all {
			loci = append(loci, l.Name)
		}
	}
	series := make([]Series, 0, len(loci))
	for _, name := range loci {
		points, err := s.Net(ctx, name)
		if err != nil {
			return nil, err
		}
		if len(points) == 0 {
			return nil, fmt.Errorf("no data for locus %s", name)
		}
		series = append(series, Series{name, points})
	}
	return series, nil
}

// PlotNet plots net informativeness over time, one line per locus.
// The image format is determined by the file extension.
func PlotNet(fileName string, series []Series, width, height vg.Length) error {
	if len(series) == 0 {
		return errors.New("nothing to plot")
	}
	p := plot.New()
	p.Title.Text = "Net phylogenetic informativeness"
	p.X.Label.Text = "Time"
	p.Y.Label.Text = "PI"

	lines := make([]interface{}, 0, 2*len(series))
	for _, s := range series {
		pts := make(plotter.XYs, len(s.Points))
		for i, pt := range s.Points {
			pts[i].X = float64(pt.Time)
			pts[i].Y = pt.PI
		}
		lines = append(lines, s.Locus, pts)
	}
	if err := plotutil.AddLines(p, lines...); err != nil {
		return err
	}
	log.Debugf("plotting %d loci to %s", len(series), fileName)
	return p.Save(width, height, fileName)
}

// PlotComparison draws a bar chart of the summed top integrals per
// epoch, one bar group per database.
func PlotComparison(fileName string, cmp *Comparison, width, height vg.Length) error {
	if len(cmp.Databases) == 0 || len(cmp.Epochs) == 0 {
		return errors.New("nothing to plot")
	}
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Top %d loci", cmp.Top)
	p.X.Label.Text = "Interval"
	p.Y.Label.Text = "Sum of PI"
	p.Legend.Top = true

	w := vg.Points(60 / float64(len(cmp.Databases)))
	for i, db := range cmp.Databases {
		values := make(plotter.Values, len(cmp.Epochs))
		for j := range cmp.Epochs {
			values[j] = cmp.Stats[i][j].Sum
		}
		bars, err := plotter.NewBarChart(values, w)
		if err != nil {
			return err
		}
		bars.LineStyle.Width = vg.Length(0)
		bars.Color = plotutil.Color(i)
		bars.Offset = w * vg.Length(float64(i)-float64(len(cmp.Databases)-1)/2)
		p.Add(bars)
		p.Legend.Add(db, bars)
	}
	p.NominalX(cmp.Epochs...)
	return p.Save(width, height, fileName)
}
