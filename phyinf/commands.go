package main

import (
	"context"
	"fmt"
	"io"
	"math"
	"text/tabwriter"

	"gonum.org/v1/plot/vg"

	"bitbucket.org/Davydov/phyinf/report"
	"bitbucket.org/Davydov/phyinf/store"
	"bitbucket.org/Davydov/phyinf/tree"
)

// normalizeTree rescales a tree and prints the result.
func normalizeTree(fileName, format, dir string) error {
	f, err := tree.ParseFormat(format)
	if err != nil {
		return err
	}
	n, err := tree.NormalizeFile(fileName, f, dir)
	if err != nil {
		return err
	}
	fmt.Printf("depth\t%s\ncorrection\t%s\ntree\t%s\n",
		tree.FormatLength(n.Depth), tree.FormatLength(n.Correction), n.Path)
	return nil
}

// listIntervals prints the top loci for every epoch.
func listIntervals(ctx context.Context, w io.Writer, dbPath string, tables store.Tables, top int) error {
	s, err := store.OpenRead(dbPath, tables)
	if err != nil {
		return err
	}
	defer s.Close()

	labels, err := s.Intervals(ctx)
	if err != nil {
		return err
	}
	report.SortEpochs(labels)

	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	fmt.Fprintln(tw, "epoch\trank\tlocus\tpi\terror")
	for _, label := range labels {
		rows, err := s.TopByInterval(ctx, label, top)
		if err != nil {
			return err
		}
		for i, r := range rows {
			fmt.Fprintf(tw, "%s\t%d\t%s\t%g\t%g\n", label, i+1, r.Locus, r.PI, r.Error)
		}
	}
	return tw.Flush()
}

// compareDatabases prints the mean integral of the top loci per epoch
// for every database and optionally plots the sums.
func compareDatabases(ctx context.Context, w io.Writer, dbPaths []string, tables store.Tables, top int, plotFile string) error {
	stores := make([]*store.Store, len(dbPaths))
	for i, p := range dbPaths {
		s, err := store.OpenRead(p, tables)
		if err != nil {
			return err
		}
		defer s.Close()
		stores[i] = s
	}

	cmp, err := report.Compare(ctx, report.Names(dbPaths), stores, top)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	fmt.Fprintln(tw, "database\tepoch\tn\tmean\tsum")
	for i, db := range cmp.Databases {
		for j, epoch := range cmp.Epochs {
			st := cmp.Stats[i][j]
			mean := "NA"
			if !math.IsNaN(st.Mean) {
				mean = fmt.Sprintf("%g", st.Mean)
			}
			fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%g\n", db, epoch, st.N, mean, st.Sum)
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if plotFile != "" {
		if err := report.PlotComparison(plotFile, cmp, 8*vg.Inch, 5*vg.Inch); err != nil {
			return err
		}
		log.Noticef("Comparison plotted to %s", plotFile)
	}
	return nil
}

// plotNet plots net informativeness of the loci.
func plotNet(ctx context.Context, dbPath string, tables store.Tables, loci []string, fileName string, width, height float64) error {
	s, err := store.OpenRead(dbPath, tables)
	if err != nil {
		return err
	}
	defer s.Close()

	series, err := report.NetSeries(ctx, s, loci)
	if err != nil {
		return err
	}
	if err := report.PlotNet(fileName, series, vg.Length(width)*vg.Inch, vg.Length(height)*vg.Inch); err != nil {
		return err
	}
	log.Noticef("%d loci plotted to %s", len(series), fileName)
	return nil
}

// export writes a database to a spreadsheet.
func export(ctx context.Context, dbPath string, tables store.Tables, fileName string) error {
	s, err := store.OpenRead(dbPath, tables)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := report.ExportXLSX(ctx, s, fileName); err != nil {
		return err
	}
	log.Noticef("Database exported to %s", fileName)
	return nil
}
