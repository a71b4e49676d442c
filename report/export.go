package report

import (
	"context"

	"github.com/xuri/excelize/v2"

	"bitbucket.org/Davydov/phyinf/store"
)

// Sheet names of the exported workbook.
const (
	LociSheet     = "loci"
	NetSheet      = "net"
	DiscreteSheet = "discrete"
	IntervalSheet = "interval"
)

// sheet accumulates rows of a worksheet.
type sheet struct {
	name string
	rows [][]interface{}
}

func (sh *sheet) add(row ...interface{}) {
	sh.rows = append(sh.rows, row)
}

// ExportXLSX writes the stored results to a spreadsheet, one sheet per
// table.
func ExportXLSX(ctx context.Context, s *store.Store, fileName string) error {
	loci, err := s.Loci(ctx)
	if err != nil {
		return err
	}

	lociSh := &sheet{name: LociSheet}
	lociSh.add("id", "locus")
	netSh := &sheet{name: NetSheet}
	netSh.add("locus", "time", "pi")
	discreteSh := &sheet{name: DiscreteSheet}
	discreteSh.add("locus", "time", "pi")
	for _, l := range loci {
		lociSh.add(l.ID, l.Name)
		net, err := s.Net(ctx, l.Name)
		if err != nil {
			return err
		}
		for _, p := range net {
			netSh.add(l.Name, p.Time, p.PI)
		}
		discrete, err := s.Discrete(ctx, l.Name)
		if err != nil {
			return err
		}
		for _, p := range discrete {
			discreteSh.add(l.Name, p.Time, p.PI)
		}
	}

	intervalSh := &sheet{name: IntervalSheet}
	intervalSh.add("locus", "epoch", "pi", "error")
	labels, err := s.Intervals(ctx)
	if err != nil {
		return err
	}
	SortEpochs(labels)
	for _, label := range labels {
		rows, err := s.TopByInterval(ctx, label, 0)
		if err != nil {
			return err
		}
		for _, r := range rows {
			intervalSh.add(r.Locus, r.Epoch, r.PI, r.Error)
		}
	}

	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", LociSheet); err != nil {
		return err
	}
	for _, sh := range []*sheet{lociSh, netSh, discreteSh, intervalSh} {
		if sh.name != LociSheet {
			if _, err := f.NewSheet(sh.name); err != nil {
				return err
			}
		}
		for i, row := range sh.rows {
			cell, err := excelize.CoordinatesToCellName(1, i+1)
			if err != nil {
				return err
			}
			if err := f.SetSheetRow(sh.name, cell, &row); err != nil {
				return err
			}
		}
	}
	log.Debugf("exporting %d loci to %s", len(loci), fileName)
	return f.SaveAs(fileName)
}
