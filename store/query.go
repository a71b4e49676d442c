package store

import (
	"context"
)

// Locus is a row of the loci table.
type Locus struct {
	ID   int64  `db:"id"`
	Name string `db:"locus"`
}

// Point is informativeness at a time.
type Point struct {
	Time int     `db:"time"`
	PI   float64 `db:"pi"`
}

// Interval is an epoch integral of a locus.
type Interval struct {
	Locus string  `db:"locus"`
	Epoch string  `db:"epoch"`
	PI    float64 `db:"pi"`
	Error float64 `db:"error"`
}

// Loci returns all the loci in the insertion order.
func (s *Store) Loci(ctx context.Context) ([]Locus, error) {
	var loci []Locus
	err := s.db.SelectContext(ctx, &loci, s.tables.expand(`SELECT id, locus FROM {loci} ORDER BY id`))
	return loci, err
}

// Net returns net informativeness of a locus over time.
func (s *Store) Net(ctx context.Context, locus string) ([]Point, error) {
	var points []Point
	err := s.db.SelectContext(ctx, &points, s.tables.expand(`
		SELECT n.time, n.pi FROM {net} n JOIN {loci} l ON n.id = l.id
		WHERE l.locus = ? ORDER BY n.time`), locus)
	return points, err
}

// Discrete returns informativeness of a locus at the requested times.
func (s *Store) Discrete(ctx context.Context, locus string) ([]Point, error) {
	var points []Point
	err := s.db.SelectContext(ctx, &points, s.tables.expand(`
		SELECT d.time, d.pi FROM {discrete} d JOIN {loci} l ON d.id = l.id
		WHERE l.locus = ? ORDER BY d.rowid`), locus)
	return points, err
}

// Intervals returns distinct epoch labels in the insertion order.
func (s *Store) Intervals(ctx context.Context) ([]string, error) {
	var labels []string
	err := s.db.SelectContext(ctx, &labels, s.tables.expand(`
		SELECT epoch FROM {interval} GROUP BY epoch ORDER BY MIN(rowid)`))
	return labels, err
}

// TopByInterval returns at most n loci with the largest integral for
// the epoch; n <= 0 returns all of them.
func (s *Store) TopByInterval(ctx context.Context, epoch string, n int) ([]Interval, error) {
	if n <= 0 {
		n = -1
	}
	var top []Interval
	err := s.db.SelectContext(ctx, &top, s.tables.expand(`
		SELECT l.locus, i.epoch, i.pi, i.error FROM {interval} i JOIN {loci} l ON i.id = l.id
		WHERE i.epoch = ? ORDER BY i.pi DESC, l.id LIMIT ?`), epoch, n)
	return top, err
}
