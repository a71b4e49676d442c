// Package store keeps informativeness results in an SQLite database.
//
// The database has a parent table with one row per locus and three
// child tables referencing it: net informativeness for every time,
// informativeness at the requested times and epoch integrals.
package store

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/op/go-logging"

	"bitbucket.org/Davydov/phyinf/locus"
	"bitbucket.org/Davydov/phyinf/pi"
)

var log = logging.MustGetLogger("store")

//go:embed schema.sql
var schemaSQL string

// DefaultName is the database file name in the output directory.
const DefaultName = "phylogenetic-informativeness.sqlite"

// ErrDatabaseExists is returned by Open with the Fail policy if the
// database file exists.
var ErrDatabaseExists = errors.New("database already exists")

// Policy defines what to do with an existing database.
type Policy int

const (
	// Fail refuses to use an existing database.
	Fail Policy = iota
	// Overwrite removes an existing database.
	Overwrite
	// Append adds loci to an existing database.
	Append
)

func (p Policy) String() string {
	switch p {
	case Fail:
		return "fail"
	case Overwrite:
		return "overwrite"
	case Append:
		return "append"
	}
	return fmt.Sprintf("Policy(%d)", int(p))
}

// ParsePolicy converts a policy name to Policy.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(s) {
	case "fail":
		return Fail, nil
	case "overwrite":
		return Overwrite, nil
	case "append":
		return Append, nil
	}
	return Fail, fmt.Errorf("unknown database policy: %q", s)
}

// Tables are the table names.
type Tables struct {
	Loci     string `yaml:"loci"`
	Net      string `yaml:"net"`
	Discrete string `yaml:"discrete"`
	Interval string `yaml:"interval"`
}

// DefaultTables returns the standard table names.
func DefaultTables() Tables {
	return Tables{
		Loci:     "loci",
		Net:      "net",
		Discrete: "discrete",
		Interval: "interval",
	}
}

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Validate checks that the names are distinct identifiers.
func (t Tables) Validate() error {
	seen := make(map[string]bool, 4)
	for _, name := range []string{t.Loci, t.Net, t.Discrete, t.Interval} {
		if !identifier.MatchString(name) {
			return fmt.Errorf("invalid table name: %q", name)
		}
		if seen[strings.ToLower(name)] {
			return fmt.Errorf("duplicate table name: %q", name)
		}
		seen[strings.ToLower(name)] = true
	}
	return nil
}

// expand substitutes table names into a query.
func (t Tables) expand(query string) string {
	return strings.NewReplacer(
		"{loci}", `"`+t.Loci+`"`,
		"{net}", `"`+t.Net+`"`,
		"{discrete}", `"`+t.Discrete+`"`,
		"{interval}", `"`+t.Interval+`"`,
	).Replace(query)
}

// Store is a results database.
type Store struct {
	db     *sqlx.DB
	tables Tables
}

// Open opens the database for writing. The policy is applied before
// anything is written.
func Open(path string, policy Policy, tables Tables) (*Store, error) {
	if err := tables.Validate(); err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); err == nil {
		switch policy {
		case Fail:
			return nil, fmt.Errorf("%w: %s", ErrDatabaseExists, path)
		case Overwrite:
			log.Infof("Removing existing database %s", path)
			if err := os.Remove(path); err != nil {
				return nil, err
			}
		case Append:
			log.Infof("Appending to existing database %s", path)
		default:
			return nil, fmt.Errorf("unknown database policy: %v", policy)
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	s, err := open(path, tables)
	if err != nil {
		return nil, err
	}
	if _, err := s.db.Exec(tables.expand(schemaSQL)); err != nil {
		s.db.Close()
		return nil, fmt.Errorf("failed to execute schema: %w", err)
	}
	return s, nil
}

// OpenRead opens an existing database for queries.
func OpenRead(path string, tables Tables) (*Store, error) {
	if err := tables.Validate(); err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	return open("file:"+path+"?mode=ro", tables)
}

// Empty reports whether the database at path is absent or has no
// loci, e.g. when a previous run failed before storing its results.
func Empty(ctx context.Context, path string, tables Tables) (bool, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return true, nil
	}
	s, err := OpenRead(path, tables)
	if err != nil {
		return false, err
	}
	defer s.Close()
	var n int
	if err := s.db.GetContext(ctx, &n, tables.expand(`SELECT COUNT(*) FROM {loci}`)); err != nil {
		return false, err
	}
	return n == 0, nil
}

func open(dsn string, tables Tables) (*Store, error) {
	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	// Single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return &Store{db: db, tables: tables}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record is the stored part of a locus result.
type Record struct {
	Locus     string
	Net       []float64
	Discrete  []pi.Sample
	Intervals []pi.Integral
}

// NewRecord creates a record from a locus summary.
func NewRecord(s *locus.Summary) Record {
	return Record{
		Locus:     s.Locus,
		Net:       s.Net,
		Discrete:  s.Discrete,
		Intervals: s.Intervals,
	}
}

// Persist stores records in a single transaction. Nothing is stored
// if any insert fails.
func (s *Store) Persist(ctx context.Context, records []Record) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	insNet, err := tx.PreparexContext(ctx, s.tables.expand(`INSERT INTO {net} (id, time, pi) VALUES (?, ?, ?)`))
	if err != nil {
		return err
	}
	defer insNet.Close()
	insDiscrete, err := tx.PreparexContext(ctx, s.tables.expand(`INSERT INTO {discrete} (id, time, pi) VALUES (?, ?, ?)`))
	if err != nil {
		return err
	}
	defer insDiscrete.Close()
	insInterval, err := tx.PreparexContext(ctx, s.tables.expand(`INSERT INTO {interval} (id, epoch, pi, error) VALUES (?, ?, ?, ?)`))
	if err != nil {
		return err
	}
	defer insInterval.Close()

	for _, rec := range records {
		res, err := tx.ExecContext(ctx, s.tables.expand(`INSERT INTO {loci} (locus) VALUES (?)`), rec.Locus)
		if err != nil {
			return fmt.Errorf("%s: %w", rec.Locus, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		for t, v := range rec.Net {
			if _, err := insNet.ExecContext(ctx, id, t, v); err != nil {
				return fmt.Errorf("%s: %w", rec.Locus, err)
			}
		}
		for _, d := range rec.Discrete {
			if _, err := insDiscrete.ExecContext(ctx, id, d.Time, d.PI); err != nil {
				return fmt.Errorf("%s: %w", rec.Locus, err)
			}
		}
		for _, i := range rec.Intervals {
			if _, err := insInterval.ExecContext(ctx, id, i.Label, i.Sum, i.Error); err != nil {
				return fmt.Errorf("%s: %w", rec.Locus, err)
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	log.Debugf("stored %d loci", len(records))
	return nil
}
