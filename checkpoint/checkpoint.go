// Package checkpoint keeps summaries of finished loci, so that an
// interrupted run can be resumed.
package checkpoint

import (
	"encoding/json"
	"time"

	"github.com/op/go-logging"

	bolt "go.etcd.io/bbolt"

	"bitbucket.org/Davydov/phyinf/locus"
)

// log is the global logging variable.
var log = logging.MustGetLogger("checkpoint")

// LOCI is the bucket name for locus summaries.
var LOCI = []byte("loci")

// Checkpoint is a bolt database with locus summaries keyed by the
// locus name.
type Checkpoint struct {
	db *bolt.DB
}

// Open opens or creates a checkpoint file.
func Open(path string) (*Checkpoint, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}
	return &Checkpoint{db: db}, nil
}

// Close closes the database.
func (c *Checkpoint) Close() error {
	return c.db.Close()
}

// Save saves a locus summary.
func (c *Checkpoint) Save(s *locus.Summary) error {
	data, err := json.Marshal(s)
	if err != nil {
		log.Error("Error serializing checkpoint", err)
		return err
	}
	err = SaveData(c.db, []byte(s.Locus), data)
	if err != nil {
		log.Error("Error saving checkpoint", err)
	}
	return err
}

// Load returns the summary of a locus, or nil if the locus is not
// finished.
func (c *Checkpoint) Load(name string) (*locus.Summary, error) {
	b, err := LoadData(c.db, []byte(name))
	if err != nil || b == nil {
		return nil, err
	}
	var s *locus.Summary
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, err
	}
	log.Debugf("Found checkpoint for %s", name)
	return s, nil
}

// Done returns names of the finished loci.
func (c *Checkpoint) Done() (names []string, err error) {
	err = c.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(LOCI)
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, _ []byte) error {
			names = append(names, string(k))
			return nil
		})
	})
	return
}

// SaveData saves values in bolt database.
func SaveData(db *bolt.DB, key []byte, data []byte) error {
	if db == nil {
		return nil
	}
	return db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(LOCI)
		if err != nil {
			return err
		}
		return b.Put(key, data)
	})
}

// LoadData loads data from bolt database.
func LoadData(db *bolt.DB, key []byte) ([]byte, error) {
	var data []byte
	if db == nil {
		return nil, nil
	}
	err := db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(LOCI)
		if b == nil {
			return nil
		}
		if v := b.Get(key); v != nil {
			data = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}
