package rates

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// ErrRateSourceUnavailable is returned if the rate file cannot be
// read after all the attempts.
var ErrRateSourceUnavailable = errors.New("rate source unavailable")

// Options controls rate file reading.
type Options struct {
	// Attempts is the number of times the file is read before giving
	// up. The estimator may not have flushed the file yet.
	Attempts int
	// Delay is the pause between the attempts.
	Delay time.Duration
}

// DefaultOptions are used by Ingest.
var DefaultOptions = Options{Attempts: 3, Delay: 100 * time.Millisecond}

// siteRate is a single entry of the rate file.
type siteRate struct {
	Site int      `json:"site"`
	Rate *float64 `json:"rate"`
}

// sitesSection is the "sites" object of the rate file. Only the keys
// used here are decoded, the others are preserved when the file is
// rewritten.
type sitesSection struct {
	Rates []siteRate `json:"rates"`
}

// Ingest reads site rates from the estimator output file and divides
// them by correction. If mutate is true the corrected rates are
// written back under sites.corrected_rates, keeping the raw rates.
func Ingest(fileName string, correction float64, mutate bool) (Rates, error) {
	return DefaultOptions.Ingest(fileName, correction, mutate)
}

// Ingest reads site rates using options o.
func (o Options) Ingest(fileName string, correction float64, mutate bool) (Rates, error) {
	if correction <= 0 {
		return nil, fmt.Errorf("correction factor should be positive, got %v", correction)
	}
	data, err := o.read(fileName)
	if err != nil {
		return nil, err
	}

	var doc struct {
		Sites *sitesSection `json:"sites"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%s: %w", fileName, err)
	}
	if doc.Sites == nil {
		return nil, fmt.Errorf("%s: no sites section", fileName)
	}

	raw := siteOrder(doc.Sites.Rates)
	corrected := raw.Scale(correction)
	log.Debugf("%s: %d sites, %d defined", fileName, len(raw), raw.NDefined())

	if mutate {
		if err := writeCorrected(fileName, data, corrected); err != nil {
			return nil, err
		}
	}
	return corrected, nil
}

// siteOrder builds the rate vector. Entries are sorted by the site
// number if all of them carry one, otherwise the file order is kept.
func siteOrder(entries []siteRate) Rates {
	numbered := true
	for _, e := range entries {
		if e.Site <= 0 {
			numbered = false
			break
		}
	}
	if numbered {
		entries = append([]siteRate(nil), entries...)
		sort.SliceStable(entries, func(i, j int) bool {
			return entries[i].Site < entries[j].Site
		})
	}
	r := make(Rates, len(entries))
	for i, e := range entries {
		if e.Rate != nil {
			r[i] = Defined(*e.Rate)
		}
	}
	return r
}

// read reads the file retrying on errors which may be caused by the
// file not being completely written.
func (o Options) read(fileName string) (data []byte, err error) {
	attempts := o.Attempts
	if attempts < 1 {
		attempts = 1
	}
	for i := 0; i < attempts; i++ {
		if i > 0 {
			log.Debugf("%s: retrying in %v (%v)", fileName, o.Delay, err)
			time.Sleep(o.Delay)
		}
		data, err = os.ReadFile(fileName)
		if err == nil && len(data) > 0 && json.Valid(data) {
			return data, nil
		}
		if err == nil {
			err = io.ErrUnexpectedEOF
		}
	}
	return nil, fmt.Errorf("%w: %s after %d attempts: %v", ErrRateSourceUnavailable, fileName, attempts, err)
}

// writeCorrected adds corrected rates to the original document and
// replaces the file.
func writeCorrected(fileName string, data []byte, corrected Rates) error {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	var sites map[string]json.RawMessage
	if err := json.Unmarshal(doc["sites"], &sites); err != nil {
		return err
	}

	entries := make([]siteRate, len(corrected))
	for i, r := range corrected {
		entries[i].Site = i + 1
		if r.Defined {
			v := r.Value
			entries[i].Rate = &v
		}
	}

	var err error
	if sites["corrected_rates"], err = json.Marshal(entries); err != nil {
		return err
	}
	if doc["sites"], err = json.Marshal(sites); err != nil {
		return err
	}
	out, err := json.MarshalIndent(doc, "", "    ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(fileName), filepath.Base(fileName)+".*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(append(out, '\n')); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), fileName)
}
