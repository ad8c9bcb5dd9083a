package core

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

var (
	// ErrNotLoaded indicates no dataset has been loaded yet.
	ErrNotLoaded = errors.New("no dataset loaded")
	// ErrEmptyDataset indicates a load attempt with zero state vectors.
	ErrEmptyDataset = errors.New("dataset contains no state vectors")
	// ErrDuplicateEpoch indicates two records in a load sharing an epoch.
	ErrDuplicateEpoch = errors.New("duplicate epoch")
	// ErrEpochNotFound indicates a lookup for an epoch not in the dataset.
	ErrEpochNotFound = errors.New("epoch not found")
)

// Dataset is one complete trajectory snapshot: the state vectors plus the OEM
// document envelope they were published with. The store replaces datasets
// wholesale; readers never observe a partial one.
type Dataset struct {
	Vectors  []StateVector
	Header   map[string]string
	Metadata map[string]string
	Comments []string
}

// DatasetMetricsRecorder receives dataset statistics after each successful
// load.
type DatasetMetricsRecorder interface {
	SetDatasetStats(vectors int, first, last time.Time)
}

// TelemetryStore holds the most recently loaded trajectory dataset and
// answers epoch queries against it. All query methods read an immutable
// snapshot, so loads never block or tear concurrent readers. The store does
// no logging and no retrying; fetch policy belongs to the feed layer.
type TelemetryStore struct {
	// loadMu serialises writers. Readers go through the atomic pointer only.
	loadMu  sync.Mutex
	current atomic.Pointer[Dataset]

	clock   func() time.Time
	metrics DatasetMetricsRecorder
}

// TelemetryStoreOption customises TelemetryStore construction.
type TelemetryStoreOption func(*TelemetryStore)

// WithClock overrides the store's notion of "now". Used by tests to pin
// nearest-epoch queries to a fixed instant.
func WithClock(clock func() time.Time) TelemetryStoreOption {
	return func(s *TelemetryStore) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithMetricsRecorder attaches an optional recorder for dataset gauges.
func WithMetricsRecorder(m DatasetMetricsRecorder) TelemetryStoreOption {
	return func(s *TelemetryStore) {
		s.metrics = m
	}
}

// NewTelemetryStore constructs an empty store. Queries fail with ErrNotLoaded
// until the first successful load.
func NewTelemetryStore(opts ...TelemetryStoreOption) *TelemetryStore {
	s := &TelemetryStore{
		clock: func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Load replaces the current dataset with the given records. See LoadDataset.
func (s *TelemetryStore) Load(records []StateVector) error {
	return s.LoadDataset(Dataset{Vectors: records})
}

// LoadDataset validates, sorts, and atomically installs a new dataset.
// On any error the previously loaded dataset remains in place untouched.
func (s *TelemetryStore) LoadDataset(ds Dataset) error {
	s.loadMu.Lock()
	defer s.loadMu.Unlock()

	if len(ds.Vectors) == 0 {
		return ErrEmptyDataset
	}

	next := &Dataset{
		Vectors:  make([]StateVector, len(ds.Vectors)),
		Header:   copyStringMap(ds.Header),
		Metadata: copyStringMap(ds.Metadata),
		Comments: append([]string(nil), ds.Comments...),
	}
	copy(next.Vectors, ds.Vectors)

	for _, sv := range next.Vectors {
		if err := sv.Validate(); err != nil {
			return err
		}
	}

	sort.Slice(next.Vectors, func(i, j int) bool {
		return next.Vectors[i].Epoch.Before(next.Vectors[j].Epoch)
	})
	for i := 1; i < len(next.Vectors); i++ {
		if next.Vectors[i].Epoch.Equal(next.Vectors[i-1].Epoch) {
			return fmt.Errorf("%w: %s", ErrDuplicateEpoch, FormatEpoch(next.Vectors[i].Epoch))
		}
	}

	s.current.Store(next)

	if s.metrics != nil {
		s.metrics.SetDatasetStats(
			len(next.Vectors),
			next.Vectors[0].Epoch,
			next.Vectors[len(next.Vectors)-1].Epoch,
		)
	}
	return nil
}

// Epochs returns every epoch in the dataset in ascending order.
func (s *TelemetryStore) Epochs() ([]time.Time, error) {
	ds, err := s.snapshot()
	if err != nil {
		return nil, err
	}
	epochs := make([]time.Time, len(ds.Vectors))
	for i, sv := range ds.Vectors {
		epochs[i] = sv.Epoch
	}
	return epochs, nil
}

// ByEpoch returns the record whose epoch exactly matches the given instant.
func (s *TelemetryStore) ByEpoch(epoch time.Time) (StateVector, error) {
	ds, err := s.snapshot()
	if err != nil {
		return StateVector{}, err
	}
	vs := ds.Vectors
	idx := sort.Search(len(vs), func(i int) bool { return !vs[i].Epoch.Before(epoch) })
	if idx < len(vs) && vs[idx].Epoch.Equal(epoch) {
		return vs[idx], nil
	}
	return StateVector{}, fmt.Errorf("%w: %s", ErrEpochNotFound, FormatEpoch(epoch))
}

// NearestTo returns the record whose epoch is closest in absolute time to t.
// Ties resolve to the earlier epoch. When t falls outside the dataset's range
// the boundary record is returned with extrapolated=true; the boundary epochs
// themselves count as in range.
func (s *TelemetryStore) NearestTo(t time.Time) (sv StateVector, extrapolated bool, err error) {
	ds, err := s.snapshot()
	if err != nil {
		return StateVector{}, false, err
	}
	vs := ds.Vectors

	idx := sort.Search(len(vs), func(i int) bool { return !vs[i].Epoch.Before(t) })
	switch idx {
	case 0:
		return vs[0], vs[0].Epoch.After(t), nil
	case len(vs):
		return vs[len(vs)-1], true, nil
	}

	prev, next := vs[idx-1], vs[idx]
	if next.Epoch.Sub(t) < t.Sub(prev.Epoch) {
		return next, false, nil
	}
	return prev, false, nil
}

// NearestToNow resolves NearestTo against the store's clock.
func (s *TelemetryStore) NearestToNow() (StateVector, bool, error) {
	return s.NearestTo(s.clock())
}

// Range returns the first and last epochs covered by the dataset.
func (s *TelemetryStore) Range() (first, last time.Time, err error) {
	ds, err := s.snapshot()
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return ds.Vectors[0].Epoch, ds.Vectors[len(ds.Vectors)-1].Epoch, nil
}

// Header returns the OEM header block. Callers must treat the map as
// read-only.
func (s *TelemetryStore) Header() (map[string]string, error) {
	ds, err := s.snapshot()
	if err != nil {
		return nil, err
	}
	return ds.Header, nil
}

// Metadata returns the OEM metadata block. Callers must treat the map as
// read-only.
func (s *TelemetryStore) Metadata() (map[string]string, error) {
	ds, err := s.snapshot()
	if err != nil {
		return nil, err
	}
	return ds.Metadata, nil
}

// Comments returns the OEM comment lines in document order. Callers must
// treat the slice as read-only.
func (s *TelemetryStore) Comments() ([]string, error) {
	ds, err := s.snapshot()
	if err != nil {
		return nil, err
	}
	return ds.Comments, nil
}

// Size returns the number of loaded records, zero when unloaded.
func (s *TelemetryStore) Size() int {
	ds := s.current.Load()
	if ds == nil {
		return 0
	}
	return len(ds.Vectors)
}

func (s *TelemetryStore) snapshot() (*Dataset, error) {
	ds := s.current.Load()
	if ds == nil {
		return nil, ErrNotLoaded
	}
	return ds, nil
}

func copyStringMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
