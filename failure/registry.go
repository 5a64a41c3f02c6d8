package failure

import (
	"errors"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"
)

// ErrEndpointFailed is returned when a request targets an endpoint already
// known to be missing and no fallback is configured.
var ErrEndpointFailed = errors.New("failure: endpoint permanently failed")

// Record is one remembered failure.
type Record struct {
	Endpoint   string    `json:"endpoint"`
	Status     int       `json:"status"`
	ObservedAt time.Time `json:"observed_at"`
}

// Config configures the registry.
type Config struct {
	// TTL bounds how long a record blocks its endpoint.
	// Default: 0, records last for the life of the registry.
	TTL time.Duration

	// IsPermanent decides which statuses are recorded.
	// Default: only 404.
	IsPermanent func(status int) bool

	// OnMark is called after a new record is stored.
	OnMark func(Record)

	// Now is the clock used to stamp and age records.
	// Default: time.Now.
	Now func() time.Time
}

// Registry is the set of endpoints known to be permanently failed.
//
// Contract:
// - Concurrency: safe for concurrent use.
// - Records are only added by MarkFailed and only removed by Reset, Remove
//   or TTL expiry.
type Registry struct {
	config Config

	mu      sync.RWMutex
	records map[string]Record
}

// New creates an empty registry.
func New(config Config) *Registry {
	if config.IsPermanent == nil {
		config.IsPermanent = func(status int) bool { return status == http.StatusNotFound }
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	return &Registry{
		config:  config,
		records: make(map[string]Record),
	}
}

// EndpointOf strips the query string and fragment from path.
func EndpointOf(path string) string {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		return path[:i]
	}
	return path
}

// MarkFailed records endpoint when status is permanent. It reports whether a
// record was stored.
func (r *Registry) MarkFailed(endpoint string, status int) bool {
	if !r.config.IsPermanent(status) {
		return false
	}
	rec := Record{
		Endpoint:   EndpointOf(endpoint),
		Status:     status,
		ObservedAt: r.config.Now(),
	}

	r.mu.Lock()
	r.records[rec.Endpoint] = rec
	r.mu.Unlock()

	if r.config.OnMark != nil {
		r.config.OnMark(rec)
	}
	return true
}

// IsPermanentlyFailed reports whether endpoint has an unexpired record.
func (r *Registry) IsPermanentlyFailed(endpoint string) bool {
	_, ok := r.Lookup(endpoint)
	return ok
}

// Lookup returns the live record for endpoint.
func (r *Registry) Lookup(endpoint string) (Record, bool) {
	endpoint = EndpointOf(endpoint)

	r.mu.RLock()
	rec, ok := r.records[endpoint]
	r.mu.RUnlock()
	if !ok {
		return Record{}, false
	}

	if r.expired(rec) {
		r.mu.Lock()
		if cur, ok := r.records[endpoint]; ok && cur == rec {
			delete(r.records, endpoint)
		}
		r.mu.Unlock()
		return Record{}, false
	}
	return rec, true
}

func (r *Registry) expired(rec Record) bool {
	return r.config.TTL > 0 && r.config.Now().Sub(rec.ObservedAt) >= r.config.TTL
}

// Records returns the live records sorted by endpoint.
func (r *Registry) Records() []Record {
	r.mu.RLock()
	out := make([]Record, 0, len(r.records))
	for _, rec := range r.records {
		if !r.expired(rec) {
			out = append(out, rec)
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Endpoint < out[j].Endpoint })
	return out
}

// Len returns the number of live records.
func (r *Registry) Len() int {
	return len(r.Records())
}

// Remove forgets a single endpoint.
func (r *Registry) Remove(endpoint string) {
	r.mu.Lock()
	delete(r.records, EndpointOf(endpoint))
	r.mu.Unlock()
}

// Reset forgets every endpoint.
func (r *Registry) Reset() {
	r.mu.Lock()
	r.records = make(map[string]Record)
	r.mu.Unlock()
}
