package queue

import (
	"context"
	"encoding/json"
	"sync"
)

// Publication is one call recorded by Recorder.
type Publication struct {
	Queue   string
	Name    string
	Data    json.RawMessage
	Options Options
}

// Recorder is an in-memory Publisher. It applies the same job id deduplication as Broker
// but never delivers anything.
type Recorder struct {
	mu   sync.Mutex
	pubs []Publication
	ids  map[string]struct{}

	// Err, when set, is returned by every Publish call.
	Err error
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{ids: make(map[string]struct{})}
}

func (r *Recorder) Publish(_ context.Context, queue, name string, data json.RawMessage, opts Options) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.Err != nil {
		return r.Err
	}
	if opts.JobID != "" {
		key := queue + "/" + opts.JobID
		if _, ok := r.ids[key]; ok {
			return nil
		}
		r.ids[key] = struct{}{}
	}
	r.pubs = append(r.pubs, Publication{
		Queue:   queue,
		Name:    name,
		Data:    append(json.RawMessage(nil), data...),
		Options: opts,
	})
	return nil
}

// Publications returns a copy of everything published so far.
func (r *Recorder) Publications() []Publication {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Publication(nil), r.pubs...)
}

// Named returns publications whose job name is name.
func (r *Recorder) Named(name string) []Publication {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Publication
	for _, p := range r.pubs {
		if p.Name == name {
			out = append(out, p)
		}
	}
	return out
}

var _ Publisher = (*Recorder)(nil)
