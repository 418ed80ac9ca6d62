package render

import (
	"sync"
)

// Write is one recorded attribute write.
type Write struct {
	Entity string
	Name   string
	Value  string
}

// Recorder is an in-memory Resolver for tests and offline replay. Every handle
// it returns appends to a shared write log.
type Recorder struct {
	mu     sync.Mutex
	writes []Write
	attrs  map[string]map[string]string

	// Err, when set, fails every write.
	Err error
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{attrs: make(map[string]map[string]string)}
}

// Object implements Resolver.
func (r *Recorder) Object(name string) ObjectHandle {
	return &recordedObject{r: r, name: name}
}

// Writes returns every write so far.
func (r *Recorder) Writes() []Write {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Write(nil), r.writes...)
}

// WritesTo returns the writes to one entity.
func (r *Recorder) WritesTo(entity string) []Write {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Write
	for _, w := range r.writes {
		if w.Entity == entity {
			out = append(out, w)
		}
	}
	return out
}

// Attr returns the latest value of an attribute.
func (r *Recorder) Attr(entity, name string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.attrs[entity][name]
	return v, ok
}

// Reset clears the write log but keeps current attribute values.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.writes = nil
	r.mu.Unlock()
}

type recordedObject struct {
	r    *Recorder
	name string
}

func (o *recordedObject) SetAttribute(name, value string) error {
	o.r.mu.Lock()
	defer o.r.mu.Unlock()
	if o.r.Err != nil {
		return o.r.Err
	}
	o.r.writes = append(o.r.writes, Write{Entity: o.name, Name: name, Value: value})
	if o.r.attrs[o.name] == nil {
		o.r.attrs[o.name] = make(map[string]string)
	}
	o.r.attrs[o.name][name] = value
	return nil
}
