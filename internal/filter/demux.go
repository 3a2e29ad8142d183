package filter

import "github.com/GriffinCanCode/qcflow/internal/record"

// Demultiplexer routes each record to a per-stream filter instance derived
// from a template. It is not safe for concurrent use; each worker owns its
// own demultiplexer (see Clone).
type Demultiplexer struct {
	template Filter
	// templateKey is the stream currently served by the template itself
	templateKey   record.StreamKey
	templateInUse bool

	instances map[record.StreamKey]Filter
	order     []record.StreamKey
	clones    int
}

// NewDemultiplexer creates a demultiplexer around template. A nil template
// passes records through unchanged.
func NewDemultiplexer(template Filter) *Demultiplexer {
	return &Demultiplexer{
		template:  template,
		instances: make(map[record.StreamKey]Filter),
	}
}

// SetTemplate installs a new template and discards all per-stream state.
func (d *Demultiplexer) SetTemplate(template Filter) {
	d.Reset()
	d.template = template
	d.clones = 0
}

// Template returns the installed template.
func (d *Demultiplexer) Template() Filter {
	return d.template
}

// Feed routes rec to its stream's instance, creating it on first sight.
func (d *Demultiplexer) Feed(rec *record.Record) *record.Record {
	if rec == nil {
		return nil
	}
	if d.template == nil {
		return rec
	}
	return d.instanceFor(rec.Key).Feed(rec)
}

func (d *Demultiplexer) instanceFor(key record.StreamKey) Filter {
	if inst, ok := d.instances[key]; ok {
		return inst
	}

	var inst Filter
	if !d.templateInUse && len(d.instances) == 0 {
		inst = d.template
		d.templateKey = key
		d.templateInUse = true
	} else {
		inst = d.template.Clone()
		d.clones++
	}

	d.instances[key] = inst
	d.order = append(d.order, key)
	return inst
}

// Flush drains the oldest stream first. An instance is removed once its
// Flush returns nil. Flush returns nil only when every instance is gone, so
// callers loop until nil.
func (d *Demultiplexer) Flush() *record.Record {
	for len(d.order) > 0 {
		key := d.order[0]
		if out := d.instances[key].Flush(); out != nil {
			return out
		}
		d.remove(key)
		d.order = d.order[1:]
	}
	return nil
}

func (d *Demultiplexer) remove(key record.StreamKey) {
	delete(d.instances, key)
	if d.templateInUse && d.templateKey == key {
		d.template.Reset()
		d.templateInUse = false
	}
}

// Reset discards every per-stream instance. The template is reset and kept.
func (d *Demultiplexer) Reset() {
	if d.templateInUse {
		d.template.Reset()
		d.templateInUse = false
	}
	d.instances = make(map[record.StreamKey]Filter)
	d.order = nil
}

// Clone returns a demultiplexer with a cloned template and no stream state.
func (d *Demultiplexer) Clone() Filter {
	return d.CloneDemultiplexer()
}

// CloneDemultiplexer is Clone with the concrete type.
func (d *Demultiplexer) CloneDemultiplexer() *Demultiplexer {
	var tmpl Filter
	if d.template != nil {
		tmpl = d.template.Clone()
	}
	return NewDemultiplexer(tmpl)
}

// Instance returns the filter serving key.
func (d *Demultiplexer) Instance(key record.StreamKey) (Filter, bool) {
	inst, ok := d.instances[key]
	return inst, ok
}

// Keys returns the active streams in first-seen order.
func (d *Demultiplexer) Keys() []record.StreamKey {
	keys := make([]record.StreamKey, len(d.order))
	copy(keys, d.order)
	return keys
}

// Clones returns how many clones were made since the template was set.
func (d *Demultiplexer) Clones() int {
	return d.clones
}
