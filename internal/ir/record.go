package ir

import (
	"github.com/spf13/cast"
)

// Record is a generic entity instance keyed by column name.
// The primary key lives under IDField once the record has been persisted.
type Record map[string]any

// NewRecord creates an empty record.
func NewRecord() Record {
	return Record{}
}

// ID returns the record's primary key, if it has one.
func (r Record) ID() (int64, bool) {
	v, ok := r[IDField]
	if !ok || v == nil {
		return 0, false
	}
	id, err := cast.ToInt64E(v)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}

// SetID assigns the primary key.
func (r Record) SetID(id int64) {
	r[IDField] = id
}

// Clone returns a shallow copy.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}
