package progress

import (
	"bytes"
	"encoding/json"
)

const (
	MaxNamedBuckets = 5
	OthersBucket    = "Others"
)

// Buckets is a capped categorical accumulator. The first MaxNamedBuckets names get their
// own bucket, everything after that lands in OthersBucket. Assignment depends on the order
// names are added, and the JSON form keeps that order.
type Buckets struct {
	keys   []string
	values map[string]float64
}

func NewBuckets() *Buckets {
	return &Buckets{
		values: make(map[string]float64),
	}
}

func (b *Buckets) hasOthers() bool {
	_, ok := b.values[OthersBucket]
	return ok
}

func (b *Buckets) create(label string) string {
	b.keys = append(b.keys, label)
	b.values[label] = 0
	return label
}

// BucketFor returns the bucket a name accumulates into, creating it when needed.
func (b *Buckets) BucketFor(name string) string {
	if _, ok := b.values[name]; ok {
		return name
	}
	if b.hasOthers() {
		return OthersBucket
	}
	if len(b.keys) >= MaxNamedBuckets {
		return b.create(OthersBucket)
	}
	return b.create(name)
}

func (b *Buckets) Add(name string, value float64) {
	b.AddTo(b.BucketFor(name), value)
}

// AddTo accumulates into a bucket previously returned by BucketFor.
func (b *Buckets) AddTo(bucket string, value float64) {
	if _, ok := b.values[bucket]; !ok {
		b.create(bucket)
	}
	b.values[bucket] += value
}

func (b *Buckets) Get(label string) (float64, bool) {
	v, ok := b.values[label]
	return v, ok
}

func (b *Buckets) Len() int {
	return len(b.keys)
}

// Keys returns the bucket labels in insertion order.
func (b *Buckets) Keys() []string {
	return append([]string(nil), b.keys...)
}

func (b *Buckets) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range b.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		keyJson, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		valueJson, err := json.Marshal(b.values[key])
		if err != nil {
			return nil, err
		}
		buf.Write(keyJson)
		buf.WriteByte(':')
		buf.Write(valueJson)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
