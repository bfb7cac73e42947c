package job

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Entries is an ordered key/value collection of localization strings.
// Keys are unique; iteration follows insertion order.
type Entries struct {
	keys   []string
	values map[string]string
}

// NewEntries returns an empty collection.
func NewEntries() *Entries {
	return &Entries{values: make(map[string]string)}
}

// EntriesFromMap builds a collection with keys in sorted order.
func EntriesFromMap(m map[string]string) *Entries {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	e := &Entries{keys: keys, values: make(map[string]string, len(m))}
	for k, v := range m {
		e.values[k] = v
	}
	return e
}

// Set adds or replaces a value. Replacing keeps the original position.
func (e *Entries) Set(key, value string) {
	if e.values == nil {
		e.values = make(map[string]string)
	}
	if _, ok := e.values[key]; !ok {
		e.keys = append(e.keys, key)
	}
	e.values[key] = value
}

// Get returns the value for key.
func (e *Entries) Get(key string) (string, bool) {
	if e == nil {
		return "", false
	}
	v, ok := e.values[key]
	return v, ok
}

// Len returns the number of entries. A nil collection is empty.
func (e *Entries) Len() int {
	if e == nil {
		return 0
	}
	return len(e.keys)
}

// Keys returns a copy of the keys in order.
func (e *Entries) Keys() []string {
	if e == nil {
		return nil
	}
	out := make([]string, len(e.keys))
	copy(out, e.keys)
	return out
}

// Map returns an unordered copy.
func (e *Entries) Map() map[string]string {
	out := make(map[string]string, e.Len())
	if e == nil {
		return out
	}
	for k, v := range e.values {
		out[k] = v
	}
	return out
}

// Range calls fn for every entry in order until fn returns false.
func (e *Entries) Range(fn func(key, value string) bool) {
	if e == nil {
		return
	}
	for _, k := range e.keys {
		if !fn(k, e.values[k]) {
			return
		}
	}
}

// Clone returns a deep copy.
func (e *Entries) Clone() *Entries {
	out := NewEntries()
	e.Range(func(k, v string) bool {
		out.Set(k, v)
		return true
	})
	return out
}

// Slice returns the entries in positions [from, to).
func (e *Entries) Slice(from, to int) *Entries {
	out := NewEntries()
	if e == nil {
		return out
	}
	if from < 0 {
		from = 0
	}
	if to > len(e.keys) {
		to = len(e.keys)
	}
	for i := from; i < to; i++ {
		k := e.keys[i]
		out.Set(k, e.values[k])
	}
	return out
}

// MarshalJSON writes a JSON object with keys in collection order.
func (e *Entries) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	i := 0
	var err error
	e.Range(func(k, v string) bool {
		if i > 0 {
			buf.WriteByte(',')
		}
		i++
		var kb, vb []byte
		if kb, err = json.Marshal(k); err != nil {
			return false
		}
		if vb, err = json.Marshal(v); err != nil {
			return false
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
		return true
	})
	if err != nil {
		return nil, err
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a JSON object of strings, keeping document order.
func (e *Entries) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("expected JSON object, got %v", tok)
	}

	e.keys = nil
	e.values = make(map[string]string)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("expected string key, got %v", tok)
		}
		var value string
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("value for %q: %w", key, err)
		}
		e.Set(key, value)
	}
	_, err = dec.Token()
	return err
}
