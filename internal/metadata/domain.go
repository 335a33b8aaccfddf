// Package metadata holds named, ordered key/value metadata domains.
package metadata

import (
	"strings"
)

// Item is one key/value pair.
type Item struct {
	Key   string
	Value string
}

// Domain is an ordered set of key/value pairs. Keys compare
// case-insensitively and keep the case they were first set with.
//
// Read methods accept a nil *Domain and behave as for an empty domain.
type Domain struct {
	name  string
	items []Item
	index map[string]int
}

// NewDomain returns an empty domain.
func NewDomain(name string) *Domain {
	return &Domain{name: name, index: make(map[string]int)}
}

// Name returns the domain name.
func (d *Domain) Name() string {
	if d == nil {
		return ""
	}
	return d.name
}

// Set assigns value to key, keeping the position of an existing key.
func (d *Domain) Set(key, value string) {
	k := strings.ToUpper(key)
	if i, ok := d.index[k]; ok {
		d.items[i].Value = value
		return
	}
	if d.index == nil {
		d.index = make(map[string]int)
	}
	d.index[k] = len(d.items)
	d.items = append(d.items, Item{Key: key, Value: value})
}

// Lookup returns the value of key and whether it is present.
func (d *Domain) Lookup(key string) (string, bool) {
	if d == nil {
		return "", false
	}
	i, ok := d.index[strings.ToUpper(key)]
	if !ok {
		return "", false
	}
	return d.items[i].Value, true
}

// Get returns the value of key, or "".
func (d *Domain) Get(key string) string {
	v, _ := d.Lookup(key)
	return v
}

// Delete removes key.
func (d *Domain) Delete(key string) {
	if d == nil {
		return
	}
	k := strings.ToUpper(key)
	i, ok := d.index[k]
	if !ok {
		return
	}
	d.items = append(d.items[:i], d.items[i+1:]...)
	delete(d.index, k)
	for j := i; j < len(d.items); j++ {
		d.index[strings.ToUpper(d.items[j].Key)] = j
	}
}

// Len returns the number of items.
func (d *Domain) Len() int {
	if d == nil {
		return 0
	}
	return len(d.items)
}

// Keys returns the keys in insertion order.
func (d *Domain) Keys() []string {
	if d == nil {
		return nil
	}
	keys := make([]string, len(d.items))
	for i, it := range d.items {
		keys[i] = it.Key
	}
	return keys
}

// Items returns a copy of the items in insertion order.
func (d *Domain) Items() []Item {
	if d == nil {
		return nil
	}
	return append([]Item(nil), d.items...)
}

// StringList returns the items as KEY=VALUE strings.
func (d *Domain) StringList() []string {
	if d == nil {
		return nil
	}
	out := make([]string, len(d.items))
	for i, it := range d.items {
		out[i] = it.Key + "=" + it.Value
	}
	return out
}

// Merge sets every item of o in d.
func (d *Domain) Merge(o *Domain) {
	for _, it := range o.Items() {
		d.Set(it.Key, it.Value)
	}
}

// Clone returns a copy of d.
func (d *Domain) Clone() *Domain {
	c := NewDomain(d.Name())
	c.Merge(d)
	return c
}
