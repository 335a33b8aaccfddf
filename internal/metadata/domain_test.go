package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomain_SetGet(t *testing.T) {
	d := NewDomain("IMAGERY")
	d.Set("SATELLITEID", "PHR1A")
	d.Set("CLOUDCOVER", "0")
	d.Set("satelliteid", "PHR1B")

	assert.Equal(t, "IMAGERY", d.Name())
	assert.Equal(t, 2, d.Len())
	assert.Equal(t, []string{"SATELLITEID", "CLOUDCOVER"}, d.Keys())
	assert.Equal(t, "PHR1B", d.Get("SatelliteId"))
	v, ok := d.Lookup("CLOUDCOVER")
	assert.True(t, ok)
	assert.Equal(t, "0", v)
	_, ok = d.Lookup("MISSING")
	assert.False(t, ok)
	assert.Equal(t, []string{"SATELLITEID=PHR1B", "CLOUDCOVER=0"}, d.StringList())
}

func TestDomain_Delete(t *testing.T) {
	d := NewDomain("RPC")
	for _, k := range []string{"A", "B", "C"} {
		d.Set(k, k+k)
	}
	d.Delete("b")
	d.Delete("missing")
	assert.Equal(t, []string{"A", "C"}, d.Keys())
	assert.Equal(t, "CC", d.Get("C"))
	d.Set("B", "new")
	assert.Equal(t, []string{"A", "C", "B"}, d.Keys())
}

func TestDomain_MergeClone(t *testing.T) {
	a := NewDomain("IMD")
	a.Set("K1", "1")
	b := NewDomain("IMD")
	b.Set("K2", "2")
	b.Set("k1", "one")
	a.Merge(b)
	assert.Equal(t, []Item{{"K1", "one"}, {"K2", "2"}}, a.Items())

	c := a.Clone()
	c.Set("K3", "3")
	assert.Equal(t, 2, a.Len())
	assert.Equal(t, 3, c.Len())
}

func TestDomain_Nil(t *testing.T) {
	var d *Domain
	assert.Equal(t, "", d.Name())
	assert.Equal(t, 0, d.Len())
	assert.Equal(t, "", d.Get("x"))
	assert.Nil(t, d.Keys())
	assert.Nil(t, d.StringList())
	d.Delete("x")
	assert.Equal(t, 0, d.Clone().Len())

	var zero Domain
	zero.Set("A", "1")
	assert.Equal(t, "1", zero.Get("a"))
}
