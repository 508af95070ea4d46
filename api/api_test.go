package api_test

import (
	"testing"

	"github.com/cydarm/bpmn-engine/api"
	"github.com/cydarm/bpmn-engine/bpmn"
	"github.com/stretchr/testify/assert"
)

type counter struct {
	n int
}

func TestDataLockUnlock(t *testing.T) {
	d := api.NewData(&counter{})

	v := d.Lock()
	v.n++
	d.Unlock()

	v2 := d.Lock()
	assert.Equal(t, 1, v2.n)
	d.Unlock()
}

func TestDataSharedAcrossClones(t *testing.T) {
	d := api.NewData(&counter{})
	d2 := d

	v := d.Lock()
	v.n = 42
	d.Unlock()

	v2 := d2.Lock()
	assert.Equal(t, 42, v2.n)
	d2.Unlock()
}

func TestBoundaryString(t *testing.T) {
	b := api.NewBoundarySymbol(bpmn.SymbolError)
	assert.Equal(t, "Error", b.String())

	nb := api.NewBoundaryNameSymbol("fail", bpmn.SymbolError)
	assert.Equal(t, "fail/Error", nb.String())
}

func TestWithConstructors(t *testing.T) {
	d := api.NewWithDefault()
	assert.Equal(t, api.WithDefault, d.Kind)

	f := api.NewWithFlow("YES")
	assert.Equal(t, api.WithFlow, f.Kind)
	assert.Equal(t, "YES", f.Flow)

	fo := api.NewWithFork([]string{"A", "C"})
	assert.Equal(t, api.WithFork, fo.Kind)
	assert.Equal(t, []string{"A", "C"}, fo.Items)
}
