package goplus

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWaitGroup_RecoversPanic(t *testing.T) {
	g := NewWaitGroup()
	var ran atomic.Bool

	g.Go(func() { panic("boom") })
	g.Go(func() { ran.Store(true) })
	g.Wait()

	assert.True(t, ran.Load())
	assert.Equal(t, int64(0), g.Running())
}
