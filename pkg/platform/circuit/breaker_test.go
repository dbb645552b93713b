package circuit

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

var errBoom = errors.New("boom")

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	b := New("sink", WithFailureThreshold(3))

	assert.Equal(t, Unchanged, b.Observe(errBoom))
	assert.Equal(t, Unchanged, b.Observe(errBoom))
	assert.False(t, b.IsOpen())
	assert.Equal(t, Opened, b.Observe(errBoom))
	assert.True(t, b.IsOpen())
	assert.Equal(t, Unchanged, b.Observe(errBoom), "already open")
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	b := New("sink", WithFailureThreshold(2))

	b.Observe(errBoom)
	b.Observe(nil)
	assert.Equal(t, Unchanged, b.Observe(errBoom))
	assert.False(t, b.IsOpen())
}

func TestBreakerClosesAfterConsecutiveSuccesses(t *testing.T) {
	b := New("sink", WithFailureThreshold(1), WithSuccessThreshold(2))
	assert.Equal(t, Opened, b.Observe(errBoom))

	assert.Equal(t, Unchanged, b.Observe(nil))
	b.Observe(errBoom)
	assert.Equal(t, Unchanged, b.Observe(nil))
	assert.Equal(t, Closed, b.Observe(nil))
	assert.False(t, b.IsOpen())
	assert.Equal(t, "sink", b.Name())
}
