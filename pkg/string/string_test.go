package string

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTrimStrings(t *testing.T) {
	first, last := "  Ada ", "\tLovelace\n"
	TrimStrings(&first, &last)
	assert.Equal(t, "Ada", first)
	assert.Equal(t, "Lovelace", last)
}

func TestTrimSpacePtr(t *testing.T) {
	assert.Nil(t, TrimSpacePtr(nil))

	in := "  x  "
	out := TrimSpacePtr(&in)
	assert.Equal(t, "x", *out)
	assert.Equal(t, "  x  ", in, "input is not modified")
}
