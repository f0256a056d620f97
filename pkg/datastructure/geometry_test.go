package datastructure

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEpsilonComparators(t *testing.T) {
	t.Parallel()

	assert.True(t, Eq(1.0, 1.0+EPS/2))
	assert.False(t, Eq(1.0, 1.1))

	assert.True(t, Lt(1.0, 1.0+10*EPS))
	assert.False(t, Lt(1.0, 1.0+EPS/2))

	assert.True(t, Le(1.0, 1.0))
	assert.True(t, Le(1.0, 1.0+EPS/2))
	assert.False(t, Le(1.0+10*EPS, 1.0))

	assert.True(t, Gt(1.0+10*EPS, 1.0))
	assert.True(t, Ge(1.0, 1.0))
}
