package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShortID(t *testing.T) {
	assert.Equal(t, "3f2a9c1b", shortID("3f2a9c1b-77aa-4d02-9c61-0f59a1f1d001"))
	assert.Equal(t, "exactly8", shortID("exactly8"))
	assert.Equal(t, "abc", shortID("abc"))
	assert.Equal(t, "", shortID(""))
}
