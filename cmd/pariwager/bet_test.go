package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBet(t *testing.T) {
	tests := []struct {
		in     string
		key    string
		amount float64
	}{
		{"YES:25", "YES", 25},
		{"no:12.5", "NO", 12.5},
		{" carl : 3 ", "carl", 3},
	}
	for _, tt := range tests {
		key, amount, err := parseBet(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.key, key)
		assert.Equal(t, tt.amount, amount)
	}

	for _, bad := range []string{"", "YES", ":10", "YES:abc"} {
		_, _, err := parseBet(bad)
		assert.Error(t, err, bad)
	}
}

func TestSplitEvents(t *testing.T) {
	assert.Equal(t, []string{"evt-1"}, splitEvents("evt-1"))
	assert.Equal(t, []string{"a", "b"}, splitEvents(" a, ,b ,"))
	assert.Empty(t, splitEvents(""))
}
