package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatContext(t *testing.T) {
	tests := []struct {
		tokens int
		want   string
	}{
		{0, "-"},
		{-1, "-"},
		{4096, "4k"},
		{128000, "128k"},
		{200000, "200k"},
		{1048576, "1m"},
		{1000000, "1m"},
		{8192, "8k"},
		{2500, "2500"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, formatContext(tt.tokens), "tokens %d", tt.tokens)
	}
}
