package utils

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGenerateIDAt_Format(t *testing.T) {
	t.Parallel()

	at := time.UnixMilli(1700000000123)
	id := GenerateIDAt("ord", at)

	require.Regexp(t, regexp.MustCompile(`^ORD-1700000000123-[0-9A-F]{8}$`), id)
}

func TestGenerateID_Unique(t *testing.T) {
	t.Parallel()

	seen := make(map[string]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		id := GenerateID("ord")
		_, dup := seen[id]
		require.False(t, dup, "duplicate id %s", id)
		seen[id] = struct{}{}
	}
}
