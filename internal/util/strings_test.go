package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJoinOrDefault(t *testing.T) {
	assert.Equal(t, "-", JoinOrDefault([]string{}, "-"))
	assert.Equal(t, "a", JoinOrDefault([]string{"a"}, "-"))
}

func TestPluralize(t *testing.T) {
	assert.Equal(t, "adapter", Pluralize(1, "adapter", "adapters"))
	assert.Equal(t, "adapters", Pluralize(0, "adapter", "adapters"))
	assert.Equal(t, "adapters", Pluralize(3, "adapter", "adapters"))
}

func TestFirstLine(t *testing.T) {
	assert.Equal(t, "Access is denied.", FirstLine("\n  Access is denied.\r\nAt line:1"))
	assert.Equal(t, "", FirstLine("  \n\t"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "Intel(R) E…", Truncate("Intel(R) Ethernet", 11))
	assert.Equal(t, "…", Truncate("abc", 1))
	assert.Equal(t, "abc", Truncate("abc", 0))
}
