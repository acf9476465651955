package grader

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkerWindowScenario(t *testing.T) {
	c, err := NewChunker(4, 1)
	require.NoError(t, err)

	chunks := c.Split("a b c d e f g")
	assert.Equal(t, []string{"a b c d", "d e f g", "g"}, chunks)
}

func TestChunkerDeterminism(t *testing.T) {
	c, err := NewChunker(5, 2)
	require.NoError(t, err)

	text := "the quick brown fox jumps over the lazy dog again and again"
	first := c.Split(text)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, c.Split(text))
	}
}

func TestChunkerEmptyText(t *testing.T) {
	c, err := NewChunker(4, 1)
	require.NoError(t, err)

	assert.Empty(t, c.Split(""))
	assert.Empty(t, c.Split("   \n\t  "))
}

func TestChunkerEmitsFinalPartialWindow(t *testing.T) {
	c, err := NewChunker(10, 2)
	require.NoError(t, err)

	chunks := c.Split("one two three")
	require.Len(t, chunks, 1)
	assert.Equal(t, "one two three", chunks[0])
}

func TestChunkerCoverage(t *testing.T) {
	// Dropping each chunk's leading overlap words must reconstruct the
	// original token sequence in order.
	c, err := NewChunker(4, 1)
	require.NoError(t, err)

	text := "a b c d e f g h i j k"
	chunks := c.Split(text)
	require.NotEmpty(t, chunks)

	rebuilt := strings.Fields(chunks[0])
	for _, chunk := range chunks[1:] {
		words := strings.Fields(chunk)
		rebuilt = append(rebuilt, words[1:]...)
	}
	assert.Equal(t, strings.Fields(text), rebuilt)
}

func TestNewChunkerValidation(t *testing.T) {
	_, err := NewChunker(0, 0)
	assert.Error(t, err)

	_, err = NewChunker(-5, 0)
	assert.Error(t, err)

	_, err = NewChunker(4, 4)
	assert.Error(t, err, "overlap == size would never advance")

	_, err = NewChunker(4, 7)
	assert.Error(t, err)

	_, err = NewChunker(4, -1)
	assert.Error(t, err)

	_, err = NewChunker(4, 3)
	assert.NoError(t, err)
}
