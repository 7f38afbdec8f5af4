package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RejectsBadParameters(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		overlap int
	}{
		{"zero size", 0, 0},
		{"negative size", -5, 0},
		{"negative overlap", 10, -1},
		{"overlap equals size", 10, 10},
		{"overlap exceeds size", 10, 15},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.size, tt.overlap)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestSplit_ShortTextIsSingleChunk(t *testing.T) {
	c, err := New(100, 20)
	require.NoError(t, err)

	chunks := c.Split("short text")
	require.Len(t, chunks, 1)
	assert.Equal(t, "short text", chunks[0])
}

func TestSplit_EmptyTextYieldsNoChunks(t *testing.T) {
	c, err := New(10, 2)
	require.NoError(t, err)

	assert.Empty(t, c.Split(""))
}

// TestSplit_ExactBoundaries pins the window arithmetic: with size=9 and
// overlap=3, "AAAA BBBB CCCC DDDD" must split into exactly these three
// segments.
func TestSplit_ExactBoundaries(t *testing.T) {
	c, err := New(9, 3)
	require.NoError(t, err)

	chunks := c.Split("AAAA BBBB CCCC DDDD")
	assert.Equal(t, []string{"AAAA BBBB", "BBB CCCC ", "CC DDDD"}, chunks)
}

// TestSplit_ChunkCountFormula verifies the chunk count is
// ceil((L-overlap)/(size-overlap)) for texts longer than one chunk.
func TestSplit_ChunkCountFormula(t *testing.T) {
	tests := []struct {
		length  int
		size    int
		overlap int
	}{
		{19, 9, 3},
		{100, 10, 0},
		{101, 10, 0},
		{1000, 64, 16},
		{65, 64, 16},
		{500, 120, 30},
	}

	for _, tt := range tests {
		c, err := New(tt.size, tt.overlap)
		require.NoError(t, err)

		text := strings.Repeat("x", tt.length)
		chunks := c.Split(text)

		stride := tt.size - tt.overlap
		want := (tt.length - tt.overlap + stride - 1) / stride
		if tt.length <= tt.size {
			want = 1
		}
		assert.Len(t, chunks, want, "L=%d size=%d overlap=%d", tt.length, tt.size, tt.overlap)
	}
}

func TestSplit_NoTrailingContentDropped(t *testing.T) {
	c, err := New(7, 2)
	require.NoError(t, err)

	text := "the quick brown fox jumps over the lazy dog"
	chunks := c.Split(text)
	require.NotEmpty(t, chunks)

	last := chunks[len(chunks)-1]
	assert.True(t, strings.HasSuffix(text, last), "last chunk %q must end the text", last)
}

func TestSplit_Deterministic(t *testing.T) {
	c, err := New(32, 8)
	require.NoError(t, err)

	text := strings.Repeat("deterministic chunking ", 40)
	first := c.Split(text)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, c.Split(text))
	}
}

func TestSplit_ConsecutiveChunksOverlap(t *testing.T) {
	c, err := New(10, 4)
	require.NoError(t, err)

	chunks := c.Split("abcdefghijklmnopqrstuvwxyz")
	require.Greater(t, len(chunks), 1)

	for i := 1; i < len(chunks); i++ {
		prev := []rune(chunks[i-1])
		tail := string(prev[len(prev)-4:])
		assert.True(t, strings.HasPrefix(chunks[i], tail),
			"chunk %d must start with the last 4 runes of chunk %d", i, i-1)
	}
}

func TestSplit_HandlesMultibyteRunes(t *testing.T) {
	c, err := New(4, 1)
	require.NoError(t, err)

	chunks := c.Split("héllo wörld")
	for _, chunk := range chunks {
		assert.LessOrEqual(t, len([]rune(chunk)), 4)
	}
	// Reassembling without overlap must reproduce the input.
	var rebuilt strings.Builder
	for i, chunk := range chunks {
		runes := []rune(chunk)
		if i == 0 {
			rebuilt.WriteString(chunk)
		} else {
			rebuilt.WriteString(string(runes[1:]))
		}
	}
	assert.Equal(t, "héllo wörld", rebuilt.String())
}
