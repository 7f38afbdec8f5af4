package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract_PlainTextPassthrough(t *testing.T) {
	e := New()

	result, err := e.Extract("notes.txt", []byte("line one\nline two\n"))
	require.NoError(t, err)
	assert.Equal(t, "line one\nline two\n", result.Text)
	assert.Equal(t, "notes", result.Title)
	assert.Empty(t, result.Outline)
}

func TestExtract_MarkdownStripsFormatting(t *testing.T) {
	input := `# Llama Husbandry

Herding **llamas** requires patience.

## Altitude

Llamas thrive in the *Andes*.
`
	e := New()

	result, err := e.Extract("llamas.md", []byte(input))
	require.NoError(t, err)

	assert.Contains(t, result.Text, "Herding llamas requires patience.")
	assert.Contains(t, result.Text, "Llamas thrive in the Andes.")
	assert.NotContains(t, result.Text, "**")
	assert.NotContains(t, result.Text, "# ")
}

func TestExtract_MarkdownTitleAndOutline(t *testing.T) {
	input := `# Getting Started

Intro.

## Installation

Steps.

## Configuration

Details.
`
	e := New()

	result, err := e.Extract("guide.md", []byte(input))
	require.NoError(t, err)

	assert.Equal(t, "Getting Started", result.Title)
	assert.Equal(t, []string{"Getting Started", "Installation", "Configuration"}, result.Outline)
}

func TestExtract_MarkdownWithoutHeadingsFallsBackToFilename(t *testing.T) {
	e := New()

	result, err := e.Extract("plain.md", []byte("just a paragraph"))
	require.NoError(t, err)
	assert.Equal(t, "plain", result.Title)
	assert.Equal(t, "just a paragraph", result.Text)
}

func TestExtract_MarkdownKeepsCodeBlocks(t *testing.T) {
	input := "# API\n\n```go\nfunc Do() error { return nil }\n```\n"
	e := New()

	result, err := e.Extract("api.md", []byte(input))
	require.NoError(t, err)
	assert.Contains(t, result.Text, "func Do() error { return nil }")
}

func TestExtract_RejectsBinaryContent(t *testing.T) {
	e := New()

	_, err := e.Extract("image.txt", []byte{0xff, 0xfe, 0x00, 0x80, 0x01})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestExtract_RejectsUnknownExtension(t *testing.T) {
	e := New()

	_, err := e.Extract("archive.zip", []byte("not really a zip"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}
