// Package extract turns uploaded document bytes into plain text suitable
// for chunking. Markdown is parsed with goldmark so that formatting noise
// (heading markers, emphasis, code fences) does not pollute the embedding
// space; other text formats pass through unchanged.
package extract

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"go.abhg.dev/goldmark/toc"
)

// ErrUnsupportedFormat indicates a file whose content cannot be extracted
// as text (binary data or an unknown extension).
var ErrUnsupportedFormat = errors.New("unsupported document format")

// Result is the extracted view of one uploaded file.
type Result struct {
	Text    string   // plain text, ready for the chunker
	Title   string   // first heading for markdown, file stem otherwise
	Outline []string // markdown section headings in document order
}

// Extractor converts raw uploads to plain text.
type Extractor struct {
	markdown goldmark.Markdown
}

// New creates an Extractor with a configured goldmark parser.
func New() *Extractor {
	md := goldmark.New(
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
		),
	)
	return &Extractor{markdown: md}
}

// Extract produces plain text from the given file content. The filename's
// extension selects the extraction strategy. Binary content is rejected
// with ErrUnsupportedFormat rather than indexed as garbage.
func (e *Extractor) Extract(filename string, data []byte) (*Result, error) {
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("%w: %s is not valid UTF-8 text", ErrUnsupportedFormat, filename)
	}

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".md", ".markdown":
		return e.extractMarkdown(filename, data)
	case ".txt", ".text", ".log", "":
		return &Result{
			Text:  string(data),
			Title: fileStem(filename),
		}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filename)
	}
}

// extractMarkdown parses the document and renders its plain-text content.
// The table of contents supplies the document title and section outline.
func (e *Extractor) extractMarkdown(filename string, source []byte) (*Result, error) {
	reader := text.NewReader(source)
	doc := e.markdown.Parser().Parse(reader)

	tree, err := toc.Inspect(doc, source,
		toc.MinDepth(1),
		toc.MaxDepth(3),
		toc.Compact(true),
	)
	if err != nil {
		return nil, fmt.Errorf("inspect outline: %w", err)
	}

	result := &Result{
		Text:    flattenText(doc, source),
		Title:   fileStem(filename),
		Outline: flattenOutline(tree.Items, nil),
	}
	if len(result.Outline) > 0 {
		result.Title = result.Outline[0]
	}
	return result, nil
}

// flattenText walks the AST and joins block-level text with blank lines.
func flattenText(doc ast.Node, source []byte) string {
	var blocks []string
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch n.Kind() {
		case ast.KindHeading, ast.KindParagraph, ast.KindTextBlock, ast.KindCodeBlock, ast.KindFencedCodeBlock:
			block := blockText(n, source)
			if block != "" {
				blocks = append(blocks, block)
			}
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return strings.Join(blocks, "\n\n")
}

// blockText renders the raw text of one block node, including inline
// children for headings and paragraphs.
func blockText(n ast.Node, source []byte) string {
	var sb strings.Builder
	switch n.Kind() {
	case ast.KindCodeBlock, ast.KindFencedCodeBlock:
		lines := n.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			sb.Write(seg.Value(source))
		}
	default:
		_ = ast.Walk(n, func(child ast.Node, entering bool) (ast.WalkStatus, error) {
			if !entering {
				return ast.WalkContinue, nil
			}
			if t, ok := child.(*ast.Text); ok {
				sb.Write(t.Segment.Value(source))
				if t.SoftLineBreak() || t.HardLineBreak() {
					sb.WriteByte('\n')
				}
			}
			return ast.WalkContinue, nil
		})
	}
	return strings.TrimSpace(sb.String())
}

// flattenOutline collects heading titles depth-first in document order.
func flattenOutline(items toc.Items, acc []string) []string {
	for _, item := range items {
		if title := string(item.Title); title != "" {
			acc = append(acc, title)
		}
		acc = flattenOutline(item.Items, acc)
	}
	return acc
}

func fileStem(filename string) string {
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
