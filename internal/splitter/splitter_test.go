package splitter

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kellywsq03/RAGify/internal/loader"
)

// sentences returns n distinct sentences so no chunk text repeats.
func sentences(n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "Sentence number %d describes item %d in detail. ", i, i*7+3)
		if i%5 == 4 {
			b.WriteString("\n\n")
		}
	}
	return strings.TrimSpace(b.String())
}

func runeSlice(s string, start, n int) string {
	r := []rune(s)
	return string(r[start : start+n])
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{ChunkSize: 100, ChunkOverlap: 100}, nil)
	assert.Error(t, err)

	_, err = New(Config{ChunkSize: -1, ChunkOverlap: 10}, nil)
	assert.Error(t, err)

	s, err := New(Config{}, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultChunkSize, s.Config().ChunkSize)
	assert.Equal(t, DefaultChunkOverlap, s.Config().ChunkOverlap)
}

func TestSplit_ShortDocumentSingleChunk(t *testing.T) {
	s, err := New(Config{}, nil)
	require.NoError(t, err)

	text := "The quick brown fox jumps over the lazy dog."
	chunks, err := s.Split(context.Background(), []loader.Document{{
		Text:     text,
		Metadata: map[string]any{loader.MetadataPage: 2, loader.MetadataSource: "doc.pdf"},
	}})
	require.NoError(t, err)
	require.Len(t, chunks, 1)

	assert.Equal(t, text, chunks[0].Text)
	assert.Equal(t, 0, chunks[0].StartOffset)
	assert.Equal(t, 2, chunks[0].Page())
	assert.Equal(t, "doc.pdf", chunks[0].Metadata[loader.MetadataSource])
	assert.Equal(t, 0, chunks[0].Metadata[MetadataStartIndex])
}

func TestSplit_OffsetsRoundTrip(t *testing.T) {
	s, err := New(Config{ChunkSize: 200, ChunkOverlap: 30}, nil)
	require.NoError(t, err)

	text := sentences(40)
	chunks, err := s.Split(context.Background(), []loader.Document{{Text: text}})
	require.NoError(t, err)
	require.Greater(t, len(chunks), 3)

	prev := -1
	for i, c := range chunks {
		n := utf8.RuneCountInString(c.Text)
		assert.LessOrEqual(t, n, 200, "chunk %d too long", i)
		assert.Equal(t, c.Text, runeSlice(text, c.StartOffset, n), "chunk %d offset", i)
		assert.Greater(t, c.StartOffset, prev, "chunk %d out of order", i)
		prev = c.StartOffset
	}
}

func TestSplit_OverlapBounded(t *testing.T) {
	s, err := New(Config{ChunkSize: 120, ChunkOverlap: 40}, nil)
	require.NoError(t, err)

	text := sentences(30)
	chunks, err := s.Split(context.Background(), []loader.Document{{Text: text}})
	require.NoError(t, err)

	for i := 1; i < len(chunks); i++ {
		prevEnd := chunks[i-1].StartOffset + utf8.RuneCountInString(chunks[i-1].Text)
		overlap := prevEnd - chunks[i].StartOffset
		assert.LessOrEqual(t, overlap, 40, "chunks %d and %d overlap too much", i-1, i)
	}
}

func TestSplit_MultibyteOffsets(t *testing.T) {
	s, err := New(Config{ChunkSize: 60, ChunkOverlap: 10}, nil)
	require.NoError(t, err)

	var b strings.Builder
	for i := 0; i < 12; i++ {
		fmt.Fprintf(&b, "Café numéro %d sert des crêpes à %d heures. ", i, i+8)
	}
	text := strings.TrimSpace(b.String())

	chunks, err := s.Split(context.Background(), []loader.Document{{Text: text}})
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)
	for i, c := range chunks {
		assert.Equal(t, c.Text, runeSlice(text, c.StartOffset, utf8.RuneCountInString(c.Text)), "chunk %d", i)
	}
}

func TestSplit_PreservesDocumentOrder(t *testing.T) {
	s, err := New(Config{ChunkSize: 150, ChunkOverlap: 20}, nil)
	require.NoError(t, err)

	docs := []loader.Document{
		{Text: sentences(10), Metadata: map[string]any{loader.MetadataPage: 1}},
		{Text: "   \n\t "},
		{Text: sentences(10), Metadata: map[string]any{loader.MetadataPage: 3}},
	}
	chunks, err := s.Split(context.Background(), docs)
	require.NoError(t, err)

	lastPage := 0
	for _, c := range chunks {
		assert.NotEqual(t, 2, c.Page(), "blank document produced a chunk")
		assert.GreaterOrEqual(t, c.Page(), lastPage)
		lastPage = c.Page()
	}
	assert.Equal(t, 3, lastPage)
}

func TestSplit_DoesNotMutateDocumentMetadata(t *testing.T) {
	s, err := New(Config{}, nil)
	require.NoError(t, err)

	md := map[string]any{loader.MetadataPage: 1}
	_, err = s.Split(context.Background(), []loader.Document{{Text: "hello world", Metadata: md}})
	require.NoError(t, err)
	_, ok := md[MetadataStartIndex]
	assert.False(t, ok)
}

func TestLocate_RepeatedText(t *testing.T) {
	text := "alpha beta gamma alpha beta delta"
	offsets := locate(text, []string{"alpha beta gamma", "alpha beta delta"}, 5)
	assert.Equal(t, []int{0, 17}, offsets)
}
