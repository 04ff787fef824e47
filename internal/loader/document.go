package loader

import "strconv"

// Metadata keys set by the loader.
const (
	MetadataSource     = "source"
	MetadataPage       = "page"
	MetadataTotalPages = "total_pages"
)

// Document is a unit of loaded text: one PDF page or one Markdown file.
type Document struct {
	Text     string
	Metadata map[string]any
}

// Page returns the document's 1-based page number, or 0 when unknown.
func (d Document) Page() int {
	return PageOf(d.Metadata)
}

// PageOf reads the page number from metadata. Values round-tripped through
// a vector store come back as strings or floats, so those are accepted too.
func PageOf(md map[string]any) int {
	switch v := md[MetadataPage].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}
