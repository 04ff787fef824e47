package vectorstore

import (
	"fmt"
	"strconv"
)

// Document is a text to index.
type Document struct {
	// ID must be unique within one rebuild.
	ID string

	Content string

	// Metadata values are stored as strings and come back from Search as
	// strings.
	Metadata map[string]interface{}
}

// SearchResult is one neighbour returned by Search.
type SearchResult struct {
	ID      string
	Content string

	// Score is the cosine similarity (higher = more similar).
	Score float32

	Metadata map[string]interface{}
}

func convertMetadataToString(metadata map[string]interface{}) map[string]string {
	if metadata == nil {
		return nil
	}

	result := make(map[string]string, len(metadata))
	for k, v := range metadata {
		switch val := v.(type) {
		case string:
			result[k] = val
		case int:
			result[k] = strconv.Itoa(val)
		case int64:
			result[k] = strconv.FormatInt(val, 10)
		case float64:
			result[k] = strconv.FormatFloat(val, 'f', -1, 64)
		case bool:
			result[k] = strconv.FormatBool(val)
		default:
			result[k] = fmt.Sprintf("%v", val)
		}
	}
	return result
}

func convertMetadataFromString(metadata map[string]string) map[string]interface{} {
	result := make(map[string]interface{}, len(metadata))
	for k, v := range metadata {
		result[k] = v
	}
	return result
}
