package rag

import (
	"strings"

	"github.com/tmc/langchaingo/prompts"
)

const (
	// NoMatchingResults is returned as the answer when retrieval finds
	// nothing to ground one on.
	NoMatchingResults = "Unable to find matching results."

	// ContextSeparator joins retrieved chunk texts into the prompt context.
	ContextSeparator = "\n\n---\n\n"

	// PromptTemplate is the f-string prompt sent to the generator.
	PromptTemplate = "Answer the question based only on the following context:\n\n{context}\n\n---\n\nAnswer the question based on the above context: {question}"
)

var answerPrompt = prompts.PromptTemplate{
	Template:       PromptTemplate,
	InputVariables: []string{"context", "question"},
	TemplateFormat: prompts.TemplateFormatFString,
}

// BuildPrompt renders the answer prompt for question over chunks.
func BuildPrompt(question string, chunks []string) (string, error) {
	return answerPrompt.Format(map[string]any{
		"context":  strings.Join(chunks, ContextSeparator),
		"question": question,
	})
}
