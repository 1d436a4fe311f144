// Package prompt assembles the message list sent to providers from a user
// prompt, optional context documents, and prior conversation turns. HTML
// documents are converted to Markdown before inclusion so providers see clean
// text instead of markup.
package prompt

import (
	"fmt"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"

	"github.com/leofalp/duet/providers/ai"
)

// Media types recognized for context documents. Anything other than HTML is
// included verbatim.
const (
	MediaTypeText     = "text/plain"
	MediaTypeMarkdown = "text/markdown"
	MediaTypeHTML     = "text/html"
)

// Document is one piece of supporting context attached to a request.
type Document struct {
	Title     string `json:"title,omitempty"`
	MediaType string `json:"media_type,omitempty"`
	Content   string `json:"content"`
}

// Markdown returns the document's content as Markdown. HTML is converted;
// everything else passes through trimmed.
func (d Document) Markdown() (string, error) {
	if d.MediaType != MediaTypeHTML {
		return strings.TrimSpace(d.Content), nil
	}

	markdown, err := htmltomarkdown.ConvertString(d.Content)
	if err != nil {
		return "", fmt.Errorf("convert document %q: %w", d.Title, err)
	}

	return strings.TrimSpace(markdown), nil
}

// BuildMessages assembles the provider message list: prior turns first, then
// one user message holding the rendered context documents (if any) and the
// prompt itself.
func BuildMessages(userPrompt string, documents []Document, history []ai.Message) ([]ai.Message, error) {
	messages := make([]ai.Message, 0, len(history)+1)
	messages = append(messages, history...)

	content, err := renderUserContent(userPrompt, documents)
	if err != nil {
		return nil, err
	}

	messages = append(messages, ai.Message{Role: ai.RoleUser, Content: content})
	return messages, nil
}

// renderUserContent prefixes the prompt with a context block when documents
// are supplied.
func renderUserContent(userPrompt string, documents []Document) (string, error) {
	if len(documents) == 0 {
		return userPrompt, nil
	}

	var builder strings.Builder
	builder.WriteString("Context:\n\n")

	for i, document := range documents {
		markdown, err := document.Markdown()
		if err != nil {
			return "", err
		}

		title := document.Title
		if title == "" {
			title = fmt.Sprintf("Document %d", i+1)
		}

		fmt.Fprintf(&builder, "## %s\n\n%s\n\n", title, markdown)
	}

	builder.WriteString("---\n\n")
	builder.WriteString(userPrompt)

	return builder.String(), nil
}
