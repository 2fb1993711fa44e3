package web

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderMarkdown_EmptyInput(t *testing.T) {
	assert.Equal(t, "", RenderMarkdown(""))
}

func TestRenderMarkdown(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want []string
	}{
		{"plain text", "returns an integer", []string{"returns an integer"}},
		{"bold", "a **random** integer", []string{"<strong>random</strong>"}},
		{"inline code", "GET `/randomnumber/v1/random`", []string{"<code>/randomnumber/v1/random</code>"}},
		{"link", "[docs](https://example.com)", []string{`<a href="https://example.com"`, "docs</a>"}},
		{"strikethrough", "~~v0~~", []string{"<del>v0</del>"}},
		{"table", "| field | type |\n|---|---|\n| number | int |", []string{"<table>", "<td>number</td>"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := RenderMarkdown(tt.src)
			for _, want := range tt.want {
				assert.Contains(t, result, want)
			}
		})
	}
}

func TestRenderMarkdown_SanitizesScript(t *testing.T) {
	result := RenderMarkdown(`<script>alert("xss")</script>`)
	assert.NotContains(t, result, "<script>")
}

func TestRenderMarkdown_SanitizesEventHandlers(t *testing.T) {
	result := RenderMarkdown(`<img src="x.png" onerror="alert(1)">`)
	assert.NotContains(t, result, "onerror")
}
