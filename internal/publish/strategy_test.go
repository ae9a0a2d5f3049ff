package publish

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTruncateHTML(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		limit int
		want  string
	}{
		{"short untouched", "<p>kısa</p>", 100, "<p>kısa</p>"},
		{"cuts text and drops later blocks", "<p>alpha beta gamma</p><p>delta</p>", 12, "<p>alpha beta...</p>"},
		{"keeps inline markup balanced", "<p><strong>alpha beta</strong> gamma delta</p><h2>x</h2>", 16, "<p><strong>alpha beta</strong> gamma...</p>"},
		{"disabled", "<p>alpha beta</p>", 0, "<p>alpha beta</p>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := TruncateHTML(tt.in, tt.limit)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTruncateHTML_LargeDocument(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 200; i++ {
		b.WriteString("<p>Bu paragraf yeterince uzun bir metin içerir.</p>")
	}
	out, err := TruncateHTML(b.String(), 3000)
	require.NoError(t, err)
	assert.Less(t, len([]rune(out)), len([]rune(b.String())))
	assert.True(t, strings.HasSuffix(out, "</p>"))
}

func TestTruncateHTML_DropsInlineDataImages(t *testing.T) {
	words := strings.TrimSpace(strings.Repeat("kelime ", 100))
	in := "<p>" + words + `</p><img src="data:image/png;base64,` + strings.Repeat("A", 200000) + `">`
	out, err := TruncateHTML(in, 3000)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(out), 3000*truncatedMarkupFactor)
	assert.NotContains(t, out, "data:")
	assert.Equal(t, "<p>"+words+"</p>", out)
}

func TestTruncateHTML_DropsScriptsAndEmbeds(t *testing.T) {
	in := `<p>alpha</p><script>var x = "` + strings.Repeat("y", 5000) + `";</script>` +
		`<style>p{}</style><iframe src="https://video.example/e"></iframe><img src="https://cdn.example/a.jpg"><p>beta</p>`
	out, err := TruncateHTML(in, 100)
	require.NoError(t, err)
	assert.Equal(t, `<p>alpha</p><img src="https://cdn.example/a.jpg"/><p>beta</p>`, out)
}

func TestTruncateHTML_HeavyMarkupFallsBackToParagraphs(t *testing.T) {
	var b strings.Builder
	b.WriteString("<h2>Başlık</h2><p>")
	attr := strings.Repeat("c", 300)
	for i := 0; i < 40; i++ {
		b.WriteString(`<span class="` + attr + `">söz</span> `)
	}
	b.WriteString("</p>")
	out, err := TruncateHTML(b.String(), 100)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(out), 100*truncatedMarkupFactor)
	assert.True(t, strings.HasPrefix(out, "<p>Başlık</p><p>söz söz"))
	assert.NotContains(t, out, "span")
}

func TestClassifyFailure_Nil(t *testing.T) {
	kind, status := ClassifyFailure(nil)
	assert.Equal(t, KindNone, kind)
	assert.Zero(t, status)
}
