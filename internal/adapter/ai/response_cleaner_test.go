package ai

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanContent(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"markdown fence", "```markdown\n# Başlık\n\nMetin\n```", "# Başlık\n\nMetin"},
		{"html fence", "```html\n<h1>T</h1><p>x</p>\n```", "<h1>T</h1><p>x</p>"},
		{"preamble", "Sure! Here is your article:\n\n# Kediler\nMetin", "# Kediler\nMetin"},
		{"turkish preamble", "İşte makaleniz:\n# Kediler", "# Kediler"},
		{"full document", "<html><head></head><body><h1>T</h1></body></html>", "<h1>T</h1>"},
		{"plain", "  # Title\nBody  ", "# Title\nBody"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanContent(tt.in))
		})
	}
}

func TestLooksLikeHTML(t *testing.T) {
	assert.True(t, LooksLikeHTML("<h2>Giriş</h2><p>metin</p>"))
	assert.False(t, LooksLikeHTML("# Giriş\n\nmetin"))
}

func TestIsRefusal(t *testing.T) {
	assert.True(t, IsRefusal("I'm sorry, but I can't help with that request."))
	assert.True(t, IsRefusal("Üzgünüm, ancak bu konuda yazamam."))
	assert.False(t, IsRefusal("# Kediler\n\nKediler sevimli hayvanlardır."))
	long := "I'm sorry, but " + strings.Repeat("kedi ", 200)
	assert.False(t, IsRefusal(long))
}
