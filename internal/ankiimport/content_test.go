package ankiimport

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecodeEntities(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, want string
	}{
		{"plain", "plain"},
		{"Tom &amp; Jerry", "Tom & Jerry"},
		{"&lt;b&gt;", "<b>"},
		{"caf&#233;", "café"},
		{"&#x263A; &#X263a;", "☺ ☺"},
		{"a&nbsp;b", "a b"},
		{"&quot;hi&quot; &apos;x&apos;", `"hi" 'x'`},
		{"&amp;lt;", "&lt;"},
		{"&unknown;", "&unknown;"},
		{"&#0;", "&#0;"},
		{"&#xD800;", "&#xD800;"},
		{"AT&T", "AT&T"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, decodeEntities(tt.in))
		})
	}
}

func TestRewriteMedia(t *testing.T) {
	t.Parallel()

	urls := map[string]string{
		"cat.png":      "https://cdn.example.com/cat.png",
		"my photo.jpg": "https://cdn.example.com/photo.jpg",
	}

	t.Run("rewrites known images", func(t *testing.T) {
		t.Parallel()
		out, missing := rewriteMedia(`<div class="q"><img src="cat.png" alt="cat"></div>`, urls)
		assert.Equal(t, `<div class="q"><img src="https://cdn.example.com/cat.png" alt="cat"></div>`, out)
		assert.Empty(t, missing)
	})

	t.Run("unescapes percent encoded names", func(t *testing.T) {
		t.Parallel()
		out, missing := rewriteMedia(`<img src="my%20photo.jpg">`, urls)
		assert.Equal(t, `<img src="https://cdn.example.com/photo.jpg">`, out)
		assert.Empty(t, missing)
	})

	t.Run("leaves unresolved references", func(t *testing.T) {
		t.Parallel()
		in := `<img src="dog.png"> and <IMG SRC='bird.gif' />`
		out, missing := rewriteMedia(in, urls)
		assert.Equal(t, in, out)
		assert.Equal(t, []string{"dog.png", "bird.gif"}, missing)
	})

	t.Run("ignores external sources", func(t *testing.T) {
		t.Parallel()
		in := `<img src="https://example.org/x.png"><img src="data:image/png;base64,AAAA">`
		out, missing := rewriteMedia(in, urls)
		assert.Equal(t, in, out)
		assert.Empty(t, missing)
	})

	t.Run("keeps text and other tags verbatim", func(t *testing.T) {
		t.Parallel()
		in := `<b>bold</b> &amp; <br> text`
		out, missing := rewriteMedia(in, urls)
		assert.Equal(t, in, out)
		assert.Empty(t, missing)
	})
}

func TestRenderContent(t *testing.T) {
	t.Parallel()

	out, missing := renderContent("  <img src=\"cat.png\"> caf&eacute; &amp; cr&egrave;me  ", map[string]string{"cat.png": "u"})
	assert.Equal(t, `<img src="u"> caf&eacute; & cr&egrave;me`, out)
	assert.Empty(t, missing)
}
