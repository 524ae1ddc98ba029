package ankiimport

import (
	"io"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// legacyEntities is the fixed set of named entities decoded in card text.
var legacyEntities = map[string]string{
	"amp":    "&",
	"lt":     "<",
	"gt":     ">",
	"quot":   `"`,
	"apos":   "'",
	"nbsp":   "\u00a0",
	"ndash":  "–",
	"mdash":  "—",
	"hellip": "…",
	"lsquo":  "‘",
	"rsquo":  "’",
	"ldquo":  "“",
	"rdquo":  "”",
	"laquo":  "«",
	"raquo":  "»",
	"middot": "·",
	"bull":   "•",
	"deg":    "°",
	"times":  "×",
	"divide": "÷",
	"copy":   "©",
	"reg":    "®",
	"euro":   "€",
	"pound":  "£",
	"cent":   "¢",
	"sect":   "§",
}

var entityPattern = regexp.MustCompile(`&(#[0-9]{1,7}|#[xX][0-9a-fA-F]{1,6}|[a-zA-Z]{2,8});`)

// decodeEntities replaces the legacy named entities and numeric character
// references in one pass. Unknown or invalid references are kept verbatim.
func decodeEntities(s string) string {
	if !strings.Contains(s, "&") {
		return s
	}
	return entityPattern.ReplaceAllStringFunc(s, func(ref string) string {
		name := ref[1 : len(ref)-1]
		if name[0] != '#' {
			if v, ok := legacyEntities[name]; ok {
				return v
			}
			return ref
		}

		var (
			code int64
			err  error
		)
		if name[1] == 'x' || name[1] == 'X' {
			code, err = strconv.ParseInt(name[2:], 16, 32)
		} else {
			code, err = strconv.ParseInt(name[1:], 10, 32)
		}
		r := rune(code)
		if err != nil || code == 0 || !utf8.ValidRune(r) {
			return ref
		}
		return string(r)
	})
}

// rewriteMedia points <img src> references at uploaded URLs. It returns the
// rewritten markup and the references that had no upload. Markup the
// tokenizer cannot read is returned unchanged.
func rewriteMedia(markup string, urls map[string]string) (string, []string) {
	if !strings.Contains(markup, "<") {
		return markup, nil
	}

	var (
		b          strings.Builder
		unresolved []string
	)
	z := html.NewTokenizer(strings.NewReader(markup))
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			if z.Err() == io.EOF {
				return b.String(), unresolved
			}
			return markup, unresolved
		case html.StartTagToken, html.SelfClosingTagToken:
			raw := string(z.Raw())
			tok := z.Token()
			if tok.DataAtom != atom.Img {
				b.WriteString(raw)
				continue
			}
			changed, missing := rewriteImg(&tok, urls)
			if missing != "" {
				unresolved = append(unresolved, missing)
			}
			if changed {
				b.WriteString(tok.String())
			} else {
				b.WriteString(raw)
			}
		default:
			b.Write(z.Raw())
		}
	}
}

func rewriteImg(tok *html.Token, urls map[string]string) (changed bool, missing string) {
	for i, attr := range tok.Attr {
		if attr.Key != "src" {
			continue
		}
		src := strings.TrimSpace(attr.Val)
		if src == "" || isExternal(src) {
			return false, ""
		}
		if u, ok := lookupMedia(src, urls); ok {
			tok.Attr[i].Val = u
			return true, ""
		}
		return false, src
	}
	return false, ""
}

func lookupMedia(src string, urls map[string]string) (string, bool) {
	if u, ok := urls[src]; ok {
		return u, true
	}
	if unescaped, err := url.PathUnescape(src); err == nil {
		if u, ok := urls[unescaped]; ok {
			return u, true
		}
	}
	return "", false
}

func isExternal(src string) bool {
	lower := strings.ToLower(src)
	return strings.HasPrefix(lower, "http://") ||
		strings.HasPrefix(lower, "https://") ||
		strings.HasPrefix(lower, "data:") ||
		strings.HasPrefix(lower, "//")
}

// renderContent prepares one note field for a card side.
func renderContent(field string, urls map[string]string) (string, []string) {
	rewritten, unresolved := rewriteMedia(field, urls)
	return strings.TrimSpace(decodeEntities(rewritten)), unresolved
}
