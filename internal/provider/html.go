package provider

import (
	"bytes"
	"html"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
)

// htmlRenderer turns a plain-text or Markdown body into a sanitized HTML part.
type htmlRenderer struct {
	md     goldmark.Markdown
	policy *bluemonday.Policy
}

func newHTMLRenderer() *htmlRenderer {
	return &htmlRenderer{
		md:     goldmark.New(),
		policy: bluemonday.UGCPolicy(),
	}
}

func (r *htmlRenderer) Render(body string) (string, error) {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(body), &buf); err != nil {
		return "", err
	}
	return r.policy.Sanitize(buf.String()), nil
}

// htmlVarSuffix marks the recipient variables used inside a server-side
// HTML part: {name} becomes %recipient.name_html%.
const htmlVarSuffix = "_html"

// addEscapedVariables adds an HTML-escaped copy of every value under its
// htmlVarSuffix key.
func addEscapedVariables(vars map[string]map[string]string) {
	for _, fields := range vars {
		for _, k := range keys(fields) {
			fields[k+htmlVarSuffix] = html.EscapeString(fields[k])
		}
	}
}

func keys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
