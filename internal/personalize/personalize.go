// Package personalize renders campaign templates for individual recipients.
//
// Templates address recipients with single-brace placeholders: {name},
// {company}, {position}, {source} and {email}. Client-side rendering resolves
// them here through a Liquid engine, which also lets authors use Liquid
// expressions such as {{ company | upcase }}. Server-side rendering rewrites
// the placeholders into the provider's own per-recipient syntax and ships the
// values alongside the batch.
//
// Because templates are Liquid, literal "{{ ... }}" text renders as the value
// of that expression (empty for unknown names) and an unbalanced "{%" fails
// Validate. Wrap such text in {% raw %}...{% endraw %} to send it verbatim.
package personalize

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/osteele/liquid"

	"github.com/ignite/campaign-dispatch/internal/domain"
)

// Field names usable as {placeholders}.
const (
	FieldName     = "name"
	FieldCompany  = "company"
	FieldPosition = "position"
	FieldSource   = "source"
	FieldEmail    = "email"
)

var placeholderRe = regexp.MustCompile(`\{(name|company|position|source|email)\}`)

// Syntax is a provider's per-recipient variable notation: Prefix + field + Suffix.
type Syntax struct {
	Prefix string
	Suffix string
}

// MailgunSyntax renders {name} as %recipient.name%.
var MailgunSyntax = Syntax{Prefix: "%recipient.", Suffix: "%"}

// Personalizer renders templates. It is safe for concurrent use.
type Personalizer struct {
	engine      *liquid.Engine
	defaultName string
	cache       sync.Map // template source -> *liquid.Template
}

// New returns a Personalizer that greets nameless contacts with defaultName.
func New(defaultName string) *Personalizer {
	p := &Personalizer{engine: liquid.NewEngine(), defaultName: defaultName}
	p.engine.RegisterFilter("titlecase", titlecase)
	return p
}

func titlecase(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToTitle(r)) + w[size:]
	}
	return strings.Join(words, " ")
}

// DefaultName is the salutation used when a contact has no name.
func (p *Personalizer) DefaultName() string { return p.defaultName }

// Fields returns the substitution values for c. Missing attributes are empty
// except name, which falls back to the default salutation.
func (p *Personalizer) Fields(c domain.Contact) map[string]string {
	name := strings.TrimSpace(c.Name)
	if name == "" {
		name = p.defaultName
	}
	return map[string]string{
		FieldName:     name,
		FieldCompany:  c.Company,
		FieldPosition: c.Position,
		FieldSource:   c.Source,
		FieldEmail:    c.Email,
	}
}

// Validate reports whether tpl compiles.
func (p *Personalizer) Validate(tpl string) error {
	if _, err := p.compile(tpl); err != nil {
		return fmt.Errorf("template: %w", err)
	}
	return nil
}

// Render substitutes c's attributes into tpl.
func (p *Personalizer) Render(tpl string, c domain.Contact) (string, error) {
	compiled, err := p.compile(tpl)
	if err != nil {
		return "", fmt.Errorf("template: %w", err)
	}
	bindings := make(map[string]any, 5)
	for k, v := range p.Fields(c) {
		bindings[k] = v
	}
	out, err := compiled.RenderString(bindings)
	if err != nil {
		return "", fmt.Errorf("template render: %w", err)
	}
	return out, nil
}

func (p *Personalizer) compile(tpl string) (*liquid.Template, error) {
	if cached, ok := p.cache.Load(tpl); ok {
		return cached.(*liquid.Template), nil
	}
	compiled, err := p.engine.ParseString(toLiquid(tpl))
	if err != nil {
		return nil, err
	}
	p.cache.Store(tpl, compiled)
	return compiled, nil
}

// toLiquid rewrites {field} placeholders as {{ field }}. Existing Liquid
// markup is left alone.
func toLiquid(tpl string) string {
	return placeholderRe.ReplaceAllString(tpl, "{{ $1 }}")
}

// NeedsClientRender reports whether tpl uses Liquid markup that a provider
// cannot evaluate, forcing per-recipient rendering.
func NeedsClientRender(tpl string) bool {
	return strings.Contains(tpl, "{{") || strings.Contains(tpl, "{%")
}

// ToServerSide rewrites {field} placeholders into the provider syntax s.
func ToServerSide(tpl string, s Syntax) string {
	return placeholderRe.ReplaceAllStringFunc(tpl, func(m string) string {
		return s.Prefix + m[1:len(m)-1] + s.Suffix
	})
}

// RecipientVariables maps each contact's email to its substitution values,
// the companion payload for a server-side rendered batch.
func (p *Personalizer) RecipientVariables(contacts []domain.Contact) map[string]map[string]string {
	vars := make(map[string]map[string]string, len(contacts))
	for _, c := range contacts {
		vars[c.Email] = p.Fields(c)
	}
	return vars
}

// Placeholders lists the distinct {fields} used in tpl, in order of first use.
func Placeholders(tpl string) []string {
	var out []string
	seen := map[string]bool{}
	for _, m := range placeholderRe.FindAllStringSubmatch(tpl, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			out = append(out, m[1])
		}
	}
	return out
}
