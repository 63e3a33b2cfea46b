package personalize

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/campaign-dispatch/internal/domain"
)

func TestRenderSubstitutesName(t *testing.T) {
	p := New("there")
	out, err := p.Render("Hi {name}", domain.Contact{Email: "a@x.com", Name: "Ana"})
	require.NoError(t, err)
	assert.Equal(t, "Hi Ana", out)
}

func TestRenderDefaults(t *testing.T) {
	p := New("there")
	c := domain.Contact{Email: "b@x.com"}

	out, err := p.Render("Hi {name}, how is {company}?", c)
	require.NoError(t, err)
	assert.Equal(t, "Hi there, how is ?", out)

	out, err = p.Render("{position}|{source}|{email}", domain.Contact{Email: "c@x.com", Position: "CTO", Source: "expo"})
	require.NoError(t, err)
	assert.Equal(t, "CTO|expo|c@x.com", out)
}

func TestRenderLeavesUnknownPlaceholders(t *testing.T) {
	p := New("there")
	out, err := p.Render("Hi {name}, your {plan} plan", domain.Contact{Name: "Ana"})
	require.NoError(t, err)
	assert.Equal(t, "Hi Ana, your {plan} plan", out)
}

func TestRenderLiquidExpressions(t *testing.T) {
	p := New("there")
	out, err := p.Render("Hello {{ name | upcase }} from {{ company | titlecase }}", domain.Contact{Name: "ana", Company: "ACME corp"})
	require.NoError(t, err)
	assert.Equal(t, "Hello ANA from Acme Corp", out)
}

func TestTitlecaseMultiByte(t *testing.T) {
	assert.Equal(t, "Élodie Østergaard", titlecase("élodie ØSTERGAARD"))
	assert.Equal(t, "", titlecase(""))

	p := New("there")
	out, err := p.Render("{{ name | titlecase }}", domain.Contact{Name: "ñandú"})
	require.NoError(t, err)
	assert.Equal(t, "Ñandú", out)
	assert.True(t, utf8.ValidString(out))
}

func TestRenderLiteralBraces(t *testing.T) {
	p := New("there")
	c := domain.Contact{Name: "Ana"}

	out, err := p.Render("Hi {name}, {{ not_a_field }}!", c)
	require.NoError(t, err)
	assert.Equal(t, "Hi Ana, !", out)

	out, err = p.Render("Hi {name}, {% raw %}{{ kept }}{% endraw %}", c)
	require.NoError(t, err)
	assert.Equal(t, "Hi Ana, {{ kept }}", out)
}

func TestValidate(t *testing.T) {
	p := New("there")
	assert.NoError(t, p.Validate("Hi {name}"))
	assert.Error(t, p.Validate("Hi {% if name %}"))
}

func TestToServerSide(t *testing.T) {
	got := ToServerSide("Hi {name} at {company}, {unknown}", MailgunSyntax)
	assert.Equal(t, "Hi %recipient.name% at %recipient.company%, {unknown}", got)
}

func TestNeedsClientRender(t *testing.T) {
	assert.False(t, NeedsClientRender("Hi {name}"))
	assert.True(t, NeedsClientRender("Hi {{ name | upcase }}"))
	assert.True(t, NeedsClientRender("{% if company %}x{% endif %}"))
}

func TestRecipientVariables(t *testing.T) {
	p := New("Cliente")
	vars := p.RecipientVariables([]domain.Contact{
		{Email: "a@x.com", Name: "Ana", Company: "X"},
		{Email: "b@x.com"},
	})
	require.Len(t, vars, 2)
	assert.Equal(t, "Ana", vars["a@x.com"]["name"])
	assert.Equal(t, "X", vars["a@x.com"]["company"])
	assert.Equal(t, "Cliente", vars["b@x.com"]["name"])
	assert.Equal(t, "", vars["b@x.com"]["position"])
}

func TestServerAndClientRenderAgree(t *testing.T) {
	p := New("there")
	tpl := "Hi {name} ({position} at {company})"
	c := domain.Contact{Email: "a@x.com", Name: "Ana", Company: "X", Position: "CEO"}

	client, err := p.Render(tpl, c)
	require.NoError(t, err)

	server := ToServerSide(tpl, MailgunSyntax)
	for k, v := range p.RecipientVariables([]domain.Contact{c})[c.Email] {
		server = strings.ReplaceAll(server, MailgunSyntax.Prefix+k+MailgunSyntax.Suffix, v)
	}
	assert.Equal(t, client, server)
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, []string{"name", "company"}, Placeholders("{name} {company} {name} {x}"))
}
