package placeholder

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fullTemplate(extra ...string) string {
	var b strings.Builder
	b.WriteString("<html><head><title>{{TITLE}}</title></head><body>")
	for _, name := range RequiredNames() {
		b.WriteString(Token(name))
	}
	for _, e := range extra {
		b.WriteString(e)
	}
	b.WriteString("</body></html>")
	return b.String()
}

func TestBuiltinCatalogShape(t *testing.T) {
	assert.Len(t, RequiredNames(), 8)
	assert.Len(t, OptionalNames(), 5)
	assert.Len(t, AutoNames(), 2)
	assert.ElementsMatch(t, []string{SiteName, Slug}, AutoNames())
	for _, p := range Builtins() {
		assert.Equal(t, OriginBuiltin, p.Origin)
	}
}

func TestCatalogClassify(t *testing.T) {
	cat := NewCatalog([]Placeholder{
		{Name: "AUTHOR", Label: "Author", Kind: KindText},
		{Name: Title, Label: "shadow", Kind: KindNumber},
	})

	assert.Equal(t, ClassRequired, cat.Classify(Title))
	assert.Equal(t, ClassOptional, cat.Classify(ReadingTime))
	assert.Equal(t, ClassAuto, cat.Classify(Slug))
	assert.Equal(t, ClassCustom, cat.Classify("AUTHOR"))
	assert.Equal(t, ClassUnknown, cat.Classify("FOO"))

	// builtin wins over a custom entry with the same name
	p, ok := cat.Lookup(Title)
	require.True(t, ok)
	assert.Equal(t, OriginBuiltin, p.Origin)
	assert.Len(t, cat.Custom(), 1)
}

type stubSource struct {
	items []Placeholder
	err   error
}

func (s stubSource) ListCustom(context.Context, int64) ([]Placeholder, error) {
	return s.items, s.err
}

func TestForSite(t *testing.T) {
	cat, err := ForSite(context.Background(), stubSource{items: []Placeholder{{Name: "FOO", Kind: KindURL}}}, 7)
	require.NoError(t, err)
	p, ok := cat.Lookup("FOO")
	require.True(t, ok)
	assert.Equal(t, OriginCustom, p.Origin)
	assert.False(t, p.Required)

	_, err = ForSite(context.Background(), stubSource{err: errors.New("db down")}, 7)
	require.Error(t, err)
}

func TestScanTemplate(t *testing.T) {
	t.Run("end to end example", func(t *testing.T) {
		s := ScanTemplate(fullTemplate("{{FOO}}"), Catalog{})
		assert.Empty(t, s.Missing)
		assert.Equal(t, []string{"FOO"}, s.Unknown)
		assert.True(t, s.OK())
		assert.NoError(t, s.MissingError())
	})

	t.Run("every absent required name is missing", func(t *testing.T) {
		s := ScanTemplate("{{TITLE}}{{CONTENT}}{{FOO}}", Catalog{})
		assert.ElementsMatch(t, []string{Title, Content}, s.Required)
		assert.Equal(t, []string{"FOO"}, s.Unknown)
		for _, name := range RequiredNames() {
			if name == Title || name == Content {
				assert.NotContains(t, s.Missing, name)
				continue
			}
			assert.Contains(t, s.Missing, name)
		}
		var missErr *MissingPlaceholdersError
		require.ErrorAs(t, s.MissingError(), &missErr)
		assert.Len(t, missErr.Names, 6)
	})

	t.Run("optional auto and custom buckets", func(t *testing.T) {
		cat := NewCatalog([]Placeholder{{Name: "AUTHOR"}})
		s := ScanTemplate(fullTemplate("{{SLUG}}{{READING_TIME}}{{AUTHOR}}{{AUTHOR}}"), cat)
		assert.Equal(t, []string{ReadingTime}, s.Optional)
		assert.Equal(t, []string{Slug}, s.Auto)
		assert.Equal(t, []string{"AUTHOR"}, s.Custom)
		assert.Empty(t, s.Unknown)
	})

	t.Run("malformed html still scanned", func(t *testing.T) {
		s := ScanTemplate("<div><p {{TITLE}} <span>{{ Custom Field }}", Catalog{})
		assert.Equal(t, []string{Title}, s.Required)
		assert.Equal(t, []string{"Custom Field"}, s.Unknown)
	})

	t.Run("idempotent", func(t *testing.T) {
		tpl := fullTemplate("{{FOO}}{{BAR}}{{POST_MONTH}}")
		assert.Equal(t, ScanTemplate(tpl, Catalog{}), ScanTemplate(tpl, Catalog{}))
	})
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		kind    Kind
		value   string
		options string
		want    bool
	}{
		{"empty always valid", KindNumber, "", "", true},
		{"number int", KindNumber, "10", "", true},
		{"number float", KindNumber, "-3.5", "", true},
		{"number junk", KindNumber, "x", "", false},
		{"number padded", KindNumber, " 7 ", "", true},
		{"number exponent", KindNumber, "2.5e3", "", true},
		{"number overflow", KindNumber, "1e400", "", true},
		{"number underflow", KindNumber, "1e-400", "", true},
		{"number hex float", KindNumber, "0x1p-2", "", false},
		{"number signed hex", KindNumber, "-0X10", "", false},
		{"url https", KindURL, "https://example.com", "", true},
		{"url http", KindURL, "http://test", "", true},
		{"url ftp", KindURL, "ftp://x", "", false},
		{"enum exact", KindEnumerated, "Green", "Red,Green,Blue", true},
		{"enum wrong case", KindEnumerated, "green", "Red,Green,Blue", false},
		{"enum padded options", KindEnumerated, "b", "a, b, c", true},
		{"enum padded value", KindEnumerated, " c ", "a, b, c", true},
		{"enum empty options", KindEnumerated, "a", "", false},
		{"enum empty value empty options", KindEnumerated, "", "", true},
		{"text", KindText, "anything", "", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Validate(tc.kind, tc.value, tc.options))
		})
	}
}

func TestPlaceholderAccepts(t *testing.T) {
	p := Placeholder{Name: "COLOR", Kind: KindEnumerated, Options: SplitOptions("Red, Green ,Blue")}
	assert.Equal(t, []string{"Red", "Green", "Blue"}, p.Options)
	assert.True(t, p.Accepts("Green"))
	assert.False(t, p.Accepts("green"))
}

func TestParseKind(t *testing.T) {
	for raw, want := range map[string]Kind{
		"text": KindText, "texto": KindText, "numero": KindNumber,
		"URL": KindURL, "desplegable": KindEnumerated, "enumerated": KindEnumerated,
	} {
		got, err := ParseKind(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, got, raw)
	}
	_, err := ParseKind("date")
	assert.Error(t, err)
}

func TestRender(t *testing.T) {
	t.Run("substitutes every occurrence", func(t *testing.T) {
		out, err := Render("<h1>{{TITLE}}</h1><title>{{TITLE}}</title>{{CONTENT}}", map[string]string{
			Title:   "Hello",
			Content: "<p>body</p>",
		})
		require.NoError(t, err)
		assert.Equal(t, "<h1>Hello</h1><title>Hello</title><p>body</p>", out)
	})

	t.Run("reports all missing names", func(t *testing.T) {
		_, err := Render("{{A}}{{B}}{{C}}{{B}}", map[string]string{"A": "x"})
		var missErr *MissingPlaceholdersError
		require.ErrorAs(t, err, &missErr)
		assert.Equal(t, []string{"B", "C"}, missErr.Names)
	})

	t.Run("values are not re-scanned", func(t *testing.T) {
		out, err := Render("{{A}}", map[string]string{"A": "{{B}}"})
		require.NoError(t, err)
		assert.Equal(t, "{{B}}", out)
	})

	t.Run("extra values are ignored", func(t *testing.T) {
		out, err := Render("plain", map[string]string{"A": "x"})
		require.NoError(t, err)
		assert.Equal(t, "plain", out)
	})

	t.Run("any values", func(t *testing.T) {
		out, err := RenderAny("{{N}} min {{X}}", map[string]any{"N": 4, "X": nil})
		require.NoError(t, err)
		assert.Equal(t, "4 min ", out)
	})
}

func TestScanThenRenderRoundTrip(t *testing.T) {
	tpl := fullTemplate("{{READING_TIME}}{{SOURCE_LIST}}")
	s := ScanTemplate(tpl, Catalog{})
	values := map[string]string{}
	for _, n := range append(append([]string{}, s.Required...), s.Optional...) {
		values[n] = "v-" + strings.ToLower(n)
	}
	out, err := Render(tpl, values)
	require.NoError(t, err)
	for n := range values {
		assert.NotContains(t, out, Token(n))
	}
}
