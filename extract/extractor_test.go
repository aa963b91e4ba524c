package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePage = `<!DOCTYPE html>
<html>
<head><title>  Getting Started | Docs </title><style>body{color:red}</style></head>
<body>
  <header><a href="/">Home</a></header>
  <nav class="nav"><ul><li>Menu item</li></ul></nav>
  <div class="sidebar">Sidebar links</div>
  <main>
    <h1>Getting Started</h1>
    <p>Install the   tool with the package manager.</p>
    <script>console.log("tracking")</script>
    <div class="cookie-banner">We use cookies</div>
    <p>Then run it.</p>
  </main>
  <div id="custom"><p>Custom region text.</p><footer>Custom footer</footer></div>
  <footer>Copyright</footer>
</body>
</html>`

func newExtractor(t *testing.T, opts ...Option) *Extractor {
	t.Helper()
	e, err := New(opts...)
	require.NoError(t, err)
	return e
}

func TestExtract_ExplicitSelector(t *testing.T) {
	e := newExtractor(t)

	text, err := e.Extract(samplePage, "#custom")
	require.NoError(t, err)
	assert.Equal(t, "Custom region text.", text)
}

func TestExtract_SelectorOrder(t *testing.T) {
	e := newExtractor(t)

	// First selector matches nothing, second does
	text, err := e.Extract(samplePage, ".does-not-exist", "#custom", "main")
	require.NoError(t, err)
	assert.Equal(t, "Custom region text.", text)
}

func TestExtract_EmptySelectionFallsThrough(t *testing.T) {
	page := `<html><body><div id="empty"><script>x()</script></div><article><p>Article body</p></article></body></html>`
	e := newExtractor(t)

	text, err := e.Extract(page, "#empty")
	require.NoError(t, err)
	assert.Equal(t, "Article body", text)
}

func TestExtract_FallbackMatchesAuto(t *testing.T) {
	e := newExtractor(t)
	pages := []string{
		samplePage,
		`<html><body><p>Just a body</p></body></html>`,
		`<html><body><div class="content">Content <b>div</b></div><nav>Nav</nav></body></html>`,
		``,
	}

	for _, page := range pages {
		auto, err := e.Auto(page)
		require.NoError(t, err)

		viaSelector, err := e.Extract(page, ".no-match", "section#missing")
		require.NoError(t, err)
		assert.Equal(t, auto, viaSelector)
	}
}

func TestExtract_InvalidSelectorSkipped(t *testing.T) {
	e := newExtractor(t)

	text, err := e.Extract(samplePage, "[[[", "#custom")
	require.NoError(t, err)
	assert.Equal(t, "Custom region text.", text)
}

func TestAuto_PrefersContentContainer(t *testing.T) {
	e := newExtractor(t)

	text, err := e.Auto(samplePage)
	require.NoError(t, err)
	assert.Equal(t, "Getting Started Install the tool with the package manager. Then run it.", text)
	assert.NotContains(t, text, "tracking")
	assert.NotContains(t, text, "cookies")
}

func TestAuto_FallsBackToBody(t *testing.T) {
	page := `<html><body><nav>Skip me</nav><div><p>First</p><p>Second</p></div><footer>foot</footer></body></html>`
	e := newExtractor(t)

	text, err := e.Auto(page)
	require.NoError(t, err)
	assert.Equal(t, "First Second", text)
}

func TestAuto_CustomContentSelectors(t *testing.T) {
	page := `<html><body><main>Main text</main><div class="doc">Doc text</div></body></html>`
	e := newExtractor(t, WithContentSelectors([]string{".doc", "main"}))

	text, err := e.Auto(page)
	require.NoError(t, err)
	assert.Equal(t, "Doc text", text)
}

func TestTitle(t *testing.T) {
	assert.Equal(t, "Getting Started | Docs", Title(samplePage))
	assert.Equal(t, "Heading", Title(`<html><body><h1> Heading </h1></body></html>`))
	assert.Equal(t, "", Title(`<html><body><p>none</p></body></html>`))
}

func TestCleanText(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "  a   b  ", want: "a b"},
		{in: "line1\n\n\n  line2", want: "line1 line2"},
		{in: "tab\tsep\r\nrow", want: "tab sep row"},
		{in: "   ", want: ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CleanText(tt.in))
	}
}

func TestCompileSelectors(t *testing.T) {
	assert.NoError(t, CompileSelectors([]string{"main", ".content > p", "[role='main']"}))
	assert.Error(t, CompileSelectors([]string{"main", "[[["}))
}

func TestNew_InvalidOptions(t *testing.T) {
	_, err := New(WithRemoveSelectors(nil))
	assert.ErrorIs(t, err, ErrNoSelectors)

	_, err = New(WithContentSelectors([]string{"div[[["}))
	assert.Error(t, err)
}
