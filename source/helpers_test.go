package source

import (
	"strings"
	"testing"
	"time"

	"github.com/poiesic/docingest/core"
	"github.com/poiesic/docingest/extract"
	"github.com/poiesic/docingest/fetch"
	"github.com/stretchr/testify/require"
)

func testFetcher(t *testing.T) *fetch.Fetcher {
	t.Helper()
	f, err := fetch.New(fetch.WithRetries(0), fetch.WithRetryDelay(time.Millisecond))
	require.NoError(t, err)
	return f
}

func testExtractor(t *testing.T) *extract.Extractor {
	t.Helper()
	e, err := extract.New()
	require.NoError(t, err)
	return e
}

func pageHTML(body string) string {
	return "<html><head><title>Page</title></head><body><nav>menu</nav><main>" + body + "</main></body></html>"
}

func longText(word string) string {
	return strings.TrimSpace(strings.Repeat(word+" is documented here. ", 12))
}

func itemAt(location string) core.DiscoveredItem {
	return core.DiscoveredItem{Location: location}
}
