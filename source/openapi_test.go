package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/poiesic/docingest/cache"
	"github.com/poiesic/docingest/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ordersSpec = `{
  "openapi": "3.0.0",
  "info": {"title": "Orders API", "version": "1.0", "description": "Manage orders placed in the store."},
  "paths": {
    "/orders/{orderId}": {
      "get": {"operationId": "GetOrder", "summary": "Get order details by identifier for ops"},
      "post": {"operationId": "CancelOrder", "summary": "Cancel an order by identifier for operation team"}
    }
  }
}`

type fakeLister struct {
	files []RemoteFile
	err   error
}

func (l *fakeLister) List(context.Context) ([]RemoteFile, error) {
	return l.files, l.err
}

func ordersConfig() OpenAPIConfig {
	return OpenAPIConfig{
		GitHubRepo:  "acme/openapi-schemas",
		Branch:      "main",
		FilePrefix:  "Acme - ",
		DocsBaseURL: "https://developers.acme.com/docs/api-reference",
	}
}

func loadOrders(t *testing.T) *openapi3.T {
	t.Helper()
	doc, err := openapi3.NewLoader().LoadFromData([]byte(ordersSpec))
	require.NoError(t, err)
	return doc
}

func TestEndpointText_LengthThreshold(t *testing.T) {
	doc := loadOrders(t)
	item := doc.Paths.Value("/orders/{orderId}")
	require.NotNil(t, item)

	get := EndpointText("GET", "/orders/{orderId}", item.Get, "Orders API")
	post := EndpointText("POST", "/orders/{orderId}", item.Post, "Orders API")
	assert.Len(t, get, 95)
	assert.Len(t, post, 105)
	assert.Contains(t, post, "**Endpoint:** `POST /orders/{orderId}`")

	docs := OpenAPIDocuments(doc, "Acme - Orders API.json", ordersConfig())
	require.Len(t, docs, 2)

	overview := docs[0]
	assert.Equal(t, "openapi_"+core.ShortHash("Acme - Orders API.json", 8)+"_overview", overview.ID)
	assert.Equal(t, "# Orders API\n\nManage orders placed in the store.", overview.Text)
	assert.Equal(t, "https://developers.acme.com/docs/api-reference/orders-api", overview.URL)

	endpoint := docs[1]
	assert.Equal(t, post, endpoint.Text)
	assert.Equal(t, "Orders API - Cancel an order by identifier for operation team", endpoint.Source)
	assert.Equal(t, "https://developers.acme.com/docs/api-reference/orders-api#CancelOrder", endpoint.URL)
	assert.Equal(t,
		"openapi_"+core.ShortHash("Acme - Orders API.json", 8)+"_"+core.ShortHash("/orders/{orderId}post", 8),
		endpoint.ID)
}

func TestEndpointText_FullOperation(t *testing.T) {
	ok := "Order found"
	op := &openapi3.Operation{
		Summary:     "Get order",
		Tags:        []string{"Orders", "Fulfillment"},
		Description: `Line one\r\nLine two`,
		Parameters: openapi3.Parameters{
			{Value: &openapi3.Parameter{Name: "orderId", In: "path", Required: true, Description: "Order identifier"}},
			{Value: &openapi3.Parameter{Name: "fields", In: "query"}},
		},
		RequestBody: &openapi3.RequestBodyRef{Value: &openapi3.RequestBody{Description: "Nothing to send"}},
		Responses: openapi3.NewResponses(
			openapi3.WithStatus(404, &openapi3.ResponseRef{Value: &openapi3.Response{}}),
			openapi3.WithStatus(200, &openapi3.ResponseRef{Value: &openapi3.Response{Description: &ok}}),
		),
	}

	text := EndpointText("GET", "/orders/{id}", op, "Orders API")

	want := strings.Join([]string{
		"# Orders API",
		"## Get order",
		"Category: Orders, Fulfillment",
		"",
		"**Endpoint:** `GET /orders/{id}`",
		"",
		"Line one\nLine two",
		"",
		"### Parameters",
		"- **orderId** [path] (required): Order identifier",
		"- **fields** [query] (optional): No description",
		"",
		"### Request Body",
		"Nothing to send",
		"",
		"### Responses",
		"- **200**: Order found",
		"- **404**: No description",
	}, "\n")
	assert.Equal(t, want, text)
}

func TestOpenAPIDocuments_TaggedSource(t *testing.T) {
	doc := &openapi3.T{
		Info:  &openapi3.Info{Title: "Catalog"},
		Paths: openapi3.NewPaths(),
	}
	doc.Paths.Set("/products", &openapi3.PathItem{
		Get: &openapi3.Operation{
			OperationID: "ListProducts",
			Tags:        []string{"Products"},
			Description: strings.Repeat("Lists every product in the catalog. ", 4),
		},
	})

	docs := OpenAPIDocuments(doc, "Catalog.json", OpenAPIConfig{DocsBaseURL: "https://d.example.com"})
	require.Len(t, docs, 1, "no overview without an info description")
	assert.Equal(t, "Catalog - Products - /products", docs[0].Source)
	assert.Equal(t, "https://d.example.com/catalog#ListProducts", docs[0].URL)
}

func TestAPISlug(t *testing.T) {
	tests := []struct {
		file, prefix, want string
	}{
		{"Acme - Orders API.json", "Acme - ", "orders-api"},
		{"Acme - Catalog - Products API.json", "Acme - ", "catalog-products-api"},
		{"Payments  Gateway.json", "", "payments-gateway"},
		{"Checkout---API.json", "", "checkout-api"},
	}
	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			assert.Equal(t, tt.want, APISlug(tt.file, tt.prefix))
		})
	}
}

func TestOpenAPISource_Discover(t *testing.T) {
	lister := &fakeLister{files: []RemoteFile{
		{Name: "Acme - Orders API.json", Type: "file", SHA: "sha-orders"},
		{Name: "Acme - Catalog.yaml", Type: "file", SHA: "sha-yaml"},
		{Name: "Other - Billing.json", Type: "file", SHA: "sha-other"},
		{Name: "Acme - Drafts.json", Type: "dir", SHA: "sha-dir"},
		{Name: "README.md", Type: "file", SHA: "sha-readme"},
	}}
	src, err := NewOpenAPISource(ordersConfig(), lister, testFetcher(t))
	require.NoError(t, err)

	items, err := src.Discover(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Acme - Orders API.json", items[0].Location)
	assert.Equal(t, "sha-orders", items[0].ChangeSignal)

	lister.err = errors.New("api down")
	_, err = src.Discover(context.Background())
	assert.ErrorIs(t, err, ErrDiscovery)
}

func TestOpenAPISource_ShouldSkip(t *testing.T) {
	src, err := NewOpenAPISource(ordersConfig(), &fakeLister{}, testFetcher(t))
	require.NoError(t, err)

	c := cache.Cache{}
	cache.Update(c, "Acme - Orders API.json", "h", cache.WithRemoteHash("sha-1"))

	item := core.DiscoveredItem{Location: "Acme - Orders API.json", ChangeSignal: "sha-1"}
	assert.True(t, src.ShouldSkip(item, State{Cache: c}))
	assert.False(t, src.ShouldSkip(item, State{Cache: c, Force: true}))

	item.ChangeSignal = "sha-2"
	assert.False(t, src.ShouldSkip(item, State{Cache: c}))
}

func TestOpenAPISource_Process(t *testing.T) {
	var requested atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requested.Store(r.URL.EscapedPath())
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(ordersSpec))
	}))
	defer srv.Close()

	src, err := NewOpenAPISource(ordersConfig(), &fakeLister{}, testFetcher(t), WithRawBaseURL(srv.URL))
	require.NoError(t, err)

	item := core.DiscoveredItem{Location: "Acme - Orders API.json", ChangeSignal: "sha-orders"}
	docs, res, err := src.Process(context.Background(), item, State{})
	require.NoError(t, err)
	assert.Len(t, docs, 2)
	assert.Equal(t, "/acme/openapi-schemas/main/Acme%20-%20Orders%20API.json", requested.Load())

	require.NotNil(t, res)
	assert.Equal(t, "Acme - Orders API.json", res.Key)
	assert.Equal(t, "sha-orders", res.RemoteHash)
	assert.Equal(t, cache.Hash(ordersSpec), res.Hash)
}

func TestOpenAPISource_ProcessInvalidDocument(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("{not json"))
	}))
	defer srv.Close()

	src, err := NewOpenAPISource(ordersConfig(), &fakeLister{}, testFetcher(t), WithRawBaseURL(srv.URL))
	require.NoError(t, err)

	_, _, err = src.Process(context.Background(), core.DiscoveredItem{Location: "Acme - Broken.json"}, State{})
	var pe *core.ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "Acme - Broken.json", pe.Source)
}

func TestNewOpenAPISource_RequiresLister(t *testing.T) {
	_, err := NewOpenAPISource(ordersConfig(), nil, testFetcher(t))
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
