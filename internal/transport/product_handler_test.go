package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path"
	"strings"
	"testing"

	"printshop/internal/domain"
	"printshop/internal/semantic"
	"printshop/internal/storage"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var pngImage = append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 32)...)

type stubDescriber struct {
	text string
	err  error
}

func (s stubDescriber) Describe(ctx context.Context, prompt string) (string, error) {
	return s.text, s.err
}

type orderedRanker struct {
	names []string
}

func (o orderedRanker) Rank(ctx context.Context, query string, candidates []domain.Candidate) ([]domain.Candidate, error) {
	out := make([]domain.Candidate, len(o.names))
	for i, n := range o.names {
		out[i] = domain.Candidate{Name: n}
	}
	return out, nil
}

func productNames(resp ProductListResponse) []string {
	names := make([]string, len(resp.Products))
	for i, p := range resp.Products {
		names[i] = p.Name
	}
	return names
}

func seedCatalog(h *harness) (banners, calendars *domain.Category) {
	banners = h.addCategory("Banner")
	calendars = h.addCategory("Kalender")
	h.addProduct("PVC Banner", "Wetterfestes Banner fuer draussen", domain.StatusAvailable, banners)
	h.addProduct("Mesh Banner", "Winddurchlaessiges Gewebe", domain.StatusUnavailable, banners)
	h.addProduct("Wandkalender", "Zwoelf Monate im A3 Format", domain.StatusAvailable, calendars)
	h.addProduct("Visitenkarten", "Klassische Karten ohne Kategorie", domain.StatusAvailable, nil)
	return banners, calendars
}

func listProducts(t *testing.T, h *harness, rawQuery string) ProductListResponse {
	t.Helper()
	w := h.do(httptest.NewRequest(http.MethodGet, "/api/products?"+rawQuery, nil), "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp ProductListResponse
	decodeBody(t, w, &resp)
	return resp
}

func TestListProducts_EmptyQueryReturnsCatalogInOrder(t *testing.T) {
	h := newHarness(t, nil, nil)
	seedCatalog(h)

	resp := listProducts(t, h, "")

	assert.Equal(t, 4, resp.Total)
	assert.Equal(t, []string{"PVC Banner", "Mesh Banner", "Wandkalender", "Visitenkarten"}, productNames(resp))
}

func TestListProducts_LiteralMatchWithoutRanker(t *testing.T) {
	h := newHarness(t, nil, nil)
	seedCatalog(h)

	resp := listProducts(t, h, "q=BANNER")

	assert.Equal(t, []string{"PVC Banner", "Mesh Banner"}, productNames(resp))
}

func TestListProducts_RankerOrderIsKept(t *testing.T) {
	h := newHarness(t, orderedRanker{names: []string{"Wandkalender", "Unbekannt", "PVC Banner"}}, nil)
	seedCatalog(h)

	resp := listProducts(t, h, "q=etwas+zum+aufhaengen")

	assert.Equal(t, []string{"Wandkalender", "PVC Banner"}, productNames(resp))
}

func TestListProducts_FallsBackWhenRankerFails(t *testing.T) {
	h := newHarness(t, failingRanker{}, nil)
	seedCatalog(h)

	resp := listProducts(t, h, "q=kalender")

	assert.Equal(t, []string{"Wandkalender"}, productNames(resp))
}

func TestListProducts_Filters(t *testing.T) {
	h := newHarness(t, nil, nil)
	banners, calendars := seedCatalog(h)

	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"single category", "category=" + banners.ID.String(), []string{"PVC Banner", "Mesh Banner"}},
		{"repeated categories", "category=" + banners.ID.String() + "&category=" + calendars.ID.String(), []string{"PVC Banner", "Mesh Banner", "Wandkalender"}},
		{"comma separated categories", "category=" + calendars.ID.String() + "," + banners.ID.String(), []string{"PVC Banner", "Mesh Banner", "Wandkalender"}},
		{"available only", "available=true", []string{"PVC Banner", "Wandkalender", "Visitenkarten"}},
		{"category and availability", "category=" + banners.ID.String() + "&available=true", []string{"PVC Banner"}},
		{"search then filter", "q=banner&available=1", []string{"PVC Banner"}},
		{"available false keeps all", "available=false", []string{"PVC Banner", "Mesh Banner", "Wandkalender", "Visitenkarten"}},
		{"unknown category", "category=" + uuid.NewString(), []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := listProducts(t, h, tt.query)
			assert.Equal(t, tt.want, productNames(resp))
			assert.Equal(t, len(tt.want), resp.Total)
		})
	}
}

func TestListProducts_InvalidFiltersAreRejected(t *testing.T) {
	h := newHarness(t, nil, nil)

	w := h.do(httptest.NewRequest(http.MethodGet, "/api/products?category=nope&available=maybe", nil), "")

	require.Equal(t, http.StatusBadRequest, w.Code)
	var resp validationResponse
	decodeBody(t, w, &resp)
	assert.Equal(t, []string{"category", "available"}, resp.fields())
}

func TestGetProduct(t *testing.T) {
	h := newHarness(t, nil, nil)
	seedCatalog(h)
	product := h.products.products[2]

	w := h.do(httptest.NewRequest(http.MethodGet, "/api/products/"+product.ID.String(), nil), "")
	require.Equal(t, http.StatusOK, w.Code)
	var got domain.Product
	decodeBody(t, w, &got)
	assert.Equal(t, product.ID, got.ID)
	assert.Equal(t, "Wandkalender", got.Name)

	w = h.do(httptest.NewRequest(http.MethodGet, "/api/products/"+uuid.NewString(), nil), "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = h.do(httptest.NewRequest(http.MethodGet, "/api/products/not-an-id", nil), "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func productFields(categoryID string) map[string]string {
	return map[string]string{
		"name":        "Roll-up Display",
		"description": "Aufsteller mit Tasche, 85 x 200 cm",
		"price":       "89.90",
		"category_id": categoryID,
	}
}

func TestCreateProduct_AsAdmin(t *testing.T) {
	h := newHarness(t, nil, nil)
	banners := h.addCategory("Banner")

	w := h.do(multipartRequest(http.MethodPost, "/api/products", productFields(banners.ID.String()), pngImage, "display.png"), h.adminToken)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created domain.Product
	decodeBody(t, w, &created)
	assert.Equal(t, "Roll-up Display", created.Name)
	assert.Equal(t, "89.9", created.Price.String())
	assert.Equal(t, domain.StatusAvailable, created.Status)
	require.NotNil(t, created.CategoryID)
	assert.Equal(t, banners.ID, *created.CategoryID)
	assert.True(t, strings.HasPrefix(created.ImageURL, "/uploads/"))
	assert.Equal(t, ".png", path.Ext(created.ImageURL))

	exists, err := afero.Exists(h.fs, path.Join("public/uploads", path.Base(created.ImageURL)))
	require.NoError(t, err)
	assert.True(t, exists, "image should be written to the upload directory")

	resp := listProducts(t, h, "")
	assert.Equal(t, []string{"Roll-up Display"}, productNames(resp))
}

func TestCreateProduct_RequiresAdmin(t *testing.T) {
	h := newHarness(t, nil, nil)
	banners := h.addCategory("Banner")

	tests := []struct {
		name  string
		token string
		want  int
	}{
		{"anonymous", "", http.StatusUnauthorized},
		{"regular user", h.userToken, http.StatusForbidden},
		{"garbage token", "not-a-jwt", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := multipartRequest(http.MethodPost, "/api/products", productFields(banners.ID.String()), pngImage, "display.png")
			w := h.do(req, tt.token)
			assert.Equal(t, tt.want, w.Code)
		})
	}

	assert.Empty(t, h.products.products)
}

func TestCreateProduct_ValidationErrorsListEveryField(t *testing.T) {
	h := newHarness(t, nil, nil)

	fields := map[string]string{
		"name":        "ab",
		"description": "kurz",
		"price":       "0",
		"category_id": "",
		"status":      "sold",
	}
	w := h.do(multipartRequest(http.MethodPost, "/api/products", fields, nil, ""), h.adminToken)

	require.Equal(t, http.StatusBadRequest, w.Code)
	var resp validationResponse
	decodeBody(t, w, &resp)
	assert.Equal(t, []string{"name", "description", "price", "category_id", "status", "image"}, resp.fields())
	assert.Empty(t, h.products.products)
}

func TestCreateProduct_UnknownCategory(t *testing.T) {
	h := newHarness(t, nil, nil)

	w := h.do(multipartRequest(http.MethodPost, "/api/products", productFields(uuid.NewString()), pngImage, "display.png"), h.adminToken)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Empty(t, h.products.products)
}

func TestCreateProduct_RejectsNonImageUpload(t *testing.T) {
	h := newHarness(t, nil, nil)
	banners := h.addCategory("Banner")

	uploads := map[string][]byte{
		"x.svg":  []byte(`<svg xmlns="http://www.w3.org/2000/svg"><script>alert(1)</script></svg>`),
		"x.html": []byte("<!DOCTYPE html><html><script>alert(1)</script></html>"),
	}
	for filename, data := range uploads {
		w := h.do(multipartRequest(http.MethodPost, "/api/products", productFields(banners.ID.String()), data, filename), h.adminToken)

		require.Equal(t, http.StatusBadRequest, w.Code, filename)
		var resp validationResponse
		decodeBody(t, w, &resp)
		assert.Equal(t, []string{"image"}, resp.fields(), filename)
	}

	assert.Empty(t, h.products.products)
	exists, err := afero.DirExists(h.fs, "public/uploads")
	require.NoError(t, err)
	assert.False(t, exists, "rejected uploads must not be written")
}

func TestCreateProduct_StoredExtensionFollowsContent(t *testing.T) {
	h := newHarness(t, nil, nil)
	banners := h.addCategory("Banner")

	w := h.do(multipartRequest(http.MethodPost, "/api/products", productFields(banners.ID.String()), pngImage, "x.html"), h.adminToken)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created domain.Product
	decodeBody(t, w, &created)
	assert.Equal(t, ".png", path.Ext(created.ImageURL))
}

func TestRespondServiceError_UnsupportedImageIsFieldError(t *testing.T) {
	w := httptest.NewRecorder()
	respondServiceError(w, zap.NewNop(), fmt.Errorf("save: %w: text/html", storage.ErrUnsupportedImage), "create product")

	require.Equal(t, http.StatusBadRequest, w.Code)
	var resp validationResponse
	decodeBody(t, w, &resp)
	assert.Equal(t, []string{"image"}, resp.fields())
}

func TestCreateProduct_RejectsOversizedUpload(t *testing.T) {
	h := newHarness(t, nil, nil)
	banners := h.addCategory("Banner")

	huge := append(append([]byte{}, pngImage...), bytes.Repeat([]byte{1}, MaxUploadBytes)...)
	w := h.do(multipartRequest(http.MethodPost, "/api/products", productFields(banners.ID.String()), huge, "huge.png"), h.adminToken)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Empty(t, h.products.products)
}

func TestCreateProduct_RejectsNonMultipartBody(t *testing.T) {
	h := newHarness(t, nil, nil)

	w := h.do(jsonRequest(http.MethodPost, "/api/products", map[string]string{"name": "x"}), h.adminToken)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpdateProduct_KeepsImageWhenOmitted(t *testing.T) {
	h := newHarness(t, nil, nil)
	banners, calendars := seedCatalog(h)
	product := h.products.products[0]

	fields := productFields(calendars.ID.String())
	fields["status"] = string(domain.StatusUnavailable)
	w := h.do(multipartRequest(http.MethodPut, "/api/products/"+product.ID.String(), fields, nil, ""), h.adminToken)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var updated domain.Product
	decodeBody(t, w, &updated)
	assert.Equal(t, "Roll-up Display", updated.Name)
	assert.Equal(t, domain.StatusUnavailable, updated.Status)
	assert.Equal(t, "/uploads/seed.png", updated.ImageURL)
	require.NotNil(t, updated.CategoryID)
	assert.Equal(t, calendars.ID, *updated.CategoryID)

	resp := listProducts(t, h, "category="+banners.ID.String())
	assert.Equal(t, []string{"Mesh Banner"}, productNames(resp))
}

func TestUpdateProduct_ReplacesImage(t *testing.T) {
	h := newHarness(t, nil, nil)
	banners, _ := seedCatalog(h)
	product := h.products.products[0]

	w := h.do(multipartRequest(http.MethodPut, "/api/products/"+product.ID.String(), productFields(banners.ID.String()), pngImage, "new.png"), h.adminToken)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var updated domain.Product
	decodeBody(t, w, &updated)
	assert.NotEqual(t, "/uploads/seed.png", updated.ImageURL)
	assert.True(t, strings.HasPrefix(updated.ImageURL, "/uploads/"))
}

func TestUpdateProduct_NotFound(t *testing.T) {
	h := newHarness(t, nil, nil)
	banners := h.addCategory("Banner")

	w := h.do(multipartRequest(http.MethodPut, "/api/products/"+uuid.NewString(), productFields(banners.ID.String()), nil, ""), h.adminToken)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeleteProduct(t *testing.T) {
	h := newHarness(t, nil, nil)
	seedCatalog(h)
	product := h.products.products[1]
	target := "/api/products/" + product.ID.String()

	w := h.do(httptest.NewRequest(http.MethodDelete, target, nil), h.userToken)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = h.do(httptest.NewRequest(http.MethodDelete, target, nil), h.adminToken)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = h.do(httptest.NewRequest(http.MethodGet, target, nil), "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = h.do(httptest.NewRequest(http.MethodDelete, target, nil), h.adminToken)
	assert.Equal(t, http.StatusNotFound, w.Code)

	assert.Equal(t, 3, listProducts(t, h, "").Total)
}

func TestGenerateDescription(t *testing.T) {
	tests := []struct {
		name       string
		describer  semantic.Describer
		body       interface{}
		wantStatus int
		wantText   string
	}{
		{
			name:       "generated",
			describer:  stubDescriber{text: "Robustes Banner fuer jede Witterung."},
			body:       DescribeRequest{Prompt: "PVC Banner, wetterfest"},
			wantStatus: http.StatusOK,
			wantText:   "Robustes Banner fuer jede Witterung.",
		},
		{
			name:       "disabled",
			describer:  nil,
			body:       DescribeRequest{Prompt: "PVC Banner"},
			wantStatus: http.StatusServiceUnavailable,
		},
		{
			name:       "adapter failure",
			describer:  stubDescriber{err: errors.Join(semantic.ErrAdapterUnavailable, errors.New("timeout"))},
			body:       DescribeRequest{Prompt: "PVC Banner"},
			wantStatus: http.StatusServiceUnavailable,
		},
		{
			name:       "missing prompt",
			describer:  stubDescriber{text: "unused"},
			body:       map[string]string{},
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, nil, tt.describer)

			w := h.do(jsonRequest(http.MethodPost, "/api/products/describe", tt.body), h.adminToken)

			require.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			if tt.wantText != "" {
				var resp DescribeResponse
				decodeBody(t, w, &resp)
				assert.Equal(t, tt.wantText, resp.Description)
			}
		})
	}
}

func TestCategories(t *testing.T) {
	h := newHarness(t, nil, nil)

	w := h.do(jsonRequest(http.MethodPost, "/api/categories", CreateCategoryRequest{Name: "  Flyer  "}), h.adminToken)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created domain.Category
	decodeBody(t, w, &created)
	assert.Equal(t, "Flyer", created.Name)

	w = h.do(jsonRequest(http.MethodPost, "/api/categories", CreateCategoryRequest{Name: "Flyer"}), h.adminToken)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = h.do(jsonRequest(http.MethodPost, "/api/categories", CreateCategoryRequest{Name: "ab"}), h.adminToken)
	require.Equal(t, http.StatusBadRequest, w.Code)
	var invalid validationResponse
	decodeBody(t, w, &invalid)
	assert.Equal(t, []string{"name"}, invalid.fields())

	w = h.do(jsonRequest(http.MethodPost, "/api/categories", CreateCategoryRequest{Name: "Poster"}), h.userToken)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = h.do(jsonRequest(http.MethodPost, "/api/categories", CreateCategoryRequest{Name: "Poster"}), "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = h.do(httptest.NewRequest(http.MethodGet, "/api/categories", nil), "")
	require.Equal(t, http.StatusOK, w.Code)
	var listed []domain.Category
	decodeBody(t, w, &listed)
	require.Len(t, listed, 1)
	assert.Equal(t, created.ID, listed[0].ID)
}
