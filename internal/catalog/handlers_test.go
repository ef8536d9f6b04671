package catalog_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/invoice-assistant/internal/catalog"
)

type fakeStore struct {
	items     map[int64]catalog.Item
	nextID    int64
	listCalls int
}

func newFakeStore() *fakeStore {
	return &fakeStore{items: map[int64]catalog.Item{}, nextID: 1}
}

func (f *fakeStore) List(_ context.Context, search string) ([]catalog.Item, error) {
	f.listCalls++
	out := []catalog.Item{}
	for _, item := range f.items {
		if search == "" || strings.Contains(strings.ToLower(item.Description), strings.ToLower(search)) {
			out = append(out, item)
		}
	}
	return out, nil
}

func (f *fakeStore) Get(_ context.Context, id int64) (catalog.Item, error) {
	item, ok := f.items[id]
	if !ok {
		return catalog.Item{}, catalog.ErrNotFound
	}
	return item, nil
}

func (f *fakeStore) Create(_ context.Context, description string, unitPrice float64, unit string, notes *string) (catalog.Item, error) {
	item := catalog.Item{ID: f.nextID, Description: description, UnitPrice: unitPrice, Unit: unit, Notes: notes}
	f.items[item.ID] = item
	f.nextID++
	return item, nil
}

func (f *fakeStore) Update(_ context.Context, id int64, description *string, unitPrice *float64, unit, notes *string) (catalog.Item, error) {
	item, ok := f.items[id]
	if !ok {
		return catalog.Item{}, catalog.ErrNotFound
	}
	if description != nil {
		item.Description = *description
	}
	if unitPrice != nil {
		item.UnitPrice = *unitPrice
	}
	if unit != nil {
		item.Unit = *unit
	}
	if notes != nil {
		item.Notes = notes
	}
	f.items[id] = item
	return item, nil
}

func (f *fakeStore) Delete(_ context.Context, id int64) error {
	if _, ok := f.items[id]; !ok {
		return catalog.ErrNotFound
	}
	delete(f.items, id)
	return nil
}

func newTestHandler(t *testing.T) (catalog.Handler, *fakeStore, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	store := newFakeStore()
	svc := catalog.NewService(catalog.ServiceConfig{
		Store:  store,
		Cache:  catalog.NewCache(client, time.Minute),
		Logger: zerolog.Nop(),
	})
	return catalog.Handler{Service: svc}, store, client
}

func doRequest(h http.HandlerFunc, method, target, body string, params map[string]string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if len(params) > 0 {
		rctx := chi.NewRouteContext()
		for k, v := range params {
			rctx.URLParams.Add(k, v)
		}
		req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	}
	rr := httptest.NewRecorder()
	h(rr, req)
	return rr
}

func TestCreateAndGetItem(t *testing.T) {
	h, _, _ := newTestHandler(t)

	rr := doRequest(h.Create, http.MethodPost, "/api/v1/catalog",
		`{"description":"Deep cleaning","unit_price":150,"unit":"hour"}`, nil)
	require.Equal(t, http.StatusCreated, rr.Code)

	var created catalog.Item
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))
	require.Equal(t, "Deep cleaning", created.Description)

	rr = doRequest(h.Get, http.MethodGet, "/api/v1/catalog/1", "", map[string]string{"id": "1"})
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestCreateRequiresDescription(t *testing.T) {
	h, _, _ := newTestHandler(t)

	rr := doRequest(h.Create, http.MethodPost, "/api/v1/catalog", `{"unit_price":10}`, nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCreateDefaultsUnit(t *testing.T) {
	h, store, _ := newTestHandler(t)

	rr := doRequest(h.Create, http.MethodPost, "/api/v1/catalog", `{"description":"Supplies"}`, nil)
	require.Equal(t, http.StatusCreated, rr.Code)
	require.Equal(t, "item", store.items[1].Unit)
}

func TestListUsesCacheUntilWrite(t *testing.T) {
	h, store, _ := newTestHandler(t)

	doRequest(h.Create, http.MethodPost, "/api/v1/catalog", `{"description":"Deep cleaning"}`, nil)

	rr := doRequest(h.List, http.MethodGet, "/api/v1/catalog", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, 1, store.listCalls)

	// warm cache serves the second read
	doRequest(h.List, http.MethodGet, "/api/v1/catalog", "", nil)
	require.Equal(t, 1, store.listCalls)

	// a write invalidates
	doRequest(h.Create, http.MethodPost, "/api/v1/catalog", `{"description":"Supplies"}`, nil)
	doRequest(h.List, http.MethodGet, "/api/v1/catalog", "", nil)
	require.Equal(t, 2, store.listCalls)
}

func TestSearchBypassesCache(t *testing.T) {
	h, store, _ := newTestHandler(t)
	doRequest(h.Create, http.MethodPost, "/api/v1/catalog", `{"description":"Deep cleaning"}`, nil)

	doRequest(h.List, http.MethodGet, "/api/v1/catalog?search=deep", "", nil)
	doRequest(h.List, http.MethodGet, "/api/v1/catalog?search=deep", "", nil)
	require.Equal(t, 2, store.listCalls)
}

func TestUpdateMissingItemIs404(t *testing.T) {
	h, _, _ := newTestHandler(t)

	rr := doRequest(h.Update, http.MethodPut, "/api/v1/catalog/9", `{"description":"x"}`,
		map[string]string{"id": "9"})
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestDeleteItem(t *testing.T) {
	h, store, _ := newTestHandler(t)
	doRequest(h.Create, http.MethodPost, "/api/v1/catalog", `{"description":"Supplies"}`, nil)

	rr := doRequest(h.Delete, http.MethodDelete, "/api/v1/catalog/1", "", map[string]string{"id": "1"})
	require.Equal(t, http.StatusNoContent, rr.Code)
	require.Empty(t, store.items)
}

func TestBadIDIs400(t *testing.T) {
	h, _, _ := newTestHandler(t)

	rr := doRequest(h.Get, http.MethodGet, "/api/v1/catalog/abc", "", map[string]string{"id": "abc"})
	require.Equal(t, http.StatusBadRequest, rr.Code)
}
