package client_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/invoice-assistant/internal/client"
)

type fakeBook struct {
	clients    map[int64]client.Client
	nextID     int64
	nextAddrID int64
}

func newFakeBook() *fakeBook {
	return &fakeBook{clients: map[int64]client.Client{}, nextID: 1, nextAddrID: 1}
}

func (f *fakeBook) List(_ context.Context, search string) ([]client.Client, error) {
	out := []client.Client{}
	for _, c := range f.clients {
		if search == "" || strings.Contains(strings.ToLower(c.Name), strings.ToLower(search)) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeBook) Get(_ context.Context, id int64) (client.Client, error) {
	c, ok := f.clients[id]
	if !ok {
		return client.Client{}, client.ErrNotFound
	}
	return c, nil
}

func (f *fakeBook) Create(_ context.Context, name string, email, phone, notes *string) (client.Client, error) {
	c := client.Client{ID: f.nextID, Name: name, Email: email, Phone: phone, Notes: notes, Addresses: []client.Address{}}
	f.clients[c.ID] = c
	f.nextID++
	return c, nil
}

func (f *fakeBook) Update(_ context.Context, id int64, name, email, phone, notes *string) (client.Client, error) {
	c, ok := f.clients[id]
	if !ok {
		return client.Client{}, client.ErrNotFound
	}
	if name != nil {
		c.Name = *name
	}
	if email != nil {
		c.Email = email
	}
	if phone != nil {
		c.Phone = phone
	}
	if notes != nil {
		c.Notes = notes
	}
	f.clients[id] = c
	return c, nil
}

func (f *fakeBook) Delete(_ context.Context, id int64) error {
	if _, ok := f.clients[id]; !ok {
		return client.ErrNotFound
	}
	delete(f.clients, id)
	return nil
}

func (f *fakeBook) AddAddress(_ context.Context, clientID int64, label *string, address string) (client.Address, error) {
	c, ok := f.clients[clientID]
	if !ok {
		return client.Address{}, client.ErrNotFound
	}
	a := client.Address{ID: f.nextAddrID, ClientID: clientID, Label: label, Address: address}
	f.nextAddrID++
	c.Addresses = append(c.Addresses, a)
	f.clients[clientID] = c
	return a, nil
}

func (f *fakeBook) DeleteAddress(_ context.Context, clientID, addressID int64) error {
	c, ok := f.clients[clientID]
	if !ok {
		return client.ErrNotFound
	}
	for i, a := range c.Addresses {
		if a.ID == addressID {
			c.Addresses = append(c.Addresses[:i], c.Addresses[i+1:]...)
			f.clients[clientID] = c
			return nil
		}
	}
	return client.ErrNotFound
}

func request(h http.HandlerFunc, method, target, body string, params map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
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

func TestCreateClient(t *testing.T) {
	h := client.Handler{Store: newFakeBook()}

	rr := request(h.Create, http.MethodPost, "/api/v1/clients",
		`{"name":"Acme Corp","email":"ap@acme.example"}`, nil)
	require.Equal(t, http.StatusCreated, rr.Code)

	var c client.Client
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &c))
	require.Equal(t, "Acme Corp", c.Name)
	require.NotNil(t, c.Addresses)
}

func TestCreateClientRequiresName(t *testing.T) {
	h := client.Handler{Store: newFakeBook()}

	rr := request(h.Create, http.MethodPost, "/api/v1/clients", `{"email":"x@y.example"}`, nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCreateClientRejectsBadEmail(t *testing.T) {
	h := client.Handler{Store: newFakeBook()}

	rr := request(h.Create, http.MethodPost, "/api/v1/clients", `{"name":"Acme","email":"nope"}`, nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestListFiltersBySearch(t *testing.T) {
	book := newFakeBook()
	h := client.Handler{Store: book}
	request(h.Create, http.MethodPost, "/api/v1/clients", `{"name":"Acme Corp"}`, nil)
	request(h.Create, http.MethodPost, "/api/v1/clients", `{"name":"Globex"}`, nil)

	rr := request(h.List, http.MethodGet, "/api/v1/clients?search=acme", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var got []client.Client
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	require.Len(t, got, 1)
	require.Equal(t, "Acme Corp", got[0].Name)
}

func TestPartialUpdateKeepsOtherFields(t *testing.T) {
	book := newFakeBook()
	h := client.Handler{Store: book}
	request(h.Create, http.MethodPost, "/api/v1/clients",
		`{"name":"Acme Corp","email":"ap@acme.example"}`, nil)

	rr := request(h.Update, http.MethodPut, "/api/v1/clients/1",
		`{"phone":"+1-555-0101"}`, map[string]string{"id": "1"})
	require.Equal(t, http.StatusOK, rr.Code)

	var c client.Client
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &c))
	require.Equal(t, "Acme Corp", c.Name)
	require.NotNil(t, c.Email)
	require.NotNil(t, c.Phone)
}

func TestGetMissingClientIs404(t *testing.T) {
	h := client.Handler{Store: newFakeBook()}

	rr := request(h.Get, http.MethodGet, "/api/v1/clients/5", "", map[string]string{"id": "5"})
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestAddressLifecycle(t *testing.T) {
	book := newFakeBook()
	h := client.Handler{Store: book}
	request(h.Create, http.MethodPost, "/api/v1/clients", `{"name":"Acme Corp"}`, nil)

	rr := request(h.AddAddress, http.MethodPost, "/api/v1/clients/1/addresses",
		`{"label":"HQ","address":"12 Main St"}`, map[string]string{"id": "1"})
	require.Equal(t, http.StatusCreated, rr.Code)

	var a client.Address
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &a))
	require.Equal(t, "12 Main St", a.Address)

	rr = request(h.DeleteAddress, http.MethodDelete, "/api/v1/clients/1/addresses/1",
		"", map[string]string{"id": "1", "addressID": "1"})
	require.Equal(t, http.StatusNoContent, rr.Code)
	require.Empty(t, book.clients[1].Addresses)
}

func TestAddAddressRequiresBody(t *testing.T) {
	book := newFakeBook()
	h := client.Handler{Store: book}
	request(h.Create, http.MethodPost, "/api/v1/clients", `{"name":"Acme Corp"}`, nil)

	rr := request(h.AddAddress, http.MethodPost, "/api/v1/clients/1/addresses",
		`{"label":"HQ"}`, map[string]string{"id": "1"})
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestContextEntriesShape(t *testing.T) {
	label := "HQ"
	entries := client.ContextEntries([]client.Client{
		{ID: 4, Name: "Acme Corp", Addresses: []client.Address{{ID: 9, Label: &label, Address: "12 Main St"}}},
	})
	require.Len(t, entries, 1)
	require.Equal(t, int64(4), entries[0]["id"])
	addrs := entries[0]["addresses"].([]map[string]any)
	require.Len(t, addrs, 1)
	require.Equal(t, "12 Main St", addrs[0]["address"])
}
