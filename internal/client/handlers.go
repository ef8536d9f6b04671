package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/invoice-assistant/internal/common"
)

// Book abstracts the store for handler tests.
type Book interface {
	List(ctx context.Context, search string) ([]Client, error)
	Get(ctx context.Context, id int64) (Client, error)
	Create(ctx context.Context, name string, email, phone, notes *string) (Client, error)
	Update(ctx context.Context, id int64, name, email, phone, notes *string) (Client, error)
	Delete(ctx context.Context, id int64) error
	AddAddress(ctx context.Context, clientID int64, label *string, address string) (Address, error)
	DeleteAddress(ctx context.Context, clientID, addressID int64) error
}

// Handler exposes the client book endpoints.
type Handler struct {
	Store Book
}

// CreateInput is the body of POST /clients.
type CreateInput struct {
	Name  string  `json:"name" validate:"required"`
	Email *string `json:"email" validate:"omitempty,email"`
	Phone *string `json:"phone"`
	Notes *string `json:"notes"`
}

// UpdateInput is the body of PUT /clients/{id}; nil fields are untouched.
type UpdateInput struct {
	Name  *string `json:"name"`
	Email *string `json:"email" validate:"omitempty,email"`
	Phone *string `json:"phone"`
	Notes *string `json:"notes"`
}

// AddressInput is the body of POST /clients/{id}/addresses.
type AddressInput struct {
	Label   *string `json:"label"`
	Address string  `json:"address" validate:"required"`
}

// List handles GET /api/v1/clients.
func (h Handler) List(w http.ResponseWriter, r *http.Request) {
	clients, err := h.Store.List(r.Context(), strings.TrimSpace(r.URL.Query().Get("search")))
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, clients)
}

// Get handles GET /api/v1/clients/{id}.
func (h Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseParam(w, r, "id")
	if !ok {
		return
	}
	c, err := h.Store.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, c)
}

// Create handles POST /api/v1/clients.
func (h Handler) Create(w http.ResponseWriter, r *http.Request) {
	var in CreateInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		common.WriteError(w, common.BadRequest("invalid JSON body", ""))
		return
	}
	if err := common.ValidateStruct(in); err != nil {
		common.WriteError(w, err)
		return
	}
	c, err := h.Store.Create(r.Context(), strings.TrimSpace(in.Name), in.Email, in.Phone, in.Notes)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, c)
}

// Update handles PUT /api/v1/clients/{id}.
func (h Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseParam(w, r, "id")
	if !ok {
		return
	}
	var in UpdateInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		common.WriteError(w, common.BadRequest("invalid JSON body", ""))
		return
	}
	if err := common.ValidateStruct(in); err != nil {
		common.WriteError(w, err)
		return
	}
	c, err := h.Store.Update(r.Context(), id, in.Name, in.Email, in.Phone, in.Notes)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, c)
}

// Delete handles DELETE /api/v1/clients/{id}.
func (h Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseParam(w, r, "id")
	if !ok {
		return
	}
	if err := h.Store.Delete(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddAddress handles POST /api/v1/clients/{id}/addresses.
func (h Handler) AddAddress(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseParam(w, r, "id")
	if !ok {
		return
	}
	var in AddressInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		common.WriteError(w, common.BadRequest("invalid JSON body", ""))
		return
	}
	if err := common.ValidateStruct(in); err != nil {
		common.WriteError(w, err)
		return
	}
	a, err := h.Store.AddAddress(r.Context(), id, in.Label, strings.TrimSpace(in.Address))
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, a)
}

// DeleteAddress handles DELETE /api/v1/clients/{id}/addresses/{addressID}.
func (h Handler) DeleteAddress(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseParam(w, r, "id")
	if !ok {
		return
	}
	addressID, ok := h.parseParam(w, r, "addressID")
	if !ok {
		return
	}
	if err := h.Store.DeleteAddress(r.Context(), id, addressID); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h Handler) parseParam(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := common.ParseInt64(chi.URLParam(r, name))
	if err != nil || id <= 0 {
		common.WriteError(w, common.BadRequest("invalid "+name, name))
		return 0, false
	}
	return id, true
}

func (h Handler) writeError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrNotFound) {
		common.WriteError(w, common.NotFound("client not found"))
		return
	}
	common.WriteError(w, err)
}
