package catalog

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/invoice-assistant/internal/common"
)

// Handler exposes the catalog endpoints.
type Handler struct {
	Service *Service
}

// List handles GET /api/v1/catalog.
func (h Handler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.Service.List(r.Context(), r.URL.Query().Get("search"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, items)
}

// Get handles GET /api/v1/catalog/{id}.
func (h Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	item, err := h.Service.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, item)
}

// Create handles POST /api/v1/catalog.
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
	item, err := h.Service.Create(r.Context(), in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, item)
}

// Update handles PUT /api/v1/catalog/{id}.
func (h Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
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
	item, err := h.Service.Update(r.Context(), id, in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, item)
}

// Delete handles DELETE /api/v1/catalog/{id}.
func (h Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	if err := h.Service.Delete(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h Handler) writeError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrNotFound) {
		common.WriteError(w, common.NotFound("catalog item not found"))
		return
	}
	common.WriteError(w, err)
}

func parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := common.ParseInt64(chi.URLParam(r, "id"))
	if err != nil || id <= 0 {
		common.WriteError(w, common.BadRequest("invalid id", "id"))
		return 0, false
	}
	return id, true
}
