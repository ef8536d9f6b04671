package settings

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/noah-isme/invoice-assistant/internal/common"
)

// Provider abstracts the store for handler tests.
type Provider interface {
	Get(ctx context.Context) (BusinessSettings, error)
	Apply(ctx context.Context, upd Update) (BusinessSettings, error)
}

// Handler exposes the business profile endpoints.
type Handler struct {
	Store Provider
}

// Get handles GET /api/v1/settings.
func (h Handler) Get(w http.ResponseWriter, r *http.Request) {
	s, err := h.Store.Get(r.Context())
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, s)
}

// Put handles PUT /api/v1/settings with a partial update.
func (h Handler) Put(w http.ResponseWriter, r *http.Request) {
	var upd Update
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		common.WriteError(w, common.BadRequest("invalid JSON body", ""))
		return
	}
	if err := common.ValidateStruct(upd); err != nil {
		common.WriteError(w, err)
		return
	}
	s, err := h.Store.Apply(r.Context(), upd)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, s)
}
