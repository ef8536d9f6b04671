package catalog

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
)

type itemStore interface {
	List(ctx context.Context, search string) ([]Item, error)
	Get(ctx context.Context, id int64) (Item, error)
	Create(ctx context.Context, description string, unitPrice float64, unit string, notes *string) (Item, error)
	Update(ctx context.Context, id int64, description *string, unitPrice *float64, unit, notes *string) (Item, error)
	Delete(ctx context.Context, id int64) error
}

// Service layers the listing cache over the store.
type Service struct {
	store  itemStore
	cache  *Cache
	logger zerolog.Logger
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Store  itemStore
	Cache  *Cache
	Logger zerolog.Logger
}

// NewService constructs a Service.
func NewService(cfg ServiceConfig) *Service {
	return &Service{store: cfg.Store, cache: cfg.Cache, logger: cfg.Logger}
}

// CreateInput is the body of POST /catalog.
type CreateInput struct {
	Description string  `json:"description" validate:"required"`
	UnitPrice   float64 `json:"unit_price" validate:"gte=0"`
	Unit        string  `json:"unit"`
	Notes       *string `json:"notes"`
}

// UpdateInput is the body of PUT /catalog/{id}; nil fields are untouched.
type UpdateInput struct {
	Description *string  `json:"description"`
	UnitPrice   *float64 `json:"unit_price" validate:"omitempty,gte=0"`
	Unit        *string  `json:"unit"`
	Notes       *string  `json:"notes"`
}

// List returns items, serving the unfiltered listing from cache when warm.
func (s *Service) List(ctx context.Context, search string) ([]Item, error) {
	search = strings.TrimSpace(search)
	if search == "" {
		var cached []Item
		if ok, err := s.cache.GetJSON(ctx, listCacheKey, &cached); err != nil {
			s.logger.Warn().Err(err).Msg("catalog cache read failed")
		} else if ok {
			return cached, nil
		}
	}

	items, err := s.store.List(ctx, search)
	if err != nil {
		return nil, err
	}
	if search == "" {
		if err := s.cache.SetJSON(ctx, listCacheKey, items); err != nil {
			s.logger.Warn().Err(err).Msg("catalog cache write failed")
		}
	}
	return items, nil
}

// Get returns one item.
func (s *Service) Get(ctx context.Context, id int64) (Item, error) {
	return s.store.Get(ctx, id)
}

// Create inserts an item and invalidates the listing cache.
func (s *Service) Create(ctx context.Context, in CreateInput) (Item, error) {
	unit := strings.TrimSpace(in.Unit)
	if unit == "" {
		unit = "item"
	}
	item, err := s.store.Create(ctx, strings.TrimSpace(in.Description), in.UnitPrice, unit, in.Notes)
	if err != nil {
		return Item{}, err
	}
	s.invalidate(ctx)
	return item, nil
}

// Update applies a partial change and invalidates the listing cache.
func (s *Service) Update(ctx context.Context, id int64, in UpdateInput) (Item, error) {
	item, err := s.store.Update(ctx, id, in.Description, in.UnitPrice, in.Unit, in.Notes)
	if err != nil {
		return Item{}, err
	}
	s.invalidate(ctx)
	return item, nil
}

// Delete removes an item and invalidates the listing cache.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

func (s *Service) invalidate(ctx context.Context) {
	if err := s.cache.Invalidate(ctx, listCacheKey); err != nil {
		s.logger.Warn().Err(err).Msg("catalog cache invalidation failed")
	}
}
