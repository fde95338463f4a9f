package cart

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/gathergrid/gathergrid-backend/api/middleware"
	"github.com/gathergrid/gathergrid-backend/api/responses"
	"github.com/gathergrid/gathergrid-backend/api/validators"
	"github.com/gathergrid/gathergrid-backend/pkg/db/models"
	pkgerrors "github.com/gathergrid/gathergrid-backend/pkg/errors"
	"github.com/gathergrid/gathergrid-backend/pkg/logger"
)

// Store is the slice of the cart repository the HTTP surface needs.
type Store interface {
	Upsert(ctx context.Context, item *models.CartItem) error
	ListByBuyer(ctx context.Context, buyerID uuid.UUID) ([]models.CartItem, error)
	Remove(ctx context.Context, buyerID, productID uuid.UUID) error
}

type upsertLineRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Qty       int       `json:"qty" validate:"required,min=1"`
}

// UpsertLine inserts or replaces the caller's cart line for a product.
func UpsertLine(store Store, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		buyerID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req upsertLineRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		item := &models.CartItem{
			BuyerID:   buyerID,
			ProductID: req.ProductID,
			Qty:       req.Qty,
		}
		if err := store.Upsert(r.Context(), item); err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save cart line"))
			return
		}
		responses.WriteSuccess(w, item)
	}
}

// List returns the caller's cart lines in insertion order.
func List(store Store, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		buyerID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items, err := store.ListByBuyer(r.Context(), buyerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list cart"))
			return
		}
		responses.WriteSuccess(w, items)
	}
}

// RemoveLine deletes the caller's cart line for a product.
func RemoveLine(store Store, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		buyerID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		productID, err := uuid.Parse(chi.URLParam(r, "productID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid product id"))
			return
		}

		if err := store.Remove(r.Context(), buyerID, productID); err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remove cart line"))
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "removed"})
	}
}

func callerID(r *http.Request) (uuid.UUID, error) {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity malformed")
	}
	return id, nil
}
