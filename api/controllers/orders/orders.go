package orders

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/gathergrid/gathergrid-backend/api/middleware"
	"github.com/gathergrid/gathergrid-backend/api/responses"
	"github.com/gathergrid/gathergrid-backend/api/validators"
	ordersvc "github.com/gathergrid/gathergrid-backend/internal/orders"
	"github.com/gathergrid/gathergrid-backend/pkg/enums"
	pkgerrors "github.com/gathergrid/gathergrid-backend/pkg/errors"
	"github.com/gathergrid/gathergrid-backend/pkg/logger"
	"github.com/gathergrid/gathergrid-backend/pkg/pagination"
)

type placeOrderRequest struct {
	ProductIDs  []uuid.UUID     `json:"product_ids" validate:"required,min=1,dive,required"`
	Quantities  []int           `json:"quantities" validate:"required,min=1,dive,min=1"`
	AddressID   uuid.UUID       `json:"address_id" validate:"required"`
	OrderAmount decimal.Decimal `json:"order_amount" validate:"required"`
	Currency    string          `json:"currency,omitempty"`
}

// PlaceOrder runs the buyer checkout: one request, one payment sheet, one
// vendor order per seller.
func PlaceOrder(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		buyerID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req placeOrderRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if len(req.ProductIDs) != len(req.Quantities) {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeValidation, "product_ids and quantities must have the same length"))
			return
		}

		currency := enums.CurrencyUSD
		if strings.TrimSpace(req.Currency) != "" {
			parsed, err := enums.ParseCurrency(req.Currency)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "unsupported currency"))
				return
			}
			currency = parsed
		}

		lines := make([]ordersvc.OrderLineRequest, 0, len(req.ProductIDs))
		for i, productID := range req.ProductIDs {
			lines = append(lines, ordersvc.OrderLineRequest{ProductID: productID, Qty: req.Quantities[i]})
		}

		result, err := svc.PlaceOrder(r.Context(), ordersvc.PlaceOrderInput{
			BuyerID:        buyerID,
			Lines:          lines,
			AddressID:      req.AddressID,
			DeclaredAmount: req.OrderAmount,
			Currency:       currency,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

type confirmPaymentRequest struct {
	PaymentIntentID string `json:"payment_intent_id" validate:"required"`
}

// ConfirmPayment confirms the payment sheet upstream and settles the order.
func ConfirmPayment(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req confirmPaymentRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		status, err := svc.ConfirmPayment(r.Context(), req.PaymentIntentID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{
			"payment_intent_id": req.PaymentIntentID,
			"status":            status,
		})
	}
}

type orderStatusRequest struct {
	OrderRef        string  `json:"order_ref" validate:"required"`
	Status          *string `json:"status,omitempty"`
	PaymentStatus   *string `json:"payment_status,omitempty"`
	PaymentIntentID *string `json:"payment_intent_id,omitempty"`
}

// UpdateOrderStatus applies a payment or lifecycle transition to every
// vendor order sharing the reference.
func UpdateOrderStatus(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req orderStatusRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := ordersvc.UpdateOrderStatusInput{
			OrderRef:        req.OrderRef,
			PaymentIntentID: req.PaymentIntentID,
		}
		if req.Status != nil {
			status, err := enums.ParseOrderStatus(*req.Status)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid order status"))
				return
			}
			input.Status = &status
		}
		if req.PaymentStatus != nil {
			status, err := enums.ParsePaymentStatus(*req.PaymentStatus)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment status"))
				return
			}
			input.PaymentStatus = &status
		}

		if err := svc.UpdateOrderStatus(r.Context(), input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"order_ref": req.OrderRef, "result": "applied"})
	}
}

type deliveryStatusRequest struct {
	OrderRef           string  `json:"order_ref" validate:"required"`
	Status             string  `json:"status" validate:"required"`
	TrackingID         *string `json:"tracking_id,omitempty"`
	CarrierPartner     *string `json:"carrier_partner,omitempty"`
	CancellationRemark *string `json:"cancellation_remark,omitempty"`
}

// UpdateDeliveryStatus moves the calling vendor's slice of an order through
// fulfillment.
func UpdateDeliveryStatus(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vendorID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req deliveryStatusRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		status, err := enums.ParseOrderStatus(req.Status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid order status"))
			return
		}

		err = svc.UpdateDeliveryStatus(r.Context(), ordersvc.UpdateDeliveryStatusInput{
			OrderRef:           req.OrderRef,
			VendorID:           vendorID,
			Status:             status,
			TrackingID:         sanitized(req.TrackingID, 64),
			CarrierPartner:     sanitized(req.CarrierPartner, 120),
			CancellationRemark: sanitized(req.CancellationRemark, 500),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"order_ref": req.OrderRef, "status": string(status)})
	}
}

// MyOrders pages the caller's orders newest first.
func MyOrders(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		buyerID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.ListBuyerOrders(r.Context(), ordersvc.ListOrdersInput{
			BuyerID: buyerID,
			Page: pagination.Params{
				Limit:  limit,
				Cursor: r.URL.Query().Get("cursor"),
			},
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// Detail returns every vendor order under one reference, owner only.
func Detail(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		buyerID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orderRef := chi.URLParam(r, "orderRef")
		if orderRef == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "order reference required"))
			return
		}

		refOrders, err := svc.GetOrder(r.Context(), orderRef, buyerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"order_ref": orderRef, "orders": refOrders})
	}
}

func sanitized(value *string, maxLen int) *string {
	if value == nil {
		return nil
	}
	clean := validators.SanitizeString(*value, maxLen)
	if clean == "" {
		return nil
	}
	return &clean
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
