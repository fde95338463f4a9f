package pricing

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/gathergrid/gathergrid-backend/pkg/db/models"
	"github.com/gathergrid/gathergrid-backend/pkg/enums"
	pkgerrors "github.com/gathergrid/gathergrid-backend/pkg/errors"
)

var oneHundred = decimal.NewFromInt(100)

// LineQuote is the priced snapshot of one requested product line.
type LineQuote struct {
	ProductID uuid.UUID
	VendorID  uuid.UUID
	Name      string
	Qty       int
	UnitPrice decimal.Decimal
	NetPrice  decimal.Decimal
	LineTotal decimal.Decimal
	Currency  enums.Currency
}

// Quote is the full checkout computation over fetched product state.
type Quote struct {
	Lines    []LineQuote
	ByVendor map[uuid.UUID][]LineQuote
	Total    decimal.Decimal
}

// NetPrice applies the product discount to the unit price, rounded to cents.
func NetPrice(unitPrice decimal.Decimal, discountPercent int) decimal.Decimal {
	if discountPercent <= 0 {
		return unitPrice.Round(2)
	}
	factor := oneHundred.Sub(decimal.NewFromInt(int64(discountPercent))).Div(oneHundred)
	return unitPrice.Mul(factor).Round(2)
}

// BuildQuote prices each requested line against the loaded products. It is a
// pure computation: stock checks and declared-amount verification happen in
// ValidateStock and VerifyDeclaredTotal so callers can report precise errors.
func BuildQuote(products []models.Product, quantities map[uuid.UUID]int) (*Quote, error) {
	if len(products) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no products to price")
	}

	quote := &Quote{
		ByVendor: make(map[uuid.UUID][]LineQuote),
		Total:    decimal.Zero,
	}

	for _, product := range products {
		qty, ok := quantities[product.ID]
		if !ok {
			continue
		}
		if qty <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive").
				WithDetails(map[string]any{"product_id": product.ID})
		}
		if !product.IsActive || product.ApprovalStatus != enums.ApprovalStatusApproved {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "product is not purchasable").
				WithDetails(map[string]any{"product_id": product.ID})
		}

		net := NetPrice(product.UnitPrice, product.DiscountPercent)
		line := LineQuote{
			ProductID: product.ID,
			VendorID:  product.VendorID,
			Name:      product.Title,
			Qty:       qty,
			UnitPrice: product.UnitPrice.Round(2),
			NetPrice:  net,
			LineTotal: net.Mul(decimal.NewFromInt(int64(qty))).Round(2),
			Currency:  product.Currency,
		}
		quote.Lines = append(quote.Lines, line)
		quote.ByVendor[product.VendorID] = append(quote.ByVendor[product.VendorID], line)
		quote.Total = quote.Total.Add(line.LineTotal)
	}

	if len(quote.Lines) != len(quantities) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "one or more products not found")
	}

	quote.Total = quote.Total.Round(2)
	return quote, nil
}

// ValidateStock reports the first line whose requested quantity exceeds the
// available count. The reservation itself is a separate atomic decrement; this
// check exists to fail fast with a precise product id before any write.
func ValidateStock(products []models.Product, quantities map[uuid.UUID]int) error {
	for _, product := range products {
		qty := quantities[product.ID]
		if qty <= 0 {
			continue
		}
		available := 0
		if product.Inventory != nil {
			available = product.Inventory.AvailableQty
		}
		if qty > available {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "product is out of stock").
				WithDetails(map[string]any{
					"product_id": product.ID,
					"requested":  qty,
					"available":  available,
				})
		}
	}
	return nil
}

// VerifyDeclaredTotal compares the server-computed total against the amount
// the client declared. A mismatch is a state conflict, not a validation error:
// the cart contents may have changed underneath the client.
func VerifyDeclaredTotal(computed, declared decimal.Decimal) error {
	if computed.Round(2).Equal(declared.Round(2)) {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeStateConflict, "declared amount does not match computed total").
		WithDetails(map[string]any{
			"computed": computed.Round(2).String(),
			"declared": declared.Round(2).String(),
		})
}

// VendorTotal sums line totals for one vendor's slice of the quote.
func VendorTotal(lines []LineQuote) decimal.Decimal {
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.LineTotal)
	}
	return total.Round(2)
}
