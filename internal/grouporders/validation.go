package grouporders

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/groupbuy-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/groupbuy-backend/pkg/errors"
)

// QuantityViolationDetail is returned to callers when a join quantity is out
// of the product's bounds.
type QuantityViolationDetail struct {
	ProductID    uuid.UUID `json:"product_id"`
	ProductName  string    `json:"product_name,omitempty"`
	MinOrderQty  int       `json:"min_order_qty"`
	MaxOrderQty  int       `json:"max_order_qty,omitempty"`
	RequestedQty int       `json:"requested_qty"`
}

// ValidateJoinQuantity checks a requested quantity against the product's
// min/max order bounds. A zero max means unbounded.
func ValidateJoinQuantity(product models.Product, quantity int) error {
	if !product.IsActive {
		return pkgerrors.New(pkgerrors.CodeValidation, "product is not available")
	}
	detail := QuantityViolationDetail{
		ProductID:    product.ID,
		ProductName:  product.Name,
		MinOrderQty:  product.MinOrderQty,
		MaxOrderQty:  product.MaxOrderQty,
		RequestedQty: quantity,
	}
	minQty := product.MinOrderQty
	if minQty < 1 {
		minQty = 1
	}
	if quantity < minQty {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("minimum order quantity is %d", minQty)).WithDetails(detail)
	}
	if product.MaxOrderQty > 0 && quantity > product.MaxOrderQty {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("maximum order quantity is %d", product.MaxOrderQty)).WithDetails(detail)
	}
	return nil
}
