package cli

import (
	"context"
	"errors"

	"github.com/sharpshop/sharpshop/pkg/commerce"
)

var errPaymentsDisabled = errors.New("payment gateway is not configured")

// disabledPayments stands in when no gateway secret is configured. Tool
// failures surface as error-shaped results, so conversations still work
// minus checkout.
type disabledPayments struct{}

func (disabledPayments) CreateLink(ctx context.Context, orderID string) (string, error) {
	return "", errPaymentsDisabled
}

func (disabledPayments) CheckStatus(ctx context.Context, orderID string) (commerce.PaymentStatus, error) {
	return commerce.PaymentError, errPaymentsDisabled
}
