package provider

import (
	"context"

	"github.com/wonny/uvscan/internal/contracts"
)

// Provider is the logical contract with the external data source:
// fetch-by-symbol with typed outcomes. Transport details stay behind
// this interface.
type Provider interface {
	Fetch(ctx context.Context, symbol string) (*contracts.FinancialSnapshot, error)
}
