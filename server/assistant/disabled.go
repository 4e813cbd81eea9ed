package assistant

import (
	"context"

	cerr "github.com/yonder-travel/yonder/server/internal/errors"
)

// DisabledGateway rejects every generation request. Used when no API key is
// configured so the rest of the chat surface keeps working.
type DisabledGateway struct{}

// NewDisabledGateway creates a gateway that always fails.
func NewDisabledGateway() *DisabledGateway {
	return &DisabledGateway{}
}

// Generate implements Gateway.
func (g *DisabledGateway) Generate(context.Context, *GenerateRequest) (*GenerateResponse, error) {
	return nil, cerr.GatewayFailed("assistant is not enabled", nil)
}
