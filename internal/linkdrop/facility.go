// Package linkdrop talks to the external linkdrop facility that holds the
// one-time-use keys and their balances. The contract only tracks which keys
// have a token reserved; key and balance bookkeeping stay with the facility.
package linkdrop

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/alpha-fi/cheddar-nft-minter/internal/adapter"
	"github.com/alpha-fi/cheddar-nft-minter/internal/domain"
)

// Facility is the external linkdrop collaborator.
//
//go:generate mockgen -source=facility.go -destination=../mocks/linkdrop.go -package=mocks -mock_names=Facility=MockFacility
type Facility interface {
	// SendWithCallback registers a claimable key that will call back into
	// contractID when the key holder claims
	SendWithCallback(ctx context.Context, publicKey domain.PublicKey, contractID domain.AccountID) error

	// CheckKey reports whether the facility knows the key
	CheckKey(ctx context.Context, publicKey domain.PublicKey) (bool, error)

	// GetKeyBalance returns the amount reserved per key by the facility
	GetKeyBalance(ctx context.Context) (domain.U128, error)
}

// Config holds the facility client configuration
type Config struct {
	URL            string
	RequestTimeout time.Duration
}

type httpFacility struct {
	url    string
	client adapter.HTTPClient
}

// NewHTTPFacility creates a facility client over the facility's HTTP API
func NewHTTPFacility(cfg Config, client adapter.HTTPClient) Facility {
	return &httpFacility{
		url:    strings.TrimRight(cfg.URL, "/"),
		client: client,
	}
}

type sendRequest struct {
	PublicKey  domain.PublicKey `json:"public_key"`
	ContractID domain.AccountID `json:"contract_id"`
}

type checkKeyResponse struct {
	Exists bool `json:"exists"`
}

type keyBalanceResponse struct {
	Balance domain.U128 `json:"balance"`
}

// SendWithCallback registers a claimable key with the facility
func (f *httpFacility) SendWithCallback(ctx context.Context, publicKey domain.PublicKey, contractID domain.AccountID) error {
	req := sendRequest{PublicKey: publicKey, ContractID: contractID}
	if err := f.client.PostJSON(ctx, f.url+"/send_with_callback", req, nil); err != nil {
		return fmt.Errorf("linkdrop facility rejected key: %w", err)
	}
	return nil
}

// CheckKey reports whether the facility knows the key
func (f *httpFacility) CheckKey(ctx context.Context, publicKey domain.PublicKey) (bool, error) {
	var resp checkKeyResponse
	url := fmt.Sprintf("%s/check_key?public_key=%s", f.url, publicKey)
	if err := f.client.GetJSON(ctx, url, &resp); err != nil {
		return false, fmt.Errorf("failed to check key: %w", err)
	}
	return resp.Exists, nil
}

// GetKeyBalance returns the amount reserved per key by the facility
func (f *httpFacility) GetKeyBalance(ctx context.Context) (domain.U128, error) {
	var resp keyBalanceResponse
	if err := f.client.GetJSON(ctx, f.url+"/key_balance", &resp); err != nil {
		return domain.ZeroU128(), fmt.Errorf("failed to get key balance: %w", err)
	}
	return resp.Balance, nil
}
