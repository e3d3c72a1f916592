package messaging

import (
	"context"

	"github.com/alpha-fi/cheddar-nft-minter/internal/domain"
)

// Publisher defines the interface for publishing NFT event logs to a message
// broker so indexers and wallets can follow the ledger.
//
//go:generate mockgen -source=publisher.go -destination=../mocks/publisher.go -package=mocks -mock_names=Publisher=MockPublisher
type Publisher interface {
	// PublishNFTEvent publishes one event envelope
	PublishNFTEvent(ctx context.Context, event *domain.NFTEvent) error
	// Close closes the connection
	Close()
}
