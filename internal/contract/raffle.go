package contract

import (
	"context"
	"fmt"

	"github.com/alpha-fi/cheddar-nft-minter/internal/domain"
	"github.com/alpha-fi/cheddar-nft-minter/internal/store"
)

// drawRaffle removes and returns one random undrawn token number. Swap-remove
// keeps the slot indexes contiguous: the drawn slot takes the tail slot's
// value and the tail is deleted.
func (c *Contract) drawRaffle(ctx context.Context, tx store.Store) (uint64, error) {
	count, err := tx.CountRaffleEntries(ctx)
	if err != nil {
		return 0, err
	}
	if count == 0 {
		return 0, domain.ErrSaleClosed
	}

	idx := uint64(c.rng.Int63n(int64(count)))
	entry, err := tx.GetRaffleEntry(ctx, idx)
	if err != nil {
		return 0, err
	}
	if entry == nil {
		return 0, fmt.Errorf("raffle slot %d missing", idx)
	}
	value := entry.Value

	last := count - 1
	if idx != last {
		tail, err := tx.GetRaffleEntry(ctx, last)
		if err != nil {
			return 0, err
		}
		if tail == nil {
			return 0, fmt.Errorf("raffle slot %d missing", last)
		}
		entry.Value = tail.Value
		if err := tx.SaveRaffleEntry(ctx, entry); err != nil {
			return 0, err
		}
	}
	if err := tx.DeleteRaffleEntry(ctx, last); err != nil {
		return 0, err
	}
	return value, nil
}

// drawRaffleValue consumes the raffle slot holding a specific token number,
// preserving the contiguous index layout. Returns ErrDuplicateTokenID when
// the number has already been drawn.
func drawRaffleValue(ctx context.Context, tx store.Store, value uint64) error {
	entry, err := tx.FindRaffleEntryByValue(ctx, value)
	if err != nil {
		return err
	}
	if entry == nil {
		return domain.ErrDuplicateTokenID
	}

	count, err := tx.CountRaffleEntries(ctx)
	if err != nil {
		return err
	}
	last := count - 1
	if entry.Idx != last {
		tail, err := tx.GetRaffleEntry(ctx, last)
		if err != nil {
			return err
		}
		if tail == nil {
			return fmt.Errorf("raffle slot %d missing", last)
		}
		entry.Value = tail.Value
		if err := tx.SaveRaffleEntry(ctx, entry); err != nil {
			return err
		}
	}
	return tx.DeleteRaffleEntry(ctx, last)
}
