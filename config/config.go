// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package config defines configuration for the marketplace settlement VM.
package config

import (
	"fmt"

	"github.com/luxfi/ids"

	"github.com/luxfi/marketvm/registry"
)

// Config contains the marketplace-wide settlement parameters. Percentages
// are whole percents applied with truncating integer arithmetic.
type Config struct {
	// Operator is the account credited with marketplace commissions and
	// listing fees.
	Operator ids.ShortID `json:"operator"`

	// CommissionPct is the marketplace commission taken first from every
	// settled price.
	CommissionPct uint64 `json:"commissionPct"`
	// IncentivePct is the marketplace incentive added to the seller's
	// proceeds out of the global incentive vault.
	IncentivePct uint64 `json:"incentivePct"`
	// ListingFeePct is the fee charged on an item's list price.
	ListingFeePct uint64 `json:"listingFeePct"`
	// CreatorRoyaltyPct is the fixed royalty rate for locally originated
	// collections with a registered creator.
	CreatorRoyaltyPct uint64 `json:"creatorRoyaltyPct"`
}

// DefaultConfig returns the default marketplace parameters.
func DefaultConfig() Config {
	return Config{
		CommissionPct:     2,
		IncentivePct:      2,
		ListingFeePct:     1,
		CreatorRoyaltyPct: 10,
	}
}

// Validate rejects any percentage of 100 or more, at configuration time
// rather than at settlement time.
func (c Config) Validate() error {
	for name, pct := range map[string]uint64{
		"commissionPct":     c.CommissionPct,
		"incentivePct":      c.IncentivePct,
		"listingFeePct":     c.ListingFeePct,
		"creatorRoyaltyPct": c.CreatorRoyaltyPct,
	} {
		if pct >= 100 {
			return fmt.Errorf("%w: %s is %d", registry.ErrInvalidPercentage, name, pct)
		}
	}
	return nil
}
