// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package registry defines the boundary to the marketplace's collection
// registry and sale state machine. The settlement core consumes these
// interfaces; it never manages collection metadata or sale lifecycles
// itself.
package registry

import (
	"errors"
	"math/big"

	"github.com/luxfi/ids"
)

var (
	ErrCollectionNotFound = errors.New("collection not found")
	ErrSaleNotFound       = errors.New("sale not found")
	ErrInvalidPercentage  = errors.New("percentage must be less than 100")
)

// Category describes where a collection originated. Creator royalties apply
// only to locally originated collections.
type Category uint8

const (
	// CategoryLocal is a collection minted on this marketplace.
	CategoryLocal Category = iota
	// CategoryVerified is an externally created collection whose owner has
	// been verified.
	CategoryVerified
	// CategoryUnverified is an externally created collection with no
	// verified owner.
	CategoryUnverified
)

func (c Category) String() string {
	switch c {
	case CategoryLocal:
		return "local"
	case CategoryVerified:
		return "verified"
	case CategoryUnverified:
		return "unverified"
	default:
		return "unknown"
	}
}

// CollectionPolicy is the fee policy and metadata the registry maintains
// per collection.
type CollectionPolicy struct {
	Active               bool        `json:"active"`
	ReflectionPct        uint64      `json:"reflectionPct"`
	CommissionPct        uint64      `json:"commissionPct"`
	IncentivePct         uint64      `json:"incentivePct"`
	OwnerIncentiveAccess bool        `json:"ownerIncentiveAccess"`
	Owner                ids.ShortID `json:"owner"`
	Supply               uint64      `json:"supply"`
	Category             Category    `json:"category"`
}

// Validate rejects any percentage of 100 or more. A full-price cut would
// leave nothing to cascade, so it is a configuration error rather than a
// settlement-time fallback.
func (p CollectionPolicy) Validate() error {
	for _, pct := range []uint64{p.ReflectionPct, p.CommissionPct, p.IncentivePct} {
		if pct >= 100 {
			return ErrInvalidPercentage
		}
	}
	return nil
}

// Registry resolves the fee policy of a collection.
type Registry interface {
	GetCollectionPolicy(coll ids.ID) (CollectionPolicy, error)
}

// SaleType is the sale variant an item was listed under.
type SaleType uint8

const (
	SaleDirect SaleType = iota
	SaleImmediate
	SaleAuction
)

func (t SaleType) String() string {
	switch t {
	case SaleImmediate:
		return "immediate"
	case SaleAuction:
		return "auction"
	default:
		return "direct"
	}
}

// Sale is a completed sale as reported by the sale state machine. Creator
// is ids.ShortEmpty when the item has no registered creator.
type Sale struct {
	ItemID     ids.ID      `json:"itemID"`
	Collection ids.ID      `json:"collection"`
	Type       SaleType    `json:"type"`
	Price      *big.Int    `json:"price"`
	Seller     ids.ShortID `json:"seller"`
	Buyer      ids.ShortID `json:"buyer"`
	Creator    ids.ShortID `json:"creator"`
}

// SaleSource reports completed sales, consumed once when an item's sale is
// marked complete.
type SaleSource interface {
	GetSale(itemID ids.ID) (Sale, error)
}
