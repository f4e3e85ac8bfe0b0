// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package rewards exposes ad-hoc reward distribution to collection owners,
// outside the sale settlement path.
package rewards

import (
	"errors"
	"math/big"

	"github.com/luxfi/ids"
	"github.com/luxfi/log"

	"github.com/luxfi/marketvm/ledger"
)

var ErrTokenListTooLong = errors.New("token id list exceeds collection supply")

// Distributor splits a deposited amount across a collection's reflection
// vault, either evenly over every token id or over an explicit list.
type Distributor struct {
	ledger *ledger.Ledger
	log    log.Logger
}

// New creates a distributor over the given ledger.
func New(l *ledger.Ledger, logger log.Logger) *Distributor {
	return &Distributor{
		ledger: l,
		log:    logger,
	}
}

// DistributeEven splits amount evenly across every reflection slot of the
// collection. Truncation dust is retained in aggregate, not per slot.
func (d *Distributor) DistributeEven(coll ids.ID, amount *big.Int) error {
	if err := d.ledger.DistributeReflectionEven(coll, amount); err != nil {
		return err
	}
	d.log.Debug("rewards distributed", "collection", coll, "amount", amount, "mode", "even")
	return nil
}

// DistributeToList splits amount across exactly the listed token ids. The
// list must be non-empty, contain no zero id, and be no longer than the
// collection's supply.
func (d *Distributor) DistributeToList(coll ids.ID, tokenIDs []uint64, amount *big.Int) error {
	if len(tokenIDs) == 0 {
		return ledger.ErrEmptyTokenIDList
	}
	for _, tokenID := range tokenIDs {
		if tokenID == 0 {
			return ledger.ErrInvalidTokenID
		}
	}
	if supply := d.ledger.SupplyOf(coll); supply > 0 && uint64(len(tokenIDs)) > supply {
		return ErrTokenListTooLong
	}
	if err := d.ledger.DistributeReflectionList(coll, tokenIDs, amount); err != nil {
		return err
	}
	d.log.Debug("rewards distributed", "collection", coll, "amount", amount, "mode", "list", "slots", len(tokenIDs))
	return nil
}
