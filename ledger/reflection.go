// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ledger

import (
	"math/big"

	"github.com/luxfi/ids"
)

// InitReflectionVault sizes the collection's reflection vault to supply
// slots, addressable by token ids 1 through supply. It must be called
// before any reflection operation for the collection. Re-initializing
// resets every slot to zero with the new supply while preserving the
// incentive vault.
func (l *Ledger) InitReflectionVault(coll ids.ID, supply uint64) error {
	if supply == 0 {
		return ErrInvalidSupply
	}
	ca := l.getOrCreateCollection(coll)
	ca.Supply = supply
	ca.Reflection = make([]*big.Int, supply)
	for i := range ca.Reflection {
		ca.Reflection[i] = new(big.Int)
	}
	return nil
}

// SupplyOf returns the initialized reflection supply of the collection, or
// zero when the vault has not been initialized.
func (l *Ledger) SupplyOf(coll ids.ID) uint64 {
	if ca, ok := l.collections[coll]; ok {
		return ca.Supply
	}
	return 0
}

// ReflectionVaultOf returns a snapshot of every reflection slot of the
// collection, empty when the vault has not been initialized.
func (l *Ledger) ReflectionVaultOf(coll ids.ID) []*big.Int {
	ca, ok := l.collections[coll]
	if !ok {
		return nil
	}
	out := make([]*big.Int, len(ca.Reflection))
	for i, slot := range ca.Reflection {
		out[i] = new(big.Int).Set(slot)
	}
	return out
}

// CreditReflection adds amount to the reflection slot of one token id.
func (l *Ledger) CreditReflection(coll ids.ID, tokenID uint64, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrNegativeAmount
	}
	ca, ok := l.collections[coll]
	if !ok || ca.Supply == 0 {
		return ErrCollectionNotInitialized
	}
	slot, ok := ca.slot(tokenID)
	if !ok {
		return ErrInvalidTokenID
	}
	slot.Add(slot, amount)
	return nil
}

// ClaimReflection empties the reflection slot of one token id and returns
// the amount removed. A valid id with a zero balance claims zero without
// error; an id of 0 or beyond the supply is rejected.
func (l *Ledger) ClaimReflection(coll ids.ID, tokenID uint64) (*big.Int, error) {
	ca, ok := l.collections[coll]
	if !ok || ca.Supply == 0 {
		return nil, ErrCollectionNotInitialized
	}
	slot, ok := ca.slot(tokenID)
	if !ok {
		return nil, ErrInvalidTokenID
	}
	out := new(big.Int).Set(slot)
	slot.SetUint64(0)
	return out, nil
}

// ClaimReflectionBatch empties the reflection slots of the listed token ids
// and returns the sum removed. An out-of-range id in the list is skipped
// and contributes zero rather than failing the batch.
func (l *Ledger) ClaimReflectionBatch(coll ids.ID, tokenIDs []uint64) (*big.Int, error) {
	if len(tokenIDs) == 0 {
		return nil, ErrEmptyTokenIDList
	}
	ca, ok := l.collections[coll]
	if !ok || ca.Supply == 0 {
		return nil, ErrCollectionNotInitialized
	}
	total := new(big.Int)
	for _, tokenID := range tokenIDs {
		slot, ok := ca.slot(tokenID)
		if !ok {
			continue
		}
		total.Add(total, slot)
		slot.SetUint64(0)
	}
	return total, nil
}

// DistributeReflectionEven adds amount/supply (truncating) to every
// reflection slot of the collection. The remainder of the division is
// retained as aggregate dust and not tracked per slot.
func (l *Ledger) DistributeReflectionEven(coll ids.ID, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrNegativeAmount
	}
	ca, ok := l.collections[coll]
	if !ok || ca.Supply == 0 {
		return ErrCollectionNotInitialized
	}
	share := new(big.Int).Div(amount, new(big.Int).SetUint64(ca.Supply))
	for _, slot := range ca.Reflection {
		slot.Add(slot, share)
	}
	return nil
}

// DistributeReflectionList adds amount/len(tokenIDs) (truncating) to
// exactly the listed slots. Ids may repeat; a repeated id receives one
// share per occurrence. Every id is bounds-checked before any slot is
// touched, so a bad list leaves the vault unchanged.
func (l *Ledger) DistributeReflectionList(coll ids.ID, tokenIDs []uint64, amount *big.Int) error {
	if len(tokenIDs) == 0 {
		return ErrEmptyTokenIDList
	}
	if amount == nil || amount.Sign() < 0 {
		return ErrNegativeAmount
	}
	ca, ok := l.collections[coll]
	if !ok || ca.Supply == 0 {
		return ErrCollectionNotInitialized
	}
	for _, tokenID := range tokenIDs {
		if tokenID == 0 || tokenID > ca.Supply {
			return ErrInvalidTokenID
		}
	}
	share := new(big.Int).Div(amount, big.NewInt(int64(len(tokenIDs))))
	for _, tokenID := range tokenIDs {
		slot, _ := ca.slot(tokenID)
		slot.Add(slot, share)
	}
	return nil
}
