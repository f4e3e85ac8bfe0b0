// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ledger

import (
	"math/big"

	"github.com/luxfi/ids"
)

// UpdateIncentiveVault increases or decreases the collection's incentive
// vault. Increases are unconditional; a decrease beyond the current balance
// fails and leaves the vault unchanged.
func (l *Ledger) UpdateIncentiveVault(coll ids.ID, amount *big.Int, increase bool) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrNegativeAmount
	}
	ca := l.getOrCreateCollection(coll)
	if increase {
		ca.IncentiveVault.Add(ca.IncentiveVault, amount)
		return nil
	}
	if ca.IncentiveVault.Cmp(amount) < 0 {
		return ErrInsufficientVault
	}
	ca.IncentiveVault.Sub(ca.IncentiveVault, amount)
	return nil
}

// UpdateGlobalIncentiveVault increases or decreases the marketplace-wide
// incentive vault with the same rules as UpdateIncentiveVault.
func (l *Ledger) UpdateGlobalIncentiveVault(amount *big.Int, increase bool) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrNegativeAmount
	}
	if increase {
		l.globalIncentive.Add(l.globalIncentive, amount)
		return nil
	}
	if l.globalIncentive.Cmp(amount) < 0 {
		return ErrInsufficientVault
	}
	l.globalIncentive.Sub(l.globalIncentive, amount)
	return nil
}

// PayIncentive pays min(want, vault) out of the collection's incentive
// vault and returns the amount actually paid. A shortfall caps the payout
// at the vault balance instead of failing; an underfunded vault is drained
// to exactly zero.
func (l *Ledger) PayIncentive(coll ids.ID, want *big.Int) *big.Int {
	ca, ok := l.collections[coll]
	if !ok {
		return new(big.Int)
	}
	return payCapped(ca.IncentiveVault, want)
}

// PayGlobalIncentive pays min(want, vault) out of the marketplace-wide
// incentive vault with the same capping rule as PayIncentive.
func (l *Ledger) PayGlobalIncentive(want *big.Int) *big.Int {
	return payCapped(l.globalIncentive, want)
}

func payCapped(vault, want *big.Int) *big.Int {
	if want == nil || want.Sign() <= 0 {
		return new(big.Int)
	}
	paid := new(big.Int).Set(want)
	if vault.Cmp(want) < 0 {
		paid.Set(vault)
	}
	vault.Sub(vault, paid)
	return paid
}

// IncentiveVaultOf returns the collection's incentive vault balance.
func (l *Ledger) IncentiveVaultOf(coll ids.ID) *big.Int {
	if ca, ok := l.collections[coll]; ok {
		return new(big.Int).Set(ca.IncentiveVault)
	}
	return new(big.Int)
}

// GlobalIncentiveVault returns the marketplace-wide incentive vault balance.
func (l *Ledger) GlobalIncentiveVault() *big.Int {
	return new(big.Int).Set(l.globalIncentive)
}
