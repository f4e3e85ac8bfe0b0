// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package ledger implements the settlement ledger for the NFT marketplace.
//
// The ledger is the authoritative store of every balance the marketplace
// holds on behalf of its participants: per-account claimable balances,
// per-collection incentive and reflection vaults, per-account withdraw
// vaults, and the single marketplace-wide incentive vault. All amounts are
// non-negative fixed-point integers with 18-decimal semantics.
//
// The ledger itself is not safe for concurrent use. Callers serialize
// access; within one call every mutation either applies in full or not at
// all.
package ledger

import (
	"errors"
	"math/big"

	"github.com/luxfi/ids"
)

var (
	ErrCollectionNotInitialized = errors.New("collection reflection vault not initialized")
	ErrInvalidTokenID           = errors.New("token id out of range")
	ErrInvalidSupply            = errors.New("reflection supply must be positive")
	ErrInsufficientVault        = errors.New("requested amount exceeds vault balance")
	ErrEmptyTokenIDList         = errors.New("token id list is empty")
	ErrNegativeAmount           = errors.New("amount must be non-negative")
)

// Balance identifies one of the claimable balances held by an account.
type Balance uint8

const (
	// General holds proceeds from direct and immediate sales.
	General Balance = iota
	// CreatorCommission holds royalties accrued to an original creator.
	CreatorCommission
	// CollectionCommission holds commission accrued to a collection owner.
	CollectionCommission
)

func (b Balance) String() string {
	switch b {
	case CreatorCommission:
		return "creatorCommission"
	case CollectionCommission:
		return "collectionCommission"
	default:
		return "general"
	}
}

// Account holds the three claimable balances of one marketplace participant.
type Account struct {
	General              *big.Int `json:"general"`
	CreatorCommission    *big.Int `json:"creatorCommission"`
	CollectionCommission *big.Int `json:"collectionCommission"`
}

func newAccount() *Account {
	return &Account{
		General:              new(big.Int),
		CreatorCommission:    new(big.Int),
		CollectionCommission: new(big.Int),
	}
}

func (a *Account) balance(field Balance) *big.Int {
	switch field {
	case CreatorCommission:
		return a.CreatorCommission
	case CollectionCommission:
		return a.CollectionCommission
	default:
		return a.General
	}
}

func (a *Account) copy() Account {
	return Account{
		General:              new(big.Int).Set(a.General),
		CreatorCommission:    new(big.Int).Set(a.CreatorCommission),
		CollectionCommission: new(big.Int).Set(a.CollectionCommission),
	}
}

// CollectionAccount holds the pooled balances of one collection: the
// incentive vault and the supply-indexed reflection vault. A zero Supply
// means the reflection vault has not been initialized yet; reflection
// operations are rejected until it is.
type CollectionAccount struct {
	IncentiveVault *big.Int   `json:"incentiveVault"`
	Supply         uint64     `json:"supply"`
	Reflection     []*big.Int `json:"reflection"` // slot for token id i stored at index i-1
}

func newCollectionAccount() *CollectionAccount {
	return &CollectionAccount{IncentiveVault: new(big.Int)}
}

// slot returns the reflection slot for tokenID, or false when tokenID is 0
// or beyond the initialized supply.
func (ca *CollectionAccount) slot(tokenID uint64) (*big.Int, bool) {
	if tokenID == 0 || tokenID > ca.Supply {
		return nil, false
	}
	return ca.Reflection[tokenID-1], true
}

func (ca *CollectionAccount) copy() CollectionAccount {
	out := CollectionAccount{
		IncentiveVault: new(big.Int).Set(ca.IncentiveVault),
		Supply:         ca.Supply,
	}
	if ca.Reflection != nil {
		out.Reflection = make([]*big.Int, len(ca.Reflection))
		for i, slot := range ca.Reflection {
			out.Reflection[i] = new(big.Int).Set(slot)
		}
	}
	return out
}

// Ledger tracks every account and vault balance the marketplace holds.
// Records are created lazily on first reference; reading a record that was
// never written observes all-zero balances.
type Ledger struct {
	accounts    map[ids.ShortID]*Account
	collections map[ids.ID]*CollectionAccount
	withdraw    map[ids.ShortID]*big.Int

	globalIncentive *big.Int
}

// New returns an empty ledger.
func New() *Ledger {
	return &Ledger{
		accounts:        make(map[ids.ShortID]*Account),
		collections:     make(map[ids.ID]*CollectionAccount),
		withdraw:        make(map[ids.ShortID]*big.Int),
		globalIncentive: new(big.Int),
	}
}

func (l *Ledger) getOrCreateAccount(addr ids.ShortID) *Account {
	acc, ok := l.accounts[addr]
	if !ok {
		acc = newAccount()
		l.accounts[addr] = acc
	}
	return acc
}

func (l *Ledger) getOrCreateCollection(coll ids.ID) *CollectionAccount {
	ca, ok := l.collections[coll]
	if !ok {
		ca = newCollectionAccount()
		l.collections[coll] = ca
	}
	return ca
}

// Credit adds amount to one of the account's claimable balances, creating
// the account with a zero baseline if it does not exist yet.
func (l *Ledger) Credit(addr ids.ShortID, field Balance, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrNegativeAmount
	}
	bal := l.getOrCreateAccount(addr).balance(field)
	bal.Add(bal, amount)
	return nil
}

// Claim empties one of the account's claimable balances and returns the
// amount removed. Claiming a zero balance (or a never-written account) is a
// no-op that returns zero.
func (l *Ledger) Claim(addr ids.ShortID, field Balance) *big.Int {
	acc, ok := l.accounts[addr]
	if !ok {
		return new(big.Int)
	}
	bal := acc.balance(field)
	out := new(big.Int).Set(bal)
	bal.SetUint64(0)
	return out
}

// AccountOf returns a snapshot of the account's claimable balances.
func (l *Ledger) AccountOf(addr ids.ShortID) Account {
	acc, ok := l.accounts[addr]
	if !ok {
		return *newAccount()
	}
	return acc.copy()
}

// BalancesOf returns snapshots for a list of account keys, in order.
func (l *Ledger) BalancesOf(addrs []ids.ShortID) []Account {
	out := make([]Account, len(addrs))
	for i, addr := range addrs {
		out[i] = l.AccountOf(addr)
	}
	return out
}

// NullifyAccount zeroes every claimable balance of the account, keeping the
// record itself.
func (l *Ledger) NullifyAccount(addr ids.ShortID) {
	if acc, ok := l.accounts[addr]; ok {
		acc.General.SetUint64(0)
		acc.CreatorCommission.SetUint64(0)
		acc.CollectionCommission.SetUint64(0)
	}
}

// RemoveAccount erases the account record entirely. A later reference
// recreates it fresh with zero balances.
func (l *Ledger) RemoveAccount(addr ids.ShortID) {
	delete(l.accounts, addr)
}

// NullifyCollection zeroes the collection's incentive vault and every
// reflection slot while preserving the initialized supply.
func (l *Ledger) NullifyCollection(coll ids.ID) {
	if ca, ok := l.collections[coll]; ok {
		ca.IncentiveVault.SetUint64(0)
		for _, slot := range ca.Reflection {
			slot.SetUint64(0)
		}
	}
}

// RemoveCollection erases the collection record entirely, including its
// supply. The reflection vault must be re-initialized before the collection
// is used again.
func (l *Ledger) RemoveCollection(coll ids.ID) {
	delete(l.collections, coll)
}

// CollectionOf returns a snapshot of the collection's vaults and whether a
// record exists.
func (l *Ledger) CollectionOf(coll ids.ID) (CollectionAccount, bool) {
	ca, ok := l.collections[coll]
	if !ok {
		return *newCollectionAccount(), false
	}
	return ca.copy(), true
}

// Deposit adds amount to the account's general withdraw vault.
func (l *Ledger) Deposit(addr ids.ShortID, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrNegativeAmount
	}
	bal, ok := l.withdraw[addr]
	if !ok {
		bal = new(big.Int)
		l.withdraw[addr] = bal
	}
	bal.Add(bal, amount)
	return nil
}

// Withdraw removes amount from the account's general withdraw vault. Unlike
// sale-triggered incentive payouts, an explicit withdrawal beyond the vault
// balance is an error, not a capped payout.
func (l *Ledger) Withdraw(addr ids.ShortID, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrNegativeAmount
	}
	bal, ok := l.withdraw[addr]
	if !ok || bal.Cmp(amount) < 0 {
		return ErrInsufficientVault
	}
	bal.Sub(bal, amount)
	return nil
}

// WithdrawBalance returns the current balance of the account's general
// withdraw vault.
func (l *Ledger) WithdrawBalance(addr ids.ShortID) *big.Int {
	if bal, ok := l.withdraw[addr]; ok {
		return new(big.Int).Set(bal)
	}
	return new(big.Int)
}

// TotalHeldFunds returns the sum of every balance the ledger tracks: all
// claimable account balances, withdraw vaults, collection incentive and
// reflection vaults, and the global incentive vault. Dust retained by
// truncating reward distributions is not part of this sum.
func (l *Ledger) TotalHeldFunds() *big.Int {
	total := new(big.Int)
	for _, acc := range l.accounts {
		total.Add(total, acc.General)
		total.Add(total, acc.CreatorCommission)
		total.Add(total, acc.CollectionCommission)
	}
	for _, bal := range l.withdraw {
		total.Add(total, bal)
	}
	for _, ca := range l.collections {
		total.Add(total, ca.IncentiveVault)
		for _, slot := range ca.Reflection {
			total.Add(total, slot)
		}
	}
	total.Add(total, l.globalIncentive)
	return total
}

// HasAccount reports whether a record exists for the account.
func (l *Ledger) HasAccount(addr ids.ShortID) bool {
	_, ok := l.accounts[addr]
	return ok
}

// HasWithdrawVault reports whether a withdraw vault record exists for the
// account.
func (l *Ledger) HasWithdrawVault(addr ids.ShortID) bool {
	_, ok := l.withdraw[addr]
	return ok
}

// PutAccount installs a copy of acc as the account record, replacing any
// existing record. Used to restore a previously taken snapshot.
func (l *Ledger) PutAccount(addr ids.ShortID, acc Account) {
	cp := acc.copy()
	l.accounts[addr] = &cp
}

// PutCollection installs a copy of ca as the collection record, replacing
// any existing record.
func (l *Ledger) PutCollection(coll ids.ID, ca CollectionAccount) {
	cp := ca.copy()
	l.collections[coll] = &cp
}

// PutWithdrawVault installs balance as the account's withdraw vault.
func (l *Ledger) PutWithdrawVault(addr ids.ShortID, balance *big.Int) {
	l.withdraw[addr] = new(big.Int).Set(balance)
}

// RemoveWithdrawVault erases the account's withdraw vault record.
func (l *Ledger) RemoveWithdrawVault(addr ids.ShortID) {
	delete(l.withdraw, addr)
}

// PutGlobalIncentive sets the marketplace-wide incentive vault balance.
func (l *Ledger) PutGlobalIncentive(balance *big.Int) {
	l.globalIncentive.Set(balance)
}

// Accounts returns a snapshot of every account record, keyed by address.
func (l *Ledger) Accounts() map[ids.ShortID]Account {
	out := make(map[ids.ShortID]Account, len(l.accounts))
	for addr, acc := range l.accounts {
		out[addr] = acc.copy()
	}
	return out
}

// Collections returns a snapshot of every collection record.
func (l *Ledger) Collections() map[ids.ID]CollectionAccount {
	out := make(map[ids.ID]CollectionAccount, len(l.collections))
	for coll, ca := range l.collections {
		out[coll] = ca.copy()
	}
	return out
}

// WithdrawBalances returns a snapshot of every withdraw vault.
func (l *Ledger) WithdrawBalances() map[ids.ShortID]*big.Int {
	out := make(map[ids.ShortID]*big.Int, len(l.withdraw))
	for addr, bal := range l.withdraw {
		out[addr] = new(big.Int).Set(bal)
	}
	return out
}
