// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package state persists the settlement ledger: one record per account
// key, one per collection key (embedding the variable-length reflection
// array), one per withdraw-vault key, and a singleton record for the
// global incentive vault.
package state

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/luxfi/database"
	"github.com/luxfi/ids"

	"github.com/luxfi/marketvm/ledger"
)

var (
	accountPrefix    = []byte("account:")
	collectionPrefix = []byte("collection:")
	withdrawPrefix   = []byte("withdraw:")

	globalIncentiveKey = []byte("globalIncentive")
)

// Amounts are stored as big-endian byte slices; an empty slice is zero.
type accountRecord struct {
	General              []byte `serialize:"true"`
	CreatorCommission    []byte `serialize:"true"`
	CollectionCommission []byte `serialize:"true"`
}

type collectionRecord struct {
	Incentive []byte   `serialize:"true"`
	Supply    uint64   `serialize:"true"`
	Slots     [][]byte `serialize:"true"`
}

type vaultRecord struct {
	Balance []byte `serialize:"true"`
}

// State reads and writes ledger records against a database. Callers decide
// transaction boundaries; wrapping the database in a versiondb makes a
// sequence of puts atomic.
type State struct {
	db database.Database
}

// New returns a state layer over db.
func New(db database.Database) *State {
	return &State{db: db}
}

func accountKey(addr ids.ShortID) []byte {
	return append(accountPrefix, addr[:]...)
}

func collectionKey(coll ids.ID) []byte {
	return append(collectionPrefix, coll[:]...)
}

func withdrawKey(addr ids.ShortID) []byte {
	return append(withdrawPrefix, addr[:]...)
}

// PutAccount writes the account's claimable balances.
func (s *State) PutAccount(addr ids.ShortID, acc ledger.Account) error {
	rec := accountRecord{
		General:              acc.General.Bytes(),
		CreatorCommission:    acc.CreatorCommission.Bytes(),
		CollectionCommission: acc.CollectionCommission.Bytes(),
	}
	data, err := stateCodec.Marshal(codecVersion, &rec)
	if err != nil {
		return fmt.Errorf("failed to encode account %s: %w", addr, err)
	}
	return s.db.Put(accountKey(addr), data)
}

// DeleteAccount erases the account record.
func (s *State) DeleteAccount(addr ids.ShortID) error {
	return s.db.Delete(accountKey(addr))
}

// PutCollection writes the collection's vaults and supply.
func (s *State) PutCollection(coll ids.ID, ca ledger.CollectionAccount) error {
	rec := collectionRecord{
		Incentive: ca.IncentiveVault.Bytes(),
		Supply:    ca.Supply,
		Slots:     make([][]byte, len(ca.Reflection)),
	}
	for i, slot := range ca.Reflection {
		rec.Slots[i] = slot.Bytes()
	}
	data, err := stateCodec.Marshal(codecVersion, &rec)
	if err != nil {
		return fmt.Errorf("failed to encode collection %s: %w", coll, err)
	}
	return s.db.Put(collectionKey(coll), data)
}

// DeleteCollection erases the collection record.
func (s *State) DeleteCollection(coll ids.ID) error {
	return s.db.Delete(collectionKey(coll))
}

// PutWithdraw writes the account's general withdraw vault balance.
func (s *State) PutWithdraw(addr ids.ShortID, balance *big.Int) error {
	rec := vaultRecord{Balance: balance.Bytes()}
	data, err := stateCodec.Marshal(codecVersion, &rec)
	if err != nil {
		return fmt.Errorf("failed to encode withdraw vault %s: %w", addr, err)
	}
	return s.db.Put(withdrawKey(addr), data)
}

// PutGlobalIncentive writes the marketplace-wide incentive vault balance.
func (s *State) PutGlobalIncentive(balance *big.Int) error {
	rec := vaultRecord{Balance: balance.Bytes()}
	data, err := stateCodec.Marshal(codecVersion, &rec)
	if err != nil {
		return fmt.Errorf("failed to encode global incentive vault: %w", err)
	}
	return s.db.Put(globalIncentiveKey, data)
}

// Load rebuilds a ledger from the database, replaying every stored record
// through the ledger's own operations so the in-memory invariants hold.
func (s *State) Load() (*ledger.Ledger, error) {
	l := ledger.New()

	if err := s.loadAccounts(l); err != nil {
		return nil, err
	}
	if err := s.loadCollections(l); err != nil {
		return nil, err
	}
	if err := s.loadWithdrawVaults(l); err != nil {
		return nil, err
	}

	data, err := s.db.Get(globalIncentiveKey)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return l, nil
		}
		return nil, err
	}
	rec := vaultRecord{}
	if _, err := stateCodec.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode global incentive vault: %w", err)
	}
	if err := l.UpdateGlobalIncentiveVault(new(big.Int).SetBytes(rec.Balance), true); err != nil {
		return nil, err
	}

	return l, nil
}

func (s *State) loadAccounts(l *ledger.Ledger) error {
	iter := s.db.NewIteratorWithPrefix(accountPrefix)
	defer iter.Release()

	for iter.Next() {
		addr, err := ids.ToShortID(iter.Key()[len(accountPrefix):])
		if err != nil {
			return fmt.Errorf("malformed account key: %w", err)
		}
		rec := accountRecord{}
		if _, err := stateCodec.Unmarshal(iter.Value(), &rec); err != nil {
			return fmt.Errorf("failed to decode account %s: %w", addr, err)
		}
		for field, raw := range map[ledger.Balance][]byte{
			ledger.General:              rec.General,
			ledger.CreatorCommission:    rec.CreatorCommission,
			ledger.CollectionCommission: rec.CollectionCommission,
		} {
			if err := l.Credit(addr, field, new(big.Int).SetBytes(raw)); err != nil {
				return err
			}
		}
	}
	return iter.Error()
}

func (s *State) loadCollections(l *ledger.Ledger) error {
	iter := s.db.NewIteratorWithPrefix(collectionPrefix)
	defer iter.Release()

	for iter.Next() {
		coll, err := ids.ToID(iter.Key()[len(collectionPrefix):])
		if err != nil {
			return fmt.Errorf("malformed collection key: %w", err)
		}
		rec := collectionRecord{}
		if _, err := stateCodec.Unmarshal(iter.Value(), &rec); err != nil {
			return fmt.Errorf("failed to decode collection %s: %w", coll, err)
		}
		if rec.Supply > 0 {
			if err := l.InitReflectionVault(coll, rec.Supply); err != nil {
				return err
			}
			for i, raw := range rec.Slots {
				if err := l.CreditReflection(coll, uint64(i)+1, new(big.Int).SetBytes(raw)); err != nil {
					return err
				}
			}
		}
		if err := l.UpdateIncentiveVault(coll, new(big.Int).SetBytes(rec.Incentive), true); err != nil {
			return err
		}
	}
	return iter.Error()
}

func (s *State) loadWithdrawVaults(l *ledger.Ledger) error {
	iter := s.db.NewIteratorWithPrefix(withdrawPrefix)
	defer iter.Release()

	for iter.Next() {
		addr, err := ids.ToShortID(iter.Key()[len(withdrawPrefix):])
		if err != nil {
			return fmt.Errorf("malformed withdraw vault key: %w", err)
		}
		rec := vaultRecord{}
		if _, err := stateCodec.Unmarshal(iter.Value(), &rec); err != nil {
			return fmt.Errorf("failed to decode withdraw vault %s: %w", addr, err)
		}
		if err := l.Deposit(addr, new(big.Int).SetBytes(rec.Balance)); err != nil {
			return err
		}
	}
	return iter.Error()
}
