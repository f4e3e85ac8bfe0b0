// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package registry

import (
	"fmt"

	"github.com/luxfi/ids"
)

var (
	_ Registry   = (*Memory)(nil)
	_ SaleSource = (*Memory)(nil)
)

// Memory is an in-memory Registry and SaleSource for tests and local
// deployments. Policies are validated when set, so settlement never sees an
// invalid percentage.
type Memory struct {
	collections map[ids.ID]CollectionPolicy
	sales       map[ids.ID]Sale
}

// NewMemory returns an empty in-memory registry.
func NewMemory() *Memory {
	return &Memory{
		collections: make(map[ids.ID]CollectionPolicy),
		sales:       make(map[ids.ID]Sale),
	}
}

// SetCollection registers or replaces a collection policy.
func (m *Memory) SetCollection(coll ids.ID, policy CollectionPolicy) error {
	if err := policy.Validate(); err != nil {
		return fmt.Errorf("%w: collection %s", err, coll)
	}
	m.collections[coll] = policy
	return nil
}

func (m *Memory) GetCollectionPolicy(coll ids.ID) (CollectionPolicy, error) {
	policy, ok := m.collections[coll]
	if !ok {
		return CollectionPolicy{}, fmt.Errorf("%w: %s", ErrCollectionNotFound, coll)
	}
	return policy, nil
}

// SetSale records a completed sale for an item.
func (m *Memory) SetSale(sale Sale) {
	m.sales[sale.ItemID] = sale
}

func (m *Memory) GetSale(itemID ids.ID) (Sale, error) {
	sale, ok := m.sales[itemID]
	if !ok {
		return Sale{}, fmt.Errorf("%w: item %s", ErrSaleNotFound, itemID)
	}
	return sale, nil
}
