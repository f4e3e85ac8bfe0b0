// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package settlement runs the fee waterfall that splits a settled sale
// price among the marketplace operator, the creator, the collection owner,
// the collection's token holders, and the seller.
package settlement

import (
	"math/big"

	"github.com/luxfi/ids"
)

var oneHundred = big.NewInt(100)

// Input carries everything the fee waterfall needs for one settled sale.
type Input struct {
	Price            *big.Int
	CollectionActive bool
	LocalOrigin      bool

	MarketplaceCommissionPct uint64
	CreatorRoyaltyPct        uint64
	CollectionReflectionPct  uint64
	CollectionCommissionPct  uint64
	CollectionIncentivePct   uint64
	MarketplaceIncentivePct  uint64

	Seller          ids.ShortID
	Creator         ids.ShortID // ShortEmpty when the item has no registered creator
	Operator        ids.ShortID
	CollectionOwner ids.ShortID
	Collection      ids.ID
}

// Plan is the staged outcome of the waterfall: every credit and payout the
// apply phase will make, computed before any ledger state changes. The
// incentive Want fields record what the cascade asked for; the Paid fields
// record what the vault snapshots could cover.
type Plan struct {
	OperatorCut             *big.Int
	CreatorCut              *big.Int
	ReflectionCut           *big.Int
	CollectionCommissionCut *big.Int

	CollectionIncentiveWant  *big.Int
	CollectionIncentivePaid  *big.Int
	MarketplaceIncentiveWant *big.Int
	MarketplaceIncentivePaid *big.Int

	// Net is the seller's proceeds after the full cascade.
	Net *big.Int
}

func newPlan() Plan {
	return Plan{
		OperatorCut:              new(big.Int),
		CreatorCut:               new(big.Int),
		ReflectionCut:            new(big.Int),
		CollectionCommissionCut:  new(big.Int),
		CollectionIncentiveWant:  new(big.Int),
		CollectionIncentivePaid:  new(big.Int),
		MarketplaceIncentiveWant: new(big.Int),
		MarketplaceIncentivePaid: new(big.Int),
		Net:                      new(big.Int),
	}
}

// A stage consumes the running remainder and records its cut in the plan.
// Each stage's percentage applies to the remainder after all prior stages,
// not to the original price; the composition order is load-bearing.
type stage func(remaining *big.Int, p *Plan) *big.Int

// ComputePlan runs the cascade against snapshots of the collection and
// global incentive vaults. It is a pure function: the caller applies the
// resulting plan to the ledger only once every precondition has held, so a
// settlement is never half-applied.
//
// Order: marketplace commission, creator royalty, collection reflection,
// collection commission, collection incentive, marketplace incentive; the
// remainder is the seller's net.
func ComputePlan(in Input, collectionVault, globalVault *big.Int) Plan {
	p := newPlan()
	if in.Price == nil || in.Price.Sign() <= 0 {
		return p
	}

	stages := []stage{
		marketplaceCommission(in),
		creatorRoyalty(in),
		collectionReflection(in),
		collectionCommission(in),
		collectionIncentive(in, collectionVault),
		marketplaceIncentive(in, globalVault),
	}

	remaining := new(big.Int).Set(in.Price)
	for _, s := range stages {
		remaining = s(remaining, &p)
	}
	p.Net = remaining
	return p
}

// pctOf returns amount*pct/100 with truncating division. No rounding
// correction is applied anywhere in the cascade; the truncated remainder
// stays with the later stages.
func pctOf(amount *big.Int, pct uint64) *big.Int {
	cut := new(big.Int).Mul(amount, new(big.Int).SetUint64(pct))
	return cut.Div(cut, oneHundred)
}

func marketplaceCommission(in Input) stage {
	return func(remaining *big.Int, p *Plan) *big.Int {
		p.OperatorCut = pctOf(remaining, in.MarketplaceCommissionPct)
		return remaining.Sub(remaining, p.OperatorCut)
	}
}

// creatorRoyalty applies only to locally originated items with a registered
// creator; externally created collections never pay it.
func creatorRoyalty(in Input) stage {
	return func(remaining *big.Int, p *Plan) *big.Int {
		if !in.LocalOrigin || in.Creator == ids.ShortEmpty {
			return remaining
		}
		p.CreatorCut = pctOf(remaining, in.CreatorRoyaltyPct)
		return remaining.Sub(remaining, p.CreatorCut)
	}
}

func collectionReflection(in Input) stage {
	return func(remaining *big.Int, p *Plan) *big.Int {
		if !in.CollectionActive {
			return remaining
		}
		p.ReflectionCut = pctOf(remaining, in.CollectionReflectionPct)
		return remaining.Sub(remaining, p.ReflectionCut)
	}
}

func collectionCommission(in Input) stage {
	return func(remaining *big.Int, p *Plan) *big.Int {
		if !in.CollectionActive {
			return remaining
		}
		p.CollectionCommissionCut = pctOf(remaining, in.CollectionCommissionPct)
		return remaining.Sub(remaining, p.CollectionCommissionCut)
	}
}

func collectionIncentive(in Input, vault *big.Int) stage {
	return func(remaining *big.Int, p *Plan) *big.Int {
		if !in.CollectionActive {
			return remaining
		}
		p.CollectionIncentiveWant = pctOf(remaining, in.CollectionIncentivePct)
		p.CollectionIncentivePaid = capToVault(p.CollectionIncentiveWant, vault)
		return remaining.Add(remaining, p.CollectionIncentivePaid)
	}
}

// marketplaceIncentive applies to every sale, active collection or not.
func marketplaceIncentive(in Input, vault *big.Int) stage {
	return func(remaining *big.Int, p *Plan) *big.Int {
		p.MarketplaceIncentiveWant = pctOf(remaining, in.MarketplaceIncentivePct)
		p.MarketplaceIncentivePaid = capToVault(p.MarketplaceIncentiveWant, vault)
		return remaining.Add(remaining, p.MarketplaceIncentivePaid)
	}
}

func capToVault(want, vault *big.Int) *big.Int {
	if vault == nil || vault.Cmp(want) < 0 {
		paid := new(big.Int)
		if vault != nil {
			paid.Set(vault)
		}
		return paid
	}
	return new(big.Int).Set(want)
}
