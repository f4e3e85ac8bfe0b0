// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package settlement

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/luxfi/log"
	"github.com/luxfi/metric"

	"github.com/luxfi/marketvm/config"
	"github.com/luxfi/marketvm/ledger"
	"github.com/luxfi/marketvm/registry"
)

var ErrInvalidPrice = errors.New("sale price must be non-negative")

// Engine settles completed sales against the ledger. It reads the fee
// policy from the registry, computes the full waterfall plan, and only then
// applies it, so every ledger precondition is checked before the first
// credit.
type Engine struct {
	ledger   *ledger.Ledger
	registry registry.Registry
	cfg      config.Config
	log      log.Logger
	metrics  *metrics
}

// New creates a settlement engine. The configuration is validated here;
// settlement never re-checks percentages.
func New(
	l *ledger.Ledger,
	reg registry.Registry,
	cfg config.Config,
	logger log.Logger,
	registerer metric.Registerer,
) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	m, err := newMetrics(registerer)
	if err != nil {
		return nil, err
	}
	return &Engine{
		ledger:   l,
		registry: reg,
		cfg:      cfg,
		log:      logger,
		metrics:  m,
	}, nil
}

// Settle runs the fee waterfall for one completed sale and credits every
// party's ledger balance. The returned plan reports the seller's net
// proceeds and every side-credit. A zero-price sale is valid and credits
// nothing to anyone.
func (e *Engine) Settle(sale registry.Sale) (Plan, error) {
	if sale.Price == nil || sale.Price.Sign() < 0 {
		return Plan{}, ErrInvalidPrice
	}

	policy, err := e.registry.GetCollectionPolicy(sale.Collection)
	if err != nil {
		return Plan{}, err
	}

	if sale.Price.Sign() == 0 {
		e.metrics.numZeroPriceSales.Inc()
		return newPlan(), nil
	}

	// An active collection with a reflection percentage needs an
	// initialized reflection vault. Checked before any mutation so a
	// failed settlement leaves the ledger untouched.
	if policy.Active && policy.ReflectionPct > 0 && e.ledger.SupplyOf(sale.Collection) == 0 {
		return Plan{}, fmt.Errorf("%w: collection %s", ledger.ErrCollectionNotInitialized, sale.Collection)
	}

	in := Input{
		Price:            sale.Price,
		CollectionActive: policy.Active,
		LocalOrigin:      policy.Category == registry.CategoryLocal,

		MarketplaceCommissionPct: e.cfg.CommissionPct,
		CreatorRoyaltyPct:        e.cfg.CreatorRoyaltyPct,
		CollectionReflectionPct:  policy.ReflectionPct,
		CollectionCommissionPct:  policy.CommissionPct,
		CollectionIncentivePct:   policy.IncentivePct,
		MarketplaceIncentivePct:  e.cfg.IncentivePct,

		Seller:          sale.Seller,
		Creator:         sale.Creator,
		Operator:        e.cfg.Operator,
		CollectionOwner: policy.Owner,
		Collection:      sale.Collection,
	}

	plan := ComputePlan(in, e.ledger.IncentiveVaultOf(sale.Collection), e.ledger.GlobalIncentiveVault())
	if err := e.apply(in, plan); err != nil {
		return Plan{}, err
	}

	e.metrics.numSettlements.Inc()
	price, _ := new(big.Float).SetInt(sale.Price).Float64()
	e.metrics.settledVolume.Add(price)
	if plan.CollectionIncentivePaid.Cmp(plan.CollectionIncentiveWant) < 0 {
		e.metrics.numCappedCollectionIncentives.Inc()
	}
	if plan.MarketplaceIncentivePaid.Cmp(plan.MarketplaceIncentiveWant) < 0 {
		e.metrics.numCappedMarketplaceIncentives.Inc()
	}

	e.log.Debug("sale settled",
		"item", sale.ItemID,
		"collection", sale.Collection,
		"type", sale.Type,
		"price", sale.Price,
		"net", plan.Net,
	)
	return plan, nil
}

// apply books the plan into the ledger. Preconditions were verified while
// planning, so nothing here can fail partway under single-writer execution.
func (e *Engine) apply(in Input, plan Plan) error {
	if err := e.ledger.Credit(in.Operator, ledger.General, plan.OperatorCut); err != nil {
		return err
	}
	if plan.CreatorCut.Sign() > 0 {
		if err := e.ledger.Credit(in.Creator, ledger.CreatorCommission, plan.CreatorCut); err != nil {
			return err
		}
	}
	if plan.ReflectionCut.Sign() > 0 {
		if err := e.ledger.DistributeReflectionEven(in.Collection, plan.ReflectionCut); err != nil {
			return err
		}
	}
	if plan.CollectionCommissionCut.Sign() > 0 {
		if err := e.ledger.Credit(in.CollectionOwner, ledger.CollectionCommission, plan.CollectionCommissionCut); err != nil {
			return err
		}
	}
	e.ledger.PayIncentive(in.Collection, plan.CollectionIncentiveWant)
	e.ledger.PayGlobalIncentive(plan.MarketplaceIncentiveWant)
	return e.ledger.Credit(in.Seller, ledger.General, plan.Net)
}

// ListingFee returns the marketplace listing fee for a list price.
func (e *Engine) ListingFee(price *big.Int) (*big.Int, error) {
	if price == nil || price.Sign() < 0 {
		return nil, ErrInvalidPrice
	}
	return pctOf(new(big.Int).Set(price), e.cfg.ListingFeePct), nil
}

// ChargeListingFee credits the listing fee for a list price to the
// marketplace operator and returns the fee charged.
func (e *Engine) ChargeListingFee(price *big.Int) (*big.Int, error) {
	fee, err := e.ListingFee(price)
	if err != nil {
		return nil, err
	}
	if err := e.ledger.Credit(e.cfg.Operator, ledger.General, fee); err != nil {
		return nil, err
	}
	e.metrics.numListingFees.Inc()
	return fee, nil
}
