// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package settlement

import (
	"errors"

	"github.com/luxfi/metric"
)

type metrics struct {
	numSettlements                 metric.Counter
	settledVolume                  metric.Counter
	numZeroPriceSales              metric.Counter
	numCappedCollectionIncentives  metric.Counter
	numCappedMarketplaceIncentives metric.Counter
	numListingFees                 metric.Counter
}

func newMetrics(registerer metric.Registerer) (*metrics, error) {
	if _, ok := registerer.(metric.Registry); !ok {
		return nil, errors.New("registerer must implement metric.Registry")
	}

	m := &metrics{}
	m.numSettlements = metric.NewCounter(metric.CounterOpts{
		Name: "settlements",
		Help: "Number of completed sales settled",
	})
	m.settledVolume = metric.NewCounter(metric.CounterOpts{
		Name: "settled_volume",
		Help: "Cumulative settled sale price in base units",
	})
	m.numZeroPriceSales = metric.NewCounter(metric.CounterOpts{
		Name: "zero_price_sales",
		Help: "Number of settled sales with a zero price",
	})
	m.numCappedCollectionIncentives = metric.NewCounter(metric.CounterOpts{
		Name: "capped_collection_incentives",
		Help: "Number of collection incentive payouts capped by vault balance",
	})
	m.numCappedMarketplaceIncentives = metric.NewCounter(metric.CounterOpts{
		Name: "capped_marketplace_incentives",
		Help: "Number of marketplace incentive payouts capped by vault balance",
	})
	m.numListingFees = metric.NewCounter(metric.CounterOpts{
		Name: "listing_fees",
		Help: "Number of listing fees charged",
	})
	// Counters self-register on creation.
	return m, nil
}
