// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package marketvm

import (
	"github.com/luxfi/log"
	"github.com/luxfi/metric"

	"github.com/luxfi/marketvm/config"
	"github.com/luxfi/marketvm/registry"
)

// Factory builds marketplace VM instances from a shared configuration.
type Factory struct {
	config.Config

	Registry   registry.Registry
	Sales      registry.SaleSource
	Registerer metric.Registerer
}

// New returns a new VM bound to the factory's registry and sale source.
func (f *Factory) New(logger log.Logger) (interface{}, error) {
	vm := New(f.Registry, f.Sales, logger, f.Registerer)
	vm.cfg = f.Config
	return vm, nil
}
