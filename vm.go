// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package marketvm implements the settlement layer of the NFT marketplace:
// it books completed sales through the fee waterfall, maintains the
// settlement ledger, and serves the claim/withdraw API.
//
// Execution is fully serialized: every mutating entry point runs under the
// VM lock and commits its database writes atomically through a versiondb,
// so no operation is ever observed half-applied.
package marketvm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/rpc/v2"

	"github.com/luxfi/database"
	"github.com/luxfi/database/versiondb"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"
	"github.com/luxfi/metric"
	luxjson "github.com/luxfi/utils/json"

	"github.com/luxfi/marketvm/api"
	"github.com/luxfi/marketvm/config"
	"github.com/luxfi/marketvm/ledger"
	"github.com/luxfi/marketvm/registry"
	"github.com/luxfi/marketvm/rewards"
	"github.com/luxfi/marketvm/settlement"
	"github.com/luxfi/marketvm/state"
)

const Version = "1.0.0"

// VMID is the unique identifier for the marketplace settlement VM.
var VMID = ids.ID{'m', 'a', 'r', 'k', 'e', 't', 'v', 'm'}

var (
	ErrNotCollectionOwner = errors.New("requester is not the collection owner")
	ErrNoWithdrawAccess   = errors.New("collection owner has no incentive withdraw access")

	errNotInitialized = errors.New("vm not initialized")
	errShutdown       = errors.New("vm is shutting down")
	errNoSaleSource   = errors.New("no sale source configured")

	_ api.VM = (*VM)(nil)
)

// VM owns the settlement ledger and its persistence, and serializes all
// access to them.
type VM struct {
	cfg config.Config
	log log.Logger

	lock sync.RWMutex

	// Database management
	baseDB database.Database
	db     *versiondb.Database
	state  *state.State

	ledger      *ledger.Ledger
	engine      *settlement.Engine
	distributor *rewards.Distributor

	registry registry.Registry
	sales    registry.SaleSource

	registerer metric.Registerer

	startTime time.Time

	// Lifecycle state
	bootstrapped bool
	initialized  bool
	shutdown     bool
}

// New creates an uninitialized VM bound to its collaborators. Call
// Initialize before use.
func New(reg registry.Registry, sales registry.SaleSource, logger log.Logger, registerer metric.Registerer) *VM {
	return &VM{
		cfg:        config.DefaultConfig(),
		log:        logger,
		registry:   reg,
		sales:      sales,
		registerer: registerer,
	}
}

// Initialize sets up persistence and the settlement engine, restoring the
// ledger from the database. configBytes, when present, is a JSON-encoded
// config.Config overriding the factory configuration.
func (vm *VM) Initialize(ctx context.Context, db database.Database, configBytes []byte) error {
	vm.lock.Lock()
	defer vm.lock.Unlock()

	if len(configBytes) > 0 {
		if err := json.Unmarshal(configBytes, &vm.cfg); err != nil {
			return fmt.Errorf("failed to parse config: %w", err)
		}
	}
	if err := vm.cfg.Validate(); err != nil {
		return err
	}

	if vm.registerer == nil {
		vm.registerer = metric.NewRegistry()
	}

	vm.baseDB = db
	vm.db = versiondb.New(db)
	vm.state = state.New(vm.db)

	l, err := vm.state.Load()
	if err != nil {
		return fmt.Errorf("failed to load ledger: %w", err)
	}
	vm.ledger = l

	engine, err := settlement.New(l, vm.registry, vm.cfg, vm.log, vm.registerer)
	if err != nil {
		return err
	}
	vm.engine = engine
	vm.distributor = rewards.New(l, vm.log)

	vm.startTime = time.Now()
	vm.initialized = true
	vm.bootstrapped = true

	vm.log.Info("marketplace VM initialized",
		"operator", vm.cfg.Operator,
		"commissionPct", vm.cfg.CommissionPct,
		"incentivePct", vm.cfg.IncentivePct,
	)
	return nil
}

func (vm *VM) ready() error {
	switch {
	case !vm.initialized:
		return errNotInitialized
	case vm.shutdown:
		return errShutdown
	default:
		return nil
	}
}

// preimage captures copies of the ledger records an operation is about to
// touch, so a failed persist or commit can restore them. Entry points
// capture before mutating; a nil entry marks a record that did not exist.
type preimage struct {
	vm *VM

	accounts    map[ids.ShortID]*ledger.Account
	collections map[ids.ID]*ledger.CollectionAccount
	withdraw    map[ids.ShortID]*big.Int
	global      *big.Int
}

func (vm *VM) preimage() *preimage {
	return &preimage{
		vm:          vm,
		accounts:    make(map[ids.ShortID]*ledger.Account),
		collections: make(map[ids.ID]*ledger.CollectionAccount),
		withdraw:    make(map[ids.ShortID]*big.Int),
	}
}

func (p *preimage) captureAccounts(addrs ...ids.ShortID) *preimage {
	for _, addr := range addrs {
		if _, ok := p.accounts[addr]; ok {
			continue
		}
		if !p.vm.ledger.HasAccount(addr) {
			p.accounts[addr] = nil
			continue
		}
		acc := p.vm.ledger.AccountOf(addr)
		p.accounts[addr] = &acc
	}
	return p
}

func (p *preimage) captureCollection(coll ids.ID) *preimage {
	if _, ok := p.collections[coll]; ok {
		return p
	}
	if ca, ok := p.vm.ledger.CollectionOf(coll); ok {
		p.collections[coll] = &ca
	} else {
		p.collections[coll] = nil
	}
	return p
}

func (p *preimage) captureWithdrawVault(addr ids.ShortID) *preimage {
	if _, ok := p.withdraw[addr]; ok {
		return p
	}
	if p.vm.ledger.HasWithdrawVault(addr) {
		p.withdraw[addr] = p.vm.ledger.WithdrawBalance(addr)
	} else {
		p.withdraw[addr] = nil
	}
	return p
}

func (p *preimage) captureGlobalIncentive() *preimage {
	if p.global == nil {
		p.global = p.vm.ledger.GlobalIncentiveVault()
	}
	return p
}

// restore reinstates every captured record, erasing records that did not
// exist at capture time.
func (p *preimage) restore() {
	for addr, acc := range p.accounts {
		if acc == nil {
			p.vm.ledger.RemoveAccount(addr)
		} else {
			p.vm.ledger.PutAccount(addr, *acc)
		}
	}
	for coll, ca := range p.collections {
		if ca == nil {
			p.vm.ledger.RemoveCollection(coll)
		} else {
			p.vm.ledger.PutCollection(coll, *ca)
		}
	}
	for addr, bal := range p.withdraw {
		if bal == nil {
			p.vm.ledger.RemoveWithdrawVault(addr)
		} else {
			p.vm.ledger.PutWithdrawVault(addr, bal)
		}
	}
	if p.global != nil {
		p.vm.ledger.PutGlobalIncentive(p.global)
	}
}

// commit persists the given records and atomically commits them. On any
// failure the pending writes are discarded, the captured preimage is
// restored, and the call fails with the ledger and database both at their
// pre-operation state.
func (vm *VM) commit(pre *preimage, persist func() error) error {
	if err := persist(); err != nil {
		vm.db.Abort()
		pre.restore()
		return err
	}
	if err := vm.db.Commit(); err != nil {
		vm.db.Abort()
		pre.restore()
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

func (vm *VM) persistAccounts(addrs ...ids.ShortID) error {
	for _, addr := range addrs {
		if err := vm.state.PutAccount(addr, vm.ledger.AccountOf(addr)); err != nil {
			return err
		}
	}
	return nil
}

func (vm *VM) persistCollection(coll ids.ID) error {
	ca, ok := vm.ledger.CollectionOf(coll)
	if !ok {
		return nil
	}
	return vm.state.PutCollection(coll, ca)
}

// RegisterCollection initializes the collection's reflection vault from
// its registered supply. Re-registering resets every reflection slot to
// zero with the new supply.
func (vm *VM) RegisterCollection(coll ids.ID) error {
	vm.lock.Lock()
	defer vm.lock.Unlock()
	if err := vm.ready(); err != nil {
		return err
	}

	policy, err := vm.registry.GetCollectionPolicy(coll)
	if err != nil {
		return err
	}
	pre := vm.preimage().captureCollection(coll)
	if err := vm.ledger.InitReflectionVault(coll, policy.Supply); err != nil {
		return err
	}
	return vm.commit(pre, func() error {
		return vm.persistCollection(coll)
	})
}

// Settle books one completed sale through the fee waterfall.
func (vm *VM) Settle(sale registry.Sale) (settlement.Plan, error) {
	vm.lock.Lock()
	defer vm.lock.Unlock()
	return vm.settle(sale)
}

// SettleItem pulls the completed sale for an item from the sale source and
// settles it.
func (vm *VM) SettleItem(itemID ids.ID) (settlement.Plan, error) {
	vm.lock.Lock()
	defer vm.lock.Unlock()
	if vm.sales == nil {
		return settlement.Plan{}, errNoSaleSource
	}
	sale, err := vm.sales.GetSale(itemID)
	if err != nil {
		return settlement.Plan{}, err
	}
	return vm.settle(sale)
}

func (vm *VM) settle(sale registry.Sale) (settlement.Plan, error) {
	if err := vm.ready(); err != nil {
		return settlement.Plan{}, err
	}

	policy, err := vm.registry.GetCollectionPolicy(sale.Collection)
	if err != nil {
		return settlement.Plan{}, err
	}

	pre := vm.preimage().
		captureAccounts(vm.cfg.Operator, sale.Seller, policy.Owner).
		captureCollection(sale.Collection).
		captureGlobalIncentive()
	if sale.Creator != ids.ShortEmpty {
		pre.captureAccounts(sale.Creator)
	}

	plan, err := vm.engine.Settle(sale)
	if err != nil {
		return settlement.Plan{}, err
	}

	err = vm.commit(pre, func() error {
		if err := vm.persistAccounts(vm.cfg.Operator, sale.Seller); err != nil {
			return err
		}
		if plan.CreatorCut.Sign() > 0 {
			if err := vm.persistAccounts(sale.Creator); err != nil {
				return err
			}
		}
		if plan.CollectionCommissionCut.Sign() > 0 {
			if err := vm.persistAccounts(policy.Owner); err != nil {
				return err
			}
		}
		if err := vm.persistCollection(sale.Collection); err != nil {
			return err
		}
		return vm.state.PutGlobalIncentive(vm.ledger.GlobalIncentiveVault())
	})
	if err != nil {
		return settlement.Plan{}, err
	}
	return plan, nil
}

// Claim empties one of the account's claimable balances and returns the
// amount to pay out.
func (vm *VM) Claim(addr ids.ShortID, field ledger.Balance) (*big.Int, error) {
	vm.lock.Lock()
	defer vm.lock.Unlock()
	if err := vm.ready(); err != nil {
		return nil, err
	}

	pre := vm.preimage().captureAccounts(addr)
	amount := vm.ledger.Claim(addr, field)
	if err := vm.commit(pre, func() error { return vm.persistAccounts(addr) }); err != nil {
		return nil, err
	}
	return amount, nil
}

// ClaimReflection empties the reflection slot of one token id.
func (vm *VM) ClaimReflection(coll ids.ID, tokenID uint64) (*big.Int, error) {
	vm.lock.Lock()
	defer vm.lock.Unlock()
	if err := vm.ready(); err != nil {
		return nil, err
	}

	pre := vm.preimage().captureCollection(coll)
	amount, err := vm.ledger.ClaimReflection(coll, tokenID)
	if err != nil {
		return nil, err
	}
	if err := vm.commit(pre, func() error { return vm.persistCollection(coll) }); err != nil {
		return nil, err
	}
	return amount, nil
}

// ClaimReflectionBatch empties the reflection slots of the listed token
// ids and returns the sum claimed.
func (vm *VM) ClaimReflectionBatch(coll ids.ID, tokenIDs []uint64) (*big.Int, error) {
	vm.lock.Lock()
	defer vm.lock.Unlock()
	if err := vm.ready(); err != nil {
		return nil, err
	}

	pre := vm.preimage().captureCollection(coll)
	amount, err := vm.ledger.ClaimReflectionBatch(coll, tokenIDs)
	if err != nil {
		return nil, err
	}
	if err := vm.commit(pre, func() error { return vm.persistCollection(coll) }); err != nil {
		return nil, err
	}
	return amount, nil
}

// Deposit adds funds to the account's general withdraw vault.
func (vm *VM) Deposit(addr ids.ShortID, amount *big.Int) error {
	vm.lock.Lock()
	defer vm.lock.Unlock()
	if err := vm.ready(); err != nil {
		return err
	}

	pre := vm.preimage().captureWithdrawVault(addr)
	if err := vm.ledger.Deposit(addr, amount); err != nil {
		return err
	}
	return vm.commit(pre, func() error {
		return vm.state.PutWithdraw(addr, vm.ledger.WithdrawBalance(addr))
	})
}

// Withdraw removes funds from the account's general withdraw vault.
func (vm *VM) Withdraw(addr ids.ShortID, amount *big.Int) error {
	vm.lock.Lock()
	defer vm.lock.Unlock()
	if err := vm.ready(); err != nil {
		return err
	}

	pre := vm.preimage().captureWithdrawVault(addr)
	if err := vm.ledger.Withdraw(addr, amount); err != nil {
		return err
	}
	return vm.commit(pre, func() error {
		return vm.state.PutWithdraw(addr, vm.ledger.WithdrawBalance(addr))
	})
}

// DepositIncentive funds the collection's incentive vault.
func (vm *VM) DepositIncentive(coll ids.ID, amount *big.Int) error {
	vm.lock.Lock()
	defer vm.lock.Unlock()
	if err := vm.ready(); err != nil {
		return err
	}

	pre := vm.preimage().captureCollection(coll)
	if err := vm.ledger.UpdateIncentiveVault(coll, amount, true); err != nil {
		return err
	}
	return vm.commit(pre, func() error { return vm.persistCollection(coll) })
}

// DepositGlobalIncentive funds the marketplace-wide incentive vault.
func (vm *VM) DepositGlobalIncentive(amount *big.Int) error {
	vm.lock.Lock()
	defer vm.lock.Unlock()
	if err := vm.ready(); err != nil {
		return err
	}

	pre := vm.preimage().captureGlobalIncentive()
	if err := vm.ledger.UpdateGlobalIncentiveVault(amount, true); err != nil {
		return err
	}
	return vm.commit(pre, func() error {
		return vm.state.PutGlobalIncentive(vm.ledger.GlobalIncentiveVault())
	})
}

// WithdrawIncentive removes funds from the collection's incentive vault on
// behalf of its owner. Unlike the sale path, which caps payouts to the
// vault balance, an explicit withdrawal beyond the balance is an error.
func (vm *VM) WithdrawIncentive(coll ids.ID, requester ids.ShortID, amount *big.Int) error {
	vm.lock.Lock()
	defer vm.lock.Unlock()
	if err := vm.ready(); err != nil {
		return err
	}

	policy, err := vm.registry.GetCollectionPolicy(coll)
	if err != nil {
		return err
	}
	if requester != policy.Owner {
		return ErrNotCollectionOwner
	}
	if !policy.OwnerIncentiveAccess {
		return ErrNoWithdrawAccess
	}
	pre := vm.preimage().captureCollection(coll)
	if err := vm.ledger.UpdateIncentiveVault(coll, amount, false); err != nil {
		return err
	}
	return vm.commit(pre, func() error { return vm.persistCollection(coll) })
}

// DistributeEven splits amount evenly across every reflection slot of the
// collection.
func (vm *VM) DistributeEven(coll ids.ID, amount *big.Int) error {
	vm.lock.Lock()
	defer vm.lock.Unlock()
	if err := vm.ready(); err != nil {
		return err
	}

	pre := vm.preimage().captureCollection(coll)
	if err := vm.distributor.DistributeEven(coll, amount); err != nil {
		return err
	}
	return vm.commit(pre, func() error { return vm.persistCollection(coll) })
}

// DistributeToList splits amount across exactly the listed token ids.
func (vm *VM) DistributeToList(coll ids.ID, tokenIDs []uint64, amount *big.Int) error {
	vm.lock.Lock()
	defer vm.lock.Unlock()
	if err := vm.ready(); err != nil {
		return err
	}

	pre := vm.preimage().captureCollection(coll)
	if err := vm.distributor.DistributeToList(coll, tokenIDs, amount); err != nil {
		return err
	}
	return vm.commit(pre, func() error { return vm.persistCollection(coll) })
}

// ChargeListingFee credits the listing fee for a list price to the
// marketplace operator and returns the fee charged.
func (vm *VM) ChargeListingFee(price *big.Int) (*big.Int, error) {
	vm.lock.Lock()
	defer vm.lock.Unlock()
	if err := vm.ready(); err != nil {
		return nil, err
	}

	pre := vm.preimage().captureAccounts(vm.cfg.Operator)
	fee, err := vm.engine.ChargeListingFee(price)
	if err != nil {
		return nil, err
	}
	if err := vm.commit(pre, func() error { return vm.persistAccounts(vm.cfg.Operator) }); err != nil {
		return nil, err
	}
	return fee, nil
}

// NullifyAccount zeroes every claimable balance of the account.
func (vm *VM) NullifyAccount(addr ids.ShortID) error {
	vm.lock.Lock()
	defer vm.lock.Unlock()
	if err := vm.ready(); err != nil {
		return err
	}

	pre := vm.preimage().captureAccounts(addr)
	vm.ledger.NullifyAccount(addr)
	return vm.commit(pre, func() error { return vm.persistAccounts(addr) })
}

// RemoveAccount erases the account record entirely.
func (vm *VM) RemoveAccount(addr ids.ShortID) error {
	vm.lock.Lock()
	defer vm.lock.Unlock()
	if err := vm.ready(); err != nil {
		return err
	}

	pre := vm.preimage().captureAccounts(addr)
	vm.ledger.RemoveAccount(addr)
	return vm.commit(pre, func() error { return vm.state.DeleteAccount(addr) })
}

// NullifyCollection zeroes the collection's vaults, preserving its supply.
func (vm *VM) NullifyCollection(coll ids.ID) error {
	vm.lock.Lock()
	defer vm.lock.Unlock()
	if err := vm.ready(); err != nil {
		return err
	}

	pre := vm.preimage().captureCollection(coll)
	vm.ledger.NullifyCollection(coll)
	return vm.commit(pre, func() error { return vm.persistCollection(coll) })
}

// RemoveCollection erases the collection record entirely.
func (vm *VM) RemoveCollection(coll ids.ID) error {
	vm.lock.Lock()
	defer vm.lock.Unlock()
	if err := vm.ready(); err != nil {
		return err
	}

	pre := vm.preimage().captureCollection(coll)
	vm.ledger.RemoveCollection(coll)
	return vm.commit(pre, func() error { return vm.state.DeleteCollection(coll) })
}

// IsBootstrapped reports whether the VM is ready to serve.
func (vm *VM) IsBootstrapped() bool {
	vm.lock.RLock()
	defer vm.lock.RUnlock()
	return vm.bootstrapped
}

// AccountOf returns a snapshot of the account's claimable balances.
func (vm *VM) AccountOf(addr ids.ShortID) ledger.Account {
	vm.lock.RLock()
	defer vm.lock.RUnlock()
	return vm.ledger.AccountOf(addr)
}

// BalancesOf returns snapshots for a list of account keys, in order.
func (vm *VM) BalancesOf(addrs []ids.ShortID) []ledger.Account {
	vm.lock.RLock()
	defer vm.lock.RUnlock()
	return vm.ledger.BalancesOf(addrs)
}

// CollectionOf returns a snapshot of the collection's vaults.
func (vm *VM) CollectionOf(coll ids.ID) (ledger.CollectionAccount, bool) {
	vm.lock.RLock()
	defer vm.lock.RUnlock()
	return vm.ledger.CollectionOf(coll)
}

// WithdrawBalance returns the account's general withdraw vault balance.
func (vm *VM) WithdrawBalance(addr ids.ShortID) *big.Int {
	vm.lock.RLock()
	defer vm.lock.RUnlock()
	return vm.ledger.WithdrawBalance(addr)
}

// GlobalIncentiveVault returns the marketplace-wide incentive vault
// balance.
func (vm *VM) GlobalIncentiveVault() *big.Int {
	vm.lock.RLock()
	defer vm.lock.RUnlock()
	return vm.ledger.GlobalIncentiveVault()
}

// TotalHeldFunds returns the sum of every balance the ledger tracks.
func (vm *VM) TotalHeldFunds() *big.Int {
	vm.lock.RLock()
	defer vm.lock.RUnlock()
	return vm.ledger.TotalHeldFunds()
}

// CreateHandlers returns the HTTP handlers serving the marketplace API.
func (vm *VM) CreateHandlers(ctx context.Context) (map[string]http.Handler, error) {
	server := rpc.NewServer()
	server.RegisterCodec(luxjson.NewCodec(), "application/json")
	server.RegisterCodec(luxjson.NewCodec(), "application/json;charset=UTF-8")

	service := api.NewService(vm)
	if err := server.RegisterService(service, "market"); err != nil {
		return nil, fmt.Errorf("failed to register market service: %w", err)
	}

	return map[string]http.Handler{
		"": server,
	}, nil
}

// HealthCheck reports liveness and the total funds currently held.
func (vm *VM) HealthCheck(ctx context.Context) (interface{}, error) {
	vm.lock.RLock()
	defer vm.lock.RUnlock()
	if err := vm.ready(); err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"healthy":        true,
		"totalHeldFunds": vm.ledger.TotalHeldFunds().String(),
		"uptime":         time.Since(vm.startTime).String(),
	}, nil
}

// Shutdown releases the database and stops serving.
func (vm *VM) Shutdown(ctx context.Context) error {
	vm.lock.Lock()
	defer vm.lock.Unlock()
	if vm.shutdown || !vm.initialized {
		return nil
	}

	vm.log.Info("shutting down marketplace VM")
	vm.shutdown = true
	vm.bootstrapped = false

	errs := []error{
		vm.db.Close(),
		vm.baseDB.Close(),
	}
	return errors.Join(errs...)
}
