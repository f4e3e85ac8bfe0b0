// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package api exposes the marketplace settlement operations over JSON-RPC.
package api

import (
	"errors"
	"fmt"
	"math/big"
	"net/http"

	"github.com/luxfi/ids"
	luxjson "github.com/luxfi/utils/json"

	"github.com/luxfi/marketvm/ledger"
	"github.com/luxfi/marketvm/registry"
	"github.com/luxfi/marketvm/settlement"
)

var (
	errNotReady      = errors.New("vm is not ready")
	errInvalidAmount = errors.New("invalid amount")
)

// VM is the subset of the marketplace VM the RPC service depends on.
type VM interface {
	IsBootstrapped() bool

	AccountOf(addr ids.ShortID) ledger.Account
	BalancesOf(addrs []ids.ShortID) []ledger.Account
	CollectionOf(coll ids.ID) (ledger.CollectionAccount, bool)
	WithdrawBalance(addr ids.ShortID) *big.Int
	GlobalIncentiveVault() *big.Int
	TotalHeldFunds() *big.Int

	RegisterCollection(coll ids.ID) error
	SettleItem(itemID ids.ID) (settlement.Plan, error)
	Claim(addr ids.ShortID, field ledger.Balance) (*big.Int, error)
	ClaimReflection(coll ids.ID, tokenID uint64) (*big.Int, error)
	ClaimReflectionBatch(coll ids.ID, tokenIDs []uint64) (*big.Int, error)
	Deposit(addr ids.ShortID, amount *big.Int) error
	Withdraw(addr ids.ShortID, amount *big.Int) error
	DepositIncentive(coll ids.ID, amount *big.Int) error
	DepositGlobalIncentive(amount *big.Int) error
	WithdrawIncentive(coll ids.ID, requester ids.ShortID, amount *big.Int) error
	DistributeEven(coll ids.ID, amount *big.Int) error
	DistributeToList(coll ids.ID, tokenIDs []uint64, amount *big.Int) error
	ChargeListingFee(price *big.Int) (*big.Int, error)
}

// Service is the marketplace JSON-RPC service.
type Service struct {
	vm VM
}

// NewService returns the RPC service backed by vm.
func NewService(vm VM) *Service {
	return &Service{vm: vm}
}

func (s *Service) ready() error {
	if !s.vm.IsBootstrapped() {
		return errNotReady
	}
	return nil
}

func parseAmount(s string) (*big.Int, error) {
	amount, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("%w: %q", errInvalidAmount, s)
	}
	return amount, nil
}

type GetAccountArgs struct {
	Address ids.ShortID `json:"address"`
}

type GetAccountReply struct {
	General              string `json:"general"`
	CreatorCommission    string `json:"creatorCommission"`
	CollectionCommission string `json:"collectionCommission"`
	WithdrawVault        string `json:"withdrawVault"`
}

// GetAccount returns every balance held for an address.
func (s *Service) GetAccount(_ *http.Request, args *GetAccountArgs, reply *GetAccountReply) error {
	if err := s.ready(); err != nil {
		return err
	}

	account := s.vm.AccountOf(args.Address)
	reply.General = account.General.String()
	reply.CreatorCommission = account.CreatorCommission.String()
	reply.CollectionCommission = account.CollectionCommission.String()
	reply.WithdrawVault = s.vm.WithdrawBalance(args.Address).String()
	return nil
}

type GetBalancesArgs struct {
	Addresses []ids.ShortID `json:"addresses"`
}

type BalanceEntry struct {
	Address              ids.ShortID `json:"address"`
	General              string      `json:"general"`
	CreatorCommission    string      `json:"creatorCommission"`
	CollectionCommission string      `json:"collectionCommission"`
}

type GetBalancesReply struct {
	Balances []BalanceEntry `json:"balances"`
}

// GetBalances returns the claimable balances for a list of addresses, in
// request order. Never-written addresses report all-zero balances.
func (s *Service) GetBalances(_ *http.Request, args *GetBalancesArgs, reply *GetBalancesReply) error {
	if err := s.ready(); err != nil {
		return err
	}

	accounts := s.vm.BalancesOf(args.Addresses)
	reply.Balances = make([]BalanceEntry, len(accounts))
	for i, account := range accounts {
		reply.Balances[i] = BalanceEntry{
			Address:              args.Addresses[i],
			General:              account.General.String(),
			CreatorCommission:    account.CreatorCommission.String(),
			CollectionCommission: account.CollectionCommission.String(),
		}
	}
	return nil
}

type GetCollectionArgs struct {
	Collection ids.ID `json:"collection"`
}

type GetCollectionReply struct {
	Supply          luxjson.Uint64 `json:"supply"`
	IncentiveVault  string         `json:"incentiveVault"`
	ReflectionTotal string         `json:"reflectionTotal"`
	Reflection      []string       `json:"reflection"` // slot for token id i at index i-1
}

// GetCollection returns the collection's supply, vault totals, and every
// reflection slot.
func (s *Service) GetCollection(_ *http.Request, args *GetCollectionArgs, reply *GetCollectionReply) error {
	if err := s.ready(); err != nil {
		return err
	}

	ca, ok := s.vm.CollectionOf(args.Collection)
	if !ok {
		return fmt.Errorf("%w: %s", registry.ErrCollectionNotFound, args.Collection)
	}

	total := new(big.Int)
	reply.Reflection = make([]string, len(ca.Reflection))
	for i, slot := range ca.Reflection {
		total.Add(total, slot)
		reply.Reflection[i] = slot.String()
	}
	reply.Supply = luxjson.Uint64(ca.Supply)
	reply.IncentiveVault = ca.IncentiveVault.String()
	reply.ReflectionTotal = total.String()
	return nil
}

type GetReflectionArgs struct {
	Collection ids.ID         `json:"collection"`
	TokenID    luxjson.Uint64 `json:"tokenID"`
}

type AmountReply struct {
	Amount string `json:"amount"`
}

// GetReflection returns the unclaimed reflection balance of one token.
func (s *Service) GetReflection(_ *http.Request, args *GetReflectionArgs, reply *AmountReply) error {
	if err := s.ready(); err != nil {
		return err
	}

	ca, ok := s.vm.CollectionOf(args.Collection)
	if !ok {
		return fmt.Errorf("%w: %s", registry.ErrCollectionNotFound, args.Collection)
	}
	tokenID := uint64(args.TokenID)
	if tokenID == 0 || tokenID > ca.Supply {
		return ledger.ErrInvalidTokenID
	}
	reply.Amount = ca.Reflection[tokenID-1].String()
	return nil
}

type GetTotalHeldFundsReply struct {
	Total           string `json:"total"`
	GlobalIncentive string `json:"globalIncentive"`
}

// GetTotalHeldFunds returns the sum of every tracked balance.
func (s *Service) GetTotalHeldFunds(_ *http.Request, _ *struct{}, reply *GetTotalHeldFundsReply) error {
	if err := s.ready(); err != nil {
		return err
	}

	reply.Total = s.vm.TotalHeldFunds().String()
	reply.GlobalIncentive = s.vm.GlobalIncentiveVault().String()
	return nil
}

type SettleItemArgs struct {
	ItemID ids.ID `json:"itemID"`
}

type SettleItemReply struct {
	OperatorCut             string `json:"operatorCut"`
	CreatorCut              string `json:"creatorCut"`
	ReflectionCut           string `json:"reflectionCut"`
	CollectionCommissionCut string `json:"collectionCommissionCut"`
	CollectionIncentivePaid string `json:"collectionIncentivePaid"`
	MarketplaceIncentive    string `json:"marketplaceIncentivePaid"`
	Net                     string `json:"net"`
}

// SettleItem settles the completed sale of an item and returns the payout
// breakdown.
func (s *Service) SettleItem(_ *http.Request, args *SettleItemArgs, reply *SettleItemReply) error {
	if err := s.ready(); err != nil {
		return err
	}

	plan, err := s.vm.SettleItem(args.ItemID)
	if err != nil {
		return err
	}
	reply.OperatorCut = plan.OperatorCut.String()
	reply.CreatorCut = plan.CreatorCut.String()
	reply.ReflectionCut = plan.ReflectionCut.String()
	reply.CollectionCommissionCut = plan.CollectionCommissionCut.String()
	reply.CollectionIncentivePaid = plan.CollectionIncentivePaid.String()
	reply.MarketplaceIncentive = plan.MarketplaceIncentivePaid.String()
	reply.Net = plan.Net.String()
	return nil
}

type ClaimArgs struct {
	Address ids.ShortID `json:"address"`
	Balance string      `json:"balance"`
}

// Claim empties one claimable balance of the address and returns the
// amount paid out. Balance is one of "general", "creatorCommission" or
// "collectionCommission"; it defaults to "general".
func (s *Service) Claim(_ *http.Request, args *ClaimArgs, reply *AmountReply) error {
	if err := s.ready(); err != nil {
		return err
	}

	var field ledger.Balance
	switch args.Balance {
	case "", "general":
		field = ledger.General
	case "creatorCommission":
		field = ledger.CreatorCommission
	case "collectionCommission":
		field = ledger.CollectionCommission
	default:
		return fmt.Errorf("unknown balance %q", args.Balance)
	}

	amount, err := s.vm.Claim(args.Address, field)
	if err != nil {
		return err
	}
	reply.Amount = amount.String()
	return nil
}

type ClaimReflectionArgs struct {
	Collection ids.ID         `json:"collection"`
	TokenID    luxjson.Uint64 `json:"tokenID"`
}

// ClaimReflection empties the reflection slot of one token.
func (s *Service) ClaimReflection(_ *http.Request, args *ClaimReflectionArgs, reply *AmountReply) error {
	if err := s.ready(); err != nil {
		return err
	}

	amount, err := s.vm.ClaimReflection(args.Collection, uint64(args.TokenID))
	if err != nil {
		return err
	}
	reply.Amount = amount.String()
	return nil
}

type ClaimReflectionBatchArgs struct {
	Collection ids.ID           `json:"collection"`
	TokenIDs   []luxjson.Uint64 `json:"tokenIDs"`
}

// ClaimReflectionBatch empties the reflection slots of the listed tokens
// and returns the total paid out.
func (s *Service) ClaimReflectionBatch(_ *http.Request, args *ClaimReflectionBatchArgs, reply *AmountReply) error {
	if err := s.ready(); err != nil {
		return err
	}

	tokenIDs := make([]uint64, len(args.TokenIDs))
	for i, id := range args.TokenIDs {
		tokenIDs[i] = uint64(id)
	}
	amount, err := s.vm.ClaimReflectionBatch(args.Collection, tokenIDs)
	if err != nil {
		return err
	}
	reply.Amount = amount.String()
	return nil
}

type DepositArgs struct {
	Address ids.ShortID `json:"address"`
	Amount  string      `json:"amount"`
}

type SuccessReply struct {
	Success bool `json:"success"`
}

// Deposit adds funds to the address's withdraw vault.
func (s *Service) Deposit(_ *http.Request, args *DepositArgs, reply *SuccessReply) error {
	if err := s.ready(); err != nil {
		return err
	}

	amount, err := parseAmount(args.Amount)
	if err != nil {
		return err
	}
	if err := s.vm.Deposit(args.Address, amount); err != nil {
		return err
	}
	reply.Success = true
	return nil
}

// Withdraw removes funds from the address's withdraw vault.
func (s *Service) Withdraw(_ *http.Request, args *DepositArgs, reply *SuccessReply) error {
	if err := s.ready(); err != nil {
		return err
	}

	amount, err := parseAmount(args.Amount)
	if err != nil {
		return err
	}
	if err := s.vm.Withdraw(args.Address, amount); err != nil {
		return err
	}
	reply.Success = true
	return nil
}

type WithdrawIncentiveArgs struct {
	Collection ids.ID      `json:"collection"`
	Requester  ids.ShortID `json:"requester"`
	Amount     string      `json:"amount"`
}

// WithdrawIncentive removes funds from the collection's incentive vault on
// behalf of its owner.
func (s *Service) WithdrawIncentive(_ *http.Request, args *WithdrawIncentiveArgs, reply *SuccessReply) error {
	if err := s.ready(); err != nil {
		return err
	}

	amount, err := parseAmount(args.Amount)
	if err != nil {
		return err
	}
	if err := s.vm.WithdrawIncentive(args.Collection, args.Requester, amount); err != nil {
		return err
	}
	reply.Success = true
	return nil
}

type RegisterCollectionArgs struct {
	Collection ids.ID `json:"collection"`
}

// RegisterCollection initializes the collection's reflection vault from its
// registered supply.
func (s *Service) RegisterCollection(_ *http.Request, args *RegisterCollectionArgs, reply *SuccessReply) error {
	if err := s.ready(); err != nil {
		return err
	}

	if err := s.vm.RegisterCollection(args.Collection); err != nil {
		return err
	}
	reply.Success = true
	return nil
}

type CollectionAmountArgs struct {
	Collection ids.ID `json:"collection"`
	Amount     string `json:"amount"`
}

// DepositIncentive funds the collection's incentive vault.
func (s *Service) DepositIncentive(_ *http.Request, args *CollectionAmountArgs, reply *SuccessReply) error {
	if err := s.ready(); err != nil {
		return err
	}

	amount, err := parseAmount(args.Amount)
	if err != nil {
		return err
	}
	if err := s.vm.DepositIncentive(args.Collection, amount); err != nil {
		return err
	}
	reply.Success = true
	return nil
}

type GlobalAmountArgs struct {
	Amount string `json:"amount"`
}

// DepositGlobalIncentive funds the marketplace-wide incentive vault.
func (s *Service) DepositGlobalIncentive(_ *http.Request, args *GlobalAmountArgs, reply *SuccessReply) error {
	if err := s.ready(); err != nil {
		return err
	}

	amount, err := parseAmount(args.Amount)
	if err != nil {
		return err
	}
	if err := s.vm.DepositGlobalIncentive(amount); err != nil {
		return err
	}
	reply.Success = true
	return nil
}

// DistributeEven splits amount evenly across every reflection slot of the
// collection.
func (s *Service) DistributeEven(_ *http.Request, args *CollectionAmountArgs, reply *SuccessReply) error {
	if err := s.ready(); err != nil {
		return err
	}

	amount, err := parseAmount(args.Amount)
	if err != nil {
		return err
	}
	if err := s.vm.DistributeEven(args.Collection, amount); err != nil {
		return err
	}
	reply.Success = true
	return nil
}

type DistributeToListArgs struct {
	Collection ids.ID           `json:"collection"`
	TokenIDs   []luxjson.Uint64 `json:"tokenIDs"`
	Amount     string           `json:"amount"`
}

// DistributeToList splits amount across exactly the listed token ids.
func (s *Service) DistributeToList(_ *http.Request, args *DistributeToListArgs, reply *SuccessReply) error {
	if err := s.ready(); err != nil {
		return err
	}

	amount, err := parseAmount(args.Amount)
	if err != nil {
		return err
	}
	tokenIDs := make([]uint64, len(args.TokenIDs))
	for i, id := range args.TokenIDs {
		tokenIDs[i] = uint64(id)
	}
	if err := s.vm.DistributeToList(args.Collection, tokenIDs, amount); err != nil {
		return err
	}
	reply.Success = true
	return nil
}

type ChargeListingFeeArgs struct {
	Price string `json:"price"`
}

// ChargeListingFee credits the listing fee for a list price to the
// marketplace operator and returns the fee charged.
func (s *Service) ChargeListingFee(_ *http.Request, args *ChargeListingFeeArgs, reply *AmountReply) error {
	if err := s.ready(); err != nil {
		return err
	}

	price, err := parseAmount(args.Price)
	if err != nil {
		return err
	}
	fee, err := s.vm.ChargeListingFee(price)
	if err != nil {
		return err
	}
	reply.Amount = fee.String()
	return nil
}
