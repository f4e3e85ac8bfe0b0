// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package api

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/ids"
	luxjson "github.com/luxfi/utils/json"

	"github.com/luxfi/marketvm/ledger"
	"github.com/luxfi/marketvm/registry"
	"github.com/luxfi/marketvm/settlement"
)

type fakeVM struct {
	bootstrapped bool

	accounts    map[ids.ShortID]ledger.Account
	collections map[ids.ID]ledger.CollectionAccount
	withdraw    map[ids.ShortID]*big.Int
	global      *big.Int

	lastClaim      ids.ShortID
	lastField      ledger.Balance
	lastTokenIDs   []uint64
	registered     []ids.ID
	incentives     map[ids.ID]*big.Int
	lastDistribute *big.Int
}

func newFakeVM() *fakeVM {
	return &fakeVM{
		bootstrapped: true,
		accounts:     make(map[ids.ShortID]ledger.Account),
		collections:  make(map[ids.ID]ledger.CollectionAccount),
		withdraw:     make(map[ids.ShortID]*big.Int),
		incentives:   make(map[ids.ID]*big.Int),
		global:       new(big.Int),
	}
}

func (f *fakeVM) IsBootstrapped() bool { return f.bootstrapped }

func (f *fakeVM) AccountOf(addr ids.ShortID) ledger.Account {
	if acc, ok := f.accounts[addr]; ok {
		return acc
	}
	return ledger.Account{
		General:              new(big.Int),
		CreatorCommission:    new(big.Int),
		CollectionCommission: new(big.Int),
	}
}

func (f *fakeVM) CollectionOf(coll ids.ID) (ledger.CollectionAccount, bool) {
	ca, ok := f.collections[coll]
	return ca, ok
}

func (f *fakeVM) WithdrawBalance(addr ids.ShortID) *big.Int {
	if v, ok := f.withdraw[addr]; ok {
		return v
	}
	return new(big.Int)
}

func (f *fakeVM) GlobalIncentiveVault() *big.Int { return f.global }
func (f *fakeVM) TotalHeldFunds() *big.Int       { return big.NewInt(42) }

func (f *fakeVM) SettleItem(ids.ID) (settlement.Plan, error) {
	return settlement.Plan{
		OperatorCut:              big.NewInt(2),
		CreatorCut:               new(big.Int),
		ReflectionCut:            new(big.Int),
		CollectionCommissionCut:  new(big.Int),
		CollectionIncentiveWant:  new(big.Int),
		CollectionIncentivePaid:  new(big.Int),
		MarketplaceIncentiveWant: new(big.Int),
		MarketplaceIncentivePaid: new(big.Int),
		Net:                      big.NewInt(98),
	}, nil
}

func (f *fakeVM) Claim(addr ids.ShortID, field ledger.Balance) (*big.Int, error) {
	f.lastClaim = addr
	f.lastField = field
	return big.NewInt(11), nil
}

func (f *fakeVM) ClaimReflection(coll ids.ID, tokenID uint64) (*big.Int, error) {
	if ca, ok := f.collections[coll]; !ok || tokenID == 0 || tokenID > ca.Supply {
		return nil, ledger.ErrInvalidTokenID
	}
	return big.NewInt(5), nil
}

func (f *fakeVM) ClaimReflectionBatch(_ ids.ID, tokenIDs []uint64) (*big.Int, error) {
	f.lastTokenIDs = tokenIDs
	return big.NewInt(15), nil
}

func (f *fakeVM) Deposit(addr ids.ShortID, amount *big.Int) error {
	f.withdraw[addr] = amount
	return nil
}

func (f *fakeVM) Withdraw(ids.ShortID, *big.Int) error { return nil }

func (f *fakeVM) WithdrawIncentive(ids.ID, ids.ShortID, *big.Int) error { return nil }

func (f *fakeVM) BalancesOf(addrs []ids.ShortID) []ledger.Account {
	out := make([]ledger.Account, len(addrs))
	for i, addr := range addrs {
		out[i] = f.AccountOf(addr)
	}
	return out
}

func (f *fakeVM) RegisterCollection(coll ids.ID) error {
	f.registered = append(f.registered, coll)
	return nil
}

func (f *fakeVM) DepositIncentive(coll ids.ID, amount *big.Int) error {
	f.incentives[coll] = amount
	return nil
}

func (f *fakeVM) DepositGlobalIncentive(amount *big.Int) error {
	f.global = amount
	return nil
}

func (f *fakeVM) DistributeEven(_ ids.ID, amount *big.Int) error {
	f.lastDistribute = amount
	return nil
}

func (f *fakeVM) DistributeToList(_ ids.ID, tokenIDs []uint64, amount *big.Int) error {
	f.lastTokenIDs = tokenIDs
	f.lastDistribute = amount
	return nil
}

func (f *fakeVM) ChargeListingFee(price *big.Int) (*big.Int, error) {
	fee := new(big.Int).Div(price, big.NewInt(100))
	return fee, nil
}

func TestServiceNotReady(t *testing.T) {
	require := require.New(t)

	vm := newFakeVM()
	vm.bootstrapped = false
	s := NewService(vm)

	err := s.GetAccount(nil, &GetAccountArgs{}, &GetAccountReply{})
	require.ErrorIs(err, errNotReady)
	err = s.Deposit(nil, &DepositArgs{Amount: "1"}, &SuccessReply{})
	require.ErrorIs(err, errNotReady)
}

func TestGetAccount(t *testing.T) {
	require := require.New(t)

	vm := newFakeVM()
	addr := ids.GenerateTestShortID()
	vm.accounts[addr] = ledger.Account{
		General:              big.NewInt(100),
		CreatorCommission:    big.NewInt(20),
		CollectionCommission: big.NewInt(3),
	}
	vm.withdraw[addr] = big.NewInt(7)

	s := NewService(vm)
	reply := GetAccountReply{}
	require.NoError(s.GetAccount(nil, &GetAccountArgs{Address: addr}, &reply))
	require.Equal("100", reply.General)
	require.Equal("20", reply.CreatorCommission)
	require.Equal("3", reply.CollectionCommission)
	require.Equal("7", reply.WithdrawVault)
}

func TestGetCollection(t *testing.T) {
	require := require.New(t)

	vm := newFakeVM()
	coll := ids.GenerateTestID()
	vm.collections[coll] = ledger.CollectionAccount{
		IncentiveVault: big.NewInt(50),
		Supply:         3,
		Reflection:     []*big.Int{big.NewInt(1), big.NewInt(2), big.NewInt(3)},
	}

	s := NewService(vm)
	reply := GetCollectionReply{}
	require.NoError(s.GetCollection(nil, &GetCollectionArgs{Collection: coll}, &reply))
	require.Equal(luxjson.Uint64(3), reply.Supply)
	require.Equal("50", reply.IncentiveVault)
	require.Equal("6", reply.ReflectionTotal)
	require.Equal([]string{"1", "2", "3"}, reply.Reflection)

	err := s.GetCollection(nil, &GetCollectionArgs{Collection: ids.GenerateTestID()}, &reply)
	require.ErrorIs(err, registry.ErrCollectionNotFound)
}

func TestGetReflection(t *testing.T) {
	require := require.New(t)

	vm := newFakeVM()
	coll := ids.GenerateTestID()
	vm.collections[coll] = ledger.CollectionAccount{
		IncentiveVault: new(big.Int),
		Supply:         2,
		Reflection:     []*big.Int{big.NewInt(9), big.NewInt(8)},
	}

	s := NewService(vm)
	reply := AmountReply{}
	require.NoError(s.GetReflection(nil, &GetReflectionArgs{Collection: coll, TokenID: 2}, &reply))
	require.Equal("8", reply.Amount)

	err := s.GetReflection(nil, &GetReflectionArgs{Collection: coll, TokenID: 3}, &reply)
	require.ErrorIs(err, ledger.ErrInvalidTokenID)
}

func TestSettleItem(t *testing.T) {
	require := require.New(t)

	s := NewService(newFakeVM())
	reply := SettleItemReply{}
	require.NoError(s.SettleItem(nil, &SettleItemArgs{ItemID: ids.GenerateTestID()}, &reply))
	require.Equal("2", reply.OperatorCut)
	require.Equal("98", reply.Net)
}

func TestClaimBalanceSelector(t *testing.T) {
	require := require.New(t)

	vm := newFakeVM()
	s := NewService(vm)
	addr := ids.GenerateTestShortID()

	reply := AmountReply{}
	require.NoError(s.Claim(nil, &ClaimArgs{Address: addr, Balance: "creatorCommission"}, &reply))
	require.Equal("11", reply.Amount)
	require.Equal(addr, vm.lastClaim)
	require.Equal(ledger.CreatorCommission, vm.lastField)

	// Empty selector defaults to the general balance.
	require.NoError(s.Claim(nil, &ClaimArgs{Address: addr}, &reply))
	require.Equal(ledger.General, vm.lastField)

	err := s.Claim(nil, &ClaimArgs{Address: addr, Balance: "bogus"}, &reply)
	require.ErrorContains(err, "unknown balance")
}

func TestClaimReflectionBatchConversion(t *testing.T) {
	require := require.New(t)

	vm := newFakeVM()
	s := NewService(vm)

	reply := AmountReply{}
	args := ClaimReflectionBatchArgs{
		Collection: ids.GenerateTestID(),
		TokenIDs:   []luxjson.Uint64{1, 2, 3},
	}
	require.NoError(s.ClaimReflectionBatch(nil, &args, &reply))
	require.Equal("15", reply.Amount)
	require.Equal([]uint64{1, 2, 3}, vm.lastTokenIDs)
}

func TestGetBalances(t *testing.T) {
	require := require.New(t)

	vm := newFakeVM()
	addr1 := ids.GenerateTestShortID()
	addr2 := ids.GenerateTestShortID()
	vm.accounts[addr1] = ledger.Account{
		General:              big.NewInt(10),
		CreatorCommission:    big.NewInt(20),
		CollectionCommission: big.NewInt(30),
	}

	s := NewService(vm)
	reply := GetBalancesReply{}
	args := GetBalancesArgs{Addresses: []ids.ShortID{addr1, addr2}}
	require.NoError(s.GetBalances(nil, &args, &reply))
	require.Len(reply.Balances, 2)
	require.Equal(addr1, reply.Balances[0].Address)
	require.Equal("10", reply.Balances[0].General)
	require.Equal("20", reply.Balances[0].CreatorCommission)
	require.Equal("30", reply.Balances[0].CollectionCommission)
	require.Equal("0", reply.Balances[1].General)
}

func TestRegisterCollection(t *testing.T) {
	require := require.New(t)

	vm := newFakeVM()
	s := NewService(vm)
	coll := ids.GenerateTestID()

	reply := SuccessReply{}
	require.NoError(s.RegisterCollection(nil, &RegisterCollectionArgs{Collection: coll}, &reply))
	require.True(reply.Success)
	require.Equal([]ids.ID{coll}, vm.registered)
}

func TestIncentiveDeposits(t *testing.T) {
	require := require.New(t)

	vm := newFakeVM()
	s := NewService(vm)
	coll := ids.GenerateTestID()

	reply := SuccessReply{}
	args := CollectionAmountArgs{Collection: coll, Amount: "250"}
	require.NoError(s.DepositIncentive(nil, &args, &reply))
	require.Equal("250", vm.incentives[coll].String())

	err := s.DepositIncentive(nil, &CollectionAmountArgs{Collection: coll, Amount: "x"}, &reply)
	require.ErrorIs(err, errInvalidAmount)

	require.NoError(s.DepositGlobalIncentive(nil, &GlobalAmountArgs{Amount: "9000"}, &reply))
	require.Equal("9000", vm.global.String())
}

func TestDistributeEndpoints(t *testing.T) {
	require := require.New(t)

	vm := newFakeVM()
	s := NewService(vm)
	coll := ids.GenerateTestID()

	reply := SuccessReply{}
	require.NoError(s.DistributeEven(nil, &CollectionAmountArgs{Collection: coll, Amount: "100"}, &reply))
	require.Equal("100", vm.lastDistribute.String())

	args := DistributeToListArgs{
		Collection: coll,
		TokenIDs:   []luxjson.Uint64{2, 4},
		Amount:     "60",
	}
	require.NoError(s.DistributeToList(nil, &args, &reply))
	require.Equal([]uint64{2, 4}, vm.lastTokenIDs)
	require.Equal("60", vm.lastDistribute.String())
}

func TestChargeListingFee(t *testing.T) {
	require := require.New(t)

	s := NewService(newFakeVM())
	reply := AmountReply{}
	require.NoError(s.ChargeListingFee(nil, &ChargeListingFeeArgs{Price: "10000"}, &reply))
	require.Equal("100", reply.Amount)

	err := s.ChargeListingFee(nil, &ChargeListingFeeArgs{Price: "ten"}, &reply)
	require.ErrorIs(err, errInvalidAmount)
}

func TestDepositAmountParsing(t *testing.T) {
	require := require.New(t)

	vm := newFakeVM()
	s := NewService(vm)
	addr := ids.GenerateTestShortID()

	reply := SuccessReply{}
	err := s.Deposit(nil, &DepositArgs{Address: addr, Amount: "not-a-number"}, &reply)
	require.ErrorIs(err, errInvalidAmount)

	require.NoError(s.Deposit(nil, &DepositArgs{Address: addr, Amount: "5000000000000000000"}, &reply))
	require.True(reply.Success)
	require.Equal("5000000000000000000", vm.withdraw[addr].String())
}
