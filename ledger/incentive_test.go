// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ledger

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/ids"
)

func TestUpdateIncentiveVault(t *testing.T) {
	require := require.New(t)

	l := New()
	coll := ids.GenerateTestID()

	require.NoError(l.UpdateIncentiveVault(coll, big.NewInt(100), true))
	require.Equal(int64(100), l.IncentiveVaultOf(coll).Int64())

	require.NoError(l.UpdateIncentiveVault(coll, big.NewInt(30), false))
	require.Equal(int64(70), l.IncentiveVaultOf(coll).Int64())

	err := l.UpdateIncentiveVault(coll, big.NewInt(71), false)
	require.ErrorIs(err, ErrInsufficientVault)
	require.Equal(int64(70), l.IncentiveVaultOf(coll).Int64())

	err = l.UpdateIncentiveVault(coll, big.NewInt(-1), true)
	require.ErrorIs(err, ErrNegativeAmount)
}

func TestIncentiveVaultWithoutReflection(t *testing.T) {
	require := require.New(t)

	// An incentive vault can exist before the reflection vault is set up.
	l := New()
	coll := ids.GenerateTestID()

	require.NoError(l.UpdateIncentiveVault(coll, big.NewInt(10), true))
	require.Zero(l.SupplyOf(coll))
	require.Equal(int64(10), l.IncentiveVaultOf(coll).Int64())
}

func TestPayIncentiveCapped(t *testing.T) {
	require := require.New(t)

	l := New()
	coll := ids.GenerateTestID()
	require.NoError(l.UpdateIncentiveVault(coll, big.NewInt(50), true))

	// Fully funded payout.
	paid := l.PayIncentive(coll, big.NewInt(20))
	require.Equal(int64(20), paid.Int64())
	require.Equal(int64(30), l.IncentiveVaultOf(coll).Int64())

	// A payout beyond the balance drains the vault to exactly zero.
	paid = l.PayIncentive(coll, big.NewInt(100))
	require.Equal(int64(30), paid.Int64())
	require.Equal(int64(0), l.IncentiveVaultOf(coll).Int64())

	// An empty vault pays zero.
	paid = l.PayIncentive(coll, big.NewInt(5))
	require.Equal(int64(0), paid.Int64())

	paid = l.PayIncentive(ids.GenerateTestID(), big.NewInt(5))
	require.Equal(int64(0), paid.Int64())
}

func TestGlobalIncentiveVault(t *testing.T) {
	require := require.New(t)

	l := New()
	require.NoError(l.UpdateGlobalIncentiveVault(big.NewInt(100), true))
	require.Equal(int64(100), l.GlobalIncentiveVault().Int64())

	err := l.UpdateGlobalIncentiveVault(big.NewInt(101), false)
	require.ErrorIs(err, ErrInsufficientVault)

	paid := l.PayGlobalIncentive(big.NewInt(150))
	require.Equal(int64(100), paid.Int64())
	require.Equal(int64(0), l.GlobalIncentiveVault().Int64())
}
