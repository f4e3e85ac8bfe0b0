// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package state

import (
	"errors"
	"math"

	"github.com/luxfi/codec"
	"github.com/luxfi/codec/linearcodec"
)

const codecVersion = 0

var stateCodec codec.Manager

func init() {
	stateCodec = codec.NewManager(math.MaxInt)
	lc := linearcodec.NewDefault()

	err := errors.Join(
		lc.RegisterType(&accountRecord{}),
		lc.RegisterType(&collectionRecord{}),
		lc.RegisterType(&vaultRecord{}),
		stateCodec.RegisterCodec(codecVersion, lc),
	)
	if err != nil {
		panic(err)
	}
}
