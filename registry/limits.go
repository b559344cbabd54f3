// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package registry

// Limits bounds the size of a single registration record and of batched
// updates. A mutation that would exceed a limit fails without applying
// anything.
type Limits struct {
	// Maximum number of entries in one UpdateOperators/UpdateCodeHashes call
	MaxBatchSize int

	// Maximum number of operators a registrant may filter directly
	MaxFilteredOperators int

	// Maximum number of code hashes a registrant may filter directly
	MaxFilteredCodeHashes int

	// Maximum number of registrants subscribed to one registrant
	MaxSubscribers int
}

// DefaultLimits returns limits with safe default values
func DefaultLimits() Limits {
	return Limits{
		MaxBatchSize:          256,
		MaxFilteredOperators:  10_000,
		MaxFilteredCodeHashes: 10_000,
		MaxSubscribers:        100_000,
	}
}
