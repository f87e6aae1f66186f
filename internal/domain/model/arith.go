package model

import (
	"math"

	"subs3-ledger/internal/domain"
)

func addU64(a, b uint64) (uint64, error) {
	if a > math.MaxUint64-b {
		return 0, domain.ErrArithmeticOverflow
	}
	return a + b, nil
}

func addU32(a, b uint32) (uint32, error) {
	if a > math.MaxUint32-b {
		return 0, domain.ErrArithmeticOverflow
	}
	return a + b, nil
}

func addI64(a, b int64) (int64, error) {
	if (b > 0 && a > math.MaxInt64-b) || (b < 0 && a < math.MinInt64-b) {
		return 0, domain.ErrArithmeticOverflow
	}
	return a + b, nil
}
