package model

import (
	"errors"
	"fmt"
)

type Reason string

const (
	ReasonPurchase   Reason = "purchase"
	ReasonSale       Reason = "sale"
	ReasonAdjustment Reason = "adjustment"
	ReasonReturn     Reason = "return"
	ReasonTransfer   Reason = "transfer"
	ReasonDamage     Reason = "damage"
	ReasonTheft      Reason = "theft"
	ReasonCount      Reason = "count"
)

var Reasons = []Reason{
	ReasonPurchase,
	ReasonSale,
	ReasonAdjustment,
	ReasonReturn,
	ReasonTransfer,
	ReasonDamage,
	ReasonTheft,
	ReasonCount,
}

var ErrUnknownReason = errors.New("unknown movement reason")

func ParseReason(s string) (Reason, error) {
	r := Reason(s)
	if !r.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownReason, s)
	}
	return r, nil
}

func (r Reason) Valid() bool {
	for _, known := range Reasons {
		if r == known {
			return true
		}
	}
	return false
}

// Adjustable reports whether r may be used for a manual adjustment. Count
// movements are written only by a physical count, which also stamps the
// record's last counted time.
func (r Reason) Adjustable() bool {
	return r.Valid() && r != ReasonCount
}

type Direction string

const (
	DirectionIn  Direction = "in"
	DirectionOut Direction = "out"
)

// DirectionOf classifies a quantity change. A zero change counts as "in":
// stock did not decrease.
func DirectionOf(before, after int64) Direction {
	if after < before {
		return DirectionOut
	}
	return DirectionIn
}
