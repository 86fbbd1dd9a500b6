package catalog

import (
	"errors"
	"fmt"
)

// ErrInvalidAdjustment wraps every bounds violation reported by apply.
var ErrInvalidAdjustment = errors.New("invalid stock adjustment")

type adjustmentKind int

const (
	adjustSet adjustmentKind = iota
	adjustAdd
	adjustSubtract
)

// Adjustment is a closed stock mutation: set to, add by, or subtract by a
// quantity. All variants go through one bounds-checked apply, so no store can
// drive stock negative.
type Adjustment struct {
	kind adjustmentKind
	n    int
}

func SetTo(n int) Adjustment      { return Adjustment{kind: adjustSet, n: n} }
func AddBy(n int) Adjustment      { return Adjustment{kind: adjustAdd, n: n} }
func SubtractBy(n int) Adjustment { return Adjustment{kind: adjustSubtract, n: n} }

func (a Adjustment) String() string {
	switch a.kind {
	case adjustSet:
		return fmt.Sprintf("set(%d)", a.n)
	case adjustAdd:
		return fmt.Sprintf("add(%d)", a.n)
	default:
		return fmt.Sprintf("subtract(%d)", a.n)
	}
}

// apply returns the stock level after the adjustment, rejecting any result
// below zero.
func (a Adjustment) apply(current int) (int, error) {
	if a.n < 0 {
		return 0, fmt.Errorf("%w: quantity must be non-negative, got %d", ErrInvalidAdjustment, a.n)
	}
	var next int
	switch a.kind {
	case adjustSet:
		next = a.n
	case adjustAdd:
		next = current + a.n
	case adjustSubtract:
		next = current - a.n
	default:
		return 0, fmt.Errorf("unknown adjustment kind %d", a.kind)
	}
	if next < 0 {
		return 0, fmt.Errorf("%w: %s would take stock below zero (current %d)", ErrInvalidAdjustment, a, current)
	}
	return next, nil
}
