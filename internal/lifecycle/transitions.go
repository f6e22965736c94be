package lifecycle

import (
	"errors"
	"fmt"

	"github.com/USSTM/asset-backend/internal/db"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrUnavailable       = errors.New("asset unavailable")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrInvalidQuantity   = errors.New("invalid quantity")
	ErrNotBorrowable     = errors.New("asset cannot be borrowed")
	ErrInvalidDates      = errors.New("end date is before start date")
)

// Stock is the mutable part of an asset.
type Stock struct {
	Status       db.AssetStatus
	CurrentStock int32
	TotalStock   int32
}

func StockOf(a db.Asset) Stock {
	return Stock{Status: a.Status, CurrentStock: a.CurrentStock, TotalStock: a.TotalStock}
}

func (s Stock) Unique() bool {
	return s.TotalStock == 1
}

// Checkout takes qty units out. The asset must be Available with enough
// units; when the last unit leaves the status becomes hold (Borrowed for
// direct approvals, Reserved for signed transactions).
func Checkout(s Stock, qty int32, hold db.AssetStatus) (Stock, error) {
	if qty <= 0 {
		return s, fmt.Errorf("%w: %d", ErrInvalidQuantity, qty)
	}
	if s.Status != db.AssetStatusAvailable || s.CurrentStock < qty {
		return s, fmt.Errorf("%w: status %s, %d of %d in stock, %d requested",
			ErrUnavailable, s.Status, s.CurrentStock, s.TotalStock, qty)
	}

	s.CurrentStock -= qty
	if s.CurrentStock == 0 {
		s.Status = hold
	}
	return s, nil
}

// Sign turns a reservation into a loan. Bulk assets that still have
// units on the shelf stay Available.
func Sign(s Stock) (Stock, error) {
	switch s.Status {
	case db.AssetStatusReserved:
		s.Status = db.AssetStatusBorrowed
		return s, nil
	case db.AssetStatusAvailable, db.AssetStatusBorrowed:
		if s.CurrentStock < s.TotalStock {
			return s, nil
		}
	}
	return s, fmt.Errorf("%w: cannot sign for asset in status %s", ErrInvalidTransition, s.Status)
}

// Return puts qty units back and reopens the asset if it was out on loan.
func Return(s Stock, qty int32) (Stock, error) {
	if qty <= 0 {
		return s, fmt.Errorf("%w: %d", ErrInvalidQuantity, qty)
	}
	if s.CurrentStock+qty > s.TotalStock {
		return s, fmt.Errorf("%w: returning %d would exceed total stock %d",
			ErrInvalidTransition, qty, s.TotalStock)
	}

	s.CurrentStock += qty
	if s.Status == db.AssetStatusBorrowed || s.Status == db.AssetStatusReserved {
		s.Status = db.AssetStatusAvailable
	}
	return s, nil
}

// Resize changes the number of units an asset has. Units out on loan stay
// out, so the shelf count moves by the same delta, and the status is derived
// again the way Checkout and Return derive it: an asset with nothing on the
// shelf is held (hold is Reserved or Borrowed depending on who has the
// units) and a held asset with units back on the shelf is Available.
func Resize(s Stock, total int32, hold db.AssetStatus) (Stock, error) {
	if total < 1 {
		return s, fmt.Errorf("%w: total stock %d", ErrInvalidQuantity, total)
	}
	out := s.TotalStock - s.CurrentStock
	if total < out {
		return s, fmt.Errorf("%w: %d units are out, total stock cannot drop to %d",
			ErrInvalidTransition, out, total)
	}

	s.TotalStock = total
	s.CurrentStock = total - out
	switch s.Status {
	case db.AssetStatusAvailable, db.AssetStatusReserved, db.AssetStatusBorrowed:
		if s.CurrentStock == 0 {
			s.Status = hold
		} else {
			s.Status = db.AssetStatusAvailable
		}
	}
	return s, nil
}

// Requestable rejects assets that can never be lent out.
func Requestable(a db.Asset, qty int32) error {
	if qty <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidQuantity, qty)
	}
	switch a.Status {
	case db.AssetStatusBroken, db.AssetStatusLost, db.AssetStatusRetired:
		return fmt.Errorf("%w: asset %s is %s", ErrNotBorrowable, a.Code, a.Status)
	}
	if qty > a.TotalStock {
		return fmt.Errorf("%w: requested %d but asset %s has %d units",
			ErrInvalidQuantity, qty, a.Code, a.TotalStock)
	}
	return nil
}

var inspectionTargets = map[db.AssetStatus]bool{
	db.AssetStatusAvailable:   true,
	db.AssetStatusMaintenance: true,
	db.AssetStatusBroken:      true,
	db.AssetStatusLost:        true,
	db.AssetStatusRetired:     true,
}

// Inspect validates a manual status change. Reserved and Borrowed are only
// reachable through the borrow flows, units must all be on the shelf, and
// Retired is terminal.
func Inspect(s Stock, to db.AssetStatus) (Stock, error) {
	if !inspectionTargets[to] {
		return s, fmt.Errorf("%w: %s cannot be set manually", ErrInvalidTransition, to)
	}
	if s.Status == to {
		return s, nil
	}
	if s.Status == db.AssetStatusRetired {
		return s, fmt.Errorf("%w: asset is retired", ErrInvalidTransition)
	}
	if s.Status == db.AssetStatusReserved || s.Status == db.AssetStatusBorrowed || s.CurrentStock < s.TotalStock {
		return s, fmt.Errorf("%w: %d of %d units are out", ErrInvalidTransition, s.TotalStock-s.CurrentStock, s.TotalStock)
	}

	s.Status = to
	return s, nil
}
