package lifecycle

import (
	"errors"
	"testing"

	"github.com/USSTM/asset-backend/internal/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func unique(status db.AssetStatus, current int32) Stock {
	return Stock{Status: status, CurrentStock: current, TotalStock: 1}
}

func TestCheckout_UniqueItem(t *testing.T) {
	next, err := Checkout(unique(db.AssetStatusAvailable, 1), 1, db.AssetStatusBorrowed)
	require.NoError(t, err)
	assert.Equal(t, unique(db.AssetStatusBorrowed, 0), next)

	next, err = Checkout(unique(db.AssetStatusAvailable, 1), 1, db.AssetStatusReserved)
	require.NoError(t, err)
	assert.Equal(t, db.AssetStatusReserved, next.Status)
}

func TestCheckout_Unavailable(t *testing.T) {
	tests := []struct {
		stock Stock
		qty   int32
	}{
		{unique(db.AssetStatusBorrowed, 0), 1},
		{unique(db.AssetStatusReserved, 0), 1},
		{unique(db.AssetStatusMaintenance, 1), 1},
		{unique(db.AssetStatusAvailable, 0), 1},
		{Stock{Status: db.AssetStatusAvailable, CurrentStock: 2, TotalStock: 5}, 3},
	}

	for _, tt := range tests {
		next, err := Checkout(tt.stock, tt.qty, db.AssetStatusBorrowed)
		assert.ErrorIs(t, err, ErrUnavailable, "%+v", tt.stock)
		assert.Equal(t, tt.stock, next)
	}
}

func TestCheckout_InvalidQuantity(t *testing.T) {
	_, err := Checkout(unique(db.AssetStatusAvailable, 1), 0, db.AssetStatusBorrowed)
	assert.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestCheckout_BulkFlipsOnlyAtZero(t *testing.T) {
	s := Stock{Status: db.AssetStatusAvailable, CurrentStock: 3, TotalStock: 3}

	s, err := Checkout(s, 2, db.AssetStatusBorrowed)
	require.NoError(t, err)
	assert.Equal(t, db.AssetStatusAvailable, s.Status)
	assert.EqualValues(t, 1, s.CurrentStock)

	s, err = Checkout(s, 1, db.AssetStatusBorrowed)
	require.NoError(t, err)
	assert.Equal(t, db.AssetStatusBorrowed, s.Status)
	assert.EqualValues(t, 0, s.CurrentStock)

	s, err = Return(s, 1)
	require.NoError(t, err)
	assert.Equal(t, db.AssetStatusAvailable, s.Status)
	assert.EqualValues(t, 1, s.CurrentStock)
}

func TestReturn(t *testing.T) {
	next, err := Return(unique(db.AssetStatusBorrowed, 0), 1)
	require.NoError(t, err)
	assert.Equal(t, unique(db.AssetStatusAvailable, 1), next)

	_, err = Return(unique(db.AssetStatusAvailable, 1), 1)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = Return(unique(db.AssetStatusBorrowed, 0), -1)
	assert.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestSign(t *testing.T) {
	next, err := Sign(unique(db.AssetStatusReserved, 0))
	require.NoError(t, err)
	assert.Equal(t, db.AssetStatusBorrowed, next.Status)

	bulk := Stock{Status: db.AssetStatusAvailable, CurrentStock: 2, TotalStock: 4}
	next, err = Sign(bulk)
	require.NoError(t, err)
	assert.Equal(t, bulk, next)

	_, err = Sign(unique(db.AssetStatusAvailable, 1))
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = Sign(unique(db.AssetStatusMaintenance, 1))
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestRequestable(t *testing.T) {
	asset := db.Asset{Code: "IT-001", Status: db.AssetStatusAvailable, TotalStock: 2, CurrentStock: 2}
	assert.NoError(t, Requestable(asset, 2))
	assert.ErrorIs(t, Requestable(asset, 3), ErrInvalidQuantity)
	assert.ErrorIs(t, Requestable(asset, 0), ErrInvalidQuantity)

	asset.Status = db.AssetStatusBorrowed
	assert.NoError(t, Requestable(asset, 1), "borrowed assets can still be queued for")

	for _, status := range []db.AssetStatus{db.AssetStatusBroken, db.AssetStatusLost, db.AssetStatusRetired} {
		asset.Status = status
		assert.ErrorIs(t, Requestable(asset, 1), ErrNotBorrowable, status)
	}
}

func TestInspect(t *testing.T) {
	next, err := Inspect(unique(db.AssetStatusAvailable, 1), db.AssetStatusMaintenance)
	require.NoError(t, err)
	assert.Equal(t, db.AssetStatusMaintenance, next.Status)

	next, err = Inspect(unique(db.AssetStatusMaintenance, 1), db.AssetStatusAvailable)
	require.NoError(t, err)
	assert.Equal(t, db.AssetStatusAvailable, next.Status)

	_, err = Inspect(unique(db.AssetStatusAvailable, 1), db.AssetStatusBorrowed)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = Inspect(unique(db.AssetStatusBorrowed, 0), db.AssetStatusMaintenance)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = Inspect(Stock{Status: db.AssetStatusAvailable, CurrentStock: 1, TotalStock: 2}, db.AssetStatusLost)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = Inspect(unique(db.AssetStatusRetired, 1), db.AssetStatusAvailable)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestResize(t *testing.T) {
	tests := []struct {
		name  string
		stock Stock
		total int32
		hold  db.AssetStatus
		want  Stock
	}{
		{
			name:  "shrinking to the units out holds the asset",
			stock: Stock{Status: db.AssetStatusAvailable, CurrentStock: 1, TotalStock: 2},
			total: 1,
			hold:  db.AssetStatusBorrowed,
			want:  unique(db.AssetStatusBorrowed, 0),
		},
		{
			name:  "reserved units keep the reservation",
			stock: Stock{Status: db.AssetStatusAvailable, CurrentStock: 1, TotalStock: 3},
			total: 2,
			hold:  db.AssetStatusReserved,
			want:  Stock{Status: db.AssetStatusReserved, CurrentStock: 0, TotalStock: 2},
		},
		{
			name:  "growing a fully lent asset reopens it",
			stock: Stock{Status: db.AssetStatusBorrowed, CurrentStock: 0, TotalStock: 2},
			total: 3,
			hold:  db.AssetStatusBorrowed,
			want:  Stock{Status: db.AssetStatusAvailable, CurrentStock: 1, TotalStock: 3},
		},
		{
			name:  "shrinking a shelf-only asset to one unit",
			stock: Stock{Status: db.AssetStatusAvailable, CurrentStock: 4, TotalStock: 4},
			total: 1,
			hold:  db.AssetStatusBorrowed,
			want:  unique(db.AssetStatusAvailable, 1),
		},
		{
			name:  "inspection states are kept",
			stock: Stock{Status: db.AssetStatusMaintenance, CurrentStock: 2, TotalStock: 2},
			total: 5,
			hold:  db.AssetStatusBorrowed,
			want:  Stock{Status: db.AssetStatusMaintenance, CurrentStock: 5, TotalStock: 5},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, err := Resize(tt.stock, tt.total, tt.hold)
			require.NoError(t, err)
			assert.Equal(t, tt.want, next)
		})
	}

	_, err := Resize(Stock{Status: db.AssetStatusAvailable, CurrentStock: 1, TotalStock: 5}, 3, db.AssetStatusBorrowed)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = Resize(unique(db.AssetStatusAvailable, 1), 0, db.AssetStatusBorrowed)
	assert.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestProperty_ResizeKeepsUniqueInvariant(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := genStock(t)
		total := rapid.Int32Range(1, 25).Draw(t, "new total")
		hold := rapid.SampledFrom([]db.AssetStatus{db.AssetStatusBorrowed, db.AssetStatusReserved}).Draw(t, "hold")

		next, err := Resize(s, total, hold)
		if total < s.TotalStock-s.CurrentStock {
			if !errors.Is(err, ErrInvalidTransition) {
				t.Fatalf("expected ErrInvalidTransition, got %v", err)
			}
			return
		}
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if next.TotalStock-next.CurrentStock != s.TotalStock-s.CurrentStock {
			t.Fatalf("units out changed: %+v -> %+v", s, next)
		}
		if (next.Status == db.AssetStatusAvailable) != (next.CurrentStock > 0) {
			t.Fatalf("status %s with %d on the shelf", next.Status, next.CurrentStock)
		}
	})
}

func genStock(t *rapid.T) Stock {
	total := rapid.Int32Range(1, 20).Draw(t, "total")
	current := rapid.Int32Range(0, total).Draw(t, "current")
	status := db.AssetStatusAvailable
	if current == 0 {
		status = rapid.SampledFrom([]db.AssetStatus{db.AssetStatusBorrowed, db.AssetStatusReserved}).Draw(t, "held")
	}
	return Stock{Status: status, CurrentStock: current, TotalStock: total}
}

func TestProperty_StockStaysInRange(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := genStock(t)
		steps := rapid.SliceOfN(rapid.Int32Range(-3, 3), 1, 30).Draw(t, "steps")

		for _, step := range steps {
			var next Stock
			var err error
			if step < 0 {
				next, err = Return(s, -step)
			} else {
				next, err = Checkout(s, step, db.AssetStatusBorrowed)
			}
			if err != nil {
				if next != s {
					t.Fatalf("failed step %d changed state: %+v -> %+v", step, s, next)
				}
				continue
			}
			s = next

			if s.CurrentStock < 0 || s.CurrentStock > s.TotalStock {
				t.Fatalf("stock out of range: %+v", s)
			}
			if (s.Status == db.AssetStatusAvailable) != (s.CurrentStock > 0) {
				t.Fatalf("status %s inconsistent with stock %d", s.Status, s.CurrentStock)
			}
		}
	})
}

func TestProperty_UniqueApproveThenReturnRoundTrips(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		hold := rapid.SampledFrom([]db.AssetStatus{db.AssetStatusBorrowed, db.AssetStatusReserved}).Draw(t, "hold")

		out, err := Checkout(unique(db.AssetStatusAvailable, 1), 1, hold)
		if err != nil {
			t.Fatal(err)
		}
		if out.CurrentStock != 0 || out.Status != hold {
			t.Fatalf("after checkout: %+v", out)
		}

		back, err := Return(out, 1)
		if err != nil {
			t.Fatal(err)
		}
		if back != unique(db.AssetStatusAvailable, 1) {
			t.Fatalf("after return: %+v", back)
		}
	})
}

func TestProperty_ExhaustedUniqueAlwaysUnavailable(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		status := rapid.SampledFrom([]db.AssetStatus{
			db.AssetStatusReserved, db.AssetStatusBorrowed, db.AssetStatusMaintenance,
			db.AssetStatusBroken, db.AssetStatusLost, db.AssetStatusRetired,
		}).Draw(t, "status")

		_, err := Checkout(unique(status, 0), 1, db.AssetStatusBorrowed)
		if !errors.Is(err, ErrUnavailable) {
			t.Fatalf("expected ErrUnavailable, got %v", err)
		}
	})
}
