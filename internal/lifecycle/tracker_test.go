package lifecycle_test

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/USSTM/asset-backend/internal/db"
	"github.com/USSTM/asset-backend/internal/lifecycle"
	"github.com/USSTM/asset-backend/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sharedDB *testutil.TestDatabase

func TestMain(m *testing.M) {
	flag.Parse()
	if testing.Short() {
		// transitions_test.go still runs
		os.Exit(m.Run())
	}

	var err error
	sharedDB, err = testutil.StartDatabase(context.Background())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	code := m.Run()
	sharedDB.Terminate()
	os.Exit(code)
}

func setup(t *testing.T) *lifecycle.Tracker {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration tests in short mode")
	}
	sharedDB.CleanupDatabase(t)
	return lifecycle.NewTracker(sharedDB.Pool())
}

func reloadAsset(t *testing.T, id int64) db.Asset {
	t.Helper()
	asset, err := sharedDB.Queries().GetAssetByID(context.Background(), id)
	require.NoError(t, err)
	return asset
}

func day(offset int) time.Time {
	return time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, offset)
}

func TestTracker_ApproveUniqueAsset(t *testing.T) {
	tracker := setup(t)
	ctx := context.Background()

	staff := sharedDB.NewUser(t).AsStaff().Create()
	borrower := sharedDB.NewUser(t).Create()
	asset := sharedDB.NewAsset(t).Create()
	req := sharedDB.NewBorrowRequest(t, asset.ID, borrower.ID).Create()

	out, err := tracker.ApproveRequest(ctx, req.ID, staff.ID)
	require.NoError(t, err)

	assert.Equal(t, db.RequestStatusApproved, out.Request.Status)
	assert.Equal(t, staff.ID, out.Request.ReviewedBy.Int64)
	assert.True(t, out.Request.ReviewedAt.Valid)
	assert.Equal(t, int32(0), out.Asset.CurrentStock)
	assert.Equal(t, db.AssetStatusBorrowed, out.Asset.Status)

	stored := reloadAsset(t, asset.ID)
	assert.Equal(t, int32(0), stored.CurrentStock)
	assert.Equal(t, db.AssetStatusBorrowed, stored.Status)

	// a second approval of the same request is not a pending request any more
	_, err = tracker.ApproveRequest(ctx, req.ID, staff.ID)
	assert.ErrorIs(t, err, lifecycle.ErrInvalidTransition)
}

func TestTracker_ApproveThenReturnRestoresStock(t *testing.T) {
	tracker := setup(t)
	ctx := context.Background()

	staff := sharedDB.NewUser(t).AsStaff().Create()
	borrower := sharedDB.NewUser(t).Create()
	asset := sharedDB.NewAsset(t).Create()
	req := sharedDB.NewBorrowRequest(t, asset.ID, borrower.ID).Create()

	_, err := tracker.ApproveRequest(ctx, req.ID, staff.ID)
	require.NoError(t, err)

	out, err := tracker.ReturnRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, db.RequestStatusReturned, out.Request.Status)
	assert.True(t, out.Request.ReturnedAt.Valid)
	assert.Equal(t, int32(1), out.Asset.CurrentStock)
	assert.Equal(t, db.AssetStatusAvailable, out.Asset.Status)

	_, err = tracker.ReturnRequest(ctx, req.ID)
	assert.ErrorIs(t, err, lifecycle.ErrInvalidTransition, "a request is returned once")
}

func TestTracker_ApproveUnavailable(t *testing.T) {
	tracker := setup(t)
	ctx := context.Background()

	staff := sharedDB.NewUser(t).AsStaff().Create()
	borrower := sharedDB.NewUser(t).Create()

	statuses := []db.AssetStatus{
		db.AssetStatusBorrowed,
		db.AssetStatusReserved,
		db.AssetStatusMaintenance,
	}
	for _, status := range statuses {
		t.Run(string(status), func(t *testing.T) {
			asset := sharedDB.NewAsset(t).WithStatus(status).WithCurrentStock(0).Create()
			req := sharedDB.NewBorrowRequest(t, asset.ID, borrower.ID).Create()

			_, err := tracker.ApproveRequest(ctx, req.ID, staff.ID)
			assert.ErrorIs(t, err, lifecycle.ErrUnavailable)

			// nothing persisted
			stored := reloadAsset(t, asset.ID)
			assert.Equal(t, status, stored.Status)
			reloaded, err := sharedDB.Queries().GetBorrowRequestByID(ctx, req.ID)
			require.NoError(t, err)
			assert.Equal(t, db.RequestStatusPending, reloaded.Status)
		})
	}
}

func TestTracker_ConcurrentApprovalsOnUniqueAsset(t *testing.T) {
	tracker := setup(t)
	ctx := context.Background()

	staff := sharedDB.NewUser(t).AsStaff().Create()
	alice := sharedDB.NewUser(t).Create()
	bob := sharedDB.NewUser(t).Create()
	asset := sharedDB.NewAsset(t).Create()
	reqA := sharedDB.NewBorrowRequest(t, asset.ID, alice.ID).Create()
	reqB := sharedDB.NewBorrowRequest(t, asset.ID, bob.ID).Create()

	const rounds = 2
	errs := make([]error, rounds)
	ids := []int64{reqA.ID, reqB.ID}

	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < rounds; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, errs[i] = tracker.ApproveRequest(ctx, ids[i], staff.ID)
		}(i)
	}
	close(start)
	wg.Wait()

	succeeded, unavailable := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, lifecycle.ErrUnavailable):
			unavailable++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, unavailable)

	stored := reloadAsset(t, asset.ID)
	assert.Equal(t, int32(0), stored.CurrentStock)
	assert.Equal(t, db.AssetStatusBorrowed, stored.Status)
}

func TestTracker_BulkAssetDecrementsPerUnit(t *testing.T) {
	tracker := setup(t)
	ctx := context.Background()

	staff := sharedDB.NewUser(t).AsStaff().Create()
	borrower := sharedDB.NewUser(t).Create()
	cables := sharedDB.NewAsset(t).WithName("HDMI cable").WithStock(5).Create()

	first := sharedDB.NewBorrowRequest(t, cables.ID, borrower.ID).WithQuantity(3).Create()
	second := sharedDB.NewBorrowRequest(t, cables.ID, borrower.ID).WithQuantity(3).Create()
	third := sharedDB.NewBorrowRequest(t, cables.ID, borrower.ID).WithQuantity(2).Create()

	out, err := tracker.ApproveRequest(ctx, first.ID, staff.ID)
	require.NoError(t, err)
	assert.Equal(t, int32(2), out.Asset.CurrentStock)
	assert.Equal(t, db.AssetStatusAvailable, out.Asset.Status)

	_, err = tracker.ApproveRequest(ctx, second.ID, staff.ID)
	assert.ErrorIs(t, err, lifecycle.ErrUnavailable, "only two units left")

	out, err = tracker.ApproveRequest(ctx, third.ID, staff.ID)
	require.NoError(t, err)
	assert.Equal(t, int32(0), out.Asset.CurrentStock)
	assert.Equal(t, db.AssetStatusBorrowed, out.Asset.Status)

	out, err = tracker.ReturnRequest(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, int32(3), out.Asset.CurrentStock)
	assert.Equal(t, db.AssetStatusAvailable, out.Asset.Status)
}

func TestTracker_CreateRequest(t *testing.T) {
	tracker := setup(t)
	ctx := context.Background()

	borrower := sharedDB.NewUser(t).Create()

	t.Run("pending with default quantity", func(t *testing.T) {
		asset := sharedDB.NewAsset(t).Create()
		req, err := tracker.CreateRequest(ctx, lifecycle.CreateRequestInput{
			AssetID:   asset.ID,
			UserID:    borrower.ID,
			StartDate: day(0),
			EndDate:   day(3),
			Reason:    "lab session",
		})
		require.NoError(t, err)
		assert.Equal(t, db.RequestStatusPending, req.Status)
		assert.Equal(t, int32(1), req.Quantity)
		assert.Equal(t, "lab session", req.Reason)
	})

	t.Run("borrowed assets can still be requested", func(t *testing.T) {
		asset := sharedDB.NewAsset(t).WithStatus(db.AssetStatusBorrowed).WithCurrentStock(0).Create()
		_, err := tracker.CreateRequest(ctx, lifecycle.CreateRequestInput{
			AssetID: asset.ID, UserID: borrower.ID, StartDate: day(0), EndDate: day(1),
		})
		assert.NoError(t, err)
	})

	for _, status := range []db.AssetStatus{db.AssetStatusBroken, db.AssetStatusLost, db.AssetStatusRetired} {
		t.Run("rejects "+string(status), func(t *testing.T) {
			asset := sharedDB.NewAsset(t).WithStatus(status).Create()
			_, err := tracker.CreateRequest(ctx, lifecycle.CreateRequestInput{
				AssetID: asset.ID, UserID: borrower.ID, StartDate: day(0), EndDate: day(1),
			})
			assert.ErrorIs(t, err, lifecycle.ErrNotBorrowable)
		})
	}

	t.Run("rejects reversed dates", func(t *testing.T) {
		asset := sharedDB.NewAsset(t).Create()
		_, err := tracker.CreateRequest(ctx, lifecycle.CreateRequestInput{
			AssetID: asset.ID, UserID: borrower.ID, StartDate: day(3), EndDate: day(1),
		})
		assert.ErrorIs(t, err, lifecycle.ErrInvalidDates)
	})

	t.Run("rejects more than the total stock", func(t *testing.T) {
		asset := sharedDB.NewAsset(t).WithStock(2).Create()
		_, err := tracker.CreateRequest(ctx, lifecycle.CreateRequestInput{
			AssetID: asset.ID, UserID: borrower.ID, Quantity: 3, StartDate: day(0), EndDate: day(1),
		})
		assert.ErrorIs(t, err, lifecycle.ErrInvalidQuantity)
	})

	t.Run("unknown asset", func(t *testing.T) {
		_, err := tracker.CreateRequest(ctx, lifecycle.CreateRequestInput{
			AssetID: 999999, UserID: borrower.ID, StartDate: day(0), EndDate: day(1),
		})
		assert.ErrorIs(t, err, lifecycle.ErrNotFound)
	})
}

func TestTracker_RejectLeavesAssetAlone(t *testing.T) {
	tracker := setup(t)
	ctx := context.Background()

	staff := sharedDB.NewUser(t).AsStaff().Create()
	borrower := sharedDB.NewUser(t).Create()
	asset := sharedDB.NewAsset(t).Create()
	req := sharedDB.NewBorrowRequest(t, asset.ID, borrower.ID).Create()

	out, err := tracker.RejectRequest(ctx, req.ID, staff.ID)
	require.NoError(t, err)
	assert.Equal(t, db.RequestStatusRejected, out.Request.Status)

	stored := reloadAsset(t, asset.ID)
	assert.Equal(t, int32(1), stored.CurrentStock)
	assert.Equal(t, db.AssetStatusAvailable, stored.Status)

	_, err = tracker.ApproveRequest(ctx, req.ID, staff.ID)
	assert.ErrorIs(t, err, lifecycle.ErrInvalidTransition)

	_, err = tracker.RejectRequest(ctx, 424242, staff.ID)
	assert.ErrorIs(t, err, lifecycle.ErrNotFound)
}

func TestTracker_SignedTransactionFlow(t *testing.T) {
	tracker := setup(t)
	ctx := context.Background()

	staff := sharedDB.NewUser(t).AsStaff().Create()
	borrower := sharedDB.NewUser(t).Create()
	camera := sharedDB.NewAsset(t).WithName("Camera").Create()
	batteries := sharedDB.NewAsset(t).WithName("Battery").WithStock(10).Create()

	created, err := tracker.CreateTransaction(ctx, lifecycle.CreateTransactionInput{
		UserID: borrower.ID,
		Items: []lifecycle.ItemInput{
			{AssetID: camera.ID},
			{AssetID: batteries.ID, Quantity: 2},
			{AssetID: batteries.ID, Quantity: 1},
		},
		StartDate: day(0),
		EndDate:   day(5),
		Reason:    "field trip",
	})
	require.NoError(t, err)
	assert.Equal(t, db.RequestStatusPending, created.Transaction.Status)
	assert.Regexp(t, `^BT-[0-9a-f]{8}$`, created.Transaction.DocumentNo)
	require.Len(t, created.Items, 2, "duplicate lines merge")
	assert.Equal(t, int32(3), created.Items[1].Quantity)

	approved, err := tracker.ApproveTransaction(ctx, created.Transaction.ID, staff.ID)
	require.NoError(t, err)
	assert.Equal(t, db.RequestStatusApproved, approved.Transaction.Status)
	assert.Equal(t, db.AssetStatusReserved, reloadAsset(t, camera.ID).Status)
	assert.Equal(t, int32(7), reloadAsset(t, batteries.ID).CurrentStock)

	signed, err := tracker.ConfirmSignature(ctx, created.Transaction.ID, "signatures/1.png")
	require.NoError(t, err)
	assert.True(t, signed.Transaction.IsSigned)
	assert.Equal(t, "signatures/1.png", signed.Transaction.SignatureKey.String)
	assert.Equal(t, db.AssetStatusBorrowed, reloadAsset(t, camera.ID).Status)
	assert.Equal(t, db.AssetStatusAvailable, reloadAsset(t, batteries.ID).Status)

	_, err = tracker.ConfirmSignature(ctx, created.Transaction.ID, "signatures/2.png")
	assert.ErrorIs(t, err, lifecycle.ErrInvalidTransition, "signing twice")

	returned, err := tracker.ReturnTransaction(ctx, created.Transaction.ID)
	require.NoError(t, err)
	assert.Equal(t, db.RequestStatusReturned, returned.Transaction.Status)

	cam := reloadAsset(t, camera.ID)
	assert.Equal(t, int32(1), cam.CurrentStock)
	assert.Equal(t, db.AssetStatusAvailable, cam.Status)
	assert.Equal(t, int32(10), reloadAsset(t, batteries.ID).CurrentStock)
}

func TestTracker_ApproveTransactionIsAllOrNothing(t *testing.T) {
	tracker := setup(t)
	ctx := context.Background()

	staff := sharedDB.NewUser(t).AsStaff().Create()
	borrower := sharedDB.NewUser(t).Create()
	free := sharedDB.NewAsset(t).Create()
	busy := sharedDB.NewAsset(t).Create()

	created, err := tracker.CreateTransaction(ctx, lifecycle.CreateTransactionInput{
		UserID:    borrower.ID,
		Items:     []lifecycle.ItemInput{{AssetID: free.ID}, {AssetID: busy.ID}},
		StartDate: day(0),
		EndDate:   day(1),
	})
	require.NoError(t, err)

	// busy goes out on a direct loan meanwhile
	direct := sharedDB.NewBorrowRequest(t, busy.ID, borrower.ID).Create()
	_, err = tracker.ApproveRequest(ctx, direct.ID, staff.ID)
	require.NoError(t, err)

	_, err = tracker.ApproveTransaction(ctx, created.Transaction.ID, staff.ID)
	assert.ErrorIs(t, err, lifecycle.ErrUnavailable)

	stored := reloadAsset(t, free.ID)
	assert.Equal(t, db.AssetStatusAvailable, stored.Status, "first item rolled back")
	assert.Equal(t, int32(1), stored.CurrentStock)

	txn, err := sharedDB.Queries().GetBorrowTransactionByID(ctx, created.Transaction.ID)
	require.NoError(t, err)
	assert.Equal(t, db.RequestStatusPending, txn.Status)
}

func TestTracker_SetStatus(t *testing.T) {
	tracker := setup(t)
	ctx := context.Background()

	asset := sharedDB.NewAsset(t).Create()

	out, err := tracker.SetStatus(ctx, asset.ID, db.AssetStatusMaintenance)
	require.NoError(t, err)
	assert.Equal(t, db.AssetStatusMaintenance, out.Status)

	out, err = tracker.SetStatus(ctx, asset.ID, db.AssetStatusAvailable)
	require.NoError(t, err)
	assert.Equal(t, db.AssetStatusAvailable, out.Status)

	_, err = tracker.SetStatus(ctx, asset.ID, db.AssetStatusBorrowed)
	assert.ErrorIs(t, err, lifecycle.ErrInvalidTransition, "loan states are not set by hand")

	out, err = tracker.SetStatus(ctx, asset.ID, db.AssetStatusRetired)
	require.NoError(t, err)
	assert.Equal(t, db.AssetStatusRetired, out.Status)

	_, err = tracker.SetStatus(ctx, asset.ID, db.AssetStatusAvailable)
	assert.ErrorIs(t, err, lifecycle.ErrInvalidTransition, "retired is terminal")

	lent := sharedDB.NewAsset(t).WithStatus(db.AssetStatusBorrowed).WithCurrentStock(0).Create()
	_, err = tracker.SetStatus(ctx, lent.ID, db.AssetStatusMaintenance)
	assert.ErrorIs(t, err, lifecycle.ErrInvalidTransition, "units are out")
}

func TestTracker_UpdateAssetResize(t *testing.T) {
	tracker := setup(t)
	ctx := context.Background()

	update := func(asset db.Asset, total int32) (db.Asset, error) {
		return tracker.UpdateAsset(ctx, asset.ID, lifecycle.UpdateAssetInput{
			Name:       asset.Name,
			Category:   asset.Category,
			Location:   asset.Location,
			TotalStock: total,
		})
	}

	t.Run("shrinking to the lent unit makes a borrowed unique item", func(t *testing.T) {
		asset := sharedDB.NewAsset(t).WithStock(2).WithCurrentStock(1).Create()

		out, err := update(asset, 1)
		require.NoError(t, err)
		assert.Equal(t, int32(1), out.TotalStock)
		assert.Equal(t, int32(0), out.CurrentStock)
		assert.Equal(t, db.AssetStatusBorrowed, out.Status)
	})

	t.Run("growing a fully lent asset makes it available", func(t *testing.T) {
		asset := sharedDB.NewAsset(t).WithStock(2).WithCurrentStock(0).WithStatus(db.AssetStatusBorrowed).Create()

		out, err := update(asset, 3)
		require.NoError(t, err)
		assert.Equal(t, int32(1), out.CurrentStock)
		assert.Equal(t, db.AssetStatusAvailable, out.Status)

		borrower := sharedDB.NewUser(t).Create()
		staff := sharedDB.NewUser(t).AsStaff().Create()
		req := sharedDB.NewBorrowRequest(t, asset.ID, borrower.ID).Create()
		_, err = tracker.ApproveRequest(ctx, req.ID, staff.ID)
		assert.NoError(t, err, "the unit back on the shelf can be lent")
	})

	t.Run("reserved units stay reserved", func(t *testing.T) {
		staff := sharedDB.NewUser(t).AsStaff().Create()
		borrower := sharedDB.NewUser(t).Create()
		asset := sharedDB.NewAsset(t).WithStock(3).Create()

		created, err := tracker.CreateTransaction(ctx, lifecycle.CreateTransactionInput{
			UserID:    borrower.ID,
			Items:     []lifecycle.ItemInput{{AssetID: asset.ID, Quantity: 2}},
			StartDate: day(0),
			EndDate:   day(2),
		})
		require.NoError(t, err)
		_, err = tracker.ApproveTransaction(ctx, created.Transaction.ID, staff.ID)
		require.NoError(t, err)

		out, err := update(reloadAsset(t, asset.ID), 2)
		require.NoError(t, err)
		assert.Equal(t, int32(0), out.CurrentStock)
		assert.Equal(t, db.AssetStatusReserved, out.Status)
	})

	t.Run("cannot drop below the units out", func(t *testing.T) {
		asset := sharedDB.NewAsset(t).WithStock(5).WithCurrentStock(1).Create()

		_, err := update(asset, 3)
		assert.ErrorIs(t, err, lifecycle.ErrInvalidTransition)
		assert.Equal(t, int32(5), reloadAsset(t, asset.ID).TotalStock)
	})

	t.Run("missing asset", func(t *testing.T) {
		_, err := update(db.Asset{ID: 999999, Name: "ghost"}, 1)
		assert.ErrorIs(t, err, lifecycle.ErrNotFound)
	})
}
