package notifications

import (
	"context"
	"fmt"

	"github.com/USSTM/asset-backend/internal/db"
)

func requestGroup(userID int64, status db.RequestStatus, data map[string]any) (NotifierGroup, string, bool) {
	g := NotifierGroup{IDs: []int64{userID}, TemplateData: data}
	switch status {
	case db.RequestStatusApproved:
		g.Kind, g.Template = KindApproval, TemplateBorrowApproved
		return g, "approved", true
	case db.RequestStatusRejected:
		g.Kind, g.Template = KindRejection, TemplateBorrowRejected
		return g, "rejected", true
	case db.RequestStatusReturned:
		g.Kind, g.Template = KindReturn, TemplateBorrowReturned
		return g, "marked as returned", true
	default:
		return g, "", false
	}
}

// RequestReviewed tells the requester about a status change on a simple
// borrow request. Pending is not announced.
func (d *NotificationDispatcher) RequestReviewed(ctx context.Context, actorID int64, req db.BorrowRequest, asset db.Asset) error {
	data := map[string]any{
		"RequestID": req.ID,
		"AssetName": asset.Name,
		"AssetCode": asset.Code,
		"Quantity":  req.Quantity,
		"EndDate":   formatDate(req.EndDate),
	}
	g, verb, ok := requestGroup(req.UserID, req.Status, data)
	if !ok {
		return nil
	}
	msg := fmt.Sprintf("Your request to borrow %s was %s", asset.Name, verb)
	return d.Notify(ctx, actorID, EntityBorrowRequest, req.ID, msg, []NotifierGroup{g})
}

// TransactionReviewed is the same for signed borrow transactions.
func (d *NotificationDispatcher) TransactionReviewed(ctx context.Context, actorID int64, txn db.BorrowTransaction) error {
	data := map[string]any{
		"RequestID":  txn.ID,
		"DocumentNo": txn.DocumentNo,
		"EndDate":    formatDate(txn.EndDate),
	}
	g, verb, ok := requestGroup(txn.UserID, txn.Status, data)
	if !ok {
		return nil
	}
	msg := fmt.Sprintf("Borrow transaction %s was %s", txn.DocumentNo, verb)
	if txn.Status == db.RequestStatusApproved {
		msg += ", sign it to collect the items"
	}
	return d.Notify(ctx, actorID, EntityBorrowTransaction, txn.ID, msg, []NotifierGroup{g})
}
