package notifications

import (
	"context"
	"fmt"
	"time"

	"github.com/USSTM/asset-backend/internal/db"
	"github.com/USSTM/asset-backend/internal/logging"
	"github.com/jackc/pgx/v5/pgtype"
)

const reminderBatch = 200

type Reminders struct {
	queries    *db.Queries
	dispatcher *NotificationDispatcher
}

func NewReminders(queries *db.Queries, dispatcher *NotificationDispatcher) *Reminders {
	return &Reminders{queries: queries, dispatcher: dispatcher}
}

// SendOverdueReminders notifies the borrower of every approved request whose
// end date is before asOf. Each request is reminded once.
func (r *Reminders) SendOverdueReminders(ctx context.Context, asOf time.Time) (int, error) {
	day := time.Date(asOf.Year(), asOf.Month(), asOf.Day(), 0, 0, 0, 0, time.UTC)

	sent := 0
	for {
		overdue, err := r.queries.ListOverdueBorrowRequests(ctx, db.ListOverdueBorrowRequestsParams{
			AsOf:  pgtype.Date{Time: day, Valid: true},
			Limit: reminderBatch,
		})
		if err != nil {
			return sent, fmt.Errorf("list overdue requests: %w", err)
		}
		if len(overdue) == 0 {
			return sent, nil
		}

		for _, req := range overdue {
			if err := r.remind(ctx, req); err != nil {
				return sent, err
			}
			sent++
		}

		if len(overdue) < reminderBatch {
			return sent, nil
		}
	}
}

func (r *Reminders) remind(ctx context.Context, req db.BorrowRequest) error {
	asset, err := r.queries.GetAssetByID(ctx, req.AssetID)
	if err != nil {
		return fmt.Errorf("load asset %d: %w", req.AssetID, err)
	}

	msg := fmt.Sprintf("%s was due back on %s", asset.Name, formatDate(req.EndDate))
	err = r.dispatcher.Notify(ctx, 0, EntityBorrowRequest, req.ID, msg, []NotifierGroup{{
		IDs:      []int64{req.UserID},
		Kind:     KindReminder,
		Template: TemplateBorrowOverdue,
		TemplateData: map[string]any{
			"RequestID": req.ID,
			"AssetName": asset.Name,
			"AssetCode": asset.Code,
			"Quantity":  req.Quantity,
			"EndDate":   formatDate(req.EndDate),
		},
	}})
	if err != nil {
		return fmt.Errorf("notify overdue request %d: %w", req.ID, err)
	}

	if err := r.queries.MarkReminderSent(ctx, req.ID); err != nil {
		return fmt.Errorf("mark reminder sent %d: %w", req.ID, err)
	}
	logging.Debug("overdue reminder sent", "request_id", req.ID, "user_id", req.UserID)
	return nil
}

func formatDate(d pgtype.Date) string {
	if !d.Valid {
		return ""
	}
	return d.Time.Format("2006-01-02")
}
