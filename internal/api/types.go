package api

import (
	"encoding/json"
	"time"

	"github.com/USSTM/asset-backend/internal/db"
	"github.com/USSTM/asset-backend/internal/logging"
	"github.com/USSTM/asset-backend/internal/rbac"
	"github.com/jackc/pgx/v5/pgtype"
	openapi_types "github.com/oapi-codegen/runtime/types"
)

type AssetResponse struct {
	ID           int64          `json:"id"`
	Code         string         `json:"code"`
	Name         string         `json:"name"`
	Category     string         `json:"category"`
	Location     string         `json:"location"`
	TotalStock   int32          `json:"totalStock"`
	CurrentStock int32          `json:"currentStock"`
	Status       db.AssetStatus `json:"status"`
	DepartmentID *int64         `json:"departmentId"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
}

type BorrowRequestResponse struct {
	ID         int64              `json:"id"`
	AssetID    int64              `json:"assetId"`
	UserID     int64              `json:"userId"`
	Quantity   int32              `json:"quantity"`
	Status     db.RequestStatus   `json:"status"`
	StartDate  openapi_types.Date `json:"startDate"`
	EndDate    openapi_types.Date `json:"endDate"`
	Reason     string             `json:"reason"`
	ReviewedBy *int64             `json:"reviewedBy"`
	ReviewedAt *time.Time         `json:"reviewedAt"`
	ReturnedAt *time.Time         `json:"returnedAt"`
	CreatedAt  time.Time          `json:"createdAt"`
}

type TransactionItemResponse struct {
	AssetID  int64 `json:"assetId"`
	Quantity int32 `json:"quantity"`
}

type TransactionResponse struct {
	ID           int64                     `json:"id"`
	DocumentNo   string                    `json:"documentNo"`
	UserID       int64                     `json:"userId"`
	Status       db.RequestStatus          `json:"status"`
	StartDate    openapi_types.Date        `json:"startDate"`
	EndDate      openapi_types.Date        `json:"endDate"`
	Reason       string                    `json:"reason"`
	IsSigned     bool                      `json:"isSigned"`
	SignedAt     *time.Time                `json:"signedAt"`
	SignatureURL string                    `json:"signatureUrl,omitempty"`
	ReviewedBy   *int64                    `json:"reviewedBy"`
	ReviewedAt   *time.Time                `json:"reviewedAt"`
	ReturnedAt   *time.Time                `json:"returnedAt"`
	CreatedAt    time.Time                 `json:"createdAt"`
	Items        []TransactionItemResponse `json:"items"`
}

type UserResponse struct {
	ID           int64      `json:"id"`
	Email        string     `json:"email"`
	Name         string     `json:"name"`
	RoleID       int64      `json:"roleId"`
	DepartmentID *int64     `json:"departmentId"`
	IsActive     bool       `json:"isActive"`
	LastLoginAt  *time.Time `json:"lastLoginAt"`
	CreatedAt    time.Time  `json:"createdAt"`
}

type RoleSummary struct {
	ID    int64      `json:"id"`
	Name  string     `json:"name"`
	Scope rbac.Scope `json:"scope"`
}

type MeResponse struct {
	User    UserResponse `json:"user"`
	Role    RoleSummary  `json:"role"`
	IsAdmin bool         `json:"isAdmin"`
}

type RoleResponse struct {
	ID           int64           `json:"id"`
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	Scope        db.RoleScope    `json:"scope"`
	DepartmentID *int64          `json:"departmentId"`
	IsShared     bool            `json:"isShared"`
	IsActive     bool            `json:"isActive"`
	Permissions  json.RawMessage `json:"permissions"`
}

type DepartmentResponse struct {
	ID   int64  `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}

type NotificationResponse struct {
	ID         int64     `json:"id"`
	ActorID    *int64    `json:"actorId"`
	EntityType string    `json:"entityType"`
	EntityID   int64     `json:"entityId"`
	Message    string    `json:"message"`
	IsRead     bool      `json:"isRead"`
	CreatedAt  time.Time `json:"createdAt"`
}

type NotificationSettingsResponse struct {
	EmailOnApproval  bool `json:"emailOnApproval"`
	EmailOnRejection bool `json:"emailOnRejection"`
	EmailOnReturn    bool `json:"emailOnReturn"`
	EmailReminders   bool `json:"emailReminders"`
}

type TokenResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	TokenType    string `json:"tokenType"`
	ExpiresIn    int    `json:"expiresIn"`
}

func int8Ptr(v pgtype.Int8) *int64 {
	if !v.Valid {
		return nil
	}
	id := v.Int64
	return &id
}

func int8Of(id *int64) pgtype.Int8 {
	if id == nil {
		return pgtype.Int8{}
	}
	return pgtype.Int8{Int64: *id, Valid: true}
}

func timePtr(v pgtype.Timestamptz) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}

func dateOf(v pgtype.Date) openapi_types.Date {
	return openapi_types.Date{Time: v.Time}
}

func toAssetResponse(a db.Asset) AssetResponse {
	return AssetResponse{
		ID:           a.ID,
		Code:         a.Code,
		Name:         a.Name,
		Category:     a.Category,
		Location:     a.Location,
		TotalStock:   a.TotalStock,
		CurrentStock: a.CurrentStock,
		Status:       a.Status,
		DepartmentID: int8Ptr(a.DepartmentID),
		CreatedAt:    a.CreatedAt.Time,
		UpdatedAt:    a.UpdatedAt.Time,
	}
}

func toBorrowRequestResponse(r db.BorrowRequest) BorrowRequestResponse {
	return BorrowRequestResponse{
		ID:         r.ID,
		AssetID:    r.AssetID,
		UserID:     r.UserID,
		Quantity:   r.Quantity,
		Status:     r.Status,
		StartDate:  dateOf(r.StartDate),
		EndDate:    dateOf(r.EndDate),
		Reason:     r.Reason,
		ReviewedBy: int8Ptr(r.ReviewedBy),
		ReviewedAt: timePtr(r.ReviewedAt),
		ReturnedAt: timePtr(r.ReturnedAt),
		CreatedAt:  r.CreatedAt.Time,
	}
}

func toTransactionResponse(t db.BorrowTransaction, items []db.BorrowItem) TransactionResponse {
	resp := TransactionResponse{
		ID:         t.ID,
		DocumentNo: t.DocumentNo,
		UserID:     t.UserID,
		Status:     t.Status,
		StartDate:  dateOf(t.StartDate),
		EndDate:    dateOf(t.EndDate),
		Reason:     t.Reason,
		IsSigned:   t.IsSigned,
		SignedAt:   timePtr(t.SignedAt),
		ReviewedBy: int8Ptr(t.ReviewedBy),
		ReviewedAt: timePtr(t.ReviewedAt),
		ReturnedAt: timePtr(t.ReturnedAt),
		CreatedAt:  t.CreatedAt.Time,
		Items:      make([]TransactionItemResponse, 0, len(items)),
	}
	for _, item := range items {
		resp.Items = append(resp.Items, TransactionItemResponse{AssetID: item.AssetID, Quantity: item.Quantity})
	}
	return resp
}

func toUserResponse(u db.User) UserResponse {
	return UserResponse{
		ID:           u.ID,
		Email:        u.Email,
		Name:         u.Name,
		RoleID:       u.RoleID,
		DepartmentID: int8Ptr(u.DepartmentID),
		IsActive:     u.IsActive,
		LastLoginAt:  timePtr(u.LastLoginAt),
		CreatedAt:    u.CreatedAt.Time,
	}
}

// toRoleResponse renders the stored document in canonical form. A document
// that no longer parses is shown as empty, matching how it is enforced.
func toRoleResponse(r db.Role) RoleResponse {
	perms := json.RawMessage(`{}`)
	if set, err := rbac.ParseDocument(r.Permissions); err != nil {
		logging.Warn("Stored role permissions are malformed", "role_id", r.ID, "error", err)
	} else if encoded, err := set.Encode(); err == nil {
		perms = json.RawMessage(encoded)
	}

	return RoleResponse{
		ID:           r.ID,
		Name:         r.Name,
		Description:  r.Description,
		Scope:        r.Scope,
		DepartmentID: int8Ptr(r.DepartmentID),
		IsShared:     r.IsShared,
		IsActive:     r.IsActive,
		Permissions:  perms,
	}
}

func toNotificationResponse(n db.Notification) NotificationResponse {
	return NotificationResponse{
		ID:         n.ID,
		ActorID:    int8Ptr(n.ActorID),
		EntityType: n.EntityType,
		EntityID:   n.EntityID,
		Message:    n.Message,
		IsRead:     n.IsRead,
		CreatedAt:  n.CreatedAt.Time,
	}
}

func toSettingsResponse(s db.NotificationSetting) NotificationSettingsResponse {
	return NotificationSettingsResponse{
		EmailOnApproval:  s.EmailOnApproval,
		EmailOnRejection: s.EmailOnRejection,
		EmailOnReturn:    s.EmailOnReturn,
		EmailReminders:   s.EmailReminders,
	}
}
