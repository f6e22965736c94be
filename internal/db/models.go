package db

import (
	"database/sql/driver"
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"
)

type AssetStatus string

const (
	AssetStatusAvailable   AssetStatus = "Available"
	AssetStatusReserved    AssetStatus = "Reserved"
	AssetStatusBorrowed    AssetStatus = "Borrowed"
	AssetStatusMaintenance AssetStatus = "Maintenance"
	AssetStatusBroken      AssetStatus = "Broken"
	AssetStatusLost        AssetStatus = "Lost"
	AssetStatusRetired     AssetStatus = "Retired"
)

func (e *AssetStatus) Scan(src interface{}) error {
	switch s := src.(type) {
	case []byte:
		*e = AssetStatus(s)
	case string:
		*e = AssetStatus(s)
	default:
		return fmt.Errorf("unsupported scan type for AssetStatus: %T", src)
	}
	return nil
}

func (e AssetStatus) Valid() bool {
	switch e {
	case AssetStatusAvailable,
		AssetStatusReserved,
		AssetStatusBorrowed,
		AssetStatusMaintenance,
		AssetStatusBroken,
		AssetStatusLost,
		AssetStatusRetired:
		return true
	}
	return false
}

type NullAssetStatus struct {
	AssetStatus AssetStatus
	Valid       bool
}

func (ns *NullAssetStatus) Scan(value interface{}) error {
	if value == nil {
		ns.AssetStatus, ns.Valid = "", false
		return nil
	}
	ns.Valid = true
	return ns.AssetStatus.Scan(value)
}

func (ns NullAssetStatus) Value() (driver.Value, error) {
	if !ns.Valid {
		return nil, nil
	}
	return string(ns.AssetStatus), nil
}

type RequestStatus string

const (
	RequestStatusPending  RequestStatus = "Pending"
	RequestStatusApproved RequestStatus = "Approved"
	RequestStatusRejected RequestStatus = "Rejected"
	RequestStatusReturned RequestStatus = "Returned"
)

func (e *RequestStatus) Scan(src interface{}) error {
	switch s := src.(type) {
	case []byte:
		*e = RequestStatus(s)
	case string:
		*e = RequestStatus(s)
	default:
		return fmt.Errorf("unsupported scan type for RequestStatus: %T", src)
	}
	return nil
}

func (e RequestStatus) Valid() bool {
	switch e {
	case RequestStatusPending,
		RequestStatusApproved,
		RequestStatusRejected,
		RequestStatusReturned:
		return true
	}
	return false
}

type NullRequestStatus struct {
	RequestStatus RequestStatus
	Valid         bool
}

func (ns *NullRequestStatus) Scan(value interface{}) error {
	if value == nil {
		ns.RequestStatus, ns.Valid = "", false
		return nil
	}
	ns.Valid = true
	return ns.RequestStatus.Scan(value)
}

func (ns NullRequestStatus) Value() (driver.Value, error) {
	if !ns.Valid {
		return nil, nil
	}
	return string(ns.RequestStatus), nil
}

type RoleScope string

const (
	RoleScopeGlobal     RoleScope = "global"
	RoleScopeDepartment RoleScope = "department"
)

func (e *RoleScope) Scan(src interface{}) error {
	switch s := src.(type) {
	case []byte:
		*e = RoleScope(s)
	case string:
		*e = RoleScope(s)
	default:
		return fmt.Errorf("unsupported scan type for RoleScope: %T", src)
	}
	return nil
}

func (e RoleScope) Valid() bool {
	return e == RoleScopeGlobal || e == RoleScopeDepartment
}

type Asset struct {
	ID           int64              `json:"id"`
	Code         string             `json:"code"`
	Name         string             `json:"name"`
	Category     string             `json:"category"`
	Location     string             `json:"location"`
	TotalStock   int32              `json:"total_stock"`
	CurrentStock int32              `json:"current_stock"`
	Status       AssetStatus        `json:"status"`
	DepartmentID pgtype.Int8        `json:"department_id"`
	CreatedAt    pgtype.Timestamptz `json:"created_at"`
	UpdatedAt    pgtype.Timestamptz `json:"updated_at"`
}

type BorrowItem struct {
	ID            int64 `json:"id"`
	TransactionID int64 `json:"transaction_id"`
	AssetID       int64 `json:"asset_id"`
	Quantity      int32 `json:"quantity"`
}

type BorrowRequest struct {
	ID             int64              `json:"id"`
	AssetID        int64              `json:"asset_id"`
	UserID         int64              `json:"user_id"`
	Quantity       int32              `json:"quantity"`
	Status         RequestStatus      `json:"status"`
	StartDate      pgtype.Date        `json:"start_date"`
	EndDate        pgtype.Date        `json:"end_date"`
	Reason         string             `json:"reason"`
	ReviewedBy     pgtype.Int8        `json:"reviewed_by"`
	ReviewedAt     pgtype.Timestamptz `json:"reviewed_at"`
	ReturnedAt     pgtype.Timestamptz `json:"returned_at"`
	ReminderSentAt pgtype.Timestamptz `json:"reminder_sent_at"`
	CreatedAt      pgtype.Timestamptz `json:"created_at"`
	UpdatedAt      pgtype.Timestamptz `json:"updated_at"`
}

type BorrowTransaction struct {
	ID           int64              `json:"id"`
	DocumentNo   string             `json:"document_no"`
	UserID       int64              `json:"user_id"`
	Status       RequestStatus      `json:"status"`
	StartDate    pgtype.Date        `json:"start_date"`
	EndDate      pgtype.Date        `json:"end_date"`
	Reason       string             `json:"reason"`
	IsSigned     bool               `json:"is_signed"`
	SignatureKey pgtype.Text        `json:"signature_key"`
	SignedAt     pgtype.Timestamptz `json:"signed_at"`
	ReviewedBy   pgtype.Int8        `json:"reviewed_by"`
	ReviewedAt   pgtype.Timestamptz `json:"reviewed_at"`
	ReturnedAt   pgtype.Timestamptz `json:"returned_at"`
	CreatedAt    pgtype.Timestamptz `json:"created_at"`
	UpdatedAt    pgtype.Timestamptz `json:"updated_at"`
}

type Department struct {
	ID        int64              `json:"id"`
	Code      string             `json:"code"`
	Name      string             `json:"name"`
	CreatedAt pgtype.Timestamptz `json:"created_at"`
}

type Module struct {
	ID        int64  `json:"id"`
	Code      string `json:"code"`
	Name      string `json:"name"`
	Path      string `json:"path"`
	SortOrder int32  `json:"sort_order"`
	IsActive  bool   `json:"is_active"`
}

type Notification struct {
	ID         int64              `json:"id"`
	UserID     int64              `json:"user_id"`
	ActorID    pgtype.Int8        `json:"actor_id"`
	EntityType string             `json:"entity_type"`
	EntityID   int64              `json:"entity_id"`
	Message    string             `json:"message"`
	IsRead     bool               `json:"is_read"`
	CreatedAt  pgtype.Timestamptz `json:"created_at"`
}

type NotificationSetting struct {
	UserID           int64              `json:"user_id"`
	EmailOnApproval  bool               `json:"email_on_approval"`
	EmailOnRejection bool               `json:"email_on_rejection"`
	EmailOnReturn    bool               `json:"email_on_return"`
	EmailReminders   bool               `json:"email_reminders"`
	UpdatedAt        pgtype.Timestamptz `json:"updated_at"`
}

type Role struct {
	ID           int64              `json:"id"`
	Name         string             `json:"name"`
	Description  string             `json:"description"`
	Scope        RoleScope          `json:"scope"`
	DepartmentID pgtype.Int8        `json:"department_id"`
	IsShared     bool               `json:"is_shared"`
	Permissions  string             `json:"permissions"`
	IsActive     bool               `json:"is_active"`
	CreatedAt    pgtype.Timestamptz `json:"created_at"`
	UpdatedAt    pgtype.Timestamptz `json:"updated_at"`
}

type User struct {
	ID                  int64              `json:"id"`
	Email               string             `json:"email"`
	Name                string             `json:"name"`
	PasswordHash        string             `json:"password_hash"`
	RoleID              int64              `json:"role_id"`
	DepartmentID        pgtype.Int8        `json:"department_id"`
	IsActive            bool               `json:"is_active"`
	FailedLoginAttempts int32              `json:"failed_login_attempts"`
	LockedUntil         pgtype.Timestamptz `json:"locked_until"`
	LastLoginAt         pgtype.Timestamptz `json:"last_login_at"`
	CreatedAt           pgtype.Timestamptz `json:"created_at"`
}
