// Package domain defines the persistence models for the catalog, purchases,
// download audit and user profiles. These types are mapped with GORM and
// form the core data layer of the store.
package domain

import "time"

// Purchase statuses. Paid is terminal. Expired marks a pending purchase
// abandoned past its TTL; a signed settlement for any of its orders still
// moves it to paid, and a new order reopens it as pending.
const (
	StatusPending = "pending"
	StatusPaid    = "paid"
	StatusExpired = "expired"
)

// UnpaidStatuses are the statuses a settlement may move to paid.
var UnpaidStatuses = []string{StatusPending, StatusExpired}

// Profile roles.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Ebook is a downloadable product in the catalog. Ebooks are never
// hard-deleted: retiring one flips IsActive so existing purchases keep
// pointing at a valid row and file.
//
// Fields:
//   - ID: UUID primary key (char(36)).
//   - Title / Subject / Department / Exam: catalog metadata; Department is upper-cased.
//   - Price: integer rupees; orders are placed for Price*100 paise.
//   - FilePath: object path of the PDF in the file store (never exposed).
//   - CoverPath: object path of the cover image.
//   - IsActive: false once soft-deleted by an administrator.
type Ebook struct {
	ID         string    `json:"id"          gorm:"type:char(36);primaryKey"`
	Title      string    `json:"title"       gorm:"type:varchar(255);not null"`
	Subject    string    `json:"subject"     gorm:"type:varchar(255);not null"`
	Department string    `json:"department"  gorm:"type:varchar(64);not null;index:idx_ebooks_dept_active,priority:1"`
	Exam       *string   `json:"exam,omitempty" gorm:"type:varchar(128)"`
	Price      int64     `json:"price"       gorm:"not null;check:price > 0"`
	FilePath   string    `json:"-"           gorm:"type:varchar(512);not null"`
	CoverPath  string    `json:"cover_path"  gorm:"type:varchar(512);not null"`
	IsActive   bool      `json:"is_active"   gorm:"not null;index:idx_ebooks_dept_active,priority:2"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TableName returns the database table name for Ebook.
func (Ebook) TableName() string { return "ebooks" }

// Purchase records a user's intent to buy, and later ownership of, one
// ebook. There is exactly one row per (user, ebook); the row is created
// pending when a gateway order exists and is flipped to paid only by the
// server after the gateway signature checks out. OrderID is the latest
// order issued for the row until it is paid, then the order that paid it.
// Every order ever issued for the row is kept in purchase_orders.
type Purchase struct {
	ID            string     `json:"id"             gorm:"type:char(36);primaryKey"`
	UserID        string     `json:"user_id"        gorm:"type:varchar(64);not null;uniqueIndex:ux_purchases_user_ebook,priority:1"`
	EbookID       string     `json:"ebook_id"       gorm:"type:char(36);not null;uniqueIndex:ux_purchases_user_ebook,priority:2"`
	OrderID       string     `json:"order_id"       gorm:"type:varchar(64);not null;uniqueIndex:ux_purchases_order"`
	PaymentID     *string    `json:"payment_id,omitempty" gorm:"type:varchar(64)"`
	Amount        int64      `json:"amount"         gorm:"not null"`
	Currency      string     `json:"currency"       gorm:"type:char(3);not null;default:'INR'"`
	PaymentStatus string     `json:"payment_status" gorm:"type:varchar(16);not null;default:'pending';index;check:payment_status IN ('pending','paid','expired')"`
	PurchasedAt   *time.Time `json:"purchased_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`

	// Ebook is the purchased product. Restrict deletes: ebooks are soft-deleted.
	Ebook Ebook `json:"-" gorm:"foreignKey:EbookID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
}

// TableName returns the database table name for Purchase.
func (Purchase) TableName() string { return "purchases" }

// IsPaid reports whether the purchase grants an entitlement.
func (p Purchase) IsPaid() bool { return p.PaymentStatus == StatusPaid }

// PurchaseOrder is one gateway order issued for a purchase. Retried
// checkouts and second tabs add orders to the same purchase; a verified
// payment for any of them settles it.
type PurchaseOrder struct {
	OrderID    string    `json:"order_id"    gorm:"type:varchar(64);primaryKey"`
	PurchaseID string    `json:"purchase_id" gorm:"type:char(36);not null;index"`
	Amount     int64     `json:"amount"      gorm:"not null"`
	Currency   string    `json:"currency"    gorm:"type:char(3);not null"`
	CreatedAt  time.Time `json:"created_at"`

	Purchase Purchase `json:"-" gorm:"foreignKey:PurchaseID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for PurchaseOrder.
func (PurchaseOrder) TableName() string { return "purchase_orders" }

// DownloadLog is an append-only audit row written whenever a signed
// download URL is issued.
type DownloadLog struct {
	ID        string    `json:"id"         gorm:"type:char(36);primaryKey"`
	UserID    string    `json:"user_id"    gorm:"type:varchar(64);not null;index:idx_download_logs_user_ebook,priority:1"`
	EbookID   string    `json:"ebook_id"   gorm:"type:char(36);not null;index:idx_download_logs_user_ebook,priority:2"`
	CreatedAt time.Time `json:"created_at" gorm:"not null;index"`
}

// TableName returns the database table name for DownloadLog.
func (DownloadLog) TableName() string { return "download_logs" }

// Profile mirrors an auth-provider identity and carries the application
// role. It is the only source consulted for role checks.
type Profile struct {
	ID        string    `json:"id"         gorm:"type:varchar(64);primaryKey"`
	Email     string    `json:"email"      gorm:"type:varchar(255)"`
	Role      string    `json:"role"       gorm:"type:varchar(16);not null;default:'user';check:role IN ('user','admin')"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for Profile.
func (Profile) TableName() string { return "profiles" }

// IsAdmin reports whether the stored role grants administrative access.
func (p Profile) IsAdmin() bool { return p.Role == RoleAdmin }
