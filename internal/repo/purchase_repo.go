// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Purchase
// model and the gateway orders issued for it.
//
// The unpaid -> paid transition is a single conditional UPDATE guarded by
// payment_status IN ('pending','expired'), so two concurrent callers racing
// on the same purchase observe exactly one affected row between them.
// Nothing in this file ever moves a row from paid back to unpaid.
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/engibriefs-store/internal/domain"
)

// CreatePendingPurchase inserts a pending purchase for a freshly created
// gateway order and records the order against it. It returns ErrDuplicate
// when the (user, ebook) pair or the order id already has a row.
func CreatePendingPurchase(ctx context.Context, db *gorm.DB, userID, ebookID, orderID string, amount int64, currency string) (*domain.Purchase, error) {
	now := time.Now().UTC()
	p := &domain.Purchase{
		ID:            uuid.NewString(),
		UserID:        userID,
		EbookID:       ebookID,
		OrderID:       orderID,
		Amount:        amount,
		Currency:      currency,
		PaymentStatus: domain.StatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(p).Error; err != nil {
			return err
		}
		return tx.Omit(clause.Associations).Create(&domain.PurchaseOrder{
			OrderID:    orderID,
			PurchaseID: p.ID,
			Amount:     amount,
			Currency:   currency,
			CreatedAt:  now,
		}).Error
	})
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return p, nil
}

// AddPurchaseOrder records another gateway order for an unpaid purchase and
// makes it the row's current order. Orders issued earlier stay settleable.
// An expired row is reopened as pending. It returns ErrNotFound when the row
// is gone or already paid.
func AddPurchaseOrder(ctx context.Context, db *gorm.DB, purchaseID, orderID string, amount int64, currency string) error {
	now := time.Now().UTC()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&domain.Purchase{}).
			Where("id = ? AND payment_status IN ?", purchaseID, domain.UnpaidStatuses).
			Updates(map[string]any{
				"order_id":       orderID,
				"amount":         amount,
				"currency":       currency,
				"payment_status": domain.StatusPending,
				"updated_at":     now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return tx.Omit(clause.Associations).Create(&domain.PurchaseOrder{
			OrderID:    orderID,
			PurchaseID: purchaseID,
			Amount:     amount,
			Currency:   currency,
			CreatedAt:  now,
		}).Error
	})
	if err != nil && isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

// GetPurchaseOrder returns one issued order with its purchase preloaded,
// or ErrNotFound.
func GetPurchaseOrder(ctx context.Context, db *gorm.DB, orderID string) (*domain.PurchaseOrder, error) {
	var o domain.PurchaseOrder
	if err := db.WithContext(ctx).Preload("Purchase").Where("order_id = ?", orderID).First(&o).Error; err != nil {
		return nil, err
	}
	return &o, nil
}

// ListPurchaseOrders returns every order issued for a purchase, oldest first.
func ListPurchaseOrders(ctx context.Context, db *gorm.DB, purchaseID string) ([]domain.PurchaseOrder, error) {
	var out []domain.PurchaseOrder
	err := db.WithContext(ctx).
		Where("purchase_id = ?", purchaseID).
		Order("created_at asc, order_id asc").
		Find(&out).Error
	return out, err
}

// GetPurchaseByUserEbook returns the single row for (userID, ebookID) in
// any status, or ErrNotFound.
func GetPurchaseByUserEbook(ctx context.Context, db *gorm.DB, userID, ebookID string) (*domain.Purchase, error) {
	var p domain.Purchase
	err := db.WithContext(ctx).
		Where("user_id = ? AND ebook_id = ?", userID, ebookID).
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetPurchaseByOrderID returns the row that any issued gateway order id
// belongs to, or ErrNotFound.
func GetPurchaseByOrderID(ctx context.Context, db *gorm.DB, orderID string) (*domain.Purchase, error) {
	var p domain.Purchase
	sub := db.Model(&domain.PurchaseOrder{}).Select("purchase_id").Where("order_id = ?", orderID)
	if err := db.WithContext(ctx).Where("id IN (?)", sub).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// MarkPurchasePaid performs the compare-and-swap unpaid -> paid for the
// purchase orderID belongs to, storing paidAt, the paying order and, when
// known, paymentID. It reports whether this call made the transition; false
// with a nil error means the order is unknown or its purchase is already
// paid.
func MarkPurchasePaid(ctx context.Context, db *gorm.DB, orderID, paymentID string, paidAt time.Time) (bool, error) {
	var o domain.PurchaseOrder
	err := db.WithContext(ctx).Where("order_id = ?", orderID).First(&o).Error
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	fields := map[string]any{
		"payment_status": domain.StatusPaid,
		"order_id":       o.OrderID,
		"amount":         o.Amount,
		"currency":       o.Currency,
		"purchased_at":   paidAt.UTC(),
		"updated_at":     paidAt.UTC(),
	}
	if paymentID != "" {
		fields["payment_id"] = paymentID
	}
	res := db.WithContext(ctx).
		Model(&domain.Purchase{}).
		Where("id = ? AND payment_status IN ?", o.PurchaseID, domain.UnpaidStatuses).
		Updates(fields)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// GetPaidPurchase returns the paid row for (userID, ebookID) or ErrNotFound.
func GetPaidPurchase(ctx context.Context, db *gorm.DB, userID, ebookID string) (*domain.Purchase, error) {
	var p domain.Purchase
	err := db.WithContext(ctx).
		Where("user_id = ? AND ebook_id = ? AND payment_status = ?", userID, ebookID, domain.StatusPaid).
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListPaidPurchases returns a user's paid purchases with their ebooks
// preloaded, most recent first. Soft-deleted ebooks are included.
func ListPaidPurchases(ctx context.Context, db *gorm.DB, userID string) ([]domain.Purchase, error) {
	var out []domain.Purchase
	err := db.WithContext(ctx).
		Preload("Ebook").
		Where("user_id = ? AND payment_status = ?", userID, domain.StatusPaid).
		Order("purchased_at desc, id asc").
		Find(&out).Error
	return out, err
}

// ExpireStalePending marks pending rows last touched before cutoff as
// expired. The rows and their orders are kept so a late signed settlement
// can still pay them. Paid rows are never matched.
func ExpireStalePending(ctx context.Context, db *gorm.DB, cutoff time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Model(&domain.Purchase{}).
		Where("payment_status = ? AND updated_at < ?", domain.StatusPending, cutoff.UTC()).
		Updates(map[string]any{
			"payment_status": domain.StatusExpired,
			"updated_at":     time.Now().UTC(),
		})
	return res.RowsAffected, res.Error
}
