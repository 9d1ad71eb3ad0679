package repository

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cobia/billing/internal/models"
)

type pgUsers struct {
	conn *gorm.DB
}

func (r *pgUsers) Create(ctx context.Context, user *models.User) error {
	if err := r.conn.WithContext(ctx).Create(user).Error; err != nil {
		return translate(err, "create user")
	}
	return nil
}

func (r *pgUsers) GetByID(ctx context.Context, id int64) (*models.User, error) {
	var user models.User
	if err := r.conn.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, translate(err, "get user")
	}
	return &user, nil
}

func (r *pgUsers) GetByIDForUpdate(ctx context.Context, id int64) (*models.User, error) {
	var user models.User
	if err := r.conn.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).First(&user, id).Error; err != nil {
		return nil, translate(err, "lock user")
	}
	return &user, nil
}

func (r *pgUsers) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.conn.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, translate(err, "get user by email")
	}
	return &user, nil
}

func (r *pgUsers) UpdateTier(ctx context.Context, id int64, tier models.Tier) error {
	res := r.conn.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("tier", tier)
	if res.Error != nil {
		return translate(res.Error, "update user tier")
	}
	if res.RowsAffected == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *pgUsers) SetTelegramChatID(ctx context.Context, id int64, chatID string) error {
	res := r.conn.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("telegram_chat_id", chatID)
	if res.Error != nil {
		return translate(res.Error, "set telegram chat id")
	}
	if res.RowsAffected == 0 {
		return models.ErrNotFound
	}
	return nil
}

type pgPendingPayments struct {
	conn *gorm.DB
}

func (r *pgPendingPayments) Create(ctx context.Context, p *models.PendingPayment) error {
	if err := r.conn.WithContext(ctx).Create(p).Error; err != nil {
		return translate(err, "create pending payment")
	}
	return nil
}

func (r *pgPendingPayments) FindByOrderAndUser(ctx context.Context, orderID string, userID int64) (*models.PendingPayment, error) {
	var p models.PendingPayment
	if err := r.conn.WithContext(ctx).Where("order_id = ? AND user_id = ?", orderID, userID).First(&p).Error; err != nil {
		return nil, translate(err, "find pending payment")
	}
	return &p, nil
}

func (r *pgPendingPayments) Delete(ctx context.Context, id int64) error {
	if err := r.conn.WithContext(ctx).Delete(&models.PendingPayment{}, id).Error; err != nil {
		return translate(err, "delete pending payment")
	}
	return nil
}

func (r *pgPendingPayments) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res := r.conn.WithContext(ctx).Where("expires_at < ?", now).Delete(&models.PendingPayment{})
	if res.Error != nil {
		return 0, translate(res.Error, "delete expired pending payments")
	}
	return res.RowsAffected, nil
}

type pgPayments struct {
	conn *gorm.DB
}

func (r *pgPayments) Create(ctx context.Context, p *models.Payment) error {
	if err := r.conn.WithContext(ctx).Create(p).Error; err != nil {
		return translate(err, "create payment")
	}
	return nil
}

func (r *pgPayments) ExistsByOrderID(ctx context.Context, orderID string) (bool, error) {
	var count int64
	if err := r.conn.WithContext(ctx).Model(&models.Payment{}).Where("order_id = ?", orderID).Count(&count).Error; err != nil {
		return false, translate(err, "check payment order id")
	}
	return count > 0, nil
}

func (r *pgPayments) List(ctx context.Context, filter models.PaymentFilter) ([]*models.AdminPayment, int64, error) {
	page := filter.Page.Normalize()
	q := r.conn.WithContext(ctx).
		Table("payments").
		Joins("JOIN users ON users.id = payments.user_id")
	if filter.Email != "" {
		q = q.Where("users.email ILIKE ?", "%"+escapeLike(filter.Email)+"%")
	}
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, translate(err, "count payments")
	}

	var rows []*models.AdminPayment
	err := q.Select("payments.id, users.email, payments.order_id, payments.amount, payments.method, payments.status, payments.approved_at").
		Order("payments.approved_at DESC, payments.id DESC").
		Limit(page.Limit).
		Offset(page.Offset).
		Scan(&rows).Error
	if err != nil {
		return nil, 0, translate(err, "list payments")
	}
	return rows, total, nil
}

type pgSubscriptions struct {
	conn *gorm.DB
}

func (r *pgSubscriptions) GetByUserID(ctx context.Context, userID int64) (*models.Subscription, error) {
	var s models.Subscription
	if err := r.conn.WithContext(ctx).Where("user_id = ?", userID).First(&s).Error; err != nil {
		return nil, translate(err, "get subscription")
	}
	return &s, nil
}

// Save inserts or updates the row. The BeforeSave hook re-derives IsActive.
func (r *pgSubscriptions) Save(ctx context.Context, s *models.Subscription) error {
	if err := r.conn.WithContext(ctx).Save(s).Error; err != nil {
		return translate(err, "save subscription")
	}
	return nil
}

func (r *pgSubscriptions) List(ctx context.Context, page models.Page) ([]*models.AdminSubscription, int64, error) {
	page = page.Normalize()
	q := r.conn.WithContext(ctx).
		Table("subscriptions").
		Joins("JOIN users ON users.id = subscriptions.user_id").
		Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, translate(err, "count subscriptions")
	}

	var rows []*models.AdminSubscription
	err := q.Select("subscriptions.id, users.email, subscriptions.tier, subscriptions.is_active, subscriptions.start_date, subscriptions.end_date, subscriptions.created_at, subscriptions.updated_at").
		Order("subscriptions.created_at DESC, subscriptions.id DESC").
		Limit(page.Limit).
		Offset(page.Offset).
		Scan(&rows).Error
	if err != nil {
		return nil, 0, translate(err, "list subscriptions")
	}
	return rows, total, nil
}

func (r *pgSubscriptions) ExpiredUserIDs(ctx context.Context, now time.Time) ([]int64, error) {
	var userIDs []int64
	err := r.conn.WithContext(ctx).
		Model(&models.Subscription{}).
		Where("is_active = ? AND end_date IS NOT NULL AND end_date < ?", true, now).
		Order("user_id").
		Pluck("user_id", &userIDs).Error
	if err != nil {
		return nil, translate(err, "find expired subscriptions")
	}
	return userIDs, nil
}

func (r *pgSubscriptions) ExpireDue(ctx context.Context, userIDs []int64, now time.Time) ([]int64, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}

	// The expiry condition is re-evaluated by the UPDATE itself, so a row
	// renewed since ExpiredUserIDs is left alone.
	var expired []models.Subscription
	err := r.conn.WithContext(ctx).
		Model(&expired).
		Clauses(clause.Returning{Columns: []clause.Column{{Name: "user_id"}}}).
		Where("user_id IN ? AND is_active = ? AND end_date IS NOT NULL AND end_date < ?", userIDs, true, now).
		UpdateColumns(map[string]interface{}{"is_active": false, "updated_at": now}).Error
	if err != nil {
		return nil, translate(err, "deactivate expired subscriptions")
	}

	ids := make([]int64, 0, len(expired))
	for _, sub := range expired {
		ids = append(ids, sub.UserID)
	}
	return ids, nil
}

type pgBTCTransactions struct {
	conn *gorm.DB
}

func (r *pgBTCTransactions) Create(ctx context.Context, tx *models.BTCTransaction) error {
	if err := r.conn.WithContext(ctx).Create(tx).Error; err != nil {
		return translate(err, "create btc transaction")
	}
	return nil
}

func (r *pgBTCTransactions) LatestByUserID(ctx context.Context, userID int64) (*models.BTCTransaction, error) {
	var tx models.BTCTransaction
	err := r.conn.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		First(&tx).Error
	if err != nil {
		return nil, translate(err, "get latest btc transaction")
	}
	return &tx, nil
}

type pgLocks struct {
	conn *gorm.DB
}

func (r *pgLocks) Acquire(ctx context.Context, name, instanceID string, ttl time.Duration) (bool, error) {
	now := time.Now()
	lock := models.AppLock{
		LockName:   name,
		InstanceID: instanceID,
		AcquiredAt: now.Unix(),
		ExpiresAt:  now.Add(ttl).Unix(),
	}
	res := r.conn.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "lock_name"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"instance_id": lock.InstanceID,
			"acquired_at": lock.AcquiredAt,
			"expires_at":  lock.ExpiresAt,
		}),
		Where: clause.Where{Exprs: []clause.Expression{
			clause.Expr{SQL: "app_locks.expires_at < ? OR app_locks.instance_id = ?", Vars: []interface{}{lock.AcquiredAt, instanceID}},
		}},
	}).Create(&lock)
	if res.Error != nil {
		return false, translate(res.Error, "acquire lock")
	}
	return res.RowsAffected > 0, nil
}

func (r *pgLocks) Release(ctx context.Context, name, instanceID string) error {
	err := r.conn.WithContext(ctx).
		Where("lock_name = ? AND instance_id = ?", name, instanceID).
		Delete(&models.AppLock{}).Error
	if err != nil {
		return translate(err, "release lock")
	}
	return nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
