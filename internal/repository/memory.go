package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cobia/billing/internal/models"
)

// MemoryStore is a process-local Store. Transactions hold the store mutex
// for their whole duration and work on a copy of the tables that replaces
// the live copy only when fn succeeds.
type MemoryStore struct {
	db *memDB
	// tx is set on the Store handed to a Transaction callback.
	tx *memTables
}

type memDB struct {
	mu     sync.Mutex
	tables *memTables
}

type memTables struct {
	seq      int64
	users    map[int64]models.User
	pending  map[int64]models.PendingPayment
	payments map[int64]models.Payment
	subs     map[int64]models.Subscription // keyed by user id
	btc      map[int64]models.BTCTransaction
	locks    map[string]models.AppLock
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{db: &memDB{tables: newMemTables()}}
}

func newMemTables() *memTables {
	return &memTables{
		users:    map[int64]models.User{},
		pending:  map[int64]models.PendingPayment{},
		payments: map[int64]models.Payment{},
		subs:     map[int64]models.Subscription{},
		btc:      map[int64]models.BTCTransaction{},
		locks:    map[string]models.AppLock{},
	}
}

func (t *memTables) clone() *memTables {
	c := newMemTables()
	c.seq = t.seq
	for k, v := range t.users {
		c.users[k] = v
	}
	for k, v := range t.pending {
		c.pending[k] = v
	}
	for k, v := range t.payments {
		c.payments[k] = v
	}
	for k, v := range t.subs {
		c.subs[k] = v
	}
	for k, v := range t.btc {
		c.btc[k] = v
	}
	for k, v := range t.locks {
		c.locks[k] = v
	}
	return c
}

func (t *memTables) nextID() int64 {
	t.seq++
	return t.seq
}

func (s *MemoryStore) view(fn func(t *memTables) error) error {
	if s.tx != nil {
		return fn(s.tx)
	}
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	return fn(s.db.tables)
}

func (s *MemoryStore) Transaction(ctx context.Context, fn func(tx models.Store) error) error {
	if s.tx != nil {
		return fn(s)
	}
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}

	work := s.db.tables.clone()
	if err := fn(&MemoryStore{db: s.db, tx: work}); err != nil {
		return err
	}
	s.db.tables = work
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}

func (s *MemoryStore) Users() models.UserRepository                    { return memUsers{s} }
func (s *MemoryStore) PendingPayments() models.PendingPaymentRepository { return memPending{s} }
func (s *MemoryStore) Payments() models.PaymentRepository               { return memPayments{s} }
func (s *MemoryStore) Subscriptions() models.SubscriptionRepository     { return memSubscriptions{s} }
func (s *MemoryStore) BTCTransactions() models.BTCTransactionRepository { return memBTC{s} }
func (s *MemoryStore) Locks() models.LockRepository                     { return memLocks{s} }

func duplicate(what string) error {
	return fmt.Errorf("%s already exists: %w", what, models.ErrDuplicate)
}

type memUsers struct{ s *MemoryStore }

func (r memUsers) Create(ctx context.Context, user *models.User) error {
	return r.s.view(func(t *memTables) error {
		for _, u := range t.users {
			if u.Email == user.Email {
				return duplicate("user email")
			}
		}
		user.ID = t.nextID()
		if user.Tier == "" {
			user.Tier = models.TierFree
		}
		if user.CreatedAt.IsZero() {
			user.CreatedAt = time.Now()
		}
		t.users[user.ID] = *user
		return nil
	})
}

func (r memUsers) GetByID(ctx context.Context, id int64) (*models.User, error) {
	var out *models.User
	err := r.s.view(func(t *memTables) error {
		u, ok := t.users[id]
		if !ok {
			return models.ErrNotFound
		}
		out = &u
		return nil
	})
	return out, err
}

// GetByIDForUpdate needs no extra locking: transactions are serialized.
func (r memUsers) GetByIDForUpdate(ctx context.Context, id int64) (*models.User, error) {
	return r.GetByID(ctx, id)
}

func (r memUsers) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var out *models.User
	err := r.s.view(func(t *memTables) error {
		for _, u := range t.users {
			if u.Email == email {
				u := u
				out = &u
				return nil
			}
		}
		return models.ErrNotFound
	})
	return out, err
}

func (r memUsers) UpdateTier(ctx context.Context, id int64, tier models.Tier) error {
	return r.s.view(func(t *memTables) error {
		u, ok := t.users[id]
		if !ok {
			return models.ErrNotFound
		}
		u.Tier = tier
		t.users[id] = u
		return nil
	})
}

func (r memUsers) SetTelegramChatID(ctx context.Context, id int64, chatID string) error {
	return r.s.view(func(t *memTables) error {
		u, ok := t.users[id]
		if !ok {
			return models.ErrNotFound
		}
		u.TelegramChatID = chatID
		t.users[id] = u
		return nil
	})
}

type memPending struct{ s *MemoryStore }

func (r memPending) Create(ctx context.Context, p *models.PendingPayment) error {
	return r.s.view(func(t *memTables) error {
		for _, existing := range t.pending {
			if existing.OrderID == p.OrderID {
				return duplicate("pending payment order id")
			}
		}
		p.ID = t.nextID()
		if p.CreatedAt.IsZero() {
			p.CreatedAt = time.Now()
		}
		t.pending[p.ID] = *p
		return nil
	})
}

func (r memPending) FindByOrderAndUser(ctx context.Context, orderID string, userID int64) (*models.PendingPayment, error) {
	var out *models.PendingPayment
	err := r.s.view(func(t *memTables) error {
		for _, p := range t.pending {
			if p.OrderID == orderID && p.UserID == userID {
				p := p
				out = &p
				return nil
			}
		}
		return models.ErrNotFound
	})
	return out, err
}

func (r memPending) Delete(ctx context.Context, id int64) error {
	return r.s.view(func(t *memTables) error {
		delete(t.pending, id)
		return nil
	})
}

func (r memPending) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	var n int64
	err := r.s.view(func(t *memTables) error {
		for id, p := range t.pending {
			if p.IsExpired(now) {
				delete(t.pending, id)
				n++
			}
		}
		return nil
	})
	return n, err
}

type memPayments struct{ s *MemoryStore }

func (r memPayments) Create(ctx context.Context, p *models.Payment) error {
	return r.s.view(func(t *memTables) error {
		for _, existing := range t.payments {
			if existing.OrderID == p.OrderID {
				return duplicate("payment order id")
			}
			if existing.PaymentKey == p.PaymentKey {
				return duplicate("payment key")
			}
		}
		p.ID = t.nextID()
		if p.CreatedAt.IsZero() {
			p.CreatedAt = time.Now()
		}
		t.payments[p.ID] = *p
		return nil
	})
}

func (r memPayments) ExistsByOrderID(ctx context.Context, orderID string) (bool, error) {
	var found bool
	err := r.s.view(func(t *memTables) error {
		for _, p := range t.payments {
			if p.OrderID == orderID {
				found = true
				return nil
			}
		}
		return nil
	})
	return found, err
}

func (r memPayments) List(ctx context.Context, filter models.PaymentFilter) ([]*models.AdminPayment, int64, error) {
	page := filter.Page.Normalize()
	needle := strings.ToLower(filter.Email)
	var rows []*models.AdminPayment
	err := r.s.view(func(t *memTables) error {
		for _, p := range t.payments {
			email := t.users[p.UserID].Email
			if needle != "" && !strings.Contains(strings.ToLower(email), needle) {
				continue
			}
			rows = append(rows, &models.AdminPayment{
				ID:         p.ID,
				Email:      email,
				OrderID:    p.OrderID,
				Amount:     p.Amount,
				Method:     p.Method,
				Status:     p.Status,
				ApprovedAt: p.ApprovedAt,
			})
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].ApprovedAt.Equal(rows[j].ApprovedAt) {
			return rows[i].ApprovedAt.After(rows[j].ApprovedAt)
		}
		return rows[i].ID > rows[j].ID
	})
	total := int64(len(rows))
	return paginate(rows, page), total, nil
}

type memSubscriptions struct{ s *MemoryStore }

func (r memSubscriptions) GetByUserID(ctx context.Context, userID int64) (*models.Subscription, error) {
	var out *models.Subscription
	err := r.s.view(func(t *memTables) error {
		sub, ok := t.subs[userID]
		if !ok {
			return models.ErrNotFound
		}
		out = &sub
		return nil
	})
	return out, err
}

func (r memSubscriptions) Save(ctx context.Context, sub *models.Subscription) error {
	return r.s.view(func(t *memTables) error {
		existing, ok := t.subs[sub.UserID]
		if ok && sub.ID != existing.ID {
			return duplicate("subscription for user")
		}
		now := time.Now()
		sub.Normalize(now)
		if sub.ID == 0 {
			sub.ID = t.nextID()
			sub.CreatedAt = now
		}
		sub.UpdatedAt = now
		t.subs[sub.UserID] = *sub
		return nil
	})
}

func (r memSubscriptions) List(ctx context.Context, page models.Page) ([]*models.AdminSubscription, int64, error) {
	page = page.Normalize()
	var rows []*models.AdminSubscription
	err := r.s.view(func(t *memTables) error {
		for _, sub := range t.subs {
			rows = append(rows, &models.AdminSubscription{
				ID:        sub.ID,
				Email:     t.users[sub.UserID].Email,
				Tier:      sub.Tier,
				IsActive:  sub.IsActive,
				StartDate: sub.StartDate,
				EndDate:   sub.EndDate,
				CreatedAt: sub.CreatedAt,
				UpdatedAt: sub.UpdatedAt,
			})
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].CreatedAt.Equal(rows[j].CreatedAt) {
			return rows[i].CreatedAt.After(rows[j].CreatedAt)
		}
		return rows[i].ID > rows[j].ID
	})
	total := int64(len(rows))
	return paginate(rows, page), total, nil
}

func (r memSubscriptions) ExpiredUserIDs(ctx context.Context, now time.Time) ([]int64, error) {
	var userIDs []int64
	err := r.s.view(func(t *memTables) error {
		for userID, sub := range t.subs {
			if sub.IsActive && sub.IsExpired(now) {
				userIDs = append(userIDs, userID)
			}
		}
		return nil
	})
	sort.Slice(userIDs, func(i, j int) bool { return userIDs[i] < userIDs[j] })
	return userIDs, err
}

func (r memSubscriptions) ExpireDue(ctx context.Context, userIDs []int64, now time.Time) ([]int64, error) {
	var expired []int64
	err := r.s.view(func(t *memTables) error {
		for _, userID := range userIDs {
			sub, ok := t.subs[userID]
			if !ok || !sub.IsActive || !sub.IsExpired(now) {
				continue
			}
			sub.IsActive = false
			sub.UpdatedAt = now
			t.subs[userID] = sub
			expired = append(expired, userID)
		}
		return nil
	})
	return expired, err
}

type memBTC struct{ s *MemoryStore }

func (r memBTC) Create(ctx context.Context, tx *models.BTCTransaction) error {
	return r.s.view(func(t *memTables) error {
		for _, existing := range t.btc {
			if strings.EqualFold(existing.TxHash, tx.TxHash) {
				return duplicate("btc transaction hash")
			}
		}
		tx.ID = t.nextID()
		if tx.CreatedAt.IsZero() {
			tx.CreatedAt = time.Now()
		}
		t.btc[tx.ID] = *tx
		return nil
	})
}

func (r memBTC) LatestByUserID(ctx context.Context, userID int64) (*models.BTCTransaction, error) {
	var out *models.BTCTransaction
	err := r.s.view(func(t *memTables) error {
		for _, tx := range t.btc {
			if tx.UserID != userID {
				continue
			}
			if out == nil || tx.CreatedAt.After(out.CreatedAt) ||
				(tx.CreatedAt.Equal(out.CreatedAt) && tx.ID > out.ID) {
				tx := tx
				out = &tx
			}
		}
		if out == nil {
			return models.ErrNotFound
		}
		return nil
	})
	return out, err
}

type memLocks struct{ s *MemoryStore }

func (r memLocks) Acquire(ctx context.Context, name, instanceID string, ttl time.Duration) (bool, error) {
	acquired := false
	err := r.s.view(func(t *memTables) error {
		now := time.Now()
		if held, ok := t.locks[name]; ok && held.InstanceID != instanceID && held.ExpiresAt >= now.Unix() {
			return nil
		}
		t.locks[name] = models.AppLock{
			LockName:   name,
			InstanceID: instanceID,
			AcquiredAt: now.Unix(),
			ExpiresAt:  now.Add(ttl).Unix(),
		}
		acquired = true
		return nil
	})
	return acquired, err
}

func (r memLocks) Release(ctx context.Context, name, instanceID string) error {
	return r.s.view(func(t *memTables) error {
		if held, ok := t.locks[name]; ok && held.InstanceID == instanceID {
			delete(t.locks, name)
		}
		return nil
	})
}

func paginate[T any](rows []T, page models.Page) []T {
	if page.Offset >= len(rows) {
		return []T{}
	}
	end := page.Offset + page.Limit
	if end > len(rows) {
		end = len(rows)
	}
	return rows[page.Offset:end]
}
