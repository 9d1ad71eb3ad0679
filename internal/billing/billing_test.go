package billing

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cobia/billing/internal/models"
	"github.com/cobia/billing/internal/repository"
	"github.com/cobia/billing/pkg/apperror"
	"github.com/cobia/billing/pkg/logger"
)

type stubGateway struct {
	mu     sync.Mutex
	status string
	err    error
	calls  int
}

func (g *stubGateway) Confirm(ctx context.Context, paymentKey, orderID string, amount int64) (*models.GatewayResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.err != nil {
		return nil, g.err
	}
	status := g.status
	if status == "" {
		status = models.GatewayStatusDone
	}
	return &models.GatewayResult{
		PaymentKey: paymentKey,
		OrderID:    orderID,
		Status:     status,
		Method:     "CARD",
		ApprovedAt: time.Now(),
	}, nil
}

func (g *stubGateway) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

type fixture struct {
	billing *Billing
	store   models.Store
	gateway *stubGateway
	user    *models.User
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	store := repository.NewMemoryStore()
	gw := &stubGateway{}
	user := &models.User{Email: "user@example.com"}
	if err := store.Users().Create(context.Background(), user); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return &fixture{
		billing: New(store, gw, nil, logger.NewNop(), opts),
		store:   store,
		gateway: gw,
		user:    user,
	}
}

func (f *fixture) addUser(t *testing.T, email string, admin bool) *models.User {
	t.Helper()
	u := &models.User{Email: email, IsAdmin: admin}
	if err := f.store.Users().Create(context.Background(), u); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func (f *fixture) initiate(t *testing.T, tier models.Tier) *models.PendingPayment {
	t.Helper()
	intent, err := f.billing.InitiatePayment(context.Background(), f.user, tier)
	if err != nil {
		t.Fatalf("InitiatePayment(%s): %v", tier, err)
	}
	return intent
}

func (f *fixture) intentExists(t *testing.T, orderID string) bool {
	t.Helper()
	_, err := f.store.PendingPayments().FindByOrderAndUser(context.Background(), orderID, f.user.ID)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("FindByOrderAndUser: %v", err)
	}
	return err == nil
}

func wantCode(t *testing.T, err error, code apperror.Code, status int) {
	t.Helper()
	var appErr *apperror.Error
	if !errors.As(err, &appErr) {
		t.Fatalf("error = %v, want %s", err, code)
	}
	if appErr.Code != code || appErr.Status != status {
		t.Fatalf("error = %s/%d, want %s/%d", appErr.Code, appErr.Status, code, status)
	}
}

func TestInitiatePayment(t *testing.T) {
	f := newFixture(t, Options{})
	intent := f.initiate(t, models.TierPro)

	if intent.Amount != models.TierPrices[models.TierPro] {
		t.Errorf("amount = %d, want pro price", intent.Amount)
	}
	if !strings.HasPrefix(intent.OrderID, orderIDPrefix) || len(intent.OrderID) != len(orderIDPrefix)+8 {
		t.Errorf("order id = %q", intent.OrderID)
	}
	if strings.ToUpper(intent.OrderID) != intent.OrderID {
		t.Errorf("order id %q is not uppercase", intent.OrderID)
	}
	window := intent.ExpiresAt.Sub(intent.CreatedAt)
	if window != models.PendingPaymentWindow {
		t.Errorf("expiry window = %s", window)
	}

	for _, tier := range []models.Tier{models.TierFree, "platinum"} {
		_, err := f.billing.InitiatePayment(context.Background(), f.user, tier)
		wantCode(t, err, apperror.CodeInvalidTier, http.StatusBadRequest)
	}
}

func TestConfirmPaymentActivatesPro(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	intent := f.initiate(t, models.TierPro)

	payment, err := f.billing.ConfirmPayment(ctx, f.user, models.ConfirmPaymentRequest{
		PaymentKey: "pk_live_1", OrderID: intent.OrderID, Amount: intent.Amount,
	})
	if err != nil {
		t.Fatalf("ConfirmPayment: %v", err)
	}
	if payment.ID == 0 || payment.Status != models.PaymentStatusSuccess || payment.Amount != 99000 {
		t.Errorf("payment = %+v", payment)
	}
	if f.intentExists(t, intent.OrderID) {
		t.Error("intent not deleted after confirmation")
	}

	rows, total, err := f.store.Payments().List(ctx, models.PaymentFilter{})
	if err != nil || total != 1 || len(rows) != 1 {
		t.Fatalf("payments = %d rows, total %d, err %v; want exactly one", len(rows), total, err)
	}

	sub, err := f.store.Subscriptions().GetByUserID(ctx, f.user.ID)
	if err != nil {
		t.Fatalf("GetByUserID: %v", err)
	}
	if sub.Tier != models.TierPro || !sub.IsActive {
		t.Errorf("subscription = %+v", sub)
	}
	wantEnd := time.Now().Add(models.SubscriptionPeriod)
	if d := sub.EndDate.Sub(wantEnd); d > time.Minute || d < -time.Minute {
		t.Errorf("end date = %s, want about %s", sub.EndDate, wantEnd)
	}
	user, _ := f.store.Users().GetByID(ctx, f.user.ID)
	if user.Tier != models.TierPro {
		t.Errorf("user tier = %s, want pro", user.Tier)
	}
}

func TestConfirmPaymentActivatesWhale(t *testing.T) {
	f := newFixture(t, Options{})
	intent := f.initiate(t, models.TierWhale)

	if _, err := f.billing.ConfirmPayment(context.Background(), f.user, models.ConfirmPaymentRequest{
		PaymentKey: "pk_whale", OrderID: intent.OrderID, Amount: 990000,
	}); err != nil {
		t.Fatalf("ConfirmPayment: %v", err)
	}
	status, err := f.billing.SubscriptionStatus(context.Background(), f.user.ID)
	if err != nil {
		t.Fatalf("SubscriptionStatus: %v", err)
	}
	if status.Tier != models.TierWhale || !status.IsActive {
		t.Errorf("status = %+v", status)
	}
}

func TestConfirmPaymentTwice(t *testing.T) {
	f := newFixture(t, Options{})
	intent := f.initiate(t, models.TierPro)
	req := models.ConfirmPaymentRequest{PaymentKey: "pk_1", OrderID: intent.OrderID, Amount: intent.Amount}

	if _, err := f.billing.ConfirmPayment(context.Background(), f.user, req); err != nil {
		t.Fatalf("first confirmation: %v", err)
	}
	_, err := f.billing.ConfirmPayment(context.Background(), f.user, req)
	wantCode(t, err, apperror.CodeDuplicatePayment, http.StatusConflict)

	if f.gateway.Calls() != 1 {
		t.Errorf("gateway called %d times, want 1", f.gateway.Calls())
	}
}

func TestConfirmPaymentConcurrent(t *testing.T) {
	f := newFixture(t, Options{})
	intent := f.initiate(t, models.TierPro)

	const n = 8
	errs := make(chan error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.billing.ConfirmPayment(context.Background(), f.user, models.ConfirmPaymentRequest{
				PaymentKey: "pk_race", OrderID: intent.OrderID, Amount: intent.Amount,
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		switch {
		case err == nil:
			succeeded++
		case apperror.Is(err, apperror.CodeDuplicatePayment), apperror.Is(err, apperror.CodeInvalidOrderID):
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 {
		t.Errorf("%d confirmations succeeded, want exactly 1", succeeded)
	}
}

func TestConfirmPaymentExpired(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	intent, err := f.billing.ledger.CreateIntent(ctx, f.store, f.user.ID, NewOrderID(), 99000)
	if err != nil {
		t.Fatalf("CreateIntent: %v", err)
	}
	f.billing.now = func() time.Time { return time.Now().Add(models.PendingPaymentWindow + time.Minute) }

	_, err = f.billing.ConfirmPayment(ctx, f.user, models.ConfirmPaymentRequest{
		PaymentKey: "pk_1", OrderID: intent.OrderID, Amount: intent.Amount,
	})
	wantCode(t, err, apperror.CodePaymentExpired, http.StatusBadRequest)

	if f.intentExists(t, intent.OrderID) {
		t.Error("expired intent still exists")
	}
	if f.gateway.Calls() != 0 {
		t.Error("gateway called for an expired intent")
	}
}

func TestConfirmPaymentAmountMismatch(t *testing.T) {
	f := newFixture(t, Options{})
	intent := f.initiate(t, models.TierPro)

	_, err := f.billing.ConfirmPayment(context.Background(), f.user, models.ConfirmPaymentRequest{
		PaymentKey: "pk_1", OrderID: intent.OrderID, Amount: intent.Amount - 1,
	})
	wantCode(t, err, apperror.CodeAmountMismatch, http.StatusBadRequest)

	if !f.intentExists(t, intent.OrderID) {
		t.Error("intent deleted on amount mismatch")
	}
}

func TestConfirmPaymentRejections(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	intent := f.initiate(t, models.TierPro)
	stranger := f.addUser(t, "stranger@example.com", false)

	_, err := f.billing.ConfirmPayment(ctx, f.user, models.ConfirmPaymentRequest{OrderID: intent.OrderID, Amount: intent.Amount})
	wantCode(t, err, apperror.CodeMissingParameters, http.StatusBadRequest)

	_, err = f.billing.ConfirmPayment(ctx, stranger, models.ConfirmPaymentRequest{PaymentKey: "pk", OrderID: intent.OrderID, Amount: intent.Amount})
	wantCode(t, err, apperror.CodeInvalidOrderID, http.StatusBadRequest)

	_, err = f.billing.ConfirmPayment(ctx, f.user, models.ConfirmPaymentRequest{PaymentKey: "pk", OrderID: "COBIA-UNKNOWN0", Amount: intent.Amount})
	wantCode(t, err, apperror.CodeInvalidOrderID, http.StatusBadRequest)
}

func TestConfirmPaymentGatewayFailures(t *testing.T) {
	tests := []struct {
		name       string
		gatewayErr error
		status     string
		wantCode   apperror.Code
		wantStatus int
	}{
		{
			name:       "rejected",
			gatewayErr: &models.GatewayError{StatusCode: 400, Code: "REJECT_CARD_COMPANY", Message: "Card declined"},
			wantCode:   apperror.CodePaymentConfirmationFailed,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "unreachable",
			gatewayErr: errors.New("dial tcp: connection refused"),
			wantCode:   apperror.CodeExternalService,
			wantStatus: http.StatusInternalServerError,
		},
		{
			name:       "not done",
			status:     "WAITING_FOR_DEPOSIT",
			wantCode:   apperror.CodeInvalidPaymentStatus,
			wantStatus: http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, Options{})
			f.gateway.err = tt.gatewayErr
			f.gateway.status = tt.status
			intent := f.initiate(t, models.TierPro)

			_, err := f.billing.ConfirmPayment(context.Background(), f.user, models.ConfirmPaymentRequest{
				PaymentKey: "pk_1", OrderID: intent.OrderID, Amount: intent.Amount,
			})
			wantCode(t, err, tt.wantCode, tt.wantStatus)

			if !f.intentExists(t, intent.OrderID) {
				t.Error("intent deleted after gateway failure")
			}
			exists, _ := f.store.Payments().ExistsByOrderID(context.Background(), intent.OrderID)
			if exists {
				t.Error("payment persisted after gateway failure")
			}
		})
	}
}

func TestConfirmPaymentGatewayDetail(t *testing.T) {
	f := newFixture(t, Options{})
	f.gateway.err = &models.GatewayError{StatusCode: 400, Code: "INVALID_CARD_EXPIRATION", Message: "Card expired"}
	intent := f.initiate(t, models.TierPro)

	_, err := f.billing.ConfirmPayment(context.Background(), f.user, models.ConfirmPaymentRequest{
		PaymentKey: "pk_1", OrderID: intent.OrderID, Amount: intent.Amount,
	})
	appErr := apperror.From(err)
	if appErr.Message != "Card expired" || appErr.Details["gateway_code"] != "INVALID_CARD_EXPIRATION" {
		t.Errorf("error = %+v", appErr)
	}
}

// failingSubscriptions makes every subscription write fail so the
// confirmation transaction has to roll back.
type failingSubscriptions struct {
	models.SubscriptionRepository
}

func (failingSubscriptions) Save(context.Context, *models.Subscription) error {
	return errors.New("disk full")
}

type failingStore struct {
	models.Store
}

func (s failingStore) Subscriptions() models.SubscriptionRepository {
	return failingSubscriptions{s.Store.Subscriptions()}
}

func (s failingStore) Transaction(ctx context.Context, fn func(tx models.Store) error) error {
	return s.Store.Transaction(ctx, func(tx models.Store) error {
		return fn(failingStore{tx})
	})
}

func TestConfirmPaymentRollsBackOnActivationFailure(t *testing.T) {
	f := newFixture(t, Options{})
	f.billing.store = failingStore{f.store}
	intent := f.initiate(t, models.TierPro)

	_, err := f.billing.ConfirmPayment(context.Background(), f.user, models.ConfirmPaymentRequest{
		PaymentKey: "pk_1", OrderID: intent.OrderID, Amount: intent.Amount,
	})
	wantCode(t, apperror.From(err), apperror.CodeInternal, http.StatusInternalServerError)

	exists, _ := f.store.Payments().ExistsByOrderID(context.Background(), intent.OrderID)
	if exists {
		t.Error("payment persisted although subscription activation failed")
	}
	if !f.intentExists(t, intent.OrderID) {
		t.Error("intent deleted although the transaction rolled back")
	}
}

func TestActivateRenewalPolicies(t *testing.T) {
	tests := []struct {
		name    string
		policy  RenewalPolicy
		first   models.Tier
		second  models.Tier
		wantEnd time.Duration
	}{
		{"extend same tier", RenewalExtend, models.TierPro, models.TierPro, 2 * models.SubscriptionPeriod},
		{"extend tier change", RenewalExtend, models.TierPro, models.TierWhale, models.SubscriptionPeriod},
		{"reset same tier", RenewalReset, models.TierPro, models.TierPro, models.SubscriptionPeriod},
		{"reset tier change", RenewalReset, models.TierPro, models.TierWhale, models.SubscriptionPeriod},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, Options{Renewal: tt.policy})
			ctx := context.Background()
			start := time.Now()

			if _, err := f.billing.ActivateSubscription(ctx, f.user.ID, tt.first); err != nil {
				t.Fatalf("first activation: %v", err)
			}
			sub, err := f.billing.ActivateSubscription(ctx, f.user.ID, tt.second)
			if err != nil {
				t.Fatalf("renewal: %v", err)
			}
			if sub.Tier != tt.second {
				t.Errorf("tier = %s, want %s", sub.Tier, tt.second)
			}
			got := sub.EndDate.Sub(start)
			if d := got - tt.wantEnd; d > time.Minute || d < -time.Minute {
				t.Errorf("end date is %s after start, want about %s", got, tt.wantEnd)
			}
		})
	}
}

func TestActivateAfterExpiryStartsFromNow(t *testing.T) {
	f := newFixture(t, Options{Renewal: RenewalExtend})
	ctx := context.Background()
	past := time.Now().Add(-48 * time.Hour)
	if err := f.store.Subscriptions().Save(ctx, &models.Subscription{UserID: f.user.ID, Tier: models.TierPro, EndDate: &past, IsActive: true}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	sub, err := f.billing.ActivateSubscription(ctx, f.user.ID, models.TierPro)
	if err != nil {
		t.Fatalf("ActivateSubscription: %v", err)
	}
	wantEnd := time.Now().Add(models.SubscriptionPeriod)
	if d := sub.EndDate.Sub(wantEnd); d > time.Minute || d < -time.Minute {
		t.Errorf("end date = %s, want about %s", sub.EndDate, wantEnd)
	}
}

func TestActivateRejectsFreeTier(t *testing.T) {
	f := newFixture(t, Options{})
	_, err := f.billing.ActivateSubscription(context.Background(), f.user.ID, models.TierFree)
	wantCode(t, err, apperror.CodeInvalidTier, http.StatusBadRequest)

	_, err = f.billing.ActivateSubscription(context.Background(), 9999, models.TierPro)
	wantCode(t, err, apperror.CodeUserNotFound, http.StatusNotFound)
}

func TestExpiredSubscriptionReadsInactive(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	past := time.Now().Add(-time.Hour)
	if err := f.store.Subscriptions().Save(ctx, &models.Subscription{UserID: f.user.ID, Tier: models.TierWhale, EndDate: &past, IsActive: true}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	status, err := f.billing.SubscriptionStatus(ctx, f.user.ID)
	if err != nil {
		t.Fatalf("SubscriptionStatus: %v", err)
	}
	if status.IsActive {
		t.Error("expired subscription reported active")
	}

	other := f.addUser(t, "nosub@example.com", false)
	status, err = f.billing.SubscriptionStatus(ctx, other.ID)
	if err != nil {
		t.Fatalf("SubscriptionStatus: %v", err)
	}
	if status.Tier != models.TierFree || status.IsActive || status.EndDate != nil {
		t.Errorf("status without subscription = %+v", status)
	}
}

func TestSweep(t *testing.T) {
	f := newFixture(t, Options{InstanceID: "instance-a"})
	ctx := context.Background()

	stale, err := f.billing.ledger.CreateIntent(ctx, f.store, f.user.ID, NewOrderID(), 99000)
	if err != nil {
		t.Fatalf("CreateIntent: %v", err)
	}
	if _, err := f.billing.ActivateSubscription(ctx, f.user.ID, models.TierPro); err != nil {
		t.Fatalf("ActivateSubscription: %v", err)
	}

	// Another instance holds the lock: nothing happens.
	if ok, _ := f.store.Locks().Acquire(ctx, sweeperLockName, "instance-b", time.Hour); !ok {
		t.Fatal("could not take lock for instance-b")
	}
	f.billing.now = func() time.Time { return time.Now().Add(models.SubscriptionPeriod + time.Hour) }
	if err := f.billing.Sweep(ctx); err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if !f.intentExists(t, stale.OrderID) {
		t.Fatal("sweep ran without holding the lock")
	}

	if err := f.store.Locks().Release(ctx, sweeperLockName, "instance-b"); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if err := f.billing.Sweep(ctx); err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if f.intentExists(t, stale.OrderID) {
		t.Error("expired intent survived the sweep")
	}
	sub, _ := f.store.Subscriptions().GetByUserID(ctx, f.user.ID)
	if sub.IsActive {
		t.Error("lapsed subscription still active after sweep")
	}
	user, _ := f.store.Users().GetByID(ctx, f.user.ID)
	if user.Tier != models.TierFree {
		t.Errorf("user tier = %s after expiry, want free", user.Tier)
	}
}

// renewingSubscriptions renews the user's subscription right after the
// sweeper has picked its candidates, as a concurrent payment would.
type renewingSubscriptions struct {
	models.SubscriptionRepository
	userID int64
	until  time.Time
}

func (r renewingSubscriptions) ExpiredUserIDs(ctx context.Context, now time.Time) ([]int64, error) {
	ids, err := r.SubscriptionRepository.ExpiredUserIDs(ctx, now)
	if err != nil {
		return nil, err
	}
	sub, err := r.SubscriptionRepository.GetByUserID(ctx, r.userID)
	if err != nil {
		return nil, err
	}
	until := r.until
	sub.EndDate = &until
	sub.IsActive = true
	return ids, r.SubscriptionRepository.Save(ctx, sub)
}

type renewingStore struct {
	models.Store
	userID int64
	until  time.Time
}

func (s renewingStore) Subscriptions() models.SubscriptionRepository {
	return renewingSubscriptions{s.Store.Subscriptions(), s.userID, s.until}
}

func (s renewingStore) Transaction(ctx context.Context, fn func(tx models.Store) error) error {
	return s.Store.Transaction(ctx, func(tx models.Store) error {
		return fn(renewingStore{tx, s.userID, s.until})
	})
}

func TestSweepKeepsSubscriptionRenewedMidSweep(t *testing.T) {
	f := newFixture(t, Options{InstanceID: "instance-a"})
	ctx := context.Background()
	if _, err := f.billing.ActivateSubscription(ctx, f.user.ID, models.TierPro); err != nil {
		t.Fatalf("ActivateSubscription: %v", err)
	}

	sweepAt := time.Now().Add(models.SubscriptionPeriod + time.Hour)
	f.billing.now = func() time.Time { return sweepAt }
	f.billing.store = renewingStore{f.store, f.user.ID, sweepAt.Add(models.SubscriptionPeriod)}

	if err := f.billing.Sweep(ctx); err != nil {
		t.Fatalf("Sweep: %v", err)
	}

	sub, err := f.store.Subscriptions().GetByUserID(ctx, f.user.ID)
	if err != nil {
		t.Fatalf("GetByUserID: %v", err)
	}
	if !sub.IsActive {
		t.Error("renewed subscription deactivated by the sweep")
	}
	user, _ := f.store.Users().GetByID(ctx, f.user.ID)
	if user.Tier != models.TierPro {
		t.Errorf("user tier = %s after renewal, want pro", user.Tier)
	}
}

type slowNotifier struct {
	mu        sync.Mutex
	delivered []*models.Notification
}

func (n *slowNotifier) SendNotification(notification *models.Notification) {
	time.Sleep(50 * time.Millisecond)
	n.mu.Lock()
	defer n.mu.Unlock()
	n.delivered = append(n.delivered, notification)
}

func (n *slowNotifier) Count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.delivered)
}

func TestStopWaitsForNotifications(t *testing.T) {
	f := newFixture(t, Options{})
	notifier := &slowNotifier{}
	f.billing.notificator = notifier

	intent := f.initiate(t, models.TierPro)
	if _, err := f.billing.ConfirmPayment(context.Background(), f.user, models.ConfirmPaymentRequest{
		PaymentKey: "pk_1", OrderID: intent.OrderID, Amount: intent.Amount,
	}); err != nil {
		t.Fatalf("ConfirmPayment: %v", err)
	}

	f.billing.Stop()
	if got := notifier.Count(); got != 1 {
		t.Errorf("notifications delivered before Stop returned = %d, want 1", got)
	}
}

func TestStartStop(t *testing.T) {
	f := newFixture(t, Options{SweepInterval: 10 * time.Millisecond, InstanceID: "runner"})
	ctx := context.Background()
	stale := &models.PendingPayment{UserID: f.user.ID, OrderID: "COBIA-STALE000", Amount: 99000, ExpiresAt: time.Now().Add(-time.Minute)}
	if err := f.store.PendingPayments().Create(ctx, stale); err != nil {
		t.Fatalf("seed: %v", err)
	}

	f.billing.Start(ctx)
	deadline := time.Now().Add(2 * time.Second)
	for f.intentExists(t, stale.OrderID) && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	f.billing.Stop()

	if f.intentExists(t, stale.OrderID) {
		t.Error("background sweeper never removed the expired intent")
	}
	if ok, _ := f.store.Locks().Acquire(ctx, sweeperLockName, "someone-else", time.Minute); !ok {
		t.Error("sweeper lock not released on Stop")
	}
}

func TestListSubscriptionsReportsEffectiveState(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	if _, err := f.billing.ActivateSubscription(ctx, f.user.ID, models.TierPro); err != nil {
		t.Fatalf("ActivateSubscription: %v", err)
	}

	rows, total, err := f.billing.ListSubscriptions(ctx, models.Page{})
	if err != nil || total != 1 || !rows[0].IsActive {
		t.Fatalf("before expiry: rows=%+v total=%d err=%v", rows, total, err)
	}
	if rows[0].Email != f.user.Email {
		t.Errorf("email = %q", rows[0].Email)
	}

	f.billing.now = func() time.Time { return time.Now().Add(models.SubscriptionPeriod + time.Hour) }
	rows, _, err = f.billing.ListSubscriptions(ctx, models.Page{})
	if err != nil || rows[0].IsActive {
		t.Errorf("after expiry: rows=%+v err=%v", rows, err)
	}
}

func TestLinkTelegram(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	if err := f.billing.LinkTelegram(ctx, f.user.ID, "123456"); err != nil {
		t.Fatalf("LinkTelegram: %v", err)
	}
	u, err := f.billing.GetUser(ctx, f.user.ID)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if u.TelegramChatID != "123456" {
		t.Errorf("chat id = %q", u.TelegramChatID)
	}

	err = f.billing.LinkTelegram(ctx, 9999, "1")
	wantCode(t, err, apperror.CodeUserNotFound, http.StatusNotFound)
}
