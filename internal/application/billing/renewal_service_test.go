package billing

import (
	"context"
	"testing"
	"time"

	"github.com/consulta/backend/internal/domain/billing"
	"github.com/consulta/backend/internal/domain/credit"
	"github.com/consulta/backend/internal/domain/identity"
	"github.com/consulta/backend/internal/domain/shared"
	"github.com/consulta/backend/internal/infrastructure/cache"
	"github.com/consulta/backend/internal/infrastructure/payment"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// =============================================================================
// Mocks and Fakes
// =============================================================================

// MockPaymentGateway is a mock implementation of PaymentGateway and
// SubscriptionCanceler
type MockPaymentGateway struct {
	mock.Mock
}

func (m *MockPaymentGateway) ChargeOffSession(ctx context.Context, input payment.ChargeInput) (*payment.ChargeOutput, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.ChargeOutput), args.Error(1)
}

func (m *MockPaymentGateway) CancelSubscription(ctx context.Context, subscriptionID string) error {
	args := m.Called(ctx, subscriptionID)
	return args.Error(0)
}

// MockUserRepository is a mock implementation of identity.UserRepository
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, user *identity.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) Save(ctx context.Context, user *identity.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) FindByID(ctx context.Context, id uuid.UUID) (*identity.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.User), args.Error(1)
}

func (m *MockUserRepository) FindByEmail(ctx context.Context, email string) (*identity.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.User), args.Error(1)
}

func (m *MockUserRepository) FindByStripeCustomerID(ctx context.Context, customerID string) (*identity.User, error) {
	args := m.Called(ctx, customerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.User), args.Error(1)
}

// memoryLedger is an in-memory credit.LedgerRepository
type memoryLedger struct {
	transactions []*credit.LedgerTransaction
}

func (l *memoryLedger) Append(ctx context.Context, tx *credit.LedgerTransaction) error {
	l.transactions = append(l.transactions, tx)
	return nil
}

func (l *memoryLedger) FindByID(ctx context.Context, id uuid.UUID) (*credit.LedgerTransaction, error) {
	return nil, shared.ErrNotFound
}

func (l *memoryLedger) GetLatestByUserID(ctx context.Context, userID uuid.UUID) (*credit.LedgerTransaction, error) {
	for i := len(l.transactions) - 1; i >= 0; i-- {
		if l.transactions[i].UserID == userID {
			return l.transactions[i], nil
		}
	}
	return nil, shared.ErrNotFound
}

func (l *memoryLedger) FindByUserID(ctx context.Context, userID uuid.UUID, filter credit.TransactionFilter) ([]*credit.LedgerTransaction, int64, error) {
	return l.transactions, int64(len(l.transactions)), nil
}

func (l *memoryLedger) FindByPaymentRef(ctx context.Context, paymentRef string) ([]*credit.LedgerTransaction, error) {
	var matched []*credit.LedgerTransaction
	for _, tx := range l.transactions {
		if tx.PaymentRef != nil && *tx.PaymentRef == paymentRef {
			matched = append(matched, tx)
		}
	}
	return matched, nil
}

func (l *memoryLedger) SumAmountByUserID(ctx context.Context, userID uuid.UUID) (int64, error) {
	var sum int64
	for _, tx := range l.transactions {
		if tx.UserID == userID {
			sum += tx.AmountCents
		}
	}
	return sum, nil
}

func (l *memoryLedger) balance(userID uuid.UUID) int64 {
	latest, err := l.GetLatestByUserID(context.Background(), userID)
	if err != nil {
		return 0
	}
	return latest.BalanceAfterCents
}

type passthroughUnitOfWork struct {
	ledger credit.LedgerRepository
}

func (u *passthroughUnitOfWork) WithUserLock(ctx context.Context, userID uuid.UUID, fn func(ledger credit.LedgerRepository) error) error {
	return fn(u.ledger)
}

// memorySubscriptions is an in-memory billing.SubscriptionRepository
type memorySubscriptions struct {
	subs []*billing.Subscription
}

func (r *memorySubscriptions) Create(ctx context.Context, sub *billing.Subscription) error {
	r.subs = append(r.subs, sub)
	return nil
}

func (r *memorySubscriptions) Save(ctx context.Context, sub *billing.Subscription) error {
	for i, existing := range r.subs {
		if existing.ID == sub.ID {
			r.subs[i] = sub
			return nil
		}
	}
	return shared.ErrNotFound
}

func (r *memorySubscriptions) FindByID(ctx context.Context, id uuid.UUID) (*billing.Subscription, error) {
	for _, sub := range r.subs {
		if sub.ID == id {
			return sub, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *memorySubscriptions) FindByStripeSubscriptionID(ctx context.Context, stripeSubscriptionID string) (*billing.Subscription, error) {
	for _, sub := range r.subs {
		if sub.StripeSubscriptionID == stripeSubscriptionID {
			return sub, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *memorySubscriptions) FindActiveByUserID(ctx context.Context, userID uuid.UUID) (*billing.Subscription, error) {
	for _, sub := range r.subs {
		if sub.UserID == userID && sub.IsActive() {
			return sub, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *memorySubscriptions) FindAllActiveByUserID(ctx context.Context, userID uuid.UUID) ([]*billing.Subscription, error) {
	var actives []*billing.Subscription
	for _, sub := range r.subs {
		if sub.UserID == userID && sub.IsActive() {
			actives = append(actives, sub)
		}
	}
	return actives, nil
}

func (r *memorySubscriptions) FindByUserID(ctx context.Context, userID uuid.UUID) ([]*billing.Subscription, error) {
	var owned []*billing.Subscription
	for _, sub := range r.subs {
		if sub.UserID == userID {
			owned = append(owned, sub)
		}
	}
	return owned, nil
}

// memoryPlans is an in-memory billing.PlanRepository
type memoryPlans struct {
	plans []*billing.SubscriptionPlan
}

func (r *memoryPlans) Create(ctx context.Context, plan *billing.SubscriptionPlan) error {
	r.plans = append(r.plans, plan)
	return nil
}

func (r *memoryPlans) Save(ctx context.Context, plan *billing.SubscriptionPlan) error {
	return nil
}

func (r *memoryPlans) FindByCode(ctx context.Context, code string) (*billing.SubscriptionPlan, error) {
	for _, plan := range r.plans {
		if plan.Code == code {
			return plan, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *memoryPlans) FindByStripePriceID(ctx context.Context, stripePriceID string) (*billing.SubscriptionPlan, error) {
	for _, plan := range r.plans {
		if plan.StripePriceID == stripePriceID {
			return plan, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *memoryPlans) FindActive(ctx context.Context) ([]*billing.SubscriptionPlan, error) {
	var actives []*billing.SubscriptionPlan
	for _, plan := range r.plans {
		if plan.IsActive {
			actives = append(actives, plan)
		}
	}
	return actives, nil
}

// =============================================================================
// Test Helper Functions
// =============================================================================

func newTestUserID() uuid.UUID {
	return uuid.MustParse("11111111-1111-1111-1111-111111111111")
}

func createTestUser() *identity.User {
	user, _ := identity.NewUser("user@example.com", "Test User")
	user.ID = newTestUserID()
	user.SetStripeCustomerID("cus_test1")
	return user
}

func createTestPlan(t *testing.T) *billing.SubscriptionPlan {
	t.Helper()
	plan, err := billing.NewSubscriptionPlan("monthly-100", "Mensal R$ 100", 10000, 10000, "price_test1")
	require.NoError(t, err)
	return plan
}

func createTestSubscription(t *testing.T, userID uuid.UUID, stripeSubID string) *billing.Subscription {
	t.Helper()
	sub, err := billing.NewSubscription(userID, "monthly-100", stripeSubID,
		time.Now().Add(-24*time.Hour), time.Now().Add(29*24*time.Hour))
	require.NoError(t, err)
	return sub
}

type renewalFixture struct {
	service *RenewalService
	guard   *cache.InMemoryInflightGuard
	ledger  *memoryLedger
	subs    *memorySubscriptions
	plans   *memoryPlans
	users   *MockUserRepository
	gateway *MockPaymentGateway
}

func newRenewalFixture(t *testing.T) *renewalFixture {
	f := &renewalFixture{
		guard:   cache.NewInMemoryInflightGuard(),
		ledger:  &memoryLedger{},
		subs:    &memorySubscriptions{},
		plans:   &memoryPlans{},
		users:   new(MockUserRepository),
		gateway: new(MockPaymentGateway),
	}
	t.Cleanup(func() { _ = f.guard.Close() })
	uow := &passthroughUnitOfWork{ledger: f.ledger}
	f.service = NewRenewalService(f.guard, uow, f.subs, f.plans, f.users, f.gateway, 30*time.Second, zap.NewNop())
	return f
}

// =============================================================================
// RenewalService Tests
// =============================================================================

func TestRenewalService_Renew_Success(t *testing.T) {
	f := newRenewalFixture(t)
	ctx := context.Background()
	userID := newTestUserID()

	f.users.On("FindByID", ctx, userID).Return(createTestUser(), nil)
	require.NoError(t, f.plans.Create(ctx, createTestPlan(t)))
	sub := createTestSubscription(t, userID, "sub_test1")
	require.NoError(t, f.subs.Create(ctx, sub))

	f.gateway.On("ChargeOffSession", ctx, mock.MatchedBy(func(input payment.ChargeInput) bool {
		return input.CustomerID == "cus_test1" && input.AmountCents == 10000
	})).Return(&payment.ChargeOutput{
		PaymentIntentID: "pi_test1",
		AmountCents:     10000,
		Currency:        "brl",
	}, nil)

	err := f.service.Renew(ctx, userID)

	require.NoError(t, err)
	assert.Equal(t, int64(10000), f.ledger.balance(userID))

	latest, err := f.ledger.GetLatestByUserID(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, credit.TransactionKindAutoRenewal, latest.Kind)
	require.NotNil(t, latest.PaymentRef)
	assert.Equal(t, "pi_test1", *latest.PaymentRef)

	assert.Equal(t, 1, sub.RenewalCount)
	assert.NotNil(t, sub.LastRenewalAt)
	f.gateway.AssertExpectations(t)
}

func TestRenewalService_Renew_Declined(t *testing.T) {
	f := newRenewalFixture(t)
	ctx := context.Background()
	userID := newTestUserID()

	f.users.On("FindByID", ctx, userID).Return(createTestUser(), nil)
	require.NoError(t, f.plans.Create(ctx, createTestPlan(t)))
	require.NoError(t, f.subs.Create(ctx, createTestSubscription(t, userID, "sub_test1")))

	f.gateway.On("ChargeOffSession", ctx, mock.Anything).Return(nil, shared.ErrPaymentDeclined)

	err := f.service.Renew(ctx, userID)

	assert.ErrorIs(t, err, shared.ErrPaymentDeclined)
	assert.Equal(t, int64(0), f.ledger.balance(userID))

	// The guard is released on failure so a later attempt can proceed
	acquired, guardErr := f.guard.Acquire(ctx, renewalGuardKey(userID), time.Second)
	require.NoError(t, guardErr)
	assert.True(t, acquired)
}

func TestRenewalService_Renew_NoGatewayConfigured(t *testing.T) {
	f := newRenewalFixture(t)
	ctx := context.Background()
	userID := newTestUserID()

	// Deployments without Stripe credentials wire no gateway at all
	service := NewRenewalService(f.guard, &passthroughUnitOfWork{ledger: f.ledger},
		f.subs, f.plans, f.users, nil, 30*time.Second, zap.NewNop())

	err := service.Renew(ctx, userID)

	assert.ErrorIs(t, err, shared.ErrRenewalDisabled)
	f.users.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
	assert.Equal(t, int64(0), f.ledger.balance(userID))
}

func TestRenewalService_Renew_AutoRenewalDisabled(t *testing.T) {
	f := newRenewalFixture(t)
	ctx := context.Background()
	userID := newTestUserID()

	user := createTestUser()
	user.SetAutoRenewal(false)
	f.users.On("FindByID", ctx, userID).Return(user, nil)

	err := f.service.Renew(ctx, userID)

	assert.ErrorIs(t, err, shared.ErrRenewalDisabled)
	f.gateway.AssertNotCalled(t, "ChargeOffSession", mock.Anything, mock.Anything)
}

func TestRenewalService_Renew_NoPaymentProfile(t *testing.T) {
	f := newRenewalFixture(t)
	ctx := context.Background()
	userID := newTestUserID()

	user := createTestUser()
	user.StripeCustomerID = ""
	f.users.On("FindByID", ctx, userID).Return(user, nil)

	err := f.service.Renew(ctx, userID)

	assert.ErrorIs(t, err, shared.ErrRenewalDisabled)
}

func TestRenewalService_Renew_NoActiveSubscription(t *testing.T) {
	f := newRenewalFixture(t)
	ctx := context.Background()
	userID := newTestUserID()

	f.users.On("FindByID", ctx, userID).Return(createTestUser(), nil)

	err := f.service.Renew(ctx, userID)

	assert.ErrorIs(t, err, shared.ErrRenewalDisabled)
	f.gateway.AssertNotCalled(t, "ChargeOffSession", mock.Anything, mock.Anything)
}

func TestRenewalService_Renew_GuardHeld(t *testing.T) {
	f := newRenewalFixture(t)
	ctx := context.Background()
	userID := newTestUserID()

	f.users.On("FindByID", ctx, userID).Return(createTestUser(), nil)
	require.NoError(t, f.plans.Create(ctx, createTestPlan(t)))
	require.NoError(t, f.subs.Create(ctx, createTestSubscription(t, userID, "sub_test1")))

	// Another renewal is in flight
	acquired, err := f.guard.Acquire(ctx, renewalGuardKey(userID), time.Minute)
	require.NoError(t, err)
	require.True(t, acquired)

	err = f.service.Renew(ctx, userID)

	assert.ErrorIs(t, err, shared.ErrRenewalInProgress)
	f.gateway.AssertNotCalled(t, "ChargeOffSession", mock.Anything, mock.Anything)
	assert.Equal(t, int64(0), f.ledger.balance(userID))
}
