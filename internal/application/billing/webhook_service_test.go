package billing

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/consulta/backend/internal/domain/billing"
	"github.com/consulta/backend/internal/domain/credit"
	"github.com/consulta/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// =============================================================================
// Fakes
// =============================================================================

// memoryEvents is an in-memory billing.WebhookEventRepository
type memoryEvents struct {
	records map[string]*billing.WebhookEventRecord
}

func newMemoryEvents() *memoryEvents {
	return &memoryEvents{records: make(map[string]*billing.WebhookEventRecord)}
}

func (r *memoryEvents) Claim(ctx context.Context, record *billing.WebhookEventRecord) (bool, error) {
	if _, exists := r.records[record.EventID]; exists {
		return false, nil
	}
	r.records[record.EventID] = record
	return true, nil
}

func (r *memoryEvents) FindByEventID(ctx context.Context, eventID string) (*billing.WebhookEventRecord, error) {
	record, exists := r.records[eventID]
	if !exists {
		return nil, shared.ErrNotFound
	}
	return record, nil
}

func (r *memoryEvents) MarkProcessed(ctx context.Context, eventID string) error {
	record, exists := r.records[eventID]
	if !exists {
		return shared.ErrNotFound
	}
	record.MarkProcessed()
	return nil
}

// fakeReconcileStore binds the fakes into a billing.ReconcileStore without
// transactional semantics
type fakeReconcileStore struct {
	repos billing.ReconcileRepos
}

func (s *fakeReconcileStore) InTx(ctx context.Context, fn func(repos billing.ReconcileRepos) error) error {
	return fn(s.repos)
}

func (s *fakeReconcileStore) WithUserLock(ctx context.Context, userID uuid.UUID, fn func(repos billing.ReconcileRepos) error) error {
	return fn(s.repos)
}

// =============================================================================
// Test Helper Functions
// =============================================================================

const (
	testPeriodStart = int64(1756000000)
	testPeriodEnd   = int64(1758600000)
)

type webhookFixture struct {
	service *WebhookService
	events  *memoryEvents
	subs    *memorySubscriptions
	plans   *memoryPlans
	ledger  *memoryLedger
	users   *MockUserRepository
	gateway *MockPaymentGateway
}

func newWebhookFixture(t *testing.T) *webhookFixture {
	f := &webhookFixture{
		events:  newMemoryEvents(),
		subs:    &memorySubscriptions{},
		plans:   &memoryPlans{},
		ledger:  &memoryLedger{},
		users:   new(MockUserRepository),
		gateway: new(MockPaymentGateway),
	}
	store := &fakeReconcileStore{repos: billing.ReconcileRepos{
		Events:        f.events,
		Subscriptions: f.subs,
		Plans:         f.plans,
		Users:         f.users,
		Ledger:        f.ledger,
	}}
	f.service = NewWebhookService(WebhookServiceConfig{
		Store:    store,
		UserRepo: f.users,
		Gateway:  f.gateway,
		Logger:   zap.NewNop(),
	})
	return f
}

func subscriptionPayload(eventID, eventType, subID, customerID, status string) []byte {
	return fmt.Appendf(nil, `{
		"id": %q,
		"type": %q,
		"data": {"object": {
			"id": %q,
			"customer": {"id": %q},
			"status": %q,
			"cancel_at_period_end": false,
			"current_period_start": %d,
			"current_period_end": %d,
			"items": {"data": [{"price": {"id": "price_test1"}}]}
		}}
	}`, eventID, eventType, subID, customerID, status, testPeriodStart, testPeriodEnd)
}

func invoicePayload(eventID, eventType, invoiceID, customerID, subID, billingReason string, amountPaid int64) []byte {
	return fmt.Appendf(nil, `{
		"id": %q,
		"type": %q,
		"data": {"object": {
			"id": %q,
			"customer": {"id": %q},
			"subscription": {"id": %q},
			"billing_reason": %q,
			"amount_paid": %d,
			"lines": {"data": [{"price": {"id": "price_test1"}}]}
		}}
	}`, eventID, eventType, invoiceID, customerID, subID, billingReason, amountPaid)
}

// =============================================================================
// WebhookService Tests
// =============================================================================

func TestWebhookService_SubscriptionCreated_Success(t *testing.T) {
	f := newWebhookFixture(t)
	ctx := context.Background()
	user := createTestUser()

	f.users.On("FindByStripeCustomerID", ctx, "cus_test1").Return(user, nil)
	require.NoError(t, f.plans.Create(ctx, createTestPlan(t)))

	result, err := f.service.ProcessWebhook(ctx,
		subscriptionPayload("evt_1", "customer.subscription.created", "sub_new", "cus_test1", "active"), "")

	require.NoError(t, err)
	assert.True(t, result.Processed)

	local, err := f.subs.FindByStripeSubscriptionID(ctx, "sub_new")
	require.NoError(t, err)
	assert.Equal(t, user.ID, local.UserID)
	assert.Equal(t, "monthly-100", local.PlanID)
	assert.True(t, local.IsActive())
	assert.Equal(t, time.Unix(testPeriodEnd, 0), local.CurrentPeriodEnd)

	record, err := f.events.FindByEventID(ctx, "evt_1")
	require.NoError(t, err)
	assert.True(t, record.Processed)
}

func TestWebhookService_SubscriptionCreated_SupersedesOlderActive(t *testing.T) {
	f := newWebhookFixture(t)
	ctx := context.Background()
	user := createTestUser()

	f.users.On("FindByStripeCustomerID", ctx, "cus_test1").Return(user, nil)
	require.NoError(t, f.plans.Create(ctx, createTestPlan(t)))

	older := createTestSubscription(t, user.ID, "sub_old")
	require.NoError(t, f.subs.Create(ctx, older))

	f.gateway.On("CancelSubscription", ctx, "sub_old").Return(nil)

	result, err := f.service.ProcessWebhook(ctx,
		subscriptionPayload("evt_2", "customer.subscription.created", "sub_new", "cus_test1", "active"), "")

	require.NoError(t, err)
	assert.True(t, result.Processed)

	// The older subscription lost locally and is canceled at the provider
	assert.Equal(t, billing.SubscriptionStatusCanceled, older.Status)
	f.gateway.AssertCalled(t, "CancelSubscription", ctx, "sub_old")

	actives, err := f.subs.FindAllActiveByUserID(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, actives, 1)
	assert.Equal(t, "sub_new", actives[0].StripeSubscriptionID)
}

func TestWebhookService_SubscriptionCreated_SupersedesWithoutGateway(t *testing.T) {
	f := newWebhookFixture(t)
	ctx := context.Background()
	user := createTestUser()

	// No canceler wired; the local cancel still applies
	f.service = NewWebhookService(WebhookServiceConfig{
		Store: &fakeReconcileStore{repos: billing.ReconcileRepos{
			Events:        f.events,
			Subscriptions: f.subs,
			Plans:         f.plans,
			Users:         f.users,
			Ledger:        f.ledger,
		}},
		UserRepo: f.users,
		Logger:   zap.NewNop(),
	})

	f.users.On("FindByStripeCustomerID", ctx, "cus_test1").Return(user, nil)
	require.NoError(t, f.plans.Create(ctx, createTestPlan(t)))

	older := createTestSubscription(t, user.ID, "sub_old")
	require.NoError(t, f.subs.Create(ctx, older))

	result, err := f.service.ProcessWebhook(ctx,
		subscriptionPayload("evt_2b", "customer.subscription.created", "sub_new", "cus_test1", "active"), "")

	require.NoError(t, err)
	assert.True(t, result.Processed)
	assert.Equal(t, billing.SubscriptionStatusCanceled, older.Status)
}

func TestWebhookService_SubscriptionCreated_DuplicateDelivery(t *testing.T) {
	f := newWebhookFixture(t)
	ctx := context.Background()
	user := createTestUser()

	f.users.On("FindByStripeCustomerID", ctx, "cus_test1").Return(user, nil)
	require.NoError(t, f.plans.Create(ctx, createTestPlan(t)))

	payload := subscriptionPayload("evt_3", "customer.subscription.created", "sub_new", "cus_test1", "active")

	_, err := f.service.ProcessWebhook(ctx, payload, "")
	require.NoError(t, err)

	result, err := f.service.ProcessWebhook(ctx, payload, "")
	require.NoError(t, err)
	assert.True(t, result.Processed)
	assert.Equal(t, "Event already processed", result.Message)

	// No second subscription row
	owned, err := f.subs.FindByUserID(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, owned, 1)
}

func TestWebhookService_SubscriptionCreated_UnknownUserAcked(t *testing.T) {
	f := newWebhookFixture(t)
	ctx := context.Background()

	f.users.On("FindByStripeCustomerID", ctx, "cus_ghost").Return(nil, shared.ErrNotFound)

	result, err := f.service.ProcessWebhook(ctx,
		subscriptionPayload("evt_4", "customer.subscription.created", "sub_new", "cus_ghost", "active"), "")

	require.NoError(t, err)
	assert.True(t, result.Processed)

	// Nothing was claimed, a manual replay after signup stays possible
	_, err = f.events.FindByEventID(ctx, "evt_4")
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestWebhookService_SubscriptionUpdated_SyncsPeriodAndStatus(t *testing.T) {
	f := newWebhookFixture(t)
	ctx := context.Background()
	userID := newTestUserID()

	local := createTestSubscription(t, userID, "sub_test1")
	local.UpdatePeriod(time.Unix(testPeriodStart-100000, 0), time.Unix(testPeriodEnd-100000, 0))
	require.NoError(t, f.subs.Create(ctx, local))

	result, err := f.service.ProcessWebhook(ctx,
		subscriptionPayload("evt_5", "customer.subscription.updated", "sub_test1", "cus_test1", "past_due"), "")

	require.NoError(t, err)
	assert.True(t, result.Processed)
	assert.Equal(t, billing.SubscriptionStatusPastDue, local.Status)
	assert.Equal(t, time.Unix(testPeriodEnd, 0), local.CurrentPeriodEnd)
}

func TestWebhookService_SubscriptionUpdated_StaleEventIgnored(t *testing.T) {
	f := newWebhookFixture(t)
	ctx := context.Background()
	userID := newTestUserID()

	local := createTestSubscription(t, userID, "sub_test1")
	// Stored period already ahead of the incoming event
	local.UpdatePeriod(time.Unix(testPeriodStart, 0), time.Unix(testPeriodEnd+500000, 0))
	require.NoError(t, f.subs.Create(ctx, local))

	result, err := f.service.ProcessWebhook(ctx,
		subscriptionPayload("evt_6", "customer.subscription.updated", "sub_test1", "cus_test1", "canceled"), "")

	require.NoError(t, err)
	assert.True(t, result.Processed)

	// The stale cancel did not apply, but the event is marked processed
	assert.Equal(t, billing.SubscriptionStatusActive, local.Status)
	record, err := f.events.FindByEventID(ctx, "evt_6")
	require.NoError(t, err)
	assert.True(t, record.Processed)
}

func TestWebhookService_SubscriptionDeleted_CancelsLocal(t *testing.T) {
	f := newWebhookFixture(t)
	ctx := context.Background()
	userID := newTestUserID()

	local := createTestSubscription(t, userID, "sub_test1")
	require.NoError(t, f.subs.Create(ctx, local))

	result, err := f.service.ProcessWebhook(ctx,
		subscriptionPayload("evt_7", "customer.subscription.deleted", "sub_test1", "cus_test1", "canceled"), "")

	require.NoError(t, err)
	assert.True(t, result.Processed)
	assert.Equal(t, billing.SubscriptionStatusCanceled, local.Status)
}

func TestWebhookService_InvoicePaid_CreditsPaidAmountOnce(t *testing.T) {
	f := newWebhookFixture(t)
	ctx := context.Background()
	user := createTestUser()

	f.users.On("FindByStripeCustomerID", ctx, "cus_test1").Return(user, nil)
	require.NoError(t, f.plans.Create(ctx, createTestPlan(t)))

	// The credit is the paid amount one-to-one, never the plan's list amount
	payload := invoicePayload("evt_8", "invoice.paid", "in_test1", "cus_test1", "sub_test1", "subscription_create", 1234)

	result, err := f.service.ProcessWebhook(ctx, payload, "")
	require.NoError(t, err)
	assert.True(t, result.Processed)

	assert.Equal(t, int64(1234), f.ledger.balance(user.ID))
	latest, err := f.ledger.GetLatestByUserID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, credit.TransactionKindPurchase, latest.Kind)
	require.NotNil(t, latest.PaymentRef)
	assert.Equal(t, "in_test1", *latest.PaymentRef)

	// Redelivery does not credit again
	_, err = f.service.ProcessWebhook(ctx, payload, "")
	require.NoError(t, err)
	assert.Equal(t, int64(1234), f.ledger.balance(user.ID))

	matched, err := f.ledger.FindByPaymentRef(ctx, "in_test1")
	require.NoError(t, err)
	assert.Len(t, matched, 1)
}

func TestWebhookService_PaymentSucceeded_CreditsPaidAmount(t *testing.T) {
	f := newWebhookFixture(t)
	ctx := context.Background()
	user := createTestUser()

	f.users.On("FindByStripeCustomerID", ctx, "cus_test1").Return(user, nil)

	payload := invoicePayload("evt_9", "invoice.payment_succeeded", "in_test2", "cus_test1", "sub_test1", "subscription_cycle", 2990)

	result, err := f.service.ProcessWebhook(ctx, payload, "")
	require.NoError(t, err)
	assert.True(t, result.Processed)
	assert.Equal(t, int64(2990), f.ledger.balance(user.ID))

	// A renewal invoice is a top-up, not a first purchase
	latest, err := f.ledger.GetLatestByUserID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, credit.TransactionKindAdd, latest.Kind)

	_, err = f.service.ProcessWebhook(ctx, payload, "")
	require.NoError(t, err)
	assert.Equal(t, int64(2990), f.ledger.balance(user.ID))
}

func TestWebhookService_InvoicePaid_SiblingEventTypeCreditsOnce(t *testing.T) {
	f := newWebhookFixture(t)
	ctx := context.Background()
	user := createTestUser()

	f.users.On("FindByStripeCustomerID", ctx, "cus_test1").Return(user, nil)

	// Stripe emits invoice.paid and invoice.payment_succeeded as distinct
	// events for one payment; the payment ref keeps the credit single
	_, err := f.service.ProcessWebhook(ctx,
		invoicePayload("evt_9a", "invoice.paid", "in_test2", "cus_test1", "sub_test1", "subscription_cycle", 2990), "")
	require.NoError(t, err)

	result, err := f.service.ProcessWebhook(ctx,
		invoicePayload("evt_9b", "invoice.payment_succeeded", "in_test2", "cus_test1", "sub_test1", "subscription_cycle", 2990), "")
	require.NoError(t, err)
	assert.True(t, result.Processed)

	assert.Equal(t, int64(2990), f.ledger.balance(user.ID))
	matched, err := f.ledger.FindByPaymentRef(ctx, "in_test2")
	require.NoError(t, err)
	assert.Len(t, matched, 1)
}

func TestWebhookService_InvoicePaid_ReactivatesPastDue(t *testing.T) {
	f := newWebhookFixture(t)
	ctx := context.Background()
	user := createTestUser()

	f.users.On("FindByStripeCustomerID", ctx, "cus_test1").Return(user, nil)
	require.NoError(t, f.plans.Create(ctx, createTestPlan(t)))

	local := createTestSubscription(t, user.ID, "sub_test1")
	local.MarkPastDue()
	require.NoError(t, f.subs.Create(ctx, local))

	_, err := f.service.ProcessWebhook(ctx,
		invoicePayload("evt_10", "invoice.paid", "in_test3", "cus_test1", "sub_test1", "subscription_cycle", 10000), "")

	require.NoError(t, err)
	assert.Equal(t, billing.SubscriptionStatusActive, local.Status)
}

func TestWebhookService_InvoicePaymentFailed_MarksPastDue(t *testing.T) {
	f := newWebhookFixture(t)
	ctx := context.Background()
	userID := newTestUserID()

	local := createTestSubscription(t, userID, "sub_test1")
	require.NoError(t, f.subs.Create(ctx, local))

	result, err := f.service.ProcessWebhook(ctx,
		invoicePayload("evt_11", "invoice.payment_failed", "in_test4", "cus_test1", "sub_test1", "subscription_cycle", 0), "")

	require.NoError(t, err)
	assert.True(t, result.Processed)
	assert.Equal(t, billing.SubscriptionStatusPastDue, local.Status)
	assert.Equal(t, int64(0), f.ledger.balance(userID))
}

func TestWebhookService_UnhandledEventTypeAcked(t *testing.T) {
	f := newWebhookFixture(t)
	ctx := context.Background()

	result, err := f.service.ProcessWebhook(ctx,
		[]byte(`{"id": "evt_12", "type": "charge.refunded", "data": {"object": {}}}`), "")

	require.NoError(t, err)
	assert.True(t, result.Processed)
	assert.Equal(t, "Event type not handled", result.Message)
}

func TestWebhookService_RejectsBadSignature(t *testing.T) {
	f := newWebhookFixture(t)
	signed := NewWebhookService(WebhookServiceConfig{
		Store:         &fakeReconcileStore{},
		UserRepo:      f.users,
		Gateway:       f.gateway,
		WebhookSecret: "whsec_test",
		Logger:        zap.NewNop(),
	})

	result, err := signed.ProcessWebhook(context.Background(),
		subscriptionPayload("evt_13", "customer.subscription.created", "sub_new", "cus_test1", "active"),
		"t=1,v1=deadbeef")

	assert.Error(t, err)
	assert.Nil(t, result)
}

func TestWebhookService_MalformedEventObjectAcked(t *testing.T) {
	f := newWebhookFixture(t)

	// The envelope parses but the object does not; retrying cannot help
	result, err := f.service.ProcessWebhook(context.Background(),
		[]byte(`{"id":"evt_14","type":"customer.subscription.created","data":{"object":{"current_period_start":"soon"}}}`), "")

	require.NoError(t, err)
	assert.True(t, result.Processed)
	assert.Equal(t, "Event payload malformed", result.Message)
}

func TestWebhookService_MalformedUnsignedPayload(t *testing.T) {
	f := newWebhookFixture(t)

	result, err := f.service.ProcessWebhook(context.Background(), []byte(`not json`), "")

	assert.Error(t, err)
	assert.Nil(t, result)
}
