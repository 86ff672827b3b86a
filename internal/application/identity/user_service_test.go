package identity

import (
	"context"
	"errors"
	"testing"

	creditapp "github.com/consulta/backend/internal/application/credit"
	"github.com/consulta/backend/internal/domain/identity"
	"github.com/consulta/backend/internal/domain/shared"
	"github.com/consulta/backend/internal/infrastructure/payment"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// =============================================================================
// Mocks
// =============================================================================

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

// MockCustomerCreator is a mock implementation of CustomerCreator
type MockCustomerCreator struct {
	mock.Mock
}

func (m *MockCustomerCreator) CreateCustomer(ctx context.Context, input payment.CreateCustomerInput) (*payment.CreateCustomerOutput, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.CreateCustomerOutput), args.Error(1)
}

// MockWelcomeProvisioner is a mock implementation of WelcomeProvisioner
type MockWelcomeProvisioner struct {
	mock.Mock
}

func (m *MockWelcomeProvisioner) ProvisionWelcomeCredit(ctx context.Context, userID uuid.UUID) (*creditapp.LedgerTransactionResponse, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*creditapp.LedgerTransactionResponse), args.Error(1)
}

// =============================================================================
// UserService Tests
// =============================================================================

func newTestService() (*UserService, *MockUserRepository, *MockCustomerCreator, *MockWelcomeProvisioner) {
	repo := new(MockUserRepository)
	customer := new(MockCustomerCreator)
	welcome := new(MockWelcomeProvisioner)
	return NewUserService(repo, customer, welcome, zap.NewNop()), repo, customer, welcome
}

func TestUserService_Register_Success(t *testing.T) {
	service, repo, customer, welcome := newTestService()
	ctx := context.Background()

	repo.On("FindByEmail", ctx, "new@example.com").Return(nil, shared.ErrNotFound)
	repo.On("Create", ctx, mock.AnythingOfType("*identity.User")).Return(nil)
	repo.On("Save", ctx, mock.AnythingOfType("*identity.User")).Return(nil)
	customer.On("CreateCustomer", ctx, mock.MatchedBy(func(input payment.CreateCustomerInput) bool {
		return input.Email == "new@example.com"
	})).Return(&payment.CreateCustomerOutput{CustomerID: "cus_new1"}, nil)
	welcome.On("ProvisionWelcomeCredit", ctx, mock.AnythingOfType("uuid.UUID")).
		Return(&creditapp.LedgerTransactionResponse{AmountCents: 1000}, nil)

	result, err := service.Register(ctx, &RegisterUserRequest{
		Email: "new@example.com",
		Name:  "New User",
	})

	require.NoError(t, err)
	assert.Equal(t, "new@example.com", result.Email)
	assert.Equal(t, "cus_new1", result.StripeCustomerID)
	assert.True(t, result.AutoRenewalEnabled)
	assert.True(t, result.Active)
	repo.AssertExpectations(t)
	customer.AssertExpectations(t)
	welcome.AssertExpectations(t)
}

func TestUserService_Register_DuplicateEmail(t *testing.T) {
	service, repo, _, _ := newTestService()
	ctx := context.Background()

	existing, _ := identity.NewUser("taken@example.com", "Existing")
	repo.On("FindByEmail", ctx, "taken@example.com").Return(existing, nil)

	result, err := service.Register(ctx, &RegisterUserRequest{
		Email: "taken@example.com",
		Name:  "New User",
	})

	assert.ErrorIs(t, err, shared.ErrAlreadyExists)
	assert.Nil(t, result)
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestUserService_Register_ProviderFailureIsNotFatal(t *testing.T) {
	service, repo, customer, welcome := newTestService()
	ctx := context.Background()

	repo.On("FindByEmail", ctx, "new@example.com").Return(nil, shared.ErrNotFound)
	repo.On("Create", ctx, mock.AnythingOfType("*identity.User")).Return(nil)
	customer.On("CreateCustomer", ctx, mock.Anything).Return(nil, errors.New("stripe down"))
	welcome.On("ProvisionWelcomeCredit", ctx, mock.AnythingOfType("uuid.UUID")).
		Return(&creditapp.LedgerTransactionResponse{AmountCents: 1000}, nil)

	result, err := service.Register(ctx, &RegisterUserRequest{
		Email: "new@example.com",
		Name:  "New User",
	})

	require.NoError(t, err)
	assert.Empty(t, result.StripeCustomerID)
	repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestUserService_SetAutoRenewal(t *testing.T) {
	service, repo, _, _ := newTestService()
	ctx := context.Background()

	user, _ := identity.NewUser("user@example.com", "User")
	repo.On("FindByID", ctx, user.ID).Return(user, nil)
	repo.On("Save", ctx, user).Return(nil)

	result, err := service.SetAutoRenewal(ctx, user.ID, false)

	require.NoError(t, err)
	assert.False(t, result.AutoRenewalEnabled)
}

func TestUserService_Deactivate(t *testing.T) {
	service, repo, _, _ := newTestService()
	ctx := context.Background()

	user, _ := identity.NewUser("user@example.com", "User")
	repo.On("FindByID", ctx, user.ID).Return(user, nil)
	repo.On("Save", ctx, user).Return(nil)

	result, err := service.Deactivate(ctx, user.ID)

	require.NoError(t, err)
	assert.False(t, result.Active)
}
