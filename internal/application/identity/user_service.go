package identity

import (
	"context"
	"errors"

	creditapp "github.com/consulta/backend/internal/application/credit"
	"github.com/consulta/backend/internal/domain/identity"
	"github.com/consulta/backend/internal/domain/shared"
	"github.com/consulta/backend/internal/infrastructure/payment"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CustomerCreator provisions a customer record at the payment provider
type CustomerCreator interface {
	CreateCustomer(ctx context.Context, input payment.CreateCustomerInput) (*payment.CreateCustomerOutput, error)
}

// WelcomeProvisioner grants the initial trial credit to a fresh account
type WelcomeProvisioner interface {
	ProvisionWelcomeCredit(ctx context.Context, userID uuid.UUID) (*creditapp.LedgerTransactionResponse, error)
}

// UserService handles billing account lifecycle. Registration creates the
// local user, a provider-side customer, and the welcome credit; the provider
// customer is best effort, an account without one simply cannot renew
// on-demand until it is backfilled.
type UserService struct {
	userRepo identity.UserRepository
	customer CustomerCreator
	welcome  WelcomeProvisioner
	logger   *zap.Logger
}

// NewUserService creates a new user service
func NewUserService(
	userRepo identity.UserRepository,
	customer CustomerCreator,
	welcome WelcomeProvisioner,
	logger *zap.Logger,
) *UserService {
	return &UserService{
		userRepo: userRepo,
		customer: customer,
		welcome:  welcome,
		logger:   logger,
	}
}

// Register creates a billing account
func (s *UserService) Register(ctx context.Context, req *RegisterUserRequest) (*UserResponse, error) {
	existing, err := s.userRepo.FindByEmail(ctx, req.Email)
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}
	if existing != nil {
		return nil, shared.ErrAlreadyExists
	}

	user, err := identity.NewUser(req.Email, req.Name)
	if err != nil {
		return nil, err
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}

	// Provider customer creation is best effort; the account works without
	// it, minus on-demand renewal
	if s.customer != nil {
		output, err := s.customer.CreateCustomer(ctx, payment.CreateCustomerInput{
			UserID: user.ID,
			Email:  user.Email,
			Name:   user.Name,
		})
		if err != nil {
			s.logger.Warn("Failed to create provider customer for new user",
				zap.String("user_id", user.ID.String()),
				zap.Error(err))
		} else {
			user.SetStripeCustomerID(output.CustomerID)
			if err := s.userRepo.Save(ctx, user); err != nil {
				return nil, err
			}
		}
	}

	if s.welcome != nil {
		if _, err := s.welcome.ProvisionWelcomeCredit(ctx, user.ID); err != nil {
			s.logger.Warn("Failed to provision welcome credit",
				zap.String("user_id", user.ID.String()),
				zap.Error(err))
		}
	}

	s.logger.Info("Registered user",
		zap.String("user_id", user.ID.String()),
		zap.String("email", user.Email))

	response := ToUserResponse(user)
	return &response, nil
}

// Get returns a user by ID
func (s *UserService) Get(ctx context.Context, userID uuid.UUID) (*UserResponse, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	response := ToUserResponse(user)
	return &response, nil
}

// SetAutoRenewal toggles on-demand renewal for the user
func (s *UserService) SetAutoRenewal(ctx context.Context, userID uuid.UUID, enabled bool) (*UserResponse, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	user.SetAutoRenewal(enabled)
	if err := s.userRepo.Save(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("Updated auto renewal",
		zap.String("user_id", userID.String()),
		zap.Bool("enabled", enabled))

	response := ToUserResponse(user)
	return &response, nil
}

// Deactivate blocks the user from new consultations
func (s *UserService) Deactivate(ctx context.Context, userID uuid.UUID) (*UserResponse, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	user.Deactivate()
	if err := s.userRepo.Save(ctx, user); err != nil {
		return nil, err
	}

	response := ToUserResponse(user)
	return &response, nil
}
