package identity

import (
	"context"

	"github.com/delivery/backend/internal/domain/identity"
	"github.com/delivery/backend/internal/domain/shared"
	"github.com/delivery/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var errInvalidCoordinates = shared.NewDomainError("INVALID_COORDINATES", "Latitude must be within [-90, 90] and longitude within [-180, 180]")

// CustomerService manages the signed-in customer's profile and address book
type CustomerService struct {
	repo   identity.CustomerRepository
	logger *zap.Logger
}

// NewCustomerService creates a new customer service
func NewCustomerService(repo identity.CustomerRepository, logger *zap.Logger) *CustomerService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CustomerService{repo: repo, logger: logger}
}

// Profile returns the customer with their addresses
func (s *CustomerService) Profile(ctx context.Context, customerID uuid.UUID) (*CustomerResponse, error) {
	c, err := s.repo.FindByID(ctx, customerID)
	if err != nil {
		return nil, err
	}
	resp := ToCustomerResponse(c)
	return &resp, nil
}

// UpdateProfile renames the customer
func (s *CustomerService) UpdateProfile(ctx context.Context, customerID uuid.UUID, req ProfileRequest) (*CustomerResponse, error) {
	c, err := s.repo.FindByID(ctx, customerID)
	if err != nil {
		return nil, err
	}
	c.Rename(req.Name)
	if err := s.repo.Save(ctx, c); err != nil {
		return nil, err
	}
	resp := ToCustomerResponse(c)
	return &resp, nil
}

// ListAddresses returns the saved addresses
func (s *CustomerService) ListAddresses(ctx context.Context, customerID uuid.UUID) ([]AddressResponse, error) {
	c, err := s.repo.FindByID(ctx, customerID)
	if err != nil {
		return nil, err
	}
	return ToCustomerResponse(c).Addresses, nil
}

// AddAddress saves a new address
func (s *CustomerService) AddAddress(ctx context.Context, customerID uuid.UUID, req AddressRequest) (*AddressResponse, error) {
	c, err := s.repo.FindByID(ctx, customerID)
	if err != nil {
		return nil, err
	}
	loc, err := valueobject.GeoPointFromPtrs(req.Latitude, req.Longitude)
	if err != nil {
		return nil, errInvalidCoordinates
	}
	a, err := c.AddAddress(req.Label, req.Address, loc, req.IsDefault)
	if err != nil {
		return nil, err
	}
	resp := ToAddressResponse(a)
	if err := s.repo.Save(ctx, c); err != nil {
		return nil, err
	}
	return &resp, nil
}

// UpdateAddress edits a saved address
func (s *CustomerService) UpdateAddress(ctx context.Context, customerID, addressID uuid.UUID, req AddressRequest) (*AddressResponse, error) {
	c, err := s.repo.FindByID(ctx, customerID)
	if err != nil {
		return nil, err
	}
	loc, err := valueobject.GeoPointFromPtrs(req.Latitude, req.Longitude)
	if err != nil {
		return nil, errInvalidCoordinates
	}
	a, err := c.UpdateAddress(addressID, req.Label, req.Address, loc, req.IsDefault)
	if err != nil {
		return nil, err
	}
	resp := ToAddressResponse(a)
	if err := s.repo.Save(ctx, c); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RemoveAddress deletes a saved address
func (s *CustomerService) RemoveAddress(ctx context.Context, customerID, addressID uuid.UUID) error {
	c, err := s.repo.FindByID(ctx, customerID)
	if err != nil {
		return err
	}
	if err := c.RemoveAddress(addressID); err != nil {
		return err
	}
	return s.repo.Save(ctx, c)
}
