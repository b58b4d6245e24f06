package identity

import (
	"strings"

	"github.com/delivery/backend/internal/domain/shared"
	"github.com/delivery/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// MaxAddresses is the number of saved addresses per customer
const MaxAddresses = 10

// Address is a saved delivery address of a customer
type Address struct {
	ID        uuid.UUID
	Label     string
	Address   string
	Location  *valueobject.GeoPoint
	IsDefault bool
}

// Customer is an end user identified by phone (OTP login)
type Customer struct {
	shared.BaseAggregateRoot
	Phone     string
	Name      string
	Addresses []Address
}

// NewCustomer creates a customer for a normalized phone
func NewCustomer(phone, name string) (*Customer, error) {
	p, err := valueobject.NewPhone(phone)
	if err != nil {
		return nil, shared.NewDomainError("INVALID_PHONE", "Invalid phone length")
	}
	return &Customer{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Phone:             p.Local(),
		Name:              strings.TrimSpace(name),
		Addresses:         make([]Address, 0),
	}, nil
}

// Rename sets the display name
func (c *Customer) Rename(name string) {
	c.Name = strings.TrimSpace(name)
	c.Touch()
}

// AddAddress saves a new address. The first address, or one flagged as
// default, becomes the default.
func (c *Customer) AddAddress(label, address string, loc *valueobject.GeoPoint, makeDefault bool) (*Address, error) {
	if strings.TrimSpace(address) == "" {
		return nil, shared.NewDomainError("INVALID_ADDRESS", "Address cannot be empty")
	}
	if len(c.Addresses) >= MaxAddresses {
		return nil, shared.NewDomainError("TOO_MANY_ADDRESSES", "Address book is full")
	}
	a := Address{
		ID:       uuid.New(),
		Label:    strings.TrimSpace(label),
		Address:  strings.TrimSpace(address),
		Location: loc,
	}
	c.Addresses = append(c.Addresses, a)
	if makeDefault || len(c.Addresses) == 1 {
		c.setDefault(a.ID)
	}
	c.Touch()
	return c.findAddress(a.ID), nil
}

// UpdateAddress edits a saved address
func (c *Customer) UpdateAddress(id uuid.UUID, label, address string, loc *valueobject.GeoPoint, makeDefault bool) (*Address, error) {
	a := c.findAddress(id)
	if a == nil {
		return nil, shared.ErrNotFound
	}
	if strings.TrimSpace(address) == "" {
		return nil, shared.NewDomainError("INVALID_ADDRESS", "Address cannot be empty")
	}
	a.Label = strings.TrimSpace(label)
	a.Address = strings.TrimSpace(address)
	a.Location = loc
	if makeDefault {
		c.setDefault(id)
	}
	c.Touch()
	return c.findAddress(id), nil
}

// RemoveAddress deletes a saved address; when the default goes, the
// first remaining address takes over.
func (c *Customer) RemoveAddress(id uuid.UUID) error {
	idx := -1
	for i := range c.Addresses {
		if c.Addresses[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return shared.ErrNotFound
	}
	wasDefault := c.Addresses[idx].IsDefault
	c.Addresses = append(c.Addresses[:idx], c.Addresses[idx+1:]...)
	if wasDefault && len(c.Addresses) > 0 {
		c.setDefault(c.Addresses[0].ID)
	}
	c.Touch()
	return nil
}

// DefaultAddress returns the default address, if any
func (c *Customer) DefaultAddress() *Address {
	for i := range c.Addresses {
		if c.Addresses[i].IsDefault {
			return &c.Addresses[i]
		}
	}
	return nil
}

func (c *Customer) setDefault(id uuid.UUID) {
	for i := range c.Addresses {
		c.Addresses[i].IsDefault = c.Addresses[i].ID == id
	}
}

func (c *Customer) findAddress(id uuid.UUID) *Address {
	for i := range c.Addresses {
		if c.Addresses[i].ID == id {
			return &c.Addresses[i]
		}
	}
	return nil
}
