package services

import (
	"github.com/google/uuid"

	"github.com/shopmate/shopmate/internal/models"
)

// Actor identifies who drives an operation. The admin console acts as the
// SystemActor principal rather than as a stored user.
type Actor interface {
	Role() models.Role
	String() string
	isActor()
}

type CustomerActor struct {
	ID uuid.UUID
}

func (CustomerActor) Role() models.Role { return models.RoleCustomer }
func (a CustomerActor) String() string  { return "customer:" + a.ID.String() }
func (CustomerActor) isActor()          {}

type ShopperActor struct {
	ID uuid.UUID
}

func (ShopperActor) Role() models.Role { return models.RoleShopper }
func (a ShopperActor) String() string  { return "shopper:" + a.ID.String() }
func (ShopperActor) isActor()          {}

// SystemActor is the admin override. Subject names the operator for audit logs.
type SystemActor struct {
	Subject string
}

func (SystemActor) Role() models.Role { return models.RoleAdmin }
func (a SystemActor) String() string {
	if a.Subject == "" {
		return "admin"
	}
	return "admin:" + a.Subject
}
func (SystemActor) isActor() {}

func isSystem(actor Actor) bool {
	_, ok := actor.(SystemActor)
	return ok
}
