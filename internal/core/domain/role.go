package domain

type Role string

const (
	RoleCustomer Role = "customer"
	RoleSeller   Role = "seller"
	RoleAdmin    Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleSeller, RoleAdmin:
		return true
	}
	return false
}

// CanAdvanceOrders reports whether the role may push orders forward
// through the fulfilment chain. Customers may only cancel their own
// orders.
func (r Role) CanAdvanceOrders() bool {
	return r == RoleSeller || r == RoleAdmin
}
