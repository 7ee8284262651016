package domain

// The member tier is driven by the regular session balance. These two
// transitions are the only ways a tier changes after enrollment.

// PromoteOnFirstBalance moves an OT member to PT once a regular balance exists.
// It returns the resulting role and whether a transition happened.
func PromoteOnFirstBalance(current Role, remainRegular int) (Role, bool) {
	if current == RoleOT && remainRegular > 0 {
		return RolePT, true
	}
	return current, false
}

// DemoteOnZeroBalance moves a PT member back to OT when the regular balance is spent.
func DemoteOnZeroBalance(current Role, remainRegular int) (Role, bool) {
	if current == RolePT && remainRegular == 0 {
		return RoleOT, true
	}
	return current, false
}
