package domain

// AccessPolicy is the single authorization decision point derived from an
// authenticated actor. Handlers and services ask the policy, never compare
// role strings directly.
type AccessPolicy struct {
	Role     string
	BranchID int64
}

func PolicyFor(actor Actor) AccessPolicy {
	return AccessPolicy{Role: actor.Role, BranchID: actor.BranchID}
}

func (p AccessPolicy) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// CanSell reports whether the actor may create sales and take payments.
// Admin accounts are back-office only and cannot ring up sales.
func (p AccessPolicy) CanSell() bool {
	return p.Role == RoleCashier || p.Role == RoleManager
}

func (p AccessPolicy) CanManageCatalog() bool {
	return p.Role == RoleAdmin || p.Role == RoleManager
}

func (p AccessPolicy) CanManageStock() bool {
	return p.Role == RoleAdmin || p.Role == RoleManager
}

func (p AccessPolicy) CanProcessRefunds() bool {
	return p.Role == RoleAdmin || p.Role == RoleManager
}

func (p AccessPolicy) CanTransferStock() bool {
	return p.Role == RoleAdmin || p.Role == RoleManager
}

// CanAccessBranch reports whether the actor may operate on data belonging to
// the given branch. Admins span all branches; everyone else is pinned to the
// branch on their account.
func (p AccessPolicy) CanAccessBranch(branchID int64) bool {
	if p.IsAdmin() {
		return true
	}
	return p.BranchID != 0 && p.BranchID == branchID
}
