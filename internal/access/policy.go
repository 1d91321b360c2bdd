package access

// IsOwner reports whether the caller is the company's resolved owner.
func IsOwner(caller Caller, company Company) bool {
	return company.OwnerID != nil && *company.OwnerID == caller.UserID
}

// CanManageTeam reports whether the caller may invite, remove and resend for
// the company's team.
func CanManageTeam(caller Caller, company Company) bool {
	if caller.IsSuperAdmin {
		return true
	}
	if IsOwner(caller, company) {
		return true
	}
	return caller.BelongsTo(company.ID) && caller.Role.AtLeast(RoleSupervisor)
}

// CanViewCompany reports whether the caller may read the company and its roster.
func CanViewCompany(caller Caller, company Company) bool {
	return caller.IsSuperAdmin || IsOwner(caller, company) || caller.BelongsTo(company.ID)
}

// CanSwitchCompanies reports whether the caller may act on another company.
func CanSwitchCompanies(caller Caller) bool {
	return isAdmin(caller)
}

// CanImportData reports whether the caller may run bulk imports.
func CanImportData(caller Caller) bool {
	return isAdmin(caller)
}

// CanManageCompanySettings reports whether the caller may edit company settings.
func CanManageCompanySettings(caller Caller) bool {
	return isAdmin(caller)
}

// CanDeleteCustomers reports whether the caller may delete customer records.
func CanDeleteCustomers(caller Caller) bool {
	return isAdmin(caller)
}

func isAdmin(caller Caller) bool {
	return caller.IsSuperAdmin || caller.Role.AtLeast(RoleAdmin)
}

// Capabilities is the full set of predicate results for one caller/company pair.
type Capabilities struct {
	ManageTeam            bool `json:"manageTeam"`
	SwitchCompanies       bool `json:"switchCompanies"`
	ImportData            bool `json:"importData"`
	ManageCompanySettings bool `json:"manageCompanySettings"`
	DeleteCustomers       bool `json:"deleteCustomers"`
}

// Evaluate computes every capability for the caller against company.
func Evaluate(caller Caller, company Company) Capabilities {
	return Capabilities{
		ManageTeam:            CanManageTeam(caller, company),
		SwitchCompanies:       CanSwitchCompanies(caller),
		ImportData:            CanImportData(caller),
		ManageCompanySettings: CanManageCompanySettings(caller),
		DeleteCustomers:       CanDeleteCustomers(caller),
	}
}
