package access_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldops/crewroster/internal/access"
)

func TestParseRole(t *testing.T) {
	tests := []struct {
		in   string
		want access.Role
	}{
		{"field_tech", access.RoleFieldTech},
		{"  Supervisor ", access.RoleSupervisor},
		{"ADMIN", access.RoleAdmin},
		{"technician", access.RoleFieldTech},
		{"Field Tech", access.RoleFieldTech},
		{"manager", access.RoleSupervisor},
		{"owner", access.RoleAdmin},
		{"administrator", access.RoleAdmin},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := access.ParseRole(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseRole_Invalid(t *testing.T) {
	for _, in := range []string{"", "super_admin", "janitor"} {
		_, err := access.ParseRole(in)
		assert.ErrorIs(t, err, access.ErrInvalidRole, in)
	}
}

func TestRole_AtLeast(t *testing.T) {
	assert.True(t, access.RoleAdmin.AtLeast(access.RoleSupervisor))
	assert.True(t, access.RoleSupervisor.AtLeast(access.RoleSupervisor))
	assert.False(t, access.RoleFieldTech.AtLeast(access.RoleSupervisor))
	assert.False(t, access.Role("").AtLeast(access.Role("")), "invalid roles rank below everything")
}

func TestCanManageTeam(t *testing.T) {
	companyID := uuid.New()
	otherID := uuid.New()
	ownerID := uuid.New()
	company := access.Company{ID: companyID, OwnerID: &ownerID}

	tests := []struct {
		name   string
		caller access.Caller
		want   bool
	}{
		{"super admin without company", access.Caller{UserID: uuid.New(), IsSuperAdmin: true}, true},
		{"owner without role", access.Caller{UserID: ownerID}, true},
		{"admin of company", access.Caller{UserID: uuid.New(), Role: access.RoleAdmin, CompanyID: &companyID}, true},
		{"supervisor of company", access.Caller{UserID: uuid.New(), Role: access.RoleSupervisor, CompanyID: &companyID}, true},
		{"field tech of company", access.Caller{UserID: uuid.New(), Role: access.RoleFieldTech, CompanyID: &companyID}, false},
		{"admin of another company", access.Caller{UserID: uuid.New(), Role: access.RoleAdmin, CompanyID: &otherID}, false},
		{"no company", access.Caller{UserID: uuid.New(), Role: access.RoleAdmin}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, access.CanManageTeam(tt.caller, company))
		})
	}
}

func TestAdminCapabilities(t *testing.T) {
	companyID := uuid.New()
	company := access.Company{ID: companyID}

	admin := access.Evaluate(access.Caller{Role: access.RoleAdmin, CompanyID: &companyID}, company)
	assert.Equal(t, access.Capabilities{
		ManageTeam: true, SwitchCompanies: true, ImportData: true,
		ManageCompanySettings: true, DeleteCustomers: true,
	}, admin)

	sup := access.Evaluate(access.Caller{Role: access.RoleSupervisor, CompanyID: &companyID}, company)
	assert.Equal(t, access.Capabilities{ManageTeam: true}, sup)

	su := access.Evaluate(access.Caller{IsSuperAdmin: true}, company)
	assert.True(t, su.ManageTeam)
	assert.True(t, su.DeleteCustomers)
}

func TestNormalizeAction(t *testing.T) {
	assert.Equal(t, "/jobs/abc", access.NormalizeAction("/Jobs/ABC/"))
	assert.Equal(t, "/jobs", access.NormalizeAction("jobs?tab=open"))
	assert.Equal(t, "/team/invite", access.NormalizeAction("//team//invite#top"))
	assert.Equal(t, "/", access.NormalizeAction(""))
}

func TestTable_InheritsParentRule(t *testing.T) {
	table := access.NewTable(access.DefaultActions, false)
	tech := access.Caller{Role: access.RoleFieldTech}

	d := table.Decide(tech, "/jobs/4f1c/edit")
	assert.True(t, d.Mapped)
	assert.Equal(t, "/jobs", d.Rule)
	assert.True(t, d.Allowed)

	d = table.Decide(tech, "/customers/delete/99")
	assert.Equal(t, "/customers/delete", d.Rule)
	assert.False(t, d.Allowed)

	assert.True(t, table.Allowed(tech, "/customers/99"))
	assert.False(t, table.Allowed(tech, "/invoices/12"))
	assert.True(t, table.Allowed(access.Caller{Role: access.RoleSupervisor}, "/invoices/12"))
}

func TestTable_UnmappedFailsClosedByDefault(t *testing.T) {
	table := access.NewTable(access.DefaultActions, false)
	admin := access.Caller{Role: access.RoleAdmin}

	d := table.Decide(admin, "/payroll")
	assert.False(t, d.Mapped)
	assert.False(t, d.Allowed)

	assert.True(t, table.Allowed(access.Caller{IsSuperAdmin: true}, "/payroll"))
}

func TestTable_UnmappedFailOpen(t *testing.T) {
	table := access.NewTable(access.DefaultActions, true)

	d := table.Decide(access.Caller{Role: access.RoleFieldTech}, "/payroll")
	assert.False(t, d.Mapped)
	assert.True(t, d.Allowed)
}

func TestTable_SubPathNeverLooserThanParent(t *testing.T) {
	table := access.NewTable(access.DefaultActions, false)
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	parents := []string{"/jobs", "/invoices", "/settings", "/team", "/reports"}

	properties.Property("child rule equals parent rule when child is unmapped", prop.ForAll(
		func(parentIdx int, segment string, role access.Role) bool {
			parent := parents[parentIdx]
			caller := access.Caller{Role: role}
			return table.Allowed(caller, parent+"/"+segment) == table.Allowed(caller, parent)
		},
		gen.IntRange(0, len(parents)-1),
		gen.Identifier(),
		gen.OneConstOf(access.RoleFieldTech, access.RoleSupervisor, access.RoleAdmin).
			Map(func(r *gopter.GenResult) access.Role { v, _ := r.Retrieve(); return v.(access.Role) }),
	))

	properties.TestingRun(t)
}
