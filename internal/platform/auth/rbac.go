package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

const (
	RoleAdmin        = "admin"
	RolePhysician    = "physician"
	RoleNurse        = "nurse"
	RoleReceptionist = "receptionist"
)

// Role sets used when registering routes.
var (
	// Everyone working in the clinic may read records.
	ReadRoles = []string{RolePhysician, RoleNurse, RoleReceptionist}
	// Patient and doctor registration happens at the front desk.
	RegistryRoles = []string{RoleReceptionist}
	// Consultations and exams are recorded by clinical staff.
	ClinicalRoles = []string{RolePhysician, RoleNurse}
	// Only physicians prescribe.
	PrescriberRoles = []string{RolePhysician}
)

// RequireRole allows the request when the user holds at least one of roles.
// Admins pass every check.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if HasAnyRole(RolesFromContext(c.Request().Context()), roles...) {
				return next(c)
			}
			return echo.NewHTTPError(http.StatusForbidden,
				fmt.Sprintf("required role: %s", strings.Join(roles, " or ")))
		}
	}
}

func HasAnyRole(userRoles []string, roles ...string) bool {
	for _, has := range userRoles {
		if has == RoleAdmin {
			return true
		}
		for _, required := range roles {
			if has == required {
				return true
			}
		}
	}
	return false
}
