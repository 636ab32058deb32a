package kyc

import (
	"scraphub/models"
)

// allowedUpgrades is the business rule for role elevation: monotonic trust
// escalation only. No downgrades, no lateral moves, no skipping admin.
var allowedUpgrades = map[string][]string{
	models.RoleIndividual: {models.RoleWarehouse, models.RoleCompany},
	models.RoleWarehouse:  {models.RoleCompany},
}

// AllowedUpgrade reports whether an account holding `from` may request `to`.
func AllowedUpgrade(from, to string) bool {
	for _, role := range allowedUpgrades[from] {
		if role == to {
			return true
		}
	}
	return false
}
