package models

import (
	"fmt"

	"bitbucket.org/mmdatafocus/livestock_backend/utils"
	"gorm.io/gorm"
)

type Role string

const (
	RoleFarmer  Role = "farmer"
	RoleOfficer Role = "officer"
	RoleAdmin   Role = "admin"
)

// Actor is the authenticated caller, threaded explicitly into every core
// operation. A farmer carries its farmer id, an officer its assigned farm
// ids; neither is read from ambient state.
type Actor struct {
	UserId          int
	Role            Role
	FarmerId        int   // set when Role == RoleFarmer
	AssignedFarmIds []int // set when Role == RoleOfficer
}

func FarmerActor(userId, farmerId int) Actor {
	return Actor{UserId: userId, Role: RoleFarmer, FarmerId: farmerId}
}

func OfficerActor(userId int, assignedFarmIds []int) Actor {
	return Actor{UserId: userId, Role: RoleOfficer, AssignedFarmIds: assignedFarmIds}
}

func AdminActor(userId int) Actor {
	return Actor{UserId: userId, Role: RoleAdmin}
}

func (a Actor) IsStaff() bool {
	return a.Role == RoleOfficer || a.Role == RoleAdmin
}

// RequireStaff gates officer/admin-only operations.
func (a Actor) RequireStaff(operation string) error {
	switch a.Role {
	case RoleOfficer, RoleAdmin:
		return nil
	case RoleFarmer:
		return &utils.ForbiddenError{Reason: fmt.Sprintf("%s requires officer or admin role", operation)}
	}
	return &utils.ForbiddenError{Reason: fmt.Sprintf("unknown role %q", a.Role)}
}

// RequireAdmin gates admin-only operations.
func (a Actor) RequireAdmin(operation string) error {
	switch a.Role {
	case RoleAdmin:
		return nil
	case RoleOfficer, RoleFarmer:
		return &utils.ForbiddenError{Reason: fmt.Sprintf("%s requires admin role", operation)}
	}
	return &utils.ForbiddenError{Reason: fmt.Sprintf("unknown role %q", a.Role)}
}

// ScopeByFarm narrows a query on a table with a farm_id column to the farms
// the actor may see. Applied identically to list and count queries.
func (a Actor) ScopeByFarm(dbCtx *gorm.DB, column string) (*gorm.DB, error) {
	switch a.Role {
	case RoleAdmin:
		return dbCtx, nil
	case RoleFarmer:
		return dbCtx.Where(column+" IN (?)",
			dbCtx.Session(&gorm.Session{NewDB: true}).Model(&Farm{}).
				Select("id").Where("farmer_id = ?", a.FarmerId)), nil
	case RoleOfficer:
		if len(a.AssignedFarmIds) == 0 {
			// an officer with no assignments sees nothing, not everything
			return dbCtx.Where("1 = 0"), nil
		}
		return dbCtx.Where(column+" IN ?", a.AssignedFarmIds), nil
	}
	return nil, &utils.ForbiddenError{Reason: fmt.Sprintf("unknown role %q", a.Role)}
}
