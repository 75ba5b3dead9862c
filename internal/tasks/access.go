package tasks

import "github.com/sunny-dsa/shiftcheck/pkg/models"

// Capability is a permission derived from an actor's role.
type Capability string

const (
	CapClaimManagerTasks Capability = "claim_manager_tasks"
	CapOverridePhotos    Capability = "override_photos"
	CapReassign          Capability = "reassign"
	CapPublish           Capability = "publish"
	CapBypassGeofence    Capability = "bypass_geofence"
	CapForceComplete     Capability = "force_complete"
	CapCancel            Capability = "cancel"
)

var managerCapabilities = []Capability{
	CapClaimManagerTasks, CapOverridePhotos, CapReassign, CapPublish,
}

var roleCapabilities = map[models.Role][]Capability{
	models.RoleEmployee: nil,
	models.RoleManager:  managerCapabilities,
	models.RoleAdmin:    append(append([]Capability{}, managerCapabilities...), CapBypassGeofence, CapForceComplete, CapCancel),
}

// Capabilities returns what the role may do.
func Capabilities(role models.Role) []Capability {
	return roleCapabilities[role]
}

// Can reports whether the actor holds the capability. Inactive actors hold none.
func Can(actor *models.Actor, c Capability) bool {
	if actor == nil || !actor.Active {
		return false
	}
	for _, have := range roleCapabilities[actor.Role] {
		if have == c {
			return true
		}
	}
	return false
}
