package groups

import (
	"github.com/chamahub/chamahub/pkg/chamahub/models"
	"gorm.io/gorm"
)

// MembershipRole returns the acting user's role within a group. The boolean
// is false when the user holds no membership in that group, an expected
// outcome rather than an error. This is the per-group authorization path; the
// system-wide admin flag lives on the user record and is evaluated
// separately, never through this function.
func MembershipRole(db *gorm.DB, userID, groupID uint) (models.GroupRole, bool) {
	var membership models.GroupMembership
	if err := db.Where("user_id = ? AND group_id = ?", userID, groupID).First(&membership).Error; err != nil {
		return "", false
	}
	return membership.Role, true
}

// CanManageMembers reports whether a role may add members and change roles.
func CanManageMembers(role models.GroupRole) bool {
	return role == models.GroupRoleAdmin || role == models.GroupRoleTreasurer
}

// CanRemoveMembers reports whether a role may remove members. Removal is
// destructive, so it is gated more strictly than manage.
func CanRemoveMembers(role models.GroupRole) bool {
	return role == models.GroupRoleAdmin
}
