package groups

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/chamahub/chamahub/pkg/chamahub/auth"
	"github.com/chamahub/chamahub/pkg/chamahub/models"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	// Placeholders substituted when a membership's profile is missing.
	// A missing profile degrades the display fields; it never drops the row.
	unknownName  = "Unknown"
	unknownPhone = "No phone number"
)

// MemberResponse represents a group member in API responses
type MemberResponse struct {
	ID          uint   `json:"id"` // Membership ID, not the user ID
	UserID      uint   `json:"user_id"`
	FullName    string `json:"full_name"`
	PhoneNumber string `json:"phone_number"`
	Role        string `json:"role"`
	JoinedAt    string `json:"joined_at"`
}

// AddMemberRequest represents a request to add a registered user by email
type AddMemberRequest struct {
	Email string `json:"email" binding:"required,email"`
	Role  string `json:"role" binding:"required,oneof=admin treasurer member"`
}

// AddMemberByNameRequest represents a request to enroll a member by name and
// phone number, creating a guest profile when none matches
type AddMemberByNameRequest struct {
	FullName    string `json:"full_name" binding:"required,min=2"`
	PhoneNumber string `json:"phone_number" binding:"required,min=10"`
	Role        string `json:"role" binding:"required,oneof=admin treasurer member"`
}

// UpdateMemberRequest represents a request to update a member's role
type UpdateMemberRequest struct {
	Role string `json:"role" binding:"required,oneof=admin treasurer member"`
}

// isUniqueViolation reports whether an insert failed on the (user_id,
// group_id) unique index. The constraint, not the courtesy pre-check, is the
// authoritative duplicate-membership signal.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// ResolveMembers returns every membership row for a group, enriched with the
// member's name and phone number. Memberships whose profile is missing are
// kept with placeholder display fields, so the returned length always equals
// the membership row count. An empty group returns immediately without
// querying the users table.
func ResolveMembers(db *gorm.DB, groupID uint) ([]MemberResponse, error) {
	if groupID == 0 {
		return []MemberResponse{}, nil
	}

	var memberships []models.GroupMembership
	if err := db.Where("group_id = ?", groupID).Find(&memberships).Error; err != nil {
		return nil, err
	}
	if len(memberships) == 0 {
		return []MemberResponse{}, nil
	}

	userIDs := make([]uint, 0, len(memberships))
	seen := make(map[uint]bool)
	for _, m := range memberships {
		if m.UserID != 0 && !seen[m.UserID] {
			seen[m.UserID] = true
			userIDs = append(userIDs, m.UserID)
		}
	}
	if len(userIDs) == 0 {
		return []MemberResponse{}, nil
	}

	var users []models.User
	if err := db.Where("id IN ?", userIDs).Find(&users).Error; err != nil {
		return nil, err
	}
	profiles := make(map[uint]models.User, len(users))
	for _, u := range users {
		profiles[u.ID] = u
	}

	members := make([]MemberResponse, len(memberships))
	for i, m := range memberships {
		members[i] = MemberResponse{
			ID:          m.ID,
			UserID:      m.UserID,
			FullName:    unknownName,
			PhoneNumber: unknownPhone,
			Role:        string(m.Role),
			JoinedAt:    m.CreatedAt.Format("2006-01-02T15:04:05Z"),
		}
		if profile, ok := profiles[m.UserID]; ok {
			if profile.FullName != "" {
				members[i].FullName = profile.FullName
			}
			if profile.PhoneNumber != "" {
				members[i].PhoneNumber = profile.PhoneNumber
			}
		}
	}

	return members, nil
}

// ListMembers returns all members of a group
// @Summary List group members
// @Description Get all members of a group with their names and phone numbers
// @Tags members
// @Produce json
// @Param id path int true "Group ID"
// @Success 200 {array} MemberResponse
// @Failure 404 {object} map[string]string "Group not found"
// @Security BearerAuth
// @Router /groups/{id}/members [get]
func (h *Handler) ListMembers(c *gin.Context) {
	userID, _ := auth.GetUserID(c)
	groupID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid group ID"})
		return
	}

	// Member list is visible to members only
	if _, isMember := MembershipRole(h.db, userID, uint(groupID)); !isMember {
		c.JSON(http.StatusNotFound, gin.H{"error": "Group not found"})
		return
	}

	members, err := ResolveMembers(h.db, uint(groupID))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch members"})
		return
	}

	c.JSON(http.StatusOK, members)
}

// addMembership inserts a membership row, translating a unique-index
// violation into a conflict response. Returns false when a response has
// already been written.
func (h *Handler) addMembership(c *gin.Context, targetUserID, groupID uint, role models.GroupRole) (models.GroupMembership, bool) {
	// Courtesy pre-check for a friendly error; the unique index closes the
	// race two concurrent adds would otherwise win together.
	var existing models.GroupMembership
	if err := h.db.Where("user_id = ? AND group_id = ?", targetUserID, groupID).First(&existing).Error; err == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "User is already a member of this group"})
		return models.GroupMembership{}, false
	}

	membership := models.GroupMembership{
		UserID:  targetUserID,
		GroupID: groupID,
		Role:    role,
	}
	if err := h.db.Create(&membership).Error; err != nil {
		if isUniqueViolation(err) {
			c.JSON(http.StatusConflict, gin.H{"error": "User is already a member of this group"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to add member"})
		}
		return models.GroupMembership{}, false
	}
	return membership, true
}

// AddMember adds a registered user to a group by email (admin/treasurer only)
// @Summary Add a member by email
// @Description Add a registered user to the group. Unregistered emails are refused.
// @Tags members
// @Accept json
// @Produce json
// @Param id path int true "Group ID"
// @Param request body AddMemberRequest true "Member details"
// @Success 201 {object} MemberResponse
// @Failure 403 {object} map[string]string "Manage access required"
// @Failure 404 {object} map[string]string "User not found"
// @Failure 409 {object} map[string]string "Already a member"
// @Security BearerAuth
// @Router /groups/{id}/members [post]
func (h *Handler) AddMember(c *gin.Context) {
	userID, _ := auth.GetUserID(c)
	groupID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid group ID"})
		return
	}

	role, isMember := MembershipRole(h.db, userID, uint(groupID))
	if !isMember || !CanManageMembers(role) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Admin or treasurer access required"})
		return
	}

	var req AddMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// Only registered users can be added by email. Members without an
	// account are enrolled through the by-name path instead.
	var targetUser models.User
	if err := h.db.Where("email = ?", req.Email).First(&targetUser).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "No registered user with this email address"})
		return
	}

	membership, ok := h.addMembership(c, targetUser.ID, uint(groupID), models.GroupRole(req.Role))
	if !ok {
		return
	}

	c.JSON(http.StatusCreated, MemberResponse{
		ID:          membership.ID,
		UserID:      targetUser.ID,
		FullName:    targetUser.FullName,
		PhoneNumber: targetUser.PhoneNumber,
		Role:        req.Role,
		JoinedAt:    membership.CreatedAt.Format("2006-01-02T15:04:05Z"),
	})
}

// AddMemberByName enrolls a member by name and phone (admin/treasurer only).
// When no profile matches exactly, a guest profile is created so treasurers
// can enroll members who never use the app themselves.
// @Summary Add a member by name and phone
// @Description Add a member by exact name and phone match, creating a guest profile when none exists
// @Tags members
// @Accept json
// @Produce json
// @Param id path int true "Group ID"
// @Param request body AddMemberByNameRequest true "Member details"
// @Success 201 {object} MemberResponse
// @Failure 403 {object} map[string]string "Manage access required"
// @Failure 409 {object} map[string]string "Already a member"
// @Security BearerAuth
// @Router /groups/{id}/members/by-name [post]
func (h *Handler) AddMemberByName(c *gin.Context) {
	userID, _ := auth.GetUserID(c)
	groupID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid group ID"})
		return
	}

	role, isMember := MembershipRole(h.db, userID, uint(groupID))
	if !isMember || !CanManageMembers(role) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Admin or treasurer access required"})
		return
	}

	var req AddMemberByNameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var targetUser models.User
	err = h.db.Where("full_name = ? AND phone_number = ?", req.FullName, req.PhoneNumber).First(&targetUser).Error
	if err != nil {
		// No exact match: create a guest profile. Guests carry a generated
		// external ID and a synthetic unique email, and cannot log in.
		guestID := uuid.New().String()
		targetUser = models.User{
			ExternalID:  guestID,
			Email:       guestID + "@guest.chamahub.local",
			FullName:    req.FullName,
			PhoneNumber: req.PhoneNumber,
			SystemRole:  models.SystemRoleUser,
		}
		if err := h.db.Create(&targetUser).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create member profile"})
			return
		}
	}

	membership, ok := h.addMembership(c, targetUser.ID, uint(groupID), models.GroupRole(req.Role))
	if !ok {
		return
	}

	c.JSON(http.StatusCreated, MemberResponse{
		ID:          membership.ID,
		UserID:      targetUser.ID,
		FullName:    targetUser.FullName,
		PhoneNumber: targetUser.PhoneNumber,
		Role:        req.Role,
		JoinedAt:    membership.CreatedAt.Format("2006-01-02T15:04:05Z"),
	})
}

// UpdateMember updates a member's role (admin/treasurer only)
// @Summary Update a member's role
// @Description Change a group member's role (requires admin or treasurer role)
// @Tags members
// @Accept json
// @Produce json
// @Param id path int true "Group ID"
// @Param memberId path int true "Membership ID"
// @Param request body UpdateMemberRequest true "New role"
// @Success 200 {object} MemberResponse
// @Failure 403 {object} map[string]string "Manage access required"
// @Failure 404 {object} map[string]string "Member not found"
// @Security BearerAuth
// @Router /groups/{id}/members/{memberId} [put]
func (h *Handler) UpdateMember(c *gin.Context) {
	userID, _ := auth.GetUserID(c)
	groupID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid group ID"})
		return
	}
	memberID, err := strconv.ParseUint(c.Param("memberId"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid member ID"})
		return
	}

	role, isMember := MembershipRole(h.db, userID, uint(groupID))
	if !isMember || !CanManageMembers(role) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Admin or treasurer access required"})
		return
	}

	var req UpdateMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// Scoped by both membership ID and group ID so a membership ID from
	// another group cannot be reached through this route.
	var membership models.GroupMembership
	if err := h.db.Preload("User").Where("id = ? AND group_id = ?", memberID, groupID).First(&membership).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Member not found"})
		return
	}

	// Own row is never actionable
	if membership.UserID == userID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Cannot change your own role"})
		return
	}

	membership.Role = models.GroupRole(req.Role)
	if err := h.db.Save(&membership).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update member"})
		return
	}

	fullName := membership.User.FullName
	if fullName == "" {
		fullName = unknownName
	}
	phone := membership.User.PhoneNumber
	if phone == "" {
		phone = unknownPhone
	}

	c.JSON(http.StatusOK, MemberResponse{
		ID:          membership.ID,
		UserID:      membership.UserID,
		FullName:    fullName,
		PhoneNumber: phone,
		Role:        string(membership.Role),
		JoinedAt:    membership.CreatedAt.Format("2006-01-02T15:04:05Z"),
	})
}

// RemoveMember removes a member from a group (admin only)
// @Summary Remove a member
// @Description Remove a member from the group (requires admin role; removing yourself is refused)
// @Tags members
// @Produce json
// @Param id path int true "Group ID"
// @Param memberId path int true "Membership ID"
// @Success 200 {object} map[string]string "Member removed"
// @Failure 403 {object} map[string]string "Admin access required"
// @Failure 404 {object} map[string]string "Member not found"
// @Security BearerAuth
// @Router /groups/{id}/members/{memberId} [delete]
func (h *Handler) RemoveMember(c *gin.Context) {
	userID, _ := auth.GetUserID(c)
	groupID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid group ID"})
		return
	}
	memberID, err := strconv.ParseUint(c.Param("memberId"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid member ID"})
		return
	}

	// Removal is destructive and gated more strictly than manage
	role, isMember := MembershipRole(h.db, userID, uint(groupID))
	if !isMember || !CanRemoveMembers(role) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Admin access required"})
		return
	}

	var membership models.GroupMembership
	if err := h.db.Where("id = ? AND group_id = ?", memberID, groupID).First(&membership).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Member not found"})
		return
	}

	// Own row is never actionable, which also protects the last admin
	if membership.UserID == userID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Cannot remove yourself from the group"})
		return
	}

	// Hard delete so the pair frees up and the member can be re-added later
	if err := h.db.Unscoped().Delete(&membership).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to remove member"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Member removed"})
}

// RegisterMemberRoutes registers member management routes
func (h *Handler) RegisterMemberRoutes(rg *gin.RouterGroup) {
	rg.GET("/:id/members", h.ListMembers)
	rg.POST("/:id/members", h.AddMember)
	rg.POST("/:id/members/by-name", h.AddMemberByName)
	rg.PUT("/:id/members/:memberId", h.UpdateMember)
	rg.DELETE("/:id/members/:memberId", h.RemoveMember)
}
