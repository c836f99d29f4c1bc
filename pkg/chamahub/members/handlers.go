package members

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/chamahub/chamahub/pkg/chamahub/auth"
	"github.com/chamahub/chamahub/pkg/chamahub/models"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Handler handles the cross-group member directory
type Handler struct {
	db *gorm.DB
}

// NewHandler creates a new members handler
func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

// DirectoryEntry represents one membership row in the directory, carrying
// its owning group's name for global filtering
type DirectoryEntry struct {
	ID          uint   `json:"id"` // Membership ID
	UserID      uint   `json:"user_id"`
	FullName    string `json:"full_name"`
	PhoneNumber string `json:"phone_number"`
	Role        string `json:"role"`
	JoinedAt    string `json:"joined_at"`
	GroupID     uint   `json:"group_id"`
	GroupName   string `json:"group_name"`
}

// List returns the member directory
// @Summary Member directory
// @Description Union of membership rows across all groups the caller may see: every group for system admins, the caller's own groups otherwise
// @Tags members
// @Produce json
// @Param group_id query int false "Filter by group"
// @Param role query string false "Filter by group role"
// @Param q query string false "Search by name or phone"
// @Success 200 {array} DirectoryEntry
// @Security BearerAuth
// @Router /members [get]
func (h *Handler) List(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	query := h.db.Model(&models.GroupMembership{})

	// System admins see every group; this is the global-admin path, separate
	// from per-group roles.
	if !auth.IsSystemAdmin(c) {
		var memberGroupIDs []uint
		h.db.Model(&models.GroupMembership{}).Where("user_id = ?", userID).Pluck("group_id", &memberGroupIDs)
		if len(memberGroupIDs) == 0 {
			c.JSON(http.StatusOK, []DirectoryEntry{})
			return
		}
		query = query.Where("group_id IN ?", memberGroupIDs)
	}

	if groupID := c.Query("group_id"); groupID != "" {
		parsed, err := strconv.ParseUint(groupID, 10, 32)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid group ID"})
			return
		}
		query = query.Where("group_id = ?", parsed)
	}
	if role := c.Query("role"); role != "" {
		if !models.GroupRole(role).IsValid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid role"})
			return
		}
		query = query.Where("role = ?", role)
	}

	var memberships []models.GroupMembership
	if err := query.Order("created_at ASC").Find(&memberships).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch members"})
		return
	}
	if len(memberships) == 0 {
		c.JSON(http.StatusOK, []DirectoryEntry{})
		return
	}

	// Batch-fetch profiles and group names; missing rows degrade display
	// fields rather than dropping the membership.
	userIDs := make([]uint, 0, len(memberships))
	groupIDs := make([]uint, 0, len(memberships))
	seenUsers := make(map[uint]bool)
	seenGroups := make(map[uint]bool)
	for _, m := range memberships {
		if m.UserID != 0 && !seenUsers[m.UserID] {
			seenUsers[m.UserID] = true
			userIDs = append(userIDs, m.UserID)
		}
		if !seenGroups[m.GroupID] {
			seenGroups[m.GroupID] = true
			groupIDs = append(groupIDs, m.GroupID)
		}
	}

	profiles := make(map[uint]models.User)
	if len(userIDs) > 0 {
		var users []models.User
		h.db.Where("id IN ?", userIDs).Find(&users)
		for _, u := range users {
			profiles[u.ID] = u
		}
	}
	groupNames := make(map[uint]string)
	if len(groupIDs) > 0 {
		var groupRows []models.Group
		h.db.Where("id IN ?", groupIDs).Find(&groupRows)
		for _, g := range groupRows {
			groupNames[g.ID] = g.Name
		}
	}

	search := c.Query("q")
	entries := make([]DirectoryEntry, 0, len(memberships))
	for _, m := range memberships {
		entry := DirectoryEntry{
			ID:          m.ID,
			UserID:      m.UserID,
			FullName:    "Unknown",
			PhoneNumber: "No phone number",
			Role:        string(m.Role),
			JoinedAt:    m.CreatedAt.Format("2006-01-02T15:04:05Z"),
			GroupID:     m.GroupID,
			GroupName:   "Unknown Group",
		}
		if profile, ok := profiles[m.UserID]; ok {
			if profile.FullName != "" {
				entry.FullName = profile.FullName
			}
			if profile.PhoneNumber != "" {
				entry.PhoneNumber = profile.PhoneNumber
			}
		}
		if name, ok := groupNames[m.GroupID]; ok {
			entry.GroupName = name
		}
		if search != "" && !matchesSearch(entry, search) {
			continue
		}
		entries = append(entries, entry)
	}

	c.JSON(http.StatusOK, entries)
}

func matchesSearch(entry DirectoryEntry, q string) bool {
	return containsFold(entry.FullName, q) || containsFold(entry.PhoneNumber, q)
}

// containsFold reports whether s contains substr, case-insensitively.
func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// RegisterRoutes registers member directory routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/members", h.List)
}
