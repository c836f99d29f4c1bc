package groups

import (
	"net/http"
	"strconv"

	"github.com/chamahub/chamahub/pkg/chamahub/auth"
	"github.com/chamahub/chamahub/pkg/chamahub/models"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Handler handles group-related requests
type Handler struct {
	db *gorm.DB
}

// NewHandler creates a new groups handler
func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

// CreateGroupRequest represents the request to create a group
type CreateGroupRequest struct {
	Name          string  `json:"name" binding:"required,min=2"`
	Description   string  `json:"description"`
	MonthlyTarget float64 `json:"monthly_target" binding:"omitempty,gte=0"`
}

// UpdateGroupRequest represents the request to update a group
type UpdateGroupRequest struct {
	Name          string   `json:"name" binding:"omitempty,min=2"`
	Description   string   `json:"description"`
	MonthlyTarget *float64 `json:"monthly_target" binding:"omitempty"`
}

// GroupResponse represents a group in API responses
type GroupResponse struct {
	ID               uint    `json:"id"`
	Name             string  `json:"name"`
	Description      string  `json:"description"`
	MonthlyTarget    float64 `json:"monthly_target"`
	Role             string  `json:"role,omitempty"` // Caller's role in this group, empty if not a member
	CanManageMembers bool    `json:"can_manage_members"`
	MemberCount      int     `json:"member_count"`
	CreatedAt        string  `json:"created_at"`
}

func (h *Handler) groupToResponse(group models.Group, userID uint) GroupResponse {
	// Count query, never materialized membership rows
	var memberCount int64
	h.db.Model(&models.GroupMembership{}).Where("group_id = ?", group.ID).Count(&memberCount)

	role, isMember := MembershipRole(h.db, userID, group.ID)

	resp := GroupResponse{
		ID:            group.ID,
		Name:          group.Name,
		Description:   group.Description,
		MonthlyTarget: group.MonthlyTarget,
		MemberCount:   int(memberCount),
		CreatedAt:     group.CreatedAt.Format("2006-01-02T15:04:05Z"),
	}
	if isMember {
		resp.Role = string(role)
		resp.CanManageMembers = CanManageMembers(role)
	}
	return resp
}

// List returns all groups
// @Summary List groups
// @Description Get all savings groups, with the caller's role where they are a member
// @Tags groups
// @Produce json
// @Success 200 {array} GroupResponse
// @Security BearerAuth
// @Router /groups [get]
func (h *Handler) List(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	// Broad-access model: every authenticated user can see the full group
	// directory, not just groups they belong to.
	var groupList []models.Group
	if err := h.db.Order("created_at ASC").Find(&groupList).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch groups"})
		return
	}

	responses := make([]GroupResponse, len(groupList))
	for i, group := range groupList {
		responses[i] = h.groupToResponse(group, userID)
	}

	c.JSON(http.StatusOK, responses)
}

// Create creates a new group and adds the creator as admin
// @Summary Create a group
// @Description Create a new savings group with the current user as admin
// @Tags groups
// @Accept json
// @Produce json
// @Param request body CreateGroupRequest true "Group details"
// @Success 201 {object} GroupResponse
// @Failure 400 {object} map[string]string "Validation error"
// @Security BearerAuth
// @Router /groups [post]
func (h *Handler) Create(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	var req CreateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// Create group and creator's admin membership in one transaction
	var group models.Group
	err := h.db.Transaction(func(tx *gorm.DB) error {
		group = models.Group{
			Name:          req.Name,
			Description:   req.Description,
			MonthlyTarget: req.MonthlyTarget,
			CreatedByID:   userID,
		}
		if err := tx.Create(&group).Error; err != nil {
			return err
		}

		membership := models.GroupMembership{
			UserID:  userID,
			GroupID: group.ID,
			Role:    models.GroupRoleAdmin,
		}
		return tx.Create(&membership).Error
	})

	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create group"})
		return
	}

	c.JSON(http.StatusCreated, GroupResponse{
		ID:               group.ID,
		Name:             group.Name,
		Description:      group.Description,
		MonthlyTarget:    group.MonthlyTarget,
		Role:             string(models.GroupRoleAdmin),
		CanManageMembers: true,
		MemberCount:      1,
		CreatedAt:        group.CreatedAt.Format("2006-01-02T15:04:05Z"),
	})
}

// Get returns a specific group
// @Summary Get a group
// @Description Get details of a specific group
// @Tags groups
// @Produce json
// @Param id path int true "Group ID"
// @Success 200 {object} GroupResponse
// @Failure 404 {object} map[string]string "Group not found"
// @Security BearerAuth
// @Router /groups/{id} [get]
func (h *Handler) Get(c *gin.Context) {
	userID, _ := auth.GetUserID(c)
	groupID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid group ID"})
		return
	}

	var group models.Group
	if err := h.db.First(&group, groupID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Group not found"})
		return
	}

	c.JSON(http.StatusOK, h.groupToResponse(group, userID))
}

// Update updates a group (admin only)
// @Summary Update a group
// @Description Update a group (requires admin role in group)
// @Tags groups
// @Accept json
// @Produce json
// @Param id path int true "Group ID"
// @Param request body UpdateGroupRequest true "Updated group details"
// @Success 200 {object} GroupResponse
// @Failure 400 {object} map[string]string "Validation error"
// @Failure 403 {object} map[string]string "Admin access required"
// @Security BearerAuth
// @Router /groups/{id} [put]
func (h *Handler) Update(c *gin.Context) {
	userID, _ := auth.GetUserID(c)
	groupID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid group ID"})
		return
	}

	role, isMember := MembershipRole(h.db, userID, uint(groupID))
	if !isMember || role != models.GroupRoleAdmin {
		c.JSON(http.StatusForbidden, gin.H{"error": "Admin access required"})
		return
	}

	var req UpdateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var group models.Group
	if err := h.db.First(&group, groupID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Group not found"})
		return
	}

	if req.Name != "" {
		group.Name = req.Name
	}
	if req.Description != "" {
		group.Description = req.Description
	}
	if req.MonthlyTarget != nil {
		group.MonthlyTarget = *req.MonthlyTarget
	}

	if err := h.db.Save(&group).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update group"})
		return
	}

	c.JSON(http.StatusOK, h.groupToResponse(group, userID))
}

// Delete deletes a group and its memberships (admin only)
// @Summary Delete a group
// @Description Delete a group and all its membership rows (requires admin role in group)
// @Tags groups
// @Produce json
// @Param id path int true "Group ID"
// @Success 200 {object} map[string]string "Group deleted"
// @Failure 403 {object} map[string]string "Admin access required"
// @Security BearerAuth
// @Router /groups/{id} [delete]
func (h *Handler) Delete(c *gin.Context) {
	userID, _ := auth.GetUserID(c)
	groupID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid group ID"})
		return
	}

	role, isMember := MembershipRole(h.db, userID, uint(groupID))
	if !isMember || role != models.GroupRoleAdmin {
		c.JSON(http.StatusForbidden, gin.H{"error": "Admin access required"})
		return
	}

	// Deleting a group cascades its membership rows
	err = h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().Where("group_id = ?", groupID).Delete(&models.GroupMembership{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Group{}, groupID).Error
	})

	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete group"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Group deleted"})
}

// RegisterRoutes registers group routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.POST("", h.Create)
	rg.GET("/:id", h.Get)
	rg.PUT("/:id", h.Update)
	rg.DELETE("/:id", h.Delete)
}
