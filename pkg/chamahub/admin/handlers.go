package admin

import (
	"net/http"
	"strconv"

	"github.com/chamahub/chamahub/pkg/chamahub/auth"
	"github.com/chamahub/chamahub/pkg/chamahub/models"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Handler handles admin requests
type Handler struct {
	db *gorm.DB
}

// NewHandler creates a new admin handler
func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

// UserResponse represents user data in admin responses
type UserResponse struct {
	ID          uint   `json:"id"`
	Email       string `json:"email"`
	FullName    string `json:"full_name"`
	PhoneNumber string `json:"phone_number"`
	SystemRole  string `json:"system_role"`
	Active      bool   `json:"active"`
	IsGuest     bool   `json:"is_guest"`
	CreatedAt   string `json:"created_at"`
	GroupCount  int64  `json:"group_count"`
}

// UpdateUserRequest represents the request to update a user
type UpdateUserRequest struct {
	FullName   *string `json:"full_name"`
	SystemRole *string `json:"system_role"`
	Active     *bool   `json:"active"`
}

// StatsResponse represents system statistics
type StatsResponse struct {
	TotalUsers         int64   `json:"total_users"`
	TotalGroups        int64   `json:"total_groups"`
	TotalMemberships   int64   `json:"total_memberships"`
	TotalContributions int64   `json:"total_contributions"`
	ContributedAmount  float64 `json:"contributed_amount"`
	TotalLoans         int64   `json:"total_loans"`
	ActiveLoans        int64   `json:"active_loans"`
	AdminUsers         int64   `json:"admin_users"`
}

func (h *Handler) userToResponse(user models.User) UserResponse {
	var groupCount int64
	h.db.Model(&models.GroupMembership{}).Where("user_id = ?", user.ID).Count(&groupCount)

	return UserResponse{
		ID:          user.ID,
		Email:       user.Email,
		FullName:    user.FullName,
		PhoneNumber: user.PhoneNumber,
		SystemRole:  string(user.SystemRole),
		Active:      user.Active,
		IsGuest:     user.IsGuest(),
		CreatedAt:   user.CreatedAt.Format("2006-01-02T15:04:05Z"),
		GroupCount:  groupCount,
	}
}

// ListUsers returns all users (admin only)
func (h *Handler) ListUsers(c *gin.Context) {
	var users []models.User

	query := h.db.Order("created_at DESC")

	// Optional search by email, name or phone
	if search := c.Query("q"); search != "" {
		like := "%" + search + "%"
		query = query.Where("email LIKE ? OR full_name LIKE ? OR phone_number LIKE ?", like, like, like)
	}

	// Optional filter by system role
	if role := c.Query("role"); role != "" {
		query = query.Where("system_role = ?", role)
	}

	if err := query.Find(&users).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch users"})
		return
	}

	responses := make([]UserResponse, len(users))
	for i, user := range users {
		responses[i] = h.userToResponse(user)
	}

	c.JSON(http.StatusOK, responses)
}

// GetUser returns a single user by ID (admin only)
func (h *Handler) GetUser(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}

	var user models.User
	if err := h.db.First(&user, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	c.JSON(http.StatusOK, h.userToResponse(user))
}

// UpdateUser updates a user's profile (admin only)
func (h *Handler) UpdateUser(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}

	var user models.User
	if err := h.db.First(&user, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	var req UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// Prevent admin from demoting themselves
	currentUserID, _ := auth.GetUserID(c)
	if uint(id) == currentUserID && req.SystemRole != nil && *req.SystemRole != "admin" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Cannot demote yourself"})
		return
	}

	updates := make(map[string]interface{})
	if req.FullName != nil {
		updates["full_name"] = *req.FullName
	}
	if req.SystemRole != nil {
		if *req.SystemRole != "admin" && *req.SystemRole != "user" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid system role"})
			return
		}
		updates["system_role"] = *req.SystemRole
	}
	if req.Active != nil {
		updates["active"] = *req.Active
	}

	if len(updates) > 0 {
		if err := h.db.Model(&user).Updates(updates).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update user"})
			return
		}
	}

	// Reload user
	h.db.First(&user, id)

	c.JSON(http.StatusOK, h.userToResponse(user))
}

// DeleteUser deletes a user and their dependent rows (admin only)
func (h *Handler) DeleteUser(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}

	// Prevent admin from deleting themselves
	currentUserID, _ := auth.GetUserID(c)
	if uint(id) == currentUserID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Cannot delete yourself"})
		return
	}

	var user models.User
	if err := h.db.First(&user, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	// Contributions and loans are financial records and stay on the books;
	// only the memberships and the account go.
	err = h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().Where("user_id = ?", user.ID).Delete(&models.GroupMembership{}).Error; err != nil {
			return err
		}
		return tx.Delete(&user).Error
	})

	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete user"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "User deleted successfully"})
}

// GetStats returns system-wide statistics (admin only)
func (h *Handler) GetStats(c *gin.Context) {
	var stats StatsResponse

	h.db.Model(&models.User{}).Count(&stats.TotalUsers)
	h.db.Model(&models.Group{}).Count(&stats.TotalGroups)
	h.db.Model(&models.GroupMembership{}).Count(&stats.TotalMemberships)
	h.db.Model(&models.Contribution{}).Count(&stats.TotalContributions)
	h.db.Model(&models.Loan{}).Count(&stats.TotalLoans)
	h.db.Model(&models.Loan{}).Where("status = ?", models.LoanStatusActive).Count(&stats.ActiveLoans)
	h.db.Model(&models.User{}).Where("system_role = ?", "admin").Count(&stats.AdminUsers)

	h.db.Model(&models.Contribution{}).Select("COALESCE(SUM(amount), 0)").Scan(&stats.ContributedAmount)

	c.JSON(http.StatusOK, stats)
}

// RegisterRoutes registers admin routes on the given router group
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/stats", h.GetStats)
	rg.GET("/users", h.ListUsers)
	rg.GET("/users/:id", h.GetUser)
	rg.PUT("/users/:id", h.UpdateUser)
	rg.DELETE("/users/:id", h.DeleteUser)
}
