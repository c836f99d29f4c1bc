package contributions

import (
	"net/http"
	"strconv"
	"time"

	"github.com/chamahub/chamahub/pkg/chamahub/auth"
	"github.com/chamahub/chamahub/pkg/chamahub/groups"
	"github.com/chamahub/chamahub/pkg/chamahub/models"
	"github.com/chamahub/chamahub/pkg/chamahub/treasury"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const dateLayout = "2006-01-02"

// Handler handles contribution-related requests
type Handler struct {
	db *gorm.DB
}

// NewHandler creates a new contributions handler
func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

// RecordContributionRequest represents the request to record a contribution
type RecordContributionRequest struct {
	GroupID          uint    `json:"group_id" binding:"required"`
	UserID           uint    `json:"user_id" binding:"required"`
	Amount           float64 `json:"amount" binding:"required,gt=0"`
	PaymentMethod    string  `json:"payment_method" binding:"required"`
	Description      string  `json:"description"`
	ContributionDate string  `json:"contribution_date"` // YYYY-MM-DD, defaults to today
}

// ContributionResponse represents a contribution in API responses
type ContributionResponse struct {
	ID               uint    `json:"id"`
	GroupID          uint    `json:"group_id"`
	GroupName        string  `json:"group_name"`
	UserID           uint    `json:"user_id"`
	MemberName       string  `json:"member_name"`
	Amount           float64 `json:"amount"`
	PaymentMethod    string  `json:"payment_method"`
	Description      string  `json:"description"`
	ContributionDate string  `json:"contribution_date"`
	Reference        string  `json:"reference"`
}

// SummaryResponse represents contribution totals for a group and period
type SummaryResponse struct {
	GroupID           uint    `json:"group_id"`
	Start             string  `json:"start"`
	End               string  `json:"end"`
	Total             float64 `json:"total"`
	Expected          float64 `json:"expected"`
	Outstanding       float64 `json:"outstanding"`
	PercentCompletion float64 `json:"percent_completion"`
}

// parseDateRange reads start/end query params (inclusive), defaulting to the
// current calendar month.
func parseDateRange(c *gin.Context) (time.Time, time.Time, error) {
	now := time.Now()
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, -1)

	if s := c.Query("start"); s != "" {
		parsed, err := time.Parse(dateLayout, s)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		start = parsed
	}
	if e := c.Query("end"); e != "" {
		parsed, err := time.Parse(dateLayout, e)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		end = parsed
	}
	return start, end, nil
}

// rangeFilter applies an inclusive [start, end] window on contribution_date.
func rangeFilter(query *gorm.DB, start, end time.Time) *gorm.DB {
	return query.Where("contribution_date >= ? AND contribution_date < ?", start, end.AddDate(0, 0, 1))
}

// Record records a new contribution
// @Summary Record a contribution
// @Description Record a member's contribution. Requires admin or treasurer role in the group unless recording your own.
// @Tags contributions
// @Accept json
// @Produce json
// @Param request body RecordContributionRequest true "Contribution details"
// @Success 201 {object} ContributionResponse
// @Failure 400 {object} map[string]string "Validation error"
// @Failure 403 {object} map[string]string "Not authorized"
// @Security BearerAuth
// @Router /contributions [post]
func (h *Handler) Record(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	var req RecordContributionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	method := models.PaymentMethod(req.PaymentMethod)
	if !method.IsValid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Payment method must be M-Pesa, Bank Transfer or Cash"})
		return
	}

	// Officials record for anyone in the group; plain members record only
	// their own contributions.
	role, isMember := groups.MembershipRole(h.db, userID, req.GroupID)
	if !isMember {
		c.JSON(http.StatusForbidden, gin.H{"error": "Not a member of this group"})
		return
	}
	if req.UserID != userID && !groups.CanManageMembers(role) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Admin or treasurer access required to record for other members"})
		return
	}

	// The contributing member must belong to the group
	if _, ok := groups.MembershipRole(h.db, req.UserID, req.GroupID); !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Member does not belong to this group"})
		return
	}

	contributionDate := time.Now()
	if req.ContributionDate != "" {
		parsed, err := time.Parse(dateLayout, req.ContributionDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Contribution date must be YYYY-MM-DD"})
			return
		}
		contributionDate = parsed
	}

	contribution := models.Contribution{
		GroupID:          req.GroupID,
		UserID:           req.UserID,
		Amount:           req.Amount,
		PaymentMethod:    method,
		Description:      req.Description,
		ContributionDate: contributionDate,
		RecordedByID:     userID,
	}
	if err := h.db.Create(&contribution).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record contribution"})
		return
	}

	responses := h.toResponses([]models.Contribution{contribution})
	c.JSON(http.StatusCreated, responses[0])
}

// toResponses enriches contributions with member and group names, degrading
// to placeholders when a profile or group row is missing.
func (h *Handler) toResponses(rows []models.Contribution) []ContributionResponse {
	userIDs := make([]uint, 0, len(rows))
	groupIDs := make([]uint, 0, len(rows))
	seenUsers := make(map[uint]bool)
	seenGroups := make(map[uint]bool)
	for _, row := range rows {
		if row.UserID != 0 && !seenUsers[row.UserID] {
			seenUsers[row.UserID] = true
			userIDs = append(userIDs, row.UserID)
		}
		if row.GroupID != 0 && !seenGroups[row.GroupID] {
			seenGroups[row.GroupID] = true
			groupIDs = append(groupIDs, row.GroupID)
		}
	}

	names := make(map[uint]string)
	if len(userIDs) > 0 {
		var users []models.User
		h.db.Where("id IN ?", userIDs).Find(&users)
		for _, u := range users {
			names[u.ID] = u.FullName
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

	responses := make([]ContributionResponse, len(rows))
	for i, row := range rows {
		memberName := names[row.UserID]
		if memberName == "" {
			memberName = "Unknown"
		}
		groupName := groupNames[row.GroupID]
		if groupName == "" {
			groupName = "Unknown Group"
		}
		responses[i] = ContributionResponse{
			ID:               row.ID,
			GroupID:          row.GroupID,
			GroupName:        groupName,
			UserID:           row.UserID,
			MemberName:       memberName,
			Amount:           row.Amount,
			PaymentMethod:    string(row.PaymentMethod),
			Description:      row.Description,
			ContributionDate: row.ContributionDate.Format(dateLayout),
			Reference:        row.Reference(),
		}
	}
	return responses
}

// List returns contributions visible to the caller within a date range
// @Summary List contributions
// @Description List contributions in an inclusive date range (defaults to the current month). System admins see all groups; everyone else sees their own groups.
// @Tags contributions
// @Produce json
// @Param start query string false "Start date YYYY-MM-DD"
// @Param end query string false "End date YYYY-MM-DD"
// @Param group_id query int false "Filter by group"
// @Success 200 {array} ContributionResponse
// @Security BearerAuth
// @Router /contributions [get]
func (h *Handler) List(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	start, end, err := parseDateRange(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Dates must be YYYY-MM-DD"})
		return
	}

	query := rangeFilter(h.db.Model(&models.Contribution{}), start, end).Order("contribution_date DESC")

	if groupID := c.Query("group_id"); groupID != "" {
		parsed, err := strconv.ParseUint(groupID, 10, 32)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid group ID"})
			return
		}
		query = query.Where("group_id = ?", parsed)
	}

	// Visibility: system admins see everything, others only their groups
	if !auth.IsSystemAdmin(c) {
		var memberGroupIDs []uint
		h.db.Model(&models.GroupMembership{}).Where("user_id = ?", userID).Pluck("group_id", &memberGroupIDs)
		if len(memberGroupIDs) == 0 {
			c.JSON(http.StatusOK, []ContributionResponse{})
			return
		}
		query = query.Where("group_id IN ?", memberGroupIDs)
	}

	var rows []models.Contribution
	if err := query.Find(&rows).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch contributions"})
		return
	}

	c.JSON(http.StatusOK, h.toResponses(rows))
}

// GroupSummary returns contribution totals for a group and period
// @Summary Group contribution summary
// @Description Total, outstanding and completion percentage against the group's monthly target
// @Tags contributions
// @Produce json
// @Param id path int true "Group ID"
// @Param start query string false "Start date YYYY-MM-DD"
// @Param end query string false "End date YYYY-MM-DD"
// @Success 200 {object} SummaryResponse
// @Failure 404 {object} map[string]string "Group not found"
// @Security BearerAuth
// @Router /groups/{id}/contributions/summary [get]
func (h *Handler) GroupSummary(c *gin.Context) {
	userID, _ := auth.GetUserID(c)
	groupID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid group ID"})
		return
	}

	if _, isMember := groups.MembershipRole(h.db, userID, uint(groupID)); !isMember && !auth.IsSystemAdmin(c) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Group not found"})
		return
	}

	var group models.Group
	if err := h.db.First(&group, groupID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Group not found"})
		return
	}

	start, end, err := parseDateRange(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Dates must be YYYY-MM-DD"})
		return
	}

	var amounts []float64
	query := rangeFilter(h.db.Model(&models.Contribution{}).Where("group_id = ?", groupID), start, end)
	if err := query.Pluck("amount", &amounts).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch contributions"})
		return
	}

	summary := treasury.SummarizeContributions(amounts, group.MonthlyTarget)

	c.JSON(http.StatusOK, SummaryResponse{
		GroupID:           uint(groupID),
		Start:             start.Format(dateLayout),
		End:               end.Format(dateLayout),
		Total:             summary.Total,
		Expected:          summary.Expected,
		Outstanding:       summary.Outstanding,
		PercentCompletion: summary.PercentCompletion,
	})
}

// RegisterRoutes registers contribution routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/contributions", h.Record)
	rg.GET("/contributions", h.List)
	rg.GET("/groups/:id/contributions/summary", h.GroupSummary)
}
