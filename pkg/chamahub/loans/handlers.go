package loans

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

// Handler handles loan-related requests
type Handler struct {
	db *gorm.DB
}

// NewHandler creates a new loans handler
func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

// ApplyLoanRequest represents a loan application
type ApplyLoanRequest struct {
	GroupID             uint    `json:"group_id" binding:"required"`
	Amount              float64 `json:"amount" binding:"required,gte=1000"`
	InterestRate        float64 `json:"interest_rate" binding:"gte=0"`
	Purpose             string  `json:"purpose" binding:"required,min=10"`
	PaymentPeriodMonths int     `json:"payment_period_months" binding:"required,gte=1"`
}

// RepayLoanRequest represents a repayment against a loan
type RepayLoanRequest struct {
	Amount        float64 `json:"amount" binding:"required,gt=0"`
	PaymentMethod string  `json:"payment_method" binding:"required"`
	Reference     string  `json:"reference"`
}

// LoanResponse represents a loan in API responses
type LoanResponse struct {
	ID                  uint    `json:"id"`
	GroupID             uint    `json:"group_id"`
	GroupName           string  `json:"group_name"`
	UserID              uint    `json:"user_id"`
	MemberName          string  `json:"member_name"`
	Amount              float64 `json:"amount"`
	InterestRate        float64 `json:"interest_rate"`
	Purpose             string  `json:"purpose"`
	PaymentPeriodMonths int     `json:"payment_period_months"`
	Status              string  `json:"status"`
	ApplicationDate     string  `json:"application_date"`
	IssuedDate          string  `json:"issued_date,omitempty"`
	DueDate             string  `json:"due_date,omitempty"`
	Balance             float64 `json:"balance"`
}

// LoanSummaryResponse represents portfolio totals for the treasury dashboard
type LoanSummaryResponse struct {
	ActiveTotal      float64 `json:"active_total"`
	ExpectedInterest float64 `json:"expected_interest"`
	OverdueTotal     float64 `json:"overdue_total"`
	RepaidTotal      float64 `json:"repaid_total"`
}

// effectiveStatus derives overdue from an active loan past its due date,
// without a background job flipping statuses.
func effectiveStatus(loan models.Loan, now time.Time) models.LoanStatus {
	if loan.IsOverdue(now) {
		return models.LoanStatusOverdue
	}
	return loan.Status
}

func (h *Handler) toResponses(rows []models.Loan) []LoanResponse {
	now := time.Now()

	userIDs := make([]uint, 0, len(rows))
	groupIDs := make([]uint, 0, len(rows))
	seenUsers := make(map[uint]bool)
	seenGroups := make(map[uint]bool)
	for _, row := range rows {
		if !seenUsers[row.UserID] {
			seenUsers[row.UserID] = true
			userIDs = append(userIDs, row.UserID)
		}
		if !seenGroups[row.GroupID] {
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

	responses := make([]LoanResponse, len(rows))
	for i, row := range rows {
		memberName := names[row.UserID]
		if memberName == "" {
			memberName = "Unknown"
		}
		groupName := groupNames[row.GroupID]
		if groupName == "" {
			groupName = "Unknown Group"
		}
		resp := LoanResponse{
			ID:                  row.ID,
			GroupID:             row.GroupID,
			GroupName:           groupName,
			UserID:              row.UserID,
			MemberName:          memberName,
			Amount:              row.Amount,
			InterestRate:        row.InterestRate,
			Purpose:             row.Purpose,
			PaymentPeriodMonths: row.PaymentPeriodMonths,
			Status:              string(effectiveStatus(row, now)),
			ApplicationDate:     row.ApplicationDate.Format(dateLayout),
			Balance:             row.Balance,
		}
		if row.IssuedDate != nil {
			resp.IssuedDate = row.IssuedDate.Format(dateLayout)
		}
		if row.DueDate != nil {
			resp.DueDate = row.DueDate.Format(dateLayout)
		}
		responses[i] = resp
	}
	return responses
}

// Apply submits a loan application
// @Summary Apply for a loan
// @Description Apply for a loan from a group you belong to
// @Tags loans
// @Accept json
// @Produce json
// @Param request body ApplyLoanRequest true "Loan application"
// @Success 201 {object} LoanResponse
// @Failure 400 {object} map[string]string "Validation error"
// @Failure 403 {object} map[string]string "Not a member"
// @Security BearerAuth
// @Router /loans [post]
func (h *Handler) Apply(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	var req ApplyLoanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if _, isMember := groups.MembershipRole(h.db, userID, req.GroupID); !isMember {
		c.JSON(http.StatusForbidden, gin.H{"error": "Not a member of this group"})
		return
	}

	loan := models.Loan{
		GroupID:             req.GroupID,
		UserID:              userID,
		Amount:              req.Amount,
		InterestRate:        req.InterestRate,
		Purpose:             req.Purpose,
		PaymentPeriodMonths: req.PaymentPeriodMonths,
		Status:              models.LoanStatusPending,
		ApplicationDate:     time.Now(),
	}
	if err := h.db.Create(&loan).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to submit loan application"})
		return
	}

	c.JSON(http.StatusCreated, h.toResponses([]models.Loan{loan})[0])
}

// loadLoanForDecision fetches a pending loan and verifies the caller can
// decide on it. Returns false when a response has already been written.
func (h *Handler) loadLoanForDecision(c *gin.Context) (models.Loan, bool) {
	userID, _ := auth.GetUserID(c)
	loanID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid loan ID"})
		return models.Loan{}, false
	}

	var loan models.Loan
	if err := h.db.First(&loan, loanID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Loan not found"})
		return models.Loan{}, false
	}

	role, isMember := groups.MembershipRole(h.db, userID, loan.GroupID)
	if !isMember || !groups.CanManageMembers(role) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Admin or treasurer access required"})
		return models.Loan{}, false
	}

	if loan.Status != models.LoanStatusPending {
		c.JSON(http.StatusConflict, gin.H{"error": "Loan has already been decided"})
		return models.Loan{}, false
	}

	return loan, true
}

// Approve approves a pending loan (admin/treasurer of the group)
// @Summary Approve a loan
// @Description Approve a pending loan, issuing it today with a due date at the end of its payment period
// @Tags loans
// @Produce json
// @Param id path int true "Loan ID"
// @Success 200 {object} LoanResponse
// @Failure 403 {object} map[string]string "Manage access required"
// @Failure 409 {object} map[string]string "Already decided"
// @Security BearerAuth
// @Router /loans/{id}/approve [post]
func (h *Handler) Approve(c *gin.Context) {
	loan, ok := h.loadLoanForDecision(c)
	if !ok {
		return
	}

	now := time.Now()
	due := now.AddDate(0, loan.PaymentPeriodMonths, 0)
	loan.Status = models.LoanStatusActive
	loan.IssuedDate = &now
	loan.DueDate = &due
	// Flat interest over the whole period
	loan.Balance = loan.Amount * (1 + loan.InterestRate/100)

	if err := h.db.Save(&loan).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to approve loan"})
		return
	}

	c.JSON(http.StatusOK, h.toResponses([]models.Loan{loan})[0])
}

// Reject rejects a pending loan (admin/treasurer of the group)
// @Summary Reject a loan
// @Description Reject a pending loan application
// @Tags loans
// @Produce json
// @Param id path int true "Loan ID"
// @Success 200 {object} LoanResponse
// @Failure 403 {object} map[string]string "Manage access required"
// @Failure 409 {object} map[string]string "Already decided"
// @Security BearerAuth
// @Router /loans/{id}/reject [post]
func (h *Handler) Reject(c *gin.Context) {
	loan, ok := h.loadLoanForDecision(c)
	if !ok {
		return
	}

	loan.Status = models.LoanStatusRejected
	if err := h.db.Save(&loan).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to reject loan"})
		return
	}

	c.JSON(http.StatusOK, h.toResponses([]models.Loan{loan})[0])
}

// Repay records a repayment against a loan
// @Summary Record a loan repayment
// @Description Record a repayment; the loan becomes repaid when the balance reaches zero
// @Tags loans
// @Accept json
// @Produce json
// @Param id path int true "Loan ID"
// @Param request body RepayLoanRequest true "Repayment details"
// @Success 200 {object} LoanResponse
// @Failure 400 {object} map[string]string "Validation error"
// @Failure 403 {object} map[string]string "Not authorized"
// @Security BearerAuth
// @Router /loans/{id}/repayments [post]
func (h *Handler) Repay(c *gin.Context) {
	userID, _ := auth.GetUserID(c)
	loanID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid loan ID"})
		return
	}

	var req RepayLoanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	method := models.PaymentMethod(req.PaymentMethod)
	if !method.IsValid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Payment method must be M-Pesa, Bank Transfer or Cash"})
		return
	}

	var loan models.Loan
	if err := h.db.First(&loan, loanID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Loan not found"})
		return
	}

	// The borrower repays their own loan; officials record on their behalf
	role, isMember := groups.MembershipRole(h.db, userID, loan.GroupID)
	if !isMember {
		c.JSON(http.StatusForbidden, gin.H{"error": "Not a member of this group"})
		return
	}
	if loan.UserID != userID && !groups.CanManageMembers(role) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Admin or treasurer access required to record for other members"})
		return
	}

	if loan.Status != models.LoanStatusActive {
		c.JSON(http.StatusConflict, gin.H{"error": "Loan is not active"})
		return
	}
	if req.Amount > loan.Balance {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Repayment exceeds outstanding balance"})
		return
	}

	err = h.db.Transaction(func(tx *gorm.DB) error {
		repayment := models.LoanRepayment{
			LoanID:        loan.ID,
			Amount:        req.Amount,
			PaymentMethod: method,
			Reference:     req.Reference,
			RecordedByID:  userID,
		}
		if err := tx.Create(&repayment).Error; err != nil {
			return err
		}

		loan.Balance -= req.Amount
		if loan.Balance <= 0 {
			loan.Balance = 0
			loan.Status = models.LoanStatusRepaid
		}
		return tx.Save(&loan).Error
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record repayment"})
		return
	}

	c.JSON(http.StatusOK, h.toResponses([]models.Loan{loan})[0])
}

// visibleLoans scopes a query to groups the caller belongs to, unless they
// are a system admin.
func (h *Handler) visibleLoans(c *gin.Context, userID uint) (*gorm.DB, bool) {
	query := h.db.Model(&models.Loan{})
	if auth.IsSystemAdmin(c) {
		return query, true
	}
	var memberGroupIDs []uint
	h.db.Model(&models.GroupMembership{}).Where("user_id = ?", userID).Pluck("group_id", &memberGroupIDs)
	if len(memberGroupIDs) == 0 {
		return nil, false
	}
	return query.Where("group_id IN ?", memberGroupIDs), true
}

// List returns loans visible to the caller
// @Summary List loans
// @Description List loans in the caller's groups (all groups for system admins)
// @Tags loans
// @Produce json
// @Param group_id query int false "Filter by group"
// @Param status query string false "Filter by status"
// @Success 200 {array} LoanResponse
// @Security BearerAuth
// @Router /loans [get]
func (h *Handler) List(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	query, any := h.visibleLoans(c, userID)
	if !any {
		c.JSON(http.StatusOK, []LoanResponse{})
		return
	}

	if groupID := c.Query("group_id"); groupID != "" {
		parsed, err := strconv.ParseUint(groupID, 10, 32)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid group ID"})
			return
		}
		query = query.Where("group_id = ?", parsed)
	}
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var rows []models.Loan
	if err := query.Order("application_date DESC").Find(&rows).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch loans"})
		return
	}

	c.JSON(http.StatusOK, h.toResponses(rows))
}

// Summary returns loan portfolio totals for the caller's visible loans
// @Summary Loan portfolio summary
// @Description Active balance, expected interest, overdue and repaid totals
// @Tags loans
// @Produce json
// @Success 200 {object} LoanSummaryResponse
// @Security BearerAuth
// @Router /loans/summary [get]
func (h *Handler) Summary(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	query, any := h.visibleLoans(c, userID)
	if !any {
		c.JSON(http.StatusOK, LoanSummaryResponse{})
		return
	}

	var rows []models.Loan
	if err := query.Find(&rows).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch loans"})
		return
	}

	now := time.Now()
	forSummary := make([]treasury.LoanForSummary, len(rows))
	for i, row := range rows {
		forSummary[i] = treasury.LoanForSummary{
			Amount:       row.Amount,
			Balance:      row.Balance,
			InterestRate: row.InterestRate,
			Status:       string(effectiveStatus(row, now)),
		}
	}

	summary := treasury.SummarizeLoans(forSummary)
	c.JSON(http.StatusOK, LoanSummaryResponse{
		ActiveTotal:      summary.ActiveTotal,
		ExpectedInterest: summary.ExpectedInterest,
		OverdueTotal:     summary.OverdueTotal,
		RepaidTotal:      summary.RepaidTotal,
	})
}

// RegisterRoutes registers loan routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/loans", h.Apply)
	rg.GET("/loans", h.List)
	rg.GET("/loans/summary", h.Summary)
	rg.POST("/loans/:id/approve", h.Approve)
	rg.POST("/loans/:id/reject", h.Reject)
	rg.POST("/loans/:id/repayments", h.Repay)
}
