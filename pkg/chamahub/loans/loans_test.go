package loans

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/chamahub/chamahub/pkg/chamahub/auth"
	"github.com/chamahub/chamahub/pkg/chamahub/models"
	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	models.AutoMigrate(db)
	return db
}

func createTestUser(t *testing.T, db *gorm.DB, email string) models.User {
	hash, _ := auth.HashPassword("password123")
	user := models.User{
		Email:        email,
		PasswordHash: hash,
		FullName:     "Test User",
		SystemRole:   models.SystemRoleUser,
	}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}
	return user
}

func setupTestRouter(db *gorm.DB) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := NewHandler(db)

	api := r.Group("")
	api.Use(auth.AuthMiddleware())
	handler.RegisterRoutes(api)

	return r
}

func getAuthHeader(user models.User) string {
	token, _ := auth.GenerateToken(user.ID, user.Email, string(user.SystemRole))
	return "Bearer " + token
}

func createGroupWithMember(t *testing.T, db *gorm.DB, user models.User, role models.GroupRole) models.Group {
	group := models.Group{Name: "Umoja Savings"}
	if err := db.Create(&group).Error; err != nil {
		t.Fatalf("Failed to create group: %v", err)
	}
	m := models.GroupMembership{UserID: user.ID, GroupID: group.ID, Role: role}
	if err := db.Create(&m).Error; err != nil {
		t.Fatalf("Failed to create membership: %v", err)
	}
	return group
}

func doJSON(router *gin.Engine, user models.User, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf *bytes.Buffer
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		buf = bytes.NewBuffer(jsonBody)
	} else {
		buf = bytes.NewBuffer(nil)
	}
	req, _ := http.NewRequest(method, path, buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", getAuthHeader(user))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func TestApplyForLoan(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	member := createTestUser(t, db, "member@example.com")
	group := createGroupWithMember(t, db, member, models.GroupRoleMember)

	resp := doJSON(router, member, "POST", "/loans", ApplyLoanRequest{
		GroupID:             group.ID,
		Amount:              10000,
		InterestRate:        10,
		Purpose:             "School fees for the new term",
		PaymentPeriodMonths: 6,
	})

	if resp.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", resp.Code, resp.Body.String())
	}

	var response LoanResponse
	json.Unmarshal(resp.Body.Bytes(), &response)
	if response.Status != "pending" {
		t.Errorf("Expected status pending, got %s", response.Status)
	}
	if response.Balance != 0 {
		t.Errorf("Expected zero balance before approval, got %v", response.Balance)
	}
}

func TestApplyNonMember(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	owner := createTestUser(t, db, "owner@example.com")
	outsider := createTestUser(t, db, "outsider@example.com")
	group := createGroupWithMember(t, db, owner, models.GroupRoleAdmin)

	resp := doJSON(router, outsider, "POST", "/loans", ApplyLoanRequest{
		GroupID:             group.ID,
		Amount:              10000,
		Purpose:             "School fees for the new term",
		PaymentPeriodMonths: 6,
	})

	if resp.Code != http.StatusForbidden {
		t.Errorf("Expected status 403, got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestApplyBelowMinimum(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	member := createTestUser(t, db, "member@example.com")
	group := createGroupWithMember(t, db, member, models.GroupRoleMember)

	resp := doJSON(router, member, "POST", "/loans", ApplyLoanRequest{
		GroupID:             group.ID,
		Amount:              500,
		Purpose:             "School fees for the new term",
		PaymentPeriodMonths: 6,
	})

	if resp.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for amount below minimum, got %d", resp.Code)
	}
}

func TestApproveLoan(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	treasurer := createTestUser(t, db, "treasurer@example.com")
	borrower := createTestUser(t, db, "borrower@example.com")
	group := createGroupWithMember(t, db, treasurer, models.GroupRoleTreasurer)
	db.Create(&models.GroupMembership{UserID: borrower.ID, GroupID: group.ID, Role: models.GroupRoleMember})

	loan := models.Loan{
		GroupID:             group.ID,
		UserID:              borrower.ID,
		Amount:              10000,
		InterestRate:        10,
		Purpose:             "School fees for the new term",
		PaymentPeriodMonths: 6,
		Status:              models.LoanStatusPending,
		ApplicationDate:     time.Now(),
	}
	db.Create(&loan)

	resp := doJSON(router, treasurer, "POST", "/loans/1/approve", nil)

	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var response LoanResponse
	json.Unmarshal(resp.Body.Bytes(), &response)
	if response.Status != "active" {
		t.Errorf("Expected status active, got %s", response.Status)
	}
	if response.Balance != 11000 {
		t.Errorf("Expected balance 11000 (principal plus flat interest), got %v", response.Balance)
	}
	if response.IssuedDate == "" || response.DueDate == "" {
		t.Error("Expected issued and due dates to be set")
	}
}

func TestApproveAlreadyDecided(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	treasurer := createTestUser(t, db, "treasurer@example.com")
	group := createGroupWithMember(t, db, treasurer, models.GroupRoleTreasurer)

	loan := models.Loan{
		GroupID:             group.ID,
		UserID:              treasurer.ID,
		Amount:              10000,
		Purpose:             "School fees for the new term",
		PaymentPeriodMonths: 6,
		Status:              models.LoanStatusRejected,
		ApplicationDate:     time.Now(),
	}
	db.Create(&loan)

	resp := doJSON(router, treasurer, "POST", "/loans/1/approve", nil)

	if resp.Code != http.StatusConflict {
		t.Errorf("Expected status 409 for decided loan, got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestApprovePlainMemberForbidden(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	member := createTestUser(t, db, "member@example.com")
	group := createGroupWithMember(t, db, member, models.GroupRoleMember)

	loan := models.Loan{
		GroupID:             group.ID,
		UserID:              member.ID,
		Amount:              10000,
		Purpose:             "School fees for the new term",
		PaymentPeriodMonths: 6,
		Status:              models.LoanStatusPending,
		ApplicationDate:     time.Now(),
	}
	db.Create(&loan)

	resp := doJSON(router, member, "POST", "/loans/1/approve", nil)

	if resp.Code != http.StatusForbidden {
		t.Errorf("Expected status 403, got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestRepayToZero(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	borrower := createTestUser(t, db, "borrower@example.com")
	group := createGroupWithMember(t, db, borrower, models.GroupRoleMember)

	issued := time.Now()
	due := issued.AddDate(0, 6, 0)
	loan := models.Loan{
		GroupID:             group.ID,
		UserID:              borrower.ID,
		Amount:              10000,
		InterestRate:        10,
		Purpose:             "School fees for the new term",
		PaymentPeriodMonths: 6,
		Status:              models.LoanStatusActive,
		ApplicationDate:     issued,
		IssuedDate:          &issued,
		DueDate:             &due,
		Balance:             11000,
	}
	db.Create(&loan)

	resp := doJSON(router, borrower, "POST", "/loans/1/repayments", RepayLoanRequest{
		Amount:        5000,
		PaymentMethod: "M-Pesa",
	})
	if resp.Code != http.StatusOK {
		t.Fatalf("First repayment: expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var response LoanResponse
	json.Unmarshal(resp.Body.Bytes(), &response)
	if response.Balance != 6000 {
		t.Errorf("Expected balance 6000 after first repayment, got %v", response.Balance)
	}
	if response.Status != "active" {
		t.Errorf("Expected status active, got %s", response.Status)
	}

	resp = doJSON(router, borrower, "POST", "/loans/1/repayments", RepayLoanRequest{
		Amount:        6000,
		PaymentMethod: "Cash",
	})
	if resp.Code != http.StatusOK {
		t.Fatalf("Final repayment: expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}

	json.Unmarshal(resp.Body.Bytes(), &response)
	if response.Balance != 0 {
		t.Errorf("Expected zero balance, got %v", response.Balance)
	}
	if response.Status != "repaid" {
		t.Errorf("Expected status repaid, got %s", response.Status)
	}

	var repaymentCount int64
	db.Model(&models.LoanRepayment{}).Where("loan_id = ?", loan.ID).Count(&repaymentCount)
	if repaymentCount != 2 {
		t.Errorf("Expected 2 repayment rows, got %d", repaymentCount)
	}
}

func TestRepayExceedsBalance(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	borrower := createTestUser(t, db, "borrower@example.com")
	group := createGroupWithMember(t, db, borrower, models.GroupRoleMember)

	loan := models.Loan{
		GroupID:             group.ID,
		UserID:              borrower.ID,
		Amount:              10000,
		Purpose:             "School fees for the new term",
		PaymentPeriodMonths: 6,
		Status:              models.LoanStatusActive,
		ApplicationDate:     time.Now(),
		Balance:             1000,
	}
	db.Create(&loan)

	resp := doJSON(router, borrower, "POST", "/loans/1/repayments", RepayLoanRequest{
		Amount:        2000,
		PaymentMethod: "Cash",
	})

	if resp.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for overpayment, got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestOverdueDerivedFromDueDate(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	borrower := createTestUser(t, db, "borrower@example.com")
	group := createGroupWithMember(t, db, borrower, models.GroupRoleMember)

	issued := time.Now().AddDate(0, -7, 0)
	due := issued.AddDate(0, 6, 0)
	loan := models.Loan{
		GroupID:             group.ID,
		UserID:              borrower.ID,
		Amount:              8000,
		InterestRate:        10,
		Purpose:             "Stock for the shop restock",
		PaymentPeriodMonths: 6,
		Status:              models.LoanStatusActive,
		ApplicationDate:     issued,
		IssuedDate:          &issued,
		DueDate:             &due,
		Balance:             8800,
	}
	db.Create(&loan)

	resp := doJSON(router, borrower, "GET", "/loans", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var loanList []LoanResponse
	json.Unmarshal(resp.Body.Bytes(), &loanList)
	if len(loanList) != 1 {
		t.Fatalf("Expected 1 loan, got %d", len(loanList))
	}
	if loanList[0].Status != "overdue" {
		t.Errorf("Expected derived status overdue, got %s", loanList[0].Status)
	}

	// Stored status stays active; overdue is a presentation-time derivation
	var stored models.Loan
	db.First(&stored, loan.ID)
	if stored.Status != models.LoanStatusActive {
		t.Errorf("Expected stored status active, got %s", stored.Status)
	}
}

func TestLoanSummary(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	member := createTestUser(t, db, "member@example.com")
	group := createGroupWithMember(t, db, member, models.GroupRoleMember)

	now := time.Now()
	future := now.AddDate(0, 3, 0)
	past := now.AddDate(0, -1, 0)

	db.Create(&models.Loan{GroupID: group.ID, UserID: member.ID, Amount: 10000, InterestRate: 10,
		Purpose: "School fees for the new term", PaymentPeriodMonths: 6,
		Status: models.LoanStatusActive, ApplicationDate: now, IssuedDate: &now, DueDate: &future, Balance: 11000})
	db.Create(&models.Loan{GroupID: group.ID, UserID: member.ID, Amount: 8000, InterestRate: 10,
		Purpose: "Stock for the shop restock", PaymentPeriodMonths: 6,
		Status: models.LoanStatusActive, ApplicationDate: now, IssuedDate: &now, DueDate: &past, Balance: 8800})
	db.Create(&models.Loan{GroupID: group.ID, UserID: member.ID, Amount: 3000, InterestRate: 10,
		Purpose: "Medical bill settlement", PaymentPeriodMonths: 3,
		Status: models.LoanStatusRepaid, ApplicationDate: now, Balance: 0})

	resp := doJSON(router, member, "GET", "/loans/summary", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var summary LoanSummaryResponse
	json.Unmarshal(resp.Body.Bytes(), &summary)

	if summary.ActiveTotal != 11000 {
		t.Errorf("Expected active total 11000, got %v", summary.ActiveTotal)
	}
	if summary.ExpectedInterest != 1100 {
		t.Errorf("Expected interest 1100, got %v", summary.ExpectedInterest)
	}
	if summary.OverdueTotal != 8800 {
		t.Errorf("Expected overdue total 8800, got %v", summary.OverdueTotal)
	}
	if summary.RepaidTotal != 3000 {
		t.Errorf("Expected repaid total 3000, got %v", summary.RepaidTotal)
	}
}

func TestListScopedToOwnGroups(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	member := createTestUser(t, db, "member@example.com")
	outsider := createTestUser(t, db, "outsider@example.com")
	group := createGroupWithMember(t, db, member, models.GroupRoleMember)

	db.Create(&models.Loan{GroupID: group.ID, UserID: member.ID, Amount: 10000,
		Purpose: "School fees for the new term", PaymentPeriodMonths: 6,
		Status: models.LoanStatusPending, ApplicationDate: time.Now()})

	resp := doJSON(router, outsider, "GET", "/loans", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var loanList []LoanResponse
	json.Unmarshal(resp.Body.Bytes(), &loanList)
	if len(loanList) != 0 {
		t.Errorf("Expected outsider to see 0 loans, got %d", len(loanList))
	}
}
