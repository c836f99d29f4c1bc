package auth

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

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

func setupTestRouter(db *gorm.DB) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := NewHandler(db)
	auth := r.Group("/auth")
	handler.RegisterRoutes(auth)
	return r
}

func registerUser(t *testing.T, router *gin.Engine, email string) AuthResponse {
	body := RegisterRequest{
		Email:       email,
		Password:    "password123",
		FullName:    "Test User",
		PhoneNumber: "+254700000001",
	}
	jsonBody, _ := json.Marshal(body)
	req, _ := http.NewRequest("POST", "/auth/register", bytes.NewBuffer(jsonBody))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("Registration failed: %d: %s", resp.Code, resp.Body.String())
	}

	var response AuthResponse
	json.Unmarshal(resp.Body.Bytes(), &response)
	return response
}

func TestPasswordHashing(t *testing.T) {
	password := "testpassword123"

	hash, err := HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}

	if hash == password {
		t.Error("Hash should not equal plain password")
	}

	if !CheckPassword(password, hash) {
		t.Error("CheckPassword should return true for correct password")
	}

	if CheckPassword("wrongpassword", hash) {
		t.Error("CheckPassword should return false for incorrect password")
	}
}

func TestEmptyHashNeverMatches(t *testing.T) {
	// Guest profiles carry an empty hash; no password may match one
	if CheckPassword("", "") {
		t.Error("Empty password should not match empty hash")
	}
	if CheckPassword("anything", "") {
		t.Error("No password should match an empty hash")
	}
}

func TestJWTToken(t *testing.T) {
	token, err := GenerateToken(1, "test@example.com", "user")
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	claims, err := ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken failed: %v", err)
	}

	if claims.UserID != 1 {
		t.Errorf("Expected UserID 1, got %d", claims.UserID)
	}

	if claims.Email != "test@example.com" {
		t.Errorf("Expected email test@example.com, got %s", claims.Email)
	}

	if claims.SystemRole != "user" {
		t.Errorf("Expected role user, got %s", claims.SystemRole)
	}
}

func TestInvalidToken(t *testing.T) {
	_, err := ValidateToken("invalid-token")
	if err == nil {
		t.Error("Expected error for invalid token")
	}
}

func TestRegister(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)

	response := registerUser(t, router, "test@example.com")

	if response.Token == "" {
		t.Error("Expected token in response")
	}

	if response.User.Email != "test@example.com" {
		t.Errorf("Expected email test@example.com, got %s", response.User.Email)
	}

	if response.User.SystemRole != "user" {
		t.Errorf("Expected system role user, got %s", response.User.SystemRole)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)

	registerUser(t, router, "test@example.com")

	body := RegisterRequest{
		Email:    "test@example.com",
		Password: "password123",
		FullName: "Second User",
	}
	jsonBody, _ := json.Marshal(body)
	req, _ := http.NewRequest("POST", "/auth/register", bytes.NewBuffer(jsonBody))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusConflict {
		t.Errorf("Expected status 409, got %d", resp.Code)
	}
}

func TestLogin(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)

	registerUser(t, router, "test@example.com")

	loginBody := LoginRequest{
		Email:    "test@example.com",
		Password: "password123",
	}
	jsonBody, _ := json.Marshal(loginBody)
	req, _ := http.NewRequest("POST", "/auth/login", bytes.NewBuffer(jsonBody))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var response AuthResponse
	json.Unmarshal(resp.Body.Bytes(), &response)

	if response.Token == "" {
		t.Error("Expected token in response")
	}
}

func TestLoginWrongPassword(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)

	registerUser(t, router, "test@example.com")

	loginBody := LoginRequest{
		Email:    "test@example.com",
		Password: "wrongpassword",
	}
	jsonBody, _ := json.Marshal(loginBody)
	req, _ := http.NewRequest("POST", "/auth/login", bytes.NewBuffer(jsonBody))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", resp.Code)
	}
}

func TestGuestCannotLogin(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)

	guest := models.User{
		ExternalID:  "c5a1b9ce-0000-0000-0000-000000000000",
		Email:       "c5a1b9ce@guest.chamahub.local",
		FullName:    "Guest Member",
		PhoneNumber: "+254711222333",
		SystemRole:  models.SystemRoleUser,
	}
	db.Create(&guest)

	loginBody := LoginRequest{
		Email:    guest.Email,
		Password: "password123",
	}
	jsonBody, _ := json.Marshal(loginBody)
	req, _ := http.NewRequest("POST", "/auth/login", bytes.NewBuffer(jsonBody))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401 for guest login, got %d", resp.Code)
	}
}

func TestMe(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)

	authResponse := registerUser(t, router, "test@example.com")

	req, _ := http.NewRequest("GET", "/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+authResponse.Token)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var userResponse UserResponse
	json.Unmarshal(resp.Body.Bytes(), &userResponse)

	if userResponse.Email != "test@example.com" {
		t.Errorf("Expected email test@example.com, got %s", userResponse.Email)
	}
}

func TestMeWithoutAuth(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)

	req, _ := http.NewRequest("GET", "/auth/me", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", resp.Code)
	}
}

func TestUpdateProfile(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)

	authResponse := registerUser(t, router, "test@example.com")

	body := UpdateProfileRequest{
		FullName:    "Updated Name",
		PhoneNumber: "+254799888777",
	}
	jsonBody, _ := json.Marshal(body)
	req, _ := http.NewRequest("PUT", "/auth/me", bytes.NewBuffer(jsonBody))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+authResponse.Token)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var userResponse UserResponse
	json.Unmarshal(resp.Body.Bytes(), &userResponse)

	if userResponse.FullName != "Updated Name" {
		t.Errorf("Expected name 'Updated Name', got %s", userResponse.FullName)
	}
	if userResponse.PhoneNumber != "+254799888777" {
		t.Errorf("Expected updated phone number, got %s", userResponse.PhoneNumber)
	}
}
