package handlers

import (
	"fmt"
	"net/http"
	"time"

	"moveregistry-backend/internal/config"
	"moveregistry-backend/internal/models"
	"moveregistry-backend/internal/repository"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

// AdminAuthHandler authenticates backoffice operators.
type AdminAuthHandler struct {
	admins    repository.AdminRepository
	jwtSecret []byte
}

// AdminLoginRequest is the login POST body.
type AdminLoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
	TOTPCode string `json:"totp_code" binding:"required"`
}

// AdminLoginResponse is the login reply.
type AdminLoginResponse struct {
	Success bool   `json:"success"`
	Token   string `json:"token,omitempty"`
	Message string `json:"message"`
}

// AdminJWTClaims are the claims carried by an admin session token.
type AdminJWTClaims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// NewAdminAuthHandler creates a new admin auth handler.
func NewAdminAuthHandler(admins repository.AdminRepository) *AdminAuthHandler {
	secret := ""
	if config.AppConfig != nil {
		secret = config.AppConfig.Admin.JWTSecret
	}
	if secret == "" {
		secret = "moveregistry-admin-jwt-secret-change-me"
		logrus.Warn("⚠️ Using default admin JWT secret, set admin.jwtSecret in config")
	}
	return &AdminAuthHandler{
		admins:    admins,
		jwtSecret: []byte(secret),
	}
}

// Login verifies username, password, and TOTP code, and issues a session JWT.
// POST /api/v1/admin/login
func (h *AdminAuthHandler) Login(c *gin.Context) {
	var req AdminLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, AdminLoginResponse{
			Success: false,
			Message: fmt.Sprintf("Invalid request: %v", err),
		})
		return
	}

	user, err := h.admins.GetByUsername(c.Request.Context(), req.Username)
	if err != nil {
		// Deliberately generic.
		c.JSON(http.StatusUnauthorized, AdminLoginResponse{Success: false, Message: "Invalid credentials"})
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		c.JSON(http.StatusUnauthorized, AdminLoginResponse{Success: false, Message: "Invalid credentials"})
		return
	}
	if !totp.Validate(req.TOTPCode, user.TOTPSecret) {
		c.JSON(http.StatusUnauthorized, AdminLoginResponse{Success: false, Message: "Invalid TOTP code"})
		return
	}

	token, err := h.generateToken(req.Username)
	if err != nil {
		c.JSON(http.StatusInternalServerError, AdminLoginResponse{Success: false, Message: "Failed to generate token"})
		return
	}

	logrus.WithField("username", req.Username).Info("✅ Admin login")
	c.JSON(http.StatusOK, AdminLoginResponse{Success: true, Token: token, Message: "Login successful"})
}

// Setup creates the first admin account with a fresh TOTP secret. Guarded by
// the IP whitelist middleware; refuses to overwrite an existing account.
// POST /api/v1/admin/setup
func (h *AdminAuthHandler) Setup(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required,min=12"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	if _, err := h.admins.GetByUsername(c.Request.Context(), req.Username); err == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "Admin account already exists"})
		return
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      "MoveRegistry Admin",
		AccountName: req.Username,
		Period:      30,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate TOTP secret"})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to hash password"})
		return
	}

	if err := h.admins.Create(c.Request.Context(), &models.AdminUser{
		ID:           uuid.New().String(),
		Username:     req.Username,
		PasswordHash: string(hash),
		TOTPSecret:   key.Secret(),
	}); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create admin account"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"totp_url": key.URL(),
		"message":  "Scan the TOTP URL into an authenticator app; it is shown only once.",
	})
}

func (h *AdminAuthHandler) generateToken(username string) (string, error) {
	claims := AdminJWTClaims{
		Username: username,
		Role:     "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
			Issuer:    "moveregistry-admin",
			Subject:   username,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(h.jwtSecret)
}

// ValidateAdminToken parses and verifies an admin session JWT.
func ValidateAdminToken(tokenString string) (*AdminJWTClaims, error) {
	secret := ""
	if config.AppConfig != nil {
		secret = config.AppConfig.Admin.JWTSecret
	}
	if secret == "" {
		secret = "moveregistry-admin-jwt-secret-change-me"
	}

	token, err := jwt.ParseWithClaims(tokenString, &AdminJWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	if claims, ok := token.Claims.(*AdminJWTClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, fmt.Errorf("invalid token")
}
