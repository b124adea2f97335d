package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jafarshop/storefront/internal/service"
)

// HandleRegister handles POST /api/auth/register
func HandleRegister(svc *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req service.RegisterRequest
		if !bindJSON(c, &req) {
			return
		}

		result, err := svc.Auth.Register(c.Request.Context(), req)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		respondMessage(c, http.StatusCreated, "User registered successfully", result)
	}
}

// HandleLogin handles POST /api/auth/login
func HandleLogin(svc *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req service.LoginRequest
		if !bindJSON(c, &req) {
			return
		}

		result, err := svc.Auth.Login(c.Request.Context(), req)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		respondMessage(c, http.StatusOK, "Login successful", result)
	}
}

// HandleLogout handles POST /api/auth/logout. Tokens are stateless; the client discards it.
func HandleLogout() gin.HandlerFunc {
	return func(c *gin.Context) {
		respondMessage(c, http.StatusOK, "Logged out successfully", nil)
	}
}

// HandleGetMe handles GET /api/auth/me
func HandleGetMe(svc *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := svc.Auth.Profile(c.Request.Context(), currentUser(c).ID)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		respond(c, http.StatusOK, gin.H{"user": user})
	}
}

// HandleUpdateProfile handles PUT /api/auth/profile
func HandleUpdateProfile(svc *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req service.UpdateProfileRequest
		if !bindJSON(c, &req) {
			return
		}

		user, err := svc.Auth.UpdateProfile(c.Request.Context(), currentUser(c).ID, req)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		respondMessage(c, http.StatusOK, "Profile updated successfully", gin.H{"user": user})
	}
}

// HandleChangePassword handles PUT /api/auth/password
func HandleChangePassword(svc *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req service.ChangePasswordRequest
		if !bindJSON(c, &req) {
			return
		}

		if err := svc.Auth.ChangePassword(c.Request.Context(), currentUser(c).ID, req); err != nil {
			respondError(c, logger, err)
			return
		}
		respondMessage(c, http.StatusOK, "Password changed successfully", nil)
	}
}
