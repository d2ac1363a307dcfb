package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"

	"chathub/internal/api/middleware"
	"chathub/internal/auth"
	"chathub/internal/models"
	"chathub/pkg/response"
)

type AuthHandler struct {
	service *auth.Service
}

func NewAuthHandler(service *auth.Service) *AuthHandler {
	return &AuthHandler{service: service}
}

// POST /auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, response.CodeValidation, "please fill all the fields")
		return
	}

	resp, err := h.service.Register(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, auth.ErrEmailTaken) {
			response.Fail(c, response.CodeValidation, "user already exists")
			return
		}
		response.Fail(c, response.CodeInternal, "registration failed")
		return
	}
	response.Created(c, resp)
}

// POST /auth/login accepts password or OTP.
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, response.CodeValidation, "please fill all the fields")
		return
	}

	resp, err := h.service.Login(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			response.Fail(c, response.CodeAuthentication, "invalid credentials")
			return
		}
		response.Fail(c, response.CodeInternal, "login failed")
		return
	}
	response.OK(c, resp)
}

// POST /auth/sendotp
func (h *AuthHandler) SendOTP(c *gin.Context) {
	var req models.SendOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, response.CodeValidation, "email is required")
		return
	}

	if err := h.service.SendOTP(c.Request.Context(), req.Email); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			response.Fail(c, response.CodeNotFound, "user not found")
			return
		}
		response.Fail(c, response.CodeInternal, "could not send otp")
		return
	}
	response.OK(c, gin.H{"message": "OTP sent successfully"})
}

// GET /auth/user is whoami by token.
func (h *AuthHandler) AuthUser(c *gin.Context) {
	user, err := h.service.GetByID(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		response.Fail(c, response.CodeNotFound, "user not found")
		return
	}
	response.OK(c, user.ToResponse())
}

// PUT /user/update
func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	var req models.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, response.CodeValidation, "malformed request")
		return
	}

	user, err := h.service.UpdateProfile(c.Request.Context(), middleware.UserID(c), req)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			response.Fail(c, response.CodeAuthentication, "invalid credentials")
			return
		}
		response.Fail(c, response.CodeInternal, "profile update failed")
		return
	}
	response.OK(c, gin.H{"message": "profile updated", "user": user.ToResponse()})
}
