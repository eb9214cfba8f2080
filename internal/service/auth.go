package service

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hmallik/taskally/internal/auth"
	"github.com/hmallik/taskally/internal/middleware"
	"github.com/hmallik/taskally/internal/models"
	"github.com/hmallik/taskally/internal/storage"
)

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	User  *models.User `json:"user"`
	Token string       `json:"token"`
}

// handleRegister creates an identity and profile together, returning the
// new user and a signed token.
func (s *Service) handleRegister(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Name == "" || req.Email == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name and email required"})
		return
	}

	user, err := auth.RegisterWithProfile(c.Request.Context(), s.provider, s.store, req.Name, req.Email, req.Password)
	if err != nil {
		s.logger.Warn("registration failed", "email", req.Email, "error", err)
		s.writeError(c, err)
		return
	}

	token, err := s.jwt.Generate(&auth.Session{UserID: user.ID, Email: user.Email, DisplayName: user.Name})
	if err != nil {
		s.logger.Error("token generation failed", "user_id", user.ID, "error", err)
		s.writeError(c, err)
		return
	}

	s.logger.Info("user registered", "user_id", user.ID, "email", user.Email)
	c.JSON(http.StatusCreated, authResponse{User: user, Token: token})
}

// handleLogin verifies credentials and returns the profile with a token.
func (s *Service) handleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Email == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and password required"})
		return
	}

	session, err := s.provider.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		s.logger.Warn("login failed", "email", req.Email, "error", err)
		s.writeError(c, auth.ErrInvalidCredentials)
		return
	}

	token, err := s.jwt.Generate(session)
	if err != nil {
		s.logger.Error("token generation failed", "user_id", session.UserID, "error", err)
		s.writeError(c, err)
		return
	}

	user, err := s.store.GetUser(c.Request.Context(), session.UserID)
	if err != nil {
		// An identity without a profile can still log in; the profile
		// fields come from the identity record.
		if !errors.Is(err, storage.ErrNotFound) {
			s.writeError(c, err)
			return
		}
		user = &models.User{ID: session.UserID, Email: session.Email, Name: session.DisplayName}
	}

	s.logger.Info("user logged in", "user_id", session.UserID)
	c.JSON(http.StatusOK, authResponse{User: user, Token: token})
}

// handleLogout is a no-op server side; tokens are stateless and discarded
// by the client.
func (s *Service) handleLogout(c *gin.Context) {
	s.logger.Info("user logged out", "user_id", middleware.GetUserID(c))
	c.Status(http.StatusNoContent)
}

// handleMe returns the authenticated user's profile.
func (s *Service) handleMe(c *gin.Context) {
	userID := middleware.GetUserID(c)

	user, err := s.store.GetUser(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			// Signed in before the profile write landed; serve the claims.
			c.JSON(http.StatusOK, models.User{ID: userID, Email: middleware.GetEmail(c)})
			return
		}
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}
