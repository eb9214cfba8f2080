package service

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hmallik/taskally/internal/live"
	"github.com/hmallik/taskally/internal/middleware"
	"github.com/hmallik/taskally/internal/models"
)

type createAllianceRequest struct {
	Name string `json:"name"`
}

// handleCreateAlliance creates an alliance with the caller as its first
// member, atomically with the creation itself.
func (s *Service) handleCreateAlliance(c *gin.Context) {
	var req createAllianceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "alliance name required"})
		return
	}

	alliance := &models.Alliance{
		Name:    req.Name,
		UserIDs: []string{middleware.GetUserID(c)},
	}
	if err := s.store.CreateAlliance(c.Request.Context(), alliance); err != nil {
		s.writeError(c, err)
		return
	}

	s.logger.Info("alliance created", "alliance_id", alliance.ID, "creator", alliance.UserIDs[0])
	c.JSON(http.StatusCreated, alliance)
}

func (s *Service) handleGetAlliance(c *gin.Context) {
	alliance, err := s.store.GetAlliance(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, alliance)
}

// handleJoinAlliance adds the caller to the alliance. Joining twice is a
// no-op.
func (s *Service) handleJoinAlliance(c *gin.Context) {
	allianceID := c.Param("id")
	userID := middleware.GetUserID(c)

	if err := s.store.JoinAlliance(c.Request.Context(), allianceID, userID); err != nil {
		s.writeError(c, err)
		return
	}

	alliance, err := s.store.GetAlliance(c.Request.Context(), allianceID)
	if err != nil {
		s.writeError(c, err)
		return
	}
	s.logger.Info("alliance joined", "alliance_id", allianceID, "user_id", userID)
	c.JSON(http.StatusOK, alliance)
}

// handleLeaveAlliance removes the caller from the alliance.
func (s *Service) handleLeaveAlliance(c *gin.Context) {
	allianceID := c.Param("id")
	userID := middleware.GetUserID(c)

	if err := s.store.LeaveAlliance(c.Request.Context(), allianceID, userID); err != nil {
		s.writeError(c, err)
		return
	}
	s.logger.Info("alliance left", "alliance_id", allianceID, "user_id", userID)
	c.Status(http.StatusNoContent)
}

// handleAllianceStream serves the alliance aggregate as an SSE stream:
// record, tasks, resolved members, and the caller's membership flag.
func (s *Service) handleAllianceStream(c *gin.Context) {
	view := live.NewAllianceView(s.store, s.gateway)
	defer view.Close()

	view.SetCurrentUser(middleware.GetUserID(c))
	view.SetAlliance(c.Param("id"))

	streamSSE(c, view.Updates())
}
