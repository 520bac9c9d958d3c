package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Paul-Karonji/JHUB-AFRICA-TRACKER-sub000/internal/progress"
	"github.com/Paul-Karonji/JHUB-AFRICA-TRACKER-sub000/internal/service/progression"
)

type ProgressionHandler struct {
	engine  *progression.Engine
	catalog *progress.Catalog
	logger  *zap.Logger
}

func NewProgressionHandler(engine *progression.Engine, catalog *progress.Catalog, logger *zap.Logger) *ProgressionHandler {
	if catalog == nil {
		catalog = progress.DefaultCatalog()
	}
	return &ProgressionHandler{engine: engine, catalog: catalog, logger: logger}
}

type ratingRequest struct {
	Stage      int    `json:"stage"`
	Percentage int    `json:"percentage"`
	Notes      string `json:"notes"`
}

// RecordRating handles POST /projects/:id/ratings
func (h *ProgressionHandler) RecordRating(c *gin.Context) {
	pid, ok := projectID(c)
	if !ok {
		return
	}
	mid, ok := mentorID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "mentor not authenticated"})
		return
	}

	var req ratingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid request"})
		return
	}

	res, err := h.engine.Ratings.RecordRating(c.Request.Context(), progression.RatingInput{
		ProjectID:  pid,
		MentorID:   mid,
		Stage:      req.Stage,
		Percentage: req.Percentage,
		Notes:      req.Notes,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":          true,
		"message":          "Rating recorded",
		"rating_id":        res.RatingID,
		"previous":         res.Previous,
		"new":              res.New,
		"overall_progress": res.OverallProgress,
	})
}

// ListRatings handles GET /projects/:id/ratings?limit=50
func (h *ProgressionHandler) ListRatings(c *gin.Context) {
	pid, ok := projectID(c)
	if !ok {
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(progression.DefaultHistoryLimit)))
	if err != nil || limit <= 0 {
		limit = progression.DefaultHistoryLimit
	}

	ratings, err := h.engine.Ratings.History(c.Request.Context(), pid, limit)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"project_id": pid, "ratings": ratings, "count": len(ratings)})
}

type approvalRequest struct {
	Stage    int   `json:"stage"`
	Approved *bool `json:"approved"`
}

// SetApproval handles PUT /projects/:id/approvals
func (h *ProgressionHandler) SetApproval(c *gin.Context) {
	pid, ok := projectID(c)
	if !ok {
		return
	}
	mid, ok := mentorID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "mentor not authenticated"})
		return
	}

	var req approvalRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Approved == nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid request"})
		return
	}

	if _, err := h.engine.Consensus.SetApproval(c.Request.Context(), progression.ApprovalInput{
		ProjectID: pid,
		MentorID:  mid,
		Stage:     req.Stage,
		Approved:  *req.Approved,
	}); err != nil {
		respondError(c, h.logger, err)
		return
	}

	msg := "Approval withdrawn"
	if *req.Approved {
		msg = "Approval recorded"
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": msg})
}

// GetConsensus handles GET /projects/:id/consensus
func (h *ProgressionHandler) GetConsensus(c *gin.Context) {
	pid, ok := projectID(c)
	if !ok {
		return
	}
	status, err := h.engine.Consensus.GetConsensusStatus(c.Request.Context(), pid)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// ListApprovals handles GET /projects/:id/approvals?stage=N
func (h *ProgressionHandler) ListApprovals(c *gin.Context) {
	pid, ok := projectID(c)
	if !ok {
		return
	}
	stage, err := strconv.Atoi(c.DefaultQuery("stage", "0"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid stage"})
		return
	}
	rows, err := h.engine.Consensus.ListApprovals(c.Request.Context(), pid, stage)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"project_id": pid, "approvals": rows})
}

// AdvanceStage handles POST /projects/:id/advance (admin)
func (h *ProgressionHandler) AdvanceStage(c *gin.Context) {
	pid, ok := projectID(c)
	if !ok {
		return
	}
	res, err := h.engine.Stages.TryAdvanceStage(c.Request.Context(), pid)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// ListStages handles GET /stages
func (h *ProgressionHandler) ListStages(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"stages": h.catalog.All()})
}
