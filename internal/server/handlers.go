package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"agent-bridge/internal/dispatch"
	"agent-bridge/internal/models"
)

type textRequest struct {
	Text string `json:"text"`
}

type routeResponse struct {
	OK               bool          `json:"ok"`
	Text             string        `json:"text"`
	Intent           models.Intent `json:"intent"`
	SuggestedPayload any           `json:"suggested_payload,omitempty"`
}

type createEventRequest struct {
	Summary     string           `json:"summary"`
	Start       models.EventTime `json:"start"`
	End         models.EventTime `json:"end"`
	Description string           `json:"description"`
}

type appendSheetRequest struct {
	Values json.RawMessage `json:"values"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "dry_run": s.dryRun})
}

func (s *Server) handleIntentRoute(c *gin.Context) {
	var req textRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "message": "text を入力してください。", "detail": err.Error()})
		return
	}

	result := s.dispatcher.Classify(c.Request.Context(), req.Text)
	c.JSON(http.StatusOK, routeResponse{
		OK:               true,
		Text:             req.Text,
		Intent:           result.Intent,
		SuggestedPayload: result.SuggestedPayload,
	})
}

func (s *Server) handleExecute(c *gin.Context) {
	var req textRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "message": "text を入力してください。", "detail": err.Error()})
		return
	}

	result, err := s.dispatcher.Execute(c.Request.Context(), req.Text)
	if err != nil {
		if errors.Is(err, dispatch.ErrUnknownIntent) {
			c.JSON(http.StatusBadRequest, gin.H{"ok": false, "hint": "意図が不明です。"})
			return
		}
		s.upstreamFailure(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "tool": result.Tool, "result": result.Result})
}

func (s *Server) handleCreateEvent(c *gin.Context) {
	var req createEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "message": "開始・終了の日時や必須項目を見直してください。", "detail": err.Error()})
		return
	}
	if req.Summary == "" || req.Start.IsZero() || req.End.IsZero() {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "message": "開始・終了の日時や必須項目を見直してください。"})
		return
	}

	created, err := s.calendar.CreateEvent(c.Request.Context(), &models.CalendarPayload{
		Summary:     req.Summary,
		Start:       req.Start,
		End:         req.End,
		Description: req.Description,
	})
	if err != nil {
		s.upstreamFailure(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "action": "Google Calendarへの予定登録", "created": created})
}

func (s *Server) handleSheetsAppend(c *gin.Context) {
	var req appendSheetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "message": "values は行の配列で指定してください。", "detail": err.Error()})
		return
	}

	rows, err := normalizeRows(req.Values)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "message": "values は行の配列で指定してください。", "detail": err.Error()})
		return
	}

	result, err := s.sheets.AppendRows(c.Request.Context(), rows)
	if err != nil {
		s.upstreamFailure(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "action": "Google Sheetsへのメモ追記", "result": result})
}

func (s *Server) handleNotify(c *gin.Context) {
	var req textRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Text) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "message": "text を入力してください。"})
		return
	}

	if err := s.notifier.Notify(c.Request.Context(), req.Text); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"ok":      false,
			"message": "しばらくしてから再度お試しください。",
			"detail":  err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "action": "LINE WORKS通知"})
}

func (s *Server) handleListNotes(c *gin.Context) {
	notes, err := s.store.ListNotes(c.Request.Context(), 0)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}
	if notes == nil {
		notes = []*models.Note{}
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "notes": notes})
}

// upstreamFailure renders a normalized upstream error with its mapped
// status, or a generic 500 for anything outside the taxonomy.
func (s *Server) upstreamFailure(c *gin.Context, err error) {
	if ue, ok := dispatch.AsUpstreamError(err); ok {
		s.logger.Warn("upstream call failed",
			zap.String("action", ue.Action),
			zap.String("kind", string(ue.Kind)),
			zap.String("detail", ue.Detail))
		c.JSON(ue.Status, gin.H{"ok": false, "message": ue.Message, "detail": ue.Detail})
		return
	}
	s.logger.Error("dispatch failed", zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{
		"ok":      false,
		"message": "外部API呼び出しでエラーが発生しました。ログを確認してください。",
		"detail":  err.Error(),
	})
}

// normalizeRows accepts either a single row ([]string) or a list of
// rows ([][]string). Callers send both shapes.
func normalizeRows(raw json.RawMessage) ([][]string, error) {
	var rows [][]string
	if err := json.Unmarshal(raw, &rows); err == nil {
		return rows, nil
	}
	var row []string
	if err := json.Unmarshal(raw, &row); err != nil {
		return nil, err
	}
	return [][]string{row}, nil
}
