package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"studyhabit-backend/pkg/config"
	"studyhabit-backend/pkg/database"
	"studyhabit-backend/pkg/middleware"
	"studyhabit-backend/pkg/models"
	"studyhabit-backend/pkg/utils"
)

// SessionsHandler 学习记录处理器
type SessionsHandler struct {
	config *config.Config
	client *database.Client
}

// NewSessionsHandler 创建学习记录处理器
func NewSessionsHandler(cfg *config.Config, client *database.Client) *SessionsHandler {
	return &SessionsHandler{config: cfg, client: client}
}

// ListSessions 列出当前用户的学习记录。
// 支持 subject、from、to（RFC3339）、limit 查询参数，按日期倒序返回。
func (h *SessionsHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, err.Error())
		return
	}

	q := h.client.From("study_sessions").
		Select().
		Eq("user_id", user.ID).
		Order("session_date", false)

	if subject := r.URL.Query().Get("subject"); subject != "" {
		q = q.Eq("subject", subject)
	}
	if from := r.URL.Query().Get("from"); from != "" {
		q = q.Gte("session_date", from)
	}
	if to := r.URL.Query().Get("to"); to != "" {
		q = q.Lte("session_date", to)
	}
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil && limit > 0 {
			q = q.Limit(limit)
		}
	}

	// 后台求值，结果经通道送回
	result := <-q.Go(r.Context())
	if result.Err != nil {
		utils.WriteStoreError(w, result.Err)
		return
	}

	sessions := make([]models.StudySession, 0, len(result.Data))
	if err := database.Decode(result.Data, &sessions); err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to decode sessions")
		return
	}

	utils.WriteSuccessResponse(w, sessions)
}

// CreateSessionRequest 新建学习记录请求体
type CreateSessionRequest struct {
	Subject       string  `json:"subject"`
	DurationHours float64 `json:"duration_hours"`
	Notes         string  `json:"notes,omitempty"`
	SessionDate   string  `json:"session_date,omitempty"`
}

// CreateSession 记录一次学习
func (h *SessionsHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, err.Error())
		return
	}

	var req CreateSessionRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}

	req.Subject = strings.TrimSpace(req.Subject)
	if req.Subject == "" {
		utils.WriteBadRequestResponse(w, "Subject is required")
		return
	}
	if req.DurationHours <= 0 || req.DurationHours > 24 {
		utils.WriteBadRequestResponse(w, "duration_hours must be between 0 and 24")
		return
	}

	sessionDate := req.SessionDate
	if sessionDate == "" {
		sessionDate = time.Now().UTC().Format(time.RFC3339)
	} else if _, err := time.Parse(time.RFC3339, sessionDate); err != nil {
		utils.WriteBadRequestResponse(w, "session_date must be RFC3339")
		return
	}

	payload := database.Record{
		"user_id":        user.ID,
		"subject":        req.Subject,
		"duration_hours": req.DurationHours,
		"notes":          req.Notes,
		"session_date":   sessionDate,
	}

	records, err := h.client.From("study_sessions").Insert(payload).Exec(r.Context())
	if err != nil {
		utils.WriteStoreError(w, err)
		return
	}

	var session models.StudySession
	if err := database.Decode(records[0], &session); err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to decode session")
		return
	}

	utils.WriteCreatedResponse(w, session)
}

// loadOwnedSession 按 id 取记录并校验归属
func (h *SessionsHandler) loadOwnedSession(r *http.Request, userID string) (database.Record, error) {
	id := chi.URLParam(r, "id")
	return h.client.From("study_sessions").
		Select().
		Eq("id", id).
		Eq("user_id", userID).
		Single(r.Context())
}

// UpdateSession 更新一条学习记录（仅本人）
func (h *SessionsHandler) UpdateSession(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, err.Error())
		return
	}

	if _, err := h.loadOwnedSession(r, user.ID); err != nil {
		utils.WriteStoreError(w, err)
		return
	}

	var req CreateSessionRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}

	patch := database.Record{}
	if req.Subject != "" {
		patch["subject"] = strings.TrimSpace(req.Subject)
	}
	if req.DurationHours > 0 {
		if req.DurationHours > 24 {
			utils.WriteBadRequestResponse(w, "duration_hours must be between 0 and 24")
			return
		}
		patch["duration_hours"] = req.DurationHours
	}
	if req.Notes != "" {
		patch["notes"] = req.Notes
	}
	if req.SessionDate != "" {
		if _, err := time.Parse(time.RFC3339, req.SessionDate); err != nil {
			utils.WriteBadRequestResponse(w, "session_date must be RFC3339")
			return
		}
		patch["session_date"] = req.SessionDate
	}
	if len(patch) == 0 {
		utils.WriteBadRequestResponse(w, "Nothing to update")
		return
	}

	records, err := h.client.From("study_sessions").
		Update(patch).
		Eq("id", chi.URLParam(r, "id")).
		Exec(r.Context())
	if err != nil {
		utils.WriteStoreError(w, err)
		return
	}

	var session models.StudySession
	if err := database.Decode(records[0], &session); err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to decode session")
		return
	}

	utils.WriteSuccessResponse(w, session)
}

// DeleteSession 删除一条学习记录（仅本人，不级联）
func (h *SessionsHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, err.Error())
		return
	}

	if _, err := h.loadOwnedSession(r, user.ID); err != nil {
		utils.WriteStoreError(w, err)
		return
	}

	if _, err := h.client.From("study_sessions").
		Delete().
		Eq("id", chi.URLParam(r, "id")).
		Exec(r.Context()); err != nil {
		utils.WriteStoreError(w, err)
		return
	}

	utils.WriteSuccessResponse(w, map[string]string{"message": "Session deleted"})
}
