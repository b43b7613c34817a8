package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"studyhabit-backend/pkg/config"
	"studyhabit-backend/pkg/database"
	"studyhabit-backend/pkg/logs"
	"studyhabit-backend/pkg/mailer"
	"studyhabit-backend/pkg/middleware"
	"studyhabit-backend/pkg/models"
	"studyhabit-backend/pkg/utils"
)

const invitationTTL = 7 * 24 * time.Hour

// InvitationsHandler 学生邀请处理器
type InvitationsHandler struct {
	config *config.Config
	client *database.Client
	mail   *mailer.Mailer
}

// NewInvitationsHandler 创建邀请处理器
func NewInvitationsHandler(cfg *config.Config, client *database.Client, mail *mailer.Mailer) *InvitationsHandler {
	return &InvitationsHandler{config: cfg, client: client, mail: mail}
}

// ListInvitations 列出组织内的邀请（管理员），按创建时间倒序
func (h *InvitationsHandler) ListInvitations(w http.ResponseWriter, r *http.Request) {
	admin, err := middleware.RequireAdmin(r.Context())
	if err != nil {
		utils.WriteForbiddenResponse(w, err.Error())
		return
	}

	q := h.client.From("invitations").
		Select().
		Eq("created_by", admin.ID).
		Order("created_at", false)

	if status := r.URL.Query().Get("status"); status != "" {
		q = q.Eq("status", status)
	}

	records, err := q.Exec(r.Context())
	if err != nil {
		utils.WriteStoreError(w, err)
		return
	}

	invitations := make([]models.Invitation, 0, len(records))
	if err := database.Decode(records, &invitations); err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to decode invitations")
		return
	}

	utils.WriteSuccessResponse(w, invitations)
}

// CreateInvitationRequest 新建邀请请求体
type CreateInvitationRequest struct {
	StudentName  string `json:"student_name"`
	StudentEmail string `json:"student_email"`
}

// CreateInvitation 管理员邀请学生加入自己的组织
func (h *InvitationsHandler) CreateInvitation(w http.ResponseWriter, r *http.Request) {
	admin, err := middleware.RequireAdmin(r.Context())
	if err != nil {
		utils.WriteForbiddenResponse(w, err.Error())
		return
	}

	var req CreateInvitationRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}

	req.StudentName = strings.TrimSpace(req.StudentName)
	req.StudentEmail = strings.TrimSpace(strings.ToLower(req.StudentEmail))
	if req.StudentName == "" || req.StudentEmail == "" {
		utils.WriteBadRequestResponse(w, "student_name and student_email are required")
		return
	}

	// 查管理员档案拿组织归属
	adminRec, err := h.client.From("profiles").
		Select().
		Eq("id", admin.ID).
		Single(r.Context())
	if err != nil {
		utils.WriteStoreError(w, err)
		return
	}

	code, err := utils.GenerateInvitationCode()
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to generate invitation code")
		return
	}

	payload := database.Record{
		"organization_id": adminRec["organization_id"],
		"invitation_code": code,
		"student_name":    req.StudentName,
		"student_email":   req.StudentEmail,
		"status":          string(models.InvitationPending),
		"created_by":      admin.ID,
		"expires_at":      time.Now().UTC().Add(invitationTTL).Format(time.RFC3339),
		"accepted_at":     nil,
	}

	records, err := h.client.From("invitations").Insert(payload).Exec(r.Context())
	if err != nil {
		utils.WriteStoreError(w, err)
		return
	}

	if err := h.mail.SendInvitation(req.StudentEmail, req.StudentName, code); err != nil {
		logs.Logger.WithError(err).WithField("email", req.StudentEmail).Warn("invitation email failed")
	}

	var invitation models.Invitation
	if err := database.Decode(records[0], &invitation); err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to decode invitation")
		return
	}

	utils.WriteCreatedResponse(w, invitation)
}

// ValidateInvitation 公开端点：按邀请码校验邀请是否可用
func (h *InvitationsHandler) ValidateInvitation(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if code == "" {
		utils.WriteBadRequestResponse(w, "code query parameter is required")
		return
	}

	rec, err := h.client.From("invitations").
		Select().
		Eq("invitation_code", code).
		Single(r.Context())
	if err != nil {
		if errors.Is(err, database.ErrNoRows) {
			utils.WriteNotFoundResponse(w, "Invitation not found")
			return
		}
		utils.WriteStoreError(w, err)
		return
	}

	var invitation models.Invitation
	if err := database.Decode(rec, &invitation); err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to decode invitation")
		return
	}

	valid := invitation.Status == models.InvitationPending && !invitation.Expired(time.Now().UTC())
	utils.WriteSuccessResponse(w, map[string]interface{}{
		"valid":         valid,
		"student_name":  invitation.StudentName,
		"student_email": invitation.StudentEmail,
		"status":        invitation.Status,
		"expires_at":    invitation.ExpiresAt,
	})
}

// ResendInvitation 重发邀请邮件并顺延有效期。
// 邀请码是 id 之外唯一可用的查找键。
func (h *InvitationsHandler) ResendInvitation(w http.ResponseWriter, r *http.Request) {
	if _, err := middleware.RequireAdmin(r.Context()); err != nil {
		utils.WriteForbiddenResponse(w, err.Error())
		return
	}

	var req struct {
		InvitationCode string `json:"invitation_code"`
	}
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}
	if req.InvitationCode == "" {
		utils.WriteBadRequestResponse(w, "invitation_code is required")
		return
	}

	records, err := h.client.From("invitations").
		Update(database.Record{
			"status":     string(models.InvitationPending),
			"expires_at": time.Now().UTC().Add(invitationTTL).Format(time.RFC3339),
		}).
		Eq("invitation_code", req.InvitationCode).
		Exec(r.Context())
	if err != nil {
		utils.WriteStoreError(w, err)
		return
	}

	var invitation models.Invitation
	if err := database.Decode(records[0], &invitation); err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to decode invitation")
		return
	}

	if err := h.mail.SendInvitation(invitation.StudentEmail, invitation.StudentName, invitation.InvitationCode); err != nil {
		logs.Logger.WithError(err).WithField("email", invitation.StudentEmail).Warn("invitation email failed")
	}

	utils.WriteSuccessResponse(w, invitation)
}

// RevokeInvitation 删除一条邀请（管理员，仅限本人创建的）
func (h *InvitationsHandler) RevokeInvitation(w http.ResponseWriter, r *http.Request) {
	admin, err := middleware.RequireAdmin(r.Context())
	if err != nil {
		utils.WriteForbiddenResponse(w, err.Error())
		return
	}

	id := chi.URLParam(r, "id")

	rec, err := h.client.From("invitations").
		Select().
		Eq("id", id).
		Single(r.Context())
	if err != nil {
		utils.WriteStoreError(w, err)
		return
	}
	if createdBy, _ := rec["created_by"].(string); createdBy != admin.ID {
		utils.WriteForbiddenResponse(w, "Invitation belongs to another admin")
		return
	}

	if _, err := h.client.From("invitations").
		Delete().
		Eq("id", id).
		Exec(r.Context()); err != nil {
		utils.WriteStoreError(w, err)
		return
	}

	utils.WriteSuccessResponse(w, map[string]string{"message": "Invitation revoked"})
}
