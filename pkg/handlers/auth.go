package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"studyhabit-backend/pkg/config"
	"studyhabit-backend/pkg/database"
	"studyhabit-backend/pkg/logs"
	"studyhabit-backend/pkg/mailer"
	"studyhabit-backend/pkg/middleware"
	"studyhabit-backend/pkg/models"
	"studyhabit-backend/pkg/utils"
)

// AuthHandler 认证处理器
type AuthHandler struct {
	config *config.Config
	client *database.Client
	jwt    *utils.JWTService
	mail   *mailer.Mailer
}

// NewAuthHandler 创建认证处理器
func NewAuthHandler(cfg *config.Config, client *database.Client, mail *mailer.Mailer) *AuthHandler {
	return &AuthHandler{
		config: cfg,
		client: client,
		jwt:    utils.NewJWTService(cfg.JWTSecret),
		mail:   mail,
	}
}

// HealthCheck 健康检查端点
func (h *AuthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	utils.WriteSuccessResponse(w, map[string]interface{}{
		"service": "studyhabit-backend",
		"status":  "ok",
		"version": database.StorageVersion,
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

// Login 邮箱密码登录
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || req.Password == "" {
		utils.WriteBadRequestResponse(w, "Email and password are required")
		return
	}

	rec, err := h.client.Auth().SignInWithPassword(r.Context(), req.Email, req.Password)
	if err != nil {
		utils.WriteStoreError(w, err)
		return
	}

	var profile models.Profile
	if err := database.Decode(rec, &profile); err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to decode profile")
		return
	}

	accessToken, refreshToken, expiresIn, err := h.jwt.GenerateTokenPair(profile.ID, profile.Email, string(profile.Role))
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to generate tokens")
		return
	}

	utils.WriteSuccessResponse(w, models.LoginResponse{
		User:         profile,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    expiresIn,
	})
}

// Register 注册新用户。携带邀请码时校验并消费邀请，
// 新账号归入邀请所属组织。注册成功后不会自动登录。
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || req.Password == "" {
		utils.WriteBadRequestResponse(w, "Email and password are required")
		return
	}
	if len(req.Password) < 6 {
		utils.WriteBadRequestResponse(w, "Password must be at least 6 characters")
		return
	}

	fields := database.Record{}
	if req.FullName != "" {
		fields["full_name"] = req.FullName
	}
	if req.Role != "" {
		fields["role"] = req.Role
	}
	if req.OrganizationID != "" {
		fields["organization_id"] = req.OrganizationID
	}

	// 邀请码路径：校验邀请并把账号挂到邀请所属组织
	var invitation database.Record
	if req.InvitationCode != "" {
		inv, err := h.client.From("invitations").
			Select().
			Eq("invitation_code", req.InvitationCode).
			Single(r.Context())
		if err != nil {
			if errors.Is(err, database.ErrNoRows) {
				utils.WriteBadRequestResponse(w, "Invalid invitation code")
				return
			}
			utils.WriteStoreError(w, err)
			return
		}

		var invModel models.Invitation
		if err := database.Decode(inv, &invModel); err == nil {
			if invModel.Status != models.InvitationPending || invModel.Expired(time.Now().UTC()) {
				utils.WriteBadRequestResponse(w, "Invitation is no longer valid")
				return
			}
		}

		invitation = inv
		fields["role"] = "student"
		if orgID, ok := inv["organization_id"]; ok {
			fields["organization_id"] = orgID
		}
		if name, ok := inv["student_name"].(string); ok && name != "" {
			if _, set := fields["full_name"]; !set {
				fields["full_name"] = name
			}
		}
	}

	rec, err := h.client.Auth().SignUp(r.Context(), req.Email, req.Password, fields)
	if err != nil {
		utils.WriteStoreError(w, err)
		return
	}

	// 消费邀请：按邀请码定位并标记为已接受
	if invitation != nil {
		_, err := h.client.From("invitations").
			Update(database.Record{
				"status":      string(models.InvitationAccepted),
				"accepted_at": time.Now().UTC().Format(time.RFC3339),
			}).
			Eq("invitation_code", req.InvitationCode).
			Exec(r.Context())
		if err != nil {
			logs.Logger.WithError(err).Warn("failed to mark invitation accepted")
		}
	}

	var profile models.Profile
	if err := database.Decode(rec, &profile); err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to decode profile")
		return
	}

	utils.WriteCreatedResponse(w, profile)
}

// Logout 登出当前会话（幂等）
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.client.Auth().SignOut(r.Context()); err != nil {
		utils.WriteStoreError(w, err)
		return
	}
	utils.WriteSuccessResponse(w, map[string]string{"message": "Logged out"})
}

// RefreshToken 用刷新令牌换取新的访问令牌
func (h *AuthHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var req models.RefreshTokenRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}
	if req.RefreshToken == "" {
		utils.WriteBadRequestResponse(w, "refresh_token is required")
		return
	}

	accessToken, expiresIn, err := h.jwt.RefreshAccessToken(req.RefreshToken)
	if err != nil {
		utils.WriteUnauthorizedResponse(w, err.Error())
		return
	}

	utils.WriteSuccessResponse(w, map[string]interface{}{
		"access_token": accessToken,
		"expires_in":   expiresIn,
	})
}

// Me 返回当前认证用户的完整档案
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, err.Error())
		return
	}

	rec, err := h.client.From("profiles").
		Select().
		Eq("id", user.ID).
		Single(r.Context())
	if err != nil {
		utils.WriteStoreError(w, err)
		return
	}

	var profile models.Profile
	if err := database.Decode(rec, &profile); err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to decode profile")
		return
	}

	utils.WriteSuccessResponse(w, profile)
}

// UpdatePassword 修改当前登录用户的密码（要求活跃会话）
func (h *AuthHandler) UpdatePassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Password string `json:"password"`
	}
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}
	if len(req.Password) < 6 {
		utils.WriteBadRequestResponse(w, "Password must be at least 6 characters")
		return
	}

	rec, err := h.client.Auth().UpdateUser(r.Context(), req.Password)
	if err != nil {
		utils.WriteStoreError(w, err)
		return
	}

	var profile models.Profile
	if err := database.Decode(rec, &profile); err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to decode profile")
		return
	}

	utils.WriteSuccessResponse(w, profile)
}

// ResetPassword 请求密码重置。邮箱未注册返回404，
// 否则发送重置邮件（投递失败只记录，不影响响应）。
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" {
		utils.WriteBadRequestResponse(w, "Email is required")
		return
	}

	if err := h.client.Auth().ResetPasswordForEmail(r.Context(), req.Email); err != nil {
		utils.WriteStoreError(w, err)
		return
	}

	// 重置令牌挂在档案上；email 是 id 之外的备用唯一键
	token := uuid.NewString()
	if _, err := h.client.From("profiles").
		Update(database.Record{"reset_token": token}).
		Eq("email", req.Email).
		Exec(r.Context()); err != nil {
		utils.WriteStoreError(w, err)
		return
	}

	if err := h.mail.SendPasswordReset(req.Email, token); err != nil {
		logs.Logger.WithError(err).WithField("email", req.Email).Warn("password reset email failed")
	}

	utils.WriteSuccessResponse(w, map[string]string{"message": "Password reset email sent"})
}
