package handlers

import (
	"errors"
	"net/http"

	"studyhabit-backend/pkg/config"
	"studyhabit-backend/pkg/database"
	"studyhabit-backend/pkg/middleware"
	"studyhabit-backend/pkg/models"
	"studyhabit-backend/pkg/utils"
)

// OrgsHandler 组织信息处理器
type OrgsHandler struct {
	config *config.Config
	client *database.Client
}

// NewOrgsHandler 创建组织处理器
func NewOrgsHandler(cfg *config.Config, client *database.Client) *OrgsHandler {
	return &OrgsHandler{config: cfg, client: client}
}

// GetMyOrganization 返回当前用户所属组织
func (h *OrgsHandler) GetMyOrganization(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, err.Error())
		return
	}

	profile, err := h.client.From("profiles").
		Select().
		Eq("id", user.ID).
		Single(r.Context())
	if err != nil {
		utils.WriteStoreError(w, err)
		return
	}

	orgID, _ := profile["organization_id"].(string)
	if orgID == "" {
		utils.WriteNotFoundResponse(w, "Profile has no organization")
		return
	}

	rec, err := h.client.From("organizations").
		Select().
		Eq("id", orgID).
		Single(r.Context())
	if err != nil {
		if errors.Is(err, database.ErrNoRows) {
			utils.WriteNotFoundResponse(w, "Organization not found")
			return
		}
		utils.WriteStoreError(w, err)
		return
	}

	var org models.Organization
	if err := database.Decode(rec, &org); err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to decode organization")
		return
	}

	utils.WriteSuccessResponse(w, org)
}

// ListMembers 列出组织内的成员档案（管理员）
func (h *OrgsHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	admin, err := middleware.RequireAdmin(r.Context())
	if err != nil {
		utils.WriteForbiddenResponse(w, err.Error())
		return
	}

	adminRec, err := h.client.From("profiles").
		Select().
		Eq("id", admin.ID).
		Single(r.Context())
	if err != nil {
		utils.WriteStoreError(w, err)
		return
	}

	records, err := h.client.From("profiles").
		Select().
		Eq("organization_id", adminRec["organization_id"]).
		Order("created_at", true).
		Exec(r.Context())
	if err != nil {
		utils.WriteStoreError(w, err)
		return
	}

	members := make([]models.Profile, 0, len(records))
	if err := database.Decode(records, &members); err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to decode profiles")
		return
	}

	utils.WriteSuccessResponse(w, members)
}
