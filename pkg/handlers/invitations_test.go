package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studyhabit-backend/pkg/models"
)

var adminUser = &models.AuthUser{ID: "admin-1", Email: "admin@studyhabit.com", Role: "admin"}

func invitationsRouter(h *InvitationsHandler, user *models.AuthUser) http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if user != nil {
				req = withAuthUser(req, user)
			}
			next.ServeHTTP(w, req)
		})
	})
	r.Get("/invitations", h.ListInvitations)
	r.Post("/invitations", h.CreateInvitation)
	r.Post("/invitations/resend", h.ResendInvitation)
	r.Delete("/invitations/{id}", h.RevokeInvitation)
	r.Get("/invitations/validate", h.ValidateInvitation)
	return r
}

func createInvitation(t *testing.T, router http.Handler) models.Invitation {
	t.Helper()
	body, _ := json.Marshal(CreateInvitationRequest{
		StudentName:  "Invited Student",
		StudentEmail: "invited@example.com",
	})
	req := httptest.NewRequest(http.MethodPost, "/invitations", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code)

	var envelope struct {
		Data models.Invitation `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	return envelope.Data
}

func TestCreateInvitation(t *testing.T) {
	cfg, client, mail := newTestEnv(t)
	router := invitationsRouter(NewInvitationsHandler(cfg, client, mail), adminUser)

	inv := createInvitation(t, router)
	assert.Equal(t, models.InvitationPending, inv.Status)
	assert.Equal(t, "admin-1", inv.CreatedBy)
	assert.Equal(t, "org-1", inv.OrganizationID)
	assert.Contains(t, inv.InvitationCode, "INV-")
}

func TestCreateInvitationRequiresAdmin(t *testing.T) {
	cfg, client, mail := newTestEnv(t)
	router := invitationsRouter(NewInvitationsHandler(cfg, client, mail), studentUser)

	body, _ := json.Marshal(CreateInvitationRequest{StudentName: "X", StudentEmail: "x@example.com"})
	req := httptest.NewRequest(http.MethodPost, "/invitations", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestListInvitations(t *testing.T) {
	cfg, client, mail := newTestEnv(t)
	router := invitationsRouter(NewInvitationsHandler(cfg, client, mail), adminUser)

	createInvitation(t, router)

	req := httptest.NewRequest(http.MethodGet, "/invitations", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	envelope := decodeEnvelope(t, w)
	assert.Len(t, envelope["data"].([]interface{}), 1)
}

func TestValidateInvitation(t *testing.T) {
	cfg, client, mail := newTestEnv(t)
	router := invitationsRouter(NewInvitationsHandler(cfg, client, mail), adminUser)

	inv := createInvitation(t, router)

	req := httptest.NewRequest(http.MethodGet, "/invitations/validate?code="+inv.InvitationCode, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	envelope := decodeEnvelope(t, w)
	data := envelope["data"].(map[string]interface{})
	assert.Equal(t, true, data["valid"])

	req = httptest.NewRequest(http.MethodGet, "/invitations/validate?code=INV-MISSING1", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestResendInvitation(t *testing.T) {
	cfg, client, mail := newTestEnv(t)
	router := invitationsRouter(NewInvitationsHandler(cfg, client, mail), adminUser)

	inv := createInvitation(t, router)

	body, _ := json.Marshal(map[string]string{"invitation_code": inv.InvitationCode})
	req := httptest.NewRequest(http.MethodPost, "/invitations/resend", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		Data models.Invitation `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.True(t, envelope.Data.ExpiresAt.After(inv.ExpiresAt) || envelope.Data.ExpiresAt.Equal(inv.ExpiresAt))
}

func TestRevokeInvitation(t *testing.T) {
	cfg, client, mail := newTestEnv(t)
	router := invitationsRouter(NewInvitationsHandler(cfg, client, mail), adminUser)

	inv := createInvitation(t, router)

	req := httptest.NewRequest(http.MethodDelete, "/invitations/"+inv.ID, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/invitations/validate?code="+inv.InvitationCode, nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRegisterWithInvitation(t *testing.T) {
	cfg, client, mail := newTestEnv(t)
	invRouter := invitationsRouter(NewInvitationsHandler(cfg, client, mail), adminUser)
	inv := createInvitation(t, invRouter)

	authHandler := NewAuthHandler(cfg, client, mail)
	w := postJSON(t, authHandler.Register, "/api/auth/register", models.RegisterRequest{
		Email:          "invited@example.com",
		Password:       "secret123",
		InvitationCode: inv.InvitationCode,
	})
	require.Equal(t, http.StatusCreated, w.Code)

	envelope := decodeEnvelope(t, w)
	data := envelope["data"].(map[string]interface{})
	assert.Equal(t, "org-1", data["organization_id"])
	assert.Equal(t, "student", data["role"])
	assert.Equal(t, "Invited Student", data["full_name"])

	// 邀请被消费
	req := httptest.NewRequest(http.MethodGet, "/invitations/validate?code="+inv.InvitationCode, nil)
	rec := httptest.NewRecorder()
	invRouter.ServeHTTP(rec, req)
	envelope = decodeEnvelope(t, rec)
	assert.Equal(t, false, envelope["data"].(map[string]interface{})["valid"])
}

func TestRegisterWithInvalidInvitation(t *testing.T) {
	cfg, client, mail := newTestEnv(t)
	authHandler := NewAuthHandler(cfg, client, mail)

	w := postJSON(t, authHandler.Register, "/api/auth/register", models.RegisterRequest{
		Email:          "someone@example.com",
		Password:       "secret123",
		InvitationCode: "INV-NOPE1234",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
