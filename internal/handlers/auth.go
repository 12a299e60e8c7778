package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/debugmarathon/apiserver/internal/auth"
	"github.com/debugmarathon/apiserver/internal/services"
	"github.com/debugmarathon/apiserver/types"
)

// AuthHandler serves the login, session and admin approval endpoints.
type AuthHandler struct {
	gate     *services.AccessGate
	sessions *services.SessionResolver
	opts     Options
}

// NewAuthHandler constructs an AuthHandler with the provided dependencies.
func NewAuthHandler(gate *services.AccessGate, sessions *services.SessionResolver, opts Options) *AuthHandler {
	return &AuthHandler{
		gate:     gate,
		sessions: sessions,
		opts:     opts,
	}
}

// AuthRouter registers auth routes on the given router.
func AuthRouter(r chi.Router, gate *services.AccessGate, sessions *services.SessionResolver, opts Options) {
	handler := NewAuthHandler(gate, sessions, opts)

	r.Post("/participant/login", handler.ParticipantLogin)
	r.Post("/leader/login", handler.LeaderLogin)
	r.Post("/admin/login", handler.AdminLogin)
	r.Post("/admin/register", handler.RegisterAdmin)

	r.Group(func(r chi.Router) {
		r.Use(RequireSession(sessions, opts), RequireRole(types.RoleAdmin, opts))
		r.Get("/admin/pending", handler.PendingAdmins)
		r.Post("/admin/approve", handler.ApproveAdmin)
	})

	r.Get("/session", handler.Session)

	r.Post("/logout", handler.Logout)
	r.Post("/participant/logout", handler.Logout)
	r.Post("/leader/logout", handler.Logout)
	r.Post("/admin/logout", handler.Logout)
}

// ParticipantLogin admits a participant by ID and returns a session token.
func (h *AuthHandler) ParticipantLogin(w http.ResponseWriter, r *http.Request) {
	var req ParticipantLoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.opts, err)
		return
	}

	res, err := h.gate.ParticipantLogin(r.Context(), string(req.ParticipantID))
	if err != nil {
		writeError(w, r, h.opts, err)
		return
	}

	writeJSON(w, http.StatusOK, ParticipantLoginResponse{
		Success:     true,
		Participant: res.Participant,
		Token:       res.Token,
		ContestID:   res.ContestID,
		Level:       res.Level,
	})
}

// LeaderLogin authenticates a team leader.
func (h *AuthHandler) LeaderLogin(w http.ResponseWriter, r *http.Request) {
	res, ok := h.staffLogin(w, r, types.RoleLeader)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, LeaderLoginResponse{Success: true, Token: res.Token, Leader: res.User})
}

// AdminLogin authenticates an administrator.
func (h *AuthHandler) AdminLogin(w http.ResponseWriter, r *http.Request) {
	res, ok := h.staffLogin(w, r, types.RoleAdmin)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, AdminLoginResponse{Success: true, Token: res.Token, User: res.User})
}

func (h *AuthHandler) staffLogin(w http.ResponseWriter, r *http.Request, role string) (services.StaffLoginResult, bool) {
	var req LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.opts, err)
		return services.StaffLoginResult{}, false
	}

	res, err := h.gate.StaffLogin(r.Context(), role, req.Username, req.Password)
	if err != nil {
		writeError(w, r, h.opts, err)
		return services.StaffLoginResult{}, false
	}
	return res, true
}

// RegisterAdmin submits a new admin account for approval.
func (h *AuthHandler) RegisterAdmin(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.opts, err)
		return
	}

	_, err := h.gate.RegisterAdmin(r.Context(), services.AdminRegistration{
		Username: req.Username,
		Password: req.Password,
		FullName: req.FullName,
		Email:    req.Email,
	})
	if err != nil {
		writeError(w, r, h.opts, err)
		return
	}

	writeJSON(w, http.StatusCreated, MessageResponse{
		Success: true,
		Message: "Admin registration submitted. Waiting for approval.",
	})
}

// PendingAdmins lists admin accounts awaiting a decision.
func (h *AuthHandler) PendingAdmins(w http.ResponseWriter, r *http.Request) {
	users, err := h.gate.ListPendingAdmins(r.Context())
	if err != nil {
		writeError(w, r, h.opts, err)
		return
	}

	pending := make([]PendingAdmin, 0, len(users))
	for _, u := range users {
		pending = append(pending, PendingAdmin{
			UserID:      u.ID,
			Username:    u.Username,
			FullName:    u.FullName,
			AdminStatus: u.AdminStatus,
			CreatedAt:   u.CreatedAt,
		})
	}

	writeJSON(w, http.StatusOK, PendingAdminsResponse{Success: true, Pending: pending})
}

// ApproveAdmin approves or rejects a pending admin account.
func (h *AuthHandler) ApproveAdmin(w http.ResponseWriter, r *http.Request) {
	var req ApproveRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.opts, auth.ErrValidation("Invalid request"))
		return
	}

	approver, ok := IdentityFromContext(r.Context())
	if !ok {
		writeError(w, r, h.opts, auth.ErrUnauthorized("Authorization required"))
		return
	}

	status, err := h.gate.ApproveAdmin(r.Context(), approver, req.UserID, req.Action)
	if err != nil {
		writeError(w, r, h.opts, err)
		return
	}

	writeJSON(w, http.StatusOK, ApproveResponse{Success: true, Status: status})
}

// Session returns the identity behind the bearer token.
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	identity, err := h.sessions.Resolve(r.Context(), r.Header.Get("Authorization"))
	if err != nil {
		writeError(w, r, h.opts, err)
		return
	}
	writeJSON(w, http.StatusOK, identity)
}

// Logout always succeeds; tokens are stateless and expire on their own.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.gate.Logout(r.Context(), r.Header.Get("Authorization"))
	writeJSON(w, http.StatusOK, MessageResponse{Success: true, Message: "Logged out successfully"})
}

// flexibleID accepts a JSON string or number.
type flexibleID string

func (f *flexibleID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexibleID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return errors.New("participant_id must be a string or number")
	}
	*f = flexibleID(n.String())
	return nil
}

type ParticipantLoginRequest struct {
	ParticipantID flexibleID `json:"participant_id"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
	Email    string `json:"email"`
}

type ApproveRequest struct {
	UserID int    `json:"user_id"`
	Action string `json:"action"`
}

type ParticipantLoginResponse struct {
	Success     bool                        `json:"success"`
	Participant services.ParticipantProfile `json:"participant"`
	Token       string                      `json:"token"`
	ContestID   int                         `json:"contest_id"`
	Level       int                         `json:"level"`
}

type LeaderLoginResponse struct {
	Success bool                  `json:"success"`
	Token   string                `json:"token"`
	Leader  services.StaffProfile `json:"leader"`
}

type AdminLoginResponse struct {
	Success bool                  `json:"success"`
	Token   string                `json:"token"`
	User    services.StaffProfile `json:"user"`
}

// PendingAdmin is the listing view of an admin awaiting approval.
type PendingAdmin struct {
	UserID      int       `json:"user_id"`
	Username    string    `json:"username"`
	FullName    string    `json:"full_name"`
	AdminStatus string    `json:"admin_status"`
	CreatedAt   time.Time `json:"created_at"`
}

type PendingAdminsResponse struct {
	Success bool           `json:"success"`
	Pending []PendingAdmin `json:"pending"`
}

type ApproveResponse struct {
	Success bool   `json:"success"`
	Status  string `json:"status"`
}
