package http

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"paluwagan/internal/core"
	"paluwagan/internal/log"
)

type signUpRequest struct {
	FullName    string `json:"fullName"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phoneNumber"`
	Password    string `json:"password"`
}

type selectRoleRequest struct {
	Role string `json:"role"`
}

func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}

	u, err := s.ledger.SignUp(r.Context(), core.SignUp{
		FullName: sanitizeInput(req.FullName),
		Email:    sanitizeInput(req.Email),
		Phone:    sanitizeInput(req.PhoneNumber),
		Password: req.Password,
	})
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", "/users/"+u.ID).
		Body(toUserView(*u)).
		Write(w)
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	u, err := s.ledger.GetUser(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	NewJSONResponse().Body(toUserView(*u)).Write(w)
}

func (s *Server) handleSelectRole(w http.ResponseWriter, r *http.Request) {
	var req selectRoleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}

	role := core.Role(strings.ToLower(strings.TrimSpace(req.Role)))
	u, err := s.ledger.SelectRole(r.Context(), chi.URLParam(r, "id"), role)
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	s.invalidateDashboards()
	NewJSONResponse().Body(toUserView(*u)).Write(w)
}

func (s *Server) handleUserGroups(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	if _, err := s.ledger.GetUser(r.Context(), userID); err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	groups, err := s.ledger.ListGroupsForUser(r.Context(), userID)
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	views := make([]groupView, len(groups))
	for i, g := range groups {
		views[i] = toGroupView(g)
	}
	NewJSONResponse().Body(views).Write(w)
}

func (s *Server) handleUpcoming(w http.ResponseWriter, r *http.Request) {
	limit, err := parseIntParam(r.URL.Query(), "limit", 0)
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	cs, err := s.ledger.UpcomingCollections(r.Context(), chi.URLParam(r, "id"), limit)
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	NewJSONResponse().Body(toCollectionViews(cs)).Write(w)
}

func (s *Server) handleHeadDashboard(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	if d, ok := s.headDashboards.Get(userID); ok {
		NewJSONResponse().Header("X-Cache", "HIT").Body(toHeadDashboardView(d)).Write(w)
		return
	}

	d, err := s.ledger.HeadDashboard(r.Context(), userID)
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	s.headDashboards.Set(userID, d)
	NewJSONResponse().Header("X-Cache", "MISS").Body(toHeadDashboardView(d)).Write(w)
}

func (s *Server) handleMemberDashboard(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	if d, ok := s.memberDashboards.Get(userID); ok {
		NewJSONResponse().Header("X-Cache", "HIT").Body(toMemberDashboardView(d)).Write(w)
		return
	}

	d, err := s.ledger.MemberDashboard(r.Context(), userID)
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	s.memberDashboards.Set(userID, d)
	NewJSONResponse().Header("X-Cache", "MISS").Body(toMemberDashboardView(d)).Write(w)
}
