package http

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"paluwagan/internal/core"
	"paluwagan/internal/log"
	"paluwagan/internal/services"
)

type createGroupRequest struct {
	HeadID             string   `json:"headId"`
	Name               string   `json:"name"`
	Description        string   `json:"description"`
	ContributionAmount string   `json:"contributionAmount"`
	Frequency          string   `json:"frequency"`
	StartDate          string   `json:"startDate"`
	EndDate            string   `json:"endDate"`
	MaxMembers         int      `json:"maxMembers"`
	TotalRounds        int      `json:"totalRounds"`
	TotalFunds         string   `json:"totalFunds"`
	IsPublic           bool     `json:"isPublic"`
	Members            []string `json:"members"`
}

// input converts the request, collecting every malformed field.
func (req createGroupRequest) input() (services.GroupInput, error) {
	var errs core.ValidationErrors
	collect := func(err error) {
		if ve, ok := err.(core.ValidationError); ok {
			errs = append(errs, ve)
		}
	}

	amount, err := parseAmount("contributionAmount", req.ContributionAmount)
	collect(err)
	total, err := parseAmount("totalFunds", req.TotalFunds)
	collect(err)
	start, err := parseDate("startDate", req.StartDate)
	collect(err)
	end, err := parseDate("endDate", req.EndDate)
	collect(err)
	if err := errs.OrNil(); err != nil {
		return services.GroupInput{}, err
	}

	return services.GroupInput{
		Name:               sanitizeInput(req.Name),
		Description:        sanitizeInput(req.Description),
		ContributionAmount: amount,
		Frequency:          core.Frequency(strings.ToUpper(strings.TrimSpace(req.Frequency))),
		StartDate:          start,
		EndDate:            end,
		MaxMembers:         req.MaxMembers,
		TotalRounds:        req.TotalRounds,
		TotalFunds:         total,
		IsPublic:           req.IsPublic,
		Members:            req.Members,
	}, nil
}

type joinGroupRequest struct {
	UserID string `json:"userId"`
}

type advanceResponse struct {
	Group       groupView        `json:"group"`
	Collections []collectionView `json:"collections"`
}

func (s *Server) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	var req createGroupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	in, err := req.input()
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}

	g, err := s.ledger.CreateGroup(r.Context(), strings.TrimSpace(req.HeadID), in)
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	s.invalidateDashboards()
	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", "/groups/"+g.ID).
		Body(toGroupView(*g)).
		Write(w)
}

func (s *Server) handleGetGroup(w http.ResponseWriter, r *http.Request) {
	g, err := s.ledger.GetGroup(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	NewJSONResponse().Body(toGroupView(*g)).Write(w)
}

func (s *Server) handleJoinGroup(w http.ResponseWriter, r *http.Request) {
	var req joinGroupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, log.OpJoin, err)
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		writeError(w, r, log.OpJoin, core.ValidationError{Field: "userId", Message: "is required"})
		return
	}

	g, err := s.ledger.JoinGroup(r.Context(), chi.URLParam(r, "id"), strings.TrimSpace(req.UserID))
	if err != nil {
		writeError(w, r, log.OpJoin, err)
		return
	}
	s.invalidateDashboards()
	NewJSONResponse().Body(toGroupView(*g)).Write(w)
}

func (s *Server) handleLeaveGroup(w http.ResponseWriter, r *http.Request) {
	g, err := s.ledger.LeaveGroup(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "userId"))
	if err != nil {
		writeError(w, r, log.OpLeave, err)
		return
	}
	s.invalidateDashboards()
	NewJSONResponse().Body(toGroupView(*g)).Write(w)
}

func (s *Server) handleAdvanceCycle(w http.ResponseWriter, r *http.Request) {
	g, opened, err := s.ledger.AdvanceCycle(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, log.OpAdvance, err)
		return
	}
	s.invalidateDashboards()
	NewJSONResponse().Body(advanceResponse{
		Group:       toGroupView(*g),
		Collections: toCollectionViews(opened),
	}).Write(w)
}

func (s *Server) handleGroupCollections(w http.ResponseWriter, r *http.Request) {
	round, err := parseIntParam(r.URL.Query(), "round", 0)
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	cs, err := s.ledger.ListGroupCollections(r.Context(), chi.URLParam(r, "id"), round)
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	NewJSONResponse().Body(toCollectionViews(cs)).Write(w)
}

func (s *Server) handleGroupLedger(w http.ResponseWriter, r *http.Request) {
	g, err := s.ledger.GetGroup(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, log.OpExport, err)
		return
	}
	entries, err := s.entries.ListEntries(r.Context(), g.ID)
	if err != nil {
		writeError(w, r, log.OpExport, err)
		return
	}
	views := make([]ledgerEntryView, len(entries))
	for i, e := range entries {
		views[i] = toLedgerEntryView(e)
	}
	NewJSONResponse().Body(views).Write(w)
}
