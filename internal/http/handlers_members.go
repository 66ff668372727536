package http

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"mkoba/internal/core"
	"mkoba/internal/log"
	"mkoba/internal/services"
)

func (s *Server) handleListMembers(w http.ResponseWriter, r *http.Request) {
	members, err := s.members.List(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	out := make([]memberDTO, 0, len(members))
	for _, m := range members {
		out = append(out, toMember(m))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateMember(w http.ResponseWriter, r *http.Request) {
	sess, in, ok := s.memberInput(w, r, log.OpCreate)
	if !ok {
		return
	}
	m, err := s.members.Create(r.Context(), sess, in)
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	writeJSON(w, http.StatusCreated, toMember(m))
}

func (s *Server) handleUpdateMember(w http.ResponseWriter, r *http.Request) {
	sess, in, ok := s.memberInput(w, r, log.OpUpdate)
	if !ok {
		return
	}
	m, err := s.members.Update(r.Context(), sess, chi.URLParam(r, "memberID"), in)
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	writeJSON(w, http.StatusOK, toMember(m))
}

func (s *Server) handleDeleteMember(w http.ResponseWriter, r *http.Request) {
	sess, err := session(r)
	if err != nil {
		writeError(w, r, log.OpDelete, err)
		return
	}
	if err := s.members.Delete(r.Context(), sess, chi.URLParam(r, "memberID")); err != nil {
		writeError(w, r, log.OpDelete, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// memberInput decodes a member body. Active defaults to true and an empty
// role leaves the existing one in place.
func (s *Server) memberInput(w http.ResponseWriter, r *http.Request, op string) (core.Session, services.MemberInput, bool) {
	sess, err := session(r)
	if err != nil {
		writeError(w, r, op, err)
		return core.Session{}, services.MemberInput{}, false
	}
	var req memberRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, op, err)
		return core.Session{}, services.MemberInput{}, false
	}
	in := services.MemberInput{Name: req.Name, Phone: req.Phone, Active: true}
	if req.Active != nil {
		in.Active = *req.Active
	}
	if strings.TrimSpace(req.Role) != "" {
		role, err := core.ParseRole(req.Role)
		if err != nil {
			writeError(w, r, op, err)
			return core.Session{}, services.MemberInput{}, false
		}
		in.Role = role
	}
	return sess, in, true
}
