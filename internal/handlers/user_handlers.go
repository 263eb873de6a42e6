package handlers

import (
	"net/http"

	"gator-chat/internal/api"
	"gator-chat/internal/middleware"
)

// HandleUpsertUser records the caller on first contact and marks them online.
func (s *Server) HandleUpsertUser() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req api.UpsertUserRequest
		if err := decodeJSON(r, &req); err != nil {
			s.respondError(w, r, err)
			return
		}

		user, err := s.Engine.UpsertUser(middleware.IdentityFromContext(r.Context()), req.ImageURL)
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, user)
	}
}

// HandleCurrentUser returns null for anonymous or unknown callers.
func (s *Server) HandleCurrentUser() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := s.Engine.CurrentUser(middleware.IdentityFromContext(r.Context()))
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, user)
	}
}

func (s *Server) HandleSetOffline() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.Engine.SetOffline(middleware.IdentityFromContext(r.Context())); err != nil {
			s.respondError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) HandleRegenerateAvatar() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req api.RegenerateAvatarRequest
		if err := decodeJSON(r, &req); err != nil {
			s.respondError(w, r, err)
			return
		}

		user, err := s.Engine.RegenerateAvatar(middleware.IdentityFromContext(r.Context()), req.ImageURL)
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, user)
	}
}

// HandleListUsers lists every user except the caller.
func (s *Server) HandleListUsers() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		users, err := s.Engine.ListOtherUsers(middleware.IdentityFromContext(r.Context()))
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, users)
	}
}
