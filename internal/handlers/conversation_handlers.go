package handlers

import (
	"net/http"

	"gator-chat/internal/api"
	"gator-chat/internal/middleware"

	"github.com/go-chi/chi/v5"
)

// HandleListConversations returns the caller's sidebar.
func (s *Server) HandleListConversations() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		summaries, err := s.Engine.ListConversations(middleware.IdentityFromContext(r.Context()))
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, summaries)
	}
}

// HandleResolveDirect returns the direct conversation with another user,
// creating it on first use.
func (s *Server) HandleResolveDirect() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req api.ResolveDirectRequest
		if err := decodeJSON(r, &req); err != nil {
			s.respondError(w, r, err)
			return
		}

		id, err := s.Engine.ResolveDirect(middleware.IdentityFromContext(r.Context()), req.OtherUserID)
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, api.ConversationIDResponse{ConversationID: id})
	}
}

func (s *Server) HandleCreateGroup() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req api.CreateGroupRequest
		if err := decodeJSON(r, &req); err != nil {
			s.respondError(w, r, err)
			return
		}

		id, err := s.Engine.CreateGroup(middleware.IdentityFromContext(r.Context()), req.GroupName, req.GroupImage, req.MemberIDs)
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, api.ConversationIDResponse{ConversationID: id})
	}
}

func (s *Server) HandleDeleteGroup() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuidParam(r, "id")
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		if err := s.Engine.DeleteGroup(middleware.IdentityFromContext(r.Context()), id); err != nil {
			s.respondError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) HandleListMembers() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuidParam(r, "id")
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		members, err := s.Engine.ListMembers(middleware.IdentityFromContext(r.Context()), id)
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, members)
	}
}

func (s *Server) HandleAddMembers() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuidParam(r, "id")
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		var req api.AddMembersRequest
		if err := decodeJSON(r, &req); err != nil {
			s.respondError(w, r, err)
			return
		}

		if err := s.Engine.AddMembers(middleware.IdentityFromContext(r.Context()), id, req.MemberIDs); err != nil {
			s.respondError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) HandleKickMember() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuidParam(r, "id")
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		memberID := chi.URLParam(r, "memberId")
		if err := s.Engine.KickMember(middleware.IdentityFromContext(r.Context()), id, memberID); err != nil {
			s.respondError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
