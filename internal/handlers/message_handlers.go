package handlers

import (
	"net/http"

	"gator-chat/internal/api"
	"gator-chat/internal/middleware"
)

func (s *Server) HandleListMessages() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuidParam(r, "id")
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		messages, err := s.Engine.ListMessages(middleware.IdentityFromContext(r.Context()), id)
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, messages)
	}
}

func (s *Server) HandleSendMessage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuidParam(r, "id")
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		var req api.SendMessageRequest
		if err := decodeJSON(r, &req); err != nil {
			s.respondError(w, r, err)
			return
		}

		message, err := s.Engine.SendMessage(middleware.IdentityFromContext(r.Context()), id, req.Content)
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, message)
	}
}

// HandleDeleteMessage soft-deletes one of the caller's own messages.
func (s *Server) HandleDeleteMessage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuidParam(r, "id")
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		if err := s.Engine.DeleteMessage(middleware.IdentityFromContext(r.Context()), id); err != nil {
			s.respondError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// HandleCurrentTyper returns null when nobody else is typing.
func (s *Server) HandleCurrentTyper() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuidParam(r, "id")
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		typer, err := s.Engine.CurrentTyper(middleware.IdentityFromContext(r.Context()), id)
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, typer)
	}
}

func (s *Server) HandleSetTyping() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuidParam(r, "id")
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		if err := s.Engine.SetTyping(middleware.IdentityFromContext(r.Context()), id); err != nil {
			s.respondError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) HandleClearTyping() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuidParam(r, "id")
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		if err := s.Engine.ClearTyping(middleware.IdentityFromContext(r.Context()), id); err != nil {
			s.respondError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) HandleMarkRead() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuidParam(r, "id")
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		if err := s.Engine.MarkRead(middleware.IdentityFromContext(r.Context()), id); err != nil {
			s.respondError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) HandleUnreadCount() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuidParam(r, "id")
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		count, err := s.Engine.UnreadCount(middleware.IdentityFromContext(r.Context()), id)
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, api.UnreadCount{ConversationID: id, Count: count})
	}
}
