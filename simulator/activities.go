package simulator

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"gator-chat/internal/api"

	"github.com/google/uuid"
)

// simulateChats runs one chat loop per user until ctx is done.
func (s *Simulator) simulateChats(ctx context.Context) {
	s.mu.RLock()
	users := append([]*SimulatedUser(nil), s.users...)
	s.mu.RUnlock()

	var wg sync.WaitGroup
	for _, user := range users {
		wg.Add(1)
		go func(user *SimulatedUser) {
			defer wg.Done()
			s.chatLoop(ctx, user)
		}(user)
	}
	wg.Wait()
}

func (s *Simulator) chatLoop(ctx context.Context, user *SimulatedUser) {
	interval := time.Minute
	if s.config.MessageFrequency > 0 {
		interval = time.Duration(float64(time.Minute) / s.config.MessageFrequency)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.mu.RLock()
			connected := user.IsConnected
			convs := append([]uuid.UUID(nil), user.Conversations...)
			s.mu.RUnlock()
			if !connected || len(convs) == 0 {
				continue
			}
			convID := convs[s.zipfIndex(len(convs))]
			if err := s.chatTurn(ctx, user, convID); err != nil && ctx.Err() == nil {
				s.logger.Debug("Chat turn failed", "user", user.Identity.Subject, "conversation", convID, "error", err)
			}
		}
	}
}

// chatTurn types, sends and then has every other connected member read the
// conversation.
func (s *Simulator) chatTurn(ctx context.Context, user *SimulatedUser, convID uuid.UUID) error {
	path := "/api/conversations/" + convID.String()

	if err := s.request(ctx, user, http.MethodPut, path+"/typing", nil, nil); err != nil {
		return fmt.Errorf("set typing: %w", err)
	}

	var sent api.MessageView
	content := fmt.Sprintf("%s says hello at %s", user.Identity.Name, time.Now().Format(time.Kitchen))
	if err := s.request(ctx, user, http.MethodPost, path+"/messages", api.SendMessageRequest{Content: content}, &sent); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	s.stats.mu.Lock()
	s.stats.MessagesSent++
	s.stats.mu.Unlock()

	if s.chance(s.config.DeleteRate) {
		if err := s.request(ctx, user, http.MethodDelete, "/api/messages/"+sent.ID.String(), nil, nil); err != nil {
			return fmt.Errorf("delete message: %w", err)
		}
		s.stats.mu.Lock()
		s.stats.MessagesDeleted++
		s.stats.mu.Unlock()
	}

	for _, reader := range s.membersOf(convID) {
		if reader == user {
			continue
		}
		s.mu.RLock()
		connected := reader.IsConnected
		s.mu.RUnlock()
		if !connected {
			continue
		}
		if err := s.request(ctx, reader, http.MethodPost, path+"/read", nil, nil); err != nil {
			return fmt.Errorf("mark read: %w", err)
		}
		s.stats.mu.Lock()
		s.stats.ReadsMarked++
		s.stats.mu.Unlock()
	}
	return nil
}

func (s *Simulator) membersOf(convID uuid.UUID) []*SimulatedUser {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var members []*SimulatedUser
	for _, user := range s.users {
		for _, id := range user.Conversations {
			if id == convID {
				members = append(members, user)
				break
			}
		}
	}
	return members
}

// simulateConnectivity flips users offline and back online. Going offline
// clears presence on the server; coming back re-upserts the user.
func (s *Simulator) simulateConnectivity(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.mu.RLock()
			users := append([]*SimulatedUser(nil), s.users...)
			s.mu.RUnlock()

			for _, user := range users {
				s.mu.RLock()
				connected := user.IsConnected
				s.mu.RUnlock()

				switch {
				case connected && s.chance(s.config.DisconnectRate):
					if err := s.request(ctx, user, http.MethodPost, "/api/users/me/offline", nil, nil); err != nil {
						continue
					}
					s.setConnected(user, false)
				case !connected && s.chance(s.config.ReconnectRate):
					if err := s.request(ctx, user, http.MethodPost, "/api/users/me", api.UpsertUserRequest{}, nil); err != nil {
						continue
					}
					s.setConnected(user, true)
				}
			}
		}
	}
}

func (s *Simulator) setConnected(user *SimulatedUser, connected bool) {
	s.mu.Lock()
	user.IsConnected = connected
	s.mu.Unlock()

	s.stats.mu.Lock()
	if connected {
		s.stats.ActiveUsers++
	} else {
		s.stats.ActiveUsers--
	}
	s.stats.mu.Unlock()
}
