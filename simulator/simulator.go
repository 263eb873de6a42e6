// Package simulator drives a running chat server with synthetic users over
// its HTTP API.
package simulator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"gator-chat/internal/api"
	"gator-chat/internal/middleware"
	"gator-chat/internal/models"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
)

type SimConfig struct {
	NumUsers         int
	NumGroups        int
	GroupSize        int
	DirectsPerUser   int
	SimulationTime   time.Duration
	MessageFrequency float64 // messages per user per minute
	DeleteRate       float64 // chance a sent message is deleted again
	DisconnectRate   float64
	ReconnectRate    float64
	ZipfS            float64
	MaxRetries       uint64
	EngineURL        string
	JWTSecret        string
	JWTIssuer        string
}

// DefaultSimConfig returns a small, quick simulation.
func DefaultSimConfig() SimConfig {
	return SimConfig{
		NumUsers:         20,
		NumGroups:        3,
		GroupSize:        5,
		DirectsPerUser:   3,
		SimulationTime:   2 * time.Minute,
		MessageFrequency: 30,
		DeleteRate:       0.05,
		DisconnectRate:   0.01,
		ReconnectRate:    0.05,
		ZipfS:            1.07,
		MaxRetries:       3,
		EngineURL:        "http://localhost:8080",
		JWTIssuer:        "gator-chat",
	}
}

type SimulationStats struct {
	mu              sync.RWMutex
	StartTime       time.Time
	TotalRequests   int64
	SuccessRequests int64
	FailedRequests  int64
	AverageLatency  time.Duration
	ActiveUsers     int
	MessagesSent    int
	MessagesDeleted int
	ReadsMarked     int
	Conversations   int
}

// SimulatedUser is one synthetic participant.
type SimulatedUser struct {
	Identity      models.Identity
	Token         string
	IsConnected   bool
	Conversations []uuid.UUID
}

type Simulator struct {
	config SimConfig
	stats  *SimulationStats
	users  []*SimulatedUser
	client *http.Client
	tokens *middleware.TokenValidator
	logger *slog.Logger
	rng    *rand.Rand
	rngMu  sync.Mutex
	mu     sync.RWMutex
}

func NewSimulator(config SimConfig, logger *slog.Logger) *Simulator {
	return &Simulator{
		config: config,
		stats:  &SimulationStats{StartTime: time.Now()},
		client: &http.Client{Timeout: 10 * time.Second},
		tokens: middleware.NewTokenValidator(config.JWTSecret, config.JWTIssuer),
		logger: logger,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (s *Simulator) Run(ctx context.Context) error {
	s.logger.Info("Starting simulation", "users", s.config.NumUsers, "duration", s.config.SimulationTime)
	if err := s.initialize(ctx); err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.SimulationTime)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		s.simulateChats(ctx)
	}()
	go func() {
		defer wg.Done()
		s.simulateConnectivity(ctx)
	}()
	go func() {
		defer wg.Done()
		s.collectMetrics(ctx)
	}()
	wg.Wait()
	return nil
}

func (s *Simulator) initialize(ctx context.Context) error {
	s.logger.Info("Phase 1: signing in users", "count", s.config.NumUsers)
	if err := s.createUsers(ctx); err != nil {
		return err
	}
	s.logger.Info("Phase 2: opening direct conversations")
	if err := s.createDirects(ctx); err != nil {
		return err
	}
	s.logger.Info("Phase 3: creating groups", "count", s.config.NumGroups)
	return s.createGroups(ctx)
}

func (s *Simulator) createUsers(ctx context.Context) error {
	users := make([]*SimulatedUser, 0, s.config.NumUsers)
	for i := 0; i < s.config.NumUsers; i++ {
		identity := models.Identity{
			Subject: fmt.Sprintf("sim|user_%d", i),
			Name:    fmt.Sprintf("User %d", i),
			Email:   fmt.Sprintf("user_%d@test.com", i),
		}
		token, err := s.tokens.GenerateToken(identity, s.config.SimulationTime+time.Hour)
		if err != nil {
			return fmt.Errorf("mint token: %w", err)
		}
		user := &SimulatedUser{Identity: identity, Token: token, IsConnected: true}
		if err := s.request(ctx, user, http.MethodPost, "/api/users/me", api.UpsertUserRequest{}, nil); err != nil {
			return fmt.Errorf("sign in %s: %w", identity.Subject, err)
		}
		users = append(users, user)
	}

	s.mu.Lock()
	s.users = users
	s.mu.Unlock()
	s.stats.mu.Lock()
	s.stats.ActiveUsers = len(users)
	s.stats.mu.Unlock()
	return nil
}

// createDirects pairs every user with partners drawn from a Zipf
// distribution, so a few users are much more popular than the rest.
func (s *Simulator) createDirects(ctx context.Context) error {
	if len(s.users) < 2 {
		return nil
	}
	for _, user := range s.users {
		for i := 0; i < s.config.DirectsPerUser; i++ {
			partner := s.users[s.zipfIndex(len(s.users))]
			if partner == user {
				continue
			}
			var resolved api.ConversationIDResponse
			err := s.request(ctx, user, http.MethodPost, "/api/conversations/direct",
				api.ResolveDirectRequest{OtherUserID: partner.Identity.Subject}, &resolved)
			if err != nil {
				return fmt.Errorf("resolve direct: %w", err)
			}
			s.join(resolved.ConversationID, user, partner)
		}
	}
	return nil
}

func (s *Simulator) createGroups(ctx context.Context) error {
	if len(s.users) < 2 {
		return nil
	}
	for g := 0; g < s.config.NumGroups; g++ {
		creator := s.users[s.intn(len(s.users))]
		members := []*SimulatedUser{creator}
		ids := make([]string, 0, s.config.GroupSize)
		for len(ids) < s.config.GroupSize-1 && len(ids) < len(s.users)-1 {
			candidate := s.users[s.intn(len(s.users))]
			if candidate == creator || containsUser(members, candidate) {
				continue
			}
			members = append(members, candidate)
			ids = append(ids, candidate.Identity.Subject)
		}

		var created api.ConversationIDResponse
		err := s.request(ctx, creator, http.MethodPost, "/api/conversations/groups", api.CreateGroupRequest{
			GroupName: fmt.Sprintf("group_%d", g),
			MemberIDs: ids,
		}, &created)
		if err != nil {
			return fmt.Errorf("create group: %w", err)
		}
		s.join(created.ConversationID, members...)
	}
	return nil
}

// join records convID on each user once.
func (s *Simulator) join(convID uuid.UUID, users ...*SimulatedUser) {
	s.mu.Lock()
	defer s.mu.Unlock()
	added := false
	for _, user := range users {
		known := false
		for _, id := range user.Conversations {
			if id == convID {
				known = true
				break
			}
		}
		if !known {
			user.Conversations = append(user.Conversations, convID)
			added = true
		}
	}
	if added {
		s.stats.mu.Lock()
		s.stats.Conversations++
		s.stats.mu.Unlock()
	}
}

func containsUser(users []*SimulatedUser, user *SimulatedUser) bool {
	for _, u := range users {
		if u == user {
			return true
		}
	}
	return false
}

func (s *Simulator) zipfIndex(n int) int {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	if n <= 1 {
		return 0
	}
	zipf := rand.NewZipf(s.rng, s.config.ZipfS, 1, uint64(n-1))
	return int(zipf.Uint64())
}

func (s *Simulator) intn(n int) int {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return s.rng.Intn(n)
}

func (s *Simulator) chance(p float64) bool {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return s.rng.Float64() < p
}

// statusError is a response the server rejected.
type statusError struct {
	Status int
	Body   api.ErrorResponse
}

func (e *statusError) Error() string {
	return fmt.Sprintf("request failed with status %d: %s %s", e.Status, e.Body.Code, e.Body.Error)
}

// request sends one API call as user, retrying transport failures and 5xx
// responses with exponential backoff. out may be nil.
func (s *Simulator) request(ctx context.Context, user *SimulatedUser, method, endpoint string, data, out interface{}) error {
	var body []byte
	if data != nil {
		var err error
		if body, err = json.Marshal(data); err != nil {
			return err
		}
	}

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, method, s.config.EngineURL+endpoint, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+user.Token)

		start := time.Now()
		resp, err := s.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			s.recordRequestMetrics(start, err)
			return err
		}
		defer resp.Body.Close()
		payload, err := io.ReadAll(resp.Body)
		if err == nil && resp.StatusCode >= 400 {
			serr := &statusError{Status: resp.StatusCode}
			_ = json.Unmarshal(payload, &serr.Body)
			err = serr
		}
		if err != nil && ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		s.recordRequestMetrics(start, err)
		if err != nil {
			if resp.StatusCode < 500 {
				return backoff.Permanent(err)
			}
			return err
		}
		if out != nil && len(payload) > 0 {
			return backoff.Permanent(json.Unmarshal(payload, out))
		}
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), s.config.MaxRetries), ctx)
	err := backoff.Retry(operation, policy)
	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		return perm.Err
	}
	return err
}

func (s *Simulator) recordRequestMetrics(start time.Time, err error) {
	s.stats.mu.Lock()
	defer s.stats.mu.Unlock()

	latency := time.Since(start)
	s.stats.TotalRequests++
	if err != nil {
		s.stats.FailedRequests++
	} else {
		s.stats.SuccessRequests++
	}
	totalLatency := s.stats.AverageLatency * time.Duration(s.stats.TotalRequests-1)
	s.stats.AverageLatency = (totalLatency + latency) / time.Duration(s.stats.TotalRequests)
}

func (s *Simulator) collectMetrics(ctx context.Context) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m := s.GetMetrics()
			s.logger.Info("Simulation metrics",
				"elapsed", time.Since(s.stats.StartTime).Round(time.Second),
				"req_per_sec", fmt.Sprintf("%.2f", m.RequestsPerSecond),
				"avg_latency", m.AverageLatency,
				"active_users", fmt.Sprintf("%d/%d", m.ActiveUsers, m.TotalUsers),
				"messages", m.MessagesSent,
				"deleted", m.MessagesDeleted,
				"errors", m.ErrorCount,
			)
		}
	}
}

// SimulationMetrics holds the metrics of the simulation
type SimulationMetrics struct {
	TotalUsers        int
	ActiveUsers       int
	Conversations     int
	MessagesSent      int
	MessagesDeleted   int
	ReadsMarked       int
	AverageLatency    time.Duration
	TotalRequests     int64
	ErrorCount        int
	RequestsPerSecond float64
}

// GetMetrics returns the current simulation metrics
func (s *Simulator) GetMetrics() SimulationMetrics {
	s.mu.RLock()
	totalUsers := len(s.users)
	s.mu.RUnlock()

	s.stats.mu.RLock()
	defer s.stats.mu.RUnlock()
	elapsed := time.Since(s.stats.StartTime)
	return SimulationMetrics{
		TotalUsers:        totalUsers,
		ActiveUsers:       s.stats.ActiveUsers,
		Conversations:     s.stats.Conversations,
		MessagesSent:      s.stats.MessagesSent,
		MessagesDeleted:   s.stats.MessagesDeleted,
		ReadsMarked:       s.stats.ReadsMarked,
		AverageLatency:    s.stats.AverageLatency,
		TotalRequests:     s.stats.TotalRequests,
		ErrorCount:        int(s.stats.FailedRequests),
		RequestsPerSecond: float64(s.stats.TotalRequests) / elapsed.Seconds(),
	}
}
