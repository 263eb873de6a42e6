package models

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

type ConversationKind string

const (
	DirectKind ConversationKind = "direct"
	GroupKind  ConversationKind = "group"
)

// Conversation is either a direct conversation between exactly two users or a
// named group with an admin subset. Exactly one of Direct and Group is set,
// matching Kind.
type Conversation struct {
	ID           uuid.UUID           `json:"id"`
	Kind         ConversationKind    `json:"kind"`
	LastActivity time.Time           `json:"lastActivity"`
	CreatedAt    time.Time           `json:"createdAt"`
	Direct       *DirectConversation `json:"direct,omitempty"`
	Group        *GroupConversation  `json:"group,omitempty"`
}

type DirectConversation struct {
	Participants [2]string `json:"participants"`
}

type GroupConversation struct {
	Name         string   `json:"name"`
	Image        string   `json:"image,omitempty"`
	Participants []string `json:"participants"`
	Admins       []string `json:"admins"`
}

// NewDirectConversation builds an unsaved direct conversation between a and b.
func NewDirectConversation(a, b string, at time.Time) *Conversation {
	return &Conversation{
		ID:           uuid.New(),
		Kind:         DirectKind,
		LastActivity: at,
		CreatedAt:    at,
		Direct:       &DirectConversation{Participants: [2]string{a, b}},
	}
}

// NewGroupConversation builds an unsaved group. The creator becomes the sole
// admin and participants are deduplicated and sorted.
func NewGroupConversation(creatorID, name, image string, memberIDs []string, at time.Time) *Conversation {
	return &Conversation{
		ID:           uuid.New(),
		Kind:         GroupKind,
		LastActivity: at,
		CreatedAt:    at,
		Group: &GroupConversation{
			Name:         name,
			Image:        image,
			Participants: NormalizeIDs(append([]string{creatorID}, memberIDs...)),
			Admins:       []string{creatorID},
		},
	}
}

func (c *Conversation) IsGroup() bool {
	return c.Kind == GroupKind
}

func (c *Conversation) ParticipantIDs() []string {
	switch {
	case c.Direct != nil:
		return []string{c.Direct.Participants[0], c.Direct.Participants[1]}
	case c.Group != nil:
		return slices.Clone(c.Group.Participants)
	}
	return nil
}

func (c *Conversation) AdminIDs() []string {
	if c.Group == nil {
		return nil
	}
	return slices.Clone(c.Group.Admins)
}

func (c *Conversation) HasParticipant(userID string) bool {
	return slices.Contains(c.ParticipantIDs(), userID)
}

// IsAdmin is always false for direct conversations.
func (c *Conversation) IsAdmin(userID string) bool {
	return c.Group != nil && slices.Contains(c.Group.Admins, userID)
}

// OtherParticipant returns the participant of a direct conversation that is
// not userID. It returns "" for groups.
func (c *Conversation) OtherParticipant(userID string) string {
	if c.Direct == nil {
		return ""
	}
	if c.Direct.Participants[0] == userID {
		return c.Direct.Participants[1]
	}
	return c.Direct.Participants[0]
}

// Clone returns a deep copy.
func (c *Conversation) Clone() *Conversation {
	cp := *c
	if c.Direct != nil {
		d := *c.Direct
		cp.Direct = &d
	}
	if c.Group != nil {
		g := *c.Group
		g.Participants = slices.Clone(c.Group.Participants)
		g.Admins = slices.Clone(c.Group.Admins)
		cp.Group = &g
	}
	return &cp
}

// NormalizeIDs drops blanks and duplicates and sorts the result.
func NormalizeIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != "" {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}
