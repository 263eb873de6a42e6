// internal/database/mongodb.go
package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gator-chat/internal/models"
	"gator-chat/internal/utils"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoDB struct {
	Client        *mongo.Client
	Users         *mongo.Collection
	Conversations *mongo.Collection
	Messages      *mongo.Collection
	Typing        *mongo.Collection
	Receipts      *mongo.Collection
	logger        *slog.Logger
}

// UserDocument represents the MongoDB schema for a user
type UserDocument struct {
	ID         string    `bson:"_id"`
	IdentityID string    `bson:"identityId"`
	Name       string    `bson:"name"`
	Email      string    `bson:"email"`
	ImageURL   string    `bson:"imageUrl"`
	IsOnline   bool      `bson:"isOnline"`
	CreatedAt  time.Time `bson:"createdAt"`
	UpdatedAt  time.Time `bson:"updatedAt"`
}

// ConversationDocument stores both kinds in one collection. DirectKey is
// only present on direct conversations.
type ConversationDocument struct {
	ID           string    `bson:"_id"`
	Kind         string    `bson:"kind"`
	Name         string    `bson:"name,omitempty"`
	Image        string    `bson:"image,omitempty"`
	DirectKey    string    `bson:"directKey,omitempty"`
	Participants []string  `bson:"participants"`
	Admins       []string  `bson:"admins"`
	LastActivity time.Time `bson:"lastActivity"`
	CreatedAt    time.Time `bson:"createdAt"`
}

type MessageDocument struct {
	ID             string    `bson:"_id"`
	ConversationID string    `bson:"conversationId"`
	SenderID       string    `bson:"senderId"`
	Content        string    `bson:"content"`
	CreatedAt      time.Time `bson:"createdAt"`
	IsDeleted      bool      `bson:"isDeleted"`
}

type TypingDocument struct {
	ConversationID string    `bson:"conversationId"`
	UserID         string    `bson:"userId"`
	TypedAt        time.Time `bson:"typedAt"`
}

type ReceiptDocument struct {
	ConversationID string    `bson:"conversationId"`
	UserID         string    `bson:"userId"`
	LastReadAt     time.Time `bson:"lastReadAt"`
}

func NewMongoDB(ctx context.Context, uri, dbName string, logger *slog.Logger) (*MongoDB, error) {
	serverAPI := options.ServerAPI(options.ServerAPIVersion1)
	opts := options.Client().ApplyURI(uri).SetServerAPIOptions(serverAPI)

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	// Ping the database to verify connection
	if err := client.Database("admin").RunCommand(ctx, bson.D{{Key: "ping", Value: 1}}).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	logger.Info("Connected to MongoDB", "database", dbName)

	db := client.Database(dbName)
	return &MongoDB{
		Client:        client,
		Users:         db.Collection("users"),
		Conversations: db.Collection("conversations"),
		Messages:      db.Collection("messages"),
		Typing:        db.Collection("typing_states"),
		Receipts:      db.Collection("read_receipts"),
		logger:        logger,
	}, nil
}

func (m *MongoDB) Close(ctx context.Context) error {
	return m.Client.Disconnect(ctx)
}

// TimestampPrecision is milliseconds: BSON dates carry no finer resolution.
func (m *MongoDB) TimestampPrecision() time.Duration { return time.Millisecond }

// EnsureIndexes creates the unique and lookup indexes every query relies on.
func (m *MongoDB) EnsureIndexes(ctx context.Context) error {
	indexes := map[*mongo.Collection][]mongo.IndexModel{
		m.Users: {
			{Keys: bson.D{{Key: "identityId", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		m.Conversations: {
			{
				Keys: bson.D{{Key: "directKey", Value: 1}},
				Options: options.Index().SetUnique(true).
					SetPartialFilterExpression(bson.M{"directKey": bson.M{"$exists": true}}),
			},
			{Keys: bson.D{{Key: "participants", Value: 1}, {Key: "lastActivity", Value: -1}}},
		},
		m.Messages: {
			{Keys: bson.D{{Key: "conversationId", Value: 1}, {Key: "createdAt", Value: 1}}},
		},
		m.Typing: {
			{Keys: bson.D{{Key: "conversationId", Value: 1}, {Key: "userId", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "typedAt", Value: 1}}},
		},
		m.Receipts: {
			{Keys: bson.D{{Key: "conversationId", Value: 1}, {Key: "userId", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
	}
	for coll, specs := range indexes {
		if _, err := coll.Indexes().CreateMany(ctx, specs); err != nil {
			return fmt.Errorf("failed to create indexes on %s: %w", coll.Name(), err)
		}
	}
	return nil
}

// --- User Methods ---

func (m *MongoDB) UpsertUser(ctx context.Context, user *models.User) (bool, error) {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	now := time.Now().UTC()

	filter := bson.M{"identityId": user.IdentityID}
	update := bson.M{
		"$set": bson.M{
			"name":      user.Name,
			"email":     user.Email,
			"isOnline":  user.IsOnline,
			"updatedAt": now,
		},
		"$setOnInsert": bson.M{
			"_id":       user.ID.String(),
			"imageUrl":  user.ImageURL,
			"createdAt": now,
		},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var doc UserDocument
	err := m.Users.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
	if mongo.IsDuplicateKeyError(err) {
		// Lost an insert race; the row now exists and the retry is an update.
		err = m.Users.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
	}
	if err != nil {
		return false, utils.NewAppError(utils.ErrDatabase, "failed to upsert user", err)
	}
	created := doc.ID == user.ID.String()
	stored, err := userFromDocument(&doc)
	if err != nil {
		return false, err
	}
	*user = *stored
	return created, nil
}

func (m *MongoDB) GetUserByIdentity(ctx context.Context, identityID string) (*models.User, error) {
	var doc UserDocument
	err := m.Users.FindOne(ctx, bson.M{"identityId": identityID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, utils.NewAppError(utils.ErrNotFound, "user not found: "+identityID, err)
	}
	if err != nil {
		return nil, utils.NewAppError(utils.ErrDatabase, "failed to query user by identity", err)
	}
	return userFromDocument(&doc)
}

func (m *MongoDB) GetUsersByIdentity(ctx context.Context, identityIDs []string) ([]*models.User, error) {
	ids := models.NormalizeIDs(identityIDs)
	if len(ids) == 0 {
		return []*models.User{}, nil
	}
	opts := options.Find().SetSort(bson.D{{Key: "identityId", Value: 1}})
	return m.findUsers(ctx, bson.M{"identityId": bson.M{"$in": ids}}, opts)
}

func (m *MongoDB) GetAllUsers(ctx context.Context) ([]*models.User, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	return m.findUsers(ctx, bson.M{}, opts)
}

func (m *MongoDB) SetUserOnline(ctx context.Context, identityID string, online bool) error {
	update := bson.M{"$set": bson.M{"isOnline": online, "updatedAt": time.Now().UTC()}}
	return m.updateOne(ctx, m.Users, bson.M{"identityId": identityID}, update, "user not found for online update")
}

func (m *MongoDB) UpdateUserAvatar(ctx context.Context, identityID, imageURL string) error {
	update := bson.M{"$set": bson.M{"imageUrl": imageURL, "updatedAt": time.Now().UTC()}}
	return m.updateOne(ctx, m.Users, bson.M{"identityId": identityID}, update, "user not found for avatar update")
}

func (m *MongoDB) findUsers(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*models.User, error) {
	cursor, err := m.Users.Find(ctx, filter, opts)
	if err != nil {
		return nil, utils.NewAppError(utils.ErrDatabase, "failed to query users", err)
	}
	var docs []UserDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, utils.NewAppError(utils.ErrDatabase, "failed to decode users", err)
	}
	users := make([]*models.User, 0, len(docs))
	for i := range docs {
		user, err := userFromDocument(&docs[i])
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, nil
}

// --- Conversation Methods ---

// FindOrCreateDirectConversation upserts on the pair key. $setOnInsert means a
// concurrent creator that loses the race reads back the winner's document.
func (m *MongoDB) FindOrCreateDirectConversation(ctx context.Context, conv *models.Conversation) (*models.Conversation, bool, error) {
	if conv.Direct == nil {
		return nil, false, utils.NewValidationError("not a direct conversation")
	}
	doc := conversationToDocument(conv)
	filter := bson.M{"directKey": doc.DirectKey}
	update := bson.M{"$setOnInsert": doc}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var stored ConversationDocument
	var err error
	for attempt := 0; attempt < directCreateAttempts; attempt++ {
		err = m.Conversations.FindOneAndUpdate(ctx, filter, update, opts).Decode(&stored)
		if !mongo.IsDuplicateKeyError(err) {
			break
		}
		m.logger.Debug("Direct conversation upsert raced, retrying", "attempt", attempt+1)
	}
	if err != nil {
		return nil, false, utils.NewAppError(utils.ErrDatabase, "failed to resolve direct conversation", err)
	}
	result, err := conversationFromDocument(&stored)
	if err != nil {
		return nil, false, err
	}
	return result, stored.ID == doc.ID, nil
}

func (m *MongoDB) CreateGroupConversation(ctx context.Context, conv *models.Conversation) error {
	if conv.Group == nil {
		return utils.NewValidationError("not a group conversation")
	}
	if _, err := m.Conversations.InsertOne(ctx, conversationToDocument(conv)); err != nil {
		return utils.NewAppError(utils.ErrDatabase, "failed to insert group conversation", err)
	}
	return nil
}

func (m *MongoDB) GetConversation(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
	var doc ConversationDocument
	err := m.Conversations.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, utils.NewNotFoundError("conversation", id)
	}
	if err != nil {
		return nil, utils.NewAppError(utils.ErrDatabase, "failed to query conversation", err)
	}
	return conversationFromDocument(&doc)
}

func (m *MongoDB) GetConversationsForUser(ctx context.Context, userID string) ([]*models.Conversation, error) {
	opts := options.Find().SetSort(bson.D{{Key: "lastActivity", Value: -1}, {Key: "_id", Value: 1}})
	cursor, err := m.Conversations.Find(ctx, bson.M{"participants": userID}, opts)
	if err != nil {
		return nil, utils.NewAppError(utils.ErrDatabase, "failed to query conversations for user", err)
	}
	var docs []ConversationDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, utils.NewAppError(utils.ErrDatabase, "failed to decode conversations", err)
	}
	convs := make([]*models.Conversation, 0, len(docs))
	for i := range docs {
		conv, err := conversationFromDocument(&docs[i])
		if err != nil {
			return nil, err
		}
		convs = append(convs, conv)
	}
	return convs, nil
}

func (m *MongoDB) AddConversationMembers(ctx context.Context, id uuid.UUID, userIDs []string) error {
	ids := models.NormalizeIDs(userIDs)
	if len(ids) == 0 {
		return nil
	}
	filter := bson.M{"_id": id.String(), "kind": string(models.GroupKind)}
	update := bson.M{"$addToSet": bson.M{"participants": bson.M{"$each": ids}}}
	return m.updateOne(ctx, m.Conversations, filter, update, "group not found for member add")
}

func (m *MongoDB) RemoveConversationMember(ctx context.Context, id uuid.UUID, userID string) error {
	filter := bson.M{"_id": id.String(), "kind": string(models.GroupKind)}
	update := bson.M{"$pull": bson.M{"participants": userID, "admins": userID}}
	return m.updateOne(ctx, m.Conversations, filter, update, "group not found for member removal")
}

func (m *MongoDB) TouchConversation(ctx context.Context, id uuid.UUID, at time.Time) error {
	update := bson.M{"$max": bson.M{"lastActivity": at}}
	return m.updateOne(ctx, m.Conversations, bson.M{"_id": id.String()}, update, "conversation not found for touch")
}

// DeleteConversation removes the conversation and everything hanging off it
// inside one transaction. Requires a replica set deployment.
func (m *MongoDB) DeleteConversation(ctx context.Context, id uuid.UUID) error {
	session, err := m.Client.StartSession()
	if err != nil {
		return utils.NewAppError(utils.ErrDatabase, "failed to start session", err)
	}
	defer session.EndSession(ctx)

	convID := id.String()
	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		for _, coll := range []*mongo.Collection{m.Messages, m.Typing, m.Receipts} {
			if _, err := coll.DeleteMany(sc, bson.M{"conversationId": convID}); err != nil {
				return nil, err
			}
		}
		result, err := m.Conversations.DeleteOne(sc, bson.M{"_id": convID})
		if err != nil {
			return nil, err
		}
		if result.DeletedCount == 0 {
			return nil, utils.NewNotFoundError("conversation", id)
		}
		return nil, nil
	})
	if err != nil {
		if utils.IsErrorCode(err, utils.ErrNotFound) {
			return err
		}
		return utils.NewAppError(utils.ErrDatabase, "failed to delete conversation", err)
	}
	return nil
}

// --- Message Methods ---

func (m *MongoDB) SaveMessage(ctx context.Context, msg *models.Message) error {
	doc := MessageDocument{
		ID:             msg.ID.String(),
		ConversationID: msg.ConversationID.String(),
		SenderID:       msg.SenderID,
		Content:        msg.Content,
		CreatedAt:      msg.CreatedAt,
		IsDeleted:      msg.IsDeleted,
	}
	return m.withLiveConversation(ctx, msg.ConversationID, "failed to save message", func(sc mongo.SessionContext) error {
		_, err := m.Messages.InsertOne(sc, doc)
		return err
	})
}

func (m *MongoDB) GetMessage(ctx context.Context, id uuid.UUID) (*models.Message, error) {
	var doc MessageDocument
	err := m.Messages.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, utils.NewNotFoundError("message", id)
	}
	if err != nil {
		return nil, utils.NewAppError(utils.ErrDatabase, "failed to query message", err)
	}
	return messageFromDocument(&doc)
}

func (m *MongoDB) GetConversationMessages(ctx context.Context, conversationID uuid.UUID) ([]*models.Message, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := m.Messages.Find(ctx, bson.M{"conversationId": conversationID.String()}, opts)
	if err != nil {
		return nil, utils.NewAppError(utils.ErrDatabase, "failed to query conversation messages", err)
	}
	var docs []MessageDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, utils.NewAppError(utils.ErrDatabase, "failed to decode messages", err)
	}
	messages := make([]*models.Message, 0, len(docs))
	for i := range docs {
		msg, err := messageFromDocument(&docs[i])
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

func (m *MongoDB) GetLastMessage(ctx context.Context, conversationID uuid.UUID) (*models.Message, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})
	var doc MessageDocument
	err := m.Messages.FindOne(ctx, bson.M{"conversationId": conversationID.String()}, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, utils.NewAppError(utils.ErrDatabase, "failed to query last message", err)
	}
	return messageFromDocument(&doc)
}

func (m *MongoDB) MarkMessageDeleted(ctx context.Context, id uuid.UUID) error {
	update := bson.M{"$set": bson.M{"isDeleted": true}}
	return m.updateOne(ctx, m.Messages, bson.M{"_id": id.String()}, update, "message not found for deletion")
}

func (m *MongoDB) CountUnread(ctx context.Context, conversationID uuid.UUID, viewerID string, after time.Time) (int, error) {
	filter := bson.M{
		"conversationId": conversationID.String(),
		"createdAt":      bson.M{"$gt": after},
		"senderId":       bson.M{"$ne": viewerID},
	}
	count, err := m.Messages.CountDocuments(ctx, filter)
	if err != nil {
		return 0, utils.NewAppError(utils.ErrDatabase, "failed to count unread messages", err)
	}
	return int(count), nil
}

// --- Typing Methods ---

func (m *MongoDB) UpsertTypingState(ctx context.Context, state *models.TypingState) error {
	filter := bson.M{"conversationId": state.ConversationID.String(), "userId": state.UserID}
	update := bson.M{"$set": bson.M{"typedAt": state.TypedAt}}
	return m.withLiveConversation(ctx, state.ConversationID, "failed to upsert typing state", func(sc mongo.SessionContext) error {
		_, err := m.Typing.UpdateOne(sc, filter, update, options.Update().SetUpsert(true))
		return err
	})
}

func (m *MongoDB) DeleteTypingState(ctx context.Context, conversationID uuid.UUID, userID string) error {
	filter := bson.M{"conversationId": conversationID.String(), "userId": userID}
	if _, err := m.Typing.DeleteOne(ctx, filter); err != nil {
		return utils.NewAppError(utils.ErrDatabase, "failed to delete typing state", err)
	}
	return nil
}

func (m *MongoDB) GetTypingStates(ctx context.Context, conversationID uuid.UUID) ([]*models.TypingState, error) {
	opts := options.Find().SetSort(bson.D{{Key: "typedAt", Value: -1}, {Key: "userId", Value: 1}})
	cursor, err := m.Typing.Find(ctx, bson.M{"conversationId": conversationID.String()}, opts)
	if err != nil {
		return nil, utils.NewAppError(utils.ErrDatabase, "failed to query typing states", err)
	}
	var docs []TypingDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, utils.NewAppError(utils.ErrDatabase, "failed to decode typing states", err)
	}
	states := make([]*models.TypingState, 0, len(docs))
	for _, doc := range docs {
		states = append(states, &models.TypingState{
			ConversationID: conversationID,
			UserID:         doc.UserID,
			TypedAt:        doc.TypedAt.UTC(),
		})
	}
	return states, nil
}

func (m *MongoDB) DeleteTypingStatesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := m.Typing.DeleteMany(ctx, bson.M{"typedAt": bson.M{"$lt": cutoff}})
	if err != nil {
		return 0, utils.NewAppError(utils.ErrDatabase, "failed to reap typing states", err)
	}
	return result.DeletedCount, nil
}

// --- Read Receipt Methods ---

func (m *MongoDB) UpsertReadReceipt(ctx context.Context, receipt *models.ReadReceipt) error {
	filter := bson.M{"conversationId": receipt.ConversationID.String(), "userId": receipt.UserID}
	update := bson.M{"$set": bson.M{"lastReadAt": receipt.LastReadAt}}
	return m.withLiveConversation(ctx, receipt.ConversationID, "failed to upsert read receipt", func(sc mongo.SessionContext) error {
		_, err := m.Receipts.UpdateOne(sc, filter, update, options.Update().SetUpsert(true))
		return err
	})
}

func (m *MongoDB) GetReadReceipt(ctx context.Context, conversationID uuid.UUID, userID string) (*models.ReadReceipt, error) {
	var doc ReceiptDocument
	filter := bson.M{"conversationId": conversationID.String(), "userId": userID}
	err := m.Receipts.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, utils.NewAppError(utils.ErrDatabase, "failed to query read receipt", err)
	}
	return &models.ReadReceipt{
		ConversationID: conversationID,
		UserID:         doc.UserID,
		LastReadAt:     doc.LastReadAt.UTC(),
	}, nil
}

// --- Helpers ---

// withLiveConversation runs write in a transaction that first bumps the
// conversation's writeSeq. DeleteConversation removes that same document, so
// the two transactions conflict and a write can never land after the cascade.
// A missing conversation is NotFound.
func (m *MongoDB) withLiveConversation(ctx context.Context, id uuid.UUID, failure string, write func(sc mongo.SessionContext) error) error {
	session, err := m.Client.StartSession()
	if err != nil {
		return utils.NewAppError(utils.ErrDatabase, "failed to start session", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		result, err := m.Conversations.UpdateOne(sc, bson.M{"_id": id.String()}, bson.M{"$inc": bson.M{"writeSeq": 1}})
		if err != nil {
			return nil, err
		}
		if result.MatchedCount == 0 {
			return nil, utils.NewNotFoundError("conversation", id)
		}
		return nil, write(sc)
	})
	if err != nil {
		if utils.IsErrorCode(err, utils.ErrNotFound) {
			return err
		}
		return utils.NewAppError(utils.ErrDatabase, failure, err)
	}
	return nil
}

func (m *MongoDB) updateOne(ctx context.Context, coll *mongo.Collection, filter, update bson.M, notFound string) error {
	result, err := coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return utils.NewAppError(utils.ErrDatabase, "failed to update "+coll.Name(), err)
	}
	if result.MatchedCount == 0 {
		return utils.NewAppError(utils.ErrNotFound, notFound, nil)
	}
	return nil
}

func userFromDocument(doc *UserDocument) (*models.User, error) {
	id, err := uuid.Parse(doc.ID)
	if err != nil {
		return nil, utils.NewAppError(utils.ErrDatabase, "invalid user ID in database", err)
	}
	return &models.User{
		ID:         id,
		IdentityID: doc.IdentityID,
		Name:       doc.Name,
		Email:      doc.Email,
		ImageURL:   doc.ImageURL,
		IsOnline:   doc.IsOnline,
		CreatedAt:  doc.CreatedAt.UTC(),
		UpdatedAt:  doc.UpdatedAt.UTC(),
	}, nil
}

func conversationToDocument(conv *models.Conversation) ConversationDocument {
	doc := ConversationDocument{
		ID:           conv.ID.String(),
		Kind:         string(conv.Kind),
		Participants: conv.ParticipantIDs(),
		Admins:       conv.AdminIDs(),
		LastActivity: conv.LastActivity,
		CreatedAt:    conv.CreatedAt,
	}
	if doc.Admins == nil {
		doc.Admins = []string{}
	}
	if conv.Direct != nil {
		doc.DirectKey = DirectPairKey(conv.Direct.Participants[0], conv.Direct.Participants[1])
	}
	if conv.Group != nil {
		doc.Name = conv.Group.Name
		doc.Image = conv.Group.Image
	}
	return doc
}

func conversationFromDocument(doc *ConversationDocument) (*models.Conversation, error) {
	id, err := uuid.Parse(doc.ID)
	if err != nil {
		return nil, utils.NewAppError(utils.ErrDatabase, "invalid conversation ID in database", err)
	}
	conv := &models.Conversation{
		ID:           id,
		Kind:         models.ConversationKind(doc.Kind),
		LastActivity: doc.LastActivity.UTC(),
		CreatedAt:    doc.CreatedAt.UTC(),
	}
	switch conv.Kind {
	case models.DirectKind:
		if len(doc.Participants) != 2 {
			return nil, utils.NewAppError(utils.ErrDatabase, fmt.Sprintf("direct conversation %s has %d participants", doc.ID, len(doc.Participants)), nil)
		}
		conv.Direct = &models.DirectConversation{Participants: [2]string{doc.Participants[0], doc.Participants[1]}}
	default:
		admins := doc.Admins
		if admins == nil {
			admins = []string{}
		}
		conv.Group = &models.GroupConversation{
			Name:         doc.Name,
			Image:        doc.Image,
			Participants: models.NormalizeIDs(doc.Participants),
			Admins:       admins,
		}
	}
	return conv, nil
}

func messageFromDocument(doc *MessageDocument) (*models.Message, error) {
	id, err := uuid.Parse(doc.ID)
	if err != nil {
		return nil, utils.NewAppError(utils.ErrDatabase, "invalid message ID in database", err)
	}
	convID, err := uuid.Parse(doc.ConversationID)
	if err != nil {
		return nil, utils.NewAppError(utils.ErrDatabase, "invalid conversation ID in database", err)
	}
	return &models.Message{
		ID:             id,
		ConversationID: convID,
		SenderID:       doc.SenderID,
		Content:        doc.Content,
		CreatedAt:      doc.CreatedAt.UTC(),
		IsDeleted:      doc.IsDeleted,
	}, nil
}
