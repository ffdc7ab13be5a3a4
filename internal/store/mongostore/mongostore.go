// Package mongostore is the document persistence driver, for deployments
// backed by MongoDB Atlas.
package mongostore

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/JoseManaure/portfolio-server/internal/store"
)

type transcriptDoc struct {
	ID        string    `bson:"_id"`
	SessionID string    `bson:"session_id,omitempty"`
	Prompt    string    `bson:"prompt"`
	Reply     string    `bson:"reply"`
	Source    string    `bson:"source"`
	CreatedAt time.Time `bson:"created_at"`
}

type visitorDoc struct {
	VisitorID string          `bson:"visitor_id"`
	IP        string          `bson:"ip"`
	UserAgent string          `bson:"user_agent"`
	Location  *store.Location `bson:"location,omitempty"`
	CreatedAt time.Time       `bson:"created_at"`
}

// Store implements store.Store on MongoDB.
type Store struct {
	client      *mongo.Client
	transcripts *mongo.Collection
	visitors    *mongo.Collection
}

// Connect dials the server, pings it and returns the driver.
func Connect(ctx context.Context, uri, dbName string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}

	db := client.Database(dbName)
	return &Store{
		client:      client,
		transcripts: db.Collection("chats"),
		visitors:    db.Collection("visitors"),
	}, nil
}

// CreateTranscript implements store.Store.
func (s *Store) CreateTranscript(ctx context.Context, t *store.Transcript) error {
	if t.ID == "" {
		t.ID = store.NewID()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	_, err := s.transcripts.InsertOne(ctx, transcriptDoc{
		ID:        t.ID,
		SessionID: t.SessionID,
		Prompt:    t.Prompt,
		Reply:     t.Reply,
		Source:    t.Source,
		CreatedAt: t.CreatedAt,
	})
	return err
}

// ListTranscripts implements store.Store.
func (s *Store) ListTranscripts(ctx context.Context, f store.Filter) ([]store.Transcript, error) {
	limit := f.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	filter := bson.M{}
	if f.SessionID != "" {
		filter["session_id"] = f.SessionID
	}
	if f.BeforeID != "" {
		filter["_id"] = bson.M{"$lt": f.BeforeID}
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "_id", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := s.transcripts.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []transcriptDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	out := make([]store.Transcript, 0, len(docs))
	for _, d := range docs {
		out = append(out, store.Transcript{
			ID:        d.ID,
			SessionID: d.SessionID,
			Prompt:    d.Prompt,
			Reply:     d.Reply,
			Source:    d.Source,
			CreatedAt: d.CreatedAt,
		})
	}
	return out, nil
}

// CreateVisitor implements store.Store.
func (s *Store) CreateVisitor(ctx context.Context, v *store.Visitor) error {
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now()
	}
	_, err := s.visitors.InsertOne(ctx, visitorDoc{
		VisitorID: v.VisitorID,
		IP:        v.IP,
		UserAgent: v.UserAgent,
		Location:  v.Location,
		CreatedAt: v.CreatedAt,
	})
	return err
}

// SetVisitorLocation implements store.Store.
func (s *Store) SetVisitorLocation(ctx context.Context, visitorID string, loc store.Location) error {
	_, err := s.visitors.UpdateOne(ctx,
		bson.M{"visitor_id": visitorID},
		bson.M{"$set": bson.M{"location": loc}},
	)
	return err
}

// Close implements store.Store.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
