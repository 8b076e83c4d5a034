package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/MikeSquared-Agency/confide/internal/recorder"
)

// MongoSink writes one document per submission into the study database.
type MongoSink struct {
	client *mongo.Client
	db     *mongo.Database
}

func NewMongo(ctx context.Context, uri, database string) (*MongoSink, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect to mongo: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return &MongoSink{client: client, db: client.Database(database)}, nil
}

func (m *MongoSink) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

// Put implements recorder.Sink. The body keeps its JSON field names and gains
// the participant id and timestamp the remote store is keyed by.
func (m *MongoSink) Put(ctx context.Context, doc recorder.Document) error {
	fields, err := toFields(doc.Body)
	if err != nil {
		return fmt.Errorf("encode %s: %w", doc.Collection, err)
	}
	fields["prolific_id"] = doc.ParticipantID
	fields["timestamp"] = doc.Timestamp.UTC()

	if _, err := m.db.Collection(doc.Collection).InsertOne(ctx, fields); err != nil {
		return fmt.Errorf("insert %s: %w", doc.Collection, err)
	}
	return nil
}

// CountDocuments returns how many documents a participant has in a collection.
func (m *MongoSink) CountDocuments(ctx context.Context, collection, participantID string) (int64, error) {
	n, err := m.db.Collection(collection).CountDocuments(ctx, bson.M{"prolific_id": participantID})
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", collection, err)
	}
	return n, nil
}

func toFields(body any) (bson.M, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	fields := bson.M{}
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("body is not an object: %w", err)
	}
	return fields, nil
}
