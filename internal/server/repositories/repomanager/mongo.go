package repomanager

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/achievements/internal/server/repositories/achievements"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CollectionName is the MongoDB collection holding achievements.
const CollectionName = "achievements"

const mongoNamespaceExists = 48

// MongoRepositoryManager vends the MongoDB-backed repository. Its
// migrations create the collection validator and indexes.
type MongoRepositoryManager struct {
	client       *mongo.Client
	db           *mongo.Database
	achievements *achievements.MongoRepository
}

// NewMongoRepositoryManager binds a manager to a database of a connected client.
func NewMongoRepositoryManager(client *mongo.Client, database string) *MongoRepositoryManager {
	db := client.Database(database)
	return &MongoRepositoryManager{
		client:       client,
		db:           db,
		achievements: achievements.NewMongoRepository(db.Collection(CollectionName)),
	}
}

// mongoConnect is a seam for testing mongo.Connect.
var mongoConnect = func(ctx context.Context, uri string) (*mongo.Client, error) {
	return mongo.Connect(ctx, options.Client().ApplyURI(uri))
}

// ConnectMongo connects to uri and checks that the primary answers.
func ConnectMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongoConnect(ctx, uri)
	if err != nil {
		return nil, fmt.Errorf("mongo connect error: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("mongo ping error: %w", err)
	}
	return client, nil
}

// Achievements returns the repository bound to the achievements collection.
func (m *MongoRepositoryManager) Achievements() achievements.Repository {
	return m.achievements
}

// validityValidator rejects documents whose window ends before it starts.
var validityValidator = bson.D{{Key: "$expr", Value: bson.D{
	{Key: "$lte", Value: bson.A{"$validity.from", "$validity.to"}},
}}}

// RunMigrations creates the collection with its validator, or refreshes the
// validator when the collection exists, then ensures the indexes.
func (m *MongoRepositoryManager) RunMigrations(ctx context.Context) error {
	err := m.db.CreateCollection(ctx, CollectionName, options.CreateCollection().SetValidator(validityValidator))
	if err != nil {
		var ce mongo.CommandError
		if !errors.As(err, &ce) || ce.Code != mongoNamespaceExists {
			return fmt.Errorf("create collection: %w", err)
		}
		cmd := bson.D{{Key: "collMod", Value: CollectionName}, {Key: "validator", Value: validityValidator}}
		if err := m.db.RunCommand(ctx, cmd).Err(); err != nil {
			return fmt.Errorf("update validator: %w", err)
		}
	}

	_, err = m.db.Collection(CollectionName).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "id", Value: 1}},
			Options: options.Index().SetName("achievements_id_key").SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "session", Value: 1}},
			Options: options.Index().SetName("achievements_session_key").SetUnique(true).
				SetPartialFilterExpression(bson.D{{Key: "session", Value: bson.D{{Key: "$type", Value: "string"}}}}),
		},
		{
			Keys:    bson.D{{Key: "kind", Value: 1}, {Key: "company", Value: 1}},
			Options: options.Index().SetName("achievements_kind_company_idx"),
		},
		{
			Keys:    bson.D{{Key: "users", Value: 1}},
			Options: options.Index().SetName("achievements_users_idx"),
		},
	})
	if err != nil {
		return fmt.Errorf("create indexes: %w", err)
	}
	return nil
}

// Close disconnects the client.
func (m *MongoRepositoryManager) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}
