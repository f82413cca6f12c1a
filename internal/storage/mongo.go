package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rasert/distributed-tracing-poc/internal/observability"
	"github.com/rasert/distributed-tracing-poc/pkg/models"

	retry "github.com/avast/retry-go/v5"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

type MongoConfig struct {
	URI             string
	Database        string
	Collection      string
	ConnectAttempts uint
	ConnectDelay    time.Duration
	Logger          *logrus.Logger
}

// textRecord is the stored shape of a models.TextDocument
type textRecord struct {
	ID        bson.ObjectID `bson:"_id,omitempty"`
	Text      string        `bson:"text"`
	CreatedAt time.Time     `bson:"created_at"`
}

func (r textRecord) toDocument() *models.TextDocument {
	return &models.TextDocument{
		ID:        r.ID.Hex(),
		Text:      r.Text,
		CreatedAt: r.CreatedAt,
	}
}

// MongoTextRepository stores documents in a single MongoDB collection
type MongoTextRepository struct {
	client *mongo.Client
	coll   *mongo.Collection
	logger *logrus.Logger
}

// NewMongoTextRepository connects and pings the server, retrying with backoff
// until the attempts are exhausted.
func NewMongoTextRepository(ctx context.Context, cfg MongoConfig) (*MongoTextRepository, error) {
	if cfg.Logger == nil {
		cfg.Logger = observability.GetLogger()
	}
	if cfg.ConnectAttempts == 0 {
		cfg.ConnectAttempts = 1
	}

	client, err := mongo.Connect(options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to create mongo client: %w", err)
	}

	err = retry.New(
		retry.Context(ctx),
		retry.Attempts(cfg.ConnectAttempts),
		retry.Delay(cfg.ConnectDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			cfg.Logger.WithField("attempt", n+1).WithError(err).Warn("MongoDB not ready, retrying")
		}),
	).Do(func() error {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return client.Ping(pingCtx, readpref.Primary())
	})
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo not reachable after %d attempts: %w", cfg.ConnectAttempts, err)
	}

	cfg.Logger.WithFields(logrus.Fields{
		"database":   cfg.Database,
		"collection": cfg.Collection,
	}).Info("Connected to MongoDB")

	return &MongoTextRepository{
		client: client,
		coll:   client.Database(cfg.Database).Collection(cfg.Collection),
		logger: cfg.Logger,
	}, nil
}

func (r *MongoTextRepository) Insert(ctx context.Context, text string) (*models.TextDocument, error) {
	rec := textRecord{
		ID:        bson.NewObjectID(),
		Text:      text,
		CreatedAt: time.Now().UTC(),
	}
	if _, err := r.coll.InsertOne(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to insert text: %w", err)
	}
	return rec.toDocument(), nil
}

func (r *MongoTextRepository) FindByID(ctx context.Context, id string) (*models.TextDocument, error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrInvalidID
	}

	var rec textRecord
	if err := r.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&rec); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find text: %w", err)
	}
	return rec.toDocument(), nil
}

func (r *MongoTextRepository) Update(ctx context.Context, id, text string) (*models.TextDocument, error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrInvalidID
	}

	var rec textRecord
	err = r.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": oid},
		bson.M{"$set": bson.M{"text": text}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&rec)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to update text: %w", err)
	}
	return rec.toDocument(), nil
}

func (r *MongoTextRepository) Delete(ctx context.Context, id string) error {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return ErrInvalidID
	}

	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("failed to delete text: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Ping reports whether the primary is reachable
func (r *MongoTextRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx, readpref.Primary())
}

func (r *MongoTextRepository) Close(ctx context.Context) error {
	r.logger.Info("Disconnecting from MongoDB")
	return r.client.Disconnect(ctx)
}
