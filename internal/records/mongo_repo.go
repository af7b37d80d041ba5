package records

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoConfig contains connection settings for the MongoDB records repository.
type MongoConfig struct {
	URI        string // e.g. mongodb://localhost:27017
	Database   string // e.g. dogs
	Collection string // e.g. records
}

// MongoRepo implements Repository on MongoDB backend.
type MongoRepo struct {
	client     *mongo.Client
	collection *mongo.Collection
	ctxTimeout time.Duration
}

type recordDoc struct {
	DogID     uint64    `bson:"dog_id"`
	Name      string    `bson:"name"`
	Score     int       `bson:"score"`
	UpdatedAt time.Time `bson:"updated_at"`
}

func (d recordDoc) toRecord() Record {
	return Record{DogID: d.DogID, Name: d.Name, Score: d.Score, UpdatedAt: d.UpdatedAt.UTC()}
}

// NewMongoRepo establishes connection and returns repository.
func NewMongoRepo(ctx context.Context, cfg MongoConfig) (*MongoRepo, error) {
	if cfg.URI == "" {
		cfg.URI = "mongodb://localhost:27017"
	}
	if cfg.Database == "" {
		cfg.Database = "dogs"
	}
	if cfg.Collection == "" {
		cfg.Collection = "records"
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	repo := &MongoRepo{
		client:     client,
		collection: client.Database(cfg.Database).Collection(cfg.Collection),
		ctxTimeout: 5 * time.Second,
	}
	if err := repo.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return repo, nil
}

func (m *MongoRepo) ensureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, m.ctxTimeout)
	defer cancel()
	dogIdx := mongo.IndexModel{
		Keys:    bson.D{{Key: "dog_id", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("dogid_unique"),
	}
	scoreIdx := mongo.IndexModel{
		Keys:    bson.D{{Key: "score", Value: -1}, {Key: "name", Value: 1}},
		Options: options.Index().SetName("score_name"),
	}
	_, err := m.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{dogIdx, scoreIdx})
	return err
}

// Upsert replaces the document only when the new score is higher.
func (m *MongoRepo) Upsert(ctx context.Context, rec Record) error {
	ctx, cancel := context.WithTimeout(ctx, m.ctxTimeout)
	defer cancel()

	filter := bson.M{"dog_id": rec.DogID, "score": bson.M{"$lt": rec.Score}}
	update := bson.M{"$set": bson.M{
		"dog_id":     rec.DogID,
		"name":       rec.Name,
		"score":      rec.Score,
		"updated_at": rec.UpdatedAt.UTC(),
	}}
	_, err := m.collection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if mongo.IsDuplicateKeyError(err) {
		// запись с большим или равным счётом уже есть
		return nil
	}
	return err
}

func (m *MongoRepo) Get(ctx context.Context, dogID uint64) (Record, error) {
	ctx, cancel := context.WithTimeout(ctx, m.ctxTimeout)
	defer cancel()

	var doc recordDoc
	err := m.collection.FindOne(ctx, bson.M{"dog_id": dogID}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, err
	}
	return doc.toRecord(), nil
}

func (m *MongoRepo) List(ctx context.Context, start, maxItems int) ([]Record, error) {
	if err := CheckRange(start, maxItems); err != nil {
		return nil, err
	}
	if maxItems == 0 {
		return []Record{}, nil
	}
	ctx, cancel := context.WithTimeout(ctx, m.ctxTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "score", Value: -1}, {Key: "name", Value: 1}, {Key: "dog_id", Value: 1}}).
		SetSkip(int64(start)).
		SetLimit(int64(maxItems))
	cur, err := m.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	result := make([]Record, 0, maxItems)
	for cur.Next(ctx) {
		var doc recordDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		result = append(result, doc.toRecord())
	}
	return result, cur.Err()
}

// Close terminates connection.
func (m *MongoRepo) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}
