package otp

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// MongoCollection is the default collection name.
const MongoCollection = "otps"

type mongoRecord struct {
	ID        string    `bson:"_id"`
	Email     string    `bson:"email"`
	Code      string    `bson:"code"`
	CreatedAt time.Time `bson:"created_at"`
	ExpiresAt time.Time `bson:"expires_at"`
}

func (m mongoRecord) record() Record {
	return Record{
		ID:        m.ID,
		Email:     m.Email,
		Code:      m.Code,
		CreatedAt: m.CreatedAt.UTC(),
		ExpiresAt: m.ExpiresAt.UTC(),
	}
}

// MongoStore keeps records in a collection with a unique index on code and a
// TTL index on created_at. The TTL monitor runs about once a minute, so every
// read also filters on expires_at, and an insert that collides with an expired
// but unswept document removes it and tries once more.
type MongoStore struct {
	coll *mongo.Collection
	ttl  time.Duration
}

var _ Store = (*MongoStore)(nil)

// NewMongoStore binds the store to db.otps and ensures its indexes.
func NewMongoStore(ctx context.Context, db *mongo.Database, ttl time.Duration) (*MongoStore, error) {
	if db == nil {
		return nil, fmt.Errorf("otp: nil mongo database")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("otp: non-positive ttl")
	}
	s := &MongoStore{coll: db.Collection(MongoCollection), ttl: ttl}
	if err := s.EnsureIndexes(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// EnsureIndexes creates the code, email and TTL indexes. It is idempotent for
// an unchanged ttl.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "code", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uq_otps_code"),
		},
		{
			Keys:    bson.D{{Key: "email", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("idx_otps_email_created"),
		},
		{
			Keys:    bson.D{{Key: "created_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(int32(s.ttl / time.Second)).SetName("ttl_otps_created_at"),
		},
	})
	if err != nil {
		return fmt.Errorf("otp: ensure indexes: %w", err)
	}
	return nil
}

func (s *MongoStore) Insert(ctx context.Context, rec Record) error {
	doc := mongoRecord{
		ID:        rec.ID,
		Email:     rec.Email,
		Code:      rec.Code,
		CreatedAt: rec.CreatedAt,
		ExpiresAt: rec.ExpiresAt,
	}

	for try := 0; try < 2; try++ {
		_, err := s.coll.InsertOne(ctx, doc)
		if err == nil {
			return s.supersede(ctx, rec)
		}
		if !mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("otp: mongo insert: %w", err)
		}

		res, err := s.coll.DeleteOne(ctx, bson.D{
			{Key: "code", Value: rec.Code},
			{Key: "expires_at", Value: bson.D{{Key: "$lte", Value: rec.CreatedAt}}},
		})
		if err != nil {
			return fmt.Errorf("otp: mongo purge expired: %w", err)
		}
		if res.DeletedCount == 0 {
			return ErrCodeConflict
		}
	}
	return ErrCodeConflict
}

// supersede removes codes issued to the same email before rec. Only strictly
// older documents go, so two racing inserts can never delete each other.
func (s *MongoStore) supersede(ctx context.Context, rec Record) error {
	_, err := s.coll.DeleteMany(ctx, bson.D{
		{Key: "email", Value: rec.Email},
		{Key: "created_at", Value: bson.D{{Key: "$lt", Value: rec.CreatedAt}}},
	})
	if err != nil {
		return fmt.Errorf("otp: mongo supersede: %w", err)
	}
	return nil
}

func (s *MongoStore) Lookup(ctx context.Context, code string, now time.Time) (Record, error) {
	var doc mongoRecord
	err := s.coll.FindOne(ctx, bson.D{
		{Key: "code", Value: code},
		{Key: "expires_at", Value: bson.D{{Key: "$gt", Value: now}}},
	}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("otp: mongo lookup: %w", err)
	}
	return doc.record(), nil
}

func (s *MongoStore) Consume(ctx context.Context, email, code string, now time.Time) error {
	var doc mongoRecord
	err := s.coll.FindOne(ctx,
		bson.D{
			{Key: "email", Value: email},
			{Key: "expires_at", Value: bson.D{{Key: "$gt", Value: now}}},
		},
		options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}),
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return ErrCodeInvalid
		}
		return fmt.Errorf("otp: mongo consume: %w", err)
	}
	if subtle.ConstantTimeCompare([]byte(doc.Code), []byte(code)) != 1 {
		return ErrCodeInvalid
	}

	res, err := s.coll.DeleteOne(ctx, bson.D{{Key: "_id", Value: doc.ID}})
	if err != nil {
		return fmt.Errorf("otp: mongo consume: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrCodeInvalid
	}
	return nil
}
