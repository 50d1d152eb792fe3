package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// MongoUsersCollection is the default collection name.
const MongoUsersCollection = "users"

type mongoUser struct {
	ID           string    `bson:"_id"`
	Name         string    `bson:"name"`
	Email        string    `bson:"email"`
	EmailNorm    string    `bson:"email_norm"`
	PasswordHash string    `bson:"password_hash,omitempty"`
	CreatedAt    time.Time `bson:"created_at"`
	UpdatedAt    time.Time `bson:"updated_at"`
}

func (m mongoUser) user() User {
	return User{
		ID:        m.ID,
		Name:      m.Name,
		Email:     m.Email,
		EmailNorm: m.EmailNorm,
		CreatedAt: m.CreatedAt.UTC(),
		UpdatedAt: m.UpdatedAt.UTC(),
	}
}

// MongoStore implements Store over a MongoDB collection.
// The unique index on email_norm is the uniqueness guarantee; default reads
// project password_hash away.
type MongoStore struct {
	coll   *mongo.Collection
	hasher PasswordHasher
}

var _ Store = (*MongoStore)(nil)

// NewMongoStore binds the store to db.users and ensures its indexes.
func NewMongoStore(ctx context.Context, db *mongo.Database, hasher PasswordHasher) (*MongoStore, error) {
	if db == nil {
		return nil, fmt.Errorf("identity: nil mongo database")
	}
	if hasher == nil {
		return nil, fmt.Errorf("identity: nil password hasher")
	}

	s := &MongoStore{coll: db.Collection(MongoUsersCollection), hasher: hasher}
	if err := s.EnsureIndexes(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// EnsureIndexes creates the unique email index. It is idempotent.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email_norm", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("uq_users_email_norm"),
	})
	if err != nil {
		return fmt.Errorf("identity: ensure users index: %w", err)
	}
	return nil
}

var withoutSecret = options.FindOne().SetProjection(bson.D{{Key: "password_hash", Value: 0}})

func (s *MongoStore) Create(ctx context.Context, in CreateUserInput) (User, error) {
	const op = "identity.Create"
	if err := ctx.Err(); err != nil {
		return User{}, err
	}

	rec, err := newUserRecord(op, s.hasher, in)
	if err != nil {
		return User{}, err
	}
	u := rec.User

	_, err = s.coll.InsertOne(ctx, mongoUser{
		ID:           u.ID,
		Name:         u.Name,
		Email:        u.Email,
		EmailNorm:    u.EmailNorm,
		PasswordHash: rec.PasswordHash,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return User{}, ConflictError{Op: op, Field: "email"}
		}
		return User{}, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

func (s *MongoStore) FindByEmail(ctx context.Context, email string) (User, error) {
	const op = "identity.FindByEmail"

	var doc mongoUser
	err := s.coll.FindOne(ctx, bson.D{{Key: "email_norm", Value: NormalizeEmail(email)}}, withoutSecret).Decode(&doc)
	if err != nil {
		return User{}, mongoLookupErr(op, err)
	}
	return doc.user(), nil
}

func (s *MongoStore) FindByEmailWithSecret(ctx context.Context, email string) (UserAuth, error) {
	const op = "identity.FindByEmailWithSecret"

	var doc mongoUser
	err := s.coll.FindOne(ctx, bson.D{{Key: "email_norm", Value: NormalizeEmail(email)}}).Decode(&doc)
	if err != nil {
		return UserAuth{}, mongoLookupErr(op, err)
	}
	return UserAuth{User: doc.user(), PasswordHash: doc.PasswordHash}, nil
}

func (s *MongoStore) FindByID(ctx context.Context, id string) (User, error) {
	const op = "identity.FindByID"

	var doc mongoUser
	err := s.coll.FindOne(ctx, bson.D{{Key: "_id", Value: id}}, withoutSecret).Decode(&doc)
	if err != nil {
		return User{}, mongoLookupErr(op, err)
	}
	return doc.user(), nil
}

func (s *MongoStore) Delete(ctx context.Context, id string) error {
	const op = "identity.Delete"

	res, err := s.coll.DeleteOne(ctx, bson.D{{Key: "_id", Value: id}})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if res.DeletedCount == 0 {
		return notFound(op)
	}
	return nil
}

func mongoLookupErr(op string, err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return notFound(op)
	}
	return fmt.Errorf("%s: %w", op, err)
}
