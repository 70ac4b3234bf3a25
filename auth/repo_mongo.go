package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// MongoRepository stores accounts as documents in a single collection.
type MongoRepository struct {
	collection *mongo.Collection
	now        func() time.Time
}

// dbAccount is the stored document. Absent verification fields are
// stored as null so they can be cleared together.
type dbAccount struct {
	ID                    ID         `bson:"_id"`
	FullName              string     `bson:"fullName"`
	Email                 string     `bson:"email"`
	Role                  string     `bson:"role"`
	PasswordHash          string     `bson:"passwordHash"`
	IsEmailVerified       bool       `bson:"isEmailVerified"`
	VerificationToken     *string    `bson:"verificationToken"`
	VerificationExpiresAt *time.Time `bson:"verificationExpiresAt"`
	CreatedAt             time.Time  `bson:"createdAt"`
	UpdatedAt             time.Time  `bson:"updatedAt"`
}

func NewMongoRepository(c *mongo.Collection) *MongoRepository {
	return &MongoRepository{collection: c, now: time.Now}
}

// EnsureIndexes creates the unique email index that Create relies on,
// plus the token lookup index. It is idempotent.
func EnsureIndexes(ctx context.Context, c *mongo.Collection) error {
	_, err := c.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("email_unique"),
		},
		{
			Keys:    bson.D{{Key: "verificationToken", Value: 1}, {Key: "verificationExpiresAt", Value: 1}},
			Options: options.Index().SetName("verification_token"),
		},
	})
	if err != nil {
		return fmt.Errorf("error creating account indexes: %w", err)
	}
	return nil
}

func (m *MongoRepository) FindByID(ctx context.Context, id ID) (*Account, error) {
	if !isValidID(string(id)) {
		return nil, ErrNotFound
	}
	return m.findAccountBy(ctx, bson.M{"_id": id})
}

func (m *MongoRepository) FindByEmail(ctx context.Context, email string) (*Account, error) {
	return m.findAccountBy(ctx, bson.M{"email": email})
}

func (m *MongoRepository) FindByValidToken(ctx context.Context, token string, now time.Time) (*Account, error) {
	if token == "" {
		return nil, ErrNotFound
	}
	return m.findAccountBy(ctx, validTokenFilter(token, now))
}

func (m *MongoRepository) ConsumeToken(ctx context.Context, token string, now time.Time) (*Account, error) {
	if token == "" {
		return nil, ErrNotFound
	}

	update := bson.M{"$set": bson.M{
		"isEmailVerified":       true,
		"verificationToken":     nil,
		"verificationExpiresAt": nil,
		"updatedAt":             m.now().UTC(),
	}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var d dbAccount
	err := m.collection.FindOneAndUpdate(ctx, validTokenFilter(token, now), update, opts).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	acc := accountFromDBAccount(d)
	return &acc, nil
}

func validTokenFilter(token string, now time.Time) bson.M {
	return bson.M{
		"verificationToken":     token,
		"verificationExpiresAt": bson.M{"$gt": now.UTC()},
	}
}

func (m *MongoRepository) findAccountBy(ctx context.Context, filter bson.M) (*Account, error) {
	var d dbAccount
	err := m.collection.FindOne(ctx, filter).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	acc := accountFromDBAccount(d)
	return &acc, nil
}

func (m *MongoRepository) Create(ctx context.Context, acc *Account) error {
	now := m.now().UTC()
	acc.CreatedAt = now
	acc.UpdatedAt = now

	d := dbAccountFromAccount(acc)
	if _, err := m.collection.InsertOne(ctx, &d); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateEmail
		}
		return err
	}
	return nil
}

func (m *MongoRepository) Save(ctx context.Context, acc *Account) error {
	acc.UpdatedAt = m.now().UTC()

	d := dbAccountFromAccount(acc)
	res, err := m.collection.ReplaceOne(ctx, bson.M{"_id": d.ID}, &d)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateEmail
		}
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *MongoRepository) Ping(ctx context.Context) error {
	return m.collection.Database().Client().Ping(ctx, readpref.Primary())
}

func dbAccountFromAccount(a *Account) dbAccount {
	d := dbAccount{
		ID:              a.ID,
		FullName:        a.FullName,
		Email:           a.Email,
		Role:            a.Role,
		PasswordHash:    a.PasswordHash,
		IsEmailVerified: a.IsEmailVerified,
		CreatedAt:       a.CreatedAt,
		UpdatedAt:       a.UpdatedAt,
	}
	if a.VerificationToken != "" && a.VerificationExpiresAt != nil {
		token := a.VerificationToken
		expiresAt := a.VerificationExpiresAt.UTC()
		d.VerificationToken = &token
		d.VerificationExpiresAt = &expiresAt
	}
	return d
}

func accountFromDBAccount(d dbAccount) Account {
	a := Account{
		ID:              d.ID,
		FullName:        d.FullName,
		Email:           d.Email,
		Role:            d.Role,
		PasswordHash:    d.PasswordHash,
		IsEmailVerified: d.IsEmailVerified,
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}
	if d.VerificationToken != nil && d.VerificationExpiresAt != nil {
		a.VerificationToken = *d.VerificationToken
		expiresAt := d.VerificationExpiresAt.UTC()
		a.VerificationExpiresAt = &expiresAt
	}
	return a
}
