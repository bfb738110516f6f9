package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"onboarding/internal/domain/auth"
	"onboarding/internal/platform/isotime"
)

const CollectionName = "users"

type userDoc struct {
	ID               primitive.ObjectID `bson:"_id,omitempty"`
	Name             string             `bson:"name"`
	Email            string             `bson:"email"`
	EmployeeID       string             `bson:"employee_id,omitempty"`
	Password         string             `bson:"password"`
	Role             string             `bson:"role"`
	IsActive         bool               `bson:"isActive"`
	Phone            string             `bson:"phone,omitempty"`
	EmergencyContact string             `bson:"emergency_contact,omitempty"`
	Address          string             `bson:"address,omitempty"`
	ManagerID        string             `bson:"manager_id,omitempty"`
	Position         string             `bson:"position,omitempty"`
	Department       string             `bson:"department,omitempty"`
	EmploymentType   string             `bson:"employment_type,omitempty"`
	StartDate        string             `bson:"start_date,omitempty"`
	Status           string             `bson:"status"`
	CreatedAt        isotime.Time       `bson:"created_at"`
	UpdatedAt        isotime.Time       `bson:"updated_at"`
	LastLogin        *isotime.Time      `bson:"last_login"`
}

func (d userDoc) toUser() User {
	return User{
		ID:               d.ID.Hex(),
		Name:             d.Name,
		Email:            d.Email,
		EmployeeID:       d.EmployeeID,
		PasswordHash:     d.Password,
		Role:             auth.ParseRole(d.Role),
		IsActive:         d.IsActive,
		Phone:            d.Phone,
		EmergencyContact: d.EmergencyContact,
		Address:          d.Address,
		ManagerID:        d.ManagerID,
		Position:         d.Position,
		Department:       d.Department,
		EmploymentType:   d.EmploymentType,
		StartDate:        d.StartDate,
		Status:           d.Status,
		CreatedAt:        d.CreatedAt.UTC(),
		UpdatedAt:        d.UpdatedAt.UTC(),
		LastLogin:        d.LastLogin.PtrUTC(),
	}
}

func fromUser(u User) userDoc {
	return userDoc{
		Name:             u.Name,
		Email:            u.Email,
		EmployeeID:       u.EmployeeID,
		Password:         u.PasswordHash,
		Role:             string(u.Role),
		IsActive:         u.IsActive,
		Phone:            u.Phone,
		EmergencyContact: u.EmergencyContact,
		Address:          u.Address,
		ManagerID:        u.ManagerID,
		Position:         u.Position,
		Department:       u.Department,
		EmploymentType:   u.EmploymentType,
		StartDate:        u.StartDate,
		Status:           u.Status,
		CreatedAt:        isotime.From(u.CreatedAt),
		UpdatedAt:        isotime.From(u.UpdatedAt),
		LastLogin:        isotime.FromPtr(u.LastLogin),
	}
}

type MongoStore struct {
	c *mongo.Collection
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{c: db.Collection(CollectionName)}
}

// EnsureIndexes creates the unique email index.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.c.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_users_email"),
		},
		{
			Keys:    bson.D{{Key: "isActive", Value: 1}, {Key: "name", Value: 1}},
			Options: options.Index().SetName("idx_users_active_name"),
		},
	})
	if err != nil {
		return fmt.Errorf("ensure users indexes: %w", err)
	}
	return nil
}

func (s *MongoStore) Insert(ctx context.Context, user User) (string, error) {
	res, err := s.c.InsertOne(ctx, fromUser(user))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return "", ErrDuplicateEmail
		}
		return "", fmt.Errorf("insert user: %w", err)
	}
	id, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return "", errors.New("unexpected insert id type")
	}
	return id.Hex(), nil
}

func (s *MongoStore) List(ctx context.Context, skip, limit int) ([]User, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}).
		SetSkip(int64(skip)).
		SetLimit(int64(limit))
	return s.find(ctx, bson.M{}, opts)
}

func (s *MongoStore) Count(ctx context.Context) (int64, error) {
	n, err := s.c.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

func (s *MongoStore) ListActive(ctx context.Context) ([]User, error) {
	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}, {Key: "_id", Value: 1}})
	return s.find(ctx, bson.M{"isActive": true}, opts)
}

func (s *MongoStore) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]User, error) {
	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find users: %w", err)
	}
	defer cur.Close(ctx)

	var out []User
	for cur.Next(ctx) {
		var doc userDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode user: %w", err)
		}
		out = append(out, doc.toUser())
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return out, nil
}

func (s *MongoStore) GetByID(ctx context.Context, id string) (User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return User{}, ErrInvalidID
	}
	return s.findOne(ctx, bson.M{"_id": oid})
}

func (s *MongoStore) GetByEmail(ctx context.Context, email string) (User, error) {
	return s.findOne(ctx, bson.M{"email": email})
}

func (s *MongoStore) findOne(ctx context.Context, filter bson.M) (User, error) {
	var doc userDoc
	if err := s.c.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return User{}, ErrNotFound
		}
		return User{}, fmt.Errorf("find user: %w", err)
	}
	return doc.toUser(), nil
}

func (s *MongoStore) Apply(ctx context.Context, id string, patch Patch) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrInvalidID
	}
	set := bson.M{"updated_at": isotime.From(patch.UpdatedAt)}
	if patch.Role != nil {
		set["role"] = string(*patch.Role)
	}
	if patch.IsActive != nil {
		set["isActive"] = *patch.IsActive
	}
	profileFields(patch.Profile, func(field, value string) {
		set[field] = value
	})

	res, err := s.c.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": set})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("update user: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrInvalidID
	}
	_, err = s.c.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": bson.M{"last_login": isotime.From(at)}})
	if err != nil {
		return fmt.Errorf("touch last_login: %w", err)
	}
	return nil
}

func (s *MongoStore) Ping(ctx context.Context) error {
	return s.c.Database().Client().Ping(ctx, nil)
}

// profileFields visits every provided change with its column/field name.
func profileFields(c Changes, visit func(field, value string)) {
	fields := []struct {
		name  string
		value *string
	}{
		{"name", c.Name},
		{"employee_id", c.EmployeeID},
		{"email", c.Email},
		{"phone", c.Phone},
		{"emergency_contact", c.EmergencyContact},
		{"manager_id", c.ManagerID},
		{"address", c.Address},
		{"position", c.Position},
		{"department", c.Department},
		{"employment_type", c.EmploymentType},
		{"start_date", c.StartDate},
	}
	for _, f := range fields {
		if f.value != nil {
			visit(f.name, *f.value)
		}
	}
}
