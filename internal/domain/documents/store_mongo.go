package documents

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"onboarding/internal/platform/isotime"
)

const CollectionName = "documents"

type documentDoc struct {
	ID         primitive.ObjectID `bson:"_id,omitempty"`
	EmployeeID string             `bson:"employee_id"`
	Category   string             `bson:"category"`
	FileName   string             `bson:"file_name"`
	FilePath   string             `bson:"file_path"`
	FileSize   int64              `bson:"file_size"`
	MimeType   string             `bson:"mime_type"`
	UploadedBy string             `bson:"uploaded_by"`
	UploadedAt isotime.Time       `bson:"uploaded_at"`
	CreatedAt  isotime.Time       `bson:"created_at"`
	UpdatedAt  isotime.Time       `bson:"updated_at"`
}

func (d documentDoc) toDocument() Document {
	return Document{
		ID:         d.ID.Hex(),
		EmployeeID: d.EmployeeID,
		Category:   Category(d.Category),
		FileName:   d.FileName,
		FilePath:   d.FilePath,
		FileSize:   d.FileSize,
		MimeType:   d.MimeType,
		UploadedBy: d.UploadedBy,
		UploadedAt: d.UploadedAt.UTC(),
		CreatedAt:  d.CreatedAt.UTC(),
		UpdatedAt:  d.UpdatedAt.UTC(),
	}
}

type MongoStore struct {
	c *mongo.Collection
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{c: db.Collection(CollectionName)}
}

func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.c.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "employee_id", Value: 1},
				{Key: "category", Value: 1},
				{Key: "file_name", Value: 1},
			},
			Options: options.Index().SetUnique(true).SetName("uniq_documents_owner_category_name"),
		},
		{
			Keys: bson.D{
				{Key: "employee_id", Value: 1},
				{Key: "category", Value: 1},
				{Key: "uploaded_at", Value: 1},
			},
			Options: options.Index().SetName("idx_documents_owner_category_uploaded"),
		},
	})
	if err != nil {
		return fmt.Errorf("ensure documents indexes: %w", err)
	}
	return nil
}

func (s *MongoStore) Insert(ctx context.Context, doc Document) (string, error) {
	res, err := s.c.InsertOne(ctx, documentDoc{
		EmployeeID: doc.EmployeeID,
		Category:   string(doc.Category),
		FileName:   doc.FileName,
		FilePath:   doc.FilePath,
		FileSize:   doc.FileSize,
		MimeType:   doc.MimeType,
		UploadedBy: doc.UploadedBy,
		UploadedAt: isotime.From(doc.UploadedAt),
		CreatedAt:  isotime.From(doc.CreatedAt),
		UpdatedAt:  isotime.From(doc.UpdatedAt),
	})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return "", ErrDuplicateDocument
		}
		return "", fmt.Errorf("insert document: %w", err)
	}
	id, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return "", errors.New("unexpected insert id type")
	}
	return id.Hex(), nil
}

func (s *MongoStore) Exists(ctx context.Context, employeeID string, category Category, fileName string) (bool, error) {
	n, err := s.c.CountDocuments(ctx, bson.M{
		"employee_id": employeeID,
		"category":    string(category),
		"file_name":   fileName,
	}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("count documents: %w", err)
	}
	return n > 0, nil
}

func (s *MongoStore) ListByOwner(ctx context.Context, employeeID string, category Category) ([]Document, error) {
	filter := bson.M{"employee_id": employeeID}
	if category != "" {
		filter["category"] = string(category)
	}
	opts := options.Find().SetSort(bson.D{{Key: "uploaded_at", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find documents: %w", err)
	}
	defer cur.Close(ctx)

	var out []Document
	for cur.Next(ctx) {
		var d documentDoc
		if err := cur.Decode(&d); err != nil {
			return nil, fmt.Errorf("decode document: %w", err)
		}
		out = append(out, d.toDocument())
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return out, nil
}

func (s *MongoStore) GetByID(ctx context.Context, id string) (Document, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return Document{}, ErrInvalidID
	}
	var d documentDoc
	if err := s.c.FindOne(ctx, bson.M{"_id": oid}).Decode(&d); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Document{}, ErrDocumentNotFound
		}
		return Document{}, fmt.Errorf("find document: %w", err)
	}
	return d.toDocument(), nil
}
