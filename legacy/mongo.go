package legacy

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoSource reads legacy documents from a MongoDB database.
type MongoSource struct {
	db *mongo.Database
}

// NewMongoSource wraps db.
func NewMongoSource(db *mongo.Database) *MongoSource {
	return &MongoSource{db: db}
}

const countersCollection = "counters"

var (
	legacyFilter   = bson.M{"_id": bson.M{"$type": "objectId"}}
	numberedFilter = bson.M{"_id": bson.M{"$type": "number"}}
)

func (s *MongoSource) FindLegacy(ctx context.Context, collection string) ([]Document, error) {
	return s.find(ctx, collection, legacyFilter)
}

func (s *MongoSource) FindNumbered(ctx context.Context, collection string) ([]Document, error) {
	return s.find(ctx, collection, numberedFilter)
}

func (s *MongoSource) Counter(ctx context.Context, name string) (int64, error) {
	var raw bson.M
	err := s.db.Collection(countersCollection).FindOne(ctx, bson.M{"_id": name}).Decode(&raw)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("counter %s: %w", name, err)
	}
	if raw["seq"] == nil {
		return 0, nil
	}
	seq, ok := integer(normalize(raw["seq"]))
	if !ok {
		return 0, fmt.Errorf("counter %s: seq is %T", name, raw["seq"])
	}
	return seq, nil
}

func (s *MongoSource) MaxRef(ctx context.Context, collection, field string) (int64, error) {
	opts := options.FindOne().
		SetSort(bson.D{{Key: field, Value: -1}}).
		SetProjection(bson.M{field: 1})
	var raw bson.M
	err := s.db.Collection(collection).
		FindOne(ctx, bson.M{field: bson.M{"$type": "number"}}, opts).
		Decode(&raw)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("max %s.%s: %w", collection, field, err)
	}
	switch v := normalize(raw[field]).(type) {
	case int64:
		return v, nil
	case float64:
		return int64(math.Ceil(v)), nil
	}
	return 0, nil
}

func (s *MongoSource) find(ctx context.Context, collection string, filter bson.M) ([]Document, error) {
	cur, err := s.db.Collection(collection).Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", collection, err)
	}
	defer cur.Close(ctx)

	var docs []Document
	for cur.Next(ctx) {
		var raw bson.M
		if err := cur.Decode(&raw); err != nil {
			return nil, fmt.Errorf("decode %s: %w", collection, err)
		}
		var doc Document
		switch id := normalize(raw["_id"]).(type) {
		case Ref:
			doc.ID = string(id)
		default:
			n, ok := integer(id)
			if !ok || n <= 0 {
				return nil, fmt.Errorf("decode %s: unusable _id %v", collection, raw["_id"])
			}
			doc.ID, doc.Num = strconv.FormatInt(n, 10), n
		}
		delete(raw, "_id")
		delete(raw, "__v")
		doc.Fields = make(map[string]any, len(raw))
		for k, v := range raw {
			doc.Fields[k] = normalize(v)
		}
		docs = append(docs, doc)
	}
	return docs, cur.Err()
}

// RewriteRef matches the reference stored either as an ObjectId or as its
// hex string.
func (s *MongoSource) RewriteRef(ctx context.Context, collection, field, oldID string, newID int64) (int64, error) {
	match := bson.A{oldID}
	if oid, err := primitive.ObjectIDFromHex(oldID); err == nil {
		match = append(match, oid)
	}
	res, err := s.db.Collection(collection).UpdateMany(ctx,
		bson.M{field: bson.M{"$in": match}},
		bson.M{"$set": bson.M{field: newID}},
	)
	if err != nil {
		return 0, fmt.Errorf("rewrite %s.%s: %w", collection, field, err)
	}
	return res.ModifiedCount, nil
}

func (s *MongoSource) Delete(ctx context.Context, collection string, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	oids := make(bson.A, 0, len(ids))
	for _, id := range ids {
		oid, err := primitive.ObjectIDFromHex(id)
		if err != nil {
			return 0, fmt.Errorf("delete %s: %w", collection, err)
		}
		oids = append(oids, oid)
	}
	res, err := s.db.Collection(collection).DeleteMany(ctx, bson.M{"_id": bson.M{"$in": oids}})
	if err != nil {
		return 0, fmt.Errorf("delete %s: %w", collection, err)
	}
	return res.DeletedCount, nil
}

func normalize(v any) any {
	switch t := v.(type) {
	case primitive.ObjectID:
		return Ref(t.Hex())
	case primitive.DateTime:
		return t.Time()
	case time.Time:
		return t
	case int32:
		return int64(t)
	case int64, float64, string, bool, nil:
		return t
	case primitive.A:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = normalize(e)
		}
		return out
	default:
		return fmt.Sprint(t)
	}
}
