package achievements

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/achievements/internal/common"
	"github.com/dmitrijs2005/achievements/internal/server/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// mongoDocumentValidationFailure is returned when a write breaks the
// collection validator.
const mongoDocumentValidationFailure = 121

// MongoRepository stores achievements as documents in one collection.
// Mutations map onto $set, $addToSet, $push and $pull.
type MongoRepository struct {
	coll *mongo.Collection
}

// NewMongoRepository constructs a repository bound to the given collection.
func NewMongoRepository(coll *mongo.Collection) *MongoRepository {
	return &MongoRepository{coll: coll}
}

func (r *MongoRepository) Create(ctx context.Context, a *models.Achievement) (*models.Achievement, error) {
	doc := a.Clone()
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return nil, mapMongoError(err)
	}
	return doc, nil
}

func (r *MongoRepository) FindOne(ctx context.Context, f Filter) (*models.Achievement, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "id", Value: 1}})

	var a models.Achievement
	if err := r.coll.FindOne(ctx, filterDoc(f), opts).Decode(&a); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return normalize(&a), nil
}

func (r *MongoRepository) Find(ctx context.Context, f Filter, lo ListOptions) ([]*models.Achievement, error) {
	opts := options.Find().SetSort(mongoSort(lo.Sort))
	if lo.Skip > 0 {
		opts.SetSkip(lo.Skip)
	}
	if lo.Limit > 0 {
		opts.SetLimit(lo.Limit)
	}
	if len(lo.Fields) > 0 {
		proj := bson.D{{Key: "_id", Value: 0}, {Key: "id", Value: 1}}
		for _, field := range lo.Fields {
			if field != "id" {
				proj = append(proj, bson.E{Key: field, Value: 1})
			}
		}
		opts.SetProjection(proj)
	}

	cur, err := r.coll.Find(ctx, filterDoc(f), opts)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer cur.Close(ctx)

	result := []*models.Achievement{}
	for cur.Next(ctx) {
		var a models.Achievement
		if err := cur.Decode(&a); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		if len(lo.Fields) == 0 {
			normalize(&a)
		}
		result = append(result, &a)
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

func (r *MongoRepository) FindOneAndUpdate(ctx context.Context, f Filter, m Mutation) (*models.Achievement, error) {
	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetSort(bson.D{{Key: "id", Value: 1}})

	var a models.Achievement
	err := r.coll.FindOneAndUpdate(ctx, filterDoc(f), mongoUpdate(m), opts).Decode(&a)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, common.ErrorNotFound
		}
		return nil, mapMongoError(err)
	}
	return normalize(&a), nil
}

func (r *MongoRepository) UpdateMany(ctx context.Context, f Filter, m Mutation) (int64, error) {
	res, err := r.coll.UpdateMany(ctx, filterDoc(f), mongoUpdate(m))
	if err != nil {
		return 0, mapMongoError(err)
	}
	return res.MatchedCount, nil
}

func (r *MongoRepository) FindOneAndRemove(ctx context.Context, f Filter) (*models.Achievement, error) {
	opts := options.FindOneAndDelete().SetSort(bson.D{{Key: "id", Value: 1}})

	var a models.Achievement
	if err := r.coll.FindOneAndDelete(ctx, filterDoc(f), opts).Decode(&a); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return normalize(&a), nil
}

// filterDoc renders f. A ByID filter always compares the id, even when empty.
func filterDoc(f Filter) bson.D {
	if id, exact := f.ExactID(); exact {
		return bson.D{{Key: "id", Value: id}}
	}
	return mongoFilter(f.Predicate())
}

func mongoFilter(p Predicate) bson.D {
	f := bson.D{}
	eq := func(key, v string) {
		if v != "" {
			f = append(f, bson.E{Key: key, Value: v})
		}
	}
	eq("id", p.ID)
	eq("session", p.Session)
	eq("kind", string(p.Kind))
	eq("company", p.Company)
	eq("users", p.User)

	var fromLTE, fromGTE, toGTE, toLTE *time.Time
	if p.ActiveAt != nil {
		fromLTE, toGTE = p.ActiveAt, p.ActiveAt
	}
	if p.NotExpiredAt != nil && (toGTE == nil || p.NotExpiredAt.After(*toGTE)) {
		toGTE = p.NotExpiredAt
	}
	if p.ContainedIn != nil {
		fromGTE, toLTE = &p.ContainedIn.Start, &p.ContainedIn.End
	}
	if r := timeRange(fromLTE, fromGTE); len(r) > 0 {
		f = append(f, bson.E{Key: "validity.from", Value: r})
	}
	if r := timeRange(toLTE, toGTE); len(r) > 0 {
		f = append(f, bson.E{Key: "validity.to", Value: r})
	}

	if p.Code != nil {
		f = append(f,
			bson.E{Key: "code.code", Value: p.Code.Code},
			bson.E{Key: "code.created", Value: bson.D{{Key: "$lte", Value: p.Code.At}}},
			bson.E{Key: "code.expiration", Value: bson.D{{Key: "$gte", Value: p.Code.At}}},
		)
	}
	return f
}

func timeRange(lte, gte *time.Time) bson.D {
	r := bson.D{}
	if lte != nil {
		r = append(r, bson.E{Key: "$lte", Value: *lte})
	}
	if gte != nil {
		r = append(r, bson.E{Key: "$gte", Value: *gte})
	}
	return r
}

func mongoUpdate(m Mutation) bson.D {
	updated := m.Updated
	if updated.IsZero() {
		updated = time.Now().UTC()
	}
	set := bson.D{{Key: "updated", Value: updated}}
	unset := bson.D{}
	field := func(key string, v any) {
		set = append(set, bson.E{Key: key, Value: v})
	}

	if p := m.Set; p != nil {
		if p.Name != nil {
			field("name", *p.Name)
		}
		if p.Event != nil {
			field("event", *p.Event)
		}
		if p.Kind != nil {
			field("kind", string(*p.Kind))
		}
		if p.Session != nil {
			if *p.Session == "" {
				unset = append(unset, bson.E{Key: "session", Value: ""})
			} else {
				field("session", *p.Session)
			}
		}
		if p.Company != nil {
			field("company", *p.Company)
		}
		if p.Value != nil {
			field("value", *p.Value)
		}
		if p.Img != nil {
			field("img", *p.Img)
		}
		if p.Description != nil {
			field("description", *p.Description)
		}
		if p.Category != nil {
			field("category", *p.Category)
		}
		if p.Instructions != nil {
			field("instructions", *p.Instructions)
		}
		if p.Validity != nil {
			field("validity", *p.Validity)
		}
	}
	if m.SetCode != nil {
		field("code", *m.SetCode)
	}

	update := bson.D{{Key: "$set", Value: set}}
	if len(unset) > 0 {
		update = append(update, bson.E{Key: "$unset", Value: unset})
	}
	switch {
	case len(m.AddToSet) > 0:
		update = append(update, bson.E{Key: "$addToSet", Value: bson.D{
			{Key: "users", Value: bson.D{{Key: "$each", Value: m.AddToSet}}},
		}})
	case len(m.Push) > 0:
		update = append(update, bson.E{Key: "$push", Value: bson.D{
			{Key: "users", Value: bson.D{{Key: "$each", Value: m.Push}}},
		}})
	case m.Pull != "":
		update = append(update, bson.E{Key: "$pull", Value: bson.D{{Key: "users", Value: m.Pull}}})
	}
	return update
}

func mongoSort(sort []SortField) bson.D {
	d := bson.D{}
	hasID := false
	for _, s := range sort {
		if _, ok := sortColumns[s.Field]; !ok {
			continue
		}
		dir := 1
		if s.Desc {
			dir = -1
		}
		hasID = hasID || s.Field == "id"
		d = append(d, bson.E{Key: s.Field, Value: dir})
	}
	if !hasID {
		d = append(d, bson.E{Key: "id", Value: 1})
	}
	return d
}

func mapMongoError(err error) error {
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w: %v", common.ErrorConflict, err)
	}
	var se mongo.ServerError
	if errors.As(err, &se) && se.HasErrorCode(mongoDocumentValidationFailure) {
		return fmt.Errorf("%w: %v", common.ErrorValidation, err)
	}
	return fmt.Errorf("db error: %w", err)
}

func normalize(a *models.Achievement) *models.Achievement {
	if a.Users == nil {
		a.Users = []string{}
	}
	return a
}
