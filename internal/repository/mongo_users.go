package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/septivank/weather-readings-api/internal/db"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type userDocument struct {
	ID                primitive.ObjectID `bson:"_id"`
	FirstName         string             `bson:"firstName"`
	LastName          string             `bson:"lastName"`
	Email             string             `bson:"email"`
	Password          string             `bson:"password"`
	Role              string             `bson:"role"`
	CreatedDate       time.Time          `bson:"createdDate"`
	LastLoggedIn      *time.Time         `bson:"lastLoggedIn"`
	AuthenticationKey *string            `bson:"authenticationKey"`
}

func newUserDocument(oid primitive.ObjectID, u *db.User) userDocument {
	return userDocument{
		ID:                oid,
		FirstName:         u.FirstName,
		LastName:          u.LastName,
		Email:             u.Email,
		Password:          u.PasswordHash,
		Role:              u.Role.String(),
		CreatedDate:       u.CreatedDate,
		LastLoggedIn:      u.LastLoggedIn,
		AuthenticationKey: u.AuthenticationKey,
	}
}

func (d userDocument) toUser() db.User {
	// an unrecognized stored role stays RoleUnknown and fails every allow-list
	role, _ := db.ParseRole(d.Role)
	return db.User{
		ID:                d.ID.Hex(),
		FirstName:         d.FirstName,
		LastName:          d.LastName,
		Email:             d.Email,
		PasswordHash:      d.Password,
		Role:              role,
		CreatedDate:       d.CreatedDate,
		LastLoggedIn:      d.LastLoggedIn,
		AuthenticationKey: d.AuthenticationKey,
	}
}

// MongoUserRepository stores users in the "users" collection
type MongoUserRepository struct {
	coll *mongo.Collection
}

// NewMongoUserRepository creates a new MongoDB identity store
func NewMongoUserRepository(database *mongo.Database) *MongoUserRepository {
	return &MongoUserRepository{coll: database.Collection(db.UsersCollection)}
}

func (r *MongoUserRepository) findOne(ctx context.Context, filter bson.M) (*db.User, error) {
	var doc userDocument
	err := r.coll.FindOne(ctx, filter).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	user := doc.toUser()
	return &user, nil
}

// GetByID retrieves a user by id
func (r *MongoUserRepository) GetByID(ctx context.Context, id string) (*db.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}
	return r.findOne(ctx, bson.M{"_id": oid})
}

// GetByEmail retrieves a user by email, nil when absent
func (r *MongoUserRepository) GetByEmail(ctx context.Context, email string) (*db.User, error) {
	user, err := r.findOne(ctx, bson.M{"email": email})
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return user, err
}

// GetByAuthenticationKey retrieves the user holding an active key
func (r *MongoUserRepository) GetByAuthenticationKey(ctx context.Context, key string) (*db.User, error) {
	if key == "" {
		return nil, ErrNotFound
	}
	return r.findOne(ctx, bson.M{"authenticationKey": key})
}

// GetAll returns every user
func (r *MongoUserRepository) GetAll(ctx context.Context) ([]db.User, error) {
	cursor, err := r.coll.Find(ctx, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}

	var docs []userDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode users: %w", err)
	}

	users := make([]db.User, 0, len(docs))
	for _, d := range docs {
		users = append(users, d.toUser())
	}
	return users, nil
}

// Create inserts a user under a new id
func (r *MongoUserRepository) Create(ctx context.Context, user *db.User) (*db.User, error) {
	return r.insert(ctx, primitive.NewObjectID(), user)
}

// CreateWithID inserts a user under the caller's id
func (r *MongoUserRepository) CreateWithID(ctx context.Context, id string, user *db.User) (*db.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("invalid user id %q: %w", id, err)
	}
	return r.insert(ctx, oid, user)
}

func (r *MongoUserRepository) insert(ctx context.Context, oid primitive.ObjectID, user *db.User) (*db.User, error) {
	if _, err := r.coll.InsertOne(ctx, newUserDocument(oid, user)); err != nil {
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}
	created := *user
	created.ID = oid.Hex()
	return &created, nil
}

// CreateMany inserts users under new ids
func (r *MongoUserRepository) CreateMany(ctx context.Context, users []db.User) ([]db.User, error) {
	if len(users) == 0 {
		return []db.User{}, nil
	}

	docs := make([]interface{}, 0, len(users))
	created := make([]db.User, 0, len(users))
	for i := range users {
		oid := primitive.NewObjectID()
		docs = append(docs, newUserDocument(oid, &users[i]))
		u := users[i]
		u.ID = oid.Hex()
		created = append(created, u)
	}

	if _, err := r.coll.InsertMany(ctx, docs); err != nil {
		return nil, fmt.Errorf("failed to insert users: %w", err)
	}
	return created, nil
}

// Update replaces the stored user with the same id
func (r *MongoUserRepository) Update(ctx context.Context, user *db.User) (db.UpdateResult, error) {
	oid, err := primitive.ObjectIDFromHex(user.ID)
	if err != nil {
		return db.UpdateResult{}, nil
	}
	res, err := r.coll.ReplaceOne(ctx, bson.M{"_id": oid}, newUserDocument(oid, user))
	if err != nil {
		return db.UpdateResult{}, fmt.Errorf("failed to replace user: %w", err)
	}
	return db.UpdateResult{Matched: res.MatchedCount, Modified: res.ModifiedCount}, nil
}

// UpdateMany replaces each user by id in one unordered bulk write; a failing
// record does not stop the others
func (r *MongoUserRepository) UpdateMany(ctx context.Context, users []db.User) (db.UpdateResult, error) {
	models := make([]mongo.WriteModel, 0, len(users))
	for i := range users {
		oid, err := primitive.ObjectIDFromHex(users[i].ID)
		if err != nil {
			continue
		}
		models = append(models, mongo.NewReplaceOneModel().
			SetFilter(bson.M{"_id": oid}).
			SetReplacement(newUserDocument(oid, &users[i])))
	}
	return bulkReplace(ctx, r.coll, models)
}

// UpdateRolesByCreatedDateRange sets role on every user created inside [start, end]
func (r *MongoUserRepository) UpdateRolesByCreatedDateRange(ctx context.Context, start, end time.Time, role db.Role) (db.UpdateResult, error) {
	res, err := r.coll.UpdateMany(ctx,
		bson.M{"createdDate": bson.M{"$gte": start, "$lte": end}},
		bson.M{"$set": bson.M{"role": role.String()}},
	)
	if err != nil {
		return db.UpdateResult{}, fmt.Errorf("failed to update user roles: %w", err)
	}
	return db.UpdateResult{Matched: res.MatchedCount, Modified: res.ModifiedCount}, nil
}

// DeleteByID removes a user, returning the deleted count
func (r *MongoUserRepository) DeleteByID(ctx context.Context, id string) (int64, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return 0, nil
	}
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return 0, fmt.Errorf("failed to delete user: %w", err)
	}
	return res.DeletedCount, nil
}

// DeleteManyByIDs removes every listed user that exists
func (r *MongoUserRepository) DeleteManyByIDs(ctx context.Context, ids []string) (int64, error) {
	return deleteByObjectIDs(ctx, r.coll, ids)
}

// DeleteManyByLastLoggedInDateRange removes users of role whose last login is inside [start, end]
func (r *MongoUserRepository) DeleteManyByLastLoggedInDateRange(ctx context.Context, start, end time.Time, role db.Role) (int64, error) {
	res, err := r.coll.DeleteMany(ctx, bson.M{
		"role":         role.String(),
		"lastLoggedIn": bson.M{"$gte": start, "$lte": end},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete users: %w", err)
	}
	return res.DeletedCount, nil
}

func bulkReplace(ctx context.Context, coll *mongo.Collection, models []mongo.WriteModel) (db.UpdateResult, error) {
	if len(models) == 0 {
		return db.UpdateResult{}, nil
	}

	res, err := coll.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false))
	if err != nil {
		var bulkErr mongo.BulkWriteException
		if !errors.As(err, &bulkErr) || bulkErr.WriteConcernError != nil || res == nil {
			return db.UpdateResult{}, fmt.Errorf("failed to bulk replace: %w", err)
		}
		return db.UpdateResult{
			Matched:  res.MatchedCount,
			Modified: res.ModifiedCount,
			Failed:   int64(len(bulkErr.WriteErrors)),
		}, nil
	}
	return db.UpdateResult{Matched: res.MatchedCount, Modified: res.ModifiedCount}, nil
}

func deleteByObjectIDs(ctx context.Context, coll *mongo.Collection, ids []string) (int64, error) {
	oids := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		oid, err := primitive.ObjectIDFromHex(id)
		if err != nil {
			continue
		}
		oids = append(oids, oid)
	}
	if len(oids) == 0 {
		return 0, nil
	}

	res, err := coll.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": oids}})
	if err != nil {
		return 0, fmt.Errorf("failed to delete %s: %w", coll.Name(), err)
	}
	return res.DeletedCount, nil
}
