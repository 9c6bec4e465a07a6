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

type readingDocument struct {
	ID                  primitive.ObjectID `bson:"_id"`
	DeviceName          string             `bson:"deviceName"`
	Time                time.Time          `bson:"time"`
	Precipitation       *float64           `bson:"precipitation"`
	Latitude            *float64           `bson:"latitude"`
	Longitude           *float64           `bson:"longitude"`
	AtmosphericPressure *float64           `bson:"atmosphericPressure"`
	Humidity            *float64           `bson:"humidity"`
	MaxWindSpeed        *float64           `bson:"maxWindSpeed"`
	SolarRadiation      *float64           `bson:"solarRadiation"`
	Temperature         *float64           `bson:"temperature"`
	VaporPressure       *float64           `bson:"vaporPressure"`
	WindDirection       *float64           `bson:"windDirection"`
}

func newReadingDocument(oid primitive.ObjectID, r *db.Reading) readingDocument {
	return readingDocument{
		ID:                  oid,
		DeviceName:          r.DeviceName,
		Time:                r.Time,
		Precipitation:       r.Precipitation,
		Latitude:            r.Latitude,
		Longitude:           r.Longitude,
		AtmosphericPressure: r.AtmosphericPressure,
		Humidity:            r.Humidity,
		MaxWindSpeed:        r.MaxWindSpeed,
		SolarRadiation:      r.SolarRadiation,
		Temperature:         r.Temperature,
		VaporPressure:       r.VaporPressure,
		WindDirection:       r.WindDirection,
	}
}

func (d readingDocument) toReading() db.Reading {
	return db.Reading{
		ID:                  d.ID.Hex(),
		DeviceName:          d.DeviceName,
		Time:                d.Time,
		Precipitation:       d.Precipitation,
		Latitude:            d.Latitude,
		Longitude:           d.Longitude,
		AtmosphericPressure: d.AtmosphericPressure,
		Humidity:            d.Humidity,
		MaxWindSpeed:        d.MaxWindSpeed,
		SolarRadiation:      d.SolarRadiation,
		Temperature:         d.Temperature,
		VaporPressure:       d.VaporPressure,
		WindDirection:       d.WindDirection,
	}
}

// MongoReadingRepository stores readings in the "readings" collection
type MongoReadingRepository struct {
	coll *mongo.Collection
}

// NewMongoReadingRepository creates a new MongoDB reading store
func NewMongoReadingRepository(database *mongo.Database) *MongoReadingRepository {
	return &MongoReadingRepository{coll: database.Collection(db.ReadingsCollection)}
}

func (r *MongoReadingRepository) find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]db.Reading, error) {
	cursor, err := r.coll.Find(ctx, filter, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to query readings: %w", err)
	}

	var docs []readingDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode readings: %w", err)
	}

	readings := make([]db.Reading, 0, len(docs))
	for _, d := range docs {
		readings = append(readings, d.toReading())
	}
	return readings, nil
}

// GetByID retrieves a reading by id
func (r *MongoReadingRepository) GetByID(ctx context.Context, id string) (*db.Reading, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}

	var doc readingDocument
	if err := r.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query reading: %w", err)
	}
	reading := doc.toReading()
	return &reading, nil
}

// GetByPage returns page (1-based) of size readings in insertion order
func (r *MongoReadingRepository) GetByPage(ctx context.Context, page, size int) ([]db.Reading, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "_id", Value: 1}}).
		SetSkip(int64((page - 1) * size)).
		SetLimit(int64(size))
	return r.find(ctx, bson.D{}, opts)
}

// GetByDateRange returns readings with start <= time <= end
func (r *MongoReadingRepository) GetByDateRange(ctx context.Context, start, end time.Time) ([]db.Reading, error) {
	return r.find(ctx, bson.M{"time": bson.M{"$gte": start, "$lte": end}})
}

// Create inserts a reading under a new id
func (r *MongoReadingRepository) Create(ctx context.Context, reading *db.Reading) (*db.Reading, error) {
	oid := primitive.NewObjectID()
	if _, err := r.coll.InsertOne(ctx, newReadingDocument(oid, reading)); err != nil {
		return nil, fmt.Errorf("failed to insert reading: %w", err)
	}
	created := *reading
	created.ID = oid.Hex()
	return &created, nil
}

// CreateMany inserts readings under new ids
func (r *MongoReadingRepository) CreateMany(ctx context.Context, readings []db.Reading) ([]db.Reading, error) {
	if len(readings) == 0 {
		return []db.Reading{}, nil
	}

	docs := make([]interface{}, 0, len(readings))
	created := make([]db.Reading, 0, len(readings))
	for i := range readings {
		oid := primitive.NewObjectID()
		docs = append(docs, newReadingDocument(oid, &readings[i]))
		rd := readings[i]
		rd.ID = oid.Hex()
		created = append(created, rd)
	}

	if _, err := r.coll.InsertMany(ctx, docs); err != nil {
		return nil, fmt.Errorf("failed to insert readings: %w", err)
	}
	return created, nil
}

// Update replaces the stored reading with the same id
func (r *MongoReadingRepository) Update(ctx context.Context, reading *db.Reading) (db.UpdateResult, error) {
	oid, err := primitive.ObjectIDFromHex(reading.ID)
	if err != nil {
		return db.UpdateResult{}, nil
	}
	res, err := r.coll.ReplaceOne(ctx, bson.M{"_id": oid}, newReadingDocument(oid, reading))
	if err != nil {
		return db.UpdateResult{}, fmt.Errorf("failed to replace reading: %w", err)
	}
	return db.UpdateResult{Matched: res.MatchedCount, Modified: res.ModifiedCount}, nil
}

// UpdateMany replaces each reading by id in one unordered bulk write
func (r *MongoReadingRepository) UpdateMany(ctx context.Context, readings []db.Reading) (db.UpdateResult, error) {
	models := make([]mongo.WriteModel, 0, len(readings))
	for i := range readings {
		oid, err := primitive.ObjectIDFromHex(readings[i].ID)
		if err != nil {
			continue
		}
		models = append(models, mongo.NewReplaceOneModel().
			SetFilter(bson.M{"_id": oid}).
			SetReplacement(newReadingDocument(oid, &readings[i])))
	}
	return bulkReplace(ctx, r.coll, models)
}

// DeleteByID removes a reading, returning the deleted count
func (r *MongoReadingRepository) DeleteByID(ctx context.Context, id string) (int64, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return 0, nil
	}
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return 0, fmt.Errorf("failed to delete reading: %w", err)
	}
	return res.DeletedCount, nil
}

// DeleteManyByIDs removes every listed reading that exists
func (r *MongoReadingRepository) DeleteManyByIDs(ctx context.Context, ids []string) (int64, error) {
	return deleteByObjectIDs(ctx, r.coll, ids)
}

// GetMaxPrecipSince returns the device's highest-precipitation reading at or after since.
// Ties resolve to whichever record the server returns first.
func (r *MongoReadingRepository) GetMaxPrecipSince(ctx context.Context, deviceName string, since time.Time) (*db.PrecipitationPeak, error) {
	opts := options.FindOne().
		SetSort(bson.D{{Key: "precipitation", Value: -1}}).
		SetProjection(bson.M{"_id": 0, "deviceName": 1, "time": 1, "precipitation": 1})

	var peak struct {
		DeviceName    string    `bson:"deviceName"`
		Time          time.Time `bson:"time"`
		Precipitation *float64  `bson:"precipitation"`
	}
	err := r.coll.FindOne(ctx, bson.M{
		"deviceName": deviceName,
		"time":       bson.M{"$gte": since},
	}, opts).Decode(&peak)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query max precipitation: %w", err)
	}

	return &db.PrecipitationPeak{
		DeviceName:    peak.DeviceName,
		Time:          peak.Time,
		Precipitation: peak.Precipitation,
	}, nil
}

// GetDeviceByDate returns the conditions of the device's first reading at or after at
func (r *MongoReadingRepository) GetDeviceByDate(ctx context.Context, deviceName string, at time.Time) (*db.DeviceConditions, error) {
	opts := options.FindOne().
		SetSort(bson.D{{Key: "time", Value: 1}}).
		SetProjection(bson.M{
			"_id":                 0,
			"temperature":         1,
			"atmosphericPressure": 1,
			"solarRadiation":      1,
			"precipitation":       1,
		})

	var cond struct {
		Temperature         *float64 `bson:"temperature"`
		AtmosphericPressure *float64 `bson:"atmosphericPressure"`
		SolarRadiation      *float64 `bson:"solarRadiation"`
		Precipitation       *float64 `bson:"precipitation"`
	}
	err := r.coll.FindOne(ctx, bson.M{
		"deviceName": deviceName,
		"time":       bson.M{"$gte": at},
	}, opts).Decode(&cond)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query device conditions: %w", err)
	}

	return &db.DeviceConditions{
		Temperature:         cond.Temperature,
		AtmosphericPressure: cond.AtmosphericPressure,
		SolarRadiation:      cond.SolarRadiation,
		Precipitation:       cond.Precipitation,
	}, nil
}

// GetMaxTempByDateRange groups readings inside [start, end] by device and
// returns each device's maximum temperature with the time it was recorded
func (r *MongoReadingRepository) GetMaxTempByDateRange(ctx context.Context, start, end time.Time) ([]db.DeviceMaxTemperature, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"time": bson.M{"$gte": start, "$lte": end}}}},
		{{Key: "$sort", Value: bson.D{{Key: "temperature", Value: -1}}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$deviceName"},
			{Key: "temperature", Value: bson.M{"$max": "$temperature"}},
			{Key: "time", Value: bson.M{"$first": "$time"}},
		}}},
		{{Key: "$project", Value: bson.D{
			{Key: "_id", Value: 0},
			{Key: "deviceName", Value: "$_id"},
			{Key: "temperature", Value: 1},
			{Key: "time", Value: 1},
		}}},
	}

	cursor, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate max temperature: %w", err)
	}

	var rows []struct {
		DeviceName  string    `bson:"deviceName"`
		Temperature *float64  `bson:"temperature"`
		Time        time.Time `bson:"time"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode max temperature: %w", err)
	}

	result := make([]db.DeviceMaxTemperature, 0, len(rows))
	for _, row := range rows {
		result = append(result, db.DeviceMaxTemperature{
			DeviceName:  row.DeviceName,
			Temperature: row.Temperature,
			Time:        row.Time,
		})
	}
	return result, nil
}

// UpdatePrecipByID sets only the precipitation field of one reading
func (r *MongoReadingRepository) UpdatePrecipByID(ctx context.Context, id string, precipitation float64) (db.UpdateResult, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return db.UpdateResult{}, nil
	}
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": oid},
		bson.M{"$set": bson.M{"precipitation": precipitation}},
	)
	if err != nil {
		return db.UpdateResult{}, fmt.Errorf("failed to update precipitation: %w", err)
	}
	return db.UpdateResult{Matched: res.MatchedCount, Modified: res.ModifiedCount}, nil
}
