package repository

import (
	"context"
	"testing"
	"time"

	"github.com/septivank/weather-readings-api/internal/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func newMongoMock(t *testing.T) *mtest.T {
	return mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
}

func TestMongoUsers(t *testing.T) {
	mt := newMongoMock(t)

	oid := primitive.NewObjectID()
	created := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	mt.Run("get by id decodes document", func(mt *mtest.T) {
		repo := &MongoUserRepository{coll: mt.Coll}
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "weather.users", mtest.FirstBatch, bson.D{
			{Key: "_id", Value: oid},
			{Key: "firstName", Value: "Ada"},
			{Key: "lastName", Value: "Lovelace"},
			{Key: "email", Value: "ada@x.com"},
			{Key: "password", Value: "$2a$10$hash"},
			{Key: "role", Value: "admin"},
			{Key: "createdDate", Value: created},
		}))

		user, err := repo.GetByID(context.Background(), oid.Hex())
		require.NoError(mt, err)
		assert.Equal(mt, oid.Hex(), user.ID)
		assert.Equal(mt, db.RoleAdmin, user.Role)
		assert.Equal(mt, "$2a$10$hash", user.PasswordHash)
		assert.True(mt, created.Equal(user.CreatedDate))
		assert.Nil(mt, user.LastLoggedIn)
		assert.Nil(mt, user.AuthenticationKey)
	})

	mt.Run("get by id not found", func(mt *mtest.T) {
		repo := &MongoUserRepository{coll: mt.Coll}
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "weather.users", mtest.FirstBatch))

		_, err := repo.GetByID(context.Background(), oid.Hex())
		assert.ErrorIs(mt, err, ErrNotFound)
	})

	mt.Run("get by email absent is nil", func(mt *mtest.T) {
		repo := &MongoUserRepository{coll: mt.Coll}
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "weather.users", mtest.FirstBatch))

		user, err := repo.GetByEmail(context.Background(), "nobody@x.com")
		require.NoError(mt, err)
		assert.Nil(mt, user)
	})

	mt.Run("create ignores caller id", func(mt *mtest.T) {
		repo := &MongoUserRepository{coll: mt.Coll}
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		user, err := repo.Create(context.Background(), &db.User{ID: "caller", Email: "a@x.com", Role: db.RoleStudent})
		require.NoError(mt, err)
		assert.True(mt, db.IsObjectID(user.ID))
	})

	mt.Run("create with duplicate id fails", func(mt *mtest.T) {
		repo := &MongoUserRepository{coll: mt.Coll}
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index:   0,
			Code:    11000,
			Message: "duplicate key error",
		}))

		_, err := repo.CreateWithID(context.Background(), oid.Hex(), &db.User{Email: "a@x.com"})
		assert.ErrorContains(mt, err, "failed to insert user")
	})

	mt.Run("update reports counts", func(mt *mtest.T) {
		repo := &MongoUserRepository{coll: mt.Coll}
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 1},
			bson.E{Key: "nModified", Value: 1},
		))

		res, err := repo.Update(context.Background(), &db.User{ID: oid.Hex(), Email: "a@x.com"})
		require.NoError(mt, err)
		assert.Equal(mt, db.UpdateResult{Matched: 1, Modified: 1}, res)
	})

	mt.Run("update many reports partial counts", func(mt *mtest.T) {
		repo := &MongoUserRepository{coll: mt.Coll}
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 1},
			bson.E{Key: "nModified", Value: 1},
		))

		res, err := repo.UpdateMany(context.Background(), []db.User{
			{ID: oid.Hex()},
			{ID: primitive.NewObjectID().Hex()},
		})
		require.NoError(mt, err)
		assert.Equal(mt, int64(1), res.Matched)
	})

	mt.Run("delete many counts existing only", func(mt *mtest.T) {
		repo := &MongoUserRepository{coll: mt.Coll}
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 2}))

		n, err := repo.DeleteManyByIDs(context.Background(), []string{
			oid.Hex(),
			primitive.NewObjectID().Hex(),
			primitive.NewObjectID().Hex(),
		})
		require.NoError(mt, err)
		assert.Equal(mt, int64(2), n)
	})
}

func TestMongoReadings(t *testing.T) {
	mt := newMongoMock(t)

	at := time.Date(2021, 5, 7, 2, 0, 0, 0, time.UTC)

	mt.Run("page past the end is empty", func(mt *mtest.T) {
		repo := &MongoReadingRepository{coll: mt.Coll}
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "weather.readings", mtest.FirstBatch))

		readings, err := repo.GetByPage(context.Background(), 500, 5)
		require.NoError(mt, err)
		assert.Empty(mt, readings)
	})

	mt.Run("date range decodes readings", func(mt *mtest.T) {
		repo := &MongoReadingRepository{coll: mt.Coll}
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "weather.readings", mtest.FirstBatch,
			bson.D{
				{Key: "_id", Value: primitive.NewObjectID()},
				{Key: "deviceName", Value: "Woodford_Sensor"},
				{Key: "time", Value: at},
				{Key: "temperature", Value: 22.74},
				{Key: "humidity", Value: nil},
			},
			bson.D{
				{Key: "_id", Value: primitive.NewObjectID()},
				{Key: "deviceName", Value: "Noosa_Sensor"},
				{Key: "time", Value: at.Add(time.Hour)},
				{Key: "precipitation", Value: 0.085},
			},
		))

		readings, err := repo.GetByDateRange(context.Background(), at, at.Add(2*time.Hour))
		require.NoError(mt, err)
		require.Len(mt, readings, 2)
		assert.Equal(mt, 22.74, *readings[0].Temperature)
		assert.Nil(mt, readings[0].Humidity)
		assert.Equal(mt, 0.085, *readings[1].Precipitation)
	})

	mt.Run("max precipitation", func(mt *mtest.T) {
		repo := &MongoReadingRepository{coll: mt.Coll}
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "weather.readings", mtest.FirstBatch, bson.D{
			{Key: "deviceName", Value: "Noosa_Sensor"},
			{Key: "time", Value: at},
			{Key: "precipitation", Value: 12.5},
		}))

		peak, err := repo.GetMaxPrecipSince(context.Background(), "Noosa_Sensor", at.AddDate(0, -5, 0))
		require.NoError(mt, err)
		assert.Equal(mt, "Noosa_Sensor", peak.DeviceName)
		assert.Equal(mt, 12.5, *peak.Precipitation)
	})

	mt.Run("max precipitation not found", func(mt *mtest.T) {
		repo := &MongoReadingRepository{coll: mt.Coll}
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "weather.readings", mtest.FirstBatch))

		_, err := repo.GetMaxPrecipSince(context.Background(), "Noosa_Sensor", at)
		assert.ErrorIs(mt, err, ErrNotFound)
	})

	mt.Run("device by date", func(mt *mtest.T) {
		repo := &MongoReadingRepository{coll: mt.Coll}
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "weather.readings", mtest.FirstBatch, bson.D{
			{Key: "temperature", Value: 18.4},
			{Key: "atmosphericPressure", Value: 127.9},
			{Key: "solarRadiation", Value: 0.0},
			{Key: "precipitation", Value: 0.2},
		}))

		cond, err := repo.GetDeviceByDate(context.Background(), "Yandina_Sensor", at)
		require.NoError(mt, err)
		assert.Equal(mt, 18.4, *cond.Temperature)
		assert.Equal(mt, 127.9, *cond.AtmosphericPressure)
	})

	mt.Run("max temperature groups", func(mt *mtest.T) {
		repo := &MongoReadingRepository{coll: mt.Coll}
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "weather.readings", mtest.FirstBatch,
			bson.D{
				{Key: "deviceName", Value: "Noosa_Sensor"},
				{Key: "temperature", Value: 31.2},
				{Key: "time", Value: at},
			},
			bson.D{
				{Key: "deviceName", Value: "Woodford_Sensor"},
				{Key: "temperature", Value: 29.8},
				{Key: "time", Value: at.Add(time.Hour)},
			},
		))

		rows, err := repo.GetMaxTempByDateRange(context.Background(), at, at.AddDate(0, 1, 0))
		require.NoError(mt, err)
		require.Len(mt, rows, 2)
		assert.ElementsMatch(mt,
			[]string{"Noosa_Sensor", "Woodford_Sensor"},
			[]string{rows[0].DeviceName, rows[1].DeviceName},
		)
	})

	mt.Run("create many assigns distinct ids", func(mt *mtest.T) {
		repo := &MongoReadingRepository{coll: mt.Coll}
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		created, err := repo.CreateMany(context.Background(), []db.Reading{
			{DeviceName: "Noosa_Sensor", Time: at},
			{DeviceName: "Noosa_Sensor", Time: at},
		})
		require.NoError(mt, err)
		require.Len(mt, created, 2)
		assert.NotEqual(mt, created[0].ID, created[1].ID)
	})

	mt.Run("update precipitation missing id", func(mt *mtest.T) {
		repo := &MongoReadingRepository{coll: mt.Coll}
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 0},
			bson.E{Key: "nModified", Value: 0},
		))

		res, err := repo.UpdatePrecipByID(context.Background(), primitive.NewObjectID().Hex(), 4.2)
		require.NoError(mt, err)
		assert.Zero(mt, res.Matched)
	})
}
