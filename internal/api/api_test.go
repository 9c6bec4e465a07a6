package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/septivank/weather-readings-api/internal/api"
	"github.com/septivank/weather-readings-api/internal/authz"
	"github.com/septivank/weather-readings-api/internal/db"
	"github.com/septivank/weather-readings-api/internal/repository/repositorytest"
	"github.com/septivank/weather-readings-api/internal/service"
	"github.com/septivank/weather-readings-api/internal/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// key of the seeded user holding each role
var roleKeys = map[db.Role]string{
	db.RoleAdmin:   "admin-key",
	db.RoleTeacher: "teacher-key",
	db.RoleStudent: "student-key",
	db.RoleSensor:  "sensor-key",
}

type testEnv struct {
	router   *gin.Engine
	users    *repositorytest.Users
	readings *repositorytest.Readings
}

func newTestEnv(t *testing.T, checks ...api.HealthCheck) *testEnv {
	t.Helper()

	var seed []db.User
	for role, key := range roleKeys {
		key := key
		seed = append(seed, db.User{
			ID:                db.NewObjectID(),
			Email:             role.String() + "@example.com",
			Role:              role,
			CreatedDate:       time.Now().UTC(),
			AuthenticationKey: &key,
		})
	}
	users := repositorytest.NewUsers(seed...)
	readings := repositorytest.NewReadings()

	logger := zap.NewNop()
	hasher := service.NewBcryptHasher(bcrypt.MinCost)
	v := validator.NewValidator(100)

	h := api.NewHandler(
		service.NewAuthService(users, hasher, logger),
		service.NewUserService(users, hasher, logger),
		service.NewReadingService(readings, v, nil, 5, logger),
		v,
		checks,
		logger,
	)
	router := api.NewRouter(h, authz.NewGate(users, logger), logger)

	return &testEnv{router: router, users: users, readings: readings}
}

type envelope struct {
	Status            int              `json:"status"`
	Message           string           `json:"message"`
	AuthenticationKey string           `json:"authenticationKey"`
	User              json.RawMessage  `json:"user"`
	Reading           json.RawMessage  `json:"reading"`
	Readings          json.RawMessage  `json:"readings"`
	Result            *db.UpdateResult `json:"result"`
	Failed            []string         `json:"failed"`
}

func (e *testEnv) do(t *testing.T, method, path, key string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set(api.AuthKeyHeader, key)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w, env
}

func TestAuthScenario(t *testing.T) {
	env := newTestEnv(t)
	register := map[string]string{
		"firstName": "Sam",
		"lastName":  "Rivers",
		"email":     "sam@example.com",
		"password":  "p4ssword",
	}

	w, body := env.do(t, http.MethodPost, "/auth/register", "", register)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Registration successful", body.Message)
	assert.NotContains(t, string(body.User), "p4ssword")
	assert.NotContains(t, string(body.User), "password")

	w, body = env.do(t, http.MethodPost, "/auth/register", "", register)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, http.StatusConflict, body.Status)

	w, body = env.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": "sam@example.com", "password": "p4ssword"})
	require.Equal(t, http.StatusOK, w.Code)
	key := body.AuthenticationKey
	require.NotEmpty(t, key)

	w, _ = env.do(t, http.MethodGet, "/users/key/"+key, "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = env.do(t, http.MethodPost, "/auth/logout", "", map[string]string{"authenticationKey": key})
	assert.Equal(t, http.StatusOK, w.Code)

	w, body = env.do(t, http.MethodPost, "/auth/logout", "", map[string]string{"authenticationKey": key})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "failed to find user", body.Message)

	w, _ = env.do(t, http.MethodGet, "/users/key/"+key, "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestLoginInvalidCredentials(t *testing.T) {
	env := newTestEnv(t)
	_, _ = env.do(t, http.MethodPost, "/auth/register", "", map[string]string{"email": "a@example.com", "password": "right"})

	w1, b1 := env.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": "a@example.com", "password": "wrong"})
	w2, b2 := env.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": "nobody@example.com", "password": "right"})

	assert.Equal(t, http.StatusUnauthorized, w1.Code)
	assert.Equal(t, http.StatusUnauthorized, w2.Code)
	assert.Equal(t, b1.Message, b2.Message)

	w, _ := env.do(t, http.MethodPost, "/auth/login", "", `{"email":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSensorCanCreateStudentCannot(t *testing.T) {
	env := newTestEnv(t)
	reading := map[string]any{"deviceName": "Noosa_Sensor", "temperature": 22.5}

	w, body := env.do(t, http.MethodPost, "/readings", roleKeys[db.RoleSensor], reading)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var created db.Reading
	require.NoError(t, json.Unmarshal(body.Reading, &created))
	assert.True(t, db.IsObjectID(created.ID))
	assert.WithinDuration(t, time.Now(), created.Time, time.Minute)

	w, body = env.do(t, http.MethodPost, "/readings", roleKeys[db.RoleStudent], reading)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "The user does not have permission to modify readings.", body.Message)
	assert.Len(t, env.readings.All(), 1)
}

func TestInvalidIDNeverReachesReadingStore(t *testing.T) {
	env := newTestEnv(t)

	for _, tc := range []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/readings/not-an-id"},
		{http.MethodGet, "/readings/64b7f0c2e4b0a1a2b3c4d5eZ"},
		{http.MethodDelete, "/readings/123"},
	} {
		w, body := env.do(t, tc.method, tc.path, roleKeys[db.RoleAdmin], nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, tc.path)
		assert.Equal(t, "Invalid ID format", body.Message)
	}

	w, _ := env.do(t, http.MethodDelete, "/readings/delete/many", roleKeys[db.RoleAdmin], map[string]any{
		"ids": []string{db.NewObjectID(), "bad"},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	assert.Equal(t, 0, env.readings.Calls())
}

func TestForbiddenForEveryRoleOutsideAllowList(t *testing.T) {
	env := newTestEnv(t)
	id := db.NewObjectID()

	routes := []struct {
		method string
		path   string
		op     authz.Operation
	}{
		{http.MethodGet, "/readings/" + id, authz.OpReadReadings},
		{http.MethodGet, "/readings/page/1", authz.OpReadReadings},
		{http.MethodGet, "/readings/date/2024-01-01/2024-02-01", authz.OpReadReadings},
		{http.MethodGet, "/readings/maxprecipitation/d", authz.OpReadReadings},
		{http.MethodGet, "/readings/devicedate/d/2024-01-01", authz.OpReadReadings},
		{http.MethodGet, "/readings/maxtemperature/2024-01-01/2024-02-01", authz.OpReadReadings},
		{http.MethodPost, "/readings", authz.OpCreateReadings},
		{http.MethodPost, "/readings/many", authz.OpCreateReadings},
		{http.MethodPatch, "/readings", authz.OpModifyReadings},
		{http.MethodPatch, "/readings/update/many", authz.OpModifyReadings},
		{http.MethodPatch, "/readings/update/precipitation", authz.OpUpdatePrecipitation},
		{http.MethodDelete, "/readings/" + id, authz.OpModifyReadings},
		{http.MethodDelete, "/readings/delete/many", authz.OpModifyReadings},
		{http.MethodGet, "/users", authz.OpReadUsers},
		{http.MethodGet, "/users/" + id, authz.OpReadUsers},
		{http.MethodPost, "/users", authz.OpModifyUsers},
		{http.MethodPut, "/users/" + id, authz.OpModifyUsers},
		{http.MethodPost, "/users/many", authz.OpModifyUsers},
		{http.MethodPatch, "/users/update/user", authz.OpModifyUsers},
		{http.MethodPatch, "/users/update/many", authz.OpModifyUsers},
		{http.MethodDelete, "/users/" + id, authz.OpModifyUsers},
		{http.MethodDelete, "/users/delete/many", authz.OpModifyUsers},
		{http.MethodPatch, "/users/update/usersrole", authz.OpManageUserRoles},
		{http.MethodDelete, "/users/delete/deleterolesbydaterange", authz.OpManageUserRoles},
	}

	for _, route := range routes {
		for _, role := range db.Roles {
			if authz.Allowed(role, route.op) {
				continue
			}
			w, body := env.do(t, route.method, route.path, roleKeys[role], `{"anything": true}`)
			assert.Equal(t, http.StatusForbidden, w.Code, "%s %s as %s", route.method, route.path, role)
			assert.Equal(t, route.op.DeniedMessage(), body.Message)
		}

		w, _ := env.do(t, route.method, route.path, "", nil)
		assert.Equal(t, http.StatusForbidden, w.Code, "%s %s without key", route.method, route.path)
		w, _ = env.do(t, route.method, route.path, "unknown-key", nil)
		assert.Equal(t, http.StatusForbidden, w.Code, "%s %s with unknown key", route.method, route.path)
	}

	assert.Equal(t, 0, env.readings.Calls())
}

func TestReadingsPagination(t *testing.T) {
	env := newTestEnv(t)
	batch := make([]map[string]any, 0, 7)
	for i := 0; i < 7; i++ {
		batch = append(batch, map[string]any{"deviceName": "d", "temperature": float64(i)})
	}

	w, body := env.do(t, http.MethodPost, "/readings/many", roleKeys[db.RoleTeacher], batch)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Created 7 weather data readings successfully", body.Message)

	w, body = env.do(t, http.MethodGet, "/readings/page/2", roleKeys[db.RoleStudent], nil)
	require.Equal(t, http.StatusOK, w.Code)
	var page []db.Reading
	require.NoError(t, json.Unmarshal(body.Readings, &page))
	assert.Len(t, page, 2)

	w, body = env.do(t, http.MethodGet, "/readings/page/3", roleKeys[db.RoleStudent], nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "No weather data readings found for the page number provided", body.Message)

	w, body = env.do(t, http.MethodGet, "/readings/page/abc", roleKeys[db.RoleStudent], nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Page must be a number", body.Message)
}

func TestReadingsWriteFlow(t *testing.T) {
	env := newTestEnv(t)
	admin := roleKeys[db.RoleAdmin]

	_, body := env.do(t, http.MethodPost, "/readings", admin, map[string]any{"deviceName": "d", "precipitation": 1.5})
	var created db.Reading
	require.NoError(t, json.Unmarshal(body.Reading, &created))

	w, body := env.do(t, http.MethodGet, "/readings/"+strings.ToUpper(created.ID), admin, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var fetched db.Reading
	require.NoError(t, json.Unmarshal(body.Reading, &fetched))
	assert.Equal(t, created.ID, fetched.ID)

	w, body = env.do(t, http.MethodPatch, "/readings/update/precipitation", admin, map[string]any{"_id": created.ID, "precipitation": 9.0})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NotNil(t, body.Result)
	assert.Equal(t, int64(1), body.Result.Matched)

	w, _ = env.do(t, http.MethodPatch, "/readings/update/precipitation", admin, map[string]any{"_id": db.NewObjectID(), "precipitation": 9.0})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = env.do(t, http.MethodPatch, "/readings", admin, map[string]any{"_id": created.ID, "deviceName": "d", "humidity": 150})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = env.do(t, http.MethodPatch, "/readings", admin, map[string]any{"_id": created.ID, "deviceName": "d2"})
	assert.Equal(t, http.StatusOK, w.Code)

	w, body = env.do(t, http.MethodDelete, "/readings/delete/many", admin, map[string]any{"ids": []string{created.ID, db.NewObjectID()}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "1 weather data readings deleted successfully", body.Message)

	w, _ = env.do(t, http.MethodDelete, "/readings/"+created.ID, admin, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUserAdministration(t *testing.T) {
	env := newTestEnv(t)
	teacher := roleKeys[db.RoleTeacher]

	w, body := env.do(t, http.MethodPost, "/users", teacher, map[string]any{
		"firstName": "New", "email": "new@example.com", "password": "pw", "role": "student",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var created db.User
	require.NoError(t, json.Unmarshal(body.User, &created))
	assert.Equal(t, db.RoleStudent, created.Role)

	w, _ = env.do(t, http.MethodPost, "/users", teacher, map[string]any{"email": "new@example.com", "password": "pw", "role": "student"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w, _ = env.do(t, http.MethodPost, "/users", teacher, map[string]any{"email": "x@example.com", "password": "pw", "role": "janitor"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, body = env.do(t, http.MethodPost, "/users/many", teacher, []map[string]any{
		{"email": "m1@example.com", "password": "pw", "role": "student"},
		{"email": "m1@example.com", "password": "pw", "role": "student"},
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	w, body = env.do(t, http.MethodPatch, "/users/update/user", teacher, map[string]any{
		"_id": created.ID, "firstName": "Renamed", "email": "new@example.com", "role": "teacher",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var updated db.User
	require.NoError(t, json.Unmarshal(body.User, &updated))
	assert.Equal(t, "Renamed", updated.FirstName)
	assert.True(t, created.CreatedDate.Equal(updated.CreatedDate))

	w, body = env.do(t, http.MethodPatch, "/users/update/user", teacher, map[string]any{
		"_id": created.ID, "email": "Admin@Example.com", "role": "teacher",
	})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "The provided email address is already in use", body.Message)

	w, _ = env.do(t, http.MethodPatch, "/users/update/many", teacher, []map[string]any{
		{"_id": created.ID, "email": "student@example.com", "role": "teacher"},
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	stored, err := env.users.GetByID(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", stored.Email)

	w, body = env.do(t, http.MethodGet, "/users", teacher, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var all []db.User
	require.NoError(t, json.Unmarshal(body.User, &all))
	assert.Len(t, all, len(roleKeys)+1)

	w, _ = env.do(t, http.MethodDelete, "/users/"+created.ID, teacher, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w, _ = env.do(t, http.MethodGet, "/users/"+created.ID, teacher, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAdminRoleOperations(t *testing.T) {
	env := newTestEnv(t)
	admin := roleKeys[db.RoleAdmin]
	start := time.Now().UTC().AddDate(0, 0, -1).Format(time.RFC3339)
	end := time.Now().UTC().AddDate(0, 0, 1).Format(time.RFC3339)

	w, body := env.do(t, http.MethodPatch, "/users/update/usersrole", admin, map[string]string{
		"startDate": start, "endDate": end, "role": "teacher",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NotNil(t, body.Result)
	assert.Equal(t, int64(len(roleKeys)), body.Result.Matched)

	w, _ = env.do(t, http.MethodPatch, "/users/update/usersrole", admin, map[string]string{
		"startDate": end, "endDate": start, "role": "teacher",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = env.do(t, http.MethodDelete, "/users/delete/deleterolesbydaterange", admin, map[string]string{
		"startDate": start, "endDate": end, "userRole": "student",
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStoreFailureIsInternal(t *testing.T) {
	env := newTestEnv(t)
	env.readings.Err = errors.New("socket closed")

	w, body := env.do(t, http.MethodGet, "/readings/page/1", roleKeys[db.RoleAdmin], nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, body.Message, "socket closed")
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, api.HealthCheck{Name: "store", Ping: func(context.Context) error { return nil }})
	w, body := env.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, http.StatusOK, body.Status)
	assert.Equal(t, "Service healthy", body.Message)
	assert.NotEmpty(t, w.Header().Get(api.RequestIDHeader))

	env = newTestEnv(t, api.HealthCheck{Name: "store", Ping: func(context.Context) error {
		return errors.New("dial tcp 10.0.0.7:27017: connection refused")
	}})
	w, body = env.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, http.StatusServiceUnavailable, body.Status)
	assert.Equal(t, []string{"store"}, body.Failed)
	assert.NotContains(t, w.Body.String(), "connection refused")
}
