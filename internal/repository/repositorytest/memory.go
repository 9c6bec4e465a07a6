// Package repositorytest provides in-memory stores for tests of the layers
// above the repository package.
package repositorytest

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/septivank/weather-readings-api/internal/db"
	"github.com/septivank/weather-readings-api/internal/repository"
)

// Users is an in-memory repository.UserRepository
type Users struct {
	mu    sync.Mutex
	byID  map[string]db.User
	calls int
	// Err, when set, is returned by every call
	Err error
}

var _ repository.UserRepository = (*Users)(nil)

// NewUsers creates a store seeded with users
func NewUsers(users ...db.User) *Users {
	s := &Users{byID: make(map[string]db.User)}
	for _, u := range users {
		if u.ID == "" {
			u.ID = db.NewObjectID()
		}
		s.byID[u.ID] = u
	}
	return s
}

// Calls is the number of store calls made so far
func (s *Users) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *Users) enter() func() {
	s.mu.Lock()
	s.calls++
	return s.mu.Unlock
}

func (s *Users) GetByID(ctx context.Context, id string) (*db.User, error) {
	defer s.enter()()
	if s.Err != nil {
		return nil, s.Err
	}
	u, ok := s.byID[strings.ToLower(id)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

func (s *Users) GetByEmail(ctx context.Context, email string) (*db.User, error) {
	defer s.enter()()
	if s.Err != nil {
		return nil, s.Err
	}
	for _, u := range s.byID {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, nil
}

func (s *Users) GetByAuthenticationKey(ctx context.Context, key string) (*db.User, error) {
	defer s.enter()()
	if s.Err != nil {
		return nil, s.Err
	}
	if key == "" {
		return nil, repository.ErrNotFound
	}
	for _, u := range s.byID {
		if u.AuthenticationKey != nil && *u.AuthenticationKey == key {
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *Users) GetAll(ctx context.Context) ([]db.User, error) {
	defer s.enter()()
	if s.Err != nil {
		return nil, s.Err
	}
	users := make([]db.User, 0, len(s.byID))
	for _, u := range s.byID {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

func (s *Users) Create(ctx context.Context, user *db.User) (*db.User, error) {
	return s.CreateWithID(ctx, db.NewObjectID(), user)
}

func (s *Users) CreateWithID(ctx context.Context, id string, user *db.User) (*db.User, error) {
	defer s.enter()()
	if s.Err != nil {
		return nil, s.Err
	}
	id = strings.ToLower(id)
	if _, taken := s.byID[id]; taken {
		return nil, errDuplicateKey
	}
	u := *user
	u.ID = id
	s.byID[id] = u
	return &u, nil
}

func (s *Users) CreateMany(ctx context.Context, users []db.User) ([]db.User, error) {
	defer s.enter()()
	if s.Err != nil {
		return nil, s.Err
	}
	created := make([]db.User, 0, len(users))
	for _, u := range users {
		u.ID = db.NewObjectID()
		s.byID[u.ID] = u
		created = append(created, u)
	}
	return created, nil
}

func (s *Users) Update(ctx context.Context, user *db.User) (db.UpdateResult, error) {
	defer s.enter()()
	if s.Err != nil {
		return db.UpdateResult{}, s.Err
	}
	return s.replace(*user), nil
}

func (s *Users) replace(u db.User) db.UpdateResult {
	u.ID = strings.ToLower(u.ID)
	if _, ok := s.byID[u.ID]; !ok {
		return db.UpdateResult{}
	}
	s.byID[u.ID] = u
	return db.UpdateResult{Matched: 1, Modified: 1}
}

func (s *Users) UpdateMany(ctx context.Context, users []db.User) (db.UpdateResult, error) {
	defer s.enter()()
	if s.Err != nil {
		return db.UpdateResult{}, s.Err
	}
	var total db.UpdateResult
	for _, u := range users {
		res := s.replace(u)
		total.Matched += res.Matched
		total.Modified += res.Modified
	}
	return total, nil
}

func (s *Users) UpdateRolesByCreatedDateRange(ctx context.Context, start, end time.Time, role db.Role) (db.UpdateResult, error) {
	defer s.enter()()
	if s.Err != nil {
		return db.UpdateResult{}, s.Err
	}
	var res db.UpdateResult
	for id, u := range s.byID {
		if within(u.CreatedDate, start, end) {
			res.Matched++
			if u.Role != role {
				res.Modified++
				u.Role = role
				s.byID[id] = u
			}
		}
	}
	return res, nil
}

func (s *Users) DeleteByID(ctx context.Context, id string) (int64, error) {
	return s.DeleteManyByIDs(ctx, []string{id})
}

func (s *Users) DeleteManyByIDs(ctx context.Context, ids []string) (int64, error) {
	defer s.enter()()
	if s.Err != nil {
		return 0, s.Err
	}
	var n int64
	for _, id := range ids {
		id = strings.ToLower(id)
		if _, ok := s.byID[id]; ok {
			delete(s.byID, id)
			n++
		}
	}
	return n, nil
}

func (s *Users) DeleteManyByLastLoggedInDateRange(ctx context.Context, start, end time.Time, role db.Role) (int64, error) {
	defer s.enter()()
	if s.Err != nil {
		return 0, s.Err
	}
	var n int64
	for id, u := range s.byID {
		if u.Role == role && u.LastLoggedIn != nil && within(*u.LastLoggedIn, start, end) {
			delete(s.byID, id)
			n++
		}
	}
	return n, nil
}

// Readings is an in-memory repository.ReadingRepository
type Readings struct {
	mu    sync.Mutex
	order []string
	byID  map[string]db.Reading
	calls int
	// Err, when set, is returned by every call
	Err error
}

var _ repository.ReadingRepository = (*Readings)(nil)

// NewReadings creates a store seeded with readings in insertion order
func NewReadings(readings ...db.Reading) *Readings {
	s := &Readings{byID: make(map[string]db.Reading)}
	for _, r := range readings {
		s.insert(r)
	}
	return s
}

// Calls is the number of store calls made so far
func (s *Readings) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// All returns every stored reading in insertion order
func (s *Readings) All() []db.Reading {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.list()
}

func (s *Readings) enter() func() {
	s.mu.Lock()
	s.calls++
	return s.mu.Unlock
}

func (s *Readings) insert(r db.Reading) db.Reading {
	if r.ID == "" {
		r.ID = db.NewObjectID()
	}
	s.order = append(s.order, r.ID)
	s.byID[r.ID] = r
	return r
}

func (s *Readings) list() []db.Reading {
	readings := make([]db.Reading, 0, len(s.order))
	for _, id := range s.order {
		if r, ok := s.byID[id]; ok {
			readings = append(readings, r)
		}
	}
	return readings
}

func (s *Readings) GetByID(ctx context.Context, id string) (*db.Reading, error) {
	defer s.enter()()
	if s.Err != nil {
		return nil, s.Err
	}
	id = strings.ToLower(id)
	r, ok := s.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &r, nil
}

func (s *Readings) GetByPage(ctx context.Context, page, size int) ([]db.Reading, error) {
	defer s.enter()()
	if s.Err != nil {
		return nil, s.Err
	}
	all := s.list()
	offset := (page - 1) * size
	if offset >= len(all) {
		return []db.Reading{}, nil
	}
	end := offset + size
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (s *Readings) GetByDateRange(ctx context.Context, start, end time.Time) ([]db.Reading, error) {
	defer s.enter()()
	if s.Err != nil {
		return nil, s.Err
	}
	result := []db.Reading{}
	for _, r := range s.list() {
		if within(r.Time, start, end) {
			result = append(result, r)
		}
	}
	return result, nil
}

func (s *Readings) Create(ctx context.Context, reading *db.Reading) (*db.Reading, error) {
	defer s.enter()()
	if s.Err != nil {
		return nil, s.Err
	}
	r := *reading
	r.ID = ""
	r = s.insert(r)
	return &r, nil
}

func (s *Readings) CreateMany(ctx context.Context, readings []db.Reading) ([]db.Reading, error) {
	defer s.enter()()
	if s.Err != nil {
		return nil, s.Err
	}
	created := make([]db.Reading, 0, len(readings))
	for _, r := range readings {
		r.ID = ""
		created = append(created, s.insert(r))
	}
	return created, nil
}

func (s *Readings) replace(r db.Reading) db.UpdateResult {
	r.ID = strings.ToLower(r.ID)
	if _, ok := s.byID[r.ID]; !ok {
		return db.UpdateResult{}
	}
	s.byID[r.ID] = r
	return db.UpdateResult{Matched: 1, Modified: 1}
}

func (s *Readings) Update(ctx context.Context, reading *db.Reading) (db.UpdateResult, error) {
	defer s.enter()()
	if s.Err != nil {
		return db.UpdateResult{}, s.Err
	}
	return s.replace(*reading), nil
}

func (s *Readings) UpdateMany(ctx context.Context, readings []db.Reading) (db.UpdateResult, error) {
	defer s.enter()()
	if s.Err != nil {
		return db.UpdateResult{}, s.Err
	}
	var total db.UpdateResult
	for _, r := range readings {
		res := s.replace(r)
		total.Matched += res.Matched
		total.Modified += res.Modified
	}
	return total, nil
}

func (s *Readings) DeleteByID(ctx context.Context, id string) (int64, error) {
	return s.DeleteManyByIDs(ctx, []string{id})
}

func (s *Readings) DeleteManyByIDs(ctx context.Context, ids []string) (int64, error) {
	defer s.enter()()
	if s.Err != nil {
		return 0, s.Err
	}
	var n int64
	for _, id := range ids {
		id = strings.ToLower(id)
		if _, ok := s.byID[id]; ok {
			delete(s.byID, id)
			n++
		}
	}
	return n, nil
}

func (s *Readings) GetMaxPrecipSince(ctx context.Context, deviceName string, since time.Time) (*db.PrecipitationPeak, error) {
	defer s.enter()()
	if s.Err != nil {
		return nil, s.Err
	}
	var best *db.Reading
	for _, r := range s.list() {
		if r.DeviceName != deviceName || r.Time.Before(since) {
			continue
		}
		r := r
		if best == nil || greater(r.Precipitation, best.Precipitation) {
			best = &r
		}
	}
	if best == nil {
		return nil, repository.ErrNotFound
	}
	return &db.PrecipitationPeak{DeviceName: best.DeviceName, Time: best.Time, Precipitation: best.Precipitation}, nil
}

func (s *Readings) GetDeviceByDate(ctx context.Context, deviceName string, at time.Time) (*db.DeviceConditions, error) {
	defer s.enter()()
	if s.Err != nil {
		return nil, s.Err
	}
	var first *db.Reading
	for _, r := range s.list() {
		if r.DeviceName != deviceName || r.Time.Before(at) {
			continue
		}
		r := r
		if first == nil || r.Time.Before(first.Time) {
			first = &r
		}
	}
	if first == nil {
		return nil, repository.ErrNotFound
	}
	return &db.DeviceConditions{
		Temperature:         first.Temperature,
		AtmosphericPressure: first.AtmosphericPressure,
		SolarRadiation:      first.SolarRadiation,
		Precipitation:       first.Precipitation,
	}, nil
}

func (s *Readings) GetMaxTempByDateRange(ctx context.Context, start, end time.Time) ([]db.DeviceMaxTemperature, error) {
	defer s.enter()()
	if s.Err != nil {
		return nil, s.Err
	}
	best := make(map[string]db.DeviceMaxTemperature)
	var devices []string
	for _, r := range s.list() {
		if !within(r.Time, start, end) {
			continue
		}
		cur, seen := best[r.DeviceName]
		if !seen {
			devices = append(devices, r.DeviceName)
		}
		if !seen || greater(r.Temperature, cur.Temperature) {
			best[r.DeviceName] = db.DeviceMaxTemperature{DeviceName: r.DeviceName, Temperature: r.Temperature, Time: r.Time}
		}
	}
	result := make([]db.DeviceMaxTemperature, 0, len(devices))
	for _, d := range devices {
		result = append(result, best[d])
	}
	return result, nil
}

func (s *Readings) UpdatePrecipByID(ctx context.Context, id string, precipitation float64) (db.UpdateResult, error) {
	defer s.enter()()
	if s.Err != nil {
		return db.UpdateResult{}, s.Err
	}
	id = strings.ToLower(id)
	r, ok := s.byID[id]
	if !ok {
		return db.UpdateResult{}, nil
	}
	r.Precipitation = &precipitation
	s.byID[id] = r
	return db.UpdateResult{Matched: 1, Modified: 1}, nil
}

func within(t, start, end time.Time) bool {
	return !t.Before(start) && !t.After(end)
}

// greater orders nil below every value
func greater(a, b *float64) bool {
	if a == nil {
		return false
	}
	return b == nil || *a > *b
}

type duplicateKeyError struct{}

func (duplicateKeyError) Error() string { return "duplicate key" }

var errDuplicateKey error = duplicateKeyError{}
