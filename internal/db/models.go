package db

import (
	"fmt"
	"strings"
	"time"
)

// Role is the access role of a user account.
type Role uint8

const (
	RoleUnknown Role = iota
	RoleAdmin
	RoleTeacher
	RoleStudent
	RoleSensor
)

// Roles lists every assignable role.
var Roles = []Role{RoleAdmin, RoleTeacher, RoleStudent, RoleSensor}

// ParseRole converts the stored/wire name of a role into a Role.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "admin":
		return RoleAdmin, nil
	case "teacher":
		return RoleTeacher, nil
	case "student":
		return RoleStudent, nil
	case "sensor":
		return RoleSensor, nil
	}
	return RoleUnknown, fmt.Errorf("unknown role %q", s)
}

func (r Role) String() string {
	switch r {
	case RoleAdmin:
		return "admin"
	case RoleTeacher:
		return "teacher"
	case RoleStudent:
		return "student"
	case RoleSensor:
		return "sensor"
	}
	return "unknown"
}

// MarshalText encodes the role by name so JSON carries "admin", "teacher", ...
func (r Role) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText rejects names outside the role enumeration.
func (r *Role) UnmarshalText(text []byte) error {
	role, err := ParseRole(string(text))
	if err != nil {
		return err
	}
	*r = role
	return nil
}

// User represents a user account
type User struct {
	ID                string     `json:"_id"`
	FirstName         string     `json:"firstName"`
	LastName          string     `json:"lastName"`
	Email             string     `json:"email"`
	PasswordHash      string     `json:"-"`
	Role              Role       `json:"role"`
	CreatedDate       time.Time  `json:"createdDate"`
	LastLoggedIn      *time.Time `json:"lastLoggedIn"`
	AuthenticationKey *string    `json:"authenticationKey,omitempty"`
}

// Reading represents a single weather station reading
type Reading struct {
	ID                  string    `json:"_id"`
	DeviceName          string    `json:"deviceName"`
	Time                time.Time `json:"time"`
	Precipitation       *float64  `json:"precipitation"`
	Latitude            *float64  `json:"latitude"`
	Longitude           *float64  `json:"longitude"`
	AtmosphericPressure *float64  `json:"atmosphericPressure"`
	Humidity            *float64  `json:"humidity"`
	MaxWindSpeed        *float64  `json:"maxWindSpeed"`
	SolarRadiation      *float64  `json:"solarRadiation"`
	Temperature         *float64  `json:"temperature"`
	VaporPressure       *float64  `json:"vaporPressure"`
	WindDirection       *float64  `json:"windDirection"`
}

// PrecipitationPeak is the projection returned by the maximum precipitation query
type PrecipitationPeak struct {
	DeviceName    string    `json:"deviceName"`
	Time          time.Time `json:"time"`
	Precipitation *float64  `json:"precipitation"`
}

// DeviceConditions is the projection returned by the device-at-date query
type DeviceConditions struct {
	Temperature         *float64 `json:"temperature"`
	AtmosphericPressure *float64 `json:"atmosphericPressure"`
	SolarRadiation      *float64 `json:"solarRadiation"`
	Precipitation       *float64 `json:"precipitation"`
}

// DeviceMaxTemperature is one group of the maximum temperature aggregation
type DeviceMaxTemperature struct {
	DeviceName  string    `json:"deviceName"`
	Temperature *float64  `json:"temperature"`
	Time        time.Time `json:"time"`
}

// UpdateResult reports how many records a write matched and changed.
// Matched == 0 means the target did not exist. Failed counts records of a
// bulk write the store rejected.
type UpdateResult struct {
	Matched  int64 `json:"matchedCount"`
	Modified int64 `json:"modifiedCount"`
	Failed   int64 `json:"failedCount,omitempty"`
}
