package db

import (
	"regexp"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var objectIDPattern = regexp.MustCompile(`^[0-9a-fA-F]{24}$`)

// NewObjectID returns a fresh 24-character hex identifier. Both store
// backends use the same format so identifiers survive a backend switch.
func NewObjectID() string {
	return primitive.NewObjectID().Hex()
}

// IsObjectID reports whether s has the 24-character hex identifier format.
func IsObjectID(s string) bool {
	return objectIDPattern.MatchString(s)
}
