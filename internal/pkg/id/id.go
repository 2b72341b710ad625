package id

import (
	"crypto/rand"

	"github.com/oklog/ulid/v2"
)

// New generates a new ULID string. ULIDs are lexicographically sortable by
// creation time, safe as DynamoDB partition keys, and contain no '.' so they
// can prefix a refresh token.
func New() string {
	return ulid.MustNew(ulid.Now(), rand.Reader).String()
}
