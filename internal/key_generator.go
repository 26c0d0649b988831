package internal

import (
	"crypto/rand"
	"fmt"

	"github.com/google/uuid"
	"github.com/lychee-technology/dataeditor"
	"github.com/oklog/ulid/v2"
)

type uuidKeyGenerator struct{}

// NewUUIDKeyGenerator returns a generator of time-ordered UUIDv7 keys.
func NewUUIDKeyGenerator() dataeditor.KeyGenerator {
	return uuidKeyGenerator{}
}

func (uuidKeyGenerator) NewKey() string {
	return uuid.Must(uuid.NewV7()).String()
}

type ulidKeyGenerator struct{}

// NewULIDKeyGenerator returns a generator of lexicographically sortable ULID keys.
func NewULIDKeyGenerator() dataeditor.KeyGenerator {
	return ulidKeyGenerator{}
}

func (ulidKeyGenerator) NewKey() string {
	return ulid.MustNew(ulid.Now(), rand.Reader).String()
}

// NewKeyGenerator resolves a configured generator name; empty means uuid.
func NewKeyGenerator(name string) (dataeditor.KeyGenerator, error) {
	switch name {
	case "", dataeditor.KeyGeneratorUUID:
		return NewUUIDKeyGenerator(), nil
	case dataeditor.KeyGeneratorULID:
		return NewULIDKeyGenerator(), nil
	default:
		return nil, fmt.Errorf("unknown key generator %q", name)
	}
}
