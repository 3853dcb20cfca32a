// Package idgen mints replay session ids.
package idgen

import (
	"fmt"
	"strconv"
	"time"

	nanoid "github.com/matoous/go-nanoid/v2"
)

// Prefix marks ids minted by fleetreplay.
const Prefix = "fr-"

// alphabet is lowercase and omits 0, 1, i, l and o.
const alphabet = "23456789abcdefghjkmnpqrstuvwxyz"

// size is the length of the random part of an id.
const size = 12

// New returns an id such as "fr-k3m9q2x7hd4p".
func New() (string, error) {
	suffix, err := nanoid.Generate(alphabet, size)
	if err != nil {
		return "", fmt.Errorf("generating session id: %w", err)
	}
	return Prefix + suffix, nil
}

// NewOrClock is New, falling back to a base-36 timestamp suffix when the
// random source fails.
func NewOrClock(now time.Time) string {
	if id, err := New(); err == nil {
		return id
	}
	return Prefix + strconv.FormatInt(now.UnixNano(), 36)
}

// Valid reports whether id has the shape New produces.
func Valid(id string) bool {
	if len(id) != len(Prefix)+size || id[:len(Prefix)] != Prefix {
		return false
	}
	for _, r := range id[len(Prefix):] {
		if !isAlphabet(r) {
			return false
		}
	}
	return true
}

func isAlphabet(r rune) bool {
	switch {
	case r >= '2' && r <= '9':
		return true
	case r >= 'a' && r <= 'z':
		return r != 'i' && r != 'l' && r != 'o'
	}
	return false
}
