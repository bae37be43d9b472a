package repo

import (
	"strings"

	"github.com/google/uuid"
)

const RegistrationPrefix = "CACHE2K25_"

// NewRegistrationID returns the prefix followed by 12 upper-case hex characters
// of a random UUID.
func NewRegistrationID() string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return RegistrationPrefix + strings.ToUpper(hex[:12])
}
