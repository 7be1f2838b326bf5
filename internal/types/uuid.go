package types

import (
	"crypto/rand"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// Entity prefixes for generated identifiers
const (
	UUID_PREFIX_SUBSCRIPTION     = "subs"
	UUID_PREFIX_BILLING_RUN      = "run"
	UUID_PREFIX_BILLING_ATTEMPT  = "attempt"
	UUID_PREFIX_LIFECYCLE_CONFIG = "lconfig"
	UUID_PREFIX_CONFIG_AUDIT     = "laudit"
	UUID_PREFIX_PRICED_ENTITY    = "price"
	UUID_PREFIX_REQUEST          = "req"
)

// GenerateUUID returns a lowercase ULID suitable for use as a record ID
func GenerateUUID() string {
	return strings.ToLower(ulid.MustNew(ulid.Timestamp(time.Now().UTC()), rand.Reader).String())
}

// GenerateUUIDWithPrefix returns a prefixed ULID, e.g. "subs_01hx..."
func GenerateUUIDWithPrefix(prefix string) string {
	if prefix == "" {
		return GenerateUUID()
	}
	return fmt.Sprintf("%s_%s", prefix, GenerateUUID())
}
