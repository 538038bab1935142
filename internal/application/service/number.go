package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/garyjia/billing-engine/internal/application/port"
	"github.com/google/uuid"
)

// UUIDNumberGenerator issues numbers of the form PREFIX-YYYYMM-XXXXXXXX,
// where the suffix is taken from a random UUID.
type UUIDNumberGenerator struct {
	prefix string
	now    func() time.Time
}

// NewNumberGenerator creates a generator using prefix (default "INV")
func NewNumberGenerator(prefix string) *UUIDNumberGenerator {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "INV"
	}
	return &UUIDNumberGenerator{prefix: prefix, now: time.Now}
}

// Next returns a fresh candidate number
func (g *UUIDNumberGenerator) Next() string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("%s-%s-%s", g.prefix, g.now().UTC().Format("200601"), suffix)
}

var _ port.NumberGenerator = (*UUIDNumberGenerator)(nil)
