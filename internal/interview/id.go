package interview

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

var sessionIDRegex = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// NewSessionID returns an id of the form session_YYYYMMDD_HHMMSS_<6 hex>.
func NewSessionID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
	return "session_" + now.Format("20060102_150405") + "_" + suffix
}

// ValidateSessionID rejects ids that are unsafe to embed in storage paths.
func ValidateSessionID(id string) error {
	if !sessionIDRegex.MatchString(id) {
		return fmt.Errorf("%w: malformed session id %q", ErrInvalidInput, id)
	}
	return nil
}
