package task

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"regexp"
	"time"
)

// idRegex matches well-formed task identifiers.
var idRegex = regexp.MustCompile(`^task-\d+-[a-z0-9]+$`)

// NewID returns a process-unique, sortable task identifier of the form
// task-<unix-millis>-<8 hex chars>. The timestamp prefix makes ids sort by
// creation time; the random suffix makes collisions across processes
// vanishingly unlikely.
func NewID() string {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand only fails when the OS entropy source is broken.
		// Fall back to the nanosecond clock rather than aborting.
		return fmt.Sprintf("task-%d-%08x", time.Now().UnixMilli(), time.Now().UnixNano()&0xffffffff)
	}
	return fmt.Sprintf("task-%d-%s", time.Now().UnixMilli(), hex.EncodeToString(buf))
}

// ValidID reports whether id is a well-formed task identifier.
func ValidID(id string) bool {
	return idRegex.MatchString(id)
}
