package schedule

import (
	"strings"

	"github.com/google/uuid"
)

// IDLength is the length of generated schedule ids.
const IDLength = 8

// NewID returns a short random schedule id.
// Uniqueness within a table is enforced by the manager, not by the format.
func NewID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:IDLength]
}
