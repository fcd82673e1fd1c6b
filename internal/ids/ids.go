package ids

import "github.com/segmentio/ksuid"

// New returns a fresh sortable record id.
func New() string {
	return ksuid.New().String()
}
