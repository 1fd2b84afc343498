package models

import "time"

// Snapshot is a catalog captured into the export database.
type Snapshot struct {
	ID      string
	Ref     string
	TakenAt time.Time
	Reviews []*Review
}
