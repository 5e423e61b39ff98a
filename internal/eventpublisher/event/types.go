package event

import (
	"time"

	"go-firestore-admin/internal/projection"
)

type (
	// Event carries one category distribution, or the error that ended the stream.
	Event struct {
		Distribution projection.Snapshot
		At           time.Time
		Err          error
	}

	EventWChannel chan<- Event
)
