package model

import "time"

// RandomValue is the integer returned by one fetch. It is not persisted.
type RandomValue struct {
	Value     int64
	FetchedAt time.Time
}
