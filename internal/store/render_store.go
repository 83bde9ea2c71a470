package store

import (
	"context"
	"time"
)

// RenderLog records one completed render for auditing and capacity
// planning.
type RenderLog struct {
	ID         string    `json:"id"`
	Identifier string    `json:"identifier"`
	Selector   string    `json:"selector"`
	Format     string    `json:"format"`
	Width      int       `json:"width"`
	Height     int       `json:"height"`
	Bytes      int64     `json:"bytes"`
	DurationMS int64     `json:"duration_ms"`
	CreatedAt  time.Time `json:"created_at"`
}

type RenderStore interface {
	Record(ctx context.Context, entry RenderLog) error
	Recent(ctx context.Context, limit int) ([]RenderLog, error)
}
