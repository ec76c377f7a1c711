package repository

import (
	"context"
	"time"

	"FinSignal/internal/domain/models"
)

// CandleHistory provides read-only access to stored minute candles, used to
// warm the aggregator on start.
type CandleHistory interface {
	LatestCandles(ctx context.Context, symbol string, n int) ([]models.Candle, error)
	CandlesBetween(ctx context.Context, symbol string, from, to time.Time) ([]models.Candle, error)
}
