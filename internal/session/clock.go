package session

import "time"

// Ticker is a cancelable periodic tick source. The countdown is driven
// by whoever owns the session's event loop, so the tick channel and the
// user input channel can be selected over on one timeline.
type Ticker interface {
	Chan() <-chan time.Time
	Stop()
}

// TickerFactory builds a ticker firing at the given interval.
type TickerFactory func(interval time.Duration) Ticker

// NewTicker is the real-time TickerFactory backed by time.Ticker.
func NewTicker(interval time.Duration) Ticker {
	return &realTicker{ticker: time.NewTicker(interval)}
}

type realTicker struct {
	ticker *time.Ticker
}

func (t *realTicker) Chan() <-chan time.Time { return t.ticker.C }

func (t *realTicker) Stop() { t.ticker.Stop() }
