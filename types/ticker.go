package types

import "time"

// Ticker maps wall clock time onto fixed-duration ticks counted from genesis.
type Ticker struct {
	TickDuration time.Duration
	Genesis      time.Time
}

func NewTicker(tickDuration time.Duration, genesis time.Time) Ticker {
	return Ticker{TickDuration: tickDuration, Genesis: genesis}
}

// TickAt returns the tick containing t. Times before genesis are tick 0.
func (t Ticker) TickAt(at time.Time) Tick {
	if t.TickDuration <= 0 || at.Before(t.Genesis) {
		return 0
	}
	return Tick(at.Sub(t.Genesis) / t.TickDuration)
}

func (t Ticker) Current() Tick {
	return t.TickAt(time.Now())
}

// TickStart is the first instant of tick.
func (t Ticker) TickStart(tick Tick) time.Time {
	return t.Genesis.Add(time.Duration(tick) * t.TickDuration)
}

// TickEnd is the first instant after tick.
func (t Ticker) TickEnd(tick Tick) time.Time {
	return t.TickStart(tick + 1)
}
