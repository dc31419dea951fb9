// Package risk implements the RSI/ADX regime gate: a decision table over
// the indicator engine's latest snapshot, plus the cool-down state machine
// that keeps the gate closed for a fixed duration after it fires.
package risk

import (
	"sync"
	"time"
)

// Reason labels why the gate denied admission. It also doubles as the
// market-regime label reported alongside an admit decision.
type Reason string

const (
	ReasonStrongTrend      Reason = "strong trend"
	ReasonExtremeRSI       Reason = "extreme RSI under trending market"
	ReasonRSIOutOfBand     Reason = "RSI out of band"
	ReasonModerateTrend    Reason = "moderate trend, RSI controlled"
	ReasonRanging          Reason = "ranging"
	ReasonCooldownActive   Reason = "cooldown active"
	trendRSITolerance             = 5.0
)

// Decision is the gate's verdict for one tick.
type Decision struct {
	Admit           bool
	Cautious        bool
	TriggerCooldown bool
	Reason          Reason
}

// Config holds the gate's thresholds, all tunable via the bot's
// configuration.
type Config struct {
	RSIMin            float64
	RSIMax            float64
	ADXTrendThreshold float64
	ADXStrongTrend    float64
	CooldownMinutes   int
}

// DefaultConfig returns the standard thresholds: RSI band 30-70, ADX
// trend/strong-trend thresholds 25/30, 15 minute cool-down.
func DefaultConfig() Config {
	return Config{
		RSIMin:            30,
		RSIMax:            70,
		ADXTrendThreshold: 25,
		ADXStrongTrend:    30,
		CooldownMinutes:   15,
	}
}

// Gate evaluates the regime decision table and tracks cool-down state. It's
// safe for concurrent use, though the supervisor only ever calls it from one
// tick loop.
type Gate struct {
	cfg Config

	mu         sync.Mutex
	inCooldown bool
	reason     Reason
	exitAt     time.Time
}

// New returns a Gate with no active cool-down.
func New(cfg Config) *Gate {
	return &Gate{cfg: cfg}
}

// Evaluate applies the decision table to (rsi, adx) at instant now. If a
// cool-down is active and hasn't reached its exit time, it denies
// unconditionally regardless of the current indicators; on the first call at
// or after exit_at it clears the cool-down and re-evaluates fresh.
func (g *Gate) Evaluate(now time.Time, rsi, adx float64) Decision {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.inCooldown {
		if now.Before(g.exitAt) {
			return Decision{Admit: false, Reason: ReasonCooldownActive}
		}
		g.inCooldown = false
		g.reason = ""
	}

	d := decide(g.cfg, rsi, adx)
	if d.TriggerCooldown {
		g.inCooldown = true
		g.reason = d.Reason
		g.exitAt = now.Add(time.Duration(g.cfg.CooldownMinutes) * time.Minute)
	}
	return d
}

// CooldownStatus reports whether a cool-down is currently active and, if so,
// its reason and remaining duration as of now.
func (g *Gate) CooldownStatus(now time.Time) (active bool, reason Reason, remaining time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.inCooldown {
		return false, "", 0
	}
	if now.Before(g.exitAt) {
		return true, g.reason, g.exitAt.Sub(now)
	}
	return true, g.reason, 0
}

// Reset clears any active cool-down immediately, for operator intervention.
func (g *Gate) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.inCooldown = false
	g.reason = ""
}

// decide applies the ordered decision table; it holds no state of its own.
func decide(cfg Config, rsi, adx float64) Decision {
	switch {
	case adx > cfg.ADXStrongTrend:
		return Decision{Admit: false, TriggerCooldown: true, Reason: ReasonStrongTrend}

	case adx > cfg.ADXTrendThreshold:
		if rsi < cfg.RSIMin-trendRSITolerance || rsi > cfg.RSIMax+trendRSITolerance {
			return Decision{Admit: false, TriggerCooldown: true, Reason: ReasonExtremeRSI}
		}
		return Decision{Admit: true, Cautious: true, Reason: ReasonModerateTrend}

	case rsi < cfg.RSIMin || rsi > cfg.RSIMax:
		return Decision{Admit: false, TriggerCooldown: true, Reason: ReasonRSIOutOfBand}

	default:
		return Decision{Admit: true, Reason: ReasonRanging}
	}
}
