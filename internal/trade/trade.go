// Package trade standardizes the record and candidate types shared across the engine.
package trade

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

// Direction is the side of a trade.
type Direction string

const (
	Long  Direction = "LONG"
	Short Direction = "SHORT"
)

// Opposite returns the other side.
func (d Direction) Opposite() Direction {
	if d == Long {
		return Short
	}
	return Long
}

// Timeframe identifies a candle interval supported by the engine.
type Timeframe string

const (
	TF1m  Timeframe = "1m"
	TF5m  Timeframe = "5m"
	TF15m Timeframe = "15m"
	TF1h  Timeframe = "1h"
	TF4h  Timeframe = "4h"
	TF1d  Timeframe = "1d"
)

// Timeframes lists supported intervals in ascending granularity.
var Timeframes = []Timeframe{TF1m, TF5m, TF15m, TF1h, TF4h, TF1d}

// State tracks whether a record is still being supervised.
type State string

const (
	StateOpen   State = "OPEN"
	StateClosed State = "CLOSED"
)

// Result is the terminal outcome of a closed record.
type Result string

const (
	ResultNone    Result = ""
	ResultTP      Result = "TP"
	ResultSL      Result = "SL"
	ResultTimeout Result = "TIMEOUT"
	ResultManual  Result = "MANUAL"
)

// Params carries the exit parameters a monitor needs.
type Params struct {
	TPPercent float64 `yaml:"tp_percent" json:"tp_percent"`
	SLPercent float64 `yaml:"sl_percent" json:"sl_percent"`
	Leverage  float64 `yaml:"leverage" json:"leverage"`
}

// Candidate is a scored directional proposal that has not been admitted yet.
type Candidate struct {
	Pair        string
	Direction   Direction
	Timeframe   Timeframe
	Strategy    string
	Indicators  []string
	EntryPrice  float64
	Quantity    float64
	FundingRate float64
	TechScore   float64
	Quality     float64
	Confidence  float64
	Features    []float64
	Reasons     []string
	Params      Params
	CreatedAt   time.Time
}

// Validate reports the first structural problem with the candidate, if any.
func (c Candidate) Validate() error {
	switch {
	case c.Pair == "":
		return fmt.Errorf("candidate missing pair")
	case c.Direction != Long && c.Direction != Short:
		return fmt.Errorf("candidate has invalid direction %q", c.Direction)
	case c.Strategy == "":
		return fmt.Errorf("candidate missing strategy")
	case c.Timeframe == "":
		return fmt.Errorf("candidate missing timeframe")
	case c.EntryPrice <= 0:
		return fmt.Errorf("candidate entry price %.8f not positive", c.EntryPrice)
	case math.IsNaN(c.Quality) || math.IsInf(c.Quality, 0):
		return fmt.Errorf("candidate quality score is not finite")
	}
	return nil
}

// CombinationKey derives the dedup identity for the candidate.
func (c Candidate) CombinationKey() string {
	return CombinationKey(c.Pair, c.Direction, c.Strategy, c.Timeframe, c.Indicators)
}

// BucketKey identifies the concurrency bucket the candidate competes in.
func (c Candidate) BucketKey() string {
	return BucketKey(c.Pair, c.Timeframe, c.Direction, c.Strategy)
}

// CombinationKey builds the deterministic dedup key for an open trade.
// Indicator names are sorted so the key does not depend on evaluation order.
func CombinationKey(pair string, dir Direction, strategy string, tf Timeframe, indicators []string) string {
	names := make([]string, 0, len(indicators))
	for _, ind := range indicators {
		if ind = strings.TrimSpace(ind); ind != "" {
			names = append(names, ind)
		}
	}
	sort.Strings(names)
	joined := "no_indicators"
	if len(names) > 0 {
		joined = strings.Join(names, "_")
	}
	return fmt.Sprintf("%s_%s_%s_%s_%s", pair, dir, strategy, tf, joined)
}

// BucketKey builds the per-(pair, timeframe, direction, strategy) limit key.
func BucketKey(pair string, tf Timeframe, dir Direction, strategy string) string {
	return fmt.Sprintf("%s|%s|%s|%s", pair, tf, dir, strategy)
}

// Record is the persisted form of an admitted trade.
type Record struct {
	ID             string
	Pair           string
	Direction      Direction
	Timeframe      Timeframe
	Strategy       string
	Indicators     []string
	EntryPrice     float64
	ExitPrice      float64
	Quantity       float64
	FundingRate    float64
	TechScore      float64
	Quality        float64
	Features       []float64
	Reasons        []string
	Params         Params
	CombinationKey string
	State          State
	Result         Result
	PnLPercent     float64
	OpenedAt       time.Time
	ClosedAt       time.Time
}

// Open builds an OPEN record from an admitted candidate.
func Open(id string, c Candidate, now time.Time) Record {
	return Record{
		ID:             id,
		Pair:           c.Pair,
		Direction:      c.Direction,
		Timeframe:      c.Timeframe,
		Strategy:       c.Strategy,
		Indicators:     append([]string(nil), c.Indicators...),
		EntryPrice:     c.EntryPrice,
		Quantity:       c.Quantity,
		FundingRate:    c.FundingRate,
		TechScore:      c.TechScore,
		Quality:        c.Quality,
		Features:       append([]float64(nil), c.Features...),
		Reasons:        append([]string(nil), c.Reasons...),
		Params:         c.Params,
		CombinationKey: c.CombinationKey(),
		State:          StateOpen,
		OpenedAt:       now,
	}
}

// Close is the terminal mutation applied by the owning monitor.
type Close struct {
	Result     Result
	ExitPrice  float64
	PnLPercent float64
	ClosedAt   time.Time
}

// Rejection is the append-only log entry written when admission declines a candidate.
type Rejection struct {
	Timestamp  time.Time
	Strategy   string
	Pair       string
	Timeframe  Timeframe
	Direction  Direction
	Score      float64
	Indicators []string
	Reason     string
}
