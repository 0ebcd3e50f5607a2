package pipeline

import (
	"time"

	"git.home.luguber.info/inful/docdrift/internal/config"
)

// Stage names the steps of one run, in execution order.
type Stage string

const (
	StageQueued     Stage = "queued"
	StageFetching   Stage = "fetching"
	StageDetecting  Stage = "detecting"
	StageParsing    Stage = "parsing"
	StageScoring    Stage = "scoring"
	StageGenerating Stage = "generating"
	StageDrifting   Stage = "drifting"
	StageStoring    Stage = "storing"
	StageDelivering Stage = "delivering"
	StageDone       Stage = "done"
	StageFailed     Stage = "failed"
)

// Timeouts are the per-stage deadlines. Cancellation is cooperative: a
// stage that overruns is abandoned at its next context check.
type Timeouts struct {
	Fetch    time.Duration
	Detect   time.Duration
	Parse    time.Duration
	Score    time.Duration
	Generate time.Duration
	Drift    time.Duration
	Store    time.Duration
	Deliver  time.Duration
}

// DefaultTimeouts returns the stock deadlines: clone and store get the
// long ones, everything else a minute.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Fetch:    2 * time.Minute,
		Detect:   time.Minute,
		Parse:    time.Minute,
		Score:    time.Minute,
		Generate: time.Minute,
		Drift:    time.Minute,
		Store:    5 * time.Minute,
		Deliver:  2 * time.Minute,
	}
}

// TimeoutsFrom overlays configured duration strings onto the defaults;
// unparsable or empty values keep the default.
func TimeoutsFrom(cfg config.StageTimeouts) Timeouts {
	t := DefaultTimeouts()
	overlay(&t.Fetch, cfg.Fetch)
	overlay(&t.Detect, cfg.Detect)
	overlay(&t.Parse, cfg.Parse)
	overlay(&t.Score, cfg.Score)
	overlay(&t.Generate, cfg.Generate)
	overlay(&t.Drift, cfg.Drift)
	overlay(&t.Store, cfg.Store)
	overlay(&t.Deliver, cfg.Deliver)
	return t
}

func overlay(dst *time.Duration, raw string) {
	if raw == "" {
		return
	}
	if d, err := time.ParseDuration(raw); err == nil && d > 0 {
		*dst = d
	}
}

func (t Timeouts) forStage(stage Stage) time.Duration {
	switch stage {
	case StageFetching:
		return t.Fetch
	case StageDetecting:
		return t.Detect
	case StageParsing:
		return t.Parse
	case StageScoring:
		return t.Score
	case StageGenerating:
		return t.Generate
	case StageDrifting:
		return t.Drift
	case StageStoring:
		return t.Store
	case StageDelivering:
		return t.Deliver
	default:
		return time.Minute
	}
}
