package league

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/richard-senior/poolleague/internal/logger"
)

// ImportanceRequest asks how much each remaining fixture matters to Team.
// The target metric is the probability of Team finishing within TargetPlaces
// (zero uses Config.PromotionPlaces). WhatIf results are applied to both
// branches of every comparison.
type ImportanceRequest struct {
	Division     string         `json:"division"`
	Team         string         `json:"team"`
	Overrides    SquadOverrides `json:"overrides,omitempty"`
	TopN         int            `json:"topN,omitempty"`
	WhatIf       []Result       `json:"whatIf,omitempty"`
	Seed         uint64         `json:"seed"`
	Trials       int            `json:"trials,omitempty"`
	TargetPlaces int            `json:"targetPlaces,omitempty"`
}

// withDefaults fills zero fields from the configuration
func (r ImportanceRequest) withDefaults(cfg Config) ImportanceRequest {
	if r.TopN <= 0 {
		r.TopN = cfg.TopN
	}
	if r.Trials <= 0 {
		r.Trials = cfg.SeasonTrials
	}
	if r.TargetPlaces <= 0 {
		r.TargetPlaces = max(cfg.PromotionPlaces, 1)
	}
	return r
}

// CalcFixtureImportance runs the season twice per remaining fixture, once with the
// home side forced to win and once with the away side forced to win, both from
// the same seed. Impact is the absolute change in the team's target probability.
// For the team's own fixtures the two branches are its win and its loss.
// Entries are ordered by impact, largest first.
func (e *Engine) CalcFixtureImportance(req ImportanceRequest, ds DataSources) ([]FixtureImportance, error) {
	req = req.withDefaults(e.cfg)
	if err := e.checkTrials(req.Trials); err != nil {
		return nil, err
	}
	s, err := e.prepareSeason(req.Division, req.Overrides, req.TopN, req.WhatIf, ds)
	if err != nil {
		return nil, err
	}
	teamIdx, ok := s.base.index[req.Team]
	if !ok {
		return nil, fmt.Errorf("team %q is not in division %q", req.Team, req.Division)
	}
	metric := func(acc *tally) float64 {
		var hits int64
		for pos := 0; pos < req.TargetPlaces && pos < len(acc.positions[teamIdx]); pos++ {
			hits += acc.positions[teamIdx][pos]
		}
		return float64(hits) / float64(req.Trials)
	}

	start := time.Now()
	baseline := metric(e.run(s, req.Seed, req.Trials, e.cfg.Workers, nil))

	out := make([]FixtureImportance, len(s.fixtures))
	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < min(e.cfg.Workers, max(len(s.fixtures), 1)); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				f := &s.fixtures[i]
				ifHome := metric(e.run(s, req.Seed, req.Trials, 1, map[int][]float64{i: cumulative(f.lines, WinnerHome)}))
				ifAway := metric(e.run(s, req.Seed, req.Trials, 1, map[int][]float64{i: cumulative(f.lines, WinnerAway)}))
				out[i] = FixtureImportance{
					Division:     req.Division,
					Date:         f.Date,
					Home:         f.Home,
					Away:         f.Away,
					InvolvesTeam: f.Home == req.Team || f.Away == req.Team,
					Baseline:     baseline,
					IfHomeWin:    ifHome,
					IfAwayWin:    ifAway,
					Impact:       math.Abs(ifHome - ifAway),
				}
			}
		}()
	}
	for i := range s.fixtures {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Impact != out[j].Impact {
			return out[i].Impact > out[j].Impact
		}
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		if out[i].Home != out[j].Home {
			return out[i].Home < out[j].Home
		}
		return out[i].Away < out[j].Away
	})
	logger.Debug("Fixture importance finished:", req.Division, req.Team, "fixtures", len(out),
		"trials", req.Trials, "elapsed", time.Since(start).String())
	return out, nil
}

// ImportanceAnalyzer is CalcFixtureImportance behind a content-addressed cache
type ImportanceAnalyzer struct {
	engine *Engine
	cache  *ImportanceCache
}

// NewImportanceAnalyzer returns an analyzer caching up to Config.CacheEntries results
func NewImportanceAnalyzer(e *Engine) *ImportanceAnalyzer {
	return &ImportanceAnalyzer{engine: e, cache: NewImportanceCache(e.cfg.CacheEntries)}
}

// Cache exposes the analyzer's cache
func (a *ImportanceAnalyzer) Cache() *ImportanceCache {
	return a.cache
}

// CalcFixtureImportance returns a cached analysis when the request, the engine
// configuration, the division's data and the stats of every overridden player
// are all unchanged
func (a *ImportanceAnalyzer) CalcFixtureImportance(req ImportanceRequest, ds DataSources) ([]FixtureImportance, error) {
	if _, err := requireDivision(ds, req.Division); err != nil {
		return nil, err
	}
	key := ImportanceKey(req, a.engine.cfg, overrideFingerprint(ds, req.Division, req.Overrides))
	if v, ok := a.cache.Get(key); ok {
		logger.Debug("Fixture importance cache hit:", req.Division, req.Team)
		return v, nil
	}
	v, err := a.engine.CalcFixtureImportance(req, ds)
	if err != nil {
		return nil, err
	}
	a.cache.Put(key, v)
	return v, nil
}
