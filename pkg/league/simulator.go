package league

import (
	"fmt"
	"math/rand/v2"
	"sort"
	"sync"
	"time"

	"github.com/richard-senior/poolleague/internal/logger"
)

// SimulationRequest describes one Monte Carlo run over the rest of a season.
// WhatIf results are treated as already played. Zero Trials or Workers use the
// engine configuration.
type SimulationRequest struct {
	Division  string         `json:"division"`
	Overrides SquadOverrides `json:"overrides,omitempty"`
	TopN      int            `json:"topN,omitempty"`
	WhatIf    []Result       `json:"whatIf,omitempty"`
	Seed      uint64         `json:"seed"`
	Trials    int            `json:"trials,omitempty"`
	Workers   int            `json:"workers,omitempty"`
}

// TeamProjection is one team's simulated end of season.
// Positions[i] is the probability of finishing in position i+1.
type TeamProjection struct {
	Team             string    `json:"team"`
	Strength         float64   `json:"strength"`
	CurrentPosition  int       `json:"currentPosition"`
	CurrentPoints    int       `json:"currentPoints"`
	ExpectedPoints   float64   `json:"expectedPoints"`
	ExpectedPosition float64   `json:"expectedPosition"`
	Positions        []float64 `json:"positions"`
	Title            float64   `json:"title"`
	Promotion        float64   `json:"promotion"`
	Relegation       float64   `json:"relegation"`
}

// FinishWithin is the probability of finishing in the top places positions
func (p TeamProjection) FinishWithin(places int) float64 {
	sum := 0.0
	for i := 0; i < places && i < len(p.Positions); i++ {
		sum += p.Positions[i]
	}
	return sum
}

// FixtureProjection is the simulated outcome distribution of one remaining fixture
type FixtureProjection struct {
	Fixture
	PFrame   float64 `json:"pFrame"`
	PHomeWin float64 `json:"pHomeWin"`
	PDraw    float64 `json:"pDraw"`
	PAwayWin float64 `json:"pAwayWin"`
}

// SimulationResult aggregates every trial of a season simulation.
// Teams are ordered by expected finishing position.
type SimulationResult struct {
	Division string              `json:"division"`
	Trials   int                 `json:"trials"`
	Seed     uint64              `json:"seed"`
	Teams    []TeamProjection    `json:"teams"`
	Fixtures []FixtureProjection `json:"fixtures"`
}

// Team looks up one team's projection
func (r SimulationResult) Team(name string) (TeamProjection, bool) {
	for _, t := range r.Teams {
		if t.Team == name {
			return t, true
		}
	}
	return TeamProjection{}, false
}

// simFixture is a remaining fixture with its scoreline distribution precomputed
type simFixture struct {
	Fixture
	home, away int
	pFrame     float64
	lines      []Scoreline
	cdf        []float64
}

// season is the fixed input of every trial: realized table plus remaining fixtures
type season struct {
	division string
	teams    []string
	strength map[string]float64
	base     *table
	fixtures []simFixture
}

// prepareSeason resolves fixtures against realized and what-if results and
// precomputes each remaining fixture's scoreline distribution
func (e *Engine) prepareSeason(division string, overrides SquadOverrides, topN int, whatIf []Result, ds DataSources) (*season, error) {
	ratings, err := e.AdjustedStrength(division, overrides, topN, ds)
	if err != nil {
		return nil, err
	}
	teams := divisionTeams(ds, division)
	results := divisionResults(ds, division)
	for _, r := range whatIf {
		if r.Division != "" && r.Division != division {
			return nil, fmt.Errorf("what-if result %s v %s belongs to division %q, not %q", r.Home, r.Away, r.Division, division)
		}
		if _, ok := ratings.Strength[r.Home]; !ok {
			return nil, fmt.Errorf("what-if result names unknown team %q", r.Home)
		}
		if _, ok := ratings.Strength[r.Away]; !ok {
			return nil, fmt.Errorf("what-if result names unknown team %q", r.Away)
		}
		if r.Home == r.Away {
			return nil, fmt.Errorf("what-if result has %q playing itself", r.Home)
		}
		if r.HomeScore < 0 || r.AwayScore < 0 {
			return nil, fmt.Errorf("what-if result %s v %s has a negative score %d-%d", r.Home, r.Away, r.HomeScore, r.AwayScore)
		}
		r.Division = division
		results = append(results, r)
	}

	s := &season{
		division: division,
		teams:    teams,
		strength: ratings.Strength,
		base:     newTable(e.cfg, teams),
	}
	for _, r := range results {
		s.base.record(r.Home, r.Away, r.HomeScore, r.AwayScore)
	}
	for _, f := range remainingFixtures(divisionFixtures(ds, division), results) {
		p := e.PredictFrame(ratings.Strength[f.Home]+e.cfg.HomeAdvantage, ratings.Strength[f.Away])
		lines := e.MatchDistribution(p)
		s.fixtures = append(s.fixtures, simFixture{
			Fixture: f,
			home:    s.base.slot(f.Home),
			away:    s.base.slot(f.Away),
			pFrame:  p,
			lines:   lines,
			cdf:     cumulative(lines, ""),
		})
	}
	return s, nil
}

// remainingFixtures returns the fixtures no result accounts for. A result first
// matches a fixture with the same teams on the same day, then any unmatched
// fixture with the same teams (rearranged matches).
func remainingFixtures(fixtures []Fixture, results []Result) []Fixture {
	used := make([]bool, len(results))
	matched := make([]bool, len(fixtures))
	sameDay := func(a, b time.Time) bool {
		ay, am, ad := a.Date()
		by, bm, bd := b.Date()
		return ay == by && am == bm && ad == bd
	}
	for pass := 0; pass < 2; pass++ {
		for i, f := range fixtures {
			if matched[i] {
				continue
			}
			for j, r := range results {
				if used[j] || r.Home != f.Home || r.Away != f.Away {
					continue
				}
				if pass == 0 && !sameDay(r.Date, f.Date) {
					continue
				}
				used[j] = true
				matched[i] = true
				break
			}
		}
	}
	var out []Fixture
	for i, f := range fixtures {
		if !matched[i] {
			out = append(out, f)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		if out[i].Home != out[j].Home {
			return out[i].Home < out[j].Home
		}
		return out[i].Away < out[j].Away
	})
	return out
}

// cumulative builds a CDF over the lines, restricted to one outcome when only is set
func cumulative(lines []Scoreline, only Winner) []float64 {
	cdf := make([]float64, len(lines))
	total := 0.0
	for i, l := range lines {
		if only == "" || l.Outcome() == only {
			total += l.P
		}
		cdf[i] = total
	}
	if total <= 0 {
		// the outcome underflowed: put all the mass on its first scoreline
		hit := false
		for i, l := range lines {
			if !hit && l.Outcome() == only {
				hit = true
			}
			if hit {
				cdf[i] = 1
			}
		}
		return cdf
	}
	for i := range cdf {
		cdf[i] /= total
	}
	return cdf
}

// sample maps a uniform draw onto a scoreline
func sample(lines []Scoreline, cdf []float64, u float64) Scoreline {
	i := sort.Search(len(cdf), func(i int) bool { return cdf[i] > u })
	if i >= len(lines) {
		i = len(lines) - 1
	}
	return lines[i]
}

// tally is a worker's partial sums
type tally struct {
	positions [][]int64
	points    []int64
	outcomes  [][3]int64
}

func newTally(teams, fixtures int) *tally {
	t := &tally{
		positions: make([][]int64, teams),
		points:    make([]int64, teams),
		outcomes:  make([][3]int64, fixtures),
	}
	for i := range t.positions {
		t.positions[i] = make([]int64, teams)
	}
	return t
}

func (t *tally) merge(o *tally) {
	for i := range t.positions {
		for p := range t.positions[i] {
			t.positions[i][p] += o.positions[i][p]
		}
		t.points[i] += o.points[i]
	}
	for i := range t.outcomes {
		for k := 0; k < 3; k++ {
			t.outcomes[i][k] += o.outcomes[i][k]
		}
	}
}

// play runs trials [from, to) into a fresh tally. Trial t always draws from the
// stream PCG(seed, t) and consumes one uniform per remaining fixture, so a trial's
// outcome depends only on the seed, its index and any forced winners.
func (e *Engine) play(s *season, seed uint64, from, to int, forced map[int][]float64) *tally {
	n := len(s.base.rows)
	acc := newTally(n, len(s.fixtures))
	rows := make([]StandingEntry, n)
	order := make([]int, n)
	pcg := rand.NewPCG(seed, 0)
	rng := rand.New(pcg)
	for t := from; t < to; t++ {
		pcg.Seed(seed, uint64(t))
		copy(rows, s.base.rows)
		for i := range s.fixtures {
			f := &s.fixtures[i]
			cdf := f.cdf
			if c, ok := forced[i]; ok {
				cdf = c
			}
			line := sample(f.lines, cdf, rng.Float64())
			addScore(e.cfg, rows, f.home, f.away, line.Home, line.Away)
			switch line.Outcome() {
			case WinnerHome:
				acc.outcomes[i][0]++
			case WinnerDraw:
				acc.outcomes[i][1]++
			default:
				acc.outcomes[i][2]++
			}
		}
		rank(rows, order)
		for pos, ti := range order {
			acc.positions[ti][pos]++
		}
		for ti := range rows {
			acc.points[ti] += int64(rows[ti].Points)
		}
	}
	return acc
}

// run splits trials into contiguous ranges, one per worker, and merges the partial sums
func (e *Engine) run(s *season, seed uint64, trials, workers int, forced map[int][]float64) *tally {
	if workers > trials {
		workers = trials
	}
	if workers < 1 {
		workers = 1
	}
	parts := make([]*tally, workers)
	chunk := (trials + workers - 1) / workers
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		from := w * chunk
		to := min(from+chunk, trials)
		wg.Add(1)
		go func(w, from, to int) {
			defer wg.Done()
			parts[w] = e.play(s, seed, from, to, forced)
		}(w, from, to)
	}
	wg.Wait()

	total := newTally(len(s.base.rows), len(s.fixtures))
	for _, p := range parts {
		total.merge(p)
	}
	return total
}

// Simulate plays the remaining fixtures of a division many times and reports
// each team's finishing distribution and each fixture's outcome frequencies.
// Identical requests and data give bit-identical results whatever the worker count.
func (e *Engine) Simulate(req SimulationRequest, ds DataSources) (SimulationResult, error) {
	s, err := e.prepareSeason(req.Division, req.Overrides, req.TopN, req.WhatIf, ds)
	if err != nil {
		return SimulationResult{}, err
	}
	trials := req.Trials
	if trials <= 0 {
		trials = e.cfg.SeasonTrials
	}
	if err := e.checkTrials(trials); err != nil {
		return SimulationResult{}, err
	}
	workers := req.Workers
	if workers <= 0 {
		workers = e.cfg.Workers
	}

	start := time.Now()
	acc := e.run(s, req.Seed, trials, workers, nil)
	logger.Debug("Season simulation finished:", req.Division, "trials", trials, "fixtures", len(s.fixtures),
		"workers", workers, "elapsed", time.Since(start).String())
	return e.project(s, acc, req.Seed, trials), nil
}

// checkTrials bounds the work a single request can ask for
func (e *Engine) checkTrials(trials int) error {
	if trials > e.cfg.MaxTrials {
		return fmt.Errorf("%d trials requested, the limit is %d", trials, e.cfg.MaxTrials)
	}
	return nil
}

// project reduces counts to probabilities
func (e *Engine) project(s *season, acc *tally, seed uint64, trials int) SimulationResult {
	n := len(s.base.rows)
	current := s.base.standings()
	currentPos := map[string]int{}
	for _, row := range current {
		currentPos[row.Team] = row.Position
	}

	res := SimulationResult{Division: s.division, Trials: trials, Seed: seed}
	ft := float64(trials)
	for ti, row := range s.base.rows {
		p := TeamProjection{
			Team:            row.Team,
			Strength:        s.strength[row.Team],
			CurrentPosition: currentPos[row.Team],
			CurrentPoints:   row.Points,
			ExpectedPoints:  float64(acc.points[ti]) / ft,
			Positions:       make([]float64, n),
		}
		for pos, c := range acc.positions[ti] {
			p.Positions[pos] = float64(c) / ft
			p.ExpectedPosition += float64(pos+1) * p.Positions[pos]
		}
		p.Title = p.Positions[0]
		p.Promotion = p.FinishWithin(e.cfg.PromotionPlaces)
		for pos := n - e.cfg.RelegationPlaces; pos < n; pos++ {
			if pos >= 0 {
				p.Relegation += p.Positions[pos]
			}
		}
		res.Teams = append(res.Teams, p)
	}
	sort.SliceStable(res.Teams, func(i, j int) bool {
		if res.Teams[i].ExpectedPosition != res.Teams[j].ExpectedPosition {
			return res.Teams[i].ExpectedPosition < res.Teams[j].ExpectedPosition
		}
		return res.Teams[i].Team < res.Teams[j].Team
	})

	for i, f := range s.fixtures {
		o := acc.outcomes[i]
		res.Fixtures = append(res.Fixtures, FixtureProjection{
			Fixture:  f.Fixture,
			PFrame:   f.pFrame,
			PHomeWin: float64(o[0]) / ft,
			PDraw:    float64(o[1]) / ft,
			PAwayWin: float64(o[2]) / ft,
		})
	}
	return res
}
