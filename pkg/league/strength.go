package league

import (
	"math"
	"sort"
)

// SquadOverride is a hypothetical roster change for one team.
// Use Add and Remove to edit it so a player is never in both lists.
type SquadOverride struct {
	Added   []string `json:"added,omitempty"`
	Removed []string `json:"removed,omitempty"`
}

// SquadOverrides maps team name to its override
type SquadOverrides map[string]SquadOverride

// Add signs player. Adding a player that was marked as removed cancels the removal.
func (o SquadOverride) Add(player string) SquadOverride {
	if contains(o.Removed, player) {
		return SquadOverride{Added: clone(o.Added), Removed: without(o.Removed, player)}
	}
	out := SquadOverride{Added: clone(o.Added), Removed: clone(o.Removed)}
	if !contains(out.Added, player) {
		out.Added = append(out.Added, player)
	}
	return out
}

// Remove drops player. Removing a player that was marked as added cancels the addition.
func (o SquadOverride) Remove(player string) SquadOverride {
	if contains(o.Added, player) {
		return SquadOverride{Added: without(o.Added, player), Removed: clone(o.Removed)}
	}
	out := SquadOverride{Added: clone(o.Added), Removed: clone(o.Removed)}
	if !contains(out.Removed, player) {
		out.Removed = append(out.Removed, player)
	}
	return out
}

// Normalize sorts and de-duplicates both lists. A player present in both lists
// is a net no-op whichever edit came first, so it is dropped from both.
func (o SquadOverride) Normalize() SquadOverride {
	added := dedupe(o.Added)
	removed := dedupe(o.Removed)
	var out SquadOverride
	for _, p := range added {
		if !contains(removed, p) {
			out.Added = append(out.Added, p)
		}
	}
	for _, p := range removed {
		if !contains(added, p) {
			out.Removed = append(out.Removed, p)
		}
	}
	return out
}

// IsEmpty reports whether the override changes nothing once normalized
func (o SquadOverride) IsEmpty() bool {
	n := o.Normalize()
	return len(n.Added) == 0 && len(n.Removed) == 0
}

// apply returns the modified roster
func (o SquadOverride) apply(roster []string) []string {
	n := o.Normalize()
	var out []string
	for _, p := range roster {
		if !contains(n.Removed, p) && !contains(out, p) {
			out = append(out, p)
		}
	}
	for _, p := range n.Added {
		if !contains(out, p) {
			out = append(out, p)
		}
	}
	return out
}

// normalized drops empty overrides and normalizes the rest
func (s SquadOverrides) normalized() SquadOverrides {
	out := SquadOverrides{}
	for team, o := range s {
		if n := o.Normalize(); !n.IsEmpty() {
			out[team] = n
		}
	}
	return out
}

// Ratings is the strength of every team in a division.
// Defaulted lists teams with no frames, rated at Config.DefaultStrength.
type Ratings struct {
	Division  string             `json:"division"`
	Strength  map[string]float64 `json:"strength"`
	Defaulted []string           `json:"defaulted,omitempty"`
}

// Err returns an *InsufficientDataError when any team was given the default rating
func (r Ratings) Err() error {
	if len(r.Defaulted) == 0 {
		return nil
	}
	return &InsufficientDataError{Division: r.Division, Teams: r.Defaulted}
}

// CalcTeamStrength rates each team by its smoothed frame win rate against the
// rest of the division, clamped to the configured bounds. A team with no frames
// gets the default strength and is listed in Ratings.Defaulted.
func (e *Engine) CalcTeamStrength(division string, ds DataSources) (Ratings, error) {
	if _, err := requireDivision(ds, division); err != nil {
		return Ratings{}, err
	}
	won := map[string]int{}
	played := map[string]int{}
	for _, r := range divisionResults(ds, division) {
		frames := r.HomeScore + r.AwayScore
		won[r.Home] += r.HomeScore
		won[r.Away] += r.AwayScore
		played[r.Home] += frames
		played[r.Away] += frames
	}

	ratings := Ratings{Division: division, Strength: map[string]float64{}}
	for _, team := range divisionTeams(ds, division) {
		if played[team] == 0 {
			ratings.Strength[team] = e.cfg.DefaultStrength
			ratings.Defaulted = append(ratings.Defaulted, team)
			continue
		}
		rate := (float64(won[team]) + e.cfg.PriorFrames) / (float64(played[team]) + 2*e.cfg.PriorFrames)
		ratings.Strength[team] = e.clampStrength(rate)
	}
	sort.Strings(ratings.Defaulted)
	return ratings, nil
}

// CalcStrengthAdjustments returns the strength delta each override produces.
// A team's squad rating is the mean of its top-N players by frame win rate
// (ties broken by name); the delta is the modified squad rating minus the original.
// Players without frames are rated at the division's average player win rate.
// topN <= 0 uses Config.TopN.
func (e *Engine) CalcStrengthAdjustments(division string, overrides SquadOverrides, topN int, ds DataSources) (map[string]float64, error) {
	if _, err := requireDivision(ds, division); err != nil {
		return nil, err
	}
	if topN <= 0 {
		topN = e.cfg.TopN
	}
	deltas := map[string]float64{}
	overrides = overrides.normalized()
	if len(overrides) == 0 {
		return deltas, nil
	}

	teams := divisionTeams(ds, division)
	rosters := ds.Rosters()
	stats := ds.PlayerStats()
	fallback := e.divisionPlayerAverage(teams, rosters, stats)
	rate := func(player string) float64 {
		if r, ok := stats[player].WinRate(); ok {
			return r
		}
		return fallback
	}

	for _, team := range teams {
		o, ok := overrides[team]
		if !ok {
			continue
		}
		roster := rosters[team]
		before := topNAverage(roster, topN, rate, fallback)
		after := topNAverage(o.apply(roster), topN, rate, fallback)
		deltas[team] = e.cfg.AdjustmentScale * (after - before)
	}
	return deltas, nil
}

// AdjustedStrength returns base ratings with squad override deltas applied
func (e *Engine) AdjustedStrength(division string, overrides SquadOverrides, topN int, ds DataSources) (Ratings, error) {
	ratings, err := e.CalcTeamStrength(division, ds)
	if err != nil {
		return Ratings{}, err
	}
	deltas, err := e.CalcStrengthAdjustments(division, overrides, topN, ds)
	if err != nil {
		return Ratings{}, err
	}
	for team, d := range deltas {
		if d != 0 {
			ratings.Strength[team] = e.clampStrength(ratings.Strength[team] + d)
		}
	}
	return ratings, nil
}

// divisionPlayerAverage is the mean win rate of every rated player on the division's rosters
func (e *Engine) divisionPlayerAverage(teams []string, rosters map[string][]string, stats map[string]PlayerStats) float64 {
	sum, n := 0.0, 0
	seen := map[string]bool{}
	for _, team := range teams {
		for _, p := range rosters[team] {
			if seen[p] {
				continue
			}
			seen[p] = true
			if r, ok := stats[p].WinRate(); ok {
				sum += r
				n++
			}
		}
	}
	if n == 0 {
		return e.cfg.DefaultStrength
	}
	return sum / float64(n)
}

// topNAverage averages the n best players, fewer when the squad is smaller.
// An empty squad is rated at the fallback.
func topNAverage(players []string, n int, rate func(string) float64, fallback float64) float64 {
	if len(players) == 0 {
		return fallback
	}
	type rated struct {
		name   string
		rating float64
	}
	squad := make([]rated, len(players))
	for i, p := range players {
		squad[i] = rated{name: p, rating: rate(p)}
	}
	sort.Slice(squad, func(i, j int) bool {
		if squad[i].rating != squad[j].rating {
			return squad[i].rating > squad[j].rating
		}
		return squad[i].name < squad[j].name
	})
	if n > len(squad) {
		n = len(squad)
	}
	sum := 0.0
	for _, p := range squad[:n] {
		sum += p.rating
	}
	return sum / float64(n)
}

func (e *Engine) clampStrength(s float64) float64 {
	if math.IsNaN(s) {
		return e.cfg.DefaultStrength
	}
	return math.Min(e.cfg.MaxStrength, math.Max(e.cfg.MinStrength, s))
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func without(list []string, s string) []string {
	var out []string
	for _, v := range list {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}

func clone(list []string) []string {
	if list == nil {
		return nil
	}
	return append([]string(nil), list...)
}

func dedupe(list []string) []string {
	var out []string
	for _, v := range list {
		if v != "" && !contains(out, v) {
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}
