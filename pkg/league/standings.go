package league

import (
	"sort"
)

// table accumulates standings rows. The simulator clones a table of realized
// results once per trial and adds simulated fixtures to it, so a simulated
// season and CalcStandings share one scoring and ordering rule.
type table struct {
	cfg   Config
	index map[string]int
	rows  []StandingEntry
}

func newTable(cfg Config, teams []string) *table {
	t := &table{
		cfg:   cfg,
		index: make(map[string]int, len(teams)),
		rows:  make([]StandingEntry, 0, len(teams)),
	}
	for _, team := range teams {
		t.slot(team)
	}
	return t
}

// slot returns the row index of team, adding a row when the team is new
func (t *table) slot(team string) int {
	if i, ok := t.index[team]; ok {
		return i
	}
	t.index[team] = len(t.rows)
	t.rows = append(t.rows, StandingEntry{Team: team})
	return len(t.rows) - 1
}

func (t *table) record(home, away string, homeScore, awayScore int) {
	addScore(t.cfg, t.rows, t.slot(home), t.slot(away), homeScore, awayScore)
}

// addScore applies one match to rows h and a
func addScore(cfg Config, rows []StandingEntry, h, a, homeScore, awayScore int) {
	hr, ar := &rows[h], &rows[a]
	hr.Played++
	ar.Played++
	hr.FramesFor += homeScore
	hr.FramesAgainst += awayScore
	ar.FramesFor += awayScore
	ar.FramesAgainst += homeScore
	hr.Difference += homeScore - awayScore
	ar.Difference += awayScore - homeScore
	hr.Points += homeScore * cfg.PointsPerFrame
	ar.Points += awayScore * cfg.PointsPerFrame
	switch {
	case homeScore > awayScore:
		hr.Won++
		ar.Lost++
		hr.Points += cfg.PointsForWin
		ar.Points += cfg.PointsForLoss
	case awayScore > homeScore:
		ar.Won++
		hr.Lost++
		ar.Points += cfg.PointsForWin
		hr.Points += cfg.PointsForLoss
	default:
		hr.Drawn++
		ar.Drawn++
		hr.Points += cfg.PointsForDraw
		ar.Points += cfg.PointsForDraw
	}
}

// ranksAbove is the table order: points, frame difference, wins, then name
func ranksAbove(a, b *StandingEntry) bool {
	if a.Points != b.Points {
		return a.Points > b.Points
	}
	if a.Difference != b.Difference {
		return a.Difference > b.Difference
	}
	if a.Won != b.Won {
		return a.Won > b.Won
	}
	return a.Team < b.Team
}

// rank fills order with row indices sorted into table order
func rank(rows []StandingEntry, order []int) {
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(i, j int) bool {
		return ranksAbove(&rows[order[i]], &rows[order[j]])
	})
}

func (t *table) standings() []StandingEntry {
	order := make([]int, len(t.rows))
	rank(t.rows, order)
	out := make([]StandingEntry, len(order))
	for pos, i := range order {
		out[pos] = t.rows[i]
		out[pos].Position = pos + 1
	}
	return out
}

// CalcStandings builds the current table for a division from its results.
// Every team in the division's team list appears, including those yet to play.
func (e *Engine) CalcStandings(division string, ds DataSources) ([]StandingEntry, error) {
	if _, err := requireDivision(ds, division); err != nil {
		return nil, err
	}
	t := newTable(e.cfg, divisionTeams(ds, division))
	for _, r := range divisionResults(ds, division) {
		t.record(r.Home, r.Away, r.HomeScore, r.AwayScore)
	}
	return t.standings(), nil
}
