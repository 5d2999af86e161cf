// Package league is the season prediction and simulation engine for a pool league.
//
// It turns historical results into team strength ratings, predicts individual
// fixtures, plays the rest of a season out many times, measures how much each
// remaining fixture matters to a team, and scores the accuracy of past predictions.
// Every entry point is a pure function of its inputs and an explicit seed; the
// package performs no I/O.
package league

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"time"
)

// Division is an independent simulation universe with its own teams, fixtures and results
type Division struct {
	Code  string   `json:"code"`
	Name  string   `json:"name"`
	Teams []string `json:"teams"`
}

// Fixture is a scheduled match that has not (yet) been matched to a Result
type Fixture struct {
	Division string    `json:"division"`
	Date     time.Time `json:"date"`
	Home     string    `json:"home"`
	Away     string    `json:"away"`
}

// Result is a completed match. Scores are frames won.
type Result struct {
	Division  string    `json:"division"`
	Date      time.Time `json:"date"`
	Home      string    `json:"home"`
	Away      string    `json:"away"`
	HomeScore int       `json:"homeScore"`
	AwayScore int       `json:"awayScore"`
}

// Winner returns which side won the result
func (r Result) Winner() Winner {
	switch {
	case r.HomeScore > r.AwayScore:
		return WinnerHome
	case r.AwayScore > r.HomeScore:
		return WinnerAway
	default:
		return WinnerDraw
	}
}

// PlayerStats holds a player's season frame record
type PlayerStats struct {
	FramesWon    int `json:"framesWon"`
	FramesPlayed int `json:"framesPlayed"`
}

// WinRate returns the player's frame win rate, or false when they have not played
func (p PlayerStats) WinRate() (float64, bool) {
	if p.FramesPlayed <= 0 {
		return 0, false
	}
	return float64(p.FramesWon) / float64(p.FramesPlayed), true
}

// DataSources is the read-only view of league data the engine consumes
type DataSources interface {
	Divisions() map[string]Division
	Fixtures() []Fixture
	Results() []Result
	Rosters() map[string][]string
	PlayerStats() map[string]PlayerStats
}

// MemorySources is a plain in-memory DataSources, also used as the JSON snapshot format
type MemorySources struct {
	DivisionMap map[string]Division    `json:"divisions"`
	FixtureList []Fixture              `json:"fixtures"`
	ResultList  []Result               `json:"results"`
	RosterMap   map[string][]string    `json:"rosters"`
	PlayerMap   map[string]PlayerStats `json:"players"`
}

func (m *MemorySources) Divisions() map[string]Division { return m.DivisionMap }
func (m *MemorySources) Fixtures() []Fixture { return m.FixtureList }
func (m *MemorySources) Results() []Result { return m.ResultList }
func (m *MemorySources) Rosters() map[string][]string { return m.RosterMap }
func (m *MemorySources) PlayerStats() map[string]PlayerStats { return m.PlayerMap }

// fingerprint is the part of a division's data that any simulation depends on
type fingerprint struct {
	Division Division               `json:"division"`
	Fixtures []Fixture              `json:"fixtures"`
	Results  []Result               `json:"results"`
	Rosters  map[string][]string    `json:"rosters"`
	Players  map[string]PlayerStats `json:"players"`
}

// Fingerprint hashes everything in ds that can influence a computation for the division.
// Two sources with the same fingerprint produce identical simulations.
func Fingerprint(ds DataSources, division string) string {
	fp := fingerprint{
		Division: ds.Divisions()[division],
		Fixtures: divisionFixtures(ds, division),
		Results:  divisionResults(ds, division),
		Rosters:  map[string][]string{},
		Players:  map[string]PlayerStats{},
	}
	rosters := ds.Rosters()
	stats := ds.PlayerStats()
	for _, team := range divisionTeams(ds, division) {
		roster, ok := rosters[team]
		if !ok {
			continue
		}
		fp.Rosters[team] = roster
		for _, p := range roster {
			if s, ok := stats[p]; ok {
				fp.Players[p] = s
			}
		}
	}
	// encoding/json writes map keys in sorted order
	b, _ := json.Marshal(fp)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func divisionResults(ds DataSources, division string) []Result {
	var out []Result
	for _, r := range ds.Results() {
		if r.Division == division {
			out = append(out, r)
		}
	}
	return out
}

func divisionFixtures(ds DataSources, division string) []Fixture {
	var out []Fixture
	for _, f := range ds.Fixtures() {
		if f.Division == division {
			out = append(out, f)
		}
	}
	return out
}

// divisionTeams returns the division's listed teams followed by any team that only
// appears in its fixtures or results, in a stable order.
func divisionTeams(ds DataSources, division string) []string {
	seen := map[string]bool{}
	var teams []string
	add := func(t string) {
		if t != "" && !seen[t] {
			seen[t] = true
			teams = append(teams, t)
		}
	}
	for _, t := range ds.Divisions()[division].Teams {
		add(t)
	}
	var extra []string
	for _, r := range divisionResults(ds, division) {
		for _, t := range []string{r.Home, r.Away} {
			if !seen[t] {
				seen[t] = true
				extra = append(extra, t)
			}
		}
	}
	for _, f := range divisionFixtures(ds, division) {
		for _, t := range []string{f.Home, f.Away} {
			if !seen[t] {
				seen[t] = true
				extra = append(extra, t)
			}
		}
	}
	sort.Strings(extra)
	return append(teams, extra...)
}

// Winner identifies the winning side of a match
type Winner string

const (
	WinnerHome Winner = "home"
	WinnerAway Winner = "away"
	WinnerDraw Winner = "draw"
)

// StandingEntry is one row of a league table
type StandingEntry struct {
	Position      int    `json:"position"`
	Team          string `json:"team"`
	Played        int    `json:"played"`
	Won           int    `json:"won"`
	Drawn         int    `json:"drawn"`
	Lost          int    `json:"lost"`
	FramesFor     int    `json:"framesFor"`
	FramesAgainst int    `json:"framesAgainst"`
	Difference    int    `json:"difference"`
	Points        int    `json:"points"`
}

// PredictionResult is the outcome distribution of a single fixture
type PredictionResult struct {
	PFrame          float64           `json:"pFrame"`
	PHomeWin        float64           `json:"pHomeWin"`
	PDraw           float64           `json:"pDraw"`
	PAwayWin        float64           `json:"pAwayWin"`
	ExpectedHome    float64           `json:"expectedHome"`
	ExpectedAway    float64           `json:"expectedAway"`
	Confidence      float64           `json:"confidence"`
	// PredictedWinner breaks an exact home/away tie as a draw only when the
	// format allows one, otherwise as a home win
	PredictedWinner Winner            `json:"predictedWinner"`
	Trials          int               `json:"trials"`
	Seed            uint64            `json:"seed"`
	Baseline        *PredictionResult `json:"baseline,omitempty"`
}

// FixtureImportance measures how much forcing one fixture's outcome moves a team's target probability
type FixtureImportance struct {
	Division     string    `json:"division"`
	Date         time.Time `json:"date"`
	Home         string    `json:"home"`
	Away         string    `json:"away"`
	InvolvesTeam bool      `json:"involvesTeam"`
	Baseline     float64   `json:"baseline"`
	IfHomeWin    float64   `json:"ifHomeWin"`
	IfAwayWin    float64   `json:"ifAwayWin"`
	Impact       float64   `json:"impact"`
}

// PredictionSnapshot is a stored prediction, later reconciled with the actual winner
type PredictionSnapshot struct {
	ID              string    `json:"id"`
	Division        string    `json:"division"`
	Date            time.Time `json:"date"`
	Home            string    `json:"home"`
	Away            string    `json:"away"`
	PHomeWin        float64   `json:"pHomeWin"`
	PDraw           float64   `json:"pDraw"`
	PAwayWin        float64   `json:"pAwayWin"`
	Confidence      float64   `json:"confidence"`
	PredictedWinner Winner    `json:"predictedWinner"`
	ActualWinner    Winner    `json:"actualWinner,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
}

// Resolved reports whether the snapshot has been reconciled with a result
func (p PredictionSnapshot) Resolved() bool {
	return p.ActualWinner != ""
}

// CalibrationBucket compares predicted and realised correctness within a confidence range
type CalibrationBucket struct {
	Lower          float64 `json:"lower"`
	Upper          float64 `json:"upper"`
	Count          int     `json:"count"`
	Correct        int     `json:"correct"`
	MeanConfidence float64 `json:"meanConfidence"`
	MeanPredicted  float64 `json:"meanPredicted"`
	ActualRate     float64 `json:"actualRate"`
	Gap            float64 `json:"gap"`
}

// AccuracyStats aggregates how well stored predictions matched reality
type AccuracyStats struct {
	TotalPredictions int                 `json:"totalPredictions"`
	Pending          int                 `json:"pending"`
	CorrectCount     int                 `json:"correctCount"`
	AccuracyRate     float64             `json:"accuracyRate"`
	BrierScore       float64             `json:"brierScore"`
	Calibration      []CalibrationBucket `json:"calibration"`
}
