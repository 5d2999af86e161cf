package store

import (
	"fmt"
	"time"

	"github.com/richard-senior/poolleague/pkg/league"
)

// timeLayout is how every date is written to the database. Times are stored in
// UTC so the text sorts chronologically.
const timeLayout = time.RFC3339Nano

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid stored time %q: %w", s, err)
	}
	return t, nil
}

type divisionRecord struct {
	Code string `column:"code" dbtype:"TEXT NOT NULL" primary:"true"`
	Name string `column:"name" dbtype:"TEXT NOT NULL DEFAULT ''"`
}

func (r *divisionRecord) TableName() string         { return "divisions" }
func (r *divisionRecord) PrimaryKey() map[string]any { return map[string]any{"code": r.Code} }

// teamRecord lists a team in a division. Ordinal keeps the listed order.
type teamRecord struct {
	Division string `column:"division" dbtype:"TEXT NOT NULL" primary:"true"`
	Team     string `column:"team" dbtype:"TEXT NOT NULL" primary:"true"`
	Ordinal  int    `column:"ordinal" dbtype:"INTEGER NOT NULL DEFAULT 0"`
}

func (r *teamRecord) TableName() string { return "teams" }
func (r *teamRecord) PrimaryKey() map[string]any {
	return map[string]any{"division": r.Division, "team": r.Team}
}

type rosterRecord struct {
	Team    string `column:"team" dbtype:"TEXT NOT NULL" primary:"true" index:"true"`
	Player  string `column:"player" dbtype:"TEXT NOT NULL" primary:"true"`
	Ordinal int    `column:"ordinal" dbtype:"INTEGER NOT NULL DEFAULT 0"`
}

func (r *rosterRecord) TableName() string { return "rosters" }
func (r *rosterRecord) PrimaryKey() map[string]any {
	return map[string]any{"team": r.Team, "player": r.Player}
}

type playerRecord struct {
	Name         string `column:"name" dbtype:"TEXT NOT NULL" primary:"true"`
	FramesWon    int    `column:"framesWon" dbtype:"INTEGER NOT NULL DEFAULT 0"`
	FramesPlayed int    `column:"framesPlayed" dbtype:"INTEGER NOT NULL DEFAULT 0"`
}

func (r *playerRecord) TableName() string         { return "players" }
func (r *playerRecord) PrimaryKey() map[string]any { return map[string]any{"name": r.Name} }

type fixtureRecord struct {
	Division string `column:"division" dbtype:"TEXT NOT NULL" primary:"true" index:"true"`
	Date     string `column:"date" dbtype:"TEXT NOT NULL" primary:"true"`
	Home     string `column:"home" dbtype:"TEXT NOT NULL" primary:"true"`
	Away     string `column:"away" dbtype:"TEXT NOT NULL" primary:"true"`
}

func (r *fixtureRecord) TableName() string { return "fixtures" }
func (r *fixtureRecord) PrimaryKey() map[string]any {
	return map[string]any{"division": r.Division, "date": r.Date, "home": r.Home, "away": r.Away}
}

func newFixtureRecord(f league.Fixture) *fixtureRecord {
	return &fixtureRecord{Division: f.Division, Date: formatTime(f.Date), Home: f.Home, Away: f.Away}
}

func (r fixtureRecord) fixture() (league.Fixture, error) {
	date, err := parseTime(r.Date)
	if err != nil {
		return league.Fixture{}, err
	}
	return league.Fixture{Division: r.Division, Date: date, Home: r.Home, Away: r.Away}, nil
}

type resultRecord struct {
	Division  string `column:"division" dbtype:"TEXT NOT NULL" primary:"true" index:"true"`
	Date      string `column:"date" dbtype:"TEXT NOT NULL" primary:"true"`
	Home      string `column:"home" dbtype:"TEXT NOT NULL" primary:"true"`
	Away      string `column:"away" dbtype:"TEXT NOT NULL" primary:"true"`
	HomeScore int    `column:"homeScore" dbtype:"INTEGER NOT NULL"`
	AwayScore int    `column:"awayScore" dbtype:"INTEGER NOT NULL"`
}

func (r *resultRecord) TableName() string { return "results" }
func (r *resultRecord) PrimaryKey() map[string]any {
	return map[string]any{"division": r.Division, "date": r.Date, "home": r.Home, "away": r.Away}
}

func newResultRecord(res league.Result) *resultRecord {
	return &resultRecord{
		Division:  res.Division,
		Date:      formatTime(res.Date),
		Home:      res.Home,
		Away:      res.Away,
		HomeScore: res.HomeScore,
		AwayScore: res.AwayScore,
	}
}

func (r resultRecord) result() (league.Result, error) {
	date, err := parseTime(r.Date)
	if err != nil {
		return league.Result{}, err
	}
	return league.Result{
		Division:  r.Division,
		Date:      date,
		Home:      r.Home,
		Away:      r.Away,
		HomeScore: r.HomeScore,
		AwayScore: r.AwayScore,
	}, nil
}

// predictionRecord is a stored PredictionSnapshot. ActualWinner is empty until
// the fixture has been reconciled with a result.
type predictionRecord struct {
	ID              string  `column:"id" dbtype:"TEXT NOT NULL" primary:"true"`
	Division        string  `column:"division" dbtype:"TEXT NOT NULL" index:"true"`
	Date            string  `column:"date" dbtype:"TEXT NOT NULL"`
	Home            string  `column:"home" dbtype:"TEXT NOT NULL"`
	Away            string  `column:"away" dbtype:"TEXT NOT NULL"`
	PHomeWin        float64 `column:"pHomeWin" dbtype:"REAL NOT NULL"`
	PDraw           float64 `column:"pDraw" dbtype:"REAL NOT NULL"`
	PAwayWin        float64 `column:"pAwayWin" dbtype:"REAL NOT NULL"`
	Confidence      float64 `column:"confidence" dbtype:"REAL NOT NULL"`
	PredictedWinner string  `column:"predictedWinner" dbtype:"TEXT NOT NULL"`
	ActualWinner    string  `column:"actualWinner" dbtype:"TEXT NOT NULL DEFAULT ''" index:"true"`
	CreatedAt       string  `column:"createdAt" dbtype:"TEXT NOT NULL"`
}

func (r *predictionRecord) TableName() string         { return "predictions" }
func (r *predictionRecord) PrimaryKey() map[string]any { return map[string]any{"id": r.ID} }

func newPredictionRecord(p league.PredictionSnapshot) *predictionRecord {
	return &predictionRecord{
		ID:              p.ID,
		Division:        p.Division,
		Date:            formatTime(p.Date),
		Home:            p.Home,
		Away:            p.Away,
		PHomeWin:        p.PHomeWin,
		PDraw:           p.PDraw,
		PAwayWin:        p.PAwayWin,
		Confidence:      p.Confidence,
		PredictedWinner: string(p.PredictedWinner),
		ActualWinner:    string(p.ActualWinner),
		CreatedAt:       formatTime(p.CreatedAt),
	}
}

func (r predictionRecord) snapshot() (league.PredictionSnapshot, error) {
	date, err := parseTime(r.Date)
	if err != nil {
		return league.PredictionSnapshot{}, err
	}
	created, err := parseTime(r.CreatedAt)
	if err != nil {
		return league.PredictionSnapshot{}, err
	}
	return league.PredictionSnapshot{
		ID:              r.ID,
		Division:        r.Division,
		Date:            date,
		Home:            r.Home,
		Away:            r.Away,
		PHomeWin:        r.PHomeWin,
		PDraw:           r.PDraw,
		PAwayWin:        r.PAwayWin,
		Confidence:      r.Confidence,
		PredictedWinner: league.Winner(r.PredictedWinner),
		ActualWinner:    league.Winner(r.ActualWinner),
		CreatedAt:       created,
	}, nil
}

// tables lists every record type in creation order
func tables() []Persistable {
	return []Persistable{
		&divisionRecord{},
		&teamRecord{},
		&rosterRecord{},
		&playerRecord{},
		&fixtureRecord{},
		&resultRecord{},
		&predictionRecord{},
	}
}
