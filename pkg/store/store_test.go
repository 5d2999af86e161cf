package store

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richard-senior/poolleague/pkg/league"
)

func day(d int) time.Time {
	return time.Date(2025, time.September, 1, 19, 30, 0, 0, time.UTC).AddDate(0, 0, d)
}

func openMemory(t *testing.T) *Store {
	t.Helper()
	s, err := Open(Memory)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleSources() *league.MemorySources {
	return &league.MemorySources{
		DivisionMap: map[string]league.Division{
			"D1": {Code: "D1", Name: "Premier", Teams: []string{"Crown", "Anchor", "Bell"}},
		},
		FixtureList: []league.Fixture{
			{Division: "D1", Date: day(14), Home: "Bell", Away: "Crown"},
			{Division: "D1", Date: day(7), Home: "Anchor", Away: "Bell"},
		},
		ResultList: []league.Result{
			{Division: "D1", Date: day(0), Home: "Crown", Away: "Anchor", HomeScore: 6, AwayScore: 4},
		},
		RosterMap: map[string][]string{
			"Crown":  {"Zed", "Amy"},
			"Anchor": {"Bob"},
		},
		PlayerMap: map[string]league.PlayerStats{
			"Zed": {FramesWon: 7, FramesPlayed: 10},
			"Amy": {FramesWon: 2, FramesPlayed: 4},
			"Bob": {FramesWon: 0, FramesPlayed: 0},
		},
	}
}

func TestCreateTableSQLFromTags(t *testing.T) {
	query := createTableSQL(&resultRecord{})
	assert.True(t, strings.HasPrefix(query, "CREATE TABLE IF NOT EXISTS results ("))
	assert.Contains(t, query, "homeScore INTEGER NOT NULL")
	assert.Contains(t, query, "PRIMARY KEY (division, date, home, away)")

	assert.Equal(t, []string{"CREATE INDEX IF NOT EXISTS idx_predictions_division ON predictions(division)",
		"CREATE INDEX IF NOT EXISTS idx_predictions_actualWinner ON predictions(actualWinner)"},
		indexSQL(&predictionRecord{}))
}

func TestBuildWhereClauseIsDeterministic(t *testing.T) {
	where, values := buildWhereClause(map[string]any{"team": "Crown", "division": "D1"})
	assert.Equal(t, "division = ? AND team = ?", where)
	assert.Equal(t, []any{"D1", "Crown"}, values)
}

func TestSaveAndLoadSourcesRoundTrip(t *testing.T) {
	s := openMemory(t)
	src := sampleSources()
	require.NoError(t, s.SaveSources(src))

	got, err := s.LoadSources()
	require.NoError(t, err)
	assert.Equal(t, src.DivisionMap, got.DivisionMap)
	assert.Equal(t, src.RosterMap, got.RosterMap)
	assert.Equal(t, src.PlayerMap, got.PlayerMap)
	assert.Equal(t, src.ResultList, got.ResultList)
	// fixtures come back in date order
	assert.Equal(t, []league.Fixture{src.FixtureList[1], src.FixtureList[0]}, got.FixtureList)
}

func TestSaveSourcesReplacesDivisionData(t *testing.T) {
	s := openMemory(t)
	require.NoError(t, s.SaveSources(sampleSources()))

	other := &league.MemorySources{
		DivisionMap: map[string]league.Division{"D2": {Code: "D2", Name: "First", Teams: []string{"Oak"}}},
	}
	require.NoError(t, s.SaveSources(other))

	update := sampleSources()
	update.FixtureList = update.FixtureList[:1]
	update.ResultList = append(update.ResultList,
		league.Result{Division: "D1", Date: day(7), Home: "Anchor", Away: "Bell", HomeScore: 5, AwayScore: 5})
	update.RosterMap = map[string][]string{"Crown": {"Amy"}}
	update.PlayerMap = map[string]league.PlayerStats{"Amy": {FramesWon: 3, FramesPlayed: 6}}
	require.NoError(t, s.SaveSources(update))

	got, err := s.LoadSources()
	require.NoError(t, err)
	assert.Len(t, got.FixtureList, 1)
	assert.Len(t, got.ResultList, 2)
	assert.Equal(t, []string{"Amy"}, got.RosterMap["Crown"])
	assert.Equal(t, []string{"Bob"}, got.RosterMap["Anchor"])
	assert.Equal(t, league.PlayerStats{FramesWon: 3, FramesPlayed: 6}, got.PlayerMap["Amy"])
	assert.Equal(t, league.PlayerStats{FramesWon: 7, FramesPlayed: 10}, got.PlayerMap["Zed"])
	// untouched division survives
	assert.Equal(t, []string{"Oak"}, got.DivisionMap["D2"].Teams)
}

func TestOpenFileDatabaseCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "league.db")
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.SaveSources(sampleSources()))
	require.NoError(t, s.Close())

	again, err := Open(path)
	require.NoError(t, err)
	defer again.Close()
	got, err := again.LoadSources()
	require.NoError(t, err)
	assert.Len(t, got.ResultList, 1)
}

func TestSavePredictionAssignsIDAndTime(t *testing.T) {
	s := openMemory(t)
	s.now = func() time.Time { return day(-1) }

	p, err := s.SavePrediction(league.PredictionSnapshot{
		Division: "D1", Date: day(7), Home: "Anchor", Away: "Bell",
		PHomeWin: 0.5, PDraw: 0.2, PAwayWin: 0.3, Confidence: 0.25, PredictedWinner: league.WinnerHome,
	})
	require.NoError(t, err)
	_, err = uuid.Parse(p.ID)
	require.NoError(t, err)
	assert.Equal(t, day(-1), p.CreatedAt)

	loaded, err := s.Prediction(p.ID)
	require.NoError(t, err)
	assert.Equal(t, p, loaded)

	_, err = s.Prediction(uuid.NewString())
	assert.Error(t, err)
}

func TestSavePredictionValidates(t *testing.T) {
	s := openMemory(t)
	_, err := s.SavePrediction(league.PredictionSnapshot{ID: "not-a-uuid", Division: "D1", Home: "A", Away: "B"})
	assert.Error(t, err)
	_, err = s.SavePrediction(league.PredictionSnapshot{Division: "D1", Home: "A"})
	assert.Error(t, err)
}

func TestPredictionsFilterAndOrder(t *testing.T) {
	s := openMemory(t)
	clock := 0
	s.now = func() time.Time { clock++; return day(clock) }

	var ids []string
	for _, div := range []string{"D1", "D2", "D1"} {
		p, err := s.SavePrediction(league.PredictionSnapshot{Division: div, Date: day(20), Home: "A", Away: "B"})
		require.NoError(t, err)
		ids = append(ids, p.ID)
	}

	d1, err := s.Predictions("D1")
	require.NoError(t, err)
	require.Len(t, d1, 2)
	assert.Equal(t, ids[0], d1[0].ID)
	assert.Equal(t, ids[2], d1[1].ID)

	all, err := s.Predictions("")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	none, err := s.Predictions("D9")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestReconcilePredictions(t *testing.T) {
	s := openMemory(t)
	src := sampleSources()
	// the same pairing played twice; the nearer result wins
	src.ResultList = append(src.ResultList,
		league.Result{Division: "D1", Date: day(60), Home: "Crown", Away: "Anchor", HomeScore: 2, AwayScore: 8})
	require.NoError(t, s.SaveSources(src))

	played, err := s.SavePrediction(league.PredictionSnapshot{
		Division: "D1", Date: day(1), Home: "Crown", Away: "Anchor", PredictedWinner: league.WinnerAway,
	})
	require.NoError(t, err)
	later, err := s.SavePrediction(league.PredictionSnapshot{
		Division: "D1", Date: day(58), Home: "Crown", Away: "Anchor", PredictedWinner: league.WinnerAway,
	})
	require.NoError(t, err)
	unplayed, err := s.SavePrediction(league.PredictionSnapshot{
		Division: "D1", Date: day(14), Home: "Bell", Away: "Crown", PredictedWinner: league.WinnerHome,
	})
	require.NoError(t, err)

	n, err := s.ReconcilePredictions()
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := s.Prediction(played.ID)
	require.NoError(t, err)
	assert.Equal(t, league.WinnerHome, got.ActualWinner)
	got, err = s.Prediction(later.ID)
	require.NoError(t, err)
	assert.Equal(t, league.WinnerAway, got.ActualWinner)
	got, err = s.Prediction(unplayed.ID)
	require.NoError(t, err)
	assert.False(t, got.Resolved())

	// nothing left to do
	n, err = s.ReconcilePredictions()
	require.NoError(t, err)
	assert.Zero(t, n)
}
