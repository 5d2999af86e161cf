package league

import (
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalcStandingsTieBrokenByFrameDifference(t *testing.T) {
	e := newEngine(t, nil)
	ds := emptySources("A", "B").
		played(1, "A", "B", 3, 1).
		played(8, "B", "A", 3, 2)

	table, err := e.CalcStandings("D1", ds)
	require.NoError(t, err)
	require.Len(t, table, 2)

	a, b := table[0], table[1]
	assert.Equal(t, "A", a.Team)
	assert.Equal(t, 1, a.Position)
	assert.Equal(t, 1, a.Won)
	assert.Equal(t, 1, a.Lost)
	assert.Equal(t, 1, b.Won)
	assert.Equal(t, 1, b.Lost)
	assert.Equal(t, a.Points, b.Points)
	assert.Equal(t, 1, a.Difference)
	assert.Equal(t, -1, b.Difference)
	assert.Equal(t, 5, a.FramesFor)
	assert.Equal(t, 4, a.FramesAgainst)
}

func TestCalcStandingsOrdering(t *testing.T) {
	e := newEngine(t, nil)
	// Bell and Crown finish level on points and difference; Bell has more wins
	ds := emptySources("Anchor", "Bell", "Crown", "Dragon", "Eagle").
		played(1, "Bell", "Anchor", 6, 4).
		played(2, "Anchor", "Bell", 6, 4).
		played(3, "Bell", "Dragon", 6, 4).
		played(4, "Crown", "Dragon", 5, 5).
		played(5, "Crown", "Eagle", 6, 4).
		played(6, "Eagle", "Crown", 5, 5)

	table, err := e.CalcStandings("D1", ds)
	require.NoError(t, err)

	var order []string
	for _, row := range table {
		order = append(order, row.Team)
	}
	assert.Equal(t, []string{"Bell", "Crown", "Anchor", "Dragon", "Eagle"}, order)
	assert.Equal(t, 4, table[0].Points)
	assert.Equal(t, 4, table[1].Points)
	assert.Equal(t, 2, table[1].Drawn)
}

func TestCalcStandingsListsTeamsWithoutResults(t *testing.T) {
	e := newEngine(t, nil)
	ds := emptySources("Zebra", "Yak", "Xerus")

	table, err := e.CalcStandings("D1", ds)
	require.NoError(t, err)
	require.Len(t, table, 3)
	// level on everything, so alphabetical
	assert.Equal(t, "Xerus", table[0].Team)
	assert.Equal(t, "Yak", table[1].Team)
	assert.Equal(t, "Zebra", table[2].Team)
	for _, row := range table {
		assert.Zero(t, row.Played)
	}
}

func TestCalcStandingsConservesGamesAndPoints(t *testing.T) {
	e := newEngine(t, nil)
	teams := []string{"Anchor", "Bell", "Crown", "Dragon", "Eagle", "Fox"}
	ds := emptySources(teams...)
	rng := rand.New(rand.NewPCG(7, 11))
	const results = 60
	for i := 0; i < results; i++ {
		h := rng.IntN(len(teams))
		a := (h + 1 + rng.IntN(len(teams)-1)) % len(teams)
		loser := rng.IntN(6)
		if rng.IntN(2) == 0 {
			ds.played(1+i%28, teams[h], teams[a], 6, loser)
		} else {
			ds.played(1+i%28, teams[h], teams[a], loser, 6)
		}
	}

	table, err := e.CalcStandings("D1", ds)
	require.NoError(t, err)

	var played, won, lost, points int
	for _, row := range table {
		assert.Equal(t, row.Won+row.Lost+row.Drawn, row.Played)
		played += row.Played
		won += row.Won
		lost += row.Lost
		points += row.Points
	}
	assert.Equal(t, 2*results, played)
	assert.Equal(t, results, won)
	assert.Equal(t, results, lost)
	assert.Equal(t, results*(e.Config().PointsForWin+e.Config().PointsForLoss), points)
}

func TestCalcStandingsFramePoints(t *testing.T) {
	e := newEngine(t, func(c *Config) { c.PointsPerFrame = 1 })
	ds := emptySources("A", "B").played(1, "A", "B", 7, 3)

	table, err := e.CalcStandings("D1", ds)
	require.NoError(t, err)
	assert.Equal(t, 9, table[0].Points)
	assert.Equal(t, 3, table[1].Points)
}

func TestCalcStandingsUnknownDivision(t *testing.T) {
	e := newEngine(t, nil)
	_, err := e.CalcStandings("D9", emptySources("A"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownDivision))

	var cfgErr *ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "D9", cfgErr.Division)
}
