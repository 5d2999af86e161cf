package league

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimulateIsDeterministic(t *testing.T) {
	e := newEngine(t, nil)
	ds := roundRobin()
	req := SimulationRequest{Division: "D1", Seed: 42, Trials: 2000, Workers: 1}

	first, err := e.Simulate(req, ds)
	require.NoError(t, err)
	second, err := e.Simulate(req, ds)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	req.Workers = 4
	parallel, err := e.Simulate(req, ds)
	require.NoError(t, err)
	assert.Equal(t, first, parallel, "worker count must not change the result")

	req.Workers = 7
	odd, err := e.Simulate(req, ds)
	require.NoError(t, err)
	assert.Equal(t, first, odd)
}

func TestSimulateProducesDistributions(t *testing.T) {
	e := newEngine(t, nil)
	res, err := e.Simulate(SimulationRequest{Division: "D1", Seed: 1, Trials: 2000}, roundRobin())
	require.NoError(t, err)

	assert.Equal(t, 2000, res.Trials)
	require.Len(t, res.Teams, 4)
	require.Len(t, res.Fixtures, 6)

	title, relegation := 0.0, 0.0
	column := make([]float64, 4)
	for _, team := range res.Teams {
		require.Len(t, team.Positions, 4)
		row := 0.0
		for i, p := range team.Positions {
			row += p
			column[i] += p
		}
		assert.InDelta(t, 1.0, row, 1e-9, team.Team)
		assert.GreaterOrEqual(t, team.ExpectedPoints, float64(team.CurrentPoints))
		title += team.Title
		relegation += team.Relegation
	}
	for _, c := range column {
		assert.InDelta(t, 1.0, c, 1e-9)
	}
	assert.InDelta(t, 1.0, title, 1e-9)
	assert.InDelta(t, 1.0, relegation, 1e-9)

	for _, f := range res.Fixtures {
		assert.NoError(t, checkDistribution(f.PHomeWin, f.PDraw, f.PAwayWin))
		assert.Greater(t, f.PFrame, 0.0)
		assert.Less(t, f.PFrame, 1.0)
	}

	for i := 1; i < len(res.Teams); i++ {
		assert.LessOrEqual(t, res.Teams[i-1].ExpectedPosition, res.Teams[i].ExpectedPosition)
	}
}

func TestSimulateMatchesRearrangedResults(t *testing.T) {
	e := newEngine(t, nil)
	ds := roundRobin()
	// Crown v Anchor was scheduled for the 7th but played on the 20th
	ds.played(20, "Crown", "Anchor", 6, 4)

	res, err := e.Simulate(SimulationRequest{Division: "D1", Seed: 1, Trials: 100}, ds)
	require.NoError(t, err)
	require.Len(t, res.Fixtures, 5)
	for _, f := range res.Fixtures {
		assert.False(t, f.Home == "Crown" && f.Away == "Anchor")
	}
}

func TestSimulateTreatsWhatIfAsPlayed(t *testing.T) {
	e := newEngine(t, nil)
	ds := emptySources("A", "B").fixture(1, "A", "B")

	res, err := e.Simulate(SimulationRequest{
		Division: "D1",
		Seed:     9,
		Trials:   50,
		WhatIf:   []Result{{Home: "A", Away: "B", HomeScore: 6, AwayScore: 4}},
	}, ds)
	require.NoError(t, err)
	assert.Empty(t, res.Fixtures)

	a, ok := res.Team("A")
	require.True(t, ok)
	assert.Equal(t, 1.0, a.Title)
	assert.Equal(t, 2, a.CurrentPoints)
	b, ok := res.Team("B")
	require.True(t, ok)
	assert.Equal(t, 1.0, b.Relegation)

	_, err = e.Simulate(SimulationRequest{
		Division: "D1",
		WhatIf:   []Result{{Home: "A", Away: "Ghost", HomeScore: 6, AwayScore: 4}},
	}, ds)
	assert.Error(t, err)
}

func TestSimulateRejectsBadWhatIf(t *testing.T) {
	e := newEngine(t, nil)
	ds := emptySources("A", "B").fixture(1, "A", "B")
	tests := map[string]Result{
		"same team":      {Home: "A", Away: "A", HomeScore: 6, AwayScore: 4},
		"negative home":  {Home: "A", Away: "B", HomeScore: -1, AwayScore: 4},
		"negative away":  {Home: "A", Away: "B", HomeScore: 6, AwayScore: -4},
		"other division": {Division: "D2", Home: "A", Away: "B", HomeScore: 6, AwayScore: 4},
	}
	for name, r := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := e.Simulate(SimulationRequest{Division: "D1", Trials: 10, WhatIf: []Result{r}}, ds)
			assert.Error(t, err)
		})
	}
}

func TestSimulateRejectsTooManyTrials(t *testing.T) {
	e := newEngine(t, func(c *Config) { c.MaxTrials = c.MatchTrials })
	ds := emptySources("A", "B").fixture(1, "A", "B")

	_, err := e.Simulate(SimulationRequest{Division: "D1", Trials: e.Config().MaxTrials + 1}, ds)
	assert.Error(t, err)
	_, err = e.Simulate(SimulationRequest{Division: "D1", Trials: e.Config().MaxTrials}, ds)
	assert.NoError(t, err)
}

func TestSimulateOverridesMoveProspects(t *testing.T) {
	e := newEngine(t, nil)
	ds := squadSources().fixture(10, "B", "A")
	req := SimulationRequest{Division: "D1", Seed: 5, Trials: 2000}

	base, err := e.Simulate(req, ds)
	require.NoError(t, err)
	req.Overrides = SquadOverrides{"A": SquadOverride{}.Remove("p1").Remove("p2")}
	weakened, err := e.Simulate(req, ds)
	require.NoError(t, err)

	before, _ := base.Team("A")
	after, _ := weakened.Team("A")
	assert.Less(t, after.Title, before.Title)
	assert.Less(t, after.Strength, before.Strength)
}

func TestSimulateUnknownDivision(t *testing.T) {
	e := newEngine(t, nil)
	_, err := e.Simulate(SimulationRequest{Division: "D2"}, roundRobin())
	assert.ErrorIs(t, err, ErrUnknownDivision)
}

func TestRemainingFixturesPrefersSameDay(t *testing.T) {
	fixtures := []Fixture{
		{Home: "A", Away: "B", Date: day(1)},
		{Home: "A", Away: "B", Date: day(15)},
	}
	// the only result is on the 15th, so the 1st is still outstanding
	left := remainingFixtures(fixtures, []Result{{Home: "A", Away: "B", Date: day(15)}})
	require.Len(t, left, 1)
	assert.Equal(t, day(1), left[0].Date)
}
