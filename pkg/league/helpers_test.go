package league

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func day(d int) time.Time {
	return time.Date(2025, time.September, d, 19, 30, 0, 0, time.UTC)
}

func newEngine(t *testing.T, edit func(*Config)) *Engine {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Workers = 4
	if edit != nil {
		edit(&cfg)
	}
	e, err := New(cfg)
	require.NoError(t, err)
	return e
}

func emptySources(teams ...string) *MemorySources {
	return &MemorySources{
		DivisionMap: map[string]Division{"D1": {Code: "D1", Name: "Division One", Teams: teams}},
		RosterMap:   map[string][]string{},
		PlayerMap:   map[string]PlayerStats{},
	}
}

func (m *MemorySources) played(d int, home, away string, hs, as int) *MemorySources {
	m.ResultList = append(m.ResultList, Result{Division: "D1", Date: day(d), Home: home, Away: away, HomeScore: hs, AwayScore: as})
	return m
}

func (m *MemorySources) fixture(d int, home, away string) *MemorySources {
	m.FixtureList = append(m.FixtureList, Fixture{Division: "D1", Date: day(d), Home: home, Away: away})
	return m
}

// roundRobin is a four team double round robin with the first six fixtures played
func roundRobin() *MemorySources {
	teams := []string{"Anchor", "Bell", "Crown", "Dragon"}
	ms := emptySources(teams...)
	d := 1
	for _, h := range teams {
		for _, a := range teams {
			if h == a {
				continue
			}
			ms.fixture(d, h, a)
			d++
		}
	}
	scores := [][2]int{{7, 3}, {6, 4}, {8, 2}, {4, 6}, {5, 5}, {6, 4}}
	for i, s := range scores {
		f := ms.FixtureList[i]
		ms.played(f.Date.Day(), f.Home, f.Away, s[0], s[1])
	}
	return ms
}
