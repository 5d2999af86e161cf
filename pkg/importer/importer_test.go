package importer

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richard-senior/poolleague/pkg/league"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

const snapshotJSON = `{
  "divisions": {"D1": {"name": "Premier", "teams": ["Crown", "Bell"]}},
  "fixtures": [{"division": "D1", "date": "2025-09-18T19:30:00Z", "home": "Bell", "away": "Crown"}],
  "results": [{"division": "D1", "date": "2025-09-04T19:30:00Z", "home": "Crown", "away": "Bell", "homeScore": 6, "awayScore": 4}],
  "rosters": {"Crown": ["Amy", "Zed"]},
  "players": {"Amy": {"framesWon": 3, "framesPlayed": 5}}
}`

func TestDecodeSnapshot(t *testing.T) {
	ms, err := DecodeSnapshot(strings.NewReader(snapshotJSON))
	require.NoError(t, err)
	assert.Equal(t, "D1", ms.Divisions()["D1"].Code)
	assert.Equal(t, []string{"Crown", "Bell"}, ms.Divisions()["D1"].Teams)
	require.Len(t, ms.Results(), 1)
	assert.Equal(t, league.WinnerHome, ms.Results()[0].Winner())
	assert.Equal(t, 3, ms.PlayerStats()["Amy"].FramesWon)
	assert.NotNil(t, ms.Rosters())

	// usable by the engine as is
	table, err := league.Default().CalcStandings("D1", ms)
	require.NoError(t, err)
	assert.Equal(t, "Crown", table[0].Team)
}

func TestDecodeSnapshotRejectsBadData(t *testing.T) {
	for name, body := range map[string]string{
		"syntax":         `{"divisions": `,
		"unknown field":  `{"teams": []}`,
		"self fixture":   `{"fixtures": [{"division": "D1", "home": "Bell", "away": "Bell"}]}`,
		"no division":    `{"results": [{"home": "Bell", "away": "Crown"}]}`,
		"negative score": `{"results": [{"division": "D1", "home": "Bell", "away": "Crown", "homeScore": -1}]}`,
		"code mismatch":  `{"divisions": {"D1": {"code": "D2"}}}`,
		"player record":  `{"players": {"Amy": {"framesWon": 6, "framesPlayed": 5}}}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeSnapshot(strings.NewReader(body))
			assert.Error(t, err)
		})
	}
}

const resultsPage = `<html><body>
<table class="nav"><tr><td>Home</td><td>Contact</td></tr></table>
<table id="results">
  <tr><th>Date</th><th>Home Team</th><th>Score</th><th>Away Team</th></tr>
  <tr><td>04/09/2025</td><td>The Crown &amp; Anchor</td><td>6 - 4</td><td>Red Lion</td></tr>
  <tr><td>04/09/2025</td><td>Royal Oak</td><td>5–5</td><td>Bell</td></tr>
  <tr><td>11/09/2025</td><td>Red Loin</td><td>v</td><td>Royal Oak</td></tr>
  <tr><td>11/09/2025</td><td>Fox and Hounds</td><td>7-3</td><td>Bell</td></tr>
  <tr><td>not a date</td><td>Bell</td><td>1-9</td><td>Royal Oak</td></tr>
</table>
</body></html>`

var knownTeams = []string{"Crown & Anchor", "Red Lion", "Royal Oak", "Bell"}

func TestParseResultsHTMLWithScoreColumn(t *testing.T) {
	got, err := ParseResultsHTML("D1", []byte(resultsPage), knownTeams)
	require.NoError(t, err)

	assert.Equal(t, []league.Result{
		{Division: "D1", Date: date(2025, 9, 4), Home: "Crown & Anchor", Away: "Red Lion", HomeScore: 6, AwayScore: 4},
		{Division: "D1", Date: date(2025, 9, 4), Home: "Royal Oak", Away: "Bell", HomeScore: 5, AwayScore: 5},
	}, got.Results)
	assert.Equal(t, []league.Fixture{
		{Division: "D1", Date: date(2025, 9, 11), Home: "Red Lion", Away: "Royal Oak"},
	}, got.Fixtures)
	assert.Equal(t, []string{"Fox and Hounds"}, got.Unmatched)
}

func TestParseResultsHTMLWithSplitScoresAndDateRows(t *testing.T) {
	page := `<table>
	  <tr><td>Home</td><td>HS</td><td>AS</td><td>Away</td></tr>
	  <tr><td colspan="4">Thu 4 Sep 2025</td></tr>
	  <tr><td>Anchor</td><td>3</td><td>7</td><td>Bell</td></tr>
	  <tr><td colspan="4">Thu 11 Sep 2025</td></tr>
	  <tr><td>Bell</td><td></td><td></td><td>Anchor</td></tr>
	  <tr><td>Bell</td><td>x</td><td>2</td><td>Anchor</td></tr>
	</table>`
	got, err := ParseResultsHTML("D2", []byte(page), nil)
	require.NoError(t, err)
	require.Len(t, got.Results, 1)
	assert.Equal(t, league.Result{Division: "D2", Date: date(2025, 9, 4), Home: "Anchor", Away: "Bell", HomeScore: 3, AwayScore: 7}, got.Results[0])
	require.Len(t, got.Fixtures, 1)
	assert.Equal(t, date(2025, 9, 11), got.Fixtures[0].Date)
	assert.Empty(t, got.Unmatched)
}

func TestParseResultsHTMLWithoutTable(t *testing.T) {
	_, err := ParseResultsHTML("D1", []byte(`<p>Results coming soon</p>`), nil)
	assert.Error(t, err)
}

func TestMergeSkipsDuplicates(t *testing.T) {
	ms, err := DecodeSnapshot(strings.NewReader(snapshotJSON))
	require.NoError(t, err)
	scraped := Scraped{
		Results: []league.Result{
			ms.Results()[0],
			{Date: date(2025, 9, 11), Home: "Bell", Away: "Oak", HomeScore: 2, AwayScore: 8},
		},
		Fixtures: []league.Fixture{ms.Fixtures()[0], {Date: date(2025, 9, 25), Home: "Oak", Away: "Crown"}},
	}
	results, fixtures := Merge(ms, "D1", scraped)
	assert.Equal(t, 1, results)
	assert.Equal(t, 1, fixtures)
	assert.Len(t, ms.Results(), 2)
	assert.Len(t, ms.Fixtures(), 2)
	assert.Equal(t, "D1", ms.Results()[1].Division)
	assert.Equal(t, []string{"Crown", "Bell", "Oak"}, ms.Divisions()["D1"].Teams)

	results, fixtures = Merge(ms, "D1", scraped)
	assert.Zero(t, results)
	assert.Zero(t, fixtures)
}

func TestFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(resultsPage))
	}))
	defer srv.Close()

	body, err := Fetch(srv.URL)
	require.NoError(t, err)
	got, err := ParseResultsHTML("D1", body, knownTeams)
	require.NoError(t, err)
	assert.Len(t, got.Results, 2)
}
