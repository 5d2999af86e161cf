package importer

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/richard-senior/poolleague/internal/logger"
	"github.com/richard-senior/poolleague/pkg/league"
	"github.com/richard-senior/poolleague/pkg/transport"
	"github.com/richard-senior/poolleague/pkg/util"
)

// MinNameScore is the similarity a scraped team name needs to be mapped onto a known team
const MinNameScore = 0.75

// Scraped is what ParseResultsHTML found on a page
type Scraped struct {
	Results  []league.Result  `json:"results"`
	Fixtures []league.Fixture `json:"fixtures"`
	// scraped names that matched no known team; their rows were skipped
	Unmatched []string `json:"unmatched,omitempty"`
}

// columns maps the meaning of a results table column to its index
type columns struct {
	date, home, away, score, homeScore, awayScore int
}

var (
	scorePattern = regexp.MustCompile(`^(\d+)\s*[-–—:]\s*(\d+)$`)
	datePattern  = regexp.MustCompile(`\d`)
	dateLayouts  = []string{
		"2006-01-02",
		"02/01/2006",
		"2/1/2006",
		"02/01/06",
		"2/1/06",
		"02-01-2006",
		"2 Jan 2006",
		"2 January 2006",
		"Mon 2 Jan 2006",
		"Monday 2 January 2006",
		"Mon 02/01/2006",
	}
)

// Fetch downloads a league web page
func Fetch(url string) ([]byte, error) {
	logger.Info("Fetching league page", url)
	body, err := transport.GetHtml(url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	return body, nil
}

// ParseResultsHTML extracts results and fixtures for a division from every
// table on the page whose header row names Home and Away columns. A Score
// column ("6-4") or HomeScore/AwayScore columns give the result; rows with no
// score (blank, "v", "vs") are fixtures. Dates come from a Date column or, failing
// that, from a preceding single-cell row holding only a date.
//
// Scraped team names are resolved against teams by fuzzy matching. When teams is
// empty, names are taken as they appear.
func ParseResultsHTML(division string, html []byte, teams []string) (Scraped, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return Scraped{}, fmt.Errorf("error parsing HTML: %w", err)
	}

	var out Scraped
	unmatched := map[string]bool{}
	resolve := func(name string) (string, bool) {
		name = strings.TrimSpace(name)
		if len(teams) == 0 {
			return name, name != ""
		}
		if match, ok := util.BestMatch(name, teams, MinNameScore); ok {
			return match, true
		}
		if !unmatched[name] {
			unmatched[name] = true
			out.Unmatched = append(out.Unmatched, name)
		}
		return "", false
	}

	tables := 0
	doc.Find("table").Each(func(_ int, table *goquery.Selection) {
		rows := table.Find("tr")
		cols, headerAt, ok := findHeader(rows)
		if !ok {
			return
		}
		tables++
		var current time.Time
		rows.Each(func(i int, row *goquery.Selection) {
			if i <= headerAt {
				return
			}
			cells := cellTexts(row)
			if len(cells) == 1 {
				if d, ok := parseDate(cells[0]); ok {
					current = d
				}
				return
			}
			date := current
			if cols.date >= 0 && cols.date < len(cells) {
				d, ok := parseDate(cells[cols.date])
				if !ok {
					logger.Debug("Skipping row with unreadable date", cells)
					return
				}
				date = d
			}
			if cols.home >= len(cells) || cols.away >= len(cells) {
				return
			}
			home, okHome := resolve(cells[cols.home])
			away, okAway := resolve(cells[cols.away])
			if !okHome || !okAway || home == away {
				return
			}

			hs, as, played, ok := readScore(cells, cols)
			if !ok {
				logger.Debug("Skipping row with unreadable score", cells)
				return
			}
			if played {
				out.Results = append(out.Results, league.Result{
					Division: division, Date: date, Home: home, Away: away, HomeScore: hs, AwayScore: as,
				})
			} else {
				out.Fixtures = append(out.Fixtures, league.Fixture{Division: division, Date: date, Home: home, Away: away})
			}
		})
	})
	if tables == 0 {
		return Scraped{}, fmt.Errorf("no results table found (need Home and Away columns)")
	}
	logger.Debug("Scraped division", division, len(out.Results), "results", len(out.Fixtures), "fixtures")
	return out, nil
}

// findHeader locates the first row whose cells name home and away columns
func findHeader(rows *goquery.Selection) (columns, int, bool) {
	found, at := columns{}, -1
	rows.EachWithBreak(func(i int, row *goquery.Selection) bool {
		c := columns{date: -1, home: -1, away: -1, score: -1, homeScore: -1, awayScore: -1}
		for j, text := range cellTexts(row) {
			switch h := strings.ToLower(strings.Join(strings.Fields(text), " ")); {
			case h == "date" || strings.HasPrefix(h, "date "):
				c.date = j
			case h == "home score" || h == "homescore" || h == "hs":
				c.homeScore = j
			case h == "away score" || h == "awayscore" || h == "as":
				c.awayScore = j
			case h == "home" || h == "home team":
				c.home = j
			case h == "away" || h == "away team":
				c.away = j
			case h == "score" || h == "result" || h == "frames":
				c.score = j
			}
		}
		if c.home >= 0 && c.away >= 0 {
			found, at = c, i
			return false
		}
		return true
	})
	return found, at, at >= 0
}

func cellTexts(row *goquery.Selection) []string {
	var cells []string
	row.Find("th, td").Each(func(_ int, cell *goquery.Selection) {
		cells = append(cells, strings.TrimSpace(cell.Text()))
	})
	return cells
}

// readScore returns the frame scores of a row, or played=false for a fixture
func readScore(cells []string, cols columns) (home, away int, played, ok bool) {
	if cols.homeScore >= 0 && cols.awayScore >= 0 {
		if cols.homeScore >= len(cells) || cols.awayScore >= len(cells) {
			return 0, 0, false, false
		}
		hs, as := strings.TrimSpace(cells[cols.homeScore]), strings.TrimSpace(cells[cols.awayScore])
		if hs == "" && as == "" {
			return 0, 0, false, true
		}
		h, err1 := strconv.Atoi(hs)
		a, err2 := strconv.Atoi(as)
		if err1 != nil || err2 != nil || h < 0 || a < 0 {
			return 0, 0, false, false
		}
		return h, a, true, true
	}
	if cols.score < 0 {
		return 0, 0, false, true
	}
	if cols.score >= len(cells) {
		return 0, 0, false, false
	}
	text := strings.TrimSpace(cells[cols.score])
	switch strings.ToLower(text) {
	case "", "v", "vs", "v.", "-", "tbc", "tba":
		return 0, 0, false, true
	}
	m := scorePattern.FindStringSubmatch(text)
	if m == nil {
		return 0, 0, false, false
	}
	h, _ := strconv.Atoi(m[1])
	a, _ := strconv.Atoi(m[2])
	return h, a, true, true
}

func parseDate(s string) (time.Time, bool) {
	s = strings.Join(strings.Fields(s), " ")
	if !datePattern.MatchString(s) {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Merge adds scraped results and fixtures for a division to ms, skipping any
// already present, and makes sure the division and its teams are listed
func Merge(ms *league.MemorySources, division string, s Scraped) (results, fixtures int) {
	if ms.DivisionMap == nil {
		ms.DivisionMap = map[string]league.Division{}
	}
	d := ms.DivisionMap[division]
	d.Code = division
	listed := map[string]bool{}
	for _, t := range d.Teams {
		listed[t] = true
	}
	addTeam := func(t string) {
		if !listed[t] {
			listed[t] = true
			d.Teams = append(d.Teams, t)
		}
	}

	type key struct {
		date       int64
		home, away string
	}
	haveResult := map[key]bool{}
	for _, r := range ms.ResultList {
		if r.Division == division {
			haveResult[key{r.Date.UnixNano(), r.Home, r.Away}] = true
		}
	}
	haveFixture := map[key]bool{}
	for _, f := range ms.FixtureList {
		if f.Division == division {
			haveFixture[key{f.Date.UnixNano(), f.Home, f.Away}] = true
		}
	}

	for _, r := range s.Results {
		addTeam(r.Home)
		addTeam(r.Away)
		k := key{r.Date.UnixNano(), r.Home, r.Away}
		if haveResult[k] {
			continue
		}
		haveResult[k] = true
		r.Division = division
		ms.ResultList = append(ms.ResultList, r)
		results++
	}
	for _, f := range s.Fixtures {
		addTeam(f.Home)
		addTeam(f.Away)
		k := key{f.Date.UnixNano(), f.Home, f.Away}
		if haveFixture[k] {
			continue
		}
		haveFixture[k] = true
		f.Division = division
		ms.FixtureList = append(ms.FixtureList, f)
		fixtures++
	}
	ms.DivisionMap[division] = d
	return results, fixtures
}
