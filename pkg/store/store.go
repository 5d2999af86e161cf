// Package store persists league data and prediction snapshots in SQLite
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/richard-senior/poolleague/internal/logger"
	"github.com/richard-senior/poolleague/pkg/league"
)

// Memory is the path of a throwaway in-memory database
const Memory = ":memory:"

// Store is a SQLite backed league database
type Store struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// Open opens (creating if needed) the database at path and migrates it
func Open(path string) (*Store, error) {
	if path != Memory {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// every connection to :memory: is a separate database, and SQLite
	// serialises writers anyway
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	s := &Store{db: db, path: path, now: time.Now}
	if err := s.Migrate(); err != nil {
		db.Close()
		return nil, err
	}
	logger.Info("Database initialized successfully", path)
	return s, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate creates any missing tables and indexes
func (s *Store) Migrate() error {
	for _, t := range tables() {
		if err := createTable(s.db, t); err != nil {
			return err
		}
	}
	return nil
}

// inTx runs fn in a transaction, committing only when it succeeds
func (s *Store) inTx(fn func(tx *sql.Tx) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// SaveSources writes ds to the database. Each division present in ds has its
// teams, fixtures and results replaced; rosters are replaced per team and player
// statistics are upserted. Data for divisions not in ds is left alone.
func (s *Store) SaveSources(ds league.DataSources) error {
	divisions := ds.Divisions()
	codes := map[string]bool{}
	for code := range divisions {
		codes[code] = true
	}
	for _, f := range ds.Fixtures() {
		codes[f.Division] = true
	}
	for _, r := range ds.Results() {
		codes[r.Division] = true
	}

	return s.inTx(func(tx *sql.Tx) error {
		for code := range codes {
			for _, t := range []Persistable{&teamRecord{}, &fixtureRecord{}, &resultRecord{}} {
				if err := deleteWhere(tx, t, "division = ?", code); err != nil {
					return err
				}
			}
			d := divisions[code]
			if err := save(tx, &divisionRecord{Code: code, Name: d.Name}); err != nil {
				return err
			}
			for i, team := range d.Teams {
				if err := save(tx, &teamRecord{Division: code, Team: team, Ordinal: i}); err != nil {
					return err
				}
			}
		}
		for _, f := range ds.Fixtures() {
			if err := save(tx, newFixtureRecord(f)); err != nil {
				return err
			}
		}
		for _, r := range ds.Results() {
			if err := save(tx, newResultRecord(r)); err != nil {
				return err
			}
		}
		for team, players := range ds.Rosters() {
			if err := deleteWhere(tx, &rosterRecord{}, "team = ?", team); err != nil {
				return err
			}
			for i, p := range players {
				if err := save(tx, &rosterRecord{Team: team, Player: p, Ordinal: i}); err != nil {
					return err
				}
			}
		}
		for name, st := range ds.PlayerStats() {
			rec := &playerRecord{Name: name, FramesWon: st.FramesWon, FramesPlayed: st.FramesPlayed}
			if err := save(tx, rec); err != nil {
				return err
			}
		}
		logger.Debug("Saved league data", len(codes), "divisions")
		return nil
	})
}

// LoadSources reads the whole league back as an in-memory DataSources.
// Fixtures and results come back ordered by date, then home team.
func (s *Store) LoadSources() (*league.MemorySources, error) {
	out := &league.MemorySources{
		DivisionMap: map[string]league.Division{},
		RosterMap:   map[string][]string{},
		PlayerMap:   map[string]league.PlayerStats{},
	}

	divisions, err := findWhere[divisionRecord](s.db, "")
	if err != nil {
		return nil, err
	}
	for _, d := range divisions {
		out.DivisionMap[d.Code] = league.Division{Code: d.Code, Name: d.Name}
	}

	teams, err := findWhere[teamRecord](s.db, "")
	if err != nil {
		return nil, err
	}
	sort.Slice(teams, func(i, j int) bool { return teams[i].Ordinal < teams[j].Ordinal })
	for _, t := range teams {
		d := out.DivisionMap[t.Division]
		d.Code = t.Division
		d.Teams = append(d.Teams, t.Team)
		out.DivisionMap[t.Division] = d
	}

	rosters, err := findWhere[rosterRecord](s.db, "")
	if err != nil {
		return nil, err
	}
	sort.Slice(rosters, func(i, j int) bool { return rosters[i].Ordinal < rosters[j].Ordinal })
	for _, r := range rosters {
		out.RosterMap[r.Team] = append(out.RosterMap[r.Team], r.Player)
	}

	players, err := findWhere[playerRecord](s.db, "")
	if err != nil {
		return nil, err
	}
	for _, p := range players {
		out.PlayerMap[p.Name] = league.PlayerStats{FramesWon: p.FramesWon, FramesPlayed: p.FramesPlayed}
	}

	fixtures, err := findWhere[fixtureRecord](s.db, "")
	if err != nil {
		return nil, err
	}
	for _, rec := range fixtures {
		f, err := rec.fixture()
		if err != nil {
			return nil, err
		}
		out.FixtureList = append(out.FixtureList, f)
	}
	sort.SliceStable(out.FixtureList, func(i, j int) bool {
		a, b := out.FixtureList[i], out.FixtureList[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		return a.Home < b.Home
	})

	results, err := findWhere[resultRecord](s.db, "")
	if err != nil {
		return nil, err
	}
	for _, rec := range results {
		r, err := rec.result()
		if err != nil {
			return nil, err
		}
		out.ResultList = append(out.ResultList, r)
	}
	sort.SliceStable(out.ResultList, func(i, j int) bool {
		a, b := out.ResultList[i], out.ResultList[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		return a.Home < b.Home
	})
	return out, nil
}

// SavePrediction stores a prediction snapshot, assigning an ID and creation time
// when they are missing, and returns the stored snapshot
func (s *Store) SavePrediction(p league.PredictionSnapshot) (league.PredictionSnapshot, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	} else if _, err := uuid.Parse(p.ID); err != nil {
		return league.PredictionSnapshot{}, fmt.Errorf("prediction id must be a UUID: %w", err)
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now()
	}
	if p.Division == "" || p.Home == "" || p.Away == "" {
		return league.PredictionSnapshot{}, fmt.Errorf("prediction needs a division, home and away team")
	}
	if err := save(s.db, newPredictionRecord(p)); err != nil {
		return league.PredictionSnapshot{}, err
	}
	p.Date = p.Date.UTC()
	p.CreatedAt = p.CreatedAt.UTC()
	return p, nil
}

// Prediction loads one snapshot by ID
func (s *Store) Prediction(id string) (league.PredictionSnapshot, error) {
	rec := &predictionRecord{ID: id}
	if err := findByPrimaryKey(s.db, rec); err != nil {
		return league.PredictionSnapshot{}, err
	}
	return rec.snapshot()
}

// Predictions returns the snapshots for a division, or all of them when division
// is empty, oldest first
func (s *Store) Predictions(division string) ([]league.PredictionSnapshot, error) {
	var recs []predictionRecord
	var err error
	if division == "" {
		recs, err = findWhere[predictionRecord](s.db, "")
	} else {
		recs, err = findWhere[predictionRecord](s.db, "division = ?", division)
	}
	if err != nil {
		return nil, err
	}
	out := make([]league.PredictionSnapshot, 0, len(recs))
	for _, rec := range recs {
		p, err := rec.snapshot()
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// ReconcilePredictions fills in the actual winner of every unresolved prediction
// whose fixture now has a stored result, and returns how many were resolved.
// When a pairing has been played more than once the result nearest the predicted
// date is used.
func (s *Store) ReconcilePredictions() (int, error) {
	pending, err := findWhere[predictionRecord](s.db, "actualWinner = ''")
	if err != nil {
		return 0, err
	}
	if len(pending) == 0 {
		return 0, nil
	}
	recs, err := findWhere[resultRecord](s.db, "")
	if err != nil {
		return 0, err
	}
	played := map[string][]league.Result{}
	for _, rec := range recs {
		r, err := rec.result()
		if err != nil {
			return 0, err
		}
		k := pairingKey(r.Division, r.Home, r.Away)
		played[k] = append(played[k], r)
	}

	resolved := 0
	err = s.inTx(func(tx *sql.Tx) error {
		for i := range pending {
			p := &pending[i]
			candidates := played[pairingKey(p.Division, p.Home, p.Away)]
			if len(candidates) == 0 {
				continue
			}
			date, err := parseTime(p.Date)
			if err != nil {
				return err
			}
			best := candidates[0]
			for _, r := range candidates[1:] {
				if absDuration(r.Date.Sub(date)) < absDuration(best.Date.Sub(date)) {
					best = r
				}
			}
			p.ActualWinner = string(best.Winner())
			if err := save(tx, p); err != nil {
				return err
			}
			resolved++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	logger.Debug("Reconciled predictions", resolved, "of", len(pending))
	return resolved, nil
}

func pairingKey(division, home, away string) string {
	return division + "\x00" + home + "\x00" + away
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
