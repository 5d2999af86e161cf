// Package importer turns external league data into engine data sources:
// JSON snapshots exported by the league web app, and results tables scraped
// from league websites.
package importer

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/richard-senior/poolleague/pkg/league"
)

// DecodeSnapshot reads a JSON league snapshot (the MemorySources wire format)
// and checks it is internally consistent
func DecodeSnapshot(r io.Reader) (*league.MemorySources, error) {
	var ms league.MemorySources
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&ms); err != nil {
		return nil, fmt.Errorf("failed to decode league snapshot: %w", err)
	}
	if err := normalize(&ms); err != nil {
		return nil, err
	}
	return &ms, nil
}

// normalize fills in implied fields and rejects data the engine cannot use
func normalize(ms *league.MemorySources) error {
	if ms.DivisionMap == nil {
		ms.DivisionMap = map[string]league.Division{}
	}
	if ms.RosterMap == nil {
		ms.RosterMap = map[string][]string{}
	}
	if ms.PlayerMap == nil {
		ms.PlayerMap = map[string]league.PlayerStats{}
	}
	for code, d := range ms.DivisionMap {
		if d.Code == "" {
			d.Code = code
		}
		if d.Code != code {
			return fmt.Errorf("division %s is listed under key %s", d.Code, code)
		}
		ms.DivisionMap[code] = d
	}
	for i, f := range ms.FixtureList {
		if err := checkPairing(f.Division, f.Home, f.Away); err != nil {
			return fmt.Errorf("fixture %d: %w", i, err)
		}
	}
	for i, r := range ms.ResultList {
		if err := checkPairing(r.Division, r.Home, r.Away); err != nil {
			return fmt.Errorf("result %d: %w", i, err)
		}
		if r.HomeScore < 0 || r.AwayScore < 0 {
			return fmt.Errorf("result %d: negative score %d-%d", i, r.HomeScore, r.AwayScore)
		}
	}
	for name, st := range ms.PlayerMap {
		if st.FramesWon < 0 || st.FramesPlayed < 0 || st.FramesWon > st.FramesPlayed {
			return fmt.Errorf("player %s: invalid frame record %d/%d", name, st.FramesWon, st.FramesPlayed)
		}
	}
	return nil
}

func checkPairing(division, home, away string) error {
	switch {
	case division == "":
		return fmt.Errorf("missing division")
	case home == "" || away == "":
		return fmt.Errorf("missing team name")
	case home == away:
		return fmt.Errorf("%s cannot play itself", home)
	}
	return nil
}
