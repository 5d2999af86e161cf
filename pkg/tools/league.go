package tools

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/richard-senior/poolleague/internal/logger"
	"github.com/richard-senior/poolleague/pkg/league"
	"github.com/richard-senior/poolleague/pkg/protocol"
)

// LeagueStore is the persistence the league tools need
type LeagueStore interface {
	LoadSources() (*league.MemorySources, error)
	SavePrediction(p league.PredictionSnapshot) (league.PredictionSnapshot, error)
	Predictions(division string) ([]league.PredictionSnapshot, error)
	ReconcilePredictions() (int, error)
}

// Definition pairs a tool with the function that handles calls to it
type Definition struct {
	Tool    protocol.Tool
	Handler func(params any) (any, error)
}

// LeagueToolkit exposes the prediction engine as MCP tools over a league store
type LeagueToolkit struct {
	engine   *league.Engine
	analyzer *league.ImportanceAnalyzer
	store    LeagueStore
}

func NewLeagueToolkit(engine *league.Engine, store LeagueStore) *LeagueToolkit {
	return &LeagueToolkit{
		engine:   engine,
		analyzer: league.NewImportanceAnalyzer(engine),
		store:    store,
	}
}

// Definitions lists every league tool
func (k *LeagueToolkit) Definitions() []Definition {
	return []Definition{
		{DivisionsTool(), k.HandleDivisions},
		{StandingsTool(), k.HandleStandings},
		{TeamStrengthTool(), k.HandleTeamStrength},
		{PredictFixtureTool(), k.HandlePredictFixture},
		{SimulateSeasonTool(), k.HandleSimulateSeason},
		{FixtureImportanceTool(), k.HandleFixtureImportance},
		{RecordPredictionTool(), k.HandleRecordPrediction},
		{PredictionAccuracyTool(), k.HandlePredictionAccuracy},
	}
}

var (
	divisionProp  = protocol.ToolProperty{Type: "string", Description: "The division code, e.g. 'D1'. Use league_divisions to list them."}
	overridesProp = protocol.ToolProperty{
		Type: "object",
		Description: `Hypothetical squad changes keyed by team name, e.g.
		{"Red Lion": {"added": ["J. Smith"], "removed": ["A. Jones"]}}`,
	}
	topNProp   = protocol.ToolProperty{Type: "integer", Description: "How many of a team's best players make up its strength (default 5)"}
	seedProp   = protocol.ToolProperty{Type: "string", Description: "Random seed (number or numeric string). The same seed and data give the same answer. Omit for a fresh seed."}
	trialsProp = protocol.ToolProperty{Type: "integer", Description: "Number of simulated seasons (default and upper limit from configuration)"}
	whatIfProp = protocol.ToolProperty{
		Type: "array",
		Description: `Hypothetical results treated as already played, e.g.
		[{"division": "D1", "date": "2025-10-02T00:00:00Z", "home": "Bell", "away": "Crown", "homeScore": 6, "awayScore": 4}]`,
		Items: &protocol.ToolProperty{Type: "object"},
	}
)

func DivisionsTool() protocol.Tool {
	return protocol.Tool{
		Name:        "league_divisions",
		Description: "Lists the league's divisions with their teams and how many results and fixtures are held for each.",
		InputSchema: protocol.InputSchema{
			Type:     "object",
			Required: []string{},
		},
	}
}

func StandingsTool() protocol.Tool {
	return protocol.Tool{
		Name: "league_standings",
		Description: `
		Returns the current league table for a division, calculated from completed results.
		Ordered by points, then frame difference, then wins, then team name.
		`,
		InputSchema: protocol.InputSchema{
			Type:       "object",
			Properties: map[string]protocol.ToolProperty{"division": divisionProp},
			Required:   []string{"division"},
		},
	}
}

func TeamStrengthTool() protocol.Tool {
	return protocol.Tool{
		Name: "league_team_strength",
		Description: `
		Returns each team's strength rating (0-1, its smoothed frame win rate) for a division.
		With overrides, returns the ratings after the hypothetical squad changes and the
		adjustment applied to each team.
		`,
		InputSchema: protocol.InputSchema{
			Type: "object",
			Properties: map[string]protocol.ToolProperty{
				"division":  divisionProp,
				"overrides": overridesProp,
				"topN":      topNProp,
			},
			Required: []string{"division"},
		},
	}
}

func PredictFixtureTool() protocol.Tool {
	return protocol.Tool{
		Name: "league_predict_fixture",
		Description: `
		Predicts a single match: the probability of each frame going to the home side,
		home win / draw / away win probabilities, expected frames and the predicted winner.
		With overrides, the prediction without them is returned as the baseline.
		`,
		InputSchema: protocol.InputSchema{
			Type: "object",
			Properties: map[string]protocol.ToolProperty{
				"division":  divisionProp,
				"home":      {Type: "string", Description: "The home team"},
				"away":      {Type: "string", Description: "The away team"},
				"overrides": overridesProp,
				"topN":      topNProp,
				"seed":      seedProp,
			},
			Required: []string{"division", "home", "away"},
		},
	}
}

func SimulateSeasonTool() protocol.Tool {
	return protocol.Tool{
		Name: "league_simulate_season",
		Description: `
		Plays the rest of a division's season many times and returns, for each team, the
		expected points and position, the probability of each finishing position, and the
		chances of winning the title, promotion and relegation. Also returns outcome
		probabilities for every remaining fixture.
		`,
		InputSchema: protocol.InputSchema{
			Type: "object",
			Properties: map[string]protocol.ToolProperty{
				"division":  divisionProp,
				"overrides": overridesProp,
				"topN":      topNProp,
				"whatIf":    whatIfProp,
				"seed":      seedProp,
				"trials":    trialsProp,
			},
			Required: []string{"division"},
		},
	}
}

func FixtureImportanceTool() protocol.Tool {
	return protocol.Tool{
		Name: "league_fixture_importance",
		Description: `
		Ranks the remaining fixtures of a division by how much their outcome changes one
		team's chance of finishing in the top targetPlaces positions (default: the
		promotion places). Each fixture is simulated with the home side winning and with
		the away side winning; impact is the difference.
		`,
		InputSchema: protocol.InputSchema{
			Type: "object",
			Properties: map[string]protocol.ToolProperty{
				"division":     divisionProp,
				"team":         {Type: "string", Description: "The team whose chances are measured"},
				"targetPlaces": {Type: "integer", Description: "Finish within this many places (default: promotion places)"},
				"overrides":    overridesProp,
				"topN":         topNProp,
				"whatIf":       whatIfProp,
				"seed":         seedProp,
				"trials":       trialsProp,
			},
			Required: []string{"division", "team"},
		},
	}
}

func RecordPredictionTool() protocol.Tool {
	return protocol.Tool{
		Name: "league_record_prediction",
		Description: `
		Predicts a fixture and stores the prediction so its accuracy can be checked once
		the result is in. The fixture date is looked up when omitted.
		`,
		InputSchema: protocol.InputSchema{
			Type: "object",
			Properties: map[string]protocol.ToolProperty{
				"division":  divisionProp,
				"home":      {Type: "string", Description: "The home team"},
				"away":      {Type: "string", Description: "The away team"},
				"date":      {Type: "string", Description: "Fixture date, YYYY-MM-DD or RFC 3339"},
				"overrides": overridesProp,
				"topN":      topNProp,
				"seed":      seedProp,
			},
			Required: []string{"division", "home", "away"},
		},
	}
}

func PredictionAccuracyTool() protocol.Tool {
	return protocol.Tool{
		Name: "league_prediction_accuracy",
		Description: `
		Matches stored predictions against results and reports accuracy, Brier score and
		calibration by confidence band. Optionally limited to one division.
		`,
		InputSchema: protocol.InputSchema{
			Type: "object",
			Properties: map[string]protocol.ToolProperty{
				"division": {Type: "string", Description: "Only count predictions for this division"},
			},
			Required: []string{},
		},
	}
}

type divisionSummary struct {
	Code     string   `json:"code"`
	Name     string   `json:"name"`
	Teams    []string `json:"teams"`
	Results  int      `json:"results"`
	Fixtures int      `json:"fixtures"`
}

func (k *LeagueToolkit) HandleDivisions(params any) (any, error) {
	ds, err := k.store.LoadSources()
	if err != nil {
		return nil, err
	}
	out := []divisionSummary{}
	for code, d := range ds.Divisions() {
		s := divisionSummary{Code: code, Name: d.Name, Teams: d.Teams}
		for _, r := range ds.Results() {
			if r.Division == code {
				s.Results++
			}
		}
		for _, f := range ds.Fixtures() {
			if f.Division == code {
				s.Fixtures++
			}
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return map[string]any{"divisions": out}, nil
}

func (k *LeagueToolkit) HandleStandings(params any) (any, error) {
	args, err := argsMap(params)
	if err != nil {
		return nil, err
	}
	division, err := requiredString(args, "division")
	if err != nil {
		return nil, err
	}
	ds, err := k.store.LoadSources()
	if err != nil {
		return nil, err
	}
	table, err := k.engine.CalcStandings(division, ds)
	if err != nil {
		return nil, err
	}
	return map[string]any{"division": division, "standings": table}, nil
}

type strengthResponse struct {
	Ratings     league.Ratings     `json:"ratings"`
	Adjustments map[string]float64 `json:"adjustments,omitempty"`
	Warning     string             `json:"warning,omitempty"`
}

func (k *LeagueToolkit) HandleTeamStrength(params any) (any, error) {
	args, err := argsMap(params)
	if err != nil {
		return nil, err
	}
	var req struct {
		Division  string                `json:"division"`
		Overrides league.SquadOverrides `json:"overrides"`
		TopN      int                   `json:"topN"`
	}
	if err := decodeArgs(args, &req); err != nil {
		return nil, err
	}
	if req.Division == "" {
		return nil, argErrorf("no division parameter was sent")
	}
	ds, err := k.store.LoadSources()
	if err != nil {
		return nil, err
	}

	var out strengthResponse
	if len(req.Overrides) == 0 {
		out.Ratings, err = k.engine.CalcTeamStrength(req.Division, ds)
	} else {
		out.Ratings, err = k.engine.AdjustedStrength(req.Division, req.Overrides, req.TopN, ds)
		if err == nil {
			out.Adjustments, err = k.engine.CalcStrengthAdjustments(req.Division, req.Overrides, req.TopN, ds)
		}
	}
	if err != nil {
		return nil, err
	}
	if warn := out.Ratings.Err(); warn != nil {
		out.Warning = warn.Error()
	}
	return out, nil
}

func (k *LeagueToolkit) fixtureRequest(args map[string]any) (league.FixtureRequest, error) {
	seed, err := takeSeed(args)
	if err != nil {
		return league.FixtureRequest{}, err
	}
	var req league.FixtureRequest
	if err := decodeArgs(args, &req); err != nil {
		return req, err
	}
	if req.Division == "" || req.Home == "" || req.Away == "" {
		return req, argErrorf("division, home and away are required")
	}
	if req.Home == req.Away {
		return req, argErrorf("%s cannot play itself", req.Home)
	}
	req.Seed = seed
	return req, nil
}

func (k *LeagueToolkit) HandlePredictFixture(params any) (any, error) {
	args, err := argsMap(params)
	if err != nil {
		return nil, err
	}
	req, err := k.fixtureRequest(args)
	if err != nil {
		return nil, err
	}
	ds, err := k.store.LoadSources()
	if err != nil {
		return nil, err
	}
	return k.engine.PredictFixture(req, ds)
}

// checkTrials accepts zero (the configured default) up to Config.MaxTrials
func (k *LeagueToolkit) checkTrials(trials int) error {
	limit := k.engine.Config().MaxTrials
	if trials < 0 || trials > limit {
		return argErrorf("trials must be between 1 and %d, got %d", limit, trials)
	}
	return nil
}

func (k *LeagueToolkit) HandleSimulateSeason(params any) (any, error) {
	args, err := argsMap(params)
	if err != nil {
		return nil, err
	}
	seed, err := takeSeed(args)
	if err != nil {
		return nil, err
	}
	// the worker count is server configuration, not a caller choice
	if _, ok := args["workers"]; ok {
		return nil, argErrorf("workers cannot be set by a tool call")
	}
	var req league.SimulationRequest
	if err := decodeArgs(args, &req); err != nil {
		return nil, err
	}
	if req.Division == "" {
		return nil, argErrorf("no division parameter was sent")
	}
	if err := k.checkTrials(req.Trials); err != nil {
		return nil, err
	}
	req.Seed = seed
	ds, err := k.store.LoadSources()
	if err != nil {
		return nil, err
	}
	return k.engine.Simulate(req, ds)
}

func (k *LeagueToolkit) HandleFixtureImportance(params any) (any, error) {
	args, err := argsMap(params)
	if err != nil {
		return nil, err
	}
	seed, err := takeSeed(args)
	if err != nil {
		return nil, err
	}
	var req league.ImportanceRequest
	if err := decodeArgs(args, &req); err != nil {
		return nil, err
	}
	if req.Division == "" || req.Team == "" {
		return nil, argErrorf("division and team are required")
	}
	if err := k.checkTrials(req.Trials); err != nil {
		return nil, err
	}
	req.Seed = seed
	ds, err := k.store.LoadSources()
	if err != nil {
		return nil, err
	}
	ranked, err := k.analyzer.CalcFixtureImportance(req, ds)
	if err != nil {
		return nil, err
	}
	hits, misses := k.analyzer.Cache().Stats()
	logger.Debug("Importance cache", "hits", hits, "misses", misses)
	return map[string]any{
		"division": req.Division,
		"team":     req.Team,
		"seed":     seed,
		"fixtures": ranked,
	}, nil
}

func (k *LeagueToolkit) HandleRecordPrediction(params any) (any, error) {
	args, err := argsMap(params)
	if err != nil {
		return nil, err
	}
	var date time.Time
	if _, ok := args["date"]; ok {
		s, err := requiredString(args, "date")
		if err != nil {
			return nil, err
		}
		if date, err = parseDate(s); err != nil {
			return nil, err
		}
		delete(args, "date")
	}
	req, err := k.fixtureRequest(args)
	if err != nil {
		return nil, err
	}
	ds, err := k.store.LoadSources()
	if err != nil {
		return nil, err
	}
	if date.IsZero() {
		f, ok := nextFixture(ds, req.Division, req.Home, req.Away)
		if !ok {
			return nil, argErrorf("no unplayed fixture %s v %s in %s; pass a date", req.Home, req.Away, req.Division)
		}
		date = f.Date
	}

	res, err := k.engine.PredictFixture(req, ds)
	if err != nil {
		return nil, err
	}
	snap := league.NewSnapshot(league.Fixture{Division: req.Division, Date: date, Home: req.Home, Away: req.Away}, res)
	return k.store.SavePrediction(snap)
}

// nextFixture finds the earliest fixture for a pairing that has no result on the same date
func nextFixture(ds league.DataSources, division, home, away string) (league.Fixture, bool) {
	played := map[int64]bool{}
	for _, r := range ds.Results() {
		if r.Division == division && r.Home == home && r.Away == away {
			played[r.Date.Unix()] = true
		}
	}
	var best league.Fixture
	found := false
	for _, f := range ds.Fixtures() {
		if f.Division != division || f.Home != home || f.Away != away || played[f.Date.Unix()] {
			continue
		}
		if !found || f.Date.Before(best.Date) {
			best, found = f, true
		}
	}
	return best, found
}

type accuracyResponse struct {
	Division   string               `json:"division,omitempty"`
	Reconciled int                  `json:"reconciled"`
	Stats      league.AccuracyStats `json:"stats"`
}

func (k *LeagueToolkit) HandlePredictionAccuracy(params any) (any, error) {
	args, err := argsMap(params)
	if err != nil {
		return nil, err
	}
	division := ""
	if _, ok := args["division"]; ok {
		if division, err = requiredString(args, "division"); err != nil {
			return nil, err
		}
	}
	n, err := k.store.ReconcilePredictions()
	if err != nil {
		return nil, fmt.Errorf("failed to reconcile predictions: %w", err)
	}
	predictions, err := k.store.Predictions(division)
	if err != nil {
		return nil, err
	}
	return accuracyResponse{
		Division:   division,
		Reconciled: n,
		Stats:      k.engine.CalculateAccuracy(predictions),
	}, nil
}

// IsArgumentError reports whether err was caused by the caller's arguments
func IsArgumentError(err error) bool {
	var ae *ArgumentError
	return errors.As(err, &ae)
}
