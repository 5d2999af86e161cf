package league

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

// frameEpsilon keeps frame probabilities strictly inside (0,1)
const frameEpsilon = 1e-9

// matchStream separates single fixture streams from season trial streams that share a seed
const matchStream = math.MaxUint64

// Scoreline is one possible final score of a match and its probability
type Scoreline struct {
	Home int     `json:"home"`
	Away int     `json:"away"`
	P    float64 `json:"p"`
}

// Outcome returns which side the scoreline favours
func (s Scoreline) Outcome() Winner {
	return Result{HomeScore: s.Home, AwayScore: s.Away}.Winner()
}

// PredictFrame returns the probability that the home side wins a single frame.
// It is a logistic function of the strength differential, so equal strengths give
// exactly 0.5, and the result is clamped into [1e-9, 1-1e-9].
func (e *Engine) PredictFrame(strengthHome, strengthAway float64) float64 {
	diff := strengthHome - strengthAway
	if diff == 0 {
		return 0.5
	}
	p := 1.0 / (1.0 + math.Exp(-e.cfg.FrameScale*diff))
	if math.IsNaN(p) {
		return 0.5
	}
	return math.Min(1-frameEpsilon, math.Max(frameEpsilon, p))
}

// MatchDistribution returns the exact distribution of final scorelines when each
// frame is won by the home side independently with probability pFrame.
// Fixed format plays every frame; race format stops at a majority.
func (e *Engine) MatchDistribution(pFrame float64) []Scoreline {
	n := e.cfg.FramesPerMatch
	var out []Scoreline
	total := 0.0
	if e.cfg.Format == FormatRace {
		target := n/2 + 1
		q := 1 - pFrame
		for j := 0; j < target; j++ {
			// the winner takes the last frame, the loser's j frames fall anywhere before it
			ways := choose(target-1+j, j)
			home := ways * math.Pow(pFrame, float64(target)) * math.Pow(q, float64(j))
			away := ways * math.Pow(q, float64(target)) * math.Pow(pFrame, float64(j))
			out = append(out, Scoreline{Home: target, Away: j, P: home}, Scoreline{Home: j, Away: target, P: away})
			total += home + away
		}
	} else {
		binom := distuv.Binomial{N: float64(n), P: pFrame}
		for k := 0; k <= n; k++ {
			p := binom.Prob(float64(k))
			out = append(out, Scoreline{Home: k, Away: n - k, P: p})
			total += p
		}
	}
	if total > 0 {
		for i := range out {
			out[i].P /= total
		}
	}
	return out
}

// MatchProbabilities is the analytic counterpart of RunPredSim
func (e *Engine) MatchProbabilities(pFrame float64) PredictionResult {
	res := PredictionResult{PFrame: pFrame}
	for _, s := range e.MatchDistribution(pFrame) {
		switch s.Outcome() {
		case WinnerHome:
			res.PHomeWin += s.P
		case WinnerAway:
			res.PAwayWin += s.P
		default:
			res.PDraw += s.P
		}
		res.ExpectedHome += s.P * float64(s.Home)
		res.ExpectedAway += s.P * float64(s.Away)
	}
	e.summarize(&res)
	return res
}

// RunPredSim plays Config.MatchTrials matches frame by frame and reports the
// outcome frequencies. The same pFrame and seed always give the same result.
func (e *Engine) RunPredSim(pFrame float64, seed uint64) PredictionResult {
	trials := e.cfg.MatchTrials
	rng := rand.New(rand.NewPCG(seed, matchStream))
	n := e.cfg.FramesPerMatch
	race := e.cfg.Format == FormatRace
	target := n/2 + 1

	var homeWins, draws, awayWins, homeFrames, awayFrames int
	for t := 0; t < trials; t++ {
		h, a := 0, 0
		for {
			if race && (h == target || a == target) {
				break
			}
			if !race && h+a == n {
				break
			}
			if rng.Float64() < pFrame {
				h++
			} else {
				a++
			}
		}
		homeFrames += h
		awayFrames += a
		switch {
		case h > a:
			homeWins++
		case a > h:
			awayWins++
		default:
			draws++
		}
	}

	res := PredictionResult{
		PFrame:       pFrame,
		PHomeWin:     float64(homeWins) / float64(trials),
		PDraw:        float64(draws) / float64(trials),
		PAwayWin:     float64(awayWins) / float64(trials),
		ExpectedHome: float64(homeFrames) / float64(trials),
		ExpectedAway: float64(awayFrames) / float64(trials),
		Trials:       trials,
		Seed:         seed,
	}
	e.summarize(&res)
	return res
}

// summarize sets the predicted winner and confidence. Confidence is how far the
// most likely outcome sits above 1/k, scaled to [0,1], where k is the number of
// outcomes the format allows. It is not an error bound. A dead heat between home
// and away predicts a draw when the format can end level, otherwise home.
func (e *Engine) summarize(res *PredictionResult) {
	k := 2.0
	if e.cfg.drawsPossible() {
		k = 3.0
	}
	best := math.Max(res.PHomeWin, math.Max(res.PDraw, res.PAwayWin))
	switch {
	case res.PHomeWin == res.PAwayWin && res.PHomeWin >= res.PDraw && e.cfg.drawsPossible():
		res.PredictedWinner = WinnerDraw
	case best == res.PHomeWin:
		res.PredictedWinner = WinnerHome
	case best == res.PAwayWin:
		res.PredictedWinner = WinnerAway
	default:
		res.PredictedWinner = WinnerDraw
	}
	res.Confidence = math.Max(0, math.Min(1, (best-1/k)/(1-1/k)))
}

// FixtureRequest identifies a fixture to predict
type FixtureRequest struct {
	Division  string         `json:"division"`
	Home      string         `json:"home"`
	Away      string         `json:"away"`
	Overrides SquadOverrides `json:"overrides,omitempty"`
	TopN      int            `json:"topN,omitempty"`
	Seed      uint64         `json:"seed"`
}

// PredictFixture predicts one fixture from current ratings. When overrides change
// anything, Baseline holds the prediction without them, drawn from the same seed.
func (e *Engine) PredictFixture(req FixtureRequest, ds DataSources) (PredictionResult, error) {
	ratings, err := e.AdjustedStrength(req.Division, req.Overrides, req.TopN, ds)
	if err != nil {
		return PredictionResult{}, err
	}
	res, err := e.predictWith(ratings, req)
	if err != nil {
		return PredictionResult{}, err
	}
	if len(req.Overrides.normalized()) > 0 {
		base, err := e.CalcTeamStrength(req.Division, ds)
		if err != nil {
			return PredictionResult{}, err
		}
		baseline, err := e.predictWith(base, req)
		if err != nil {
			return PredictionResult{}, err
		}
		res.Baseline = &baseline
	}
	return res, nil
}

func (e *Engine) predictWith(ratings Ratings, req FixtureRequest) (PredictionResult, error) {
	home, ok := ratings.Strength[req.Home]
	if !ok {
		return PredictionResult{}, fmt.Errorf("team %q is not in division %q", req.Home, req.Division)
	}
	away, ok := ratings.Strength[req.Away]
	if !ok {
		return PredictionResult{}, fmt.Errorf("team %q is not in division %q", req.Away, req.Division)
	}
	return e.RunPredSim(e.PredictFrame(home+e.cfg.HomeAdvantage, away), req.Seed), nil
}

// choose is the binomial coefficient as a float
func choose(n, k int) float64 {
	if k < 0 || k > n {
		return 0
	}
	lg := func(x int) float64 {
		v, _ := math.Lgamma(float64(x + 1))
		return v
	}
	return math.Round(math.Exp(lg(n) - lg(k) - lg(n-k)))
}
