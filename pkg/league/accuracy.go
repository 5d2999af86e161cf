package league

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// CalculateAccuracy scores reconciled predictions. Snapshots without an actual
// winner are counted as pending and otherwise ignored. Calibration splits the
// resolved predictions into equal-width confidence buckets and compares the mean
// probability given to the predicted outcome with how often it happened.
func (e *Engine) CalculateAccuracy(predictions []PredictionSnapshot) AccuracyStats {
	n := e.cfg.CalibrationBuckets
	stats := AccuracyStats{Calibration: make([]CalibrationBucket, n)}
	confidences := make([][]float64, n)
	predicted := make([][]float64, n)
	for i := range stats.Calibration {
		stats.Calibration[i].Lower = float64(i) / float64(n)
		stats.Calibration[i].Upper = float64(i+1) / float64(n)
	}

	var brier []float64
	for _, p := range predictions {
		if !p.Resolved() {
			stats.Pending++
			continue
		}
		stats.TotalPredictions++
		correct := p.PredictedWinner == p.ActualWinner
		if correct {
			stats.CorrectCount++
		}

		i := bucketOf(p.Confidence, n)
		b := &stats.Calibration[i]
		b.Count++
		if correct {
			b.Correct++
		}
		confidences[i] = append(confidences[i], p.Confidence)
		predicted[i] = append(predicted[i], p.probabilityOf(p.PredictedWinner))

		var sq float64
		for _, w := range []Winner{WinnerHome, WinnerDraw, WinnerAway} {
			hit := 0.0
			if w == p.ActualWinner {
				hit = 1
			}
			d := p.probabilityOf(w) - hit
			sq += d * d
		}
		brier = append(brier, sq)
	}

	if stats.TotalPredictions == 0 {
		return stats
	}
	stats.AccuracyRate = float64(stats.CorrectCount) / float64(stats.TotalPredictions)
	stats.BrierScore = stat.Mean(brier, nil)
	for i := range stats.Calibration {
		b := &stats.Calibration[i]
		if b.Count == 0 {
			continue
		}
		b.MeanConfidence = stat.Mean(confidences[i], nil)
		b.MeanPredicted = stat.Mean(predicted[i], nil)
		b.ActualRate = float64(b.Correct) / float64(b.Count)
		b.Gap = b.MeanPredicted - b.ActualRate
	}
	return stats
}

// bucketOf maps a confidence in [0,1] to a bucket; 1.0 lands in the last bucket
func bucketOf(confidence float64, n int) int {
	if math.IsNaN(confidence) || confidence < 0 {
		return 0
	}
	i := int(confidence * float64(n))
	if i >= n {
		i = n - 1
	}
	return i
}

func (p PredictionSnapshot) probabilityOf(w Winner) float64 {
	switch w {
	case WinnerHome:
		return p.PHomeWin
	case WinnerAway:
		return p.PAwayWin
	case WinnerDraw:
		return p.PDraw
	}
	return 0
}

// NewSnapshot captures a prediction for later reconciliation
func NewSnapshot(f Fixture, res PredictionResult) PredictionSnapshot {
	return PredictionSnapshot{
		Division:        f.Division,
		Date:            f.Date,
		Home:            f.Home,
		Away:            f.Away,
		PHomeWin:        res.PHomeWin,
		PDraw:           res.PDraw,
		PAwayWin:        res.PAwayWin,
		Confidence:      res.Confidence,
		PredictedWinner: res.PredictedWinner,
	}
}
