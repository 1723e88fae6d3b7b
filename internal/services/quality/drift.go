package quality

import (
	"math"
	"sort"

	"RiskCast/internal/services/features"

	"gonum.org/v1/gonum/stat"
)

const (
	// DefaultZThreshold flags a feature whose mean moved more than three train deviations.
	DefaultZThreshold = 3.0
	// saturatedZ stands in for an infinite z-score when the train column is constant.
	saturatedZ = 999.0
)

// FeatureDrift compares one feature's mean between a reference and a new sample.
type FeatureDrift struct {
	TrainMean     float64 `json:"train_mean"`
	NewMean       float64 `json:"new_mean"`
	ZScore        float64 `json:"z_score"`
	DriftDetected bool    `json:"drift_detected"`
}

type DriftReport map[string]FeatureDrift

// Drifted lists the features flagged as drifting, sorted.
func (r DriftReport) Drifted() []string {
	var out []string
	for name, d := range r {
		if d.DriftDetected {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// CheckDrift computes |new mean - train mean| / train std for each feature.
// Undefined values are ignored; columns absent from either table are skipped.
func CheckDrift(train, fresh *features.Table, names []string, threshold float64) DriftReport {
	if threshold <= 0 {
		threshold = DefaultZThreshold
	}
	report := DriftReport{}
	for _, name := range names {
		a, okA := train.Column(name)
		b, okB := fresh.Column(name)
		if !okA || !okB {
			continue
		}
		a, b = defined(a), defined(b)
		if len(a) == 0 || len(b) == 0 {
			continue
		}
		trainMean, trainStd := stat.MeanStdDev(a, nil)
		newMean := stat.Mean(b, nil)

		var z float64
		switch {
		case trainStd == 0 || math.IsNaN(trainStd):
			if newMean != trainMean {
				z = saturatedZ
			}
		default:
			z = math.Abs(newMean-trainMean) / trainStd
		}
		report[name] = FeatureDrift{
			TrainMean:     trainMean,
			NewMean:       newMean,
			ZScore:        z,
			DriftDetected: z > threshold,
		}
	}
	return report
}

func defined(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}
