package evaluation

import (
	"math"
	"sort"

	"RiskCast/internal/domain/models"

	"gonum.org/v1/gonum/stat"
)

// RegressionScores computes RMSE, MAE and R². A constant target scores R² = 0
// unless predicted exactly, matching the usual convention.
func RegressionScores(yTrue, yPred []float64) models.RegressionMetrics {
	n := len(yTrue)
	if n == 0 || n != len(yPred) {
		return models.RegressionMetrics{}
	}
	var se, ae float64
	for i := range yTrue {
		d := yPred[i] - yTrue[i]
		se += d * d
		ae += math.Abs(d)
	}
	return models.RegressionMetrics{
		RMSE: math.Sqrt(se / float64(n)),
		MAE:  ae / float64(n),
		R2:   r2(yTrue, yPred, se),
	}
}

// R2 is the coefficient of determination of yPred against yTrue.
func R2(yTrue, yPred []float64) float64 {
	if len(yTrue) == 0 || len(yTrue) != len(yPred) {
		return 0
	}
	var se float64
	for i := range yTrue {
		d := yPred[i] - yTrue[i]
		se += d * d
	}
	return r2(yTrue, yPred, se)
}

func r2(yTrue, yPred []float64, se float64) float64 {
	_, variance := stat.PopMeanVariance(yTrue, nil)
	if variance == 0 {
		if se == 0 {
			return 1
		}
		return 0
	}
	return stat.RSquaredFrom(yPred, yTrue, nil)
}

// ClassificationScores computes accuracy and support-weighted precision, recall
// and F1. Undefined ratios count as 0.
func ClassificationScores(yTrue, yPred []int) models.ClassificationMetrics {
	n := len(yTrue)
	if n == 0 || n != len(yPred) {
		return models.ClassificationMetrics{}
	}
	labels := map[int]struct{}{}
	tp := map[int]float64{}
	predicted := map[int]float64{}
	support := map[int]float64{}
	correct := 0.0
	for i := range yTrue {
		t, p := yTrue[i], yPred[i]
		labels[t], labels[p] = struct{}{}, struct{}{}
		support[t]++
		predicted[p]++
		if t == p {
			tp[t]++
			correct++
		}
	}
	keys := make([]int, 0, len(labels))
	for l := range labels {
		keys = append(keys, l)
	}
	sort.Ints(keys)

	var prec, rec, f1 float64
	for _, l := range keys {
		w := support[l]
		if w == 0 {
			continue
		}
		p := ratio(tp[l], predicted[l])
		r := ratio(tp[l], support[l])
		f := ratio(2*p*r, p+r)
		prec += w * p
		rec += w * r
		f1 += w * f
	}
	total := float64(n)
	return models.ClassificationMetrics{
		Accuracy:  correct / total,
		F1:        f1 / total,
		Precision: prec / total,
		Recall:    rec / total,
	}
}

func ratio(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}
