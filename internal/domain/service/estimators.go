package service

// Estimators are the black-box fit/predict contracts a model bundle is made of.
// Inputs are single rows ordered like the bundle's feature list.

type Regressor interface {
	Predict(x []float64) (float64, error)
}

type Classifier interface {
	// PredictProba returns one probability per entry of Classes, summing to 1.
	PredictProba(x []float64) ([]float64, error)
	Classes() []int
}

type Projector interface {
	Transform(x []float64) ([]float64, error)
}

type Clusterer interface {
	Predict(x []float64) (int, error)
}
