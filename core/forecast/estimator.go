// Package forecast trains and serves the station demand model. The estimator
// behind the Forecaster is a swappable capability: anything that can fit
// feature matrices, predict a scalar and serialize its state satisfies the
// contract, so alternate regressors can replace the default forest without
// touching the scorer.
package forecast

import (
	"encoding/json"
	"fmt"
)

// Estimator is the regression capability the Forecaster is built on.
type Estimator interface {
	// Fit trains the estimator on rows of X against targets y.
	Fit(x [][]float64, y []float64) error
	// Predict returns the regression output for one feature vector.
	Predict(x []float64) float64
}

// kindRandomForest identifies the forest estimator inside a persisted
// artifact.
const kindRandomForest = "random_forest"

func marshalEstimator(e Estimator) (kind string, state json.RawMessage, err error) {
	switch est := e.(type) {
	case *RandomForest:
		b, err := json.Marshal(est)
		if err != nil {
			return "", nil, err
		}
		return kindRandomForest, b, nil
	default:
		return "", nil, fmt.Errorf("unsupported estimator type %T", e)
	}
}

func unmarshalEstimator(kind string, state json.RawMessage) (Estimator, error) {
	switch kind {
	case kindRandomForest:
		var est RandomForest
		if err := json.Unmarshal(state, &est); err != nil {
			return nil, err
		}
		return &est, nil
	default:
		return nil, fmt.Errorf("unknown estimator kind %q", kind)
	}
}
