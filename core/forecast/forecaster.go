package forecast

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"slices"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/seoulbike/bikeflow/core/features"
	"github.com/seoulbike/bikeflow/core/logger"
	"github.com/seoulbike/bikeflow/core/model"
)

// ArtifactVersion stamps persisted model artifacts. Load refuses artifacts
// written under a different version: the feature layout is part of the
// contract between training and inference.
const ArtifactVersion = 1

var (
	// ErrModelNotLoaded is returned by Predict before any model has been
	// trained or loaded.
	ErrModelNotLoaded = errors.New("no forecast model loaded")
	// ErrModelLoad wraps deserialization failures. A failed load never
	// touches a previously published model.
	ErrModelLoad = errors.New("forecast model load failed")
)

// MinTrainingSamples is the floor of usable rows required to train.
const MinTrainingSamples = 30

const trainTestSplit = 0.8

// Metrics summarises a training run.
type Metrics struct {
	MAE        float64 `json:"mae"`
	RMSE       float64 `json:"rmse"`
	TrainScore float64 `json:"train_score"`
	TestScore  float64 `json:"test_score"`
	Samples    int     `json:"samples"`
	RunID      string  `json:"run_id"`
}

// trained bundles everything Predict needs. It is built completely before
// being published on the handle, so concurrent readers see either the old or
// the new model, never a half-trained one.
type trained struct {
	est      Estimator
	scaler   *Scaler
	names    []string
	runID    string
	trainedA time.Time
}

// Forecaster owns the swappable model handle and exposes training, bounded
// multi-horizon prediction and artifact persistence.
type Forecaster struct {
	handle atomic.Pointer[trained]
	cfg    ForestConfig
	log    logger.Logger
	nowFn  func() time.Time
}

// New creates a Forecaster with no model loaded.
func New(cfg ForestConfig, log logger.Logger) *Forecaster {
	cfg.SetDefaults()
	return &Forecaster{cfg: cfg, log: log, nowFn: time.Now}
}

// SetNow overrides the clock used for horizon reference times. Intended for
// tests.
func (f *Forecaster) SetNow(now func() time.Time) { f.nowFn = now }

// Loaded reports whether a model is currently published.
func (f *Forecaster) Loaded() bool { return f.handle.Load() != nil }

// RunID returns the training run identifier of the published model, or the
// empty string when none is loaded.
func (f *Forecaster) RunID() string {
	if m := f.handle.Load(); m != nil {
		return m.runID
	}
	return ""
}

// Train fits a fresh estimator on the samples and publishes it atomically.
// The input is shuffled with a fixed seed and split 80/20; the scaler is fit
// on the training split only. A failed run leaves any previously published
// model serving.
func (f *Forecaster) Train(samples []features.Sample) (Metrics, error) {
	if len(samples) < MinTrainingSamples {
		return Metrics{}, fmt.Errorf("%w: %d usable rows, need %d",
			features.ErrInsufficientData, len(samples), MinTrainingSamples)
	}

	rng := rand.New(rand.NewSource(f.cfg.Seed))
	shuffled := slices.Clone(samples)
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	cut := int(float64(len(shuffled)) * trainTestSplit)

	trainX, trainY := split(shuffled[:cut])
	testX, testY := split(shuffled[cut:])

	scaler, err := FitScaler(trainX)
	if err != nil {
		return Metrics{}, err
	}
	est := NewRandomForest(f.cfg)
	if err := est.Fit(scaler.TransformAll(trainX), trainY); err != nil {
		return Metrics{}, err
	}

	m := Metrics{
		Samples: len(samples),
		RunID:   uuid.NewString(),
	}
	testPred := predictAll(est, scaler, testX)
	m.MAE = meanAbsError(testPred, testY)
	m.RMSE = rootMeanSqError(testPred, testY)
	m.TestScore = stat.RSquaredFrom(testPred, testY, nil)
	m.TrainScore = stat.RSquaredFrom(predictAll(est, scaler, trainX), trainY, nil)

	f.handle.Store(&trained{
		est:      est,
		scaler:   scaler,
		names:    slices.Clone(features.Names),
		runID:    m.RunID,
		trainedA: f.nowFn(),
	})
	f.log.Infof("model trained: run=%s samples=%d mae=%.2f rmse=%.2f r2=%.3f",
		m.RunID, m.Samples, m.MAE, m.RMSE, m.TestScore)
	return m, nil
}

// Predict forecasts the station's bike count for each horizon hour 1..hours.
// Every horizon is an independent single-step extrapolation: temporal
// features are recomputed for now+h while lag and ratio features reuse the
// same latest real observations. History must be ordered ascending by
// collection time. Outputs are clamped to [0, capacity].
func (f *Forecaster) Predict(history []model.StationObservation, hours int) ([]model.Prediction, error) {
	m := f.handle.Load()
	if m == nil {
		return nil, ErrModelNotLoaded
	}
	if len(history) == 0 {
		return nil, features.ErrInsufficientData
	}
	latest := history[len(history)-1]
	now := f.nowFn()

	preds := make([]model.Prediction, 0, hours)
	for h := 1; h <= hours; h++ {
		ref := now.Add(time.Duration(h) * time.Hour)
		vec, err := features.ExtractAt(history, ref)
		if err != nil {
			return nil, err
		}
		raw := m.est.Predict(m.scaler.Transform(vec))
		clamped := math.Max(0, math.Min(raw, float64(latest.Capacity)))
		avail := 0.0
		if latest.Capacity > 0 {
			avail = clamped / float64(latest.Capacity)
		}
		preds = append(preds, model.Prediction{
			StationID:             latest.StationID,
			StationName:           latest.StationName,
			PredictedTime:         ref,
			HoursAhead:            h,
			PredictedBikes:        int(clamped),
			CurrentBikes:          latest.BikeCount,
			Capacity:              latest.Capacity,
			PredictedAvailability: avail,
		})
	}
	return preds, nil
}

// artifact is the on-disk model format. Estimator state, scaler parameters
// and the ordered feature-name list are always serialized together.
type artifact struct {
	Version      int             `json:"version"`
	RunID        string          `json:"run_id"`
	TrainedAt    time.Time       `json:"trained_at"`
	FeatureNames []string        `json:"feature_names"`
	Scaler       *Scaler         `json:"scaler"`
	Estimator    string          `json:"estimator"`
	State        json.RawMessage `json:"state"`
}

// Save writes the published model to path as one atomic artifact.
func (f *Forecaster) Save(path string) error {
	m := f.handle.Load()
	if m == nil {
		return ErrModelNotLoaded
	}
	kind, state, err := marshalEstimator(m.est)
	if err != nil {
		return err
	}
	b, err := json.Marshal(artifact{
		Version:      ArtifactVersion,
		RunID:        m.runID,
		TrainedAt:    m.trainedA,
		FeatureNames: m.names,
		Scaler:       m.scaler,
		Estimator:    kind,
		State:        state,
	})
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".model-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// Load reads an artifact from path and publishes it. On any failure the
// previously published model, if any, keeps serving.
func (f *Forecaster) Load(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrModelLoad, err)
	}
	var a artifact
	if err := json.Unmarshal(b, &a); err != nil {
		return fmt.Errorf("%w: %v", ErrModelLoad, err)
	}
	if a.Version != ArtifactVersion {
		return fmt.Errorf("%w: artifact version %d, want %d", ErrModelLoad, a.Version, ArtifactVersion)
	}
	if !slices.Equal(a.FeatureNames, features.Names) {
		return fmt.Errorf("%w: feature layout mismatch", ErrModelLoad)
	}
	if a.Scaler == nil || len(a.Scaler.Means) != len(features.Names) {
		return fmt.Errorf("%w: scaler parameters missing or misshapen", ErrModelLoad)
	}
	est, err := unmarshalEstimator(a.Estimator, a.State)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrModelLoad, err)
	}
	f.handle.Store(&trained{
		est:      est,
		scaler:   a.Scaler,
		names:    a.FeatureNames,
		runID:    a.RunID,
		trainedA: a.TrainedAt,
	})
	f.log.Infof("model loaded: run=%s trained_at=%s", a.RunID, a.TrainedAt.Format(time.RFC3339))
	return nil
}

func split(samples []features.Sample) ([][]float64, []float64) {
	x := make([][]float64, len(samples))
	y := make([]float64, len(samples))
	for i, s := range samples {
		x[i] = s.Features
		y[i] = s.Target
	}
	return x, y
}

func predictAll(est Estimator, scaler *Scaler, x [][]float64) []float64 {
	out := make([]float64, len(x))
	for i, row := range x {
		out[i] = est.Predict(scaler.Transform(row))
	}
	return out
}

func meanAbsError(pred, actual []float64) float64 {
	if len(pred) == 0 {
		return 0
	}
	sum := 0.0
	for i := range pred {
		sum += math.Abs(pred[i] - actual[i])
	}
	return sum / float64(len(pred))
}

func rootMeanSqError(pred, actual []float64) float64 {
	if len(pred) == 0 {
		return 0
	}
	diff := make([]float64, len(pred))
	floats.SubTo(diff, pred, actual)
	sum := 0.0
	for _, d := range diff {
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(pred)))
}
