package ml

import (
	"encoding/json"
	"fmt"
	"slices"

	"RiskCast/internal/domain/models"
	"RiskCast/internal/domain/service"
	"RiskCast/internal/services/features"
)

// Artifact roles of a bundle. Each present role is persisted as one artifact.
const (
	RoleRegressor  = "regressor"
	RoleClassifier = "classifier"
	RolePCA        = "pca"
	RoleKMeans     = "kmeans"
	RoleFeatures   = "features"
	RoleThresholds = "thresholds"
)

// Roles lists every artifact role in persistence order.
var Roles = []string{RoleRegressor, RoleClassifier, RolePCA, RoleKMeans, RoleFeatures, RoleThresholds}

// Bundle is the set of fitted estimators served together. A nil role is absent.
type Bundle struct {
	Regressor  service.Regressor
	Classifier service.Classifier
	PCA        service.Projector
	KMeans     service.Clusterer
	Features   []string
	Thresholds *features.RiskThresholds
}

// Has reports whether role is present.
func (b *Bundle) Has(role string) bool {
	if b == nil {
		return false
	}
	switch role {
	case RoleRegressor:
		return b.Regressor != nil
	case RoleClassifier:
		return b.Classifier != nil
	case RolePCA:
		return b.PCA != nil
	case RoleKMeans:
		return b.KMeans != nil
	case RoleFeatures:
		return len(b.Features) > 0
	case RoleThresholds:
		return b.Thresholds != nil && b.Thresholds.Defined()
	}
	return false
}

// Present returns the roles the bundle carries.
func (b *Bundle) Present() []string {
	var out []string
	for _, r := range Roles {
		if b.Has(r) {
			out = append(out, r)
		}
	}
	return out
}

// Require fails with models.ErrModelsNotLoaded unless every role is present.
// The feature list is always required.
func (b *Bundle) Require(roles ...string) error {
	for _, r := range append([]string{RoleFeatures}, roles...) {
		if !b.Has(r) {
			return fmt.Errorf("%w: missing %s", models.ErrModelsNotLoaded, r)
		}
	}
	return nil
}

// MarshalRole encodes one present role as JSON.
func (b *Bundle) MarshalRole(role string) ([]byte, error) {
	if !b.Has(role) {
		return nil, fmt.Errorf("marshal %s: role not present", role)
	}
	var v any
	switch role {
	case RoleRegressor:
		v = b.Regressor
	case RoleClassifier:
		v = b.Classifier
	case RolePCA:
		v = b.PCA
	case RoleKMeans:
		v = b.KMeans
	case RoleFeatures:
		v = b.Features
	case RoleThresholds:
		v = b.Thresholds
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", role, err)
	}
	return data, nil
}

// UnmarshalRole decodes an artifact produced by MarshalRole into the bundle.
func (b *Bundle) UnmarshalRole(role string, data []byte) error {
	var err error
	switch role {
	case RoleRegressor:
		m := &RidgeRegressor{}
		if err = json.Unmarshal(data, m); err == nil {
			err = checkScaler(m.Scaler, len(m.Coef))
			b.Regressor = m
		}
	case RoleClassifier:
		m := &LogisticClassifier{}
		if err = json.Unmarshal(data, m); err == nil {
			err = checkClassifier(m)
			b.Classifier = m
		}
	case RolePCA:
		m := &PCA{}
		if err = json.Unmarshal(data, m); err == nil {
			err = checkScaler(m.Scaler, -1)
			b.PCA = m
		}
	case RoleKMeans:
		m := &KMeans{}
		if err = json.Unmarshal(data, m); err == nil {
			if len(m.Centroids) == 0 {
				err = fmt.Errorf("no centroids")
			}
			b.KMeans = m
		}
	case RoleFeatures:
		var names []string
		if err = json.Unmarshal(data, &names); err == nil {
			err = features.ValidateInputs(names)
			b.Features = names
		}
	case RoleThresholds:
		th := &features.RiskThresholds{}
		if err = json.Unmarshal(data, th); err == nil {
			b.Thresholds = th
		}
	default:
		return fmt.Errorf("unmarshal: unknown role %q", role)
	}
	if err != nil {
		return fmt.Errorf("unmarshal %s: %w", role, err)
	}
	return nil
}

func checkScaler(s *StandardScaler, dim int) error {
	if s == nil || len(s.Mean) != len(s.Scale) {
		return fmt.Errorf("malformed scaler")
	}
	if dim >= 0 && len(s.Mean) != dim {
		return fmt.Errorf("scaler has %d dims, model has %d", len(s.Mean), dim)
	}
	if slices.Contains(s.Scale, 0) {
		return fmt.Errorf("zero scale")
	}
	return nil
}

func checkClassifier(m *LogisticClassifier) error {
	if err := checkScaler(m.Scaler, -1); err != nil {
		return err
	}
	if len(m.ClassLabels) == 0 || len(m.Weights) != len(m.ClassLabels) || len(m.Bias) != len(m.ClassLabels) {
		return fmt.Errorf("classes, weights and bias disagree")
	}
	return nil
}
