package registry

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"

	"RiskCast/internal/domain/models"
	"RiskCast/internal/domain/repository"
	"RiskCast/internal/services/ml"
	applogger "RiskCast/pkg/logger"
)

const (
	VersionPrefix = "version_"
	versionLayout = "20060102_150405"
	maxSuffix     = 99
)

var (
	ErrNoVersions      = fmt.Errorf("%w: no model versions", models.ErrNotFound)
	ErrVersionsExhaust = errors.New("registry: version suffixes exhausted")
)

// Registry allocates model versions and persists bundles as per-role artifacts.
type Registry struct {
	store repository.ArtifactStore
	now   func() time.Time
	log   *applogger.Logger
}

type Option func(*Registry)

// WithClock overrides the time source used for version names.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

func WithLogger(l *applogger.Logger) Option {
	return func(r *Registry) { r.log = l }
}

func New(store repository.ArtifactStore, opts ...Option) *Registry {
	r := &Registry{store: store, now: time.Now, log: applogger.Nop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// VersionName formats the base version for t.
func VersionName(t time.Time) string {
	return VersionPrefix + t.UTC().Format(versionLayout)
}

// Save writes every present role of b under a freshly claimed version.
// A save never reuses an existing version: same-second collisions get a _NN suffix.
// The feature list is written last and marks the version complete; a failed
// save removes the version so it cannot shadow an older good one.
func (r *Registry) Save(ctx context.Context, b *ml.Bundle) (string, error) {
	present := b.Present()
	if len(present) == 0 {
		return "", fmt.Errorf("%w: empty bundle", models.ErrInvalidInput)
	}
	if !b.Has(ml.RoleFeatures) {
		return "", fmt.Errorf("%w: bundle has no feature list", models.ErrInvalidInput)
	}
	version, err := r.claim(ctx)
	if err != nil {
		return "", err
	}
	if err := r.writeRoles(ctx, version, b, present); err != nil {
		if derr := r.store.Delete(ctx, version); derr != nil {
			r.log.Error("failed to remove incomplete version", applogger.String("version", version), applogger.Error(derr))
		}
		return "", err
	}
	r.log.Info("model bundle saved", applogger.String("version", version), applogger.Strings("roles", present))
	return version, nil
}

func (r *Registry) writeRoles(ctx context.Context, version string, b *ml.Bundle, present []string) error {
	order := make([]string, 0, len(present))
	for _, role := range present {
		if role != ml.RoleFeatures {
			order = append(order, role)
		}
	}
	order = append(order, ml.RoleFeatures)
	for _, role := range order {
		data, err := b.MarshalRole(role)
		if err != nil {
			return fmt.Errorf("save %s: %w", version, err)
		}
		if err := r.store.Put(ctx, version, role, data); err != nil {
			return fmt.Errorf("save %s/%s: %w", version, role, err)
		}
	}
	return nil
}

func (r *Registry) claim(ctx context.Context) (string, error) {
	base := VersionName(r.now())
	for n := 0; n <= maxSuffix; n++ {
		v := base
		if n > 0 {
			v = fmt.Sprintf("%s_%02d", base, n)
		}
		err := r.store.Create(ctx, v)
		if err == nil {
			return v, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", fmt.Errorf("claim %s: %w", v, err)
		}
	}
	return "", fmt.Errorf("%w: %s", ErrVersionsExhaust, base)
}

// Versions lists stored versions in ascending order.
func (r *Registry) Versions(ctx context.Context) ([]string, error) {
	names, err := r.store.Namespaces(ctx)
	if errors.Is(err, models.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	out := make([]string, 0, len(names))
	for _, n := range names {
		if strings.HasPrefix(n, VersionPrefix) {
			out = append(out, n)
		}
	}
	sort.Strings(out)
	return out, nil
}

// LoadLatest loads the lexicographically greatest complete version.
//
// Versions without a feature list are incomplete and skipped. Missing artifacts
// of a complete version are skipped and leave their role nil. An artifact that
// exists but cannot be decoded is an error.
func (r *Registry) LoadLatest(ctx context.Context) (*ml.Bundle, string, error) {
	versions, err := r.Versions(ctx)
	if err != nil {
		return nil, "", err
	}
	for i := len(versions) - 1; i >= 0; i-- {
		v := versions[i]
		_, err := r.store.Get(ctx, v, ml.RoleFeatures)
		if errors.Is(err, models.ErrNotFound) {
			r.log.Warn("skipping incomplete model version", applogger.String("version", v))
			continue
		}
		if err != nil {
			return nil, "", fmt.Errorf("load %s/%s: %w", v, ml.RoleFeatures, err)
		}
		b, err := r.Load(ctx, v)
		if err != nil {
			return nil, "", err
		}
		return b, v, nil
	}
	return nil, "", ErrNoVersions
}

// Load reads a specific version.
func (r *Registry) Load(ctx context.Context, version string) (*ml.Bundle, error) {
	b := &ml.Bundle{}
	var missing []string
	for _, role := range ml.Roles {
		data, err := r.store.Get(ctx, version, role)
		if errors.Is(err, models.ErrNotFound) {
			missing = append(missing, role)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("load %s/%s: %w", version, role, err)
		}
		if err := b.UnmarshalRole(role, data); err != nil {
			return nil, fmt.Errorf("load %s: %w", version, err)
		}
	}
	if len(missing) > 0 {
		r.log.Warn("model bundle is partial", applogger.String("version", version), applogger.Strings("missing", missing))
	}
	return b, nil
}
