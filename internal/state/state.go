package state

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/signalsfoundry/debris-risk/core"
	"github.com/signalsfoundry/debris-risk/internal/logging"
	"github.com/signalsfoundry/debris-risk/kb"
	"github.com/signalsfoundry/debris-risk/model"
)

// Re-export catalog sentinel errors so callers can depend on state.*
// instead of kb.* directly if they want to.
var (
	// ErrProfileExists indicates a profile already exists.
	ErrProfileExists = kb.ErrProfileExists
	// ErrProfileNotFound indicates a requested profile was not found.
	ErrProfileNotFound = kb.ErrProfileNotFound
	// ErrInvalidProfile indicates a profile failed validation.
	ErrInvalidProfile = kb.ErrInvalidProfile
	// ErrInvalidParameters indicates a parameter set failed validation.
	ErrInvalidParameters = model.ErrInvalidParameters
	// ErrInvalidTLE indicates a profile's TLE could not be parsed.
	ErrInvalidTLE = core.ErrInvalidTLE
	// ErrAssessmentPending indicates a profile exists but has not been
	// assessed yet.
	ErrAssessmentPending = errors.New("assessment pending")
	// ErrOverflow indicates valid inputs whose probability is not a finite
	// number, e.g. an infinite base term multiplied by a zero area.
	ErrOverflow = errors.New("result is not a finite number")
)

// MetricsRecorder receives every computed assessment and the catalog size.
type MetricsRecorder interface {
	RecordAssessment(model.RiskAssessment)
	SetProfileCount(n int)
}

// ProfileAssessment is the latest assessment of a catalog profile.
type ProfileAssessment struct {
	ProfileID string
	Revision  uint64

	// Parameters are the values actually assessed: the profile's
	// parameters with altitude and inclination replaced when a TLE
	// is present.
	Parameters model.ParameterSet
	Assessment model.RiskAssessment
	Breakdown  model.Breakdown

	// Orbit is set for TLE-backed profiles.
	Orbit *core.OrbitState
}

// AssessmentState keeps an up-to-date assessment for every profile in a
// catalog. It assesses each profile when it appears and again on every
// parameter change.
type AssessmentState struct {
	// mu guards latest, overflowed and deleted. Never held while calling
	// into the catalog, which invokes our subscriber with its own lock
	// released.
	mu sync.RWMutex

	catalog    *kb.Catalog
	latest     map[string]ProfileAssessment
	overflowed map[string]uint64
	deleted    map[string]uint64

	log     logging.Logger
	metrics MetricsRecorder
	now     func() time.Time

	unsubscribe func()
}

// Option customises AssessmentState construction.
type Option func(*AssessmentState)

// WithMetricsRecorder attaches an optional metrics recorder.
func WithMetricsRecorder(m MetricsRecorder) Option {
	return func(s *AssessmentState) {
		s.metrics = m
	}
}

// WithClock overrides the clock used to propagate TLE-backed profiles.
func WithClock(now func() time.Time) Option {
	return func(s *AssessmentState) {
		if now != nil {
			s.now = now
		}
	}
}

// NewAssessmentState subscribes to catalog changes and assesses every
// profile already present.
func NewAssessmentState(catalog *kb.Catalog, log logging.Logger, opts ...Option) *AssessmentState {
	if catalog == nil {
		catalog = kb.NewCatalog()
	}
	if log == nil {
		log = logging.Noop()
	}
	s := &AssessmentState{
		catalog: catalog,
		latest:     make(map[string]ProfileAssessment),
		overflowed: make(map[string]uint64),
		deleted:    make(map[string]uint64),
		log:        log,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.unsubscribe = catalog.Subscribe(s.handleEvent)
	for _, p := range catalog.ListProfiles() {
		s.store(s.evaluate(p, 0, true))
	}
	s.reportProfileCount()
	return s
}

// Close stops tracking catalog changes.
func (s *AssessmentState) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
}

// Catalog returns the underlying profile catalog.
func (s *AssessmentState) Catalog() *kb.Catalog {
	return s.catalog
}

// Evaluate validates params and assesses them without touching the
// catalog. It returns ErrOverflow when the probability is not finite.
func (s *AssessmentState) Evaluate(ctx context.Context, params model.ParameterSet) (model.RiskAssessment, model.Breakdown, error) {
	if err := params.Validate(); err != nil {
		return model.RiskAssessment{}, model.Breakdown{}, err
	}
	a, b := core.AssessWithBreakdown(params)
	if !a.IsFinite() {
		return model.RiskAssessment{}, model.Breakdown{}, fmt.Errorf("%w: probability_percent", ErrOverflow)
	}
	s.record(a)
	logging.LoggerFromContext(ctx, s.log).Debug(ctx, "assessment computed",
		logging.Float64("probability_percent", a.ProbabilityPercent),
		logging.String("tier", string(a.Tier)),
	)
	return a, b, nil
}

// AddProfile validates p and adds it to the catalog. The assessment is
// available as soon as AddProfile returns.
func (s *AssessmentState) AddProfile(p model.Profile) error {
	if err := validateProfile(p); err != nil {
		return err
	}
	return s.catalog.AddProfile(p)
}

// UpdateParameters validates params, stores them on the profile and returns
// the resulting assessment.
func (s *AssessmentState) UpdateParameters(id string, params model.ParameterSet) (ProfileAssessment, error) {
	if err := checkAssessable(params); err != nil {
		return ProfileAssessment{}, fmt.Errorf("profile %q: %w", id, err)
	}
	if _, err := s.catalog.UpdateParameters(id, params); err != nil {
		return ProfileAssessment{}, err
	}
	return s.Assessment(id)
}

// DeleteProfile removes a profile and its assessment.
func (s *AssessmentState) DeleteProfile(id string) error {
	return s.catalog.DeleteProfile(id)
}

// Assessment returns the latest assessment of a profile.
func (s *AssessmentState) Assessment(id string) (ProfileAssessment, error) {
	s.mu.RLock()
	pa, ok := s.latest[id]
	_, overflowed := s.overflowed[id]
	s.mu.RUnlock()
	if ok {
		return pa, nil
	}
	if overflowed {
		return ProfileAssessment{}, fmt.Errorf("%w: profile %q", ErrOverflow, id)
	}
	if _, err := s.catalog.GetProfile(id); err != nil {
		return ProfileAssessment{}, err
	}
	return ProfileAssessment{}, fmt.Errorf("%w: %q", ErrAssessmentPending, id)
}

// Assessments returns the latest assessment of every profile, ordered by
// profile ID.
func (s *AssessmentState) Assessments() []ProfileAssessment {
	s.mu.RLock()
	res := make([]ProfileAssessment, 0, len(s.latest))
	for _, pa := range s.latest {
		res = append(res, pa)
	}
	s.mu.RUnlock()

	sort.Slice(res, func(i, j int) bool { return res[i].ProfileID < res[j].ProfileID })
	return res
}

// Refresh re-assesses every profile, re-propagating TLE-backed ones to the
// current clock time. Refreshes are not reported to the metrics recorder.
func (s *AssessmentState) Refresh() {
	rev := s.catalog.Revision()
	for _, p := range s.catalog.ListProfiles() {
		s.store(s.evaluate(p, rev, false))
	}
}

func (s *AssessmentState) handleEvent(ev kb.Event) {
	switch ev.Type {
	case kb.EventProfileAdded, kb.EventProfileUpdated:
		s.store(s.evaluate(ev.Profile, ev.Revision, true))
	case kb.EventProfileDeleted:
		s.mu.Lock()
		if s.revisionLocked(ev.Profile.ID) <= ev.Revision {
			delete(s.latest, ev.Profile.ID)
			delete(s.overflowed, ev.Profile.ID)
			s.deleted[ev.Profile.ID] = ev.Revision
		}
		s.mu.Unlock()
		s.log.Info(context.Background(), "profile removed", logging.String("profile_id", ev.Profile.ID))
	}
	s.reportProfileCount()
}

// evaluate assesses p at catalog revision rev. The returned assessment
// always carries the profile ID and revision; the error is ErrOverflow when
// the probability is not finite. record reports the result to metrics.
func (s *AssessmentState) evaluate(p model.Profile, rev uint64, record bool) (ProfileAssessment, error) {
	params := p.Parameters
	var orbit *core.OrbitState

	if p.OrbitSource() == model.OrbitSourceTLE {
		o, err := core.OrbitFromTLE(p.TLELine1, p.TLELine2, s.now())
		if err != nil {
			s.log.Warn(context.Background(), "TLE propagation failed; using manual orbit",
				logging.String("profile_id", p.ID),
				logging.Err(err),
			)
		} else {
			params = o.Apply(params)
			orbit = &o
		}
	}

	a, b := core.AssessWithBreakdown(params)
	if !a.IsFinite() {
		s.log.Warn(context.Background(), "profile assessment overflowed",
			logging.String("profile_id", p.ID),
		)
		return ProfileAssessment{ProfileID: p.ID, Revision: rev}, fmt.Errorf("%w: profile %q", ErrOverflow, p.ID)
	}
	if record {
		s.record(a)
	}
	s.log.Info(context.Background(), "profile assessed",
		logging.String("profile_id", p.ID),
		logging.Float64("probability_percent", a.ProbabilityPercent),
		logging.String("tier", string(a.Tier)),
		logging.String("regime", string(a.OrbitalRegime)),
	)

	return ProfileAssessment{
		ProfileID:  p.ID,
		Revision:   rev,
		Parameters: params,
		Assessment: a,
		Breakdown:  b,
		Orbit:      orbit,
	}, nil
}

// store keeps the outcome of an evaluation unless a newer revision (or a
// later deletion) has already been recorded for the profile. A failed
// evaluation replaces any earlier assessment so stale numbers are not served.
func (s *AssessmentState) store(pa ProfileAssessment, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rev, ok := s.deleted[pa.ProfileID]; ok {
		if pa.Revision <= rev {
			return
		}
		delete(s.deleted, pa.ProfileID)
	}
	if s.revisionLocked(pa.ProfileID) > pa.Revision {
		return
	}
	if err != nil {
		delete(s.latest, pa.ProfileID)
		s.overflowed[pa.ProfileID] = pa.Revision
		return
	}
	delete(s.overflowed, pa.ProfileID)
	s.latest[pa.ProfileID] = pa
}

// revisionLocked returns the revision of the stored outcome for id, or 0.
func (s *AssessmentState) revisionLocked(id string) uint64 {
	if cur, ok := s.latest[id]; ok {
		return cur.Revision
	}
	return s.overflowed[id]
}

func (s *AssessmentState) record(a model.RiskAssessment) {
	if s.metrics != nil {
		s.metrics.RecordAssessment(a)
	}
}

func (s *AssessmentState) reportProfileCount() {
	if s.metrics != nil {
		s.metrics.SetProfileCount(s.catalog.Len())
	}
}

// checkAssessable validates params and rejects sets whose probability
// overflows.
func checkAssessable(params model.ParameterSet) error {
	if err := params.Validate(); err != nil {
		return err
	}
	if a := core.Assess(params); !a.IsFinite() {
		return fmt.Errorf("%w: probability_percent", ErrOverflow)
	}
	return nil
}

func validateProfile(p model.Profile) error {
	if err := checkAssessable(p.Parameters); err != nil {
		return fmt.Errorf("profile %q: %w", p.ID, err)
	}
	if p.OrbitSource() == model.OrbitSourceTLE {
		if _, err := core.TLEEpoch(p.TLELine1, p.TLELine2); err != nil {
			return fmt.Errorf("profile %q: %w", p.ID, err)
		}
	}
	return nil
}
