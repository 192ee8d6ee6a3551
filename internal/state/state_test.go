package state

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/signalsfoundry/debris-risk/internal/logging"
	"github.com/signalsfoundry/debris-risk/kb"
	"github.com/signalsfoundry/debris-risk/model"
)

const (
	issLine1 = "1 25544U 98067A   21275.59097222  .00000204  00000-0  10270-4 0  9993"
	issLine2 = "2 25544  51.6459 115.9059 0001817  61.3028  35.9198 15.49370953257767"
)

type stubMetricsRecorder struct {
	mu          sync.Mutex
	assessments []model.RiskAssessment
	counts      []int
}

func (r *stubMetricsRecorder) RecordAssessment(a model.RiskAssessment) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.assessments = append(r.assessments, a)
}

func (r *stubMetricsRecorder) SetProfileCount(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counts = append(r.counts, n)
}

func (r *stubMetricsRecorder) lastCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.counts) == 0 {
		return -1
	}
	return r.counts[len(r.counts)-1]
}

func (r *stubMetricsRecorder) assessed() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.assessments)
}

func quietParameters(density float64) model.ParameterSet {
	return model.ParameterSet{
		SpatialDensity:     density,
		RelativeVelocity:   10,
		CrossSectionalArea: 5,
		MissionDuration:    model.SecondsPerYear,
		OrbitalAltitude:    800,
		OrbitalInclination: 28.5,
	}
}

func TestInitialProfilesAreAssessed(t *testing.T) {
	catalog := kb.NewCatalog()
	if err := catalog.AddProfile(model.Profile{ID: "sat-1", Parameters: model.DefaultParameters()}); err != nil {
		t.Fatalf("AddProfile: %v", err)
	}
	recorder := &stubMetricsRecorder{}
	s := NewAssessmentState(catalog, logging.Noop(), WithMetricsRecorder(recorder))
	defer s.Close()

	pa, err := s.Assessment("sat-1")
	if err != nil {
		t.Fatalf("Assessment: %v", err)
	}
	if pa.Assessment.ProbabilityPercent != 100 || pa.Assessment.Tier != model.TierCritical {
		t.Fatalf("unexpected assessment: %+v", pa.Assessment)
	}
	if recorder.lastCount() != 1 || recorder.assessed() != 1 {
		t.Fatalf("recorder counts=%v assessed=%d", recorder.counts, recorder.assessed())
	}
}

func TestAddUpdateDeleteProfile(t *testing.T) {
	recorder := &stubMetricsRecorder{}
	s := NewAssessmentState(kb.NewCatalog(), logging.Noop(), WithMetricsRecorder(recorder))
	defer s.Close()

	if err := s.AddProfile(model.Profile{ID: "sat-1", Parameters: quietParameters(1e-12)}); err != nil {
		t.Fatalf("AddProfile: %v", err)
	}
	pa, err := s.Assessment("sat-1")
	if err != nil {
		t.Fatalf("Assessment: %v", err)
	}
	if pa.Assessment.Tier != model.TierLow {
		t.Fatalf("tier = %s, want LOW", pa.Assessment.Tier)
	}
	if recorder.lastCount() != 1 {
		t.Fatalf("profile count = %d, want 1", recorder.lastCount())
	}

	updated, err := s.UpdateParameters("sat-1", quietParameters(1e-10))
	if err != nil {
		t.Fatalf("UpdateParameters: %v", err)
	}
	if updated.Assessment.Tier != model.TierCritical {
		t.Fatalf("tier after update = %s, want CRITICAL", updated.Assessment.Tier)
	}
	if math.Abs(updated.Assessment.ProbabilityPercent-15.768) > 1e-9 {
		t.Fatalf("probability = %v, want 15.768", updated.Assessment.ProbabilityPercent)
	}
	if updated.Revision <= pa.Revision {
		t.Fatalf("revision did not advance: %d -> %d", pa.Revision, updated.Revision)
	}

	if err := s.DeleteProfile("sat-1"); err != nil {
		t.Fatalf("DeleteProfile: %v", err)
	}
	if _, err := s.Assessment("sat-1"); !errors.Is(err, ErrProfileNotFound) {
		t.Fatalf("Assessment after delete error = %v, want ErrProfileNotFound", err)
	}
	if recorder.lastCount() != 0 {
		t.Fatalf("profile count after delete = %d, want 0", recorder.lastCount())
	}
}

func TestAddProfileValidation(t *testing.T) {
	s := NewAssessmentState(kb.NewCatalog(), logging.Noop())
	defer s.Close()

	bad := model.DefaultParameters()
	bad.RelativeVelocity = -1
	if err := s.AddProfile(model.Profile{ID: "neg", Parameters: bad}); !errors.Is(err, ErrInvalidParameters) {
		t.Fatalf("negative velocity error = %v, want ErrInvalidParameters", err)
	}

	err := s.AddProfile(model.Profile{
		ID:         "bad-tle",
		TLELine1:   issLine1[:68] + "4",
		TLELine2:   issLine2,
		Parameters: model.DefaultParameters(),
	})
	if !errors.Is(err, ErrInvalidTLE) {
		t.Fatalf("bad TLE error = %v, want ErrInvalidTLE", err)
	}

	if err := s.AddProfile(model.Profile{ID: "", Parameters: model.DefaultParameters()}); !errors.Is(err, ErrInvalidProfile) {
		t.Fatalf("empty id error = %v, want ErrInvalidProfile", err)
	}
	if len(s.Assessments()) != 0 {
		t.Fatalf("rejected profiles must not be assessed")
	}
}

func TestUpdateParametersRejectsInvalid(t *testing.T) {
	s := NewAssessmentState(kb.NewCatalog(), logging.Noop())
	defer s.Close()
	if err := s.AddProfile(model.Profile{ID: "sat-1", Parameters: model.DefaultParameters()}); err != nil {
		t.Fatalf("AddProfile: %v", err)
	}

	bad := model.DefaultParameters()
	bad.SpatialDensity = math.NaN()
	if _, err := s.UpdateParameters("sat-1", bad); !errors.Is(err, ErrInvalidParameters) {
		t.Fatalf("NaN density error = %v, want ErrInvalidParameters", err)
	}
	if _, err := s.UpdateParameters("missing", model.DefaultParameters()); !errors.Is(err, ErrProfileNotFound) {
		t.Fatalf("missing profile error = %v, want ErrProfileNotFound", err)
	}
}

func TestTLEProfileUsesPropagatedOrbit(t *testing.T) {
	epoch := time.Date(2021, time.October, 2, 14, 11, 0, 0, time.UTC)
	s := NewAssessmentState(kb.NewCatalog(), logging.Noop(), WithClock(func() time.Time { return epoch }))
	defer s.Close()

	params := model.DefaultParameters()
	params.OrbitalAltitude = 30000
	params.OrbitalInclination = 0
	if err := s.AddProfile(model.Profile{
		ID:         "iss",
		Name:       "ISS (ZARYA)",
		NoradID:    25544,
		TLELine1:   issLine1,
		TLELine2:   issLine2,
		Parameters: params,
	}); err != nil {
		t.Fatalf("AddProfile: %v", err)
	}

	pa, err := s.Assessment("iss")
	if err != nil {
		t.Fatalf("Assessment: %v", err)
	}
	if pa.Orbit == nil {
		t.Fatalf("expected orbit for TLE-backed profile")
	}
	if pa.Parameters.OrbitalInclination != 51.6459 {
		t.Fatalf("inclination = %v, want 51.6459 from TLE", pa.Parameters.OrbitalInclination)
	}
	if pa.Parameters.OrbitalAltitude < 380 || pa.Parameters.OrbitalAltitude > 460 {
		t.Fatalf("altitude = %v, want ISS-like altitude", pa.Parameters.OrbitalAltitude)
	}
	if pa.Assessment.OrbitalRegime != model.RegimeLEO {
		t.Fatalf("regime = %s, want LEO", pa.Assessment.OrbitalRegime)
	}

	stored, err := s.Catalog().GetProfile("iss")
	if err != nil {
		t.Fatalf("GetProfile: %v", err)
	}
	if stored.Parameters.OrbitalAltitude != 30000 {
		t.Fatalf("catalog parameters must keep the manual orbit, got %v", stored.Parameters.OrbitalAltitude)
	}
}

func TestEvaluateRecordsMetrics(t *testing.T) {
	recorder := &stubMetricsRecorder{}
	s := NewAssessmentState(nil, nil, WithMetricsRecorder(recorder))
	defer s.Close()

	a, b, err := s.Evaluate(context.Background(), model.DefaultParameters())
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if a.ProbabilityPercent != 100 || a.MissionYears != 1 {
		t.Fatalf("unexpected assessment: %+v", a)
	}
	if math.Abs(b.Base-1576800) > 1e-6 {
		t.Fatalf("base = %v, want 1576800", b.Base)
	}
	if recorder.assessed() != 1 {
		t.Fatalf("assessed = %d, want 1", recorder.assessed())
	}

	bad := model.DefaultParameters()
	bad.MissionDuration = math.Inf(1)
	if _, _, err := s.Evaluate(context.Background(), bad); !errors.Is(err, ErrInvalidParameters) {
		t.Fatalf("Evaluate(inf) error = %v, want ErrInvalidParameters", err)
	}
	if recorder.assessed() != 1 {
		t.Fatalf("rejected evaluation must not be recorded")
	}
}

func TestStaleEventsAreIgnored(t *testing.T) {
	s := NewAssessmentState(kb.NewCatalog(), logging.Noop())
	defer s.Close()

	s.handleEvent(kb.Event{Type: kb.EventProfileAdded, Revision: 5, Profile: model.Profile{ID: "sat-1", Parameters: quietParameters(1e-10)}})
	s.handleEvent(kb.Event{Type: kb.EventProfileUpdated, Revision: 3, Profile: model.Profile{ID: "sat-1", Parameters: quietParameters(1e-12)}})

	s.mu.RLock()
	got := s.latest["sat-1"]
	s.mu.RUnlock()
	if got.Revision != 5 || got.Assessment.Tier != model.TierCritical {
		t.Fatalf("stale update overwrote newer assessment: rev=%d tier=%s", got.Revision, got.Assessment.Tier)
	}

	s.handleEvent(kb.Event{Type: kb.EventProfileDeleted, Revision: 6, Profile: model.Profile{ID: "sat-1"}})
	s.handleEvent(kb.Event{Type: kb.EventProfileUpdated, Revision: 4, Profile: model.Profile{ID: "sat-1", Parameters: quietParameters(1e-12)}})
	s.mu.RLock()
	_, resurrected := s.latest["sat-1"]
	s.mu.RUnlock()
	if resurrected {
		t.Fatalf("update older than the deletion must not resurrect the profile")
	}
}

func TestCloseStopsTracking(t *testing.T) {
	catalog := kb.NewCatalog()
	s := NewAssessmentState(catalog, logging.Noop())
	s.Close()
	s.Close()

	if err := catalog.AddProfile(model.Profile{ID: "late", Parameters: model.DefaultParameters()}); err != nil {
		t.Fatalf("AddProfile: %v", err)
	}
	if _, err := s.Assessment("late"); !errors.Is(err, ErrAssessmentPending) {
		t.Fatalf("Assessment after Close error = %v, want ErrAssessmentPending", err)
	}
}

func TestAssessmentsOrderedAndConcurrent(t *testing.T) {
	s := NewAssessmentState(kb.NewCatalog(), logging.Noop())
	defer s.Close()

	ids := []string{"c", "a", "d", "b"}
	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			if err := s.AddProfile(model.Profile{ID: id, Parameters: model.DefaultParameters()}); err != nil {
				t.Errorf("AddProfile(%s): %v", id, err)
				return
			}
			for i := 1; i <= 10; i++ {
				if _, err := s.UpdateParameters(id, quietParameters(float64(i)*1e-12)); err != nil {
					t.Errorf("UpdateParameters(%s): %v", id, err)
				}
			}
		}(id)
	}
	wg.Wait()

	final := float64(10) * 1e-12
	all := s.Assessments()
	if len(all) != len(ids) {
		t.Fatalf("got %d assessments, want %d", len(all), len(ids))
	}
	for i, want := range []string{"a", "b", "c", "d"} {
		if all[i].ProfileID != want {
			t.Fatalf("assessments[%d] = %s, want %s", i, all[i].ProfileID, want)
		}
		if all[i].Parameters.SpatialDensity != final {
			t.Fatalf("%s kept stale density %v", want, all[i].Parameters.SpatialDensity)
		}
	}

	s.Refresh()
	if len(s.Assessments()) != len(ids) {
		t.Fatalf("Refresh changed the profile set")
	}
}

func overflowingParameters() model.ParameterSet {
	p := model.DefaultParameters()
	p.SpatialDensity = 1e300
	p.RelativeVelocity = 1e300
	p.CrossSectionalArea = 0
	return p
}

func TestOverflowIsRejected(t *testing.T) {
	recorder := &stubMetricsRecorder{}
	catalog := kb.NewCatalog()
	s := NewAssessmentState(catalog, logging.Noop(), WithMetricsRecorder(recorder))
	defer s.Close()

	if err := overflowingParameters().Validate(); err != nil {
		t.Fatalf("overflowing parameters must pass boundary validation: %v", err)
	}

	if _, _, err := s.Evaluate(context.Background(), overflowingParameters()); !errors.Is(err, ErrOverflow) {
		t.Fatalf("Evaluate error = %v, want ErrOverflow", err)
	}
	if err := s.AddProfile(model.Profile{ID: "bad", Parameters: overflowingParameters()}); !errors.Is(err, ErrOverflow) {
		t.Fatalf("AddProfile error = %v, want ErrOverflow", err)
	}
	if catalog.Len() != 0 {
		t.Fatalf("overflowing profile must not reach the catalog")
	}

	if err := s.AddProfile(model.Profile{ID: "good", Parameters: quietParameters(1e-12)}); err != nil {
		t.Fatalf("AddProfile(good): %v", err)
	}
	before := recorder.assessed()
	if _, err := s.UpdateParameters("good", overflowingParameters()); !errors.Is(err, ErrOverflow) {
		t.Fatalf("UpdateParameters error = %v, want ErrOverflow", err)
	}
	pa, err := s.Assessment("good")
	if err != nil || pa.Assessment.Tier != model.TierLow {
		t.Fatalf("rejected update changed the assessment: %+v, %v", pa, err)
	}
	if recorder.assessed() != before {
		t.Fatalf("rejected inputs must not be recorded")
	}
}

func TestOverflowingCatalogProfileIsNotServed(t *testing.T) {
	recorder := &stubMetricsRecorder{}
	catalog := kb.NewCatalog()
	s := NewAssessmentState(catalog, logging.Noop(), WithMetricsRecorder(recorder))
	defer s.Close()

	if err := catalog.AddProfile(model.Profile{ID: "direct", Parameters: quietParameters(1e-12)}); err != nil {
		t.Fatalf("AddProfile: %v", err)
	}
	if _, err := catalog.UpdateParameters("direct", overflowingParameters()); err != nil {
		t.Fatalf("UpdateParameters: %v", err)
	}

	if _, err := s.Assessment("direct"); !errors.Is(err, ErrOverflow) {
		t.Fatalf("Assessment error = %v, want ErrOverflow", err)
	}
	if got := s.Assessments(); len(got) != 0 {
		t.Fatalf("Assessments = %+v, want none", got)
	}
	for _, a := range recorder.assessments {
		if math.IsNaN(a.ProbabilityPercent) {
			t.Fatalf("NaN assessment recorded")
		}
	}

	if _, err := catalog.UpdateParameters("direct", quietParameters(1e-12)); err != nil {
		t.Fatalf("UpdateParameters: %v", err)
	}
	if pa, err := s.Assessment("direct"); err != nil || pa.Assessment.Tier != model.TierLow {
		t.Fatalf("recovered profile = %+v, %v", pa, err)
	}

	if err := catalog.DeleteProfile("direct"); err != nil {
		t.Fatalf("DeleteProfile: %v", err)
	}
	if _, err := s.Assessment("direct"); !errors.Is(err, ErrProfileNotFound) {
		t.Fatalf("Assessment after delete error = %v, want ErrProfileNotFound", err)
	}
}

func TestRefreshIsNotRecorded(t *testing.T) {
	recorder := &stubMetricsRecorder{}
	s := NewAssessmentState(kb.NewCatalog(), logging.Noop(), WithMetricsRecorder(recorder))
	defer s.Close()

	if err := s.AddProfile(model.Profile{ID: "sat-1", Parameters: quietParameters(1e-12)}); err != nil {
		t.Fatalf("AddProfile: %v", err)
	}
	if recorder.assessed() != 1 {
		t.Fatalf("assessed after add = %d, want 1", recorder.assessed())
	}
	s.Refresh()
	s.Refresh()
	if recorder.assessed() != 1 {
		t.Fatalf("assessed after refresh = %d, want 1", recorder.assessed())
	}
}
