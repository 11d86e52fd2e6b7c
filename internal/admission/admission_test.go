package admission

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"pulse/internal/config"
	"pulse/internal/models"
	"pulse/internal/points"
	"pulse/internal/repository"
	"pulse/internal/repository/memory"
)

var t0 = time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

func newGate(repo repository.Repository, clock *fakeClock) *Gate {
	var seq uint64
	return &Gate{
		Config: config.DefaultPulseConfig(),
		Points: points.Calculator{Config: config.DefaultPointsConfig()},
		Repo:   repo,
		Now:    clock.Now,
		NewID: func() string {
			return fmt.Sprintf("sig-%d", atomic.AddUint64(&seq, 1))
		},
	}
}

func clockInReq(user, venue string) Request {
	return Request{Kind: models.SignalKindClockIn, UserID: user, VenueID: venue}
}

func TestGate_ComplianceScenario(t *testing.T) {
	store := memory.New()
	clock := &fakeClock{now: t0}
	g := newGate(store, clock)
	ctx := context.Background()

	res, err := g.Submit(ctx, clockInReq("u1", "A"))
	if err != nil || !res.Accepted {
		t.Fatalf("t=0 accepted=%v err=%v want accepted", res.Accepted, err)
	}
	if res.Signal.PointsAwarded != 10 {
		t.Fatalf("points=%d want=10", res.Signal.PointsAwarded)
	}

	clock.Set(t0.Add(60 * time.Minute))
	res, err = g.Submit(ctx, clockInReq("u1", "A"))
	if err != nil {
		t.Fatalf("t=60m err=%v", err)
	}
	if res.Accepted || res.Reason != ReasonRateLimitedSameVenue {
		t.Fatalf("t=60m decision=%+v want rate_limited_same_venue", res.Decision)
	}
	if want := t0.Add(360 * time.Minute); res.NextEligibleAt == nil || !res.NextEligibleAt.Equal(want) {
		t.Fatalf("t=60m next=%v want=%v", res.NextEligibleAt, want)
	}

	clock.Set(t0.Add(130 * time.Minute))
	res, err = g.Submit(ctx, clockInReq("u1", "B"))
	if err != nil || !res.Accepted {
		t.Fatalf("t=130m decision=%+v err=%v want accepted", res.Decision, err)
	}

	clock.Set(t0.Add(200 * time.Minute))
	res, err = g.Submit(ctx, clockInReq("u1", "C"))
	if err != nil {
		t.Fatalf("t=200m err=%v", err)
	}
	if res.Accepted || res.Reason != ReasonComplianceDenied {
		t.Fatalf("t=200m decision=%+v want compliance_denied", res.Decision)
	}
	if want := t0.Add(12 * time.Hour); res.NextEligibleAt == nil || !res.NextEligibleAt.Equal(want) {
		t.Fatalf("t=200m next=%v want=%v", res.NextEligibleAt, want)
	}
	if store.SignalCount() != 2 {
		t.Fatalf("signals=%d want=2", store.SignalCount())
	}
}

func TestGate_GlobalThrottle(t *testing.T) {
	store := memory.New()
	clock := &fakeClock{now: t0}
	g := newGate(store, clock)
	ctx := context.Background()

	if res, _ := g.Submit(ctx, clockInReq("u1", "A")); !res.Accepted {
		t.Fatalf("first clock-in rejected: %+v", res.Decision)
	}
	clock.Set(t0.Add(90 * time.Minute))
	res, err := g.Submit(ctx, clockInReq("u1", "B"))
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if res.Reason != ReasonRateLimitedGlobal || !res.RateLimited() {
		t.Fatalf("reason=%s want=%s", res.Reason, ReasonRateLimitedGlobal)
	}
	if want := t0.Add(120 * time.Minute); !res.NextEligibleAt.Equal(want) {
		t.Fatalf("next=%v want=%v", res.NextEligibleAt, want)
	}
}

func TestRateLimiter_BothLimitsReportLaterNext(t *testing.T) {
	cfg := config.DefaultPulseConfig()
	history := []models.Signal{
		{ID: "a", UserID: "u1", VenueID: "A", Kind: models.SignalKindClockIn, Timestamp: t0},
		{ID: "b", UserID: "u1", VenueID: "B", Kind: models.SignalKindClockIn, Timestamp: t0.Add(300 * time.Minute)},
	}
	d := RateLimiter{Config: cfg}.Admit(history, "u1", "A", models.SignalKindClockIn, t0.Add(330*time.Minute))
	if d.Reason != ReasonRateLimitedSameVenue {
		t.Fatalf("reason=%s want same venue", d.Reason)
	}
	// same venue: t0+360m, global: t0+420m
	if want := t0.Add(420 * time.Minute); !d.NextEligibleAt.Equal(want) {
		t.Fatalf("next=%v want=%v", d.NextEligibleAt, want)
	}
}

func TestRateLimiter_IgnoresOtherUsers(t *testing.T) {
	cfg := config.DefaultPulseConfig()
	history := []models.Signal{
		{ID: "a", UserID: "u2", VenueID: "A", Kind: models.SignalKindClockIn, Timestamp: t0},
	}
	d := RateLimiter{Config: cfg}.Admit(history, "u1", "A", models.SignalKindClockIn, t0.Add(time.Minute))
	if !d.Accepted {
		t.Fatalf("decision=%+v want accepted", d)
	}
}

func TestGate_VibeSupersedesAndEarnsNothing(t *testing.T) {
	store := memory.New()
	clock := &fakeClock{now: t0}
	g := newGate(store, clock)
	ctx := context.Background()

	first, err := g.Submit(ctx, Request{
		Kind: models.SignalKindVibeReport, UserID: "u1", VenueID: "A", ReportedStatus: "Buzzing",
		GamesUpdated: []string{"pool", " ", "pool"},
	})
	if err != nil || !first.Accepted {
		t.Fatalf("first vibe err=%v decision=%+v", err, first.Decision)
	}
	if first.Signal.PointsAwarded != 7 {
		t.Fatalf("points=%d want=7", first.Signal.PointsAwarded)
	}
	if got := string(first.Signal.GamesUpdated); got != `["pool"]` {
		t.Fatalf("games=%s want=[\"pool\"]", got)
	}
	if *first.Signal.ReportedStatus != "buzzing" {
		t.Fatalf("status=%s want=buzzing", *first.Signal.ReportedStatus)
	}
	if want := t0.Add(45 * time.Minute); !first.ValidUntil.Equal(want) {
		t.Fatalf("validUntil=%v want=%v", first.ValidUntil, want)
	}

	clock.Set(t0.Add(5 * time.Minute))
	second, err := g.Submit(ctx, Request{Kind: models.SignalKindVibeReport, UserID: "u1", VenueID: "A", ReportedStatus: "dead"})
	if err != nil || !second.Accepted {
		t.Fatalf("second vibe err=%v decision=%+v", err, second.Decision)
	}
	if second.Supersedes != first.Signal.ID {
		t.Fatalf("supersedes=%q want=%q", second.Supersedes, first.Signal.ID)
	}
	if second.Signal.PointsAwarded != 0 {
		t.Fatalf("points=%d want=0", second.Signal.PointsAwarded)
	}
	if *second.Signal.ReportedStatus != "mellow" {
		t.Fatalf("status=%s want=mellow", *second.Signal.ReportedStatus)
	}

	clock.Set(t0.Add(60 * time.Minute))
	third, err := g.Submit(ctx, Request{Kind: models.SignalKindVibeReport, UserID: "u1", VenueID: "A", ReportedStatus: "chill"})
	if err != nil || !third.Accepted {
		t.Fatalf("third vibe err=%v", err)
	}
	if third.Supersedes != "" || third.Signal.PointsAwarded != 5 {
		t.Fatalf("third supersedes=%q points=%d want none/5", third.Supersedes, third.Signal.PointsAwarded)
	}
}

func TestGate_VibeBypassesCompliance(t *testing.T) {
	store := memory.New()
	clock := &fakeClock{now: t0}
	g := newGate(store, clock)
	ctx := context.Background()
	_, _ = g.Submit(ctx, clockInReq("u1", "A"))
	clock.Set(t0.Add(130 * time.Minute))
	_, _ = g.Submit(ctx, clockInReq("u1", "B"))
	clock.Set(t0.Add(140 * time.Minute))
	res, err := g.Submit(ctx, Request{Kind: models.SignalKindVibeReport, UserID: "u1", VenueID: "C", ReportedStatus: "packed"})
	if err != nil || !res.Accepted {
		t.Fatalf("vibe err=%v decision=%+v want accepted", err, res.Decision)
	}
}

func TestGate_InvalidInput(t *testing.T) {
	store := memory.New()
	g := newGate(store, &fakeClock{now: t0})
	cases := []Request{
		{Kind: models.SignalKindClockIn, UserID: "", VenueID: "A"},
		{Kind: models.SignalKindClockIn, UserID: "u1", VenueID: ""},
		{Kind: models.SignalKindClockIn, UserID: "u 1", VenueID: "A"},
		{Kind: models.SignalKindClockIn, UserID: "u1", VenueID: string(make([]byte, 101))},
		{Kind: models.SignalKindVibeReport, UserID: "u1", VenueID: "A", ReportedStatus: "lit"},
		{Kind: "check_out", UserID: "u1", VenueID: "A"},
	}
	for i, req := range cases {
		_, err := g.Submit(context.Background(), req)
		if !errors.Is(err, ErrInvalidSignal) {
			t.Fatalf("case %d err=%v want ErrInvalidSignal", i, err)
		}
	}
	if store.SignalCount() != 0 {
		t.Fatalf("signals=%d want=0", store.SignalCount())
	}
}

type failingRepo struct {
	*memory.Store
	listErr   error
	appendErr error
}

func (f *failingRepo) InUserTx(ctx context.Context, userID string, fn func(tx repository.SignalRepository) error) error {
	return fn(f)
}

func (f *failingRepo) ListSignalsByUser(ctx context.Context, userID string, since time.Time) ([]models.Signal, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.Store.ListSignalsByUser(ctx, userID, since)
}

func (f *failingRepo) AppendSignal(ctx context.Context, item *models.Signal) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	return f.Store.AppendSignal(ctx, item)
}

func TestGate_FailsClosedOnStoreError(t *testing.T) {
	boom := errors.New("connection refused")
	for _, repo := range []*failingRepo{
		{Store: memory.New(), listErr: boom},
		{Store: memory.New(), appendErr: boom},
	} {
		g := newGate(repo, &fakeClock{now: t0})
		res, err := g.Submit(context.Background(), clockInReq("u1", "A"))
		if !errors.Is(err, ErrStoreUnavailable) {
			t.Fatalf("err=%v want ErrStoreUnavailable", err)
		}
		if !errors.Is(err, boom) {
			t.Fatalf("err=%v want wrapped cause", err)
		}
		if res.Accepted {
			t.Fatalf("accepted on store failure")
		}
		if repo.Store.SignalCount() != 0 {
			t.Fatalf("signals=%d want=0", repo.Store.SignalCount())
		}
	}
}

func TestGate_NilRepoFailsClosed(t *testing.T) {
	var g *Gate
	if _, err := g.Submit(context.Background(), clockInReq("u1", "A")); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("err=%v want ErrStoreUnavailable", err)
	}
}

func TestGate_ConcurrentSubmitsSerializePerUser(t *testing.T) {
	store := memory.New()
	g := newGate(store, &fakeClock{now: t0})

	const workers = 20
	var accepted int32
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := g.Submit(context.Background(), clockInReq("u1", fmt.Sprintf("venue-%d", i)))
			if err != nil {
				t.Errorf("worker %d err=%v", i, err)
				return
			}
			if res.Accepted {
				atomic.AddInt32(&accepted, 1)
			}
		}(i)
	}
	wg.Wait()
	if accepted != 1 {
		t.Fatalf("accepted=%d want=1", accepted)
	}
	if store.SignalCount() != 1 {
		t.Fatalf("signals=%d want=1", store.SignalCount())
	}
}

func TestGate_Eligibility(t *testing.T) {
	store := memory.New()
	clock := &fakeClock{now: t0}
	g := newGate(store, clock)
	ctx := context.Background()

	e, err := g.Eligibility(ctx, "u1", "")
	if err != nil || !e.Allowed || e.InWindow != 0 {
		t.Fatalf("fresh eligibility=%+v err=%v", e, err)
	}

	_, _ = g.Submit(ctx, clockInReq("u1", "A"))
	clock.Set(t0.Add(30 * time.Minute))
	e, _ = g.Eligibility(ctx, "u1", "")
	if e.Allowed || e.Reason != ReasonRateLimitedGlobal || e.InWindow != 1 {
		t.Fatalf("eligibility=%+v want global limit inWindow=1", e)
	}

	clock.Set(t0.Add(130 * time.Minute))
	_, _ = g.Submit(ctx, clockInReq("u1", "B"))
	clock.Set(t0.Add(300 * time.Minute))
	e, _ = g.Eligibility(ctx, "u1", "C")
	if e.Allowed || e.Reason != ReasonComplianceDenied {
		t.Fatalf("eligibility=%+v want compliance_denied", e)
	}
	if want := t0.Add(12 * time.Hour); !e.NextEligibleAt.Equal(want) {
		t.Fatalf("next=%v want=%v", e.NextEligibleAt, want)
	}

	if _, err := g.Eligibility(ctx, "", ""); !errors.Is(err, ErrInvalidSignal) {
		t.Fatalf("err=%v want ErrInvalidSignal", err)
	}
}

func TestComplianceGate_NextEligibleGeneralized(t *testing.T) {
	cfg := config.DefaultPulseConfig()
	history := []models.Signal{
		{UserID: "u1", Kind: models.SignalKindClockIn, Timestamp: t0},
		{UserID: "u1", Kind: models.SignalKindClockIn, Timestamp: t0.Add(2 * time.Hour)},
		{UserID: "u1", Kind: models.SignalKindClockIn, Timestamp: t0.Add(4 * time.Hour)},
	}
	res := ComplianceGate{Config: cfg}.Check(history, "u1", t0.Add(5*time.Hour))
	if res.Allowed || res.InWindow != 3 {
		t.Fatalf("res=%+v want denied with 3 in window", res)
	}
	if want := t0.Add(14 * time.Hour); !res.NextEligibleAt.Equal(want) {
		t.Fatalf("next=%v want=%v", res.NextEligibleAt, want)
	}

	cfg.LCBMaxClockIns = 0
	res = ComplianceGate{Config: cfg}.Check(nil, "u1", t0)
	if res.Allowed || res.NextEligibleAt != nil {
		t.Fatalf("zero cap res=%+v want denied without next", res)
	}
}

func TestComplianceGate_WindowBoundaryExcluded(t *testing.T) {
	cfg := config.DefaultPulseConfig()
	history := []models.Signal{
		{UserID: "u1", Kind: models.SignalKindClockIn, Timestamp: t0},
		{UserID: "u1", Kind: models.SignalKindClockIn, Timestamp: t0.Add(3 * time.Hour)},
	}
	// exactly 12h after the first clock-in it no longer counts
	res := ComplianceGate{Config: cfg}.Check(history, "u1", t0.Add(12*time.Hour))
	if !res.Allowed || res.InWindow != 1 {
		t.Fatalf("res=%+v want allowed with 1 in window", res)
	}
}

// simulate replays generated clock-in attempts for one user. gaps are minutes
// since the previous attempt, venues pick one of three venues.
func simulate(gaps, venues []int) []models.Signal {
	cfg := config.DefaultPulseConfig()
	n := len(gaps)
	if len(venues) < n {
		n = len(venues)
	}
	var history, accepted []models.Signal
	now := t0
	for i := 0; i < n; i++ {
		now = now.Add(time.Duration(gaps[i]) * time.Minute)
		venue := fmt.Sprintf("v%d", venues[i])
		c := ComplianceGate{Config: cfg}.Check(history, "u1", now)
		if !c.Allowed {
			continue
		}
		d := RateLimiter{Config: cfg}.Admit(history, "u1", venue, models.SignalKindClockIn, now)
		if !d.Accepted {
			continue
		}
		sig := models.Signal{ID: fmt.Sprintf("s%d", i), UserID: "u1", VenueID: venue, Kind: models.SignalKindClockIn, Timestamp: now}
		history = append(history, sig)
		accepted = append(accepted, sig)
	}
	return accepted
}

func TestProperty_AdmissionLimitsHold(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("no rolling 12h window holds more than 2 accepted clock-ins", prop.ForAll(
		func(gaps, venues []int) bool {
			acc := simulate(gaps, venues)
			for i := range acc {
				count := 0
				for j := range acc {
					d := acc[j].Timestamp.Sub(acc[i].Timestamp)
					if d >= 0 && d < 12*time.Hour {
						count++
					}
				}
				if count > 2 {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, 400)),
		gen.SliceOf(gen.IntRange(0, 2)),
	))

	properties.Property("accepted clock-ins at one venue are at least 360m apart", prop.ForAll(
		func(gaps, venues []int) bool {
			acc := simulate(gaps, venues)
			last := map[string]time.Time{}
			for _, s := range acc {
				if prev, ok := last[s.VenueID]; ok && s.Timestamp.Sub(prev) < 360*time.Minute {
					return false
				}
				last[s.VenueID] = s.Timestamp
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, 400)),
		gen.SliceOf(gen.IntRange(0, 2)),
	))

	properties.Property("accepted clock-ins are at least 120m apart", prop.ForAll(
		func(gaps, venues []int) bool {
			acc := simulate(gaps, venues)
			for i := 1; i < len(acc); i++ {
				if acc[i].Timestamp.Sub(acc[i-1].Timestamp) < 120*time.Minute {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, 400)),
		gen.SliceOf(gen.IntRange(0, 2)),
	))

	properties.TestingRun(t)
}
