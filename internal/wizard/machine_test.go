package wizard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"rentora/internal/draft"
	"rentora/internal/marketplace"
	"rentora/internal/schema"
	"rentora/internal/segment"
)

type memStore struct {
	mu    sync.Mutex
	snaps map[string]Snapshot
	saves int
}

func newMemStore() *memStore { return &memStore{snaps: map[string]Snapshot{}} }

func (s *memStore) Load(_ context.Context, key string) (Snapshot, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.snaps[key]
	return snap, ok, nil
}

func (s *memStore) Save(_ context.Context, key string, snap Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	s.snaps[key] = snap
	return nil
}

func (s *memStore) Clear(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.snaps, key)
	return nil
}

type fakeDraftAPI struct {
	creates   int
	updates   int
	submits   int
	submitErr error
	updateErr error
	remote    map[string]any
}

func (f *fakeDraftAPI) CreateDraft(_ context.Context, fields map[string]any) (string, error) {
	f.creates++
	return fmt.Sprintf("lst_%d", f.creates), nil
}

func (f *fakeDraftAPI) UpdateDraft(_ context.Context, id string, fields map[string]any) (string, error) {
	f.updates++
	if f.updateErr != nil {
		return "", f.updateErr
	}
	f.remote = fields
	return id, nil
}

func (f *fakeDraftAPI) SubmitDraft(_ context.Context, id string) (marketplace.SubmitReceipt, error) {
	f.submits++
	if f.submitErr != nil {
		return marketplace.SubmitReceipt{}, f.submitErr
	}
	return marketplace.SubmitReceipt{ListingID: id, Status: "under_review"}, nil
}

func (f *fakeDraftAPI) FetchDraft(_ context.Context, id string) (map[string]any, error) {
	if f.remote == nil {
		return nil, errors.New("not found")
	}
	return f.remote, nil
}

type fakeLeads struct {
	keys []string
	err  error
}

func (f *fakeLeads) CreateSalesLead(_ context.Context, req marketplace.LeadRequest) (string, error) {
	f.keys = append(f.keys, req.IdempotencyKey)
	if f.err != nil {
		return "", f.err
	}
	return "lead_1", nil
}

func fixture(t *testing.T) (*Machine, *memStore, *fakeDraftAPI, *fakeLeads) {
	t.Helper()
	store := newMemStore()
	api := &fakeDraftAPI{}
	leads := &fakeLeads{}
	m := NewMachine("sess-1", Deps{
		Accessor: draft.NewAccessor(schema.MustLoad()),
		Store:    store,
		Drafts:   api,
		Fetcher:  api,
		Leads:    leads,
		Decider:  segment.NewDecider(nil),
	})
	return m, store, api, leads
}

func ctxb() context.Context { return context.Background() }

func fillBasics(t *testing.T, m *Machine) {
	t.Helper()
	if err := m.SetField(ctxb(), "title", "2BHK in Noida"); err != nil {
		t.Fatal(err)
	}
	if err := m.SetField(ctxb(), "monthly_rent", "15000"); err != nil {
		t.Fatal(err)
	}
}

func TestForwardGating(t *testing.T) {
	m, _, _, _ := fixture(t)
	if _, err := m.Next(ctxb()); !errors.Is(err, ErrStepIncomplete) {
		t.Fatalf("want ErrStepIncomplete, got %v", err)
	}
	fillBasics(t, m)
	st, err := m.Next(ctxb())
	if err != nil || st.Step != StepLocation {
		t.Fatalf("step = %v err = %v", st.Step, err)
	}
	if _, err := m.Next(ctxb()); !errors.Is(err, ErrStepIncomplete) {
		t.Fatalf("city gate missing: %v", err)
	}
}

func TestBackAlwaysAllowed(t *testing.T) {
	m, _, _, _ := fixture(t)
	st, err := m.Back(ctxb())
	if err != nil || st.Step != StepBasics {
		t.Fatalf("back at 0: %v %v", st.Step, err)
	}
	fillBasics(t, m)
	_, _ = m.Next(ctxb())
	st, _ = m.Back(ctxb())
	if st.Step != StepBasics {
		t.Fatalf("step = %v", st.Step)
	}
}

func TestRemoteSaveOnForwardPastLocation(t *testing.T) {
	m, _, api, _ := fixture(t)
	fillBasics(t, m)
	if _, err := m.Next(ctxb()); err != nil {
		t.Fatal(err)
	}
	if api.creates != 0 {
		t.Fatalf("draft created too early: %d", api.creates)
	}
	_ = m.SetField(ctxb(), "location.city", "noida")
	st, err := m.Next(ctxb())
	if err != nil || st.Step != StepDetails {
		t.Fatalf("step = %v err = %v", st.Step, err)
	}
	if api.creates != 1 || api.updates != 1 {
		t.Fatalf("creates=%d updates=%d", api.creates, api.updates)
	}
	if st.ListingID == "" {
		t.Fatal("listing id not recorded")
	}
}

func TestFailedRemoteSaveDoesNotAdvance(t *testing.T) {
	m, store, api, _ := fixture(t)
	api.updateErr = errors.New("gateway timeout")
	fillBasics(t, m)
	_, _ = m.Next(ctxb())
	_ = m.SetField(ctxb(), "location.city", "noida")
	if _, err := m.Next(ctxb()); err == nil {
		t.Fatal("expected save error")
	}
	if st := m.State(); st.Step != StepLocation {
		t.Fatalf("advanced despite failed save: %v", st.Step)
	}
	if _, ok := store.snaps["sess-1"]; !ok {
		t.Fatal("snapshot lost on failure")
	}
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	m, store, _, _ := fixture(t)
	fillBasics(t, m)
	_, _ = m.Next(ctxb())

	m2 := NewMachine("sess-1", Deps{
		Accessor: draft.NewAccessor(schema.MustLoad()),
		Store:    store,
		Drafts:   &fakeDraftAPI{},
		Decider:  segment.NewDecider(nil),
	})
	if err := m2.Restore(ctxb()); err != nil {
		t.Fatal(err)
	}
	st := m2.State()
	if st.Step != StepLocation || st.Form["title"] != "2BHK in Noida" {
		t.Fatalf("restored = %+v", st)
	}
}

func TestUnknownSnapshotVersionDiscarded(t *testing.T) {
	m, store, _, _ := fixture(t)
	store.snaps["sess-1"] = Snapshot{Version: 99, Form: draft.Form{"title": "future"}, Step: StepReview}
	if err := m.Restore(ctxb()); err != nil {
		t.Fatal(err)
	}
	st := m.State()
	if st.Step != StepBasics || st.Form["title"] != nil {
		t.Fatalf("future snapshot applied: %+v", st)
	}
	if _, ok := store.snaps["sess-1"]; ok {
		t.Fatal("stale snapshot not cleared")
	}
}

func TestEditByIDDiscardsSnapshot(t *testing.T) {
	m, _, api, _ := fixture(t)
	fillBasics(t, m)
	api.remote = map[string]any{"title": "Remote title", "monthly_rent": float64(22000), "location.city": "pune"}

	if err := m.EditByID(ctxb(), "lst_9"); err != nil {
		t.Fatal(err)
	}
	st := m.State()
	if st.Form["title"] != "Remote title" {
		t.Fatalf("form = %+v", st.Form)
	}
	if st.Form["monthly_rent"] != "22000" {
		t.Fatalf("number not converted to display string: %v", st.Form["monthly_rent"])
	}
	if st.ListingID != "lst_9" {
		t.Fatalf("listing id = %q", st.ListingID)
	}
	if st.Step != StepDetails {
		t.Fatalf("step = %v", st.Step)
	}
}

func TestAcceptCaptureRecomputesStep(t *testing.T) {
	m, _, _, _ := fixture(t)
	acc := draft.NewAccessor(schema.MustLoad())
	d := acc.Set(draft.Empty(), "title", "2BHK in Noida")
	d = acc.Set(d, "monthly_rent", 15000)
	d = acc.Set(d, "location.city", "noida")

	if err := m.AcceptCapture(ctxb(), d); err != nil {
		t.Fatal(err)
	}
	st := m.State()
	if st.Step != StepDetails {
		t.Fatalf("voice-filled wizard sent to step %v", st.Step)
	}
	if st.Form["location.city"] != "noida" || st.Form["monthly_rent"] != "15000" {
		t.Fatalf("form = %+v", st.Form)
	}
}

func advanceToReview(t *testing.T, m *Machine) {
	t.Helper()
	fillBasics(t, m)
	_ = m.SetField(ctxb(), "location.city", "noida")
	for m.State().Step < StepReview {
		if _, err := m.Next(ctxb()); err != nil {
			t.Fatalf("advance: %v", err)
		}
	}
}

func TestSubmitOnlyFromReview(t *testing.T) {
	m, _, _, _ := fixture(t)
	if _, err := m.Submit(ctxb(), false, ""); !errors.Is(err, ErrNotAtReview) {
		t.Fatalf("want ErrNotAtReview, got %v", err)
	}
}

func TestSubmitClearsStateOnSuccess(t *testing.T) {
	m, store, api, _ := fixture(t)
	advanceToReview(t, m)
	out, err := m.Submit(ctxb(), false, "")
	if err != nil {
		t.Fatal(err)
	}
	if out.Receipt.Status != "under_review" {
		t.Fatalf("receipt = %+v", out.Receipt)
	}
	if api.submits != 1 {
		t.Fatalf("submits = %d", api.submits)
	}
	if _, ok := store.snaps["sess-1"]; ok {
		t.Fatal("snapshot survived successful submission")
	}
	if st := m.State(); st.Step != StepBasics || len(st.Form) != 0 {
		t.Fatalf("machine not reset: %+v", st)
	}
}

func TestSubmitFailureRetainsSnapshot(t *testing.T) {
	m, store, api, _ := fixture(t)
	advanceToReview(t, m)
	api.submitErr = errors.New("backend down")
	if _, err := m.Submit(ctxb(), false, ""); err == nil {
		t.Fatal("expected error")
	}
	if _, ok := store.snaps["sess-1"]; !ok {
		t.Fatal("snapshot cleared on failure")
	}
	if st := m.State(); st.Step != StepReview {
		t.Fatalf("step = %v", st.Step)
	}
}

func TestPGSalesAssistLead(t *testing.T) {
	m, _, _, leads := fixture(t)
	_ = m.SetField(ctxb(), "listing_type", "pg")
	_ = m.SetField(ctxb(), "pg_fields.total_beds", "45")
	advanceToReview(t, m)

	out, err := m.Submit(ctxb(), false, "")
	if err != nil {
		t.Fatal(err)
	}
	if out.SegmentPath != marketplace.PathSalesAssist {
		t.Fatalf("path = %s", out.SegmentPath)
	}
	if out.LeadID != "lead_1" || len(leads.keys) != 1 {
		t.Fatalf("lead = %q keys = %v", out.LeadID, leads.keys)
	}
}

func TestPGSelfServeSkipsLead(t *testing.T) {
	m, _, _, leads := fixture(t)
	_ = m.SetField(ctxb(), "listing_type", "pg")
	_ = m.SetField(ctxb(), "pg_fields.total_beds", "12")
	advanceToReview(t, m)
	out, err := m.Submit(ctxb(), false, "")
	if err != nil {
		t.Fatal(err)
	}
	if out.SegmentPath != marketplace.PathSelfServe || len(leads.keys) != 0 {
		t.Fatalf("out = %+v leads = %v", out, leads.keys)
	}
}

func TestLeadIdempotencyKeySurvivesRetry(t *testing.T) {
	m, _, api, leads := fixture(t)
	_ = m.SetField(ctxb(), "listing_type", "pg")
	_ = m.SetField(ctxb(), "pg_fields.total_beds", "45")
	advanceToReview(t, m)

	api.submitErr = errors.New("timeout")
	_, _ = m.Submit(ctxb(), false, "")
	snap, ok, _ := m.store.Load(ctxb(), "sess-1")
	if !ok || snap.SubmitKey == "" {
		t.Fatal("submit key not persisted after failed attempt")
	}

	api.submitErr = nil
	if _, err := m.Submit(ctxb(), false, ""); err != nil {
		t.Fatal(err)
	}

	// The retried submission reuses the key from the failed attempt so the
	// backend can deduplicate the lead.
	if len(leads.keys) != 1 || leads.keys[0] != snap.SubmitKey {
		t.Fatalf("lead keys = %v, want [%s]", leads.keys, snap.SubmitKey)
	}
}

func TestLeadFailureIsSoft(t *testing.T) {
	m, store, _, leads := fixture(t)
	leads.err = errors.New("crm down")
	_ = m.SetField(ctxb(), "listing_type", "pg")
	_ = m.SetField(ctxb(), "pg_fields.total_beds", "45")
	advanceToReview(t, m)

	out, err := m.Submit(ctxb(), false, "")
	if err != nil {
		t.Fatalf("lead failure escalated: %v", err)
	}
	if out.LeadNotice == "" {
		t.Fatal("missing soft notice")
	}
	if _, ok := store.snaps["sess-1"]; ok {
		t.Fatal("snapshot kept after successful submission")
	}
}

func TestEnsureListingCreatesOnce(t *testing.T) {
	m, _, api, _ := fixture(t)
	fillBasics(t, m)
	id1, err := m.EnsureListing(ctxb())
	if err != nil {
		t.Fatal(err)
	}
	id2, err := m.EnsureListing(ctxb())
	if err != nil {
		t.Fatal(err)
	}
	if id1 != id2 || api.creates != 1 {
		t.Fatalf("ids %q/%q creates=%d", id1, id2, api.creates)
	}
}
