// Package wizard owns the canonical listing draft being built: the 5-step
// flow, its gating rules, snapshot persistence, remote autosave and the
// submission sequence.
package wizard

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"

	"rentora/internal/draft"
	"rentora/internal/marketplace"
	"rentora/internal/segment"
	"rentora/internal/upload"
)

type Step int

const (
	StepBasics Step = iota
	StepLocation
	StepDetails
	StepPhotos
	StepReview
)

var stepNames = [...]string{"basics", "location", "details", "photos", "review"}

func (s Step) String() string {
	if s < StepBasics || s > StepReview {
		return fmt.Sprintf("step(%d)", int(s))
	}
	return stepNames[s]
}

var (
	ErrStepIncomplete = errors.New("wizard: required fields missing for this step")
	ErrNotAtReview    = errors.New("wizard: submission only allowed from the review step")
)

// SnapshotVersion tags the persisted shape so future field additions can be
// migrated instead of silently dropped.
const SnapshotVersion = 1

// Snapshot is the client-durable wizard record.
type Snapshot struct {
	Version   int        `json:"version"`
	Form      draft.Form `json:"form"`
	Step      Step       `json:"step"`
	ListingID string     `json:"listingId,omitempty"`
	SubmitKey string     `json:"submitKey,omitempty"`
}

// SnapshotStore persists one snapshot per session key.
type SnapshotStore interface {
	Load(ctx context.Context, key string) (Snapshot, bool, error)
	Save(ctx context.Context, key string, s Snapshot) error
	Clear(ctx context.Context, key string) error
}

// Machine is one owner's wizard. All methods are safe for concurrent use;
// late-arriving remote responses cannot displace a listing id already set.
type Machine struct {
	key     string
	acc     *draft.Accessor
	store   SnapshotStore
	drafts  marketplace.DraftAPI
	fetcher marketplace.DraftFetcher
	leads   marketplace.LeadAPI
	decider *segment.Decider
	uploads *upload.Queue

	mu        sync.Mutex
	form      draft.Form
	step      Step
	listingID string
	submitKey string
}

type Deps struct {
	Accessor *draft.Accessor
	Store    SnapshotStore
	Drafts   marketplace.DraftAPI
	Fetcher  marketplace.DraftFetcher
	Leads    marketplace.LeadAPI
	Decider  *segment.Decider
	Uploads  *upload.Queue
}

func NewMachine(key string, d Deps) *Machine {
	return &Machine{
		key:     key,
		acc:     d.Accessor,
		store:   d.Store,
		drafts:  d.Drafts,
		fetcher: d.Fetcher,
		leads:   d.Leads,
		decider: d.Decider,
		uploads: d.Uploads,
		form:    draft.Form{},
		step:    StepBasics,
	}
}

// State is a read snapshot for handlers.
type State struct {
	Form      draft.Form `json:"form"`
	Step      Step       `json:"step"`
	StepName  string     `json:"stepName"`
	ListingID string     `json:"listingId,omitempty"`
}

func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stateLocked()
}

func (m *Machine) stateLocked() State {
	form := make(draft.Form, len(m.form))
	for k, v := range m.form {
		form[k] = v
	}
	return State{Form: form, Step: m.step, StepName: m.step.String(), ListingID: m.listingID}
}

func (m *Machine) Uploads() *upload.Queue { return m.uploads }

// Restore loads the persisted snapshot, if any. Snapshots with an unknown
// version are discarded rather than mis-parsed.
func (m *Machine) Restore(ctx context.Context) error {
	snap, ok, err := m.store.Load(ctx, m.key)
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	if !ok {
		return nil
	}
	if snap.Version != SnapshotVersion {
		log.Printf("wizard snapshot version %d discarded (want %d)", snap.Version, SnapshotVersion)
		_ = m.store.Clear(ctx, m.key)
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if snap.Form != nil {
		m.form = snap.Form
	}
	if snap.Step >= StepBasics && snap.Step <= StepReview {
		m.step = snap.Step
	}
	m.listingID = snap.ListingID
	m.submitKey = snap.SubmitKey
	return nil
}

// EditByID fetches the authoritative remote state and discards any local
// snapshot.
func (m *Machine) EditByID(ctx context.Context, listingID string) error {
	fields, err := m.fetcher.FetchDraft(ctx, listingID)
	if err != nil {
		return fmt.Errorf("fetch draft %s: %w", listingID, err)
	}
	m.mu.Lock()
	form := make(draft.Form, len(fields))
	for _, p := range m.acc.Registry().Paths() {
		if v, ok := fields[p]; ok && v != nil {
			form[p] = displayValue(v)
		}
	}
	m.form = form
	m.listingID = listingID
	m.step = recomputeStep(form)
	m.mu.Unlock()
	_ = m.store.Clear(ctx, m.key)
	return m.persist(ctx)
}

func displayValue(v any) any {
	if f, ok := v.(float64); ok {
		return draft.FormatNumber(f)
	}
	return v
}

// SetField updates one form value and persists the snapshot.
func (m *Machine) SetField(ctx context.Context, path string, value any) error {
	if _, ok := m.acc.Registry().Lookup(path); !ok {
		return fmt.Errorf("wizard: unknown field %q", path)
	}
	m.mu.Lock()
	m.form[path] = value
	m.mu.Unlock()
	return m.persist(ctx)
}

// AcceptCapture reconciles a released capture draft into the form. The step
// is recomputed from form completeness, never reset to zero.
func (m *Machine) AcceptCapture(ctx context.Context, d draft.Draft) error {
	m.mu.Lock()
	m.form = draft.Reconcile(m.acc, m.form, d)
	if next := recomputeStep(m.form); next > m.step {
		m.step = next
	}
	m.mu.Unlock()
	return m.persist(ctx)
}

// Back always succeeds above step 0.
func (m *Machine) Back(ctx context.Context) (State, error) {
	m.mu.Lock()
	if m.step > StepBasics {
		m.step--
	}
	st := m.stateLocked()
	m.mu.Unlock()
	return st, m.persist(ctx)
}

// Next advances one step. Forward transitions landing past the location
// step first save the form to the remote draft record; a failed save leaves
// the wizard where it was.
func (m *Machine) Next(ctx context.Context) (State, error) {
	m.mu.Lock()
	if m.step >= StepReview {
		st := m.stateLocked()
		m.mu.Unlock()
		return st, nil
	}
	if missing := missingForStep(m.step, m.form); len(missing) > 0 {
		st := m.stateLocked()
		m.mu.Unlock()
		return st, fmt.Errorf("%w: %s", ErrStepIncomplete, strings.Join(missing, ", "))
	}
	target := m.step + 1
	m.mu.Unlock()

	if target > StepLocation {
		if err := m.saveRemote(ctx); err != nil {
			return m.State(), err
		}
	}

	m.mu.Lock()
	m.step = target
	st := m.stateLocked()
	m.mu.Unlock()
	return st, m.persist(ctx)
}

// missingForStep returns the paths blocking a forward transition.
func missingForStep(s Step, form draft.Form) []string {
	required := map[Step][]string{
		StepBasics:   {"title", "monthly_rent"},
		StepLocation: {"location.city"},
	}[s]
	var missing []string
	for _, p := range required {
		if !formHas(form, p) {
			missing = append(missing, p)
		}
	}
	return missing
}

func formHas(form draft.Form, path string) bool {
	v, ok := form[path]
	if !ok || v == nil {
		return false
	}
	if s, isStr := v.(string); isStr {
		return strings.TrimSpace(s) != ""
	}
	return true
}

// recomputeStep finds where a freshly populated form should land: a user who
// already supplied title and rent by voice is not sent back to step 0.
func recomputeStep(form draft.Form) Step {
	if len(missingForStep(StepBasics, form)) > 0 {
		return StepBasics
	}
	if len(missingForStep(StepLocation, form)) > 0 {
		return StepLocation
	}
	return StepDetails
}

// EnsureListing creates the remote draft on first use and returns its id.
// A concurrent create racing this one loses: the first id stored wins.
func (m *Machine) EnsureListing(ctx context.Context) (string, error) {
	m.mu.Lock()
	id := m.listingID
	fields := m.remoteFieldsLocked()
	m.mu.Unlock()
	if id != "" {
		return id, nil
	}
	created, err := m.drafts.CreateDraft(ctx, fields)
	if err != nil {
		return "", fmt.Errorf("create draft: %w", err)
	}
	m.mu.Lock()
	if m.listingID == "" {
		m.listingID = created
	}
	id = m.listingID
	m.mu.Unlock()
	return id, m.persist(ctx)
}

func (m *Machine) saveRemote(ctx context.Context) error {
	id, err := m.EnsureListing(ctx)
	if err != nil {
		return err
	}
	m.mu.Lock()
	fields := m.remoteFieldsLocked()
	m.mu.Unlock()
	if _, err := m.drafts.UpdateDraft(ctx, id, fields); err != nil {
		return fmt.Errorf("update draft: %w", err)
	}
	return nil
}

func (m *Machine) remoteFieldsLocked() map[string]any {
	fields := make(map[string]any, len(m.form))
	for k, v := range m.form {
		fields[k] = v
	}
	return fields
}

func (m *Machine) persist(ctx context.Context) error {
	m.mu.Lock()
	snap := Snapshot{
		Version:   SnapshotVersion,
		Form:      m.remoteFieldsLocked(),
		Step:      m.step,
		ListingID: m.listingID,
		SubmitKey: m.submitKey,
	}
	m.mu.Unlock()
	if err := m.store.Save(ctx, m.key, snap); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// SubmitOutcome reports what the submission achieved. LeadNotice carries the
// soft failure when the listing went through but the sales lead did not.
type SubmitOutcome struct {
	Receipt     marketplace.SubmitReceipt `json:"receipt"`
	SegmentPath marketplace.SegmentPath   `json:"segmentPath,omitempty"`
	LeadID      string                    `json:"leadId,omitempty"`
	LeadNotice  string                    `json:"leadNotice,omitempty"`
}

// Submit runs ensure-draft, update, submit-for-review, the conditional sales
// lead, then clears local state. Any failure before the submit call leaves
// the snapshot in place for retry; the lead idempotency key survives retries
// so a resubmission cannot double-create the lead.
func (m *Machine) Submit(ctx context.Context, authenticated bool, role string) (SubmitOutcome, error) {
	m.mu.Lock()
	if m.step != StepReview {
		m.mu.Unlock()
		return SubmitOutcome{}, ErrNotAtReview
	}
	if m.submitKey == "" {
		m.submitKey = uuid.NewString()
	}
	submitKey := m.submitKey
	m.mu.Unlock()
	if err := m.persist(ctx); err != nil {
		return SubmitOutcome{}, err
	}

	if err := m.saveRemote(ctx); err != nil {
		return SubmitOutcome{}, err
	}
	m.mu.Lock()
	id := m.listingID
	form := m.remoteFieldsLocked()
	m.mu.Unlock()

	receipt, err := m.drafts.SubmitDraft(ctx, id)
	if err != nil {
		return SubmitOutcome{}, fmt.Errorf("submit draft: %w", err)
	}
	out := SubmitOutcome{Receipt: receipt}

	if isPG(form) {
		beds := bedCount(form)
		out.SegmentPath = m.decider.Decide(ctx, authenticated, role, beds)
		if out.SegmentPath == marketplace.PathSalesAssist && m.leads != nil {
			leadID, leadErr := m.leads.CreateSalesLead(ctx, marketplace.LeadRequest{
				Source:         "pg_owner_onboarding",
				ListingID:      receipt.ListingID,
				Notes:          fmt.Sprintf("PG with %d beds routed to assisted onboarding", beds),
				Metadata:       map[string]string{"beds": strconv.Itoa(beds)},
				IdempotencyKey: submitKey,
			})
			if leadErr != nil {
				// The listing itself already went through; report softly.
				out.LeadNotice = fmt.Sprintf("listing submitted, but the sales team could not be notified: %v", leadErr)
				log.Printf("sales lead creation failed for %s: %v", receipt.ListingID, leadErr)
			} else {
				out.LeadID = leadID
			}
		}
	}

	if err := m.store.Clear(ctx, m.key); err != nil {
		log.Printf("clear snapshot for %s: %v", m.key, err)
	}
	if m.uploads != nil {
		m.uploads.Clear()
	}
	m.mu.Lock()
	m.form = draft.Form{}
	m.step = StepBasics
	m.listingID = ""
	m.submitKey = ""
	m.mu.Unlock()
	return out, nil
}

func isPG(form draft.Form) bool {
	v, _ := form["listing_type"].(string)
	return v == "pg"
}

func bedCount(form draft.Form) int {
	switch v := form["pg_fields.total_beds"].(type) {
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0
		}
		return n
	case float64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}
