// Package intake runs voice capture sessions: recording, extraction,
// classification and the confirmation workflow, up to the hand-off into the
// wizard. A capture draft never outlives its session.
package intake

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"rentora/internal/capture"
	"rentora/internal/confirm"
	"rentora/internal/draft"
	"rentora/internal/extract"
	"rentora/internal/telemetry"
	"rentora/internal/wizard"
)

var (
	ErrSessionNotFound = errors.New("intake: capture session not found")
	ErrRecorderBusy    = errors.New("intake: another recording is already in progress")
	ErrNotReady        = errors.New("intake: extraction has not finished")
	ErrNotReleasable   = errors.New("intake: unresolved fields remain")
)

const extractionTimeout = 90 * time.Second

type Status string

const (
	StatusRecording  Status = "recording"
	StatusProcessing Status = "processing"
	StatusReady      Status = "ready"
	StatusFailed     Status = "failed"
)

type Service struct {
	acc       *draft.Accessor
	extractor extract.Extractor
	tel       *telemetry.Recorder

	mu       sync.Mutex
	sessions map[string]*session
}

type session struct {
	id       string
	ownerKey string
	locale   string
	typeHint string

	src  *capture.BufferSource
	ctrl *capture.Controller

	mu         sync.Mutex
	status     Status
	workflow   *confirm.Workflow
	transcript string
	warnings   []string
	lastErr    string
}

func New(acc *draft.Accessor, extractor extract.Extractor, tel *telemetry.Recorder) *Service {
	return &Service{
		acc:       acc,
		extractor: extractor,
		tel:       tel,
		sessions:  make(map[string]*session),
	}
}

type OpenRequest struct {
	OwnerKey        string
	Locale          string
	ListingTypeHint string
	MIMEType        string
	// Supported is the caller's capability declaration; false routes the
	// flow straight to manual entry.
	Supported bool
}

// Open starts a new capture session and begins recording. One owner holds at
// most one live recording at a time.
func (s *Service) Open(ctx context.Context, req OpenRequest) (string, error) {
	if !req.Supported {
		s.tel.CaptureFallback("capture_unsupported")
		return "", capture.ErrUnsupported
	}
	s.mu.Lock()
	for _, existing := range s.sessions {
		if existing.ownerKey == req.OwnerKey && existing.ctrl.State() == capture.StateRecording {
			s.mu.Unlock()
			return "", ErrRecorderBusy
		}
	}
	mime := req.MIMEType
	if mime == "" {
		mime = "audio/webm"
	}
	sess := &session{
		id:       uuid.NewString(),
		ownerKey: req.OwnerKey,
		locale:   req.Locale,
		typeHint: req.ListingTypeHint,
		src:      capture.NewBufferSource(mime, 0),
		status:   StatusRecording,
	}
	sess.ctrl = capture.NewController(sess.src, capture.WithAutoStop(func(blob capture.Blob, err error) {
		go s.process(sess, blob, err)
	}))
	s.sessions[sess.id] = sess
	s.mu.Unlock()

	if err := sess.ctrl.Start(ctx); err != nil {
		s.mu.Lock()
		delete(s.sessions, sess.id)
		s.mu.Unlock()
		if errors.Is(err, capture.ErrPermissionDenied) {
			s.tel.CaptureFallback("permission_denied")
		} else {
			s.tel.CaptureFallback("capture_unsupported")
		}
		return "", err
	}
	return sess.id, nil
}

func (s *Service) get(id string) (*session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// Append adds one streamed audio frame.
func (s *Service) Append(id string, frame []byte) error {
	sess, err := s.get(id)
	if err != nil {
		return err
	}
	return sess.src.Append(frame)
}

// Stop ends the recording and runs extraction synchronously. Stopping a
// session the ceiling already stopped just reports its current state.
func (s *Service) Stop(ctx context.Context, id string) error {
	sess, err := s.get(id)
	if err != nil {
		return err
	}
	blob, err := sess.ctrl.Stop()
	if errors.Is(err, capture.ErrNotRecording) {
		return nil
	}
	if err != nil {
		sess.fail(fmt.Sprintf("stop recording: %v", err))
		return err
	}
	s.process(sess, blob, nil)
	return nil
}

// Retry re-arms a failed session for another recording attempt.
func (s *Service) Retry(ctx context.Context, id string) error {
	sess, err := s.get(id)
	if err != nil {
		return err
	}
	sess.mu.Lock()
	if sess.status != StatusFailed {
		sess.mu.Unlock()
		return fmt.Errorf("intake: session is %s, only failed sessions can retry", sess.status)
	}
	sess.status = StatusRecording
	sess.lastErr = ""
	sess.mu.Unlock()
	return sess.ctrl.Start(ctx)
}

func (s *Service) process(sess *session, blob capture.Blob, recErr error) {
	defer sess.ctrl.Finish()
	if recErr != nil {
		sess.fail(fmt.Sprintf("recording failed: %v", recErr))
		s.tel.ExtractionFinished("recording_error")
		return
	}
	sess.mu.Lock()
	sess.status = StatusProcessing
	sess.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), extractionTimeout)
	defer cancel()
	res, err := s.extractor.Extract(ctx, extract.Audio{Data: blob.Data, MIMEType: blob.MIMEType}, sess.locale, sess.typeHint)
	if err != nil {
		log.Printf("extraction failed for session %s: %v", sess.id, err)
		sess.fail(fmt.Sprintf("extraction failed: %v", err))
		s.tel.ExtractionFinished("error")
		return
	}

	sess.mu.Lock()
	sess.workflow = confirm.NewWorkflow(s.acc, res, s.tel)
	sess.transcript = res.Transcript
	sess.warnings = res.CriticalWarnings
	sess.status = StatusReady
	sess.mu.Unlock()
	s.tel.ExtractionFinished("ok")
}

func (sess *session) fail(msg string) {
	sess.mu.Lock()
	sess.status = StatusFailed
	sess.lastErr = msg
	sess.mu.Unlock()
}

// View is the session state handed to the confirmation UI.
type View struct {
	ID             string                 `json:"id"`
	Status         Status                 `json:"status"`
	ElapsedSeconds int                    `json:"elapsedSeconds"`
	Transcript     string                 `json:"transcript,omitempty"`
	Draft          draft.Draft            `json:"draft,omitempty"`
	Classification capture.Classification `json:"classification"`
	Unconfirmed    []string               `json:"unconfirmed"`
	MissingValues  []string               `json:"missingValues"`
	Releasable     bool                   `json:"releasable"`
	Warnings       []string               `json:"warnings,omitempty"`
	Error          string                 `json:"error,omitempty"`
}

func (s *Service) View(id string) (View, error) {
	sess, err := s.get(id)
	if err != nil {
		return View{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	v := View{
		ID:             sess.id,
		Status:         sess.status,
		ElapsedSeconds: sess.ctrl.ElapsedSeconds(),
		Transcript:     sess.transcript,
		Warnings:       sess.warnings,
		Error:          sess.lastErr,
	}
	if sess.workflow != nil {
		v.Draft = sess.workflow.Draft()
		v.Classification = sess.workflow.Classification()
		v.Unconfirmed, v.MissingValues = sess.workflow.Unresolved()
		v.Releasable = sess.workflow.Releasable()
	}
	return v, nil
}

func (s *Service) withWorkflow(id string, fn func(*confirm.Workflow) error) error {
	sess, err := s.get(id)
	if err != nil {
		return err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.workflow == nil {
		return ErrNotReady
	}
	return fn(sess.workflow)
}

// ConfirmField marks a field confirmed without editing it.
func (s *Service) ConfirmField(id, path string) error {
	return s.withWorkflow(id, func(w *confirm.Workflow) error {
		return w.ConfirmField(path)
	})
}

// SaveField stores an edited value; the edit doubles as confirmation.
func (s *Service) SaveField(id, path string, value any) error {
	return s.withWorkflow(id, func(w *confirm.Workflow) error {
		return w.SaveField(path, value)
	})
}

// Release reconciles the confirmed draft into the wizard and discards the
// session. Blocked while any confirmation or required value is outstanding.
func (s *Service) Release(ctx context.Context, id string, m *wizard.Machine) error {
	sess, err := s.get(id)
	if err != nil {
		return err
	}
	sess.mu.Lock()
	w := sess.workflow
	sess.mu.Unlock()
	if w == nil {
		return ErrNotReady
	}
	if !w.Releasable() {
		confirmations, required := w.Unresolved()
		return fmt.Errorf("%w: unconfirmed=%v missing=%v", ErrNotReleasable, confirmations, required)
	}
	if err := m.AcceptCapture(ctx, w.Draft()); err != nil {
		return err
	}
	s.Close(id)
	return nil
}

// Close tears a session down, releasing the recorder if it is still held.
func (s *Service) Close(id string) {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if ok {
		sess.ctrl.Close()
	}
}

// CloseOwner tears down every session belonging to one owner key.
func (s *Service) CloseOwner(ownerKey string) {
	s.mu.Lock()
	var doomed []*session
	for id, sess := range s.sessions {
		if sess.ownerKey == ownerKey {
			doomed = append(doomed, sess)
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()
	for _, sess := range doomed {
		sess.ctrl.Close()
	}
}
