// Package listing hands out one wizard machine per session key, each with its
// own photo queue, restoring persisted snapshots on first touch.
package listing

import (
	"context"
	"log"
	"sync"

	"rentora/internal/draft"
	"rentora/internal/marketplace"
	"rentora/internal/segment"
	"rentora/internal/upload"
	"rentora/internal/wizard"
)

type Service struct {
	acc     *draft.Accessor
	store   wizard.SnapshotStore
	drafts  marketplace.DraftAPI
	fetcher marketplace.DraftFetcher
	leads   marketplace.LeadAPI
	decider *segment.Decider
	photos  marketplace.PhotoAPI
	putter  upload.BlobPutter

	mu       sync.Mutex
	machines map[string]*entry
}

type entry struct {
	machine *wizard.Machine
	uploads *upload.Queue
}

type Deps struct {
	Accessor *draft.Accessor
	Store    wizard.SnapshotStore
	Drafts   marketplace.DraftAPI
	Fetcher  marketplace.DraftFetcher
	Leads    marketplace.LeadAPI
	Decider  *segment.Decider
	Photos   marketplace.PhotoAPI
	Putter   upload.BlobPutter
}

func New(d Deps) *Service {
	return &Service{
		acc:      d.Accessor,
		store:    d.Store,
		drafts:   d.Drafts,
		fetcher:  d.Fetcher,
		leads:    d.Leads,
		decider:  d.Decider,
		photos:   d.Photos,
		putter:   d.Putter,
		machines: make(map[string]*entry),
	}
}

// Machine returns the wizard for a session key, creating it and replaying any
// persisted snapshot on first use.
func (s *Service) Machine(ctx context.Context, key string) *wizard.Machine {
	m, _ := s.machineEntry(ctx, key)
	return m
}

// Uploads returns the photo queue paired with a session's wizard.
func (s *Service) Uploads(ctx context.Context, key string) *upload.Queue {
	_, q := s.machineEntry(ctx, key)
	return q
}

func (s *Service) machineEntry(ctx context.Context, key string) (*wizard.Machine, *upload.Queue) {
	s.mu.Lock()
	if e, ok := s.machines[key]; ok {
		s.mu.Unlock()
		return e.machine, e.uploads
	}
	q := upload.NewQueue(s.photos, s.putter)
	m := wizard.NewMachine(key, wizard.Deps{
		Accessor: s.acc,
		Store:    s.store,
		Drafts:   s.drafts,
		Fetcher:  s.fetcher,
		Leads:    s.leads,
		Decider:  s.decider,
		Uploads:  q,
	})
	s.machines[key] = &entry{machine: m, uploads: q}
	s.mu.Unlock()

	if err := m.Restore(ctx); err != nil {
		log.Printf("snapshot restore for %s: %v", key, err)
	}
	return m, q
}

// Drop forgets a session's in-memory state. The persisted snapshot survives
// so the next Machine call restores it.
func (s *Service) Drop(key string) {
	s.mu.Lock()
	delete(s.machines, key)
	s.mu.Unlock()
}
