package flow_test

import (
	"context"
	"sync"
	"time"

	"github.com/instapipe/dm-manager/internal/flow"
	"github.com/instapipe/dm-manager/internal/locator"
)

// fakeElement records interactions so tests can assert on clicks and
// typed text.
type fakeElement struct {
	clicks   int
	typed    string
	clickErr error
}

func (e *fakeElement) Click() error {
	e.clicks++
	return e.clickErr
}

func (e *fakeElement) Type(text string) error {
	e.typed += text
	return nil
}

func match(el locator.Element) *locator.Match {
	return locator.NewMatch(el, nil)
}

func result(fields map[string]*locator.Match) *locator.Result {
	return locator.NewResult(fields)
}

func emptyResult() *locator.Result {
	return locator.NewResult(nil)
}

// fakeSession scripts Resolve per query, keyed by the query's first
// root field name. A slice of results is consumed call by call; the
// last entry repeats once the slice is exhausted.
type fakeSession struct {
	mu sync.Mutex

	script  map[string][]*locator.Result
	storage []byte

	resolves  map[string]int
	navigated []string
	closes    int
}

func newFakeSession(storage []byte) *fakeSession {
	return &fakeSession{
		script:   map[string][]*locator.Result{},
		storage:  storage,
		resolves: map[string]int{},
	}
}

func (s *fakeSession) on(field string, results ...*locator.Result) *fakeSession {
	s.script[field] = results
	return s
}

func (s *fakeSession) Navigate(_ context.Context, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.navigated = append(s.navigated, url)
	return nil
}

func (s *fakeSession) WaitReady(context.Context) error { return nil }

func (s *fakeSession) Resolve(_ context.Context, query locator.Query) (*locator.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := query.Fields[0].Name
	n := s.resolves[name]
	s.resolves[name] = n + 1

	results := s.script[name]
	if len(results) == 0 {
		return emptyResult(), nil
	}
	if n >= len(results) {
		n = len(results) - 1
	}
	return results[n], nil
}

func (s *fakeSession) RandomScroll(context.Context) error { return nil }

func (s *fakeSession) RandomDelay(context.Context, time.Duration, time.Duration) {}

func (s *fakeSession) RandomMouseMove(context.Context) error { return nil }

func (s *fakeSession) HumanType(_ context.Context, el locator.Element, text string) error {
	return el.Type(text)
}

func (s *fakeSession) StorageState(context.Context) ([]byte, error) {
	return s.storage, nil
}

func (s *fakeSession) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	return nil
}

// fakeBrowser hands out scripted sessions in order and records the
// storage state each context was seeded with.
type fakeBrowser struct {
	mu       sync.Mutex
	sessions []*fakeSession
	next     int
	seeded   [][]byte
	err      error
}

func (b *fakeBrowser) CreateStealthContext(_ context.Context, storageState []byte) (flow.Session, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.err != nil {
		return nil, b.err
	}

	b.seeded = append(b.seeded, storageState)
	sess := b.sessions[b.next]
	if b.next < len(b.sessions)-1 {
		b.next++
	}
	return sess, nil
}
