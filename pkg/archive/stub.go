package archive

import (
	"context"
	"sync"

	"github.com/adscout/adscout/pkg/models"
)

// StubClient is a scripted archive client for tests and for running
// without archive access. Responses are keyed by keyword or page id;
// errors can be queued per key to exercise the retry policy.
type StubClient struct {
	mu        sync.Mutex
	byKeyword map[string][]models.AdRecord
	byPage    map[string][]models.AdRecord
	errQueue  map[string][]error
	calls     []StubCall
}

// StubCall records one invocation for assertions.
type StubCall struct {
	Op     string // "search" or "page_ads"
	Key    string
	CredID int
}

// NewStubClient creates an empty stub.
func NewStubClient() *StubClient {
	return &StubClient{
		byKeyword: make(map[string][]models.AdRecord),
		byPage:    make(map[string][]models.AdRecord),
		errQueue:  make(map[string][]error),
	}
}

// SetKeywordAds scripts the result for a keyword search.
func (s *StubClient) SetKeywordAds(keyword string, ads []models.AdRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byKeyword[keyword] = ads
}

// SetPageAds scripts the result for a page-ads fetch.
func (s *StubClient) SetPageAds(pageID string, ads []models.AdRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byPage[pageID] = ads
}

// QueueError enqueues an error returned before the scripted result for the
// given key. Each queued error is consumed by one call.
func (s *StubClient) QueueError(key string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errQueue[key] = append(s.errQueue[key], err)
}

// Calls returns the recorded invocations.
func (s *StubClient) Calls() []StubCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]StubCall, len(s.calls))
	copy(out, s.calls)
	return out
}

func (s *StubClient) next(op, key string, cred models.CredentialRef) ([]models.AdRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, StubCall{Op: op, Key: key, CredID: cred.ID})
	if q := s.errQueue[key]; len(q) > 0 {
		err := q[0]
		s.errQueue[key] = q[1:]
		return nil, err
	}
	if op == "search" {
		return s.byKeyword[key], nil
	}
	return s.byPage[key], nil
}

// SearchByKeyword implements Client.
func (s *StubClient) SearchByKeyword(_ context.Context, keyword string, _, _ []string, cred models.CredentialRef) ([]models.AdRecord, error) {
	return s.next("search", keyword, cred)
}

// GetPageAds implements Client.
func (s *StubClient) GetPageAds(_ context.Context, pageID string, _, _ []string, cred models.CredentialRef) ([]models.AdRecord, error) {
	return s.next("page_ads", pageID, cred)
}
