package meeting

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	mcerrors "github.com/otherjamesbrown/meetchat/pkg/errors"
	"github.com/otherjamesbrown/meetchat/pkg/transcript"
)

// Store provides read access to meeting data. Every method returns an error
// wrapping mcerrors.ErrNotFound when the requested data does not exist.
type Store interface {
	GetMeeting(ctx context.Context, id string) (*Meeting, error)
	GetTranscript(ctx context.Context, meetingID string) (*transcript.Transcript, error)
	GetSummary(ctx context.Context, meetingID string) (*Summary, error)
}

// MemoryStore is a Store backed by in-process maps.
type MemoryStore struct {
	mu          sync.RWMutex
	meetings    map[string]*Meeting
	transcripts map[string]*transcript.Transcript
	summaries   map[string]*Summary
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		meetings:    make(map[string]*Meeting),
		transcripts: make(map[string]*transcript.Transcript),
		summaries:   make(map[string]*Summary),
	}
}

// Add stores a bundle, replacing any existing data for the same meeting.
func (s *MemoryStore) Add(b *Bundle) error {
	if b == nil || b.Meeting.ID == "" {
		return fmt.Errorf("bundle requires a meeting id: %w", mcerrors.ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	m := b.Meeting
	s.meetings[m.ID] = &m
	delete(s.transcripts, m.ID)
	delete(s.summaries, m.ID)
	if b.Transcript != nil {
		s.transcripts[m.ID] = b.Transcript
	}
	if b.Summary != nil {
		sum := *b.Summary
		sum.MeetingID = m.ID
		s.summaries[m.ID] = &sum
	}
	return nil
}

// GetMeeting implements Store.
func (s *MemoryStore) GetMeeting(_ context.Context, id string) (*Meeting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.meetings[id]
	if !ok {
		return nil, fmt.Errorf("meeting %s: %w", id, mcerrors.ErrNotFound)
	}
	out := *m
	return &out, nil
}

// GetTranscript implements Store.
func (s *MemoryStore) GetTranscript(_ context.Context, meetingID string) (*transcript.Transcript, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.transcripts[meetingID]
	if !ok {
		return nil, fmt.Errorf("transcript for meeting %s: %w", meetingID, mcerrors.ErrNotFound)
	}
	return t, nil
}

// GetSummary implements Store.
func (s *MemoryStore) GetSummary(_ context.Context, meetingID string) (*Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sum, ok := s.summaries[meetingID]
	if !ok {
		return nil, fmt.Errorf("summary for meeting %s: %w", meetingID, mcerrors.ErrNotFound)
	}
	out := *sum
	return &out, nil
}

// DecodeBundle reads one meeting bundle.
func DecodeBundle(r io.Reader) (*Bundle, error) {
	var b Bundle
	if err := json.NewDecoder(r).Decode(&b); err != nil {
		return nil, fmt.Errorf("decoding meeting bundle: %w", err)
	}
	if b.Meeting.ID == "" {
		return nil, fmt.Errorf("meeting bundle has no meeting id: %w", mcerrors.ErrValidation)
	}
	return &b, nil
}

// LoadBundleFile reads a bundle from disk into a new MemoryStore.
func LoadBundleFile(path string) (*MemoryStore, *Bundle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening bundle: %w", err)
	}
	defer f.Close()

	b, err := DecodeBundle(f)
	if err != nil {
		return nil, nil, err
	}

	store := NewMemoryStore()
	if err := store.Add(b); err != nil {
		return nil, nil, err
	}
	return store, b, nil
}
