// Package images stores the images generated for each meeting.
package images

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Style is an image generation style.
type Style string

const (
	StyleProfessional Style = "professional"
	StyleCreative     Style = "creative"
	StyleAbstract     Style = "abstract"
)

// Styles lists the supported styles. The first entry is the default.
var Styles = []Style{StyleProfessional, StyleCreative, StyleAbstract}

// Image is one generated image record.
type Image struct {
	ID          string    `json:"id"`
	MeetingID   string    `json:"meeting_id"`
	Description string    `json:"description"`
	Style       Style     `json:"style"`
	Prompt      string    `json:"prompt"`
	URL         string    `json:"url"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewImage creates a record with a fresh id and creation time.
func NewImage(meetingID, description string, style Style, prompt, url string) *Image {
	return &Image{
		ID:          uuid.New().String(),
		MeetingID:   meetingID,
		Description: description,
		Style:       style,
		Prompt:      prompt,
		URL:         url,
		CreatedAt:   time.Now().UTC(),
	}
}

// Store persists a meeting's generated images. Save must be safe for
// concurrent use; List returns images in insertion order.
type Store interface {
	Save(ctx context.Context, img *Image) error
	List(ctx context.Context, meetingID string) ([]*Image, error)
}

// Order is a sort direction for listings.
type Order string

const (
	Newest Order = "newest"
	Oldest Order = "oldest"
)

// Sort orders images by creation time. Ties keep insertion order.
func Sort(imgs []*Image, order Order) {
	sort.SliceStable(imgs, func(i, j int) bool {
		if order == Oldest {
			return imgs[i].CreatedAt.Before(imgs[j].CreatedAt)
		}
		return imgs[i].CreatedAt.After(imgs[j].CreatedAt)
	})
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu     sync.RWMutex
	images map[string][]*Image
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{images: make(map[string][]*Image)}
}

// Save implements Store.
func (s *MemoryStore) Save(_ context.Context, img *Image) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *img
	s.images[img.MeetingID] = append(s.images[img.MeetingID], &cp)
	return nil
}

// List implements Store.
func (s *MemoryStore) List(_ context.Context, meetingID string) ([]*Image, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	src := s.images[meetingID]
	out := make([]*Image, len(src))
	for i, img := range src {
		cp := *img
		out[i] = &cp
	}
	return out, nil
}
