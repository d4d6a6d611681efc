package session

import "github.com/otherjamesbrown/meetchat/pkg/chat"

type searchState struct {
	visible bool
	query   string
}

// ShowSearch shows the search overlay.
func (s *Session) ShowSearch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.search.visible = true
}

// HideSearch hides the search overlay and clears the query.
func (s *Session) HideSearch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.search = searchState{}
}

// SetQuery sets the search query.
func (s *Session) SetQuery(q string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.search.query = q
}

// SearchVisible reports whether the search overlay is shown.
func (s *Session) SearchVisible() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.search.visible
}

// Visible returns the messages to render: all of them, or only those whose
// content matches the query while the search overlay is shown.
func (s *Session) Visible() []*chat.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.search.visible {
		return cloneAll(s.messages)
	}
	var out []*chat.Message
	for _, m := range s.messages {
		if m.Contains(s.search.query) {
			out = append(out, m.Clone())
		}
	}
	return out
}

// BottomThreshold is how close to the end, in the same units as OnScroll,
// the view must be to count as at the bottom.
const BottomThreshold = 40

type scrollState struct {
	atBottom    bool
	newMessages int
	autoScroll  bool
}

func (s *scrollState) contentAdded() {
	if s.atBottom {
		s.autoScroll = true
		return
	}
	s.newMessages++
}

func (s *scrollState) jumpToBottom() {
	s.atBottom = true
	s.newMessages = 0
	s.autoScroll = true
}

// ScrollState is the view's scroll tracking.
type ScrollState struct {
	AtBottom    bool
	NewMessages int
	// AutoScroll is set when content arrived while at the bottom and the view
	// should follow it.
	AutoScroll bool
}

// OnScroll records the view position. Scrolling to the bottom clears the
// new-messages counter.
func (s *Session) OnScroll(offset, viewport, content int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.scroll.atBottom = offset+viewport >= content-BottomThreshold
	if s.scroll.atBottom {
		s.scroll.newMessages = 0
	} else {
		s.scroll.autoScroll = false
	}
}

// JumpToBottom is the "new messages" affordance: it scrolls to the end.
func (s *Session) JumpToBottom() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scroll.jumpToBottom()
}

// Scroll returns the scroll state and clears the pending auto-scroll.
func (s *Session) Scroll() ScrollState {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := ScrollState{AtBottom: s.scroll.atBottom, NewMessages: s.scroll.newMessages, AutoScroll: s.scroll.autoScroll}
	s.scroll.autoScroll = false
	return st
}
