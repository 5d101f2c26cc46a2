// Package timeline holds a webinar template's time-indexed events and answers
// "what became visible between two playback positions".
package timeline

import (
	"sort"

	"github.com/evergreen-webinar/backend/internal/models"
)

// Window is the event delta between two sync positions. On a rewind the
// delta semantics are abandoned: Rewound is set and Chat/Rewards carry the
// full visible set, which the caller swaps in wholesale.
type Window struct {
	Chat        []models.ChatMessage `json:"chat"`
	Rewards     []models.Reward      `json:"rewards"`
	ActiveOffer *models.TimedOffer   `json:"active_offer,omitempty"`
	Rewound     bool                 `json:"rewound"`
}

// Store is the read-only event set for one webinar template, sorted once at
// construction. Safe for concurrent readers.
type Store struct {
	chat    []models.ChatMessage
	offers  []models.TimedOffer
	rewards []models.Reward
}

// NewStore builds a store from template events, sorting each set by appear
// time (chat additionally by sort order).
func NewStore(chat []models.ChatMessage, offers []models.TimedOffer, rewards []models.Reward) *Store {
	s := &Store{
		chat:    append([]models.ChatMessage(nil), chat...),
		offers:  append([]models.TimedOffer(nil), offers...),
		rewards: append([]models.Reward(nil), rewards...),
	}
	sort.SliceStable(s.chat, func(i, j int) bool {
		if s.chat[i].AppearAtSeconds != s.chat[j].AppearAtSeconds {
			return s.chat[i].AppearAtSeconds < s.chat[j].AppearAtSeconds
		}
		return s.chat[i].SortOrder < s.chat[j].SortOrder
	})
	sort.SliceStable(s.offers, func(i, j int) bool {
		return s.offers[i].AppearAtSeconds < s.offers[j].AppearAtSeconds
	})
	sort.SliceStable(s.rewards, func(i, j int) bool {
		return s.rewards[i].AppearAtSeconds < s.rewards[j].AppearAtSeconds
	})
	return s
}

// Window returns events that became visible in (from, to]. When to < from
// (a rewind) it returns every event visible at `to` with Rewound set, so the
// caller replaces its buffer instead of trying to un-deliver individually.
func (s *Store) Window(from, to int) Window {
	if to < from {
		w := s.VisibleAt(to)
		w.Rewound = true
		return w
	}
	w := Window{ActiveOffer: s.ActiveOffer(to)}
	for _, m := range s.chat {
		if m.AppearAtSeconds > from && m.AppearAtSeconds <= to {
			w.Chat = append(w.Chat, m)
		}
	}
	for _, rw := range s.rewards {
		if rw.AppearAtSeconds > from && rw.AppearAtSeconds <= to {
			w.Rewards = append(w.Rewards, rw)
		}
	}
	return w
}

// VisibleAt returns the full visible set at a position (session join, rewind).
func (s *Store) VisibleAt(position int) Window {
	w := Window{ActiveOffer: s.ActiveOffer(position)}
	for _, m := range s.chat {
		if m.AppearAtSeconds <= position {
			w.Chat = append(w.Chat, m)
		}
	}
	for _, rw := range s.rewards {
		if rw.AppearAtSeconds <= position {
			w.Rewards = append(w.Rewards, rw)
		}
	}
	return w
}

// ActiveOffer returns the most recently triggered offer whose window still
// contains the position, or nil. Last-one-wins keeps at most one popup up.
func (s *Store) ActiveOffer(position int) *models.TimedOffer {
	var active *models.TimedOffer
	for i := range s.offers {
		o := &s.offers[i]
		if o.AppearAtSeconds > position {
			break
		}
		if o.ActiveAt(position) {
			active = o
		}
	}
	if active == nil {
		return nil
	}
	cp := *active
	return &cp
}

// Offer returns the offer with the given ID, or nil.
func (s *Store) Offer(id string) *models.TimedOffer {
	for i := range s.offers {
		if s.offers[i].ID.String() == id {
			cp := s.offers[i]
			return &cp
		}
	}
	return nil
}

// Reward returns the reward with the given ID, or nil.
func (s *Store) Reward(id string) *models.Reward {
	for i := range s.rewards {
		if s.rewards[i].ID.String() == id {
			cp := s.rewards[i]
			return &cp
		}
	}
	return nil
}
