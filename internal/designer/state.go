package designer

import (
	"sync"
	"time"

	"rauw-tafel-designer/internal/catalog"
)

// WizardState tracks one user's progress through the design wizard in
// one chat. Choices hold catalog file names, not paths.
type WizardState struct {
	Vorm      string
	Onderstel string
	Kleur     string
	Legs      int

	RoomFileID string
	MessageID  int

	AwaitingRoom bool
	Menu         string // "main" | "vorm" | "onderstel" | "kleur" | "legs"

	UpdatedAt time.Time
}

func (s *WizardState) SetChoice(cat catalog.Category, name string) {
	switch cat {
	case catalog.Vorm:
		s.Vorm = name
	case catalog.Onderstel:
		s.Onderstel = name
	case catalog.Kleur:
		s.Kleur = name
	}
}

func (s WizardState) Choice(cat catalog.Category) string {
	switch cat {
	case catalog.Vorm:
		return s.Vorm
	case catalog.Onderstel:
		return s.Onderstel
	case catalog.Kleur:
		return s.Kleur
	}
	return ""
}

// Complete reports whether all three table choices are made. The room
// photo and leg count stay optional.
func (s WizardState) Complete() bool {
	return s.Vorm != "" && s.Onderstel != "" && s.Kleur != ""
}

type Store struct {
	mu sync.Mutex
	m  map[stateKey]*WizardState
}

type stateKey struct {
	ChatID int64
	UserID int64
}

func NewStore() *Store {
	return &Store{m: make(map[stateKey]*WizardState)}
}

func (s *Store) Get(chatID, userID int64) WizardState {
	s.mu.Lock()
	defer s.mu.Unlock()

	return *s.getOrCreateLocked(chatID, userID)
}

func (s *Store) Update(chatID, userID int64, fn func(*WizardState)) WizardState {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.getOrCreateLocked(chatID, userID)
	if fn != nil {
		fn(st)
	}
	st.UpdatedAt = time.Now()
	return *st
}

func (s *Store) Reset(chatID, userID int64) WizardState {
	return s.Update(chatID, userID, func(st *WizardState) {
		*st = defaultState()
	})
}

func (s *Store) getOrCreateLocked(chatID, userID int64) *WizardState {
	key := stateKey{ChatID: chatID, UserID: userID}
	if st, ok := s.m[key]; ok {
		return st
	}
	st := defaultState()
	s.m[key] = &st
	return s.m[key]
}

func defaultState() WizardState {
	return WizardState{
		Menu:      "main",
		UpdatedAt: time.Now(),
	}
}
