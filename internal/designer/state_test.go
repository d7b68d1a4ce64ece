package designer

import (
	"sync"
	"testing"

	"rauw-tafel-designer/internal/catalog"
)

func TestStoreGetCreatesDefault(t *testing.T) {
	store := NewStore()

	st := store.Get(10, 20)

	if st.Menu != "main" {
		t.Fatalf("Menu = %q, want main", st.Menu)
	}
	if st.Complete() {
		t.Fatalf("fresh state reports complete")
	}
}

func TestStoreUpdatePersists(t *testing.T) {
	store := NewStore()

	store.Update(10, 20, func(st *WizardState) {
		st.SetChoice(catalog.Vorm, "rond.jpeg")
		st.SetChoice(catalog.Onderstel, "x-poot.jpg")
		st.Legs = 4
	})

	st := store.Get(10, 20)
	if st.Choice(catalog.Vorm) != "rond.jpeg" {
		t.Fatalf("Vorm = %q, want rond.jpeg", st.Choice(catalog.Vorm))
	}
	if st.Legs != 4 {
		t.Fatalf("Legs = %d, want 4", st.Legs)
	}
	if st.Complete() {
		t.Fatalf("state complete without kleur choice")
	}

	store.Update(10, 20, func(st *WizardState) {
		st.SetChoice(catalog.Kleur, "walnoot.png")
	})
	if !store.Get(10, 20).Complete() {
		t.Fatalf("state not complete after all three choices")
	}
}

func TestStoreKeysByChatAndUser(t *testing.T) {
	store := NewStore()

	store.Update(10, 20, func(st *WizardState) { st.Vorm = "rond.jpeg" })

	if got := store.Get(10, 21).Vorm; got != "" {
		t.Fatalf("other user sees Vorm = %q", got)
	}
	if got := store.Get(11, 20).Vorm; got != "" {
		t.Fatalf("other chat sees Vorm = %q", got)
	}
}

func TestStoreReset(t *testing.T) {
	store := NewStore()

	store.Update(10, 20, func(st *WizardState) {
		st.Vorm = "rond.jpeg"
		st.Onderstel = "x-poot.jpg"
		st.Kleur = "walnoot.png"
		st.Legs = 3
		st.RoomFileID = "file-1"
		st.AwaitingRoom = true
		st.Menu = "kleur"
	})

	st := store.Reset(10, 20)

	if st.Vorm != "" || st.Onderstel != "" || st.Kleur != "" {
		t.Fatalf("choices survived reset: %+v", st)
	}
	if st.Legs != 0 || st.RoomFileID != "" || st.AwaitingRoom {
		t.Fatalf("extras survived reset: %+v", st)
	}
	if st.Menu != "main" {
		t.Fatalf("Menu = %q, want main", st.Menu)
	}
}

func TestStoreConcurrentUpdates(t *testing.T) {
	store := NewStore()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			store.Update(10, 20, func(st *WizardState) { st.Legs = 4 })
			_ = store.Get(10, 20)
		}()
	}
	wg.Wait()

	if got := store.Get(10, 20).Legs; got != 4 {
		t.Fatalf("Legs = %d, want 4", got)
	}
}
