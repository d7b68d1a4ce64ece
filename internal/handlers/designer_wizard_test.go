package handlers

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"rauw-tafel-designer/internal/catalog"
	"rauw-tafel-designer/internal/designer"
	"rauw-tafel-designer/internal/gemini"
)

func TestCallbackDataFormat(t *testing.T) {
	got := cb(123, "pick", "vorm", "4")
	if got != "td:123:pick:vorm:4" {
		t.Fatalf("cb = %q", got)
	}

	// Telegram rejects callback data over 64 bytes, so the longest
	// realistic payload has to stay under it.
	long := cb(9223372036854775807, "pick", "onderstel", "199")
	if len(long) > 64 {
		t.Fatalf("callback data is %d bytes: %q", len(long), long)
	}
}

func TestDesignerUITextFreshState(t *testing.T) {
	text := designerUIText(designer.WizardState{Menu: "main"})

	if got := strings.Count(text, "(nog niet gekozen)"); got != 3 {
		t.Fatalf("open choices shown %d times, want 3\n%s", got, text)
	}
	if !strings.Contains(text, "Poten: automatisch") {
		t.Fatalf("missing automatic legs line:\n%s", text)
	}
	if !strings.Contains(text, "standaard showroom") {
		t.Fatalf("missing showroom line:\n%s", text)
	}
}

func TestDesignerUITextCompleteState(t *testing.T) {
	st := designer.WizardState{
		Vorm:      "rond.jpeg",
		Onderstel: "x-poot.jpg",
		Kleur:     "walnoot.png",
		Legs:      4,
		Menu:      "main",
	}

	text := designerUIText(st)

	for _, want := range []string{"rond", "x-poot", "walnoot", "Poten: 4", "Genereer"} {
		if !strings.Contains(text, want) {
			t.Fatalf("missing %q in:\n%s", want, text)
		}
	}
	if strings.Contains(text, ".jpeg") || strings.Contains(text, ".png") {
		t.Fatalf("extensions leaked into display text:\n%s", text)
	}
}

func TestDesignerUITextAwaitingRoom(t *testing.T) {
	text := designerUIText(designer.WizardState{AwaitingRoom: true, Menu: "main"})

	if !strings.Contains(text, "foto van uw ruimte") {
		t.Fatalf("missing room instruction:\n%s", text)
	}
}

func TestMainKeyboardMarksChoicesAndRoom(t *testing.T) {
	st := designer.WizardState{Vorm: "rond.jpeg", RoomFileID: "file-1"}

	kb := mainKeyboard(7, st)

	var labels []string
	for _, row := range kb.InlineKeyboard {
		for _, btn := range row {
			labels = append(labels, btn.Text)
		}
	}
	joined := strings.Join(labels, "|")

	if !strings.Contains(joined, "✅ Vorm") {
		t.Fatalf("chosen vorm not marked: %s", joined)
	}
	if strings.Contains(joined, "✅ Onderstel") {
		t.Fatalf("open onderstel marked as chosen: %s", joined)
	}
	if !strings.Contains(joined, "✅ Ruimtefoto") || !strings.Contains(joined, "wissen") {
		t.Fatalf("room buttons missing: %s", joined)
	}
}

func TestMainKeyboardWithoutRoomHasNoClearButton(t *testing.T) {
	kb := mainKeyboard(7, designer.WizardState{})

	for _, row := range kb.InlineKeyboard {
		for _, btn := range row {
			if strings.Contains(btn.Text, "wissen") {
				t.Fatalf("clear button shown without a room photo")
			}
		}
	}
}

func TestPickKeyboardIndexesAndMarker(t *testing.T) {
	names := []string{"ovaal.jpg", "rechthoek.png", "rond.jpeg"}

	kb := pickKeyboard(7, catalog.Vorm, names, "rond.jpeg")

	// Two names per row plus a back row.
	if got := len(kb.InlineKeyboard); got != 3 {
		t.Fatalf("got %d rows, want 3", got)
	}

	var buttons []string
	var datas []string
	for _, row := range kb.InlineKeyboard[:2] {
		for _, btn := range row {
			buttons = append(buttons, btn.Text)
			datas = append(datas, *btn.CallbackData)
		}
	}

	if buttons[0] != "ovaal" || buttons[2] != "✅ rond" {
		t.Fatalf("labels = %v", buttons)
	}
	for i, data := range datas {
		want := fmt.Sprintf("td:7:pick:vorm:%d", i)
		if data != want {
			t.Fatalf("button %d data = %q, want %q", i, data, want)
		}
	}
}

func TestLegsKeyboard(t *testing.T) {
	kb := legsKeyboard(7, 3)

	row := kb.InlineKeyboard[0]
	if len(row) != 3 {
		t.Fatalf("got %d leg buttons, want 3", len(row))
	}
	if row[1].Text != "✅ 3" {
		t.Fatalf("current legs not marked: %q", row[1].Text)
	}
	if *row[0].CallbackData != "td:7:legs:2" {
		t.Fatalf("legs data = %q", *row[0].CallbackData)
	}

	auto := legsKeyboard(7, 0).InlineKeyboard[1][0]
	if auto.Text != "✅ Geen voorkeur" {
		t.Fatalf("auto not marked by default: %q", auto.Text)
	}
}

func TestGenerationErrorText(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "safety block", err: fmt.Errorf("remix: %w", gemini.ErrBlocked), want: "veiligheidsfilter"},
		{name: "no image", err: fmt.Errorf("remix: %w", gemini.ErrNoImage), want: "geen afbeelding"},
		{name: "invalid request", err: fmt.Errorf("check: %w", designer.ErrInvalidRequest), want: "maximaal 5"},
		{name: "generic", err: errors.New("boom"), want: "later opnieuw"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := generationErrorText(tt.err)
			if !strings.Contains(got, tt.want) {
				t.Fatalf("text %q does not mention %q", got, tt.want)
			}
		})
	}
}

func TestMimeForName(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{name: "remixed_image_1_0.png", want: "image/png"},
		{name: "remixed_image_1_0.webp", want: "image/webp"},
		{name: "remixed_image_1_0.jpg", want: "image/jpeg"},
		{name: "remixed_image_1_0.bin", want: "image/jpeg"},
	}

	for _, tt := range tests {
		if got := mimeForName(tt.name); got != tt.want {
			t.Errorf("mimeForName(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}
