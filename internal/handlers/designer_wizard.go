package handlers

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"rauw-tafel-designer/internal/catalog"
	"rauw-tafel-designer/internal/designer"
)

const designCallbackPrefix = "td"

const roomTipsText = "🏠 Plaats de tafel in uw eigen ruimte\n\n" +
	"💡 Tips voor beste resultaat:\n" +
	"• Goede belichting (natuurlijk licht of goede verlichting)\n" +
	"• Lege vloerruimte zichtbaar waar tafel kan staan\n" +
	"• Foto op ooghoogte genomen\n" +
	"• Hogere resolutie = beter resultaat\n\n" +
	"Stuur nu een foto van uw ruimte (of /annuleer om over te slaan)."

func (h *Handler) startDesignWizard(chatID int64, userID int64) error {
	st := h.states.Reset(chatID, userID)

	text, kb := h.designerView(userID, st)
	msgID, err := h.tg.SendTextWithKeyboard(chatID, text, kb)
	if err != nil {
		return err
	}
	h.states.Update(chatID, userID, func(st *designer.WizardState) { st.MessageID = msgID })
	return nil
}

func (h *Handler) handleCallback(ctx context.Context, q *tgbotapi.CallbackQuery) error {
	if q == nil || q.Message == nil {
		return nil
	}
	data := strings.TrimSpace(q.Data)
	if !strings.HasPrefix(data, designCallbackPrefix+":") {
		return nil
	}

	parts := strings.Split(data, ":")
	if len(parts) < 3 {
		return nil
	}

	ownerID, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return nil
	}
	if ownerID != q.From.ID {
		_ = h.tg.AnswerCallback(q.ID, "Dit menu is niet voor u.", true)
		return nil
	}

	action := parts[2]
	args := parts[3:]
	chatID := q.Message.Chat.ID
	msgID := q.Message.MessageID

	// Picks are index based because callback data is capped at 64
	// bytes. The index is resolved against a fresh listing, so a
	// changed directory invalidates it instead of picking blind.
	var pickedCat catalog.Category
	var pickedName string
	if action == "pick" && len(args) >= 2 {
		if cat, err := catalog.Parse(args[0]); err == nil {
			if idx, err := strconv.Atoi(args[1]); err == nil {
				pickedCat = cat
				pickedName = h.catalogNameAt(cat, idx)
			}
		}
	}

	updated := h.states.Update(chatID, ownerID, func(st *designer.WizardState) {
		st.MessageID = msgID

		switch action {
		case "menu":
			if len(args) >= 1 {
				st.Menu = args[0]
			}
		case "pick":
			if pickedName != "" {
				st.SetChoice(pickedCat, pickedName)
				st.Menu = "main"
			}
		case "legs":
			if len(args) >= 1 {
				if n, err := strconv.Atoi(args[0]); err == nil && (n == 0 || (n >= 2 && n <= 4)) {
					st.Legs = n
				}
				st.Menu = "main"
			}
		case "room":
			st.AwaitingRoom = true
			st.Menu = "main"
		case "room_clear":
			st.RoomFileID = ""
			st.AwaitingRoom = false
			st.Menu = "main"
		case "reset":
			msgID := st.MessageID
			*st = designer.WizardState{}
			st.MessageID = msgID
			st.Menu = "main"
		case "close":
			st.AwaitingRoom = false
			st.Menu = "main"
		}
	})

	switch action {
	case "pick":
		if pickedName == "" {
			_ = h.tg.AnswerCallback(q.ID, "Deze keuze is niet meer beschikbaar.", true)
		} else {
			_ = h.tg.AnswerCallback(q.ID, "✓ "+displayName(pickedName), false)
		}
	case "room":
		_ = h.tg.AnswerCallback(q.ID, "Stuur een ruimtefoto.", false)
		_ = h.tg.SendText(chatID, roomTipsText)
	case "room_clear":
		_ = h.tg.AnswerCallback(q.ID, "→ Gebruikt standaard showroom achtergrond", false)
	case "generate":
		if !updated.Complete() {
			_ = h.tg.AnswerCallback(q.ID, "Kies eerst vorm, onderstel en houtkleur.", true)
		} else {
			_ = h.tg.AnswerCallback(q.ID, "Genereren…", false)
			if err := h.generateFromWizard(ctx, chatID, ownerID, updated); err != nil {
				return err
			}
		}
	default:
		_ = h.tg.AnswerCallback(q.ID, "OK", false)
	}

	return h.renderDesignerUI(chatID, ownerID, msgID, true)
}

func (h *Handler) renderDesignerUI(chatID int64, userID int64, messageID int, edit bool) error {
	st := h.states.Get(chatID, userID)
	if messageID == 0 {
		messageID = st.MessageID
	}

	text, kb := h.designerView(userID, st)

	if edit && messageID != 0 {
		if err := h.tg.EditTextWithKeyboard(chatID, messageID, text, kb); err == nil {
			return nil
		}
	}

	msgID, err := h.tg.SendTextWithKeyboard(chatID, text, kb)
	if err != nil {
		return err
	}
	h.states.Update(chatID, userID, func(st *designer.WizardState) { st.MessageID = msgID })
	return nil
}

func (h *Handler) generateFromWizard(ctx context.Context, chatID int64, userID int64, st designer.WizardState) error {
	refs := make([]designer.ImageRef, 0, 4)
	for _, cat := range catalog.Categories() {
		path, err := h.catalog.Resolve(cat, st.Choice(cat))
		if err != nil {
			h.logger.Error("wizard choice no longer resolves", "category", cat, "name", st.Choice(cat), "err", err)
			return h.tg.SendText(chatID, fmt.Sprintf("❌ Uw keuze voor %s is niet meer beschikbaar. Kies opnieuw.", cat.Label()))
		}
		refs = append(refs, designer.ImageRef{Path: path, Role: designer.RoleFor(cat)})
	}

	req := designer.Request{Images: refs, Legs: st.Legs}
	status := "✨ Genereert tafel in standaard showroom..."

	if st.RoomFileID != "" {
		data, _, err := h.tg.DownloadFile(ctx, st.RoomFileID)
		if err != nil {
			h.logger.Error("room photo download failed", "err", err)
			return h.tg.SendText(chatID, "❌ Kon de ruimtefoto niet downloaden. Stuur de foto opnieuw.")
		}

		path, cleanup, err := h.out.TempRoomFile(data)
		if err != nil {
			h.logger.Error("room photo temp write failed", "err", err)
			return h.tg.SendText(chatID, "❌ Er ging iets mis met de ruimtefoto. Probeer het opnieuw.")
		}
		defer cleanup()

		req.Images = append(req.Images, designer.ImageRef{Path: path, Role: designer.RoleRoom})
		req.WithRoom = true
		status = "✨ Genereert tafel in uw eigen ruimte..."
	}

	h.tg.SendUploadingPhoto(chatID)
	_ = h.tg.SendText(chatID, status)

	result, err := h.designer.Generate(ctx, req)
	if err != nil {
		h.logger.Error("wizard generation failed", "err", err)
		return h.tg.SendText(chatID, generationErrorText(err))
	}

	caption := fmt.Sprintf("✅ Uw tafel is klaar! %s, %s, %s",
		displayName(st.Vorm), displayName(st.Onderstel), displayName(st.Kleur))
	if st.Legs > 0 {
		caption += fmt.Sprintf(", %d poten", st.Legs)
	}

	return h.sendResultFiles(chatID, result.Files, caption)
}

func (h *Handler) designerView(ownerID int64, st designer.WizardState) (string, tgbotapi.InlineKeyboardMarkup) {
	switch st.Menu {
	case "vorm", "onderstel", "kleur":
		cat, err := catalog.Parse(st.Menu)
		if err != nil {
			break
		}
		names, err := h.catalog.List(cat)
		if err != nil {
			h.logger.Error("catalog list failed", "category", cat, "err", err)
			break
		}
		return pickMenuText(cat, len(names)), pickKeyboard(ownerID, cat, names, st.Choice(cat))
	case "legs":
		return "🔢 STAP 2a: Aantal poten\n\nKies het aantal poten, of laat de keuze aan het model over.",
			legsKeyboard(ownerID, st.Legs)
	}

	return designerUIText(st), mainKeyboard(ownerID, st)
}

func (h *Handler) catalogNameAt(cat catalog.Category, idx int) string {
	names, err := h.catalog.List(cat)
	if err != nil || idx < 0 || idx >= len(names) {
		return ""
	}
	return names[idx]
}

func designerUIText(st designer.WizardState) string {
	var b strings.Builder
	b.WriteString("🪑 RAUW Tafel Designer\n\n")
	b.WriteString("Vorm: " + choiceLine(st.Vorm) + "\n")
	b.WriteString("Onderstel: " + choiceLine(st.Onderstel) + "\n")
	b.WriteString("Houtkleur: " + choiceLine(st.Kleur) + "\n")
	if st.Legs > 0 {
		b.WriteString(fmt.Sprintf("Poten: %d\n", st.Legs))
	} else {
		b.WriteString("Poten: automatisch\n")
	}
	if st.RoomFileID != "" {
		b.WriteString("Ruimte: eigen foto ✅\n")
	} else {
		b.WriteString("Ruimte: standaard showroom\n")
	}

	if st.AwaitingRoom {
		b.WriteString("\n📷 Stuur nu een foto van uw ruimte (of /annuleer om over te slaan).\n")
	} else if st.Complete() {
		b.WriteString("\n🎨 Alles gekozen. Druk op Genereer voor uw tafel.\n")
	} else {
		b.WriteString("\nKies uw tafelvorm, onderstel en houtkleur.\n")
	}

	return strings.TrimSpace(b.String())
}

func pickMenuText(cat catalog.Category, count int) string {
	var step string
	switch cat {
	case catalog.Vorm:
		step = "STAP 1: Kies uw tafelvorm"
	case catalog.Onderstel:
		step = "STAP 2: Kies uw onderstel"
	case catalog.Kleur:
		step = "STAP 3: Kies uw houtkleur/afwerking"
	}

	if count == 0 {
		return fmt.Sprintf("🪑 %s\n\n(geen afbeeldingen gevonden)", step)
	}
	return fmt.Sprintf("🪑 %s\n\nKies (1-%d):", step, count)
}

func mainKeyboard(ownerID int64, st designer.WizardState) tgbotapi.InlineKeyboardMarkup {
	legsLabel := "Poten: auto"
	if st.Legs > 0 {
		legsLabel = fmt.Sprintf("Poten: %d", st.Legs)
	}

	roomLabel := "📷 Ruimtefoto"
	if st.RoomFileID != "" {
		roomLabel = "✅ Ruimtefoto"
	}

	rows := [][]tgbotapi.InlineKeyboardButton{
		{
			tgbotapi.NewInlineKeyboardButtonData(markChosen("Vorm", st.Vorm), cb(ownerID, "menu", "vorm")),
			tgbotapi.NewInlineKeyboardButtonData(markChosen("Onderstel", st.Onderstel), cb(ownerID, "menu", "onderstel")),
		},
		{
			tgbotapi.NewInlineKeyboardButtonData(markChosen("Houtkleur", st.Kleur), cb(ownerID, "menu", "kleur")),
			tgbotapi.NewInlineKeyboardButtonData(legsLabel, cb(ownerID, "menu", "legs")),
		},
		{
			tgbotapi.NewInlineKeyboardButtonData(roomLabel, cb(ownerID, "room")),
			tgbotapi.NewInlineKeyboardButtonData("🎨 Genereer", cb(ownerID, "generate")),
		},
	}

	if st.RoomFileID != "" {
		rows = append(rows, []tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData("🗑 Ruimtefoto wissen", cb(ownerID, "room_clear")),
		})
	}

	rows = append(rows, []tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardButtonData("Reset", cb(ownerID, "reset")),
		tgbotapi.NewInlineKeyboardButtonData("Sluiten", cb(ownerID, "close")),
	})

	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func pickKeyboard(ownerID int64, cat catalog.Category, names []string, current string) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	var row []tgbotapi.InlineKeyboardButton

	for i, name := range names {
		label := displayName(name)
		if name == current {
			label = "✅ " + label
		}

		row = append(row, tgbotapi.NewInlineKeyboardButtonData(label, cb(ownerID, "pick", string(cat), strconv.Itoa(i))))
		if len(row) == 2 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}

	rows = append(rows, []tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardButtonData("⬅ Terug", cb(ownerID, "menu", "main")),
	})

	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func legsKeyboard(ownerID int64, current int) tgbotapi.InlineKeyboardMarkup {
	var row []tgbotapi.InlineKeyboardButton
	for _, n := range []int{2, 3, 4} {
		label := strconv.Itoa(n)
		if n == current {
			label = "✅ " + label
		}
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(label, cb(ownerID, "legs", strconv.Itoa(n))))
	}

	autoLabel := "Geen voorkeur"
	if current == 0 {
		autoLabel = "✅ " + autoLabel
	}

	return tgbotapi.NewInlineKeyboardMarkup(
		row,
		[]tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData(autoLabel, cb(ownerID, "legs", "0")),
			tgbotapi.NewInlineKeyboardButtonData("⬅ Terug", cb(ownerID, "menu", "main")),
		},
	)
}

func cb(ownerID int64, parts ...string) string {
	return fmt.Sprintf("%s:%d:%s", designCallbackPrefix, ownerID, strings.Join(parts, ":"))
}

func markChosen(label string, choice string) string {
	if choice != "" {
		return "✅ " + label
	}
	return label
}

func choiceLine(name string) string {
	if name == "" {
		return "(nog niet gekozen)"
	}
	return displayName(name)
}

func displayName(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}
