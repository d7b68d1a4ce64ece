package handlers

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/sync/errgroup"

	"rauw-tafel-designer/internal/catalog"
	"rauw-tafel-designer/internal/designer"
	"rauw-tafel-designer/internal/gemini"
	"rauw-tafel-designer/internal/mediagroup"
	"rauw-tafel-designer/internal/output"
	"rauw-tafel-designer/internal/telegram"
)

type Options struct {
	Telegram *telegram.Client
	Designer *designer.Designer
	Catalog  *catalog.Catalog
	Output   *output.Writer
	States   *designer.Store
	Logger   *slog.Logger
}

type Handler struct {
	tg         *telegram.Client
	designer   *designer.Designer
	catalog    *catalog.Catalog
	out        *output.Writer
	states     *designer.Store
	logger     *slog.Logger
	aggregator *mediagroup.Aggregator
}

func New(opts Options) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Handler{
		tg:       opts.Telegram,
		designer: opts.Designer,
		catalog:  opts.Catalog,
		out:      opts.Output,
		states:   opts.States,
		logger:   logger,
	}
}

func (h *Handler) SetMediaGroupAggregator(ag *mediagroup.Aggregator) {
	h.aggregator = ag
}

func (h *Handler) HandleUpdate(ctx context.Context, update telegram.Update) error {
	if update.CallbackQuery != nil {
		return h.handleCallback(ctx, update.CallbackQuery)
	}

	if update.Message == nil {
		return nil
	}

	msg := update.Message
	chatID := msg.Chat.ID
	userID := msg.From.ID
	username := msg.From.UserName

	if msg.IsCommand() {
		return h.handleCommand(ctx, chatID, userID, username, msg)
	}

	if len(msg.Photo) > 0 {
		return h.handlePhoto(ctx, chatID, userID, username, msg)
	}

	if msg.Text != "" {
		return h.handleText(ctx, chatID, userID, msg.Text)
	}

	return nil
}

// HandleMediaGroup combines an album of photos into one new image. The
// caption, when present, replaces the default combine instruction.
func (h *Handler) HandleMediaGroup(ctx context.Context, group mediagroup.Group) {
	if err := h.processAlbum(ctx, group.ChatID, group.Caption, group.FileIDs); err != nil {
		h.logger.Error("media group processing failed", "err", err)
	}
}

func (h *Handler) handleCommand(ctx context.Context, chatID int64, userID int64, username string, msg *tgbotapi.Message) error {
	switch msg.Command() {
	case "start":
		return h.tg.SendText(chatID,
			"🪑 RAUW Tafel Designer\n\n"+
				"Welkom! Stel uw eigen tafel samen en bekijk het resultaat als foto.\n\n"+
				"Commando's:\n"+
				"/ontwerp - Start de tafel designer\n"+
				"/help - Hulp\n"+
				"/annuleer - Sessie annuleren\n\n"+
				"U kunt ook losse foto's sturen: één foto wordt als productfoto verbeterd, "+
				"een album wordt tot één beeld gecombineerd.",
		)
	case "help":
		return h.tg.SendText(chatID,
			"🪑 Hulp\n\n"+
				"/ontwerp - kies vorm, onderstel en houtkleur, optioneel met een foto "+
				"van uw eigen ruimte, en ontvang een fotorealistisch beeld van uw tafel.\n"+
				"Eén foto sturen - ik maak er een professionele productfoto van.\n"+
				"Een album sturen - ik combineer de foto's tot één beeld "+
				"(zet uw wensen in het bijschrift).\n"+
				"/annuleer - sessie annuleren.",
		)
	case "ontwerp", "design":
		return h.startDesignWizard(chatID, userID)
	case "annuleer", "cancel":
		h.states.Reset(chatID, userID)
		return h.tg.SendText(chatID, "✅ Sessie geannuleerd. Start opnieuw met /ontwerp.")
	default:
		return h.tg.SendText(chatID, "❌ Onbekend commando. Gebruik /help.")
	}
}

func (h *Handler) handleText(ctx context.Context, chatID int64, userID int64, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	st := h.states.Get(chatID, userID)
	if st.AwaitingRoom {
		return h.tg.SendText(chatID, "📷 Stuur een foto van uw ruimte, of annuleer met /annuleer.")
	}

	return h.tg.SendText(chatID, "💬 Gebruik /ontwerp om een tafel samen te stellen, of stuur een foto.")
}

func (h *Handler) handlePhoto(ctx context.Context, chatID int64, userID int64, username string, msg *tgbotapi.Message) error {
	photo := msg.Photo[len(msg.Photo)-1]
	fileID := photo.FileID

	st := h.states.Get(chatID, userID)
	if st.AwaitingRoom {
		h.states.Update(chatID, userID, func(st *designer.WizardState) {
			st.RoomFileID = fileID
			st.AwaitingRoom = false
			st.Menu = "main"
		})
		_ = h.tg.SendText(chatID, "✓ Ruimtefoto ontvangen.")
		return h.renderDesignerUI(chatID, userID, 0, true)
	}

	if msg.MediaGroupID != "" && h.aggregator != nil {
		h.aggregator.Add(mediagroup.Item{
			ChatID:       chatID,
			UserID:       userID,
			Username:     username,
			MediaGroupID: msg.MediaGroupID,
			Caption:      msg.Caption,
			FileID:       fileID,
		})
		return nil
	}

	return h.processSinglePhoto(ctx, chatID, msg.Caption, fileID)
}

// processSinglePhoto runs the one-image enhancement flow: the photo is
// turned into a clean studio product shot.
func (h *Handler) processSinglePhoto(ctx context.Context, chatID int64, caption string, fileID string) error {
	h.tg.SendUploadingPhoto(chatID)
	_ = h.tg.SendText(chatID, "✨ Uw productfoto wordt verbeterd, een moment geduld...")

	path, cleanup, err := h.downloadToTemp(ctx, fileID)
	if err != nil {
		h.logger.Error("photo download failed", "err", err)
		return h.tg.SendText(chatID, "❌ Kon de foto niet downloaden. Probeer het opnieuw.")
	}
	defer cleanup()

	req := designer.Request{
		Images: []designer.ImageRef{{Path: path}},
		Prompt: strings.TrimSpace(caption),
	}
	return h.generateAndSend(ctx, chatID, req, "✅ Uw productfoto is klaar!")
}

func (h *Handler) processAlbum(ctx context.Context, chatID int64, caption string, fileIDs []string) error {
	h.tg.SendUploadingPhoto(chatID)
	_ = h.tg.SendText(chatID, "✨ Uw foto's worden gecombineerd, een moment geduld...")

	paths := make([]string, len(fileIDs))
	cleanups := make([]func(), 0, len(fileIDs))
	defer func() {
		for _, fn := range cleanups {
			fn()
		}
	}()

	var mu sync.Mutex
	eg, egCtx := errgroup.WithContext(ctx)
	for i, fileID := range fileIDs {
		i := i
		fileID := fileID
		eg.Go(func() error {
			path, cleanup, err := h.downloadToTemp(egCtx, fileID)
			if err != nil {
				return err
			}
			mu.Lock()
			cleanups = append(cleanups, cleanup)
			mu.Unlock()
			paths[i] = path
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		h.logger.Error("album download failed", "err", err)
		return h.tg.SendText(chatID, "❌ Kon de foto's niet downloaden. Probeer het opnieuw.")
	}

	refs := make([]designer.ImageRef, 0, len(paths))
	for _, p := range paths {
		refs = append(refs, designer.ImageRef{Path: p})
	}

	req := designer.Request{
		Images: refs,
		Prompt: strings.TrimSpace(caption),
	}
	return h.generateAndSend(ctx, chatID, req, "✅ Uw gecombineerde beeld is klaar!")
}

// downloadToTemp fetches a Telegram photo and parks it next to the
// generated output so the periodic sweep covers it too.
func (h *Handler) downloadToTemp(ctx context.Context, fileID string) (string, func(), error) {
	data, mimeType, err := h.tg.DownloadFile(ctx, fileID)
	if err != nil {
		return "", nil, err
	}
	return h.out.TempInputFile(data, mimeType)
}

func (h *Handler) generateAndSend(ctx context.Context, chatID int64, req designer.Request, caption string) error {
	result, err := h.designer.Generate(ctx, req)
	if err != nil {
		h.logger.Error("generation failed", "err", err)
		return h.tg.SendText(chatID, generationErrorText(err))
	}

	return h.sendResultFiles(chatID, result.Files, caption)
}

func (h *Handler) sendResultFiles(chatID int64, files []output.SavedFile, caption string) error {
	for i, f := range files {
		data, err := os.ReadFile(f.Path)
		if err != nil {
			h.logger.Error("result file read failed", "path", f.Path, "err", err)
			continue
		}

		sendCaption := ""
		if i == 0 {
			sendCaption = caption
		}
		if err := h.tg.SendPhoto(chatID, data, mimeForName(f.Name), sendCaption); err != nil {
			return err
		}
	}
	return nil
}

func generationErrorText(err error) string {
	switch {
	case errors.Is(err, gemini.ErrBlocked):
		return "❌ De aanvraag is geweigerd door het veiligheidsfilter. Probeer andere foto's."
	case errors.Is(err, gemini.ErrNoImage):
		return "❌ Er kwam geen afbeelding terug. Probeer het opnieuw of pas uw wensen aan."
	case errors.Is(err, designer.ErrInvalidRequest):
		return "❌ Deze combinatie van foto's kan ik niet verwerken (maximaal 5 foto's)."
	default:
		return "❌ Er ging iets mis bij het genereren. Probeer het later opnieuw."
	}
}

func mimeForName(name string) string {
	switch {
	case strings.HasSuffix(name, ".png"):
		return "image/png"
	case strings.HasSuffix(name, ".webp"):
		return "image/webp"
	default:
		return "image/jpeg"
	}
}
