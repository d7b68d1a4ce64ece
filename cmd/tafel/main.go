package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"rauw-tafel-designer/internal/catalog"
	"rauw-tafel-designer/internal/config"
	"rauw-tafel-designer/internal/designer"
	"rauw-tafel-designer/internal/gemini"
	"rauw-tafel-designer/internal/httpclient"
	"rauw-tafel-designer/internal/output"
)

type stringList []string

func (s *stringList) String() string {
	return strings.Join(*s, ", ")
}

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

func main() {
	_ = godotenv.Load()

	var images stringList
	var roomImage string
	var prompt string
	var outputDir string
	var assetsDir string
	var legs int

	flag.Var(&images, "i", "path to an input image, repeat for up to 5 images (omit to start the interactive designer)")
	flag.Var(&images, "image", "alias for -i")
	flag.StringVar(&roomImage, "r", "", "path to a room photo to place the table in")
	flag.StringVar(&roomImage, "room-image", "", "alias for -r")
	flag.StringVar(&prompt, "prompt", "", "custom instruction for remixing the images")
	flag.StringVar(&outputDir, "output-dir", "output", "directory to save the generated images")
	flag.StringVar(&assetsDir, "assets-dir", "", "directory holding the vorm/, onderstel/ and kleur/ image sets")
	flag.IntVar(&legs, "legs", 0, "number of table legs (2, 3 or 4)")
	flag.Parse()

	if legs != 0 && (legs < 2 || legs > 4) {
		fmt.Fprintln(os.Stderr, "Error: --legs must be 2, 3 or 4")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
	if assetsDir == "" {
		assetsDir = cfg.AssetsDir
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))

	httpClient := httpclient.New(httpclient.Options{
		PreferIPv4: cfg.PreferIPv4,
		Timeout:    cfg.HTTPTimeout,
	})

	gem := gemini.New(gemini.Options{
		APIKey:     cfg.GeminiAPIKey,
		BaseURL:    cfg.GeminiBaseURL,
		APIVersion: cfg.GeminiAPIVersion,
		HTTPClient: httpClient,
		Logger:     logger,
	})

	out, err := output.New(outputDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}

	des := designer.New(designer.Options{
		Gemini: gem,
		Output: out,
		Logger: logger,
	})

	cat := catalog.New(assetsDir)

	var req designer.Request
	if len(images) == 0 {
		req, err = runWizard(bufio.NewReader(os.Stdin), os.Stdout, cat, roomImage)
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			os.Exit(1)
		}
	} else {
		req, err = buildCLIRequest(os.Stdout, images, roomImage, prompt, legs)
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			os.Exit(2)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reqCtx, cancel := context.WithTimeout(ctx, cfg.RequestTimeout)
	defer cancel()

	result, err := des.Generate(reqCtx, req)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}

	for _, f := range result.Files {
		fmt.Printf("File saved to: %s\n", f.Path)
	}
	if result.Text != "" {
		fmt.Println(result.Text)
	}
}

// runWizard walks the user through the table designer step by step and
// returns the assembled request.
func runWizard(in *bufio.Reader, w io.Writer, cat *catalog.Catalog, roomFlag string) (designer.Request, error) {
	fmt.Fprintln(w, "\n=== TAFEL DESIGNER ===")

	vorm, err := selectImage(in, w, cat, catalog.Vorm, "STAP 1: Kies uw tafelvorm")
	if err != nil {
		return designer.Request{}, err
	}

	onderstel, err := selectImage(in, w, cat, catalog.Onderstel, "STAP 2: Kies uw onderstel")
	if err != nil {
		return designer.Request{}, err
	}

	legs, err := askLegs(in, w)
	if err != nil {
		return designer.Request{}, err
	}

	kleur, err := selectImage(in, w, cat, catalog.Kleur, "STAP 3: Kies uw houtkleur/afwerking")
	if err != nil {
		return designer.Request{}, err
	}

	room := roomFlag
	if room == "" {
		room = askRoomImage(in, w)
	}

	req := designer.Request{
		Images: []designer.ImageRef{
			{Path: vorm, Role: designer.RoleVorm},
			{Path: onderstel, Role: designer.RoleOnderstel},
			{Path: kleur, Role: designer.RoleKleur},
		},
		Legs: legs,
	}

	if room != "" && fileExists(room) {
		req.Images = append(req.Images, designer.ImageRef{Path: room, Role: designer.RoleRoom})
		req.WithRoom = true
		fmt.Fprintln(w, "\n✨ Genereert tafel in uw eigen ruimte...")
	} else {
		fmt.Fprintln(w, "\n✨ Genereert tafel in standaard showroom...")
	}

	return req, nil
}

func selectImage(in *bufio.Reader, w io.Writer, cat *catalog.Catalog, category catalog.Category, label string) (string, error) {
	names, err := cat.List(category)
	if err != nil {
		return "", err
	}
	if len(names) == 0 {
		return "", fmt.Errorf("no images found in the %s directory", category)
	}

	fmt.Fprintf(w, "\n%s:\n", label)
	for i, name := range names {
		fmt.Fprintf(w, "  %d. %s\n", i+1, name)
	}

	for {
		fmt.Fprintf(w, "Kies (1-%d): ", len(names))
		line, readErr := in.ReadString('\n')

		choice, convErr := strconv.Atoi(strings.TrimSpace(line))
		if convErr == nil && choice >= 1 && choice <= len(names) {
			return cat.Resolve(category, names[choice-1])
		}

		fmt.Fprintf(w, "❌ Kies een getal tussen 1 en %d\n", len(names))
		if readErr != nil {
			return "", fmt.Errorf("input ended before a valid choice")
		}
	}
}

func askLegs(in *bufio.Reader, w io.Writer) (int, error) {
	for {
		fmt.Fprint(w, "\n🔢 STAP 2a: Aantal poten (2/3/4): ")
		line, readErr := in.ReadString('\n')

		switch strings.TrimSpace(line) {
		case "2":
			return 2, nil
		case "3":
			return 3, nil
		case "4":
			return 4, nil
		}

		fmt.Fprintln(w, "❌ Kies 2, 3 of 4 poten")
		if readErr != nil {
			return 0, fmt.Errorf("input ended before a valid choice")
		}
	}
}

func askRoomImage(in *bufio.Reader, w io.Writer) string {
	fmt.Fprintln(w, "\n🏠 STAP 4 (optioneel): Plaats tafel in uw eigen ruimte")
	fmt.Fprintln(w, "\n💡 Tips voor beste resultaat:")
	fmt.Fprintln(w, "  • Goede belichting (natuurlijk licht of goede verlichting)")
	fmt.Fprintln(w, "  • Lege vloerruimte zichtbaar waar tafel kan staan")
	fmt.Fprintln(w, "  • Foto op ooghoogte genomen")
	fmt.Fprintln(w, "  • Hogere resolutie = beter resultaat")

	for {
		fmt.Fprint(w, "\nPad naar uw ruimtefoto (Enter om over te slaan): ")
		line, readErr := in.ReadString('\n')

		path := strings.TrimSpace(line)
		if path == "" {
			fmt.Fprintln(w, "→ Gebruikt standaard showroom achtergrond")
			return ""
		}

		if fileExists(path) {
			fmt.Fprintf(w, "✓ Ruimtefoto gevonden: %s\n", path)
			return path
		}

		fmt.Fprintf(w, "✗ Bestand niet gevonden: %s\n", path)
		fmt.Fprint(w, "Opnieuw proberen? (j/n): ")
		retry, retryErr := in.ReadString('\n')
		if strings.TrimSpace(strings.ToLower(retry)) != "j" || readErr != nil || retryErr != nil {
			fmt.Fprintln(w, "→ Gebruikt standaard showroom achtergrond")
			return ""
		}
	}
}

// buildCLIRequest maps explicit -i flags onto a request. Exactly three
// images are treated as the table workflow (vorm, onderstel, kleur in
// that order); only then can a room image join as the fourth.
func buildCLIRequest(w io.Writer, images []string, roomImage, prompt string, legs int) (designer.Request, error) {
	refs := make([]designer.ImageRef, 0, len(images)+1)
	for _, p := range images {
		refs = append(refs, designer.ImageRef{Path: p})
	}

	if len(refs) == 3 {
		refs[0].Role = designer.RoleVorm
		refs[1].Role = designer.RoleOnderstel
		refs[2].Role = designer.RoleKleur
	}

	req := designer.Request{
		Images: refs,
		Prompt: strings.TrimSpace(prompt),
		Legs:   legs,
	}

	if roomImage != "" {
		switch {
		case len(images) != 3:
			fmt.Fprintln(w, "⚠️  Warning: --room-image is designed for 3-image table workflow (vorm, onderstel, kleur). Ignoring room image.")
		case !fileExists(roomImage):
			fmt.Fprintf(w, "✗ Room image not found: %s\n", roomImage)
		default:
			req.Images = append(req.Images, designer.ImageRef{Path: roomImage, Role: designer.RoleRoom})
			req.WithRoom = true
			fmt.Fprintf(w, "✓ Adding room image: %s\n", roomImage)
		}
	}

	if n := len(req.Images); n < designer.MinImages || n > designer.MaxImages {
		return designer.Request{}, fmt.Errorf("please provide between 1 and 5 input images using the -i flag")
	}

	return req, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
