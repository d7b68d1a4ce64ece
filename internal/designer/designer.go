package designer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"rauw-tafel-designer/internal/gemini"
	"rauw-tafel-designer/internal/output"
)

type Options struct {
	Gemini *gemini.Client
	Output *output.Writer
	Logger *slog.Logger
}

// Designer runs the full pipeline: read the selected images, build the
// instruction, call the model, persist what comes back.
type Designer struct {
	gem    *gemini.Client
	out    *output.Writer
	logger *slog.Logger
}

func New(opts Options) *Designer {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Designer{
		gem:    opts.Gemini,
		out:    opts.Output,
		logger: logger,
	}
}

// Result is the outcome of one generation call.
type Result struct {
	Files  []output.SavedFile
	Text   string
	Prompt string
}

// Generate validates the request, then runs it end to end. Validation and
// file reads happen before any network traffic, so a bad request never
// costs an API call.
func (d *Designer) Generate(ctx context.Context, req Request) (Result, error) {
	if err := req.Validate(); err != nil {
		return Result{}, err
	}

	inputs := make([]gemini.ImageInput, 0, len(req.Images))
	for _, ref := range req.Images {
		data, err := os.ReadFile(ref.Path)
		if err != nil {
			return Result{}, fmt.Errorf("read input image: %w", err)
		}
		inputs = append(inputs, gemini.ImageInput{
			Data:     data,
			MimeType: detectMime(ref.Path, data),
		})
	}

	prompt := BuildPrompt(req)
	d.logger.Info("remixing images", "count", len(inputs), "prompt", prompt)

	resp, err := d.gem.Remix(ctx, prompt, inputs)
	if err != nil {
		return Result{}, err
	}

	images := make([]output.Image, 0, len(resp.Images))
	for _, img := range resp.Images {
		images = append(images, output.Image{Data: img.Data, MimeType: img.MimeType})
	}

	files, err := d.out.SaveAll(images)
	if err != nil {
		return Result{}, err
	}
	for _, f := range files {
		d.logger.Info("file saved", "path", f.Path)
	}

	return Result{Files: files, Text: resp.Text, Prompt: prompt}, nil
}

func detectMime(path string, data []byte) string {
	mimeType := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}
	if idx := strings.IndexByte(mimeType, ';'); idx >= 0 {
		mimeType = strings.TrimSpace(mimeType[:idx])
	}
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = "image/jpeg"
	}
	return mimeType
}
