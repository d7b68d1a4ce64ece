package gemini

// ImageInput is one source image sent to the model, in composition order.
type ImageInput struct {
	Data     []byte
	MimeType string
}

// GeneratedImage is one image returned by the model.
type GeneratedImage struct {
	Data     []byte
	MimeType string
}

// Response carries everything a single generateContent call produced.
// Text is the model's commentary, if any; Images is never empty on a
// successful Remix.
type Response struct {
	Text   string
	Images []GeneratedImage
}
