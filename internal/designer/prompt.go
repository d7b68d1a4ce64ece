package designer

import (
	"errors"
	"fmt"
	"strings"

	"rauw-tafel-designer/internal/catalog"
)

// Role tags the semantic position of an input image. Untagged images get
// RoleInput and fall through to the generic combine instruction.
type Role string

const (
	RoleInput     Role = ""
	RoleVorm      Role = "vorm"
	RoleOnderstel Role = "onderstel"
	RoleKleur     Role = "kleur"
	RoleRoom      Role = "room"
)

// RoleFor maps a catalog category to its prompt role.
func RoleFor(cat catalog.Category) Role {
	switch cat {
	case catalog.Vorm:
		return RoleVorm
	case catalog.Onderstel:
		return RoleOnderstel
	case catalog.Kleur:
		return RoleKleur
	}
	return RoleInput
}

// ImageRef is a source image on disk plus its semantic role.
type ImageRef struct {
	Path string
	Role Role
}

// Request describes one generation call. WithRoom must be set explicitly
// for the room-placement instruction; a fourth image alone does not
// trigger it.
type Request struct {
	Images   []ImageRef
	WithRoom bool
	Legs     int    // 0 means no preference, otherwise 2, 3 or 4
	Prompt   string // overrides the generated instruction when non-empty
}

const (
	MinImages = 1
	MaxImages = 5
)

// ErrInvalidRequest wraps all request validation failures.
var ErrInvalidRequest = errors.New("invalid generation request")

func (r Request) Validate() error {
	if len(r.Images) < MinImages {
		return fmt.Errorf("%w: at least %d input image is required", ErrInvalidRequest, MinImages)
	}
	if len(r.Images) > MaxImages {
		return fmt.Errorf("%w: at most %d input images are allowed, got %d", ErrInvalidRequest, MaxImages, len(r.Images))
	}
	if r.Legs != 0 && (r.Legs < 2 || r.Legs > 4) {
		return fmt.Errorf("%w: legs must be 2, 3 or 4", ErrInvalidRequest)
	}
	for i, img := range r.Images {
		if strings.TrimSpace(img.Path) == "" {
			return fmt.Errorf("%w: image %d has an empty path", ErrInvalidRequest, i+1)
		}
	}
	return nil
}

const promptEnhance = "Turn this image into a professional quality studio shoot " +
	"with better lighting and depth of field."

const promptCombine = "Combine the subjects of these images in a natural way, producing a new image."

const promptTable = "Create a new image by combining the elements from the provided images. " +
	"Take [the table shape] from image 1 and combine it with [the table base] from image 2, " +
	"applying [the wood finish and color] from image 3. " +
	"The final image should be [a complete, elegant custom-made dining table " +
	"placed prominently in a modern, stylish living room with natural lighting]."

const promptRoom = "Create a photorealistic visualization by following these steps: " +
	"1) First, combine the table shape from image 1, the table base from image 2, " +
	"and the wood finish/color from image 3 into one complete, elegant custom dining table. " +
	"2) Then, place this complete table naturally in the room shown in image 4. " +
	"Match the perspective, lighting, and shadows of the room precisely. " +
	"The table should integrate seamlessly as if it belongs in this space, " +
	"with realistic proportions, natural placement on the floor, " +
	"and appropriate shadows and reflections. " +
	"The final image should look like a professional photograph of this custom table " +
	"in the actual room."

// BuildPrompt picks the instruction for the model. A caller-supplied
// prompt always wins. Otherwise the choice branches on image count and
// role tags; any mismatch falls back to the generic combine instruction.
func BuildPrompt(req Request) string {
	if p := strings.TrimSpace(req.Prompt); p != "" {
		return p
	}

	n := len(req.Images)
	switch {
	case n == 1:
		return promptEnhance
	case n == 4 && req.WithRoom && tableRolesTagged(req.Images[:3]) && req.Images[3].Role == RoleRoom:
		return promptRoom + legsInstruction(req.Legs)
	case n == 3 && tableRolesTagged(req.Images):
		return promptTable + legsInstruction(req.Legs)
	default:
		return promptCombine
	}
}

func tableRolesTagged(images []ImageRef) bool {
	return len(images) == 3 &&
		images[0].Role == RoleVorm &&
		images[1].Role == RoleOnderstel &&
		images[2].Role == RoleKleur
}

func legsInstruction(legs int) string {
	if legs == 0 {
		return ""
	}
	return fmt.Sprintf(" IMPORTANT: The table must have exactly %d legs.", legs)
}
