package media

// Kind classifies an attachment by its declared media type.
type Kind string

const (
	KindImage       Kind = "image"
	KindDocument    Kind = "document"
	KindUnsupported Kind = "unsupported"
)

// Attachment is a user-supplied file admitted into the compose buffer.
// Data and Preview are data URLs ("data:<type>;base64,<payload>") and are
// always fully resolved; for images Preview equals Data, for documents it is
// a rendering of the first page.
type Attachment struct {
	ID        string `json:"id"`
	Kind      Kind   `json:"kind"`
	Name      string `json:"name"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
	Preview   string `json:"preview,omitempty"`
}

// ContentPart is the unit the chat wire protocol transports: either a text
// part or an image part. Used by the composer, the transport and the server
// providers without circular imports.
type ContentPart struct {
	Type     string    `json:"type"` // "text" or "image_url"
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

type ImageURL struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"` // "auto", "low" or "high"
}

const (
	PartText  = "text"
	PartImage = "image_url"

	DetailAuto = "auto"
)

func TextPart(text string) ContentPart {
	return ContentPart{Type: PartText, Text: text}
}

func ImagePart(url string) ContentPart {
	return ContentPart{Type: PartImage, ImageURL: &ImageURL{URL: url, Detail: DetailAuto}}
}

func (p ContentPart) IsImage() bool {
	return p.Type == PartImage && p.ImageURL != nil
}
