package dispatcher

import (
	"context"
	"fmt"
	"strings"

	"github.com/jo-hoe/imagebot/internal/transform"
)

const (
	WelcomeText        = "Hello! Welcome to opencv_bot"
	ImageReceivedText  = "Image received! Choose an option using the commands."
	ImageFailedText    = "Failed to process image."
	NoImageText        = "No image found. Please send an image first."
	UnknownCommandText = "Unknown command. Send /help to see the available commands."
)

var commandDescriptions = map[transform.Command]string{
	transform.BlackWhite: "Convert to black and white",
	transform.Blur:       "Apply blur",
	transform.Edge:       "Detect edges",
	transform.Contour:    "Detect contours",
	transform.Erosion:    "Apply erosion",
	transform.Dilation:   "Apply dilation",
	transform.Histogram:  "Equalize histogram",
	transform.Sampling:   "Sample image (reduce resolution)",
}

var commandFailureTexts = map[transform.Command]string{
	transform.BlackWhite: "Failed to convert image to black and white.",
	transform.Blur:       "Failed to apply blur.",
	transform.Edge:       "Failed to detect edges.",
	transform.Contour:    "Failed to detect contours.",
	transform.Erosion:    "Failed to apply erosion.",
	transform.Dilation:   "Failed to apply dilation.",
	transform.Histogram:  "Failed to equalize histogram.",
	transform.Sampling:   "Failed to sample image.",
}

// Reply is what the transport sends back to the session: either a text
// message or an encoded photo.
type Reply struct {
	Text        string
	Photo       []byte
	ContentType string
	// Kind is empty for successful replies.
	Kind Kind
}

// IsPhoto reports whether the reply carries an image.
func (r Reply) IsPhoto() bool {
	return r.Photo != nil
}

// HandleImage stores raw as the session image and acknowledges it.
func (d *Dispatcher) HandleImage(ctx context.Context, key string, raw []byte) Reply {
	if err := d.OnImageReceived(ctx, key, raw); err != nil {
		return Reply{Text: ImageFailedText, Kind: KindOf(err)}
	}
	return Reply{Text: ImageReceivedText}
}

// HandleCommand runs cmd on the session image and returns the encoded result.
func (d *Dispatcher) HandleCommand(ctx context.Context, key string, cmd transform.Command) Reply {
	out, err := d.OnCommand(ctx, key, cmd)
	if err != nil {
		if IsKind(err, KindPrecondition) {
			return Reply{Text: NoImageText, Kind: KindPrecondition}
		}
		return Reply{Text: FailureText(cmd), Kind: KindOf(err)}
	}

	data, err := d.encoder.Encode(out)
	if err != nil {
		d.logger.Error("Dispatcher: failed to encode result",
			"session", key, "command", cmd.String(), "format", d.encoder.Format, "error", err)
		return Reply{Text: FailureText(cmd), Kind: KindTransform}
	}
	return Reply{Photo: data, ContentType: d.encoder.ContentType()}
}

// Start returns the welcome message.
func (d *Dispatcher) Start() Reply {
	return Reply{Text: WelcomeText}
}

// Help lists every command with its chat token.
func (d *Dispatcher) Help() Reply {
	return Reply{Text: HelpText()}
}

// HelpText lists the chat token and description of every command.
func HelpText() string {
	var b strings.Builder
	b.WriteString("Send an image and choose an option:\n")
	for _, cmd := range transform.AllCommands() {
		fmt.Fprintf(&b, "/%s - %s\n", cmd.Token(), commandDescriptions[cmd])
	}
	return b.String()
}

// FailureText returns the message sent when cmd could not be applied.
func FailureText(cmd transform.Command) string {
	if text, ok := commandFailureTexts[cmd]; ok {
		return text
	}
	return ImageFailedText
}
