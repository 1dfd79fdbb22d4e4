package audioio

import (
	"context"
	"github.com/petrzlen/butler-golang/pkg/models"
	"io"
)

// MediaDownloader fetches the attachment of an inbound message, e.g. a WhatsApp voice note.
type MediaDownloader interface {
	Download(ctx context.Context, mediaURL string, w io.Writer) (written int64, err error)
}

// Sender delivers a reply out-of-band, i.e. not as the webhook response.
type Sender interface {
	Send(ctx context.Context, reply models.OutboundReply) (sid string, err error)
}
