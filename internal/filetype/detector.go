package filetype

import (
	"fmt"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog/log"
)

// Info contains detected file type information.
type Info struct {
	MIMEType  string
	Extension string
	IsPDF     bool
}

// Detect sniffs the payload's actual type using magic bytes, not the
// filename it was uploaded under.
func Detect(data []byte) Info {
	mtype := mimetype.Detect(data)
	info := Info{
		MIMEType:  mtype.String(),
		Extension: mtype.Extension(),
		IsPDF:     mtype.Is("application/pdf"),
	}
	log.Debug().Str("mime", info.MIMEType).Str("ext", info.Extension).Msg("detected file type")
	return info
}

// EnsurePDF rejects payloads that are not PDFs.
func EnsurePDF(name string, data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("%s: empty payload", name)
	}
	info := Detect(data)
	if !info.IsPDF {
		return fmt.Errorf("%s: not a PDF (detected %s)", name, info.MIMEType)
	}
	return nil
}
