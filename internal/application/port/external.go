package port

import (
	"io"

	"github.com/garyjia/billing-engine/internal/domain/entity"
)

// InvoiceExporter renders a hydrated invoice into a downloadable document
type InvoiceExporter interface {
	// ContentType is the MIME type of the rendered document
	ContentType() string

	// FileExtension is the extension of the rendered document, without the dot
	FileExtension() string

	Export(details *entity.InvoiceDetails, w io.Writer) error
}

// NumberGenerator produces candidate internal invoice numbers.
// Uniqueness is enforced by the store; callers retry on ErrDuplicateKey.
type NumberGenerator interface {
	Next() string
}
