package pdf

import (
	"bytes"
	"context"

	wkhtmltopdf "github.com/SebastiaanKlippert/go-wkhtmltopdf"

	"github.com/gathergrid/gathergrid-backend/pkg/config"
	"github.com/gathergrid/gathergrid-backend/pkg/errors"
)

// Renderer turns HTML documents into PDF bytes.
type Renderer interface {
	Render(ctx context.Context, html []byte) ([]byte, error)
}

// WKRenderer shells out to wkhtmltopdf.
type WKRenderer struct {
	cfg config.PDFConfig
}

// NewWKRenderer builds a Renderer from config. When BinaryPath is set it
// overrides binary discovery via PATH.
func NewWKRenderer(cfg config.PDFConfig) (*WKRenderer, error) {
	if cfg.BinaryPath != "" {
		wkhtmltopdf.SetPath(cfg.BinaryPath)
	}
	return &WKRenderer{cfg: cfg}, nil
}

// Render produces a single-page-flow PDF from the given HTML.
func (r *WKRenderer) Render(ctx context.Context, html []byte) ([]byte, error) {
	if len(html) == 0 {
		return nil, errors.New(errors.CodeValidation, "html document is empty")
	}

	gen, err := wkhtmltopdf.NewPDFGenerator()
	if err != nil {
		return nil, errors.Wrap(errors.CodeDependency, err, "wkhtmltopdf unavailable")
	}

	page := wkhtmltopdf.NewPageReader(bytes.NewReader(html))
	page.DisableExternalLinks.Set(true)
	page.DisableJavascript.Set(true)
	gen.AddPage(page)
	gen.Dpi.Set(96)
	gen.PageSize.Set(wkhtmltopdf.PageSizeA4)

	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	if err := gen.CreateContext(ctx); err != nil {
		return nil, errors.Wrap(errors.CodeDependency, err, "pdf generation failed")
	}

	return gen.Bytes(), nil
}
