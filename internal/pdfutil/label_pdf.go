package pdfutil

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/pkg/errors"
)

// Converter downloads a carrier label image and wraps it into a one-page PDF
// sized to the image, so the customer prints it at label scale.
type Converter struct {
	httpc *http.Client
}

func New() *Converter {
	return &Converter{
		httpc: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *Converter) LabelPDF(ctx context.Context, labelURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, labelURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "new request")
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "fetch label")
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("fetch label: http %d", resp.StatusCode)
	}

	img, err := io.ReadAll(io.LimitReader(resp.Body, 20<<20))
	if err != nil {
		return nil, errors.Wrap(err, "read label body")
	}

	return imageToPDF(img)
}

func imageToPDF(img []byte) ([]byte, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(img))
	if err != nil {
		return nil, errors.Wrap(err, "decode label image")
	}

	var imageType string
	switch format {
	case "png":
		imageType = "PNG"
	case "jpeg":
		imageType = "JPG"
	case "gif":
		imageType = "GIF"
	default:
		return nil, fmt.Errorf("unsupported label image format %q", format)
	}

	w := float64(cfg.Width)
	h := float64(cfg.Height)

	doc := fpdf.NewCustom(&fpdf.InitType{
		UnitStr: "pt",
		Size:    fpdf.SizeType{Wd: w, Ht: h},
	})
	doc.SetMargins(0, 0, 0)
	doc.SetAutoPageBreak(false, 0)
	doc.AddPage()

	opts := fpdf.ImageOptions{ImageType: imageType}
	doc.RegisterImageOptionsReader("label", opts, bytes.NewReader(img))
	doc.ImageOptions("label", 0, 0, w, h, false, opts, 0, "")

	var out bytes.Buffer
	if err := doc.Output(&out); err != nil {
		return nil, errors.Wrap(err, "write pdf")
	}
	return out.Bytes(), nil
}
