// Package qr renders the printable assets for a performer's public request
// page: the raw QR code PNG and the A4 flyer that embeds it.
package qr

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/go-pdf/fpdf"
	qrcode "github.com/skip2/go-qrcode"
)

// Flyer palette.
var (
	colorInk    = [3]int{24, 24, 27}    // near-black headline
	colorAccent = [3]int{124, 58, 237}  // violet accent bar
	colorMuted  = [3]int{113, 113, 122} // secondary text
)

const defaultQRSize = 512 // px, comfortable for phone scanning when printed

type Generator struct {
	publicURL string
}

func NewGenerator(publicURL string) *Generator {
	return &Generator{publicURL: strings.TrimRight(publicURL, "/")}
}

// PageURL is the public request page address encoded into every asset.
func (g *Generator) PageURL(slug string) string {
	return fmt.Sprintf("%s/p/%s", g.publicURL, slug)
}

// PagePNG renders the QR code for the public page as a PNG. Size is in
// pixels; values <= 0 fall back to the default.
func (g *Generator) PagePNG(slug string, size int) ([]byte, error) {
	if size <= 0 {
		size = defaultQRSize
	}
	png, err := qrcode.Encode(g.PageURL(slug), qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("qr encode: %w", err)
	}
	return png, nil
}

// FlyerPDF renders a single-page A4 flyer: performer name, a scan prompt,
// the QR code and the page URL spelled out for people who prefer typing.
func (g *Generator) FlyerPDF(displayName, slug string) ([]byte, error) {
	png, err := g.PagePNG(slug, defaultQRSize)
	if err != nil {
		return nil, err
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(20, 20, 20)
	pdf.AddPage()
	pageWidth, _ := pdf.GetPageSize()

	// Top accent bar
	pdf.SetFillColor(colorAccent[0], colorAccent[1], colorAccent[2])
	pdf.Rect(0, 0, pageWidth, 8, "F")

	pdf.SetY(40)
	pdf.SetFont("Helvetica", "B", 30)
	pdf.SetTextColor(colorInk[0], colorInk[1], colorInk[2])
	pdf.CellFormat(0, 14, displayName, "", 1, "C", false, 0, "")

	pdf.Ln(4)
	pdf.SetFont("Helvetica", "", 16)
	pdf.SetTextColor(colorMuted[0], colorMuted[1], colorMuted[2])
	pdf.CellFormat(0, 9, "Request a song for tonight's set", "", 1, "C", false, 0, "")

	// QR centered, 110mm square
	const qrSide = 110.0
	opts := fpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("page-qr", opts, bytes.NewReader(png))
	pdf.ImageOptions("page-qr", (pageWidth-qrSide)/2, pdf.GetY()+10, qrSide, qrSide, false, opts, 0, "")

	pdf.SetY(pdf.GetY() + 10 + qrSide + 12)
	pdf.SetFont("Helvetica", "B", 14)
	pdf.SetTextColor(colorInk[0], colorInk[1], colorInk[2])
	pdf.CellFormat(0, 8, "Scan with your camera", "", 1, "C", false, 0, "")

	pdf.SetFont("Helvetica", "", 12)
	pdf.SetTextColor(colorMuted[0], colorMuted[1], colorMuted[2])
	pdf.CellFormat(0, 7, g.PageURL(slug), "", 1, "C", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("flyer output: %w", err)
	}
	return buf.Bytes(), nil
}
