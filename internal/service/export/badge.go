package export

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"strconv"

	"github.com/jung-kurt/gofpdf/v2"
	"github.com/pkg/errors"
	"github.com/skip2/go-qrcode"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	qrSize        = 256
	captionHeight = 40
)

type Badge struct {
	BatchID int64
	Name    string
	BusID   string
}

// BadgePNG draws the batch id QR code with the id and name underneath.
func BadgePNG(b Badge) ([]byte, error) {
	qr, err := qrcode.New(strconv.FormatInt(b.BatchID, 10), qrcode.Medium)
	if err != nil {
		return nil, errors.Wrap(err, "encode qr")
	}
	code := qr.Image(qrSize)

	canvas := image.NewRGBA(image.Rect(0, 0, qrSize, qrSize+captionHeight))
	draw.Draw(canvas, canvas.Bounds(), image.White, image.Point{}, draw.Src)
	draw.Draw(canvas, image.Rect(0, 0, qrSize, qrSize), code, code.Bounds().Min, draw.Src)

	caption(canvas, strconv.FormatInt(b.BatchID, 10), qrSize+16)
	caption(canvas, b.Name, qrSize+32)

	var buf bytes.Buffer
	if err = png.Encode(&buf, canvas); err != nil {
		return nil, errors.Wrap(err, "encode png")
	}
	return buf.Bytes(), nil
}

// caption centres text on the baseline y.
func caption(img *image.RGBA, text string, y int) {
	face := basicfont.Face7x13
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.Black),
		Face: face,
	}
	width := d.MeasureString(text).Ceil()
	x := (img.Bounds().Dx() - width) / 2
	if x < 0 {
		x = 0
	}
	d.Dot = fixed.P(x, y)
	d.DrawString(text)
}

// BadgeSheetPDF lays the badges out on A4 pages, three by four.
func BadgeSheetPDF(title string, badges []Badge) ([]byte, error) {
	const (
		cols    = 3
		rows    = 4
		cellW   = 63.0
		cellH   = 68.0
		qrMM    = 45.0
		marginX = 10.5
		marginY = 12.0
	)

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetAutoPageBreak(false, 0)

	for i, b := range badges {
		if i%(cols*rows) == 0 {
			pdf.AddPage()
			pdf.SetFont("Arial", "B", 10)
			pdf.SetXY(marginX, 4)
			pdf.CellFormat(0, 6, title, "", 0, "L", false, 0, "")
		}

		code, err := qrcode.Encode(strconv.FormatInt(b.BatchID, 10), qrcode.Medium, qrSize)
		if err != nil {
			return nil, errors.Wrapf(err, "encode qr for %d", b.BatchID)
		}
		name := fmt.Sprintf("qr-%d", b.BatchID)
		pdf.RegisterImageOptionsReader(name, gofpdf.ImageOptions{ImageType: "PNG"}, bytes.NewReader(code))

		slot := i % (cols * rows)
		x := marginX + float64(slot%cols)*cellW
		y := marginY + float64(slot/cols)*cellH

		pdf.Rect(x, y, cellW-2, cellH-2, "D")
		pdf.ImageOptions(name, x+(cellW-2-qrMM)/2, y+2, qrMM, qrMM, false, gofpdf.ImageOptions{ImageType: "PNG"}, 0, "")

		pdf.SetFont("Arial", "B", 11)
		pdf.SetXY(x, y+qrMM+3)
		pdf.CellFormat(cellW-2, 6, strconv.FormatInt(b.BatchID, 10), "", 2, "C", false, 0, "")
		pdf.SetFont("Arial", "", 9)
		pdf.CellFormat(cellW-2, 5, pdf.UnicodeTranslatorFromDescriptor("")(b.Name), "", 2, "C", false, 0, "")
		if b.BusID != "" {
			pdf.CellFormat(cellW-2, 5, "Bus "+b.BusID, "", 0, "C", false, 0, "")
		}
	}

	if len(badges) == 0 {
		pdf.AddPage()
		pdf.SetFont("Arial", "", 11)
		pdf.CellFormat(0, 8, "No active employees", "", 0, "L", false, 0, "")
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, errors.Wrap(err, "render pdf")
	}
	return buf.Bytes(), nil
}
