package photopost

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"math"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/rwcarlsen/goexif/exif"
	"golang.org/x/image/draw"
	"golang.org/x/sync/errgroup"
)

const jpegQuality = 85

// variantTargets is the fixed scale ladder, applied to the larger source
// dimension.
var variantTargets = [4]int{320, 640, 960, 1280}

// Variant is one resized JPEG rendition of the source photo.
type Variant struct {
	Width  int
	Height int
	Data   []byte
}

// ProcessedImage is the output of the image stage: the resized variants in
// ascending width order plus the capture date recovered from metadata, if any.
type ProcessedImage struct {
	Variants    []Variant
	CaptureDate string // "YYYY-MM-DD" or ""
}

// processImage decodes an emailed photo, corrects its orientation, and
// produces the four resized variants. Metadata problems are recovered from;
// an undecodable image is fatal.
func processImage(data []byte) (ProcessedImage, error) {
	// Read the metadata off the original bytes; decoding drops it.
	date, orientation := extractMetadata(data)

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return ProcessedImage{}, fmt.Errorf("decode image: %w", err)
	}
	img = orient(img, orientation)

	variants, err := resizeLadder(img)
	if err != nil {
		return ProcessedImage{}, err
	}
	return ProcessedImage{Variants: variants, CaptureDate: date}, nil
}

// extractMetadata reads the EXIF capture date and orientation code. Photos
// without EXIF, or with EXIF that fails to parse, yield no date and the
// identity orientation.
func extractMetadata(data []byte) (date string, orientation int) {
	orientation = 1
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return "", orientation
	}

	if tag, err := x.Get(exif.Orientation); err == nil {
		if v, err := tag.Int(0); err == nil && v >= 1 && v <= 8 {
			orientation = v
		}
	}

	for _, field := range []exif.FieldName{exif.DateTimeOriginal, exif.DateTime} {
		tag, err := x.Get(field)
		if err != nil {
			continue
		}
		raw, err := tag.StringVal()
		if err != nil {
			continue
		}
		if d, ok := normalizeExifDate(raw); ok {
			return d, orientation
		}
	}
	return "", orientation
}

// normalizeExifDate converts a raw "YYYY:MM:DD HH:MM:SS" timestamp to a
// calendar date.
func normalizeExifDate(raw string) (string, bool) {
	datePart := strings.SplitN(strings.TrimSpace(raw), " ", 2)[0]
	datePart = strings.ReplaceAll(datePart, ":", "-")
	if _, err := time.Parse("2006-01-02", datePart); err != nil {
		return "", false
	}
	return datePart, true
}

// orient applies the corrective transform for the EXIF orientation code so
// the pixel data is upright before resizing.
func orient(img image.Image, orientation int) image.Image {
	switch orientation {
	case 2:
		return imaging.FlipH(img)
	case 3:
		return imaging.Rotate180(img)
	case 4:
		return imaging.FlipV(img)
	case 5:
		return imaging.Transpose(img)
	case 6:
		return imaging.Rotate270(img)
	case 7:
		return imaging.Transverse(img)
	case 8:
		return imaging.Rotate90(img)
	}
	return img
}

// resizeLadder scales the upright image to the four targets, applying the
// same factor to both axes so the aspect ratio survives rounding. The encodes
// are independent and run concurrently.
func resizeLadder(img image.Image) ([]Variant, error) {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	larger := w
	if h > w {
		larger = h
	}

	variants := make([]Variant, len(variantTargets))
	var g errgroup.Group
	for i, target := range variantTargets {
		i, target := i, target
		g.Go(func() error {
			scale := float64(target) / float64(larger)
			nw := int(math.Round(float64(w) * scale))
			nh := int(math.Round(float64(h) * scale))
			dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
			draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Src, nil)

			var buf bytes.Buffer
			if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: jpegQuality}); err != nil {
				return fmt.Errorf("encode %dpx variant: %w", target, err)
			}
			variants[i] = Variant{Width: nw, Height: nh, Data: buf.Bytes()}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return variants, nil
}
