package attachment

import (
	"bytes"
	"fmt"
	"image/gif"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

// NormalizedImage is the result of running an upload through the optimizer.
type NormalizedImage struct {
	Data        []byte
	ContentType string
	Ext         string
}

// Normalize prepares an already-validated upload for storage. Stills are
// auto-oriented from EXIF, bounded to MaxDimension on the longest side, and
// re-encoded as JPEG, which also strips metadata. GIFs pass through
// untouched since re-encoding would drop animation frames, but their header
// dimensions still have to fit the bound.
func Normalize(data []byte, contentType string) (*NormalizedImage, error) {
	if contentType == "image/gif" {
		cfg, err := gif.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("failed to decode image: %w", err)
		}
		if cfg.Width > MaxDimension || cfg.Height > MaxDimension {
			return nil, fmt.Errorf("image dimensions %dx%d exceed %d pixels", cfg.Width, cfg.Height, MaxDimension)
		}
		return &NormalizedImage{Data: data, ContentType: contentType, Ext: "gif"}, nil
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := img.Bounds()
	if bounds.Dx() > MaxDimension || bounds.Dy() > MaxDimension {
		img = imaging.Fit(img, MaxDimension, MaxDimension, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(JPEGQuality)); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}

	return &NormalizedImage{
		Data:        buf.Bytes(),
		ContentType: "image/jpeg",
		Ext:         "jpg",
	}, nil
}
