package attachment_test

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/gif"
	_ "image/jpeg"
	"image/png"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/derheim/helpdesk/internal/attachment"
)

// smallest valid lossy WebP, a single white pixel
const webpPixelB64 = "UklGRiQAAABXRUJQVlA4IBgAAAAwAQCdASoBAAEAAgA0JaQAA3AA/vuUAAA="

func encodePNG(width, height int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x += 10 {
		for y := 0; y < height; y++ {
			img.Set(x, y, color.RGBA{R: 200, G: 30, B: 30, A: 255})
		}
	}
	var buf bytes.Buffer
	Expect(png.Encode(&buf, img)).To(Succeed())
	return buf.Bytes()
}

func encodeGIF(width, height int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	var buf bytes.Buffer
	Expect(gif.Encode(&buf, img, nil)).To(Succeed())
	return buf.Bytes()
}

var _ = Describe("Normalize", func() {
	It("should re-encode stills as JPEG", func() {
		data := encodePNG(400, 300)

		result, err := attachment.Normalize(data, "image/png")

		Expect(err).ToNot(HaveOccurred())
		Expect(result.ContentType).To(Equal("image/jpeg"))
		Expect(result.Ext).To(Equal("jpg"))

		decoded, format, err := image.Decode(bytes.NewReader(result.Data))
		Expect(err).ToNot(HaveOccurred())
		Expect(format).To(Equal("jpeg"))
		Expect(decoded.Bounds().Dx()).To(Equal(400))
		Expect(decoded.Bounds().Dy()).To(Equal(300))
	})

	It("should bound oversized images to the maximum dimension", func() {
		data := encodePNG(3000, 1500)

		result, err := attachment.Normalize(data, "image/png")

		Expect(err).ToNot(HaveOccurred())

		decoded, _, err := image.Decode(bytes.NewReader(result.Data))
		Expect(err).ToNot(HaveOccurred())
		Expect(decoded.Bounds().Dx()).To(Equal(attachment.MaxDimension))
		Expect(decoded.Bounds().Dy()).To(Equal(attachment.MaxDimension / 2))
	})

	It("should leave images within bounds at their original size", func() {
		data := encodePNG(2048, 100)

		result, err := attachment.Normalize(data, "image/png")

		Expect(err).ToNot(HaveOccurred())

		decoded, _, err := image.Decode(bytes.NewReader(result.Data))
		Expect(err).ToNot(HaveOccurred())
		Expect(decoded.Bounds().Dx()).To(Equal(2048))
		Expect(decoded.Bounds().Dy()).To(Equal(100))
	})

	It("should decode WebP uploads and re-encode them as JPEG", func() {
		data, err := base64.StdEncoding.DecodeString(webpPixelB64)
		Expect(err).ToNot(HaveOccurred())

		result, err := attachment.Normalize(data, "image/webp")

		Expect(err).ToNot(HaveOccurred())
		Expect(result.ContentType).To(Equal("image/jpeg"))
		Expect(result.Ext).To(Equal("jpg"))

		decoded, format, err := image.Decode(bytes.NewReader(result.Data))
		Expect(err).ToNot(HaveOccurred())
		Expect(format).To(Equal("jpeg"))
		Expect(decoded.Bounds().Dx()).To(Equal(1))
		Expect(decoded.Bounds().Dy()).To(Equal(1))
	})

	It("should pass GIFs through untouched", func() {
		data := encodeGIF(80, 60)

		result, err := attachment.Normalize(data, "image/gif")

		Expect(err).ToNot(HaveOccurred())
		Expect(result.Data).To(Equal(data))
		Expect(result.ContentType).To(Equal("image/gif"))
		Expect(result.Ext).To(Equal("gif"))
	})

	It("should reject a GIF larger than the maximum dimension", func() {
		data := encodeGIF(attachment.MaxDimension+452, 10)

		result, err := attachment.Normalize(data, "image/gif")

		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("exceed"))
		Expect(result).To(BeNil())
	})

	It("should fail on a truncated GIF", func() {
		result, err := attachment.Normalize([]byte("GIF89a"), "image/gif")

		Expect(err).To(HaveOccurred())
		Expect(result).To(BeNil())
	})

	It("should fail on bytes that are not an image", func() {
		result, err := attachment.Normalize([]byte("definitely not pixels"), "image/png")

		Expect(err).To(HaveOccurred())
		Expect(result).To(BeNil())
	})
})
