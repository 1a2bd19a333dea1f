package scanning

import (
	"bytes"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func sampleImage() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})
	return img
}

func encodeWith(encode func(*bytes.Buffer, image.Image) error) []byte {
	var buf bytes.Buffer
	Expect(encode(&buf, sampleImage())).To(Succeed())
	return buf.Bytes()
}

var _ = Describe("PrepareImage", func() {
	var (
		input     []byte
		output    []byte
		mimeType  string
		converted bool
		err       error
	)

	JustBeforeEach(func() {
		output, mimeType, converted, err = PrepareImage(input)
	})

	When("the image is a JPEG", func() {
		BeforeEach(func() {
			input = encodeWith(func(b *bytes.Buffer, img image.Image) error { return jpeg.Encode(b, img, nil) })
		})

		It("returns it untouched", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(converted).To(BeFalse())
			Expect(mimeType).To(Equal("image/jpeg"))
			Expect(output).To(Equal(input))
		})
	})

	When("the image is a PNG", func() {
		BeforeEach(func() {
			input = encodeWith(func(b *bytes.Buffer, img image.Image) error { return png.Encode(b, img) })
		})

		It("returns it untouched", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(converted).To(BeFalse())
			Expect(mimeType).To(Equal("image/png"))
		})
	})

	When("the image is a GIF", func() {
		BeforeEach(func() {
			input = encodeWith(func(b *bytes.Buffer, img image.Image) error { return gif.Encode(b, img, nil) })
		})

		It("converts it to PNG", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(converted).To(BeTrue())
			Expect(mimeType).To(Equal("image/png"))
			_, format, decodeErr := image.Decode(bytes.NewReader(output))
			Expect(decodeErr).NotTo(HaveOccurred())
			Expect(format).To(Equal("png"))
		})
	})

	When("the image is a TIFF", func() {
		BeforeEach(func() {
			input = append([]byte("II*\x00"), make([]byte, 32)...)
		})

		It("returns it untouched", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(output).To(Equal(input))
			Expect(mimeType).To(Equal("application/octet-stream"))
			Expect(converted).To(BeFalse())
		})
	})

	When("the payload is not an image", func() {
		BeforeEach(func() {
			input = []byte("definitely not an image")
		})

		It("returns it untouched with the sniffed type", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(output).To(Equal(input))
			Expect(mimeType).To(Equal("text/plain"))
			Expect(converted).To(BeFalse())
		})
	})

	When("a GIF is corrupt", func() {
		BeforeEach(func() {
			input = []byte("GIF89a this is not really a gif")
		})

		It("returns the error", func() {
			Expect(err).To(MatchError(ContainSubstring("converting image to PNG")))
		})
	})

	When("the payload is empty", func() {
		BeforeEach(func() {
			input = nil
		})

		It("returns the error", func() {
			Expect(err).To(MatchError("empty image"))
		})
	})
})

var _ = Describe("DetectContentType", func() {
	It("recognizes HEIC brands", func() {
		data := append([]byte{0, 0, 0, 24}, []byte("ftypheic0000")...)
		Expect(DetectContentType(data)).To(Equal("image/heic"))
	})

	It("strips MIME parameters", func() {
		Expect(DetectContentType([]byte("plain text"))).To(Equal("text/plain"))
	})
})
