package image

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"

	"github.com/disintegration/imaging"
)

const (
	MaxFileSize  = 2 * 1024 * 1024 // 2MB
	MaxDimension = 4096

	// stored signatures fit inside this box
	SignatureWidth  = 800
	SignatureHeight = 300
)

var ErrInvalidImage = errors.New("invalid signature image")

type Signature struct {
	Data        []byte
	ContentType string
	SourceType  string
	Width       int
	Height      int
}

// ProcessSignature accepts a jpeg or png upload and returns a png scaled down to
// the signature box and flattened onto white, so transparent pads render the same
// everywhere.
func ProcessSignature(file io.Reader, size int64) (*Signature, error) {
	if size > MaxFileSize {
		return nil, fmt.Errorf("%w: file size %d exceeds maximum %d bytes", ErrInvalidImage, size, MaxFileSize)
	}

	data, err := io.ReadAll(io.LimitReader(file, MaxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty file", ErrInvalidImage)
	}
	if len(data) > MaxFileSize {
		return nil, fmt.Errorf("%w: file size exceeds maximum %d bytes", ErrInvalidImage, MaxFileSize)
	}

	contentType := http.DetectContentType(data)
	if contentType != "image/jpeg" && contentType != "image/png" {
		return nil, fmt.Errorf("%w: file type %q, only jpeg and png are allowed", ErrInvalidImage, contentType)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrInvalidImage, err)
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w > MaxDimension || h > MaxDimension {
		return nil, fmt.Errorf("%w: dimensions %dx%d exceed maximum %d", ErrInvalidImage, w, h, MaxDimension)
	}

	var scaled image.Image = img
	if w > SignatureWidth || h > SignatureHeight {
		scaled = imaging.Fit(img, SignatureWidth, SignatureHeight, imaging.Lanczos)
	}

	sb := scaled.Bounds()
	canvas := imaging.New(sb.Dx(), sb.Dy(), color.White)
	canvas = imaging.Overlay(canvas, scaled, image.Pt(0, 0), 1.0)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, canvas, imaging.PNG); err != nil {
		return nil, fmt.Errorf("failed to encode signature: %w", err)
	}

	return &Signature{
		Data:        buf.Bytes(),
		ContentType: "image/png",
		SourceType:  contentType,
		Width:       sb.Dx(),
		Height:      sb.Dy(),
	}, nil
}
