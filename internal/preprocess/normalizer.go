package preprocess

import (
	"fmt"
	"image"
	"math"

	"github.com/nfnt/resize"

	"github.com/neuraxis/ctreport/internal/config"
	"github.com/neuraxis/ctreport/internal/model"
)

// NormalizationError describes why one image could not be normalized. It
// is per-instance and recoverable: the pipeline records it and excludes
// the image rather than aborting the run.
type NormalizationError struct {
	// Source is the image identifier for failure reporting.
	Source string

	// Reason describes the degenerate input.
	Reason string
}

// Error implements the error interface.
func (e *NormalizationError) Error() string {
	return fmt.Sprintf("cannot normalize %q: %s", e.Source, e.Reason)
}

// Normalizer converts DecodedImages into NormalizedTensors.
//
// Design decision: Intensity scaling happens before resampling. Resampling
// operates on a 16-bit grayscale grid, so scaling first means the full
// quantization range is available regardless of the original value range
// (CT values span thousands of Hounsfield units).
type Normalizer struct {
	// size is the square edge length of the model input shape.
	size int
}

// New creates a Normalizer producing size x size tensors. A non-positive
// size falls back to the default model input shape.
func New(size int) *Normalizer {
	if size <= 0 {
		size = config.DefaultInputSize
	}
	return &Normalizer{size: size}
}

// Normalize maps one decoded image into the model input shape and range.
// Returns a *NormalizationError when the pixel array has degenerate shape.
func (n *Normalizer) Normalize(img *model.DecodedImage) (*model.NormalizedTensor, error) {
	if img.Rows <= 0 || img.Columns <= 0 {
		return nil, &NormalizationError{
			Source: img.Source,
			Reason: fmt.Sprintf("zero-area pixel array %dx%d", img.Rows, img.Columns),
		}
	}
	if len(img.Pixels) != img.Rows*img.Columns {
		return nil, &NormalizationError{
			Source: img.Source,
			Reason: fmt.Sprintf("pixel count %d does not match shape %dx%d", len(img.Pixels), img.Rows, img.Columns),
		}
	}

	scaled := scaleIntensity(img.Pixels, img.MinValue, img.MaxValue)

	data := scaled
	if img.Rows != n.size || img.Columns != n.size {
		data = resample(scaled, img.Columns, img.Rows, n.size)
	}

	return &model.NormalizedTensor{
		Source: img.Source,
		Data:   data,
		Height: n.size,
		Width:  n.size,
	}, nil
}

// Size returns the square edge length of the output shape.
func (n *Normalizer) Size() int {
	return n.size
}

// scaleIntensity maps pixel values to [0, 1] by min/max scaling. A
// constant image maps to all zeros, matching the behavior downstream
// models were trained against.
func scaleIntensity(pixels []float32, minVal, maxVal float32) []float32 {
	out := make([]float32, len(pixels))

	span := maxVal - minVal
	if span == 0 {
		return out
	}

	for i, v := range pixels {
		out[i] = (v - minVal) / span
	}
	return out
}

// resample maps a [0,1] grid onto a size x size grid with Lanczos
// filtering over a 16-bit grayscale intermediate. The 1/65535 quantization
// step is far below the precision the detection model is sensitive to.
func resample(data []float32, width, height, size int) []float32 {
	gray := image.NewGray16(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			v := data[y*width+x]
			q := uint16(math.Round(float64(v) * 65535))
			idx := y*gray.Stride + x*2
			gray.Pix[idx] = uint8(q >> 8)
			gray.Pix[idx+1] = uint8(q)
		}
	}

	resized := resize.Resize(uint(size), uint(size), gray, resize.Lanczos3)

	out := make([]float32, size*size)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			r, _, _, _ := resized.At(x, y).RGBA()
			out[y*size+x] = float32(r) / 65535.0
		}
	}
	return out
}
