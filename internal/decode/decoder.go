package decode

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg" // JPEG baseline decode capability
	"log/slog"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"

	"github.com/neuraxis/ctreport/internal/model"
)

// Decoder turns RawInstances into DecodedImages.
//
// Design decision: Parsing happens in two phases. The first pass skips
// pixel data entirely and only reads the transfer syntax and identifiers;
// it is cheap and lets us reject unsupported codecs with a precise error
// before paying for pixel extraction. The second pass extracts pixels only
// for instances the capability registry can actually handle.
type Decoder struct {
	// logger for structured logging.
	logger *slog.Logger
}

// Option configures a Decoder.
type Option func(*Decoder)

// WithLogger sets a custom logger for the decoder.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Decoder) {
		d.logger = logger
	}
}

// New creates a Decoder with the given options.
func New(opts ...Option) *Decoder {
	d := &Decoder{logger: slog.Default()}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Decode parses one instance and returns its validated pixel array and
// metadata, or a *DecodeError tagged with the detected transfer syntax.
// Multi-frame instances contribute their first frame; a brain CT series
// carries one slice per instance.
func (d *Decoder) Decode(inst model.RawInstance) (*model.DecodedImage, error) {
	// Phase 1: metadata only.
	meta, err := dicom.Parse(bytes.NewReader(inst.Data), int64(len(inst.Data)), nil, dicom.SkipPixelData())
	if err != nil {
		return nil, &DecodeError{Source: inst.Source, Err: err}
	}

	syntax := stringValue(&meta, tag.TransferSyntaxUID)
	if syntax != "" && !HasCapability(syntax) {
		d.logger.Debug("unsupported transfer syntax",
			"source", inst.Source,
			"transfer_syntax", syntax,
			"codec", SyntaxName(syntax),
		)
		return nil, &DecodeError{
			Source:            inst.Source,
			TransferSyntax:    syntax,
			MissingCapability: true,
		}
	}

	// Phase 2: full parse with pixel data.
	ds, err := dicom.Parse(bytes.NewReader(inst.Data), int64(len(inst.Data)), nil)
	if err != nil {
		return nil, &DecodeError{Source: inst.Source, TransferSyntax: syntax, Err: err}
	}

	pixels, rows, cols, err := extractPixels(&ds)
	if err != nil {
		return nil, &DecodeError{Source: inst.Source, TransferSyntax: syntax, Err: err}
	}

	minVal, maxVal := pixels[0], pixels[0]
	for _, v := range pixels {
		if v < minVal {
			minVal = v
		}
		if v > maxVal {
			maxVal = v
		}
	}

	img := &model.DecodedImage{
		Source:   inst.Source,
		Pixels:   pixels,
		Rows:     rows,
		Columns:  cols,
		MinValue: minVal,
		MaxValue: maxVal,
		Metadata: extractMetadata(&ds, syntax, rows, cols),
	}

	d.logger.Debug("instance decoded",
		"source", inst.Source,
		"rows", rows,
		"columns", cols,
		"transfer_syntax", syntax,
	)

	return img, nil
}

// extractPixels pulls the first frame's pixel values out of the dataset
// as float32.
func extractPixels(ds *dicom.Dataset) ([]float32, int, int, error) {
	el, err := ds.FindElementByTag(tag.PixelData)
	if err != nil {
		return nil, 0, 0, errors.New("instance carries no pixel data, possibly a metadata-only file")
	}

	info, ok := el.Value.GetValue().(dicom.PixelDataInfo)
	if !ok {
		return nil, 0, 0, errors.New("pixel data element has unexpected value type")
	}
	if len(info.Frames) == 0 {
		return nil, 0, 0, errors.New("pixel data contains no frames")
	}

	fr := info.Frames[0]
	if fr.Encapsulated {
		return decodeEncapsulated(fr.EncapsulatedData.Data)
	}

	native := fr.NativeData
	if native.Rows <= 0 || native.Cols <= 0 {
		return nil, 0, 0, fmt.Errorf("degenerate frame shape %dx%d", native.Rows, native.Cols)
	}

	pixels := make([]float32, 0, native.Rows*native.Cols)
	for _, sample := range native.Data {
		// Samples beyond the first channel are ignored; CT is grayscale.
		pixels = append(pixels, float32(sample[0]))
	}
	if len(pixels) == 0 {
		return nil, 0, 0, errors.New("empty native pixel data")
	}

	return pixels, native.Rows, native.Cols, nil
}

// decodeEncapsulated decodes a compressed frame through the registered
// image decoders (JPEG baseline) and flattens it to grayscale.
func decodeEncapsulated(data []byte) ([]float32, int, int, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, 0, 0, fmt.Errorf("encapsulated frame decode: %w", err)
	}

	bounds := img.Bounds()
	rows, cols := bounds.Dy(), bounds.Dx()
	if rows <= 0 || cols <= 0 {
		return nil, 0, 0, fmt.Errorf("degenerate frame shape %dx%d", rows, cols)
	}

	pixels := make([]float32, 0, rows*cols)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			// Luma weights for RGB to grayscale; 16-bit channel range.
			gray := 0.299*float32(r) + 0.587*float32(g) + 0.114*float32(b)
			pixels = append(pixels, gray/256.0)
		}
	}

	return pixels, rows, cols, nil
}

// extractMetadata reads the instance-level attributes we keep. Identifiers
// are opaque strings taken verbatim; missing tags yield empty values.
func extractMetadata(ds *dicom.Dataset, syntax string, rows, cols int) model.InstanceMetadata {
	return model.InstanceMetadata{
		StudyUID:       stringValue(ds, tag.StudyInstanceUID),
		SeriesUID:      stringValue(ds, tag.SeriesInstanceUID),
		InstanceUID:    stringValue(ds, tag.SOPInstanceUID),
		PatientID:      stringValue(ds, tag.PatientID),
		PatientName:    stringValue(ds, tag.PatientName),
		StudyDate:      stringValue(ds, tag.StudyDate),
		Modality:       stringValue(ds, tag.Modality),
		TransferSyntax: syntax,
		Rows:           rows,
		Columns:        cols,
	}
}

// stringValue reads the first string of a tag's value, or empty when the
// tag is absent or not string-valued.
func stringValue(ds *dicom.Dataset, t tag.Tag) string {
	el, err := ds.FindElementByTag(t)
	if err != nil || el == nil {
		return ""
	}
	if vals, ok := el.Value.GetValue().([]string); ok && len(vals) > 0 {
		return vals[0]
	}
	return ""
}
