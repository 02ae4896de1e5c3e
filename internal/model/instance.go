package model

// RawInstance is one DICOM file exactly as it was received, either from an
// upload or from a remote album fetch. It exists only between collection and
// decoding; the pixel bytes are released once the instance has been decoded
// or rejected.
type RawInstance struct {
	// Source identifies where the bytes came from: the declared upload
	// filename, the path inside an archive, or the remote instance UID.
	// It is used for failure reporting only.
	Source string

	// Data is the complete file content.
	Data []byte
}

// InstanceMetadata holds the instance-level DICOM attributes we extract
// during decoding. Identifiers are opaque strings taken verbatim from the
// file; they are never interpreted as clinical truth.
type InstanceMetadata struct {
	StudyUID       string `json:"study_uid,omitempty"`
	SeriesUID      string `json:"series_uid,omitempty"`
	InstanceUID    string `json:"instance_uid,omitempty"`
	PatientID      string `json:"patient_id,omitempty"`
	PatientName    string `json:"patient_name,omitempty"`
	StudyDate      string `json:"study_date,omitempty"`
	Modality       string `json:"modality,omitempty"`
	TransferSyntax string `json:"transfer_syntax,omitempty"`
	Rows           int    `json:"rows"`
	Columns        int    `json:"columns"`
}

// DecodedImage is a validated single-frame pixel array plus the metadata of
// the instance it came from. The pixel slice is row-major with Rows*Columns
// elements.
type DecodedImage struct {
	// Source carries over from the RawInstance for failure reporting.
	Source string

	// Pixels is the raw pixel values converted to float32. Non-empty by
	// construction; the decoder rejects instances without pixel data.
	Pixels []float32

	// Rows and Columns describe the pixel array shape.
	Rows    int
	Columns int

	// MinValue and MaxValue are the observed pixel value range.
	MinValue float32
	MaxValue float32

	// Metadata holds the extracted instance attributes.
	Metadata InstanceMetadata
}

// NormalizedTensor is a DecodedImage mapped into the fixed shape and value
// range the detection model expects. It is immutable once produced: the
// scheduler reads Data but never modifies it.
type NormalizedTensor struct {
	// Source carries over from the DecodedImage for failure reporting and
	// for re-associating inference outputs with their inputs.
	Source string

	// Data is the single-channel CHW tensor, Height*Width float32 values
	// in [0, 1].
	Data []float32

	// Height and Width are the spatial dimensions after resizing.
	Height int
	Width  int
}
