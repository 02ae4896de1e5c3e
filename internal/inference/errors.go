package inference

import "errors"

// ErrNoValidImages is returned when inference is requested but zero tensors
// survived the decode and normalization stages. The run cannot produce a
// diagnosis or a report and must fail as a whole.
var ErrNoValidImages = errors.New("no valid images remained after decoding and normalization")

// ErrModelClosed is returned when a prediction is requested after the model
// session has been released.
var ErrModelClosed = errors.New("inference model is closed")
