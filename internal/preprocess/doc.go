// Package preprocess maps decoded pixel arrays into the fixed shape and
// value range the detection model expects.
//
// Normalization is deterministic and stateless: the same DecodedImage
// always yields a bit-identical NormalizedTensor. The transform is
// min/max intensity scaling to [0, 1], Lanczos resampling to the model's
// square input shape, and single-channel CHW layout. Images that already
// have the target shape skip resampling, which makes normalization
// idempotent for grid-aligned values.
package preprocess
