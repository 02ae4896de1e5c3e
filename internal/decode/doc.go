// Package decode turns one raw DICOM byte blob into a validated pixel array
// with instance-level metadata.
//
// Decoding is a two-phase parse: a cheap metadata-only pass reads the
// transfer syntax and identifiers, then the capability registry decides
// whether pixel extraction can proceed. Compressed transfer syntaxes need a
// matching decode capability; when one is missing, the error names the
// codec found in the instance and the remediation instead of a bare
// failure, because pixel codec availability varies by deployment.
//
// The capability registry is process-scoped with defined init-once
// semantics and can be reset for tests.
package decode
