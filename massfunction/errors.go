package massfunction

import "errors"

// ErrMalformedRange is returned before any binning when the bounds, bin
// count or volume cannot describe a histogram: non-positive or inverted
// bounds, fewer than one bin, or a non-positive volume.
var ErrMalformedRange = errors.New("malformed binning range")

// ErrBadCorrection is returned for box-size correction tables that cannot
// be interpolated.
var ErrBadCorrection = errors.New("invalid box-size correction")
