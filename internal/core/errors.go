// Package core defines sentinel errors.
package core

import "errors"

// Sentinel errors. Callers wrap them with layer context and match with errors.Is.
var (
	// Capture errors
	ErrDeviceUnavailable = errors.New("netscope: capture device unavailable")
	ErrSourceClosed      = errors.New("netscope: frame source closed")

	// Frame decoding errors
	ErrMalformedHeader      = errors.New("netscope: malformed header")
	ErrUnsupportedLinkType  = errors.New("netscope: unsupported link type")
	ErrUnsupportedEtherType = errors.New("netscope: unsupported ethertype")

	// Distribution errors
	ErrSubscriberClosed  = errors.New("netscope: subscriber closed")
	ErrDistributorClosed = errors.New("netscope: distributor closed")

	// Configuration errors
	ErrConfigInvalid = errors.New("netscope: invalid configuration")
)
