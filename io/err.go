package io

import (
	"errors"

	"github.com/ezrec/ls8/translate"
)

var f = translate.From

var (
	// Channel errors
	ErrChannelInvalid = errors.New(f("channel invalid"))

	// Image errors
	ErrImageTooLarge = errors.New(f("image too large"))
)

// ErrImageSyntax indicates a line of an image that could not be decoded.
type ErrImageSyntax struct {
	LineNo int
	Line   string
}

func (err *ErrImageSyntax) Error() string {
	return f("image line %d '%v' is not a binary byte", err.LineNo, err.Line)
}
