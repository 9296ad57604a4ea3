package io

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

const (
	IMAGE_LIMIT = 256 // Largest image that fits in memory.
	IMAGE_WIDTH = 8   // Binary digits per image line.
)

// ParseImage decodes the .ls8 text format into image bytes.
//
// Each line is blank, a '#' comment, or a byte of binary digits optionally
// followed by a comment. Lines that do not start with '0' or '1' are
// skipped, so any text not led by a digit is ignored.
func ParseImage(input io.Reader) (image []byte, err error) {
	scanner := bufio.NewScanner(input)

	var lineno int
	for scanner.Scan() {
		text := scanner.Text()
		lineno += 1

		field, _, _ := strings.Cut(text, "#")
		if len(field) == 0 {
			continue
		}
		if field[0] != '0' && field[0] != '1' {
			continue
		}

		if len(field) > IMAGE_WIDTH {
			field = field[:IMAGE_WIDTH]
		}
		value, perr := strconv.ParseUint(strings.TrimSpace(field), 2, 8)
		if perr != nil {
			err = &ErrImageSyntax{LineNo: lineno, Line: text}
			return
		}

		if len(image) == IMAGE_LIMIT {
			err = ErrImageTooLarge
			return
		}
		image = append(image, uint8(value))
	}

	err = scanner.Err()
	return
}

// WriteImage encodes image bytes in the .ls8 text format, one byte per line.
// Comments, keyed by address, are appended to their line.
func WriteImage(output io.Writer, image []byte, comments map[int]string) (err error) {
	if len(image) > IMAGE_LIMIT {
		err = ErrImageTooLarge
		return
	}

	out := bufio.NewWriter(output)
	for addr, value := range image {
		comment, ok := comments[addr]
		if ok {
			_, err = fmt.Fprintf(out, "%08b # %v\n", value, comment)
		} else {
			_, err = fmt.Fprintf(out, "%08b\n", value)
		}
		if err != nil {
			return
		}
	}

	err = out.Flush()
	return
}
