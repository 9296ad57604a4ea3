package io

import (
	"io"
	"io/fs"
)

// Rom holds a program image, ready to be copied into memory.
type Rom struct {
	Name string // Origin of the image, for diagnostics.
	Data []byte // Image bytes, loaded at address 0.
}

// Read replaces the image with one parsed from the .ls8 text format.
func (rc *Rom) Read(input io.Reader) (err error) {
	data, err := ParseImage(input)
	if err != nil {
		return
	}

	rc.Data = data
	return
}

// Open reads a named .ls8 image from a file system.
func (rc *Rom) Open(filesys fs.FS, name string) (err error) {
	inf, err := filesys.Open(name)
	if err != nil {
		return
	}
	defer inf.Close()

	err = rc.Read(inf)
	if err != nil {
		return
	}

	rc.Name = name
	return
}
