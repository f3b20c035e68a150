// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"io"
)

// Stream serves the "-" path: reads come from stdin, writes go to stdout.
// The endpoints are injectable so tests can capture them.
type Stream struct {
	in  io.Reader
	out io.Writer
}

// NewStream builds a stream handler over the given endpoints.
func NewStream(in io.Reader, out io.Writer) *Stream {
	return &Stream{in: in, out: out}
}

func (s *Stream) Read(_ context.Context, _ string) ([]byte, error) {
	return io.ReadAll(s.in)
}

func (s *Stream) Write(_ context.Context, _ string, data []byte) error {
	_, err := s.out.Write(data)
	return err
}

func (s *Stream) Pretty(path string) string { return path }
