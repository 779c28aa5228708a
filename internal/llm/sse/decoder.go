//-------------------------------------------------------------------------
//
// pgEdge RAG Server
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package sse decodes the data lines of a server-sent event stream.
package sse

import (
	"bufio"
	"io"
	"strings"
)

// DoneMarker is the payload OpenAI compatible servers send after the
// final chunk.
const DoneMarker = "[DONE]"

const maxLineSize = 1024 * 1024

// Decoder yields the payload of every "data:" line in a stream. Lines
// with any other field name, comments and blank separators are ignored.
type Decoder struct {
	scanner *bufio.Scanner
	done    bool
}

// NewDecoder returns a decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &Decoder{scanner: scanner}
}

// Next returns the next data payload. It returns io.EOF once the stream
// is exhausted or the done marker has been read, and keeps returning
// io.EOF after that without reading further.
func (d *Decoder) Next() ([]byte, error) {
	if d.done {
		return nil, io.EOF
	}

	for d.scanner.Scan() {
		payload, ok := dataPayload(d.scanner.Text())
		if !ok || payload == "" {
			continue
		}
		if payload == DoneMarker {
			d.done = true
			return nil, io.EOF
		}
		return []byte(payload), nil
	}

	d.done = true
	if err := d.scanner.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}

// dataPayload extracts the value of a data line. A single space after the
// colon is optional.
func dataPayload(line string) (string, bool) {
	line = strings.TrimRight(line, "\r")
	if !strings.HasPrefix(line, "data:") {
		return "", false
	}
	payload := strings.TrimPrefix(line, "data:")
	return strings.TrimSpace(payload), true
}
