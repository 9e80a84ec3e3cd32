package server

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/joblinkhq/linkedin-agent/pkg/dispatcher"
)

const stdioLogPrefix = "server:stdio"

// maxLineBytes bounds a single request line. Profiles with long summaries
// still fit comfortably.
const maxLineBytes = 1 << 20

// handleFunc turns one raw request line into a response.
type handleFunc func(ctx context.Context, line []byte) *dispatcher.Response

// runStdioLoop reads newline-delimited requests from r and writes one
// response line per request to w, in order. It returns nil on EOF and the
// scanner error otherwise. Each request runs under its own timeout.
func runStdioLoop(ctx context.Context, handle handleFunc, timeout time.Duration, r io.Reader, w io.Writer) error {
	// The scanner blocks in Read with no way to interrupt it, so it lives in
	// its own goroutine and the loop below selects on ctx.
	lines := make(chan []byte)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
		for scanner.Scan() {
			line := make([]byte, len(scanner.Bytes()))
			copy(line, scanner.Bytes())
			select {
			case lines <- line:
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	enc := json.NewEncoder(w)
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					if err != nil {
						return fmt.Errorf("%s - stdin read failed: %w", stdioLogPrefix, err)
					}
				default:
				}
				return nil
			}
			if len(line) == 0 {
				continue
			}
			reqCtx, cancel := context.WithTimeout(ctx, timeout)
			resp := handle(reqCtx, line)
			cancel()
			if err := enc.Encode(resp); err != nil {
				return fmt.Errorf("%s - failed to write response: %w", stdioLogPrefix, err)
			}
		}
	}
}
