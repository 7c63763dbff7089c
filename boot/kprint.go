// kprint is the kernel's sole logging sink: the teacher has no
// structured logging package, so every kernel message is a formatted
// write against the UART, matching original_source's direct
// uart::print!/println! call sites.
package boot

import (
	"fmt"

	"rvos/drivers/uart"
	"rvos/level"
)

// writer adapts uart.UART's level-token-threading Write/WriteString to
// io.Writer so fmt.Fprintf has somewhere to target; it owns the
// hart-local Driver token across the call the same way a single-hart,
// single-writer log line needs to.
type writer struct {
	token level.Driver
}

func (w *writer) Write(p []byte) (int, error) {
	var err error
	for _, b := range p {
		w.token, err = uart.Global.Write(b, w.token)
		if err != nil {
			return 0, err
		}
	}
	return len(p), nil
}

// kprintf formats and writes a line to the UART. Called only from boot
// code (during initialization and at epilogue level), never from a
// prologue: it mints its own Driver token, and the UART's own lock
// serializes every byte.
func kprintf(format string, args ...any) {
	w := &writer{token: level.Driver{}}
	fmt.Fprintf(w, format, args...)
}
