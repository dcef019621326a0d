package logger

import (
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"
)

var verbose atomic.Bool

// SetVerbose toggles request-level logging.
func SetVerbose(v bool) {
	verbose.Store(v)
}

// Verbosef logs only when verbose output is enabled.
func Verbosef(format string, args ...any) {
	if verbose.Load() {
		log.Printf(format, args...)
	}
}

// Deduper collapses identical consecutive messages into one line with a
// repeat count, flushed after flushDelay of silence or when a new message
// arrives.
type Deduper struct {
	mu         sync.Mutex
	lastMsg    string
	count      int
	flushDelay time.Duration
	timer      *time.Timer
	print      func(string)
}

func NewDeduper(flushDelay time.Duration, print func(string)) *Deduper {
	if print == nil {
		print = func(msg string) { log.Print(msg) }
	}
	return &Deduper{flushDelay: flushDelay, print: print}
}

var dedup = NewDeduper(2*time.Second, nil)

// Dedup logs through the package level Deduper.
func Dedup(format string, args ...any) {
	dedup.Printf(format, args...)
}

// Flush writes out any pending message of the package level Deduper.
func Flush() {
	dedup.Flush()
}

func (d *Deduper) Printf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)

	d.mu.Lock()
	defer d.mu.Unlock()

	if msg != d.lastMsg {
		d.flush()
		d.lastMsg = msg
	}
	d.count++

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.flushDelay, d.Flush)
}

func (d *Deduper) Flush() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.flush()
}

func (d *Deduper) flush() {
	if d.count == 0 {
		return
	}
	if d.count == 1 {
		d.print(d.lastMsg)
	} else {
		d.print(fmt.Sprintf("%s (%d)", d.lastMsg, d.count))
	}
	d.count = 0
	d.lastMsg = ""
}
