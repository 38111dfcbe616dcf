package main

import (
	"fmt"
	"sync/atomic"
	"time"
)

const (
	progressUpdateInterval = 100 * time.Millisecond
	clearLineSequence      = "\r\033[K"
)

// progressPrinter shows a countdown line while a scan is in flight. It is
// single-use: Start at most once, Stop exactly once. Stop is safe to call
// from multiple goroutines.
type progressPrinter struct {
	prefix    string
	duration  time.Duration
	startTime time.Time
	ticker    atomic.Pointer[time.Ticker]
	stopChan  chan struct{}
	done      chan struct{}
	started   atomic.Bool
}

func newProgressPrinter(prefix string, duration time.Duration) *progressPrinter {
	return &progressPrinter{prefix: prefix, duration: duration}
}

// Start begins displaying the countdown in a background goroutine.
func (p *progressPrinter) Start() {
	if !p.started.CompareAndSwap(false, true) {
		panic("progressPrinter.Start called more than once")
	}

	p.stopChan = make(chan struct{})
	p.done = make(chan struct{})
	p.startTime = time.Now()
	ticker := time.NewTicker(progressUpdateInterval)
	p.ticker.Store(ticker)

	fmt.Printf("\r%s...   ", p.prefix)
	go p.loop(ticker)
}

func (p *progressPrinter) loop(ticker *time.Ticker) {
	defer close(p.done)
	for {
		select {
		case <-p.stopChan:
			return
		case <-ticker.C:
			remaining := p.duration - time.Since(p.startTime)
			if remaining < 0 {
				remaining = 0
			}
			// Round to the nearest second so 3.7s reads as 4s.
			fmt.Printf("\r%s (%ds left)   ", p.prefix, int(remaining.Seconds()+0.5))
		}
	}
}

// Stop halts the countdown and clears the line. Only the first call acts.
func (p *progressPrinter) Stop() {
	ticker := p.ticker.Swap(nil)
	if ticker == nil {
		return
	}
	ticker.Stop()
	close(p.stopChan)
	<-p.done
	fmt.Print(clearLineSequence)
}
