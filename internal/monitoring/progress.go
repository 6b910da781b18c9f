package monitoring

import "sync"

// Progress logs "<label>: n/total (p%)" through Logf every Every steps.
type Progress struct {
	Label string
	Total int
	Every int

	mu   sync.Mutex
	done int
}

// NewProgress returns a reporter; every <= 0 disables logging.
func NewProgress(label string, total, every int) *Progress {
	return &Progress{Label: label, Total: total, Every: every}
}

// Step records one finished unit of work.
func (p *Progress) Step() {
	p.mu.Lock()
	p.done++
	n := p.done
	p.mu.Unlock()

	if p.Every <= 0 || n%p.Every != 0 {
		return
	}
	if p.Total > 0 {
		Logf("%s: %d/%d (%.0f%%)", p.Label, n, p.Total, 100*float64(n)/float64(p.Total))
		return
	}
	Logf("%s: %d", p.Label, n)
}

// Done is the number of steps recorded.
func (p *Progress) Done() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done
}
