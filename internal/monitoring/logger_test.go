package monitoring

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func captureLogs(t *testing.T) *[]string {
	t.Helper()
	original := Logf
	t.Cleanup(func() { Logf = original })

	var mu sync.Mutex
	lines := []string{}
	SetLogger(func(format string, v ...interface{}) {
		mu.Lock()
		defer mu.Unlock()
		lines = append(lines, fmt.Sprintf(format, v...))
	})
	return &lines
}

func TestSetLogger(t *testing.T) {
	lines := captureLogs(t)
	Logf("reset object %d", 3)
	assert.Equal(t, []string{"reset object 3"}, *lines)

	SetLogger(nil)
	Logf("dropped")
	assert.Len(t, *lines, 1, "nil logger must mute output")
}

func TestLogfDefault(t *testing.T) {
	if Logf == nil {
		t.Fatal("Logf should not be nil by default")
	}
}

func TestProgress(t *testing.T) {
	lines := captureLogs(t)
	p := NewProgress("video 0001 ob_id 1", 10, 4)
	for i := 0; i < 10; i++ {
		p.Step()
	}
	assert.Equal(t, 10, p.Done())
	assert.Equal(t, []string{
		"video 0001 ob_id 1: 4/10 (40%)",
		"video 0001 ob_id 1: 8/10 (80%)",
	}, *lines)
}

func TestProgressUnknownTotalAndDisabled(t *testing.T) {
	lines := captureLogs(t)

	p := NewProgress("frames", 0, 2)
	p.Step()
	p.Step()
	assert.Equal(t, []string{"frames: 2"}, *lines)

	off := NewProgress("off", 5, 0)
	for i := 0; i < 5; i++ {
		off.Step()
	}
	assert.Len(t, *lines, 1)
	assert.Equal(t, 5, off.Done())
}

func TestProgressConcurrent(t *testing.T) {
	captureLogs(t)
	p := NewProgress("c", 100, 10)
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.Step()
		}()
	}
	wg.Wait()
	assert.Equal(t, 100, p.Done())
}
