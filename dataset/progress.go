package dataset

import (
	"fmt"
	"io"
	"time"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

// progress wraps an optional mpb bar; the zero value reports nothing
type progress struct {
	p   *mpb.Progress
	bar *mpb.Bar
}

func newProgress(w io.Writer, name string, total int) *progress {
	if w == nil {
		return &progress{}
	}

	p := mpb.New(mpb.WithOutput(w), mpb.WithWidth(64))
	bar := p.AddBar(int64(total),
		mpb.PrependDecorators(
			decor.Name(fmt.Sprintf("Reading %s: ", name)),
			decor.CountersNoUnit("%d / %d"),
		),
		mpb.AppendDecorators(
			decor.Percentage(),
			decor.EwmaETA(decor.ET_STYLE_GO, 60),
		),
	)
	return &progress{p: p, bar: bar}
}

func (pr *progress) increment(elapsed time.Duration) {
	if pr.bar != nil {
		pr.bar.EwmaIncrement(elapsed)
	}
}

// finish waits for rendering to stop; an unfinished bar is aborted first
func (pr *progress) finish() {
	if pr.p == nil {
		return
	}
	if !pr.bar.Completed() {
		pr.bar.Abort(false)
	}
	pr.p.Wait()
}
