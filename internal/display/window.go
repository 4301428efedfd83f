// Package display is the local sink: a fyne window that shows the
// corrected stream and turns clicks and typed keys into loop events.
package display

import (
	"context"
	"image"

	"fyne.io/fyne/v2"

	"tablecast/internal/input"
	"tablecast/internal/logger"
	"tablecast/internal/stream"
)

const component = "DisplaySink"

type Window struct {
	win     fyne.Window
	surface *Surface
	events  *input.Queue
	sink    *stream.ChannelSink
	log     logger.Logger
}

func NewWindow(app fyne.App, title string, output image.Point, events *input.Queue, sink *stream.ChannelSink, log logger.Logger) *Window {
	w := &Window{
		win:     app.NewWindow(title),
		surface: NewSurface(output, events),
		events:  events,
		sink:    sink,
		log:     log,
	}
	w.win.SetContent(w.surface)
	w.win.Resize(fyne.NewSize(float32(output.X)/2, float32(output.Y)/2))
	w.win.Canvas().SetOnTypedRune(w.typedRune)
	w.win.Canvas().SetOnTypedKey(w.typedKey)
	w.win.SetCloseIntercept(func() {
		w.log.Info(component, "window close requested", nil)
		w.events.Publish(input.Key("q"))
	})
	return w
}

func (w *Window) Window() fyne.Window {
	return w.win
}

func (w *Window) typedRune(r rune) {
	w.events.Publish(input.Key(string(r)))
}

// typedKey forwards the named keys that produce no rune.
func (w *Window) typedKey(ev *fyne.KeyEvent) {
	switch ev.Name {
	case fyne.KeyEscape:
		w.events.Publish(input.Key("q"))
	}
}

// Run shows buffers until ctx ends or the sink closes. Each buffer is
// released once converted, before the canvas is updated.
func (w *Window) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.sink.Done():
			return
		case b := <-w.sink.Buffers():
			img, err := b.Desc.Image()
			b.Release()
			if err != nil {
				w.log.Warning(component, "buffer conversion failed", map[string]interface{}{
					"seq": b.Seq, "error": err.Error(),
				})
				continue
			}
			fyne.Do(func() { w.surface.SetImage(img) })
		}
	}
}
