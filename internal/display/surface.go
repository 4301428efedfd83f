package display

import (
	"image"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/widget"

	"tablecast/internal/input"
)

// Surface shows the corrected stream stretched to its size and reports
// mouse releases in output pixel coordinates.
type Surface struct {
	widget.BaseWidget

	img    *canvas.Image
	output image.Point
	events *input.Queue
}

var _ desktop.Mouseable = (*Surface)(nil)

func NewSurface(output image.Point, events *input.Queue) *Surface {
	img := canvas.NewImageFromImage(nil)
	img.FillMode = canvas.ImageFillStretch
	img.ScaleMode = canvas.ImageScaleFastest
	img.SetMinSize(fyne.NewSize(float32(output.X)/2, float32(output.Y)/2))

	s := &Surface{img: img, output: output, events: events}
	s.ExtendBaseWidget(s)
	return s
}

func (s *Surface) CreateRenderer() fyne.WidgetRenderer {
	return widget.NewSimpleRenderer(s.img)
}

// SetImage must run on the fyne goroutine.
func (s *Surface) SetImage(img image.Image) {
	s.img.Image = img
	s.img.Refresh()
}

func (s *Surface) MouseDown(*desktop.MouseEvent) {}

func (s *Surface) MouseUp(ev *desktop.MouseEvent) {
	if ev.Button != desktop.MouseButtonPrimary {
		return
	}
	x, y, ok := ToOutput(ev.Position, s.Size(), s.output)
	if !ok {
		return
	}
	s.events.Publish(input.Pointer(x, y))
}

// ToOutput maps a position inside a widget of the given size to output
// pixels. It reports false for an empty widget or a position outside it.
func ToOutput(pos fyne.Position, size fyne.Size, output image.Point) (float64, float64, bool) {
	if size.Width <= 0 || size.Height <= 0 {
		return 0, 0, false
	}
	if pos.X < 0 || pos.Y < 0 || pos.X > size.Width || pos.Y > size.Height {
		return 0, 0, false
	}
	x := float64(pos.X) / float64(size.Width) * float64(output.X)
	y := float64(pos.Y) / float64(size.Height) * float64(output.Y)
	return x, y, true
}
