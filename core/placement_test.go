package core

import "testing"

func baseInput() PlacementInput {
	return PlacementInput{
		Zoom:    1,
		NodeBox: Size{Width: 4, Height: 4},
		Overlay: Size{Width: 30, Height: 20},
		Canvas:  Size{Width: 200, Height: 100},
		Padding: DefaultPadding,
	}
}

func TestProjectAppliesZoomPanAndHalfBox(t *testing.T) {
	in := baseInput()
	in.Node = Point{X: 10, Y: 5}
	in.Zoom = 2
	in.Pan = Point{X: 3, Y: -1}

	got := Project(in)
	want := Point{X: 10*2 + 3 + 2, Y: 5*2 - 1 + 2}
	if got != want {
		t.Fatalf("Project = %+v, want %+v", got, want)
	}
}

func TestPlaceTopLeftQuadrantStaysRightAndBelow(t *testing.T) {
	in := baseInput()
	in.Node = Point{X: 20, Y: 20}

	got := Place(in)
	if got.X != 22 || got.Y != 22 {
		t.Fatalf("Place = %+v, want {22 22}", got)
	}
}

func TestPlaceFlipsLeftOnInclusiveBoundary(t *testing.T) {
	in := baseInput()
	// screenX = 98 + 2 = 100 = Canvas.Width/2
	in.Node = Point{X: 98, Y: 20}

	got := Place(in)
	if want := 100 - (4 + 30.0); got.X != want {
		t.Fatalf("Place.X = %v, want %v (left flip)", got.X, want)
	}
}

func TestPlaceJustLeftOfBoundaryDoesNotFlip(t *testing.T) {
	in := baseInput()
	in.Node = Point{X: 97.5, Y: 20}

	got := Place(in)
	if got.X != 99.5 {
		t.Fatalf("Place.X = %v, want 99.5", got.X)
	}
}

func TestPlaceClampsToTopPadding(t *testing.T) {
	in := baseInput()
	in.NodeBox = Size{}
	// Node above the visible area: screenY = -20, no vertical flip.
	in.Pan = Point{X: 0, Y: -20}

	got := Place(in)
	if got.Y != 10 {
		t.Fatalf("Place.Y = %v, want 10", got.Y)
	}
}

func TestPlaceClampsBottomEdgeToCanvasMinusPadding(t *testing.T) {
	in := baseInput()
	in.NodeBox = Size{}
	in.Overlay = Size{Width: 30, Height: 20}
	// screenY = 115 flips up by the overlay height: raw y = 95.
	in.Node = Point{X: 10, Y: 115}

	got := Place(in)
	if bottom := got.Y + in.Overlay.Height; bottom != in.Canvas.Height-10 {
		t.Fatalf("overlay bottom = %v (y=%v), want %v", bottom, got.Y, in.Canvas.Height-10)
	}
}

func TestPlaceInsideCanvasIsNotClamped(t *testing.T) {
	in := baseInput()
	// screenY = 60 + 2 = 62, flips up: 62 - 24 = 38.
	in.Node = Point{X: 10, Y: 60}

	got := Place(in)
	if got.Y != 38 {
		t.Fatalf("Place.Y = %v, want 38", got.Y)
	}
}
