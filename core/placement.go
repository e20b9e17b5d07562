package core

// DefaultPadding keeps a clamped overlay this far from the canvas edge.
const DefaultPadding = 10.0

// Point is a position in either model or screen coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Size is a width/height pair in screen units.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// PlacementInput gathers everything needed to anchor an overlay to a node.
type PlacementInput struct {
	Node    Point   // node position in model coordinates
	Pan     Point   // viewport pan offset
	Zoom    float64 // viewport zoom factor
	NodeBox Size    // node's rendered bounding box
	Overlay Size    // measured overlay size
	Canvas  Size    // visible canvas size
	Padding float64
}

// Project maps the node's model position to the screen point the overlay is
// anchored at.
func Project(in PlacementInput) Point {
	return Point{
		X: in.Node.X*in.Zoom + in.Pan.X + in.NodeBox.Width/2,
		Y: in.Node.Y*in.Zoom + in.Pan.Y + in.NodeBox.Height/2,
	}
}

// Place computes the overlay's top-left corner.
//
// Nodes in the right (bottom) half of the canvas get the overlay on their
// left (top); the half-way line itself counts as the right (bottom) half.
// Only the vertical axis is clamped.
func Place(in PlacementInput) Point {
	anchor := Project(in)

	sideH, sideV := 0.0, 0.0
	if anchor.X >= in.Canvas.Width/2 {
		sideH = -1
	}
	if anchor.Y >= in.Canvas.Height/2 {
		sideV = -1
	}

	p := Point{
		X: anchor.X + sideH*(in.NodeBox.Width+in.Overlay.Width),
		Y: anchor.Y + sideV*(in.NodeBox.Height+in.Overlay.Height),
	}

	if p.Y <= 0 {
		p.Y = in.Padding
	} else if p.Y+in.Overlay.Height >= in.Canvas.Height {
		p.Y = in.Canvas.Height - in.Padding - in.Overlay.Height
	}
	return p
}
