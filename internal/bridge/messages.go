package bridge

import (
	"github.com/signalsfoundry/flowview/core"
	"github.com/signalsfoundry/flowview/internal/canvas"
	"github.com/signalsfoundry/flowview/internal/view"
	"github.com/signalsfoundry/flowview/model"
)

// Outbound message types.
const (
	TypeAdd     = "add"
	TypeData    = "data"
	TypeLayout  = "layout"
	TypeOverlay = "overlay"
	TypeLabel   = "label"
	TypeNav     = "nav"
)

// Inbound message types.
const (
	TypeTap         = "tap"
	TypeCxtTap      = "cxttap"
	TypePan         = "pan"
	TypeZoom        = "zoom"
	TypeViewport    = "viewport"
	TypePositions   = "positions"
	TypeOverlaySize = "overlay-size"
	TypeNext        = "next"
	TypePrev        = "prev"
)

// Element is a canvas element in the shape cytoscape.add accepts.
type Element struct {
	Group    string         `json:"group"`
	Data     map[string]any `json:"data"`
	Position *core.Point    `json:"position,omitempty"`
}

// OverlayState is the overlay as the browser draws it.
type OverlayState struct {
	Visible bool    `json:"visible"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
}

// Outbound is sent to browser clients.
type Outbound struct {
	Type string `json:"type"`

	Elements  []Element             `json:"elements,omitempty"`
	ID        string                `json:"id,omitempty"`
	Key       string                `json:"key,omitempty"`
	Value     any                   `json:"value,omitempty"`
	Positions map[string]core.Point `json:"positions,omitempty"`
	Overlay   *OverlayState         `json:"overlay,omitempty"`
	Label     *view.Label           `json:"label,omitempty"`
	Nav       *view.NavState        `json:"nav,omitempty"`
}

// Inbound is a gesture reported by a browser client.
type Inbound struct {
	Type      string                `json:"type"`
	ID        string                `json:"id,omitempty"`
	Pan       *core.Point           `json:"pan,omitempty"`
	Zoom      float64               `json:"zoom,omitempty"`
	Size      *core.Size            `json:"size,omitempty"`
	Positions map[string]core.Point `json:"positions,omitempty"`
}

func toElement(s canvas.ElementState) Element {
	el := Element{Group: "nodes", Data: s.Data}
	if s.Kind == model.KindEdge {
		el.Group = "edges"
		return el
	}
	pos := s.Position
	el.Position = &pos
	return el
}

func toElements(states []canvas.ElementState) []Element {
	out := make([]Element, 0, len(states))
	for _, s := range states {
		out = append(out, toElement(s))
	}
	return out
}

func fromCanvas(ev canvas.Event) (Outbound, bool) {
	switch ev.Type {
	case canvas.EventElementsAdded:
		return Outbound{Type: TypeAdd, Elements: toElements(ev.Elements)}, true
	case canvas.EventAttributeChanged:
		return Outbound{Type: TypeData, ID: ev.ID, Key: ev.Key, Value: ev.Value}, true
	case canvas.EventLayout:
		return Outbound{Type: TypeLayout, Positions: ev.Positions}, true
	default:
		// Viewport changes originate in the browser.
		return Outbound{}, false
	}
}
