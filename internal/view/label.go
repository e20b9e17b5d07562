package view

import (
	"github.com/signalsfoundry/flowview/core"
	"github.com/signalsfoundry/flowview/model"
)

// Label is the content of the overlay for one node.
type Label struct {
	NodeID       string     `json:"nodeId"`
	Node         []core.Row `json:"node"`
	Flows        []core.Row `json:"flows"`
	Generation   []core.Row `json:"generation,omitempty"`
	PlantBearing bool       `json:"plantBearing"`
}

// NewLabel renders a decomposition into label rows.
func NewLabel(d core.Decomposition) Label {
	return Label{
		NodeID:       d.NodeID,
		Node:         d.NodeRows(),
		Flows:        d.FlowRows(),
		Generation:   d.GenerationRows(),
		PlantBearing: d.PlantBearing,
	}
}

// NavState is what navigation controls display.
type NavState struct {
	Index int         `json:"index"`
	Busy  bool        `json:"busy"`
	Range model.Range `json:"range"`
}

// Presenter displays label content and navigation state. Overlay placement
// goes through overlay.Surface instead.
type Presenter interface {
	ShowLabel(l Label)
	NavigationChanged(s NavState)
}

type noopPresenter struct{}

func (noopPresenter) ShowLabel(Label)            {}
func (noopPresenter) NavigationChanged(NavState) {}
