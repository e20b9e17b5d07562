package view

import (
	"github.com/signalsfoundry/flowview/internal/navigation"
	"github.com/signalsfoundry/flowview/model"
)

// Event is processed by the view loop one at a time.
type Event interface {
	isViewEvent()
}

// SnapshotArrived carries a period delivered by the data source. A nil
// Snapshot means the period was out of range or failed; Err says which.
type SnapshotArrived struct {
	Period   int
	Cursor   int
	Snapshot *model.Snapshot
	Err      error
}

// BusyChanged mirrors the data source's busy flag.
type BusyChanged struct {
	Busy bool
}

// OpenLabel is a context-tap on a node.
type OpenLabel struct {
	NodeID string
}

// PanStarted is the start of a user pan gesture.
type PanStarted struct{}

// ViewportChanged follows a zoom or resize.
type ViewportChanged struct{}

// Tap is a plain tap on a node.
type Tap struct {
	NodeID string
}

// Navigate steps one period.
type Navigate struct {
	Direction navigation.Direction
}

func (SnapshotArrived) isViewEvent() {}
func (BusyChanged) isViewEvent()     {}
func (OpenLabel) isViewEvent()       {}
func (PanStarted) isViewEvent()      {}
func (ViewportChanged) isViewEvent() {}
func (Tap) isViewEvent()             {}
func (Navigate) isViewEvent()        {}
