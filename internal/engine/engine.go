// Package engine defines the boundary to the external spreadsheet engine that
// owns the workbook: it recalculates it, saves it and copies a range to the
// clipboard as a picture.
package engine

import (
	"context"
)

// Launcher starts a fresh engine instance.
type Launcher interface {
	Launch(ctx context.Context) (Engine, error)
}

// Engine is one running spreadsheet application instance.
type Engine interface {
	// OpenWorkbook opens the workbook at path.
	OpenWorkbook(ctx context.Context, path string) (Workbook, error)
	// Quit releases the instance. Open workbooks are discarded.
	Quit(ctx context.Context) error
}

// Workbook is a workbook opened by an Engine.
type Workbook interface {
	// RunMacro invokes a named routine stored in the workbook.
	RunMacro(ctx context.Context, name string) error
	// Save persists the workbook in place.
	Save(ctx context.Context) error
	// Close closes the workbook, saving it first when save is true.
	Close(ctx context.Context, save bool) error
	// CopyRangeAsImage copies rng on sheet to the clipboard as a bitmap.
	CopyRangeAsImage(ctx context.Context, sheet, rng string) error
}

// Clipboard gives access to the shared clipboard the engine copies into.
type Clipboard interface {
	// SaveImage writes the clipboard bitmap to path as PNG.
	SaveImage(ctx context.Context, path string) error
}

// RecalcWatcher is implemented by workbooks whose engine can report that
// an asynchronous recalculation has finished.
type RecalcWatcher interface {
	RecalcDone(ctx context.Context) (bool, error)
}
