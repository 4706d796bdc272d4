// Package view defines the rendering surfaces driven by the activity controller.
//
// The controller never looks up UI elements itself. Front-ends construct the
// surfaces and hand them to the controller:
//
//   - ListView: the area showing one card per activity, or a load failure
//   - Selector: a drop-down of activity names with a fixed placeholder first
//   - Form: the inputs of one mutation form, resettable and disableable
//   - MessageArea: an inline success/error message that can be hidden
//
// # In-memory surfaces
//
// Page bundles thread-safe in-memory implementations of every surface. The
// terminal UI and the web UI both render from a Page, and tests assert on it
// directly:
//
//	page := view.NewPage(func() { program.Send(redrawMsg{}) })
//	ctrl, err := controller.New(api, page.Surfaces())
//	...
//	snap := page.Snapshot()
//	fmt.Println(snap.Signup.Message.Text, snap.Signup.Message.Class())
package view
