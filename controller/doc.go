// Package controller implements ActivityClient, which keeps the view surfaces
// in step with the activities API.
//
// # Lifecycle
//
// A client is created with the API and the surfaces it renders into, loads
// the catalog once and then serves form submissions until closed:
//
//	page := view.NewPage(nil)
//	ctrl, err := controller.New(api, page.Surfaces(),
//	    controller.WithMessageTTL(5*time.Second),
//	    controller.WithLoggerFactory(loggerFor),
//	)
//	if err != nil {
//	    return err
//	}
//	defer ctrl.Close()
//
//	_ = ctrl.LoadActivities(ctx)
//	err = ctrl.SubmitSignup(ctx, "Chess Club", "michael@mergington.edu")
//
// # Surfaces
//
// All writes to the surfaces happen under one lock, so a front-end reading
// the surfaces never observes a half rendered catalog. The returned errors
// describe what happened but the user facing outcome is always what the
// surfaces show:
//
//   - A successful submission shows the server's message, resets the form and reloads the catalog.
//   - A rejected submission shows the server's detail and keeps the form inputs.
//   - A failed submission shows a generic retry message.
//
// Each message hides itself after the message TTL. Showing another message in
// the same area restarts the countdown.
//
// # Concurrency
//
// Each form accepts one submission at a time and is disabled while it is in
// flight. A load cancels any older load still running. Close cancels all
// requests and pending hides.
package controller
