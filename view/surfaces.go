package view

import "fmt"

// MessageKind classifies a message shown in a MessageArea.
type MessageKind string

const (
	KindSuccess MessageKind = "success"
	KindError   MessageKind = "error"
)

// Card is the rendered form of one activity.
type Card struct {
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Schedule     string   `json:"schedule"`
	SpotsLeft    int      `json:"spots_left"`
	Participants []string `json:"participants"`
}

// Availability returns the availability line shown on the card.
func (c Card) Availability() string {
	return fmt.Sprintf("%d spots left", c.SpotsLeft)
}

// ListView displays the activity cards.
type ListView interface {
	// Render replaces everything in the list with the given cards.
	Render(cards []Card)
	// ShowFailure replaces everything in the list with a single failure message.
	ShowFailure(message string)
}

// Selector is a drop-down of activity names.
// Implementations keep a non-selectable placeholder as the first option.
type Selector interface {
	// SetOptions replaces every option after the placeholder.
	SetOptions(names []string)
}

// Form is the set of inputs belonging to one mutation form.
type Form interface {
	// Fill shows the activity and email being submitted.
	Fill(activity, email string)
	// Reset clears the form's inputs.
	Reset()
	// SetEnabled enables or disables submitting the form.
	SetEnabled(enabled bool)
}

// MessageArea shows a transient message below a form.
type MessageArea interface {
	Show(text string, kind MessageKind)
	Hide()
}

// FormSurfaces groups the surfaces of one mutation form.
type FormSurfaces struct {
	Selector Selector
	Form     Form
	Message  MessageArea
}

// Surfaces is everything the controller renders into.
type Surfaces struct {
	List       ListView
	Signup     FormSurfaces
	Deregister FormSurfaces
}
