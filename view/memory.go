package view

import (
	"errors"
	"fmt"
	"slices"
	"sync"
)

// DefaultPlaceholder is the label of the first, non-selectable selector option.
const DefaultPlaceholder = "-- Select an activity --"

// ErrUnknownOption is returned when selecting a value the selector does not offer.
var ErrUnknownOption = errors.New("unknown option")

// MemoryList is an in-memory ListView.
type MemoryList struct {
	mu       sync.RWMutex
	cards    []Card
	failure  string
	onChange func()
}

// NewMemoryList creates an empty list. onChange may be nil.
func NewMemoryList(onChange func()) *MemoryList {
	return &MemoryList{onChange: onChange}
}

// Render implements ListView.
func (l *MemoryList) Render(cards []Card) {
	l.mu.Lock()
	l.cards = cloneCards(cards)
	l.failure = ""
	l.mu.Unlock()
	notify(l.onChange)
}

// ShowFailure implements ListView.
func (l *MemoryList) ShowFailure(message string) {
	l.mu.Lock()
	l.cards = nil
	l.failure = message
	l.mu.Unlock()
	notify(l.onChange)
}

// Cards returns a copy of the rendered cards.
func (l *MemoryList) Cards() []Card {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return cloneCards(l.cards)
}

// Failure returns the failure message, or "" if the list shows cards.
func (l *MemoryList) Failure() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.failure
}

// Option is one entry of a selector.
type Option struct {
	Value    string `json:"value"`
	Label    string `json:"label"`
	Disabled bool   `json:"disabled,omitempty"`
}

// MemorySelector is an in-memory Selector.
type MemorySelector struct {
	mu          sync.RWMutex
	placeholder string
	names       []string
	selected    string
	onChange    func()
}

// NewMemorySelector creates a selector holding only the placeholder.
// An empty placeholder uses DefaultPlaceholder.
func NewMemorySelector(placeholder string, onChange func()) *MemorySelector {
	if placeholder == "" {
		placeholder = DefaultPlaceholder
	}
	return &MemorySelector{placeholder: placeholder, onChange: onChange}
}

// SetOptions implements Selector.
// The current selection survives if the selected name is still offered.
func (s *MemorySelector) SetOptions(names []string) {
	s.mu.Lock()
	s.names = slices.Clone(names)
	if !slices.Contains(s.names, s.selected) {
		s.selected = ""
	}
	s.mu.Unlock()
	notify(s.onChange)
}

// Options returns every option, placeholder first.
func (s *MemorySelector) Options() []Option {
	s.mu.RLock()
	defer s.mu.RUnlock()

	opts := make([]Option, 0, len(s.names)+1)
	opts = append(opts, Option{Value: "", Label: s.placeholder, Disabled: true})
	for _, name := range s.names {
		opts = append(opts, Option{Value: name, Label: name})
	}
	return opts
}

// Names returns the selectable activity names.
func (s *MemorySelector) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.names)
}

// Select chooses the option with the given value. The empty value selects the placeholder.
func (s *MemorySelector) Select(value string) error {
	s.mu.Lock()
	if value != "" && !slices.Contains(s.names, value) {
		s.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrUnknownOption, value)
	}
	s.selected = value
	s.mu.Unlock()
	notify(s.onChange)
	return nil
}

// Selected returns the selected value, "" while the placeholder is selected.
func (s *MemorySelector) Selected() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selected
}

// MemoryForm is an in-memory Form with an email input and an activity selector.
type MemoryForm struct {
	mu       sync.RWMutex
	email    string
	enabled  bool
	selector *MemorySelector
	onChange func()
}

// NewMemoryForm creates an enabled, empty form. Reset also clears selector's selection.
func NewMemoryForm(selector *MemorySelector, onChange func()) *MemoryForm {
	return &MemoryForm{enabled: true, selector: selector, onChange: onChange}
}

// SetEmail sets the email input.
func (f *MemoryForm) SetEmail(email string) {
	f.mu.Lock()
	f.email = email
	f.mu.Unlock()
	notify(f.onChange)
}

// Email returns the email input.
func (f *MemoryForm) Email() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.email
}

// Activity returns the selected activity name.
func (f *MemoryForm) Activity() string {
	if f.selector == nil {
		return ""
	}
	return f.selector.Selected()
}

// Fill implements Form. An activity the selector does not offer leaves the selection unchanged.
func (f *MemoryForm) Fill(activity, email string) {
	f.mu.Lock()
	f.email = email
	f.mu.Unlock()
	if f.selector != nil {
		_ = f.selector.Select(activity)
	}
	notify(f.onChange)
}

// Reset implements Form.
func (f *MemoryForm) Reset() {
	f.mu.Lock()
	f.email = ""
	f.mu.Unlock()
	if f.selector != nil {
		f.selector.Select("")
	}
	notify(f.onChange)
}

// SetEnabled implements Form.
func (f *MemoryForm) SetEnabled(enabled bool) {
	f.mu.Lock()
	f.enabled = enabled
	f.mu.Unlock()
	notify(f.onChange)
}

// Enabled reports whether the form accepts submissions.
func (f *MemoryForm) Enabled() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.enabled
}

// MemoryMessage is an in-memory MessageArea. It starts hidden.
type MemoryMessage struct {
	mu       sync.RWMutex
	text     string
	kind     MessageKind
	visible  bool
	onChange func()
}

// NewMemoryMessage creates a hidden message area.
func NewMemoryMessage(onChange func()) *MemoryMessage {
	return &MemoryMessage{onChange: onChange}
}

// Show implements MessageArea.
func (m *MemoryMessage) Show(text string, kind MessageKind) {
	m.mu.Lock()
	m.text = text
	m.kind = kind
	m.visible = true
	m.mu.Unlock()
	notify(m.onChange)
}

// Hide implements MessageArea. The text and kind are kept.
func (m *MemoryMessage) Hide() {
	m.mu.Lock()
	m.visible = false
	m.mu.Unlock()
	notify(m.onChange)
}

// State returns the current message.
func (m *MemoryMessage) State() MessageState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return MessageState{Text: m.text, Kind: m.kind, Visible: m.visible}
}

// MessageState is a point-in-time copy of a message area.
type MessageState struct {
	Text    string      `json:"text"`
	Kind    MessageKind `json:"kind,omitempty"`
	Visible bool        `json:"visible"`
}

// Class returns the CSS-style class list of the message: its kind, plus
// "hidden" when not visible.
func (s MessageState) Class() string {
	switch {
	case s.Kind == "" && !s.Visible:
		return "hidden"
	case !s.Visible:
		return string(s.Kind) + " hidden"
	default:
		return string(s.Kind)
	}
}

func cloneCards(cards []Card) []Card {
	if cards == nil {
		return nil
	}
	result := make([]Card, len(cards))
	for i, c := range cards {
		c.Participants = slices.Clone(c.Participants)
		result[i] = c
	}
	return result
}

func notify(f func()) {
	if f != nil {
		f()
	}
}
