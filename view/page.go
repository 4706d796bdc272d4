package view

// Page holds in-memory surfaces for a whole sign-up page: the activity list
// and the signup and deregister forms.
type Page struct {
	List               *MemoryList
	SignupSelector     *MemorySelector
	SignupForm         *MemoryForm
	SignupMessage      *MemoryMessage
	DeregisterSelector *MemorySelector
	DeregisterForm     *MemoryForm
	DeregisterMessage  *MemoryMessage
}

// NewPage creates a page. onChange is called after every surface mutation and may be nil.
// It is called without any surface lock held.
func NewPage(onChange func()) *Page {
	signupSelector := NewMemorySelector(DefaultPlaceholder, onChange)
	deregisterSelector := NewMemorySelector(DefaultPlaceholder, onChange)
	return &Page{
		List:               NewMemoryList(onChange),
		SignupSelector:     signupSelector,
		SignupForm:         NewMemoryForm(signupSelector, onChange),
		SignupMessage:      NewMemoryMessage(onChange),
		DeregisterSelector: deregisterSelector,
		DeregisterForm:     NewMemoryForm(deregisterSelector, onChange),
		DeregisterMessage:  NewMemoryMessage(onChange),
	}
}

// Surfaces returns the page's surfaces for injection into the controller.
func (p *Page) Surfaces() Surfaces {
	return Surfaces{
		List: p.List,
		Signup: FormSurfaces{
			Selector: p.SignupSelector,
			Form:     p.SignupForm,
			Message:  p.SignupMessage,
		},
		Deregister: FormSurfaces{
			Selector: p.DeregisterSelector,
			Form:     p.DeregisterForm,
			Message:  p.DeregisterMessage,
		},
	}
}

// PageForm groups the in-memory surfaces of one form.
type PageForm struct {
	Selector *MemorySelector
	Form     *MemoryForm
	Message  *MemoryMessage
}

// Signup returns the signup form's surfaces.
func (p *Page) Signup() PageForm {
	return PageForm{Selector: p.SignupSelector, Form: p.SignupForm, Message: p.SignupMessage}
}

// Deregister returns the deregister form's surfaces.
func (p *Page) Deregister() PageForm {
	return PageForm{Selector: p.DeregisterSelector, Form: p.DeregisterForm, Message: p.DeregisterMessage}
}

// PageSnapshot is a point-in-time copy of a Page, suitable for templates and JSON.
type PageSnapshot struct {
	Cards      []Card       `json:"cards"`
	Failure    string       `json:"failure,omitempty"`
	Signup     FormSnapshot `json:"signup"`
	Deregister FormSnapshot `json:"deregister"`
}

// FormSnapshot is a point-in-time copy of one form and its surfaces.
type FormSnapshot struct {
	Options  []Option     `json:"options"`
	Selected string       `json:"selected"`
	Email    string       `json:"email"`
	Enabled  bool         `json:"enabled"`
	Message  MessageState `json:"message"`
}

// Snapshot copies the page state. Each surface is copied atomically; the page as
// a whole is not.
func (p *Page) Snapshot() PageSnapshot {
	return PageSnapshot{
		Cards:      p.List.Cards(),
		Failure:    p.List.Failure(),
		Signup:     snapshotForm(p.SignupSelector, p.SignupForm, p.SignupMessage),
		Deregister: snapshotForm(p.DeregisterSelector, p.DeregisterForm, p.DeregisterMessage),
	}
}

// ListElements returns how many elements the list area shows: one per card, or
// a single element for a failure message.
func (s PageSnapshot) ListElements() int {
	if s.Failure != "" {
		return 1
	}
	return len(s.Cards)
}

func snapshotForm(sel *MemorySelector, form *MemoryForm, msg *MemoryMessage) FormSnapshot {
	return FormSnapshot{
		Options:  sel.Options(),
		Selected: sel.Selected(),
		Email:    form.Email(),
		Enabled:  form.Enabled(),
		Message:  msg.State(),
	}
}
