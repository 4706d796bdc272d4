// Package catalog defines the activity data model returned by the activities API.
//
// A Catalog is an ordered collection of activities keyed by name. Decoding a
// catalog from the JSON object served by GET /activities preserves the order in
// which the server listed the activities, so rendering is deterministic.
//
// Example usage:
//
//	var c catalog.Catalog
//	if err := json.Unmarshal(body, &c); err != nil {
//	    return err
//	}
//	for _, a := range c.Activities() {
//	    fmt.Printf("%s: %d spots left\n", a.Name, a.SpotsLeft())
//	}
package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrDuplicateActivity is returned when a catalog lists the same activity name twice.
var ErrDuplicateActivity = errors.New("duplicate activity")

// Activity is a named event with a schedule, a capacity and enrolled participants.
type Activity struct {
	Name            string   `json:"-"`
	Description     string   `json:"description"`
	Schedule        string   `json:"schedule"`
	MaxParticipants int      `json:"max_participants"`
	Participants    []string `json:"participants"`
}

// SpotsLeft returns the remaining capacity of the activity.
// The server guarantees len(Participants) <= MaxParticipants; if that ever
// does not hold the result is clamped to zero rather than going negative.
func (a Activity) SpotsLeft() int {
	left := a.MaxParticipants - len(a.Participants)
	if left < 0 {
		return 0
	}
	return left
}

// Catalog is the complete set of activities returned by the list endpoint.
// The zero value is an empty catalog.
type Catalog struct {
	activities []Activity
	index      map[string]int
}

// New builds a catalog from the given activities, in order.
// Returns ErrDuplicateActivity if two activities share a name.
func New(activities ...Activity) (*Catalog, error) {
	c := &Catalog{}
	for _, a := range activities {
		if err := c.add(a); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Catalog) add(a Activity) error {
	if c.index == nil {
		c.index = make(map[string]int)
	}
	if _, exists := c.index[a.Name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateActivity, a.Name)
	}
	if a.Participants == nil {
		a.Participants = []string{}
	}
	c.index[a.Name] = len(c.activities)
	c.activities = append(c.activities, a)
	return nil
}

// Len returns the number of activities in the catalog.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.activities)
}

// Names returns the activity names in catalog order.
func (c *Catalog) Names() []string {
	if c == nil {
		return nil
	}
	names := make([]string, len(c.activities))
	for i, a := range c.activities {
		names[i] = a.Name
	}
	return names
}

// Activities returns a copy of the activities in catalog order.
func (c *Catalog) Activities() []Activity {
	if c == nil {
		return nil
	}
	result := make([]Activity, len(c.activities))
	copy(result, c.activities)
	return result
}

// Get returns the activity with the given name.
func (c *Catalog) Get(name string) (Activity, bool) {
	if c == nil {
		return Activity{}, false
	}
	i, ok := c.index[name]
	if !ok {
		return Activity{}, false
	}
	return c.activities[i], true
}

// UnmarshalJSON decodes a JSON object mapping activity name to activity details.
// Object key order is preserved.
func (c *Catalog) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("reading catalog: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("catalog must be a JSON object, got %v", tok)
	}

	decoded := Catalog{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("reading activity name: %w", err)
		}
		name, ok := tok.(string)
		if !ok {
			return fmt.Errorf("activity name must be a string, got %v", tok)
		}

		var a Activity
		if err := dec.Decode(&a); err != nil {
			return fmt.Errorf("decoding activity %q: %w", name, err)
		}
		a.Name = name
		if err := decoded.add(a); err != nil {
			return err
		}
	}

	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("reading catalog end: %w", err)
	}

	*c = decoded
	return nil
}

// MarshalJSON encodes the catalog as a JSON object keyed by activity name,
// in catalog order.
func (c Catalog) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, a := range c.activities {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(a.Name)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(a)
		if err != nil {
			return nil, fmt.Errorf("encoding activity %q: %w", a.Name, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
