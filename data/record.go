package data

import (
	"encoding/json"
	"maps"
	"slices"
	"sort"
	"time"
)

// Well-known property names.
const (
	PropertyTitle                = "title"
	PropertyLinks                = "links"
	PropertyOnChangeReindex      = "onchange_reindex"
	PropertyNextTimeEvent        = "next_time_event"
	PropertyNextTimeEventPayload = "next_time_event_payload"
)

// Property is one value of a named property, optionally tagged with a language.
type Property struct {
	Value string `json:"value"`
	Lang  string `json:"lang,omitempty"`
}

// Handler references a binary payload attached to a resource.
// Hash is the content address of the payload in the blob backend.
type Handler struct {
	Name        string `json:"name"`
	Hash        string `json:"hash"`
	Size        int64  `json:"size"`
	ContentType string `json:"content_type,omitempty"`
}

// Record is the persisted metadata of a single resource.
type Record struct {
	Path         string `json:"path"`
	ClassID      string `json:"class_id"`
	ClassVersion int    `json:"class_version"`

	Properties map[string][]Property `json:"properties,omitempty"`
	Handlers   map[string]Handler    `json:"handlers,omitempty"`

	CreateTime time.Time `json:"create_time"`
	ModifyTime time.Time `json:"modify_time"`
	LastAuthor string    `json:"last_author,omitempty"`

	// dirty is never persisted; it marks records touched in the current transaction.
	dirty bool
}

func NewRecord(path, classID string, classVersion int) *Record {
	now := time.Now().UTC()

	return &Record{
		Path:         path,
		ClassID:      classID,
		ClassVersion: classVersion,
		Properties:   make(map[string][]Property),
		Handlers:     make(map[string]Handler),
		CreateTime:   now,
		ModifyTime:   now,
		dirty:        true,
	}
}

// Get returns all values of a property in insertion order.
func (r *Record) Get(name string) []Property {
	if r.Properties == nil {
		return nil
	}
	return r.Properties[name]
}

// Values returns the plain values of a property regardless of language.
func (r *Record) Values(name string) []string {
	props := r.Get(name)
	values := make([]string, 0, len(props))
	for _, p := range props {
		values = append(values, p.Value)
	}
	return values
}

// GetValue returns the first value of a property for lang, falling back to
// the first untagged value and then to the first value at all.
func (r *Record) GetValue(name, lang string) string {
	props := r.Get(name)
	if len(props) == 0 {
		return ""
	}

	fallback := -1
	for i, p := range props {
		if p.Lang == lang {
			return p.Value
		}
		if p.Lang == "" && fallback < 0 {
			fallback = i
		}
	}

	if fallback >= 0 {
		return props[fallback].Value
	}
	return props[0].Value
}

// Set replaces every value of a property. Setting no values deletes it.
func (r *Record) Set(name string, values ...Property) {
	if len(values) == 0 {
		r.Delete(name)
		return
	}

	if r.Properties == nil {
		r.Properties = make(map[string][]Property)
	}

	r.Properties[name] = slices.Clone(values)
	r.dirty = true
}

// SetLang replaces only the value tagged with lang, keeping other languages.
func (r *Record) SetLang(name, lang, value string) {
	props := slices.DeleteFunc(slices.Clone(r.Get(name)), func(p Property) bool {
		return p.Lang == lang
	})
	r.Set(name, append(props, Property{Value: value, Lang: lang})...)
}

// Add appends a value to a multi-valued property.
func (r *Record) Add(name string, values ...Property) {
	r.Set(name, append(slices.Clone(r.Get(name)), values...)...)
}

func (r *Record) Delete(name string) {
	if _, exists := r.Properties[name]; exists {
		delete(r.Properties, name)
		r.dirty = true
	}
}

// PropertyNames returns the property names in their serialized order.
func (r *Record) PropertyNames() []string {
	names := make([]string, 0, len(r.Properties))
	for name := range r.Properties {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Record) SetHandler(h Handler) {
	if r.Handlers == nil {
		r.Handlers = make(map[string]Handler)
	}
	r.Handlers[h.Name] = h
	r.dirty = true
}

func (r *Record) RemoveHandler(name string) {
	if _, exists := r.Handlers[name]; exists {
		delete(r.Handlers, name)
		r.dirty = true
	}
}

func (r *Record) MarkDirty()  { r.dirty = true }
func (r *Record) ClearDirty() { r.dirty = false }
func (r *Record) Dirty() bool { return r.dirty }

// Clone returns a deep copy, dirty flag included.
func (r *Record) Clone() *Record {
	clone := *r
	clone.Properties = make(map[string][]Property, len(r.Properties))
	for name, values := range r.Properties {
		clone.Properties[name] = slices.Clone(values)
	}
	clone.Handlers = make(map[string]Handler, len(r.Handlers))
	maps.Copy(clone.Handlers, r.Handlers)

	return &clone
}

// Marshal provides JSON serialization for Record.
func (r *Record) Marshal() ([]byte, error) {
	return json.Marshal(r)
}

// UnmarshalRecord decodes a record; the result is never dirty.
func UnmarshalRecord(b []byte) (*Record, error) {
	var r Record
	if err := json.Unmarshal(b, &r); err != nil {
		return nil, err
	}

	if r.Properties == nil {
		r.Properties = make(map[string][]Property)
	}
	if r.Handlers == nil {
		r.Handlers = make(map[string]Handler)
	}

	return &r, nil
}
