package signaling

import (
	"encoding/json"
	"errors"
)

var errEnvelopeNotObject = errors.New("envelope is not a JSON object")

// Envelope is a relayed signaling payload. Only the routing fields are
// interpreted; every other top-level field is kept as raw JSON and written
// back out untouched.
type Envelope struct {
	To   ConnectionID
	From ConnectionID

	fields map[string]json.RawMessage
}

// ParseEnvelope splits raw into routing fields and the opaque remainder.
func ParseEnvelope(raw json.RawMessage) (*Envelope, error) {
	env := &Envelope{}
	if err := json.Unmarshal(raw, env); err != nil {
		return nil, err
	}
	return env, nil
}

// Field returns the raw value of an opaque field.
func (e *Envelope) Field(name string) (json.RawMessage, bool) {
	v, ok := e.fields[name]
	return v, ok
}

// SetField stores an opaque field. Routing fields cannot be set this way.
func (e *Envelope) SetField(name string, value json.RawMessage) {
	if name == "to" || name == "from" {
		return
	}
	if e.fields == nil {
		e.fields = make(map[string]json.RawMessage)
	}
	e.fields[name] = value
}

func (e *Envelope) UnmarshalJSON(b []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(b, &fields); err != nil {
		return err
	}
	if fields == nil {
		return errEnvelopeNotObject
	}

	// A non-string "to" simply never resolves.
	if raw, ok := fields["to"]; ok {
		var to string
		if json.Unmarshal(raw, &to) == nil {
			e.To = ConnectionID(to)
		}
	}
	if raw, ok := fields["from"]; ok {
		var from string
		if json.Unmarshal(raw, &from) == nil {
			e.From = ConnectionID(from)
		}
	}
	delete(fields, "from")
	e.fields = fields
	return nil
}

func (e *Envelope) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(e.fields)+2)
	for k, v := range e.fields {
		out[k] = v
	}
	if _, ok := out["to"]; !ok && e.To != "" {
		b, _ := json.Marshal(e.To)
		out["to"] = b
	}
	if e.From != "" {
		b, _ := json.Marshal(e.From)
		out["from"] = b
	}
	return json.Marshal(out)
}
