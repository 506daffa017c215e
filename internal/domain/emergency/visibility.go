package emergency

import (
	"bytes"
	"encoding/json"
)

// ParseVisibility decodes a visibility update. The body is either the raw
// settings object or {"visibilitySettings": {...}}. Keys must be a subset of
// the four field names and every value a JSON boolean; anything else rejects
// the whole payload.
func ParseVisibility(body []byte) (VisibilityPatch, error) {
	var patch VisibilityPatch

	fields, err := decodeObject(body)
	if err != nil {
		return patch, ErrInvalidVisibility
	}
	if inner, ok := fields["visibilitySettings"]; ok {
		fields, err = decodeObject(inner)
		if err != nil {
			return patch, ErrInvalidVisibility
		}
	}

	for key, raw := range fields {
		val, ok := jsonBool(raw)
		if !ok {
			return VisibilityPatch{}, ErrInvalidVisibility
		}
		switch key {
		case FieldBloodGroup:
			patch.BloodGroup = &val
		case FieldAllergies:
			patch.Allergies = &val
		case FieldCurrentMedications:
			patch.CurrentMedications = &val
		case FieldEmergencyContacts:
			patch.EmergencyContacts = &val
		default:
			return VisibilityPatch{}, ErrInvalidVisibility
		}
	}
	return patch, nil
}

func decodeObject(raw []byte) (map[string]json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	if fields == nil {
		return nil, ErrInvalidVisibility
	}
	return fields, nil
}

func jsonBool(raw json.RawMessage) (bool, bool) {
	switch string(bytes.TrimSpace(raw)) {
	case "true":
		return true, true
	case "false":
		return false, true
	}
	return false, false
}

// Apply returns v with the patch's non-nil flags applied.
func (p VisibilityPatch) Apply(v Visibility) Visibility {
	if p.BloodGroup != nil {
		v.BloodGroup = *p.BloodGroup
	}
	if p.Allergies != nil {
		v.Allergies = *p.Allergies
	}
	if p.CurrentMedications != nil {
		v.CurrentMedications = *p.CurrentMedications
	}
	if p.EmergencyContacts != nil {
		v.EmergencyContacts = *p.EmergencyContacts
	}
	return v
}

func allVisible() VisibilityPatch {
	t := true
	return VisibilityPatch{BloodGroup: &t, Allergies: &t, CurrentMedications: &t, EmergencyContacts: &t}
}
