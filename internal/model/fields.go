package model

import "fmt"

// Editable text fields.
const (
	FieldPayee    = "payee"
	FieldCategory = "category"
	FieldNotes    = "notes"
)

// TextFields lists the editable text fields in display order.
var TextFields = []string{FieldPayee, FieldCategory, FieldNotes}

// Field returns the value of a text field.
func (t *Transaction) Field(name string) (string, error) {
	switch name {
	case FieldPayee:
		return t.Payee, nil
	case FieldCategory:
		return t.Category, nil
	case FieldNotes:
		return t.Notes, nil
	}
	return "", fmt.Errorf("unknown field %q", name)
}

// SetField updates a text field.
func (t *Transaction) SetField(name, value string) error {
	switch name {
	case FieldPayee:
		t.Payee = value
	case FieldCategory:
		t.Category = value
	case FieldNotes:
		t.Notes = value
	default:
		return fmt.Errorf("unknown field %q", name)
	}
	return nil
}
