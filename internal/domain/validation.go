package domain

// FieldIssue ties a validation message to the draft field that caused it.
type FieldIssue struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Validation is the result of checking a job draft.
type Validation struct {
	IsValid  bool         `json:"isValid"`
	Errors   []FieldIssue `json:"errors"`
	Warnings []FieldIssue `json:"warnings"`
}

func (v *Validation) AddError(field, message string) {
	v.Errors = append(v.Errors, FieldIssue{Field: field, Message: message})
	v.IsValid = false
}

func (v *Validation) AddWarning(field, message string) {
	v.Warnings = append(v.Warnings, FieldIssue{Field: field, Message: message})
}

// HasError reports whether field carries a blocking error.
func (v Validation) HasError(field string) bool {
	for _, issue := range v.Errors {
		if issue.Field == field {
			return true
		}
	}
	return false
}

func (v Validation) HasWarning(field string) bool {
	for _, issue := range v.Warnings {
		if issue.Field == field {
			return true
		}
	}
	return false
}
