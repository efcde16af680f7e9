// Package formengine implements the dynamic performance-form evaluation
// engine: form shape assembly for the three topic layouts, arithmetic formula
// resolution and evaluation, dependency-driven recomputation with company
// roll-up aggregation, bounded navigation over the sparse module/topic tree,
// and flattening of form state into persistable statistic records.
package formengine

// FieldKey addresses one form field (control). The zero value of an optional
// component means "not applicable": CompanyID is zero outside company scoping,
// SubTopicID is zero for flat (NORMAL) fields, and Seq is non-zero only for
// members of a date sub-field series or document reference slots.
type FieldKey struct {
	CompanyID  int64
	QuestionID int64
	SubTopicID int64
	Seq        int
}

// Document reference slots for PDF/WORD questions. Each document-type question
// carries a pdf and a word slot per addressable key instead of a plain value.
const (
	SeqDocumentPDF  = 1
	SeqDocumentWord = 2
)

// DocumentRef holds the uploaded-file URLs attached to a document question.
type DocumentRef struct {
	PDFURL  string
	WordURL string
}

// Empty reports whether no file reference is attached.
func (d DocumentRef) Empty() bool {
	return d.PDFURL == "" && d.WordURL == ""
}

// FormState is the complete addressable form state for one topic. Keys
// enumerate in insertion order so that assembly and round trips are
// deterministic.
type FormState struct {
	values map[FieldKey]string
	docs   map[FieldKey]DocumentRef
	order  []FieldKey
}

// NewFormState returns an empty form state.
func NewFormState() *FormState {
	return &FormState{
		values: make(map[FieldKey]string),
		docs:   make(map[FieldKey]DocumentRef),
	}
}

// Set writes a field value, registering the key on first write.
func (s *FormState) Set(key FieldKey, value string) {
	if _, ok := s.values[key]; !ok {
		s.order = append(s.order, key)
	}
	s.values[key] = value
}

// Get returns the value and whether the key is part of the shape.
func (s *FormState) Get(key FieldKey) (string, bool) {
	v, ok := s.values[key]
	return v, ok
}

// Value returns the field value, or the empty string for unknown keys.
func (s *FormState) Value(key FieldKey) string {
	return s.values[key]
}

// Has reports whether the key is part of the shape.
func (s *FormState) Has(key FieldKey) bool {
	_, ok := s.values[key]
	return ok
}

// Delete removes a field from the shape.
func (s *FormState) Delete(key FieldKey) {
	if _, ok := s.values[key]; !ok {
		return
	}
	delete(s.values, key)
	delete(s.docs, key)
	for i, k := range s.order {
		if k == key {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// Keys returns all field keys in insertion order.
func (s *FormState) Keys() []FieldKey {
	keys := make([]FieldKey, len(s.order))
	copy(keys, s.order)
	return keys
}

// Len returns the number of addressable fields.
func (s *FormState) Len() int {
	return len(s.order)
}

// SetDocument attaches document references to a field.
func (s *FormState) SetDocument(key FieldKey, ref DocumentRef) {
	if _, ok := s.values[key]; !ok {
		s.Set(key, "")
	}
	s.docs[key] = ref
}

// Document returns the document references attached to a field.
func (s *FormState) Document(key FieldKey) (DocumentRef, bool) {
	ref, ok := s.docs[key]
	return ref, ok
}
