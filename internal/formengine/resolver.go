package formengine

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/dkv-labs/pps-api/internal/models"
)

// operandPattern matches compound questionId_subTopicId tokens before bare
// question IDs. A single left-to-right pass over the original expression means
// a bare token can never match inside a compound token's digits, and values
// substituted for earlier tokens are never re-scanned.
var operandPattern = regexp.MustCompile(`(\d+)_(\d+)|(\d+)`)

// ResolveScope describes how operand tokens map onto form state.
type ResolveScope struct {
	Layout models.TopicLayout

	// CompanyID scopes cell lookups when company scoping is active; zero
	// otherwise.
	CompanyID int64

	// SubTopicIDs is the topic's ordered subtopic set, needed for row totals.
	SubTopicIDs []int64

	// CurrentSubTopicID is set when the formula is being applied column by
	// column (bare target in a matrix layout); bare operand tokens then
	// resolve to that column's cell instead of the question's row total.
	CurrentSubTopicID int64

	// KnownQuestions is the set of question IDs present in the topic. Bare
	// tokens outside this set are numeric literals, not references.
	KnownQuestions map[int64]struct{}
}

// ResolveReferences substitutes every operand token in expr with its current
// numeric value from state, defaulting blank or unset fields to 0. Bare tokens
// outside the topic's question set stay in place and evaluate as numeric
// literals; unknown compound tokens are left intact so the evaluator rejects
// the expression rather than silently treating their digits as literals.
func ResolveReferences(expr string, scope ResolveScope, state *FormState) (string, error) {
	var resolveErr error

	resolved := operandPattern.ReplaceAllStringFunc(expr, func(token string) string {
		if resolveErr != nil {
			return token
		}

		if qRaw, stRaw, ok := splitCompound(token); ok {
			questionID, _ := strconv.ParseInt(qRaw, 10, 64)
			subTopicID, _ := strconv.ParseInt(stRaw, 10, 64)
			key := FieldKey{CompanyID: scope.CompanyID, QuestionID: questionID, SubTopicID: subTopicID}
			if !state.Has(key) {
				// left as-is: the evaluator refuses the underscore
				return token
			}
			return numericOrZero(state.Value(key))
		}

		questionID, err := strconv.ParseInt(token, 10, 64)
		if err != nil {
			resolveErr = fmt.Errorf("%w: token %q", ErrInvalidExpression, token)
			return token
		}
		if _, known := scope.KnownQuestions[questionID]; !known {
			// a bare number that is not a question stays a literal
			return token
		}

		if !scope.Layout.IsMatrix() {
			return numericOrZero(state.Value(FieldKey{CompanyID: scope.CompanyID, QuestionID: questionID}))
		}
		if scope.CurrentSubTopicID != 0 {
			key := FieldKey{CompanyID: scope.CompanyID, QuestionID: questionID, SubTopicID: scope.CurrentSubTopicID}
			return numericOrZero(state.Value(key))
		}
		return formatNumber(rowTotal(state, scope, questionID))
	})

	if resolveErr != nil {
		return "", resolveErr
	}
	return resolved, nil
}

// referencedQuestions lists the question IDs an expression reads: the question
// part of every compound token plus bare tokens inside the known set. Bare
// tokens outside it are literals, not references.
func referencedQuestions(expr string, known map[int64]struct{}) []int64 {
	var ids []int64
	for _, token := range operandPattern.FindAllString(expr, -1) {
		if qRaw, _, ok := splitCompound(token); ok {
			if id, err := strconv.ParseInt(qRaw, 10, 64); err == nil {
				ids = append(ids, id)
			}
			continue
		}
		id, err := strconv.ParseInt(token, 10, 64)
		if err != nil {
			continue
		}
		if _, ok := known[id]; ok {
			ids = append(ids, id)
		}
	}
	return ids
}

// rowTotal sums a question's cells across all subtopics within the scoped
// company. Referencing a bare question ID in a matrix layout deliberately
// means the whole-question total, not any single cell.
func rowTotal(state *FormState, scope ResolveScope, questionID int64) float64 {
	var total float64
	for _, subTopicID := range scope.SubTopicIDs {
		key := FieldKey{CompanyID: scope.CompanyID, QuestionID: questionID, SubTopicID: subTopicID}
		total += numericValue(state.Value(key))
	}
	return total
}

func splitCompound(token string) (question, subTopic string, ok bool) {
	for i := 0; i < len(token); i++ {
		if token[i] == '_' {
			return token[:i], token[i+1:], true
		}
	}
	return "", "", false
}

func numericOrZero(raw string) string {
	if raw == "" {
		return "0"
	}
	return raw
}

func numericValue(raw string) float64 {
	if raw == "" {
		return 0
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0
	}
	return v
}
