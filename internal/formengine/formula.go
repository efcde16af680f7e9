package formengine

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var targetPattern = regexp.MustCompile(`^(\d+)(?:_(\d+))?$`)

// Formula is a parsed question formula "expr=target". The target is either a
// bare question ID (flat field, or every subtopic column of that question in a
// matrix layout) or a compound questionId_subTopicId addressing a single cell.
type Formula struct {
	Expr             string
	TargetQuestionID int64
	TargetSubTopicID int64 // zero for bare (whole question) targets
}

// SingleCell reports whether the formula writes exactly one matrix cell.
func (f Formula) SingleCell() bool {
	return f.TargetSubTopicID != 0
}

// ParseFormula splits a raw formula string into its expression and target.
func ParseFormula(raw string) (Formula, error) {
	parts := strings.Split(raw, "=")
	if len(parts) != 2 {
		return Formula{}, fmt.Errorf("%w: formula %q must have exactly one '='", ErrInvalidExpression, raw)
	}
	expr := strings.TrimSpace(parts[0])
	target := strings.TrimSpace(parts[1])
	if expr == "" || target == "" {
		return Formula{}, fmt.Errorf("%w: formula %q has an empty side", ErrInvalidExpression, raw)
	}

	match := targetPattern.FindStringSubmatch(target)
	if match == nil {
		return Formula{}, fmt.Errorf("%w: malformed formula target %q", ErrInvalidExpression, target)
	}

	questionID, err := strconv.ParseInt(match[1], 10, 64)
	if err != nil {
		return Formula{}, fmt.Errorf("%w: target question %q", ErrInvalidExpression, match[1])
	}
	f := Formula{Expr: expr, TargetQuestionID: questionID}
	if match[2] != "" {
		subTopicID, err := strconv.ParseInt(match[2], 10, 64)
		if err != nil {
			return Formula{}, fmt.Errorf("%w: target subtopic %q", ErrInvalidExpression, match[2])
		}
		f.TargetSubTopicID = subTopicID
	}
	return f, nil
}
