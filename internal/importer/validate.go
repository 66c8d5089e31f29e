package importer

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/suporte-lab/app-sub000/db"
)

// ValidationError carries the reason an answer cell was rejected.
type ValidationError struct {
	Question string
	Reason   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%q: %s", e.Question, e.Reason)
}

// ValidateAnswer checks a raw answer string against the question's type.
// options is the live option set, only consulted for select questions.
func ValidateAnswer(q *db.Question, options []string, raw string) error {
	switch q.Type {
	case db.QuestionText:
		return nil
	case db.QuestionNumber:
		n, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil || math.IsInf(n, 0) || math.IsNaN(n) {
			return &ValidationError{Question: q.Question, Reason: fmt.Sprintf("%q is not a number", raw)}
		}
		return nil
	case db.QuestionBoolean:
		switch strings.ToLower(strings.TrimSpace(raw)) {
		case "true", "false", "1", "0":
			return nil
		}
		return &ValidationError{Question: q.Question, Reason: fmt.Sprintf("%q is not a boolean", raw)}
	case db.QuestionSelect:
		for _, opt := range options {
			if raw == opt {
				return nil
			}
		}
		return &ValidationError{
			Question: q.Question,
			Reason:   fmt.Sprintf("%q is not one of [%s]", raw, strings.Join(options, ", ")),
		}
	default:
		return &ValidationError{Question: q.Question, Reason: fmt.Sprintf("unknown question type %q", q.Type)}
	}
}
