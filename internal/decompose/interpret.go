package decompose

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Rick1330/Nexus-Framework/pkg/models"
)

// Interpret maps raw requirement fields into a Goal. The mapping is purely
// structural: title is required, list fields must hold strings only, and
// priority defaults to medium.
func Interpret(requirements map[string]any) (*models.Goal, error) {
	if requirements == nil {
		return nil, fmt.Errorf("%w: requirements are empty", models.ErrValidation)
	}

	title, ok := requirements["title"].(string)
	if !ok || strings.TrimSpace(title) == "" {
		return nil, fmt.Errorf("%w: requirements must have a non-empty title", models.ErrValidation)
	}

	goal := &models.Goal{
		ID:        uuid.New().String(),
		Title:     strings.TrimSpace(title),
		Priority:  models.PriorityMedium,
		CreatedAt: time.Now(),
	}

	if raw, present := requirements["description"]; present && raw != nil {
		desc, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("%w: description must be a string, got %T", models.ErrValidation, raw)
		}
		goal.Description = desc
	}

	var err error
	if goal.SuccessCriteria, err = stringList(requirements, "success_criteria"); err != nil {
		return nil, err
	}
	if goal.Constraints, err = stringList(requirements, "constraints"); err != nil {
		return nil, err
	}
	if goal.RequiredCapabilities, err = stringList(requirements, "capabilities"); err != nil {
		return nil, err
	}

	if raw, present := requirements["priority"]; present && raw != nil {
		p, ok := raw.(string)
		if !ok || !models.Priority(strings.ToLower(p)).Valid() {
			return nil, fmt.Errorf("%w: priority must be low, medium or high, got %v", models.ErrValidation, raw)
		}
		goal.Priority = models.Priority(strings.ToLower(p))
	}

	return goal, nil
}

// stringList reads an optional list-of-strings field. Absent or null fields
// yield nil; anything else that is not a list of strings is rejected.
func stringList(requirements map[string]any, key string) ([]string, error) {
	raw, present := requirements[key]
	if !present || raw == nil {
		return nil, nil
	}

	switch v := raw.(type) {
	case []string:
		return append([]string(nil), v...), nil
	case []any:
		out := make([]string, 0, len(v))
		for i, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%w: %s[%d] must be a string, got %T", models.ErrValidation, key, i, item)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %s must be a list of strings, got %T", models.ErrValidation, key, raw)
	}
}
