// Package taxonomy validates behavior and skill definitions against the
// closed collection vocabularies before they are persisted.
package taxonomy

import (
	"strings"

	"github.com/okian/sessiontrack/internal/domain/types"
)

// BehaviorInput is an unvalidated behavior definition.
type BehaviorInput struct {
	Name        string
	Method      string
	Description *string
	Settings    types.Settings
}

// BehaviorConfig is a behavior definition that passed validation.
type BehaviorConfig struct {
	Name        string
	Method      types.Method
	Description *string
	Settings    types.Settings
}

// ValidateBehavior checks method, interval settings and name, in that order.
func ValidateBehavior(in BehaviorInput) (BehaviorConfig, error) {
	method, ok := types.ParseMethod(in.Method)
	if !ok {
		return BehaviorConfig{}, types.Invalid("method", "invalid method. Use FREQUENCY | DURATION | INTERVAL | MTS")
	}

	if method.RequiresInterval() {
		secs := in.Settings.IntervalSeconds
		if secs == nil || *secs <= 0 {
			return BehaviorConfig{}, types.Invalid("settings.interval_seconds",
				"settings.interval_seconds (positive int) is required for INTERVAL/MTS")
		}
	}

	name := strings.TrimSpace(in.Name)
	if name == "" {
		return BehaviorConfig{}, types.Invalid("name", "name is required")
	}

	return BehaviorConfig{
		Name:        name,
		Method:      method,
		Description: optional(in.Description),
		Settings:    in.Settings,
	}, nil
}

// SkillInput is an unvalidated skill definition. Empty Method and SkillType
// take their defaults.
type SkillInput struct {
	Name        string
	Method      string
	SkillType   string
	Description *string
}

// SkillConfig is a skill definition that passed validation.
type SkillConfig struct {
	Name        string
	Method      types.SkillMethod
	SkillType   types.SkillType
	Description *string
}

// ValidateSkill checks name, method and classification.
func ValidateSkill(in SkillInput) (SkillConfig, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return SkillConfig{}, types.Invalid("name", "name is required")
	}

	method := types.SkillPercentage
	if in.Method != "" && types.SkillMethod(strings.ToUpper(in.Method)) != types.SkillPercentage {
		return SkillConfig{}, types.Invalid("method", "invalid method. Use PERCENTAGE")
	}

	skillType := types.SkillTypeOther
	if in.SkillType != "" {
		t, ok := types.ParseSkillType(in.SkillType)
		if !ok {
			return SkillConfig{}, types.Invalid("skill_type", "invalid skill_type. Use LR | MAND | TACT | IV | MI | PLAY | VP | ADL | SOC | ACAD | OTHER")
		}
		skillType = t
	}

	return SkillConfig{
		Name:        name,
		Method:      method,
		SkillType:   skillType,
		Description: optional(in.Description),
	}, nil
}

// optional collapses empty descriptions to nil.
func optional(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}
