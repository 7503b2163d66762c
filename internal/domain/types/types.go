// Package types contains the closed vocabularies shared across the application.
package types

import "strings"

// Method is the data-collection method of a behavior.
type Method string

// Collection methods.
const (
	MethodFrequency Method = "FREQUENCY"
	MethodDuration  Method = "DURATION"
	MethodInterval  Method = "INTERVAL"
	MethodMTS       Method = "MTS"
)

// ParseMethod upper-cases s and reports whether it names a known method.
func ParseMethod(s string) (Method, bool) {
	m := Method(strings.ToUpper(s))
	return m, m.Valid()
}

// Valid reports whether m is one of the four collection methods.
func (m Method) Valid() bool {
	switch m {
	case MethodFrequency, MethodDuration, MethodInterval, MethodMTS:
		return true
	}
	return false
}

// RequiresInterval reports whether behaviors using m must carry interval_seconds.
func (m Method) RequiresInterval() bool {
	return m == MethodInterval || m == MethodMTS
}

// EventType is the kind of a behavior event. The vocabulary is shared by all
// methods; which kinds count toward a method is decided at aggregation time.
type EventType string

// Behavior event kinds.
const (
	EventInc   EventType = "INC"
	EventDec   EventType = "DEC"
	EventStart EventType = "START"
	EventStop  EventType = "STOP"
	EventHit   EventType = "HIT"
)

// ParseEventType upper-cases s and reports whether it is in the vocabulary.
func ParseEventType(s string) (EventType, bool) {
	t := EventType(strings.ToUpper(s))
	return t, t.Valid()
}

// Valid reports whether t is in the behavior event vocabulary.
func (t EventType) Valid() bool {
	switch t {
	case EventInc, EventDec, EventStart, EventStop, EventHit:
		return true
	}
	return false
}

// SkillEventType is the outcome of a single skill trial.
type SkillEventType string

// Skill event kinds.
const (
	SkillCorrect SkillEventType = "CORRECT"
	SkillWrong   SkillEventType = "WRONG"
)

// ParseSkillEventType upper-cases s and reports whether it is CORRECT or WRONG.
func ParseSkillEventType(s string) (SkillEventType, bool) {
	t := SkillEventType(strings.ToUpper(s))
	return t, t.Valid()
}

// Valid reports whether t is in the skill event vocabulary.
func (t SkillEventType) Valid() bool {
	return t == SkillCorrect || t == SkillWrong
}

// SkillMethod is the measurement of a skill. PERCENTAGE is the only value.
type SkillMethod string

// SkillPercentage is the percentage-correct skill method.
const SkillPercentage SkillMethod = "PERCENTAGE"

// SkillType is a clinical classification tag used by presentation layers.
type SkillType string

// Skill classifications.
const (
	SkillTypeLR    SkillType = "LR"
	SkillTypeMand  SkillType = "MAND"
	SkillTypeTact  SkillType = "TACT"
	SkillTypeIV    SkillType = "IV"
	SkillTypeMI    SkillType = "MI"
	SkillTypePlay  SkillType = "PLAY"
	SkillTypeVP    SkillType = "VP"
	SkillTypeADL   SkillType = "ADL"
	SkillTypeSoc   SkillType = "SOC"
	SkillTypeAcad  SkillType = "ACAD"
	SkillTypeOther SkillType = "OTHER"
)

// SkillTypes lists every skill classification in display order.
func SkillTypes() []SkillType {
	return []SkillType{
		SkillTypeLR, SkillTypeMand, SkillTypeTact, SkillTypeIV, SkillTypeMI,
		SkillTypePlay, SkillTypeVP, SkillTypeADL, SkillTypeSoc, SkillTypeAcad,
		SkillTypeOther,
	}
}

// ParseSkillType upper-cases s and reports whether it is a known classification.
func ParseSkillType(s string) (SkillType, bool) {
	t := SkillType(strings.ToUpper(s))
	return t, t.Valid()
}

// Valid reports whether t is a known classification.
func (t SkillType) Valid() bool {
	for _, known := range SkillTypes() {
		if t == known {
			return true
		}
	}
	return false
}

// Role is the role of an authenticated principal.
type Role string

// Roles.
const (
	RoleBCBA Role = "BCBA"
	RoleRBT  Role = "RBT"
)

// ParseRole upper-cases s and reports whether it names a role.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	return r, r == RoleBCBA || r == RoleRBT
}
