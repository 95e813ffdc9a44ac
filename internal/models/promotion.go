package models

import "strings"

// PromotionType selects what the promotion engine does with a cohort.
type PromotionType string

const (
	PromotionPromote  PromotionType = "promote"
	PromotionTransfer PromotionType = "transfer"
	PromotionDemote   PromotionType = "demote"
	PromotionRepeat   PromotionType = "repeat"
	PromotionGraduate PromotionType = "graduate"
)

// Valid reports whether p is one of the five supported actions.
func (p PromotionType) Valid() bool {
	switch p {
	case PromotionPromote, PromotionTransfer, PromotionDemote, PromotionRepeat, PromotionGraduate:
		return true
	}
	return false
}

// NeedsTarget reports whether the action creates an enrollment elsewhere.
func (p PromotionType) NeedsTarget() bool {
	return p != PromotionGraduate
}

// Label is the capitalised form used in enrollment notes, e.g. "Promote".
func (p PromotionType) Label() string {
	if p == "" {
		return ""
	}
	s := string(p)
	return strings.ToUpper(s[:1]) + s[1:]
}
