package service

import (
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/prime-cvd-server/internal/domain"
	"github.com/prime-cvd-server/pkg/therapy"
)

// ConflictValidator flags therapy plans that select more than one agent in the
// same drug class. Conflicts are advisory; they never block a projection.
type ConflictValidator struct {
	logger *logrus.Logger
}

// NewConflictValidator creates a new conflict validator.
func NewConflictValidator(logger *logrus.Logger) *ConflictValidator {
	return &ConflictValidator{
		logger: logger,
	}
}

// ValidatePlan returns one conflict per drug class with two or more active
// agents, in fixed class order. A plan with no duplications returns nil.
func (v *ConflictValidator) ValidatePlan(plan *domain.TherapyPlan) []domain.TherapyConflict {
	if plan == nil {
		return nil
	}

	names := collectTherapyNames(plan)
	groups := therapy.ClassifyAll(names)

	var conflicts []domain.TherapyConflict
	for _, class := range therapy.Classes() {
		agents := groups[class]
		if len(agents) < 2 {
			continue
		}
		conflicts = append(conflicts, domain.TherapyConflict{
			DrugClass: class.String(),
			Agents:    agents,
			Message:   "Multiple " + class.String() + ": " + strings.Join(agents, ", "),
		})
	}

	if len(conflicts) > 0 {
		v.logger.WithField("conflicts", len(conflicts)).Warn("Therapy plan contains same-class duplications")
	}

	return conflicts
}

// collectTherapyNames flattens every named or flagged agent in the plan into a
// single name list for classification. Flag selections contribute their
// canonical display names.
func collectTherapyNames(plan *domain.TherapyPlan) []string {
	var names []string

	statin := strings.TrimSpace(plan.DischargeStatin)
	if statin != "" && !strings.EqualFold(statin, "none") {
		names = append(names, statin)
	}
	if plan.Ezetimibe {
		names = append(names, "Ezetimibe")
	}
	if plan.PCSK9Inhibitor {
		names = append(names, "PCSK9 inhibitor")
	}
	if plan.Inclisiran {
		names = append(names, "Inclisiran")
	}
	if plan.BempedoicAcid {
		names = append(names, "Bempedoic acid")
	}
	names = append(names, plan.TherapyNames...)

	return names
}
