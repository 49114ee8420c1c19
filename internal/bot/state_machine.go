package bot

import (
	"fmt"

	"tradegate/internal/models"
)

// ============================================================
// Машина состояний защиты входного ордера
// ============================================================

// ValidProtectionTransitions - допустимые переходы состояния защиты
//
// NONE               - защитных ордеров нет
// PENDING_PROTECTION - fill замечен, защита ещё не размещена
// PROTECTED          - SL и TP активны в одной oco-группе
// RESOLVED           - один защитный исполнен, второй отменён
var ValidProtectionTransitions = map[string][]string{
	models.ProtectionNone:     {models.ProtectionPending},
	models.ProtectionPending:  {models.ProtectionActive},
	models.ProtectionActive:   {models.ProtectionResolved},
	models.ProtectionResolved: {},
}

// CanTransition проверяет допустимость перехода
func CanTransition(from, to string) bool {
	for _, allowed := range ValidProtectionTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// TransitionError - попытка недопустимого перехода
type TransitionError struct {
	OrderID string
	From    string
	To      string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid protection transition %s -> %s for order %s", e.From, e.To, e.OrderID)
}
