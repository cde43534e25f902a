package evaluator

import (
	"github.com/RecoveryCode-company/PulsoftMovil/internal/models"
)

// Evaluator 阈值评估器（纯函数，无 I/O）
type Evaluator struct {
	alert   AlertRules
	display DisplayRules
}

// NewEvaluator 创建评估器
func NewEvaluator(alert AlertRules, display DisplayRules) *Evaluator {
	return &Evaluator{alert: alert, display: display}
}

// Evaluate 计算快照的报警分类，两条规则同时命中时 high-cardio 优先
func (e *Evaluator) Evaluate(s models.PatientSnapshot) models.AlertClassification {
	if e.isHighCardio(s) {
		return models.ClassificationHighCardio
	}
	if e.isCombined(s) {
		return models.ClassificationCombined
	}
	return models.ClassificationNone
}

func (e *Evaluator) isHighCardio(s models.PatientSnapshot) bool {
	return s.Cardiovascular > e.alert.HighCardio
}

func (e *Evaluator) isCombined(s models.PatientSnapshot) bool {
	return s.Sudor > e.alert.CombinedSudor &&
		s.Temperatura > e.alert.CombinedTemperatura &&
		s.Cardiovascular > e.alert.CombinedCardio
}

// DisplayWarnings 返回超过弹窗阈值的字段名，没有则返回空
func (e *Evaluator) DisplayWarnings(s models.PatientSnapshot) []string {
	warnings := make([]string, 0, 3)
	if s.Cardiovascular >= e.display.Cardio {
		warnings = append(warnings, "cardiovascular")
	}
	if s.Sudor >= e.display.Sudor {
		warnings = append(warnings, "sudor")
	}
	if s.Temperatura >= e.display.Temperatura {
		warnings = append(warnings, "temperatura")
	}
	return warnings
}
