package evaluator

import "github.com/RecoveryCode-company/PulsoftMovil/internal/config"

// AlertRules 推送报警阈值（严格大于）
type AlertRules struct {
	HighCardio          float64 // cardiovascular > HighCardio
	CombinedSudor       float64
	CombinedTemperatura float64
	CombinedCardio      float64
}

// DefaultAlertRules 默认推送阈值
func DefaultAlertRules() AlertRules {
	return AlertRules{
		HighCardio:          120,
		CombinedSudor:       70,
		CombinedTemperatura: 38,
		CombinedCardio:      100,
	}
}

// DisplayRules 客户端弹窗提示阈值（大于等于，任一命中即提示）
//
// 与 AlertRules 的汗液、体温阈值不一致，两套规则分别配置，不合并。
type DisplayRules struct {
	Cardio      float64
	Sudor       float64
	Temperatura float64
}

// DefaultDisplayRules 默认弹窗阈值
func DefaultDisplayRules() DisplayRules {
	return DisplayRules{
		Cardio:      100,
		Sudor:       4000,
		Temperatura: 15,
	}
}

// RulesFromConfig 从配置构建两套规则
func RulesFromConfig(cfg *config.Config) (AlertRules, DisplayRules) {
	alert := AlertRules{
		HighCardio:          cfg.Alarm.Rules.HighCardio,
		CombinedSudor:       cfg.Alarm.Rules.CombinedSudor,
		CombinedTemperatura: cfg.Alarm.Rules.CombinedTemperatura,
		CombinedCardio:      cfg.Alarm.Rules.CombinedCardio,
	}
	display := DisplayRules{
		Cardio:      cfg.Alarm.Display.Cardio,
		Sudor:       cfg.Alarm.Display.Sudor,
		Temperatura: cfg.Alarm.Display.Temperatura,
	}
	return alert, display
}
