package models

import "time"

// AlertClassification 报警分类
type AlertClassification string

const (
	ClassificationNone       AlertClassification = "none"
	ClassificationHighCardio AlertClassification = "high-cardio"
	ClassificationCombined   AlertClassification = "combined"
)

// IsAlert 是否为报警分类（非 none）
func (c AlertClassification) IsAlert() bool {
	return c == ClassificationHighCardio || c == ClassificationCombined
}

// AlertEpisode 患者报警周期状态（每个患者一份，由 tracker 独占写入）
type AlertEpisode struct {
	PatientID      string              `json:"patient_id"`
	EpisodeID      string              `json:"episode_id,omitempty"`
	IsOpen         bool                `json:"is_open"`
	OpenedAt       *time.Time          `json:"opened_at,omitempty"`
	Classification AlertClassification `json:"classification"`
	LastVersion    int64               `json:"last_version"`
	Generation     string              `json:"generation,omitempty"` // LastVersion 所属的遥测节点 generation
}

// EpisodeEventType 报警周期事件类型
type EpisodeEventType string

const (
	EpisodeOpened EpisodeEventType = "opened"
	EpisodeClosed EpisodeEventType = "closed"
)

// EpisodeEvent 报警周期状态迁移事件
type EpisodeEvent struct {
	Type           EpisodeEventType    `json:"type"`
	PatientID      string              `json:"patient_id"`
	EpisodeID      string              `json:"episode_id"`
	Classification AlertClassification `json:"classification"`
	Snapshot       PatientSnapshot     `json:"snapshot"`
	At             time.Time           `json:"at"`
}

// EpisodeRecord 报警周期审计记录（对应 alert_episodes 表）
type EpisodeRecord struct {
	EpisodeID      string              `json:"episode_id" db:"episode_id"`
	PatientID      string              `json:"patient_id" db:"patient_id"`
	Classification AlertClassification `json:"classification" db:"classification"`
	OpenedAt       time.Time           `json:"opened_at" db:"opened_at"`
	ClosedAt       *time.Time          `json:"closed_at,omitempty" db:"closed_at"`
	Cardiovascular float64             `json:"cardiovascular" db:"cardiovascular"`
	Sudor          float64             `json:"sudor" db:"sudor"`
	Temperatura    float64             `json:"temperatura" db:"temperatura"`
	Delivered      int                 `json:"delivered" db:"delivered"` // 推送成功数
	Failed         int                 `json:"failed" db:"failed"`       // 推送失败数
	Skipped        bool                `json:"skipped" db:"skipped"`     // 无 token，跳过推送
}
