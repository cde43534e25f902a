package models

import "time"

// UserType 用户类型
type UserType string

const (
	UserTypePatient   UserType = "patient"
	UserTypeCaregiver UserType = "caregiver"
)

// User 用户（对应 users 表，仅保留报警链路需要的字段）
type User struct {
	UserID      string    `json:"user_id" db:"user_id"`
	UserType    UserType  `json:"user_type" db:"user_type"`
	DisplayName string    `json:"display_name" db:"display_name"`
	PairingCode *string   `json:"pairing_code,omitempty" db:"pairing_code"` // 仅患者
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// CaregiverLink 看护人-患者绑定（对应 caregiver_patient_links 表）
type CaregiverLink struct {
	LinkID      string    `json:"link_id" db:"link_id"`
	CaregiverID string    `json:"caregiver_id" db:"caregiver_id"`
	PatientID   string    `json:"patient_id" db:"patient_id"`
	LinkedAt    time.Time `json:"linked_at" db:"linked_at"`
}

// DeliveryToken 设备推送 token（对应 delivery_tokens 表）
type DeliveryToken struct {
	UserID    string    `json:"user_id" db:"user_id"`
	Token     string    `json:"token" db:"token"`
	Timestamp time.Time `json:"timestamp" db:"timestamp"` // 仅用于记录，不做过期判断
}

// Notification 推送内容
type Notification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// PushMessage 单条推送
type PushMessage struct {
	Token        string       `json:"token"`
	Notification Notification `json:"notification"`
}

// Note 患者笔记（对应 notes 表）
type Note struct {
	NoteID    string    `json:"note_id" db:"note_id"`
	PatientID string    `json:"patient_id" db:"patient_id"`
	Content   string    `json:"content" db:"content"`
	Analysis  string    `json:"analysis,omitempty" db:"analysis"` // 外部分析结果，当前未填充
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
