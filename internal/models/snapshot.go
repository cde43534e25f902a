package models

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrInvalidSnapshot 设备上报的数据不符合 schema 或超出取值范围
var ErrInvalidSnapshot = errors.New("invalid snapshot")

// PatientSnapshot 患者最新生理数据快照（对应 Redis hash pulsoft:patient:{id}）
type PatientSnapshot struct {
	PatientID      string    `json:"patient_id"`
	Cardiovascular float64   `json:"cardiovascular"` // 心率（bpm）
	Sudor          float64   `json:"sudor"`          // 汗液传感器读数
	Temperatura    float64   `json:"temperatura"`    // 体温传感器读数
	PanicMode      bool      `json:"panicMode"`
	UpdatedAt      time.Time `json:"updatedAt"`
	Version        int64     `json:"version"`              // 每次写入 +1，由存储层维护
	Generation     string    `json:"generation,omitempty"` // 节点创建时生成，节点重建后 version 从 1 重新计数
}

// DefaultSnapshot 返回未初始化患者的默认快照 {0,0,0,false}
func DefaultSnapshot(patientID string) PatientSnapshot {
	return PatientSnapshot{PatientID: patientID}
}

// VitalsReading 设备上报的部分更新（未出现的字段保持原值）
type VitalsReading struct {
	Cardiovascular *float64 `json:"cardiovascular,omitempty"`
	Sudor          *float64 `json:"sudor,omitempty"`
	Temperatura    *float64 `json:"temperatura,omitempty"`
}

// VitalLimits 接入边界的取值范围
type VitalLimits struct {
	CardioMax      float64
	SudorMax       float64
	TemperaturaMin float64
	TemperaturaMax float64
}

// DefaultVitalLimits 默认取值范围
func DefaultVitalLimits() VitalLimits {
	return VitalLimits{
		CardioMax:      300,
		SudorMax:       10000,
		TemperaturaMin: -10,
		TemperaturaMax: 60,
	}
}

// IsEmpty 没有任何字段
func (r VitalsReading) IsEmpty() bool {
	return r.Cardiovascular == nil && r.Sudor == nil && r.Temperatura == nil
}

// Validate 校验上报数据，拒绝 NaN/Inf 及超出范围的值
func (r VitalsReading) Validate(limits VitalLimits) error {
	if r.IsEmpty() {
		return fmt.Errorf("%w: no vital fields present", ErrInvalidSnapshot)
	}
	if err := checkRange("cardiovascular", r.Cardiovascular, 0, limits.CardioMax); err != nil {
		return err
	}
	if err := checkRange("sudor", r.Sudor, 0, limits.SudorMax); err != nil {
		return err
	}
	return checkRange("temperatura", r.Temperatura, limits.TemperaturaMin, limits.TemperaturaMax)
}

func checkRange(field string, v *float64, min, max float64) error {
	if v == nil {
		return nil
	}
	if math.IsNaN(*v) || math.IsInf(*v, 0) {
		return fmt.Errorf("%w: %s is not a finite number", ErrInvalidSnapshot, field)
	}
	if *v < min || *v > max {
		return fmt.Errorf("%w: %s=%v out of range [%v, %v]", ErrInvalidSnapshot, field, *v, min, max)
	}
	return nil
}
