package telemetry

import (
	"fmt"

	"github.com/RecoveryCode-company/PulsoftMovil/internal/models"
)

// ParseChange 解析变更流消息，还原写入时刻的快照
func ParseChange(values map[string]interface{}) (*models.PatientSnapshot, error) {
	patientID, _ := values["patient_id"].(string)
	if patientID == "" {
		return nil, fmt.Errorf("stream entry missing patient_id")
	}

	fields := make(map[string]string, len(values))
	for k, v := range values {
		str, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("stream entry field %s has type %T", k, v)
		}
		fields[k] = str
	}
	return parseSnapshot(patientID, fields)
}
