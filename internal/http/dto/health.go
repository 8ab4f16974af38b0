package dto

import "time"

type HealthResponse struct {
	Status    string            `json:"status"`
	Cache     string            `json:"cache"`
	Services  map[string]string `json:"services"`
	Database  string            `json:"database"`
	Timestamp time.Time         `json:"timestamp"`
}
