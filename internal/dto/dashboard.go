package dto

import "time"

// DashboardSummary aggregates submission progress for a month.
type DashboardSummary struct {
	Month           string    `json:"month"`
	TotalBattalions int       `json:"totalBattalions"`
	TotalModules    int       `json:"totalModules"`
	TotalTopics     int       `json:"totalTopics"`
	Submitted       int       `json:"submitted"`
	Saved           int       `json:"saved"`
	Draft           int       `json:"draft"`
	GeneratedAt     time.Time `json:"generatedAt"`
}
