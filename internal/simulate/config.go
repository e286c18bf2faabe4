package simulate

import "time"

// Config holds configuration for a simulated assembly session.
type Config struct {
	BaseURL       string        // Base URL of the service
	People        int           // Number of attendees to register
	Interventions int           // Number of interventions to submit
	DuplicateRate float64       // Share of interventions retried with the same id
	DecrementRate float64       // Share of interventions undone after submission
	Workers       int           // Number of concurrent workers
	Timeout       time.Duration // HTTP request timeout
	SettleTimeout time.Duration // How long to wait for the queue to drain
	Seed          uint64        // Seed for the plan generator; 0 picks one from the clock
	Verbose       bool          // Enable verbose logging
}

// Stats holds run statistics.
type Stats struct {
	PeopleRegistered int
	Submitted        int
	Accepted         int
	Duplicate        int
	Failed           int
	Decrements       int
	StartTime        time.Time
	EndTime          time.Time
	Duration         time.Duration
}

// Submission is one intervention sent to the service.
type Submission struct {
	ID     string `json:"id"`
	Gender string `json:"gender"`
	Type   string `json:"type"`
}

// AckResponse represents the response from an intervention submission.
type AckResponse struct {
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
}

// statsReport is the subset of GET /assemblies/{id}/stats the run checks.
type statsReport struct {
	Stats struct {
		TotalInterventions int                       `json:"total_interventions"`
		ByGender           map[string]map[string]int `json:"by_gender"`
		ByType             map[string]int            `json:"by_type"`
		Unclassified       int                       `json:"unclassified"`
	} `json:"stats"`
	Attendance struct {
		Total    int            `json:"total"`
		ByGender map[string]int `json:"by_gender"`
	} `json:"attendance"`
}
