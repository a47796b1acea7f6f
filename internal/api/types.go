package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Subscription describes a subscription in a transport-friendly format.
type Subscription struct {
	Subscriber   string   `json:"subscriber"`
	Creator      int64    `json:"creator"`
	CreatorName  string   `json:"creatorName,omitempty"`
	Watermark    string   `json:"watermark,omitempty"`
	RecentCount  int      `json:"recentCount"`
	IsLive       bool     `json:"isLive"`
	TracksLive   bool     `json:"tracksLive"`
	ExcludeTypes []string `json:"excludeTypes,omitempty"`
	ExcludeRegex []string `json:"excludeRegex,omitempty"`
	CreatedAt    string   `json:"createdAt,omitempty"`
	UpdatedAt    string   `json:"updatedAt,omitempty"`
}

// CycleStatus summarizes one polling cycle.
type CycleStatus struct {
	ID               string `json:"id"`
	StartedAt        string `json:"startedAt"`
	FinishedAt       string `json:"finishedAt"`
	DurationMillis   int64  `json:"durationMs"`
	Subscriptions    int    `json:"subscriptions"`
	Processed        int    `json:"processed"`
	Skipped          int    `json:"skipped"`
	FetchFailures    int    `json:"fetchFailures"`
	Notified         int    `json:"notified"`
	DeliveryFailures int    `json:"deliveryFailures"`
	LiveEvents       int    `json:"liveEvents"`
	LiveUnavailable  bool   `json:"liveUnavailable"`
	Cancelled        bool   `json:"cancelled"`
}

// SchedulerStatus mirrors the polling loop's health.
type SchedulerStatus struct {
	Running   bool         `json:"running"`
	LastError string       `json:"lastError,omitempty"`
	LastCycle *CycleStatus `json:"lastCycle,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running       bool            `json:"running"`
	PID           int             `json:"pid"`
	DatabasePath  string          `json:"databasePath"`
	LockFilePath  string          `json:"lockFilePath"`
	Subscriptions int             `json:"subscriptions"`
	Scheduler     SchedulerStatus `json:"scheduler"`
}

// SubscriptionListResponse wraps a collection of subscriptions.
type SubscriptionListResponse struct {
	Items []Subscription `json:"items"`
}

// ErrorResponse is returned with every non-2xx status.
type ErrorResponse struct {
	Error string `json:"error"`
}
