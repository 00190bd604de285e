package taskname

const (
	// Milestone tasks
	MilestoneExpirySweep     = "milestone:expiry:sweep"
	MilestoneAnniversaryScan = "milestone:anniversary:scan"

	// Detection tasks
	DetectionStaleReap = "detection:stale:reap"
)

// Queue names, weighted in the worker config.
const (
	QueueCritical = "critical"
	QueueDefault  = "default"
	QueueLow      = "low"
)
