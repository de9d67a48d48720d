package jobs

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskCostRedistribute runs one cost-redistribution pass.
	TaskCostRedistribute = "gl:costredist"
	// TaskPostingSubmit hands a materialised batch to the posting system.
	TaskPostingSubmit = "gl:posting"
)
