package handler

type StackIDParams struct {
	StackID int64 `param:"stack_id"`
}

type BuilderAssignParams struct {
	StackID   int64  `param:"stack_id"`
	BuilderID *int64 `json:"builder_id"`
}

type DrainParams struct {
	Operation  string `json:"operation"`
	BucketName string `json:"bucketName"`
}

type RunParams struct {
	StackID int64  `param:"stack_id"`
	RunID   int64  `param:"run_id"`
	Branch  string `param:"branch"  json:"branch"`
}

type ListRunsParams struct {
	StackID int64 `param:"stack_id"`
	Page    int64 `                 query:"page"`
}

type BuilderParams struct {
	BuilderID     int64  `param:"builder_id"`
	Name          string `json:"name"`
	Hostname      string `json:"hostname"`
	Username      string `json:"username"`
	Workspace     string `json:"workspace"`
	SSHPrivateKey string `json:"ssh_private_key"`
}

type APIKeyParams struct {
	ID int64 `param:"id"`
}

type ConfigParams struct {
	QueueSize        int64 `json:"queue_size"`
	RunRetentionDays int64 `json:"run_retention_days"`
	DrainPageSize    int32 `json:"drain_page_size"`
}
