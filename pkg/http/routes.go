package http

const (
	Ping    = "Ping"
	Version = "Version"
	Notify  = "Notify"

	Deploy           = "Deploy"
	DeploymentStatus = "DeploymentStatus"
	ListDeployments  = "ListDeployments"
	ListServices     = "ListServices"

	CleanupService = "CleanupService"
	CleanupPreview = "CleanupPreview"
	CleanupAll     = "CleanupAll"
)
