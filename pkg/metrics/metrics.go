package metrics

/*
Labels and so on for metrics used in berth.
*/

const (
	LabelMethod   = "method"
	LabelRoute    = "route"
	LabelService  = "service"
	LabelSuccess  = "success"
	LabelProvider = "provider"
	LabelStrategy = "strategy"

	// Labels for pipeline metrics
	LabelStage       = "stage"
	LabelEnvironment = "environment"
	LabelTriggerType = "trigger_type"
)
