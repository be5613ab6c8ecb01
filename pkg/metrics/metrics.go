package metrics

/*
Labels and so on for metrics used in servicereload.
*/

const (
	LabelCommand = "command"
	LabelSuccess = "success"
)
