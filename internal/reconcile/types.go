package reconcile

// Clip is one line's rendered speech.
type Clip struct {
	Path     string
	Duration float64
}

// Segment places one clip on the output track. Consumers insert silence
// when TargetStart lies past the running cursor and speed the clip up
// exactly when ActualDuration exceeds TargetDuration.
type Segment struct {
	Source         string
	TargetStart    float64
	TargetDuration float64
	ActualDuration float64
}
