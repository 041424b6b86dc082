package viewer

// Step is one pass of a mode pipeline.
type Step string

const (
	StepUpdateVolume     Step = "updateVolume"
	StepUpdateSegment    Step = "updateSegment"
	StepClipSegment      Step = "clipSegment"
	StepUpdateSegmentSDF Step = "updateSegmentSDF"
	StepRender           Step = "render"
)

// Steps within a stage run concurrently; a stage starts only after every step
// of the previous stage succeeded.
var compositeStages = [][]Step{
	{StepUpdateVolume, StepUpdateSegment},
	{StepClipSegment},
	{StepUpdateSegmentSDF},
	{StepRender},
}

var pipelines = map[Mode][][]Step{
	ModeSegment:       {{StepUpdateSegment}, {StepRender}},
	ModeVolume:        {{StepUpdateVolume}, {StepRender}},
	ModeVolumeSegment: compositeStages,
	ModeLayer:         compositeStages,
	ModeGridLayer:     compositeStages,
}

// Pipeline returns a copy of the stages for m.
func Pipeline(m Mode) [][]Step {
	src := pipelines[m]
	out := make([][]Step, len(src))
	for i, st := range src {
		out[i] = append([]Step(nil), st...)
	}
	return out
}
