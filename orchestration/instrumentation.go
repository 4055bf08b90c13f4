package orchestration

// Span names for distributed tracing. Metric names live in the telemetry
// package so every component reports under one namespace.
const (
	// SpanPipelineRun covers one Controller.Run call.
	SpanPipelineRun = "pipeline.run"

	// SpanPromptCompose covers building one generation prompt.
	SpanPromptCompose = "pipeline.prompt.compose"

	// SpanQueryGenerate covers one call to the text-generation service.
	SpanQueryGenerate = "pipeline.generate"

	// SpanAnswerSynthesize covers turning bindings into the final answer.
	SpanAnswerSynthesize = "pipeline.synthesize"
)

// Label values for the pipeline.runs counter.
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
	StatusCanceled  = "canceled"
)

// Values of the synthesizer span attribute, and of the synthesizer
// configuration setting.
const (
	SynthesizerTemplate = "template"
	SynthesizerAI       = "ai"
)

func synthesizerKind(s Synthesizer) string {
	if _, ok := s.(*AISynthesizer); ok {
		return SynthesizerAI
	}
	return SynthesizerTemplate
}
