package pipeline

import (
	"go.uber.org/zap"

	"github.com/sells-group/tacit-cli/internal/model"
)

// Emitter receives progress events as the pipeline moves. Implementations
// must tolerate being called from the pool's settle goroutine.
type Emitter interface {
	Emit(event model.ProgressEvent)
}

// LogEmitter writes every event to the global logger.
type LogEmitter struct{}

func (LogEmitter) Emit(event model.ProgressEvent) {
	fields := make([]zap.Field, 0, len(event.Data)+1)
	fields = append(fields, zap.Time("at", event.Timestamp))
	for k, v := range event.Data {
		fields = append(fields, zap.Any(k, v))
	}
	zap.L().Info("pipeline: "+string(event.Type), fields...)
}

// NopEmitter discards all events.
type NopEmitter struct{}

func (NopEmitter) Emit(model.ProgressEvent) {}

// EmitterFunc adapts a function to Emitter.
type EmitterFunc func(model.ProgressEvent)

func (f EmitterFunc) Emit(event model.ProgressEvent) { f(event) }
