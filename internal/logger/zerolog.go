package logger

import (
	"io"

	"github.com/rs/zerolog"
)

// ZerologAdapter implements Logger. Every entry carries a component field.
type ZerologAdapter struct {
	logger zerolog.Logger
}

func NewZerolog(writer io.Writer, level zerolog.Level) *ZerologAdapter {
	logger := zerolog.New(writer).
		Level(level).
		With().
		Timestamp().
		Logger()

	return &ZerologAdapter{logger: logger}
}

func (z *ZerologAdapter) Info(component, message string, fields map[string]interface{}) {
	event := z.logger.Info().Str("component", component)
	z.emit(event, message, fields)
}

func (z *ZerologAdapter) Error(component string, err error, fields map[string]interface{}) {
	event := z.logger.Error().Str("component", component).Err(err)
	z.emit(event, "operation failed", fields)
}

func (z *ZerologAdapter) Warning(component, message string, fields map[string]interface{}) {
	event := z.logger.Warn().Str("component", component)
	z.emit(event, message, fields)
}

func (z *ZerologAdapter) Debug(component, message string, fields map[string]interface{}) {
	event := z.logger.Debug().Str("component", component)
	z.emit(event, message, fields)
}

func (z *ZerologAdapter) emit(event *zerolog.Event, message string, fields map[string]interface{}) {
	if event == nil {
		return
	}
	for k, v := range fields {
		event = event.Interface(k, v)
	}
	event.Msg(message)
}
