package log

import (
	"encoding/json"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type zapOut struct {
	core zapcore.Core
}

// ZapOutput returns an Output that re-encodes messages as zap JSON entries,
// one object per line. Fields of structured messages become top-level JSON
// keys, the logger name goes to "logger".
func ZapOutput(w io.Writer) Output {
	enc := zapcore.NewJSONEncoder(zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "logger",
		MessageKey:     "msg",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeName:     zapcore.FullNameEncoder,
	})
	return zapOut{core: zapcore.NewCore(enc, zapcore.AddSync(w), zapcore.DebugLevel)}
}

func (z zapOut) Write(stamp time.Time, debug bool, msg string) {
	level := zapcore.InfoLevel
	if debug {
		level = zapcore.DebugLevel
	}

	head, rawFields, _ := strings.Cut(msg, "\t")
	name, text, ok := strings.Cut(head, ": ")
	if !ok {
		name, text = "", head
	}

	var fields []zapcore.Field
	if rawFields != "" {
		m := map[string]interface{}{}
		if err := json.Unmarshal([]byte(rawFields), &m); err != nil {
			// Not produced by formatMsg, keep it verbatim.
			fields = append(fields, zap.String("fields", rawFields))
		}
		for k, v := range m {
			fields = append(fields, zap.Any(k, v))
		}
	}

	_ = z.core.Write(zapcore.Entry{
		Level:      level,
		Time:       stamp,
		LoggerName: name,
		Message:    text,
	}, fields)
}

func (z zapOut) Close() error {
	return z.core.Sync()
}
