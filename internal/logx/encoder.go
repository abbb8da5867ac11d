package logx

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"
)

const (
	colorReset  = "\x1b[0m"
	colorBold   = "\x1b[1m"
	colorTime   = "\x1b[38;5;108m" // muted aqua-green
	colorComp   = "\x1b[38;5;109m" // soft blue
	colorWarn   = "\x1b[38;5;214m"
	colorWarnBg = "\x1b[48;5;58m"
	colorErr    = "\x1b[38;5;167m"
	colorErrBg  = "\x1b[48;5;88m"
	colorField  = "\x1b[38;5;142m"
)

// minimalEncoder renders a calm, single-line console format:
//
//	13:04:05  engine.poll  Resource start timeout  resource=db monitor=...
type minimalEncoder struct {
	zapcore.Encoder
}

func newMinimalEncoder() *minimalEncoder {
	return &minimalEncoder{Encoder: zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())}
}

func (enc *minimalEncoder) Clone() zapcore.Encoder {
	return &minimalEncoder{Encoder: enc.Encoder.Clone()}
}

func (enc *minimalEncoder) EncodeEntry(ent zapcore.Entry, fields []zapcore.Field) (*buffer.Buffer, error) {
	line := buffer.NewPool().Get()

	line.AppendString(colorTime)
	line.AppendString(ent.Time.Format("15:04:05"))
	line.AppendString(colorReset)

	if ent.Level != zapcore.InfoLevel {
		line.AppendString("  ")
		line.AppendString(levelTag(ent.Level))
	}

	if ent.LoggerName != "" {
		line.AppendString("  ")
		line.AppendString(colorComp)
		line.AppendString(ent.LoggerName)
		line.AppendString(colorReset)
	}

	line.AppendString("  ")
	line.AppendString(ent.Message)

	if len(fields) > 0 {
		line.AppendString("  ")
		line.AppendString(colorField)
		line.AppendString(joinFields(fields))
		line.AppendString(colorReset)
	}

	line.AppendString("\n")
	return line, nil
}

func levelTag(level zapcore.Level) string {
	switch level {
	case zapcore.WarnLevel:
		return colorBold + colorWarnBg + colorWarn + "WARN" + colorReset
	case zapcore.ErrorLevel:
		return colorBold + colorErrBg + colorErr + "ERROR" + colorReset
	case zapcore.DPanicLevel, zapcore.PanicLevel, zapcore.FatalLevel:
		return colorBold + colorErrBg + colorErr + level.CapitalString() + colorReset
	default:
		return level.CapitalString()
	}
}

func joinFields(fields []zapcore.Field) string {
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f.Key+"="+fieldValue(f))
	}
	return strings.Join(parts, " ")
}

func fieldValue(f zapcore.Field) string {
	switch f.Type {
	case zapcore.StringType:
		return f.String
	case zapcore.Int64Type, zapcore.Int32Type, zapcore.Int16Type, zapcore.Int8Type,
		zapcore.Uint64Type, zapcore.Uint32Type, zapcore.Uint16Type, zapcore.Uint8Type:
		return fmt.Sprintf("%d", f.Integer)
	case zapcore.BoolType:
		return fmt.Sprintf("%t", f.Integer != 0)
	default:
		if f.Interface != nil {
			return fmt.Sprintf("%v", f.Interface)
		}
		return ""
	}
}
