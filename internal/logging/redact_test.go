package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/connectify/internal/config"
)

func TestSecretField(t *testing.T) {
	tl := NewTestLogger()
	tl.Info(context.Background(), "login attempt", Secret("password", config.Secret("hunter22")))

	entries := tl.All()
	require.Len(t, entries, 1)
	obj, ok := entries[0].Context[0].Interface.(zapcore.ObjectMarshaler)
	require.True(t, ok)

	enc := zapcore.NewMapObjectEncoder()
	require.NoError(t, obj.MarshalLogObject(enc))
	assert.Equal(t, "[REDACTED:8]", enc.Fields["password"])
}

func TestRedactedString(t *testing.T) {
	tl := NewTestLogger()
	tl.Info(context.Background(), "refresh", RedactedString("refresh_token", "abcdef"))
	tl.AssertField(t, "refresh", "refresh_token", "[REDACTED:6]")
	tl.AssertNoSecrets(t)
}

func TestRedactingEncoder_FieldsAndPatterns(t *testing.T) {
	base := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	enc, err := NewRedactingEncoder(base, NewDefaultConfig().Redaction)
	require.NoError(t, err)

	buf, err := enc.EncodeEntry(zapcore.Entry{Message: "m"}, []zapcore.Field{
		zap.String("Password", "pw"),
		zap.String("note", "Authorization: Bearer xyz"),
		zap.String("caption", "sunset at the beach"),
		zap.Any("refresh", map[string]string{"v": "x"}),
	})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, `"Password":"[REDACTED]"`)
	assert.Contains(t, out, `"note":"[REDACTED:pattern]"`)
	assert.Contains(t, out, `"caption":"sunset at the beach"`)
	assert.Contains(t, out, `"refresh":"[REDACTED]"`)
}

func TestNewRedactingEncoder_Disabled(t *testing.T) {
	base := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	enc, err := NewRedactingEncoder(base, RedactionConfig{Enabled: false})
	require.NoError(t, err)

	buf, err := enc.EncodeEntry(zapcore.Entry{Message: "m"}, []zapcore.Field{zap.String("password", "pw")})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `"password":"pw"`)
}

func TestNewRedactingEncoder_InvalidPattern(t *testing.T) {
	base := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	_, err := NewRedactingEncoder(base, RedactionConfig{Enabled: true, Patterns: []string{"[a-"}})
	assert.Error(t, err)
}
