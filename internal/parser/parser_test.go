package parser

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crm-sync/internal/models"
)

func record(payload string) *models.ChatRecord {
	return &models.ChatRecord{
		ID:        7,
		SessionID: "5511999999999",
		Message:   json.RawMessage(payload),
		CompanyID: "sp3",
		CreatedAt: time.Date(2025, 3, 10, 14, 32, 0, 0, time.UTC),
	}
}

func TestParsePlainObject(t *testing.T) {
	msg := Parse(record(`{"type":"human","content":"oi, tudo bem?"}`))

	assert.Equal(t, models.TypeHuman, msg.Type)
	assert.Equal(t, "oi, tudo bem?", msg.Text)
	assert.Equal(t, "5511999999999", msg.ConversationKey)
	assert.Equal(t, "14:32", msg.Time)
	assert.False(t, msg.IsImage)
	assert.False(t, msg.SentByCRM)
}

func TestParseDoubleEncodedJSON(t *testing.T) {
	inner := `{"type":"ai","content":"resposta do agente"}`
	raw, err := json.Marshal(inner)
	require.NoError(t, err)

	msg := Parse(record(string(raw)))

	assert.Equal(t, models.TypeAI, msg.Type)
	assert.Equal(t, "resposta do agente", msg.Text)
}

func TestParseMessagesArrayJoined(t *testing.T) {
	msg := Parse(record(`{"type":"ai","messages":["primeira parte","segunda parte"]}`))

	assert.Equal(t, "primeira parte\n\nsegunda parte", msg.Text)
}

func TestParseBrokenPayloadFallsBackToOpaqueText(t *testing.T) {
	msg := Parse(record(`{"type": truncated garbage`))

	assert.Equal(t, models.TypeAI, msg.Type)
	assert.NotEmpty(t, msg.Text)
	assert.Contains(t, msg.Text, "truncated garbage")
}

func TestParsePlainString(t *testing.T) {
	msg := Parse(record(`"mensagem solta"`))

	assert.Equal(t, models.TypeAI, msg.Type)
	assert.Equal(t, "mensagem solta", msg.Text)
}

func TestParseImageByExtension(t *testing.T) {
	msg := Parse(record(`{"content":"https://bucket.s3.amazonaws.com/foto.jpeg"}`))

	assert.True(t, msg.IsImage)
	assert.Equal(t, models.TypeImage, msg.Type)
	assert.Equal(t, "https://bucket.s3.amazonaws.com/foto.jpeg", msg.Text)
}

func TestParseAudioFieldPresence(t *testing.T) {
	msg := Parse(record(`{"type":"human","audio":"https://cdn/x/voz","content":""}`))

	assert.True(t, msg.IsAudio)
	// Tipo explícito do payload não é sobrescrito por mídia não-vídeo.
	assert.Equal(t, models.TypeHuman, msg.Type)
	assert.Equal(t, "https://cdn/x/voz", msg.Text, "texto vazio recebe a URL da mídia")
}

func TestParseMsgStyleAudioMarker(t *testing.T) {
	msg := Parse(record(`{"msgStyle":"audio","content":"transcrição do áudio"}`))

	assert.True(t, msg.IsAudio)
	assert.Equal(t, models.TypeAudio, msg.Type)
	assert.Equal(t, "transcrição do áudio", msg.Text)
}

func TestParseVideoAlwaysForcesType(t *testing.T) {
	msg := Parse(record(`{"type":"human","video":"https://cdn/v/clip.mp4"}`))

	assert.True(t, msg.IsVideo)
	assert.Equal(t, models.TypeVideo, msg.Type)
	assert.Equal(t, "https://cdn/v/clip.mp4", msg.Text)
}

func TestParseVideoByExtensionWithoutExplicitType(t *testing.T) {
	msg := Parse(record(`{"content":"https://cdn/v/demo.mp4"}`))

	assert.True(t, msg.IsVideo)
	assert.Equal(t, models.TypeVideo, msg.Type)
}

func TestParseAudioSentStyle(t *testing.T) {
	msg := Parse(record(`{"type":"ai","msgStyle":"audio_sent","sentByCRM":true,"content":"🎤 Áudio enviado"}`))

	assert.True(t, msg.IsAudioSent)
	assert.True(t, msg.IsAudio)
	assert.True(t, msg.SentByCRM)
	assert.Equal(t, "🎤 Áudio enviado", msg.Text)
}

func TestParsePlaceholderReplacedByMediaURL(t *testing.T) {
	msg := Parse(record(`{"msgStyle":"audio_sent","content":"🎤 Áudio enviado","url":"https://cdn/a/voz.ogg"}`))

	assert.True(t, msg.IsAudio)
	assert.Equal(t, "https://cdn/a/voz.ogg", msg.Text)
}

func TestParseSystemAuditMessage(t *testing.T) {
	msg := Parse(record(`{"type":"system","msgStyle":"success","content":"✅ IA ativada por Ana em 10/03/2025 14:32","sentByCRM":true}`))

	assert.Equal(t, models.TypeSystem, msg.Type)
	assert.Equal(t, models.StyleSuccess, msg.MsgStyle)
	assert.Contains(t, msg.Text, "IA ativada")
}

func TestParseFollowupFlags(t *testing.T) {
	msg := Parse(record(`{"type":"ai","isFollowup":true,"followupStep":3,"content":"lembrete automático"}`))

	assert.True(t, msg.IsFollowup)
	assert.Equal(t, 3, msg.FollowupStep)
}

func TestParseDataURIAudio(t *testing.T) {
	msg := Parse(record(`{"url":"data:audio/ogg;base64,T2dnUw=="}`))

	assert.True(t, msg.IsAudio)
	assert.Equal(t, models.TypeAudio, msg.Type)
	assert.Equal(t, "data:audio/ogg;base64,T2dnUw==", msg.Text)
}

func TestParseBareStringURLClassified(t *testing.T) {
	msg := Parse(record(`"https://cdn.example.com/arquivo.png"`))

	assert.True(t, msg.IsImage)
	assert.Equal(t, models.TypeImage, msg.Type)
	assert.Equal(t, "https://cdn.example.com/arquivo.png", msg.Text)
}

func TestParseNumberPayloadStringified(t *testing.T) {
	msg := Parse(record(`42`))

	assert.Equal(t, "42", msg.Text)
	assert.Equal(t, models.TypeAI, msg.Type)
}
