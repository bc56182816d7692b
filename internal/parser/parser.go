package parser

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"crm-sync/internal/models"
)

// Textos substitutos gravados pelo caminho de envio quando a mensagem é pura
// mídia. O parser os reconhece para trocá-los pela URL real quando ela existe
// no payload.
const (
	PlaceholderAudio = "🎤 Áudio enviado"
	PlaceholderImage = "📷 Imagem enviada"
	PlaceholderVideo = "🎥 Vídeo enviado"
)

var (
	imageExtRe = regexp.MustCompile(`(?i)\.(jpg|jpeg|png|gif|webp|svg)(\?|$)`)
	audioExtRe = regexp.MustCompile(`(?i)\.(ogg|mp3|wav|m4a|aac)(\?|$)`)
	videoExtRe = regexp.MustCompile(`(?i)\.(mp4|webm|mkv|mov)(\?|$)`)
)

// Campos inspecionados, em ordem, atrás de uma URL de mídia.
var mediaFields = []string{"url", "mediaUrl", "fileUrl", "audio", "image", "video", "ptt"}

// Parse converte uma linha crua do histórico na visão canônica. É uma função
// total: qualquer payload, por mais quebrado que esteja, vira uma mensagem
// exibível — no pior caso um texto opaco do tipo ai.
func Parse(record *models.ChatRecord) models.Message {
	msg := models.Message{
		ID:              record.ID,
		ConversationKey: record.SessionID,
		Type:            models.TypeAI,
		Time:            record.CreatedAt.Format("15:04"),
	}

	payload, ok := decodePayload(record.Message)
	if !ok {
		msg.Text = rawAsText(record.Message)
		return msg
	}

	switch v := payload.(type) {
	case string:
		msg.Text = v
		classifyByPattern(&msg, v)
		applyMediaType(&msg, false)
		return msg
	case map[string]interface{}:
		parseObject(&msg, v)
		return msg
	default:
		msg.Text = stringify(payload)
		return msg
	}
}

// decodePayload decodifica o JSON da coluna message, desembrulhando um nível
// de dupla codificação (string contendo JSON), que o pipeline produz com
// frequência.
func decodePayload(raw json.RawMessage) (interface{}, bool) {
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, false
	}
	if s, ok := v.(string); ok {
		trimmed := strings.TrimSpace(s)
		if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
			var inner interface{}
			if err := json.Unmarshal([]byte(trimmed), &inner); err == nil {
				return inner, true
			}
		}
	}
	return v, true
}

func parseObject(msg *models.Message, obj map[string]interface{}) {
	explicitType := false
	if t, ok := obj["type"].(string); ok && t != "" {
		msg.Type = t
		explicitType = true
	}
	if style, ok := obj["msgStyle"].(string); ok {
		msg.MsgStyle = style
	}
	if sender, ok := obj["sender"].(string); ok {
		msg.Sender = sender
	}
	if sent, ok := obj["sentByCRM"].(bool); ok {
		msg.SentByCRM = sent
	}
	if fu, ok := obj["isFollowup"].(bool); ok {
		msg.IsFollowup = fu
	}
	if step, ok := obj["followupStep"].(float64); ok {
		msg.FollowupStep = int(step)
	}

	msg.Text = extractText(obj)

	mediaURL := ""
	for _, field := range mediaFields {
		if s, ok := obj[field].(string); ok && s != "" {
			mediaURL = s
			break
		}
	}
	if mediaURL != "" && (msg.Text == "" || isPlaceholder(msg.Text)) {
		msg.Text = mediaURL
	}

	// Prioridade de classificação: marcador explícito (type/msgStyle),
	// presença do campo cru, extensão/prefixo no texto.
	switch {
	case classifyByMarker(msg):
	case classifyByField(msg, obj):
	default:
		classifyByPattern(msg, msg.Text)
	}

	msg.IsAudioSent = msg.MsgStyle == "audio_sent"
	if msg.IsAudioSent {
		msg.IsAudio = true
	}

	applyMediaType(msg, explicitType)

	if msg.Text == "" {
		msg.Text = stringify(obj)
	}
}

// extractText procura o corpo textual nos formatos conhecidos do pipeline:
// messages[] (concatenado), content, text ou message aninhado.
func extractText(obj map[string]interface{}) string {
	if arr, ok := obj["messages"].([]interface{}); ok && len(arr) > 0 {
		parts := make([]string, 0, len(arr))
		for _, item := range arr {
			switch m := item.(type) {
			case string:
				parts = append(parts, m)
			case map[string]interface{}:
				if s := extractText(m); s != "" {
					parts = append(parts, s)
				}
			}
		}
		if len(parts) > 0 {
			return strings.Join(parts, "\n\n")
		}
	}
	for _, key := range []string{"content", "text", "message"} {
		switch v := obj[key].(type) {
		case string:
			if v != "" {
				return v
			}
		case map[string]interface{}:
			if s := extractText(v); s != "" {
				return s
			}
		}
	}
	return ""
}

// classifyByMarker resolve o tipo de mídia a partir de type/msgStyle
// explícitos no payload.
func classifyByMarker(msg *models.Message) bool {
	for _, marker := range []string{msg.Type, msg.MsgStyle} {
		switch marker {
		case models.TypeImage, "image_sent":
			msg.IsImage = true
			return true
		case models.TypeAudio, "audio_sent":
			msg.IsAudio = true
			return true
		case models.TypeVideo:
			msg.IsVideo = true
			return true
		}
	}
	return false
}

// classifyByField resolve pelo campo cru presente no objeto.
func classifyByField(msg *models.Message, obj map[string]interface{}) bool {
	if _, ok := obj["video"]; ok {
		msg.IsVideo = true
		return true
	}
	if _, ok := obj["audio"]; ok {
		msg.IsAudio = true
		return true
	}
	if _, ok := obj["ptt"]; ok {
		msg.IsAudio = true
		return true
	}
	if _, ok := obj["image"]; ok {
		msg.IsImage = true
		return true
	}
	return false
}

// classifyByPattern resolve pela extensão ou prefixo data: do texto.
func classifyByPattern(msg *models.Message, candidate string) {
	if candidate == "" {
		return
	}
	switch {
	case videoExtRe.MatchString(candidate) || strings.HasPrefix(candidate, "data:video/"):
		msg.IsVideo = true
	case audioExtRe.MatchString(candidate) || strings.HasPrefix(candidate, "data:audio/"):
		msg.IsAudio = true
	case imageExtRe.MatchString(candidate) || strings.HasPrefix(candidate, "data:image/"):
		msg.IsImage = true
	}
}

// applyMediaType ajusta o tipo canônico: vídeo sempre força o tipo; demais
// mídias só quando o payload não trouxe um tipo explícito.
func applyMediaType(msg *models.Message, explicitType bool) {
	if msg.IsVideo {
		msg.Type = models.TypeVideo
		return
	}
	if explicitType {
		return
	}
	switch {
	case msg.IsImage:
		msg.Type = models.TypeImage
	case msg.IsAudio:
		msg.Type = models.TypeAudio
	}
}

func isPlaceholder(s string) bool {
	switch s {
	case PlaceholderAudio, PlaceholderImage, PlaceholderVideo:
		return true
	}
	return false
}

func rawAsText(raw json.RawMessage) string {
	s := strings.TrimSpace(string(raw))
	s = strings.Trim(s, `"`)
	return s
}

func stringify(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}
