package services

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"crm-sync/config"
	"crm-sync/internal/models"
	"crm-sync/internal/parser"
	"crm-sync/internal/utils"
)

// Sender é o transporte de saída para o WhatsApp do lead.
type Sender interface {
	SendText(number, text string) error
	SendAudio(number, base64Audio string) error
	SendMedia(number, mediaType, media, caption, fileName string) error
}

// EvolutionClient fala com a Evolution API, o gateway HTTP que entrega as
// mensagens na instância conectada do WhatsApp.
type EvolutionClient struct {
	baseURL    string
	apiKey     string
	instance   string
	delayMs    int
	httpClient *http.Client
}

func NewEvolutionClient(cfg *config.EvolutionConfig) *EvolutionClient {
	return &EvolutionClient{
		baseURL:  cfg.BaseURL,
		apiKey:   cfg.APIKey,
		instance: cfg.Instance,
		delayMs:  cfg.DelayMs,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *EvolutionClient) SendText(number, text string) error {
	return c.post("/message/sendText/"+c.instance, map[string]interface{}{
		"number": number,
		"text":   text,
		"delay":  c.delayMs,
	})
}

func (c *EvolutionClient) SendAudio(number, base64Audio string) error {
	return c.post("/message/sendWhatsAppAudio/"+c.instance, map[string]interface{}{
		"number": number,
		"audio":  base64Audio,
		"delay":  c.delayMs,
	})
}

func (c *EvolutionClient) SendMedia(number, mediaType, media, caption, fileName string) error {
	return c.post("/message/sendMedia/"+c.instance, map[string]interface{}{
		"number":    number,
		"mediatype": mediaType,
		"media":     media,
		"caption":   caption,
		"fileName":  fileName,
		"delay":     c.delayMs,
	})
}

func (c *EvolutionClient) post(path string, payload map[string]interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("erro ao serializar requisição: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("erro ao montar requisição: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("erro ao chamar Evolution API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("Evolution API respondeu %d em %s", resp.StatusCode, path)
	}
	return nil
}

// HistoryWriter grava a linha de saída no histórico compartilhado.
type HistoryWriter interface {
	Append(record *models.ChatRecord) error
}

// ActorLookup resolve o operador que disparou o envio.
type ActorLookup interface {
	GetByID(id int) (*models.User, error)
}

// SendService envia mensagens de saída e registra cada envio confirmado no
// histórico. A ordem importa: primeiro o transporte confirma, só então a
// linha é gravada — um envio que falhou nunca aparece na conversa.
type SendService struct {
	sender    Sender
	history   HistoryWriter
	users     ActorLookup
	s3        *S3Service
	companyID string
}

func NewSendService(sender Sender, history HistoryWriter, users ActorLookup, s3 *S3Service, companyID string) *SendService {
	return &SendService{
		sender:    sender,
		history:   history,
		users:     users,
		s3:        s3,
		companyID: companyID,
	}
}

// SendText entrega texto ao lead e grava a linha ai/sentByCRM correspondente.
func (s *SendService) SendText(telefone, text string, userID *int) error {
	number := utils.CanonicalPhone(telefone)
	if number == "" {
		return fmt.Errorf("telefone inválido: %q", telefone)
	}
	if text == "" {
		return fmt.Errorf("mensagem vazia")
	}

	if err := s.sender.SendText(number, text); err != nil {
		return fmt.Errorf("erro ao enviar mensagem para %s: %w", number, err)
	}

	s.record(number, map[string]interface{}{
		"type":      models.TypeAI,
		"content":   text,
		"sentByCRM": true,
		"sender":    s.actorName(userID),
	})
	return nil
}

// SendAudio entrega uma nota de voz. A linha gravada usa o estilo audio_sent
// com o texto substituto, nunca o base64.
func (s *SendService) SendAudio(telefone, base64Audio string, userID *int) error {
	number := utils.CanonicalPhone(telefone)
	if number == "" {
		return fmt.Errorf("telefone inválido: %q", telefone)
	}
	if base64Audio == "" {
		return fmt.Errorf("áudio vazio")
	}

	if err := s.sender.SendAudio(number, base64Audio); err != nil {
		return fmt.Errorf("erro ao enviar áudio para %s: %w", number, err)
	}

	s.record(number, map[string]interface{}{
		"type":      models.TypeAI,
		"msgStyle":  "audio_sent",
		"content":   parser.PlaceholderAudio,
		"sentByCRM": true,
		"sender":    s.actorName(userID),
	})
	return nil
}

// SendImage sobe a imagem para o S3, entrega a URL pelo transporte e grava a
// linha apontando para a URL pública.
func (s *SendService) SendImage(telefone string, req *models.SendImageRequest) error {
	number := utils.CanonicalPhone(telefone)
	if number == "" {
		return fmt.Errorf("telefone inválido: %q", telefone)
	}
	data, err := base64.StdEncoding.DecodeString(req.Base64File)
	if err != nil {
		return fmt.Errorf("imagem com base64 inválido: %w", err)
	}

	fileName := req.FileName
	if fileName == "" {
		fileName = fmt.Sprintf("%d.jpg", time.Now().UnixNano())
	}
	contentType := req.MimeType
	if contentType == "" {
		contentType = "image/jpeg"
	}

	url, err := s.s3.UploadBytes(data, fileName, contentType)
	if err != nil {
		return fmt.Errorf("erro ao subir imagem: %w", err)
	}

	if err := s.sender.SendMedia(number, "image", url, req.Caption, fileName); err != nil {
		return fmt.Errorf("erro ao enviar imagem para %s: %w", number, err)
	}

	payload := map[string]interface{}{
		"type":      models.TypeAI,
		"msgStyle":  "image",
		"image":     url,
		"content":   req.Caption,
		"sentByCRM": true,
		"sender":    s.actorName(req.UserID),
	}
	s.record(number, payload)
	return nil
}

func (s *SendService) record(sessionID string, payload map[string]interface{}) {
	raw, _ := json.Marshal(payload)
	record := &models.ChatRecord{
		SessionID: sessionID,
		Message:   raw,
		CompanyID: s.companyID,
		CreatedAt: time.Now(),
	}
	if err := s.history.Append(record); err != nil {
		// Envio confirmado mas histórico falhou: o polling não recupera
		// linhas perdidas, só loga para investigação.
		utils.LogError("Mensagem enviada mas não registrada no histórico de %s: %v", sessionID, err)
	}
}

func (s *SendService) actorName(userID *int) string {
	if userID == nil || s.users == nil {
		return ""
	}
	user, err := s.users.GetByID(*userID)
	if err != nil {
		utils.LogWarning("Não foi possível resolver o operador %d: %v", *userID, err)
		return ""
	}
	return user.FirstName()
}
