package rest

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/leadctl/optimizer/internal/application/ingestion"
	"github.com/leadctl/optimizer/internal/application/ingestion/normalizer"
	"github.com/leadctl/optimizer/internal/infrastructure/logger"
	"github.com/leadctl/optimizer/pkg/models"
)

// WebhookHandlers implements the ingestion webhook boundary (spec §6,
// §4.4.1 expansion): each endpoint produces one raw lead and hands it to
// the Ingestion Pipeline, never interpreting anything the core doesn't
// need to. Grounded on the teacher's handlers_webhook.go dispatch shape.
type WebhookHandlers struct {
	pipeline   *ingestion.Pipeline
	metaSecret string
	verifyToken string
	logger     *logger.Logger
}

// NewWebhookHandlers creates a new WebhookHandlers instance.
func NewWebhookHandlers(pipeline *ingestion.Pipeline, metaSecret, verifyToken string, log *logger.Logger) *WebhookHandlers {
	return &WebhookHandlers{
		pipeline:    pipeline,
		metaSecret:  metaSecret,
		verifyToken: verifyToken,
		logger:      log,
	}
}

// HandleGeneric handles POST /webhook/{source} — generic dispatch by
// source token (spec §6).
func (h *WebhookHandlers) HandleGeneric(c *gin.Context) {
	source := leadSourceFromToken(c.Param("source"))
	h.ingestRaw(c, source)
}

// HandleWebsite handles POST /webhook/website.
func (h *WebhookHandlers) HandleWebsite(c *gin.Context) {
	h.ingestRaw(c, models.SourceWebsite)
}

// HandleZapier handles POST /webhook/zapier.
func (h *WebhookHandlers) HandleZapier(c *gin.Context) {
	h.ingestRaw(c, models.SourceThirdParty)
}

// HandleIntegromat handles POST /webhook/integromat.
func (h *WebhookHandlers) HandleIntegromat(c *gin.Context) {
	h.ingestRaw(c, models.SourceThirdParty)
}

// HandleMetaVerify handles GET /webhook/meta: the subscribe-challenge
// reply (spec §6).
func (h *WebhookHandlers) HandleMetaVerify(c *gin.Context) {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	if mode == "subscribe" && token == h.verifyToken && h.verifyToken != "" {
		c.String(http.StatusOK, challenge)
		return
	}
	respondError(c, http.StatusForbidden, "verification failed")
}

// HandleMeta handles POST /webhook/meta: verifies X-Hub-Signature-256
// against app_secret (HMAC-SHA256 of the raw body) before ingesting.
func (h *WebhookHandlers) HandleMeta(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		respondError(c, http.StatusBadRequest, "unable to read request body")
		return
	}
	c.Request.Body = io.NopCloser(bytes.NewReader(body))

	signature := c.GetHeader("X-Hub-Signature-256")
	if !verifyMetaSignature(h.metaSecret, signature, body) {
		h.logger.WarnContext(c.Request.Context(), "meta webhook signature mismatch", "source_ip", getSourceIP(c))
		respondError(c, http.StatusForbidden, "signature verification failed")
		return
	}

	h.ingestRaw(c, models.SourceMetaAds)
}

func verifyMetaSignature(secret, header string, body []byte) bool {
	if secret == "" || header == "" {
		return false
	}
	const prefix = "sha256="
	if !strings.HasPrefix(header, prefix) {
		return false
	}
	expected, err := hex.DecodeString(strings.TrimPrefix(header, prefix))
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	computed := mac.Sum(nil)
	return hmac.Equal(expected, computed)
}

// ingestRaw binds the request body as a free-form payload, runs it through
// the Ingestion Pipeline, and replies with the structured {success, error}
// body spec §6 requires from webhook handlers.
func (h *WebhookHandlers) ingestRaw(c *gin.Context, source models.LeadSource) {
	var fields map[string]any
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		respondWebhookResult(c, http.StatusBadRequest, false, "unable to read request body")
		return
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &fields); err != nil {
			respondWebhookResult(c, http.StatusBadRequest, false, "invalid JSON payload")
			return
		}
	}
	if fields == nil {
		fields = map[string]any{}
	}

	result := h.pipeline.ProcessOne(c.Request.Context(), normalizer.RawPayload{
		Source: source,
		Fields: fields,
		Body:   stringField(fields, "message"),
	})

	if !result.Success {
		h.logger.WarnContext(c.Request.Context(), "webhook ingestion failed", "source", string(source), "error", result.Error)
		respondWebhookResult(c, http.StatusInternalServerError, false, result.Error.Error())
		return
	}

	respondWebhookResult(c, http.StatusOK, true, "")
}

func stringField(fields map[string]any, key string) string {
	if v, ok := fields[key].(string); ok {
		return v
	}
	return ""
}

func leadSourceFromToken(token string) models.LeadSource {
	switch strings.ToLower(token) {
	case "gmail":
		return models.SourceGmail
	case "meta", "meta_ads", "facebook":
		return models.SourceMetaAds
	case "website":
		return models.SourceWebsite
	case "slack":
		return models.SourceSlack
	case "referral":
		return models.SourceReferral
	default:
		return models.SourceThirdParty
	}
}

type webhookResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

func respondWebhookResult(c *gin.Context, status int, success bool, errMsg string) {
	c.JSON(status, webhookResult{Success: success, Error: errMsg})
}

// getSourceIP extracts the client IP address from the request.
func getSourceIP(c *gin.Context) string {
	if xff := c.GetHeader("X-Forwarded-For"); xff != "" {
		ips := strings.Split(xff, ",")
		if len(ips) > 0 {
			return strings.TrimSpace(ips[0])
		}
	}
	if xri := c.GetHeader("X-Real-IP"); xri != "" {
		return xri
	}
	return c.ClientIP()
}
