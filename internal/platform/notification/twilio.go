package notification

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"github.com/healthvault/vault/internal/platform/restylog"
)

const twilioAPIVersion = "2010-04-01"

// TwilioConfig holds the account credentials and sender number.
type TwilioConfig struct {
	AccountSID string
	AuthToken  string
	FromNumber string
	// BaseURL defaults to https://api.twilio.com.
	BaseURL string
	Timeout time.Duration
}

// TwilioClient is an SMSGateway backed by the Twilio Messages API.
type TwilioClient struct {
	send   *resty.Client
	http   *resty.Client
	cfg    TwilioConfig
	logger zerolog.Logger
}

type twilioMessage struct {
	SID          string  `json:"sid"`
	Status       string  `json:"status"`
	To           string  `json:"to"`
	From         string  `json:"from"`
	Body         string  `json:"body"`
	ErrorCode    *int    `json:"error_code"`
	ErrorMessage *string `json:"error_message"`
	DateCreated  string  `json:"date_created"`
	DateSent     string  `json:"date_sent"`
}

type twilioError struct {
	Code     int    `json:"code"`
	Message  string `json:"message"`
	MoreInfo string `json:"more_info"`
	Status   int    `json:"status"`
}

// NewTwilioClient builds a client. Missing credentials are not an error: the
// client reports Available() == false and the dispatcher skips sending.
func NewTwilioClient(cfg TwilioConfig, logger zerolog.Logger) *TwilioClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.twilio.com"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}

	logger = logger.With().Str("component", "twilio").Logger()
	base := func() *resty.Client {
		return resty.New().
			SetBaseURL(cfg.BaseURL).
			SetTimeout(cfg.Timeout).
			SetBasicAuth(cfg.AccountSID, cfg.AuthToken).
			SetHeader("Accept", "application/json").
			SetLogger(restylog.New(logger))
	}

	// Creating a message is not idempotent: a lost response after Twilio
	// accepted the POST would send the SMS twice. Sends are never retried.
	send := base()

	// Reads retry transport failures and 5xx; a 4xx means the request was
	// rejected and asking again would not help.
	read := base().
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(3 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= http.StatusInternalServerError
		})

	return &TwilioClient{
		send:   send,
		http:   read,
		cfg:    cfg,
		logger: logger,
	}
}

func (t *TwilioClient) Available() bool {
	return t.cfg.AccountSID != "" && t.cfg.AuthToken != "" && t.cfg.FromNumber != ""
}

// SendSMS posts a message to the Messages resource.
func (t *TwilioClient) SendSMS(ctx context.Context, to, body string) (*SMSReceipt, error) {
	if !t.Available() {
		return nil, ErrGatewayUnavailable
	}

	var msg twilioMessage
	var apiErr twilioError
	resp, err := t.send.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"To":   to,
			"From": t.cfg.FromNumber,
			"Body": body,
		}).
		SetResult(&msg).
		SetError(&apiErr).
		Post(t.messagesPath())
	if err != nil {
		return nil, fmt.Errorf("twilio send: %w", err)
	}
	if resp.IsError() {
		return nil, apiErr.toError(resp.StatusCode())
	}

	t.logger.Debug().Str("sid", msg.SID).Str("status", msg.Status).Msg("sms accepted")
	return msg.receipt(), nil
}

// FetchMessage reads the current delivery status of a message.
func (t *TwilioClient) FetchMessage(ctx context.Context, sid string) (*SMSReceipt, error) {
	if !t.Available() {
		return nil, ErrGatewayUnavailable
	}
	if sid == "" {
		return nil, fmt.Errorf("message sid is required")
	}

	var msg twilioMessage
	var apiErr twilioError
	resp, err := t.http.R().
		SetContext(ctx).
		SetResult(&msg).
		SetError(&apiErr).
		Get(t.accountPath() + "/Messages/" + url.PathEscape(sid) + ".json")
	if err != nil {
		return nil, fmt.Errorf("twilio fetch: %w", err)
	}
	if resp.IsError() {
		return nil, apiErr.toError(resp.StatusCode())
	}
	return msg.receipt(), nil
}

func (t *TwilioClient) accountPath() string {
	return fmt.Sprintf("/%s/Accounts/%s", twilioAPIVersion, url.PathEscape(t.cfg.AccountSID))
}

func (t *TwilioClient) messagesPath() string {
	return t.accountPath() + "/Messages.json"
}

func (e twilioError) toError(status int) error {
	if e.Message == "" {
		return fmt.Errorf("twilio: unexpected status %d", status)
	}
	return fmt.Errorf("twilio: %s (code %d, status %d)", e.Message, e.Code, status)
}

func (m twilioMessage) receipt() *SMSReceipt {
	r := &SMSReceipt{
		SID:       m.SID,
		Status:    m.Status,
		To:        m.To,
		From:      m.From,
		Body:      m.Body,
		ErrorCode: m.ErrorCode,
	}
	if m.ErrorMessage != nil {
		r.ErrorText = *m.ErrorMessage
	}
	r.DateCreated = parseTwilioTime(m.DateCreated)
	r.DateSent = parseTwilioTime(m.DateSent)
	return r
}

// Twilio renders timestamps in RFC 1123 with a numeric zone.
func parseTwilioTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC1123Z, s)
	if err != nil {
		return nil
	}
	return &t
}
