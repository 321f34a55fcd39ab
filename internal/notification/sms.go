package notification

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tbauer79999/rei-crm-sub004/platform/config"
	"github.com/tbauer79999/rei-crm-sub004/platform/logger"
	"github.com/tbauer79999/rei-crm-sub004/platform/phone"
)

const maxSMSLength = 1600

// TwilioSender sends SMS through the Twilio Messages REST API.
type TwilioSender struct {
	baseURL    string
	accountSID string
	authToken  string
	from       string
	region     string
	http       *http.Client
	log        *logger.Logger
}

// NewTwilioSender returns nil when SMS is not configured.
func NewTwilioSender(cfg config.SMSConfig, log *logger.Logger) *TwilioSender {
	if !cfg.IsSMSEnabled() {
		return nil
	}
	return &TwilioSender{
		baseURL:    strings.TrimRight(cfg.GetTwilioBaseURL(), "/"),
		accountSID: cfg.GetTwilioAccountSID(),
		authToken:  cfg.GetTwilioAuthToken(),
		from:       phone.NormalizeE164(cfg.GetTwilioFromNumber(), cfg.GetPhoneDefaultRegion()),
		region:     cfg.GetPhoneDefaultRegion(),
		http:       &http.Client{Timeout: 15 * time.Second},
		log:        log,
	}
}

func (s *TwilioSender) SendSMS(ctx context.Context, to string, body string) error {
	normalized := phone.NormalizeE164(to, s.region)
	if !phone.IsE164(normalized) {
		return fmt.Errorf("sms recipient %q is not a valid phone number", to)
	}
	if len(body) > maxSMSLength {
		body = body[:maxSMSLength]
	}

	form := url.Values{}
	form.Set("To", normalized)
	form.Set("From", s.from)
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", s.baseURL, url.PathEscape(s.accountSID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(s.accountSID, s.authToken)

	resp, err := s.http.Do(req)
	if err != nil {
		return fmt.Errorf("twilio request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("twilio returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	if s.log != nil {
		s.log.Info("sms alert sent", "to", normalized)
	}
	return nil
}
