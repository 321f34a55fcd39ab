package notification

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type smsConfig struct {
	baseURL string
}

func (c smsConfig) GetTwilioAccountSID() string   { return "AC123" }
func (c smsConfig) GetTwilioAuthToken() string    { return "secret" }
func (c smsConfig) GetTwilioFromNumber() string   { return "(415) 555-0100" }
func (c smsConfig) GetTwilioBaseURL() string      { return c.baseURL }
func (c smsConfig) GetPhoneDefaultRegion() string { return "US" }
func (c smsConfig) IsSMSEnabled() bool            { return c.baseURL != "" }

func TestTwilioSenderPostsForm(t *testing.T) {
	var gotPath, gotTo, gotFrom, gotBody, gotUser string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotUser, _, _ = r.BasicAuth()
		_ = r.ParseForm()
		gotTo = r.PostForm.Get("To")
		gotFrom = r.PostForm.Get("From")
		gotBody = r.PostForm.Get("Body")
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	sender := NewTwilioSender(smsConfig{baseURL: srv.URL}, nil)
	require.NotNil(t, sender)

	err := sender.SendSMS(context.Background(), "415-555-2671", "Hot lead")
	require.NoError(t, err)

	assert.Equal(t, "/2010-04-01/Accounts/AC123/Messages.json", gotPath)
	assert.Equal(t, "AC123", gotUser)
	assert.Equal(t, "+14155552671", gotTo)
	assert.Equal(t, "+14155550100", gotFrom)
	assert.Equal(t, "Hot lead", gotBody)
}

func TestTwilioSenderReportsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"message":"invalid number"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	sender := NewTwilioSender(smsConfig{baseURL: srv.URL}, nil)
	err := sender.SendSMS(context.Background(), "+14155552671", "x")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
}

func TestTwilioSenderRejectsInvalidNumber(t *testing.T) {
	sender := NewTwilioSender(smsConfig{baseURL: "http://127.0.0.1:1"}, nil)

	err := sender.SendSMS(context.Background(), "not a number", "x")
	assert.Error(t, err)
}

func TestTwilioSenderDisabled(t *testing.T) {
	assert.Nil(t, NewTwilioSender(smsConfig{}, nil))
}
