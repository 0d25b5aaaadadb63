package sms

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
)

type fakeMessages struct {
	got *openapi.CreateMessageParams
	err error
}

func (f *fakeMessages) CreateMessage(params *openapi.CreateMessageParams) (*openapi.ApiV2010Message, error) {
	f.got = params
	if f.err != nil {
		return nil, f.err
	}
	return &openapi.ApiV2010Message{}, nil
}

func TestNewTwilioSender_RequiresCredentials(t *testing.T) {
	_, err := NewTwilioSender("AC123", "", "+15550000000")
	assert.Error(t, err)

	s, err := NewTwilioSender("AC123", "token", "+15550000000")
	require.NoError(t, err)
	assert.NotNil(t, s)
}

func TestTwilioSender_Send(t *testing.T) {
	fake := &fakeMessages{}
	s := &TwilioSender{api: fake, from: "+15550000000"}

	require.NoError(t, s.Send(context.Background(), "+15551112222", "New Order from Dana!"))
	require.NotNil(t, fake.got)
	assert.Equal(t, "+15551112222", *fake.got.To)
	assert.Equal(t, "+15550000000", *fake.got.From)
	assert.Equal(t, "New Order from Dana!", *fake.got.Body)

	fake.err = errors.New("20003 authenticate")
	assert.Error(t, s.Send(context.Background(), "+15551112222", "x"))
}
