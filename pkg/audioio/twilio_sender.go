package audioio

import (
	"context"
	"github.com/petrzlen/butler-golang/pkg/models"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/twilio/twilio-go"
	twilioClient "github.com/twilio/twilio-go/client"
	api "github.com/twilio/twilio-go/rest/api/v2010"
	"golang.org/x/time/rate"
	"net/http"
	"net/url"
	"time"
)

type twilioSender struct {
	client  *twilio.RestClient
	limiter *rate.Limiter
}

// NewTwilioSender sends through the Messages API, at most ratePerSecond messages per second.
// A non-empty apiBaseURL redirects every API call there (tests, proxies).
func NewTwilioSender(accountSid string, authToken string, ratePerSecond float64, apiBaseURL string) (Sender, error) {
	params := twilio.ClientParams{
		Username: accountSid,
		Password: authToken,
	}
	if apiBaseURL != "" {
		base, err := url.Parse(apiBaseURL)
		if err != nil || base.Host == "" {
			return nil, errors.Errorf("invalid twilio api base url %q", apiBaseURL)
		}
		c := &twilioClient.Client{
			Credentials: twilioClient.NewCredentials(accountSid, authToken),
			HTTPClient: &http.Client{
				Timeout:   30 * time.Second,
				Transport: &baseURLTransport{base: base, next: http.DefaultTransport},
			},
		}
		c.SetAccountSid(accountSid)
		params.Client = c
	}
	if ratePerSecond <= 0 {
		ratePerSecond = 1
	}
	return &twilioSender{
		client:  twilio.NewRestClientWithParams(params),
		limiter: rate.NewLimiter(rate.Limit(ratePerSecond), 1),
	}, nil
}

func (s *twilioSender) Send(ctx context.Context, reply models.OutboundReply) (sid string, err error) {
	if err = s.limiter.Wait(ctx); err != nil {
		err = errors.Wrap(err, "rate limiter")
		return
	}

	startTime := time.Now()
	params := &api.CreateMessageParams{}
	params.SetTo(reply.To)
	params.SetFrom(reply.From)
	params.SetBody(reply.Body)

	resp, err := s.client.Api.CreateMessage(params)
	if err != nil {
		var restErr *twilioClient.TwilioRestError
		if errors.As(err, &restErr) {
			err = &models.Error{Kind: models.VendorError, Status: restErr.Status, Body: restErr.Message}
			return
		}
		err = errors.Wrap(err, "cannot create twilio message")
		return
	}
	if resp.Sid != nil {
		sid = *resp.Sid
	}
	log.Info().Str("to", reply.To).Str("sid", sid).Dur("duration", time.Since(startTime)).Msg("reply sent")
	return
}

// baseURLTransport rewrites scheme and host of every request.
type baseURLTransport struct {
	base *url.URL
	next http.RoundTripper
}

func (t *baseURLTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	r.URL.Scheme = t.base.Scheme
	r.URL.Host = t.base.Host
	r.Host = t.base.Host
	return t.next.RoundTrip(r)
}
