// Package ses sends campaign messages through Amazon SES v2. SES has no
// per-recipient substitution, so every message is rendered before it gets here.
package ses

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/ignite/campaign-dispatch/internal/domain"
	"github.com/ignite/campaign-dispatch/internal/provider"
)

// API is the subset of the SES v2 client used here.
type API interface {
	SendEmail(ctx context.Context, in *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// Config selects the region, optional static credentials and configuration set.
type Config struct {
	Region           string
	AccessKey        string
	SecretKey        string
	ConfigurationSet string
}

// Client implements provider.MailProvider.
type Client struct {
	api    API
	cfgSet string
}

// New loads AWS configuration. Without static keys the default credential
// chain (env, shared config, instance role) is used.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("ses: load aws config: %w", err)
	}
	return NewWithAPI(sesv2.NewFromConfig(awsCfg), cfg.ConfigurationSet), nil
}

// NewWithAPI wraps an existing SES client.
func NewWithAPI(api API, configurationSet string) *Client {
	return &Client{api: api, cfgSet: configurationSet}
}

func (c *Client) Name() domain.ProviderType { return domain.ProviderSES }

// MaxRecipients is 1: each SES call carries one rendered message.
func (c *Client) MaxRecipients() int { return 1 }

// SES tag values allow only ASCII letters, digits, '_' and '-'.
var tagUnsafe = regexp.MustCompile(`[^A-Za-z0-9_-]`)

func content(s string) *types.Content {
	return &types.Content{Data: aws.String(s), Charset: aws.String("UTF-8")}
}

func (c *Client) Send(ctx context.Context, msg *provider.Message) (*provider.Response, error) {
	if len(msg.To) != 1 {
		return nil, fmt.Errorf("ses: expected exactly one recipient, got %d", len(msg.To))
	}

	body := &types.Body{Text: content(msg.Text)}
	if msg.HTML != "" {
		body.Html = content(msg.HTML)
	}
	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(msg.From),
		Destination:      &types.Destination{ToAddresses: msg.To},
		Content: &types.EmailContent{
			Simple: &types.Message{Subject: content(msg.Subject), Body: body},
		},
	}
	if msg.ReplyTo != "" {
		input.ReplyToAddresses = []string{msg.ReplyTo}
	}
	if c.cfgSet != "" {
		input.ConfigurationSetName = aws.String(c.cfgSet)
	}
	for _, tag := range msg.Tags {
		input.EmailTags = append(input.EmailTags, types.MessageTag{
			Name:  aws.String("campaign"),
			Value: aws.String(tagUnsafe.ReplaceAllString(tag, "_")),
		})
	}

	out, err := c.api.SendEmail(ctx, input)
	if err != nil {
		var re *awshttp.ResponseError
		if errors.As(err, &re) {
			return nil, &provider.Error{Provider: domain.ProviderSES, StatusCode: re.HTTPStatusCode(), Body: err.Error()}
		}
		return nil, fmt.Errorf("ses: send: %w", err)
	}
	return &provider.Response{
		ID:         aws.ToString(out.MessageId),
		Message:    "accepted",
		StatusCode: http.StatusOK,
	}, nil
}
