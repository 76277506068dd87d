package mail

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"researchhub/backend/config"
)

// ErrSendFailed 邮件服务返回非 2xx
var ErrSendFailed = errors.New("邮件发送失败")

// Sender 邮件发送接口
type Sender interface {
	Send(ctx context.Context, to Recipient, subject, htmlContent string) error
}

// Recipient 收件人
type Recipient struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type sendRequest struct {
	Sender      Recipient   `json:"sender"`
	To          []Recipient `json:"to"`
	Subject     string      `json:"subject"`
	HTMLContent string      `json:"htmlContent"`
}

// Client 事务邮件 HTTP API 客户端（Brevo 兼容）
type Client struct {
	http   *resty.Client
	apiURL string
	sender Recipient
	logger *zap.Logger
}

// NewSender 按配置创建邮件发送器，未启用时返回只写日志的实现
func NewSender(cfg *config.MailConfig, logger *zap.Logger) Sender {
	if !cfg.Enabled {
		return &noopSender{logger: logger}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	httpClient := resty.New().
		SetTimeout(timeout).
		SetHeader("api-key", cfg.APIKey).
		SetHeader("Accept", "application/json")

	return &Client{
		http:   httpClient,
		apiURL: cfg.APIURL,
		sender: Recipient{Email: cfg.SenderEmail, Name: cfg.SenderName},
		logger: logger,
	}
}

// Send 发送 HTML 邮件
func (c *Client) Send(ctx context.Context, to Recipient, subject, htmlContent string) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(sendRequest{
			Sender:      c.sender,
			To:          []Recipient{to},
			Subject:     subject,
			HTMLContent: htmlContent,
		}).
		Post(c.apiURL)
	if err != nil {
		return fmt.Errorf("调用邮件服务失败: %w", err)
	}
	if resp.IsError() {
		c.logger.Warn("邮件服务返回错误",
			zap.Int("status", resp.StatusCode()),
			zap.String("to", to.Email),
			zap.String("body", resp.String()),
		)
		return fmt.Errorf("%w: HTTP %d", ErrSendFailed, resp.StatusCode())
	}
	return nil
}

type noopSender struct {
	logger *zap.Logger
}

func (n *noopSender) Send(_ context.Context, to Recipient, subject, _ string) error {
	n.logger.Info("邮件未启用，跳过发送", zap.String("to", to.Email), zap.String("subject", subject))
	return nil
}
