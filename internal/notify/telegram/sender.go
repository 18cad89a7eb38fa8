package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"imagelab/internal/domain"
	"imagelab/internal/infra"
)

// maxCaption is the Bot API limit for document captions.
const maxCaption = 1024

// Options configures delivery of comparison pages to a chat.
type Options struct {
	Token  string
	ChatID int64
	// Endpoint overrides tgbotapi.APIEndpoint; it must contain two %s verbs.
	Endpoint   string
	HTTPClient *http.Client
	Logger     *infra.Logger
}

// Sender verifies the bot token and posts documents to one chat.
type Sender struct {
	token    string
	chatID   int64
	endpoint string
	client   *http.Client
	logger   *infra.Logger

	mu  sync.Mutex
	bot *tgbotapi.BotAPI
}

// NewSender validates the options. The token is verified on first delivery.
func NewSender(opts Options) (*Sender, error) {
	token := strings.TrimSpace(opts.Token)
	if token == "" {
		return nil, fmt.Errorf("telegram: bot token: %w", domain.ErrMissingCredentials)
	}
	if opts.ChatID == 0 {
		return nil, errors.New("telegram: chat id is required")
	}
	endpoint := strings.TrimSpace(opts.Endpoint)
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	logger := opts.Logger
	if logger == nil {
		logger = infra.Nop()
	}
	return &Sender{token: token, chatID: opts.ChatID, endpoint: endpoint, client: client, logger: logger}, nil
}

// botAPI returns a verified client, calling getMe the first time.
func (s *Sender) botAPI() (*tgbotapi.BotAPI, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bot != nil {
		return s.bot, nil
	}
	bot, err := tgbotapi.NewBotAPIWithClient(s.token, s.endpoint, s.client)
	if err != nil {
		return nil, fmt.Errorf("telegram: verify bot token: %w", err)
	}
	s.logger.Info().Str("bot", bot.Self.UserName).Msg("telegram: bot token verified")
	s.bot = bot
	return bot, nil
}

// SendDocument uploads data as filename with caption to the configured chat.
func (s *Sender) SendDocument(ctx context.Context, caption, filename string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(data) == 0 {
		return errors.New("telegram: document is empty")
	}
	bot, err := s.botAPI()
	if err != nil {
		return err
	}
	doc := tgbotapi.NewDocument(s.chatID, tgbotapi.FileBytes{Name: filename, Bytes: data})
	doc.Caption = truncateRunes(caption, maxCaption)
	if _, err := bot.Send(doc); err != nil {
		return fmt.Errorf("telegram: send document: %w", err)
	}
	s.logger.Debug().Int64("chat_id", s.chatID).Str("file", filename).Msg("telegram: document sent")
	return nil
}

func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit-1]) + "…"
}
