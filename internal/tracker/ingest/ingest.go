// Package ingest pulls recent messages from an IMAP mailbox and feeds them
// through the extractor and reconciliation pipeline, so scheduling emails
// land in the tracker without manual pasting.
package ingest

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-message"
	"go.uber.org/zap"

	"github.com/monorhythm/shukatsu/internal/tracker/extract"
	"github.com/monorhythm/shukatsu/internal/tracker/models"
)

// Applier applies one parsed email to the persisted store.
type Applier interface {
	ApplyParsedEmail(ctx context.Context, parsed models.ParsedEmail) (*models.ApplyResult, error)
}

type Config struct {
	Addr     string // host:port, TLS
	Username string
	Password string
	Folder   string // defaults to INBOX
	Days     int    // look-back window, defaults to 7
	MaxMails int    // fetch cap, defaults to 50
}

// Summary tallies one sync run.
type Summary struct {
	Fetched int
	Applied map[models.ApplyAction]int
}

type Syncer struct {
	cfg     Config
	applier Applier
	logger  *zap.Logger
}

func NewSyncer(cfg Config, applier Applier, logger *zap.Logger) *Syncer {
	if cfg.Folder == "" {
		cfg.Folder = "INBOX"
	}
	if cfg.Days <= 0 {
		cfg.Days = 7
	}
	if cfg.MaxMails <= 0 {
		cfg.MaxMails = 50
	}
	return &Syncer{
		cfg:     cfg,
		applier: applier,
		logger:  logger.Named("mail_ingest"),
	}
}

// Sync fetches recent messages and applies each one. Messages whose sender
// has no usable display name still go through; the reconciliation layer
// reports them as skipped.
func (s *Syncer) Sync(ctx context.Context) (*Summary, error) {
	c, err := client.DialTLS(s.cfg.Addr, nil)
	if err != nil {
		return nil, fmt.Errorf("imap dial: %w", err)
	}
	defer c.Logout()

	if err := c.Login(s.cfg.Username, s.cfg.Password); err != nil {
		return nil, fmt.Errorf("imap login: %w", err)
	}

	mbox, err := c.Select(s.cfg.Folder, true)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", s.cfg.Folder, err)
	}

	summary := &Summary{Applied: map[models.ApplyAction]int{}}
	if mbox.Messages == 0 {
		return summary, nil
	}

	criteria := imap.NewSearchCriteria()
	criteria.Since = time.Now().AddDate(0, 0, -s.cfg.Days)
	ids, err := c.Search(criteria)
	if err != nil {
		return nil, fmt.Errorf("imap search: %w", err)
	}
	if len(ids) == 0 {
		return summary, nil
	}
	if len(ids) > s.cfg.MaxMails {
		ids = ids[len(ids)-s.cfg.MaxMails:]
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(ids...)

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchEnvelope, section.FetchItem()}

	messages := make(chan *imap.Message, len(ids))
	done := make(chan error, 1)
	go func() {
		done <- c.Fetch(seqset, items, messages)
	}()

	for msg := range messages {
		summary.Fetched++
		parsed := s.toParsedEmail(msg, section)
		result, err := s.applier.ApplyParsedEmail(ctx, parsed)
		if err != nil {
			s.logger.Warn("failed to apply message",
				zap.Error(err),
				zap.String("company", parsed.Company),
			)
			continue
		}
		summary.Applied[result.Action]++
		s.logger.Info("applied message",
			zap.String("company", parsed.Company),
			zap.String("action", string(result.Action)),
		)
	}

	if err := <-done; err != nil {
		return summary, fmt.Errorf("imap fetch: %w", err)
	}
	return summary, nil
}

func (s *Syncer) toParsedEmail(msg *imap.Message, section *imap.BodySectionName) models.ParsedEmail {
	company := ""
	subject := ""
	if msg.Envelope != nil {
		subject = msg.Envelope.Subject
		if len(msg.Envelope.From) > 0 {
			from := msg.Envelope.From[0]
			company = from.PersonalName
			if company == "" {
				company = from.MailboxName
			}
		}
	}

	body := ""
	if r := msg.GetBody(section); r != nil {
		body = extractTextBody(r)
	}

	fields := extract.Extract(subject + "\n" + body)
	return models.ParsedEmail{
		Company:  company,
		Event:    fields.Event,
		Date:     fields.Date,
		Location: fields.Location,
	}
}

// extractTextBody pulls the first text/plain part out of a raw message, or
// the whole body for single-part messages.
func extractTextBody(r io.Reader) string {
	entity, err := message.Read(r)
	if err != nil && !message.IsUnknownCharset(err) {
		return ""
	}

	if mr := entity.MultipartReader(); mr != nil {
		for {
			part, err := mr.NextPart()
			if err != nil {
				return ""
			}
			t, _, _ := part.Header.ContentType()
			if strings.HasPrefix(t, "text/plain") {
				b, _ := io.ReadAll(part.Body)
				return string(b)
			}
		}
	}

	b, _ := io.ReadAll(entity.Body)
	return string(b)
}
