// Package analyze orchestrates one classification request: theme
// extraction, verdict composition, persistence, snapshotting and alerting.
package analyze

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/safechat/analyzer/internal/aggregate"
	"github.com/safechat/analyzer/internal/classify"
	"github.com/safechat/analyzer/internal/database"
	"github.com/safechat/analyzer/internal/notify"
	"github.com/safechat/analyzer/internal/risk"
)

// ErrInvalidInput marks a request the caller must fix before retrying.
var ErrInvalidInput = database.ErrInvalidInput

// ThemeExtractor pulls themes from text. Extraction failure degrades the
// result, it never fails the request.
type ThemeExtractor interface {
	Extract(ctx context.Context, text string) ([]string, error)
}

// Result reports one analysis with explicit partial-success flags.
// AnalysisSaved false with a nil error means classification succeeded but
// persistence did not; callers decide whether to retry.
type Result struct {
	Verdict   classify.Verdict
	Themes    []string
	EventID   int64
	Timestamp string

	ThemesSaved   bool
	AnalysisSaved bool
	AlertSent     bool
}

// Service wires the classification pipeline together.
type Service struct {
	db         *database.DB
	classifier *classify.Classifier
	detector   *risk.Detector
	themes     ThemeExtractor
	mailer     notify.Mailer
	alertTo    string
	storeText  bool
	now        func() time.Time
}

// Options configure optional service behavior.
type Options struct {
	Themes    ThemeExtractor
	Mailer    notify.Mailer
	AlertTo   string
	StoreText bool
	Now       func() time.Time
}

func NewService(db *database.DB, classifier *classify.Classifier, detector *risk.Detector, opts Options) *Service {
	s := &Service{
		db:         db,
		classifier: classifier,
		detector:   detector,
		themes:     opts.Themes,
		mailer:     opts.Mailer,
		alertTo:    opts.AlertTo,
		storeText:  opts.StoreText,
		now:        opts.Now,
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Analyze classifies text for a user and persists the outcome. The verdict
// in the result is always valid; the flags report which side effects
// succeeded. Only a missing user ID is a hard error.
func (s *Service) Analyze(ctx context.Context, userID, text string) (*Result, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: missing user_id", ErrInvalidInput)
	}

	r := &Result{Timestamp: database.FormatTime(s.now())}

	if s.themes != nil {
		themes, err := s.themes.Extract(ctx, text)
		if err != nil {
			log.Printf("theme extraction failed for %s: %v", userID, err)
		} else {
			r.Themes = themes
			r.ThemesSaved = true
		}
	}

	r.Verdict = s.classifier.Compose(text, r.Themes)

	event := database.Event{
		UserID:    userID,
		Timestamp: r.Timestamp,
		Sentiment: r.Verdict.Sentiment,
		RiskTags:  r.Verdict.RiskTags,
		Danger:    r.Verdict.Danger,
		Themes:    r.Themes,
	}
	if s.storeText {
		event.MessageText = &text
	}

	id, err := s.db.AppendEvent(event)
	if err != nil {
		log.Printf("persisting event for %s: %v", userID, err)
		r.ThemesSaved = false
	} else {
		r.EventID = id
		r.AnalysisSaved = true
		s.refreshSnapshot(userID, database.DateOf(r.Timestamp))
	}

	if r.Verdict.Danger == classify.High {
		r.AlertSent = s.sendAlert(ctx, userID, text, r.Timestamp, r.Verdict)
	}
	return r, nil
}

// refreshSnapshot recomputes the daily summary from events. Best effort:
// the snapshot is a cache, events stay authoritative.
func (s *Service) refreshSnapshot(userID, date string) {
	events, err := s.db.EventsForUser(userID, date)
	if err != nil {
		log.Printf("reading events for snapshot %s/%s: %v", userID, date, err)
		return
	}
	agg := aggregate.Aggregate(events)
	if err := s.db.UpsertDailySummary(agg.Snapshot(userID, date)); err != nil {
		log.Printf("saving snapshot %s/%s: %v", userID, date, err)
	}
}

func (s *Service) sendAlert(ctx context.Context, userID, text, ts string, v classify.Verdict) bool {
	if s.mailer == nil || !s.mailer.IsConfigured() || s.alertTo == "" {
		return false
	}

	excerpt := s.detector.Excerpt(text, v.RiskTags)
	subject := fmt.Sprintf("High risk alert for %s", userID)
	body := fmt.Sprintf(
		"High danger level detected for user %s at %s.\n\nRisk categories: %s\nSentiment compound: %.2f\n\nExcerpt:\n%s\n",
		userID, ts, joinTags(v.RiskTags), v.Sentiment.Compound, excerpt,
	)
	html := fmt.Sprintf(
		"<p>High danger level detected for user <strong>%s</strong>.</p><p>Risk categories: %s</p><blockquote>%s</blockquote>",
		userID, joinTags(v.RiskTags), excerpt,
	)

	if err := s.mailer.Send(ctx, s.alertTo, subject, body, html); err != nil {
		log.Printf("sending alert for %s: %v", userID, err)
		return false
	}
	return true
}

func joinTags(tags []risk.Category) string {
	out := ""
	for i, t := range tags {
		if i > 0 {
			out += ", "
		}
		out += string(t)
	}
	return out
}
