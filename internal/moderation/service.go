package moderation

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/iamwavecut/tool"
	"github.com/pborman/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/iamwavecut/ngguard/internal/db"
	ngerrors "github.com/iamwavecut/ngguard/internal/errors"
	"github.com/iamwavecut/ngguard/internal/i18n"
	"github.com/iamwavecut/ngguard/internal/state"
)

const (
	defaultSweepInterval = 30 * time.Second
	memberIdleTTL        = 10 * time.Minute
	joinLogIdleTTL       = 24 * time.Hour
	captchaTokenLength   = 6
	captchaDecoys        = 3
	// Telegram treats restrictions shorter than 30s as permanent.
	restrictGrace = time.Minute

	CaptchaCallbackPrefix = "captcha"
	captchaPressAnswer    = "ok"
)

type Metrics interface {
	Decision(component, outcome string)
	ActionFailed(action string)
}

type noopMetrics struct{}

func (noopMetrics) Decision(string, string) {}
func (noopMetrics) ActionFailed(string)     {}

type SettingsRegistry interface {
	Get(ctx context.Context, chatID int64) (*db.Settings, error)
	Put(ctx context.Context, settings *db.Settings) error
	Forget(chatID int64)
}

type TrustedAdmins interface {
	TrustedStore
	AddTrusted(ctx context.Context, admin *db.TrustedAdmin) error
	RemoveTrusted(ctx context.Context, chatID, userID int64) error
	ListTrusted(ctx context.Context, chatID int64) ([]int64, error)
}

type ProfileLookup interface {
	HasProfilePhoto(ctx context.Context, userID int64) (bool, error)
}

type Dependencies struct {
	Transport Transport
	Settings  SettingsRegistry
	Trusted   TrustedAdmins
	Warnings  WarningStore
	Profiles  ProfileLookup
	Scheduler Scheduler
	Metrics   Metrics
	OwnerID   int64
	MasterIDs []int64
	Now       func() time.Time
	// SweepInterval paces the expired mute and idle window cleanup.
	SweepInterval time.Duration
}

// Join describes a member that just entered a chat.
type Join struct {
	ChatID        int64
	UserID        int64
	Name          string
	Language      string
	JoinMessageID int
	Profile       Profile
	At            time.Time
}

type CaptchaAnswer struct {
	ChatID    int64
	UserID    int64
	Answer    string
	Pressed   bool
	MessageID int
}

// Service is the moderation core. It owns all volatile state and talks to the
// chat platform only through Transport, never while a state lock is held.
type Service struct {
	transport  Transport
	settings   SettingsRegistry
	trusted    TrustedAdmins
	profiles   ProfileLookup
	ledger     *Ledger
	raids      *RaidDetector
	captcha    *CaptchaSessions
	flood      *FloodFilter
	exemptions *Exemptions
	// chatLocks serializes settings read-modify-write per chat
	chatLocks *state.Locker
	metrics   Metrics
	now        func() time.Time

	sweepInterval time.Duration
	runMutex      sync.Mutex
	started       bool
	cancel        context.CancelFunc
	wg            sync.WaitGroup
}

func NewService(deps Dependencies) *Service {
	s := &Service{
		transport:     deps.Transport,
		settings:      deps.Settings,
		trusted:       deps.Trusted,
		profiles:      deps.Profiles,
		ledger:        NewLedger(deps.Warnings),
		raids:         NewRaidDetector(),
		captcha:       NewCaptchaSessions(deps.Scheduler),
		flood:         NewFloodFilter(),
		exemptions:    NewExemptions(deps.OwnerID, deps.MasterIDs, deps.Transport, deps.Trusted),
		chatLocks:     state.NewLocker(),
		metrics:       deps.Metrics,
		now:           deps.Now,
		sweepInterval: deps.SweepInterval,
	}
	if s.metrics == nil {
		s.metrics = noopMetrics{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.sweepInterval <= 0 {
		s.sweepInterval = defaultSweepInterval
	}
	return s
}

func (s *Service) getLogEntry() *log.Entry {
	return log.WithField("component", "moderation")
}

func (s *Service) Exemptions() *Exemptions {
	return s.exemptions
}

func (s *Service) Start(ctx context.Context) error {
	s.runMutex.Lock()
	defer s.runMutex.Unlock()
	if s.started {
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				s.Sweep(runCtx)
			}
		}
	}()

	s.started = true
	return nil
}

func (s *Service) Stop(ctx context.Context) error {
	s.runMutex.Lock()
	if !s.started {
		s.runMutex.Unlock()
		return nil
	}
	s.started = false
	cancel := s.cancel
	s.runMutex.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.wg.Wait()
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

// authorizedSettings loads settings of a managed chat or fails with ErrConfigurationMissing.
func (s *Service) authorizedSettings(ctx context.Context, chatID int64) (*db.Settings, error) {
	settings, err := s.settings.Get(ctx, chatID)
	if err != nil {
		return nil, errors.WithMessage(err, "cant load settings")
	}
	if settings == nil || !settings.Authorized {
		return nil, errors.Wrapf(ngerrors.ErrConfigurationMissing, "chat %d", chatID)
	}
	return settings, nil
}

// OnMemberJoined screens a new member and enforces the admission outcome.
func (s *Service) OnMemberJoined(ctx context.Context, j Join) (Admission, error) {
	entry := s.getLogEntry().WithFields(log.Fields{"method": "OnMemberJoined", "chat": j.ChatID, "user": j.UserID})
	if j.At.IsZero() {
		j.At = s.now()
	}

	settings, err := s.settings.Get(ctx, j.ChatID)
	if err != nil {
		return Admission{}, errors.WithMessage(err, "cant load settings")
	}
	if settings == nil || !settings.Authorized {
		s.metrics.Decision("gate", AdmitLeave.String())
		entry.Warn("member joined unmanaged chat, leaving")
		s.perform(ctx, "leave", j.ChatID, 0, s.transport.Leave(ctx, j.ChatID))
		return Admission{Kind: AdmitLeave}, nil
	}

	raid := s.raids.ObserveJoin(j.ChatID, j.At, settings.RaidJoinLimit, settings.GetRaidTimeSpan())
	profile := j.Profile
	if raid == RaidNormal && settings.RequireProfilePhoto && s.profiles != nil {
		hasPhoto, err := s.profiles.HasProfilePhoto(ctx, j.UserID)
		if err != nil {
			entry.WithField("error", err.Error()).Warn("cant check profile photo, assuming present")
			hasPhoto = true
		}
		profile.HasPhoto = hasPhoto
	}

	admission := admit(settings, raid, profile, j.At)
	s.metrics.Decision("gate", admission.Kind.String())

	switch admission.Kind {
	case AdmitDeny:
		entry.WithField("reason", admission.Reason).Info("join denied")
		s.perform(ctx, "ban", j.ChatID, j.UserID, s.transport.Ban(ctx, j.ChatID, j.UserID))
		if j.JoinMessageID != 0 {
			s.perform(ctx, "delete", j.ChatID, j.UserID, s.transport.DeleteMessage(ctx, j.ChatID, j.JoinMessageID))
		}
		s.notify(ctx, settings, noticeBan, "Join denied", j.UserID, j.Name, admission.Reason)
	case AdmitChallenge:
		s.challenge(ctx, settings, j)
		s.notify(ctx, settings, noticeInfo, "Member joined", j.UserID, j.Name, i18n.Get("Awaiting captcha", settings.GetLanguage()))
	default:
		s.notify(ctx, settings, noticeInfo, "Member joined", j.UserID, j.Name, "")
	}
	return admission, nil
}

func (s *Service) challenge(ctx context.Context, settings *db.Settings, j Join) {
	entry := s.getLogEntry().WithFields(log.Fields{"method": "challenge", "chat": j.ChatID, "user": j.UserID})

	mode := settings.CaptchaMode
	if mode != db.CaptchaModeToken {
		mode = db.CaptchaModeButton
	}
	lang := settings.GetLanguage()
	if j.Language != "" && settings.Language == "" {
		lang = j.Language
	}
	c := Challenge{
		ChatID:        j.ChatID,
		UserID:        j.UserID,
		Mode:          mode,
		IssuedAt:      j.At,
		ExpiresAt:     j.At.Add(settings.GetCaptchaTimeout()),
		JoinMessageID: j.JoinMessageID,
		Language:      lang,
	}
	if mode == db.CaptchaModeToken {
		c.Token = newCaptchaToken()
		c.Options = captchaOptions(c.Token)
	}

	live, created := s.captcha.Issue(c, s.expireChallenge)
	if !created {
		entry.Debug("challenge already pending")
		return
	}

	s.perform(ctx, "restrict", j.ChatID, j.UserID,
		s.transport.Restrict(ctx, j.ChatID, j.UserID, NoPermissions, live.ExpiresAt.Add(restrictGrace)))

	text, markup := renderChallenge(live, j.Name, settings.GetCaptchaTimeout())
	messageID, err := s.transport.Send(ctx, j.ChatID, text, markup)
	if err != nil {
		s.perform(ctx, "send", j.ChatID, j.UserID, err)
		return
	}
	if !s.captcha.AttachPrompt(state.Key{ChatID: j.ChatID, UserID: j.UserID}, live.Nonce(), messageID) {
		// resolved or expired before the prompt went out
		s.perform(ctx, "delete", j.ChatID, j.UserID, s.transport.DeleteMessage(ctx, j.ChatID, messageID))
	}
}

// OnCaptchaAnswer resolves a pending challenge by button press or typed text.
func (s *Service) OnCaptchaAnswer(ctx context.Context, a CaptchaAnswer) (Resolution, error) {
	key := state.Key{ChatID: a.ChatID, UserID: a.UserID}
	c, resolution := s.captcha.Resolve(key, a.Answer, a.Pressed, s.now())
	s.metrics.Decision("captcha", resolution.String())

	switch resolution {
	case ResolutionVerified:
		s.perform(ctx, "unrestrict", a.ChatID, a.UserID, s.transport.Restrict(ctx, a.ChatID, a.UserID, FullPermissions, time.Time{}))
		s.deletePrompt(ctx, c)
		s.notifyChat(ctx, a.ChatID, noticeInfo, "Captcha passed", a.UserID, "", "")
	case ResolutionFailed:
		s.perform(ctx, "ban", a.ChatID, a.UserID, s.transport.Ban(ctx, a.ChatID, a.UserID))
		s.deletePrompt(ctx, c)
		if c.JoinMessageID != 0 {
			s.perform(ctx, "delete", a.ChatID, a.UserID, s.transport.DeleteMessage(ctx, a.ChatID, c.JoinMessageID))
		}
		if a.MessageID != 0 {
			s.perform(ctx, "delete", a.ChatID, a.UserID, s.transport.DeleteMessage(ctx, a.ChatID, a.MessageID))
		}
		s.notifyChat(ctx, a.ChatID, noticeBan, "Captcha failed", a.UserID, "", "")
	case ResolutionExpired:
		s.kick(ctx, c)
	case ResolutionStale:
		return resolution, errors.Wrapf(ngerrors.ErrStaleState, "no pending challenge for %d in %d", a.UserID, a.ChatID)
	}
	return resolution, nil
}

// expireChallenge is the scheduled timeout. It is a no-op unless the challenge
// identified by nonce is still pending.
func (s *Service) expireChallenge(ctx context.Context, key state.Key, nonce uint64) {
	c, ok := s.captcha.Expire(key, nonce)
	if !ok {
		return
	}
	s.metrics.Decision("captcha", ResolutionExpired.String())
	s.kick(ctx, c)
}

func (s *Service) kick(ctx context.Context, c Challenge) {
	s.getLogEntry().WithFields(log.Fields{"chat": c.ChatID, "user": c.UserID}).Info("captcha expired, kicking")
	s.perform(ctx, "ban", c.ChatID, c.UserID, s.transport.Ban(ctx, c.ChatID, c.UserID))
	s.perform(ctx, "unban", c.ChatID, c.UserID, s.transport.Unban(ctx, c.ChatID, c.UserID))
	s.deletePrompt(ctx, c)
	if c.JoinMessageID != 0 {
		s.perform(ctx, "delete", c.ChatID, c.UserID, s.transport.DeleteMessage(ctx, c.ChatID, c.JoinMessageID))
	}
	s.notifyChat(ctx, c.ChatID, noticeWarn, "Captcha expired", c.UserID, "", "")
}

func (s *Service) deletePrompt(ctx context.Context, c Challenge) {
	if c.PromptMessageID == 0 {
		return
	}
	s.perform(ctx, "delete", c.ChatID, c.UserID, s.transport.DeleteMessage(ctx, c.ChatID, c.PromptMessageID))
}

// OnMemberLeft forgets any pending challenge of a member who is gone. A
// voluntary departure from a managed chat is also reported.
func (s *Service) OnMemberLeft(ctx context.Context, chatID, userID int64, voluntary bool) {
	s.exemptions.Invalidate(chatID, userID)
	if c, ok := s.captcha.Drop(state.Key{ChatID: chatID, UserID: userID}); ok {
		s.deletePrompt(ctx, c)
	}
	if !voluntary {
		return
	}
	if settings, err := s.authorizedSettings(ctx, chatID); err == nil {
		s.notify(ctx, settings, noticeInfo, "Member left", userID, "", "")
	}
}

// OnMessage runs a chat message through the mute, flood and content checks.
func (s *Service) OnMessage(ctx context.Context, m Message) (Verdict, error) {
	if m.At.IsZero() {
		m.At = s.now()
	}
	settings, err := s.authorizedSettings(ctx, m.ChatID)
	if err != nil {
		return VerdictPass, err
	}

	key := state.Key{ChatID: m.ChatID, UserID: m.UserID}
	if _, pending := s.captcha.Pending(key); pending {
		resolution, _ := s.OnCaptchaAnswer(ctx, CaptchaAnswer{
			ChatID:    m.ChatID,
			UserID:    m.UserID,
			Answer:    m.Text,
			MessageID: m.MessageID,
		})
		switch resolution {
		case ResolutionVerified:
			s.perform(ctx, "delete", m.ChatID, m.UserID, s.transport.DeleteMessage(ctx, m.ChatID, m.MessageID))
			return VerdictPass, nil
		case ResolutionStale:
		default:
			if resolution == ResolutionIgnored {
				s.perform(ctx, "delete", m.ChatID, m.UserID, s.transport.DeleteMessage(ctx, m.ChatID, m.MessageID))
			}
			return VerdictMuted, nil
		}
	}

	if s.exemptions.IsExempt(ctx, m.ChatID, m.UserID) {
		s.metrics.Decision("flood", "exempt")
		return VerdictPass, nil
	}

	d := s.flood.Evaluate(settings, m)
	s.metrics.Decision("flood", d.Verdict.String())

	if d.LiftMute && d.MuteUntil.IsZero() {
		s.perform(ctx, "unrestrict", m.ChatID, m.UserID, s.transport.Restrict(ctx, m.ChatID, m.UserID, FullPermissions, time.Time{}))
	}
	if d.Delete {
		s.perform(ctx, "delete", m.ChatID, m.UserID, s.transport.DeleteMessage(ctx, m.ChatID, m.MessageID))
	}
	if !d.MuteUntil.IsZero() {
		err := s.transport.Restrict(ctx, m.ChatID, m.UserID, NoPermissions, d.MuteUntil)
		if err != nil {
			s.flood.Unmute(key)
		}
		s.perform(ctx, "restrict", m.ChatID, m.UserID, err)
		if err == nil {
			s.notify(ctx, settings, noticeWarn, "Muted for flooding", m.UserID, "", humanizeDuration(settings.GetMuteDuration()))
		}
	}
	if d.WarnReason != "" {
		if _, err := s.warn(ctx, settings, m.ChatID, m.UserID, d.WarnReason); err != nil {
			return d.Verdict, err
		}
	}
	return d.Verdict, nil
}

func (s *Service) warn(ctx context.Context, settings *db.Settings, chatID, userID int64, reason string) (WarnResult, error) {
	res, err := s.ledger.Warn(ctx, chatID, userID, settings.MaxWarns)
	if err != nil {
		return res, err
	}
	if res.Banned {
		s.metrics.Decision("ledger", "banned")
		s.perform(ctx, "ban", chatID, userID, s.transport.Ban(ctx, chatID, userID))
		s.flood.Unmute(state.Key{ChatID: chatID, UserID: userID})
		s.notify(ctx, settings, noticeBan, "Banned after warnings", userID, "", reason)
		return res, nil
	}
	s.metrics.Decision("ledger", "warned")
	s.notify(ctx, settings, noticeWarn, "Warning issued", userID, "", fmt.Sprintf("%s (%d/%d)", reason, res.Count, settings.MaxWarns))
	return res, nil
}

// Sweep lifts mutes whose deadline passed and drops idle volatile state.
func (s *Service) Sweep(ctx context.Context) {
	now := s.now()
	for _, key := range s.flood.Sweep(now, memberIdleTTL) {
		if _, pending := s.captcha.Pending(key); pending {
			continue
		}
		if _, err := s.authorizedSettings(ctx, key.ChatID); err != nil {
			continue
		}
		s.perform(ctx, "unrestrict", key.ChatID, key.UserID, s.transport.Restrict(ctx, key.ChatID, key.UserID, FullPermissions, time.Time{}))
	}
	s.raids.Sweep(now, joinLogIdleTTL)
}

// perform logs a failed transport action. Denials are expected and never retried.
func (s *Service) perform(_ context.Context, action string, chatID, userID int64, err error) {
	if err == nil {
		return
	}
	s.metrics.ActionFailed(action)
	entry := s.getLogEntry().WithFields(log.Fields{
		"action": action,
		"chat":   chatID,
		"user":   userID,
		"error":  err.Error(),
	})
	if errors.Is(err, ngerrors.ErrTransportDenied) {
		entry.Warn("action denied by platform")
		return
	}
	entry.Error("action failed")
}

func newCaptchaToken() string {
	return strings.ReplaceAll(uuid.New(), "-", "")[:captchaTokenLength]
}

// captchaOptions returns the token among distinct decoys at a uniformly random position.
func captchaOptions(token string) []string {
	seen := map[string]struct{}{token: {}}
	options := make([]string, 0, captchaDecoys+1)
	for len(options) < captchaDecoys {
		decoy := newCaptchaToken()
		if _, dup := seen[decoy]; dup {
			continue
		}
		seen[decoy] = struct{}{}
		options = append(options, decoy)
	}
	pos := tool.RandInt(0, captchaDecoys+1)
	options = append(options[:pos], append([]string{token}, options[pos:]...)...)
	return options
}

// CaptchaCallbackData encodes a button answer as "captcha:<user>:<answer>".
func CaptchaCallbackData(userID int64, answer string) string {
	return fmt.Sprintf("%s:%d:%s", CaptchaCallbackPrefix, userID, answer)
}

func renderChallenge(c Challenge, name string, timeout time.Duration) (string, *Markup) {
	if name == "" {
		name = fmt.Sprintf("id%d", c.UserID)
	}
	if c.Mode == db.CaptchaModeToken {
		row := make([]Button, 0, len(c.Options))
		for _, option := range c.Options {
			row = append(row, Button{Text: option, Data: CaptchaCallbackData(c.UserID, option)})
		}
		text := fmt.Sprintf(i18n.Get("%s, welcome! Pick the code %s below within %s to prove you are not a bot.", c.Language), name, c.Token, humanizeDuration(timeout))
		return text, &Markup{Rows: [][]Button{row}}
	}
	text := fmt.Sprintf(i18n.Get("%s, welcome! Press the button below within %s to prove you are not a bot.", c.Language), name, humanizeDuration(timeout))
	return text, &Markup{Rows: [][]Button{{{
		Text: i18n.Get("I'm not a bot", c.Language),
		Data: CaptchaCallbackData(c.UserID, captchaPressAnswer),
	}}}}
}

func humanizeDuration(d time.Duration) string {
	switch {
	case d >= 24*time.Hour && d%(24*time.Hour) == 0:
		return fmt.Sprintf("%dd", d/(24*time.Hour))
	case d >= time.Hour && d%time.Hour == 0:
		return fmt.Sprintf("%dh", d/time.Hour)
	case d >= time.Minute && d%time.Minute == 0:
		return fmt.Sprintf("%dm", d/time.Minute)
	default:
		return fmt.Sprintf("%ds", d/time.Second)
	}
}
