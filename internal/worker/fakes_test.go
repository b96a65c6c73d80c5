package worker

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/wintera/fleet/internal/ai"
	"github.com/wintera/fleet/internal/models"
	"github.com/wintera/fleet/internal/repository"
	"github.com/wintera/fleet/internal/telegram"
	"github.com/wintera/fleet/pkg/database"
)

// ---- accounts ----

type fakeAccountRepo struct {
	accounts map[primitive.ObjectID]*models.Account
}

func newFakeAccountRepo(accounts ...*models.Account) *fakeAccountRepo {
	r := &fakeAccountRepo{accounts: make(map[primitive.ObjectID]*models.Account)}
	for _, a := range accounts {
		if a.ID.IsZero() {
			a.ID = primitive.NewObjectID()
		}
		r.accounts[a.ID] = a
	}
	return r
}

func (r *fakeAccountRepo) Create(_ context.Context, a *models.Account) error {
	a.ID = primitive.NewObjectID()
	if a.ReliabilityScore == 0 {
		a.ReliabilityScore = 100
	}
	a.CreatedAt = time.Now().UTC()
	r.accounts[a.ID] = a
	return nil
}

func (r *fakeAccountRepo) GetByID(_ context.Context, id primitive.ObjectID) (*models.Account, error) {
	a, ok := r.accounts[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	return a, nil
}

func (r *fakeAccountRepo) List(_ context.Context, filter models.AccountFilter) ([]*models.Account, error) {
	var out []*models.Account
	for _, a := range r.accounts {
		if filter.TenantID != "" && a.TenantID != filter.TenantID {
			continue
		}
		if filter.Status != "" && a.Status != filter.Status {
			continue
		}
		if filter.FolderID != "" && a.FolderID != filter.FolderID {
			continue
		}
		if len(filter.IDs) > 0 && !containsID(filter.IDs, a.ID) {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func containsID(ids []primitive.ObjectID, id primitive.ObjectID) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}

func (r *fakeAccountRepo) Update(_ context.Context, id primitive.ObjectID, u models.AccountUpdate) error {
	a, ok := r.accounts[id]
	if !ok {
		return database.ErrNotFound
	}
	if u.Status != nil {
		a.Status = *u.Status
	}
	if u.WarmupStatus != nil {
		a.WarmupStatus = *u.WarmupStatus
	}
	if u.FolderID != nil {
		a.FolderID = *u.FolderID
	}
	if u.LastError != nil {
		a.LastError = *u.LastError
	}
	return nil
}

func (r *fakeAccountRepo) Delete(_ context.Context, id primitive.ObjectID) error {
	delete(r.accounts, id)
	return nil
}

func (r *fakeAccountRepo) ApplySendSuccess(_ context.Context, id primitive.ObjectID) error {
	a := r.accounts[id]
	a.DailySent++
	a.ConsecutiveErrors = 0
	if a.ReliabilityScore < 100 {
		a.ReliabilityScore += 0.1
		if a.ReliabilityScore > 100 {
			a.ReliabilityScore = 100
		}
	}
	return nil
}

func (r *fakeAccountRepo) ApplyTransientFailure(_ context.Context, id primitive.ObjectID, penalty float64, reason string) error {
	a := r.accounts[id]
	a.ConsecutiveErrors++
	a.DailyErrors++
	a.ReliabilityScore -= penalty
	if a.ReliabilityScore < 0 {
		a.ReliabilityScore = 0
	}
	a.LastError = reason
	return nil
}

func (r *fakeAccountRepo) SetFloodWait(_ context.Context, id primitive.ObjectID, until time.Time) error {
	a := r.accounts[id]
	a.Status = models.AccountStatusFloodWait
	a.FloodWaitUntil = &until
	a.TotalFloodWaits++
	a.ReliabilityScore -= 5
	if a.ReliabilityScore < 0 {
		a.ReliabilityScore = 0
	}
	return nil
}

func (r *fakeAccountRepo) SetExtendedCooldown(_ context.Context, id primitive.ObjectID, until time.Time, reason string) error {
	a := r.accounts[id]
	a.Status = models.AccountStatusPausedRisk
	a.FloodWaitUntil = &until
	a.LastError = reason
	return nil
}

func (r *fakeAccountRepo) ReactivateIfExpired(_ context.Context, id primitive.ObjectID, now time.Time) (bool, error) {
	a := r.accounts[id]
	if a.Status != models.AccountStatusFloodWait && a.Status != models.AccountStatusPausedRisk {
		return false, nil
	}
	if a.FloodWaitUntil == nil || a.FloodWaitUntil.After(now) {
		return false, nil
	}
	a.Status = models.AccountStatusActive
	a.FloodWaitUntil = nil
	a.ConsecutiveErrors = 0
	return true, nil
}

func (r *fakeAccountRepo) ResetDailyCounters(_ context.Context, tenantID string) (int64, error) {
	var n int64
	for _, a := range r.accounts {
		if a.TenantID == tenantID {
			a.DailySent = 0
			a.DailyErrors = 0
			n++
		}
	}
	return n, nil
}

func (r *fakeAccountRepo) DistinctTenants(_ context.Context) ([]string, error) {
	seen := map[string]bool{}
	var out []string
	for _, a := range r.accounts {
		if !seen[a.TenantID] {
			seen[a.TenantID] = true
			out = append(out, a.TenantID)
		}
	}
	return out, nil
}

// ---- campaigns ----

type fakeCampaignRepo struct {
	campaigns map[primitive.ObjectID]*models.Campaign
}

func newFakeCampaignRepo(campaigns ...*models.Campaign) *fakeCampaignRepo {
	r := &fakeCampaignRepo{campaigns: make(map[primitive.ObjectID]*models.Campaign)}
	for _, c := range campaigns {
		if c.ID.IsZero() {
			c.ID = primitive.NewObjectID()
		}
		if c.AdaptiveMultiplier < 1.0 {
			c.AdaptiveMultiplier = 1.0
		}
		r.campaigns[c.ID] = c
	}
	return r
}

func (r *fakeCampaignRepo) Create(_ context.Context, c *models.Campaign) error {
	c.ID = primitive.NewObjectID()
	if c.AdaptiveMultiplier < 1.0 {
		c.AdaptiveMultiplier = 1.0
	}
	r.campaigns[c.ID] = c
	return nil
}

func (r *fakeCampaignRepo) GetByID(_ context.Context, id primitive.ObjectID) (*models.Campaign, error) {
	c, ok := r.campaigns[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	return c, nil
}

func (r *fakeCampaignRepo) ListActive(_ context.Context) ([]*models.Campaign, error) {
	var out []*models.Campaign
	for _, c := range r.campaigns {
		if c.Status == models.CampaignStatusPending || c.Status == models.CampaignStatusRunning {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *fakeCampaignRepo) Update(_ context.Context, id primitive.ObjectID, u models.CampaignUpdate) error {
	c := r.campaigns[id]
	if u.Status != nil {
		c.Status = *u.Status
	}
	if u.PauseReason != nil {
		c.PauseReason = *u.PauseReason
	}
	if u.TotalCount != nil {
		c.TotalCount = *u.TotalCount
	}
	if u.CurrentAccountID != nil {
		c.CurrentAccountID = *u.CurrentAccountID
	}
	if u.NextAccountIndex != nil {
		c.NextAccountIndex = *u.NextAccountIndex
	}
	if u.AdaptiveMultiplier != nil {
		c.AdaptiveMultiplier = *u.AdaptiveMultiplier
	}
	return nil
}

func (r *fakeCampaignRepo) TransitionStatus(_ context.Context, id primitive.ObjectID, from, to models.CampaignStatus, reason string) (bool, error) {
	if !from.CanTransition(to) {
		return false, fmt.Errorf("illegal transition %s -> %s", from, to)
	}
	c := r.campaigns[id]
	if c.Status != from {
		return false, nil
	}
	c.Status = to
	if reason != "" {
		c.PauseReason = reason
	}
	return true, nil
}

func (r *fakeCampaignRepo) IncrementSent(_ context.Context, id primitive.ObjectID) error {
	r.campaigns[id].SentCount++
	return nil
}

func (r *fakeCampaignRepo) IncrementFailed(_ context.Context, id primitive.ObjectID) error {
	r.campaigns[id].FailedCount++
	return nil
}

func (r *fakeCampaignRepo) PauseAllForTenant(_ context.Context, tenantID, reason string) (int64, error) {
	var n int64
	for _, c := range r.campaigns {
		if c.TenantID == tenantID && c.Status == models.CampaignStatusRunning {
			c.Status = models.CampaignStatusPaused
			c.PauseReason = reason
			n++
		}
	}
	return n, nil
}

// ---- audience ----

type fakeAudienceRepo struct {
	source  *models.AudienceSource
	members []*models.AudienceMember
}

func newFakeAudienceRepo(source *models.AudienceSource, members ...*models.AudienceMember) *fakeAudienceRepo {
	if source.ID.IsZero() {
		source.ID = primitive.NewObjectID()
	}
	for _, m := range members {
		if m.ID.IsZero() {
			m.ID = primitive.NewObjectID()
		}
		m.SourceID = source.ID
	}
	source.TotalCount = len(members)
	return &fakeAudienceRepo{source: source, members: members}
}

func (r *fakeAudienceRepo) GetSource(_ context.Context, id primitive.ObjectID) (*models.AudienceSource, error) {
	if r.source.ID != id {
		return nil, database.ErrNotFound
	}
	return r.source, nil
}

func (r *fakeAudienceRepo) ListUnsent(_ context.Context, sourceID primitive.ObjectID, limit int64) ([]*models.AudienceMember, error) {
	var out []*models.AudienceMember
	for _, m := range r.members {
		if m.SourceID == sourceID && !m.Sent {
			out = append(out, m)
			if int64(len(out)) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (r *fakeAudienceRepo) CountUnsent(_ context.Context, sourceID primitive.ObjectID) (int64, error) {
	var n int64
	for _, m := range r.members {
		if m.SourceID == sourceID && !m.Sent {
			n++
		}
	}
	return n, nil
}

func (r *fakeAudienceRepo) MarkSent(_ context.Context, memberID primitive.ObjectID, reason string) (bool, error) {
	for _, m := range r.members {
		if m.ID == memberID {
			if m.Sent {
				return false, nil
			}
			m.Sent = true
			m.FailReason = reason
			now := time.Now().UTC()
			m.SentAt = &now
			r.source.SentCount++
			return true, nil
		}
	}
	return false, database.ErrNotFound
}

func (r *fakeAudienceRepo) AddMembers(_ context.Context, sourceID primitive.ObjectID, members []*models.AudienceMember) (int, error) {
	for _, m := range members {
		m.ID = primitive.NewObjectID()
		m.SourceID = sourceID
		r.members = append(r.members, m)
	}
	r.source.TotalCount += len(members)
	return len(members), nil
}

// ---- blacklist ----

type fakeBlacklistRepo struct {
	blocked  map[int64]bool
	added    []*models.BlacklistEntry
	triggers []*models.StopTrigger
}

func newFakeBlacklistRepo() *fakeBlacklistRepo {
	return &fakeBlacklistRepo{blocked: make(map[int64]bool)}
}

func (r *fakeBlacklistRepo) IsBlacklisted(_ context.Context, _ string, telegramID int64) (bool, error) {
	return r.blocked[telegramID], nil
}

func (r *fakeBlacklistRepo) Add(_ context.Context, entry *models.BlacklistEntry) error {
	r.blocked[entry.TelegramID] = true
	r.added = append(r.added, entry)
	return nil
}

func (r *fakeBlacklistRepo) ListActiveTriggers(_ context.Context, _ string) ([]*models.StopTrigger, error) {
	return r.triggers, nil
}

func (r *fakeBlacklistRepo) IncrementTriggerHits(_ context.Context, _ primitive.ObjectID) error {
	return nil
}

// ---- content ----

type fakeContentRepo struct {
	templates map[primitive.ObjectID]*models.MessageTemplate
	channels  map[primitive.ObjectID]*models.UserChannel
	due       []*models.ScheduledContent
	schedules []*models.TemplateSchedule
	published map[primitive.ObjectID]int
	errors    map[primitive.ObjectID]string
}

func newFakeContentRepo() *fakeContentRepo {
	return &fakeContentRepo{
		templates: make(map[primitive.ObjectID]*models.MessageTemplate),
		channels:  make(map[primitive.ObjectID]*models.UserChannel),
		published: make(map[primitive.ObjectID]int),
		errors:    make(map[primitive.ObjectID]string),
	}
}

func (r *fakeContentRepo) addTemplate(t *models.MessageTemplate) primitive.ObjectID {
	if t.ID.IsZero() {
		t.ID = primitive.NewObjectID()
	}
	r.templates[t.ID] = t
	return t.ID
}

func (r *fakeContentRepo) addChannel(c *models.UserChannel) primitive.ObjectID {
	if c.ID.IsZero() {
		c.ID = primitive.NewObjectID()
	}
	r.channels[c.ID] = c
	return c.ID
}

func (r *fakeContentRepo) DueContent(_ context.Context, _ time.Time) ([]*models.ScheduledContent, error) {
	return r.due, nil
}

func (r *fakeContentRepo) MarkPublished(_ context.Context, id primitive.ObjectID, messageID int) error {
	r.published[id] = messageID
	return nil
}

func (r *fakeContentRepo) MarkContentError(_ context.Context, id primitive.ObjectID, errMsg string) error {
	r.errors[id] = errMsg
	return nil
}

func (r *fakeContentRepo) ActiveTemplateSchedules(_ context.Context) ([]*models.TemplateSchedule, error) {
	return r.schedules, nil
}

func (r *fakeContentRepo) TouchTemplateSchedule(_ context.Context, id primitive.ObjectID, publishedAt time.Time, errMsg string) error {
	for _, s := range r.schedules {
		if s.ID == id {
			if !publishedAt.IsZero() {
				at := publishedAt
				s.LastPublishedAt = &at
			}
			s.Error = errMsg
		}
	}
	return nil
}

func (r *fakeContentRepo) GetChannel(_ context.Context, id primitive.ObjectID) (*models.UserChannel, error) {
	c, ok := r.channels[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	return c, nil
}

func (r *fakeContentRepo) GetTemplate(_ context.Context, id primitive.ObjectID) (*models.MessageTemplate, error) {
	t, ok := r.templates[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	return t, nil
}

// ---- settings / panic ----

type fakeSettingsRepo struct {
	settings map[string]*models.TenantSettings
	panics   map[string]*models.PanicFlag
	resets   map[string]string
}

func newFakeSettingsRepo() *fakeSettingsRepo {
	return &fakeSettingsRepo{
		settings: make(map[string]*models.TenantSettings),
		panics:   make(map[string]*models.PanicFlag),
		resets:   make(map[string]string),
	}
}

func (r *fakeSettingsRepo) GetOrDefault(_ context.Context, tenantID string) (*models.TenantSettings, error) {
	if s, ok := r.settings[tenantID]; ok {
		return s, nil
	}
	return models.DefaultTenantSettings(tenantID), nil
}

func (r *fakeSettingsRepo) SetLastDailyReset(_ context.Context, tenantID, localDate string) error {
	r.resets[tenantID] = localDate
	if s, ok := r.settings[tenantID]; ok {
		s.LastDailyReset = localDate
	}
	return nil
}

func (r *fakeSettingsRepo) GetPanicFlag(_ context.Context, tenantID string) (*models.PanicFlag, error) {
	return r.panics[tenantID], nil
}

func (r *fakeSettingsRepo) ClearPanicFlag(_ context.Context, tenantID string) error {
	if f, ok := r.panics[tenantID]; ok {
		f.IsPaused = false
		f.AutoResumeAt = nil
	}
	return nil
}

// ---- stats ----

type fakeStatsRepo struct {
	buckets map[string]*models.HourlyStats
	errors  []*models.ErrorLog
}

func newFakeStatsRepo() *fakeStatsRepo {
	return &fakeStatsRepo{buckets: make(map[string]*models.HourlyStats)}
}

func bucketKey(tenantID string, dow, hour int) string {
	return fmt.Sprintf("%s/%d/%d", tenantID, dow, hour)
}

func (r *fakeStatsRepo) IncrementHourly(_ context.Context, tenantID string, at time.Time, delta repository.HourlyDelta) error {
	at = at.UTC()
	key := bucketKey(tenantID, int(at.Weekday()), at.Hour())
	b, ok := r.buckets[key]
	if !ok {
		b = &models.HourlyStats{TenantID: tenantID, DayOfWeek: int(at.Weekday()), Hour: at.Hour()}
		r.buckets[key] = b
	}
	b.Sent += delta.Sent
	b.Success += delta.Success
	b.Failed += delta.Failed
	b.FloodWaits += delta.FloodWaits
	return nil
}

func (r *fakeStatsRepo) TenantHeatmap(_ context.Context, tenantID string) ([]*models.HourlyStats, error) {
	var out []*models.HourlyStats
	for _, b := range r.buckets {
		if b.TenantID == tenantID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (r *fakeStatsRepo) HourBucket(_ context.Context, tenantID string, dow, hour int) (*models.HourlyStats, error) {
	return r.buckets[bucketKey(tenantID, dow, hour)], nil
}

func (r *fakeStatsRepo) LogError(_ context.Context, log *models.ErrorLog) error {
	r.errors = append(r.errors, log)
	return nil
}

// ---- mailing cache ----

type fakeMailCache struct {
	seen map[string]bool
}

func newFakeMailCache() *fakeMailCache {
	return &fakeMailCache{seen: make(map[string]bool)}
}

func (c *fakeMailCache) Seen(_ context.Context, tenantID string, telegramID int64) (bool, error) {
	return c.seen[fmt.Sprintf("%s/%d", tenantID, telegramID)], nil
}

func (c *fakeMailCache) Mark(_ context.Context, tenantID string, telegramID int64, _ int) error {
	c.seen[fmt.Sprintf("%s/%d", tenantID, telegramID)] = true
	return nil
}

// ---- herder ----

type fakeHerderRepo struct {
	assignments []*models.HerderAssignment
	actions     []*models.HerderActionLog
}

func (r *fakeHerderRepo) ListActive(_ context.Context) ([]*models.HerderAssignment, error) {
	return r.assignments, nil
}

func (r *fakeHerderRepo) SetStatus(_ context.Context, id primitive.ObjectID, status models.HerderStatus, resumeAt *time.Time) error {
	for _, a := range r.assignments {
		if a.ID == id {
			a.Status = status
			a.ResumeAt = resumeAt
		}
	}
	return nil
}

func (r *fakeHerderRepo) IncrementActions(_ context.Context, id primitive.ObjectID, actions, comments int) error {
	for _, a := range r.assignments {
		if a.ID == id {
			a.TotalActions += actions
			a.TotalComments += comments
		}
	}
	return nil
}

func (r *fakeHerderRepo) LogAction(_ context.Context, log *models.HerderActionLog) error {
	log.Timestamp = time.Now().UTC()
	r.actions = append(r.actions, log)
	return nil
}

func (r *fakeHerderRepo) CountCommentsToday(_ context.Context, assignmentID primitive.ObjectID, _ time.Time) (int64, error) {
	var n int64
	for _, a := range r.actions {
		if a.AssignmentID == assignmentID && a.Kind == models.ActionComment && a.Status == "success" {
			n++
		}
	}
	return n, nil
}

func (r *fakeHerderRepo) CountAccountActionsToday(_ context.Context, accountID primitive.ObjectID, _ time.Time) (int64, error) {
	var n int64
	for _, a := range r.actions {
		if a.AccountID == accountID && a.Status == "success" {
			n++
		}
	}
	return n, nil
}

// ---- warmup ----

type fakeWarmupRepo struct {
	programs []*models.WarmupProgress
}

func (r *fakeWarmupRepo) Create(_ context.Context, p *models.WarmupProgress) error {
	p.ID = primitive.NewObjectID()
	if p.CurrentDay == 0 {
		p.CurrentDay = 1
	}
	if p.Status == "" {
		p.Status = models.WarmupProgressInProgress
	}
	r.programs = append(r.programs, p)
	return nil
}

func (r *fakeWarmupRepo) ListInProgress(_ context.Context) ([]*models.WarmupProgress, error) {
	var out []*models.WarmupProgress
	for _, p := range r.programs {
		if p.Status == models.WarmupProgressInProgress {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *fakeWarmupRepo) Advance(_ context.Context, id primitive.ObjectID, action models.WarmupAction, completed bool) error {
	for _, p := range r.programs {
		if p.ID == id {
			p.CompletedActions = append(p.CompletedActions, action)
			now := time.Now().UTC()
			p.LastActionAt = &now
			if completed {
				p.Status = models.WarmupProgressCompleted
				p.CompletedAt = &now
			} else {
				p.CurrentDay++
			}
		}
	}
	return nil
}

// ---- schedules ----

type fakeScheduleRepo struct {
	mailings []*models.ScheduledMailing
	tasks    []*models.ScheduledTask
}

func (r *fakeScheduleRepo) DueMailings(_ context.Context, now time.Time) ([]*models.ScheduledMailing, error) {
	var out []*models.ScheduledMailing
	for _, m := range r.mailings {
		if m.Status == models.ScheduleStatusPending && !m.ScheduledAt.After(now) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *fakeScheduleRepo) DueTasks(_ context.Context, now time.Time) ([]*models.ScheduledTask, error) {
	var out []*models.ScheduledTask
	for _, t := range r.tasks {
		if t.Status == models.ScheduleStatusPending && !t.ScheduledAt.After(now) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *fakeScheduleRepo) CompleteMailing(_ context.Context, id primitive.ObjectID, status models.ScheduleStatus, errMsg string) error {
	for _, m := range r.mailings {
		if m.ID == id {
			m.Status = status
			m.Error = errMsg
		}
	}
	return nil
}

func (r *fakeScheduleRepo) CompleteTask(_ context.Context, id primitive.ObjectID, status models.ScheduleStatus, errMsg string) error {
	for _, t := range r.tasks {
		if t.ID == id {
			t.Status = status
			t.Error = errMsg
		}
	}
	return nil
}

func (r *fakeScheduleRepo) RearmTask(_ context.Context, id primitive.ObjectID, nextAt, ranAt time.Time) error {
	for _, t := range r.tasks {
		if t.ID == id {
			t.ScheduledAt = nextAt
			at := ranAt
			t.LastRunAt = &at
		}
	}
	return nil
}

func (r *fakeScheduleRepo) RearmMailing(_ context.Context, id primitive.ObjectID, nextAt time.Time) error {
	for _, m := range r.mailings {
		if m.ID == id {
			m.ScheduledAt = nextAt
		}
	}
	return nil
}

// ---- gateway ----

// sendResult scripts the gateway's answer for one recipient.
type sendResult struct {
	err error
	// remaining answers for the same recipient, consumed in order
	then []error
}

type fakeGateway struct {
	// per-recipient scripted send results; default success
	sendScript map[int64]*sendResult
	sent       []sentRecord
	posts      []models.ChannelPost
	postsErr   error
	reactions  []string
	comments   []string
	reactErr   error
	commentErr error
	joined     []string
	channelMsg []string

	participants    []telegram.ParsedUser
	participantsErr error

	profileUpdates []string
	profileErr     error
}

type sentRecord struct {
	AccountID  string
	TelegramID int64
	Text       string
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{sendScript: make(map[int64]*sendResult)}
}

func (g *fakeGateway) scriptError(telegramID int64, errs ...error) {
	if len(errs) == 0 {
		return
	}
	g.sendScript[telegramID] = &sendResult{err: errs[0], then: errs[1:]}
}

func (g *fakeGateway) SendMessage(_ context.Context, sender telegram.AccountRef, target telegram.Target, text, _ string, _ time.Duration) (int, error) {
	if script, ok := g.sendScript[target.TelegramID]; ok {
		err := script.err
		if len(script.then) > 0 {
			script.err = script.then[0]
			script.then = script.then[1:]
		} else {
			delete(g.sendScript, target.TelegramID)
		}
		if err != nil {
			return 0, err
		}
	}
	g.sent = append(g.sent, sentRecord{AccountID: sender.ID, TelegramID: target.TelegramID, Text: text})
	return len(g.sent), nil
}

func (g *fakeGateway) SendChannelMessage(_ context.Context, _ telegram.AccountRef, channel, text, _ string) (int, error) {
	g.channelMsg = append(g.channelMsg, channel+": "+text)
	return len(g.channelMsg), nil
}

func (g *fakeGateway) JoinChannel(_ context.Context, _ telegram.AccountRef, channel string) error {
	g.joined = append(g.joined, channel)
	return nil
}

func (g *fakeGateway) GetChannelPosts(_ context.Context, _ telegram.AccountRef, _ string, _ int) ([]models.ChannelPost, error) {
	return g.posts, g.postsErr
}

func (g *fakeGateway) SendReaction(_ context.Context, _ telegram.AccountRef, _ string, _ int, emoji string) error {
	if g.reactErr != nil {
		return g.reactErr
	}
	g.reactions = append(g.reactions, emoji)
	return nil
}

func (g *fakeGateway) SendComment(_ context.Context, _ telegram.AccountRef, _ string, _ int, text string) (int, error) {
	if g.commentErr != nil {
		return 0, g.commentErr
	}
	g.comments = append(g.comments, text)
	return len(g.comments), nil
}

func (g *fakeGateway) UpdateProfile(_ context.Context, _ telegram.AccountRef, firstName, lastName, about string) error {
	if g.profileErr != nil {
		return g.profileErr
	}
	g.profileUpdates = append(g.profileUpdates, firstName+"|"+lastName+"|"+about)
	return nil
}

func (g *fakeGateway) GetChannelParticipants(_ context.Context, _ telegram.AccountRef, _ string, limit, offset int) ([]telegram.ParsedUser, int, error) {
	if g.participantsErr != nil {
		return nil, 0, g.participantsErr
	}
	if offset >= len(g.participants) {
		return nil, len(g.participants), nil
	}
	end := offset + limit
	if end > len(g.participants) {
		end = len(g.participants)
	}
	return g.participants[offset:end], len(g.participants), nil
}

// ---- profiles ----

type fakeProfileRepo struct {
	profiles map[primitive.ObjectID]*models.AccountProfile
}

func newFakeProfileRepo() *fakeProfileRepo {
	return &fakeProfileRepo{profiles: make(map[primitive.ObjectID]*models.AccountProfile)}
}

func (r *fakeProfileRepo) GetByAccount(_ context.Context, accountID primitive.ObjectID) (*models.AccountProfile, error) {
	return r.profiles[accountID], nil
}

func (r *fakeProfileRepo) Upsert(_ context.Context, profile *models.AccountProfile) error {
	profile.UpdatedAt = time.Now().UTC()
	r.profiles[profile.AccountID] = profile
	return nil
}

func (r *fakeProfileRepo) MarkApplied(_ context.Context, accountID primitive.ObjectID) error {
	if p, ok := r.profiles[accountID]; ok {
		now := time.Now().UTC()
		p.AppliedAt = &now
	}
	return nil
}

// ---- ai ----

type fakeAI struct {
	configured bool
	comment    string
	profile    *ai.Profile
	err        error
}

func (a *fakeAI) Configured() bool { return a.configured }

func (a *fakeAI) PersonalizeMessage(_ context.Context, template, _, _ string) (string, error) {
	if a.err != nil {
		return "", a.err
	}
	return template, nil
}

func (a *fakeAI) CommentFor(_ context.Context, _, _ string, _ int) (string, error) {
	if a.err != nil {
		return "", a.err
	}
	return a.comment, nil
}

func (a *fakeAI) Rewrite(_ context.Context, text string) (string, error) {
	if a.err != nil {
		return "", a.err
	}
	return text, nil
}

func (a *fakeAI) GenerateProfile(_ context.Context, _ string, _ []string, _ string) (*ai.Profile, error) {
	if a.err != nil {
		return nil, a.err
	}
	return a.profile, nil
}

// ---- notifier ----

type fakeNotifier struct {
	messages []string
}

func (n *fakeNotifier) Notify(_ context.Context, _ string, message string) {
	n.messages = append(n.messages, message)
}
