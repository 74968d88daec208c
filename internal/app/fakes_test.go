package app

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"banquet_crm/internal/domain/employee"
	"banquet_crm/internal/domain/lead"
	"banquet_crm/internal/domain/messaging"
	"banquet_crm/internal/domain/notification"
	"banquet_crm/internal/domain/settings"
	idb "banquet_crm/internal/infra/database"
	"banquet_crm/internal/infra/phone"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

var errBoom = errors.New("boom")

func testLogger() logrus.FieldLogger {
	l, _ := test.NewNullLogger()
	return l
}

// fakeLeadRepo mirrors the postgres repository semantics in memory.
type fakeLeadRepo struct {
	mu    sync.Mutex
	leads map[string]*lead.Lead
	order []string
}

func newFakeLeadRepo(leads ...*lead.Lead) *fakeLeadRepo {
	r := &fakeLeadRepo{leads: make(map[string]*lead.Lead)}
	for _, l := range leads {
		r.put(l)
	}
	return r
}

func (r *fakeLeadRepo) put(l *lead.Lead) {
	c := *l
	if c.StageUpdatedAt.IsZero() {
		c.StageUpdatedAt = c.CreatedAt
	}
	r.leads[c.ID] = &c
	r.order = append(r.order, c.ID)
}

func (r *fakeLeadRepo) get(id string) *lead.Lead {
	r.mu.Lock()
	defer r.mu.Unlock()
	if l, ok := r.leads[id]; ok {
		c := *l
		return &c
	}
	return nil
}

func (r *fakeLeadRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.leads)
}

func (r *fakeLeadRepo) Create(_ context.Context, l *lead.Lead) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if l.Phone != "" {
		for _, existing := range r.leads {
			if existing.Phone == l.Phone {
				return idb.ErrDuplicatePhone
			}
		}
	}
	l.UpdatedAt = l.CreatedAt
	l.StageUpdatedAt = l.CreatedAt
	r.put(l)
	return nil
}

func (r *fakeLeadRepo) GetByID(_ context.Context, id string) (*lead.Lead, error) {
	if l := r.get(id); l != nil {
		return l, nil
	}
	return nil, idb.ErrLeadNotFound
}

func (r *fakeLeadRepo) GetByPhone(_ context.Context, phone string) (*lead.Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.leads {
		if phone != "" && l.Phone == phone {
			c := *l
			return &c, nil
		}
	}
	return nil, idb.ErrLeadNotFound
}

func (r *fakeLeadRepo) update(id string, fn func(l *lead.Lead)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.leads[id]
	if !ok {
		return idb.ErrLeadNotFound
	}
	fn(l)
	return nil
}

func (r *fakeLeadRepo) SetAssignment(_ context.Context, id, assignee, method string, at time.Time) error {
	return r.update(id, func(l *lead.Lead) {
		l.Assignee = assignee
		l.AssignmentMethod = method
		l.AssignedAt = &at
	})
}

func (r *fakeLeadRepo) CountNewByAssignee(_ context.Context) (map[string]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[string]int)
	for _, l := range r.leads {
		if l.Stage == lead.StageNew && l.Assignee != "" {
			counts[l.Assignee]++
		}
	}
	return counts, nil
}

func (r *fakeLeadRepo) UpdateStage(_ context.Context, id string, stage lead.Stage, at time.Time) error {
	return r.update(id, func(l *lead.Lead) {
		if stage == lead.StageQuoted && l.Stage != lead.StageQuoted {
			l.QuoteReminderSent = false
		}
		l.Stage = stage
		l.StageUpdatedAt = at
	})
}

func (r *fakeLeadRepo) ApplyAutomation(_ context.Context, id string, a lead.Automation) error {
	return r.update(id, func(l *lead.Lead) {
		if a.NextFollowUpAt != nil {
			l.NextFollowUpAt = a.NextFollowUpAt
		}
		l.AIHandling = l.AIHandling || a.AIHandling
	})
}

func (r *fakeLeadRepo) RecordGreeting(_ context.Context, id string, at time.Time) error {
	return r.update(id, func(l *lead.Lead) {
		l.GreetingSentAt = &at
		l.LastContactedAt = &at
	})
}

func (r *fakeLeadRepo) RecordActivity(_ context.Context, id string, a lead.Activity) error {
	return r.update(id, func(l *lead.Lead) {
		at := a.At
		l.LastMessagePreview = lead.PreviewOf(a.Preview)
		l.LastMessageAt = &at
		l.LastMessageDirection = a.Direction
		if a.Direction == lead.DirectionInbound {
			l.HasUnreadMessages = true
		}
		if a.Direction == lead.DirectionOutbound && l.FirstResponseAt == nil {
			l.FirstResponseAt = &at
			l.LastContactedAt = &at
		}
	})
}

func (r *fakeLeadRepo) ListByStages(_ context.Context, stages []lead.Stage) ([]*lead.Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*lead.Lead
	for _, id := range r.order {
		l := r.leads[id]
		for _, s := range stages {
			if l.Stage == s {
				c := *l
				out = append(out, &c)
				break
			}
		}
	}
	return out, nil
}

func (r *fakeLeadRepo) setFlag(id string, flag func(l *lead.Lead) *bool) (bool, error) {
	changed := false
	err := r.update(id, func(l *lead.Lead) {
		p := flag(l)
		if !*p {
			*p = true
			changed = true
		}
	})
	return changed, err
}

func (r *fakeLeadRepo) MarkReminded(_ context.Context, id string) (bool, error) {
	return r.setFlag(id, func(l *lead.Lead) *bool { return &l.Reminded })
}

func (r *fakeLeadRepo) MarkEscalated(_ context.Context, id string) (bool, error) {
	return r.setFlag(id, func(l *lead.Lead) *bool { return &l.Escalated })
}

func (r *fakeLeadRepo) MarkQuoteReminderSent(_ context.Context, id string) (bool, error) {
	return r.setFlag(id, func(l *lead.Lead) *bool { return &l.QuoteReminderSent })
}

type fakeMessageRepo struct {
	mu       sync.Mutex
	messages []*lead.Message
}

func (r *fakeMessageRepo) Append(_ context.Context, m *lead.Message) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m.ExternalID != "" {
		for _, existing := range r.messages {
			if existing.Provider == m.Provider && existing.ExternalID == m.ExternalID {
				return false, nil
			}
		}
	}
	c := *m
	r.messages = append(r.messages, &c)
	return true, nil
}

func (r *fakeMessageRepo) ListByLead(_ context.Context, leadID string) ([]*lead.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*lead.Message
	for _, m := range r.messages {
		if m.LeadID == leadID {
			out = append(out, m)
		}
	}
	return out, nil
}

type fakeEmployeeRepo struct {
	employees []*employee.Employee
	err       error
}

func (r *fakeEmployeeRepo) ListByRoles(_ context.Context, roles []employee.Role) ([]*employee.Employee, error) {
	if r.err != nil {
		return nil, r.err
	}
	var out []*employee.Employee
	for _, e := range r.employees {
		for _, role := range roles {
			if e.Role == role && e.IsActive {
				out = append(out, e)
				break
			}
		}
	}
	return out, nil
}

func (r *fakeEmployeeRepo) GetByName(_ context.Context, name string) (*employee.Employee, error) {
	for _, e := range r.employees {
		if strings.EqualFold(e.Name, strings.TrimSpace(name)) {
			return e, nil
		}
	}
	return nil, idb.ErrEmployeeNotFound
}

type fakeNotificationRepo struct {
	mu            sync.Mutex
	notifications []*notification.Notification
	failAll       bool
	failForLead   string
}

func (r *fakeNotificationRepo) Create(_ context.Context, n *notification.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failAll || (r.failForLead != "" && n.LeadID == r.failForLead) {
		return errBoom
	}
	c := *n
	r.notifications = append(r.notifications, &c)
	return nil
}

func (r *fakeNotificationRepo) ofType(t notification.Type) []*notification.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*notification.Notification
	for _, n := range r.notifications {
		if n.Type == t {
			out = append(out, n)
		}
	}
	return out
}

func (r *fakeNotificationRepo) all() []*notification.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*notification.Notification(nil), r.notifications...)
}

func visibleTo(n *notification.Notification, user, role string) bool {
	switch n.Target.Kind {
	case notification.TargetAll:
		return true
	case notification.TargetUser:
		return strings.EqualFold(n.Target.Value, user)
	case notification.TargetRole:
		return strings.EqualFold(n.Target.Value, role)
	}
	return false
}

func (r *fakeNotificationRepo) ListForRecipient(_ context.Context, user, role string, limit int) ([]*notification.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*notification.Notification
	for _, n := range r.notifications {
		if visibleTo(n, user, role) {
			out = append(out, n)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeNotificationRepo) MarkRead(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range r.notifications {
		if n.ID == id {
			n.Read = true
			return nil
		}
	}
	return idb.ErrNotificationNotFound
}

func (r *fakeNotificationRepo) MarkAllRead(_ context.Context, user, role string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, n := range r.notifications {
		if !n.Read && visibleTo(n, user, role) {
			n.Read = true
			count++
		}
	}
	return count, nil
}

type fakeSettingsRepo struct {
	snap *settings.Snapshot
	err  error
}

func (r *fakeSettingsRepo) Load(context.Context) (*settings.Snapshot, error) {
	if r.err != nil {
		return nil, r.err
	}
	c := *r.snap
	return &c, nil
}

type sentMessage struct {
	To   string
	Body string
}

type fakeSMS struct {
	mu     sync.Mutex
	sent   []sentMessage
	result messaging.Result
}

func newFakeSMS() *fakeSMS {
	return &fakeSMS{result: messaging.Result{Success: true, MessageID: "SM1"}}
}

func (f *fakeSMS) SendSMS(_ context.Context, _ settings.TwilioSettings, to, body string) messaging.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMessage{To: to, Body: body})
	return f.result
}

func (f *fakeSMS) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

// fakeWhatsApp implements all three greeting adapters.
type fakeWhatsApp struct {
	mu     sync.Mutex
	calls  []string
	to     []string
	params [][]string
	result messaging.Result
}

func newFakeWhatsApp() *fakeWhatsApp {
	return &fakeWhatsApp{result: messaging.Result{Success: true, MessageID: "wamid.1"}}
}

func (f *fakeWhatsApp) record(provider, to string, params []string) messaging.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, provider)
	f.to = append(f.to, to)
	f.params = append(f.params, params)
	return f.result
}

func (f *fakeWhatsApp) SendWhatsApp(_ context.Context, _ settings.TwilioSettings, to, _ string) messaging.Result {
	return f.record("twilio", to, nil)
}

func (f *fakeWhatsApp) SendSessionMessage(_ context.Context, _ settings.WatiSettings, to, _ string) messaging.Result {
	return f.record("wati", to, nil)
}

func (f *fakeWhatsApp) SendCampaign(_ context.Context, _ settings.AisensySettings, to, _ string, params []string) messaging.Result {
	return f.record("aisensy", to, params)
}

type publishedLead struct {
	Lead         *lead.Lead
	Notification *notification.Notification
}

type fakeFanout struct {
	mu        sync.Mutex
	published []publishedLead
	err       error
	panics    bool
}

func (f *fakeFanout) PublishNewLead(_ context.Context, l *lead.Lead, n *notification.Notification) error {
	if f.panics {
		panic("fanout exploded")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, publishedLead{Lead: l, Notification: n})
	return f.err
}

type fakeTelegram struct {
	mu    sync.Mutex
	texts map[int64][]string
	err   error
}

func (f *fakeTelegram) SendText(chatID int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.texts == nil {
		f.texts = make(map[int64][]string)
	}
	f.texts[chatID] = append(f.texts[chatID], text)
	return f.err
}

// fixture wires the app services over in-memory fakes with a fixed clock.
type fixture struct {
	now           time.Time
	loc           *time.Location
	leads         *fakeLeadRepo
	messages      *fakeMessageRepo
	employees     *fakeEmployeeRepo
	notifications *fakeNotificationRepo
	settings      *fakeSettingsRepo
	sms           *fakeSMS
	whatsapp      *fakeWhatsApp
	fanout        *fakeFanout
	telegram      *fakeTelegram

	dispatcher *Dispatcher
	greeter    *Greeter
	engine     *AssignmentEngine
	leadSvc    *LeadService
	scanner    *Scanner
	inbound    *InboundService
}

func karachi() *time.Location {
	loc, err := time.LoadLocation("Asia/Karachi")
	if err != nil {
		return time.FixedZone("PKT", 5*60*60)
	}
	return loc
}

func defaultEmployees() []*employee.Employee {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	return []*employee.Employee{
		{ID: "e0", Name: "Unassigned", Role: employee.RoleSales, IsActive: true, CreatedAt: base},
		{ID: "e1", Name: "Ali", Role: employee.RoleSales, Phone: "03001112222", IsActive: true, CreatedAt: base.Add(time.Hour)},
		{ID: "e2", Name: "Sana", Role: employee.RoleAdmin, Phone: "+92 300 333 4444", IsActive: true, CreatedAt: base.Add(2 * time.Hour)},
		{ID: "e3", Name: "Omar", Role: employee.RoleOwner, Phone: "", IsActive: true, CreatedAt: base.Add(3 * time.Hour)},
		{ID: "e4", Name: "Maryam", Role: employee.RoleManager, Phone: "03005556666", IsActive: true, CreatedAt: base.Add(4 * time.Hour)},
		{ID: "e5", Name: "Bilal", Role: employee.RoleSales, Phone: "0300123", IsActive: false, CreatedAt: base.Add(5 * time.Hour)},
	}
}

// smsSnapshot enables SMS for every type with working credentials.
func smsSnapshot() *settings.Snapshot {
	snap := settings.Defaults()
	snap.Integrations.SMS = settings.SMSSettings{
		Enabled: true, OnAssignment: true, OnEscalation: true, OnSiteVisit: true, OnQuoteFollowUp: true,
		EscalationRecipient: "Sana",
	}
	snap.Integrations.Twilio = settings.TwilioSettings{
		AccountSID: "AC1", AuthToken: "tok", FromNumber: "+15550001111", WhatsAppFrom: "+15550002222",
	}
	return snap
}

func newFixture(seed ...*lead.Lead) *fixture {
	f := &fixture{
		now:           time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC),
		loc:           karachi(),
		leads:         newFakeLeadRepo(seed...),
		messages:      &fakeMessageRepo{},
		employees:     &fakeEmployeeRepo{employees: defaultEmployees()},
		notifications: &fakeNotificationRepo{},
		settings:      &fakeSettingsRepo{snap: smsSnapshot()},
		sms:           newFakeSMS(),
		whatsapp:      newFakeWhatsApp(),
		fanout:        &fakeFanout{},
		telegram:      &fakeTelegram{},
	}
	clock := func() time.Time { return f.now }
	phones := phone.New("PK")
	log := testLogger()

	f.dispatcher = NewDispatcher(f.notifications, f.employees, f.sms, phones, log).WithTelegramAlerts(f.telegram, 4242)
	f.dispatcher.now = clock
	f.greeter = NewGreeter(f.whatsapp, f.whatsapp, f.whatsapp, f.leads, f.messages, phones, log)
	f.greeter.now = clock
	f.engine = NewAssignmentEngine(f.employees, f.leads)
	f.leadSvc = NewLeadService(f.leads, f.settings, f.engine, f.dispatcher, f.greeter, phones, f.loc, log, f.fanout)
	f.leadSvc.now = clock
	f.scanner = NewScanner(f.leads, f.settings, f.dispatcher, f.loc, log)
	f.scanner.now = clock
	f.inbound = NewInboundService(f.leads, f.messages, f.leadSvc, phones, log)
	return f
}

func ptr[T any](v T) *T { return &v }
