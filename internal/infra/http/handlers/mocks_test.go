package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"banquet_crm/internal/app"
	"banquet_crm/internal/domain/lead"
	"banquet_crm/internal/domain/notification"
	"banquet_crm/internal/domain/settings"
	"banquet_crm/internal/infra/webhook"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/mock"
)

type MockLeadService struct {
	mock.Mock
}

func (m *MockLeadService) CreateLead(ctx context.Context, in app.CreateLeadInput) (*app.CreateLeadResult, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*app.CreateLeadResult), args.Error(1)
}

func (m *MockLeadService) ChangeStage(ctx context.Context, id string, stage lead.Stage) (*lead.Lead, error) {
	args := m.Called(ctx, id, stage)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*lead.Lead), args.Error(1)
}

type MockNotificationService struct {
	mock.Mock
}

func (m *MockNotificationService) ListForRecipient(ctx context.Context, userName, role string, limit int) ([]*notification.Notification, error) {
	args := m.Called(ctx, userName, role, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*notification.Notification), args.Error(1)
}

func (m *MockNotificationService) MarkRead(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockNotificationService) MarkAllRead(ctx context.Context, userName, role string) (int64, error) {
	args := m.Called(ctx, userName, role)
	return args.Get(0).(int64), args.Error(1)
}

type MockInboundService struct {
	mock.Mock
}

func (m *MockInboundService) Handle(ctx context.Context, ev webhook.Event) (*app.InboundResult, error) {
	args := m.Called(ctx, ev)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*app.InboundResult), args.Error(1)
}

type MockMetaLeadService struct {
	mock.Mock
}

func (m *MockMetaLeadService) VerifySubscription(ctx context.Context, mode, token string) (bool, error) {
	args := m.Called(ctx, mode, token)
	return args.Bool(0), args.Error(1)
}

func (m *MockMetaLeadService) Import(ctx context.Context, changes []webhook.LeadgenChange) (*app.MetaImportReport, error) {
	args := m.Called(ctx, changes)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*app.MetaImportReport), args.Error(1)
}

type MockSweepRunner struct {
	mock.Mock
}

func (m *MockSweepRunner) Run(ctx context.Context, name string) (*app.SweepReport, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*app.SweepReport), args.Error(1)
}

type stubSettings struct {
	snap *settings.Snapshot
	err  error
}

func (s *stubSettings) Load(context.Context) (*settings.Snapshot, error) {
	return s.snap, s.err
}

func nullLogger() logrus.FieldLogger {
	l, _ := test.NewNullLogger()
	return l
}

type testServer struct {
	leads         *MockLeadService
	notifications *MockNotificationService
	inbound       *MockInboundService
	meta          *MockMetaLeadService
	sweeps        *MockSweepRunner
	settings      *stubSettings
	router        http.Handler
}

func newTestServer(t *testing.T, sweepSecret string) *testServer {
	t.Helper()
	s := &testServer{
		leads:         new(MockLeadService),
		notifications: new(MockNotificationService),
		inbound:       new(MockInboundService),
		meta:          new(MockMetaLeadService),
		sweeps:        new(MockSweepRunner),
		settings:      &stubSettings{snap: settings.Defaults()},
	}
	log := nullLogger()
	s.router = NewRouter(RouterDeps{
		Leads:          NewLeadHandler(s.leads, NewValidator(), time.UTC, log),
		Notifications:  NewNotificationHandler(s.notifications, log),
		WhatsApp:       NewWhatsAppWebhookHandler(s.inbound, s.settings, log),
		Meta:           NewMetaWebhookHandler(s.meta, log),
		Sweeps:         NewSweepHandler(s.sweeps, sweepSecret, log),
		AllowedOrigins: []string{"http://localhost:5173"},
		Log:            log,
	})
	t.Cleanup(func() {
		s.leads.AssertExpectations(t)
		s.notifications.AssertExpectations(t)
		s.inbound.AssertExpectations(t)
		s.meta.AssertExpectations(t)
		s.sweeps.AssertExpectations(t)
	})
	return s
}

func (s *testServer) do(method, target, contentType, body string, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}
