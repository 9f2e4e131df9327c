package audit

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Event kinds recorded for the auth surface.
const (
	EventRegistered      = "user_registered"
	EventLoginSucceeded  = "login_succeeded"
	EventLoginFailed     = "login_failed"
	EventTokenRefreshed  = "token_refreshed"
	EventLogout          = "logout"
	EventLanguageChanged = "language_changed"
	EventEmailVerified   = "email_verified"
	EventPasswordReset   = "password_reset"
)

// Event is one auth audit record as indexed into Elasticsearch.
type Event struct {
	Kind      string    `json:"kind"`
	UserID    string    `json:"user_id,omitempty"`
	Email     string    `json:"email,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
	IP        string    `json:"ip,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	At        time.Time `json:"at"`
}

// Meta carries per-request identifiers down to audit records without
// widening service signatures.
type Meta struct {
	RequestID string
	IP        string
}

type ctxKey struct{}

func WithMeta(ctx context.Context, m Meta) context.Context {
	return context.WithValue(ctx, ctxKey{}, m)
}

func MetaFrom(ctx context.Context) Meta {
	m, _ := ctx.Value(ctxKey{}).(Meta)
	return m
}

// Recorder indexes auth events into an Elasticsearch index. Recording
// is best effort: failures are logged and never surface to callers.
type Recorder struct {
	ES     *elasticsearch.Client
	Index  string
	Logger *logrus.Logger
}

func NewRecorder(es *elasticsearch.Client, index string, logger *logrus.Logger) *Recorder {
	return &Recorder{ES: es, Index: index, Logger: logger}
}

func (r *Recorder) Record(ctx context.Context, ev Event) {
	if r == nil || r.ES == nil || r.Index == "" {
		return
	}
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	m := MetaFrom(ctx)
	if ev.RequestID == "" {
		ev.RequestID = m.RequestID
	}
	if ev.IP == "" {
		ev.IP = m.IP
	}
	b, err := json.Marshal(ev)
	if err != nil {
		return
	}
	req := esapi.IndexRequest{
		Index:      r.Index,
		DocumentID: uuid.NewString(),
		Body:       strings.NewReader(string(b)),
		Refresh:    "false",
	}
	c, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	res, err := req.Do(c, r.ES)
	if err != nil {
		if r.Logger != nil {
			r.Logger.WithError(err).WithField("kind", ev.Kind).Warn("audit event index failed")
		}
		return
	}
	defer func() { _ = res.Body.Close() }()
	if res.IsError() && r.Logger != nil {
		r.Logger.WithField("status", res.Status()).WithField("kind", ev.Kind).Warn("audit event response error")
	}
}
