package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Entry represents an audit log entry.
type Entry struct {
	ID            string
	Actor         string
	Role          string
	Action        string
	ResourceType  string
	ResourceID    string
	Metadata      json.RawMessage
	PayloadDigest string
	IP            string
	UserAgent     string
	CreatedAt     time.Time
}

// Logger writes audit entries.
type Logger interface {
	Log(ctx context.Context, entry Entry) error
}

// NewID generates a random audit id.
func NewID() string {
	return "audit-" + uuid.NewString()
}

// DigestJSON computes a SHA256 hex digest for metadata payloads.
func DigestJSON(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func (e *Entry) fill(now time.Time) {
	if e.ID == "" {
		e.ID = NewID()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now.UTC()
	}
	if e.PayloadDigest == "" {
		e.PayloadDigest = DigestJSON(e.Metadata)
	}
}

// ZapLogger writes audit entries to a structured log. Used when no database is configured.
type ZapLogger struct {
	logger *zap.Logger
}

// NewZapLogger constructs a log-backed audit logger.
func NewZapLogger(logger *zap.Logger) *ZapLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ZapLogger{logger: logger.Named("audit")}
}

// Log writes an audit entry.
func (l *ZapLogger) Log(ctx context.Context, entry Entry) error {
	_ = ctx
	entry.fill(time.Now())
	l.logger.Info(entry.Action,
		zap.String("audit_id", entry.ID),
		zap.String("actor", entry.Actor),
		zap.String("role", entry.Role),
		zap.String("resource_type", entry.ResourceType),
		zap.String("resource_id", entry.ResourceID),
		zap.ByteString("metadata", entry.Metadata),
		zap.String("payload_digest", entry.PayloadDigest),
		zap.String("ip", entry.IP),
		zap.Time("created_at", entry.CreatedAt),
	)
	return nil
}

// ClientIP returns the first valid address among X-Forwarded-For hops,
// X-Real-IP and RemoteAddr.
func ClientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	candidates := strings.Split(r.Header.Get("X-Forwarded-For"), ",")
	candidates = append(candidates, r.Header.Get("X-Real-IP"))
	for _, c := range candidates {
		if ip := net.ParseIP(strings.TrimSpace(c)); ip != nil {
			return ip.String()
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
