package privacylog

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestSanitizeAttrFingerprintsCounterpartyKeys(t *testing.T) {
	attr := SanitizeAttr(slog.String("destination", "9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin"))
	if attr.Key != "destination_fp" {
		t.Fatalf("unexpected key: %q", attr.Key)
	}
	if got := attr.Value.String(); !strings.HasPrefix(got, "fp_") {
		t.Fatalf("unexpected fingerprint value: %q", got)
	}

	untouched := SanitizeAttr(slog.String("provider", "privacy_cash"))
	if untouched.Key != "provider" || untouched.Value.String() != "privacy_cash" {
		t.Fatalf("benign attr was rewritten: %v", untouched)
	}
}

func TestSanitizeAttrRedactsSecrets(t *testing.T) {
	for _, key := range []string{"note", "mnemonic", "passphrase", "auth_token", "rpc_token"} {
		attr := SanitizeAttr(slog.String(key, "super-secret-value"))
		if got := attr.Value.String(); got != redactedValue {
			t.Fatalf("key %q not redacted: %q", key, got)
		}
	}
}

func TestSanitizingHandlerEndToEnd(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(WrapHandler(slog.NewJSONHandler(&buf, nil)))
	logger.Info("intent dispatched",
		"destination", "9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin",
		"note", "prism-note-100-abc-def",
		"provider", "privacy_cash")

	var payload map[string]any
	if err := json.Unmarshal(buf.Bytes(), &payload); err != nil {
		t.Fatalf("decode log json: %v", err)
	}
	if _, ok := payload["destination"]; ok {
		t.Fatal("raw destination leaked into the log line")
	}
	if _, ok := payload["destination_fp"]; !ok {
		t.Fatal("destination fingerprint missing")
	}
	if got, _ := payload["note"].(string); got != redactedValue {
		t.Fatalf("note leaked: %q", got)
	}
	if got, _ := payload["provider"].(string); got != "privacy_cash" {
		t.Fatalf("provider mangled: %q", got)
	}
}

func TestFingerprintStableWithinRun(t *testing.T) {
	a := FingerprintID("merchant-address")
	b := FingerprintID("merchant-address")
	if a != b {
		t.Fatalf("fingerprint not stable: %q vs %q", a, b)
	}
	if a == FingerprintID("other-address") {
		t.Fatal("distinct inputs collided")
	}
	if FingerprintID("   ") != "" {
		t.Fatal("blank input should fingerprint to empty")
	}
}

func TestSanitizingHandlerImplementsSlogHandlerContract(t *testing.T) {
	var buf bytes.Buffer
	h := WrapHandler(slog.NewJSONHandler(&buf, nil))
	if !h.Enabled(context.Background(), slog.LevelInfo) {
		t.Fatal("expected handler enabled for info")
	}
	rec := slog.NewRecord(time.Now().UTC(), slog.LevelInfo, "msg", 0)
	rec.AddAttrs(slog.String("merchant_id", "m1"))
	if err := h.Handle(context.Background(), rec); err != nil {
		t.Fatalf("handle failed: %v", err)
	}
	if !strings.Contains(buf.String(), "merchant_id_fp") {
		t.Fatalf("expected fingerprinted merchant_id key, got %s", buf.String())
	}

	withAttrs := h.WithAttrs([]slog.Attr{slog.String("passphrase", "hunter2")})
	buf.Reset()
	rec2 := slog.NewRecord(time.Now().UTC(), slog.LevelInfo, "msg", 0)
	if err := withAttrs.Handle(context.Background(), rec2); err != nil {
		t.Fatalf("handle with attrs failed: %v", err)
	}
	if strings.Contains(buf.String(), "hunter2") {
		t.Fatalf("passphrase leaked through WithAttrs: %s", buf.String())
	}
}
