package pushover

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/norm/trashminder/internal/monitor"
)

type capturedForm struct {
	values map[string]string
	file   []byte
}

func captureHandler(t *testing.T, out *capturedForm, status int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(10 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
			return
		}
		out.values = map[string]string{}
		for key, vals := range r.MultipartForm.Value {
			if len(vals) > 0 {
				out.values[key] = vals[0]
			}
		}
		if files := r.MultipartForm.File["attachment"]; len(files) > 0 {
			f, err := files[0].Open()
			if err != nil {
				t.Errorf("open attachment: %v", err)
				return
			}
			defer f.Close()
			out.file, _ = io.ReadAll(f)
		}
		w.WriteHeader(status)
	})
}

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := New(Config{Token: "app-token", UserKey: "user-key", APIURL: srv.URL})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

func TestNotifyEmergencyCarriesRetryExpire(t *testing.T) {
	var got capturedForm
	c := newTestClient(t, captureHandler(t, &got, http.StatusOK))

	err := c.Notify(context.Background(), monitor.Notification{
		Title:    "Trash Bin Reminder",
		Message:  "bin missing",
		Priority: monitor.PriorityEmergency,
		Image:    []byte("jpeg-bytes"),
	})
	if err != nil {
		t.Fatalf("notify: %v", err)
	}

	if got.values["token"] != "app-token" || got.values["user"] != "user-key" {
		t.Fatalf("credentials not sent: %v", got.values)
	}
	if got.values["priority"] != "2" {
		t.Fatalf("expected priority 2, got %q", got.values["priority"])
	}
	if got.values["retry"] != "60" {
		t.Fatalf("expected retry 60, got %q", got.values["retry"])
	}
	if got.values["expire"] != "3600" {
		t.Fatalf("expected expire 3600, got %q", got.values["expire"])
	}
	if string(got.file) != "jpeg-bytes" {
		t.Fatalf("attachment not delivered")
	}
}

func TestNotifyLowPriorityOmitsRetry(t *testing.T) {
	var got capturedForm
	c := newTestClient(t, captureHandler(t, &got, http.StatusOK))

	err := c.Notify(context.Background(), monitor.Notification{
		Title:    "Trash Bin Out",
		Message:  "confirmed",
		Priority: monitor.PriorityLow,
	})
	if err != nil {
		t.Fatalf("notify: %v", err)
	}

	if got.values["priority"] != "-1" {
		t.Fatalf("expected priority -1, got %q", got.values["priority"])
	}
	if _, ok := got.values["retry"]; ok {
		t.Fatalf("retry should only accompany emergency priority")
	}
	if len(got.file) != 0 {
		t.Fatalf("no attachment expected")
	}
}

func TestNotifyErrorStatus(t *testing.T) {
	var got capturedForm
	c := newTestClient(t, captureHandler(t, &got, http.StatusBadRequest))

	err := c.Notify(context.Background(), monitor.Notification{Title: "t", Message: "m"})
	if err == nil {
		t.Fatalf("expected error on rejected delivery")
	}
}

func TestNewRequiresCredentials(t *testing.T) {
	if _, err := New(Config{Token: "only-token"}); err == nil {
		t.Fatalf("expected error when user key missing")
	}
	if _, err := New(Config{UserKey: "only-user"}); err == nil {
		t.Fatalf("expected error when token missing")
	}
}
