package satapi_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/k-boateng/satellite-pass-predictionv2/internal/satapi"
	"github.com/k-boateng/satellite-pass-predictionv2/internal/satapi/satapitest"
)

var testLogger = slog.New(slog.NewJSONHandler(io.Discard, nil))

func TestSatIDs(t *testing.T) {
	srv := satapitest.NewServer()
	defer srv.Close()
	srv.SetIDs(25544, 43013, 48274)

	c := satapi.NewClient(srv.URL, testLogger)
	ids, err := c.SatIDs(context.Background(), 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ids) != 2 || ids[0] != 25544 || ids[1] != 43013 {
		t.Errorf("got %v, want [25544 43013]", ids)
	}
}

func TestState(t *testing.T) {
	srv := satapitest.NewServer()
	defer srv.Close()
	srv.SetState(25544, satapi.State{Lat: 51.6, Lon: -12.5, AltKm: 420})

	c := satapi.NewClient(srv.URL+"/", testLogger)
	st, err := c.State(context.Background(), 25544)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st != (satapi.State{Lat: 51.6, Lon: -12.5, AltKm: 420}) {
		t.Errorf("got %+v", st)
	}
	if srv.StateCalls(25544) != 1 {
		t.Errorf("state calls = %d, want 1", srv.StateCalls(25544))
	}
}

func TestGroundTrack(t *testing.T) {
	srv := satapitest.NewServer()
	defer srv.Close()
	srv.SetTrack(7, [][2]float64{{1, 170}, {2, -170}})

	c := satapi.NewClient(srv.URL, testLogger)
	pts, err := c.GroundTrack(context.Background(), 7, time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pts) != 2 || pts[1] != [2]float64{2, -170} {
		t.Errorf("got %v", pts)
	}
	if srv.LastStep() != 60 {
		t.Errorf("step_s = %d, want 60", srv.LastStep())
	}
}

func TestStatusErrorCarriesBody(t *testing.T) {
	srv := satapitest.NewServer()
	defer srv.Close()
	srv.FailSummary(9, "propagation failed")

	c := satapi.NewClient(srv.URL, testLogger)
	_, err := c.Summary(context.Background(), 9)
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	var se *satapi.StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected StatusError, got %T: %v", err, err)
	}
	if se.Code != http.StatusInternalServerError || se.Body != "propagation failed" {
		t.Errorf("got %+v", se)
	}
	if !satapi.IsStatus(err, http.StatusInternalServerError) {
		t.Error("IsStatus should match 500")
	}
	if satapi.IsStatus(err, http.StatusNotFound) {
		t.Error("IsStatus should not match 404")
	}
}

func TestSummaryCancelled(t *testing.T) {
	srv := satapitest.NewServer()
	defer srv.Close()
	srv.SetSummary(1, satapi.Summary{Name: "SLOW"}, 5*time.Second)

	c := satapi.NewClient(srv.URL, testLogger)
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	start := time.Now()
	_, err := c.Summary(ctx, 1)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Error("cancellation did not abort the request")
	}
}

// TestBodyLimit verifies that oversized responses fail instead of being buffered.
func TestBodyLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		chunk := strings.Repeat("A", 1024*1024)
		for i := 0; i < 6; i++ {
			if _, err := w.Write([]byte(chunk)); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	c := satapi.NewClient(server.URL, testLogger)
	_, err := c.SatIDs(context.Background(), 10)
	if err == nil {
		t.Fatal("expected error for oversized response, got nil")
	}
	if !strings.Contains(err.Error(), "byte limit") {
		t.Errorf("expected body limit error, got: %v", err)
	}
}

func TestDecodeError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer server.Close()

	c := satapi.NewClient(server.URL, testLogger)
	if _, err := c.State(context.Background(), 1); err == nil {
		t.Fatal("expected decode error, got nil")
	}
}

func TestStateRejectsIncompleteBody(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"error detail", `{"detail":"no TLE for 1"}`},
		{"empty object", `{}`},
		{"null", `null`},
		{"missing alt", `{"lat":10,"lon":20}`},
		{"null lon", `{"lat":10,"lon":null,"alt_km":400}`},
		{"lat out of range", `{"lat":91,"lon":20,"alt_km":400}`},
		{"lon out of range", `{"lat":10,"lon":-181,"alt_km":400}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			c := satapi.NewClient(server.URL, testLogger)
			st, err := c.State(context.Background(), 1)
			if err == nil {
				t.Fatalf("expected error for %s, got state %+v", tt.body, st)
			}
			if !errors.Is(err, satapi.ErrMalformed) {
				t.Errorf("expected ErrMalformed, got: %v", err)
			}
		})
	}
}

func TestStateAcceptsZeroPosition(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"lat":0,"lon":0,"alt_km":0}`))
	}))
	defer server.Close()

	c := satapi.NewClient(server.URL, testLogger)
	st, err := c.State(context.Background(), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st != (satapi.State{}) {
		t.Errorf("got %+v, want zero position", st)
	}
}

func TestSummaryRejectsErrorBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"detail":"no TLE for 1"}`))
	}))
	defer server.Close()

	c := satapi.NewClient(server.URL, testLogger)
	if _, err := c.Summary(context.Background(), 1); !errors.Is(err, satapi.ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got: %v", err)
	}
}
