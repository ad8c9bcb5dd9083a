package tests

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/signalsfoundry/iss-tracker/core"
	"github.com/signalsfoundry/iss-tracker/internal/feed"
	"github.com/signalsfoundry/iss-tracker/internal/httpapi"
	"github.com/signalsfoundry/iss-tracker/internal/logging"
	"github.com/signalsfoundry/iss-tracker/internal/observability"
)

const (
	epoch1 = "2025-047T12:00:00.000Z"
	epoch2 = "2025-047T12:04:00.000Z"
	epoch3 = "2025-047T12:08:00.000Z"
)

type oemRecord struct {
	epoch string
	pos   core.Vec3
	vel   core.Vec3
}

func defaultRecords() []oemRecord {
	return []oemRecord{
		{epoch: epoch1, pos: core.Vec3{X: 6771}, vel: core.Vec3{Y: 7.66}},
		{epoch: epoch2, pos: core.Vec3{Y: 6771}, vel: core.Vec3{X: 3, Y: 4}},
		{epoch: epoch3, pos: core.Vec3{Z: 6771}, vel: core.Vec3{Z: 7.5}},
	}
}

func oemDocument(records ...oemRecord) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<ndm>
  <oem id="CCSDS_OEM_VERS" version="2.0">
    <header>
      <CREATION_DATE>2025-047T18:35:32.000Z</CREATION_DATE>
      <ORIGINATOR>JSC</ORIGINATOR>
    </header>
    <body>
      <segment>
        <metadata>
          <OBJECT_NAME>ISS</OBJECT_NAME>
          <OBJECT_ID>1998-067-A</OBJECT_ID>
          <CENTER_NAME>EARTH</CENTER_NAME>
          <REF_FRAME>EME2000</REF_FRAME>
          <TIME_SYSTEM>UTC</TIME_SYSTEM>
        </metadata>
        <data>
          <COMMENT>Units are in kg and m^2</COMMENT>
`)
	for _, r := range records {
		fmt.Fprintf(&b, `          <stateVector>
            <EPOCH>%s</EPOCH>
            <X units="km">%g</X>
            <Y units="km">%g</Y>
            <Z units="km">%g</Z>
            <X_DOT units="km/s">%g</X_DOT>
            <Y_DOT units="km/s">%g</Y_DOT>
            <Z_DOT units="km/s">%g</Z_DOT>
          </stateVector>
`, r.epoch, r.pos.X, r.pos.Y, r.pos.Z, r.vel.X, r.vel.Y, r.vel.Z)
	}
	b.WriteString(`        </data>
      </segment>
    </body>
  </oem>
</ndm>
`)
	return b.String()
}

// feedFixture serves a mutable OEM document so tests can republish the feed
// or take it down mid-flight.
type feedFixture struct {
	mu     sync.Mutex
	body   string
	status int
	hits   int
}

func (f *feedFixture) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.hits++
	if f.status != 0 {
		http.Error(w, "upstream unavailable", f.status)
		return
	}
	w.Header().Set("Content-Type", "application/xml")
	fmt.Fprint(w, f.body)
}

func (f *feedFixture) set(body string, status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.body = body
	f.status = status
}

type placeResolverStub struct {
	mu    sync.Mutex
	name  string
	err   error
	calls int
}

func (p *placeResolverStub) ReverseName(_ context.Context, latDeg, lonDeg float64) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return p.name, p.err
}

func (p *placeResolverStub) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

type apiTestEnv struct {
	now       time.Time
	upstream  *feedFixture
	store     *core.TelemetryStore
	refresher *feed.Refresher
	resolver  *placeResolverStub
	collector *observability.APICollector
	apiSrv    *httptest.Server
}

func newAPITestEnv(t *testing.T) *apiTestEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	upstream := &feedFixture{body: oemDocument(defaultRecords()...)}
	feedSrv := httptest.NewServer(upstream)
	t.Cleanup(feedSrv.Close)

	// 30 seconds past the second record, so it is the nearest vector.
	now := time.Date(2025, 2, 16, 12, 4, 30, 0, time.UTC)
	store := core.NewTelemetryStore(core.WithClock(func() time.Time { return now }))

	client := feed.NewClient(&feed.Config{
		FeedURL:    feedSrv.URL,
		Timeout:    5 * time.Second,
		MaxRetries: 1,
		RateLimit:  100,
	})
	refresher := feed.NewRefresher(client, store, feed.DefaultSchedule, feed.WithLogger(logging.Noop()))

	collector, err := observability.NewAPICollector(prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("NewAPICollector: %v", err)
	}

	resolver := &placeResolverStub{name: "South Atlantic Ocean"}
	api := httpapi.NewServer(store,
		httpapi.WithLogger(logging.Noop()),
		httpapi.WithMetrics(collector),
		httpapi.WithPlaceResolver(resolver),
	)
	apiSrv := httptest.NewServer(api.Router())
	t.Cleanup(apiSrv.Close)

	return &apiTestEnv{
		now:       now,
		upstream:  upstream,
		store:     store,
		refresher: refresher,
		resolver:  resolver,
		collector: collector,
		apiSrv:    apiSrv,
	}
}

func (env *apiTestEnv) get(t *testing.T, path string) (*http.Response, []byte) {
	t.Helper()

	resp, err := http.Get(env.apiSrv.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		t.Fatalf("GET %s read body: %v", path, err)
	}
	return resp, body
}

func (env *apiTestEnv) refresh(t *testing.T) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := env.refresher.RefreshOnce(ctx); err != nil {
		t.Fatalf("RefreshOnce: %v", err)
	}
}

func TestEndToEndTelemetryAPI(t *testing.T) {
	env := newAPITestEnv(t)

	resp, body := env.get(t, "/now")
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("/now before load status = %d, want 503 (body %s)", resp.StatusCode, body)
	}
	if !strings.Contains(string(body), "no dataset loaded") {
		t.Fatalf("/now before load body = %s, want not-loaded reason", body)
	}

	env.refresh(t)

	resp, body = env.get(t, "/healthz")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/healthz status = %d, want 200 (body %s)", resp.StatusCode, body)
	}
	var health struct {
		Success bool `json:"success"`
		Vectors int  `json:"vectors"`
	}
	if err := json.Unmarshal(body, &health); err != nil {
		t.Fatalf("decode /healthz body %q: %v", body, err)
	}
	if !health.Success || health.Vectors != 3 {
		t.Fatalf("/healthz = %+v, want success with 3 vectors", health)
	}

	resp, body = env.get(t, "/now")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/now status = %d, want 200 (body %s)", resp.StatusCode, body)
	}
	var nowResp struct {
		Epoch        string  `json:"epoch"`
		SpeedKmS     float64 `json:"speed_km_s"`
		Extrapolated bool    `json:"extrapolated"`
		Location     struct {
			Latitude   float64 `json:"latitude"`
			AltitudeKm float64 `json:"altitude_km"`
		} `json:"location"`
	}
	if err := json.Unmarshal(body, &nowResp); err != nil {
		t.Fatalf("decode /now body %q: %v", body, err)
	}
	if nowResp.Epoch != epoch2 {
		t.Fatalf("/now epoch = %q, want %q", nowResp.Epoch, epoch2)
	}
	if math.Abs(nowResp.SpeedKmS-5) > 1e-9 {
		t.Fatalf("/now speed = %v, want 5", nowResp.SpeedKmS)
	}
	if nowResp.Extrapolated {
		t.Fatal("/now extrapolated = true, want false inside coverage")
	}
	// The second record sits in the equatorial plane.
	if math.Abs(nowResp.Location.Latitude) > 1e-6 {
		t.Fatalf("/now latitude = %v, want ~0", nowResp.Location.Latitude)
	}

	resp, body = env.get(t, "/epochs?offset=1&limit=1")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/epochs page status = %d, want 200 (body %s)", resp.StatusCode, body)
	}
	var page []string
	if err := json.Unmarshal(body, &page); err != nil {
		t.Fatalf("decode /epochs body %q: %v", body, err)
	}
	if len(page) != 1 || page[0] != epoch2 {
		t.Fatalf("/epochs?offset=1&limit=1 = %v, want [%s]", page, epoch2)
	}

	resp, body = env.get(t, "/epochs/"+epoch2)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/epochs/%s status = %d, want 200 (body %s)", epoch2, resp.StatusCode, body)
	}
	var record struct {
		Position struct {
			Y float64 `json:"y"`
		} `json:"position_km"`
	}
	if err := json.Unmarshal(body, &record); err != nil {
		t.Fatalf("decode record body %q: %v", body, err)
	}
	if record.Position.Y != 6771 {
		t.Fatalf("record position y = %v, want 6771", record.Position.Y)
	}

	resp, body = env.get(t, "/epoch/"+epoch2+"/speed")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/epoch/%s/speed status = %d, want 200 (body %s)", epoch2, resp.StatusCode, body)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Fatalf("speed Content-Type = %q, want text/plain", ct)
	}
	if got := string(body); got != "5.000000\n" {
		t.Fatalf("speed body = %q, want %q", got, "5.000000\n")
	}

	resp, body = env.get(t, "/epochs/"+epoch2+"/location")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/epochs/%s/location status = %d, want 200 (body %s)", epoch2, resp.StatusCode, body)
	}
	var loc struct {
		Place string `json:"place"`
	}
	if err := json.Unmarshal(body, &loc); err != nil {
		t.Fatalf("decode location body %q: %v", body, err)
	}
	if loc.Place != "South Atlantic Ocean" {
		t.Fatalf("location place = %q, want stub name", loc.Place)
	}

	resp, body = env.get(t, "/header")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/header status = %d, want 200 (body %s)", resp.StatusCode, body)
	}
	var header map[string]string
	if err := json.Unmarshal(body, &header); err != nil {
		t.Fatalf("decode /header body %q: %v", body, err)
	}
	if header["ORIGINATOR"] != "JSC" {
		t.Fatalf("header ORIGINATOR = %q, want JSC", header["ORIGINATOR"])
	}

	resp, body = env.get(t, "/metadata")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/metadata status = %d, want 200 (body %s)", resp.StatusCode, body)
	}
	var metadata map[string]string
	if err := json.Unmarshal(body, &metadata); err != nil {
		t.Fatalf("decode /metadata body %q: %v", body, err)
	}
	if metadata["OBJECT_NAME"] != "ISS" {
		t.Fatalf("metadata OBJECT_NAME = %q, want ISS", metadata["OBJECT_NAME"])
	}

	resp, body = env.get(t, "/comment")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/comment status = %d, want 200 (body %s)", resp.StatusCode, body)
	}
	var comments []string
	if err := json.Unmarshal(body, &comments); err != nil {
		t.Fatalf("decode /comment body %q: %v", body, err)
	}
	if len(comments) != 1 || comments[0] != "Units are in kg and m^2" {
		t.Fatalf("/comment = %v, want the units comment", comments)
	}

	if got := testutil.ToFloat64(env.collector.HTTPRequests.WithLabelValues("/now", "GET", "200")); got != 1 {
		t.Fatalf("recorded /now 200 count = %v, want 1", got)
	}
}

func TestEndToEndRefreshReplacesDataset(t *testing.T) {
	env := newAPITestEnv(t)
	env.refresh(t)

	_, body := env.get(t, "/epochs")
	var before []string
	if err := json.Unmarshal(body, &before); err != nil {
		t.Fatalf("decode /epochs body %q: %v", body, err)
	}
	if len(before) != 3 {
		t.Fatalf("initial epoch count = %d, want 3", len(before))
	}

	// The feed republishes with a fresh window the next day.
	next1 := "2025-048T12:00:00.000Z"
	next2 := "2025-048T12:04:00.000Z"
	env.upstream.set(oemDocument(
		oemRecord{epoch: next1, pos: core.Vec3{X: 6771}, vel: core.Vec3{Y: 7.66}},
		oemRecord{epoch: next2, pos: core.Vec3{Y: 6771}, vel: core.Vec3{X: 3, Y: 4}},
	), 0)
	env.refresh(t)

	_, body = env.get(t, "/epochs")
	var after []string
	if err := json.Unmarshal(body, &after); err != nil {
		t.Fatalf("decode /epochs body %q: %v", body, err)
	}
	if len(after) != 2 || after[0] != next1 || after[1] != next2 {
		t.Fatalf("epochs after refresh = %v, want [%s %s]", after, next1, next2)
	}
}

func TestEndToEndFeedOutageKeepsServing(t *testing.T) {
	env := newAPITestEnv(t)
	env.refresh(t)

	env.upstream.set("", http.StatusServiceUnavailable)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := env.refresher.RefreshOnce(ctx); err == nil {
		t.Fatal("RefreshOnce during outage returned nil, want error")
	}

	resp, body := env.get(t, "/now")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/now during outage status = %d, want 200 (body %s)", resp.StatusCode, body)
	}

	resp, body = env.get(t, "/epochs/"+epoch2+"/location")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("location during outage status = %d, want 200 (body %s)", resp.StatusCode, body)
	}
	if env.resolver.callCount() == 0 {
		t.Fatal("place resolver was never consulted")
	}
}
