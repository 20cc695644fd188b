package web

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vadiminshakov/folio/internal/domain"
	"github.com/vadiminshakov/folio/internal/services/balance"
	"github.com/vadiminshakov/folio/internal/services/pricer"
	"github.com/vadiminshakov/folio/internal/services/trader"
	"github.com/vadiminshakov/folio/internal/services/valuation"
	"github.com/vadiminshakov/folio/internal/storage/journal"
	"github.com/vadiminshakov/folio/internal/storage/ledger"
	"github.com/vadiminshakov/folio/internal/storage/valuations"
)

type testEnv struct {
	srv       *httptest.Server
	ledger    *ledger.Store
	snapshots *valuations.WALStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	l, err := ledger.NewInMemory(domain.FromInt(10000), nil)
	require.NoError(t, err)
	require.NoError(t, l.InitializeBalance(context.Background()))
	q := pricer.NewStaticQuoter(map[string]domain.Money{"X": domain.FromInt(100)})
	j := journal.NewInMemory()
	exec, err := trader.NewExecutor(l, q, trader.DefaultBounds(), j, nil)
	require.NoError(t, err)
	engine := valuation.NewEngine(l, q, nil)
	snapshots := valuations.NewInMemory(0)

	s := NewServer(":0", Deps{
		Valuation: engine,
		Lots:      l,
		Balance:   balance.NewService(l, nil),
		Trades:    exec,
		Journal:   j,
		Snapshots: snapshots,
	}, nil)

	srv := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		srv.Close()
		engine.Close()
		_ = l.Close()
	})

	return &testEnv{srv: srv, ledger: l, snapshots: snapshots}
}

func (e *testEnv) do(t *testing.T, method, path, body string) (int, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, e.srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func TestValuation_EmptyLedger(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.do(t, http.MethodGet, "/valuation", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "10000", body["total_value"])
	assert.Equal(t, []any{}, body["assets"])
}

func TestTrades(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.do(t, http.MethodPost, "/trades", `{"side":"buy","asset_id":"x","quantity":"0.5"}`)
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "committed", body["status"])
	assert.Equal(t, "9950", body["cash"])

	status, body = env.do(t, http.MethodGet, "/lots/X", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "0.5", body["quantity"])

	status, _ = env.do(t, http.MethodGet, "/lots/Y", "")
	assert.Equal(t, http.StatusNotFound, status)

	status, body = env.do(t, http.MethodPost, "/trades", `{"side":"sell","asset_id":"X","quantity":"1.0"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "rejected", body["status"])
	assert.Equal(t, "insufficient_holdings", body["code"])

	status, _ = env.do(t, http.MethodPost, "/trades", `{"side":"buy","asset_id":"NOPRICE","quantity":"1"}`)
	assert.Equal(t, http.StatusBadGateway, status)

	status, _ = env.do(t, http.MethodPost, "/trades", `{"side":"buy","asset":"X"}`)
	assert.Equal(t, http.StatusBadRequest, status)

	resp, err := http.Get(env.srv.URL + "/trades")
	require.NoError(t, err)
	defer resp.Body.Close()
	var trades []journal.Record
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&trades))
	require.Len(t, trades, 3)
	assert.Equal(t, journal.StatusDone, trades[0].Status)
	assert.Equal(t, journal.StatusFailed, trades[1].Status)
}

func TestLots(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.ledger.UpsertLot(context.Background(), domain.AssetLot{AssetID: "B", Quantity: domain.FromInt(1), AverageCost: domain.FromInt(1)}))
	require.NoError(t, env.ledger.UpsertLot(context.Background(), domain.AssetLot{AssetID: "A", Quantity: domain.FromInt(2), AverageCost: domain.FromInt(1)}))

	resp, err := http.Get(env.srv.URL + "/lots")
	require.NoError(t, err)
	defer resp.Body.Close()

	var lots []domain.AssetLot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&lots))
	require.Len(t, lots, 2)
	assert.Equal(t, "A", lots[0].AssetID)
	assert.True(t, lots[0].Quantity.Equal(domain.FromInt(2)))
}

func TestBalance(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.do(t, http.MethodPost, "/balance", `{"amount":"-5"}`)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "10000", body["cash"], "negative amount is ignored")

	status, body = env.do(t, http.MethodPost, "/balance", `{"amount":"abc"}`)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "10000", body["cash"])

	_, body = env.do(t, http.MethodPost, "/balance", `{"amount":"500.25"}`)
	assert.Equal(t, "500.25", body["cash"])

	_, body = env.do(t, http.MethodGet, "/balance", "")
	assert.Equal(t, "500.25", body["cash"])
}

type sseEvent struct {
	id, name, data string
}

func readEvent(t *testing.T, sc *bufio.Scanner) sseEvent {
	t.Helper()
	var ev sseEvent
	for sc.Scan() {
		line := sc.Text()
		switch {
		case line == "":
			if ev.name != "" {
				return ev
			}
		case strings.HasPrefix(line, "id: "):
			ev.id = strings.TrimPrefix(line, "id: ")
		case strings.HasPrefix(line, "event: "):
			ev.name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			ev.data = strings.TrimPrefix(line, "data: ")
		}
	}
	t.Fatalf("stream ended: %v", sc.Err())
	return ev
}

func openStream(t *testing.T, url string, header map[string]string) *bufio.Scanner {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	require.NoError(t, err)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	return bufio.NewScanner(resp.Body)
}

func TestValuationStream(t *testing.T) {
	env := newTestEnv(t)
	sc := openStream(t, env.srv.URL+"/valuation/stream", nil)

	ev := readEvent(t, sc)
	require.Equal(t, "valuation", ev.name)
	var v map[string]any
	require.NoError(t, json.Unmarshal([]byte(ev.data), &v))
	assert.Equal(t, "10000", v["total_value"])

	require.NoError(t, env.ledger.UpsertLot(context.Background(), domain.AssetLot{AssetID: "X", Quantity: domain.FromInt(2), AverageCost: domain.FromInt(50)}))
	for {
		ev = readEvent(t, sc)
		require.Equal(t, "valuation", ev.name)
		require.NoError(t, json.Unmarshal([]byte(ev.data), &v))
		if v["total_value"] == "10200" {
			break
		}
	}
}

func TestHistoryStream_Resumes(t *testing.T) {
	env := newTestEnv(t)
	at := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for _, total := range []string{"1", "2", "3"} {
		_, err := env.snapshots.Save(domain.ValuationSnapshot{Timestamp: at, TotalValue: total})
		require.NoError(t, err)
	}

	sc := openStream(t, env.srv.URL+"/valuation/history/stream", map[string]string{"Last-Event-ID": "1"})

	ev := readEvent(t, sc)
	assert.Equal(t, "snapshot", ev.name)
	assert.Equal(t, "2", ev.id)
	assert.Contains(t, ev.data, `"total_value":"2"`)

	ev = readEvent(t, sc)
	assert.Equal(t, "3", ev.id)
}

func TestStatusOf(t *testing.T) {
	assert.Equal(t, http.StatusUnprocessableEntity, statusOf(domain.ValidationError(domain.CodeInsufficientFunds, "x")))
	assert.Equal(t, http.StatusBadGateway, statusOf(domain.RemoteError("fetch", errors.New("x"))))
	assert.Equal(t, http.StatusInternalServerError, statusOf(domain.LocalError("commit", errors.New("x"))))
	assert.Equal(t, http.StatusInternalServerError, statusOf(errors.New("x")))
}

func TestParseLastEventID(t *testing.T) {
	assert.Equal(t, uint64(7), parseLastEventID("7", "3"))
	assert.Equal(t, uint64(3), parseLastEventID("", " 3 "))
	assert.Equal(t, uint64(0), parseLastEventID("abc", ""))
	assert.Equal(t, uint64(0), parseLastEventID("", ""))
}

func TestThinRecords(t *testing.T) {
	records := make([]domain.ValuationSnapshotRecord, 400)
	for i := range records {
		records[i].Index = uint64(i + 1)
	}

	thinned := thinRecords(records)
	require.Less(t, len(thinned), len(records))
	require.GreaterOrEqual(t, len(thinned), keepFullRecords)

	for i := 1; i < len(thinned); i++ {
		assert.Less(t, thinned[i-1].Index, thinned[i].Index)
	}
	tail := thinned[len(thinned)-keepFullRecords:]
	assert.Equal(t, uint64(301), tail[0].Index)
	assert.Equal(t, uint64(400), tail[len(tail)-1].Index)

	short := records[:10]
	assert.Equal(t, short, thinRecords(short))
}
