package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/vadiminshakov/folio/internal/domain"
)

const keepFullRecords = 100

type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

func newSSEWriter(w http.ResponseWriter) (*sseWriter, bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return nil, false
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	return &sseWriter{w: w, flusher: flusher}, true
}

func (s *sseWriter) event(id uint64, name string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if id > 0 {
		fmt.Fprintf(s.w, "id: %d\n", id)
	}
	fmt.Fprintf(s.w, "event: %s\n", name)
	fmt.Fprintf(s.w, "data: %s\n\n", payload)
	s.flusher.Flush()
	return nil
}

func (s *sseWriter) ping() {
	// comment heartbeat so proxies keep the connection
	fmt.Fprint(s.w, ": ping\n\n")
	s.flusher.Flush()
}

// handleValuationStream pushes every valuation computed by the engine. A
// failed valuation is sent as an "error" event, never as zero-priced data.
func (s *Server) handleValuationStream(w http.ResponseWriter, r *http.Request) {
	sse, ok := newSSEWriter(w)
	if !ok {
		return
	}

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	updates := s.deps.Valuation.Subscribe(r.Context())
	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			sse.ping()
		case u, ok := <-updates:
			if !ok {
				return
			}
			var err error
			if u.Err != nil {
				err = sse.event(u.Seq, "error", newErrorBody(u.Err))
			} else {
				err = sse.event(u.Seq, "valuation", u.Valuation)
			}
			if err != nil {
				s.l.Warn("valuation stream write", zap.Error(err))
				return
			}
		}
	}
}

// handleHistoryStream replays stored valuation snapshots and then polls for
// new ones. Clients resume with Last-Event-ID or ?last_event_id.
func (s *Server) handleHistoryStream(w http.ResponseWriter, r *http.Request) {
	if s.deps.Snapshots == nil {
		s.writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "snapshot store not available"})
		return
	}

	lastIndex := parseLastEventID(r.Header.Get("Last-Event-ID"), r.URL.Query().Get("last_event_id"))

	records, err := s.deps.Snapshots.SnapshotsAfter(lastIndex)
	if err != nil {
		s.writeError(w, domain.LocalError("load valuation snapshots", err))
		return
	}

	sse, ok := newSSEWriter(w)
	if !ok {
		return
	}

	send := func(records []domain.ValuationSnapshotRecord) error {
		for _, record := range records {
			if err := sse.event(record.Index, "snapshot", record.Snapshot); err != nil {
				return err
			}
			lastIndex = record.Index
		}
		return nil
	}

	if err := send(thinRecords(records)); err != nil {
		s.l.Warn("history stream initial load", zap.Error(err))
		return
	}

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()
	poll := time.NewTicker(snapshotPollInterval)
	defer poll.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			sse.ping()
		case <-poll.C:
			records, err := s.deps.Snapshots.SnapshotsAfter(lastIndex)
			if err != nil {
				s.l.Warn("history stream poll", zap.Error(err))
				continue
			}
			if err := send(records); err != nil {
				s.l.Warn("history stream write", zap.Error(err))
				return
			}
		}
	}
}

// parseLastEventID reads the resume index from the Last-Event-ID header or the
// query parameter. The header wins.
func parseLastEventID(headerVal, queryVal string) uint64 {
	idStr := strings.TrimSpace(headerVal)
	if idStr == "" {
		idStr = strings.TrimSpace(queryVal)
	}
	if idStr == "" {
		return 0
	}

	id, err := strconv.ParseUint(idStr, 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// thinRecords keeps the newest records intact and exponentially thins older ones.
func thinRecords(records []domain.ValuationSnapshotRecord) []domain.ValuationSnapshotRecord {
	if len(records) <= keepFullRecords {
		return records
	}

	older := records[:len(records)-keepFullRecords]
	var thinned []domain.ValuationSnapshotRecord

	skip := 1
	for i := len(older) - 1; i >= 0; i-- {
		thinned = append(thinned, older[i])
		i -= skip
		// double the gap every 12 records
		if (len(older)-1-i)%12 == 0 {
			skip *= 2
		}
	}

	// thinned was collected newest first
	for l, r := 0, len(thinned)-1; l < r; l, r = l+1, r-1 {
		thinned[l], thinned[r] = thinned[r], thinned[l]
	}

	return append(thinned, records[len(records)-keepFullRecords:]...)
}
