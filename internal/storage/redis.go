package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"exposure/internal/model"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/hexops/gotextdiff"
	"github.com/hexops/gotextdiff/myers"
	"github.com/hexops/gotextdiff/span"
	"github.com/redis/go-redis/v9"
)

const (
	monitoredKey  = "monitored_items"
	historyPrefix = "exposure_history:"
	historyLimit  = 100
)

type Storage struct {
	Client *redis.Client
}

func NewStorage(addr string, db int) *Storage {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})
	return &Storage{Client: rdb}
}

func (s *Storage) Ping(ctx context.Context) error {
	return s.Client.Ping(ctx).Err()
}

func (s *Storage) Close() error {
	return s.Client.Close()
}

func (s *Storage) GetMonitoredItems(ctx context.Context) ([]string, error) {
	return s.Client.LRange(ctx, monitoredKey, 0, -1).Result()
}

// AddMonitoredItem is a no-op for domains already on the list.
func (s *Storage) AddMonitoredItem(ctx context.Context, item string) error {
	items, err := s.GetMonitoredItems(ctx)
	if err != nil {
		return err
	}
	for _, v := range items {
		if v == item {
			return nil
		}
	}
	return s.Client.RPush(ctx, monitoredKey, item).Err()
}

func (s *Storage) RemoveMonitoredItem(ctx context.Context, item string) error {
	return s.Client.LRem(ctx, monitoredKey, 0, item).Err()
}

// GetReportHistory returns archived reports for domain, newest first.
func (s *Storage) GetReportHistory(ctx context.Context, domain string) ([]model.HistoryEntry, error) {
	val, err := s.Client.LRange(ctx, historyPrefix+domain, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	var entries []model.HistoryEntry
	for _, v := range val {
		var entry model.HistoryEntry
		if err := json.Unmarshal([]byte(v), &entry); err == nil {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

// AddReportHistory archives report unless it matches the newest entry.
// It reports whether a new entry was written.
func (s *Storage) AddReportHistory(ctx context.Context, domain string, report model.Report) (bool, error) {
	resBytes, err := model.Marshal(report)
	if err != nil {
		return false, errors.Wrap(err, "marshal report")
	}
	resStr := string(resBytes)
	key := historyPrefix + domain

	lastEntryJSON, err := s.Client.LIndex(ctx, key, 0).Result()
	switch {
	case err == nil:
		var lastEntry model.HistoryEntry
		if json.Unmarshal([]byte(lastEntryJSON), &lastEntry) == nil && lastEntry.Result == resStr {
			return false, nil
		}
	case !errors.Is(err, redis.Nil):
		return false, err
	}

	entry := model.HistoryEntry{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Result:    resStr,
	}
	entryBytes, err := model.Marshal(entry)
	if err != nil {
		return false, errors.Wrap(err, "marshal history entry")
	}

	pipe := s.Client.Pipeline()
	pipe.LPush(ctx, key, string(entryBytes))
	pipe.LTrim(ctx, key, 0, historyLimit-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// GetHistoryWithDiffs pairs every archived report with a unified diff
// against the run before it.
func (s *Storage) GetHistoryWithDiffs(ctx context.Context, domain string) ([]model.HistoryDiff, error) {
	entries, err := s.GetReportHistory(ctx, domain)
	if err != nil {
		return nil, err
	}

	out := make([]model.HistoryDiff, len(entries))
	for i, e := range entries {
		out[i].Entry = e
		if i+1 >= len(entries) {
			continue
		}
		prev := entries[i+1]
		before, after := indent(prev.Result), indent(e.Result)
		edits := myers.ComputeEdits(span.URIFromPath(domain), before, after)
		out[i].Diff = fmt.Sprint(gotextdiff.ToUnified(prev.Timestamp, e.Timestamp, before, edits))
	}
	return out, nil
}

func indent(raw string) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, []byte(raw), "", "    "); err != nil {
		return raw + "\n"
	}
	buf.WriteByte('\n')
	return buf.String()
}
