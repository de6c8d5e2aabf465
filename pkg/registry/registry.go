// Package registry implements the shared Redis registry Storage Elements
// publish themselves into and Admin reads from for fleet-wide discovery
// (§3.7, §4.10, §6.5).
package registry

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/BigKAA/artStore-sub005/pkg/model"
)

func elementKey(id string) string { return "storage:elements:" + id }
func priorityKey(mode model.Mode) string { return "storage:" + string(mode) + ":by_priority" }

// Record is one Storage Element's published registry state (§3.7). Every
// field round-trips through Redis hash string values.
type Record struct {
	ID               string
	Mode             model.Mode
	CapacityTotal    int64
	CapacityUsed     int64
	CapacityFree     int64
	CapacityPercent  float64
	Endpoint         string
	Priority         int
	LastUpdated      time.Time
	HealthStatus     model.HealthStatus
	CapacityStatus   model.CapacityStatus
	ThresholdWarning int64
	ThresholdCritical int64
	ThresholdFull    int64
}

// Client publishes and reads Storage Element registry records.
type Client struct {
	rdb *redis.Client
}

// New wraps an already-connected Redis client.
func New(rdb *redis.Client) *Client {
	return &Client{rdb: rdb}
}

func (c *Client) toHash(r Record) map[string]any {
	return map[string]any{
		"id":                 r.ID,
		"mode":               string(r.Mode),
		"capacity_total":     r.CapacityTotal,
		"capacity_used":      r.CapacityUsed,
		"capacity_free":      r.CapacityFree,
		"capacity_percent":   strconv.FormatFloat(r.CapacityPercent, 'f', 2, 64),
		"endpoint":           r.Endpoint,
		"priority":           r.Priority,
		"last_updated":       r.LastUpdated.UTC().Format(time.RFC3339),
		"health_status":      string(r.HealthStatus),
		"capacity_status":    string(r.CapacityStatus),
		"threshold_warning":  r.ThresholdWarning,
		"threshold_critical": r.ThresholdCritical,
		"threshold_full":     r.ThresholdFull,
	}
}

// Publish writes the hash with TTL = reportInterval*3 and, per §4.10 step
// 4, adds the element to its mode's priority sorted set unless capacity
// is full (in which case it is removed).
func (c *Client) Publish(ctx context.Context, r Record, reportInterval time.Duration) error {
	key := elementKey(r.ID)
	pipe := c.rdb.TxPipeline()
	pipe.HSet(ctx, key, c.toHash(r))
	pipe.Expire(ctx, key, reportInterval*3)

	pset := priorityKey(r.Mode)
	if r.CapacityStatus == model.CapacityFull {
		pipe.ZRem(ctx, pset, r.ID)
	} else {
		pipe.ZAdd(ctx, pset, redis.Z{Score: float64(r.Priority), Member: r.ID})
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("publishing registry record %s: %w", r.ID, err)
	}
	return nil
}

// Deregister removes the hash for id and its entry in the given mode's
// priority sorted set, used on graceful shutdown (§4.10 step 5).
func (c *Client) Deregister(ctx context.Context, id string, mode model.Mode) error {
	pipe := c.rdb.TxPipeline()
	pipe.Del(ctx, elementKey(id))
	pipe.ZRem(ctx, priorityKey(mode), id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("deregistering %s: %w", id, err)
	}
	return nil
}

// Get reads a single element's record by id.
func (c *Client) Get(ctx context.Context, id string) (Record, bool, error) {
	vals, err := c.rdb.HGetAll(ctx, elementKey(id)).Result()
	if err != nil {
		return Record{}, false, fmt.Errorf("reading registry record %s: %w", id, err)
	}
	if len(vals) == 0 {
		return Record{}, false, nil
	}
	rec, err := fromHash(vals)
	return rec, true, err
}

// AvailableByPriority returns element ids in priority order (lowest
// score/highest preference first) for the given mode's sorted set,
// excluding elements already removed for being full.
func (c *Client) AvailableByPriority(ctx context.Context, mode model.Mode) ([]string, error) {
	ids, err := c.rdb.ZRangeByScore(ctx, priorityKey(mode), &redis.ZRangeBy{Min: "-inf", Max: "+inf"}).Result()
	if err != nil {
		return nil, fmt.Errorf("listing priority set for mode %s: %w", mode, err)
	}
	return ids, nil
}

func fromHash(vals map[string]string) (Record, error) {
	var r Record
	r.ID = vals["id"]
	r.Mode = model.Mode(vals["mode"])
	r.Endpoint = vals["endpoint"]
	r.HealthStatus = model.HealthStatus(vals["health_status"])
	r.CapacityStatus = model.CapacityStatus(vals["capacity_status"])

	var err error
	if r.CapacityTotal, err = strconv.ParseInt(vals["capacity_total"], 10, 64); err != nil {
		return Record{}, fmt.Errorf("parsing capacity_total: %w", err)
	}
	if r.CapacityUsed, err = strconv.ParseInt(vals["capacity_used"], 10, 64); err != nil {
		return Record{}, fmt.Errorf("parsing capacity_used: %w", err)
	}
	if r.CapacityFree, err = strconv.ParseInt(vals["capacity_free"], 10, 64); err != nil {
		return Record{}, fmt.Errorf("parsing capacity_free: %w", err)
	}
	if r.CapacityPercent, err = strconv.ParseFloat(vals["capacity_percent"], 64); err != nil {
		return Record{}, fmt.Errorf("parsing capacity_percent: %w", err)
	}
	priority, err := strconv.Atoi(vals["priority"])
	if err != nil {
		return Record{}, fmt.Errorf("parsing priority: %w", err)
	}
	r.Priority = priority
	if r.ThresholdWarning, err = strconv.ParseInt(vals["threshold_warning"], 10, 64); err != nil {
		return Record{}, fmt.Errorf("parsing threshold_warning: %w", err)
	}
	if r.ThresholdCritical, err = strconv.ParseInt(vals["threshold_critical"], 10, 64); err != nil {
		return Record{}, fmt.Errorf("parsing threshold_critical: %w", err)
	}
	if r.ThresholdFull, err = strconv.ParseInt(vals["threshold_full"], 10, 64); err != nil {
		return Record{}, fmt.Errorf("parsing threshold_full: %w", err)
	}
	r.LastUpdated, err = time.Parse(time.RFC3339, vals["last_updated"])
	if err != nil {
		return Record{}, fmt.Errorf("parsing last_updated: %w", err)
	}
	return r, nil
}
