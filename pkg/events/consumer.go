package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Message is one delivered stream entry.
type Message struct {
	ID     string
	Values map[string]interface{}
}

// Handler processes a delivered message. Returning nil acknowledges the
// message; returning an error leaves it pending for redelivery.
type Handler func(context.Context, Message) error

// ConsumerConfig configures a stream consumer group worker pool.
type ConsumerConfig struct {
	Topic         string
	Group         string
	Workers       int
	BlockInterval time.Duration
	ClaimMinIdle  time.Duration
	Logger        *zap.Logger
}

// Consumer reads one topic through a consumer group with N parallel workers.
// Delivery is at-least-once: entries that were delivered but never
// acknowledged (e.g. a crashed worker) are reclaimed once their idle time
// exceeds ClaimMinIdle.
type Consumer struct {
	client  *redis.Client
	handler Handler

	topic         string
	group         string
	workers       int
	blockInterval time.Duration
	claimMinIdle  time.Duration
	logger        *zap.Logger

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	started bool
}

// NewConsumer builds a consumer for the given topic and handler.
func NewConsumer(client *redis.Client, handler Handler, cfg ConsumerConfig) *Consumer {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BlockInterval <= 0 {
		cfg.BlockInterval = 5 * time.Second
	}
	if cfg.ClaimMinIdle <= 0 {
		cfg.ClaimMinIdle = time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Consumer{
		client:        client,
		handler:       handler,
		topic:         cfg.Topic,
		group:         cfg.Group,
		workers:       cfg.Workers,
		blockInterval: cfg.BlockInterval,
		claimMinIdle:  cfg.ClaimMinIdle,
		logger:        cfg.Logger,
	}
}

// Start creates the consumer group and begins worker consumption. Safe to
// call once.
func (c *Consumer) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return nil
	}

	if err := NewBus(c.client).EnsureGroup(ctx, c.topic, c.group); err != nil {
		return err
	}

	c.ctx, c.cancel = context.WithCancel(ctx)
	for i := 0; i < c.workers; i++ {
		c.wg.Add(1)
		go c.worker(fmt.Sprintf("%s-%d", c.group, i+1))
	}
	c.wg.Add(1)
	go c.reclaimer()

	c.started = true
	c.logger.Sugar().Infow("consumer started", "topic", c.topic, "group", c.group, "workers", c.workers)
	return nil
}

// Stop cancels workers and waits for them to exit.
func (c *Consumer) Stop() {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return
	}
	c.cancel()
	c.mu.Unlock()
	c.wg.Wait()
	c.logger.Sugar().Infow("consumer stopped", "topic", c.topic, "group", c.group)
}

func (c *Consumer) worker(name string) {
	defer c.wg.Done()
	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		streams, err := c.client.XReadGroup(c.ctx, &redis.XReadGroupArgs{
			Group:    c.group,
			Consumer: name,
			Streams:  []string{c.topic, ">"},
			Count:    1,
			Block:    c.blockInterval,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled) {
				continue
			}
			c.logger.Sugar().Errorw("read group failed", "topic", c.topic, "error", err)
			continue
		}

		for _, stream := range streams {
			for _, entry := range stream.Messages {
				c.dispatch(entry)
			}
		}
	}
}

// reclaimer periodically claims entries another worker received but never
// acknowledged, so a crash before ack results in redelivery instead of loss.
func (c *Consumer) reclaimer() {
	defer c.wg.Done()
	ticker := time.NewTicker(c.claimMinIdle)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			entries, _, err := c.client.XAutoClaim(c.ctx, &redis.XAutoClaimArgs{
				Stream:   c.topic,
				Group:    c.group,
				Consumer: c.group + "-reclaimer",
				MinIdle:  c.claimMinIdle,
				Start:    "0-0",
				Count:    16,
			}).Result()
			if err != nil {
				if !errors.Is(err, context.Canceled) {
					c.logger.Sugar().Warnw("auto claim failed", "topic", c.topic, "error", err)
				}
				continue
			}
			for _, entry := range entries {
				c.dispatch(entry)
			}
		}
	}
}

func (c *Consumer) dispatch(entry redis.XMessage) {
	msg := Message{ID: entry.ID, Values: entry.Values}
	if err := c.handler(c.ctx, msg); err != nil {
		c.logger.Sugar().Warnw("event handler failed, leaving pending",
			"topic", c.topic, "message_id", entry.ID, "error", err)
		return
	}
	if err := c.client.XAck(c.ctx, c.topic, c.group, entry.ID).Err(); err != nil {
		c.logger.Sugar().Errorw("ack failed", "topic", c.topic, "message_id", entry.ID, "error", err)
	}
}
