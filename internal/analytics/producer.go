package analytics

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"
)

// Event 是发送到 Kafka 的对局事件
type Event struct {
	Type      string         `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	SessionID string         `json:"sessionId"`
	Data      map[string]any `json:"data"`
}

const (
	EVENT_PLAYER_JOIN  = "player_join"
	EVENT_PLAYER_LEAVE = "player_leave"
	EVENT_MATCH_START  = "match_start"
	EVENT_ROLE_SWAP    = "role_swap"
	EVENT_MATCH_END    = "match_end"
)

type Publisher interface {
	Publish(ev Event) error
	Close() error
}

// Nop 在未配置 Kafka 时使用
type Nop struct{}

func (Nop) Publish(Event) error { return nil }
func (Nop) Close() error        { return nil }

type Producer struct {
	producer sarama.SyncProducer
	topic    string
}

func NewProducer(brokers []string, topic string) (*Producer, error) {
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5
	config.Producer.Return.Successes = true

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("创建 Kafka 生产者失败: %w", err)
	}

	return NewProducerWith(producer, topic), nil
}

func NewProducerWith(producer sarama.SyncProducer, topic string) *Producer {
	return &Producer{
		producer: producer,
		topic:    topic,
	}
}

// Publish 以会话 ID 作为消息键，同一局的事件落在同一分区保持顺序
func (p *Producer) Publish(ev Event) error {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(ev.SessionID),
		Value: sarama.ByteEncoder(payload),
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("发送事件 %s 失败: %w", ev.Type, err)
	}

	zap.L().Debug(
		"事件已发送",
		zap.String("type", ev.Type),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset),
	)

	return nil
}

func (p *Producer) Close() error {
	return p.producer.Close()
}

// Emit 发送失败只记录日志，不影响游戏流程
func Emit(p Publisher, ev Event) {
	if p == nil {
		return
	}

	if err := p.Publish(ev); err != nil {
		zap.L().Warn("发送分析事件失败", zap.String("type", ev.Type), zap.Error(err))
	}
}

func PlayerJoinEvent(sessionID, name string) Event {
	return Event{
		Type:      EVENT_PLAYER_JOIN,
		SessionID: sessionID,
		Data:      map[string]any{"name": name},
	}
}

func PlayerLeaveEvent(sessionID, name string) Event {
	return Event{
		Type:      EVENT_PLAYER_LEAVE,
		SessionID: sessionID,
		Data:      map[string]any{"name": name},
	}
}

func MatchStartEvent(sessionID, mapName string, players int) Event {
	return Event{
		Type:      EVENT_MATCH_START,
		SessionID: sessionID,
		Data: map[string]any{
			"map":     mapName,
			"players": players,
		},
	}
}

func RoleSwapEvent(sessionID string, pacman, ghost int) Event {
	return Event{
		Type:      EVENT_ROLE_SWAP,
		SessionID: sessionID,
		Data: map[string]any{
			"pacman": pacman,
			"ghost":  ghost,
		},
	}
}

func MatchEndEvent(sessionID, outcome string, scores map[string]int) Event {
	return Event{
		Type:      EVENT_MATCH_END,
		SessionID: sessionID,
		Data: map[string]any{
			"outcome": outcome,
			"scores":  scores,
		},
	}
}
